package engine

import (
	"context"
	"time"

	"gamecore/room"
)

// Context is the ephemeral, in-process (room-id, state, meta) triple
// produced by a Load and consumed by a Save. It is never shared
// across requests.
type Context[S any] struct {
	RoomID string
	State  S
	Meta   *room.Meta
}

// Repository is the narrow persistence contract a Framework needs:
// atomic load/save/delete of (state, meta, lock) triples keyed by
// room id, parameterized by the concrete game's state type. The
// roomstore package provides the Redis-backed implementation; tests
// may substitute an in-memory fake.
type Repository[S any] interface {
	// Load atomically fetches state and meta and decodes them. It
	// returns (nil, nil) if the room does not exist. A state present
	// with no meta is recovered defensively using a caller-supplied
	// default meta factory (see DefaultMeta).
	Load(ctx context.Context, roomID string) (*Context[S], error)

	// Save writes both state and meta in a single pipelined batch and
	// registers the room with the registry (idempotent).
	Save(ctx context.Context, roomID string, state S, meta *room.Meta) error

	// Delete removes state, meta and lock keys and unregisters the
	// room.
	Delete(ctx context.Context, roomID string) error

	// TryAcquireLock performs a set-if-absent with TTL, returning true
	// only if the lock was taken by this call.
	TryAcquireLock(ctx context.Context, roomID string, ttl time.Duration) (bool, error)

	// ReleaseLock is a best-effort delete; safe to call even if the
	// lock already expired.
	ReleaseLock(ctx context.Context, roomID string) error

	// LoadMany is a single round-trip multi-get followed by local
	// decode; corrupt entries are dropped (logged) and omitted.
	LoadMany(ctx context.Context, roomIDs []string) ([]*Context[S], error)
}

// DefaultMetaFunc builds a default meta record for a room whose state
// exists but whose meta key is missing — the repository's defensive
// recovery path.
type DefaultMetaFunc func(roomID string) *room.Meta
