package roomstore

import (
	"context"
	"sync"
	"time"

	"gamecore/engine"
	"gamecore/room"
)

// FakeRepository is an in-memory engine.Repository[S] used by engine-
// level tests that don't need a real Redis instance. It mirrors the
// Redis repository's set-if-absent lock with TTL and its missing-meta
// recovery without any network dependency. Its lock records no holder
// identity, so ReleaseLock always frees it.
type FakeRepository[S any] struct {
	mu          sync.Mutex
	states      map[string]S
	metas       map[string]*room.Meta
	locks       map[string]lockEntry
	DefaultMeta engine.DefaultMetaFunc
}

type lockEntry struct {
	expiresAt time.Time
}

// NewFakeRepository builds an empty in-memory repository.
func NewFakeRepository[S any](defaultMeta engine.DefaultMetaFunc) *FakeRepository[S] {
	return &FakeRepository[S]{
		states:      make(map[string]S),
		metas:       make(map[string]*room.Meta),
		locks:       make(map[string]lockEntry),
		DefaultMeta: defaultMeta,
	}
}

var _ engine.Repository[int] = (*FakeRepository[int])(nil)

func (f *FakeRepository[S]) Load(ctx context.Context, roomID string) (*engine.Context[S], error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	state, ok := f.states[roomID]
	if !ok {
		return nil, nil
	}
	meta, ok := f.metas[roomID]
	if !ok {
		if f.DefaultMeta != nil {
			meta = f.DefaultMeta(roomID)
		} else {
			meta = room.NewMeta("", 4, true, 0)
		}
	}
	return &engine.Context[S]{RoomID: roomID, State: state, Meta: meta}, nil
}

func (f *FakeRepository[S]) Save(ctx context.Context, roomID string, state S, meta *room.Meta) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.states[roomID] = state
	f.metas[roomID] = meta
	return nil
}

func (f *FakeRepository[S]) Delete(ctx context.Context, roomID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.states, roomID)
	delete(f.metas, roomID)
	delete(f.locks, roomID)
	return nil
}

func (f *FakeRepository[S]) TryAcquireLock(ctx context.Context, roomID string, ttl time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if entry, ok := f.locks[roomID]; ok && time.Now().Before(entry.expiresAt) {
		return false, nil
	}
	f.locks[roomID] = lockEntry{expiresAt: time.Now().Add(ttl)}
	return true, nil
}

func (f *FakeRepository[S]) ReleaseLock(ctx context.Context, roomID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.locks, roomID)
	return nil
}

func (f *FakeRepository[S]) LoadMany(ctx context.Context, roomIDs []string) ([]*engine.Context[S], error) {
	out := make([]*engine.Context[S], 0, len(roomIDs))
	for _, id := range roomIDs {
		rc, err := f.Load(ctx, id)
		if err != nil || rc == nil {
			continue
		}
		out = append(out, rc)
	}
	return out, nil
}
