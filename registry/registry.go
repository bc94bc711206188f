// Package registry is the Redis-backed room directory: which rooms
// exist, what type each one is, a recency-ordered per-type index for
// lobby paging, and the user-to-room binding used to find a
// reconnecting player's active room.
package registry

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	globalRoomsKey = "game:registry:rooms"       // hash: room-id -> game-type
	userRoomKey    = "game:registry:user-room"    // hash: user-id -> room-id
)

func typeIndexKey(gameType string) string {
	return "game:registry:type:" + gameType
}

// Registry is the Redis-backed room directory shared by every game
// type's roomstore.Repository.
type Registry struct {
	Client *redis.Client
}

// New builds a Registry over an existing Redis client.
func New(client *redis.Client) *Registry {
	return &Registry{Client: client}
}

// Register records a room's existence (idempotent on membership) and
// adds it to its type's sorted index scored by createdAt. Re-registering
// an indexed room leaves its original score in place.
func (r *Registry) Register(ctx context.Context, gameType, roomID string, createdAt time.Time) error {
	pipe := r.Client.Pipeline()
	pipe.HSet(ctx, globalRoomsKey, roomID, gameType)
	pipe.ZAddNX(ctx, typeIndexKey(gameType), redis.Z{Score: float64(createdAt.Unix()), Member: roomID})
	_, err := pipe.Exec(ctx)
	return err
}

// Unregister removes a room from every index.
func (r *Registry) Unregister(ctx context.Context, gameType, roomID string) error {
	pipe := r.Client.Pipeline()
	pipe.HDel(ctx, globalRoomsKey, roomID)
	pipe.ZRem(ctx, typeIndexKey(gameType), roomID)
	_, err := pipe.Exec(ctx)
	return err
}

// UnregisterRoom is Unregister for callers that only hold a room id:
// it reads the owning game type from the global map first. Unknown
// rooms are a no-op.
func (r *Registry) UnregisterRoom(ctx context.Context, roomID string) error {
	gt, ok, err := r.GameTypeOf(ctx, roomID)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	return r.Unregister(ctx, gt, roomID)
}

// GameTypeOf looks up which game type owns a room id.
func (r *Registry) GameTypeOf(ctx context.Context, roomID string) (string, bool, error) {
	gt, err := r.Client.HGet(ctx, globalRoomsKey, roomID).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return gt, true, nil
}

// ListRecent pages a game type's rooms, most recently created first.
// offset is the rank offset into the descending recency index and
// count the page size; ListRecentPaged adds a next-cursor on top.
func (r *Registry) ListRecent(ctx context.Context, gameType string, offset, count int64) ([]string, error) {
	return r.Client.ZRevRange(ctx, typeIndexKey(gameType), offset, offset+count-1).Result()
}

// ListRecentPaged is ListRecent with an explicit next-cursor, per the
// registry contract's get-room-ids-paged. nextCursor is 0 once the
// index is exhausted.
func (r *Registry) ListRecentPaged(ctx context.Context, gameType string, cursor, pageSize int64) ([]string, int64, error) {
	ids, err := r.ListRecent(ctx, gameType, cursor, pageSize)
	if err != nil {
		return nil, 0, err
	}
	if int64(len(ids)) < pageSize {
		return ids, 0, nil
	}
	return ids, cursor + int64(len(ids)), nil
}

// GetRoomIDsByType returns every room id currently registered under a
// game type, most recently created first.
func (r *Registry) GetRoomIDsByType(ctx context.Context, gameType string) ([]string, error) {
	return r.Client.ZRevRange(ctx, typeIndexKey(gameType), 0, -1).Result()
}

// GetAllRoomIDs returns every registered room id across all game
// types.
func (r *Registry) GetAllRoomIDs(ctx context.Context) ([]string, error) {
	return r.Client.HKeys(ctx, globalRoomsKey).Result()
}

// BindUser records which room a user currently occupies, so a
// reconnect can find the active room without a client-supplied id.
func (r *Registry) BindUser(ctx context.Context, userID, roomID string) error {
	return r.Client.HSet(ctx, userRoomKey, userID, roomID).Err()
}

// UnbindUser clears a user's room binding, e.g. on leave.
func (r *Registry) UnbindUser(ctx context.Context, userID string) error {
	return r.Client.HDel(ctx, userRoomKey, userID).Err()
}

// RoomOfUser returns the room a user is currently bound to, if any.
func (r *Registry) RoomOfUser(ctx context.Context, userID string) (string, bool, error) {
	roomID, err := r.Client.HGet(ctx, userRoomKey, userID).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return roomID, true, nil
}
