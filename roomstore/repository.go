package roomstore

import (
	"context"
	"encoding/json"
	"time"

	"gamecore/engine"
	"gamecore/gameerr"
	"gamecore/room"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Registrar is the narrow slice of the room registry a Repository
// needs: record or forget a room's existence on save/delete. The
// concrete registry.Registry implements this; tests may pass a no-op.
type Registrar interface {
	Register(ctx context.Context, gameType, roomID string, createdAt time.Time) error
	Unregister(ctx context.Context, gameType, roomID string) error
}

type noopRegistrar struct{}

func (noopRegistrar) Register(ctx context.Context, gameType, roomID string, createdAt time.Time) error {
	return nil
}
func (noopRegistrar) Unregister(ctx context.Context, gameType, roomID string) error { return nil }

// codecValue is the subset of codec.Codec methods Repository needs,
// expressed without the codec's own generic constraint so Repository
// can hold one by value.
type codecValue[S any] interface {
	Encode(s S) ([]byte, error)
	Decode(b []byte) (S, error)
}

// Repository is the Redis-backed engine.Repository[S] implementation.
// CacheSize of 0 disables the read-through cache.
type Repository[S any] struct {
	Client      *redis.Client
	Codec       codecValue[S]
	GameType    string
	NodeID      uuid.UUID
	Registrar   Registrar
	DefaultMeta engine.DefaultMetaFunc
	LockValue   string
	Logger      *zap.Logger

	cache *lru.Cache[string, *engine.Context[S]]
}

var _ engine.Repository[int] = (*Repository[int])(nil)

// NewRepository builds a Redis-backed repository for one game type.
// cacheSize <= 0 disables the cache.
func NewRepository[S any](client *redis.Client, c codecValue[S], gameType string, registrar Registrar, defaultMeta engine.DefaultMetaFunc, cacheSize int) *Repository[S] {
	if registrar == nil {
		registrar = noopRegistrar{}
	}
	nodeID := uuid.New()
	repo := &Repository[S]{
		Client:      client,
		Codec:       c,
		GameType:    gameType,
		NodeID:      nodeID,
		Registrar:   registrar,
		DefaultMeta: defaultMeta,
		LockValue:   nodeID.String(),
		Logger:      zap.NewNop(),
	}
	if cacheSize > 0 {
		cache, err := lru.New[string, *engine.Context[S]](cacheSize)
		if err == nil {
			repo.cache = cache
		}
	}
	return repo
}

type metaRecord struct {
	Seats      map[string]int   `json:"seats"`
	MaxPlayers int              `json:"maxPlayers"`
	IsPublic   bool             `json:"isPublic"`
	GameType   string           `json:"gameType"`
	EntryFee   uint64           `json:"entryFee"`
	Config     map[string]string `json:"config"`
}

func toMetaRecord(m *room.Meta) metaRecord {
	return metaRecord{
		Seats: m.Seats, MaxPlayers: m.MaxPlayers, IsPublic: m.IsPublic,
		GameType: m.GameType, EntryFee: m.EntryFee, Config: m.Config,
	}
}

func (r metaRecord) toMeta() *room.Meta {
	seats := r.Seats
	if seats == nil {
		seats = make(map[string]int)
	}
	cfg := r.Config
	if cfg == nil {
		cfg = make(map[string]string)
	}
	return &room.Meta{Seats: seats, MaxPlayers: r.MaxPlayers, IsPublic: r.IsPublic, GameType: r.GameType, EntryFee: r.EntryFee, Config: cfg}
}

// Load performs a single pipelined GET of state and meta, decodes
// state through the codec, and recovers a missing meta record using
// DefaultMeta — the repository's defensive recovery path.
func (r *Repository[S]) Load(ctx context.Context, roomID string) (*engine.Context[S], error) {
	if r.cache != nil {
		if cached, ok := r.cache.Get(roomID); ok {
			// Hand out a private meta so a caller's mutation can't
			// reach back into the cache before Save commits it.
			clone := *cached
			clone.Meta = cached.Meta.Clone()
			return &clone, nil
		}
	}

	pipe := r.Client.Pipeline()
	stateCmd := pipe.Get(ctx, stateKey(r.GameType, roomID))
	metaCmd := pipe.Get(ctx, metaKey(r.GameType, roomID))
	_, err := pipe.Exec(ctx)
	if err != nil && err != redis.Nil {
		return nil, err
	}

	rawState, err := stateCmd.Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	state, err := r.Codec.Decode(rawState)
	if err != nil {
		return nil, err
	}

	var meta *room.Meta
	rawMeta, err := metaCmd.Bytes()
	if err == redis.Nil {
		if r.DefaultMeta != nil {
			meta = r.DefaultMeta(roomID)
		} else {
			meta = room.NewMeta(r.GameType, 4, true, 0)
		}
	} else if err != nil {
		return nil, err
	} else {
		var rec metaRecord
		if err := json.Unmarshal(rawMeta, &rec); err != nil {
			return nil, gameerr.Wrap(gameerr.Corrupt, err, "decode meta for room %s", roomID)
		}
		meta = rec.toMeta()
	}

	rc := &engine.Context[S]{RoomID: roomID, State: state, Meta: meta}
	if r.cache != nil {
		r.cache.Add(roomID, &engine.Context[S]{RoomID: roomID, State: state, Meta: meta.Clone()})
	}
	return rc, nil
}

// Save writes state and meta in one pipelined batch and registers the
// room with the registry.
func (r *Repository[S]) Save(ctx context.Context, roomID string, state S, meta *room.Meta) error {
	rawState, err := r.Codec.Encode(state)
	if err != nil {
		return gameerr.Wrap(gameerr.Corrupt, err, "encode state for room %s", roomID)
	}
	rawMeta, err := json.Marshal(toMetaRecord(meta))
	if err != nil {
		return err
	}

	pipe := r.Client.Pipeline()
	pipe.Set(ctx, stateKey(r.GameType, roomID), rawState, 0)
	pipe.Set(ctx, metaKey(r.GameType, roomID), rawMeta, 0)
	if _, err := pipe.Exec(ctx); err != nil {
		return err
	}

	if r.cache != nil {
		r.cache.Add(roomID, &engine.Context[S]{RoomID: roomID, State: state, Meta: meta.Clone()})
	}

	return r.Registrar.Register(ctx, r.GameType, roomID, time.Now())
}

// Delete removes state, meta and lock keys and unregisters the room.
func (r *Repository[S]) Delete(ctx context.Context, roomID string) error {
	pipe := r.Client.Pipeline()
	pipe.Del(ctx, stateKey(r.GameType, roomID), metaKey(r.GameType, roomID), lockKey(r.GameType, roomID))
	if _, err := pipe.Exec(ctx); err != nil {
		return err
	}
	if r.cache != nil {
		r.cache.Remove(roomID)
	}
	return r.Registrar.Unregister(ctx, r.GameType, roomID)
}

// TryAcquireLock is a SET-NX-EX guarded by this repository's node
// identity as the lock value, so a stale holder can always be told
// apart from the current one during debugging.
func (r *Repository[S]) TryAcquireLock(ctx context.Context, roomID string, ttl time.Duration) (bool, error) {
	ok, err := r.Client.SetNX(ctx, lockKey(r.GameType, roomID), r.LockValue, ttl).Result()
	if err != nil {
		return false, err
	}
	return ok, nil
}

// releaseLockScript deletes the lock only if it still holds this
// node's value, so a slow caller can never release a lock another
// node has since legitimately acquired.
const releaseLockScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end
`

// ReleaseLock is a best-effort, compare-and-delete release; safe to
// call even if the lock already expired or was taken over.
func (r *Repository[S]) ReleaseLock(ctx context.Context, roomID string) error {
	return r.Client.Eval(ctx, releaseLockScript, []string{lockKey(r.GameType, roomID)}, r.LockValue).Err()
}

// LoadMany batches every room's state and meta GET into one pipelined
// round trip, then decodes locally. Missing rooms are omitted; corrupt
// entries are dropped with a log rather than failing the whole batch.
func (r *Repository[S]) LoadMany(ctx context.Context, roomIDs []string) ([]*engine.Context[S], error) {
	if len(roomIDs) == 0 {
		return nil, nil
	}

	pipe := r.Client.Pipeline()
	stateCmds := make([]*redis.StringCmd, len(roomIDs))
	metaCmds := make([]*redis.StringCmd, len(roomIDs))
	for i, id := range roomIDs {
		stateCmds[i] = pipe.Get(ctx, stateKey(r.GameType, id))
		metaCmds[i] = pipe.Get(ctx, metaKey(r.GameType, id))
	}
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, err
	}

	out := make([]*engine.Context[S], 0, len(roomIDs))
	for i, id := range roomIDs {
		rawState, err := stateCmds[i].Bytes()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			r.Logger.Warn("load-many: read state failed", zap.String("roomId", id), zap.Error(err))
			continue
		}
		state, err := r.Codec.Decode(rawState)
		if err != nil {
			r.Logger.Warn("load-many: corrupt state dropped", zap.String("roomId", id), zap.Error(err))
			continue
		}

		var meta *room.Meta
		rawMeta, err := metaCmds[i].Bytes()
		switch {
		case err == redis.Nil:
			if r.DefaultMeta != nil {
				meta = r.DefaultMeta(id)
			} else {
				meta = room.NewMeta(r.GameType, 4, true, 0)
			}
		case err != nil:
			r.Logger.Warn("load-many: read meta failed", zap.String("roomId", id), zap.Error(err))
			continue
		default:
			var rec metaRecord
			if err := json.Unmarshal(rawMeta, &rec); err != nil {
				r.Logger.Warn("load-many: corrupt meta dropped", zap.String("roomId", id), zap.Error(err))
				continue
			}
			meta = rec.toMeta()
		}

		out = append(out, &engine.Context[S]{RoomID: id, State: state, Meta: meta})
	}
	return out, nil
}
