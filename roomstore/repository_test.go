package roomstore

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"gamecore/codec"
	"gamecore/gameerr"
	"gamecore/ludo"
	"gamecore/room"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func testClient(t *testing.T) *redis.Client {
	t.Helper()
	addr := os.Getenv("GAMECORE_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("set GAMECORE_TEST_REDIS_ADDR to run Redis-backed tests")
	}
	client := redis.NewClient(&redis.Options{Addr: addr, DB: 15})
	require.NoError(t, client.FlushDB(context.Background()).Err())
	t.Cleanup(func() {
		client.FlushDB(context.Background())
		client.Close()
	})
	return client
}

func newLudoRepo(t *testing.T, client *redis.Client, cacheSize int) *Repository[ludo.State] {
	t.Helper()
	c := codec.NewCodec[ludo.State]("ludo.State", 1, ludo.EncodedSize)
	return NewRepository[ludo.State](client, c, "ludo", nil, ludo.Logic{}.DefaultMeta, cacheSize)
}

func seededMeta(t *testing.T) *room.Meta {
	t.Helper()
	meta := room.NewMeta("ludo", 4, true, 50)
	_, err := meta.AssignSeat("p0")
	require.NoError(t, err)
	return meta
}

func TestSaveThenLoadRoundTrips(t *testing.T) {
	repo := newLudoRepo(t, testClient(t), 0)
	ctx := context.Background()

	st := ludo.NewState(4, 1234)
	st.Positions[1][2] = 30
	meta := seededMeta(t)
	require.NoError(t, repo.Save(ctx, "AAAAA", st, meta))

	rc, err := repo.Load(ctx, "AAAAA")
	require.NoError(t, err)
	require.NotNil(t, rc)
	require.Equal(t, st, rc.State)
	require.Equal(t, meta.Seats, rc.Meta.Seats)
	require.Equal(t, uint64(50), rc.Meta.EntryFee)
}

func TestLoadMissingRoomReturnsNil(t *testing.T) {
	repo := newLudoRepo(t, testClient(t), 0)
	rc, err := repo.Load(context.Background(), "NOPE0")
	require.NoError(t, err)
	require.Nil(t, rc)
}

func TestLoadRecoversMissingMeta(t *testing.T) {
	client := testClient(t)
	repo := newLudoRepo(t, client, 0)
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, "AAAAA", ludo.NewState(4, 1234), seededMeta(t)))
	require.NoError(t, client.Del(ctx, metaKey("ludo", "AAAAA")).Err())

	rc, err := repo.Load(ctx, "AAAAA")
	require.NoError(t, err)
	require.NotNil(t, rc)
	require.Equal(t, "ludo", rc.Meta.GameType, "missing meta falls back to the game's default")
}

func TestCorruptStateSurfacesCorrupt(t *testing.T) {
	client := testClient(t)
	repo := newLudoRepo(t, client, 0)
	ctx := context.Background()

	require.NoError(t, client.Set(ctx, stateKey("ludo", "BAAD1"), []byte{0xFF, 0x01}, 0).Err())

	_, err := repo.Load(ctx, "BAAD1")
	require.Error(t, err)
	require.True(t, errors.Is(err, gameerr.ErrCorrupt))
}

func TestLockIsExclusiveAndReleases(t *testing.T) {
	client := testClient(t)
	repo := newLudoRepo(t, client, 0)
	other := newLudoRepo(t, client, 0)
	ctx := context.Background()

	ok, err := repo.TryAcquireLock(ctx, "AAAAA", 5*time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = other.TryAcquireLock(ctx, "AAAAA", 5*time.Second)
	require.NoError(t, err)
	require.False(t, ok, "second acquirer is rejected while the lock lives")

	// A foreign release is a no-op: the compare-and-delete sees a
	// different node identity and leaves the lock in place.
	require.NoError(t, other.ReleaseLock(ctx, "AAAAA"))
	ok, err = other.TryAcquireLock(ctx, "AAAAA", 5*time.Second)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, repo.ReleaseLock(ctx, "AAAAA"))
	ok, err = other.TryAcquireLock(ctx, "AAAAA", 5*time.Second)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestDeleteRemovesEverything(t *testing.T) {
	client := testClient(t)
	repo := newLudoRepo(t, client, 8)
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, "AAAAA", ludo.NewState(4, 1234), seededMeta(t)))
	ok, err := repo.TryAcquireLock(ctx, "AAAAA", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, repo.Delete(ctx, "AAAAA"))

	rc, err := repo.Load(ctx, "AAAAA")
	require.NoError(t, err)
	require.Nil(t, rc)

	ok, err = repo.TryAcquireLock(ctx, "AAAAA", time.Minute)
	require.NoError(t, err)
	require.True(t, ok, "delete also clears the lock key")
}

func TestLoadManyDropsCorruptEntries(t *testing.T) {
	client := testClient(t)
	repo := newLudoRepo(t, client, 0)
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, "GOOD1", ludo.NewState(4, 1), seededMeta(t)))
	require.NoError(t, repo.Save(ctx, "GOOD2", ludo.NewState(4, 2), seededMeta(t)))
	require.NoError(t, client.Set(ctx, stateKey("ludo", "BAAD1"), []byte("junk"), 0).Err())

	rcs, err := repo.LoadMany(ctx, []string{"GOOD1", "BAAD1", "MISSING", "GOOD2"})
	require.NoError(t, err)
	require.Len(t, rcs, 2)
	require.Equal(t, "GOOD1", rcs[0].RoomID)
	require.Equal(t, "GOOD2", rcs[1].RoomID)
}

func TestCachedLoadServesSavedValue(t *testing.T) {
	repo := newLudoRepo(t, testClient(t), 8)
	ctx := context.Background()

	st := ludo.NewState(4, 1234)
	require.NoError(t, repo.Save(ctx, "AAAAA", st, seededMeta(t)))

	rc, err := repo.Load(ctx, "AAAAA")
	require.NoError(t, err)
	require.Equal(t, st, rc.State)

	st.TurnID = 9
	require.NoError(t, repo.Save(ctx, "AAAAA", st, seededMeta(t)))
	rc, err = repo.Load(ctx, "AAAAA")
	require.NoError(t, err)
	require.Equal(t, uint32(9), rc.State.TurnID, "save refreshes the cache entry")
}
