package registry

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

// testClient connects to the Redis named by GAMECORE_TEST_REDIS_ADDR,
// skipping when it isn't set so the suite stays runnable without
// infrastructure.
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

func TestRegisterIsIdempotentOnMembership(t *testing.T) {
	reg := New(testClient(t))
	ctx := context.Background()
	created := time.Now()

	require.NoError(t, reg.Register(ctx, "ludo", "AAAAA", created))
	require.NoError(t, reg.Register(ctx, "ludo", "AAAAA", created))

	ids, err := reg.GetRoomIDsByType(ctx, "ludo")
	require.NoError(t, err)
	require.Equal(t, []string{"AAAAA"}, ids)

	gt, ok, err := reg.GameTypeOf(ctx, "AAAAA")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "ludo", gt)
}

func TestUnregisterRemovesBothStructures(t *testing.T) {
	reg := New(testClient(t))
	ctx := context.Background()

	require.NoError(t, reg.Register(ctx, "ludo", "AAAAA", time.Now()))
	require.NoError(t, reg.Unregister(ctx, "ludo", "AAAAA"))

	_, ok, err := reg.GameTypeOf(ctx, "AAAAA")
	require.NoError(t, err)
	require.False(t, ok)

	ids, err := reg.GetRoomIDsByType(ctx, "ludo")
	require.NoError(t, err)
	require.Empty(t, ids)
}

func TestUnregisterRoomResolvesType(t *testing.T) {
	reg := New(testClient(t))
	ctx := context.Background()

	require.NoError(t, reg.Register(ctx, "luckymine", "BBBBB", time.Now()))
	require.NoError(t, reg.UnregisterRoom(ctx, "BBBBB"))

	_, ok, err := reg.GameTypeOf(ctx, "BBBBB")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, reg.UnregisterRoom(ctx, "GHOST"), "unknown room is a no-op")
}

func TestListRecentPagesNewestFirst(t *testing.T) {
	reg := New(testClient(t))
	ctx := context.Background()
	base := time.Unix(1_700_000_000, 0)

	for i, id := range []string{"OLD11", "MID22", "NEW33"} {
		require.NoError(t, reg.Register(ctx, "ludo", id, base.Add(time.Duration(i)*time.Minute)))
	}

	page, next, err := reg.ListRecentPaged(ctx, "ludo", 0, 2)
	require.NoError(t, err)
	require.Equal(t, []string{"NEW33", "MID22"}, page)
	require.Equal(t, int64(2), next)

	page, next, err = reg.ListRecentPaged(ctx, "ludo", next, 2)
	require.NoError(t, err)
	require.Equal(t, []string{"OLD11"}, page)
	require.Equal(t, int64(0), next, "exhausted index resets the cursor")
}

func TestUserRoomBinding(t *testing.T) {
	reg := New(testClient(t))
	ctx := context.Background()

	_, ok, err := reg.RoomOfUser(ctx, "u1")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, reg.BindUser(ctx, "u1", "AAAAA"))
	roomID, ok, err := reg.RoomOfUser(ctx, "u1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "AAAAA", roomID)

	require.NoError(t, reg.UnbindUser(ctx, "u1"))
	_, ok, err = reg.RoomOfUser(ctx, "u1")
	require.NoError(t, err)
	require.False(t, ok)
}
