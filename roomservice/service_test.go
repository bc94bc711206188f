package roomservice

import (
	"context"
	"testing"
	"time"

	"gamecore/ludo"
	"gamecore/room"
	"gamecore/roomstore"

	"github.com/stretchr/testify/require"
)

func newLudoService() *Service[ludo.State] {
	repo := roomstore.NewFakeRepository[ludo.State](func(roomID string) *room.Meta {
		return room.NewMeta("ludo", ludo.MaxSeats, true, 0)
	})
	return NewService[ludo.State]("ludo", repo, nil, func(meta *room.Meta) ludo.State {
		return ludo.NewState(meta.MaxPlayers, time.Now().Unix())
	})
}

func TestCreateAndJoinRoom(t *testing.T) {
	svc := newLudoService()
	ctx := context.Background()

	roomID, err := svc.CreateRoom(ctx, CreateOptions{UserID: "p0", MaxPlayers: 4, IsPublic: true})
	require.NoError(t, err)
	require.NotEmpty(t, roomID)

	seat, err := svc.JoinRoom(ctx, roomID, "p1")
	require.NoError(t, err)
	require.Equal(t, 1, seat)

	rc, err := svc.Repo.Load(ctx, roomID)
	require.NoError(t, err)
	require.Len(t, rc.Meta.Seats, 2)
}

func TestJoinFullRoomFails(t *testing.T) {
	svc := newLudoService()
	ctx := context.Background()
	roomID, err := svc.CreateRoom(ctx, CreateOptions{UserID: "p0", MaxPlayers: 2, IsPublic: true})
	require.NoError(t, err)

	_, err = svc.JoinRoom(ctx, roomID, "p1")
	require.NoError(t, err)

	_, err = svc.JoinRoom(ctx, roomID, "p2")
	require.Error(t, err)
}

func TestLeaveRoom(t *testing.T) {
	svc := newLudoService()
	ctx := context.Background()
	roomID, err := svc.CreateRoom(ctx, CreateOptions{UserID: "p0", MaxPlayers: 4, IsPublic: true})
	require.NoError(t, err)

	require.NoError(t, svc.LeaveRoom(ctx, roomID, "p0"))

	rc, err := svc.Repo.Load(ctx, roomID)
	require.NoError(t, err)
	require.Len(t, rc.Meta.Seats, 0)
}
