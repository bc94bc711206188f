package broadcast

import (
	"context"
	"testing"
	"time"

	"gamecore/engine"

	"github.com/stretchr/testify/require"
)

func TestBroadcastResultOrdering(t *testing.T) {
	b := NewChannelBroadcaster(4)
	sub := b.Subscribe("ROOM1")
	defer b.Unsubscribe("ROOM1", sub)

	result := &engine.ActionResult{
		ShouldBroadcast: true,
		NewState:        &engine.StateResponse{RoomID: "ROOM1"},
		Events: []engine.Event{
			engine.NewEvent("DiceRolled", nil, time.Now()),
			engine.NewEvent("TokenMoved", nil, time.Now()),
		},
	}

	require.NoError(t, b.BroadcastResult(context.Background(), "ROOM1", result))

	msg := <-sub
	require.Equal(t, KindState, msg.Kind)
	msg = <-sub
	require.Equal(t, KindEvent, msg.Kind)
	require.Equal(t, "DiceRolled", msg.Event.Name)
	msg = <-sub
	require.Equal(t, "TokenMoved", msg.Event.Name)
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	b := NewChannelBroadcaster(4)
	sub := b.Subscribe("ROOM1")
	b.Unsubscribe("ROOM1", sub)

	require.NoError(t, b.BroadcastEvent(context.Background(), "ROOM1", engine.NewEvent("X", nil, time.Now())))

	_, ok := <-sub
	require.False(t, ok, "channel should be closed after unsubscribe")
}
