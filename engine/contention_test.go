package engine_test

import (
	"context"
	"testing"
	"time"

	"gamecore/engine"
	"gamecore/gamerand"
	"gamecore/room"
	"gamecore/roomstore"

	"github.com/stretchr/testify/require"
)

// gateLogic is a minimal GameLogic[int] whose Evaluate blocks on a
// channel, letting the test hold a room's lock open at a precise
// moment.
type gateLogic struct {
	started chan struct{}
	release chan struct{}
}

func (g *gateLogic) GameType() string { return "gate" }

func (g *gateLogic) Evaluate(ctx context.Context, rc *engine.Context[int], cmd engine.Command, rnd gamerand.Source, now time.Time) (engine.EvalResult[int], error) {
	if g.started != nil {
		close(g.started)
		g.started = nil
	}
	if g.release != nil {
		<-g.release
	}
	return engine.EvalResult[int]{NewState: rc.State + 1, NewMeta: rc.Meta, ShouldBroadcast: true, Events: []engine.Event{}}, nil
}

func (g *gateLogic) LegalActions(rc *engine.Context[int], userID string) ([]string, error) {
	return []string{}, nil
}

func (g *gateLogic) StateDTO(rc *engine.Context[int]) (interface{}, error) {
	return rc.State, nil
}

func (g *gateLogic) Tick(ctx context.Context, rc *engine.Context[int], now time.Time) (engine.EvalResult[int], bool, error) {
	return engine.EvalResult[int]{}, false, nil
}

func (g *gateLogic) DefaultMeta(roomID string) *room.Meta {
	return room.NewMeta("gate", 1, true, 0)
}

// TestConcurrentExecuteSerializedByLock drives two overlapping Execute
// calls at the same room: exactly one proceeds, the other observes
// Busy, and the winner's effect is fully visible once it returns.
func TestConcurrentExecuteSerializedByLock(t *testing.T) {
	repo := roomstore.NewFakeRepository[int](nil)
	meta := room.NewMeta("gate", 1, true, 0)
	_, err := meta.AssignSeat("p0")
	require.NoError(t, err)
	require.NoError(t, repo.Save(context.Background(), "ROOM1", 0, meta))

	gate := &gateLogic{started: make(chan struct{}), release: make(chan struct{})}
	winner := engine.NewFramework[int](gate, repo, nil)

	type outcome struct {
		result *engine.ActionResult
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		result, err := winner.Execute(context.Background(), "ROOM1", engine.Command{UserID: "p0", Action: "go"})
		done <- outcome{result, err}
	}()

	<-gate.started // winner holds the lock inside Evaluate

	loser := engine.NewFramework[int](&gateLogic{}, repo, nil)
	loser.WaitTimeout = 30 * time.Millisecond
	busyResult, err := loser.Execute(context.Background(), "ROOM1", engine.Command{UserID: "p0", Action: "go"})
	require.NoError(t, err)
	require.False(t, busyResult.Success)
	require.Contains(t, busyResult.Error, "Busy")

	close(gate.release)
	won := <-done
	require.NoError(t, won.err)
	require.True(t, won.result.Success)

	rc, err := repo.Load(context.Background(), "ROOM1")
	require.NoError(t, err)
	require.Equal(t, 1, rc.State, "the winner's mutation is fully observable after it returns")

	// The lock is free again: a retry of the losing call now succeeds.
	retryResult, err := loser.Execute(context.Background(), "ROOM1", engine.Command{UserID: "p0", Action: "go"})
	require.NoError(t, err)
	require.True(t, retryResult.Success)
}
