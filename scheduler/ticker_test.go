package scheduler

import (
	"context"
	"sync"
	"testing"

	"gamecore/engine"

	"github.com/stretchr/testify/require"
)

type fakeLister struct {
	rooms []string
}

func (f *fakeLister) ListRecent(ctx context.Context, gameType string, offset, count int64) ([]string, error) {
	if offset >= int64(len(f.rooms)) {
		return nil, nil
	}
	end := offset + count
	if end > int64(len(f.rooms)) {
		end = int64(len(f.rooms))
	}
	return f.rooms[offset:end], nil
}

type tickCounter struct {
	mu     sync.Mutex
	ticked []string
}

func (t *tickCounter) GameType() string { return "ludo" }

func (t *tickCounter) Execute(ctx context.Context, roomID string, cmd engine.Command) (*engine.ActionResult, error) {
	return nil, nil
}

func (t *tickCounter) GetLegalActions(ctx context.Context, roomID, userID string) ([]string, error) {
	return nil, nil
}

func (t *tickCounter) GetState(ctx context.Context, roomID string) (*engine.StateResponse, error) {
	return nil, nil
}

func (t *tickCounter) GetManyStates(ctx context.Context, roomIDs []string) ([]*engine.StateResponse, error) {
	return nil, nil
}

func (t *tickCounter) Tick(ctx context.Context, roomID string) (*engine.ActionResult, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ticked = append(t.ticked, roomID)
	return &engine.ActionResult{Success: true}, nil
}

func TestSweepTicksEveryRoomAcrossPages(t *testing.T) {
	rooms := []string{"A", "B", "C", "D", "E"}
	counter := &tickCounter{}
	ticker := NewTicker(counter, &fakeLister{rooms: rooms}, "ludo", nil)
	ticker.PageSize = 2

	ticker.sweepOnce()

	require.Equal(t, rooms, counter.ticked, "every page of active rooms gets a tick, in recency order")
}
