// Package scheduler provides a reference background sweep that calls
// Engine.Tick for every active room, fulfilling the turn-timeout
// design note's extension point without making a background loop
// mandatory for callers that already drive their own.
package scheduler

import (
	"context"
	"time"

	"gamecore/engine"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// RoomLister is the slice of the room registry a sweep needs: page a
// game type's active room ids, newest first. registry.Registry
// implements it.
type RoomLister interface {
	ListRecent(ctx context.Context, gameType string, offset, count int64) ([]string, error)
}

// Ticker periodically sweeps one game type's active rooms from the
// registry and calls Engine.Tick on each.
type Ticker struct {
	Engine   engine.Engine
	Registry RoomLister
	GameType string
	PageSize int64
	Logger   *zap.Logger
	cron     *cron.Cron
}

// NewTicker builds a Ticker for one game type's engine.
func NewTicker(eng engine.Engine, reg RoomLister, gameType string, logger *zap.Logger) *Ticker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ticker{
		Engine:   eng,
		Registry: reg,
		GameType: gameType,
		PageSize: 200,
		Logger:   logger,
		cron:     cron.New(),
	}
}

// Start schedules the sweep on the given cron spec (e.g. "@every 5s")
// and begins running it in the background.
func (t *Ticker) Start(spec string) error {
	_, err := t.cron.AddFunc(spec, t.sweepOnce)
	if err != nil {
		return err
	}
	t.cron.Start()
	return nil
}

// Stop halts the scheduler, waiting for any in-flight sweep to finish.
func (t *Ticker) Stop() {
	ctx := t.cron.Stop()
	<-ctx.Done()
}

func (t *Ticker) sweepOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var offset int64
	for {
		roomIDs, err := t.Registry.ListRecent(ctx, t.GameType, offset, t.PageSize)
		if err != nil {
			t.Logger.Warn("sweep: list rooms failed", zap.Error(err))
			return
		}
		if len(roomIDs) == 0 {
			return
		}
		for _, roomID := range roomIDs {
			if _, err := t.Engine.Tick(ctx, roomID); err != nil {
				t.Logger.Warn("sweep: tick failed", zap.String("roomId", roomID), zap.Error(err))
			}
		}
		offset += int64(len(roomIDs))
	}
}
