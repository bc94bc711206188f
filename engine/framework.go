package engine

import (
	"context"
	"errors"
	"time"

	"gamecore/gameerr"
	"gamecore/gamerand"
	"gamecore/outbox"
	"gamecore/room"

	"go.uber.org/zap"
)

// DefaultLockTTL is the reference short TTL for a room's distributed
// lock: long enough to cover one mutation, short enough that a
// crashed holder self-heals quickly.
const DefaultLockTTL = 5 * time.Second

// DefaultLockWaitTimeout is the reference bound on how long Execute
// waits to acquire the room lock before returning a retryable Busy
// error, per the engine framework's obligation 1.
const DefaultLockWaitTimeout = 2 * time.Second

// lockRetryInterval is how often Execute retries acquiring the lock
// until the Framework's WaitTimeout elapses.
const lockRetryInterval = 20 * time.Millisecond

// EvalResult is what a concrete game's pure evaluation step produces:
// the mutated state and meta, any emitted events, whether the result
// should be broadcast, and game-over details when applicable. This is
// the "(new-state, new-meta, events, broadcast?, game-over-info?)"
// tuple from the engine framework's obligation 3.
type EvalResult[S any] struct {
	NewState        S
	NewMeta         *room.Meta
	Events          []Event
	ShouldBroadcast bool
	GameOver        *GameOverInfo
}

// GameLogic is the concrete game a Framework dispatches into. It must
// be deterministic given (state, command) except for dice rolls and
// mine placement, both of which must go through the supplied
// gamerand.Source.
type GameLogic[S any] interface {
	// GameType returns this plugin's stable tag.
	GameType() string

	// Evaluate is the single mutation entry point: given the current
	// room context and an inbound command, produce a new state or a
	// gameerr (IllegalAction/InvalidArgument). It must not touch
	// storage itself — the Framework owns load/save/lock.
	Evaluate(ctx context.Context, rc *Context[S], cmd Command, rnd gamerand.Source, now time.Time) (EvalResult[S], error)

	// LegalActions is a pure read: the action names available to
	// userID given the current state. Must not mutate.
	LegalActions(rc *Context[S], userID string) ([]string, error)

	// StateDTO projects the concrete state into its wire shape.
	StateDTO(rc *Context[S]) (interface{}, error)

	// Tick evaluates wall-clock driven transitions (e.g. Ludo's
	// turn-timeout auto-skip) with no inbound command. It returns
	// changed=false when nothing needed to happen.
	Tick(ctx context.Context, rc *Context[S], now time.Time) (result EvalResult[S], changed bool, err error)

	// DefaultMeta builds a recovery meta for a room whose state
	// exists but whose meta record is missing.
	DefaultMeta(roomID string) *room.Meta
}

// Engine is the public, game-type-keyed capability every concrete
// game exposes to the rest of the system: a type-keyed lookup table
// of Engine values is how the dispatcher avoids an inheritance
// hierarchy across game types.
type Engine interface {
	GameType() string
	Execute(ctx context.Context, roomID string, cmd Command) (*ActionResult, error)
	GetLegalActions(ctx context.Context, roomID, userID string) ([]string, error)
	GetState(ctx context.Context, roomID string) (*StateResponse, error)
	GetManyStates(ctx context.Context, roomIDs []string) ([]*StateResponse, error)
	Tick(ctx context.Context, roomID string) (*ActionResult, error)
}

// Framework binds a GameLogic plugin to a Repository and implements
// the full Engine contract: lock acquisition, decode, evaluate,
// save, release, and result/broadcast shaping. This is the reusable
// "engine framework" every concrete game plugs into.
type Framework[S any] struct {
	Logic       GameLogic[S]
	Repo        Repository[S]
	Random      gamerand.Source
	Broadcaster Broadcaster
	// Outbox is the only escape hatch by which a game hands a ledger
	// side effect to the outer economy service: every emitted event
	// named "Transaction" is published here after save, never before.
	// Nil disables publishing (tests and embeddings that don't wire a
	// ledger).
	Outbox      outbox.Outbox
	Logger      *zap.Logger
	LockTTL     time.Duration
	WaitTimeout time.Duration
	Now         func() time.Time
}

// NewFramework builds a Framework with the reference timeouts and a
// production random source. Callers in tests typically override
// Random with a gamerand.Fixed and Now with a deterministic clock.
func NewFramework[S any](logic GameLogic[S], repo Repository[S], logger *zap.Logger) *Framework[S] {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Framework[S]{
		Logic:       logic,
		Repo:        repo,
		Random:      gamerand.CryptoSource{},
		Logger:      logger,
		LockTTL:     DefaultLockTTL,
		WaitTimeout: DefaultLockWaitTimeout,
		Now:         time.Now,
	}
}

func (f *Framework[S]) GameType() string { return f.Logic.GameType() }

func (f *Framework[S]) now() time.Time {
	if f.Now != nil {
		return f.Now()
	}
	return time.Now()
}

// acquireLock retries TryAcquireLock until WaitTimeout elapses.
func (f *Framework[S]) acquireLock(ctx context.Context, roomID string) (bool, error) {
	deadline := time.Now().Add(f.WaitTimeout)
	for {
		ok, err := f.Repo.TryAcquireLock(ctx, roomID, f.LockTTL)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
		if time.Now().After(deadline) {
			return false, nil
		}
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(lockRetryInterval):
		}
	}
}

// Execute implements the engine framework's five obligations.
func (f *Framework[S]) Execute(ctx context.Context, roomID string, cmd Command) (*ActionResult, error) {
	acquired, err := f.acquireLock(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if !acquired {
		return Failure(gameerr.New(gameerr.Busy, "room %s is busy", roomID).Error()), nil
	}
	// Best-effort release on every exit path, even if the caller's
	// context is later cancelled: the lock's own short TTL is the
	// backstop if this process dies mid-mutation.
	defer func() {
		relCtx, cancel := context.WithTimeout(context.Background(), f.LockTTL)
		defer cancel()
		if err := f.Repo.ReleaseLock(relCtx, roomID); err != nil {
			f.Logger.Warn("release lock failed", zap.String("roomId", roomID), zap.Error(err))
		}
	}()

	rc, err := f.Repo.Load(ctx, roomID)
	if err != nil {
		var gerr *gameerr.Error
		if errors.As(err, &gerr) && gerr.Kind == gameerr.Corrupt {
			return Failure(err.Error()), nil
		}
		return nil, err
	}
	if rc == nil {
		return Failure(gameerr.New(gameerr.NotFound, "room %s not found", roomID).Error()), nil
	}

	result, err := f.Logic.Evaluate(ctx, rc, cmd, f.Random, f.now())
	if err != nil {
		var gerr *gameerr.Error
		if errors.As(err, &gerr) {
			return Failure(gerr.Error()), nil
		}
		return nil, err
	}

	saveCtx, cancel := context.WithTimeout(context.Background(), f.LockTTL)
	defer cancel()
	if err := f.Repo.Save(saveCtx, roomID, result.NewState, result.NewMeta); err != nil {
		return nil, err
	}

	newRC := &Context[S]{RoomID: roomID, State: result.NewState, Meta: result.NewMeta}
	dto, err := f.Logic.StateDTO(newRC)
	if err != nil {
		return nil, err
	}
	legal, err := f.Logic.LegalActions(newRC, cmd.UserID)
	if err != nil {
		return nil, err
	}

	actionResult := &ActionResult{
		Success:         true,
		ShouldBroadcast: result.ShouldBroadcast,
		Events:          result.Events,
		GameOverInfo:    result.GameOver,
		NewState: &StateResponse{
			RoomID:     roomID,
			GameType:   f.GameType(),
			Meta:       toMetaDTO(result.NewMeta),
			State:      dto,
			LegalMoves: legal,
		},
	}

	if f.Broadcaster != nil && actionResult.ShouldBroadcast {
		if err := f.Broadcaster.BroadcastResult(ctx, roomID, actionResult); err != nil {
			f.Logger.Warn("broadcast failed", zap.String("roomId", roomID), zap.Error(err))
		}
	}

	f.publishTransactions(ctx, roomID, cmd.UserID, result.Events)

	return actionResult, nil
}

// publishTransactions fans out every "Transaction" event in this
// action to the Outbox, per §4.9: this is the only escape hatch by
// which the ledger subsystem learns of a payout, and it fires only
// after the state mutation has already been saved. A publish failure
// is logged, not surfaced to the caller — the player's move already
// succeeded and is not retried over a ledger hiccup.
func (f *Framework[S]) publishTransactions(ctx context.Context, roomID, userID string, events []Event) {
	if f.Outbox == nil {
		return
	}
	for _, ev := range events {
		if ev.Name != "Transaction" {
			continue
		}
		data, ok := ev.Data.(map[string]interface{})
		if !ok {
			continue
		}
		var amount uint64
		switch v := data["amount"].(type) {
		case uint64:
			amount = v
		case int:
			amount = uint64(v)
		case int64:
			amount = uint64(v)
		case float64:
			amount = uint64(v)
		}
		tx := outbox.Transaction{
			RoomID:    roomID,
			UserID:    userID,
			GameType:  f.GameType(),
			Amount:    amount,
			Timestamp: ev.Timestamp,
		}
		pubCtx, cancel := context.WithTimeout(context.Background(), f.LockTTL)
		err := f.Outbox.Publish(pubCtx, tx)
		cancel()
		if err != nil {
			f.Logger.Warn("publish transaction failed", zap.String("roomId", roomID), zap.Error(err))
		}
	}
}

// GetLegalActions is a pure read bypassing the lock by design.
func (f *Framework[S]) GetLegalActions(ctx context.Context, roomID, userID string) ([]string, error) {
	rc, err := f.Repo.Load(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if rc == nil {
		return nil, gameerr.New(gameerr.NotFound, "room %s not found", roomID)
	}
	return f.Logic.LegalActions(rc, userID)
}

// GetState is a pure read bypassing the lock by design.
func (f *Framework[S]) GetState(ctx context.Context, roomID string) (*StateResponse, error) {
	rc, err := f.Repo.Load(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if rc == nil {
		return nil, gameerr.New(gameerr.NotFound, "room %s not found", roomID)
	}
	dto, err := f.Logic.StateDTO(rc)
	if err != nil {
		return nil, err
	}
	legal, err := f.Logic.LegalActions(rc, "")
	if err != nil {
		return nil, err
	}
	return &StateResponse{
		RoomID:     roomID,
		GameType:   f.GameType(),
		Meta:       toMetaDTO(rc.Meta),
		State:      dto,
		LegalMoves: legal,
	}, nil
}

// GetManyStates is a pure read used by the lobby and client refresh.
func (f *Framework[S]) GetManyStates(ctx context.Context, roomIDs []string) ([]*StateResponse, error) {
	rcs, err := f.Repo.LoadMany(ctx, roomIDs)
	if err != nil {
		return nil, err
	}
	out := make([]*StateResponse, 0, len(rcs))
	for _, rc := range rcs {
		dto, err := f.Logic.StateDTO(rc)
		if err != nil {
			f.Logger.Warn("state dto failed", zap.String("roomId", rc.RoomID), zap.Error(err))
			continue
		}
		legal, err := f.Logic.LegalActions(rc, "")
		if err != nil {
			f.Logger.Warn("legal actions failed", zap.String("roomId", rc.RoomID), zap.Error(err))
			legal = nil
		}
		out = append(out, &StateResponse{
			RoomID:     rc.RoomID,
			GameType:   f.GameType(),
			Meta:       toMetaDTO(rc.Meta),
			State:      dto,
			LegalMoves: legal,
		})
	}
	return out, nil
}

// Tick drives wall-clock transitions (e.g. Ludo turn timeouts) from
// an external scheduler, per Open Question 3: the core does not run
// a background loop itself, it exposes this extension point.
func (f *Framework[S]) Tick(ctx context.Context, roomID string) (*ActionResult, error) {
	acquired, err := f.acquireLock(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if !acquired {
		return Failure(gameerr.New(gameerr.Busy, "room %s is busy", roomID).Error()), nil
	}
	defer func() {
		relCtx, cancel := context.WithTimeout(context.Background(), f.LockTTL)
		defer cancel()
		_ = f.Repo.ReleaseLock(relCtx, roomID)
	}()

	rc, err := f.Repo.Load(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if rc == nil {
		return Failure(gameerr.New(gameerr.NotFound, "room %s not found", roomID).Error()), nil
	}

	result, changed, err := f.Logic.Tick(ctx, rc, f.now())
	if err != nil {
		var gerr *gameerr.Error
		if errors.As(err, &gerr) {
			return Failure(gerr.Error()), nil
		}
		return nil, err
	}
	if !changed {
		return &ActionResult{Success: true, Events: []Event{}}, nil
	}

	saveCtx, cancel := context.WithTimeout(context.Background(), f.LockTTL)
	defer cancel()
	if err := f.Repo.Save(saveCtx, roomID, result.NewState, result.NewMeta); err != nil {
		return nil, err
	}

	newRC := &Context[S]{RoomID: roomID, State: result.NewState, Meta: result.NewMeta}
	dto, err := f.Logic.StateDTO(newRC)
	if err != nil {
		return nil, err
	}

	actionResult := &ActionResult{
		Success:         true,
		ShouldBroadcast: result.ShouldBroadcast,
		Events:          result.Events,
		GameOverInfo:    result.GameOver,
		NewState: &StateResponse{
			RoomID:   roomID,
			GameType: f.GameType(),
			Meta:     toMetaDTO(result.NewMeta),
			State:    dto,
		},
	}
	if f.Broadcaster != nil && actionResult.ShouldBroadcast {
		if err := f.Broadcaster.BroadcastResult(ctx, roomID, actionResult); err != nil {
			f.Logger.Warn("broadcast failed", zap.String("roomId", roomID), zap.Error(err))
		}
	}
	return actionResult, nil
}

func toMetaDTO(m *room.Meta) MetaDTO {
	return MetaDTO{
		Seats:      m.Seats,
		IsPublic:   m.IsPublic,
		GameType:   m.GameType,
		MaxPlayers: m.MaxPlayers,
		EntryFee:   m.EntryFee,
		Config:     m.Config,
	}
}
