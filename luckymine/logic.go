package luckymine

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"gamecore/engine"
	"gamecore/gameerr"
	"gamecore/gamerand"
	"gamecore/room"
)

// DefaultTotalTiles and DefaultTotalMines seed a room whose config
// does not specify TotalTiles/TotalMines.
const (
	DefaultTotalTiles = 25
	DefaultTotalMines = 5
)

// Logic implements engine.GameLogic[State] for the canonical
// single-seat variant.
type Logic struct{}

var _ engine.GameLogic[State] = Logic{}

func (Logic) GameType() string { return "luckymine" }

func (Logic) DefaultMeta(roomID string) *room.Meta {
	return room.NewMeta("luckymine", 1, true, 0)
}

// NewRoomState builds an initial board from a room's config, clamping
// TotalTiles/TotalMines per the setup contract and placing mines with
// the supplied random source.
func NewRoomState(rnd gamerand.Source, cfg map[string]string, entryFee uint64) State {
	tiles := DefaultTotalTiles
	mines := DefaultTotalMines
	if v, ok := cfg["TotalTiles"]; ok {
		if n, err := strconv.Atoi(v); err == nil {
			tiles = n
		}
	}
	if v, ok := cfg["TotalMines"]; ok {
		if n, err := strconv.Atoi(v); err == nil {
			mines = n
		}
	}
	if tiles < TotalTilesMin {
		tiles = TotalTilesMin
	}
	if tiles > TotalTilesMax {
		tiles = TotalTilesMax
	}
	if mines < 1 {
		mines = 1
	}
	if mines > tiles-1 {
		mines = tiles - 1
	}
	st := NewState(tiles, mines, entryFee)
	st.MineMask = PlaceMines(rnd, tiles, mines)
	return st
}

type clickPayload struct {
	TileIndex int `json:"tileIndex"`
}

func (l Logic) Evaluate(ctx context.Context, rc *engine.Context[State], cmd engine.Command, rnd gamerand.Source, now time.Time) (engine.EvalResult[State], error) {
	if _, ok := rc.Meta.SeatOf(cmd.UserID); !ok {
		return engine.EvalResult[State]{}, gameerr.New(gameerr.IllegalAction, "user %s is not seated in this room", cmd.UserID)
	}
	st := rc.State

	switch strings.ToLower(cmd.Action) {
	case "click", "reveal":
		var p clickPayload
		if len(cmd.Payload) > 0 {
			if err := json.Unmarshal(cmd.Payload, &p); err != nil {
				return engine.EvalResult[State]{}, gameerr.Wrap(gameerr.InvalidArgument, err, "parse click payload")
			}
		}
		return l.evalClick(st, rc.Meta, rc.RoomID, p.TileIndex, now)
	case "cashout", "cash_out":
		return l.evalCashout(st, rc.Meta, rc.RoomID, now)
	default:
		return engine.EvalResult[State]{}, gameerr.New(gameerr.IllegalAction, "unknown action %q", cmd.Action)
	}
}

func (l Logic) evalClick(st State, meta *room.Meta, roomID string, tile int, now time.Time) (engine.EvalResult[State], error) {
	if st.Status != StatusActive {
		return engine.EvalResult[State]{}, gameerr.New(gameerr.IllegalAction, "board is not active")
	}
	if tile < 0 || tile >= int(st.TotalTiles) {
		return engine.EvalResult[State]{}, gameerr.New(gameerr.InvalidArgument, "tile index %d out of range", tile)
	}
	if st.testBit(st.Revealed, tile) {
		return engine.EvalResult[State]{}, gameerr.New(gameerr.IllegalAction, "tile %d already revealed", tile)
	}

	st.setBit(&st.Revealed, tile)

	if st.testBit(st.MineMask, tile) {
		st.Status = StatusHitMine
		st.CurrentWinnings = 0
		events := []engine.Event{
			engine.NewEvent("HitMine", map[string]interface{}{"tile": tile}, now),
			engine.NewEvent("GameOver", map[string]interface{}{"result": "Lost", "final": 0}, now),
		}
		gameOver := &engine.GameOverInfo{RoomID: roomID, GameType: "luckymine", Seats: 1, EntryFee: meta.EntryFee}
		return engine.EvalResult[State]{NewState: st, NewMeta: meta, Events: events, ShouldBroadcast: true, GameOver: gameOver}, nil
	}

	st.RevealedSafe++
	st.JackpotCounter++
	safe := int(st.TotalTiles) - int(st.TotalMines)
	current := payout(st.EntryCost, int(st.TotalTiles), int(st.TotalMines), int(st.RevealedSafe), st.slope())
	next := uint64(0)
	if int(st.RevealedSafe)+1 <= safe {
		next = payout(st.EntryCost, int(st.TotalTiles), int(st.TotalMines), int(st.RevealedSafe)+1, st.slope())
	}
	st.CurrentWinnings = current

	events := []engine.Event{engine.NewEvent("TileSafe", map[string]interface{}{
		"tile": tile, "count": st.RevealedSafe, "current": current, "next": next,
	}, now)}

	return engine.EvalResult[State]{NewState: st, NewMeta: meta, Events: events, ShouldBroadcast: true}, nil
}

func (l Logic) evalCashout(st State, meta *room.Meta, roomID string, now time.Time) (engine.EvalResult[State], error) {
	if st.Status != StatusActive {
		return engine.EvalResult[State]{}, gameerr.New(gameerr.IllegalAction, "board is not active")
	}
	if st.RevealedSafe == 0 {
		return engine.EvalResult[State]{}, gameerr.New(gameerr.IllegalAction, "no safe reveal to cash out")
	}
	st.Status = StatusCashedOut
	winnings := st.CurrentWinnings

	events := []engine.Event{
		engine.NewEvent("CashedOut", map[string]interface{}{"winnings": winnings}, now),
		engine.NewEvent("GameOver", map[string]interface{}{"result": "Won", "final": winnings}, now),
		engine.NewEvent("Transaction", map[string]interface{}{"amount": winnings}, now),
	}
	gameOver := &engine.GameOverInfo{RoomID: roomID, GameType: "luckymine", Seats: 1, EntryFee: meta.EntryFee}
	return engine.EvalResult[State]{NewState: st, NewMeta: meta, Events: events, ShouldBroadcast: true, GameOver: gameOver}, nil
}

func (l Logic) LegalActions(rc *engine.Context[State], userID string) ([]string, error) {
	if rc.State.Status != StatusActive {
		return []string{}, nil
	}
	actions := []string{"Click"}
	if rc.State.RevealedSafe > 0 {
		actions = append(actions, "Cashout")
	}
	return actions, nil
}

// StateDTO is the wire-facing projection of a LuckyMine board. The
// mine mask is never exposed to clients; only revealed/safe tiles are.
type StateDTO struct {
	TotalTiles      int    `json:"totalTiles"`
	TotalMines      int    `json:"totalMines"`
	Status          string `json:"status"`
	RevealedSafe    int    `json:"revealedSafe"`
	CurrentWinnings uint64 `json:"currentWinnings"`
	NextTileWinnings uint64 `json:"nextTileWinnings"`
	Revealed        []int  `json:"revealed"`
}

func statusName(s uint8) string {
	switch s {
	case StatusActive:
		return "Active"
	case StatusHitMine:
		return "HitMine"
	case StatusCashedOut:
		return "CashedOut"
	default:
		return "Unknown"
	}
}

func (l Logic) StateDTO(rc *engine.Context[State]) (interface{}, error) {
	st := rc.State
	revealed := make([]int, 0, st.TotalTiles)
	for i := 0; i < int(st.TotalTiles); i++ {
		if st.testBit(st.Revealed, i) {
			revealed = append(revealed, i)
		}
	}
	safe := int(st.TotalTiles) - int(st.TotalMines)
	next := uint64(0)
	if int(st.RevealedSafe)+1 <= safe {
		next = payout(st.EntryCost, int(st.TotalTiles), int(st.TotalMines), int(st.RevealedSafe)+1, st.slope())
	}
	return StateDTO{
		TotalTiles:       int(st.TotalTiles),
		TotalMines:       int(st.TotalMines),
		Status:           statusName(st.Status),
		RevealedSafe:     int(st.RevealedSafe),
		CurrentWinnings:  st.CurrentWinnings,
		NextTileWinnings: next,
		Revealed:         revealed,
	}, nil
}

// Tick is a no-op: LuckyMine has no wall-clock turn timer.
func (l Logic) Tick(ctx context.Context, rc *engine.Context[State], now time.Time) (engine.EvalResult[State], bool, error) {
	return engine.EvalResult[State]{}, false, nil
}
