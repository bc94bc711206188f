package ludo

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

// DefaultTurnTimeoutSeconds is the reference wall-clock turn timeout:
// NewState seeds TurnTimeoutSeconds with it, and Tick falls back to it
// when a record's TurnTimeoutSeconds is zero.
const DefaultTurnTimeoutSeconds = 30

// Logic implements engine.GameLogic[State]. It holds no per-room
// state itself — every decision is a pure function of the loaded
// Context and the inbound command.
type Logic struct{}

var _ engine.GameLogic[State] = Logic{}

func (Logic) GameType() string { return "ludo" }

func (Logic) DefaultMeta(roomID string) *room.Meta {
	return room.NewMeta("ludo", MaxSeats, true, 0)
}

type movePayload struct {
	TokenIndex int `json:"tokenIndex"`
}

// Evaluate dispatches Roll / Move / Skip. Action names are matched
// case-insensitively per the external command envelope contract.
func (l Logic) Evaluate(ctx context.Context, rc *engine.Context[State], cmd engine.Command, rnd gamerand.Source, now time.Time) (engine.EvalResult[State], error) {
	st := rc.State
	meta := rc.Meta

	seat, ok := meta.SeatOf(cmd.UserID)
	if !ok {
		return engine.EvalResult[State]{}, gameerr.New(gameerr.IllegalAction, "user %s is not seated in this room", cmd.UserID)
	}
	if st.GameOver {
		return engine.EvalResult[State]{}, gameerr.New(gameerr.IllegalAction, "game has already ended")
	}
	if uint8(seat) != st.CurrentSeat {
		return engine.EvalResult[State]{}, gameerr.New(gameerr.IllegalAction, "not seat %d's turn", seat)
	}

	switch strings.ToLower(cmd.Action) {
	case "roll":
		return l.evalRoll(st, meta, rc.RoomID, rnd, now)
	case "move":
		var p movePayload
		if len(cmd.Payload) > 0 {
			if err := json.Unmarshal(cmd.Payload, &p); err != nil {
				return engine.EvalResult[State]{}, gameerr.Wrap(gameerr.InvalidArgument, err, "parse move payload")
			}
		}
		return l.evalMove(st, meta, rc.RoomID, p.TokenIndex, now)
	case "skip":
		return l.evalSkip(st, meta, rc.RoomID, now)
	default:
		return engine.EvalResult[State]{}, gameerr.New(gameerr.IllegalAction, "unknown action %q", cmd.Action)
	}
}

// passTurn hands control to the next seat that hasn't finished yet,
// opening a fresh turn-id. Finished seats stay in the rotation order
// but are skipped.
func passTurn(st *State, now time.Time) uint8 {
	next := st.CurrentSeat
	for i := uint8(1); i <= st.SeatCount; i++ {
		cand := (st.CurrentSeat + i) % st.SeatCount
		if !st.seatFinished(cand) {
			next = cand
			break
		}
	}
	st.CurrentSeat = next
	st.PendingRoll = 0
	st.SixStreak = 0
	st.LegalMoves = 0
	st.TurnID++
	st.TurnStartedAt = now.Unix()
	return next
}

// evalRoll rolls the die for the current seat. A fresh Roll discards
// any unresolved PendingRoll from an earlier Roll in the same turn —
// a seat may choose to re-roll rather than act on a pending value,
// which is what lets three consecutive sixes void a turn without an
// intervening Move.
func (l Logic) evalRoll(st State, meta *room.Meta, roomID string, rnd gamerand.Source, now time.Time) (engine.EvalResult[State], error) {
	roll := uint8(rollDieFrom(rnd))
	events := []engine.Event{engine.NewEvent("DiceRolled", map[string]interface{}{"seat": st.CurrentSeat, "value": roll}, now)}

	if roll == 6 {
		st.SixStreak++
	} else {
		st.SixStreak = 0
	}

	if st.SixStreak >= 3 {
		next := passTurn(&st, now)
		events = append(events, engine.NewEvent("TurnChanged", map[string]interface{}{"seat": next}, now))
		return engine.EvalResult[State]{NewState: st, NewMeta: meta, Events: events, ShouldBroadcast: true}, nil
	}

	st.PendingRoll = roll
	st.LegalMoves = legalMask(&st, st.CurrentSeat, roll)

	if st.LegalMoves == 0 {
		next := passTurn(&st, now)
		events = append(events, engine.NewEvent("TurnChanged", map[string]interface{}{"seat": next}, now))
	}

	return engine.EvalResult[State]{NewState: st, NewMeta: meta, Events: events, ShouldBroadcast: true}, nil
}

func (l Logic) evalSkip(st State, meta *room.Meta, roomID string, now time.Time) (engine.EvalResult[State], error) {
	next := passTurn(&st, now)
	events := []engine.Event{engine.NewEvent("TurnChanged", map[string]interface{}{"seat": next}, now)}
	return engine.EvalResult[State]{NewState: st, NewMeta: meta, Events: events, ShouldBroadcast: true}, nil
}

func (l Logic) evalMove(st State, meta *room.Meta, roomID string, tokenIndex int, now time.Time) (engine.EvalResult[State], error) {
	if st.PendingRoll == 0 {
		return engine.EvalResult[State]{}, gameerr.New(gameerr.IllegalAction, "no pending roll to move with")
	}
	if tokenIndex < 0 || tokenIndex >= TokensPerSeat {
		return engine.EvalResult[State]{}, gameerr.New(gameerr.InvalidArgument, "token index %d out of range", tokenIndex)
	}

	seat := st.CurrentSeat
	roll := st.PendingRoll
	newPos, blocked, legal := evalTokenMove(&st, seat, uint8(tokenIndex), roll)
	if !legal {
		if blocked {
			return engine.EvalResult[State]{}, gameerr.New(gameerr.IllegalAction, "move is blocked")
		}
		return engine.EvalResult[State]{}, gameerr.New(gameerr.IllegalAction, "token %d cannot move %d", tokenIndex, roll)
	}

	oldPos := st.Positions[seat][tokenIndex]
	st.Positions[seat][tokenIndex] = newPos

	events := []engine.Event{engine.NewEvent("TokenMoved", map[string]interface{}{
		"seat": seat, "token": tokenIndex, "from": oldPos, "to": newPos,
	}, now)}

	captured := false
	if newPos >= TrackStart && newPos <= TrackEnd && !isSafeSquare(newPos) {
		capturedSeat, capturedToken, count := occupant(&st, seat, newPos)
		if count == 1 {
			st.Positions[capturedSeat][capturedToken] = PosBase
			captured = true
			events = append(events, engine.NewEvent("TokenCaptured", map[string]interface{}{
				"seat": seat, "token": tokenIndex, "capturedPlayerSeat": capturedSeat,
			}, now))
		}
	}

	finished := newPos == PosFinished
	if finished {
		events = append(events, engine.NewEvent("TokenFinished", map[string]interface{}{"seat": seat, "token": tokenIndex}, now))
	}

	var gameOverInfo *engine.GameOverInfo
	if allFinished(&st, seat) && !seatAlreadyRanked(&st, seat) {
		st.FinishedSeats |= 1 << seat
		st.Winners[st.WinnerCount] = seat + 1
		st.WinnerCount++
		if st.WinnerCount >= st.SeatCount-1 {
			st.GameOver = true
			ranking := make([]string, 0, st.WinnerCount)
			for i := uint8(0); i < st.WinnerCount; i++ {
				winnerSeat := st.Winners[i] - 1
				for user, s := range meta.Seats {
					if uint8(s) == winnerSeat {
						ranking = append(ranking, user)
					}
				}
			}
			events = append(events, engine.NewEvent("GameEnded", map[string]interface{}{"ranking": ranking}, now))
			gameOverInfo = &engine.GameOverInfo{
				RoomID:        roomID,
				GameType:      "ludo",
				Seats:         int(st.SeatCount),
				EntryFee:      meta.EntryFee,
				TurnStartedAt: time.Unix(st.TurnStartedAt, 0),
				Winners:       ranking,
			}
		}
	}

	// A six and a capture each grant another roll in the same turn-id;
	// a seat that just finished all four tokens has nothing left to
	// roll for.
	extraRoll := (roll == 6 || captured) && !st.seatFinished(seat)
	st.PendingRoll = 0
	st.LegalMoves = 0
	// SixStreak carries over into the extra roll, so a third six in a
	// row within one turn voids it; passTurn resets the streak.
	if !extraRoll && !st.GameOver {
		next := passTurn(&st, now)
		events = append(events, engine.NewEvent("TurnChanged", map[string]interface{}{"seat": next}, now))
	}

	return engine.EvalResult[State]{
		NewState: st, NewMeta: meta, Events: events, ShouldBroadcast: true, GameOver: gameOverInfo,
	}, nil
}

func seatAlreadyRanked(st *State, seat uint8) bool {
	for i := uint8(0); i < st.WinnerCount; i++ {
		if st.Winners[i] == seat+1 {
			return true
		}
	}
	return false
}

func allFinished(st *State, seat uint8) bool {
	for t := 0; t < TokensPerSeat; t++ {
		if st.Positions[seat][t] != PosFinished {
			return false
		}
	}
	return true
}

// occupant counts tokens of seats other than `seat` sitting on abs,
// returning the seat/token of one such occupant (meaningful only when
// count == 1, the capture case) and the total opposing count.
func occupant(st *State, seat, abs uint8) (occSeat, occToken uint8, count int) {
	for s := uint8(0); s < st.SeatCount; s++ {
		if s == seat {
			continue
		}
		for t := uint8(0); t < TokensPerSeat; t++ {
			if st.Positions[s][t] == abs {
				occSeat, occToken = s, t
				count++
			}
		}
	}
	return
}

// blockedAt reports whether two or more tokens of a seat other than
// `seat` occupy abs — a block, impassable by non-owners.
func blockedAt(st *State, seat, abs uint8) bool {
	for s := uint8(0); s < st.SeatCount; s++ {
		if s == seat {
			continue
		}
		count := 0
		for t := uint8(0); t < TokensPerSeat; t++ {
			if st.Positions[s][t] == abs {
				count++
			}
		}
		if count >= 2 {
			return true
		}
	}
	return false
}

// evalTokenMove computes the destination of one token for a given
// roll, per the move-legality and capture/block rules. legal is false
// if the move may not be made; blocked distinguishes a block-path
// rejection from a plain one (overshoot, a base token without a six,
// or an already finished token).
func evalTokenMove(st *State, seat, token, roll uint8) (newPos uint8, blocked bool, legal bool) {
	pos := st.Positions[seat][token]

	if pos == PosBase {
		if roll != 6 {
			return 0, false, false
		}
		entry := entrySquare(seat)
		if blockedAt(st, seat, entry) {
			return 0, true, false
		}
		return entry, false, true
	}

	if pos == PosFinished {
		return 0, false, false
	}

	// rel runs the seat's whole course: 1..52 around the shared track,
	// 53..58 up the private home column, 59 finished. Home cells are
	// stored under the same 53..58 values for every seat.
	var rel uint8
	if pos >= HomeStart && pos <= HomeEnd {
		rel = pos
	} else {
		rel = relOf(seat, pos)
	}

	newRel := rel + roll
	switch {
	case newRel > 59:
		return 0, false, false
	case newRel == 59:
		return PosFinished, false, true
	case newRel >= 53:
		return newRel, false, true
	default:
		dest := absOf(seat, newRel)
		// Walk every intervening shared square for a block; a block
		// on the path (not just the destination) stops the move.
		for r := rel + 1; r < newRel; r++ {
			mid := absOf(seat, r)
			if blockedAt(st, seat, mid) {
				return 0, true, false
			}
		}
		if blockedAt(st, seat, dest) {
			return 0, true, false
		}
		return dest, false, true
	}
}

// legalMask returns the bitmask of the seat's tokens that may legally
// move for the given roll — token t occupies bit t. A zero mask means
// the turn auto-passes (the "overshoot for all four tokens" rule).
func legalMask(st *State, seat, roll uint8) uint8 {
	var mask uint8
	for t := uint8(0); t < TokensPerSeat; t++ {
		if _, _, legal := evalTokenMove(st, seat, t, roll); legal {
			mask |= 1 << t
		}
	}
	return mask
}

func rollDieFrom(rnd gamerand.Source) int { return rnd.Intn(6) + 1 }

func (l Logic) LegalActions(rc *engine.Context[State], userID string) ([]string, error) {
	st := rc.State
	seat, ok := rc.Meta.SeatOf(userID)
	if !ok || st.GameOver || uint8(seat) != st.CurrentSeat {
		return []string{}, nil
	}
	if st.PendingRoll == 0 {
		return []string{"Roll"}, nil
	}
	actions := make([]string, 0, TokensPerSeat)
	for t := uint8(0); t < TokensPerSeat; t++ {
		if st.LegalMoves&(1<<t) != 0 {
			actions = append(actions, "Move:"+strconv.Itoa(int(t)))
		}
	}
	if len(actions) == 0 {
		actions = append(actions, "Skip")
	}
	return actions, nil
}

// StateDTO is the wire-facing projection of a Ludo board.
type StateDTO struct {
	Positions     [MaxSeats][TokensPerSeat]uint8 `json:"positions"`
	SeatCount     int                            `json:"seatCount"`
	CurrentSeat   int                            `json:"currentSeat"`
	PendingRoll   int                            `json:"pendingRoll"`
	TurnID        uint32                         `json:"turnId"`
	TurnStartedAt int64                          `json:"turnStartedAt"`
	LegalMoves    uint8                          `json:"legalMoves"`
	FinishedSeats uint8                          `json:"finishedSeats"`
	Winners       []int                          `json:"winners"`
	GameOver      bool                           `json:"gameOver"`
}

func (l Logic) StateDTO(rc *engine.Context[State]) (interface{}, error) {
	st := rc.State
	winners := make([]int, st.WinnerCount)
	for i := uint8(0); i < st.WinnerCount; i++ {
		winners[i] = int(st.Winners[i]) - 1
	}
	return StateDTO{
		Positions:     st.Positions,
		SeatCount:     int(st.SeatCount),
		CurrentSeat:   int(st.CurrentSeat),
		PendingRoll:   int(st.PendingRoll),
		TurnID:        st.TurnID,
		TurnStartedAt: st.TurnStartedAt,
		LegalMoves:    st.LegalMoves,
		FinishedSeats: st.FinishedSeats,
		Winners:       winners,
		GameOver:      st.GameOver,
	}, nil
}

// Tick auto-skips a seat whose turn has run past the timeout with no
// action taken. The timeout is server-wide, baked into the state at
// room creation; the package default covers records that predate the
// field.
func (l Logic) Tick(ctx context.Context, rc *engine.Context[State], now time.Time) (engine.EvalResult[State], bool, error) {
	st := rc.State
	if st.GameOver {
		return engine.EvalResult[State]{}, false, nil
	}
	timeout := int(st.TurnTimeoutSeconds)
	if timeout == 0 {
		timeout = DefaultTurnTimeoutSeconds
	}
	if now.Unix()-st.TurnStartedAt < int64(timeout) {
		return engine.EvalResult[State]{}, false, nil
	}
	result, err := l.evalSkip(st, rc.Meta, rc.RoomID, now)
	return result, true, err
}
