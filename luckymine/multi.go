package luckymine

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"gamecore/engine"
	"gamecore/gameerr"
	"gamecore/gamerand"
	"gamecore/room"
)

// MaxMultiSeats bounds the experimental multi-seat eliminate variant
// named in the core's Open Question 1. Single-seat remains canonical;
// this variant shares the single-seat wire layout's mine/reveal board
// plus per-seat dead bits.
const MaxMultiSeats = 4

// MultiState is the multi-seat eliminate variant: seats take turns
// clicking a shared board. A seat that reveals a mine is marked dead
// and loses its own running winnings; the others keep playing. A seat
// may cash out independently at any time it holds the turn, which
// removes it from the rotation without affecting anyone else's board.
// The game ends once every seat is either dead or cashed out.
type MultiState struct {
	SeatCount     uint8
	CurrentSeat   uint8
	DeadMask      uint8 // bit s set => seat s hit a mine
	CashedOutMask uint8 // bit s set => seat s cashed out
	TotalTiles    uint8
	TotalMines    uint8
	EntryCost     uint64
	MineMask      [16]byte
	Revealed      [16]byte
	SeatRevealed  [MaxMultiSeats]uint8
	SeatWinnings  [MaxMultiSeats]uint64
}

// NewMultiState builds a fresh shared board for seatCount seats, seat
// 0 to act first.
func NewMultiState(seatCount, totalTiles, totalMines int, entryCost uint64) MultiState {
	if seatCount < 2 {
		seatCount = 2
	}
	if seatCount > MaxMultiSeats {
		seatCount = MaxMultiSeats
	}
	return MultiState{
		SeatCount:  uint8(seatCount),
		TotalTiles: uint8(totalTiles),
		TotalMines: uint8(totalMines),
		EntryCost:  entryCost,
	}
}

func (s *MultiState) isRevealed(tile int) bool {
	return s.Revealed[tile/8]&(1<<uint(tile%8)) != 0
}
func (s *MultiState) setRevealed(tile int) {
	s.Revealed[tile/8] |= 1 << uint(tile%8)
}
func (s *MultiState) isMine(tile int) bool {
	return s.MineMask[tile/8]&(1<<uint(tile%8)) != 0
}

func (s *MultiState) isDead(seat uint8) bool      { return s.DeadMask&(1<<seat) != 0 }
func (s *MultiState) isCashedOut(seat uint8) bool { return s.CashedOutMask&(1<<seat) != 0 }
func (s *MultiState) isOut(seat uint8) bool       { return s.isDead(seat) || s.isCashedOut(seat) }

// anyActive reports whether at least one seat may still act.
func (s *MultiState) anyActive() bool {
	for seat := uint8(0); seat < s.SeatCount; seat++ {
		if !s.isOut(seat) {
			return true
		}
	}
	return false
}

// nextActiveSeat advances past dead/cashed-out seats, wrapping around.
// Returns ok=false if no seat is left active.
func nextActiveSeat(s *MultiState, from uint8) (uint8, bool) {
	if s.SeatCount == 0 {
		return 0, false
	}
	for i := uint8(1); i <= s.SeatCount; i++ {
		cand := (from + i) % s.SeatCount
		if !s.isOut(cand) {
			return cand, true
		}
	}
	return 0, false
}

// multiEncodedSize is the exact byte length of a marshaled MultiState.
const multiEncodedSize = 1 + 1 + 1 + 1 + 1 + 1 + 8 + 16 + 16 + MaxMultiSeats + MaxMultiSeats*8

// MultiEncodedSize exports multiEncodedSize for codec construction.
const MultiEncodedSize = multiEncodedSize

// MarshalBinary implements codec.BinaryMarshaler.
func (s *MultiState) MarshalBinary() ([]byte, error) {
	buf := make([]byte, multiEncodedSize)
	off := 0
	buf[off] = s.SeatCount
	off++
	buf[off] = s.CurrentSeat
	off++
	buf[off] = s.DeadMask
	off++
	buf[off] = s.CashedOutMask
	off++
	buf[off] = s.TotalTiles
	off++
	buf[off] = s.TotalMines
	off++
	binary.LittleEndian.PutUint64(buf[off:off+8], s.EntryCost)
	off += 8
	copy(buf[off:off+16], s.MineMask[:])
	off += 16
	copy(buf[off:off+16], s.Revealed[:])
	off += 16
	copy(buf[off:off+MaxMultiSeats], s.SeatRevealed[:])
	off += MaxMultiSeats
	for i := 0; i < MaxMultiSeats; i++ {
		binary.LittleEndian.PutUint64(buf[off:off+8], s.SeatWinnings[i])
		off += 8
	}
	return buf, nil
}

// UnmarshalBinary implements codec.BinaryUnmarshaler.
func (s *MultiState) UnmarshalBinary(b []byte) error {
	if len(b) != multiEncodedSize {
		return fmt.Errorf("luckymine: multi-state record must be %d bytes, got %d", multiEncodedSize, len(b))
	}
	off := 0
	s.SeatCount = b[off]
	off++
	s.CurrentSeat = b[off]
	off++
	s.DeadMask = b[off]
	off++
	s.CashedOutMask = b[off]
	off++
	s.TotalTiles = b[off]
	off++
	s.TotalMines = b[off]
	off++
	s.EntryCost = binary.LittleEndian.Uint64(b[off : off+8])
	off += 8
	copy(s.MineMask[:], b[off:off+16])
	off += 16
	copy(s.Revealed[:], b[off:off+16])
	off += 16
	copy(s.SeatRevealed[:], b[off:off+MaxMultiSeats])
	off += MaxMultiSeats
	for i := 0; i < MaxMultiSeats; i++ {
		s.SeatWinnings[i] = binary.LittleEndian.Uint64(b[off : off+8])
		off += 8
	}
	return nil
}

// MultiLogic implements engine.GameLogic[MultiState] for the
// experimental multi-seat eliminate variant (Open Question 1).
type MultiLogic struct{}

var _ engine.GameLogic[MultiState] = MultiLogic{}

func (MultiLogic) GameType() string { return "luckymine-multi" }

func (MultiLogic) DefaultMeta(roomID string) *room.Meta {
	return room.NewMeta("luckymine-multi", MaxMultiSeats, true, 0)
}

// NewMultiRoomState builds an initial shared board from a room's
// config, reusing the single-seat clamp rules and mine placement.
func NewMultiRoomState(rnd gamerand.Source, seatCount int, cfg map[string]string, entryFee uint64) MultiState {
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
	st := NewMultiState(seatCount, tiles, mines, entryFee)
	st.MineMask = PlaceMines(rnd, tiles, mines)
	return st
}

func (l MultiLogic) Evaluate(ctx context.Context, rc *engine.Context[MultiState], cmd engine.Command, rnd gamerand.Source, now time.Time) (engine.EvalResult[MultiState], error) {
	st := rc.State
	meta := rc.Meta

	seat, ok := meta.SeatOf(cmd.UserID)
	if !ok {
		return engine.EvalResult[MultiState]{}, gameerr.New(gameerr.IllegalAction, "user %s is not seated in this room", cmd.UserID)
	}
	if !st.anyActive() {
		return engine.EvalResult[MultiState]{}, gameerr.New(gameerr.IllegalAction, "game has already ended")
	}
	if uint8(seat) != st.CurrentSeat {
		return engine.EvalResult[MultiState]{}, gameerr.New(gameerr.IllegalAction, "not seat %d's turn", seat)
	}
	if st.isOut(uint8(seat)) {
		return engine.EvalResult[MultiState]{}, gameerr.New(gameerr.IllegalAction, "seat %d is no longer in play", seat)
	}

	switch strings.ToLower(cmd.Action) {
	case "click", "reveal":
		var p clickPayload
		if len(cmd.Payload) > 0 {
			if err := json.Unmarshal(cmd.Payload, &p); err != nil {
				return engine.EvalResult[MultiState]{}, gameerr.Wrap(gameerr.InvalidArgument, err, "parse click payload")
			}
		}
		return l.evalClick(st, meta, rc.RoomID, uint8(seat), p.TileIndex, now)
	case "cashout", "cash_out":
		return l.evalCashout(st, meta, rc.RoomID, uint8(seat), now)
	default:
		return engine.EvalResult[MultiState]{}, gameerr.New(gameerr.IllegalAction, "unknown action %q", cmd.Action)
	}
}

func (l MultiLogic) evalClick(st MultiState, meta *room.Meta, roomID string, seat uint8, tile int, now time.Time) (engine.EvalResult[MultiState], error) {
	if tile < 0 || tile >= int(st.TotalTiles) {
		return engine.EvalResult[MultiState]{}, gameerr.New(gameerr.InvalidArgument, "tile index %d out of range", tile)
	}
	if st.isRevealed(tile) {
		return engine.EvalResult[MultiState]{}, gameerr.New(gameerr.IllegalAction, "tile %d already revealed", tile)
	}

	st.setRevealed(tile)
	var events []engine.Event

	if st.isMine(tile) {
		st.DeadMask |= 1 << seat
		st.SeatWinnings[seat] = 0
		events = append(events,
			engine.NewEvent("HitMine", map[string]interface{}{"seat": seat, "tile": tile}, now),
			engine.NewEvent("SeatEliminated", map[string]interface{}{"seat": seat}, now),
		)
	} else {
		st.SeatRevealed[seat]++
		safe := int(st.TotalTiles) - int(st.TotalMines)
		current := payout(st.EntryCost, int(st.TotalTiles), int(st.TotalMines), int(st.SeatRevealed[seat]), DefaultRewardSlope)
		next := uint64(0)
		if int(st.SeatRevealed[seat])+1 <= safe {
			next = payout(st.EntryCost, int(st.TotalTiles), int(st.TotalMines), int(st.SeatRevealed[seat])+1, DefaultRewardSlope)
		}
		st.SeatWinnings[seat] = current
		events = append(events, engine.NewEvent("TileSafe", map[string]interface{}{
			"seat": seat, "tile": tile, "count": st.SeatRevealed[seat], "current": current, "next": next,
		}, now))
	}

	var gameOver *engine.GameOverInfo
	if !st.anyActive() {
		gameOver = l.finish(&st, meta, roomID, now, &events)
	} else if next, ok := nextActiveSeat(&st, st.CurrentSeat); ok {
		st.CurrentSeat = next
		events = append(events, engine.NewEvent("TurnChanged", map[string]interface{}{"seat": next}, now))
	}

	return engine.EvalResult[MultiState]{NewState: st, NewMeta: meta, Events: events, ShouldBroadcast: true, GameOver: gameOver}, nil
}

func (l MultiLogic) evalCashout(st MultiState, meta *room.Meta, roomID string, seat uint8, now time.Time) (engine.EvalResult[MultiState], error) {
	if st.SeatRevealed[seat] == 0 {
		return engine.EvalResult[MultiState]{}, gameerr.New(gameerr.IllegalAction, "no safe reveal to cash out")
	}
	st.CashedOutMask |= 1 << seat
	winnings := st.SeatWinnings[seat]

	events := []engine.Event{
		engine.NewEvent("CashedOut", map[string]interface{}{"seat": seat, "winnings": winnings}, now),
		engine.NewEvent("Transaction", map[string]interface{}{"seat": seat, "amount": winnings}, now),
	}

	var gameOver *engine.GameOverInfo
	if !st.anyActive() {
		gameOver = l.finish(&st, meta, roomID, now, &events)
	} else if next, ok := nextActiveSeat(&st, st.CurrentSeat); ok {
		st.CurrentSeat = next
		events = append(events, engine.NewEvent("TurnChanged", map[string]interface{}{"seat": next}, now))
	}

	return engine.EvalResult[MultiState]{NewState: st, NewMeta: meta, Events: events, ShouldBroadcast: true, GameOver: gameOver}, nil
}

// finish appends a GameEnded event once every seat is dead or
// cashed out and builds the ranking from surviving winnings, highest
// first; dead seats rank last with zero winnings.
func (l MultiLogic) finish(st *MultiState, meta *room.Meta, roomID string, now time.Time, events *[]engine.Event) *engine.GameOverInfo {
	type row struct {
		seat     uint8
		winnings uint64
	}
	rows := make([]row, 0, st.SeatCount)
	for s := uint8(0); s < st.SeatCount; s++ {
		rows = append(rows, row{s, st.SeatWinnings[s]})
	}
	for i := 0; i < len(rows); i++ {
		for j := i + 1; j < len(rows); j++ {
			if rows[j].winnings > rows[i].winnings {
				rows[i], rows[j] = rows[j], rows[i]
			}
		}
	}
	ranking := make([]string, 0, len(rows))
	for _, r := range rows {
		for user, s := range meta.Seats {
			if uint8(s) == r.seat {
				ranking = append(ranking, user)
			}
		}
	}
	*events = append(*events, engine.NewEvent("GameEnded", map[string]interface{}{"ranking": ranking}, now))
	var winnerUser *string
	if len(ranking) > 0 {
		winnerUser = &ranking[0]
	}
	return &engine.GameOverInfo{
		RoomID:       roomID,
		GameType:     "luckymine-multi",
		Seats:        int(st.SeatCount),
		WinnerUserID: winnerUser,
		EntryFee:     meta.EntryFee,
		Winners:      ranking,
	}
}

func (l MultiLogic) LegalActions(rc *engine.Context[MultiState], userID string) ([]string, error) {
	st := rc.State
	seat, ok := rc.Meta.SeatOf(userID)
	if !ok || !st.anyActive() || st.isOut(uint8(seat)) || uint8(seat) != st.CurrentSeat {
		return []string{}, nil
	}
	actions := []string{"Click"}
	if st.SeatRevealed[seat] > 0 {
		actions = append(actions, "Cashout")
	}
	return actions, nil
}

// MultiStateDTO is the wire-facing projection of a multi-seat board.
type MultiStateDTO struct {
	TotalTiles    int      `json:"totalTiles"`
	TotalMines    int      `json:"totalMines"`
	SeatCount     int      `json:"seatCount"`
	CurrentSeat   int      `json:"currentSeat"`
	DeadMask      uint8    `json:"deadMask"`
	CashedOutMask uint8    `json:"cashedOutMask"`
	SeatWinnings  []uint64 `json:"seatWinnings"`
	Revealed      []int    `json:"revealed"`
}

func (l MultiLogic) StateDTO(rc *engine.Context[MultiState]) (interface{}, error) {
	st := rc.State
	revealed := make([]int, 0, st.TotalTiles)
	for i := 0; i < int(st.TotalTiles); i++ {
		if st.isRevealed(i) {
			revealed = append(revealed, i)
		}
	}
	winnings := make([]uint64, st.SeatCount)
	for i := uint8(0); i < st.SeatCount; i++ {
		winnings[i] = st.SeatWinnings[i]
	}
	return MultiStateDTO{
		TotalTiles:    int(st.TotalTiles),
		TotalMines:    int(st.TotalMines),
		SeatCount:     int(st.SeatCount),
		CurrentSeat:   int(st.CurrentSeat),
		DeadMask:      st.DeadMask,
		CashedOutMask: st.CashedOutMask,
		SeatWinnings:  winnings,
		Revealed:      revealed,
	}, nil
}

// Tick is a no-op: the multi-seat variant has no wall-clock turn
// timer, same as the single-seat variant.
func (l MultiLogic) Tick(ctx context.Context, rc *engine.Context[MultiState], now time.Time) (engine.EvalResult[MultiState], bool, error) {
	return engine.EvalResult[MultiState]{}, false, nil
}
