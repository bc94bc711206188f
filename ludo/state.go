// Package ludo implements the four-seat board game engine: shared
// 52-square outer track, per-seat private home columns, dice-driven
// movement, capture and block rules, and win ranking.
package ludo

import (
	"encoding/binary"
	"fmt"
)

// Seat position sentinels. Values 1..52 are absolute, shared
// outer-track squares; 53..58 are a seat's private home column cells;
// 0 means "in base" and 59 means "finished".
const (
	PosBase     uint8 = 0
	TrackStart  uint8 = 1
	TrackEnd    uint8 = 52
	HomeStart   uint8 = 53
	HomeEnd     uint8 = 58
	PosFinished uint8 = 59
)

// MaxSeats is the board's fixed seat count.
const MaxSeats = 4

// TokensPerSeat is the fixed token count per seat.
const TokensPerSeat = 4

// StarSquares are the four bonus-safe squares named in the board
// contract, in addition to every seat's entry square.
var StarSquares = [4]uint8{9, 22, 35, 48}

// State is the fixed-size, value-type Ludo board record. It has no
// pointer fields so it can be copied, compared, and persisted as raw
// bytes without aliasing concerns.
//
// ActiveSeats, FinishedSeats and LegalMoves are low-bit bitmasks:
// seat s occupies bit s of the seat masks, and token t of the current
// seat occupies bit t of LegalMoves. LegalMoves is only meaningful
// while PendingRoll is non-zero.
type State struct {
	Positions          [MaxSeats][TokensPerSeat]uint8
	SeatCount          uint8
	CurrentSeat        uint8
	PendingRoll        uint8
	SixStreak          uint8
	TurnID             uint32
	TurnStartedAt      int64
	TurnTimeoutSeconds uint16
	ActiveSeats        uint8
	FinishedSeats      uint8
	LegalMoves         uint8
	Winners            [MaxSeats]uint8
	WinnerCount        uint8
	GameOver           bool
}

// NewState builds a fresh board for seatCount seats (2..4), all
// tokens in base, seat 0 to move first.
func NewState(seatCount int, now int64) State {
	if seatCount < 2 {
		seatCount = 2
	}
	if seatCount > MaxSeats {
		seatCount = MaxSeats
	}
	return State{
		SeatCount:          uint8(seatCount),
		CurrentSeat:        0,
		TurnStartedAt:      now,
		TurnTimeoutSeconds: DefaultTurnTimeoutSeconds,
		ActiveSeats:        uint8(1<<seatCount) - 1,
	}
}

// entrySquare returns a seat's fixed entry square E(s) = 1 + 13*s.
func entrySquare(seat uint8) uint8 {
	return 1 + 13*seat
}

// isSafeSquare reports whether abs is in the contract's safe set: any
// seat's entry square, or one of the four star squares.
func isSafeSquare(abs uint8) bool {
	for s := uint8(0); s < MaxSeats; s++ {
		if entrySquare(s) == abs {
			return true
		}
	}
	for _, star := range StarSquares {
		if star == abs {
			return true
		}
	}
	return false
}

// relOf converts an absolute outer-track square into seat-relative
// progress (1..52, where 1 is the seat's own entry square).
func relOf(seat, abs uint8) uint8 {
	e := entrySquare(seat)
	return uint8((int(abs)-int(e)+52)%52) + 1
}

// absOf converts seat-relative outer-track progress (1..52) back into
// the absolute, shared square number.
func absOf(seat, rel uint8) uint8 {
	e := entrySquare(seat)
	return uint8((int(e)-1+int(rel)-1)%52) + 1
}

// seatFinished reports whether a seat's bit is set in FinishedSeats.
func (s *State) seatFinished(seat uint8) bool {
	return s.FinishedSeats&(1<<seat) != 0
}

// EncodedSize is the exact byte length of a marshaled State, used to
// construct this package's codec.Codec.
const EncodedSize = 4*4 + 1 + 1 + 1 + 1 + 4 + 8 + 2 + 1 + 1 + 1 + 4 + 1 + 1

const encodedSize = EncodedSize

// MarshalBinary implements codec.BinaryMarshaler.
func (s *State) MarshalBinary() ([]byte, error) {
	buf := make([]byte, encodedSize)
	off := 0
	for seat := 0; seat < MaxSeats; seat++ {
		for tok := 0; tok < TokensPerSeat; tok++ {
			buf[off] = s.Positions[seat][tok]
			off++
		}
	}
	buf[off] = s.SeatCount
	off++
	buf[off] = s.CurrentSeat
	off++
	buf[off] = s.PendingRoll
	off++
	buf[off] = s.SixStreak
	off++
	binary.LittleEndian.PutUint32(buf[off:off+4], s.TurnID)
	off += 4
	binary.LittleEndian.PutUint64(buf[off:off+8], uint64(s.TurnStartedAt))
	off += 8
	binary.LittleEndian.PutUint16(buf[off:off+2], s.TurnTimeoutSeconds)
	off += 2
	buf[off] = s.ActiveSeats
	off++
	buf[off] = s.FinishedSeats
	off++
	buf[off] = s.LegalMoves
	off++
	copy(buf[off:off+4], s.Winners[:])
	off += 4
	buf[off] = s.WinnerCount
	off++
	if s.GameOver {
		buf[off] = 1
	}
	off++
	return buf, nil
}

// UnmarshalBinary implements codec.BinaryUnmarshaler.
func (s *State) UnmarshalBinary(b []byte) error {
	if len(b) != encodedSize {
		return fmt.Errorf("ludo: state record must be %d bytes, got %d", encodedSize, len(b))
	}
	off := 0
	for seat := 0; seat < MaxSeats; seat++ {
		for tok := 0; tok < TokensPerSeat; tok++ {
			s.Positions[seat][tok] = b[off]
			off++
		}
	}
	s.SeatCount = b[off]
	off++
	s.CurrentSeat = b[off]
	off++
	s.PendingRoll = b[off]
	off++
	s.SixStreak = b[off]
	off++
	s.TurnID = binary.LittleEndian.Uint32(b[off : off+4])
	off += 4
	s.TurnStartedAt = int64(binary.LittleEndian.Uint64(b[off : off+8]))
	off += 8
	s.TurnTimeoutSeconds = binary.LittleEndian.Uint16(b[off : off+2])
	off += 2
	s.ActiveSeats = b[off]
	off++
	s.FinishedSeats = b[off]
	off++
	s.LegalMoves = b[off]
	off++
	copy(s.Winners[:], b[off:off+4])
	off += 4
	s.WinnerCount = b[off]
	off++
	s.GameOver = b[off] != 0
	off++
	return nil
}
