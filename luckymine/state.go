// Package luckymine implements the single-seat risk/reveal engine:
// mine placement, tile reveals with a compounding payout multiplier,
// and cash-out.
package luckymine

import (
	"encoding/binary"
	"fmt"
	"math"
)

// MaxTiles is the largest board this fixed-size record can encode.
const MaxTiles = 128

// Status values for the board's lifecycle.
const (
	StatusActive    uint8 = 0
	StatusHitMine   uint8 = 1
	StatusCashedOut uint8 = 2
)

// TotalTilesMin/Max are the board-size bounds from the setup contract.
const (
	TotalTilesMin = 10
	TotalTilesMax = 128
)

// DefaultRewardSlope is the payout multiplier applied on top of the
// compounding odds product: a 3% house edge.
const DefaultRewardSlope = 0.97

// State is the fixed-size, value-type board record: bitmasks for
// mine placement and revealed tiles, plus the running payout figures.
// CurrentPlayer is always 0 in the canonical single-seat variant; it
// is carried in the record so the layout stays shared with multi-seat
// experiments. JackpotCounter counts safe reveals over the board's
// lifetime for the outer jackpot pool to sample.
type State struct {
	CurrentPlayer   uint8
	TotalTiles      uint8
	TotalMines      uint8
	Status          uint8
	RevealedSafe    uint8
	JackpotCounter  uint32
	RewardSlope     float32
	EntryCost       uint64
	CurrentWinnings uint64
	MineMask        [16]byte // bit i set => tile i is a mine
	Revealed        [16]byte // bit i set => tile i has been revealed
}

// NewState builds a fresh board with no mines placed. Callers set
// MineMask afterwards (NewRoomState does so via PlaceMines) so that it
// has exactly totalMines bits set within [0, totalTiles).
func NewState(totalTiles, totalMines int, entryCost uint64) State {
	return State{
		TotalTiles:  uint8(totalTiles),
		TotalMines:  uint8(totalMines),
		Status:      StatusActive,
		EntryCost:   entryCost,
		RewardSlope: DefaultRewardSlope,
	}
}

func (s *State) setBit(mask *[16]byte, i int) {
	mask[i/8] |= 1 << uint(i%8)
}

func (s *State) testBit(mask [16]byte, i int) bool {
	return mask[i/8]&(1<<uint(i%8)) != 0
}

// slope returns the effective reward slope: records written before the
// field existed decode as zero and fall back to the default.
func (s *State) slope() float64 {
	if s.RewardSlope == 0 {
		return DefaultRewardSlope
	}
	return float64(s.RewardSlope)
}

// EncodedSize is the exact byte length of a marshaled State, used to
// construct this package's codec.Codec.
const EncodedSize = 1 + 1 + 1 + 1 + 1 + 4 + 4 + 8 + 8 + 16 + 16

const encodedSize = EncodedSize

// MarshalBinary implements codec.BinaryMarshaler.
func (s *State) MarshalBinary() ([]byte, error) {
	buf := make([]byte, encodedSize)
	off := 0
	buf[off] = s.CurrentPlayer
	off++
	buf[off] = s.TotalTiles
	off++
	buf[off] = s.TotalMines
	off++
	buf[off] = s.Status
	off++
	buf[off] = s.RevealedSafe
	off++
	binary.LittleEndian.PutUint32(buf[off:off+4], s.JackpotCounter)
	off += 4
	binary.LittleEndian.PutUint32(buf[off:off+4], math.Float32bits(s.RewardSlope))
	off += 4
	binary.LittleEndian.PutUint64(buf[off:off+8], s.EntryCost)
	off += 8
	binary.LittleEndian.PutUint64(buf[off:off+8], s.CurrentWinnings)
	off += 8
	copy(buf[off:off+16], s.MineMask[:])
	off += 16
	copy(buf[off:off+16], s.Revealed[:])
	off += 16
	return buf, nil
}

// UnmarshalBinary implements codec.BinaryUnmarshaler.
func (s *State) UnmarshalBinary(b []byte) error {
	if len(b) != encodedSize {
		return fmt.Errorf("luckymine: state record must be %d bytes, got %d", encodedSize, len(b))
	}
	off := 0
	s.CurrentPlayer = b[off]
	off++
	s.TotalTiles = b[off]
	off++
	s.TotalMines = b[off]
	off++
	s.Status = b[off]
	off++
	s.RevealedSafe = b[off]
	off++
	s.JackpotCounter = binary.LittleEndian.Uint32(b[off : off+4])
	off += 4
	s.RewardSlope = math.Float32frombits(binary.LittleEndian.Uint32(b[off : off+4]))
	off += 4
	s.EntryCost = binary.LittleEndian.Uint64(b[off : off+8])
	off += 8
	s.CurrentWinnings = binary.LittleEndian.Uint64(b[off : off+8])
	off += 8
	copy(s.MineMask[:], b[off:off+16])
	off += 16
	copy(s.Revealed[:], b[off:off+16])
	off += 16
	return nil
}
