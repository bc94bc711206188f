// Package room holds the game-agnostic pieces of the data model: room
// metadata, room-id generation, and the small validity rules that
// apply to every room regardless of which game occupies it.
package room

import (
	"crypto/rand"
	"fmt"
	"sort"

	"gamecore/gameerr"
)

// crockfordAlphabet is the 32-symbol, case-insensitive, human-friendly
// alphabet room-ids are drawn from (omits I, L, O, U to avoid
// transcription mistakes), following the teacher's preference for
// compact hex/base32-ish ids over UUIDs on hot, player-facing paths.
const crockfordAlphabet = "0123456789ABCDEFGHJKMNPQRSTVWXYZ"

// DefaultIDLength is the reference room-id length (5 crockford
// characters), per the data model's "typically... 5 chars from a
// crockford-like alphabet" note.
const DefaultIDLength = 5

// NewID generates a random, printable room-id of the given length
// using crypto/rand, mirroring the teacher's generateGUID but drawn
// from the shorter, friendlier alphabet the spec calls for.
func NewID(length int) (string, error) {
	if length <= 0 {
		length = DefaultIDLength
	}
	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("room: generate id: %w", err)
	}
	out := make([]byte, length)
	for i, b := range buf {
		out[i] = crockfordAlphabet[int(b)%len(crockfordAlphabet)]
	}
	return string(out), nil
}

// Meta is the mutable per-room record described in the data model:
// seat assignments, player count, visibility, game type, entry fee
// and free-form config.
type Meta struct {
	// Seats maps user-id to seat index in [0, MaxPlayers). Seats are
	// handed out lowest-free-first, so a fresh room is dense in
	// [0, count); a mid-game leave keeps the survivors' seats stable
	// and may open a gap until the next join refills it.
	Seats      map[string]int
	MaxPlayers int // max-player count
	IsPublic   bool              // public/private flag
	GameType   string            // must match the registry entry for the room-id
	EntryFee   uint64            // non-negative minor currency units
	Config     map[string]string // string->string configuration map
}

// NewMeta builds a default, empty meta record for a game type.
func NewMeta(gameType string, maxPlayers int, isPublic bool, entryFee uint64) *Meta {
	return &Meta{
		Seats:      make(map[string]int),
		MaxPlayers: maxPlayers,
		IsPublic:   isPublic,
		GameType:   gameType,
		EntryFee:   entryFee,
		Config:     make(map[string]string),
	}
}

// Validate enforces the per-room seat rules: count within max, every
// seat in range, no seat assigned twice. Gaps left by a departed
// player are legal — RemoveUser keeps the survivors' seats stable and
// AssignSeat refills the lowest gap on the next join — so density is
// not rejected here.
func (m *Meta) Validate() error {
	if len(m.Seats) > m.MaxPlayers {
		return gameerr.New(gameerr.InvalidArgument, "room has %d players, exceeds max %d", len(m.Seats), m.MaxPlayers)
	}
	seen := make([]bool, m.MaxPlayers)
	for user, seat := range m.Seats {
		if seat < 0 || seat >= m.MaxPlayers {
			return gameerr.New(gameerr.InvalidArgument, "user %s has out-of-range seat %d", user, seat)
		}
		if seen[seat] {
			return gameerr.New(gameerr.InvalidArgument, "seat %d assigned twice", seat)
		}
		seen[seat] = true
	}
	return nil
}

// SeatOf returns the seat assigned to a user, if any.
func (m *Meta) SeatOf(userID string) (int, bool) {
	s, ok := m.Seats[userID]
	return s, ok
}

// NextFreeSeat returns the lowest unused seat index, or -1 if full.
func (m *Meta) NextFreeSeat() int {
	used := make([]bool, m.MaxPlayers)
	for _, s := range m.Seats {
		if s >= 0 && s < m.MaxPlayers {
			used[s] = true
		}
	}
	for i, taken := range used {
		if !taken {
			return i
		}
	}
	return -1
}

// AssignSeat adds a user at the next free seat. Returns the seat
// index, or an error if the room is full or the user already joined.
func (m *Meta) AssignSeat(userID string) (int, error) {
	if _, ok := m.Seats[userID]; ok {
		return 0, gameerr.New(gameerr.IllegalAction, "user %s already in room", userID)
	}
	if len(m.Seats) >= m.MaxPlayers {
		return 0, gameerr.New(gameerr.IllegalAction, "room is full")
	}
	seat := m.NextFreeSeat()
	if seat < 0 {
		return 0, gameerr.New(gameerr.IllegalAction, "room is full")
	}
	m.Seats[userID] = seat
	return seat, nil
}

// RemoveUser removes a user from the room, leaving the remaining
// seats exactly as they were (seats are stable once assigned; a
// leave does not renumber other players mid-game).
func (m *Meta) RemoveUser(userID string) {
	delete(m.Seats, userID)
}

// OrderedUsers returns user-ids sorted by seat index, suitable for
// building game-over rankings or seat-ordered DTOs.
func (m *Meta) OrderedUsers() []string {
	type pair struct {
		user string
		seat int
	}
	pairs := make([]pair, 0, len(m.Seats))
	for u, s := range m.Seats {
		pairs = append(pairs, pair{u, s})
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].seat < pairs[j].seat })
	out := make([]string, len(pairs))
	for i, p := range pairs {
		out[i] = p.user
	}
	return out
}

// Clone returns a deep copy, so engines can mutate a working copy and
// only commit it back to storage on success.
func (m *Meta) Clone() *Meta {
	c := &Meta{
		MaxPlayers: m.MaxPlayers,
		IsPublic:   m.IsPublic,
		GameType:   m.GameType,
		EntryFee:   m.EntryFee,
		Seats:      make(map[string]int, len(m.Seats)),
		Config:     make(map[string]string, len(m.Config)),
	}
	for k, v := range m.Seats {
		c.Seats[k] = v
	}
	for k, v := range m.Config {
		c.Config[k] = v
	}
	return c
}
