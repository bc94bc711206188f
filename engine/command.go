// Package engine is the abstract command/state-machine dispatcher
// every concrete game plugs into: it owns lock-guarded load/evaluate/
// save, broadcast shaping, and the narrow interfaces (Repository,
// Locker-via-Repository) a concrete game needs from its environment.
package engine

import (
	"encoding/json"
	"time"
)

// Command is the inbound envelope the edge hands to a room: who sent
// it, which action they want, and an opaque payload. Action matching
// is case-insensitive, per the external interfaces contract.
type Command struct {
	UserID string          `json:"userId"`
	Action string          `json:"action"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Event is one immutable, timestamped domain event emitted by an
// engine decision. Events are ordered as emitted within one action.
type Event struct {
	Name      string      `json:"name"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// NewEvent stamps an event with the given timestamp so callers
// running inside a Framework can pass a single, consistent "now" for
// every event an action emits.
func NewEvent(name string, data interface{}, now time.Time) Event {
	return Event{Name: name, Data: data, Timestamp: now}
}

// GameOverInfo summarizes a just-finished game for the outer lobby
// and ledger, per the action-result contract.
type GameOverInfo struct {
	RoomID        string    `json:"roomId"`
	GameType      string    `json:"gameType"`
	Seats         int       `json:"seats"`
	WinnerUserID  *string   `json:"winnerUserId,omitempty"`
	EntryFee      uint64    `json:"entryFee"`
	TurnStartedAt time.Time `json:"turnStartedAt"`
	Winners       []string  `json:"winners,omitempty"`
}

// MetaDTO is the wire-facing projection of room.Meta used in a
// StateResponse.
type MetaDTO struct {
	Seats      map[string]int    `json:"seats"`
	IsPublic   bool              `json:"isPublic"`
	GameType   string            `json:"gameType"`
	MaxPlayers int               `json:"maxPlayers"`
	EntryFee   uint64            `json:"entryFee"`
	Config     map[string]string `json:"config"`
}

// StateResponse is the pure-read shape returned by GetState and
// GetManyStates: room id, meta, the game-specific state DTO, and the
// legal moves available (computed for whichever user asked, or the
// room's current actor if no user is specified).
type StateResponse struct {
	RoomID     string      `json:"roomId"`
	GameType   string      `json:"gameType"`
	Meta       MetaDTO     `json:"meta"`
	State      interface{} `json:"state"`
	LegalMoves []string    `json:"legalMoves"`
}

// ActionResult is the outbound shape of Execute and Tick.
type ActionResult struct {
	Success         bool          `json:"success"`
	Error           string        `json:"error,omitempty"`
	ShouldBroadcast bool          `json:"shouldBroadcast"`
	NewState        *StateResponse `json:"newState,omitempty"`
	Events          []Event       `json:"events"`
	GameOverInfo    *GameOverInfo `json:"gameOverInfo,omitempty"`
}

// Failure builds a non-broadcasting, unsuccessful ActionResult. The
// framework never returns a Go error for a legal-but-losing outcome;
// this is reserved for the error kinds in gameerr (Busy, NotFound,
// IllegalAction, InvalidArgument, Corrupt).
func Failure(errMsg string) *ActionResult {
	return &ActionResult{Success: false, Error: errMsg, Events: []Event{}}
}
