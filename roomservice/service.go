// Package roomservice hosts the per-game-type room lifecycle
// operations (create, join, leave) that sit in front of the engine
// framework: they establish a room's initial state and meta before
// any command ever reaches Engine.Execute.
package roomservice

import (
	"context"

	"gamecore/engine"
	"gamecore/gameerr"
	"gamecore/registry"
	"gamecore/room"
)

// InitialStateFunc builds a game's starting state from the room's
// config, entry fee and seat count. Each game type supplies its own
// (ludo.NewState wrapped to match the signature, luckymine.NewRoomState,
// and so on).
type InitialStateFunc[S any] func(meta *room.Meta) S

// Service is the create/join/leave lifecycle for one game type,
// grounded on the teacher's initNewGame/parseCreateArgs pair and the
// ludo-king-go reference room's AddPlayer/RemovePlayer loop.
type Service[S any] struct {
	GameType     string
	Repo         engine.Repository[S]
	Registry     *registry.Registry
	InitialState InitialStateFunc[S]
}

// NewService builds a room lifecycle service for one game type.
func NewService[S any](gameType string, repo engine.Repository[S], reg *registry.Registry, initial InitialStateFunc[S]) *Service[S] {
	return &Service[S]{GameType: gameType, Repo: repo, Registry: reg, InitialState: initial}
}

// CreateOptions describes the room a caller wants to create.
type CreateOptions struct {
	UserID     string
	MaxPlayers int
	IsPublic   bool
	EntryFee   uint64
	Config     map[string]string
}

// CreateRoom allocates a fresh room id, assigns the creator to seat 0,
// builds the game's initial state, and persists both.
func (s *Service[S]) CreateRoom(ctx context.Context, opts CreateOptions) (string, error) {
	roomID, err := room.NewID(room.DefaultIDLength)
	if err != nil {
		return "", err
	}

	meta := room.NewMeta(s.GameType, opts.MaxPlayers, opts.IsPublic, opts.EntryFee)
	if opts.Config != nil {
		meta.Config = opts.Config
	}
	if _, err := meta.AssignSeat(opts.UserID); err != nil {
		return "", err
	}
	if err := meta.Validate(); err != nil {
		return "", err
	}

	state := s.InitialState(meta)
	if err := s.Repo.Save(ctx, roomID, state, meta); err != nil {
		return "", err
	}
	if s.Registry != nil {
		if err := s.Registry.BindUser(ctx, opts.UserID, roomID); err != nil {
			return "", err
		}
	}
	return roomID, nil
}

// JoinRoom assigns userID the next free seat in an existing room.
func (s *Service[S]) JoinRoom(ctx context.Context, roomID, userID string) (int, error) {
	rc, err := s.Repo.Load(ctx, roomID)
	if err != nil {
		return 0, err
	}
	if rc == nil {
		return 0, gameerr.New(gameerr.NotFound, "room %s not found", roomID)
	}

	seat, err := rc.Meta.AssignSeat(userID)
	if err != nil {
		return 0, err
	}
	if err := rc.Meta.Validate(); err != nil {
		return 0, err
	}
	if err := s.Repo.Save(ctx, roomID, rc.State, rc.Meta); err != nil {
		return 0, err
	}
	if s.Registry != nil {
		if err := s.Registry.BindUser(ctx, userID, roomID); err != nil {
			return 0, err
		}
	}
	return seat, nil
}

// LeaveRoom removes userID's seat. The seat is not reassigned mid-game
// (room.Meta.RemoveUser leaves remaining seats stable); callers that
// want the room torn down on empty should check OrderedUsers and call
// Delete themselves.
func (s *Service[S]) LeaveRoom(ctx context.Context, roomID, userID string) error {
	rc, err := s.Repo.Load(ctx, roomID)
	if err != nil {
		return err
	}
	if rc == nil {
		return gameerr.New(gameerr.NotFound, "room %s not found", roomID)
	}
	rc.Meta.RemoveUser(userID)
	if err := rc.Meta.Validate(); err != nil {
		return err
	}
	if err := s.Repo.Save(ctx, roomID, rc.State, rc.Meta); err != nil {
		return err
	}
	if s.Registry != nil {
		if err := s.Registry.UnbindUser(ctx, userID); err != nil {
			return err
		}
	}
	return nil
}
