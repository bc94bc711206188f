package engine

import "context"

// Broadcaster pushes state and events to a room's subscribers. It is
// an external collaborator — the core never terminates a network
// connection itself, it only calls through this narrow interface.
type Broadcaster interface {
	BroadcastState(ctx context.Context, roomID string, state *StateResponse) error
	BroadcastEvent(ctx context.Context, roomID string, event Event) error
	BroadcastResult(ctx context.Context, roomID string, result *ActionResult) error
}

// DefaultBroadcastResult implements the Broadcaster contract's
// ordering rule for BroadcastResult: state first (if present and
// ShouldBroadcast), then each event in emission order. Concrete
// Broadcasters may call this helper from their own BroadcastResult,
// or implement the ordering themselves.
func DefaultBroadcastResult(ctx context.Context, b Broadcaster, roomID string, result *ActionResult) error {
	if result.ShouldBroadcast && result.NewState != nil {
		if err := b.BroadcastState(ctx, roomID, result.NewState); err != nil {
			return err
		}
	}
	for _, ev := range result.Events {
		if err := b.BroadcastEvent(ctx, roomID, ev); err != nil {
			return err
		}
	}
	return nil
}
