// Package broadcast provides a reference engine.Broadcaster for tests
// and local runs: an in-process, mutex-guarded subscriber fan-out with no
// resident per-room goroutine, since the design notes forbid an
// in-process room table.
package broadcast

import (
	"context"
	"sync"

	"gamecore/engine"
)

// Subscriber receives whatever a ChannelBroadcaster pushes for one
// room. Sends never block: once a subscriber's bounded buffer is full,
// further messages for it are dropped until it drains.
type Subscriber chan Message

// MessageKind distinguishes the three Broadcaster contract methods so
// one channel type can carry all of them.
type MessageKind int

const (
	KindState MessageKind = iota
	KindEvent
	KindResult
)

// Message is one broadcast unit delivered to a room's subscribers.
type Message struct {
	Kind   MessageKind
	State  *engine.StateResponse
	Event  engine.Event
	Result *engine.ActionResult
}

// ChannelBroadcaster fans state/events/results out to per-room
// subscriber channels. It owns no goroutines of its own — Subscribe
// just registers a channel, and broadcasts are plain sends performed
// on the caller's goroutine.
type ChannelBroadcaster struct {
	mu          sync.RWMutex
	subscribers map[string][]Subscriber
	bufferSize  int
}

var _ engine.Broadcaster = (*ChannelBroadcaster)(nil)

// NewChannelBroadcaster builds an empty broadcaster. bufferSize sets
// the channel capacity handed out by Subscribe.
func NewChannelBroadcaster(bufferSize int) *ChannelBroadcaster {
	if bufferSize <= 0 {
		bufferSize = 16
	}
	return &ChannelBroadcaster{subscribers: make(map[string][]Subscriber), bufferSize: bufferSize}
}

// Subscribe registers a new channel for roomID and returns it. Callers
// must call Unsubscribe when done listening.
func (b *ChannelBroadcaster) Subscribe(roomID string) Subscriber {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(Subscriber, b.bufferSize)
	b.subscribers[roomID] = append(b.subscribers[roomID], ch)
	return ch
}

// Unsubscribe removes a previously registered channel.
func (b *ChannelBroadcaster) Unsubscribe(roomID string, ch Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.subscribers[roomID]
	for i, s := range subs {
		if s == ch {
			b.subscribers[roomID] = append(subs[:i], subs[i+1:]...)
			close(ch)
			return
		}
	}
}

func (b *ChannelBroadcaster) fanOut(roomID string, msg Message) {
	b.mu.RLock()
	subs := append([]Subscriber(nil), b.subscribers[roomID]...)
	b.mu.RUnlock()
	for _, ch := range subs {
		select {
		case ch <- msg:
		default:
			// A full buffer means a stalled subscriber; drop rather
			// than block the room's mutation path on a slow reader.
		}
	}
}

func (b *ChannelBroadcaster) BroadcastState(ctx context.Context, roomID string, state *engine.StateResponse) error {
	b.fanOut(roomID, Message{Kind: KindState, State: state})
	return nil
}

func (b *ChannelBroadcaster) BroadcastEvent(ctx context.Context, roomID string, event engine.Event) error {
	b.fanOut(roomID, Message{Kind: KindEvent, Event: event})
	return nil
}

// BroadcastResult delegates to engine.DefaultBroadcastResult for the
// state-then-events ordering rule.
func (b *ChannelBroadcaster) BroadcastResult(ctx context.Context, roomID string, result *engine.ActionResult) error {
	return engine.DefaultBroadcastResult(ctx, b, roomID, result)
}
