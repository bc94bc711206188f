// Package outbox is the only escape hatch by which game engines hand
// wallet/ledger side effects to the outer economy service: a single
// Publish call carrying a Transaction, fired for LuckyMine's
// Transaction event and nothing else.
package outbox

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// Transaction is the payload handed to an external wallet worker.
type Transaction struct {
	RoomID    string    `json:"roomId"`
	UserID    string    `json:"userId"`
	GameType  string    `json:"gameType"`
	Amount    uint64    `json:"amount"`
	Timestamp time.Time `json:"timestamp"`
}

// Outbox is the publisher contract games call through; it never
// blocks on the ledger subsystem's own availability beyond one Redis
// round trip.
type Outbox interface {
	Publish(ctx context.Context, tx Transaction) error
}

// RedisOutbox gives at-least-once fan-out to an external worker via a
// Redis list (RPUSH), reusing the same client as the repository.
type RedisOutbox struct {
	Client *redis.Client
	ListKey string
}

var _ Outbox = (*RedisOutbox)(nil)

// NewRedisOutbox builds an outbox publishing onto the given list key.
func NewRedisOutbox(client *redis.Client, listKey string) *RedisOutbox {
	if listKey == "" {
		listKey = "game:outbox:transactions"
	}
	return &RedisOutbox{Client: client, ListKey: listKey}
}

func (o *RedisOutbox) Publish(ctx context.Context, tx Transaction) error {
	raw, err := json.Marshal(tx)
	if err != nil {
		return err
	}
	return o.Client.RPush(ctx, o.ListKey, raw).Err()
}
