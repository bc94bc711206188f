// Package roomstore is the Redis-backed implementation of
// engine.Repository[S]: pipelined load/save of state and meta,
// SET-NX/TTL distributed locking, and a read-through cache in front
// of the hot path.
package roomstore

import "fmt"

// Key layout uses a hash tag around the room id so state, meta and
// lock for one room always land on the same Redis Cluster slot,
// letting Save send its pipelined state and meta writes to one node.
func stateKey(gameType, roomID string) string {
	return fmt.Sprintf("game:%s:{%s}:state", gameType, roomID)
}

func metaKey(gameType, roomID string) string {
	return fmt.Sprintf("game:%s:{%s}:meta", gameType, roomID)
}

func lockKey(gameType, roomID string) string {
	return fmt.Sprintf("game:%s:{%s}:lock", gameType, roomID)
}
