// Package stats tracks how many messages the bot has rewritten per chat.
package stats

import "context"

// Snapshot is a point-in-time view of the rewrite counters.
type Snapshot struct {
	Total   int64           `json:"total"`
	PerChat map[int64]int64 `json:"per_chat"`
}

// Store records rewrite counters. Implementations must be safe for
// concurrent use.
type Store interface {
	// Incr records one rewritten message in the given chat.
	Incr(ctx context.Context, chatID int64) error

	// Snapshot returns the current counters.
	Snapshot(ctx context.Context) (*Snapshot, error)

	// Close releases any resources held by the store.
	Close() error
}
