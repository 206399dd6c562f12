// Package kv defines the key-value store contract used for search history
// and other small persisted state. The store is injected so tests can swap
// it for a fake instead of depending on ambient persistence.
package kv

import (
	"context"
	"time"
)

// Store is the full key-value store contract.
type Store interface {
	Ping(ctx context.Context) error
	WaitForReady(ctx context.Context, timeout time.Duration) error
	Close()

	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, key string) error

	// ListPush prepends a value, trims the list to maxLen and refreshes its TTL.
	ListPush(ctx context.Context, key, value string, maxLen int, ttl time.Duration) error
	// ListRange returns up to count values from the head of the list.
	ListRange(ctx context.Context, key string, count int) ([]string, error)
	// ListRemove removes all occurrences of value from the list.
	ListRemove(ctx context.Context, key, value string) error
}
