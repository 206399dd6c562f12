// Package history keeps a bounded list of recent search queries per user
// in an injected key-value store.
package history

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/keepsakehq/keepsake/internal/kv"
)

// DefaultSize is the default number of recent queries kept per user.
const DefaultSize = 20

// DefaultTTL is the default retention of a user's history list.
const DefaultTTL = 30 * 24 * time.Hour

// Service records and lists recent search queries.
type Service struct {
	store kv.Store
	size  int
	ttl   time.Duration
}

// New creates a history service.
func New(store kv.Store) *Service {
	return &Service{store: store, size: DefaultSize, ttl: DefaultTTL}
}

// WithSize configures how many recent queries are kept per user.
func (s *Service) WithSize(n int) *Service {
	if n > 0 {
		s.size = n
	}
	return s
}

// WithTTL configures history retention.
func (s *Service) WithTTL(ttl time.Duration) *Service {
	if ttl > 0 {
		s.ttl = ttl
	}
	return s
}

func historyKey(userID string) string {
	return "search:history:" + userID
}

// Record stores a query at the head of the user's history. A repeated
// query moves to the head instead of duplicating.
func (s *Service) Record(ctx context.Context, userID, text string) error {
	text = strings.TrimSpace(text)
	if text == "" || userID == "" {
		return nil
	}

	key := historyKey(userID)
	if err := s.store.ListRemove(ctx, key, text); err != nil {
		return fmt.Errorf("dedupe history: %w", err)
	}
	if err := s.store.ListPush(ctx, key, text, s.size, s.ttl); err != nil {
		return fmt.Errorf("push history: %w", err)
	}
	return nil
}

// Recent returns the user's most recent queries, newest first.
func (s *Service) Recent(ctx context.Context, userID string) ([]string, error) {
	items, err := s.store.ListRange(ctx, historyKey(userID), s.size)
	if err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}
	return items, nil
}

// Clear drops the user's history.
func (s *Service) Clear(ctx context.Context, userID string) error {
	if err := s.store.Del(ctx, historyKey(userID)); err != nil {
		return fmt.Errorf("clear history: %w", err)
	}
	return nil
}
