package search

import (
	"context"
	"sync"
	"time"

	"github.com/keepsakehq/keepsake/internal/domain/search/query"
	"github.com/keepsakehq/keepsake/internal/domain/search/result"
)

// DefaultDebounce is the quiet period a typed query must survive before a
// search fires.
const DefaultDebounce = 400 * time.Millisecond

// Searcher is the session's view of the search service.
type Searcher interface {
	Search(ctx context.Context, q query.Query) (*result.Response, error)
}

// DeliverFunc receives settled search outcomes. Only the latest query's
// outcome is ever delivered; superseded in-flight responses are discarded.
type DeliverFunc func(q query.Query, resp *result.Response, err error)

// Session debounces an interactive query stream. Keystrokes within the
// debounce window coalesce into one search carrying the final text; an
// explicit submit bypasses the window and cancels the pending timer.
type Session struct {
	svc     Searcher
	window  time.Duration
	deliver DeliverFunc

	mu    sync.Mutex
	timer *time.Timer
	gen   uint64
}

// NewSession creates a debounced search session.
func NewSession(svc Searcher, window time.Duration, deliver DeliverFunc) *Session {
	if window <= 0 {
		window = DefaultDebounce
	}
	return &Session{svc: svc, window: window, deliver: deliver}
}

// Type registers a keystroke-updated query. The pending timer, if any, is
// cancelled and restarted, so only the last query of a burst fires.
func (s *Session) Type(ctx context.Context, q query.Query) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.timer != nil {
		s.timer.Stop()
	}
	s.gen++
	gen := s.gen
	s.timer = time.AfterFunc(s.window, func() {
		s.fire(ctx, gen, q)
	})
}

// Submit fires the query immediately, cancelling any pending debounced call.
func (s *Session) Submit(ctx context.Context, q query.Query) {
	s.mu.Lock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.gen++
	gen := s.gen
	s.mu.Unlock()

	s.fire(ctx, gen, q)
}

// Close cancels any pending debounced search.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.gen++
}

// fire runs the search and delivers the outcome unless a newer query has
// superseded this one while it was in flight.
func (s *Session) fire(ctx context.Context, gen uint64, q query.Query) {
	resp, err := s.svc.Search(ctx, q)

	s.mu.Lock()
	stale := gen != s.gen
	s.mu.Unlock()
	if stale {
		return
	}
	s.deliver(q, resp, err)
}
