// Package search orchestrates semantic and conversational journal search:
// one call to the external search endpoint, one bulk fetch to hydrate the
// ranked identifiers, and an order-preserving merge.
package search

import (
	"context"
	"fmt"

	"github.com/keepsakehq/keepsake/internal/domain"
	"github.com/keepsakehq/keepsake/internal/domain/entry"
	"github.com/keepsakehq/keepsake/internal/domain/search/query"
	"github.com/keepsakehq/keepsake/internal/domain/search/result"
	"github.com/keepsakehq/keepsake/internal/metrics"
)

// Service runs searches and hydrates their results.
type Service struct {
	gw      Gateway
	entries BulkFetcher
	history HistoryRecorder
}

// New creates a search service.
func New(gw Gateway, entries BulkFetcher) *Service {
	return &Service{gw: gw, entries: entries}
}

// WithHistory configures best-effort query history recording.
func (s *Service) WithHistory(h HistoryRecorder) *Service {
	s.history = h
	return s
}

// Search executes a search and hydrates the ranked identifiers into full
// entries. A failing search call surfaces as domain.ErrSearchUnavailable;
// an empty hydrated list is a normal zero-result outcome. Identifiers the
// bulk fetch cannot resolve are dropped silently, and output order follows
// the backend's ranking, not fetch order.
func (s *Service) Search(ctx context.Context, q query.Query) (*result.Response, error) {
	resp, err := s.gw.Search(ctx, q)
	if err != nil {
		metrics.SearchRequestsTotal.WithLabelValues(string(q.Mode()), "error").Inc()
		return nil, fmt.Errorf("%w: %w", domain.ErrSearchUnavailable, err)
	}
	metrics.SearchRequestsTotal.WithLabelValues(string(q.Mode()), "ok").Inc()

	if s.history != nil {
		// История — best effort, её отказ не ломает поиск.
		_ = s.history.Record(ctx, q.Text())
	}

	out := &result.Response{
		Query:         q.Text(),
		Answer:        resp.Answer,
		TotalResults:  resp.TotalResults,
		ExecutionTime: resp.ExecutionTime,
	}
	if len(resp.Results) == 0 {
		return out, nil
	}

	hydrated, err := s.hydrate(ctx, resp.Results)
	if err != nil {
		return nil, err
	}
	out.Entries = hydrated
	return out, nil
}

// hydrate performs exactly one bulk fetch and merges the records back in
// ranked order, at most one entry per identifier.
func (s *Service) hydrate(ctx context.Context, ranked []result.Result) ([]result.Hydrated, error) {
	ids := make([]string, 0, len(ranked))
	seen := make(map[string]bool, len(ranked))
	for i := range ranked {
		id := ranked[i].EntryID()
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}

	records, err := s.entries.BulkFetch(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("hydrate entries: %w", err)
	}

	byID := make(map[string]entry.Entry, len(records))
	for _, e := range records {
		byID[e.ID()] = e
	}

	out := make([]result.Hydrated, 0, len(ranked))
	emitted := make(map[string]bool, len(ranked))
	for i := range ranked {
		id := ranked[i].EntryID()
		if emitted[id] {
			continue
		}
		emitted[id] = true
		e, ok := byID[id]
		if !ok {
			// Удалено или доступ отозван между поиском и гидрацией.
			metrics.SearchHydrationDropped.Inc()
			continue
		}
		out = append(out, result.Hydrated{Result: ranked[i], Entry: e})
	}
	return out, nil
}
