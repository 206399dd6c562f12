package search

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/keepsakehq/keepsake/internal/domain/search/query"
	"github.com/keepsakehq/keepsake/internal/domain/search/result"
)

type recordingSearcher struct {
	mu      sync.Mutex
	queries []string
	delay   map[string]time.Duration // per-query-text artificial latency
}

func (r *recordingSearcher) Search(_ context.Context, q query.Query) (*result.Response, error) {
	r.mu.Lock()
	r.queries = append(r.queries, q.Text())
	d := r.delay[q.Text()]
	r.mu.Unlock()
	if d > 0 {
		time.Sleep(d)
	}
	return &result.Response{Query: q.Text()}, nil
}

func (r *recordingSearcher) seen() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.queries))
	copy(out, r.queries)
	return out
}

type deliveries struct {
	mu    sync.Mutex
	texts []string
	ch    chan string
}

func newDeliveries() *deliveries {
	return &deliveries{ch: make(chan string, 16)}
}

func (d *deliveries) deliver(q query.Query, _ *result.Response, _ error) {
	d.mu.Lock()
	d.texts = append(d.texts, q.Text())
	d.mu.Unlock()
	d.ch <- q.Text()
}

func (d *deliveries) wait(t *testing.T) string {
	t.Helper()
	select {
	case text := <-d.ch:
		return text
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for delivery")
		return ""
	}
}

func typed(t *testing.T, text string) query.Query {
	t.Helper()
	q, err := query.New(text, query.Semantic, 10, query.Filters{})
	if err != nil {
		t.Fatalf("build query: %v", err)
	}
	return q
}

func TestSession_BurstOfKeystrokesCoalescesToOneSearch(t *testing.T) {
	searcher := &recordingSearcher{}
	d := newDeliveries()
	sess := NewSession(searcher, 50*time.Millisecond, d.deliver)
	defer sess.Close()

	ctx := context.Background()
	for _, text := range []string{"b", "be", "bea", "beac", "beach"} {
		sess.Type(ctx, typed(t, text))
	}

	if got := d.wait(t); got != "beach" {
		t.Fatalf("delivered %q, want final keystroke text %q", got, "beach")
	}

	// Quiet period: no further searches may fire.
	time.Sleep(150 * time.Millisecond)
	if seen := searcher.seen(); len(seen) != 1 || seen[0] != "beach" {
		t.Errorf("expected exactly one search with final text, got %v", seen)
	}
}

func TestSession_SubmitBypassesDebounceAndCancelsPending(t *testing.T) {
	searcher := &recordingSearcher{}
	d := newDeliveries()
	sess := NewSession(searcher, 80*time.Millisecond, d.deliver)
	defer sess.Close()

	ctx := context.Background()
	sess.Type(ctx, typed(t, "draft"))
	sess.Submit(ctx, typed(t, "final"))

	if got := d.wait(t); got != "final" {
		t.Fatalf("delivered %q, want %q", got, "final")
	}

	// The pending debounced call for "draft" must never fire.
	time.Sleep(200 * time.Millisecond)
	if seen := searcher.seen(); len(seen) != 1 || seen[0] != "final" {
		t.Errorf("expected only the submitted query, got %v", seen)
	}
}

func TestSession_StaleInFlightResponseDiscarded(t *testing.T) {
	searcher := &recordingSearcher{delay: map[string]time.Duration{
		"slow": 100 * time.Millisecond,
	}}
	d := newDeliveries()
	sess := NewSession(searcher, 10*time.Millisecond, d.deliver)
	defer sess.Close()

	ctx := context.Background()
	sess.Submit(ctx, typed(t, "fast"))
	if got := d.wait(t); got != "fast" {
		t.Fatalf("delivered %q, want %q", got, "fast")
	}

	// Fire "slow" in flight, then supersede it before its response lands.
	go sess.Submit(ctx, typed(t, "slow"))
	time.Sleep(30 * time.Millisecond)
	sess.Submit(ctx, typed(t, "latest"))

	if got := d.wait(t); got != "latest" {
		t.Fatalf("delivered %q, want %q", got, "latest")
	}
	time.Sleep(200 * time.Millisecond)

	d.mu.Lock()
	defer d.mu.Unlock()
	for _, text := range d.texts {
		if text == "slow" {
			t.Errorf("stale response was delivered: %v", d.texts)
		}
	}
}

func TestSession_CloseCancelsPendingTimer(t *testing.T) {
	searcher := &recordingSearcher{}
	d := newDeliveries()
	sess := NewSession(searcher, 30*time.Millisecond, d.deliver)

	sess.Type(context.Background(), typed(t, "abandoned"))
	sess.Close()

	time.Sleep(100 * time.Millisecond)
	if seen := searcher.seen(); len(seen) != 0 {
		t.Errorf("expected no search after close, got %v", seen)
	}
}
