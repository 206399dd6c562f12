// Package query holds the search query value object and its typed filters.
package query

import (
	"fmt"
	"time"

	"github.com/keepsakehq/keepsake/internal/domain"
	"github.com/keepsakehq/keepsake/internal/domain/entry"
)

// Mode selects the search endpoint behavior.
type Mode string

const (
	// Semantic returns ranked results only.
	Semantic Mode = "semantic"
	// Conversational additionally returns a generated answer with citations.
	Conversational Mode = "conversational"
)

// MaxLimit bounds the result count requested from the search backend.
const MaxLimit = 50

// DateRange restricts results to entries created within [From, To].
// Either bound may be zero (open-ended).
type DateRange struct {
	From time.Time
	To   time.Time
}

// IsZero reports whether both bounds are unset.
func (r DateRange) IsZero() bool { return r.From.IsZero() && r.To.IsZero() }

// Filters enumerates the legal structured filter fields. Unlike an open
// key bag, unknown filters cannot be smuggled in.
type Filters struct {
	Tags     []string
	People   []string
	Dates    DateRange
	FeedType entry.Privacy
	hasFeed  bool
}

// NewFilters validates and creates a filter set. feedType may be empty.
func NewFilters(tags, people []string, dates DateRange, feedType string) (Filters, error) {
	f := Filters{Tags: tags, People: people, Dates: dates}
	if feedType != "" {
		p, err := entry.ParsePrivacy(feedType)
		if err != nil {
			return Filters{}, fmt.Errorf("%w: %w", domain.ErrInvalidFilter, err)
		}
		f.FeedType = p
		f.hasFeed = true
	}
	if !dates.IsZero() && !dates.From.IsZero() && !dates.To.IsZero() && dates.To.Before(dates.From) {
		return Filters{}, fmt.Errorf("%w: date range end before start", domain.ErrInvalidFilter)
	}
	return f, nil
}

// HasFeedType reports whether a feed-type filter was set.
func (f Filters) HasFeedType() bool { return f.hasFeed }

// IsEmpty reports whether no filter is set.
func (f Filters) IsEmpty() bool {
	return len(f.Tags) == 0 && len(f.People) == 0 && f.Dates.IsZero() && !f.hasFeed
}

// Query is a validated search request.
type Query struct {
	text    string
	mode    Mode
	limit   int
	filters Filters
}

// New validates and creates a Query. limit 0 means backend default.
func New(text string, mode Mode, limit int, filters Filters) (Query, error) {
	if text == "" {
		return Query{}, fmt.Errorf("query text is required")
	}
	switch mode {
	case "":
		mode = Semantic
	case Semantic, Conversational:
	default:
		return Query{}, fmt.Errorf("unknown search mode %q", mode)
	}
	if limit < 0 || limit > MaxLimit {
		return Query{}, fmt.Errorf("limit must be between 0 and %d", MaxLimit)
	}
	return Query{text: text, mode: mode, limit: limit, filters: filters}, nil
}

// Text returns the free-text query.
func (q *Query) Text() string { return q.text }

// Mode returns the search mode.
func (q *Query) Mode() Mode { return q.mode }

// Limit returns the requested result count (0 = backend default).
func (q *Query) Limit() int { return q.limit }

// Filters returns the structured filters.
func (q *Query) Filters() Filters { return q.filters }
