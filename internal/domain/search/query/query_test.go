package query

import (
	"errors"
	"testing"
	"time"

	"github.com/keepsakehq/keepsake/internal/domain"
)

func TestNew_DefaultsToSemantic(t *testing.T) {
	q, err := New("first snow", "", 0, Filters{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.Mode() != Semantic {
		t.Errorf("expected semantic default, got %s", q.Mode())
	}
}

func TestNew_RequiresText(t *testing.T) {
	if _, err := New("", Semantic, 0, Filters{}); err == nil {
		t.Fatal("expected error for empty query text")
	}
}

func TestNew_RejectsUnknownMode(t *testing.T) {
	if _, err := New("q", Mode("fuzzy"), 0, Filters{}); err == nil {
		t.Fatal("expected error for unknown mode")
	}
}

func TestNew_LimitBounds(t *testing.T) {
	if _, err := New("q", Semantic, MaxLimit+1, Filters{}); err == nil {
		t.Fatal("expected error for limit above maximum")
	}
	if _, err := New("q", Semantic, -1, Filters{}); err == nil {
		t.Fatal("expected error for negative limit")
	}
}

func TestNewFilters_FeedType(t *testing.T) {
	f, err := NewFilters(nil, nil, DateRange{}, "public")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !f.HasFeedType() {
		t.Error("expected feed-type filter set")
	}

	if _, err := NewFilters(nil, nil, DateRange{}, "secret"); err == nil {
		t.Fatal("expected error for unknown feed type")
	}
}

func TestNewFilters_InvalidDateRange(t *testing.T) {
	now := time.Now()
	_, err := NewFilters(nil, nil, DateRange{From: now, To: now.Add(-time.Hour)}, "")
	if err == nil {
		t.Fatal("expected error for inverted date range")
	}
	if !errors.Is(err, domain.ErrInvalidFilter) {
		t.Errorf("expected ErrInvalidFilter, got %v", err)
	}
}

func TestFilters_IsEmpty(t *testing.T) {
	if !(Filters{}).IsEmpty() {
		t.Error("zero filters must be empty")
	}
	f, _ := NewFilters([]string{"winter"}, nil, DateRange{}, "")
	if f.IsEmpty() {
		t.Error("tag filter must not be empty")
	}
}
