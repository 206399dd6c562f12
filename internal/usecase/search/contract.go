package search

import (
	"context"

	"github.com/keepsakehq/keepsake/internal/domain/entry"
	"github.com/keepsakehq/keepsake/internal/domain/search/query"
	"github.com/keepsakehq/keepsake/internal/domain/search/result"
)

// GatewayResponse is the raw outcome of one search call: ranked hits plus
// the conversational answer when the mode produces one.
type GatewayResponse struct {
	Results       []result.Result
	Answer        *result.Answer
	TotalResults  int
	ExecutionTime float64
}

// Gateway calls the external semantic/conversational search endpoint.
type Gateway interface {
	Search(ctx context.Context, q query.Query) (GatewayResponse, error)
}

// BulkFetcher retrieves full entry records by identifier. Return order is
// not guaranteed; missing identifiers are simply absent from the result.
type BulkFetcher interface {
	BulkFetch(ctx context.Context, ids []string) ([]entry.Entry, error)
}

// HistoryRecorder persists executed query texts.
type HistoryRecorder interface {
	Record(ctx context.Context, text string) error
}
