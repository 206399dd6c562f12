package chi

import (
	"context"

	historyuc "github.com/keepsakehq/keepsake/internal/usecase/history"
)

// HistoryRecorder adapts the history service to the search orchestrator's
// recorder contract, resolving the user from the request context.
type HistoryRecorder struct {
	hist *historyuc.Service
}

// NewHistoryRecorder creates a context-scoped history recorder.
func NewHistoryRecorder(hist *historyuc.Service) *HistoryRecorder {
	return &HistoryRecorder{hist: hist}
}

// Record stores the query under the calling user's history.
func (h *HistoryRecorder) Record(ctx context.Context, text string) error {
	return h.hist.Record(ctx, UserFromContext(ctx), text)
}
