// Package result holds search result value objects.
package result

import "github.com/keepsakehq/keepsake/internal/domain/entry"

// Result is one ranked hit from the search backend.
type Result struct {
	entryID     string
	similarity  float64
	snippet     string
	title       string
	matchReason string
}

// New creates a Result.
func New(entryID string, similarity float64, snippet, title, matchReason string) Result {
	return Result{
		entryID:     entryID,
		similarity:  similarity,
		snippet:     snippet,
		title:       title,
		matchReason: matchReason,
	}
}

// EntryID returns the matched entry identifier.
func (r *Result) EntryID() string { return r.entryID }

// Similarity returns the backend similarity score.
func (r *Result) Similarity() float64 { return r.similarity }

// Snippet returns the matched text fragment.
func (r *Result) Snippet() string { return r.snippet }

// Title returns the entry title, when the backend includes it.
func (r *Result) Title() string { return r.title }

// MatchReason returns the backend's match explanation.
func (r *Result) MatchReason() string { return r.matchReason }

// Hydrated pairs a ranked result with its full entry record.
type Hydrated struct {
	Result Result
	Entry  entry.Entry
}

// Answer is the conversational-mode payload: a generated answer with the
// entries it cites and the backend's confidence.
type Answer struct {
	Text            string
	RelevantEntries []string
	Confidence      float64
}

// Response is a settled search: ranked hydrated entries plus the optional
// conversational answer. An empty Entries slice is a normal zero-result
// outcome, not a failure.
type Response struct {
	Query         string
	Entries       []Hydrated
	Answer        *Answer
	TotalResults  int
	ExecutionTime float64
}
