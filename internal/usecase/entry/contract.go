package entry

import (
	"context"
	"io"

	dom "github.com/keepsakehq/keepsake/internal/domain/entry"
	domupload "github.com/keepsakehq/keepsake/internal/domain/upload"
)

// Transcriber turns recorded audio into text.
type Transcriber interface {
	Transcribe(ctx context.Context, filename string, audio io.Reader) (string, error)
}

// Summarizer derives a short title from transcript text.
type Summarizer interface {
	Summarize(ctx context.Context, text string) (string, error)
}

// AudioStore uploads the recording and returns its permanent object path.
type AudioStore interface {
	StoreAudio(ctx context.Context, f domupload.File) (string, error)
}

// Writer persists entries through the journal backend.
type Writer interface {
	CreateEntry(ctx context.Context, e dom.Entry) (dom.Entry, error)
}
