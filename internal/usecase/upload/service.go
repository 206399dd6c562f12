// Package upload orchestrates the media upload pipeline: validation,
// destination issue, streamed transfer with progress, and finalize.
package upload

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/keepsakehq/keepsake/internal/domain"
	"github.com/keepsakehq/keepsake/internal/domain/media"
	domupload "github.com/keepsakehq/keepsake/internal/domain/upload"
	"github.com/keepsakehq/keepsake/internal/metrics"
)

// DefaultMaxFiles is the default per-batch file count ceiling.
const DefaultMaxFiles = 10

// DefaultMaxFileSize is the default per-file size ceiling in bytes.
const DefaultMaxFileSize = 50 << 20

// Batch is the settled outcome of one upload run.
type Batch struct {
	// Tasks holds one slot per accepted file, in original selection order.
	// Index alignment is stable: a failed task keeps its slot.
	Tasks []*domupload.Task
	// Rejected lists files that failed validation. They never got a task
	// and never caused a network call.
	Rejected []domupload.RejectedFile
	// Paths lists stored object paths for completed transfers, in task order.
	Paths []string
	// Media lists metadata-complete records. Finalize success is the gate:
	// a file that transferred but failed finalize appears in Paths only.
	Media []domupload.StoredMedia
}

// ProgressFunc observes per-task progress. Calls for different indexes may
// arrive concurrently; calls for one index are ordered and non-decreasing.
type ProgressFunc func(index, pct int)

// Service runs upload batches. One batch at a time: a second Run while a
// batch is settling is rejected with domain.ErrBatchInProgress.
type Service struct {
	dests    DestinationIssuer
	transfer Transferrer
	fin      Finalizer

	maxFiles      int
	maxFileSize   int64
	acceptedTypes []string
	onProgress    ProgressFunc

	busy atomic.Bool
}

// New creates an upload service with default limits.
func New(dests DestinationIssuer, transfer Transferrer, fin Finalizer) *Service {
	return &Service{
		dests:         dests,
		transfer:      transfer,
		fin:           fin,
		maxFiles:      DefaultMaxFiles,
		maxFileSize:   DefaultMaxFileSize,
		acceptedTypes: []string{"image/*", "video/*"},
	}
}

// WithLimits configures the batch file count and per-file size ceilings.
func (s *Service) WithLimits(maxFiles int, maxFileSize int64) *Service {
	if maxFiles > 0 {
		s.maxFiles = maxFiles
	}
	if maxFileSize > 0 {
		s.maxFileSize = maxFileSize
	}
	return s
}

// WithAcceptedTypes configures the MIME allowlist. Entries may be exact
// ("image/png") or a family pattern ("image/*").
func (s *Service) WithAcceptedTypes(types []string) *Service {
	if len(types) > 0 {
		s.acceptedTypes = types
	}
	return s
}

// WithProgress configures the progress observer.
func (s *Service) WithProgress(fn ProgressFunc) *Service {
	s.onProgress = fn
	return s
}

// Run uploads a batch of files for an entry. Files failing validation are
// rejected up front and cause no network traffic. Accepted files are
// transferred concurrently; a failure in one file never aborts its siblings.
// Cancelling ctx aborts in-flight transfers and settles those tasks errored.
func (s *Service) Run(ctx context.Context, entryID string, files []domupload.File) (*Batch, error) {
	if !s.busy.CompareAndSwap(false, true) {
		return nil, domain.ErrBatchInProgress
	}
	defer s.busy.Store(false)

	if len(files) > s.maxFiles {
		return nil, fmt.Errorf("batch of %d exceeds %d files: %w", len(files), s.maxFiles, domain.ErrTooManyFiles)
	}

	batch := &Batch{}
	accepted := make([]domupload.File, 0, len(files))
	for _, f := range files {
		if reason, ok := s.validate(f); !ok {
			batch.Rejected = append(batch.Rejected, domupload.RejectedFile{Name: f.Name, Reason: reason})
			metrics.UploadFilesTotal.WithLabelValues("rejected").Inc()
			continue
		}
		accepted = append(accepted, f)
		batch.Tasks = append(batch.Tasks, domupload.NewTask(f.Name, f.MIME, f.Size))
	}

	// Каждая горутина владеет только своим слотом.
	finalized := make([]bool, len(accepted))
	var wg sync.WaitGroup
	for i := range accepted {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			finalized[i] = s.runOne(ctx, entryID, accepted[i], batch.Tasks[i], i)
		}(i)
	}
	wg.Wait()

	for i, t := range batch.Tasks {
		if t.Status() != domupload.StatusCompleted {
			metrics.UploadFilesTotal.WithLabelValues("error").Inc()
			continue
		}
		metrics.UploadFilesTotal.WithLabelValues("completed").Inc()
		batch.Paths = append(batch.Paths, t.Path())
		if finalized[i] {
			batch.Media = append(batch.Media, t.Media())
		}
	}
	return batch, nil
}

// runOne drives a single task through destination, transfer, and finalize.
// Reports whether finalize succeeded.
func (s *Service) runOne(ctx context.Context, entryID string, f domupload.File, task *domupload.Task, idx int) bool {
	dest, err := s.dests.IssueDestination(ctx, entryID)
	if err != nil {
		task.Fail(fmt.Sprintf("request upload destination: %v", err))
		return false
	}

	err = s.transfer.Transfer(ctx, dest, f, func(pct int) {
		task.Advance(pct)
		s.notify(idx, task.Progress())
	})
	if err != nil {
		task.Fail(fmt.Sprintf("transfer %s: %v", f.Name, err))
		return false
	}

	task.Complete(dest.ObjectPath)
	s.notify(idx, task.Progress())

	normalized, err := s.fin.FinalizeMedia(ctx, entryID, task.Media())
	if err != nil {
		// Transfer stands; the file just stays out of the enriched list.
		return false
	}
	task.MergeMetadata(normalized)
	return true
}

func (s *Service) notify(idx, pct int) {
	if s.onProgress != nil {
		s.onProgress(idx, pct)
	}
}

// validate checks a file against the size ceiling and MIME allowlist.
func (s *Service) validate(f domupload.File) (string, bool) {
	if f.Size > s.maxFileSize {
		return fmt.Sprintf("file exceeds %d bytes", s.maxFileSize), false
	}
	if media.Classify(f.MIME, f.Name) == media.Unsupported {
		return fmt.Sprintf("unsupported media type %q", f.MIME), false
	}
	// Legacy files without stored MIME are gated by classification alone.
	if f.MIME != "" && !accepts(s.acceptedTypes, f.MIME) {
		return fmt.Sprintf("type %q not in accepted list", f.MIME), false
	}
	return "", true
}

// accepts matches a MIME type against an allowlist of exact types and
// family patterns like "image/*".
func accepts(allowed []string, mime string) bool {
	mime = strings.ToLower(strings.TrimSpace(mime))
	for _, a := range allowed {
		a = strings.ToLower(strings.TrimSpace(a))
		if a == mime {
			return true
		}
		if fam, ok := strings.CutSuffix(a, "/*"); ok && strings.HasPrefix(mime, fam+"/") {
			return true
		}
	}
	return false
}
