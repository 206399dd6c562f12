// Package capture drives still-photo capture from a live camera stream:
// idle -> requesting-permission -> streaming -> (capturing -> idle) or
// (error -> idle). The stream is stopped on every exit path so the
// hardware lock is never leaked.
package capture

import (
	"bytes"
	"context"
	"fmt"
	"image/jpeg"
	"sync"
	"time"

	"github.com/keepsakehq/keepsake/internal/domain"
	domupload "github.com/keepsakehq/keepsake/internal/domain/upload"
)

// State is the adapter's lifecycle state.
type State string

const (
	// StateIdle means no stream is held.
	StateIdle State = "idle"
	// StateRequesting means a permission request is in flight.
	StateRequesting State = "requesting-permission"
	// StateStreaming means a live stream is held and a frame can be captured.
	StateStreaming State = "streaming"
	// StateCapturing means a frame grab is in progress.
	StateCapturing State = "capturing"
	// StateError means the last activation failed; Reset returns to idle.
	StateError State = "error"
)

// DefaultJPEGQuality is the encoder quality for captured frames.
const DefaultJPEGQuality = 85

// Adapter owns at most one live stream and produces capture files for the
// upload pipeline. Methods are safe for concurrent use.
type Adapter struct {
	cam     Camera
	quality int
	now     func() time.Time

	mu      sync.Mutex
	state   State
	stream  Stream
	lastErr string
}

// NewAdapter creates an idle capture adapter.
func NewAdapter(cam Camera) *Adapter {
	return &Adapter{cam: cam, quality: DefaultJPEGQuality, state: StateIdle, now: time.Now}
}

// WithQuality configures the JPEG encoder quality, 1..100.
func (a *Adapter) WithQuality(q int) *Adapter {
	if q >= 1 && q <= 100 {
		a.quality = q
	}
	return a
}

// State returns the current lifecycle state.
func (a *Adapter) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// LastError returns the message of the last failed activation.
func (a *Adapter) LastError() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastErr
}

// Start requests a live stream. Permission denial and missing hardware
// leave the adapter in the error state with a descriptive message; the
// caller falls back to manual file selection, never an automatic retry.
func (a *Adapter) Start(ctx context.Context, c Constraints) error {
	a.mu.Lock()
	if a.state != StateIdle && a.state != StateError {
		a.mu.Unlock()
		return fmt.Errorf("stream already active: %w", domain.ErrCameraBusy)
	}
	a.state = StateRequesting
	a.lastErr = ""
	a.mu.Unlock()

	stream, err := a.cam.Open(ctx, c)
	if err != nil {
		// Разрешение могло прийти уже после отказа: поток гасим всегда.
		if stream != nil {
			stream.Stop()
		}
		a.mu.Lock()
		a.state = StateError
		a.lastErr = err.Error()
		a.mu.Unlock()
		return err
	}

	a.mu.Lock()
	if a.state != StateRequesting {
		// Cancel landed while the permission request was in flight.
		a.mu.Unlock()
		stream.Stop()
		return fmt.Errorf("activation cancelled: %w", domain.ErrCameraUnavailable)
	}
	a.state = StateStreaming
	a.stream = stream
	a.mu.Unlock()
	return nil
}

// Capture grabs the current frame, encodes it as JPEG, and returns a file
// ready for the upload orchestrator's validation path. The stream is
// stopped whether the grab succeeds or fails.
func (a *Adapter) Capture(_ context.Context) (domupload.File, error) {
	a.mu.Lock()
	if a.state != StateStreaming {
		a.mu.Unlock()
		return domupload.File{}, fmt.Errorf("no active stream: %w", domain.ErrCameraUnavailable)
	}
	a.state = StateCapturing
	stream := a.stream
	a.mu.Unlock()

	frame, err := stream.Frame()
	stream.Stop()

	a.mu.Lock()
	a.stream = nil
	if err != nil {
		a.state = StateError
		a.lastErr = err.Error()
		a.mu.Unlock()
		return domupload.File{}, fmt.Errorf("grab frame: %w", err)
	}
	a.state = StateIdle
	a.mu.Unlock()

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, frame, &jpeg.Options{Quality: a.quality}); err != nil {
		return domupload.File{}, fmt.Errorf("encode frame: %w", err)
	}
	name := fmt.Sprintf("capture-%d.jpg", a.now().UnixMilli())
	return domupload.File{
		Name:    name,
		MIME:    "image/jpeg",
		Size:    int64(buf.Len()),
		Content: &buf,
	}, nil
}

// Cancel stops the stream, if any, and returns the adapter to idle. Safe
// to call in any state, including mid-permission-request teardown.
func (a *Adapter) Cancel() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.stream != nil {
		a.stream.Stop()
		a.stream = nil
	}
	a.state = StateIdle
	a.lastErr = ""
}
