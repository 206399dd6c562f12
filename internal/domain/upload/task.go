// Package upload holds the value objects of the media upload pipeline.
package upload

import (
	"fmt"
	"io"
)

// Status is the lifecycle state of an upload task.
type Status string

const (
	// StatusUploading is the initial, in-flight state.
	StatusUploading Status = "uploading"
	// StatusCompleted is the terminal success state.
	StatusCompleted Status = "completed"
	// StatusError is the terminal failure state.
	StatusError Status = "error"
)

// File is a selected or captured file handed to the orchestrator.
type File struct {
	Name    string
	MIME    string
	Size    int64
	Content io.Reader
}

// StoredMedia describes a finalized object: its permanent path plus the
// metadata registered with the entry. The finalize response may normalize
// MIME and name.
type StoredMedia struct {
	Path string `json:"objectPath"`
	MIME string `json:"mimeType"`
	Name string `json:"originalName"`
}

// Task tracks one file through the pipeline. A task is owned by a single
// upload worker until the batch settles; callers observe it through the
// orchestrator's progress callback and the settled batch.
type Task struct {
	name     string
	mime     string
	size     int64
	progress int
	status   Status
	path     string
	errMsg   string
}

// NewTask creates a task in the uploading state.
func NewTask(name, mime string, size int64) *Task {
	return &Task{name: name, mime: mime, size: size, status: StatusUploading}
}

// Name returns the original file name.
func (t *Task) Name() string { return t.name }

// MIME returns the file MIME type.
func (t *Task) MIME() string { return t.mime }

// Size returns the file size in bytes.
func (t *Task) Size() int64 { return t.size }

// Progress returns the transfer progress percent in [0,100].
func (t *Task) Progress() int { return t.progress }

// Status returns the task lifecycle state.
func (t *Task) Status() Status { return t.status }

// Path returns the permanent object path once the transfer completed.
func (t *Task) Path() string { return t.path }

// ErrMessage returns the human-readable failure message, if any.
func (t *Task) ErrMessage() string { return t.errMsg }

// Advance moves transfer progress forward. Progress never regresses and is
// held below 100 until Complete confirms the transfer.
func (t *Task) Advance(pct int) {
	if t.status != StatusUploading {
		return
	}
	if pct > 99 {
		pct = 99
	}
	if pct > t.progress {
		t.progress = pct
	}
}

// Complete marks the transfer confirmed and pins progress to exactly 100.
func (t *Task) Complete(path string) {
	if t.status != StatusUploading {
		return
	}
	t.status = StatusCompleted
	t.progress = 100
	t.path = path
}

// Fail marks the task errored with a human-readable message. Terminal.
func (t *Task) Fail(msg string) {
	if t.status != StatusUploading {
		return
	}
	t.status = StatusError
	t.errMsg = msg
}

// MergeMetadata folds normalized finalize metadata back into the task.
// Empty response fields keep the task's current values.
func (t *Task) MergeMetadata(m StoredMedia) {
	if m.MIME != "" {
		t.mime = m.MIME
	}
	if m.Name != "" {
		t.name = m.Name
	}
	if m.Path != "" {
		t.path = m.Path
	}
}

// Media returns the metadata-complete view of a finalized task.
func (t *Task) Media() StoredMedia {
	return StoredMedia{Path: t.path, MIME: t.mime, Name: t.name}
}

// RejectedFile reports a file that failed validation before any network call.
type RejectedFile struct {
	Name   string
	Reason string
}

func (r RejectedFile) String() string {
	return fmt.Sprintf("%s: %s", r.Name, r.Reason)
}
