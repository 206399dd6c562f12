package domain

import "errors"

var (
	// ErrEntryNotFound signals a missing journal entry.
	ErrEntryNotFound = errors.New("entry not found")
	// ErrBatchInProgress signals an upload batch started while another is still settling.
	ErrBatchInProgress = errors.New("upload batch already in progress")
	// ErrFileTooLarge signals a file above the configured size ceiling.
	ErrFileTooLarge = errors.New("file too large")
	// ErrUnsupportedMediaType signals a file outside the accepted-type allowlist.
	ErrUnsupportedMediaType = errors.New("unsupported media type")
	// ErrTooManyFiles signals a batch above the configured file count limit.
	ErrTooManyFiles = errors.New("too many files")
	// ErrInvalidEntry signals entry input that fails validation.
	ErrInvalidEntry = errors.New("invalid entry")
	// ErrSearchUnavailable signals a failure of the search backend itself,
	// as opposed to a zero-result success.
	ErrSearchUnavailable = errors.New("search unavailable")
	// ErrInvalidFilter signals an invalid search filter combination.
	ErrInvalidFilter = errors.New("invalid search filter")
	// ErrCameraDenied signals a rejected camera permission request.
	ErrCameraDenied = errors.New("camera permission denied")
	// ErrCameraUnavailable signals that no camera device is available.
	ErrCameraUnavailable = errors.New("camera unavailable")
	// ErrCameraBusy signals a capture attempted outside the streaming state.
	ErrCameraBusy = errors.New("camera not streaming")
	// ErrTranscription signals a transcription provider failure.
	ErrTranscription = errors.New("transcription failed")
	// ErrBackendUnavailable signals a journal backend API failure.
	ErrBackendUnavailable = errors.New("journal backend unavailable")
)
