package upload

import (
	"context"

	domupload "github.com/keepsakehq/keepsake/internal/domain/upload"
)

// Destination is a short-lived upload target issued by the object store:
// a presigned URL plus the permanent path the object will live at.
type Destination struct {
	UploadURL  string
	ObjectPath string
}

// DestinationIssuer requests upload destinations from the object store.
type DestinationIssuer interface {
	IssueDestination(ctx context.Context, entryID string) (Destination, error)
}

// Transferrer streams file bytes to a destination. progress receives the
// transfer percent in [0,100] as bytes move; it may be called many times.
type Transferrer interface {
	Transfer(ctx context.Context, dest Destination, file domupload.File, progress func(pct int)) error
}

// Finalizer registers a stored object with its entry. The response may
// carry normalized metadata.
type Finalizer interface {
	FinalizeMedia(ctx context.Context, entryID string, media domupload.StoredMedia) (domupload.StoredMedia, error)
}
