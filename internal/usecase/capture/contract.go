package capture

import (
	"context"
	"image"
)

// Facing is the preferred camera direction.
type Facing string

const (
	// FacingBack prefers the rear camera.
	FacingBack Facing = "environment"
	// FacingFront prefers the user-facing camera.
	FacingFront Facing = "user"
)

// Constraints are resolution and facing hints passed to the platform
// media API. Zero dimensions leave the resolution unconstrained.
type Constraints struct {
	Facing    Facing
	MaxWidth  int
	MaxHeight int
}

// Stream is a live camera stream. Stop releases the hardware and must be
// safe to call more than once.
type Stream interface {
	Frame() (image.Image, error)
	Stop()
}

// Camera acquires live streams from the platform media-capture API.
// Open must map permission denial to domain.ErrCameraDenied and a missing
// device to domain.ErrCameraUnavailable.
type Camera interface {
	Open(ctx context.Context, c Constraints) (Stream, error)
}
