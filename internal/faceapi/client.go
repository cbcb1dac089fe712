// Package faceapi talks to the remote face detection and comparison service.
package faceapi

import (
	"context"
	"errors"
	"fmt"
)

// Face is one face found by the detector. Reference is the opaque id the
// remote service hands out for it.
type Face struct {
	Reference string
}

// Comparison is the outcome of comparing a stored reference with a fresh
// image. Confidence is nil when no face was found in the image.
type Comparison struct {
	Confidence *float64
}

// Client exposes the two remote operations the login flow needs.
type Client interface {
	Detect(ctx context.Context, image []byte) ([]Face, error)
	Compare(ctx context.Context, reference string, image []byte) (*Comparison, error)
}

// ErrUnavailable marks transport failures, including timeouts.
var ErrUnavailable = errors.New("face api unavailable")

// APIError is an error reported by the remote service itself.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("face api error (status %d): %s", e.StatusCode, e.Message)
}
