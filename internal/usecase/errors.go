package usecase

import (
	"errors"
	"fmt"
)

// Domain failures. All of them are user visible; infrastructure failures are
// returned as *logging.OperationError instead.
var (
	ErrInvalidImage         = errors.New("the image value is not usable")
	ErrUnauthorized         = errors.New("you must be logged in")
	ErrAlreadyAuthenticated = errors.New("you are already logged in")
	ErrMissingParameters    = errors.New("a stored reference and a challenge image are required")
	ErrRemoteUnavailable    = errors.New("face recognition service unavailable")
	ErrRemoteRejected       = errors.New("face recognition service rejected the request")
	ErrNoFaceDetected       = errors.New("no face detected")
	ErrLowConfidence        = errors.New("confidence score too low")
	ErrNoMatch              = errors.New("face not linked to any account")
	ErrInvalidCredentials   = errors.New("invalid login or password")
)

// RemoteRejectedError carries the message reported by the face service.
type RemoteRejectedError struct {
	StatusCode int
	Message    string
}

func (e *RemoteRejectedError) Error() string {
	return fmt.Sprintf("%v: %s", ErrRemoteRejected, e.Message)
}

func (e *RemoteRejectedError) Is(target error) bool {
	return target == ErrRemoteRejected
}

// LowConfidenceError carries the score that fell short of the threshold.
type LowConfidenceError struct {
	Score float64
}

func (e *LowConfidenceError) Error() string {
	return fmt.Sprintf("%v: %.2f", ErrLowConfidence, e.Score)
}

func (e *LowConfidenceError) Is(target error) bool {
	return target == ErrLowConfidence
}

// IsDomainError reports whether err belongs to the user facing taxonomy
// rather than to the infrastructure.
func IsDomainError(err error) bool {
	for _, target := range []error{
		ErrInvalidImage, ErrUnauthorized, ErrAlreadyAuthenticated, ErrMissingParameters,
		ErrRemoteUnavailable, ErrRemoteRejected, ErrNoFaceDetected, ErrLowConfidence,
		ErrNoMatch, ErrInvalidCredentials,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
