package usecase

import (
	"errors"

	"github.com/example/facelogin/internal/faceapi"
)

// mapRemoteError folds face API failures into the domain taxonomy. Anything
// that is neither a transport failure nor a remote rejection is returned
// unchanged.
func mapRemoteError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, faceapi.ErrUnavailable) {
		return errors.Join(ErrRemoteUnavailable, err)
	}
	var apiErr *faceapi.APIError
	if errors.As(err, &apiErr) {
		return &RemoteRejectedError{StatusCode: apiErr.StatusCode, Message: apiErr.Message}
	}
	return err
}
