package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/example/facelogin/internal/logging"
	"github.com/example/facelogin/internal/usecase"
)

// Low confidence and unknown faces share one code and message so a caller
// cannot tell which part of the check failed.
const authFailedMessage = "We could not recognise you. Try again or log in normally."

type errorMapping struct {
	target  error
	status  int
	code    string
	message string
}

var errorMappings = []errorMapping{
	{usecase.ErrUnauthorized, http.StatusUnauthorized, "unauthorized", "You must be logged in to capture your face."},
	{usecase.ErrInvalidImage, http.StatusBadRequest, "bad_image", "The image value is not usable. Try again!"},
	{usecase.ErrAlreadyAuthenticated, http.StatusBadRequest, "logged_in", "You are already logged in!"},
	{usecase.ErrMissingParameters, http.StatusBadRequest, "missing_params", "Missing parameter, you must provide a stored reference and a challenge image."},
	{usecase.ErrRemoteUnavailable, http.StatusBadRequest, "request", "The face recognition service could not be reached."},
	{usecase.ErrNoFaceDetected, http.StatusBadRequest, "no_face", "No face detected in the image."},
	{usecase.ErrLowConfidence, http.StatusBadRequest, "auth", authFailedMessage},
	{usecase.ErrNoMatch, http.StatusBadRequest, "auth", authFailedMessage},
	{usecase.ErrInvalidCredentials, http.StatusBadRequest, "invalid_credentials", "Invalid login or password."},
}

// writeError converts err into the {error, message} body every endpoint uses.
func (h *Handlers) writeError(c *gin.Context, err error) {
	var rejected *usecase.RemoteRejectedError
	if errors.As(err, &rejected) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "api", "message": rejected.Message})
		return
	}

	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			c.JSON(m.status, gin.H{"error": m.code, "message": m.message})
			return
		}
	}

	logging.WithOperation(h.logger, "handlers."+c.FullPath(), logging.RequestIDFromContext(c.Request.Context())).
		Error("request failed", zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal", "message": "Something went wrong, try again later."})
}
