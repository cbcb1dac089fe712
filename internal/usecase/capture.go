package usecase

import (
	"context"

	"go.uber.org/zap"

	"github.com/example/facelogin/internal/faceapi"
	"github.com/example/facelogin/internal/imagecodec"
	"github.com/example/facelogin/internal/logging"
)

// CaptureResult is returned to the enrolling client. StoredReference must be
// kept client side and presented on every later challenge.
type CaptureResult struct {
	StoredReference string
	UserID          uint
}

// CaptureStatus summarises a user's enrollments.
type CaptureStatus struct {
	Enrollments int64
}

// CaptureUseCase enrolls and removes face references for logged in users.
type CaptureUseCase struct {
	tokens   TokenStore
	detector faceapi.Client
	secret   []byte
	logger   *zap.Logger
}

// NewCaptureUseCase constructs a new use case instance.
func NewCaptureUseCase(tokens TokenStore, detector faceapi.Client, tokenSecret string, logger *zap.Logger) *CaptureUseCase {
	return &CaptureUseCase{
		tokens:   tokens,
		detector: detector,
		secret:   []byte(tokenSecret),
		logger:   logger.Named("capture_usecase"),
	}
}

// Capture detects a face in image and appends its token to the acting
// user's enrollments. A zero actingUserID means the caller is anonymous.
func (uc *CaptureUseCase) Capture(ctx context.Context, actingUserID uint, image string) (*CaptureResult, error) {
	opLogger := logging.WithOperation(uc.logger, "usecase.capture", logging.RequestIDFromContext(ctx))

	if actingUserID == 0 {
		return nil, ErrUnauthorized
	}

	data, err := imagecodec.DecodeDataURI(image)
	if err != nil {
		return nil, ErrInvalidImage
	}

	faces, err := uc.detector.Detect(ctx, data)
	if err != nil {
		mapped := mapRemoteError(err)
		opLogger.Warn("face detection failed", zap.Uint("user_id", actingUserID), zap.Error(err))
		return nil, mapped
	}
	if len(faces) == 0 {
		return nil, ErrNoFaceDetected
	}
	if len(faces) > 1 {
		opLogger.Info("several faces detected, enrolling the first", zap.Int("faces", len(faces)))
	}

	reference := faces[0].Reference
	if err := uc.tokens.AppendToken(ctx, actingUserID, DeriveFaceToken(reference, uc.secret)); err != nil {
		opLogger.Error("failed to store face token", zap.Uint("user_id", actingUserID), zap.Error(err))
		return nil, err
	}

	opLogger.Info("face enrolled", zap.Uint("user_id", actingUserID), zap.Int("reference_len", len(reference)))
	return &CaptureResult{StoredReference: reference, UserID: actingUserID}, nil
}

// Revoke removes every enrollment of the acting user. Revoking a user with
// nothing enrolled succeeds.
func (uc *CaptureUseCase) Revoke(ctx context.Context, actingUserID uint) error {
	if actingUserID == 0 {
		return ErrUnauthorized
	}

	deleted, err := uc.tokens.DeleteTokens(ctx, actingUserID)
	if err != nil {
		logging.WithOperation(uc.logger, "usecase.revoke", logging.RequestIDFromContext(ctx)).
			Error("failed to delete face tokens", zap.Uint("user_id", actingUserID), zap.Error(err))
		return err
	}

	logging.WithOperation(uc.logger, "usecase.revoke", logging.RequestIDFromContext(ctx)).
		Info("face login disabled", zap.Uint("user_id", actingUserID), zap.Int64("deleted", deleted))
	return nil
}

// Status reports how many references the acting user has enrolled.
func (uc *CaptureUseCase) Status(ctx context.Context, actingUserID uint) (*CaptureStatus, error) {
	if actingUserID == 0 {
		return nil, ErrUnauthorized
	}
	count, err := uc.tokens.CountTokens(ctx, actingUserID)
	if err != nil {
		return nil, err
	}
	return &CaptureStatus{Enrollments: count}, nil
}
