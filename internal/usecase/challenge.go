package usecase

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/example/facelogin/internal/faceapi"
	"github.com/example/facelogin/internal/imagecodec"
	"github.com/example/facelogin/internal/logging"
	"github.com/example/facelogin/internal/session"
)

// ConfidenceThreshold is the score (0-100) a comparison must strictly exceed.
const ConfidenceThreshold = 90.0

// ChallengeRequest is one poll round of a face login attempt.
type ChallengeRequest struct {
	// CallerUserID is non-zero when the caller already holds a session.
	CallerUserID    uint
	StoredReference string
	Challenge       string
}

// ChallengeResult describes a successful face login.
type ChallengeResult struct {
	User       UserView
	Session    *session.Session
	Redirect   string
	Confidence float64
}

// ChallengeUseCase logs anonymous callers in by comparing a fresh image with
// a previously enrolled face reference.
type ChallengeUseCase struct {
	tokens     TokenStore
	comparator faceapi.Client
	sessions   SessionIssuer
	secret     []byte
	redirect   string
	logger     *zap.Logger
}

// NewChallengeUseCase constructs a new use case instance. redirect is the
// post-login target handed back to the client.
func NewChallengeUseCase(tokens TokenStore, comparator faceapi.Client, sessions SessionIssuer, tokenSecret, redirect string, logger *zap.Logger) *ChallengeUseCase {
	return &ChallengeUseCase{
		tokens:     tokens,
		comparator: comparator,
		sessions:   sessions,
		secret:     []byte(tokenSecret),
		redirect:   redirect,
		logger:     logger.Named("challenge_usecase"),
	}
}

// Authenticate runs one challenge round. Nothing is written unless the
// round succeeds, in which case a session is issued.
func (uc *ChallengeUseCase) Authenticate(ctx context.Context, req ChallengeRequest) (*ChallengeResult, error) {
	opLogger := logging.WithOperation(uc.logger, "usecase.authenticate", logging.RequestIDFromContext(ctx))

	if req.CallerUserID != 0 {
		return nil, ErrAlreadyAuthenticated
	}

	reference := strings.TrimSpace(req.StoredReference)
	if reference == "" || strings.TrimSpace(req.Challenge) == "" {
		return nil, ErrMissingParameters
	}

	image, err := imagecodec.DecodeDataURI(req.Challenge)
	if err != nil {
		return nil, ErrInvalidImage
	}

	cmp, err := uc.comparator.Compare(ctx, reference, image)
	if err != nil {
		opLogger.Warn("face comparison failed", zap.Error(err))
		return nil, mapRemoteError(err)
	}
	if cmp.Confidence == nil {
		return nil, ErrNoFaceDetected
	}

	score := *cmp.Confidence
	if score <= ConfidenceThreshold {
		opLogger.Info("challenge below threshold", zap.Float64("confidence", score))
		return nil, &LowConfidenceError{Score: score}
	}

	users, err := uc.tokens.FindUsersByToken(ctx, DeriveFaceToken(reference, uc.secret))
	if err != nil {
		opLogger.Error("face token lookup failed", zap.Error(err))
		return nil, err
	}
	if len(users) == 0 {
		opLogger.Info("confident match without linked account", zap.Float64("confidence", score))
		return nil, ErrNoMatch
	}
	if len(users) > 1 {
		opLogger.Warn("face token shared by several users, using the oldest enrollment", zap.Int("users", len(users)))
	}

	user := users[0]
	sess, err := uc.sessions.Issue(ctx, user.ID)
	if err != nil {
		opLogger.Error("failed to issue session", zap.Uint("user_id", user.ID), zap.Error(err))
		return nil, err
	}

	opLogger.Info("face login succeeded", zap.Uint("user_id", user.ID), zap.Float64("confidence", score))
	return &ChallengeResult{
		User:       viewOf(&user),
		Session:    sess,
		Redirect:   uc.redirect,
		Confidence: score,
	}, nil
}
