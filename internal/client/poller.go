package client

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/example/facelogin/internal/imagecodec"
)

// ErrAttemptsExhausted means every attempt ended in a retryable failure; the
// caller should fall back to the password form.
var ErrAttemptsExhausted = errors.New("face login attempts exhausted")

// Defaults mirror the login page: first frame after 100ms, then one every
// two seconds, five frames in total, each at half the camera resolution.
const (
	DefaultAttempts     = 5
	DefaultInterval     = 2 * time.Second
	DefaultInitialDelay = 100 * time.Millisecond
	DefaultScale        = 0.5
)

// FrameSource yields camera frames as encoded PNG or JPEG images.
type FrameSource interface {
	NextFrame(ctx context.Context) ([]byte, error)
}

// LoginResult is a successful face login.
type LoginResult struct {
	User     User
	Redirect string
	Session  string
	Attempts int
}

// Poller drives repeated challenge rounds until one succeeds, a fatal error
// occurs or the attempts run out.
type Poller struct {
	Client       *Client
	Attempts     int
	Interval     time.Duration
	InitialDelay time.Duration
	Scale        float64
	// RedirectTo, when set, wins over the redirect the server returns.
	RedirectTo string
	// OnAttempt is called after every round with its outcome.
	OnAttempt func(attempt int, err error)
	Logger    *zap.Logger
}

// NewPoller returns a poller with the default schedule.
func NewPoller(c *Client, logger *zap.Logger) *Poller {
	return &Poller{
		Client:       c,
		Attempts:     DefaultAttempts,
		Interval:     DefaultInterval,
		InitialDelay: DefaultInitialDelay,
		Scale:        DefaultScale,
		Logger:       logger,
	}
}

// Run polls with frames against storedID.
func (p *Poller) Run(ctx context.Context, storedID string, frames FrameSource) (*LoginResult, error) {
	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	delay := p.InitialDelay
	var lastErr error
	for attempt := 1; attempt <= p.Attempts; attempt++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
		delay = p.Interval

		resp, err := p.attempt(ctx, storedID, frames)
		if p.OnAttempt != nil {
			p.OnAttempt(attempt, err)
		}
		if err == nil {
			redirect := resp.Redirect
			if p.RedirectTo != "" {
				redirect = p.RedirectTo
			}
			return &LoginResult{User: resp.User, Redirect: redirect, Session: resp.Session, Attempts: attempt}, nil
		}

		var apiErr *APIError
		if !errors.As(err, &apiErr) || !apiErr.Retryable() {
			logger.Warn("face login stopped", zap.Int("attempt", attempt), zap.Error(err))
			return nil, err
		}
		logger.Debug("face login attempt failed", zap.Int("attempt", attempt), zap.String("code", apiErr.Code))
		lastErr = err
	}
	return nil, fmt.Errorf("%w: %v", ErrAttemptsExhausted, lastErr)
}

func (p *Poller) attempt(ctx context.Context, storedID string, frames FrameSource) (*AuthResponse, error) {
	raw, err := frames.NextFrame(ctx)
	if err != nil {
		return nil, fmt.Errorf("capture frame: %w", err)
	}
	frame, err := imagecodec.PrepareFrame(raw, p.Scale)
	if err != nil {
		return nil, err
	}
	return p.Client.Authenticate(ctx, storedID, frame)
}

// FileFrames replays image files in order, starting over when it runs out.
type FileFrames struct {
	paths []string
	next  int
}

// NewFileFrames returns a FileFrames over paths.
func NewFileFrames(paths ...string) *FileFrames {
	return &FileFrames{paths: paths}
}

func (f *FileFrames) NextFrame(ctx context.Context) ([]byte, error) {
	if len(f.paths) == 0 {
		return nil, errors.New("no frames available")
	}
	path := f.paths[f.next%len(f.paths)]
	f.next++
	return os.ReadFile(path)
}
