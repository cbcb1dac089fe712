// Package session issues login sessions as signed JWTs whose ids are
// registered in Redis, so a session can be revoked before it expires.
package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/facelogin/internal/logging"
	"github.com/example/facelogin/internal/retry"
)

// ErrInvalidSession covers malformed, expired, foreign and revoked tokens.
var ErrInvalidSession = errors.New("invalid session")

// Session is a freshly issued login.
type Session struct {
	ID        string
	UserID    uint
	Token     string
	ExpiresAt time.Time
}

// Manager issues, validates and revokes sessions.
type Manager struct {
	store    Store
	secret   []byte
	audience string
	ttl      time.Duration
	logger   *zap.Logger
	policy   retry.Policy
	now      func() time.Time
}

// NewManager constructs a session manager signing with secret.
func NewManager(store Store, secret, audience string, ttl time.Duration, logger *zap.Logger) *Manager {
	return &Manager{
		store:    store,
		secret:   []byte(secret),
		audience: audience,
		ttl:      ttl,
		logger:   logger.Named("session"),
		policy:   retry.DefaultPolicy,
		now:      time.Now,
	}
}

// TTL is the lifetime of issued sessions.
func (m *Manager) TTL() time.Duration {
	return m.ttl
}

// Issue creates a session for userID.
func (m *Manager) Issue(ctx context.Context, userID uint) (*Session, error) {
	now := m.now()
	sess := &Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		ExpiresAt: now.Add(m.ttl),
	}

	claims := jwt.RegisteredClaims{
		ID:        sess.ID,
		Subject:   strconv.FormatUint(uint64(userID), 10),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(sess.ExpiresAt),
	}
	if m.audience != "" {
		claims.Audience = jwt.ClaimStrings{m.audience}
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return nil, logging.NewOperationError("session.sign", logging.RequestIDFromContext(ctx), err)
	}
	sess.Token = token

	if err := retry.Do(ctx, m.logger, m.policy, "session.store", func() error {
		return m.store.Set(ctx, key(sess.ID), claims.Subject, m.ttl)
	}); err != nil {
		return nil, err
	}

	logging.WithOperation(m.logger, "session.issue", logging.RequestIDFromContext(ctx)).
		Info("session issued", zap.Uint("user_id", userID), zap.Time("expires_at", sess.ExpiresAt))
	return sess, nil
}

// Validate returns the user id behind token. Unknown or revoked sessions
// yield ErrInvalidSession; storage failures are returned as is.
func (m *Manager) Validate(ctx context.Context, token string) (uint, error) {
	claims, err := m.parse(token)
	if err != nil {
		return 0, err
	}

	var stored string
	err = retry.Do(ctx, m.logger, m.policy, "session.lookup", func() error {
		value, err := m.store.Get(ctx, key(claims.ID))
		if err != nil {
			return err
		}
		stored = value
		return nil
	})
	if errors.Is(err, redis.Nil) {
		return 0, ErrInvalidSession
	}
	if err != nil {
		return 0, err
	}
	if stored != claims.Subject {
		return 0, ErrInvalidSession
	}

	userID, err := strconv.ParseUint(claims.Subject, 10, 64)
	if err != nil {
		return 0, ErrInvalidSession
	}
	return uint(userID), nil
}

// Revoke forgets the session behind token. Tokens that do not parse are
// already unusable, so they are ignored.
func (m *Manager) Revoke(ctx context.Context, token string) error {
	claims, err := m.parse(token)
	if err != nil {
		return nil
	}
	return retry.Do(ctx, m.logger, m.policy, "session.revoke", func() error {
		return m.store.Del(ctx, key(claims.ID))
	})
}

func (m *Manager) parse(token string) (*jwt.RegisteredClaims, error) {
	if token == "" {
		return nil, ErrInvalidSession
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	}
	if m.audience != "" {
		opts = append(opts, jwt.WithAudience(m.audience))
	}

	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return m.secret, nil
	}, opts...)
	if err != nil || !parsed.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}
	if claims.ID == "" || claims.Subject == "" {
		return nil, ErrInvalidSession
	}
	return claims, nil
}

func key(sessionID string) string {
	return "session:" + sessionID
}
