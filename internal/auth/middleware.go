package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/example/facelogin/internal/logging"
	"github.com/example/facelogin/internal/session"
)

type contextKey string

const (
	userIDKey contextKey = "authUserID"
	tokenKey  contextKey = "authToken"
)

// SessionValidator resolves a session token to a user id.
type SessionValidator interface {
	Validate(ctx context.Context, token string) (uint, error)
}

// GetUserID retrieves the authenticated user from context.
func GetUserID(ctx context.Context) (uint, bool) {
	if ctx == nil {
		return 0, false
	}
	if value, ok := ctx.Value(userIDKey).(uint); ok && value != 0 {
		return value, true
	}
	return 0, false
}

// GetToken returns the session token the request was authenticated with.
func GetToken(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(tokenKey).(string)
	return value
}

// Middleware authenticates requests from a bearer token or the session cookie.
type Middleware struct {
	validator  SessionValidator
	cookieName string
	logger     *zap.Logger
}

// NewMiddleware constructs the session middleware.
func NewMiddleware(validator SessionValidator, cookieName string, logger *zap.Logger) *Middleware {
	return &Middleware{validator: validator, cookieName: cookieName, logger: logger.Named("auth")}
}

// Require rejects requests without a valid session with 401.
func (m *Middleware) Require() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := m.extractToken(c)
		if err != nil {
			unauthorized(c, err.Error())
			return
		}

		userID, err := m.validator.Validate(c.Request.Context(), token)
		if errors.Is(err, session.ErrInvalidSession) {
			unauthorized(c, "invalid or expired session")
			return
		}
		if err != nil {
			logging.WithOperation(m.logger, "auth.require", logging.RequestIDFromContext(c.Request.Context())).
				Error("session validation failed", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal", "message": "internal error"})
			return
		}

		m.attach(c, userID, token)
		c.Next()
	}
}

// Optional attaches the user when a valid session is present and lets
// anonymous requests through untouched.
func (m *Middleware) Optional() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := m.extractToken(c)
		if err == nil {
			userID, err := m.validator.Validate(c.Request.Context(), token)
			switch {
			case err == nil:
				m.attach(c, userID, token)
			case !errors.Is(err, session.ErrInvalidSession):
				logging.WithOperation(m.logger, "auth.optional", logging.RequestIDFromContext(c.Request.Context())).
					Warn("session validation failed, treating caller as anonymous", zap.Error(err))
			}
		}
		c.Next()
	}
}

func (m *Middleware) attach(c *gin.Context, userID uint, token string) {
	ctx := context.WithValue(c.Request.Context(), userIDKey, userID)
	ctx = context.WithValue(ctx, tokenKey, token)
	c.Request = c.Request.WithContext(ctx)
	c.Set(string(userIDKey), userID)
}

func (m *Middleware) extractToken(c *gin.Context) (string, error) {
	if header := c.Request.Header.Get("Authorization"); header != "" {
		return extractBearerToken(header)
	}
	if m.cookieName != "" {
		if cookie, err := c.Cookie(m.cookieName); err == nil && cookie != "" {
			return cookie, nil
		}
	}
	return "", errors.New("authorization required")
}

func extractBearerToken(header string) (string, error) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New("invalid authorization header")
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", errors.New("token missing")
	}
	return token, nil
}

func unauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "message": message})
}
