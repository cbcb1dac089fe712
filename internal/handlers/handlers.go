package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/example/facelogin/internal/auth"
	"github.com/example/facelogin/internal/usecase"
)

// MaxBodySize bounds every request body; camera frames arrive base64 encoded.
const MaxBodySize = 8 << 20

// CaptureService enrolls and removes face references.
type CaptureService interface {
	Capture(ctx context.Context, actingUserID uint, image string) (*usecase.CaptureResult, error)
	Revoke(ctx context.Context, actingUserID uint) error
	Status(ctx context.Context, actingUserID uint) (*usecase.CaptureStatus, error)
}

// ChallengeService runs face login rounds.
type ChallengeService interface {
	Authenticate(ctx context.Context, req usecase.ChallengeRequest) (*usecase.ChallengeResult, error)
}

// LoginService is the password login.
type LoginService interface {
	Login(ctx context.Context, callerUserID uint, login, password string) (*usecase.LoginResult, error)
	Logout(ctx context.Context, token string) error
}

// CookieConfig describes the session cookie set on login.
type CookieConfig struct {
	Name   string
	Secure bool
}

// Handlers holds the HTTP endpoints.
type Handlers struct {
	capture   CaptureService
	challenge ChallengeService
	login     LoginService
	cookie    CookieConfig
	logger    *zap.Logger
}

// New constructs the HTTP handlers.
func New(capture CaptureService, challenge ChallengeService, login LoginService, cookie CookieConfig, logger *zap.Logger) *Handlers {
	return &Handlers{
		capture:   capture,
		challenge: challenge,
		login:     login,
		cookie:    cookie,
		logger:    logger.Named("handlers"),
	}
}

// RegisterRoutes wires the HTTP handlers to the Gin router.
func RegisterRoutes(router *gin.Engine, h *Handlers, sessions *auth.Middleware) {
	router.Use(RequestID(), BodyLimit(MaxBodySize))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	capture := router.Group("/capture", sessions.Require())
	capture.POST("", h.Capture)
	capture.DELETE("", h.Revoke)
	capture.GET("", h.Status)

	router.POST("/auth", sessions.Optional(), h.Authenticate)
	router.POST("/login", sessions.Optional(), h.Login)
	router.POST("/logout", sessions.Require(), h.Logout)
}

type captureRequest struct {
	Image string `json:"image" form:"image"`
}

type challengeRequest struct {
	StoredID  string `json:"stored_id" form:"stored_id"`
	Challenge string `json:"challenge" form:"challenge"`
}

type loginRequest struct {
	Login    string `json:"login" form:"login"`
	Password string `json:"password" form:"password"`
}

func (h *Handlers) Capture(c *gin.Context) {
	var req captureRequest
	if !h.bind(c, &req) {
		return
	}

	userID, _ := auth.GetUserID(c.Request.Context())
	result, err := h.capture.Capture(c.Request.Context(), userID, req.Image)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"stored_id": result.StoredReference,
		"user_id":   result.UserID,
	})
}

func (h *Handlers) Revoke(c *gin.Context) {
	userID, _ := auth.GetUserID(c.Request.Context())
	if err := h.capture.Revoke(c.Request.Context(), userID); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *Handlers) Status(c *gin.Context) {
	userID, _ := auth.GetUserID(c.Request.Context())
	status, err := h.capture.Status(c.Request.Context(), userID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"enrollments": status.Enrollments})
}

func (h *Handlers) Authenticate(c *gin.Context) {
	var req challengeRequest
	if !h.bind(c, &req) {
		return
	}

	callerID, _ := auth.GetUserID(c.Request.Context())
	result, err := h.challenge.Authenticate(c.Request.Context(), usecase.ChallengeRequest{
		CallerUserID:    callerID,
		StoredReference: req.StoredID,
		Challenge:       req.Challenge,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}

	h.setSessionCookie(c, result.Session.Token, result.Session.ExpiresAt)
	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"user":     result.User,
		"redirect": result.Redirect,
	})
}

func (h *Handlers) Login(c *gin.Context) {
	var req loginRequest
	if !h.bind(c, &req) {
		return
	}

	callerID, _ := auth.GetUserID(c.Request.Context())
	result, err := h.login.Login(c.Request.Context(), callerID, req.Login, req.Password)
	if err != nil {
		h.writeError(c, err)
		return
	}

	h.setSessionCookie(c, result.Session.Token, result.Session.ExpiresAt)
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"user":    result.User,
		"token":   result.Session.Token,
	})
}

func (h *Handlers) Logout(c *gin.Context) {
	if err := h.login.Logout(c.Request.Context(), auth.GetToken(c.Request.Context())); err != nil {
		h.writeError(c, err)
		return
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cookie.Name, "", -1, "/", "", h.cookie.Secure, true)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// bind decodes JSON or form bodies. It writes the error response itself and
// reports whether the handler may continue.
func (h *Handlers) bind(c *gin.Context, dst any) bool {
	err := c.ShouldBind(dst)
	if err == nil {
		return true
	}

	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "too_large", "message": "Request body is too large."})
		return false
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": "bad_request", "message": "Request body could not be read."})
	return false
}
