package usecase

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/example/facelogin/internal/logging"
	"github.com/example/facelogin/internal/repository"
	"github.com/example/facelogin/internal/session"
)

// LoginResult describes a successful password login.
type LoginResult struct {
	User    UserView
	Session *session.Session
}

// LoginUseCase is the password login used to enroll faces and as the
// fallback when face login gives up.
type LoginUseCase struct {
	users    UserStore
	sessions SessionManager
	logger   *zap.Logger
}

// NewLoginUseCase constructs a new use case instance.
func NewLoginUseCase(users UserStore, sessions SessionManager, logger *zap.Logger) *LoginUseCase {
	return &LoginUseCase{users: users, sessions: sessions, logger: logger.Named("login_usecase")}
}

// Login checks the password of login. Unknown logins and wrong passwords
// fail the same way.
func (uc *LoginUseCase) Login(ctx context.Context, callerUserID uint, login, password string) (*LoginResult, error) {
	opLogger := logging.WithOperation(uc.logger, "usecase.login", logging.RequestIDFromContext(ctx))

	if callerUserID != 0 {
		return nil, ErrAlreadyAuthenticated
	}
	login = strings.TrimSpace(login)
	if login == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	user, err := uc.users.FindUserByLogin(ctx, login)
	if errors.Is(err, repository.ErrNotFound) {
		opLogger.Info("login for unknown account")
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		opLogger.Error("user lookup failed", zap.Error(err))
		return nil, err
	}

	if user.PasswordHash == "" || bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		opLogger.Info("password mismatch", zap.Uint("user_id", user.ID))
		return nil, ErrInvalidCredentials
	}

	sess, err := uc.sessions.Issue(ctx, user.ID)
	if err != nil {
		opLogger.Error("failed to issue session", zap.Uint("user_id", user.ID), zap.Error(err))
		return nil, err
	}
	return &LoginResult{User: viewOf(user), Session: sess}, nil
}

// Logout revokes the session behind token.
func (uc *LoginUseCase) Logout(ctx context.Context, token string) error {
	return uc.sessions.Revoke(ctx, token)
}

// HashPassword returns the bcrypt hash stored for new accounts.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
