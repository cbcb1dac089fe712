package usecase

import (
	"context"

	"github.com/example/facelogin/internal/repository"
	"github.com/example/facelogin/internal/session"
)

// TokenStore is the per-user ordered face token list.
type TokenStore interface {
	AppendToken(ctx context.Context, userID uint, token string) error
	DeleteTokens(ctx context.Context, userID uint) (int64, error)
	CountTokens(ctx context.Context, userID uint) (int64, error)
	FindUsersByToken(ctx context.Context, token string) ([]repository.User, error)
}

// UserStore resolves accounts for password login.
type UserStore interface {
	FindUserByLogin(ctx context.Context, login string) (*repository.User, error)
}

// SessionIssuer starts a login session for a user.
type SessionIssuer interface {
	Issue(ctx context.Context, userID uint) (*session.Session, error)
}

// SessionRevoker ends a login session.
type SessionRevoker interface {
	Revoke(ctx context.Context, token string) error
}

// SessionManager both issues and revokes sessions.
type SessionManager interface {
	SessionIssuer
	SessionRevoker
}

// UserView is what clients learn about the account they logged into.
type UserView struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
}

func viewOf(user *repository.User) UserView {
	name := user.DisplayName
	if name == "" {
		name = user.Login
	}
	return UserView{ID: user.ID, Name: name}
}
