package usecase

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/example/facelogin/internal/faceapi"
	"github.com/example/facelogin/internal/imagecodec"
	"github.com/example/facelogin/internal/repository"
	"github.com/example/facelogin/internal/session"
)

const testSecret = "token-secret"

// memoryTokens keeps tokens in insertion order, like the face_tokens table.
type memoryTokens struct {
	users     map[uint]repository.User
	rows      []repository.FaceToken
	appendErr error
	writes    int
}

func newMemoryTokens(users ...repository.User) *memoryTokens {
	m := &memoryTokens{users: map[uint]repository.User{}}
	for _, u := range users {
		m.users[u.ID] = u
	}
	return m
}

func (m *memoryTokens) AppendToken(ctx context.Context, userID uint, token string) error {
	if m.appendErr != nil {
		return m.appendErr
	}
	m.writes++
	m.rows = append(m.rows, repository.FaceToken{ID: uint(len(m.rows) + 1), UserID: userID, Token: token})
	return nil
}

func (m *memoryTokens) DeleteTokens(ctx context.Context, userID uint) (int64, error) {
	m.writes++
	kept := m.rows[:0]
	var deleted int64
	for _, row := range m.rows {
		if row.UserID == userID {
			deleted++
			continue
		}
		kept = append(kept, row)
	}
	m.rows = kept
	return deleted, nil
}

func (m *memoryTokens) CountTokens(ctx context.Context, userID uint) (int64, error) {
	var count int64
	for _, row := range m.rows {
		if row.UserID == userID {
			count++
		}
	}
	return count, nil
}

func (m *memoryTokens) FindUsersByToken(ctx context.Context, token string) ([]repository.User, error) {
	seen := map[uint]bool{}
	var out []repository.User
	for _, row := range m.rows {
		if row.Token == token && !seen[row.UserID] {
			seen[row.UserID] = true
			out = append(out, m.users[row.UserID])
		}
	}
	return out, nil
}

// stubFaceAPI detects a fixed reference and scores comparisons by image.
type stubFaceAPI struct {
	faces        []faceapi.Face
	detectErr    error
	compareErr   error
	scores       map[string]*float64
	detectCalls  int
	compareCalls int
	lastRef      string
}

func (s *stubFaceAPI) Detect(ctx context.Context, image []byte) ([]faceapi.Face, error) {
	s.detectCalls++
	if s.detectErr != nil {
		return nil, s.detectErr
	}
	return s.faces, nil
}

func (s *stubFaceAPI) Compare(ctx context.Context, reference string, image []byte) (*faceapi.Comparison, error) {
	s.compareCalls++
	s.lastRef = reference
	if s.compareErr != nil {
		return nil, s.compareErr
	}
	return &faceapi.Comparison{Confidence: s.scores[string(image)]}, nil
}

type stubSessions struct {
	issued  []uint
	revoked []string
	err     error
}

func (s *stubSessions) Issue(ctx context.Context, userID uint) (*session.Session, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.issued = append(s.issued, userID)
	return &session.Session{ID: fmt.Sprintf("sess-%d", len(s.issued)), UserID: userID, Token: "jwt"}, nil
}

func (s *stubSessions) Revoke(ctx context.Context, token string) error {
	s.revoked = append(s.revoked, token)
	return nil
}

type stubUsers struct {
	users map[string]*repository.User
	err   error
}

func (s *stubUsers) FindUserByLogin(ctx context.Context, login string) (*repository.User, error) {
	if s.err != nil {
		return nil, s.err
	}
	if u, ok := s.users[login]; ok {
		return u, nil
	}
	return nil, repository.ErrNotFound
}

func score(v float64) *float64 { return &v }

func dataURI(content string) string {
	return imagecodec.DataURIPrefix + base64.StdEncoding.EncodeToString([]byte(content))
}

var errBoom = errors.New("boom")
