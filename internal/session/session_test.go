package session

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/example/facelogin/internal/retry"
)

type stubStore struct {
	values  map[string]string
	ttls    map[string]time.Duration
	setErrs []error
	getErr  error
}

func newStubStore() *stubStore {
	return &stubStore{values: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (s *stubStore) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	if len(s.setErrs) > 0 {
		err := s.setErrs[0]
		s.setErrs = s.setErrs[1:]
		return err
	}
	s.values[key] = value.(string)
	s.ttls[key] = expiration
	return nil
}

func (s *stubStore) Get(ctx context.Context, key string) (string, error) {
	if s.getErr != nil {
		return "", s.getErr
	}
	value, ok := s.values[key]
	if !ok {
		return "", redis.Nil
	}
	return value, nil
}

func (s *stubStore) Del(ctx context.Context, key string) error {
	delete(s.values, key)
	return nil
}

type transientRedisError struct{}

func (transientRedisError) Error() string   { return "redis transient" }
func (transientRedisError) Timeout() bool   { return true }
func (transientRedisError) Temporary() bool { return true }

func newTestManager(store Store) *Manager {
	m := NewManager(store, "test-secret", "facelogin", time.Hour, zap.NewNop())
	m.policy = retry.Policy{Attempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond}
	return m
}

func TestIssueAndValidate(t *testing.T) {
	store := newStubStore()
	m := newTestManager(store)

	sess, err := m.Issue(context.Background(), 42)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if sess.Token == "" || sess.ID == "" {
		t.Fatalf("expected token and id, got %+v", sess)
	}
	if got := store.ttls["session:"+sess.ID]; got != time.Hour {
		t.Fatalf("expected ttl of one hour, got %s", got)
	}

	userID, err := m.Validate(context.Background(), sess.Token)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if userID != 42 {
		t.Fatalf("expected user 42, got %d", userID)
	}
}

func TestIssueRetriesTransientStoreErrors(t *testing.T) {
	store := newStubStore()
	store.setErrs = []error{transientRedisError{}}
	m := newTestManager(store)

	sess, err := m.Issue(context.Background(), 7)
	if err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
	if _, ok := store.values["session:"+sess.ID]; !ok {
		t.Fatal("session was not stored")
	}
}

func TestValidateRejectsRevokedSession(t *testing.T) {
	store := newStubStore()
	m := newTestManager(store)

	sess, err := m.Issue(context.Background(), 1)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if err := m.Revoke(context.Background(), sess.Token); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if _, err := m.Validate(context.Background(), sess.Token); !errors.Is(err, ErrInvalidSession) {
		t.Fatalf("expected ErrInvalidSession, got %v", err)
	}
}

func TestValidateRejectsForeignAndExpiredTokens(t *testing.T) {
	store := newStubStore()
	m := newTestManager(store)

	other := newTestManager(store)
	other.secret = []byte("other-secret")
	foreign, err := other.Issue(context.Background(), 1)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := m.Validate(context.Background(), foreign.Token); !errors.Is(err, ErrInvalidSession) {
		t.Fatalf("expected foreign token to be rejected, got %v", err)
	}

	past := newTestManager(store)
	past.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expired, err := past.Issue(context.Background(), 1)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := m.Validate(context.Background(), expired.Token); !errors.Is(err, ErrInvalidSession) {
		t.Fatalf("expected expired token to be rejected, got %v", err)
	}

	if _, err := m.Validate(context.Background(), ""); !errors.Is(err, ErrInvalidSession) {
		t.Fatalf("expected empty token to be rejected, got %v", err)
	}
}

func TestValidateRejectsWrongAudience(t *testing.T) {
	store := newStubStore()
	issuer := newTestManager(store)
	issuer.audience = "someone-else"
	sess, err := issuer.Issue(context.Background(), 1)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	if _, err := newTestManager(store).Validate(context.Background(), sess.Token); !errors.Is(err, ErrInvalidSession) {
		t.Fatalf("expected audience mismatch to be rejected, got %v", err)
	}
}

func TestValidateSurfacesStoreFailure(t *testing.T) {
	store := newStubStore()
	m := newTestManager(store)
	sess, err := m.Issue(context.Background(), 1)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	store.getErr = errors.New("connection refused")
	_, err = m.Validate(context.Background(), sess.Token)
	if err == nil || errors.Is(err, ErrInvalidSession) {
		t.Fatalf("expected storage error, got %v", err)
	}
	if !strings.Contains(err.Error(), "session.lookup") {
		t.Fatalf("expected operation in error, got %v", err)
	}
}

func TestRevokeIgnoresGarbage(t *testing.T) {
	m := newTestManager(newStubStore())
	if err := m.Revoke(context.Background(), "not-a-jwt"); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
}
