package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/example/facelogin/internal/auth"
	"github.com/example/facelogin/internal/session"
	"github.com/example/facelogin/internal/usecase"
)

const validToken = "valid-token"

type stubValidator struct{}

func (stubValidator) Validate(ctx context.Context, token string) (uint, error) {
	if token == validToken {
		return 7, nil
	}
	return 0, session.ErrInvalidSession
}

type stubCapture struct {
	err       error
	revokeErr error
	gotUser   uint
	gotImage  string
	revoked   int
}

func (s *stubCapture) Capture(ctx context.Context, actingUserID uint, image string) (*usecase.CaptureResult, error) {
	s.gotUser, s.gotImage = actingUserID, image
	if s.err != nil {
		return nil, s.err
	}
	return &usecase.CaptureResult{StoredReference: "ref-1", UserID: actingUserID}, nil
}

func (s *stubCapture) Revoke(ctx context.Context, actingUserID uint) error {
	s.revoked++
	return s.revokeErr
}

func (s *stubCapture) Status(ctx context.Context, actingUserID uint) (*usecase.CaptureStatus, error) {
	return &usecase.CaptureStatus{Enrollments: 2}, nil
}

type stubChallenge struct {
	err error
	got usecase.ChallengeRequest
}

func (s *stubChallenge) Authenticate(ctx context.Context, req usecase.ChallengeRequest) (*usecase.ChallengeResult, error) {
	s.got = req
	if s.err != nil {
		return nil, s.err
	}
	return &usecase.ChallengeResult{
		User:     usecase.UserView{ID: 1, Name: "Alice"},
		Session:  &session.Session{ID: "s1", UserID: 1, Token: "face-session", ExpiresAt: time.Now().Add(time.Hour)},
		Redirect: "/admin",
	}, nil
}

type stubLogin struct {
	err     error
	revoked []string
}

func (s *stubLogin) Login(ctx context.Context, callerUserID uint, login, password string) (*usecase.LoginResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	if callerUserID != 0 {
		return nil, usecase.ErrAlreadyAuthenticated
	}
	return &usecase.LoginResult{
		User:    usecase.UserView{ID: 1, Name: "Alice"},
		Session: &session.Session{ID: "s2", UserID: 1, Token: "pw-session", ExpiresAt: time.Now().Add(time.Hour)},
	}, nil
}

func (s *stubLogin) Logout(ctx context.Context, token string) error {
	s.revoked = append(s.revoked, token)
	return nil
}

type fixture struct {
	router    *gin.Engine
	capture   *stubCapture
	challenge *stubChallenge
	login     *stubLogin
}

func newFixture() *fixture {
	gin.SetMode(gin.TestMode)
	f := &fixture{capture: &stubCapture{}, challenge: &stubChallenge{}, login: &stubLogin{}}
	h := New(f.capture, f.challenge, f.login, CookieConfig{Name: "sess"}, zap.NewNop())
	f.router = gin.New()
	RegisterRoutes(f.router, h, auth.NewMiddleware(stubValidator{}, "sess", zap.NewNop()))
	return f
}

func (f *fixture) do(method, path string, body any, token string) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp := httptest.NewRecorder()
	f.router.ServeHTTP(resp, req)
	return resp
}

func decode(t *testing.T, resp *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(resp.Body.Bytes(), &out); err != nil {
		t.Fatalf("invalid json %q: %v", resp.Body.String(), err)
	}
	return out
}

func TestCaptureSuccess(t *testing.T) {
	f := newFixture()
	resp := f.do(http.MethodPost, "/capture", gin.H{"image": "data:image/png;base64,AAAA"}, validToken)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	body := decode(t, resp)
	if body["success"] != true || body["stored_id"] != "ref-1" || body["user_id"] != float64(7) {
		t.Fatalf("unexpected body %v", body)
	}
	if f.capture.gotUser != 7 || f.capture.gotImage != "data:image/png;base64,AAAA" {
		t.Fatalf("unexpected call user=%d image=%q", f.capture.gotUser, f.capture.gotImage)
	}
	if resp.Header().Get(requestIDHeader) == "" {
		t.Fatal("expected a request id header")
	}
}

func TestCaptureRequiresSession(t *testing.T) {
	f := newFixture()
	for _, method := range []string{http.MethodPost, http.MethodDelete, http.MethodGet} {
		resp := f.do(method, "/capture", nil, "")
		if resp.Code != http.StatusUnauthorized {
			t.Fatalf("%s: expected 401, got %d", method, resp.Code)
		}
		if decode(t, resp)["error"] != "unauthorized" {
			t.Fatalf("%s: unexpected body %s", method, resp.Body.String())
		}
	}
}

func TestCaptureMapsDomainErrors(t *testing.T) {
	tests := []struct {
		err     error
		status  int
		code    string
		message string
	}{
		{usecase.ErrInvalidImage, http.StatusBadRequest, "bad_image", ""},
		{usecase.ErrNoFaceDetected, http.StatusBadRequest, "no_face", ""},
		{errors.Join(usecase.ErrRemoteUnavailable, errors.New("dial tcp")), http.StatusBadRequest, "request", ""},
		{&usecase.RemoteRejectedError{StatusCode: 403, Message: "AUTHENTICATION_ERROR"}, http.StatusBadRequest, "api", "AUTHENTICATION_ERROR"},
		{errors.New("database is on fire"), http.StatusInternalServerError, "internal", ""},
	}

	for _, tt := range tests {
		f := newFixture()
		f.capture.err = tt.err
		resp := f.do(http.MethodPost, "/capture", gin.H{"image": "x"}, validToken)
		if resp.Code != tt.status {
			t.Fatalf("%v: expected %d, got %d", tt.err, tt.status, resp.Code)
		}
		body := decode(t, resp)
		if body["error"] != tt.code {
			t.Fatalf("%v: expected code %s, got %v", tt.err, tt.code, body["error"])
		}
		if tt.message != "" && body["message"] != tt.message {
			t.Fatalf("%v: expected message %q, got %v", tt.err, tt.message, body["message"])
		}
		if strings.Contains(resp.Body.String(), "fire") {
			t.Fatal("internal error details must not leak")
		}
	}
}

func TestCaptureRejectsLargeBody(t *testing.T) {
	f := newFixture()
	huge := strings.Repeat("A", MaxBodySize+1)
	resp := f.do(http.MethodPost, "/capture", gin.H{"image": huge}, validToken)

	if resp.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", resp.Code)
	}
}

func TestRevokeAlwaysSucceeds(t *testing.T) {
	f := newFixture()
	for i := 0; i < 2; i++ {
		resp := f.do(http.MethodDelete, "/capture", nil, validToken)
		if resp.Code != http.StatusOK || decode(t, resp)["success"] != true {
			t.Fatalf("revoke %d: got %d %s", i, resp.Code, resp.Body.String())
		}
	}
	if f.capture.revoked != 2 {
		t.Fatalf("expected 2 revokes, got %d", f.capture.revoked)
	}
}

func TestStatus(t *testing.T) {
	f := newFixture()
	resp := f.do(http.MethodGet, "/capture", nil, validToken)
	if resp.Code != http.StatusOK || decode(t, resp)["enrollments"] != float64(2) {
		t.Fatalf("unexpected status response %d %s", resp.Code, resp.Body.String())
	}
}

func TestHealth(t *testing.T) {
	f := newFixture()
	resp := f.do(http.MethodGet, "/health", nil, "")
	if resp.Code != http.StatusOK || decode(t, resp)["status"] != "ok" {
		t.Fatalf("unexpected health response %d %s", resp.Code, resp.Body.String())
	}
}

func TestAuthenticateSuccessSetsCookie(t *testing.T) {
	f := newFixture()
	resp := f.do(http.MethodPost, "/auth", gin.H{"stored_id": "ref-1", "challenge": "data"}, "")

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	body := decode(t, resp)
	user, _ := body["user"].(map[string]any)
	if body["success"] != true || body["redirect"] != "/admin" || user["name"] != "Alice" || user["id"] != float64(1) {
		t.Fatalf("unexpected body %v", body)
	}
	if f.challenge.got.StoredReference != "ref-1" || f.challenge.got.CallerUserID != 0 {
		t.Fatalf("unexpected request %+v", f.challenge.got)
	}
	if !strings.Contains(resp.Header().Get("Set-Cookie"), "sess=face-session") {
		t.Fatalf("expected session cookie, got %q", resp.Header().Get("Set-Cookie"))
	}
}

func TestAuthenticateAcceptsFormBody(t *testing.T) {
	f := newFixture()
	form := url.Values{"stored_id": {"ref-form"}, "challenge": {"img"}}
	req := httptest.NewRequest(http.MethodPost, "/auth", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp := httptest.NewRecorder()
	f.router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if f.challenge.got.StoredReference != "ref-form" {
		t.Fatalf("unexpected reference %q", f.challenge.got.StoredReference)
	}
}

func TestAuthenticatePassesCallerSession(t *testing.T) {
	f := newFixture()
	f.do(http.MethodPost, "/auth", gin.H{"stored_id": "ref-1", "challenge": "data"}, validToken)
	if f.challenge.got.CallerUserID != 7 {
		t.Fatalf("expected caller 7, got %d", f.challenge.got.CallerUserID)
	}
}

func TestAuthenticateFailuresAreIndistinguishable(t *testing.T) {
	low := newFixture()
	low.challenge.err = &usecase.LowConfidenceError{Score: 42}
	lowResp := low.do(http.MethodPost, "/auth", gin.H{"stored_id": "r", "challenge": "c"}, "")

	none := newFixture()
	none.challenge.err = usecase.ErrNoMatch
	noneResp := none.do(http.MethodPost, "/auth", gin.H{"stored_id": "r", "challenge": "c"}, "")

	if lowResp.Code != http.StatusBadRequest || noneResp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400s, got %d and %d", lowResp.Code, noneResp.Code)
	}
	if lowResp.Body.String() != noneResp.Body.String() {
		t.Fatalf("bodies differ: %s vs %s", lowResp.Body.String(), noneResp.Body.String())
	}
	if decode(t, lowResp)["error"] != "auth" {
		t.Fatalf("unexpected code in %s", lowResp.Body.String())
	}
}

func TestAuthenticateAlreadyLoggedIn(t *testing.T) {
	f := newFixture()
	f.challenge.err = usecase.ErrAlreadyAuthenticated
	resp := f.do(http.MethodPost, "/auth", gin.H{"stored_id": "r", "challenge": "c"}, validToken)
	if resp.Code != http.StatusBadRequest || decode(t, resp)["error"] != "logged_in" {
		t.Fatalf("unexpected response %d %s", resp.Code, resp.Body.String())
	}
}

func TestLoginAndLogout(t *testing.T) {
	f := newFixture()
	resp := f.do(http.MethodPost, "/login", gin.H{"login": "alice", "password": "pw"}, "")
	if resp.Code != http.StatusOK || decode(t, resp)["token"] != "pw-session" {
		t.Fatalf("unexpected login response %d %s", resp.Code, resp.Body.String())
	}

	resp = f.do(http.MethodPost, "/logout", nil, validToken)
	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected logout response %d", resp.Code)
	}
	if len(f.login.revoked) != 1 || f.login.revoked[0] != validToken {
		t.Fatalf("expected session to be revoked, got %v", f.login.revoked)
	}
}

func TestLoginInvalidCredentials(t *testing.T) {
	f := newFixture()
	f.login.err = usecase.ErrInvalidCredentials
	resp := f.do(http.MethodPost, "/login", gin.H{"login": "alice", "password": "nope"}, "")
	if resp.Code != http.StatusBadRequest || decode(t, resp)["error"] != "invalid_credentials" {
		t.Fatalf("unexpected response %d %s", resp.Code, resp.Body.String())
	}
}

func TestRequestIDIsReused(t *testing.T) {
	f := newFixture()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(requestIDHeader, "7f0b3c1e-5d2a-4f3e-9a6b-1c2d3e4f5a6b")
	resp := httptest.NewRecorder()
	f.router.ServeHTTP(resp, req)

	if got := resp.Header().Get(requestIDHeader); got != "7f0b3c1e-5d2a-4f3e-9a6b-1c2d3e4f5a6b" {
		t.Fatalf("expected request id to be reused, got %q", got)
	}
}
