// Package client is a Go client for the face login endpoints, including the
// challenge polling loop a login page runs against POST /auth.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/example/facelogin/internal/imagecodec"
)

// Error codes the server uses for failures worth another attempt.
const (
	CodeNoFace     = "no_face"
	CodeAuthFailed = "auth"
)

// APIError is a structured {error, message} reply.
type APIError struct {
	StatusCode int
	Code       string `json:"error"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s (status %d): %s", e.Code, e.StatusCode, e.Message)
}

// Retryable reports whether a fresh frame could change the outcome.
func (e *APIError) Retryable() bool {
	return e.Code == CodeNoFace || e.Code == CodeAuthFailed
}

// User identifies the account a login resolved to.
type User struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
}

// AuthResponse is the body of a successful POST /auth.
type AuthResponse struct {
	Success  bool   `json:"success"`
	User     User   `json:"user"`
	Redirect string `json:"redirect"`
	// Session is read from the Set-Cookie header.
	Session string `json:"-"`
}

// CaptureResponse is the body of a successful POST /capture.
type CaptureResponse struct {
	Success  bool   `json:"success"`
	StoredID string `json:"stored_id"`
	UserID   uint   `json:"user_id"`
}

type loginResponse struct {
	Success bool   `json:"success"`
	User    User   `json:"user"`
	Token   string `json:"token"`
}

// Client calls a face login server.
type Client struct {
	baseURL    string
	httpClient *http.Client
	cookieName string
	token      string
}

// New builds a client for baseURL. cookieName is the session cookie the
// server sets on login.
func New(baseURL string, httpClient *http.Client, cookieName string) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		cookieName: cookieName,
	}
}

// SetToken makes later calls authenticated with a session token.
func (c *Client) SetToken(token string) {
	c.token = token
}

// Login performs a password login and keeps the session for later calls.
func (c *Client) Login(ctx context.Context, login, password string) (*User, error) {
	var resp loginResponse
	if _, err := c.do(ctx, http.MethodPost, "/login", map[string]string{"login": login, "password": password}, &resp); err != nil {
		return nil, err
	}
	c.token = resp.Token
	return &resp.User, nil
}

// Capture enrolls the face in a PNG image for the logged in user.
func (c *Client) Capture(ctx context.Context, pngData []byte) (*CaptureResponse, error) {
	var resp CaptureResponse
	body := map[string]string{"image": imagecodec.EncodeDataURI(pngData)}
	if _, err := c.do(ctx, http.MethodPost, "/capture", body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Revoke disables face login for the logged in user.
func (c *Client) Revoke(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodDelete, "/capture", nil, nil)
	return err
}

// Status reports how many enrollments the logged in user has.
func (c *Client) Status(ctx context.Context) (int64, error) {
	var resp struct {
		Enrollments int64 `json:"enrollments"`
	}
	if _, err := c.do(ctx, http.MethodGet, "/capture", nil, &resp); err != nil {
		return 0, err
	}
	return resp.Enrollments, nil
}

// Logout ends the current session.
func (c *Client) Logout(ctx context.Context) error {
	if _, err := c.do(ctx, http.MethodPost, "/logout", nil, nil); err != nil {
		return err
	}
	c.token = ""
	return nil
}

// Authenticate runs one challenge round with a PNG frame.
func (c *Client) Authenticate(ctx context.Context, storedID string, pngData []byte) (*AuthResponse, error) {
	var resp AuthResponse
	body := map[string]string{"stored_id": storedID, "challenge": imagecodec.EncodeDataURI(pngData)}
	httpResp, err := c.do(ctx, http.MethodPost, "/auth", body, &resp)
	if err != nil {
		return nil, err
	}
	for _, cookie := range httpResp.Cookies() {
		if cookie.Name == c.cookieName {
			resp.Session = cookie.Value
		}
	}
	return &resp, nil
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("could not marshal request body: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("could not create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("could not send request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("could not read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if err := json.Unmarshal(raw, apiErr); err != nil || apiErr.Code == "" {
			apiErr.Code = "http"
			apiErr.Message = strings.TrimSpace(string(raw))
		}
		return nil, apiErr
	}

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return nil, fmt.Errorf("could not unmarshal response: %w", err)
		}
	}
	return resp, nil
}
