package faceapi

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/example/facelogin/internal/logging"
)

const (
	detectPath  = "/facepp/v3/detect"
	comparePath = "/facepp/v3/compare"

	maxResponseBytes = 1 << 20
)

// FacePlusPlus is a Client for the Face++ v3 HTTP API.
type FacePlusPlus struct {
	baseURL    string
	apiKey     string
	apiSecret  string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewFacePlusPlus builds a client whose every call is bounded by timeout.
func NewFacePlusPlus(baseURL, apiKey, apiSecret string, timeout time.Duration, logger *zap.Logger) *FacePlusPlus {
	return &FacePlusPlus{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		apiSecret:  apiSecret,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.Named("faceapi"),
	}
}

type detectResponse struct {
	RequestID    string `json:"request_id"`
	ErrorMessage string `json:"error_message"`
	Faces        []struct {
		FaceToken string `json:"face_token"`
	} `json:"faces"`
}

type compareResponse struct {
	RequestID    string   `json:"request_id"`
	ErrorMessage string   `json:"error_message"`
	Confidence   *float64 `json:"confidence"`
}

// Detect uploads image and returns the faces found in it, in the order the
// service reports them.
func (f *FacePlusPlus) Detect(ctx context.Context, image []byte) ([]Face, error) {
	form := f.credentials()
	form.Set("image_base64", base64.StdEncoding.EncodeToString(image))

	var resp detectResponse
	if err := f.post(ctx, "faceapi.detect", detectPath, form, &resp); err != nil {
		return nil, err
	}

	faces := make([]Face, 0, len(resp.Faces))
	for _, face := range resp.Faces {
		if face.FaceToken == "" {
			continue
		}
		faces = append(faces, Face{Reference: face.FaceToken})
	}
	return faces, nil
}

// Compare scores image against the face identified by reference.
func (f *FacePlusPlus) Compare(ctx context.Context, reference string, image []byte) (*Comparison, error) {
	form := f.credentials()
	form.Set("face_token1", reference)
	form.Set("image_base64_2", base64.StdEncoding.EncodeToString(image))

	var resp compareResponse
	if err := f.post(ctx, "faceapi.compare", comparePath, form, &resp); err != nil {
		return nil, err
	}
	return &Comparison{Confidence: resp.Confidence}, nil
}

func (f *FacePlusPlus) credentials() url.Values {
	form := url.Values{}
	form.Set("api_key", f.apiKey)
	form.Set("api_secret", f.apiSecret)
	return form
}

// post sends form and decodes the JSON reply into out. Transport failures
// become ErrUnavailable; non-200 replies or an error_message become *APIError.
func (f *FacePlusPlus) post(ctx context.Context, operation, path string, form url.Values, out any) error {
	requestID := logging.RequestIDFromContext(ctx)
	opLogger := logging.WithOperation(f.logger, operation, requestID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.baseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return logging.NewOperationError(operation, requestID, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	start := time.Now()
	resp, err := f.httpClient.Do(req)
	if err != nil {
		opLogger.Warn("face api request failed", zap.Error(err), zap.Duration("elapsed", time.Since(start)))
		return logging.NewOperationError(operation, requestID, fmt.Errorf("%w: %v", ErrUnavailable, err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return logging.NewOperationError(operation, requestID, fmt.Errorf("%w: read body: %v", ErrUnavailable, err))
	}

	var envelope struct {
		ErrorMessage string `json:"error_message"`
	}
	_ = json.Unmarshal(body, &envelope)

	if resp.StatusCode != http.StatusOK || envelope.ErrorMessage != "" {
		message := envelope.ErrorMessage
		if message == "" {
			message = http.StatusText(resp.StatusCode)
		}
		opLogger.Info("face api rejected request",
			zap.Int("status", resp.StatusCode),
			zap.String("message", message),
			zap.Duration("elapsed", time.Since(start)),
		)
		return &APIError{StatusCode: resp.StatusCode, Message: message}
	}

	if err := json.Unmarshal(body, out); err != nil {
		opLogger.Warn("face api returned malformed body", zap.Error(err))
		return &APIError{StatusCode: resp.StatusCode, Message: "malformed response"}
	}

	opLogger.Debug("face api call finished", zap.Duration("elapsed", time.Since(start)))
	return nil
}
