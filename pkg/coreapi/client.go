// Package coreapi is the HTTP client for the upstream core platform.
//
// The gateway never talks to station hardware directly. Reservations,
// battery inventory, swap transactions, vehicles and subscription plans all
// live on the core platform and are reached through this client.
package coreapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/tdnguyen-dev/evswap-station/internal/common/errors"
	"github.com/tdnguyen-dev/evswap-station/internal/common/metrics"
)

// Config is the client configuration.
type Config struct {
	BaseURL      string
	Timeout      time.Duration // fixed per request, no retry
	ServiceToken string        // fallback credential when no user token is present
	UserAgent    string
}

// Client calls the core platform.
type Client struct {
	httpClient    *http.Client
	baseURL       string
	serviceToken  string
	userAgent     string
	logger        *zap.Logger
	onAuthExpired func(ctx context.Context, token string)
}

// New creates a core platform client.
func New(cfg *Config, logger *zap.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = "evswap-station-gateway"
	}
	return &Client{
		httpClient:   &http.Client{Timeout: timeout},
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		serviceToken: cfg.ServiceToken,
		userAgent:    userAgent,
		logger:       logger,
	}
}

// OnAuthExpired registers a hook invoked when the platform answers 401. The
// auth service uses it to drop the cached upstream session so the user is
// forced to sign in again instead of being retried silently.
func (c *Client) OnAuthExpired(fn func(ctx context.Context, token string)) {
	c.onAuthExpired = fn
}

type tokenKey struct{}

// WithUserToken attaches the caller's upstream bearer token to the context.
func WithUserToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey{}, token)
}

// UserToken returns the upstream bearer token from the context.
func UserToken(ctx context.Context) string {
	if token, ok := ctx.Value(tokenKey{}).(string); ok {
		return token
	}
	return ""
}

// Get issues a GET request.
func (c *Client) Get(ctx context.Context, path string, query url.Values, out interface{}) error {
	if len(query) > 0 {
		path = path + "?" + query.Encode()
	}
	return c.Do(ctx, http.MethodGet, path, nil, out)
}

// Post issues a POST request with a JSON body.
func (c *Client) Post(ctx context.Context, path string, body, out interface{}) error {
	return c.Do(ctx, http.MethodPost, path, body, out)
}

// Put issues a PUT request with a JSON body.
func (c *Client) Put(ctx context.Context, path string, body, out interface{}) error {
	return c.Do(ctx, http.MethodPut, path, body, out)
}

// Patch issues a PATCH request with a JSON body.
func (c *Client) Patch(ctx context.Context, path string, body, out interface{}) error {
	return c.Do(ctx, http.MethodPatch, path, body, out)
}

// Delete issues a DELETE request, optionally with a JSON body.
func (c *Client) Delete(ctx context.Context, path string, body interface{}) error {
	return c.Do(ctx, http.MethodDelete, path, body, nil)
}

// Do issues a request and decodes the JSON response into out.
func (c *Client) Do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return errors.ErrInternalError.WithError(err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return errors.ErrInternalError.WithError(err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.send(req, out)
}

// FilePart is one file in a multipart request.
type FilePart struct {
	FieldName string
	FileName  string
	Data      []byte
}

// DoMultipart issues a multipart/form-data POST, used for vehicle photo
// upload and registration card scanning.
func (c *Client) DoMultipart(ctx context.Context, path string, fields map[string]string, files []FilePart, out interface{}) error {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	for name, value := range fields {
		if err := writer.WriteField(name, value); err != nil {
			return errors.ErrInternalError.WithError(err)
		}
	}
	for _, file := range files {
		part, err := writer.CreateFormFile(file.FieldName, file.FileName)
		if err != nil {
			return errors.ErrInternalError.WithError(err)
		}
		if _, err := part.Write(file.Data); err != nil {
			return errors.ErrInternalError.WithError(err)
		}
	}
	if err := writer.Close(); err != nil {
		return errors.ErrInternalError.WithError(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &buf)
	if err != nil {
		return errors.ErrInternalError.WithError(err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return c.send(req, out)
}

func (c *Client) send(req *http.Request, out interface{}) error {
	token := UserToken(req.Context())
	if token == "" {
		token = c.serviceToken
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("core platform request failed",
			zap.String("method", req.Method),
			zap.String("path", req.URL.Path),
			zap.Error(err),
		)
		if m := metrics.Get(); m != nil {
			m.RecordCoreRequest(req.Method, req.URL.Path, 0, time.Since(start))
		}
		return errors.ErrCoreUnavailable.WithError(err)
	}
	defer resp.Body.Close()

	if m := metrics.Get(); m != nil {
		m.RecordCoreRequest(req.Method, req.URL.Path, resp.StatusCode, time.Since(start))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return errors.ErrCoreUnavailable.WithError(err)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out == nil || len(data) == 0 {
			return nil
		}
		if err := json.Unmarshal(data, out); err != nil {
			return errors.ErrCoreUnavailable.WithError(fmt.Errorf("failed to decode response: %w", err))
		}
		return nil
	}

	appErr := c.mapStatus(req.Context(), resp.StatusCode, data, token)
	c.logger.Warn("core platform returned error",
		zap.String("method", req.Method),
		zap.String("path", req.URL.Path),
		zap.Int("status", resp.StatusCode),
		zap.String("message", appErr.Message),
	)
	return appErr
}

// mapStatus translates an HTTP status into the gateway error taxonomy. The
// upstream message is preferred over the generic fallback when present.
func (c *Client) mapStatus(ctx context.Context, status int, body []byte, token string) *errors.AppError {
	message := extractMessage(body)

	switch {
	case status == http.StatusUnauthorized:
		if c.onAuthExpired != nil && token != "" && token != c.serviceToken {
			c.onAuthExpired(ctx, token)
		}
		return errors.ErrCoreAuthExpired
	case status == http.StatusForbidden:
		if message != "" {
			return errors.ErrCoreForbidden.WithMessage(message)
		}
		return errors.ErrCoreForbidden
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		if message != "" {
			return errors.ErrCoreValidation.WithMessage(message)
		}
		return errors.ErrCoreValidation
	case status == http.StatusNotFound:
		if message != "" {
			return errors.ErrCoreNotFound.WithMessage(message)
		}
		return errors.ErrCoreNotFound
	case status == http.StatusConflict:
		if message != "" {
			return errors.ErrSwapConflict.WithMessage(message)
		}
		return errors.ErrSwapConflict
	default:
		if message != "" {
			return errors.ErrCoreUnavailable.WithMessage(message)
		}
		return errors.ErrCoreUnavailable
	}
}

// extractMessage pulls a human readable message out of the error body. The
// platform answers either {"message": ...}, {"error": {"message": ...}} or an
// RFC 7807 problem document with "title"/"detail".
func extractMessage(body []byte) string {
	if len(body) == 0 {
		return ""
	}

	var envelope struct {
		Message string `json:"message"`
		Detail  string `json:"detail"`
		Title   string `json:"title"`
		Error   struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return ""
	}
	switch {
	case envelope.Message != "":
		return envelope.Message
	case envelope.Error.Message != "":
		return envelope.Error.Message
	case envelope.Detail != "":
		return envelope.Detail
	default:
		return envelope.Title
	}
}
