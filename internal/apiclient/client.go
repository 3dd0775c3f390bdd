// Package apiclient is the single adapter every outbound call to the
// GetMeThis API goes through. It owns the base endpoint, default headers,
// bearer token injection and the centralized handling of 401 and 5xx
// responses. Calls are fire-once: no retry, no backoff, no deduplication.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vaidashi/getmethis-dashboard/internal/notify"
	apperrors "github.com/vaidashi/getmethis-dashboard/pkg/errors"
	"github.com/vaidashi/getmethis-dashboard/pkg/logger"
)

const (
	MsgSessionExpired = "Your session has expired. Please log in again."
	MsgServerError    = "Something went wrong on our side. Please try again later."
)

// Session is the part of the session store the client needs
type Session interface {
	// Token returns the access token and the generation it belongs to
	Token() (string, uint64)
	// Expire clears the session if gen is still current and reports whether
	// it did
	Expire(ctx context.Context, gen uint64) bool
}

// Client is the HTTP client adapter
type Client struct {
	baseURL    string
	httpClient *http.Client
	session    Session
	notifier   notify.Notifier
	logger     logger.Logger
}

// NewClient creates a client for baseURL. A zero timeout leaves requests
// bounded only by their context.
func NewClient(baseURL string, timeout time.Duration, session Session, notifier notify.Notifier, logger logger.Logger) *Client {
	return NewClientWithHTTP(baseURL, &http.Client{Timeout: timeout}, session, notifier, logger)
}

// NewClientWithHTTP creates a client that sends requests through httpClient
func NewClientWithHTTP(baseURL string, httpClient *http.Client, session Session, notifier notify.Notifier, logger logger.Logger) *Client {
	if notifier == nil {
		notifier = notify.Nop{}
	}

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		session:    session,
		notifier:   notifier,
		logger:     logger,
	}
}

// Get sends a GET request and decodes the response into out
func (c *Client) Get(ctx context.Context, path string, out interface{}) error {
	return c.Do(ctx, http.MethodGet, path, nil, out)
}

// Post sends body as JSON and decodes the response into out
func (c *Client) Post(ctx context.Context, path string, body, out interface{}) error {
	return c.Do(ctx, http.MethodPost, path, body, out)
}

// Put sends body as JSON and decodes the response into out
func (c *Client) Put(ctx context.Context, path string, body, out interface{}) error {
	return c.Do(ctx, http.MethodPut, path, body, out)
}

// Delete sends a DELETE request
func (c *Client) Delete(ctx context.Context, path string) error {
	return c.Do(ctx, http.MethodDelete, path, nil, nil)
}

// Do sends one request. A nil body sends no payload; a nil out discards the
// response body.
func (c *Client) Do(ctx context.Context, method, path string, body, out interface{}) error {
	url := c.baseURL + path

	var reader io.Reader

	if body != nil {
		payload, err := json.Marshal(body)

		if err != nil {
			return apperrors.NewInternalError(fmt.Sprintf("failed to marshal request: %v", err))
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)

	if err != nil {
		return apperrors.NewInternalError(fmt.Sprintf("failed to create request: %v", err))
	}

	requestID := uuid.New().String()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)

	var (
		token string
		gen   uint64
	)

	opts := optionsFrom(ctx)

	if c.session != nil && !opts.anonymous {
		token, gen = c.session.Token()
	}

	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)

	if err != nil {
		return c.transportError(ctx, method, path, requestID, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)

	if err != nil {
		if ctx.Err() != nil {
			return apperrors.NewCancelledError("request cancelled")
		}
		return apperrors.NewInternalError(fmt.Sprintf("failed to read response body: %v", err))
	}

	c.logger.Debug("API request",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"requestID", requestID,
		"duration", time.Since(start),
	)

	if resp.StatusCode >= 400 {
		return c.handleErrorResponse(ctx, method, path, resp.StatusCode, respBody, token != "", gen, opts)
	}

	if out == nil || len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return apperrors.NewInternalError(fmt.Sprintf("failed to parse response: %v", err))
	}

	return nil
}

func (c *Client) handleErrorResponse(ctx context.Context, method, path string, status int, body []byte, hadToken bool, gen uint64, opts requestOptions) error {
	appErr := apperrors.FromResponse(status, body).
		WithContext("method", method).
		WithContext("path", path).
		WithContext(apperrors.ContextStatus, status)

	switch {
	case status == http.StatusUnauthorized:
		if !hadToken {
			return appErr
		}

		expired := apperrors.NewSessionExpiredError(appErr.Message).
			WithContext("method", method).
			WithContext("path", path).
			WithContext(apperrors.ContextStatus, status)

		// Only the request that actually ends the session reports it
		if c.session.Expire(ctx, gen) {
			c.logger.Warn("Session expired by API", "method", method, "path", path)
			c.notifier.Notify(ctx, notify.New(notify.LevelError, notify.CodeSessionExpired, MsgSessionExpired))
		}
		return expired

	case status >= 500:
		c.logger.Error("API server error", "method", method, "path", path, "status", status)
		if !opts.quietServerErrors {
			c.notifier.Notify(ctx, notify.New(notify.LevelError, notify.CodeServerError, MsgServerError))
		}
		return appErr

	case status == http.StatusBadRequest:
		// Field errors belong to the form that sent the request
		return appErr

	default:
		c.logger.Debug("API request rejected", "method", method, "path", path, "status", status, "error", appErr.Message)
		return appErr
	}
}

func (c *Client) transportError(ctx context.Context, method, path, requestID string, err error) error {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		c.logger.Debug("API request cancelled", "method", method, "path", path, "requestID", requestID)
		return apperrors.NewCancelledError("request cancelled")
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		c.logger.Warn("API request timed out", "method", method, "path", path, "requestID", requestID)
		return apperrors.NewTimeoutError("request timed out")
	}

	c.logger.Error("API request failed", "method", method, "path", path, "requestID", requestID, "error", err)
	return apperrors.NewTemporaryError(fmt.Sprintf("failed to send request: %v", err))
}
