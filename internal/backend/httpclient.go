// Copyright (c) 2025 Universal MCP
// Licensed under the MIT License. See LICENSE file in the project root for details.

package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"universalmcp/cli/internal/config"
	errs "universalmcp/cli/internal/errors"
	"universalmcp/cli/internal/httperrors"
	"universalmcp/cli/internal/session"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// UserAgent is sent with every request. cmd sets the version at startup.
var UserAgent = "universal-mcp-cli/dev"

// HTTP implements API over the hosted REST endpoints.
// Successful profile lookups are cached per token so repeated validations
// within a process do not hit the network.
type HTTP struct {
	// baseURL is the base URL for all HTTP requests (e.g., "https://api.universal-mcp.dev")
	baseURL string
	// endpoints contains the URL paths for the auth API
	endpoints config.Endpoints
	// client is the underlying HTTP client with configured timeout
	client *http.Client
	log    *zap.Logger

	cacheTTL time.Duration
	mu       sync.Mutex
	meCache  map[string]cachedUser
}

type cachedUser struct {
	user session.User
	at   time.Time
}

// HTTPOption configures the HTTP transport.
type HTTPOption func(*HTTP)

// WithTimeout sets the per-request timeout of the HTTP client.
func WithTimeout(d time.Duration) HTTPOption {
	return func(h *HTTP) { h.client.Timeout = d }
}

// WithCacheTTL sets how long a validated profile is reused. Zero disables caching.
func WithCacheTTL(d time.Duration) HTTPOption {
	return func(h *HTTP) { h.cacheTTL = d }
}

// WithLogger sets the request logger.
func WithLogger(l *zap.Logger) HTTPOption {
	return func(h *HTTP) {
		if l != nil {
			h.log = l
		}
	}
}

// WithHTTPClient replaces the underlying client (tests use httptest clients).
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(h *HTTP) {
		if c != nil {
			h.client = c
		}
	}
}

// NewHTTP creates an HTTP client for baseURL and endpoints.
func NewHTTP(baseURL string, endpoints config.Endpoints, opts ...HTTPOption) *HTTP {
	h := &HTTP{
		baseURL:   strings.TrimRight(baseURL, "/"),
		endpoints: endpoints,
		client:    &http.Client{Timeout: 10 * time.Second},
		log:       zap.NewNop(),
		meCache:   make(map[string]cachedUser),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// setStandardHeaders tags every request with client identity and a request id.
func (h *HTTP) setStandardHeaders(req *http.Request) {
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
}

// do sends req and maps transport failures onto error kinds.
func (h *HTTP) do(ctx context.Context, req *http.Request) (*http.Response, error) {
	h.setStandardHeaders(req)
	start := time.Now()
	resp, err := h.client.Do(req)
	if err != nil {
		h.log.Debug("request failed",
			zap.String("method", req.Method),
			zap.String("path", req.URL.Path),
			zap.String("request_id", req.Header.Get("X-Request-ID")),
			zap.Error(err))
		return nil, transportError(ctx, err, httperrors.ExtractHostFromURL(h.baseURL))
	}
	h.log.Debug("request",
		zap.String("method", req.Method),
		zap.String("path", req.URL.Path),
		zap.Int("status", resp.StatusCode),
		zap.String("request_id", req.Header.Get("X-Request-ID")),
		zap.Duration("elapsed", time.Since(start)))
	return resp, nil
}

// transportError classifies a failed round trip.
func transportError(ctx context.Context, err error, host string) error {
	switch {
	case errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled):
		return errs.Wrap(errs.Canceled, "request was canceled", err)
	case httperrors.Classify(err) == httperrors.ClassTimeout:
		return errs.Wrap(errs.Timeout, "the credential service did not answer in time, please try again", err)
	default:
		return errs.Wrap(errs.ServiceUnavailable, httperrors.Describe(err, host).Summary, err)
	}
}

// statusError maps a non-success response. Client errors in rejected are
// reported with kind rejectKind; anything else means the service is unhealthy.
func statusError(resp *http.Response, op string, rejectKind errs.Kind, rejectMsg string) error {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	cause := fmt.Errorf("%s failed: %d %s", op, resp.StatusCode, strings.TrimSpace(string(b)))

	switch resp.StatusCode {
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden:
		if msg := serverMessage(b); msg != "" {
			rejectMsg = msg
		}
		return errs.Wrap(rejectKind, rejectMsg, cause)
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		return errs.Wrap(errs.Timeout, "the credential service did not answer in time, please try again", cause)
	default:
		return errs.Wrap(errs.ServiceUnavailable, fmt.Sprintf("the credential service returned HTTP %d", resp.StatusCode), cause)
	}
}

// serverMessage extracts a human message from a JSON error body.
func serverMessage(body []byte) string {
	var raw map[string]any
	if json.Unmarshal(body, &raw) != nil {
		return ""
	}
	for _, k := range []string{"message", "error_description", "error"} {
		if s, ok := raw[k].(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

// GetVersion calls GET {version} and returns the version string when available.
// No authentication required; it doubles as a connectivity check.
func (h *HTTP) GetVersion(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.baseURL+h.endpoints.Version, nil)
	if err != nil {
		return "", err
	}
	resp, err := h.do(ctx, req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "unknown", nil
	}
	var out struct {
		Version string `json:"version"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	if out.Version == "" {
		return "unknown", nil
	}
	return out.Version, nil
}

// Close drops cached profiles and idle connections.
func (h *HTTP) Close() error {
	h.mu.Lock()
	clear(h.meCache)
	h.mu.Unlock()
	h.client.CloseIdleConnections()
	return nil
}
