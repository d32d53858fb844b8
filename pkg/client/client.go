// Package client talks to the ResQNet REST API on behalf of one session.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	mathrand "math/rand"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"resqnet-web/pkg/obs"
)

const (
	// DefaultBaseURL is the backend's default API root.
	DefaultBaseURL = "http://localhost:8080/api"

	headerRequestID   = "X-Request-ID"
	headerIdempotency = "Idempotency-Key"
	maxResponseBytes  = 4 << 20
)

// Client ResQNet API 客户端。零值不可用，使用 New 创建。
//
// The bearer credential is per Client; use Clone to give each session its own.
type Client struct {
	baseURL    string
	httpClient *http.Client
	log        zerolog.Logger

	mu     sync.RWMutex
	bearer string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option { return func(c *Client) { c.httpClient = hc } }

// WithTimeout sets the per-call timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		hc := *c.httpClient
		hc.Timeout = d
		c.httpClient = &hc
	}
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option { return func(c *Client) { c.log = l } }

// New 创建 API 客户端
func New(baseURL string, opts ...Option) *Client {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		log:        *obs.Logger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the API root.
func (c *Client) BaseURL() string { return c.baseURL }

// Clone returns a client sharing the connection pool but with no credential.
func (c *Client) Clone() *Client {
	return &Client{baseURL: c.baseURL, httpClient: c.httpClient, log: c.log}
}

// SetBearer attaches credential to every subsequent call.
func (c *Client) SetBearer(credential string) {
	c.mu.Lock()
	c.bearer = credential
	c.mu.Unlock()
}

// ClearBearer stops sending an Authorization header.
func (c *Client) ClearBearer() {
	c.mu.Lock()
	c.bearer = ""
	c.mu.Unlock()
}

// HasBearer reports whether a credential is attached.
func (c *Client) HasBearer() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.bearer != ""
}

type callOptions struct {
	idempotent bool
}

type callOption func(*callOptions)

// withIdempotencyKey marks a create call.
func withIdempotencyKey() callOption { return func(o *callOptions) { o.idempotent = true } }

// do sends one request. body and out may be nil. There are no retries.
func (c *Client) do(ctx context.Context, method, endpoint string, body, out any, opts ...callOption) error {
	var o callOptions
	for _, opt := range opts {
		opt(&o)
	}

	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			// NaN/Inf 等无法编码的值属于输入错误
			return fmt.Errorf("failed to marshal request body: %w: %w", ErrValidation, err)
		}
		reqBody = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reqBody)
	if err != nil {
		return &TransportError{Method: method, Endpoint: canonicalEndpoint(endpoint), Err: err}
	}

	requestID := middleware.GetReqID(ctx)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(headerRequestID, requestID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if o.idempotent {
		req.Header.Set(headerIdempotency, newIdempotencyKey())
	}
	c.mu.RLock()
	if c.bearer != "" {
		req.Header.Set("Authorization", "Bearer "+c.bearer)
	}
	c.mu.RUnlock()

	label := canonicalEndpoint(endpoint)
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		obs.ObserveUpstream(method, label, "error", time.Since(start))
		c.log.Warn().Err(err).Str("method", method).Str("endpoint", label).Str("request_id", requestID).Msg("api call failed")
		return &TransportError{Method: method, Endpoint: label, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	elapsed := time.Since(start)
	obs.ObserveUpstream(method, label, strconv.Itoa(resp.StatusCode), elapsed)
	c.log.Debug().
		Str("method", method).
		Str("endpoint", label).
		Int("status", resp.StatusCode).
		Dur("duration", elapsed).
		Str("request_id", requestID).
		Msg("api call")
	if err != nil {
		return &TransportError{Method: method, Endpoint: label, Err: fmt.Errorf("read response body: %w", err)}
	}

	if resp.StatusCode >= 400 {
		return newAPIError(method, label, resp.StatusCode, respBody)
	}

	if out == nil || len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return &APIError{StatusCode: resp.StatusCode, Method: method, Endpoint: label,
			Message: fmt.Sprintf("unexpected response body: %v", err)}
	}
	return nil
}

// getList is a GET for a collection; 404 means an empty result, not an error.
func (c *Client) getList(ctx context.Context, endpoint string, out any) error {
	err := c.do(ctx, http.MethodGet, endpoint, nil, out)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	return err
}

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(mathrand.New(mathrand.NewSource(time.Now().UnixNano())), 0)
)

// newIdempotencyKey returns a sortable unique key for create calls.
func newIdempotencyKey() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// canonicalEndpoint replaces ids and emails in a path with placeholders so
// metrics labels stay bounded.
func canonicalEndpoint(endpoint string) string {
	if i := strings.IndexByte(endpoint, '?'); i >= 0 {
		endpoint = endpoint[:i]
	}
	parts := strings.Split(endpoint, "/")
	for i, p := range parts {
		if p == "" {
			continue
		}
		if _, err := strconv.ParseInt(p, 10, 64); err == nil {
			parts[i] = "{id}"
		} else if strings.Contains(p, "@") || strings.Contains(p, "%40") {
			parts[i] = "{email}"
		}
	}
	return strings.Join(parts, "/")
}
