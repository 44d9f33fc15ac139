// Package request implements the single HTTP primitive every resource module
// of the SDK is built on: one call with consistent header and serialization
// handling, and an exactly-once retry after a successful session refresh.
package request

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Doer performs a single HTTP round trip. *http.Client satisfies it; tests
// can substitute their own transport.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// TokenFunc returns the current access token, or "" when no session is held.
// The executor reads the token through a callback rather than holding a
// reference to the session store, keeping the dependency one-directional.
type TokenFunc func() string

// UnauthorizedFunc is invoked on the first 401 of a request. It is expected
// to attempt a session refresh and report whether the request should be
// retried.
type UnauthorizedFunc func(ctx context.Context) bool

// ErrorHook receives every APIError that is about to be surfaced to a
// caller. A retried first 401 does not fire the hook; only the final
// failed attempt does.
type ErrorHook func(err *APIError)

// Executor issues HTTP calls against a fixed base URL with default headers,
// bearer-token attachment, and the single 401-triggered retry.
type Executor struct {
	baseURL        string
	client         Doer
	defaultHeaders map[string]string
	tokenFunc      TokenFunc
	onUnauthorized UnauthorizedFunc
	onError        ErrorHook
	logger         zerolog.Logger
}

// Option configures an Executor.
type Option func(*Executor)

// WithHTTPClient replaces the transport used for round trips.
func WithHTTPClient(client Doer) Option {
	return func(e *Executor) {
		e.client = client
	}
}

// WithDefaultHeader adds a header sent on every request. Per-call headers
// take precedence over defaults.
func WithDefaultHeader(key, value string) Option {
	return func(e *Executor) {
		e.defaultHeaders[key] = value
	}
}

// WithTokenFunc sets the access-token callback. When the callback returns a
// non-empty token, "Authorization: Bearer <token>" is attached.
func WithTokenFunc(fn TokenFunc) Option {
	return func(e *Executor) {
		e.tokenFunc = fn
	}
}

// WithUnauthorizedFunc sets the callback invoked on the first 401 of a
// request. Without it a 401 is surfaced like any other error status.
func WithUnauthorizedFunc(fn UnauthorizedFunc) Option {
	return func(e *Executor) {
		e.onUnauthorized = fn
	}
}

// WithErrorHook registers a hook observing every surfaced APIError.
func WithErrorHook(fn ErrorHook) Option {
	return func(e *Executor) {
		e.onError = fn
	}
}

// WithLogger sets the executor's logger. Defaults to a no-op logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(e *Executor) {
		e.logger = logger
	}
}

// New creates an Executor bound to baseURL.
func New(baseURL string, options ...Option) *Executor {
	e := &Executor{
		baseURL:        strings.TrimRight(baseURL, "/"),
		client:         http.DefaultClient,
		defaultHeaders: make(map[string]string),
		logger:         zerolog.Nop(),
	}
	for _, opt := range options {
		opt(e)
	}
	return e
}

// Request describes one call. Query entries with a nil value are omitted
// from the encoded query string.
type Request struct {
	Method  string
	Path    string
	Body    any
	Headers map[string]string
	Query   map[string]any
}

// Do performs the request and, on a 2xx response, decodes the JSON body
// into out (which may be nil to discard it). A 204 leaves out untouched.
// Non-2xx responses become *APIError; transport failures are returned as
// wrapped plain errors with no status attached.
func (e *Executor) Do(ctx context.Context, req Request, out any) error {
	return e.do(ctx, req, out, false)
}

func (e *Executor) do(ctx context.Context, req Request, out any, isRetry bool) error {
	httpReq, err := e.buildRequest(ctx, req)
	if err != nil {
		return err
	}

	resp, err := e.client.Do(httpReq)
	if err != nil {
		return errors.Wrap(err, "[Executor.Do] http round trip")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "[Executor.Do] read response body")
	}

	e.logger.Debug().
		Str("method", req.Method).
		Str("path", req.Path).
		Int("status", resp.StatusCode).
		Bool("retry", isRetry).
		Msg("request completed")

	if resp.StatusCode == http.StatusUnauthorized && !isRetry && e.onUnauthorized != nil {
		if e.onUnauthorized(ctx) {
			return e.do(ctx, req, out, true)
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := newAPIError(resp.StatusCode, body)
		if e.onError != nil {
			e.onError(apiErr)
		}
		return apiErr
	}

	if resp.StatusCode == http.StatusNoContent || out == nil {
		return nil
	}

	if err := json.Unmarshal(body, out); err != nil {
		return errors.Wrap(err, "[Executor.Do] decode response body")
	}
	return nil
}

func (e *Executor) buildRequest(ctx context.Context, req Request) (*http.Request, error) {
	target := e.baseURL + req.Path
	if query := encodeQuery(req.Query); query != "" {
		target += "?" + query
	}

	var bodyReader io.Reader
	if req.Body != nil {
		raw, err := json.Marshal(req.Body)
		if err != nil {
			return nil, errors.Wrap(err, "[Executor.buildRequest] marshal body")
		}
		bodyReader = bytes.NewReader(raw)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target, bodyReader)
	if err != nil {
		return nil, errors.Wrap(err, "[Executor.buildRequest] new request")
	}

	// Precedence: defaults < per-call headers < computed Authorization.
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Request-Id", uuid.NewString())
	for key, value := range e.defaultHeaders {
		httpReq.Header.Set(key, value)
	}
	for key, value := range req.Headers {
		httpReq.Header.Set(key, value)
	}
	if e.tokenFunc != nil {
		if token := e.tokenFunc(); token != "" {
			httpReq.Header.Set("Authorization", "Bearer "+token)
		}
	}

	return httpReq, nil
}

func encodeQuery(query map[string]any) string {
	if len(query) == 0 {
		return ""
	}
	values := url.Values{}
	for key, value := range query {
		if value == nil {
			continue
		}
		values.Set(key, fmt.Sprint(value))
	}
	return values.Encode()
}
