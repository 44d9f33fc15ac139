// Package hostbridge is a Go client for the HostBridge platform HTTP API:
// authentication and session management, record CRUD, server-side function
// invocation, named-query execution, and request proxying.
//
// A Client wires two request executors over the same base URL. The session
// store drives the auth endpoints through an unauthenticated executor;
// every resource module shares an authenticated executor whose 401s are
// transparently answered with a single session refresh and retry.
package hostbridge

import (
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/hostbridge/hostbridge-go/functions"
	"github.com/hostbridge/hostbridge-go/proxy"
	"github.com/hostbridge/hostbridge-go/queries"
	"github.com/hostbridge/hostbridge-go/request"
	"github.com/hostbridge/hostbridge-go/session"
	"github.com/hostbridge/hostbridge-go/storage"
	"github.com/hostbridge/hostbridge-go/tables"
)

// Config identifies the application the client acts for.
type Config struct {
	// BaseURL is the platform API root, e.g. "https://api.hostbridge.dev".
	BaseURL string

	// AppID is sent as the X-App-Id header on every request and keys the
	// persisted session slot.
	AppID string
}

// Option configures a Client beyond the required Config.
type Option func(*clientOptions)

type clientOptions struct {
	httpClient request.Doer
	storage    storage.Store
	logger     zerolog.Logger
	errorHook  request.ErrorHook
}

// WithHTTPClient replaces the HTTP transport used by both executors.
func WithHTTPClient(client request.Doer) Option {
	return func(o *clientOptions) {
		o.httpClient = client
	}
}

// WithStorage sets the durable backend the session is mirrored into.
// Defaults to in-memory storage, which survives only the process lifetime.
func WithStorage(store storage.Store) Option {
	return func(o *clientOptions) {
		o.storage = store
	}
}

// WithLogger sets the logger shared by all components. Defaults to no-op.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *clientOptions) {
		o.logger = logger
	}
}

// WithErrorHook registers a hook observing every APIError surfaced from
// the authenticated executor.
func WithErrorHook(hook request.ErrorHook) Option {
	return func(o *clientOptions) {
		o.errorHook = hook
	}
}

// Client is the entry point to the SDK.
type Client struct {
	cfg       Config
	exec      *request.Executor
	auth      *session.Store
	functions *functions.Client
	queries   *queries.Client
	proxy     *proxy.Client
}

// New creates a Client for the application described by cfg.
func New(cfg Config, options ...Option) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("[New] BaseURL is required")
	}
	if cfg.AppID == "" {
		return nil, errors.New("[New] AppID is required")
	}

	opts := clientOptions{logger: zerolog.Nop()}
	for _, opt := range options {
		opt(&opts)
	}
	if opts.storage == nil {
		opts.storage = storage.NewMemory()
	}

	baseOptions := []request.Option{
		request.WithDefaultHeader("X-App-Id", cfg.AppID),
		request.WithLogger(opts.logger),
	}
	if opts.httpClient != nil {
		baseOptions = append(baseOptions, request.WithHTTPClient(opts.httpClient))
	}

	// The session store calls the auth endpoints unauthenticated; tokens
	// are attached explicitly per call, never via the retry loop.
	authExec := request.New(cfg.BaseURL, baseOptions...)
	auth := session.New(authExec, opts.storage, cfg.AppID, session.WithLogger(opts.logger))

	execOptions := append(baseOptions,
		request.WithTokenFunc(auth.AccessToken),
		request.WithUnauthorizedFunc(auth.RefreshSession),
	)
	if opts.errorHook != nil {
		execOptions = append(execOptions, request.WithErrorHook(opts.errorHook))
	}
	exec := request.New(cfg.BaseURL, execOptions...)

	return &Client{
		cfg:       cfg,
		exec:      exec,
		auth:      auth,
		functions: functions.New(exec),
		queries:   queries.New(exec),
		proxy:     proxy.New(exec),
	}, nil
}

// Auth returns the session store.
func (c *Client) Auth() *session.Store {
	return c.auth
}

// Table returns a CRUD handle for the named table.
func (c *Client) Table(name string) *tables.Handle {
	return tables.New(c.exec, name)
}

// Functions returns the function invocation client.
func (c *Client) Functions() *functions.Client {
	return c.functions
}

// Queries returns the named-query client.
func (c *Client) Queries() *queries.Client {
	return c.queries
}

// Proxy returns the request-proxy client.
func (c *Client) Proxy() *proxy.Client {
	return c.proxy
}

// Executor returns the authenticated request executor for endpoints the
// typed modules do not cover.
func (c *Client) Executor() *request.Executor {
	return c.exec
}
