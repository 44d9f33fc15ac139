// Package proxy forwards HTTP requests to third-party services through the
// platform's proxy endpoint, so browser-restricted or credentialed targets
// can be reached with the platform's egress identity.
package proxy

import (
	"context"
	"net/http"

	"github.com/pkg/errors"

	"github.com/hostbridge/hostbridge-go/request"
)

// Request describes the outbound call the platform performs on the
// caller's behalf.
type Request struct {
	URL     string            `json:"url"`
	Method  string            `json:"method"`
	Headers map[string]string `json:"headers,omitempty"`
	Body    any               `json:"body,omitempty"`
}

// Client sends proxied requests through a configured executor.
type Client struct {
	exec *request.Executor
}

// New creates a proxy client.
func New(exec *request.Executor) *Client {
	return &Client{exec: exec}
}

// Send forwards req through the platform and decodes the proxied response
// body into out.
func (c *Client) Send(ctx context.Context, req Request, out any) error {
	err := c.exec.Do(ctx, request.Request{
		Method: http.MethodPost,
		Path:   "/proxy",
		Body:   req,
	}, out)
	if err != nil {
		return errors.Wrapf(err, "[Client.Send] proxy to %s", req.URL)
	}
	return nil
}
