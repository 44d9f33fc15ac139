// Package functions invokes server-side functions by name.
package functions

import (
	"context"
	"net/http"
	"net/url"

	"github.com/pkg/errors"

	"github.com/hostbridge/hostbridge-go/request"
)

// Client invokes platform functions through a configured executor.
type Client struct {
	exec *request.Executor
}

// New creates a function client.
func New(exec *request.Executor) *Client {
	return &Client{exec: exec}
}

// Invoke runs the named function with payload as its JSON argument and
// decodes the result into out. Pass a nil payload for argument-less
// functions and a nil out to discard the result.
func (c *Client) Invoke(ctx context.Context, name string, payload any, out any) error {
	err := c.exec.Do(ctx, request.Request{
		Method: http.MethodPost,
		Path:   "/functions/" + url.PathEscape(name),
		Body:   payload,
	}, out)
	if err != nil {
		return errors.Wrapf(err, "[Client.Invoke] function %q", name)
	}
	return nil
}
