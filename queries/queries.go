// Package queries executes named queries defined on the platform.
package queries

import (
	"context"
	"net/http"
	"net/url"

	"github.com/pkg/errors"

	"github.com/hostbridge/hostbridge-go/request"
)

// Client executes named queries through a configured executor.
type Client struct {
	exec *request.Executor
}

// New creates a query client.
func New(exec *request.Executor) *Client {
	return &Client{exec: exec}
}

// Execute runs the named query with the given bind parameters and decodes
// the result set into out.
func (c *Client) Execute(ctx context.Context, name string, params map[string]any, out any) error {
	body := map[string]any{}
	if len(params) > 0 {
		body["params"] = params
	}
	err := c.exec.Do(ctx, request.Request{
		Method: http.MethodPost,
		Path:   "/queries/" + url.PathEscape(name),
		Body:   body,
	}, out)
	if err != nil {
		return errors.Wrapf(err, "[Client.Execute] query %q", name)
	}
	return nil
}
