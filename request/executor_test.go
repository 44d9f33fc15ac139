package request_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hostbridge/hostbridge-go/request"
)

type recordedRequest struct {
	Method string
	Path   string
	Query  string
	Header http.Header
	Body   []byte
}

// recordingServer captures every request and replies with the queued
// responses in order, repeating the last one.
type recordingServer struct {
	t         *testing.T
	requests  []recordedRequest
	responses []func(w http.ResponseWriter)
	calls     atomic.Int64
	server    *httptest.Server
}

func newRecordingServer(t *testing.T, responses ...func(w http.ResponseWriter)) *recordingServer {
	t.Helper()
	rs := &recordingServer{t: t, responses: responses}
	rs.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		rs.requests = append(rs.requests, recordedRequest{
			Method: r.Method,
			Path:   r.URL.Path,
			Query:  r.URL.RawQuery,
			Header: r.Header.Clone(),
			Body:   body,
		})
		n := rs.calls.Add(1)
		idx := int(n) - 1
		if idx >= len(rs.responses) {
			idx = len(rs.responses) - 1
		}
		rs.responses[idx](w)
	}))
	t.Cleanup(rs.server.Close)
	return rs
}

func respondJSON(status int, body string) func(w http.ResponseWriter) {
	return func(w http.ResponseWriter) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}
}

func TestExecutor_Do(t *testing.T) {
	t.Run("decodes JSON result", func(t *testing.T) {
		rs := newRecordingServer(t, respondJSON(http.StatusOK, `{"value":"hello"}`))
		exec := request.New(rs.server.URL)

		var out struct {
			Value string `json:"value"`
		}
		err := exec.Do(context.Background(), request.Request{Method: http.MethodGet, Path: "/things"}, &out)
		require.NoError(t, err)
		require.Equal(t, "hello", out.Value)
	})

	t.Run("204 leaves out untouched", func(t *testing.T) {
		rs := newRecordingServer(t, func(w http.ResponseWriter) {
			w.WriteHeader(http.StatusNoContent)
		})
		exec := request.New(rs.server.URL)

		out := map[string]any{"pre": "existing"}
		err := exec.Do(context.Background(), request.Request{Method: http.MethodDelete, Path: "/things/1"}, &out)
		require.NoError(t, err)
		require.Equal(t, map[string]any{"pre": "existing"}, out)
	})

	t.Run("serializes body as JSON", func(t *testing.T) {
		rs := newRecordingServer(t, respondJSON(http.StatusOK, `{}`))
		exec := request.New(rs.server.URL)

		err := exec.Do(context.Background(), request.Request{
			Method: http.MethodPost,
			Path:   "/things",
			Body:   map[string]any{"name": "widget", "count": 3},
		}, nil)
		require.NoError(t, err)
		require.JSONEq(t, `{"name":"widget","count":3}`, string(rs.requests[0].Body))
	})

	t.Run("omits nil query values", func(t *testing.T) {
		rs := newRecordingServer(t, respondJSON(http.StatusOK, `[]`))
		exec := request.New(rs.server.URL)

		err := exec.Do(context.Background(), request.Request{
			Method: http.MethodGet,
			Path:   "/things",
			Query:  map[string]any{"limit": 10, "skip": nil},
		}, nil)
		require.NoError(t, err)
		require.Equal(t, "limit=10", rs.requests[0].Query)
	})

	t.Run("header precedence", func(t *testing.T) {
		rs := newRecordingServer(t, respondJSON(http.StatusOK, `{}`))
		exec := request.New(rs.server.URL,
			request.WithDefaultHeader("X-App-Id", "app-1"),
			request.WithDefaultHeader("X-Env", "default"),
			request.WithTokenFunc(func() string { return "tok-1" }),
		)

		err := exec.Do(context.Background(), request.Request{
			Method: http.MethodGet,
			Path:   "/things",
			Headers: map[string]string{
				"X-Env":         "per-call",
				"Authorization": "Bearer stale",
			},
		}, nil)
		require.NoError(t, err)

		header := rs.requests[0].Header
		require.Equal(t, "application/json", header.Get("Content-Type"))
		require.Equal(t, "app-1", header.Get("X-App-Id"))
		require.Equal(t, "per-call", header.Get("X-Env"))
		require.Equal(t, "Bearer tok-1", header.Get("Authorization"))
		require.NotEmpty(t, header.Get("X-Request-Id"))
	})

	t.Run("authorization omitted without token", func(t *testing.T) {
		rs := newRecordingServer(t, respondJSON(http.StatusOK, `{}`))
		exec := request.New(rs.server.URL, request.WithTokenFunc(func() string { return "" }))

		err := exec.Do(context.Background(), request.Request{Method: http.MethodGet, Path: "/things"}, nil)
		require.NoError(t, err)
		require.Empty(t, rs.requests[0].Header.Get("Authorization"))
	})

	t.Run("content type overridable per call", func(t *testing.T) {
		rs := newRecordingServer(t, respondJSON(http.StatusOK, `{}`))
		exec := request.New(rs.server.URL)

		err := exec.Do(context.Background(), request.Request{
			Method:  http.MethodPost,
			Path:    "/things",
			Headers: map[string]string{"Content-Type": "text/plain"},
		}, nil)
		require.NoError(t, err)
		require.Equal(t, "text/plain", rs.requests[0].Header.Get("Content-Type"))
	})
}

func TestExecutor_Errors(t *testing.T) {
	t.Run("non-2xx becomes APIError", func(t *testing.T) {
		rs := newRecordingServer(t, respondJSON(http.StatusConflict,
			`{"message":"email taken","error_code":"duplicate_email","field":"email"}`))
		exec := request.New(rs.server.URL)

		err := exec.Do(context.Background(), request.Request{Method: http.MethodPost, Path: "/auth/signup"}, nil)
		require.Error(t, err)

		apiErr := request.AsAPIError(err)
		require.NotNil(t, apiErr)
		require.Equal(t, http.StatusConflict, apiErr.Status)
		require.Equal(t, "email taken", apiErr.Message)
		require.Equal(t, "duplicate_email", apiErr.Code)

		var details map[string]any
		require.NoError(t, json.Unmarshal(apiErr.Details, &details))
		require.Equal(t, "email", details["field"])
	})

	t.Run("unparsable body falls back to generic message", func(t *testing.T) {
		rs := newRecordingServer(t, respondJSON(http.StatusBadGateway, `<html>bad gateway</html>`))
		exec := request.New(rs.server.URL)

		err := exec.Do(context.Background(), request.Request{Method: http.MethodGet, Path: "/things"}, nil)
		apiErr := request.AsAPIError(err)
		require.NotNil(t, apiErr)
		require.Equal(t, http.StatusBadGateway, apiErr.Status)
		require.Equal(t, "Request failed with status 502", apiErr.Message)
		require.JSONEq(t, `{}`, string(apiErr.Details))
	})

	t.Run("network failure is not an APIError", func(t *testing.T) {
		rs := newRecordingServer(t, respondJSON(http.StatusOK, `{}`))
		url := rs.server.URL
		rs.server.Close()

		exec := request.New(url)
		err := exec.Do(context.Background(), request.Request{Method: http.MethodGet, Path: "/things"}, nil)
		require.Error(t, err)
		require.Nil(t, request.AsAPIError(err))
		require.Equal(t, 0, request.StatusOf(err))
	})

	t.Run("error hook fires once per failed request", func(t *testing.T) {
		rs := newRecordingServer(t, respondJSON(http.StatusNotFound, `{"message":"gone"}`))

		var hooked []*request.APIError
		exec := request.New(rs.server.URL, request.WithErrorHook(func(err *request.APIError) {
			hooked = append(hooked, err)
		}))

		err := exec.Do(context.Background(), request.Request{Method: http.MethodGet, Path: "/things/1"}, nil)
		require.Error(t, err)
		require.Len(t, hooked, 1)
		require.Equal(t, http.StatusNotFound, hooked[0].Status)
	})
}

func TestExecutor_UnauthorizedRetry(t *testing.T) {
	t.Run("retries once when callback succeeds", func(t *testing.T) {
		rs := newRecordingServer(t,
			respondJSON(http.StatusUnauthorized, `{"message":"expired"}`),
			respondJSON(http.StatusOK, `{"value":"fresh"}`),
		)

		refreshed := 0
		exec := request.New(rs.server.URL, request.WithUnauthorizedFunc(func(ctx context.Context) bool {
			refreshed++
			return true
		}))

		var out struct {
			Value string `json:"value"`
		}
		err := exec.Do(context.Background(), request.Request{
			Method: http.MethodPost,
			Path:   "/things",
			Body:   map[string]string{"name": "widget"},
		}, &out)
		require.NoError(t, err)
		require.Equal(t, "fresh", out.Value)
		require.Equal(t, 1, refreshed)

		require.Len(t, rs.requests, 2)
		require.Equal(t, rs.requests[0].Path, rs.requests[1].Path)
		require.Equal(t, rs.requests[0].Method, rs.requests[1].Method)
		require.Equal(t, rs.requests[0].Body, rs.requests[1].Body)
	})

	t.Run("second 401 is surfaced, no further retries", func(t *testing.T) {
		rs := newRecordingServer(t, respondJSON(http.StatusUnauthorized, `{"message":"expired"}`))

		refreshed := 0
		exec := request.New(rs.server.URL, request.WithUnauthorizedFunc(func(ctx context.Context) bool {
			refreshed++
			return true
		}))

		err := exec.Do(context.Background(), request.Request{Method: http.MethodGet, Path: "/things"}, nil)
		apiErr := request.AsAPIError(err)
		require.NotNil(t, apiErr)
		require.Equal(t, http.StatusUnauthorized, apiErr.Status)
		require.Equal(t, 1, refreshed)
		require.Len(t, rs.requests, 2)
	})

	t.Run("callback declining means no retry", func(t *testing.T) {
		rs := newRecordingServer(t, respondJSON(http.StatusUnauthorized, `{"message":"expired"}`))
		exec := request.New(rs.server.URL, request.WithUnauthorizedFunc(func(ctx context.Context) bool {
			return false
		}))

		err := exec.Do(context.Background(), request.Request{Method: http.MethodGet, Path: "/things"}, nil)
		require.Equal(t, http.StatusUnauthorized, request.StatusOf(err))
		require.Len(t, rs.requests, 1)
	})

	t.Run("no callback means 401 is a plain APIError", func(t *testing.T) {
		rs := newRecordingServer(t, respondJSON(http.StatusUnauthorized, `{"message":"expired"}`))
		exec := request.New(rs.server.URL)

		err := exec.Do(context.Background(), request.Request{Method: http.MethodGet, Path: "/things"}, nil)
		require.Equal(t, http.StatusUnauthorized, request.StatusOf(err))
		require.Len(t, rs.requests, 1)
	})

	t.Run("hook skipped for retried first 401", func(t *testing.T) {
		rs := newRecordingServer(t,
			respondJSON(http.StatusUnauthorized, `{"message":"expired"}`),
			respondJSON(http.StatusOK, `{}`),
		)

		hooked := 0
		exec := request.New(rs.server.URL,
			request.WithUnauthorizedFunc(func(ctx context.Context) bool { return true }),
			request.WithErrorHook(func(err *request.APIError) { hooked++ }),
		)

		err := exec.Do(context.Background(), request.Request{Method: http.MethodGet, Path: "/things"}, nil)
		require.NoError(t, err)
		require.Zero(t, hooked)
	})
}
