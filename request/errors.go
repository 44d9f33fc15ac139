package request

import (
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"
)

// APIError is the structured failure returned for any non-2xx response the
// platform produces. Network-level failures (connection refused, timeouts)
// are NOT APIErrors - they carry no HTTP status and are returned as plain
// wrapped errors, so callers can distinguish the two with errors.As.
type APIError struct {
	Message string          // Human readable message from the response body
	Status  int             // HTTP status code
	Code    string          // Platform error code, empty when the body carried none
	Details json.RawMessage // The raw response body, "{}" when unparsable
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s (status %d, code %s)", e.Message, e.Status, e.Code)
	}
	return fmt.Sprintf("%s (status %d)", e.Message, e.Status)
}

// AsAPIError unwraps err into an *APIError, returning nil when err is not
// backend-originated (e.g. a transport failure).
func AsAPIError(err error) *APIError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return nil
}

// StatusOf returns the HTTP status carried by err, or 0 when err is not an
// APIError.
func StatusOf(err error) int {
	if apiErr := AsAPIError(err); apiErr != nil {
		return apiErr.Status
	}
	return 0
}

// errorBody is the subset of an error response the platform guarantees.
// Everything else in the body is preserved opaquely in APIError.Details.
type errorBody struct {
	Message string `json:"message"`
	Code    string `json:"error_code"`
}

func newAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{
		Status:  status,
		Details: json.RawMessage("{}"),
	}

	if len(body) > 0 && json.Valid(body) {
		apiErr.Details = json.RawMessage(body)
		var parsed errorBody
		if json.Unmarshal(body, &parsed) == nil {
			apiErr.Message = parsed.Message
			apiErr.Code = parsed.Code
		}
	}

	if apiErr.Message == "" {
		apiErr.Message = fmt.Sprintf("Request failed with status %d", status)
	}

	return apiErr
}
