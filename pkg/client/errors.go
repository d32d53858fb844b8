package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"unicode/utf8"

	"resqnet-web/pkg/models"
)

// Error taxonomy for calls to the ResQNet API. Every error returned by the
// client matches exactly one of these with errors.Is.
var (
	ErrTransport       = errors.New("api unreachable")
	ErrUnauthenticated = errors.New("not authenticated")
	ErrForbidden       = errors.New("forbidden")
	ErrValidation      = models.ErrValidation
	ErrNotFound        = errors.New("not found")
	ErrServer          = errors.New("api server error")
)

// APIError is a non-2xx response from the API.
type APIError struct {
	StatusCode int
	Method     string
	Endpoint   string
	Message    string
	// Fields holds per-field messages from a 400 validation response.
	Fields models.ValidationErrors
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Endpoint, e.StatusCode, msg)
}

// Unwrap maps the status code onto the taxonomy.
func (e *APIError) Unwrap() error {
	switch {
	case e.StatusCode == http.StatusUnauthorized:
		return ErrUnauthenticated
	case e.StatusCode == http.StatusForbidden:
		return ErrForbidden
	case e.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case e.StatusCode >= 500 || e.StatusCode < 400:
		return ErrServer
	default:
		// 400, 422 and the remaining 4xx are problems with what was sent.
		return ErrValidation
	}
}

// TransportError wraps a failure to reach the API at all.
type TransportError struct {
	Method   string
	Endpoint string
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Method, e.Endpoint, e.Err)
}

// Unwrap matches both ErrTransport and the underlying cause (for context.Canceled).
func (e *TransportError) Unwrap() []error { return []error{ErrTransport, e.Err} }

// Message returns a short human-readable message for err suitable for inline display.
func Message(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	var verrs models.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return verrs[0].Message
	}
	switch {
	case errors.Is(err, ErrTransport):
		return "Unable to reach the server. Please try again."
	case errors.Is(err, ErrUnauthenticated):
		return "Your session has expired. Please log in again."
	case errors.Is(err, ErrForbidden):
		return "You are not allowed to do that."
	case errors.Is(err, ErrNotFound):
		return "Not found."
	case errors.Is(err, ErrValidation):
		return "Please check your input and try again."
	case errors.Is(err, ErrServer):
		return "The server ran into a problem."
	}
	return "Something went wrong."
}

// newAPIError parses the body the backend sends with an error status:
// {"error": ..., "status": ...}, {"message": ...}, a {field: message} map
// for bean validation failures, or plain text.
func newAPIError(method, endpoint string, status int, body []byte) *APIError {
	e := &APIError{StatusCode: status, Method: method, Endpoint: endpoint}
	text := strings.TrimSpace(string(body))
	if text == "" {
		return e
	}

	var obj map[string]any
	if err := json.Unmarshal(body, &obj); err != nil {
		var s string
		if json.Unmarshal(body, &s) == nil {
			text = s
		}
		e.Message = truncate(text, 300)
		return e
	}

	for _, key := range []string{"message", "error", "detail"} {
		if s, ok := obj[key].(string); ok && s != "" {
			e.Message = s
			return e
		}
	}

	if status == http.StatusBadRequest || status == http.StatusUnprocessableEntity {
		keys := make([]string, 0, len(obj))
		for k := range obj {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if s, ok := obj[k].(string); ok {
				e.Fields = e.Fields.Add(k, s)
			}
		}
		if len(e.Fields) > 0 {
			e.Message = e.Fields[0].Message
		}
	}
	return e
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	// 不截断多字节字符
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "…"
}
