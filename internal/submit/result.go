package submit

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Outcome classifies a finished submission.
type Outcome string

const (
	OutcomeOK      Outcome = "ok"
	OutcomeInput   Outcome = "input_error"
	OutcomeNetwork Outcome = "network_error"
	OutcomeHTTP    Outcome = "http_error"
	OutcomeApp     Outcome = "app_error"
	OutcomeDecode  Outcome = "decode_error"
)

// HTTPError is a non-2xx response from the backend.
type HTTPError struct {
	StatusCode int
	StatusText string
	// Detail is the server supplied reason, when the body carried one.
	Detail string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("Server responded with %d: %s", e.StatusCode, e.StatusText)
}

func newHTTPError(resp *http.Response, detail string) *HTTPError {
	text := http.StatusText(resp.StatusCode)
	if text == "" {
		text = resp.Status
	}
	return &HTTPError{StatusCode: resp.StatusCode, StatusText: text, Detail: detail}
}

// AppError is an {"error": ...} body on an otherwise successful response.
type AppError struct {
	Message string
}

func (e *AppError) Error() string { return e.Message }

// DecodeError is a successful response whose body could not be read as JSON.
type DecodeError struct {
	StatusCode int
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("submit: decode response: status %d body is not valid JSON", e.StatusCode)
}

// Result is the classified outcome of one submission.
type Result struct {
	Operation string
	// Value is the success body, with a "result" envelope removed.
	Value    json.RawMessage
	Err      error
	Duration time.Duration
}

// OK reports whether the submission succeeded.
func (r Result) OK() bool { return r.Err == nil }

// Outcome classifies r for logs and metrics.
func (r Result) Outcome() Outcome {
	var httpErr *HTTPError
	var appErr *AppError
	var decodeErr *DecodeError
	switch {
	case r.Err == nil:
		return OutcomeOK
	case errors.Is(r.Err, ErrInput):
		return OutcomeInput
	case errors.As(r.Err, &httpErr):
		return OutcomeHTTP
	case errors.As(r.Err, &appErr):
		return OutcomeApp
	case errors.As(r.Err, &decodeErr):
		return OutcomeDecode
	default:
		return OutcomeNetwork
	}
}

// Display returns the value to render: the success body, or an object with
// an "error" message (and "detail" when the server gave one).
func (r Result) Display() any {
	if r.Err == nil {
		if len(r.Value) == 0 {
			return json.RawMessage("null")
		}
		return r.Value
	}
	out := map[string]string{"error": r.Err.Error()}
	var httpErr *HTTPError
	if errors.As(r.Err, &httpErr) && httpErr.Detail != "" {
		out["detail"] = httpErr.Detail
	}
	return out
}
