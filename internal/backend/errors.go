package backend

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrUnreachable matches transport failures and an open circuit breaker.
var ErrUnreachable = errors.New("backend unreachable")

// unreachableError carries the operator-facing wording while still matching
// ErrUnreachable with errors.Is.
type unreachableError struct {
	cause error
}

func (e *unreachableError) Error() string        { return "Cannot reach backend." }
func (e *unreachableError) Unwrap() error        { return e.cause }
func (e *unreachableError) Is(target error) bool { return target == ErrUnreachable }

// APIError is a non-2xx answer from the backend. Message is already the text
// shown to the operator.
type APIError struct {
	Action  string
	Status  int
	Message string
}

func (e *APIError) Error() string { return e.Message }

// errorBody is the backend's error envelope. detail wins over error.
type errorBody struct {
	Detail any `json:"detail"`
	Error  any `json:"error"`
}

func readAPIError(action, fallback string, status int, body io.Reader, detailAllowed bool) *APIError {
	var payload errorBody
	_ = json.NewDecoder(io.LimitReader(body, 1<<20)).Decode(&payload)

	message := ""
	if detailAllowed {
		message = describe(payload.Detail)
	}
	if message == "" {
		message = describe(payload.Error)
	}
	if message == "" {
		message = fmt.Sprintf("%s (%d)", fallback, status)
	}
	return &APIError{Action: action, Status: status, Message: message}
}

func describe(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case bool:
		if !v {
			return ""
		}
	}
	encoded, err := json.Marshal(value)
	if err != nil {
		return ""
	}
	return string(encoded)
}

// IsStatus reports whether err is an APIError with the given status.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == status
}
