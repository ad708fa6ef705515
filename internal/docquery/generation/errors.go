package generation

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	ErrMalformedResponse = errors.New("generation response missing answer text")
	ErrNoServiceIdentity = errors.New("service identity credentials unavailable")
	ErrNoAttempts        = errors.New("no generation attempts configured")
	errEmptyPrompt       = errors.New("prompt is empty")
)

// HTTPError is a non-2xx response from the generation endpoint.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	if e == nil {
		return "generation http error"
	}
	if e.Body == "" {
		return fmt.Sprintf("generation http error: status=%d", e.StatusCode)
	}
	return fmt.Sprintf("generation http error: status=%d body=%s", e.StatusCode, e.Body)
}

type FailureKind int

const (
	FailureInternal FailureKind = iota
	FailureBadRequest
	FailureTokenLimit
)

func (k FailureKind) String() string {
	switch k {
	case FailureBadRequest:
		return "bad_request"
	case FailureTokenLimit:
		return "token_limit"
	default:
		return "internal"
	}
}

// Error is returned once every attempt of the fallback matrix has failed.
type Error struct {
	Kind     FailureKind
	Attempts []Attempt
	Err      error
}

func (e *Error) Error() string {
	if e == nil || e.Err == nil {
		return "generation failed"
	}
	return fmt.Sprintf("generation failed (%s): %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

var tokenLimitHints = []string{"token", "too long", "max", "limit"}

// IsNotFound reports whether err means the model is not served at this endpoint.
func IsNotFound(err error) bool {
	var he *HTTPError
	return errors.As(err, &he) && he.StatusCode == http.StatusNotFound
}

// IsTokenLimit reports whether err is a rejection of an input that is too large.
func IsTokenLimit(err error) bool {
	var he *HTTPError
	if !errors.As(err, &he) {
		return false
	}
	switch he.StatusCode {
	case http.StatusBadRequest, http.StatusRequestEntityTooLarge, http.StatusTooManyRequests:
	default:
		return false
	}
	body := strings.ToLower(he.Body)
	for _, hint := range tokenLimitHints {
		if strings.Contains(body, hint) {
			return true
		}
	}
	return false
}

func IsBadRequest(err error) bool {
	var he *HTTPError
	return errors.As(err, &he) && he.StatusCode == http.StatusBadRequest
}

// Classify maps the final attempt error to a failure kind.
func Classify(err error) FailureKind {
	switch {
	case IsTokenLimit(err):
		return FailureTokenLimit
	case IsBadRequest(err):
		return FailureBadRequest
	default:
		return FailureInternal
	}
}
