package remote

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

// StatusError is returned when a remote answers with a non-2xx status.
type StatusError struct {
	Remote     string
	Method     string
	Endpoint   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: %s %s: status %d", e.Remote, e.Method, e.Endpoint, e.StatusCode)
	}
	return fmt.Sprintf("%s: %s %s: status %d: %s", e.Remote, e.Method, e.Endpoint, e.StatusCode, e.Body)
}

// Transient reports whether retrying the same request may succeed.
func (e *StatusError) Transient() bool {
	switch e.StatusCode {
	case http.StatusTooManyRequests, http.StatusRequestTimeout:
		return true
	}
	return e.StatusCode >= 500
}

// TransportError wraps network level failures (timeouts, resets, DNS).
type TransportError struct {
	Remote   string
	Method   string
	Endpoint string
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %s %s: %v", e.Remote, e.Method, e.Endpoint, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// BreakerError is returned while the circuit breaker rejects calls.
type BreakerError struct {
	Remote string
	Err    error
}

func (e *BreakerError) Error() string {
	return fmt.Sprintf("%s: %v", e.Remote, e.Err)
}

func (e *BreakerError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err is worth retrying with the same input.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Transient()
	}
	var breakerErr *BreakerError
	if errors.As(err, &breakerErr) {
		return true
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var transportErr *TransportError
	return errors.As(err, &transportErr)
}

// IsStatus reports whether err is a StatusError with the given code.
func IsStatus(err error, code int) bool {
	var statusErr *StatusError
	return errors.As(err, &statusErr) && statusErr.StatusCode == code
}

// BodyContains reports whether err is a StatusError whose body contains any
// of the given fragments (case-insensitive).
func BodyContains(err error, fragments ...string) bool {
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		return false
	}
	body := strings.ToLower(statusErr.Body)
	for _, f := range fragments {
		if strings.Contains(body, strings.ToLower(f)) {
			return true
		}
	}
	return false
}
