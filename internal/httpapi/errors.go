package httpapi

import (
	"errors"
	"fmt"
	"strings"
)

// TransportError wraps a network level failure: DNS, connect, timeout or a
// truncated body.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// StatusError reports a response whose status code was not accepted.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	body := strings.TrimSpace(e.Body)
	if body == "" {
		return fmt.Sprintf("unexpected status %d", e.Code)
	}
	return fmt.Sprintf("unexpected status %d: %s", e.Code, body)
}

// ShapeError reports a payload that could not be decoded into the expected
// structure.
type ShapeError struct {
	Body string
	Err  error
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("unexpected response shape: %v", e.Err)
}

func (e *ShapeError) Unwrap() error {
	return e.Err
}

// PolicyError reports an accepted status whose payload signals a semantic
// failure.
type PolicyError struct {
	Reason string
	Body   string
}

func (e *PolicyError) Error() string {
	body := strings.TrimSpace(e.Body)
	if body == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Reason, body)
}

// IsTransport reports whether err is a TransportError.
func IsTransport(err error) bool {
	var target *TransportError
	return errors.As(err, &target)
}

// ResponseBody returns the untrimmed response body carried by err, when any.
func ResponseBody(err error) (string, bool) {
	var status *StatusError
	if errors.As(err, &status) {
		return status.Body, true
	}
	var shape *ShapeError
	if errors.As(err, &shape) {
		return shape.Body, true
	}
	var policy *PolicyError
	if errors.As(err, &policy) {
		return policy.Body, true
	}
	return "", false
}
