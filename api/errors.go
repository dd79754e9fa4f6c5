package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// StatusError is a non-success response from the marketplace API.
type StatusError struct {
	StatusCode int
	Code       string // "error" field of the response body
	Message    string // "message" field of the response body
}

func (e *StatusError) Error() string {
	switch {
	case e.Message != "":
		return fmt.Sprintf("http %d: %s", e.StatusCode, e.Message)
	case e.Code != "":
		return fmt.Sprintf("http %d: %s", e.StatusCode, e.Code)
	default:
		return fmt.Sprintf("http %d", e.StatusCode)
	}
}

// ErrTimeout indicates a timeout while issuing a request.
type ErrTimeout struct {
	Err error
}

func (e ErrTimeout) Error() string {
	return fmt.Errorf("timeout: %w", e.Err).Error()
}

func (e ErrTimeout) Unwrap() error {
	return e.Err
}

// ErrConnection indicates a network connectivity failure.
type ErrConnection struct {
	Err error
}

func (e ErrConnection) Error() string {
	return fmt.Errorf("connection: %w", e.Err).Error()
}

func (e ErrConnection) Unwrap() error {
	return e.Err
}

// ErrUnauthorized indicates the session is missing or expired (HTTP 401).
type ErrUnauthorized struct {
	Err error
}

func (e ErrUnauthorized) Error() string {
	return fmt.Errorf("unauthorized: %w", e.Err).Error()
}

func (e ErrUnauthorized) Unwrap() error {
	return e.Err
}

// ErrForbidden indicates a forbidden response (HTTP 403).
type ErrForbidden struct {
	Err error
}

func (e ErrForbidden) Error() string {
	return fmt.Errorf("forbidden: %w", e.Err).Error()
}

func (e ErrForbidden) Unwrap() error {
	return e.Err
}

// ErrNotFound indicates a missing resource (HTTP 404).
type ErrNotFound struct {
	Err error
}

func (e ErrNotFound) Error() string {
	return fmt.Errorf("not_found: %w", e.Err).Error()
}

func (e ErrNotFound) Unwrap() error {
	return e.Err
}

// ErrRateLimited indicates the server rate-limited the request.
type ErrRateLimited struct {
	Err error
}

func (e ErrRateLimited) Error() string {
	return fmt.Errorf("rate_limited: %w", e.Err).Error()
}

func (e ErrRateLimited) Unwrap() error {
	return e.Err
}

// ErrorLabel returns a low-cardinality label for err, used in metrics.
func ErrorLabel(err error) string {
	if err == nil {
		return "unknown"
	}
	var timeout ErrTimeout
	if errors.As(err, &timeout) {
		return "timeout"
	}
	var conn ErrConnection
	if errors.As(err, &conn) {
		return "connection"
	}
	var unauthorized ErrUnauthorized
	if errors.As(err, &unauthorized) {
		return "unauthorized"
	}
	var forbidden ErrForbidden
	if errors.As(err, &forbidden) {
		return "forbidden"
	}
	var notFound ErrNotFound
	if errors.As(err, &notFound) {
		return "not_found"
	}
	var rateLimited ErrRateLimited
	if errors.As(err, &rateLimited) {
		return "rate_limited"
	}
	var status *StatusError
	if errors.As(err, &status) {
		return "status"
	}
	return "other"
}

// Message turns err into text suitable for showing to a user.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var status *StatusError
	if errors.As(err, &status) && status.Message != "" {
		return status.Message
	}
	switch ErrorLabel(err) {
	case "timeout":
		return "The request timed out. Please try again."
	case "connection":
		return "Unable to reach the server. Please check your connection."
	case "unauthorized":
		return "Authentication Required"
	case "forbidden":
		return "You are not allowed to do that."
	case "not_found":
		return "Not found."
	case "rate_limited":
		return "Too many requests. Please wait a moment."
	}
	if status != nil && status.Code != "" {
		return status.Code
	}
	return err.Error()
}

// Classify wraps err into the client's error taxonomy. statusCode is 0 for
// transport failures.
func Classify(err error, statusCode int) error {
	if err == nil && statusCode == 0 {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout{Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrTimeout{Err: err}
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return ErrConnection{Err: err}
	}

	if statusCode != 0 {
		wrapped := err
		if wrapped == nil {
			wrapped = &StatusError{StatusCode: statusCode}
		}
		switch statusCode {
		case http.StatusUnauthorized:
			return ErrUnauthorized{Err: wrapped}
		case http.StatusForbidden:
			return ErrForbidden{Err: wrapped}
		case http.StatusNotFound:
			return ErrNotFound{Err: wrapped}
		case http.StatusTooManyRequests:
			return ErrRateLimited{Err: wrapped}
		}
		return wrapped
	}

	return err
}
