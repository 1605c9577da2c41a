package translate

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
)

// ErrorKind classifies a failed provider call. The kind decides whether the
// call is retried, whether the provider is disabled for the rest of the run,
// and how the strategy reacts.
type ErrorKind string

const (
	ErrAuthentication ErrorKind = "AUTHENTICATION_ERROR"
	ErrPermission     ErrorKind = "PERMISSION_DENIED"
	ErrQuota          ErrorKind = "INSUFFICIENT_QUOTA"
	ErrNotFound       ErrorKind = "NOT_FOUND"
	ErrContentFilter  ErrorKind = "CONTENT_FILTER"
	ErrUnprocessable  ErrorKind = "UNPROCESSABLE_ENTITY"
	ErrPayloadTooBig  ErrorKind = "PAYLOAD_TOO_LARGE"
	ErrLengthLimit    ErrorKind = "LENGTH_LIMIT"
	ErrRateLimit      ErrorKind = "RATE_LIMIT"
	ErrConnection     ErrorKind = "CONNECTION_ERROR"
	ErrTimeout        ErrorKind = "TIMEOUT"
	ErrOther          ErrorKind = "OTHER"
)

// Retryable reports whether another attempt against the same provider may
// succeed. Length-limit failures are not retried as-is; the subtitle
// strategy splits the batch instead.
func (k ErrorKind) Retryable() bool {
	switch k {
	case ErrRateLimit, ErrConnection, ErrTimeout, ErrOther:
		return true
	}
	return false
}

// ProviderFatal reports whether the error disables the provider for the
// remainder of the process.
func (k ErrorKind) ProviderFatal() bool {
	switch k {
	case ErrAuthentication, ErrPermission, ErrQuota, ErrNotFound:
		return true
	}
	return false
}

func classifyStatus(status int, body string) ErrorKind {
	switch status {
	case http.StatusUnauthorized:
		return ErrAuthentication
	case http.StatusPaymentRequired:
		return ErrQuota
	case http.StatusForbidden:
		return ErrPermission
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusRequestTimeout:
		return ErrTimeout
	case http.StatusRequestEntityTooLarge:
		return ErrPayloadTooBig
	case http.StatusUnprocessableEntity:
		return ErrUnprocessable
	case http.StatusTooManyRequests:
		if strings.Contains(strings.ToLower(body), "quota") {
			return ErrQuota
		}
		return ErrRateLimit
	}
	if status >= 500 {
		return ErrConnection
	}
	return ErrOther
}

func classifyTransportError(err error) ErrorKind {
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrTimeout
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return ErrConnection
	}
	if strings.Contains(err.Error(), "connection") {
		return ErrConnection
	}
	return ErrOther
}

// classifyFinishReason maps completion metadata onto request-scoped kinds.
func classifyFinishReason(reason string) (ErrorKind, bool) {
	switch strings.ToLower(strings.TrimSpace(reason)) {
	case "length":
		return ErrLengthLimit, true
	case "content_filter":
		return ErrContentFilter, true
	}
	return "", false
}
