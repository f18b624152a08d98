package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
)

// ConnectivityKind categorizes a failure to reach the order API.
type ConnectivityKind string

const (
	KindRefused ConnectivityKind = "refused"
	KindDNS     ConnectivityKind = "dns"
	KindTimeout ConnectivityKind = "timeout"
	KindOther   ConnectivityKind = "other"
)

// ConnectivityError means the request never produced an HTTP response.
type ConnectivityError struct {
	Op   string
	URL  string
	Kind ConnectivityKind
	Err  error
}

func (e *ConnectivityError) Error() string {
	return fmt.Sprintf("%s %s: %s: %v", e.Op, e.URL, e.Kind, e.Err)
}

func (e *ConnectivityError) Unwrap() error {
	return e.Err
}

// APIError means the API answered but rejected the request, either with a
// non-2xx status or with success=false in the response envelope.
type APIError struct {
	Op         string
	StatusCode int
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s rejected: %s (status %d)", e.Op, e.Message, e.StatusCode)
	}
	return fmt.Sprintf("%s rejected (status %d): %s", e.Op, e.StatusCode, e.Body)
}

// IsConnectivity returns true if err is or wraps a ConnectivityError.
func IsConnectivity(err error) bool {
	var ce *ConnectivityError
	return errors.As(err, &ce)
}

func asConnectivity(err error) (*ConnectivityError, bool) {
	var ce *ConnectivityError
	ok := errors.As(err, &ce)
	return ce, ok
}

// IsRejected returns true if err is or wraps an APIError.
func IsRejected(err error) bool {
	var ae *APIError
	return errors.As(err, &ae)
}

// StatusCode returns the HTTP status of a wrapped APIError, or 0.
func StatusCode(err error) int {
	var ae *APIError
	if errors.As(err, &ae) {
		return ae.StatusCode
	}
	return 0
}

func classify(err error) ConnectivityKind {
	var dnsErr *net.DNSError
	var netErr net.Error
	switch {
	case errors.Is(err, syscall.ECONNREFUSED):
		return KindRefused
	case errors.As(err, &dnsErr):
		return KindDNS
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.As(err, &netErr) && netErr.Timeout():
		return KindTimeout
	default:
		return KindOther
	}
}
