// Package apperr defines the error kinds surfaced by waterdelta. Each kind is a
// distinct type so callers can tell a bad config apart from a dead network or a
// portal that changed its login flow, using errors.As.
package apperr

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// ConfigError is a required input that is absent or malformed. It is always
// detected before any network or file I/O.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("configuration error: %s", e.Message)
	}
	return fmt.Sprintf("configuration error for %s: %s", e.Field, e.Message)
}

// TransportError is a connection-level failure (DNS, reset, refused).
type TransportError struct {
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error requesting %s: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// TimeoutError is a request that exceeded its deadline.
type TimeoutError struct {
	URL string
	Err error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("request to %s timed out: %v", e.URL, e.Err)
}

func (e *TimeoutError) Unwrap() error {
	return e.Err
}

// ProtocolError is a response the portal's login flow should never produce:
// an unexpected status, a redirect without Location, a missing session cookie
// or a redirect chain longer than the hop limit.
type ProtocolError struct {
	URL        string
	StatusCode int
	Message    string
}

func (e *ProtocolError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("protocol error (%d) at %s: %s", e.StatusCode, e.URL, e.Message)
	}
	if e.URL != "" {
		return fmt.Sprintf("protocol error at %s: %s", e.URL, e.Message)
	}
	return fmt.Sprintf("protocol error: %s", e.Message)
}

// IOError is a local storage failure, such as writing the downloaded CSV.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("i/o error during %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("i/o error during %s of %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// DataError is a dataset that cannot produce an estimate.
type DataError struct {
	Message string
	Err     error
}

func (e *DataError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("data error: %s: %v", e.Message, e.Err)
	}
	return fmt.Sprintf("data error: %s", e.Message)
}

func (e *DataError) Unwrap() error {
	return e.Err
}

// FromRequest classifies an error returned by http.Client.Do or a body read
// into a TimeoutError or a TransportError.
func FromRequest(url string, err error) error {
	if IsTimeout(err) {
		return &TimeoutError{URL: url, Err: err}
	}
	return &TransportError{URL: url, Err: err}
}

// IsTimeout reports whether err was caused by a deadline.
func IsTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
