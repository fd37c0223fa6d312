package apperr

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"testing"
)

func TestErrorMessages(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "config error with field",
			err:  &ConfigError{Field: "email", Message: "is required"},
			want: "configuration error for email: is required",
		},
		{
			name: "config error without field",
			err:  &ConfigError{Message: "no config"},
			want: "configuration error: no config",
		},
		{
			name: "protocol error with status",
			err:  &ProtocolError{URL: "https://example.com/a", StatusCode: 500, Message: "unexpected status code"},
			want: "protocol error (500) at https://example.com/a: unexpected status code",
		},
		{
			name: "protocol error without status",
			err:  &ProtocolError{URL: "https://example.com/a", Message: "redirect loop"},
			want: "protocol error at https://example.com/a: redirect loop",
		},
		{
			name: "io error",
			err:  &IOError{Op: "write", Path: "download.csv", Err: errors.New("disk full")},
			want: "i/o error during write of download.csv: disk full",
		},
		{
			name: "data error",
			err:  &DataError{Message: "empty dataset"},
			want: "data error: empty dataset",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("connection reset")
	wrapped := fmt.Errorf("logging in: %w", &TransportError{URL: "https://example.com", Err: cause})

	var transportErr *TransportError
	if !errors.As(wrapped, &transportErr) {
		t.Fatal("expected errors.As to find TransportError")
	}
	if !errors.Is(wrapped, cause) {
		t.Error("expected errors.Is to reach the underlying cause")
	}
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

var _ net.Error = timeoutErr{}

func TestFromRequest(t *testing.T) {
	if _, ok := FromRequest("u", context.DeadlineExceeded).(*TimeoutError); !ok {
		t.Error("expected deadline exceeded to classify as TimeoutError")
	}
	if _, ok := FromRequest("u", timeoutErr{}).(*TimeoutError); !ok {
		t.Error("expected net timeout to classify as TimeoutError")
	}
	err := FromRequest("u", errors.New("connection refused"))
	if _, ok := err.(*TransportError); !ok {
		t.Errorf("expected TransportError, got %T", err)
	}
	if !strings.Contains(err.Error(), "connection refused") {
		t.Errorf("expected cause in message, got %q", err.Error())
	}
}
