package nxapi

import (
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"syscall"
)

var errEmptyBody = errors.New("empty response body")

// ErrorType is the failure family of a device call.
type ErrorType int

const (
	// ErrTypeTransport covers connectivity problems: connection refused,
	// unreachable hosts, DNS failures, TLS handshake failures, timeouts.
	ErrTypeTransport ErrorType = iota
	// ErrTypeProtocol covers responses that are not the expected JSON-RPC
	// envelope. Never retried.
	ErrTypeProtocol
	// ErrTypeRejection covers commands the device explicitly refused.
	// Never retried.
	ErrTypeRejection
	// ErrTypeAuth covers credential failures (HTTP 401). Never retried.
	ErrTypeAuth
)

func (t ErrorType) String() string {
	switch t {
	case ErrTypeTransport:
		return "transport error"
	case ErrTypeProtocol:
		return "protocol error"
	case ErrTypeRejection:
		return "device rejection"
	case ErrTypeAuth:
		return "authentication error"
	default:
		return fmt.Sprintf("ErrorType(%d)", int(t))
	}
}

// DeviceError is the classified outcome of a failed device call.
type DeviceError struct {
	Type    ErrorType
	Message string
	Host    string

	// Command is the offending command for rejections.
	Command string
	// Code is the JSON-RPC error code for rejections, or the HTTP status
	// for HTTP-level failures.
	Code int
	// Err is the underlying cause, if any.
	Err error

	// Retryable marks failures that a backoff retry can plausibly heal.
	Retryable bool
	// Timeout marks transport failures where the request may have reached
	// the device before the deadline hit. The configure path treats these
	// as non-retryable because the commands may already have executed.
	Timeout bool
}

func (e *DeviceError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Type, e.Message)
	if e.Command != "" {
		msg += fmt.Sprintf(" (command %q)", e.Command)
	}
	if e.Err != nil {
		msg += fmt.Sprintf(": %v", e.Err)
	}
	return msg
}

func (e *DeviceError) Unwrap() error {
	return e.Err
}

// classifyTransport maps a net/http error to a DeviceError, distinguishing
// failures that happen before the device can execute anything (refused,
// DNS, TLS) from ambiguous ones (timeouts).
func classifyTransport(err error, host string) *DeviceError {
	devErr := &DeviceError{
		Type:      ErrTypeTransport,
		Message:   "request failed",
		Host:      host,
		Err:       err,
		Retryable: true,
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		err = urlErr.Err
	}

	if os.IsTimeout(err) || errors.Is(err, os.ErrDeadlineExceeded) {
		devErr.Message = "request timed out"
		devErr.Timeout = true
		return devErr
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		devErr.Message = fmt.Sprintf("DNS resolution failed for %s", dnsErr.Name)
		return devErr
	}

	var certErr *tls.CertificateVerificationError
	if errors.As(err, &certErr) {
		devErr.Message = "TLS certificate verification failed"
		return devErr
	}
	var recordErr tls.RecordHeaderError
	if errors.As(err, &recordErr) {
		devErr.Message = "TLS handshake failed"
		return devErr
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		switch {
		case errors.Is(opErr.Err, syscall.ECONNREFUSED):
			devErr.Message = "device refused connection"
		case errors.Is(opErr.Err, syscall.EHOSTUNREACH):
			devErr.Message = "host unreachable"
		case errors.Is(opErr.Err, syscall.ENETUNREACH):
			devErr.Message = "network unreachable"
		}
		return devErr
	}

	return devErr
}

// NewProtocolError reports a malformed device response.
func NewProtocolError(message string, err error) *DeviceError {
	return &DeviceError{
		Type:      ErrTypeProtocol,
		Message:   message,
		Err:       err,
		Retryable: false,
	}
}

// NewRejectionError reports a command the device refused.
func NewRejectionError(command string, code int, message string) *DeviceError {
	return &DeviceError{
		Type:      ErrTypeRejection,
		Message:   message,
		Command:   command,
		Code:      code,
		Retryable: false,
	}
}

// NewAuthError reports a credential failure.
func NewAuthError(host string) *DeviceError {
	return &DeviceError{
		Type:      ErrTypeAuth,
		Message:   "authentication failed (check credentials)",
		Host:      host,
		Code:      401,
		Retryable: false,
	}
}

// IsTransportError reports whether err is a connectivity failure.
func IsTransportError(err error) bool {
	var devErr *DeviceError
	return errors.As(err, &devErr) && devErr.Type == ErrTypeTransport
}

// IsProtocolError reports whether err is a malformed-response failure.
func IsProtocolError(err error) bool {
	var devErr *DeviceError
	return errors.As(err, &devErr) && devErr.Type == ErrTypeProtocol
}

// IsRejectionError reports whether err is a device-side command rejection.
func IsRejectionError(err error) bool {
	var devErr *DeviceError
	return errors.As(err, &devErr) && devErr.Type == ErrTypeRejection
}

// IsAuthError reports whether err is a credential failure.
func IsAuthError(err error) bool {
	var devErr *DeviceError
	return errors.As(err, &devErr) && devErr.Type == ErrTypeAuth
}

// IsRetryable reports whether a backoff retry can plausibly heal err.
func IsRetryable(err error) bool {
	var devErr *DeviceError
	return errors.As(err, &devErr) && devErr.Retryable
}

// isRetryableForConfigure restricts retry on the configure path to
// failures that provably happened before any command could execute.
func isRetryableForConfigure(err error) bool {
	var devErr *DeviceError
	if !errors.As(err, &devErr) {
		return false
	}
	return devErr.Retryable && !devErr.Timeout
}
