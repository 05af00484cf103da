package apperr

import (
	"errors"
	"fmt"
)

// TransportError reports a connection-level failure reaching an endpoint.
// Runs that fail with it are safe to restart.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: connection failed: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ProtocolError reports a non-success HTTP status, an undecodable body or an
// error object embedded in an otherwise successful response.
type ProtocolError struct {
	Op         string
	StatusCode int
	Code       int // API error code, zero when the failure is HTTP-level
	Message    string
}

func (e *ProtocolError) Error() string {
	switch {
	case e.Code != 0:
		return fmt.Sprintf("%s: api error %d: %s", e.Op, e.Code, e.Message)
	case e.StatusCode != 0:
		return fmt.Sprintf("%s: status %d: %s", e.Op, e.StatusCode, e.Message)
	default:
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
}

// Transport wraps err as a TransportError for op.
func Transport(op string, err error) error {
	return &TransportError{Op: op, Err: err}
}

// Status builds a ProtocolError for an unexpected HTTP status.
func Status(op string, statusCode int, body string) error {
	return &ProtocolError{Op: op, StatusCode: statusCode, Message: body}
}

// Protocolf builds a ProtocolError with a formatted message.
func Protocolf(op, format string, args ...any) error {
	return &ProtocolError{Op: op, Message: fmt.Sprintf(format, args...)}
}

// IsTransport reports whether err carries a TransportError.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// IsProtocol reports whether err carries a ProtocolError.
func IsProtocol(err error) bool {
	var pe *ProtocolError
	return errors.As(err, &pe)
}

// APIMessage returns the API-provided message of the first ProtocolError in
// err's chain.
func APIMessage(err error) (string, bool) {
	var pe *ProtocolError
	if !errors.As(err, &pe) {
		return "", false
	}
	return pe.Message, true
}
