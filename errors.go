package oauthwrap

import (
	"errors"
	"fmt"
)

// Protocol error codes.
const (
	ErrorCodeMalformedMessage   = "malformed_message"
	ErrorCodeUnsupportedVersion = "unsupported_version"
	ErrorCodeNoCallback         = "no_callback"
	ErrorCodeUnknownClient      = "unknown_client"
	ErrorCodeInvalidCallback    = "invalid_callback"
	ErrorCodeInvalidScope       = "invalid_scope"
	ErrorCodeReplayedNonce      = "replayed_nonce"
	ErrorCodeInvalidGrant       = "invalid_grant"
	ErrorCodeSlowDown           = "slow_down"
)

// ProtocolError represents a malformed or semantically invalid protocol
// message. It is always surfaced to the caller, never silently swallowed,
// and never retried automatically.
//
// The absence of a protocol message on an inbound request is NOT a
// ProtocolError; readers signal absence with a nil message and nil error.
type ProtocolError struct {
	Code        string // protocol error code (e.g. "no_callback")
	Description string // human-readable error description
}

// Error implements the error interface
func (e *ProtocolError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// NewProtocolError creates a new protocol error
func NewProtocolError(code, description string) *ProtocolError {
	return &ProtocolError{
		Code:        code,
		Description: description,
	}
}

// Common protocol errors as reusable constructors
var (
	// ErrMalformedMessage indicates a protocol message is present but is
	// missing required fields or carries ill-formed values
	ErrMalformedMessage = func(desc string) *ProtocolError {
		return NewProtocolError(ErrorCodeMalformedMessage, desc)
	}

	// ErrUnsupportedVersion indicates the message targets a protocol
	// version this server does not speak
	ErrUnsupportedVersion = func(desc string) *ProtocolError {
		return NewProtocolError(ErrorCodeUnsupportedVersion, desc)
	}

	// ErrNoCallback indicates neither the request nor the client
	// registration supplies a callback URI, so no decision can be delivered
	ErrNoCallback = func(desc string) *ProtocolError {
		return NewProtocolError(ErrorCodeNoCallback, desc)
	}

	// ErrUnknownClient indicates the client identifier is not registered
	ErrUnknownClient = func(desc string) *ProtocolError {
		return NewProtocolError(ErrorCodeUnknownClient, desc)
	}

	// ErrInvalidCallback indicates the resolved callback URI failed
	// security validation
	ErrInvalidCallback = func(desc string) *ProtocolError {
		return NewProtocolError(ErrorCodeInvalidCallback, desc)
	}

	// ErrInvalidScope indicates the requested scope is not allowed
	ErrInvalidScope = func(desc string) *ProtocolError {
		return NewProtocolError(ErrorCodeInvalidScope, desc)
	}

	// ErrReplayedNonce indicates the message carries a nonce that has
	// already been seen
	ErrReplayedNonce = func(desc string) *ProtocolError {
		return NewProtocolError(ErrorCodeReplayedNonce, desc)
	}

	// ErrInvalidGrant indicates the referenced grant is missing, already
	// consumed, or expired. The description is intentionally generic so
	// callers cannot distinguish the three cases.
	ErrInvalidGrant = func(desc string) *ProtocolError {
		return NewProtocolError(ErrorCodeInvalidGrant, desc)
	}

	// ErrSlowDown indicates the client exceeded the token-issuance rate limit
	ErrSlowDown = func(desc string) *ProtocolError {
		return NewProtocolError(ErrorCodeSlowDown, desc)
	}
)

// IsProtocolCode reports whether err is a ProtocolError carrying the given code.
func IsProtocolCode(err error, code string) bool {
	var pe *ProtocolError
	return errors.As(err, &pe) && pe.Code == code
}

// SignatureError represents a token verification failure: signature
// mismatch, corruption, or expiry. It is surfaced distinctly from
// ProtocolError because it may indicate tampering rather than a client
// mistake, and it is always fatal to the current request.
type SignatureError struct {
	Reason string
	Err    error // underlying verification error, may be nil
}

// Error implements the error interface
func (e *SignatureError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("signature verification failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("signature verification failed: %s", e.Reason)
}

// Unwrap returns the underlying verification error
func (e *SignatureError) Unwrap() error {
	return e.Err
}

// IsSignatureError reports whether err is (or wraps) a SignatureError.
func IsSignatureError(err error) bool {
	var se *SignatureError
	return errors.As(err, &se)
}
