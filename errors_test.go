package oauthwrap

import (
	"errors"
	"fmt"
	"testing"
)

func TestProtocolError(t *testing.T) {
	err := NewProtocolError(ErrorCodeNoCallback, "no destination")

	if got := err.Error(); got != "no_callback: no destination" {
		t.Errorf("Error() = %q", got)
	}
	if !IsProtocolCode(err, ErrorCodeNoCallback) {
		t.Error("IsProtocolCode() = false for matching code")
	}
	if IsProtocolCode(err, ErrorCodeInvalidGrant) {
		t.Error("IsProtocolCode() = true for different code")
	}
}

func TestIsProtocolCodeUnwraps(t *testing.T) {
	wrapped := fmt.Errorf("reading request: %w", ErrReplayedNonce("seen before"))
	if !IsProtocolCode(wrapped, ErrorCodeReplayedNonce) {
		t.Error("IsProtocolCode() = false for wrapped protocol error")
	}
	if IsProtocolCode(errors.New("plain"), ErrorCodeReplayedNonce) {
		t.Error("IsProtocolCode() = true for non-protocol error")
	}
}

func TestErrorConstructorsCarryTheirCode(t *testing.T) {
	tests := []struct {
		err  *ProtocolError
		code string
	}{
		{ErrMalformedMessage("x"), ErrorCodeMalformedMessage},
		{ErrUnsupportedVersion("x"), ErrorCodeUnsupportedVersion},
		{ErrNoCallback("x"), ErrorCodeNoCallback},
		{ErrUnknownClient("x"), ErrorCodeUnknownClient},
		{ErrInvalidCallback("x"), ErrorCodeInvalidCallback},
		{ErrInvalidScope("x"), ErrorCodeInvalidScope},
		{ErrReplayedNonce("x"), ErrorCodeReplayedNonce},
		{ErrInvalidGrant("x"), ErrorCodeInvalidGrant},
		{ErrSlowDown("x"), ErrorCodeSlowDown},
	}
	for _, tt := range tests {
		if tt.err.Code != tt.code {
			t.Errorf("constructor produced code %q, want %q", tt.err.Code, tt.code)
		}
	}
}

func TestSignatureError(t *testing.T) {
	underlying := errors.New("bad block")
	err := &SignatureError{Reason: "signature mismatch", Err: underlying}

	if !IsSignatureError(err) {
		t.Error("IsSignatureError() = false")
	}
	if !errors.Is(err, underlying) {
		t.Error("errors.Is() does not reach the underlying error")
	}

	bare := &SignatureError{Reason: "token expired"}
	if bare.Error() != "signature verification failed: token expired" {
		t.Errorf("Error() = %q", bare.Error())
	}
	if IsSignatureError(errors.New("plain")) {
		t.Error("IsSignatureError() = true for plain error")
	}
}
