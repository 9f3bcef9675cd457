package security

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Auditor logs security events with PII protection: usernames and nonces
// are hashed before they reach the log stream.
type Auditor struct {
	logger  *slog.Logger
	enabled bool
}

// NewAuditor creates a new security auditor
func NewAuditor(logger *slog.Logger, enabled bool) *Auditor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Auditor{
		logger:  logger,
		enabled: enabled,
	}
}

// Event represents a security audit event
type Event struct {
	Type      string
	Username  string
	ClientID  string
	Details   map[string]any
	Timestamp time.Time
}

// LogEvent logs a security event with hashed PII and a unique event ID
func (a *Auditor) LogEvent(event Event) {
	if !a.enabled {
		return
	}

	event.Timestamp = time.Now()

	a.logger.Info("security_audit",
		"event_id", uuid.NewString(),
		"event_type", event.Type,
		"username_hash", hashForLogging(event.Username),
		"client_id", event.ClientID,
		"details", event.Details,
		"timestamp", event.Timestamp,
	)
}

// LogGrantIssued logs an approved authorization request
func (a *Auditor) LogGrantIssued(username, clientID, scope string) {
	a.LogEvent(Event{
		Type:     "grant_issued",
		Username: username,
		ClientID: clientID,
		Details: map[string]any{
			"scope": scope,
		},
	})
}

// LogAuthRejected logs a rejected authorization request
func (a *Auditor) LogAuthRejected(clientID, reason string) {
	a.LogEvent(Event{
		Type:     "authorization_rejected",
		ClientID: clientID,
		Details: map[string]any{
			"reason": reason,
		},
	})
}

// LogTokenIssued logs a minted access token
func (a *Auditor) LogTokenIssued(username, clientID, scope string) {
	a.LogEvent(Event{
		Type:     "token_issued",
		Username: username,
		ClientID: clientID,
		Details: map[string]any{
			"scope": scope,
		},
	})
}

// LogReplayDetected logs a replayed nonce. The nonce is hashed; its raw
// value never reaches the log stream.
func (a *Auditor) LogReplayDetected(clientID, nonce string) {
	a.LogEvent(Event{
		Type:     "replay_detected",
		ClientID: clientID,
		Details: map[string]any{
			"nonce_hash": hashForLogging(nonce),
		},
	})
}

// LogSignatureFailure logs a failed token verification, which may
// indicate tampering rather than a client mistake
func (a *Auditor) LogSignatureFailure(reason string) {
	a.LogEvent(Event{
		Type: "signature_failure",
		Details: map[string]any{
			"reason": reason,
		},
	})
}

// LogAuthFailure logs a protocol-level authorization failure
func (a *Auditor) LogAuthFailure(clientID, reason string) {
	a.LogEvent(Event{
		Type:     "auth_failure",
		ClientID: clientID,
		Details: map[string]any{
			"reason": reason,
		},
	})
}

// LogRateLimitExceeded logs a token-endpoint rate limit violation
func (a *Auditor) LogRateLimitExceeded(clientID string) {
	a.LogEvent(Event{
		Type:     "rate_limit_exceeded",
		ClientID: clientID,
	})
}

// hashForLogging creates a SHA256 hash of sensitive data for logging
func hashForLogging(sensitive string) string {
	if sensitive == "" {
		return "<empty>"
	}
	hash := sha256.Sum256([]byte(sensitive))
	return hex.EncodeToString(hash[:])[:16]
}
