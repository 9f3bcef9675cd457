package security

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

type auditSetup struct {
	auditor *Auditor
	logs    *bytes.Buffer
}

func newAuditSetup(enabled bool) *auditSetup {
	buf := &bytes.Buffer{}
	logger := slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return &auditSetup{
		auditor: NewAuditor(logger, enabled),
		logs:    buf,
	}
}

func TestAuditorHashesUsername(t *testing.T) {
	s := newAuditSetup(true)

	s.auditor.LogGrantIssued("alice@example.com", "client-1", "read")

	out := s.logs.String()
	if strings.Contains(out, "alice@example.com") {
		t.Error("raw username reached the log stream")
	}
	if !strings.Contains(out, "grant_issued") {
		t.Errorf("log output missing event type: %s", out)
	}
	if !strings.Contains(out, "client-1") {
		t.Errorf("log output missing client ID: %s", out)
	}
}

func TestAuditorHashesNonce(t *testing.T) {
	s := newAuditSetup(true)

	s.auditor.LogReplayDetected("client-1", "super-secret-nonce")

	out := s.logs.String()
	if strings.Contains(out, "super-secret-nonce") {
		t.Error("raw nonce reached the log stream")
	}
	if !strings.Contains(out, "replay_detected") {
		t.Errorf("log output missing event type: %s", out)
	}
}

func TestAuditorDisabled(t *testing.T) {
	s := newAuditSetup(false)

	s.auditor.LogTokenIssued("alice", "client-1", "read")
	s.auditor.LogRateLimitExceeded("client-1")

	if s.logs.Len() != 0 {
		t.Errorf("disabled auditor produced output: %s", s.logs.String())
	}
}

func TestHashForLogging(t *testing.T) {
	if got := hashForLogging(""); got != "<empty>" {
		t.Errorf("hashForLogging(\"\") = %q, want %q", got, "<empty>")
	}

	a := hashForLogging("value")
	if len(a) != 16 {
		t.Errorf("hash length = %d, want 16", len(a))
	}
	if a != hashForLogging("value") {
		t.Error("hash not stable for identical input")
	}
	if a == hashForLogging("other") {
		t.Error("distinct inputs produced identical hashes")
	}
}
