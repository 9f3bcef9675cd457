package server

import (
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/oauth2"

	"github.com/giantswarm/oauth-wrap/channel"
	"github.com/giantswarm/oauth-wrap/instrumentation"
	"github.com/giantswarm/oauth-wrap/security"
	"github.com/giantswarm/oauth-wrap/storage"
)

// skewConfigurable is implemented by grant stores whose expiry checks
// accept a configurable clock-skew grace period.
type skewConfigurable interface {
	SetClockSkewGracePeriod(gracePeriod time.Duration)
}

// safeTruncate safely truncates a string to maxLen characters without
// panicking. Used when logging grant identifiers, where only a prefix
// should be shown.
func safeTruncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen]
}

// Server orchestrates the delegated-authorization flow: read request →
// approve/reject → issue token, using the channel for wire traffic and
// the stores for clients and grants.
type Server struct {
	channel     *channel.Channel
	clients     storage.ClientStore
	grants      storage.GrantStore
	Auditor     *security.Auditor
	RateLimiter *security.RateLimiter // per-client token-issuance limiter
	Logger      *slog.Logger
	Config      *Config

	metrics *instrumentation.Metrics
}

// New creates a new authorization server
func New(
	ch *channel.Channel,
	clients storage.ClientStore,
	grants storage.GrantStore,
	config *Config,
	logger *slog.Logger,
) (*Server, error) {
	if ch == nil {
		return nil, fmt.Errorf("channel is required")
	}
	if clients == nil {
		return nil, fmt.Errorf("client store is required")
	}
	if grants == nil {
		return nil, fmt.Errorf("grant store is required")
	}
	if config == nil {
		config = &Config{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	config = applyDefaults(config, logger)

	// Push the configured tolerance into stores that apply a grace period
	// to grant expiry, so one Config value governs all expiry checks.
	if store, ok := grants.(skewConfigurable); ok {
		store.SetClockSkewGracePeriod(time.Duration(config.ClockSkewGracePeriod) * time.Second)
	}

	return &Server{
		channel: ch,
		clients: clients,
		grants:  grants,
		Config:  config,
		Logger:  logger,
	}, nil
}

// SetAuditor sets the security auditor
func (s *Server) SetAuditor(aud *security.Auditor) {
	s.Auditor = aud
}

// SetRateLimiter sets the per-client token-issuance rate limiter
func (s *Server) SetRateLimiter(rl *security.RateLimiter) {
	s.RateLimiter = rl
}

// SetInstrumentation wires OpenTelemetry metrics into the flow logic
func (s *Server) SetInstrumentation(inst *instrumentation.Instrumentation) {
	if inst != nil {
		s.metrics = inst.Metrics()
	}
}

// generateGrantID generates a cryptographically secure grant identifier.
// This is an alias for oauth2.GenerateVerifier() which produces a
// URL-safe, base64-encoded random string.
func generateGrantID() string {
	return oauth2.GenerateVerifier()
}
