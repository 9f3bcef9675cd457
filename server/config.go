package server

import (
	"log/slog"

	oauthwrap "github.com/giantswarm/oauth-wrap"
)

// Config holds authorization server configuration
type Config struct {
	// Issuer is the server's issuer identifier, embedded in every token
	Issuer string

	// GrantTTL is how long an unconsumed grant stays exchangeable
	GrantTTL int64 // seconds, default: 600 (10 minutes)

	// AccessTokenTTL is how long minted access tokens are valid
	AccessTokenTTL int64 // seconds, default: 3600 (1 hour)

	// ClockSkewGracePeriod is the tolerance applied to grant expiry
	// checks, pushed into the grant store at construction time. It
	// prevents false rejections due to time drift between parties.
	ClockSkewGracePeriod int64 // seconds, default: 5

	// SupportedScopes lists the scopes clients may request.
	// If empty, all scopes are allowed.
	SupportedScopes []string

	// AllowInsecureCallbacks permits plain-HTTP callbacks on
	// non-loopback hosts. Leave false outside of development.
	AllowInsecureCallbacks bool // default: false
}

// applyDefaults fills unset time-based values and warns about insecure
// settings.
func applyDefaults(config *Config, logger *slog.Logger) *Config {
	if config.GrantTTL == 0 {
		config.GrantTTL = oauthwrap.DefaultGrantTTLSeconds
	}
	if config.AccessTokenTTL == 0 {
		config.AccessTokenTTL = oauthwrap.DefaultAccessTokenTTLSeconds
	}
	if config.ClockSkewGracePeriod == 0 {
		config.ClockSkewGracePeriod = oauthwrap.DefaultClockSkewSeconds
	}

	if config.AllowInsecureCallbacks {
		logger.Warn("⚠️  SECURITY WARNING: Insecure callbacks are ALLOWED",
			"risk", "Grants delivered over plain HTTP can be intercepted",
			"recommendation", "Set AllowInsecureCallbacks=false outside development")
	}

	return config
}
