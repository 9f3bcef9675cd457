package instrumentation

import (
	"fmt"

	"go.opentelemetry.io/otel/metric"
)

// Metrics holds all metric instruments for the library
type Metrics struct {
	// Flow metrics
	AuthorizationRequestsRead metric.Int64Counter
	AuthorizationApproved     metric.Int64Counter
	AuthorizationRejected     metric.Int64Counter
	TokenRequestsRead         metric.Int64Counter
	TokenIssued               metric.Int64Counter
	TokenIssueDuration        metric.Float64Histogram

	// Security metrics
	ReplayDetected     metric.Int64Counter
	SignatureFailures  metric.Int64Counter
	GrantConsumeFailed metric.Int64Counter
	RateLimitExceeded  metric.Int64Counter

	// Storage metrics
	StorageClientsCount metric.Int64ObservableGauge
	StorageGrantsCount  metric.Int64ObservableGauge
	StorageNoncesCount  metric.Int64ObservableGauge
}

// newMetrics creates and registers all metric instruments
func newMetrics(inst *Instrumentation) (*Metrics, error) {
	m := &Metrics{}
	serverMeter := inst.Meter("server")
	storageMeter := inst.Meter("storage")

	var err error
	m.AuthorizationRequestsRead, err = serverMeter.Int64Counter(
		"oauthwrap.authorization.requests.read",
		metric.WithDescription("Authorization requests decoded from inbound traffic"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create authorization.requests.read counter: %w", err)
	}

	m.AuthorizationApproved, err = serverMeter.Int64Counter(
		"oauthwrap.authorization.approved",
		metric.WithDescription("Authorization requests approved and sent"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create authorization.approved counter: %w", err)
	}

	m.AuthorizationRejected, err = serverMeter.Int64Counter(
		"oauthwrap.authorization.rejected",
		metric.WithDescription("Authorization requests rejected and sent"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create authorization.rejected counter: %w", err)
	}

	m.TokenRequestsRead, err = serverMeter.Int64Counter(
		"oauthwrap.token.requests.read",
		metric.WithDescription("Access token requests decoded from inbound traffic"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create token.requests.read counter: %w", err)
	}

	m.TokenIssued, err = serverMeter.Int64Counter(
		"oauthwrap.token.issued",
		metric.WithDescription("Access tokens minted"),
		metric.WithUnit("{token}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create token.issued counter: %w", err)
	}

	m.TokenIssueDuration, err = serverMeter.Float64Histogram(
		"oauthwrap.token.issue.duration",
		metric.WithDescription("Time from token request validation to minted response in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create token.issue.duration histogram: %w", err)
	}

	m.ReplayDetected, err = serverMeter.Int64Counter(
		"oauthwrap.security.replay.detected",
		metric.WithDescription("Messages rejected for carrying a previously seen nonce"),
		metric.WithUnit("{message}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create security.replay.detected counter: %w", err)
	}

	m.SignatureFailures, err = serverMeter.Int64Counter(
		"oauthwrap.security.signature.failures",
		metric.WithDescription("Token verification failures"),
		metric.WithUnit("{token}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create security.signature.failures counter: %w", err)
	}

	m.GrantConsumeFailed, err = serverMeter.Int64Counter(
		"oauthwrap.security.grant.consume.failed",
		metric.WithDescription("Token requests referencing missing, consumed, or expired grants"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create security.grant.consume.failed counter: %w", err)
	}

	m.RateLimitExceeded, err = serverMeter.Int64Counter(
		"oauthwrap.security.ratelimit.exceeded",
		metric.WithDescription("Token requests rejected by the per-client rate limiter"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create security.ratelimit.exceeded counter: %w", err)
	}

	m.StorageClientsCount, err = storageMeter.Int64ObservableGauge(
		"oauthwrap.storage.clients.count",
		metric.WithDescription("Registered clients currently stored"),
		metric.WithUnit("{client}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage.clients.count gauge: %w", err)
	}

	m.StorageGrantsCount, err = storageMeter.Int64ObservableGauge(
		"oauthwrap.storage.grants.count",
		metric.WithDescription("Grants currently stored"),
		metric.WithUnit("{grant}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage.grants.count gauge: %w", err)
	}

	m.StorageNoncesCount, err = storageMeter.Int64ObservableGauge(
		"oauthwrap.storage.nonces.count",
		metric.WithDescription("Nonces currently tracked for replay detection"),
		metric.WithUnit("{nonce}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage.nonces.count gauge: %w", err)
	}

	return m, nil
}
