// Package storage defines the interfaces the protocol core uses to reach
// its external collaborators: the registered-client registry, the
// seen-nonce store, and the grant store. The core holds no long-lived
// references to stored entities; it resolves them per call.
//
// Implementations are provided in subpackages:
//   - storage/memory: in-memory storage for development and testing
//
// Concurrency discipline is the implementation's responsibility, but the
// core requires that "check-then-record" for nonces and
// "check-then-consume" for grants be atomic as it observes them, to
// prevent replay and double-spend races.
package storage

import (
	"context"
	"errors"
	"net/url"
	"time"
)

// Sentinel errors returned by stores.
var (
	// ErrClientNotFound indicates the client identifier is not registered
	ErrClientNotFound = errors.New("storage: client not found")

	// ErrGrantNotFound indicates no grant exists under the given identifier
	ErrGrantNotFound = errors.New("storage: grant not found")

	// ErrGrantConsumed indicates the grant was already exchanged for a token
	ErrGrantConsumed = errors.New("storage: grant already consumed")

	// ErrGrantExpired indicates the grant's lifetime has passed
	ErrGrantExpired = errors.New("storage: grant expired")

	// ErrInvalidSecret indicates a client secret did not match
	ErrInvalidSecret = errors.New("storage: invalid client secret")
)

// Client is a registered client application.
type Client struct {
	// ClientID is the unique client identifier
	ClientID string

	// SecretHash is the bcrypt hash of the client secret, empty for
	// public clients
	SecretHash string

	// Callback is the pre-registered callback URI, nil if the client
	// supplies one per request
	Callback *url.URL

	// Scopes lists the scopes this client may request; empty allows all
	Scopes []string

	// CreatedAt is when the client was registered
	CreatedAt time.Time
}

// Grant is an authorization artifact proving the resource owner approved
// a client's request. It is consumed exactly once to mint an access token.
type Grant struct {
	// ID is the grant identifier (the wire verification code)
	ID string

	// ClientID is the client the grant was issued to
	ClientID string

	// Username is the resource owner who approved the request
	Username string

	// Scope is the approved scope
	Scope string

	// CreatedAt is when the grant was issued
	CreatedAt time.Time

	// ExpiresAt is when an unconsumed grant stops being exchangeable
	ExpiresAt time.Time

	// Consumed marks a grant that has already produced a token
	Consumed bool
}

// ClientStore is the registered-client registry.
// All methods accept context.Context for tracing and cancellation.
type ClientStore interface {
	// SaveClient saves a registered client
	SaveClient(ctx context.Context, client *Client) error

	// GetClient retrieves a client by ID, failing with ErrClientNotFound
	// if unknown
	GetClient(ctx context.Context, clientID string) (*Client, error)

	// GetClientOrNil retrieves a client by ID, returning (nil, nil) if
	// unknown
	GetClientOrNil(ctx context.Context, clientID string) (*Client, error)

	// ValidateClientSecret validates a client's secret
	ValidateClientSecret(ctx context.Context, clientID, clientSecret string) error
}

// NonceStore is the seen-nonce replay store.
type NonceStore interface {
	// Seen reports whether the nonce has been recorded before
	Seen(ctx context.Context, nonce string) (bool, error)

	// Record records a nonce with an expiry after which it may be forgotten
	Record(ctx context.Context, nonce string, expiresAt time.Time) error

	// CheckAndRecord atomically records the nonce and reports whether it
	// was fresh. A false result means the nonce was seen before.
	// SECURITY: This operation MUST be atomic to prevent replay races
	// between concurrent requests carrying the same nonce.
	CheckAndRecord(ctx context.Context, nonce string, expiresAt time.Time) (bool, error)
}

// GrantStore persists issued grants between the authorization leg and the
// token leg of the flow.
type GrantStore interface {
	// SaveGrant saves an issued grant
	SaveGrant(ctx context.Context, grant *Grant) error

	// GetGrant retrieves a grant by ID, failing with ErrGrantNotFound if
	// absent
	GetGrant(ctx context.Context, id string) (*Grant, error)

	// ConsumeGrant atomically checks that the grant exists, is unconsumed
	// and unexpired, and marks it consumed. It returns the grant on
	// success, or ErrGrantNotFound / ErrGrantConsumed / ErrGrantExpired.
	// SECURITY: This operation MUST be atomic to prevent double-spend
	// races between concurrent token requests presenting the same grant.
	ConsumeGrant(ctx context.Context, id string) (*Grant, error)

	// DeleteGrant removes a grant
	DeleteGrant(ctx context.Context, id string) error
}
