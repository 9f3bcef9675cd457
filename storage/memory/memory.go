// Package memory provides an in-memory implementation of all storage
// interfaces. It is suitable for development, testing, and
// single-instance deployments.
package memory

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/giantswarm/oauth-wrap/security"
	"github.com/giantswarm/oauth-wrap/storage"
)

// Store is an in-memory implementation of ClientStore, NonceStore, and
// GrantStore. Consumed grants are retained until their expiry passes so
// double-spend attempts remain distinguishable from unknown grants.
type Store struct {
	mu sync.RWMutex

	clients map[string]*storage.Client
	grants  map[string]*storage.Grant
	nonces  map[string]time.Time // nonce -> expiry

	// encryptor, when set, protects grant usernames at rest
	encryptor *security.Encryptor

	// skew is the grace period applied to grant expiry checks
	skew time.Duration

	logger *slog.Logger
}

// New creates an empty store.
func New() *Store {
	return &Store{
		clients: make(map[string]*storage.Client),
		grants:  make(map[string]*storage.Grant),
		nonces:  make(map[string]time.Time),
		skew:    security.DefaultClockSkewGracePeriod,
		logger:  slog.Default(),
	}
}

// SetClockSkewGracePeriod overrides the grace period applied to grant
// expiry checks. The server pushes its configured tolerance here at
// construction time.
func (s *Store) SetClockSkewGracePeriod(gracePeriod time.Duration) {
	if gracePeriod < 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.skew = gracePeriod
}

// SetLogger replaces the store's logger.
func (s *Store) SetLogger(logger *slog.Logger) {
	if logger != nil {
		s.logger = logger
	}
}

// SetEncryptor enables at-rest encryption of grant usernames.
func (s *Store) SetEncryptor(enc *security.Encryptor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.encryptor = enc
}

// ==================== ClientStore ====================

// SaveClient saves a registered client.
func (s *Store) SaveClient(_ context.Context, client *storage.Client) error {
	if client == nil || client.ClientID == "" {
		return fmt.Errorf("client with a client ID is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[client.ClientID] = cloneClient(client)
	return nil
}

// RegisterClient is a convenience that bcrypt-hashes the secret and saves
// the client. An empty secret registers a public client.
func (s *Store) RegisterClient(ctx context.Context, clientID, secret string, callback *url.URL, scopes []string) (*storage.Client, error) {
	client := &storage.Client{
		ClientID:  clientID,
		Callback:  callback,
		Scopes:    scopes,
		CreatedAt: time.Now(),
	}
	if secret != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("failed to hash client secret: %w", err)
		}
		client.SecretHash = string(hash)
	}
	if err := s.SaveClient(ctx, client); err != nil {
		return nil, err
	}
	return client, nil
}

// GetClient retrieves a client by ID.
func (s *Store) GetClient(_ context.Context, clientID string) (*storage.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	client, ok := s.clients[clientID]
	if !ok {
		return nil, storage.ErrClientNotFound
	}
	return cloneClient(client), nil
}

// GetClientOrNil retrieves a client by ID, returning (nil, nil) if unknown.
func (s *Store) GetClientOrNil(_ context.Context, clientID string) (*storage.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	client, ok := s.clients[clientID]
	if !ok {
		return nil, nil
	}
	return cloneClient(client), nil
}

// ValidateClientSecret validates a client's secret against its bcrypt hash.
func (s *Store) ValidateClientSecret(_ context.Context, clientID, clientSecret string) error {
	s.mu.RLock()
	client, ok := s.clients[clientID]
	s.mu.RUnlock()

	if !ok {
		return storage.ErrClientNotFound
	}
	if client.SecretHash == "" {
		// Public client, no secret to check.
		return nil
	}
	if err := bcrypt.CompareHashAndPassword([]byte(client.SecretHash), []byte(clientSecret)); err != nil {
		return storage.ErrInvalidSecret
	}
	return nil
}

// ==================== NonceStore ====================

// Seen reports whether the nonce has been recorded and is still tracked.
func (s *Store) Seen(_ context.Context, nonce string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	expiry, ok := s.nonces[nonce]
	if !ok {
		return false, nil
	}
	// A nonce past its tracking window no longer counts as seen; the
	// matching message would fail freshness checks anyway.
	return time.Now().Before(expiry), nil
}

// Record records a nonce until expiresAt.
func (s *Store) Record(_ context.Context, nonce string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.evictExpiredNoncesLocked()
	s.nonces[nonce] = expiresAt
	return nil
}

// CheckAndRecord atomically records the nonce and reports whether it was
// fresh.
func (s *Store) CheckAndRecord(_ context.Context, nonce string, expiresAt time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.evictExpiredNoncesLocked()
	if expiry, ok := s.nonces[nonce]; ok && time.Now().Before(expiry) {
		return false, nil
	}
	s.nonces[nonce] = expiresAt
	return true, nil
}

// evictExpiredNoncesLocked drops nonces past their tracking window.
// Caller holds s.mu.
func (s *Store) evictExpiredNoncesLocked() {
	now := time.Now()
	for nonce, expiry := range s.nonces {
		if now.After(expiry) {
			delete(s.nonces, nonce)
		}
	}
}

// ==================== GrantStore ====================

// SaveGrant saves an issued grant, encrypting the username at rest when
// an encryptor is configured.
func (s *Store) SaveGrant(_ context.Context, grant *storage.Grant) error {
	if grant == nil || grant.ID == "" {
		return fmt.Errorf("grant with an ID is required")
	}

	stored := *grant
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.encryptor != nil && s.encryptor.IsEnabled() {
		encrypted, err := s.encryptor.Encrypt(stored.Username)
		if err != nil {
			return fmt.Errorf("failed to encrypt grant username: %w", err)
		}
		stored.Username = encrypted
	}
	s.grants[grant.ID] = &stored
	return nil
}

// GetGrant retrieves a grant by ID.
func (s *Store) GetGrant(_ context.Context, id string) (*storage.Grant, error) {
	s.mu.RLock()
	stored, ok := s.grants[id]
	s.mu.RUnlock()

	if !ok {
		return nil, storage.ErrGrantNotFound
	}
	return s.decryptGrant(stored)
}

// ConsumeGrant atomically checks the grant and marks it consumed.
func (s *Store) ConsumeGrant(_ context.Context, id string) (*storage.Grant, error) {
	s.mu.Lock()
	stored, ok := s.grants[id]
	if !ok {
		s.mu.Unlock()
		return nil, storage.ErrGrantNotFound
	}
	if stored.Consumed {
		s.mu.Unlock()
		return nil, storage.ErrGrantConsumed
	}
	if security.IsExpiredWithGracePeriod(stored.ExpiresAt, s.skew) {
		delete(s.grants, id)
		s.mu.Unlock()
		return nil, storage.ErrGrantExpired
	}
	stored.Consumed = true
	snapshot := *stored
	s.mu.Unlock()

	return s.decryptGrant(&snapshot)
}

// DeleteGrant removes a grant.
func (s *Store) DeleteGrant(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.grants, id)
	return nil
}

// Cleanup drops expired grants and nonces. Single-instance deployments
// can call it periodically; tests call it directly.
func (s *Store) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, grant := range s.grants {
		if security.IsExpiredWithGracePeriod(grant.ExpiresAt, s.skew) {
			delete(s.grants, id)
		}
	}
	s.evictExpiredNoncesLocked()
}

// Counts returns the number of stored clients, grants, and tracked
// nonces, for observability callbacks.
func (s *Store) Counts() (clients, grants, nonces int64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.clients)), int64(len(s.grants)), int64(len(s.nonces))
}

func (s *Store) decryptGrant(stored *storage.Grant) (*storage.Grant, error) {
	grant := *stored
	if s.encryptor != nil && s.encryptor.IsEnabled() {
		username, err := s.encryptor.Decrypt(grant.Username)
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt grant username: %w", err)
		}
		grant.Username = username
	}
	return &grant, nil
}

func cloneClient(client *storage.Client) *storage.Client {
	clone := *client
	if client.Callback != nil {
		callbackCopy := *client.Callback
		clone.Callback = &callbackCopy
	}
	clone.Scopes = append([]string(nil), client.Scopes...)
	return &clone
}
