package memory

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/giantswarm/oauth-wrap/security"
	"github.com/giantswarm/oauth-wrap/storage"
)

func testGrant(id string) *storage.Grant {
	now := time.Now()
	return &storage.Grant{
		ID:        id,
		ClientID:  "client-1",
		Username:  "alice",
		Scope:     "read",
		CreatedAt: now,
		ExpiresAt: now.Add(10 * time.Minute),
	}
}

func TestRegisterAndValidateClient(t *testing.T) {
	store := New()
	ctx := context.Background()
	callback, _ := url.Parse("https://client.example.com/cb")

	client, err := store.RegisterClient(ctx, "client-1", "s3cret", callback, []string{"read"})
	if err != nil {
		t.Fatalf("RegisterClient() error = %v", err)
	}
	if client.SecretHash == "s3cret" {
		t.Error("secret stored in plaintext")
	}

	if err := store.ValidateClientSecret(ctx, "client-1", "s3cret"); err != nil {
		t.Errorf("ValidateClientSecret(correct) error = %v", err)
	}
	if err := store.ValidateClientSecret(ctx, "client-1", "wrong"); !errors.Is(err, storage.ErrInvalidSecret) {
		t.Errorf("ValidateClientSecret(wrong) error = %v, want ErrInvalidSecret", err)
	}
	if err := store.ValidateClientSecret(ctx, "unknown", "s3cret"); !errors.Is(err, storage.ErrClientNotFound) {
		t.Errorf("ValidateClientSecret(unknown) error = %v, want ErrClientNotFound", err)
	}
}

func TestPublicClientHasNoSecret(t *testing.T) {
	store := New()
	ctx := context.Background()

	if _, err := store.RegisterClient(ctx, "public-1", "", nil, nil); err != nil {
		t.Fatalf("RegisterClient() error = %v", err)
	}
	if err := store.ValidateClientSecret(ctx, "public-1", "anything"); err != nil {
		t.Errorf("ValidateClientSecret(public client) error = %v, want nil", err)
	}
}

func TestGetClient(t *testing.T) {
	store := New()
	ctx := context.Background()
	callback, _ := url.Parse("https://client.example.com/cb")

	if _, err := store.RegisterClient(ctx, "client-1", "", callback, []string{"read"}); err != nil {
		t.Fatalf("RegisterClient() error = %v", err)
	}

	client, err := store.GetClient(ctx, "client-1")
	if err != nil {
		t.Fatalf("GetClient() error = %v", err)
	}
	if client.Callback.String() != callback.String() {
		t.Errorf("Callback = %v, want %v", client.Callback, callback)
	}

	// The returned client is a copy; mutating it must not leak back.
	client.Scopes[0] = "mutated"
	again, _ := store.GetClient(ctx, "client-1")
	if again.Scopes[0] != "read" {
		t.Error("mutation of returned client leaked into the store")
	}

	if _, err := store.GetClient(ctx, "unknown"); !errors.Is(err, storage.ErrClientNotFound) {
		t.Errorf("GetClient(unknown) error = %v, want ErrClientNotFound", err)
	}

	orNil, err := store.GetClientOrNil(ctx, "unknown")
	if err != nil || orNil != nil {
		t.Errorf("GetClientOrNil(unknown) = (%v, %v), want (nil, nil)", orNil, err)
	}
}

func TestCheckAndRecordNonce(t *testing.T) {
	store := New()
	ctx := context.Background()
	expiry := time.Now().Add(10 * time.Minute)

	fresh, err := store.CheckAndRecord(ctx, "n-1", expiry)
	if err != nil {
		t.Fatalf("CheckAndRecord() error = %v", err)
	}
	if !fresh {
		t.Error("first CheckAndRecord() = false, want true")
	}

	fresh, err = store.CheckAndRecord(ctx, "n-1", expiry)
	if err != nil {
		t.Fatalf("CheckAndRecord() error = %v", err)
	}
	if fresh {
		t.Error("second CheckAndRecord() = true, want false")
	}

	seen, err := store.Seen(ctx, "n-1")
	if err != nil || !seen {
		t.Errorf("Seen() = (%v, %v), want (true, nil)", seen, err)
	}
}

func TestCheckAndRecordConcurrent(t *testing.T) {
	store := New()
	ctx := context.Background()
	expiry := time.Now().Add(10 * time.Minute)

	const workers = 32
	var wg sync.WaitGroup
	results := make(chan bool, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fresh, err := store.CheckAndRecord(ctx, "contested", expiry)
			if err != nil {
				t.Errorf("CheckAndRecord() error = %v", err)
				return
			}
			results <- fresh
		}()
	}
	wg.Wait()
	close(results)

	winners := 0
	for fresh := range results {
		if fresh {
			winners++
		}
	}
	if winners != 1 {
		t.Errorf("%d goroutines saw a fresh nonce, want exactly 1", winners)
	}
}

func TestExpiredNonceForgotten(t *testing.T) {
	store := New()
	ctx := context.Background()

	if err := store.Record(ctx, "old", time.Now().Add(-time.Minute)); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	seen, err := store.Seen(ctx, "old")
	if err != nil {
		t.Fatalf("Seen() error = %v", err)
	}
	if seen {
		t.Error("Seen() = true for a nonce past its tracking window")
	}
}

func TestConsumeGrantSingleUse(t *testing.T) {
	store := New()
	ctx := context.Background()

	if err := store.SaveGrant(ctx, testGrant("g-1")); err != nil {
		t.Fatalf("SaveGrant() error = %v", err)
	}

	grant, err := store.ConsumeGrant(ctx, "g-1")
	if err != nil {
		t.Fatalf("ConsumeGrant() error = %v", err)
	}
	if grant.Username != "alice" {
		t.Errorf("Username = %q, want %q", grant.Username, "alice")
	}
	if !grant.Consumed {
		t.Error("returned grant not marked consumed")
	}

	if _, err := store.ConsumeGrant(ctx, "g-1"); !errors.Is(err, storage.ErrGrantConsumed) {
		t.Errorf("second ConsumeGrant() error = %v, want ErrGrantConsumed", err)
	}
}

func TestConsumeGrantConcurrent(t *testing.T) {
	store := New()
	ctx := context.Background()

	if err := store.SaveGrant(ctx, testGrant("contested")); err != nil {
		t.Fatalf("SaveGrant() error = %v", err)
	}

	const workers = 32
	var wg sync.WaitGroup
	successes := make(chan struct{}, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := store.ConsumeGrant(ctx, "contested"); err == nil {
				successes <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(successes)

	if got := len(successes); got != 1 {
		t.Errorf("%d goroutines consumed the grant, want exactly 1", got)
	}
}

func TestConsumeGrantErrors(t *testing.T) {
	store := New()
	ctx := context.Background()

	if _, err := store.ConsumeGrant(ctx, "missing"); !errors.Is(err, storage.ErrGrantNotFound) {
		t.Errorf("ConsumeGrant(missing) error = %v, want ErrGrantNotFound", err)
	}

	expired := testGrant("expired")
	expired.ExpiresAt = time.Now().Add(-time.Minute)
	if err := store.SaveGrant(ctx, expired); err != nil {
		t.Fatalf("SaveGrant() error = %v", err)
	}
	if _, err := store.ConsumeGrant(ctx, "expired"); !errors.Is(err, storage.ErrGrantExpired) {
		t.Errorf("ConsumeGrant(expired) error = %v, want ErrGrantExpired", err)
	}
}

func TestConsumeGrantSkewGracePeriod(t *testing.T) {
	ctx := context.Background()

	t.Run("generous grace period accepts a stale grant", func(t *testing.T) {
		store := New()
		store.SetClockSkewGracePeriod(time.Hour)

		grant := testGrant("stale-ok")
		grant.ExpiresAt = time.Now().Add(-time.Minute)
		if err := store.SaveGrant(ctx, grant); err != nil {
			t.Fatalf("SaveGrant() error = %v", err)
		}
		if _, err := store.ConsumeGrant(ctx, "stale-ok"); err != nil {
			t.Errorf("ConsumeGrant() error = %v, want accepted within grace period", err)
		}
	})

	t.Run("zero grace period rejects promptly", func(t *testing.T) {
		store := New()
		store.SetClockSkewGracePeriod(0)

		grant := testGrant("just-expired")
		grant.ExpiresAt = time.Now().Add(-2 * time.Second)
		if err := store.SaveGrant(ctx, grant); err != nil {
			t.Fatalf("SaveGrant() error = %v", err)
		}
		if _, err := store.ConsumeGrant(ctx, "just-expired"); !errors.Is(err, storage.ErrGrantExpired) {
			t.Errorf("ConsumeGrant() error = %v, want ErrGrantExpired", err)
		}
	})

	t.Run("negative value is ignored", func(t *testing.T) {
		store := New()
		store.SetClockSkewGracePeriod(-time.Minute)

		grant := testGrant("within-default")
		grant.ExpiresAt = time.Now().Add(-2 * time.Second)
		if err := store.SaveGrant(ctx, grant); err != nil {
			t.Fatalf("SaveGrant() error = %v", err)
		}
		// The default five-second grace period still applies.
		if _, err := store.ConsumeGrant(ctx, "within-default"); err != nil {
			t.Errorf("ConsumeGrant() error = %v, want accepted under default grace period", err)
		}
	})
}

func TestGrantEncryptionAtRest(t *testing.T) {
	key, err := security.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey() error = %v", err)
	}
	enc, err := security.NewEncryptor(key)
	if err != nil {
		t.Fatalf("NewEncryptor() error = %v", err)
	}

	store := New()
	store.SetEncryptor(enc)
	ctx := context.Background()

	if err := store.SaveGrant(ctx, testGrant("g-enc")); err != nil {
		t.Fatalf("SaveGrant() error = %v", err)
	}

	// The stored record must not hold the plaintext username.
	store.mu.RLock()
	storedUsername := store.grants["g-enc"].Username
	store.mu.RUnlock()
	if storedUsername == "alice" {
		t.Error("username stored in plaintext despite encryptor")
	}

	grant, err := store.GetGrant(ctx, "g-enc")
	if err != nil {
		t.Fatalf("GetGrant() error = %v", err)
	}
	if grant.Username != "alice" {
		t.Errorf("GetGrant() Username = %q, want decrypted %q", grant.Username, "alice")
	}

	consumed, err := store.ConsumeGrant(ctx, "g-enc")
	if err != nil {
		t.Fatalf("ConsumeGrant() error = %v", err)
	}
	if consumed.Username != "alice" {
		t.Errorf("ConsumeGrant() Username = %q, want decrypted %q", consumed.Username, "alice")
	}
}

func TestCleanup(t *testing.T) {
	store := New()
	ctx := context.Background()

	fresh := testGrant("fresh")
	stale := testGrant("stale")
	stale.ExpiresAt = time.Now().Add(-time.Minute)
	if err := store.SaveGrant(ctx, fresh); err != nil {
		t.Fatalf("SaveGrant() error = %v", err)
	}
	if err := store.SaveGrant(ctx, stale); err != nil {
		t.Fatalf("SaveGrant() error = %v", err)
	}
	if err := store.Record(ctx, "stale-nonce", time.Now().Add(-time.Minute)); err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	store.Cleanup()

	if _, err := store.GetGrant(ctx, "stale"); !errors.Is(err, storage.ErrGrantNotFound) {
		t.Errorf("stale grant survived Cleanup(), error = %v", err)
	}
	if _, err := store.GetGrant(ctx, "fresh"); err != nil {
		t.Errorf("fresh grant removed by Cleanup(), error = %v", err)
	}

	_, grants, nonces := store.Counts()
	if grants != 1 {
		t.Errorf("Counts() grants = %d, want 1", grants)
	}
	if nonces != 0 {
		t.Errorf("Counts() nonces = %d, want 0", nonces)
	}
}

func TestDeleteGrant(t *testing.T) {
	store := New()
	ctx := context.Background()

	if err := store.SaveGrant(ctx, testGrant("g-del")); err != nil {
		t.Fatalf("SaveGrant() error = %v", err)
	}
	if err := store.DeleteGrant(ctx, "g-del"); err != nil {
		t.Fatalf("DeleteGrant() error = %v", err)
	}
	if _, err := store.GetGrant(ctx, "g-del"); !errors.Is(err, storage.ErrGrantNotFound) {
		t.Errorf("GetGrant() after delete error = %v, want ErrGrantNotFound", err)
	}
}
