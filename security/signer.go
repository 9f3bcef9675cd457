package security

import (
	"context"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	oauthwrap "github.com/giantswarm/oauth-wrap"
	"github.com/giantswarm/oauth-wrap/instrumentation"
)

// signingMethod is the only accepted signature algorithm. RSA-PKCS#1v1.5
// with SHA-256; the underlying primitives are constant-time with respect
// to the private key.
var signingMethod = jwt.SigningMethodRS256

// tokenClaims is the JWT claim set an access token is signed over.
type tokenClaims struct {
	Username string `json:"username"`
	ClientID string `json:"client_id"`
	Scope    string `json:"scope,omitempty"`
	jwt.RegisteredClaims
}

// Signer wraps the authorization server's asymmetric key pair and mints
// signed access tokens. It owns the private key exclusively for the
// lifetime of the server process.
type Signer struct {
	key    *rsa.PrivateKey
	issuer string
}

// NewSigner creates a signer around the given private key. The issuer is
// embedded in every token it mints.
func NewSigner(key *rsa.PrivateKey, issuer string) (*Signer, error) {
	if key == nil {
		return nil, fmt.Errorf("signing key is required")
	}
	if issuer == "" {
		return nil, fmt.Errorf("issuer is required")
	}
	return &Signer{key: key, issuer: issuer}, nil
}

// PublicKey returns the verification half of the signer's key pair.
func (s *Signer) PublicKey() *rsa.PublicKey {
	return &s.key.PublicKey
}

// Sign deterministically serializes and signs the payload for the given
// resource-server public key. When resourceKey is nil the signer assumes
// the authorization server doubles as the resource server and keys the
// token to its own public key.
//
// Signing fills the payload's Audience with the resource-server key
// fingerprint, so holders of the matching key can check the token was
// minted for them.
func (s *Signer) Sign(payload *oauthwrap.TokenPayload, resourceKey *rsa.PublicKey) (string, error) {
	if payload == nil {
		return "", fmt.Errorf("token payload is required")
	}
	if resourceKey == nil {
		resourceKey = s.PublicKey()
	}

	audience, err := KeyFingerprint(resourceKey)
	if err != nil {
		return "", fmt.Errorf("failed to fingerprint resource server key: %w", err)
	}
	payload.Audience = audience

	claims := &tokenClaims{
		Username: payload.Username,
		ClientID: payload.ClientID,
		Scope:    payload.Scope,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   payload.Username,
			Audience:  jwt.ClaimStrings{audience},
			IssuedAt:  jwt.NewNumericDate(payload.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(payload.ExpiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(signingMethod, claims).SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verifier checks tokens against the authorization server's public key.
// Resource servers hold only this half of the key pair.
type Verifier struct {
	key     *rsa.PublicKey
	leeway  time.Duration
	auditor *Auditor
	metrics *instrumentation.Metrics
}

// NewVerifier creates a verifier with the given clock-skew tolerance.
// A negative leeway is treated as zero.
func NewVerifier(key *rsa.PublicKey, leeway time.Duration) (*Verifier, error) {
	if key == nil {
		return nil, fmt.Errorf("verification key is required")
	}
	if leeway < 0 {
		leeway = 0
	}
	return &Verifier{key: key, leeway: leeway}, nil
}

// SetAuditor wires security audit logging of verification failures.
func (v *Verifier) SetAuditor(aud *Auditor) {
	v.auditor = aud
}

// SetInstrumentation wires OpenTelemetry metrics for verification failures.
func (v *Verifier) SetInstrumentation(inst *instrumentation.Instrumentation) {
	if inst != nil {
		v.metrics = inst.Metrics()
	}
}

// Verify checks the token's signature and expiry and returns the embedded
// payload. Any mismatch, corruption, or expiry yields a SignatureError;
// expired-but-valid-signature tokens are rejected, not silently accepted.
// Expiry is checked against current time with the verifier's leeway.
func (v *Verifier) Verify(signedToken string) (*oauthwrap.TokenPayload, error) {
	claims := &tokenClaims{}
	token, err := jwt.ParseWithClaims(signedToken, claims,
		func(t *jwt.Token) (any, error) { return v.key, nil },
		jwt.WithValidMethods([]string{signingMethod.Alg()}),
		jwt.WithLeeway(v.leeway),
		jwt.WithIssuedAt(),
	)
	if err != nil {
		reason := classifyVerifyError(err)
		v.recordFailure(reason)
		return nil, &oauthwrap.SignatureError{Reason: reason, Err: err}
	}
	if !token.Valid {
		v.recordFailure("token is not valid")
		return nil, &oauthwrap.SignatureError{Reason: "token is not valid"}
	}

	payload := &oauthwrap.TokenPayload{
		Username: claims.Username,
		ClientID: claims.ClientID,
		Scope:    claims.Scope,
	}
	if len(claims.Audience) > 0 {
		payload.Audience = claims.Audience[0]
	}
	if claims.IssuedAt != nil {
		payload.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		payload.ExpiresAt = claims.ExpiresAt.Time
	}
	return payload, nil
}

// recordFailure feeds a verification failure into the wired audit and
// metric hooks. A failure may indicate tampering, so it is always worth
// surfacing to operators.
func (v *Verifier) recordFailure(reason string) {
	if v.auditor != nil {
		v.auditor.LogSignatureFailure(reason)
	}
	if v.metrics != nil {
		v.metrics.SignatureFailures.Add(context.Background(), 1)
	}
}

// classifyVerifyError maps jwt verification failures to stable reasons
// without leaking parser internals to callers.
func classifyVerifyError(err error) string {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return "token expired"
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return "signature mismatch"
	case errors.Is(err, jwt.ErrTokenMalformed):
		return "token corrupted"
	default:
		return "verification failed"
	}
}

// KeyFingerprint returns a stable hex fingerprint of a public key: the
// first 16 bytes of the SHA-256 of its PKIX encoding. Used as an access
// token's audience so a resource server can confirm the token was minted
// for its key.
func KeyFingerprint(key *rsa.PublicKey) (string, error) {
	der, err := x509.MarshalPKIXPublicKey(key)
	if err != nil {
		return "", fmt.Errorf("failed to encode public key: %w", err)
	}
	sum := sha256.Sum256(der)
	return hex.EncodeToString(sum[:16]), nil
}
