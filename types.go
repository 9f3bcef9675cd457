package oauthwrap

import "time"

// TokenPayload is the data signed into an access token. It never carries
// key material; keys live exclusively inside the security package.
type TokenPayload struct {
	// Username is the resource owner who authorized the access
	Username string

	// ClientID is the client the token was issued to
	ClientID string

	// Scope is the granted access scope (space-separated)
	Scope string

	// Audience identifies the resource server the token was minted for,
	// as a fingerprint of that server's public key
	Audience string

	// IssuedAt is when the token was minted
	IssuedAt time.Time

	// ExpiresAt is when the token stops being valid (before skew tolerance)
	ExpiresAt time.Time
}

// Expired reports whether the payload's expiry has passed, allowing the
// given clock-skew tolerance.
func (p *TokenPayload) Expired(skew time.Duration) bool {
	if p.ExpiresAt.IsZero() {
		return false
	}
	return time.Now().After(p.ExpiresAt.Add(skew))
}

// ExpiresIn returns the remaining token lifetime, or 0 if already expired.
func (p *TokenPayload) ExpiresIn() time.Duration {
	if p.ExpiresAt.IsZero() {
		return 0
	}
	d := time.Until(p.ExpiresAt)
	if d < 0 {
		return 0
	}
	return d
}
