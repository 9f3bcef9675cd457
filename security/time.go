package security

import "time"

const (
	// DefaultClockSkewGracePeriod is the default tolerance applied to
	// expiry checks. It prevents false rejections caused by time drift
	// between the parties while extending effective lifetimes by only a
	// few seconds, which is acceptable for grants and access tokens.
	DefaultClockSkewGracePeriod = 5 * time.Second
)

// IsExpired checks expiry with the default clock-skew grace period.
func IsExpired(expiresAt time.Time) bool {
	return IsExpiredWithGracePeriod(expiresAt, DefaultClockSkewGracePeriod)
}

// IsExpiredWithGracePeriod reports whether expiresAt has passed by more
// than the grace period. A zero time means no expiration.
func IsExpiredWithGracePeriod(expiresAt time.Time, gracePeriod time.Duration) bool {
	if expiresAt.IsZero() {
		return false
	}
	return time.Now().After(expiresAt.Add(gracePeriod))
}
