package oauthwrap

import (
	"testing"
	"time"
)

func TestTokenPayloadExpired(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name      string
		expiresAt time.Time
		skew      time.Duration
		want      bool
	}{
		{"future", now.Add(time.Hour), 0, false},
		{"long past", now.Add(-time.Hour), 5 * time.Second, true},
		{"past but within skew", now.Add(-2 * time.Second), 5 * time.Second, false},
		{"past without skew", now.Add(-2 * time.Second), 0, true},
		{"zero time never expires", time.Time{}, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &TokenPayload{ExpiresAt: tt.expiresAt}
			if got := p.Expired(tt.skew); got != tt.want {
				t.Errorf("Expired(%v) = %v, want %v", tt.skew, got, tt.want)
			}
		})
	}
}

func TestTokenPayloadExpiresIn(t *testing.T) {
	p := &TokenPayload{ExpiresAt: time.Now().Add(time.Hour)}
	if d := p.ExpiresIn(); d <= 59*time.Minute || d > time.Hour {
		t.Errorf("ExpiresIn() = %v, want roughly an hour", d)
	}

	expired := &TokenPayload{ExpiresAt: time.Now().Add(-time.Minute)}
	if d := expired.ExpiresIn(); d != 0 {
		t.Errorf("ExpiresIn() = %v for expired payload, want 0", d)
	}

	zero := &TokenPayload{}
	if d := zero.ExpiresIn(); d != 0 {
		t.Errorf("ExpiresIn() = %v for zero expiry, want 0", d)
	}
}
