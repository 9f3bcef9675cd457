package security

import (
	"fmt"
	"testing"
)

func TestRateLimiterAllowsWithinBurst(t *testing.T) {
	rl := NewRateLimiter(1, 3, nil)

	for i := 0; i < 3; i++ {
		if !rl.Allow("client-1") {
			t.Fatalf("Allow() = false on request %d within burst", i+1)
		}
	}
	if rl.Allow("client-1") {
		t.Error("Allow() = true beyond burst, want false")
	}
}

func TestRateLimiterIsolatesIdentifiers(t *testing.T) {
	rl := NewRateLimiter(1, 1, nil)

	if !rl.Allow("client-1") {
		t.Fatal("Allow(client-1) = false on first request")
	}
	if rl.Allow("client-1") {
		t.Fatal("Allow(client-1) = true beyond burst")
	}
	// Exhausting one client's budget must not affect another's.
	if !rl.Allow("client-2") {
		t.Error("Allow(client-2) = false, want independent budget")
	}
}

func TestRateLimiterEviction(t *testing.T) {
	rl := NewRateLimiter(1, 1, nil)
	rl.maxEntries = 3

	for i := 0; i < 3; i++ {
		rl.Allow(fmt.Sprintf("client-%d", i))
	}
	if got := rl.Len(); got != 3 {
		t.Fatalf("Len() = %d, want 3", got)
	}

	// client-0 is the least recently used; a fourth identifier evicts it.
	rl.Allow("client-3")
	if got := rl.Len(); got != 3 {
		t.Errorf("Len() = %d after eviction, want 3", got)
	}
	if _, ok := rl.entries["client-0"]; ok {
		t.Error("client-0 still tracked, want evicted")
	}
	if _, ok := rl.entries["client-3"]; !ok {
		t.Error("client-3 not tracked after insert")
	}
}

func TestRateLimiterLRUTouch(t *testing.T) {
	rl := NewRateLimiter(1, 1, nil)
	rl.maxEntries = 2

	rl.Allow("client-0")
	rl.Allow("client-1")
	// Touch client-0 so client-1 becomes the eviction candidate.
	rl.Allow("client-0")
	rl.Allow("client-2")

	if _, ok := rl.entries["client-0"]; !ok {
		t.Error("client-0 evicted despite recent use")
	}
	if _, ok := rl.entries["client-1"]; ok {
		t.Error("client-1 still tracked, want evicted")
	}
}
