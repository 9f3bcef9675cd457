package security

import (
	"container/list"
	"log/slog"
	"sync"

	"golang.org/x/time/rate"
)

// defaultMaxEntries bounds the number of tracked identifiers so hostile
// clients cannot grow the limiter map without bound.
const defaultMaxEntries = 10000

// limiterEntry pairs a per-identifier limiter with its LRU position.
type limiterEntry struct {
	identifier string
	limiter    *rate.Limiter
}

// RateLimiter provides per-identifier rate limiting using a token bucket,
// with LRU eviction once the entry limit is reached. The server uses it
// to throttle token issuance per client identifier.
type RateLimiter struct {
	mu         sync.Mutex
	entries    map[string]*list.Element // identifier -> element holding *limiterEntry
	lru        *list.List
	rps        rate.Limit
	burst      int
	maxEntries int
	logger     *slog.Logger
}

// NewRateLimiter creates a rate limiter allowing requestsPerSecond
// sustained with the given burst, tracking at most defaultMaxEntries
// identifiers.
func NewRateLimiter(requestsPerSecond float64, burst int, logger *slog.Logger) *RateLimiter {
	if logger == nil {
		logger = slog.Default()
	}
	return &RateLimiter{
		entries:    make(map[string]*list.Element),
		lru:        list.New(),
		rps:        rate.Limit(requestsPerSecond),
		burst:      burst,
		maxEntries: defaultMaxEntries,
		logger:     logger,
	}
}

// Allow reports whether a request from the given identifier is allowed
// right now.
func (rl *RateLimiter) Allow(identifier string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	elem, ok := rl.entries[identifier]
	if ok {
		rl.lru.MoveToFront(elem)
		return elem.Value.(*limiterEntry).limiter.Allow()
	}

	if rl.lru.Len() >= rl.maxEntries {
		rl.evictOldest()
	}

	entry := &limiterEntry{
		identifier: identifier,
		limiter:    rate.NewLimiter(rl.rps, rl.burst),
	}
	rl.entries[identifier] = rl.lru.PushFront(entry)
	return entry.limiter.Allow()
}

// Len returns the number of identifiers currently tracked.
func (rl *RateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return rl.lru.Len()
}

// evictOldest drops the least recently used entry. Caller holds rl.mu.
func (rl *RateLimiter) evictOldest() {
	oldest := rl.lru.Back()
	if oldest == nil {
		return
	}
	entry := oldest.Value.(*limiterEntry)
	rl.lru.Remove(oldest)
	delete(rl.entries, entry.identifier)
	rl.logger.Debug("Rate limiter entry evicted", "identifier", entry.identifier)
}
