// Package ratelimit provides per-client rate limiting functionality.
package ratelimit

import (
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// Config defines the rate limiting configuration.
type Config struct {
	RPS             float64       // Requests per second per client; 0 disables limiting
	Burst           int           // Burst size per client
	CleanupInterval time.Duration // How often to clean up idle limiters
}

// Enabled reports whether the configuration limits anything.
func (c Config) Enabled() bool {
	return c.RPS > 0
}

// DefaultConfig provides sensible defaults for rate limiting.
var DefaultConfig = Config{
	RPS:             10,        // 10 requests/second
	Burst:           20,        // Allow burst of 20
	CleanupInterval: time.Hour, // Clean up idle limiters every hour
}

// rateLimiterEntry holds a rate limiter and tracks its last usage.
type rateLimiterEntry struct {
	limiter  *rate.Limiter
	lastUsed atomic.Int64 // unix nanoseconds
}

func (e *rateLimiterEntry) touch() {
	e.lastUsed.Store(time.Now().UnixNano())
}

// RateLimiter manages per-client rate limiting.
type RateLimiter struct {
	limiters map[string]*rateLimiterEntry
	mu       sync.RWMutex
	config   Config

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewRateLimiter creates a new rate limiter with the given configuration.
// It starts a background goroutine for cleanup.
func NewRateLimiter(config Config) *RateLimiter {
	rl := &RateLimiter{
		limiters: make(map[string]*rateLimiterEntry),
		config:   config,
		stopCh:   make(chan struct{}),
	}

	// Start the cleanup goroutine
	rl.wg.Add(1)
	go rl.cleanupLoop()

	return rl
}

// Allow checks if a request from the given client is allowed.
// It returns true if the request is within rate limits, false otherwise.
func (rl *RateLimiter) Allow(key string) bool {
	return rl.GetLimiter(key).Allow()
}

// GetLimiter returns the rate limiter for the given client, creating one if necessary.
func (rl *RateLimiter) GetLimiter(key string) *rate.Limiter {
	// Fast path: check if limiter exists with read lock
	rl.mu.RLock()
	entry, exists := rl.limiters[key]
	rl.mu.RUnlock()
	if exists {
		entry.touch()
		return entry.limiter
	}

	// Slow path: create limiter with write lock
	rl.mu.Lock()
	defer rl.mu.Unlock()

	// Double-check after acquiring write lock
	if entry, exists = rl.limiters[key]; exists {
		entry.touch()
		return entry.limiter
	}

	entry = &rateLimiterEntry{limiter: rate.NewLimiter(rate.Limit(rl.config.RPS), rl.config.Burst)}
	entry.touch()
	rl.limiters[key] = entry

	return entry.limiter
}

// Cleanup removes rate limiters that have been idle for longer than the cleanup interval.
// This is called periodically by the background goroutine.
func (rl *RateLimiter) Cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := time.Now().Add(-rl.config.CleanupInterval).UnixNano()
	for key, entry := range rl.limiters {
		if entry.lastUsed.Load() < cutoff {
			delete(rl.limiters, key)
		}
	}
}

// cleanupLoop runs the periodic cleanup in the background.
func (rl *RateLimiter) cleanupLoop() {
	defer rl.wg.Done()

	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.Cleanup()
		case <-rl.stopCh:
			return
		}
	}
}

// Stop stops the cleanup goroutine and waits for it to finish.
// This should be called when shutting down the application.
func (rl *RateLimiter) Stop() {
	close(rl.stopCh)
	rl.wg.Wait()
}

// Len returns the number of active rate limiters.
func (rl *RateLimiter) Len() int {
	rl.mu.RLock()
	defer rl.mu.RUnlock()
	return len(rl.limiters)
}
