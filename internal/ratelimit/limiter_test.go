package ratelimit

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"pgregory.net/rapid"
)

// =============================================================================
// Generators for property-based testing
// =============================================================================

// clientKeyGenerator generates IPv4 client keys
func clientKeyGenerator() *rapid.Generator[string] {
	return rapid.Custom(func(t *rapid.T) string {
		return fmt.Sprintf("%d.%d.%d.%d",
			rapid.IntRange(1, 254).Draw(t, "a"),
			rapid.IntRange(0, 255).Draw(t, "b"),
			rapid.IntRange(0, 255).Draw(t, "c"),
			rapid.IntRange(1, 254).Draw(t, "d"))
	})
}

// =============================================================================
// Property: Requests within limit succeed
// =============================================================================

func testRateLimiter_RequestsWithinLimit(t *rapid.T) {
	config := Config{
		RPS:             100.0, // High enough to not hit rate limit during test
		Burst:           rapid.IntRange(2, 200).Draw(t, "burst"),
		CleanupInterval: time.Hour,
	}

	rl := NewRateLimiter(config)
	defer rl.Stop()

	key := clientKeyGenerator().Draw(t, "key")
	numRequests := rapid.IntRange(1, config.Burst).Draw(t, "numRequests")

	// Property: All requests within burst limit should succeed
	for i := 0; i < numRequests; i++ {
		if !rl.Allow(key) {
			t.Fatalf("Request %d of %d should have been allowed (within burst of %d)", i+1, numRequests, config.Burst)
		}
	}
}

func TestRateLimiter_RequestsWithinLimit(t *testing.T) {
	rapid.Check(t, testRateLimiter_RequestsWithinLimit)
}

func FuzzRateLimiter_RequestsWithinLimit(f *testing.F) {
	f.Add([]byte{0x00})
	f.Fuzz(rapid.MakeFuzz(testRateLimiter_RequestsWithinLimit))
}

// =============================================================================
// Property: Requests exceeding limit return false (blocked)
// =============================================================================

func testRateLimiter_ExceedingLimitBlocked(t *rapid.T) {
	config := Config{
		RPS:             0.001, // Very low - almost no refill
		Burst:           rapid.IntRange(1, 10).Draw(t, "burst"),
		CleanupInterval: time.Hour,
	}

	rl := NewRateLimiter(config)
	defer rl.Stop()

	key := clientKeyGenerator().Draw(t, "key")

	// Exhaust the burst allowance
	for i := 0; i < config.Burst; i++ {
		rl.Allow(key)
	}

	// Property: Request beyond burst should be blocked
	if rl.Allow(key) {
		t.Fatalf("Request beyond burst limit of %d should have been blocked", config.Burst)
	}
}

func TestRateLimiter_ExceedingLimitBlocked(t *testing.T) {
	rapid.Check(t, testRateLimiter_ExceedingLimitBlocked)
}

func FuzzRateLimiter_ExceedingLimitBlocked(f *testing.F) {
	f.Add([]byte{0x00})
	f.Fuzz(rapid.MakeFuzz(testRateLimiter_ExceedingLimitBlocked))
}

// =============================================================================
// Property: Different clients have independent limits
// =============================================================================

func testRateLimiter_ClientIndependence(t *rapid.T) {
	config := Config{
		RPS:             0.001,
		Burst:           3,
		CleanupInterval: time.Hour,
	}

	rl := NewRateLimiter(config)
	defer rl.Stop()

	first := clientKeyGenerator().Draw(t, "first")
	second := clientKeyGenerator().Filter(func(s string) bool { return s != first }).Draw(t, "second")

	for i := 0; i < config.Burst; i++ {
		rl.Allow(first)
	}
	if rl.Allow(first) {
		t.Fatal("first client should be exhausted")
	}

	// Property: Exhausting one client does not affect another
	for i := 0; i < config.Burst; i++ {
		if !rl.Allow(second) {
			t.Fatalf("second client request %d blocked by first client's usage", i+1)
		}
	}
}

func TestRateLimiter_ClientIndependence(t *testing.T) {
	rapid.Check(t, testRateLimiter_ClientIndependence)
}

// =============================================================================
// Property: Idle limiters get cleaned up after CleanupInterval
// =============================================================================

func testRateLimiter_IdleLimiterCleanup(t *rapid.T) {
	cleanupInterval := 10 * time.Millisecond

	rl := NewRateLimiter(Config{RPS: 100, Burst: 200, CleanupInterval: cleanupInterval})
	defer rl.Stop()

	numClients := rapid.IntRange(2, 10).Draw(t, "numClients")
	for i := 0; i < numClients; i++ {
		rl.Allow(clientKeyGenerator().Draw(t, "key"))
	}

	if rl.Len() == 0 {
		t.Fatal("Expected some limiters to be created")
	}

	time.Sleep(cleanupInterval + 5*time.Millisecond)

	// Manually trigger cleanup (since background goroutine might not have run yet)
	rl.Cleanup()

	// Property: All idle limiters should be cleaned up
	if got := rl.Len(); got != 0 {
		t.Fatalf("Expected all idle limiters to be cleaned up, got %d remaining", got)
	}
}

func TestRateLimiter_IdleLimiterCleanup(t *testing.T) {
	rapid.Check(t, testRateLimiter_IdleLimiterCleanup)
}

// =============================================================================
// Property: Active limiters are NOT cleaned up
// =============================================================================

func TestRateLimiter_ActiveLimiterNotCleaned(t *testing.T) {
	cleanupInterval := 50 * time.Millisecond

	rl := NewRateLimiter(Config{RPS: 100, Burst: 200, CleanupInterval: cleanupInterval})
	defer rl.Stop()

	key := "203.0.113.9"
	rl.Allow(key)

	time.Sleep(cleanupInterval + 10*time.Millisecond)
	rl.Allow(key)
	rl.Cleanup()

	if rl.Len() != 1 {
		t.Fatal("Active limiter should not have been cleaned up")
	}
}

// =============================================================================
// Property: Limiter is thread-safe (concurrent access)
// =============================================================================

func testRateLimiter_ConcurrentAccess(t *rapid.T) {
	rl := NewRateLimiter(Config{RPS: 1000, Burst: 2000, CleanupInterval: time.Millisecond})
	defer rl.Stop()

	numClients := rapid.IntRange(5, 20).Draw(t, "numClients")
	numGoroutines := rapid.IntRange(5, 20).Draw(t, "numGoroutines")
	requestsPerGoroutine := rapid.IntRange(10, 50).Draw(t, "requestsPerGoroutine")

	keys := make([]string, numClients)
	for i := range keys {
		keys[i] = clientKeyGenerator().Draw(t, "key")
	}

	var wg sync.WaitGroup
	var successCount atomic.Int64
	var failCount atomic.Int64

	for g := 0; g < numGoroutines; g++ {
		wg.Add(1)
		go func(goroutineID int) {
			defer wg.Done()
			for r := 0; r < requestsPerGoroutine; r++ {
				if rl.Allow(keys[(goroutineID+r)%numClients]) {
					successCount.Add(1)
				} else {
					failCount.Add(1)
				}
			}
		}(g)
	}

	wg.Wait()

	totalRequests := int64(numGoroutines * requestsPerGoroutine)
	actualTotal := successCount.Load() + failCount.Load()

	// Property: No requests should be lost or duplicated
	if actualTotal != totalRequests {
		t.Fatalf("Request count mismatch: expected %d, got %d (success=%d, fail=%d)",
			totalRequests, actualTotal, successCount.Load(), failCount.Load())
	}
	if successCount.Load() == 0 {
		t.Fatal("Expected at least some requests to succeed")
	}
}

func TestRateLimiter_ConcurrentAccess(t *testing.T) {
	rapid.Check(t, testRateLimiter_ConcurrentAccess)
}

// =============================================================================
// Property: GetLimiter returns same limiter for same client
// =============================================================================

func testRateLimiter_GetLimiterConsistency(t *rapid.T) {
	rl := NewRateLimiter(Config{RPS: 100, Burst: 200, CleanupInterval: time.Hour})
	defer rl.Stop()

	key := clientKeyGenerator().Draw(t, "key")

	limiter1 := rl.GetLimiter(key)
	limiter2 := rl.GetLimiter(key)

	if limiter1 != limiter2 {
		t.Fatal("GetLimiter should return the same instance for the same client")
	}
	if limiter1.Burst() != 200 {
		t.Fatalf("Burst = %d, want 200", limiter1.Burst())
	}
}

func TestRateLimiter_GetLimiterConsistency(t *testing.T) {
	rapid.Check(t, testRateLimiter_GetLimiterConsistency)
}

// =============================================================================
// Property: Len returns correct count of active limiters
// =============================================================================

func testRateLimiter_LenReturnsCorrectCount(t *rapid.T) {
	rl := NewRateLimiter(Config{RPS: 100, Burst: 200, CleanupInterval: time.Hour})
	defer rl.Stop()

	if rl.Len() != 0 {
		t.Fatalf("Expected 0 limiters initially, got %d", rl.Len())
	}

	keys := rapid.SliceOfDistinct(clientKeyGenerator(), rapid.ID[string]).Draw(t, "keys")
	for _, key := range keys {
		rl.Allow(key)
		rl.Allow(key)
	}

	if rl.Len() != len(keys) {
		t.Fatalf("Expected %d limiters, got %d", len(keys), rl.Len())
	}
}

func TestRateLimiter_LenReturnsCorrectCount(t *testing.T) {
	rapid.Check(t, testRateLimiter_LenReturnsCorrectCount)
}

func TestDefaultConfig(t *testing.T) {
	if !DefaultConfig.Enabled() {
		t.Fatal("DefaultConfig should limit")
	}
	if DefaultConfig.Burst <= 0 || DefaultConfig.CleanupInterval <= 0 {
		t.Fatalf("DefaultConfig has non-positive values: %+v", DefaultConfig)
	}
	if (Config{}).Enabled() {
		t.Fatal("zero RPS should disable limiting")
	}
}

// =============================================================================
// Property: Stop gracefully shuts down the cleanup goroutine
// =============================================================================

func TestRateLimiter_StopGracefulShutdown(t *testing.T) {
	rl := NewRateLimiter(Config{RPS: 100, Burst: 200, CleanupInterval: 10 * time.Millisecond})
	rl.Allow("198.51.100.1")

	done := make(chan struct{})
	go func() {
		rl.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(1 * time.Second):
		t.Fatal("Stop did not return within timeout - possible goroutine leak")
	}
}
