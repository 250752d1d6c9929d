package ratelimit

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestBucket_Allow(t *testing.T) {
	// 10 tokens, refilling 1 per second
	b := newBucket(10, 10*time.Second, 10)
	now := time.Now()

	// Should allow 10 requests immediately (burst)
	for i := 0; i < 10; i++ {
		if !b.lim.AllowN(now, 1) {
			t.Errorf("Expected request %d to be allowed", i+1)
		}
	}

	// 11th request should be denied (no tokens left)
	if b.lim.AllowN(now, 1) {
		t.Error("Expected 11th request to be denied")
	}
}

func TestBucket_Refill(t *testing.T) {
	b := newBucket(10, 10*time.Second, 10) // 1 token per second
	now := time.Now()

	// Consume all tokens
	for i := 0; i < 10; i++ {
		b.lim.AllowN(now, 1)
	}

	// One second later one token has refilled
	later := now.Add(1100 * time.Millisecond)
	if !b.lim.AllowN(later, 1) {
		t.Error("Expected request to be allowed after refill")
	}

	// Should be denied again
	if b.lim.AllowN(later, 1) {
		t.Error("Expected request to be denied after consuming refilled token")
	}
}

func TestBucket_Status(t *testing.T) {
	b := newBucket(10, 10*time.Second, 10)
	now := time.Now()

	// Consume 5 tokens
	for i := 0; i < 5; i++ {
		b.lim.AllowN(now, 1)
	}

	remaining, resetTime := b.status(now)
	if remaining != 5 {
		t.Errorf("Expected 5 remaining tokens, got %d", remaining)
	}
	if !resetTime.After(now) {
		t.Error("Reset time should be in the future")
	}
	if b.retryAfter(now) != 0 {
		t.Error("Expected no retry-after while tokens remain")
	}
}

func TestBucket_RetryAfter(t *testing.T) {
	b := newBucket(2, 2*time.Second, 2) // 1 token per second
	now := time.Now()
	b.lim.AllowN(now, 1)
	b.lim.AllowN(now, 1)

	retry := b.retryAfter(now)
	if retry <= 900*time.Millisecond || retry > time.Second {
		t.Errorf("Expected retry-after close to 1s, got %v", retry)
	}
}

func TestLimiter_Allow(t *testing.T) {
	config := &Config{
		Enabled:       true,
		DefaultLimit:  10,
		DefaultWindow: time.Minute,
	}
	limiter := NewLimiter(config)
	defer limiter.Stop()

	clientID := "127.0.0.1"
	endpoint := "/test"
	method := "GET"

	// Should allow requests up to limit
	for i := 0; i < 10; i++ {
		allowed, rateInfo := limiter.Allow(clientID, endpoint, method)
		if !allowed {
			t.Errorf("Expected request %d to be allowed", i+1)
		}
		if rateInfo.Limit != 10 {
			t.Errorf("Expected limit 10, got %d", rateInfo.Limit)
		}
		if rateInfo.Remaining != 9-i {
			t.Errorf("Expected remaining %d, got %d", 9-i, rateInfo.Remaining)
		}
	}

	// 11th request should be denied
	allowed, rateInfo := limiter.Allow(clientID, endpoint, method)
	if allowed {
		t.Error("Expected 11th request to be denied")
	}
	if rateInfo.Remaining != 0 {
		t.Errorf("Expected remaining 0, got %d", rateInfo.Remaining)
	}
	if rateInfo.RetryAfter <= 0 {
		t.Error("Expected retry after to be positive")
	}
}

func TestLimiter_Whitelist(t *testing.T) {
	config := &Config{
		Enabled:       true,
		DefaultLimit:  1,
		DefaultWindow: time.Minute,
		Whitelist:     map[string]bool{"127.0.0.1": true},
	}
	limiter := NewLimiter(config)
	defer limiter.Stop()

	// Whitelisted IP should always be allowed
	for i := 0; i < 100; i++ {
		allowed, rateInfo := limiter.Allow("127.0.0.1", "/test", "GET")
		if !allowed {
			t.Errorf("Expected whitelisted request %d to be allowed", i+1)
		}
		if rateInfo.Limit != 0 {
			t.Errorf("Expected limit 0 for whitelisted, got %d", rateInfo.Limit)
		}
	}
}

func TestLimiter_Blacklist(t *testing.T) {
	config := &Config{
		Enabled:       true,
		DefaultLimit:  1000,
		DefaultWindow: time.Minute,
		Blacklist:     map[string]bool{"192.168.1.1": true},
	}
	limiter := NewLimiter(config)
	defer limiter.Stop()

	// Blacklisted IP should always be denied
	allowed, _ := limiter.Allow("192.168.1.1", "/test", "GET")
	if allowed {
		t.Error("Expected blacklisted request to be denied")
	}
}

func TestLimiter_Disabled(t *testing.T) {
	config := &Config{
		Enabled: false,
	}
	limiter := NewLimiter(config)
	defer limiter.Stop()

	// When disabled, all requests should be allowed
	for i := 0; i < 100; i++ {
		allowed, rateInfo := limiter.Allow("127.0.0.1", "/test", "GET")
		if !allowed {
			t.Errorf("Expected request %d to be allowed when disabled", i+1)
		}
		if rateInfo.Limit != 0 {
			t.Errorf("Expected limit 0 when disabled, got %d", rateInfo.Limit)
		}
	}
}

func TestLimiter_EndpointSpecific(t *testing.T) {
	config := &Config{
		Enabled:       true,
		DefaultLimit:  1000,
		DefaultWindow: time.Minute,
		EndpointConfigs: []EndpointConfig{
			{Path: "/changes/ack", Method: "POST", Limit: 5, Window: time.Hour, Burst: 5},
		},
	}
	limiter := NewLimiter(config)
	defer limiter.Stop()

	clientID := "127.0.0.1"

	// Test endpoint-specific limit (burst allows 5 immediately)
	for i := 0; i < 5; i++ {
		allowed, rateInfo := limiter.Allow(clientID, "/changes/ack", "POST")
		if !allowed {
			t.Errorf("Expected request %d to be allowed", i+1)
		}
		if rateInfo.Limit != 5 {
			t.Errorf("Expected limit 5, got %d", rateInfo.Limit)
		}
	}

	// 6th request should be denied (limit reached)
	allowed, rateInfo := limiter.Allow(clientID, "/changes/ack", "POST")
	if allowed {
		t.Error("Expected 6th request to be denied")
	}
	if rateInfo.Limit != 5 {
		t.Errorf("Expected limit 5, got %d", rateInfo.Limit)
	}

	// Different endpoint should use default limit
	allowed, rateInfo = limiter.Allow(clientID, "/other", "GET")
	if !allowed {
		t.Error("Expected different endpoint to be allowed")
	}
	if rateInfo.Limit != 1000 {
		t.Errorf("Expected default limit 1000, got %d", rateInfo.Limit)
	}
}

func TestLimiter_Concurrent(t *testing.T) {
	config := &Config{
		Enabled:       true,
		DefaultLimit:  100,
		DefaultWindow: time.Minute,
	}
	limiter := NewLimiter(config)
	defer limiter.Stop()

	clientID := "127.0.0.1"
	endpoint := "/test"
	method := "GET"

	var wg sync.WaitGroup
	allowedCount := 0
	var mu sync.Mutex

	// Make 200 concurrent requests (should only allow 100)
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			allowed, _ := limiter.Allow(clientID, endpoint, method)
			if allowed {
				mu.Lock()
				allowedCount++
				mu.Unlock()
			}
		}()
	}

	wg.Wait()

	// Should have allowed exactly 100 requests
	if allowedCount != 100 {
		t.Errorf("Expected 100 allowed requests, got %d", allowedCount)
	}
}

func TestLimiter_Cleanup(t *testing.T) {
	config := &Config{
		Enabled:       true,
		DefaultLimit:  10,
		DefaultWindow: time.Minute,
	}
	limiter := NewLimiter(config)
	defer limiter.Stop()

	// Create buckets for multiple clients
	for i := 0; i < 10; i++ {
		clientID := fmt.Sprintf("127.0.0.%d", i+1)
		allowed, _ := limiter.Allow(clientID, "/test", "GET")
		if !allowed {
			t.Errorf("Expected request from %s to be allowed", clientID)
		}
	}
	if limiter.size() != 10 {
		t.Fatalf("Expected 10 buckets, got %d", limiter.size())
	}

	// A cutoff in the past keeps everything
	limiter.cleanupBuckets(time.Now().Add(-time.Hour))
	if limiter.size() != 10 {
		t.Errorf("Expected recently used buckets to survive cleanup, got %d", limiter.size())
	}

	// A cutoff in the future drops everything
	limiter.cleanupBuckets(time.Now().Add(time.Second))
	if limiter.size() != 0 {
		t.Errorf("Expected stale buckets to be removed, got %d", limiter.size())
	}

	// A dropped client starts with a fresh bucket
	allowed, info := limiter.Allow("127.0.0.1", "/test", "GET")
	if !allowed || info.Remaining != 9 {
		t.Errorf("Expected fresh bucket after cleanup, allowed=%v remaining=%d", allowed, info.Remaining)
	}
}

func TestLimiter_StopTwice(t *testing.T) {
	limiter := NewLimiter(&Config{Enabled: true, DefaultLimit: 1, DefaultWindow: time.Minute, CleanupInterval: time.Minute})
	limiter.Stop()
	limiter.Stop()
}

func TestLimiter_Burst(t *testing.T) {
	config := &Config{
		Enabled:       true,
		DefaultLimit:  10,
		DefaultWindow: time.Minute,
		EndpointConfigs: []EndpointConfig{
			{Path: "/burst", Method: "POST", Limit: 10, Window: time.Minute, Burst: 5},
		},
	}
	limiter := NewLimiter(config)
	defer limiter.Stop()

	clientID := "127.0.0.1"

	// Should allow burst of 5 requests immediately
	for i := 0; i < 5; i++ {
		allowed, _ := limiter.Allow(clientID, "/burst", "POST")
		if !allowed {
			t.Errorf("Expected burst request %d to be allowed", i+1)
		}
	}

	// 6th request should be denied (burst exhausted, no refill yet)
	allowed, _ := limiter.Allow(clientID, "/burst", "POST")
	if allowed {
		t.Error("Expected request after burst to be denied")
	}
}

func TestNewLimiter_NilConfig(t *testing.T) {
	limiter := NewLimiter(nil)
	defer limiter.Stop()

	if limiter == nil {
		t.Error("Expected limiter to be created with nil config")
	}

	// Should use defaults
	allowed, rateInfo := limiter.Allow("127.0.0.1", "/test", "GET")
	if !allowed {
		t.Error("Expected request to be allowed with default config")
	}
	if rateInfo.Limit != 1000 {
		t.Errorf("Expected default limit 1000, got %d", rateInfo.Limit)
	}
}

func TestMatchEndpoint(t *testing.T) {
	configs := DefaultEndpointConfigs()

	tests := []struct {
		path      string
		method    string
		wantLimit int
		wantNil   bool
	}{
		{"/health", "GET", 0, false},
		{"/metrics", "GET", 0, false},
		{"/changes/ack", "POST", 30, false},
		{"/trends", "GET", 120, false},
		{"/companies/Acme/trend", "GET", 300, false},
		{"/companies", "GET", 0, true},
		{"/changes/recent", "GET", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			got := MatchEndpoint(tt.path, tt.method, configs)
			if tt.wantNil {
				if got != nil {
					t.Errorf("Expected no match, got %+v", got)
				}
				return
			}
			if got == nil {
				t.Fatal("Expected a match")
			}
			if got.Limit != tt.wantLimit {
				t.Errorf("Expected limit %d, got %d", tt.wantLimit, got.Limit)
			}
		})
	}
}

func TestMatchEndpoint_LongestPrefixWins(t *testing.T) {
	configs := []EndpointConfig{
		{Path: "/companies/", Method: "GET", Limit: 300},
		{Path: "/companies/acme/", Method: "GET", Limit: 5},
		{Path: "/companies/acme/trend", Method: "POST", Limit: 1},
	}

	got := MatchEndpoint("/companies/acme/trend", "GET", configs)
	if got == nil || got.Limit != 5 {
		t.Fatalf("Expected the /companies/acme/ override, got %+v", got)
	}
	got = MatchEndpoint("/companies/globex/trend", "GET", configs)
	if got == nil || got.Limit != 300 {
		t.Fatalf("Expected the /companies/ override, got %+v", got)
	}
	got = MatchEndpoint("/companies/acme/trend", "POST", configs)
	if got == nil || got.Limit != 1 {
		t.Fatalf("Expected the exact POST override, got %+v", got)
	}
	if got := MatchEndpoint("/health", "POST", configs); got != nil {
		t.Errorf("Only GET /health is unlimited, got %+v", got)
	}
}

func TestLoadConfig_Env(t *testing.T) {
	t.Setenv(EnvEnabled, "true")
	t.Setenv(EnvDefaultLimit, "42")
	t.Setenv(EnvDefaultWindow, "30s")
	t.Setenv(EnvCleanupInterval, "")
	t.Setenv(EnvWhitelist, "10.0.0.1, 10.0.0.2")
	t.Setenv(EnvBlacklist, "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if !cfg.Enabled || cfg.DefaultLimit != 42 || cfg.DefaultWindow != 30*time.Second {
		t.Errorf("Unexpected config: %+v", cfg)
	}
	if cfg.CleanupInterval != 5*time.Minute {
		t.Errorf("Expected default cleanup interval, got %v", cfg.CleanupInterval)
	}
	if !cfg.Whitelist["10.0.0.2"] || len(cfg.Whitelist) != 2 {
		t.Errorf("Unexpected whitelist: %v", cfg.Whitelist)
	}
	if len(cfg.Blacklist) != 0 {
		t.Errorf("Expected empty blacklist, got %v", cfg.Blacklist)
	}
	if len(cfg.EndpointConfigs) != len(DefaultEndpointConfigs()) {
		t.Errorf("Expected the default endpoint overrides, got %v", cfg.EndpointConfigs)
	}

	t.Setenv(EnvEnabled, "false")
	cfg, err = LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Enabled {
		t.Error("Expected rate limiting to be disabled")
	}
}

func TestLoadConfig_InvalidEnv(t *testing.T) {
	for name, value := range map[string]string{
		EnvEnabled:         "sometimes",
		EnvDefaultLimit:    "-1",
		EnvDefaultWindow:   "a minute",
		EnvCleanupInterval: "-5m",
	} {
		t.Run(name, func(t *testing.T) {
			t.Setenv(name, value)
			if _, err := LoadConfig(); err == nil {
				t.Errorf("Expected an error for %s=%q", name, value)
			}
		})
	}
}
