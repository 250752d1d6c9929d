package ratelimit

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Environment variable names.
const (
	EnvEnabled         = "RATE_LIMIT_ENABLED"
	EnvDefaultLimit    = "RATE_LIMIT_DEFAULT_LIMIT"
	EnvDefaultWindow   = "RATE_LIMIT_DEFAULT_WINDOW"
	EnvCleanupInterval = "RATE_LIMIT_CLEANUP_INTERVAL"
	EnvWhitelist       = "RATE_LIMIT_WHITELIST"
	EnvBlacklist       = "RATE_LIMIT_BLACKLIST"
)

// EndpointConfig overrides the default limit for one method and path. A Path ending in "/"
// covers every path below it.
type EndpointConfig struct {
	Path   string
	Method string
	Limit  int // requests per Window; 0 means unlimited
	Window time.Duration
	Burst  int // defaults to Limit
}

// DefaultConfig returns an enabled configuration allowing 1000 requests a minute per client,
// with the per-endpoint overrides of DefaultEndpointConfigs.
func DefaultConfig() *Config {
	return &Config{
		Enabled:         true,
		DefaultLimit:    1000,
		DefaultWindow:   time.Minute,
		CleanupInterval: 5 * time.Minute,
		Whitelist:       map[string]bool{},
		Blacklist:       map[string]bool{},
		EndpointConfigs: DefaultEndpointConfigs(),
	}
}

// LoadConfig returns DefaultConfig with the RATE_LIMIT_* variables that are set applied.
// An unparsable value is an error rather than a silent fallback.
func LoadConfig() (*Config, error) {
	cfg := DefaultConfig()

	if v := os.Getenv(EnvEnabled); v != "" {
		enabled, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %v", EnvEnabled, err)
		}
		cfg.Enabled = enabled
	}
	if !cfg.Enabled {
		return &Config{Enabled: false}, nil
	}

	if v := os.Getenv(EnvDefaultLimit); v != "" {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid %s: %q", EnvDefaultLimit, v)
		}
		cfg.DefaultLimit = n
	}

	for name, dst := range map[string]*time.Duration{
		EnvDefaultWindow:   &cfg.DefaultWindow,
		EnvCleanupInterval: &cfg.CleanupInterval,
	} {
		v := os.Getenv(name)
		if v == "" {
			continue
		}
		d, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil || d < 0 {
			return nil, fmt.Errorf("invalid %s: %q", name, v)
		}
		*dst = d
	}

	cfg.Whitelist = addressSet(os.Getenv(EnvWhitelist))
	cfg.Blacklist = addressSet(os.Getenv(EnvBlacklist))
	return cfg, nil
}

// DefaultEndpointConfigs returns the per-endpoint overrides. Reads not listed here use the
// default limit.
func DefaultEndpointConfigs() []EndpointConfig {
	return []EndpointConfig{
		{Path: "/changes/ack", Method: "POST", Limit: 30, Window: time.Minute, Burst: 5},

		// trends run the SQL aggregation functions
		{Path: "/trends", Method: "GET", Limit: 120, Window: time.Minute, Burst: 20},
		{Path: "/companies/", Method: "GET", Limit: 300, Window: time.Minute, Burst: 30},
	}
}

// addressSet splits a comma or space separated address list.
func addressSet(list string) map[string]bool {
	set := map[string]bool{}
	for _, addr := range strings.FieldsFunc(list, func(r rune) bool { return r == ',' || r == ' ' }) {
		set[addr] = true
	}
	return set
}
