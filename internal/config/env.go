package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jonathan/job-change-tracker/internal/schemas"
	"github.com/jonathan/job-change-tracker/internal/types"
)

// Environment variable names.
const (
	EnvDatabaseURL    = "DATABASE_URL"
	EnvMaxResults     = "MAX_RESULTS_PER_COMPANY"
	EnvDelay          = "SCRAPING_DELAY"
	EnvTargets        = "COMPANIES_TO_TRACK"
	EnvHeadless       = "CHROME_HEADLESS"
	EnvDisableGPU     = "CHROME_DISABLE_GPU"
	EnvNoSandbox      = "CHROME_NO_SANDBOX"
	EnvDisableDevShm  = "CHROME_DISABLE_DEV_SHM"
	EnvChromePath     = "CHROME_PATH"
	EnvFetcher        = "SCRAPE_FETCHER"
	EnvPushgatewayURL = "PUSHGATEWAY_URL"
)

// ApplyEnv overrides configuration values with environment variables that are set.
func (c *Config) ApplyEnv() error {
	if v := os.Getenv(EnvDatabaseURL); v != "" {
		c.DatabaseURL = v
	}
	if v := os.Getenv(EnvFetcher); v != "" {
		c.Fetcher = strings.ToLower(v)
	}
	if v := os.Getenv(EnvPushgatewayURL); v != "" {
		c.Pushgateway = v
	}
	if v := os.Getenv(EnvChromePath); v != "" {
		c.Chrome.ExecPath = v
	}

	if v := os.Getenv(EnvMaxResults); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %v", EnvMaxResults, err)
		}
		c.MaxResults = n
	}

	if v := os.Getenv(EnvDelay); v != "" {
		d, err := ParseDelay(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %v", EnvDelay, err)
		}
		c.Delay = d
	}

	for name, dst := range map[string]*bool{
		EnvHeadless:      &c.Chrome.Headless,
		EnvDisableGPU:    &c.Chrome.DisableGPU,
		EnvNoSandbox:     &c.Chrome.NoSandbox,
		EnvDisableDevShm: &c.Chrome.DisableDevShm,
	} {
		if v := os.Getenv(name); v != "" {
			*dst = strings.EqualFold(strings.TrimSpace(v), "true")
		}
	}

	if v := os.Getenv(EnvTargets); strings.TrimSpace(v) != "" {
		targets, err := ParseTargets(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvTargets, err)
		}
		c.MergeTargets(targets)
	}

	return nil
}

// ParseDelay accepts seconds ("2", "1.5") or a Go duration ("1500ms").
func ParseDelay(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if secs, err := strconv.ParseFloat(s, 64); err == nil {
		if secs < 0 {
			return 0, fmt.Errorf("delay must be non-negative: %s", s)
		}
		return time.Duration(secs * float64(time.Second)), nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("delay must be non-negative: %s", s)
	}
	return d, nil
}

// ParseTargets validates a JSON target list against the targets schema and decodes it.
func ParseTargets(content string) ([]types.Target, error) {
	if err := schemas.ValidateTargets(content); err != nil {
		return nil, err
	}
	var targets []types.Target
	if err := json.Unmarshal([]byte(content), &targets); err != nil {
		return nil, fmt.Errorf("failed to parse targets JSON: %w", err)
	}
	return canonicalTargets(targets), nil
}
