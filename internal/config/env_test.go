package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyEnv(t *testing.T) {
	t.Setenv(EnvDatabaseURL, "postgres://env@localhost/jobs")
	t.Setenv(EnvMaxResults, "40")
	t.Setenv(EnvDelay, "1.5")
	t.Setenv(EnvHeadless, "false")
	t.Setenv(EnvNoSandbox, "TRUE")
	t.Setenv(EnvTargets, `[{"name": "Acme", "url": "https://www.linkedin.com/company/acme/"}]`)

	cfg := Default()
	require.NoError(t, cfg.ApplyEnv())

	assert.Equal(t, "postgres://env@localhost/jobs", cfg.DatabaseURL)
	assert.Equal(t, 40, cfg.MaxResults)
	assert.Equal(t, 1500*time.Millisecond, cfg.Delay)
	assert.False(t, cfg.Chrome.Headless)
	assert.True(t, cfg.Chrome.NoSandbox)
	require.Len(t, cfg.Targets, 1)
	assert.Equal(t, "Acme", cfg.Targets[0].Name)
}

func TestApplyEnv_UnsetKeepsValues(t *testing.T) {
	t.Setenv(EnvMaxResults, "")
	t.Setenv(EnvTargets, "")

	cfg := Default()
	cfg.MaxResults = 7
	require.NoError(t, cfg.ApplyEnv())
	assert.Equal(t, 7, cfg.MaxResults)
	assert.Empty(t, cfg.Targets)
}

func TestApplyEnv_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"max results not a number", EnvMaxResults, "lots"},
		{"delay not a number", EnvDelay, "soon"},
		{"targets not json", EnvTargets, "[{"},
		{"targets missing url", EnvTargets, `[{"name": "Acme"}]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			err := Default().ApplyEnv()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.key)
		})
	}
}

func TestParseDelay(t *testing.T) {
	tests := []struct {
		input    string
		expected time.Duration
		wantErr  bool
	}{
		{"2", 2 * time.Second, false},
		{"2.0", 2 * time.Second, false},
		{"0.25", 250 * time.Millisecond, false},
		{"1500ms", 1500 * time.Millisecond, false},
		{"0", 0, false},
		{"-1", 0, true},
		{"-2s", 0, true},
		{"abc", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			d, err := ParseDelay(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, d)
		})
	}
}

func TestParseTargets_TrimsNames(t *testing.T) {
	targets, err := ParseTargets(`[{"name": " Acme ", "url": "https://www.linkedin.com/company/acme/"}]`)
	require.NoError(t, err)
	require.Len(t, targets, 1)
	assert.Equal(t, "Acme", targets[0].Name)
}
