package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadEmptyPathYieldsDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:5000", cfg.Server.Address())
	assert.Equal(t, StorageBackendInMemory, cfg.Storage.Backend)
	assert.Equal(t, 3, cfg.Breaker.FailureThreshold)
	assert.Equal(t, Duration(30*time.Second), cfg.Breaker.OpenDuration)
	assert.Equal(t, Duration(10*time.Minute), cfg.Breaker.MaxOpenDuration)
	assert.Equal(t, Duration(2*time.Minute), cfg.Orchestrator.JobDeadline)
	assert.Equal(t, 500, cfg.Orchestrator.MaxQueryLength)
	assert.Equal(t, Duration(time.Hour), cfg.Retention.TTL)
	assert.Equal(t, 100, cfg.Retention.MaxJobs)
	assert.True(t, cfg.Metrics.IsEnabled())
}

func TestLoadParsesDurationsAndOverrides(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 8080
breaker:
  failure_threshold: 5
  open_duration: 1m
  max_open_duration: 20m
orchestrator:
  job_deadline: 90s
agents:
  market:
    timeout: 3s
    use_api: true
    api_url: https://example.com/market
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 5, cfg.Breaker.FailureThreshold)
	assert.Equal(t, Duration(time.Minute), cfg.Breaker.OpenDuration)
	assert.Equal(t, Duration(90*time.Second), cfg.Orchestrator.JobDeadline)

	market := cfg.Agent("market")
	assert.Equal(t, Duration(3*time.Second), market.Timeout)
	assert.True(t, market.UseAPI)

	// Unknown agents get a defaulted config.
	other := cfg.Agent("patent")
	assert.Equal(t, Duration(10*time.Second), other.Timeout)
	assert.False(t, other.UseAPI)
}

func TestLoadRejectsInvalidBreakerWindow(t *testing.T) {
	path := writeConfig(t, `
breaker:
  open_duration: 10m
  max_open_duration: 1m
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_open_duration")
}

func TestLoadRejectsAgentAPIWithoutURL(t *testing.T) {
	path := writeConfig(t, `
agents:
  market:
    use_api: true
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "api_url")
}

func TestLoadRejectsInvalidDuration(t *testing.T) {
	path := writeConfig(t, `
orchestrator:
  job_deadline: soonish
`)

	_, err := Load(path)
	assert.Error(t, err)
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("DD_API_KEY", "sekrit")
	os.Unsetenv("DD_MISSING")

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"braced", "key: ${DD_API_KEY}", "key: sekrit"},
		{"simple", "key: $DD_API_KEY", "key: sekrit"},
		{"default used", "key: ${DD_MISSING:-fallback}", "key: fallback"},
		{"default ignored", "key: ${DD_API_KEY:-fallback}", "key: sekrit"},
		{"missing braced", "key: ${DD_MISSING}", "key: "},
		{"no vars", "key: plain", "key: plain"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, expandEnvVars(tt.in))
		})
	}
}

func TestEnvExpansionInConfigFile(t *testing.T) {
	t.Setenv("MARKET_API_URL", "https://api.example.com/market")

	path := writeConfig(t, `
agents:
  market:
    use_api: true
    api_url: ${MARKET_API_URL}
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://api.example.com/market", cfg.Agent("market").APIURL)
}
