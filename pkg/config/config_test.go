package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_AppliesDefaults(t *testing.T) {
	c, err := Parse([]byte("environment: test\n"))
	require.NoError(t, err)

	assert.Equal(t, 8080, c.Server.Port)
	assert.Equal(t, 120, c.Engine.LookbackDays)
	assert.Equal(t, 5*time.Second, c.Engine.LoadTimeout)
	assert.Equal(t, "30 18 * * 1-5", c.Scheduler.Spec)
	assert.Equal(t, "signals", c.Signal.Topic)
	assert.Equal(t, -1, c.Kafka.RequiredAcks)
	assert.True(t, c.Server.RateLimit.Enabled)
	assert.True(t, c.Metrics.Enabled)
}

func TestParse_ExplicitFalseSurvivesDefaults(t *testing.T) {
	c, err := Parse([]byte(`
environment: production
metrics:
  enabled: false
server:
  port: 9090
  rate_limit:
    enabled: false
`))
	require.NoError(t, err)
	assert.False(t, c.Metrics.Enabled)
	assert.False(t, c.Server.RateLimit.Enabled)
	assert.Equal(t, 9090, c.Server.Port)
}

func TestParse_Validation(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"bad environment", "environment: moon\n"},
		{"bad port", "environment: test\nserver:\n  port: 70000\n"},
		{"kafka without brokers", "environment: test\nkafka:\n  enabled: true\n"},
		{"consumer without kafka", "environment: test\nkafka:\n  consumer:\n    enabled: true\n"},
		{"scheduler without universe", "environment: test\nscheduler:\n  enabled: true\n"},
		{"fundamentals without url", "environment: test\nfundamentals:\n  enabled: true\n"},
		{"bad compression", "environment: test\nkafka:\n  compression: brotli\n"},
		{"queue without redis", "environment: test\nqueue:\n  enabled: true\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestApplyEnv(t *testing.T) {
	c, err := Parse([]byte("environment: test\n"))
	require.NoError(t, err)

	env := map[string]string{
		"PORT":          "7000",
		"KAFKA_BROKERS": "k1:9092, k2:9092",
		"UNIVERSE":      "2330,2317,,2454",
	}
	c.applyEnv(func(k string) string { return env[k] })

	assert.Equal(t, 7000, c.Server.Port)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, c.Kafka.Brokers)
	assert.Equal(t, []string{"2330", "2317", "2454"}, c.Scheduler.Universe)
}

func TestLoadWithEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("environment: staging\n"), 0o600))
	t.Setenv("LOG_LEVEL", "debug")

	c, err := LoadWithEnv(path)
	require.NoError(t, err)
	assert.Equal(t, "staging", c.Environment)
	assert.Equal(t, "debug", c.Logger.Level)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
