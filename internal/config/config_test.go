package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const defaultBroker = "localhost:9092"

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, []string{DefaultRadarBaseURL}, cfg.RadarBaseURLs)
	assert.Equal(t, "dBR.dpsri.png", cfg.RadarURLSuffix)
	assert.Equal(t, 2*time.Second, cfg.RadarRequestTimeout)
	assert.Equal(t, 5*time.Second, cfg.RadarFetchBudget)
	assert.Equal(t, 2, cfg.RadarRetries)
	assert.Equal(t, 30*time.Second, cfg.RefreshInterval)
	assert.Equal(t, 5, cfg.FallbackSteps)
	assert.Equal(t, 64, cfg.HistoryCacheSize)
	assert.InDelta(t, 2.0, cfg.HistoryRateLimit, 1e-9)
	assert.Equal(t, 4, cfg.HistoryRateBurst)
	assert.Empty(t, cfg.RegionBoundaryFile)
	assert.False(t, cfg.KafkaEnabled)
	assert.Equal(t, []string{defaultBroker}, cfg.KafkaBrokers)
	assert.Equal(t, "rainarea-snapshots", cfg.KafkaSnapshotTopic)
}

func TestLoad_CustomEnv(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("SHUTDOWN_TIMEOUT", "30s")
	t.Setenv("RADAR_BASE_URLS", "http://primary/x_, http://mirror/y_ ,")
	t.Setenv("RADAR_URL_SUFFIX", ".png")
	t.Setenv("RADAR_REQUEST_TIMEOUT", "1s")
	t.Setenv("RADAR_FETCH_BUDGET", "3s")
	t.Setenv("RADAR_RETRIES", "3")
	t.Setenv("REFRESH_INTERVAL", "1m")
	t.Setenv("FALLBACK_STEPS", "0")
	t.Setenv("HISTORY_CACHE_SIZE", "0")
	t.Setenv("HISTORY_RATE_LIMIT", "0.5")
	t.Setenv("HISTORY_RATE_BURST", "1")
	t.Setenv("REGION_BOUNDARY_FILE", "/etc/rainarea/boundary.geojson")
	t.Setenv("KAFKA_BROKERS", "broker1:9092,broker2:9092")
	t.Setenv("KAFKA_SNAPSHOT_TOPIC", "custom-snapshots")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, []string{"http://primary/x_", "http://mirror/y_"}, cfg.RadarBaseURLs)
	assert.Equal(t, ".png", cfg.RadarURLSuffix)
	assert.Equal(t, time.Second, cfg.RadarRequestTimeout)
	assert.Equal(t, 3*time.Second, cfg.RadarFetchBudget)
	assert.Equal(t, 3, cfg.RadarRetries)
	assert.Equal(t, time.Minute, cfg.RefreshInterval)
	assert.Equal(t, 0, cfg.FallbackSteps)
	assert.Equal(t, 0, cfg.HistoryCacheSize)
	assert.InDelta(t, 0.5, cfg.HistoryRateLimit, 1e-9)
	assert.Equal(t, 1, cfg.HistoryRateBurst)
	assert.Equal(t, "/etc/rainarea/boundary.geojson", cfg.RegionBoundaryFile)
	assert.True(t, cfg.KafkaEnabled, "KAFKA_BROKERS implies enabled")
	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "custom-snapshots", cfg.KafkaSnapshotTopic)
}

func TestLoad_InvalidShutdownTimeout(t *testing.T) {
	t.Setenv("SHUTDOWN_TIMEOUT", "not-a-duration")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SHUTDOWN_TIMEOUT")
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{"RADAR_REQUEST_TIMEOUT", "bad"},
		{"RADAR_REQUEST_TIMEOUT", "-1s"},
		{"RADAR_FETCH_BUDGET", "0s"},
		{"REFRESH_INTERVAL", "soon"},
		{"RADAR_RETRIES", "0"},
		{"RADAR_RETRIES", "11"},
		{"FALLBACK_STEPS", "25"},
		{"FALLBACK_STEPS", "-1"},
		{"HISTORY_CACHE_SIZE", "many"},
		{"HISTORY_RATE_LIMIT", "0"},
		{"HISTORY_RATE_BURST", "0"},
	}
	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.key)
		})
	}
}

func TestLoad_RequestTimeoutExceedsBudget(t *testing.T) {
	t.Setenv("RADAR_REQUEST_TIMEOUT", "10s")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RADAR_FETCH_BUDGET")
}

func TestLoad_EmptyBaseURLs(t *testing.T) {
	t.Setenv("RADAR_BASE_URLS", " , ")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RADAR_BASE_URLS")
}

func TestLoad_KafkaExplicitlyDisabled(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "broker1:9092")
	t.Setenv("KAFKA_ENABLED", "false")
	cfg, err := Load()
	require.NoError(t, err)
	assert.False(t, cfg.KafkaEnabled)
}

func TestLoad_KafkaEnabledUsesDefaultBroker(t *testing.T) {
	t.Setenv("KAFKA_ENABLED", "true")
	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.KafkaEnabled)
	assert.Equal(t, []string{defaultBroker}, cfg.KafkaBrokers)
}
