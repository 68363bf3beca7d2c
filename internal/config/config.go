package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/joho/godotenv"
)

// DefaultRadarBaseURL is the primary rain-area image location; the slot ID,
// "0000" and the suffix are appended to it.
const DefaultRadarBaseURL = "http://www.weather.gov.sg/files/rainarea/50km/v2/dpsri_70km_"

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Radar upstream. The first base URL is the primary, the rest are mirrors.
	RadarBaseURLs       []string
	RadarURLSuffix      string
	RadarRequestTimeout time.Duration
	RadarFetchBudget    time.Duration
	RadarRetries        int

	RefreshInterval time.Duration
	FallbackSteps   int

	HistoryCacheSize int
	HistoryRateLimit float64
	HistoryRateBurst int

	RegionBoundaryFile string

	// Snapshot event sink.
	KafkaEnabled       bool
	KafkaBrokers       []string
	KafkaSnapshotTopic string
}

// Load reads configuration from environment variables, applying defaults where unset.
// A .env file in the working directory is read first; variables already set win.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	requestTimeout, err := parseDuration("RADAR_REQUEST_TIMEOUT", "2s")
	if err != nil {
		return nil, err
	}
	fetchBudget, err := parseDuration("RADAR_FETCH_BUDGET", "5s")
	if err != nil {
		return nil, err
	}
	refreshInterval, err := parseDuration("REFRESH_INTERVAL", "30s")
	if err != nil {
		return nil, err
	}

	retries, err := parseInt("RADAR_RETRIES", 2, 1, 10)
	if err != nil {
		return nil, err
	}
	fallbackSteps, err := parseInt("FALLBACK_STEPS", 5, 0, 24)
	if err != nil {
		return nil, err
	}
	historySize, err := parseInt("HISTORY_CACHE_SIZE", 64, 0, 10000)
	if err != nil {
		return nil, err
	}
	historyBurst, err := parseInt("HISTORY_RATE_BURST", 4, 1, 1000)
	if err != nil {
		return nil, err
	}

	historyRate, err := strconv.ParseFloat(sharedcfg.EnvOrDefault("HISTORY_RATE_LIMIT", "2"), 64)
	if err != nil || historyRate <= 0 {
		return nil, errors.New("invalid HISTORY_RATE_LIMIT")
	}

	kafkaEnabled := os.Getenv("KAFKA_BROKERS") != ""
	if v := os.Getenv("KAFKA_ENABLED"); v != "" {
		kafkaEnabled = v == "true"
	}

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		RadarBaseURLs:       parseList(sharedcfg.EnvOrDefault("RADAR_BASE_URLS", DefaultRadarBaseURL)),
		RadarURLSuffix:      sharedcfg.EnvOrDefault("RADAR_URL_SUFFIX", "dBR.dpsri.png"),
		RadarRequestTimeout: requestTimeout,
		RadarFetchBudget:    fetchBudget,
		RadarRetries:        retries,

		RefreshInterval: refreshInterval,
		FallbackSteps:   fallbackSteps,

		HistoryCacheSize: historySize,
		HistoryRateLimit: historyRate,
		HistoryRateBurst: historyBurst,

		RegionBoundaryFile: os.Getenv("REGION_BOUNDARY_FILE"),

		KafkaEnabled:       kafkaEnabled,
		KafkaBrokers:       sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaSnapshotTopic: sharedcfg.EnvOrDefault("KAFKA_SNAPSHOT_TOPIC", "rainarea-snapshots"),
	}

	if len(cfg.RadarBaseURLs) == 0 {
		return nil, errors.New("RADAR_BASE_URLS is required")
	}
	if cfg.RadarRequestTimeout > cfg.RadarFetchBudget {
		return nil, errors.New("RADAR_REQUEST_TIMEOUT must not exceed RADAR_FETCH_BUDGET")
	}
	if cfg.KafkaEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_ENABLED is true but KAFKA_BROKERS is empty")
	}
	if cfg.KafkaEnabled && cfg.KafkaSnapshotTopic == "" {
		return nil, errors.New("KAFKA_SNAPSHOT_TOPIC is required")
	}

	return cfg, nil
}

func parseDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parseInt(key string, def, lo, hi int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < lo || n > hi {
		return 0, fmt.Errorf("invalid %s: want an integer in [%d, %d]", key, lo, hi)
	}
	return n, nil
}

func parseList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
