package config

import (
	"errors"
	"os"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// DefaultBEABaseURL is the public BEA data API endpoint.
const DefaultBEABaseURL = "https://apps.bea.gov/api/data"

// Config holds all service settings, populated from environment variables.
type Config struct {
	BEAAPIKey    string
	BEABaseURL   string
	FetchDelay   time.Duration
	FetchTimeout time.Duration

	RawDir          string
	DBPath          string
	SeedDir         string
	ExportChunkSize int

	ServeDBPath     string
	HTTPAddr        string
	SearchCacheSize int

	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Bundle distribution. Empty brokers or bucket disables the stage.
	KafkaBrokers     []string
	KafkaBundleTopic string
	S3Bucket         string
	S3Region         string
	S3Endpoint       string
	S3PathStyle      bool
	S3Prefix         string
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	fetchDelay, err := parseDuration("FETCH_DELAY", "1s", true)
	if err != nil {
		return nil, err
	}
	fetchTimeout, err := parseDuration("FETCH_TIMEOUT", "60s", false)
	if err != nil {
		return nil, err
	}

	chunkSize, err := parseChunkSize()
	if err != nil {
		return nil, err
	}

	cacheSize, err := parseNonNegativeInt("SEARCH_CACHE_SIZE", 1000)
	if err != nil {
		return nil, err
	}

	pathStyle := false
	if v := os.Getenv("BUNDLE_S3_PATH_STYLE"); v != "" {
		pathStyle, err = strconv.ParseBool(v)
		if err != nil {
			return nil, errors.New("invalid BUNDLE_S3_PATH_STYLE: must be a boolean")
		}
	}

	dbPath := sharedcfg.EnvOrDefault("DB_PATH", "data/rpp.db")

	cfg := &Config{
		BEAAPIKey:    os.Getenv("BEA_API_KEY"),
		BEABaseURL:   sharedcfg.EnvOrDefault("BEA_BASE_URL", DefaultBEABaseURL),
		FetchDelay:   fetchDelay,
		FetchTimeout: fetchTimeout,

		RawDir:          sharedcfg.EnvOrDefault("RAW_DIR", "data/raw"),
		DBPath:          dbPath,
		SeedDir:         sharedcfg.EnvOrDefault("SEED_DIR", "data/seed"),
		ExportChunkSize: chunkSize,

		ServeDBPath:     sharedcfg.EnvOrDefault("SERVE_DB_PATH", dbPath),
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		SearchCacheSize: cacheSize,

		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		KafkaBrokers:     sharedcfg.ParseBrokers(os.Getenv("KAFKA_BROKERS")),
		KafkaBundleTopic: sharedcfg.EnvOrDefault("KAFKA_BUNDLE_TOPIC", "rpp-bundles"),
		S3Bucket:         os.Getenv("BUNDLE_S3_BUCKET"),
		S3Region:         sharedcfg.EnvOrDefault("BUNDLE_S3_REGION", "us-east-1"),
		S3Endpoint:       os.Getenv("BUNDLE_S3_ENDPOINT"),
		S3PathStyle:      pathStyle,
		S3Prefix:         sharedcfg.EnvOrDefault("BUNDLE_S3_PREFIX", "bundles"),
	}

	if cfg.BEABaseURL == "" {
		return nil, errors.New("BEA_BASE_URL is required")
	}
	if len(cfg.KafkaBrokers) > 0 && cfg.KafkaBundleTopic == "" {
		return nil, errors.New("KAFKA_BUNDLE_TOPIC is required when KAFKA_BROKERS is set")
	}

	return cfg, nil
}

// ValidateFetch reports whether the settings needed to call the BEA API are present.
func (c *Config) ValidateFetch() error {
	if c.BEAAPIKey == "" {
		return errors.New("BEA_API_KEY is required")
	}
	return nil
}

// PublishEnabled reports whether any bundle distribution target is configured.
func (c *Config) PublishEnabled() bool {
	return c.S3Bucket != "" || len(c.KafkaBrokers) > 0
}

func parseDuration(key, fallback string, allowZero bool) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, fallback))
	if err != nil || d < 0 || (d == 0 && !allowZero) {
		return 0, errors.New("invalid " + key)
	}
	return d, nil
}

func parseChunkSize() (int, error) {
	s := os.Getenv("EXPORT_CHUNK_SIZE")
	if s == "" {
		return 500, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 || n > 10000 {
		return 0, errors.New("invalid EXPORT_CHUNK_SIZE: must be 1-10000")
	}
	return n, nil
}

func parseNonNegativeInt(key string, fallback int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, errors.New("invalid " + key + ": must be a non-negative integer")
	}
	return n, nil
}
