package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port     string `mapstructure:"PORT"`
	Env      string `mapstructure:"ENV"`
	LogLevel string `mapstructure:"LOG_LEVEL"`

	FHIRBaseURL                  string        `mapstructure:"FHIR_BASE_URL"`
	FHIRPageCount                int           `mapstructure:"FHIR_PAGE_COUNT"`
	FHIRMaxConcurrentPageFetches int64         `mapstructure:"FHIR_MAX_CONCURRENT_PAGE_FETCHES"`
	FHIRMaxRetries               uint64        `mapstructure:"FHIR_MAX_RETRIES"`
	FHIRRetryInitialInterval     time.Duration `mapstructure:"FHIR_RETRY_INITIAL_INTERVAL"`
	FHIRRequestTimeout           time.Duration `mapstructure:"FHIR_REQUEST_TIMEOUT"`
	FHIRUser                     string        `mapstructure:"FHIR_USER"`
	FHIRPassword                 string        `mapstructure:"FHIR_PASSWORD"`

	QueryMaxConcurrency int64         `mapstructure:"QUERY_MAX_CONCURRENCY"`
	QueryTimeout        time.Duration `mapstructure:"QUERY_TIMEOUT"`
	QueryMaxBodySize    string        `mapstructure:"QUERY_MAX_BODY_SIZE"`

	MappingFile     string `mapstructure:"MAPPING_FILE"`
	ConceptTreeFile string `mapstructure:"CONCEPT_TREE_FILE"`

	DatabaseURL string `mapstructure:"DATABASE_URL"`
	DBMaxConns  int32  `mapstructure:"DB_MAX_CONNS"`
	DBMinConns  int32  `mapstructure:"DB_MIN_CONNS"`

	TracingEnabled    bool    `mapstructure:"TRACING_ENABLED"`
	TracingSampleRate float64 `mapstructure:"TRACING_SAMPLE_RATE"`
}

var keys = []string{
	"PORT", "ENV", "LOG_LEVEL",
	"FHIR_BASE_URL", "FHIR_PAGE_COUNT", "FHIR_MAX_CONCURRENT_PAGE_FETCHES", "FHIR_MAX_RETRIES",
	"FHIR_RETRY_INITIAL_INTERVAL", "FHIR_REQUEST_TIMEOUT", "FHIR_USER", "FHIR_PASSWORD",
	"QUERY_MAX_CONCURRENCY", "QUERY_TIMEOUT", "QUERY_MAX_BODY_SIZE",
	"MAPPING_FILE", "CONCEPT_TREE_FILE",
	"DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS",
	"TRACING_ENABLED", "TRACING_SAMPLE_RATE",
}

// Load reads the configuration from the environment and an optional .env
// file. It does not validate, commands check what they need.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8080")
	v.SetDefault("ENV", "production")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("FHIR_PAGE_COUNT", 1000)
	v.SetDefault("FHIR_MAX_CONCURRENT_PAGE_FETCHES", 4)
	v.SetDefault("FHIR_MAX_RETRIES", 3)
	v.SetDefault("FHIR_RETRY_INITIAL_INTERVAL", 500*time.Millisecond)
	v.SetDefault("FHIR_REQUEST_TIMEOUT", time.Minute)
	v.SetDefault("QUERY_MAX_CONCURRENCY", 16)
	v.SetDefault("QUERY_TIMEOUT", 5*time.Minute)
	v.SetDefault("QUERY_MAX_BODY_SIZE", "1M")
	v.SetDefault("DB_MAX_CONNS", 4)
	v.SetDefault("DB_MIN_CONNS", 1)
	v.SetDefault("TRACING_ENABLED", false)
	v.SetDefault("TRACING_SAMPLE_RATE", 1.0)

	// Bind env vars explicitly so Unmarshal picks them up
	for _, key := range keys {
		v.BindEnv(key)
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// UsesDatabaseCatalogue reports whether mappings are read from PostgreSQL
// instead of MAPPING_FILE.
func (c *Config) UsesDatabaseCatalogue() bool {
	return c.DatabaseURL != ""
}

// Validate checks everything needed to translate and execute queries.
func (c *Config) Validate() error {
	if c.FHIRBaseURL == "" {
		return errors.New("FHIR_BASE_URL is required")
	}
	u, err := url.Parse(c.FHIRBaseURL)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return fmt.Errorf("FHIR_BASE_URL must be an absolute URL, got %q", c.FHIRBaseURL)
	}

	switch {
	case c.MappingFile == "" && c.DatabaseURL == "":
		return errors.New("one of MAPPING_FILE or DATABASE_URL is required")
	case c.MappingFile != "" && c.DatabaseURL != "":
		return errors.New("MAPPING_FILE and DATABASE_URL are mutually exclusive")
	}

	if c.FHIRPageCount <= 0 {
		return fmt.Errorf("FHIR_PAGE_COUNT must be positive, got %d", c.FHIRPageCount)
	}
	if c.FHIRMaxConcurrentPageFetches <= 0 {
		return fmt.Errorf("FHIR_MAX_CONCURRENT_PAGE_FETCHES must be positive, got %d", c.FHIRMaxConcurrentPageFetches)
	}
	if c.QueryMaxConcurrency <= 0 {
		return fmt.Errorf("QUERY_MAX_CONCURRENCY must be positive, got %d", c.QueryMaxConcurrency)
	}
	if c.FHIRRetryInitialInterval <= 0 {
		return fmt.Errorf("FHIR_RETRY_INITIAL_INTERVAL must be positive, got %s", c.FHIRRetryInitialInterval)
	}
	if c.FHIRRequestTimeout <= 0 {
		return fmt.Errorf("FHIR_REQUEST_TIMEOUT must be positive, got %s", c.FHIRRequestTimeout)
	}
	if c.TracingSampleRate < 0 || c.TracingSampleRate > 1 {
		return fmt.Errorf("TRACING_SAMPLE_RATE must be between 0 and 1, got %g", c.TracingSampleRate)
	}
	return nil
}
