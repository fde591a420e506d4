package config

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"powerball/database"

	"github.com/caarlos0/env/v11"
	"github.com/robfig/cron/v3"
)

// Config holds all application configuration
type Config struct {
	// Database configuration
	DatabaseURL  string `env:"DATABASE_URL"`
	DatabaseName string `env:"DATABASE_NAME"`

	// HTTP surface
	HTTPAddr string `env:"HTTP_ADDR" envDefault:":8080"`

	// Scheduling
	Timezone      string        `env:"TZ" envDefault:"Australia/Adelaide"`
	UpdateCron    string        `env:"UPDATE_CRON" envDefault:"*/15 * * * *"`
	StartYear     int           `env:"SYNC_START_YEAR" envDefault:"2018"`
	LegacyStart   int           `env:"YEARS_START"` // name used by older deployments
	StaleAfter    time.Duration `env:"SYNC_STALE_AFTER" envDefault:"168h"`
	SyncOnStartup bool          `env:"SYNC_ON_STARTUP" envDefault:"true"`

	// Source feed
	SourceAPIURL       string        `env:"SOURCE_API_URL" envDefault:"https://data.api.thelott.com/sales/vmax/web/data/lotto/results/search/daterange"`
	SourceAPICompanies []string      `env:"SOURCE_API_COMPANIES" envSeparator:"," envDefault:"NSWLotteries,GoldenCasket,SALotteries,Tattersalls,WALotteries"`
	SourceHTMLBase     string        `env:"SOURCE_HTML_BASE" envDefault:"https://australia.national-lottery.com"`
	SourceTimeout      time.Duration `env:"SOURCE_TIMEOUT" envDefault:"30s"`
	SourceMaxRetries   int           `env:"SOURCE_MAX_RETRIES" envDefault:"2"`
	SourceRetryBackoff time.Duration `env:"SOURCE_RETRY_BACKOFF" envDefault:"500ms"`
	BreakerFailures    uint32        `env:"BREAKER_FAILURES" envDefault:"5"`
	BreakerTimeout     time.Duration `env:"BREAKER_TIMEOUT" envDefault:"60s"`

	// Cross-process sync lock (optional)
	RedisURL    string        `env:"REDIS_URL"`
	SyncLockTTL time.Duration `env:"SYNC_LOCK_TTL" envDefault:"30m"`

	// Notifications (optional)
	NATSServers      string `env:"NATS_SERVERS"`
	DiscordToken     string `env:"DISCORD_TOKEN"`
	DiscordChannelID string `env:"DISCORD_CHANNEL_ID"`
	DiscordGuildID   string `env:"DISCORD_GUILD_ID"` // empty registers commands globally

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`

	// Environment
	Environment string `env:"ENVIRONMENT" envDefault:"development"` // "development", "production" or "test"
}

var (
	instance *Config
	once     sync.Once
	mu       sync.Mutex // Protects instance for test setup
)

// Get returns the global configuration instance
func Get() *Config {
	mu.Lock()
	defer mu.Unlock()

	// If instance is already set (e.g., by tests), return it
	if instance != nil {
		return instance
	}

	once.Do(func() {
		var err error
		instance, err = Load()
		if err != nil {
			if os.Getenv("GO_TEST") == "1" || os.Getenv("ENVIRONMENT") == "test" {
				instance = NewTestConfig()
			} else {
				panic(fmt.Sprintf("failed to load config: %v", err))
			}
		}
	})
	return instance
}

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	config := &Config{}
	if err := env.Parse(config); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	if config.LegacyStart != 0 && os.Getenv("SYNC_START_YEAR") == "" {
		config.StartYear = config.LegacyStart
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate checks required values and ranges
func (c *Config) Validate() error {
	if c.Environment != "test" && strings.TrimSpace(c.DatabaseURL) == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.StartYear < 1990 || c.StartYear > 2100 {
		return fmt.Errorf("SYNC_START_YEAR %d is out of range", c.StartYear)
	}
	if _, err := cron.ParseStandard(c.UpdateCron); err != nil {
		return fmt.Errorf("UPDATE_CRON %q is invalid: %w", c.UpdateCron, err)
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("TZ %q is invalid: %w", c.Timezone, err)
	}
	if c.SourceMaxRetries < 0 || c.SourceMaxRetries > 10 {
		return fmt.Errorf("SOURCE_MAX_RETRIES must be between 0 and 10")
	}
	if c.SourceTimeout <= 0 {
		return fmt.Errorf("SOURCE_TIMEOUT must be positive")
	}
	if c.StaleAfter <= 0 {
		return fmt.Errorf("SYNC_STALE_AFTER must be positive")
	}
	if (c.DiscordToken == "") != (c.DiscordChannelID == "") {
		return fmt.Errorf("DISCORD_TOKEN and DISCORD_CHANNEL_ID must be set together")
	}
	return nil
}

// GetDatabaseURL constructs the full database URL by combining base URL and database name
func (c *Config) GetDatabaseURL() string {
	return database.ConstructDatabaseURL(c.DatabaseURL, c.DatabaseName)
}

// Location returns the process timezone, falling back to UTC
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Test helpers - only use in tests

// SetTestConfig overrides the global config instance for testing
func SetTestConfig(testConfig *Config) {
	mu.Lock()
	defer mu.Unlock()
	instance = testConfig
}

// ResetConfig resets the global config instance and sync.Once for testing
func ResetConfig() {
	mu.Lock()
	defer mu.Unlock()
	instance = nil
	once = sync.Once{}
}

// NewTestConfig creates a minimal config suitable for unit tests
func NewTestConfig() *Config {
	return &Config{
		Environment:        "test",
		HTTPAddr:           ":0",
		Timezone:           "Australia/Adelaide",
		UpdateCron:         "*/15 * * * *",
		StartYear:          2018,
		StaleAfter:         7 * 24 * time.Hour,
		SourceTimeout:      5 * time.Second,
		SourceMaxRetries:   2,
		SourceRetryBackoff: 10 * time.Millisecond,
		BreakerFailures:    5,
		BreakerTimeout:     time.Minute,
		SyncLockTTL:        30 * time.Minute,
		LogLevel:           "info",
		LogFormat:          "text",
	}
}
