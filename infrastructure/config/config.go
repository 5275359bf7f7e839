// Package config provides unified configuration loading for the adjudication layer.
// Values come from an optional YAML file and environment variables with the
// ARBITER_ prefix; environment variables win.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the full application configuration
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Logging      LoggingConfig      `mapstructure:"logging"`
	Security     SecurityConfig     `mapstructure:"security"`
	Verification VerificationConfig `mapstructure:"verification"`
	WebNavigator WebNavigatorConfig `mapstructure:"web-navigator"`
	Search       SearchConfig       `mapstructure:"search"`
	Health       HealthConfig       `mapstructure:"health"`
}

// ServerConfig configures the observer HTTP server
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read-timeout"`
	WriteTimeout    time.Duration `mapstructure:"write-timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown-timeout"`
	MetricsPath     string        `mapstructure:"metrics-path"`
}

// LoggingConfig configures structured logging
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// SecurityConfig configures the security envelope
type SecurityConfig struct {
	JWTSecret            string        `mapstructure:"jwt-secret"`
	RateLimitMaxRequests int           `mapstructure:"rate-limit-max-requests"`
	RateLimitWindow      time.Duration `mapstructure:"rate-limit-window"`
	MaxAuditEvents       int           `mapstructure:"max-audit-events"`
	AuditRetentionDays   int           `mapstructure:"audit-retention-days"`
	BlockedUsers         []string      `mapstructure:"blocked-users"`
	AllowedCommands      []string      `mapstructure:"allowed-commands"`
	MaxCommandLength     int           `mapstructure:"max-command-length"`
	MaxArgumentLength    int           `mapstructure:"max-argument-length"`
}

// VerificationConfig configures the verification engine
type VerificationConfig struct {
	MaxConcurrent  int           `mapstructure:"max-concurrent"`
	DefaultTimeout time.Duration `mapstructure:"default-timeout"`
	MaxTimeout     time.Duration `mapstructure:"max-timeout"`
	CacheTTL       time.Duration `mapstructure:"cache-ttl"`
	SweepInterval  time.Duration `mapstructure:"sweep-interval"`
	MinConsensus   float64       `mapstructure:"min-consensus"`
}

// WebNavigatorConfig configures crawling and extraction
type WebNavigatorConfig struct {
	UserAgent             string        `mapstructure:"user-agent"`
	RequestTimeout        time.Duration `mapstructure:"request-timeout"`
	MaxRedirects          int           `mapstructure:"max-redirects"`
	MaxContentSizeMB      int           `mapstructure:"max-content-size-mb"`
	RequestsPerMinute     int           `mapstructure:"requests-per-minute"`
	BackoffMultiplier     float64       `mapstructure:"backoff-multiplier"`
	MaxBackoff            time.Duration `mapstructure:"max-backoff"`
	CacheTTLHours         int           `mapstructure:"cache-ttl-hours"`
	CacheMaxSizeMB        int           `mapstructure:"cache-max-size-mb"`
	RobotsCacheTTL        time.Duration `mapstructure:"robots-cache-ttl"`
	RespectRobotsTxt      bool          `mapstructure:"respect-robots-txt"`
	MaxConcurrentRequests int           `mapstructure:"max-concurrent-requests"`
}

// SearchConfig configures the outbound search providers
type SearchConfig struct {
	BraveAPIKey          string        `mapstructure:"brave-api-key"`
	GoogleAPIKey         string        `mapstructure:"google-api-key"`
	GoogleEngineID       string        `mapstructure:"google-engine-id"`
	BingAPIKey           string        `mapstructure:"bing-api-key"`
	ProviderTimeout      time.Duration `mapstructure:"provider-timeout"`
	MaxResultsPerQuery   int           `mapstructure:"max-results-per-query"`
	CredibilityCacheTTL  time.Duration `mapstructure:"credibility-cache-ttl"`
	EnableMockFallback   bool          `mapstructure:"enable-mock-fallback"`
	MaxClaimsPerRequest  int           `mapstructure:"max-claims-per-request"`
	MinReferencesPerFact int           `mapstructure:"min-references-per-fact"`
}

// HealthConfig configures the health monitor
type HealthConfig struct {
	CheckInterval      time.Duration `mapstructure:"check-interval"`
	MetricsInterval    time.Duration `mapstructure:"metrics-interval"`
	MemoryThresholdPct float64       `mapstructure:"memory-threshold-pct"`
	CPUThresholdPct    float64       `mapstructure:"cpu-threshold-pct"`
	ErrorRateThreshold float64       `mapstructure:"error-rate-threshold"`
	ResponseTimeLimit  time.Duration `mapstructure:"response-time-limit"`
	MaxAlerts          int           `mapstructure:"max-alerts"`
}

// Load reads configuration from the optional file path and the environment.
func Load(configFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("ARBITER")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read-timeout", 15*time.Second)
	v.SetDefault("server.write-timeout", 30*time.Second)
	v.SetDefault("server.shutdown-timeout", 20*time.Second)
	v.SetDefault("server.metrics-path", "/metrics")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("security.jwt-secret", "")
	v.SetDefault("security.rate-limit-max-requests", 100)
	v.SetDefault("security.rate-limit-window", time.Minute)
	v.SetDefault("security.max-audit-events", 10000)
	v.SetDefault("security.audit-retention-days", 30)
	v.SetDefault("security.allowed-commands", []string{"status", "pause", "resume", "flush-cache"})
	v.SetDefault("security.max-command-length", 1000)
	v.SetDefault("security.max-argument-length", 255)

	v.SetDefault("verification.max-concurrent", 10)
	v.SetDefault("verification.default-timeout", 30*time.Second)
	v.SetDefault("verification.max-timeout", 2*time.Minute)
	v.SetDefault("verification.cache-ttl", time.Hour)
	v.SetDefault("verification.sweep-interval", 5*time.Minute)
	v.SetDefault("verification.min-consensus", 0.6)

	v.SetDefault("web-navigator.user-agent", "ArbiterBot/1.0 (+https://arbiter.network/bot)")
	v.SetDefault("web-navigator.request-timeout", 30*time.Second)
	v.SetDefault("web-navigator.max-redirects", 5)
	v.SetDefault("web-navigator.max-content-size-mb", 10)
	v.SetDefault("web-navigator.requests-per-minute", 30)
	v.SetDefault("web-navigator.backoff-multiplier", 2.0)
	v.SetDefault("web-navigator.max-backoff", 5*time.Minute)
	v.SetDefault("web-navigator.cache-ttl-hours", 24)
	v.SetDefault("web-navigator.cache-max-size-mb", 100)
	v.SetDefault("web-navigator.robots-cache-ttl", time.Hour)
	v.SetDefault("web-navigator.respect-robots-txt", true)
	v.SetDefault("web-navigator.max-concurrent-requests", 5)

	v.SetDefault("search.provider-timeout", 5*time.Second)
	v.SetDefault("search.max-results-per-query", 10)
	v.SetDefault("search.credibility-cache-ttl", 24*time.Hour)
	v.SetDefault("search.enable-mock-fallback", true)
	v.SetDefault("search.max-claims-per-request", 5)
	v.SetDefault("search.min-references-per-fact", 2)

	v.SetDefault("health.check-interval", 30*time.Second)
	v.SetDefault("health.metrics-interval", time.Minute)
	v.SetDefault("health.memory-threshold-pct", 85)
	v.SetDefault("health.cpu-threshold-pct", 90)
	v.SetDefault("health.error-rate-threshold", 0.1)
	v.SetDefault("health.response-time-limit", 5*time.Second)
	v.SetDefault("health.max-alerts", 1000)

	// Search-provider keys keep their documented environment names.
	_ = v.BindEnv("search.brave-api-key", "BRAVE_SEARCH_API_KEY")
	_ = v.BindEnv("search.google-api-key", "GOOGLE_SEARCH_API_KEY")
	_ = v.BindEnv("search.google-engine-id", "GOOGLE_SEARCH_ENGINE_ID")
	_ = v.BindEnv("search.bing-api-key", "BING_SEARCH_API_KEY")
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Verification.MaxConcurrent < 1 {
		return fmt.Errorf("verification max-concurrent must be at least 1, got %d", c.Verification.MaxConcurrent)
	}
	if c.Verification.MinConsensus < 0 || c.Verification.MinConsensus > 1 {
		return fmt.Errorf("verification min-consensus must be in [0,1], got %f", c.Verification.MinConsensus)
	}
	if c.Security.RateLimitMaxRequests < 1 {
		return fmt.Errorf("security rate-limit-max-requests must be at least 1, got %d", c.Security.RateLimitMaxRequests)
	}
	if c.WebNavigator.MaxContentSizeMB < 1 {
		return fmt.Errorf("web-navigator max-content-size-mb must be at least 1, got %d", c.WebNavigator.MaxContentSizeMB)
	}
	if c.WebNavigator.BackoffMultiplier < 1 {
		return fmt.Errorf("web-navigator backoff-multiplier must be at least 1, got %f", c.WebNavigator.BackoffMultiplier)
	}
	switch c.Logging.Format {
	case "json", "text":
	default:
		return fmt.Errorf("logging format must be json or text, got %q", c.Logging.Format)
	}
	return nil
}
