package ulango

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// FileConfig is the on-disk client configuration. Fields map to snake_case
// keys in YAML, JSON, or TOML files and to ULANGO_* environment variables
// (nested keys joined with underscores, e.g. ULANGO_RETRY_MAX_RETRIES).
type FileConfig struct {
	BaseURL         string          `mapstructure:"base_url"`
	Timeout         time.Duration   `mapstructure:"timeout"`
	OverallTimeout  time.Duration   `mapstructure:"overall_timeout"`
	MaxResponseSize int64           `mapstructure:"max_response_size"`
	RateLimit       RateLimitConfig `mapstructure:"rate_limit"`
	Retry           RetryConfig     `mapstructure:"retry"`
	Debug           bool            `mapstructure:"debug"`
	Metrics         bool            `mapstructure:"metrics"`
}

// RateLimitConfig configures the sliding window rate limiter.
type RateLimitConfig struct {
	MaxCalls int           `mapstructure:"max_calls"`
	Window   time.Duration `mapstructure:"window"`
}

// RetryConfig configures the retry policy and backoff.
type RetryConfig struct {
	MaxRetries           int           `mapstructure:"max_retries"`
	InitialBackoff       time.Duration `mapstructure:"initial_backoff"`
	MaxBackoff           time.Duration `mapstructure:"max_backoff"`
	JitterMin            float64       `mapstructure:"jitter_min"`
	JitterMax            float64       `mapstructure:"jitter_max"`
	Strategy             string        `mapstructure:"strategy"`
	RetryableStatusCodes []int         `mapstructure:"retryable_status_codes"`
}

// LoadConfig reads a client configuration file, overlaying ULANGO_*
// environment variables. An empty path loads from the environment only.
func LoadConfig(path string) (*FileConfig, error) {
	v := viper.New()
	v.SetEnvPrefix("ULANGO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setConfigDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg FileConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setConfigDefaults(v *viper.Viper) {
	// Every key needs a default so environment overrides reach Unmarshal.
	v.SetDefault("base_url", "")
	v.SetDefault("timeout", 30*time.Second)
	v.SetDefault("overall_timeout", time.Duration(0))
	v.SetDefault("max_response_size", DefaultMaxResponseSize)
	v.SetDefault("rate_limit.max_calls", 0)
	v.SetDefault("rate_limit.window", time.Duration(0))
	v.SetDefault("retry.max_retries", 3)
	v.SetDefault("retry.initial_backoff", 100*time.Millisecond)
	v.SetDefault("retry.max_backoff", 10*time.Second)
	v.SetDefault("retry.jitter_min", 0.5)
	v.SetDefault("retry.jitter_max", 1.0)
	v.SetDefault("retry.strategy", "full_jitter")
	v.SetDefault("retry.retryable_status_codes", []int{})
	v.SetDefault("debug", false)
	v.SetDefault("metrics", false)
}

// Options converts the file configuration into client options.
func (fc *FileConfig) Options() []Option {
	var opts []Option

	if fc.BaseURL != "" {
		opts = append(opts, WithBaseURL(fc.BaseURL))
	}
	if fc.Timeout > 0 {
		opts = append(opts, WithTimeout(fc.Timeout))
	}
	if fc.OverallTimeout > 0 {
		opts = append(opts, WithOverallTimeout(fc.OverallTimeout))
	}
	if fc.MaxResponseSize > 0 {
		opts = append(opts, WithMaxResponseSize(fc.MaxResponseSize))
	}
	if fc.RateLimit.MaxCalls > 0 && fc.RateLimit.Window > 0 {
		opts = append(opts, WithRateLimit(fc.RateLimit.MaxCalls, fc.RateLimit.Window))
	}

	opts = append(opts, WithMaxRetries(fc.Retry.MaxRetries))
	if fc.Retry.InitialBackoff > 0 {
		opts = append(opts, WithInitialBackoff(fc.Retry.InitialBackoff))
	}
	if fc.Retry.MaxBackoff > 0 {
		opts = append(opts, WithMaxBackoff(fc.Retry.MaxBackoff))
	}
	if fc.Retry.JitterMin > 0 || fc.Retry.JitterMax > 0 {
		opts = append(opts, WithJitterBounds(fc.Retry.JitterMin, fc.Retry.JitterMax))
	}
	if strategy, ok := parseBackoffStrategy(fc.Retry.Strategy); ok {
		opts = append(opts, WithBackoffStrategy(strategy))
	}
	if len(fc.Retry.RetryableStatusCodes) > 0 {
		opts = append(opts, WithRetryableStatusCodes(fc.Retry.RetryableStatusCodes...))
	}

	if fc.Debug {
		opts = append(opts, WithSimpleLogger())
	}
	if fc.Metrics {
		opts = append(opts, WithMetrics())
	}

	return opts
}

func parseBackoffStrategy(name string) (BackoffStrategy, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "full_jitter", "full-jitter", "fulljitter":
		return FullJitter, true
	case "decorrelated_jitter", "decorrelated-jitter", "decorrelatedjitter":
		return DecorrelatedJitter, true
	default:
		return FullJitter, false
	}
}

// NewFromConfig builds a client from a configuration file. Options passed in
// extra override the file's settings.
func NewFromConfig(path string, extra ...Option) (*Client, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}

	client := New(append(cfg.Options(), extra...)...)
	if err := client.ValidationError(); err != nil {
		return nil, err
	}
	return client, nil
}
