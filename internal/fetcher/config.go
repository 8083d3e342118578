package fetcher

import "time"

// Default configuration values.
const (
	defaultTimeout    = 30 * time.Second
	defaultRetryTimes = 3
	defaultRetryDelay = time.Second
	defaultUserAgent  = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
		"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

// maxResponseBodyBytes caps how much of a response body is read.
const maxResponseBodyBytes = 10 * 1024 * 1024 // 10 MB

// Config holds fetch transport settings.
type Config struct {
	Timeout    time.Duration `mapstructure:"timeout"     yaml:"timeout"`
	RetryTimes int           `mapstructure:"retry_times" yaml:"retry_times"`
	RetryDelay time.Duration `mapstructure:"retry_delay" yaml:"retry_delay"`
	// RequestDelay spaces consecutive requests. Zero disables pacing.
	RequestDelay time.Duration `mapstructure:"request_delay" yaml:"request_delay"`
	UserAgent    string        `mapstructure:"user_agent"    yaml:"user_agent"`
}

// WithDefaults returns a copy of the config with default values applied for zero-value fields.
func (c Config) WithDefaults() Config {
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	if c.RetryTimes <= 0 {
		c.RetryTimes = defaultRetryTimes
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = defaultRetryDelay
	}
	if c.RequestDelay < 0 {
		c.RequestDelay = 0
	}
	if c.UserAgent == "" {
		c.UserAgent = defaultUserAgent
	}
	return c
}
