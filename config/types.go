package config

import (
	"time"

	"github.com/knadh/koanf/v2"
)

// Config is the complete client configuration.
type Config struct {
	Client  ClientConfig  `koanf:"client" json:"client" yaml:"client"`
	Retry   RetryConfig   `koanf:"retry" json:"retry" yaml:"retry"`
	Log     LogConfig     `koanf:"log" json:"log" yaml:"log"`
	Breaker BreakerConfig `koanf:"breaker" json:"breaker" yaml:"breaker"`
	Rate    RateConfig    `koanf:"rate" json:"rate" yaml:"rate"`
	Trace   TraceConfig   `koanf:"trace" json:"trace" yaml:"trace"`

	Telemetry TelemetryConfig `koanf:"telemetry" json:"telemetry" yaml:"telemetry"`

	k *koanf.Koanf `json:"-" yaml:"-"`
}

// ClientConfig holds request defaults.
type ClientConfig struct {
	BaseURL   string            `koanf:"baseurl" json:"baseurl" yaml:"baseurl"`
	Timeout   time.Duration     `koanf:"timeout" json:"timeout" yaml:"timeout"`
	UserAgent string            `koanf:"useragent" json:"useragent" yaml:"useragent"`
	Headers   map[string]string `koanf:"headers" json:"headers" yaml:"headers"`
}

// RetryConfig is the default retry policy.
type RetryConfig struct {
	Attempts int           `koanf:"attempts" json:"attempts" yaml:"attempts"`
	Delay    time.Duration `koanf:"delay" json:"delay" yaml:"delay"`
	Backoff  string        `koanf:"backoff" json:"backoff" yaml:"backoff"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level           string `koanf:"level" json:"level" yaml:"level"`
	Pretty          bool   `koanf:"pretty" json:"pretty" yaml:"pretty"`
	Payloads        bool   `koanf:"payloads" json:"payloads" yaml:"payloads"`
	MaxPayloadBytes int    `koanf:"maxpayloadbytes" json:"maxpayloadbytes" yaml:"maxpayloadbytes"`
}

// BreakerConfig configures circuit breaking per method and path.
type BreakerConfig struct {
	Enabled     bool          `koanf:"enabled" json:"enabled" yaml:"enabled"`
	MaxRequests uint32        `koanf:"maxrequests" json:"maxrequests" yaml:"maxrequests"`
	Interval    time.Duration `koanf:"interval" json:"interval" yaml:"interval"`
	Timeout     time.Duration `koanf:"timeout" json:"timeout" yaml:"timeout"`
	Failures    uint32        `koanf:"failures" json:"failures" yaml:"failures"`
}

// RateConfig limits outbound attempts per second.
type RateConfig struct {
	Enabled bool    `koanf:"enabled" json:"enabled" yaml:"enabled"`
	Limit   float64 `koanf:"limit" json:"limit" yaml:"limit"`
	Burst   int     `koanf:"burst" json:"burst" yaml:"burst"`
}

// TraceConfig controls correlation header propagation.
type TraceConfig struct {
	Header string `koanf:"header" json:"header" yaml:"header"`
	W3C    bool   `koanf:"w3c" json:"w3c" yaml:"w3c"`
}

// TelemetryConfig configures span and metric export. Endpoint is "stdout" or an OTLP collector address.
type TelemetryConfig struct {
	Enabled     bool              `koanf:"enabled" json:"enabled" yaml:"enabled"`
	Service     string            `koanf:"service" json:"service" yaml:"service"`
	Environment string            `koanf:"environment" json:"environment" yaml:"environment"`
	Endpoint    string            `koanf:"endpoint" json:"endpoint" yaml:"endpoint"`
	Protocol    string            `koanf:"protocol" json:"protocol" yaml:"protocol"`
	Insecure    bool              `koanf:"insecure" json:"insecure" yaml:"insecure"`
	Headers     map[string]string `koanf:"headers" json:"headers" yaml:"headers"`
	SampleRate  float64           `koanf:"samplerate" json:"samplerate" yaml:"samplerate"`
	Interval    time.Duration     `koanf:"interval" json:"interval" yaml:"interval"`
}

// String returns the raw value at a dotted key, including keys not mapped onto Config.
func (c *Config) String(key string) string {
	if c.k == nil {
		return ""
	}
	return c.k.String(key)
}

// Exists reports whether key was set by any source.
func (c *Config) Exists(key string) bool {
	return c.k != nil && c.k.Exists(key)
}
