package config

import (
	"fmt"
	"net/url"
	"slices"
)

// Backoff names accepted by retry.backoff.
const (
	BackoffLinear      = "linear"
	BackoffExponential = "exponential"
)

// Telemetry export targets.
const (
	EndpointStdout = "stdout"
	ProtocolHTTP   = "http"
	ProtocolGRPC   = "grpc"
)

var validLogLevels = []string{"debug", "info", "warn", "error"}

// Validate reports the first invalid field as a *ConfigError.
func Validate(cfg *Config) error {
	if err := validateClient(&cfg.Client); err != nil {
		return err
	}
	if err := validateRetry(&cfg.Retry); err != nil {
		return err
	}
	if err := validateLog(&cfg.Log); err != nil {
		return err
	}
	if err := validateBreaker(&cfg.Breaker); err != nil {
		return err
	}
	if err := validateRate(&cfg.Rate); err != nil {
		return err
	}
	return validateTelemetry(&cfg.Telemetry)
}

func validateClient(cfg *ClientConfig) error {
	if cfg.Timeout <= 0 {
		return NewInvalidFieldError("client.timeout", "must be positive", nil)
	}
	if cfg.BaseURL != "" {
		u, err := url.Parse(cfg.BaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return NewInvalidFieldError("client.baseurl", fmt.Sprintf("invalid base url %q", cfg.BaseURL), nil)
		}
	}
	return nil
}

func validateRetry(cfg *RetryConfig) error {
	if cfg.Attempts < 0 {
		return NewInvalidFieldError("retry.attempts", "must not be negative", nil)
	}
	if !slices.Contains([]string{BackoffLinear, BackoffExponential}, cfg.Backoff) {
		return NewInvalidFieldError("retry.backoff", fmt.Sprintf("invalid backoff %q", cfg.Backoff), []string{BackoffLinear, BackoffExponential})
	}
	return nil
}

func validateLog(cfg *LogConfig) error {
	if !slices.Contains(validLogLevels, cfg.Level) {
		return NewInvalidFieldError("log.level", fmt.Sprintf("invalid log level %q", cfg.Level), validLogLevels)
	}
	if cfg.MaxPayloadBytes < 0 {
		return NewInvalidFieldError("log.maxpayloadbytes", "must not be negative", nil)
	}
	return nil
}

func validateBreaker(cfg *BreakerConfig) error {
	if !cfg.Enabled {
		return nil
	}
	if cfg.Failures == 0 {
		return NewInvalidFieldError("breaker.failures", "must be positive when the breaker is enabled", nil)
	}
	if cfg.Timeout < 0 || cfg.Interval < 0 {
		return NewInvalidFieldError("breaker.timeout", "durations must not be negative", nil)
	}
	return nil
}

func validateRate(cfg *RateConfig) error {
	if !cfg.Enabled {
		return nil
	}
	if cfg.Limit <= 0 {
		return NewInvalidFieldError("rate.limit", "must be positive when rate limiting is enabled", nil)
	}
	if cfg.Burst <= 0 {
		return NewInvalidFieldError("rate.burst", "must be positive when rate limiting is enabled", nil)
	}
	return nil
}

func validateTelemetry(cfg *TelemetryConfig) error {
	if !cfg.Enabled {
		return nil
	}
	if cfg.Service == "" {
		return NewMissingFieldError("telemetry.service")
	}
	if cfg.SampleRate < 0 || cfg.SampleRate > 1 {
		return NewInvalidFieldError("telemetry.samplerate", fmt.Sprintf("sample rate %v is outside [0, 1]", cfg.SampleRate), nil)
	}
	if cfg.Endpoint == "" {
		return NewMissingFieldError("telemetry.endpoint")
	}
	if cfg.Endpoint != EndpointStdout && !slices.Contains([]string{ProtocolHTTP, ProtocolGRPC}, cfg.Protocol) {
		return NewInvalidFieldError("telemetry.protocol", fmt.Sprintf("invalid protocol %q", cfg.Protocol), []string{ProtocolHTTP, ProtocolGRPC})
	}
	if cfg.Interval <= 0 {
		return NewInvalidFieldError("telemetry.interval", "must be positive when telemetry is enabled", nil)
	}
	return nil
}
