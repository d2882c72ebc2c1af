package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is the prefix of environment variables read by Load.
const EnvPrefix = "FETCH_"

// Options controls where Load reads configuration from.
type Options struct {
	// Files are YAML files applied in order. Missing files are skipped.
	Files []string
	// Environ returns the environment; defaults to os.Environ.
	Environ func() []string
}

// Load loads configuration from multiple sources with priority:
// 1. Environment variables prefixed with FETCH_ (highest priority)
// 2. YAML configuration files, in the given order
// 3. Default values (lowest priority)
func Load(files ...string) (*Config, error) {
	return LoadWithOptions(Options{Files: files})
}

// LoadWithOptions is Load with an explicit environment source.
func LoadWithOptions(opts Options) (*Config, error) {
	k := koanf.New(".")

	if err := loadDefaults(k); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	for _, path := range opts.Files {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", path, err)
		}
	}

	environ := opts.Environ
	if environ == nil {
		environ = os.Environ
	}
	if err := k.Load(env.Provider(".", env.Opt{
		Prefix:        EnvPrefix,
		TransformFunc: envKey,
		EnvironFunc:   environ,
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.k = k

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// envKey converts FETCH_RETRY_ATTEMPTS into retry.attempts.
func envKey(k, v string) (string, any) {
	k = strings.TrimPrefix(k, EnvPrefix)
	return strings.ReplaceAll(strings.ToLower(k), "_", "."), v
}

func loadDefaults(k *koanf.Koanf) error {
	defaults := map[string]any{
		"client.baseurl":   "",
		"client.timeout":   "10s",
		"client.useragent": "go-bricks-fetch",

		"retry.attempts": 0,
		"retry.delay":    "1s",
		"retry.backoff":  BackoffLinear,

		"log.level":           "info",
		"log.pretty":          false,
		"log.payloads":        false,
		"log.maxpayloadbytes": 1024,

		"breaker.enabled":     false,
		"breaker.maxrequests": 1,
		"breaker.interval":    "0s",
		"breaker.timeout":     "30s",
		"breaker.failures":    5,

		"rate.enabled": false,
		"rate.limit":   10,
		"rate.burst":   10,

		"trace.header": "X-Request-ID",
		"trace.w3c":    false,

		"telemetry.enabled":     false,
		"telemetry.service":     "fetch",
		"telemetry.environment": "development",
		"telemetry.endpoint":    EndpointStdout,
		"telemetry.protocol":    ProtocolHTTP,
		"telemetry.insecure":    false,
		"telemetry.samplerate":  1.0,
		"telemetry.interval":    "60s",
	}

	return k.Load(confmap.Provider(defaults, "."), nil)
}
