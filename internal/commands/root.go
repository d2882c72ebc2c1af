package commands

import (
	"fmt"
	"io"
	nethttp "net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/gaborage/go-bricks-fetch/config"
	"github.com/gaborage/go-bricks-fetch/httpclient"
	"github.com/gaborage/go-bricks-fetch/logger"
	"github.com/gaborage/go-bricks-fetch/observability"
)

// GlobalOptions holds flags shared by every request command
type GlobalOptions struct {
	ConfigFiles []string
	LogLevel    string
	Pretty      bool
	Headers     []string
	Query       []string
	Timeout     time.Duration
	Telemetry   bool
	// Environ overrides the environment read by config loading; nil uses os.Environ.
	Environ func() []string
}

// NewRootCommand creates the fetch command tree
func NewRootCommand(version string) *cobra.Command {
	return newRootCommand(version, &GlobalOptions{})
}

func newRootCommand(version string, opts *GlobalOptions) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "fetch",
		Short: "Send HTTP requests and validate the responses",
		Long: `fetch sends HTTP requests with retries, per-attempt timeouts and schema
validation of the response body.

Configuration is read from YAML files given with --config and from FETCH_*
environment variables; flags override both.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringArrayVarP(&opts.ConfigFiles, "config", "c", []string{"fetch.yaml"}, "YAML configuration file (repeatable)")
	flags.StringVar(&opts.LogLevel, "log-level", "", "Log level: debug, info, warn, error (default from config)")
	flags.BoolVar(&opts.Pretty, "pretty", false, "Human readable logs on stderr")
	flags.StringArrayVarP(&opts.Headers, "header", "H", nil, "Request header as 'Name: value' (repeatable)")
	flags.StringArrayVarP(&opts.Query, "query", "q", nil, "Query parameter as key=value (repeatable)")
	flags.DurationVar(&opts.Timeout, "timeout", 0, "Per-attempt timeout (default from config)")
	flags.BoolVar(&opts.Telemetry, "telemetry", false, "Export spans and metrics (stdout unless telemetry.endpoint is set)")

	rootCmd.AddCommand(
		NewGetCommand(opts),
		NewStreamCommand(opts),
		NewUploadCommand(opts),
		NewVersionCommand(version),
	)
	return rootCmd
}

// session is the configured client for one command invocation
type session struct {
	cfg       *config.Config
	log       logger.Logger
	client    *httpclient.Client
	telemetry observability.Provider
	headers   map[string]string
	query     []httpclient.QueryParam
}

// newSession loads configuration and builds the client. Callers must close the session.
func newSession(cmd *cobra.Command, opts *GlobalOptions) (*session, error) {
	cfg, err := config.LoadWithOptions(config.Options{Files: opts.ConfigFiles, Environ: opts.Environ})
	if err != nil {
		return nil, err
	}
	if opts.LogLevel != "" {
		cfg.Log.Level = opts.LogLevel
	}
	if opts.Pretty {
		cfg.Log.Pretty = true
	}
	if opts.Telemetry {
		cfg.Telemetry.Enabled = true
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}

	headers, err := parseHeaders(opts.Headers)
	if err != nil {
		return nil, err
	}
	query, err := parseQuery(opts.Query)
	if err != nil {
		return nil, err
	}

	log := newLogger(cmd.ErrOrStderr(), cfg.Log)
	telemetry, err := observability.NewProvider(&cfg.Telemetry,
		observability.WithWriter(cmd.ErrOrStderr()),
		observability.WithServiceVersion(cmd.Root().Version),
		observability.WithLogger(log),
	)
	if err != nil {
		return nil, err
	}

	b := httpclient.NewBuilder(log).
		WithConfig(cfg).
		WithTracerProvider(telemetry.TracerProvider())
	if opts.Timeout > 0 {
		b.WithTimeout(opts.Timeout)
	}

	return &session{
		cfg:       cfg,
		log:       log,
		client:    b.Build(),
		telemetry: telemetry,
		headers:   headers,
		query:     query,
	}, nil
}

// close flushes telemetry. Failures are logged, never returned.
func (s *session) close() {
	if err := observability.Shutdown(s.telemetry, 0); err != nil {
		s.log.Warn().Err(err).Msg("Failed to flush telemetry")
	}
}

// checkURL rejects relative URLs when no base URL is configured.
func (s *session) checkURL(raw string) error {
	if strings.Contains(raw, "://") || s.cfg.Client.BaseURL != "" {
		return nil
	}
	return config.NewMissingFieldError("client.baseurl")
}

func newLogger(w io.Writer, cfg config.LogConfig) logger.Logger {
	if cfg.Pretty {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	return logger.NewWithWriter(w, cfg.Level)
}

func parseHeaders(values []string) (map[string]string, error) {
	headers := make(map[string]string, len(values))
	for _, v := range values {
		name, value, ok := strings.Cut(v, ":")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid header %q: expected 'Name: value'", v)
		}
		headers[nethttp.CanonicalHeaderKey(name)] = strings.TrimSpace(value)
	}
	return headers, nil
}

func parseQuery(values []string) ([]httpclient.QueryParam, error) {
	params := make([]httpclient.QueryParam, 0, len(values))
	for _, v := range values {
		key, value, ok := strings.Cut(v, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid query parameter %q: expected key=value", v)
		}
		params = append(params, httpclient.Param(key, value))
	}
	return params, nil
}
