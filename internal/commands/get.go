package commands

import (
	"errors"
	"time"

	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"

	"github.com/gaborage/go-bricks-fetch/httpclient"
)

// GetOptions holds options for the get command
type GetOptions struct {
	Method      string
	Data        string
	Retry       int
	Delay       time.Duration
	Exponential bool
	Require     []string
}

// NewGetCommand creates the get command
func NewGetCommand(global *GlobalOptions) *cobra.Command {
	opts := &GetOptions{}

	cmd := &cobra.Command{
		Use:   "get URL",
		Short: "Execute a request and print the validated response",
		Long: `Executes a request with retries and prints the response body as JSON.

Server errors (5xx), connection failures and attempt timeouts are retried.
With --require the response must contain every given gjson path.`,
		Example: `  # Retry up to 3 times with exponential backoff
  fetch get https://api.example.com/items --retry 3 --delay 200ms --exponential

  # POST a JSON document and require fields in the answer
  fetch get /items -X POST -d '{"name":"widget"}' --require id --require name`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGet(cmd, global, opts, args[0])
		},
	}

	cmd.Flags().StringVarP(&opts.Method, "method", "X", "", "HTTP method (default GET)")
	cmd.Flags().StringVarP(&opts.Data, "data", "d", "", "JSON request body")
	cmd.Flags().IntVar(&opts.Retry, "retry", -1, "Number of retries (default from config)")
	cmd.Flags().DurationVar(&opts.Delay, "delay", 0, "Base delay between retries (default from config)")
	cmd.Flags().BoolVar(&opts.Exponential, "exponential", false, "Double the delay after every retry")
	cmd.Flags().StringArrayVar(&opts.Require, "require", nil, "gjson path that must exist in the response (repeatable)")

	return cmd
}

func runGet(cmd *cobra.Command, global *GlobalOptions, opts *GetOptions, rawURL string) error {
	s, err := newSession(cmd, global)
	if err != nil {
		return err
	}
	defer s.close()
	if err := s.checkURL(rawURL); err != nil {
		return err
	}

	req := &httpclient.Request[any]{
		Method:  opts.Method,
		URL:     rawURL,
		Headers: s.headers,
		Query:   s.query,
		Retry:   retryPolicy(cmd, s, opts),
		Schema:  requireSchema(opts.Require),
	}
	if opts.Data != "" {
		if !gjson.Valid(opts.Data) {
			return errors.New("--data is not valid JSON")
		}
		req.Body = []byte(opts.Data)
		if _, ok := req.Headers["Content-Type"]; !ok {
			req.Headers["Content-Type"] = "application/json"
		}
		if req.Method == "" {
			req.Method = "POST"
		}
	}

	value, err := httpclient.Execute(cmd.Context(), s.client, req)
	if err != nil {
		return describeError(cmd.ErrOrStderr(), err)
	}
	return printValue(cmd.OutOrStdout(), value)
}

// retryPolicy merges retry flags over the configured policy. nil keeps the client default.
func retryPolicy(cmd *cobra.Command, s *session, opts *GetOptions) *httpclient.RetryPolicy {
	flags := cmd.Flags()
	if !flags.Changed("retry") && !flags.Changed("delay") && !flags.Changed("exponential") {
		return nil
	}
	p := httpclient.RetryPolicy{
		Attempts: s.cfg.Retry.Attempts,
		Delay:    s.cfg.Retry.Delay,
		Backoff:  httpclient.Backoff(s.cfg.Retry.Backoff),
	}
	if flags.Changed("retry") {
		p.Attempts = opts.Retry
	}
	if flags.Changed("delay") {
		p.Delay = opts.Delay
	}
	if opts.Exponential {
		p.Backoff = httpclient.BackoffExponential
	}
	return &p
}
