package commands

import (
	"github.com/spf13/cobra"

	"github.com/gaborage/go-bricks-fetch/httpclient"
)

// StreamOptions holds options for the stream command
type StreamOptions struct {
	Lines   bool
	Require []string
}

// NewStreamCommand creates the stream command
func NewStreamCommand(global *GlobalOptions) *cobra.Command {
	opts := &StreamOptions{}

	cmd := &cobra.Command{
		Use:   "stream URL",
		Short: "Print every accepted fragment of a streamed response",
		Long: `Performs a single request and prints each body fragment that passes
validation. Fragments are whatever one read returns, or whole lines with --lines.`,
		Example: `  # Follow a newline-delimited JSON feed
  fetch stream https://api.example.com/events --lines --require type`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStream(cmd, global, opts, args[0])
		},
	}

	cmd.Flags().BoolVar(&opts.Lines, "lines", false, "Treat each line as one fragment")
	cmd.Flags().StringArrayVar(&opts.Require, "require", nil, "gjson path that must exist in a fragment (repeatable)")

	return cmd
}

func runStream(cmd *cobra.Command, global *GlobalOptions, opts *StreamOptions, rawURL string) error {
	s, err := newSession(cmd, global)
	if err != nil {
		return err
	}
	defer s.close()
	if err := s.checkURL(rawURL); err != nil {
		return err
	}

	var streamOpts []httpclient.StreamOption
	if opts.Lines {
		streamOpts = append(streamOpts, httpclient.WithLineFraming())
	}

	out := cmd.OutOrStdout()
	var writeErr error
	err = httpclient.Stream(cmd.Context(), s.client, &httpclient.Request[any]{
		URL:     rawURL,
		Headers: s.headers,
		Query:   s.query,
		Schema:  requireSchema(opts.Require),
	}, func(v any) {
		if writeErr == nil {
			writeErr = printValue(out, v)
		}
	}, streamOpts...)
	if err != nil {
		return describeError(cmd.ErrOrStderr(), err)
	}
	return writeErr
}
