package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/gaborage/go-bricks-fetch/httpclient"
)

// UploadOptions holds options for the upload command
type UploadOptions struct {
	File        string
	Field       string
	ContentType string
	Quiet       bool
	Require     []string
}

// NewUploadCommand creates the upload command
func NewUploadCommand(global *GlobalOptions) *cobra.Command {
	opts := &UploadOptions{}

	cmd := &cobra.Command{
		Use:   "upload URL",
		Short: "Upload a file as multipart form data",
		Long: `Posts a file as a single multipart/form-data field, printing progress on
stderr and the validated response on stdout. Uploads are not retried.`,
		Example: `  fetch upload https://api.example.com/files --file ./report.pdf --field document`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUpload(cmd, global, opts, args[0])
		},
	}

	cmd.Flags().StringVarP(&opts.File, "file", "f", "", "File to upload")
	cmd.Flags().StringVar(&opts.Field, "field", httpclient.DefaultUploadField, "Form field name")
	cmd.Flags().StringVar(&opts.ContentType, "content-type", "", "Content type of the file part")
	cmd.Flags().BoolVar(&opts.Quiet, "quiet", false, "Do not print progress")
	cmd.Flags().StringArrayVar(&opts.Require, "require", nil, "gjson path that must exist in the response (repeatable)")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func runUpload(cmd *cobra.Command, global *GlobalOptions, opts *UploadOptions, rawURL string) error {
	s, err := newSession(cmd, global)
	if err != nil {
		return err
	}
	defer s.close()
	if err := s.checkURL(rawURL); err != nil {
		return err
	}

	f, err := os.Open(opts.File)
	if err != nil {
		return fmt.Errorf("failed to open upload file: %w", err)
	}
	defer f.Close()

	progress := cmd.ErrOrStderr()
	req := &httpclient.UploadRequest[any]{
		URL:       rawURL,
		FieldName: opts.Field,
		Headers:   s.headers,
		File: httpclient.File{
			Name:        filepath.Base(opts.File),
			Content:     f,
			ContentType: opts.ContentType,
		},
		Schema: requireSchema(opts.Require),
	}
	if !opts.Quiet {
		last := -1
		req.OnProgress = func(p float64) {
			if pct := int(p); pct != last {
				last = pct
				fmt.Fprintf(progress, "upload: %d%%\n", pct)
			}
		}
	}

	value, err := httpclient.Upload(cmd.Context(), s.client, req)
	if err != nil {
		return describeError(cmd.ErrOrStderr(), err)
	}
	return printValue(cmd.OutOrStdout(), value)
}
