package commands

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/gaborage/go-bricks-fetch/httpclient"
	"github.com/gaborage/go-bricks-fetch/schema"
)

// printValue writes strings verbatim and everything else as indented JSON.
func printValue(w io.Writer, v any) error {
	if s, ok := v.(string); ok {
		_, err := fmt.Fprintln(w, s)
		return err
	}
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(out))
	return err
}

// describeError adds validation issues and the response status to err.
func describeError(w io.Writer, err error) error {
	e, ok := httpclient.AsError(err)
	if !ok {
		return err
	}
	for _, issue := range e.Issues {
		fmt.Fprintf(w, "  - %s\n", issue)
	}
	if e.Kind == httpclient.ValidationError && e.Data != nil {
		fmt.Fprintln(w, "received:")
		_ = printValue(w, e.Data)
	}
	return err
}

func requireSchema(paths []string) schema.Schema[any] {
	if len(paths) == 0 {
		return schema.Any()
	}
	return schema.Paths(paths...)
}
