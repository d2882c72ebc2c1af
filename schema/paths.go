package schema

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"
)

// Paths accepts JSON payloads in which every gjson path resolves to a value.
// The payload is returned unchanged. Non-JSON payloads fail with code "type".
func Paths(paths ...string) Schema[any] {
	return Func[any](func(_ context.Context, data any) (any, []Issue) {
		if data == nil {
			return nil, []Issue{{Message: "value is required", Code: "required"}}
		}
		if s, ok := data.(string); ok {
			return data, []Issue{{Message: fmt.Sprintf("expected a JSON document, got text %q", truncate(s, 40)), Code: "type"}}
		}
		raw, err := json.Marshal(data)
		if err != nil {
			return data, []Issue{{Message: err.Error(), Code: "type"}}
		}
		var issues []Issue
		for _, p := range paths {
			if !gjson.GetBytes(raw, p).Exists() {
				issues = append(issues, Issue{Path: p, Message: p + " is required", Code: "required"})
			}
		}
		return data, issues
	})
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
