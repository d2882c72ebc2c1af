package trace

import "net/http"

// HTTPHeaders adapts http.Header to HeaderAccessor.
type HTTPHeaders http.Header

// Get returns the first value for key.
func (h HTTPHeaders) Get(key string) any {
	return http.Header(h).Get(key)
}

// Set replaces the values for key.
func (h HTTPHeaders) Set(key string, value any) {
	if s, ok := value.(string); ok {
		http.Header(h).Set(key, s)
		return
	}
	http.Header(h).Set(key, safeToString(value))
}
