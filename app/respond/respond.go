// Package respond holds the JSON response and request-field helpers shared
// by the HTTP handlers.
package respond

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"strings"
)

// MaxFormMemory is how much of a multipart body is kept in memory.
const MaxFormMemory = 8 << 20

// WriteJSON writes a JSON response
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}

// WriteError writes an error response in JSON format
func WriteError(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, map[string]string{"error": message})
}

// IsJSON reports whether the request body is JSON.
func IsJSON(r *http.Request) bool {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mt == "application/json"
}

// Fields is a flat view of a request's form or JSON body. Has reports
// whether the client sent a key at all.
type Fields map[string]string

func (f Fields) Get(key string) string { return f[key] }

func (f Fields) Has(key string) bool {
	_, ok := f[key]
	return ok
}

// Trimmed returns the value with surrounding whitespace removed.
func (f Fields) Trimmed(key string) string { return strings.TrimSpace(f[key]) }

// ReadFields parses a JSON object, multipart form or urlencoded form body.
// JSON scalars are stringified; null is kept as an empty value.
func ReadFields(r *http.Request) (Fields, error) {
	fields := Fields{}
	if IsJSON(r) {
		var body map[string]any
		dec := json.NewDecoder(r.Body)
		dec.UseNumber()
		if err := dec.Decode(&body); err != nil {
			return nil, fmt.Errorf("invalid JSON body: %w", err)
		}
		for k, v := range body {
			switch val := v.(type) {
			case nil:
				fields[k] = ""
			case string:
				fields[k] = val
			case json.Number:
				fields[k] = val.String()
			case bool:
				fields[k] = fmt.Sprint(val)
			default:
				return nil, fmt.Errorf("invalid JSON body: field %q must be a scalar", k)
			}
		}
		return fields, nil
	}

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
		if err := r.ParseMultipartForm(MaxFormMemory); err != nil {
			return nil, fmt.Errorf("invalid form body: %w", err)
		}
	} else if err := r.ParseForm(); err != nil {
		return nil, fmt.Errorf("invalid form body: %w", err)
	}
	for k, vs := range r.PostForm {
		if len(vs) > 0 {
			fields[k] = vs[0]
		}
	}
	return fields, nil
}
