package middleware

import (
	"encoding/json"
	"net/http"
)

// reject writes a JSON error body with the given status. Middleware runs
// outside the handler package, so it carries its own copy of the envelope.
func reject(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
