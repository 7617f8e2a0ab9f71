package respond

import (
	"encoding/json"
	"net/http"
)

// JSON writes the payload with the given status.
func JSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		_ = json.NewEncoder(w).Encode(payload)
	}
}

// Error writes the standard `{"error": code}` rejection body. Codes are
// stable machine-readable strings, not prose.
func Error(w http.ResponseWriter, status int, code string) {
	JSON(w, status, map[string]string{"error": code})
}
