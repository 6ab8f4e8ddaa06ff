package errors

import (
	"bytes"
	"encoding/json"
	"net/http"
)

// RequestIDKey is the log field name used for request correlation.
const RequestIDKey = "request_id"

// ErrorResponse is the public error envelope. Details is nil only on the
// 405 path; every 500 carries the key, even when the cause's message is empty.
type ErrorResponse struct {
	Error   string  `json:"error"`
	Details *string `json:"details,omitempty"`
}

// WriteJSON encodes v and writes it with the given status code.
// HTML characters are not escaped and no trailing newline is written, so a
// body like {"response":"<b>hi</b>"} reaches the caller exactly as the
// completion service produced it.
func WriteJSON(w http.ResponseWriter, code int, v interface{}) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return err
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, err := w.Write(bytes.TrimSuffix(buf.Bytes(), []byte("\n")))
	return err
}

// WriteError formats and writes a RelayError to an http.ResponseWriter.
// It sets the appropriate content type and status code, then writes
// the public envelope as a JSON response.
func WriteError(w http.ResponseWriter, err *RelayError) {
	_ = WriteJSON(w, err.Code, err.Response())
}
