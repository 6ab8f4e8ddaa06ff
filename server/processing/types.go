// Package processing turns a caller's chat request into the single upstream
// completion call and shapes the reply.
package processing

import (
	"bytes"
	"encoding/json"
	stderrors "errors"

	"github.com/teilomillet/chatrelay/errors"
	"github.com/teilomillet/chatrelay/server/provider"
)

var (
	// ErrEmptyBody is the parse failure for a request without a body.
	ErrEmptyBody = stderrors.New("request body is empty")

	// ErrNotObject is the parse failure for a body that is valid JSON but
	// not an object, including the literal null.
	ErrNotObject = stderrors.New("request body must be a JSON object")
)

// Request is the caller's chat request. Messages excludes the system
// instruction and may be empty.
type Request struct {
	Messages []provider.Message `json:"messages"`
}

// Response is the success body returned to the caller.
type Response struct {
	Response string `json:"response"`
}

// ParseRequest decodes body into a Request. Any failure is classified as
// errors.ParseError; a missing or null "messages" key yields an empty
// conversation.
func ParseRequest(body []byte) (*Request, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, errors.Wrap(errors.ParseError, ErrEmptyBody)
	}
	if trimmed[0] != '{' {
		if json.Valid(trimmed) {
			return nil, errors.Wrap(errors.ParseError, ErrNotObject)
		}
	}

	var req Request
	if err := json.Unmarshal(trimmed, &req); err != nil {
		return nil, errors.Wrap(errors.ParseError, err)
	}
	return &req, nil
}
