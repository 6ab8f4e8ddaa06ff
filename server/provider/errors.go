package provider

import "errors"

var (
	// ErrMissingCredential is returned when no API key can be resolved for a call
	ErrMissingCredential = errors.New("missing API key")

	// ErrNoChoices indicates the upstream answered without any choice
	ErrNoChoices = errors.New("completion response contained no choices")

	// ErrUnknownProvider is returned by New for an unsupported provider name
	ErrUnknownProvider = errors.New("unknown provider")
)
