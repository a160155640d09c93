package agent

import "errors"

// ErrEmptyResponse indicates the model returned no usable text content.
var ErrEmptyResponse = errors.New("empty response from LLM")

// ErrMissingAPIKey indicates a provider client was requested without its
// API key present in the environment.
var ErrMissingAPIKey = errors.New("missing API key")
