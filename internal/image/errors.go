package image

import (
	"errors"
	"fmt"
)

var ErrMissingCredential = errors.New("API key is required. Please enter your Hugging Face API key")

// RequestError is a non-2xx answer from the inference endpoint. Message is the
// human readable reason resolved from the response.
type RequestError struct {
	StatusCode int
	Message    string
}

func (e *RequestError) Error() string {
	return e.Message
}

// NetworkError is a transport failure before any response was received.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network failure: %v", e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// Kind names the class of a generation error for display and logging.
func Kind(err error) string {
	var reqErr *RequestError
	var netErr *NetworkError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrMissingCredential):
		return "missing_credential"
	case errors.As(err, &reqErr):
		return "request_failed"
	case errors.As(err, &netErr):
		return "network_failure"
	default:
		return "unknown"
	}
}
