package gecko

import (
	"fmt"
	"net/http"
)

// FetchError is a failure at the network/HTTP layer. StatusCode is 0 when the
// request never produced a response (transport failure or cancellation).
type FetchError struct {
	URL        string
	StatusCode int
	Body       string
	Err        error
}

func (e *FetchError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Err != nil:
		return fmt.Sprintf("gecko: fetch %s: status %d: %v", e.URL, e.StatusCode, e.Err)
	case e.StatusCode != 0:
		return fmt.Sprintf("gecko: fetch %s: status %d", e.URL, e.StatusCode)
	default:
		return fmt.Sprintf("gecko: fetch %s: %v", e.URL, e.Err)
	}
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// RateLimited reports whether the error is an exhausted 429 retry sequence.
func (e *FetchError) RateLimited() bool {
	return e.StatusCode == http.StatusTooManyRequests
}

// NotFound reports whether the upstream does not know the token.
func (e *FetchError) NotFound() bool {
	return e.StatusCode == http.StatusNotFound
}

// ParseError is a malformed upstream envelope: the response was 2xx but the
// document is missing its data/attributes wrapper. Missing leaf fields are
// NOT parse errors; they zero-default in the adapter.
type ParseError struct {
	URL    string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("gecko: parse %s: %s", e.URL, e.Reason)
}
