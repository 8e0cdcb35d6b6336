package ports

import "net/http"

// HTTPClient abstracts the outbound HTTP client so gateway round-trips
// can be faked in tests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}
