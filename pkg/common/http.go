package common

import (
	_ "embed"
	"net/http"
	"strings"
	"time"
)

//go:embed VERSION
var version string

// Version is the trimmed release version embedded at build time.
func Version() string {
	return strings.TrimSpace(version)
}

// UserAgent is the User-Agent sent on every outbound request.
func UserAgent() string {
	return "glowmeter/" + Version()
}

type headerTransport struct {
	transport http.RoundTripper
	headers   http.Header
}

// RoundTrip sets the configured headers on a clone of the request so the
// caller's request is never mutated.
func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	for k, vs := range t.headers {
		// only fill in headers the caller didn't set explicitly
		if req.Header.Get(k) != "" {
			continue
		}
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	return t.transport.RoundTrip(req)
}

// HTTPClient returns an http client that sends the glowmeter User-Agent and
// the given static headers on every request.
func HTTPClient(timeout time.Duration, headers http.Header) *http.Client {
	h := http.Header{}
	h.Set("User-Agent", UserAgent())
	for k, vs := range headers {
		h.Del(k)
		for _, v := range vs {
			h.Add(k, v)
		}
	}

	return &http.Client{
		Transport: &headerTransport{
			transport: http.DefaultTransport,
			headers:   h,
		},
		Timeout: timeout,
	}
}
