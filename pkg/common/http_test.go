package common

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPClient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "glowmeter/"+Version(), r.Header.Get("User-Agent"), "User-Agent should match expected format")
		assert.Equal(t, "app-123", r.Header.Get("applicationId"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	timeout := 5 * time.Second
	client := HTTPClient(timeout, http.Header{
		"Applicationid": []string{"app-123"},
		"Content-Type":  []string{"application/json"},
	})

	assert.Equal(t, timeout, client.Timeout, "Timeout should be set correctly")
	assert.NotNil(t, client.Transport, "Transport should not be nil")

	req, err := http.NewRequest("GET", server.URL, nil)
	require.NoError(t, err)

	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	// the original request must not be modified
	assert.Empty(t, req.Header.Get("applicationId"))
}

func TestHTTPClientKeepsExplicitHeaders(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "text/plain", r.Header.Get("Content-Type"))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client := HTTPClient(time.Second, http.Header{"Content-Type": []string{"application/json"}})
	req, err := http.NewRequest("POST", server.URL, nil)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "text/plain")

	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}
