package capture

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func fakeGenerateServer(t *testing.T, response string, status int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/generate", r.URL.Path)

		var req generateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.False(t, req.Stream)
		require.Equal(t, "json", req.Format)

		w.WriteHeader(status)
		if status == http.StatusOK {
			_ = json.NewEncoder(w).Encode(generateResponse{Response: response})
		}
	}))
}

func TestExtractReturnsRawResponseField(t *testing.T) {
	srv := fakeGenerateServer(t, `{"title":"note"}`, http.StatusOK)
	defer srv.Close()

	c := New(Config{Host: srv.URL, Model: "test-model"})
	raw, err := c.Extract(context.Background(), "extract this")
	require.NoError(t, err)
	require.JSONEq(t, `{"title":"note"}`, string(raw))
}

func TestExtractErrorsOnNonOKStatus(t *testing.T) {
	srv := fakeGenerateServer(t, "", http.StatusInternalServerError)
	defer srv.Close()

	c := New(Config{Host: srv.URL})
	_, err := c.Extract(context.Background(), "prompt")
	require.Error(t, err)
}

func TestExtractErrorsOnEmptyResponseField(t *testing.T) {
	srv := fakeGenerateServer(t, "", http.StatusOK)
	defer srv.Close()

	c := New(Config{Host: srv.URL})
	_, err := c.Extract(context.Background(), "prompt")
	require.Error(t, err)
}

func TestExtractErrorsOnUnreachableHost(t *testing.T) {
	c := New(Config{Host: "http://127.0.0.1:1"})
	_, err := c.Extract(context.Background(), "prompt")
	require.Error(t, err)
}
