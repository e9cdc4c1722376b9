package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthenticators(t *testing.T) {
	tests := []struct {
		name   string
		auth   Authenticator
		header string
		want   string
	}{
		{"tpdb bearer", BearerAuth{}, "Authorization", "Bearer test-api-key"},
		{"stash-box", StashAuth(), "ApiKey", "test-api-key"},
		{"custom header", HeaderAuth("X-Api-Key"), "X-Api-Key", "test-api-key"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "https://stashdb.org/graphql", nil)
			tt.auth.Apply(req, "test-api-key")
			assert.Equal(t, tt.want, req.Header.Get(tt.header))
		})
	}
}

func TestClient_NoKeyNoHeader(t *testing.T) {
	var got http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	for _, auth := range []Authenticator{nil, StashAuth()} {
		c := New("fansdb", auth, "", WithRetry(fastRetry()))
		require.NoError(t, c.GetJSON(context.Background(), srv.URL, 0, nil))
		assert.Empty(t, got.Get(APIKeyHeader))
	}
}
