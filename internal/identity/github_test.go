package identity

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestGitHubVerifier(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.URL.Path != "/user" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		switch r.Header.Get("Authorization") {
		case "Bearer good":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"login":"alice"}`))
		default:
			w.WriteHeader(http.StatusUnauthorized)
		}
	}))
	defer srv.Close()

	v := NewGitHubVerifier(time.Minute, WithBaseURL(srv.URL), WithHTTPClient(srv.Client()))
	ctx := context.Background()

	ok, err := v.Verify(ctx, "alice", "good")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = v.Verify(ctx, "mallory", "good")
	require.NoError(t, err)
	require.False(t, ok)
	require.Equal(t, int32(1), hits.Load())

	ok, err = v.Verify(ctx, "alice", "bad")
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = v.Verify(ctx, "alice", "")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestGitHubVerifierUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	v := NewGitHubVerifier(time.Minute, WithBaseURL(srv.URL))
	_, err := v.Verify(context.Background(), "alice", "tok")
	require.Error(t, err)
}
