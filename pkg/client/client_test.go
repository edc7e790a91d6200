package client

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPost(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		var req map[string]any
		require.NoError(t, json.Unmarshal(body, &req))
		if req["type"] == "bad" {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte("Error: boom"))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"type": req["type"], "jobs": []any{}})
	}))
	defer srv.Close()

	c := New(srv.URL+"/", nil)

	var resp struct {
		Type string `json:"type"`
		Jobs []any  `json:"jobs"`
	}
	require.NoError(t, c.Post(context.Background(), map[string]any{"type": "computeResource.getPendingJobs"}, &resp))
	require.Equal(t, "computeResource.getPendingJobs", resp.Type)
	require.Empty(t, resp.Jobs)

	err := c.Post(context.Background(), map[string]any{"type": "bad"}, &resp)
	require.EqualError(t, err, "500: Error: boom")
}
