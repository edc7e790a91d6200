// Package client posts requests to a protocaas API endpoint.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/pkg/errors"
)

// Client talks to the single protocaas endpoint.
type Client struct {
	url  string
	http *http.Client
}

// New returns a client for baseURL, for example "http://localhost:8080".
func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{url: strings.TrimSuffix(baseURL, "/") + "/api", http: httpClient}
}

// Post sends req and decodes the tagged response into resp. Non-200
// responses carry the server's plain-text message as the error.
func (c *Client) Post(ctx context.Context, req, resp any) error {
	buf, err := json.Marshal(req)
	if err != nil {
		return errors.Wrap(err, "encode request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(buf))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		return errors.Wrap(err, "post request")
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return errors.Wrap(err, "read response")
	}
	if httpResp.StatusCode != http.StatusOK {
		return errors.Errorf("%d: %s", httpResp.StatusCode, strings.TrimSpace(string(body)))
	}

	return errors.Wrap(json.Unmarshal(body, resp), "decode response")
}
