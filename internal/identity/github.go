package identity

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/protocaas/protocaas/internal/cache"
	"golang.org/x/oauth2"
)

const defaultGitHubAPI = "https://api.github.com"

// GitHubVerifier verifies an access token by asking the GitHub API who
// it belongs to. Confirmed (login, token) pairs are remembered for the
// cache TTL so a busy client does not hit the API on every request.
type GitHubVerifier struct {
	baseURL    string
	httpClient *http.Client
	verified   cache.Cache[string]
}

type GitHubOption func(*GitHubVerifier)

// WithBaseURL points the verifier at another API root.
func WithBaseURL(u string) GitHubOption {
	return func(v *GitHubVerifier) { v.baseURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient sets the transport used underneath the OAuth client.
func WithHTTPClient(c *http.Client) GitHubOption {
	return func(v *GitHubVerifier) { v.httpClient = c }
}

func NewGitHubVerifier(ttl time.Duration, opts ...GitHubOption) *GitHubVerifier {
	v := &GitHubVerifier{
		baseURL:    defaultGitHubAPI,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		verified:   cache.New[string](ttl),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

func (v *GitHubVerifier) Verify(ctx context.Context, login, token string) (bool, error) {
	if login == "" || token == "" {
		return false, nil
	}
	if cached, ok := v.verified.Get(token); ok {
		return cached == login, nil
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, v.httpClient)
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: token,
		TokenType:   "Bearer",
	}))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.baseURL+"/user", nil)
	if err != nil {
		return false, errors.Wrap(err, "build github user request")
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := client.Do(req)
	if err != nil {
		return false, errors.Wrap(err, "github user request")
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return false, nil
	case resp.StatusCode != http.StatusOK:
		return false, errors.Errorf("github user request returned %s", resp.Status)
	}

	var user struct {
		Login string `json:"login"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return false, errors.Wrap(err, "decode github user")
	}
	v.verified.Set(token, user.Login)
	return user.Login == login, nil
}
