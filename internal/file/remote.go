package file

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"
)

// Fetcher reads remotely hosted file bytes.
type Fetcher interface {
	Text(ctx context.Context, url string) (string, error)
}

// Prober reports the byte size of a remotely hosted file.
type Prober interface {
	Size(ctx context.Context, url string) (int64, error)
}

const maxTextSize = 10 << 20

// Remote talks to the hosts behind url: contents.
type Remote struct {
	Client  *http.Client
	Timeout time.Duration
}

func NewRemote(timeout time.Duration) *Remote {
	return &Remote{Client: &http.Client{}, Timeout: timeout}
}

func (r *Remote) client() *http.Client {
	if r.Client == nil {
		return http.DefaultClient
	}
	return r.Client
}

func (r *Remote) get(ctx context.Context, url string) (*http.Response, context.CancelFunc, error) {
	cancel := context.CancelFunc(func() {})
	if r.Timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		cancel()
		return nil, nil, errors.Wrapf(err, "build request for %s", url)
	}
	// keep Content-Length meaningful
	req.Header.Set("Accept-Encoding", "identity")

	resp, err := r.client().Do(req)
	if err != nil {
		cancel()
		return nil, nil, errors.Wrapf(err, "get %s", url)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		resp.Body.Close()
		cancel()
		return nil, nil, errors.Errorf("get %s: %s", url, resp.Status)
	}
	return resp, cancel, nil
}

// Size issues a GET and returns the Content-Length without reading the
// body. Some buckets reject HEAD through CORS, so HEAD is not used.
func (r *Remote) Size(ctx context.Context, url string) (int64, error) {
	resp, cancel, err := r.get(ctx, url)
	if err != nil {
		return 0, err
	}
	defer cancel()
	resp.Body.Close()

	if resp.ContentLength < 0 {
		return 0, errors.Errorf("unable to get content-length for %s", url)
	}
	return resp.ContentLength, nil
}

func (r *Remote) Text(ctx context.Context, url string) (string, error) {
	resp, cancel, err := r.get(ctx, url)
	if err != nil {
		return "", err
	}
	defer cancel()
	defer resp.Body.Close()

	b, err := io.ReadAll(io.LimitReader(resp.Body, maxTextSize+1))
	if err != nil {
		return "", errors.Wrapf(err, "read %s", url)
	}
	if len(b) > maxTextSize {
		return "", errors.Errorf("%s is larger than %d bytes", url, maxTextSize)
	}
	return string(b), nil
}
