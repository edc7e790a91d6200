package bucket

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseURI(t *testing.T) {
	cases := []struct {
		raw  string
		want URI
	}{
		{"wasabi://kachery-cloud?region=us-east-1", URI{Service: Wasabi, Bucket: "kachery-cloud", Region: "us-east-1"}},
		{"s3://my-bucket/some/prefix", URI{Service: AWS, Bucket: "my-bucket", Path: "some/prefix"}},
		{"gs://g-bucket", URI{Service: Google, Bucket: "g-bucket"}},
		{"r2://r-bucket", URI{Service: R2, Bucket: "r-bucket"}},
	}
	for _, c := range cases {
		got, err := ParseURI(c.raw)
		require.NoError(t, err, c.raw)
		require.Equal(t, c.want, got, c.raw)
	}

	_, err := ParseURI("ftp://x")
	require.Error(t, err)
	_, err = ParseURI("no-scheme")
	require.Error(t, err)
	_, err = ParseURI("s3://")
	require.Error(t, err)
}

func TestObjectURL(t *testing.T) {
	u, _ := ParseURI("wasabi://b?region=eu-central-1")
	got, err := u.ObjectURL("protocaas-outputs/j1/out")
	require.NoError(t, err)
	require.Equal(t, "https://s3.eu-central-1.wasabisys.com/b/protocaas-outputs/j1/out", got)

	u, _ = ParseURI("s3://b")
	got, err = u.ObjectURL("k")
	require.NoError(t, err)
	require.Equal(t, "https://b.s3.amazonaws.com/k", got)

	u, _ = ParseURI("gs://b")
	got, err = u.ObjectURL("k")
	require.NoError(t, err)
	require.Equal(t, "https://storage.googleapis.com/b/k", got)

	u, _ = ParseURI("r2://b")
	_, err = u.ObjectURL("k")
	require.Error(t, err)
}

func TestParseCredentials(t *testing.T) {
	c, err := ParseCredentials(`{"accessKeyId":"AK","secretAccessKey":"SK","endpoint":"https://acct.r2.cloudflarestorage.com"}`)
	require.NoError(t, err)
	require.Equal(t, "AK", c.AccessKeyID)

	_, err = ParseCredentials(`{"accessKeyId":"AK"}`)
	require.ErrorContains(t, err, "secretAccessKey")

	_, err = ParseCredentials(`not json`)
	require.Error(t, err)
}

func TestEndpoints(t *testing.T) {
	creds := Credentials{AccessKeyID: "AK", SecretAccessKey: "SK"}

	u, _ := ParseURI("wasabi://b?region=us-west-1")
	host, region, err := endpointFor(u, creds)
	require.NoError(t, err)
	require.Equal(t, "s3.us-west-1.wasabisys.com", host)
	require.Equal(t, "us-west-1", region)

	u, _ = ParseURI("r2://b")
	_, _, err = endpointFor(u, creds)
	require.ErrorContains(t, err, "no endpoint")

	creds.Endpoint = "https://acct.r2.cloudflarestorage.com"
	host, region, err = endpointFor(u, creds)
	require.NoError(t, err)
	require.Equal(t, "acct.r2.cloudflarestorage.com", host)
	require.Equal(t, "auto", region)
}

func TestSignedPutURL(t *testing.T) {
	u, _ := ParseURI("wasabi://b?region=us-east-1")
	b, err := New(u, Credentials{AccessKeyID: "AK", SecretAccessKey: "SK"})
	require.NoError(t, err)

	raw, err := b.SignedPutURL(context.Background(), "protocaas-outputs/j1/out", 30*time.Minute)
	require.NoError(t, err)

	parsed, err := url.Parse(raw)
	require.NoError(t, err)
	require.Equal(t, "s3.us-east-1.wasabisys.com", parsed.Host)
	require.True(t, strings.HasSuffix(parsed.Path, "/b/protocaas-outputs/j1/out"))
	require.Equal(t, "1800", parsed.Query().Get("X-Amz-Expires"))
	require.NotEmpty(t, parsed.Query().Get("X-Amz-Signature"))
}

// fakeS3 answers path-style ListObjectsV2 and DeleteObject calls for a
// single bucket.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string]int64
	deleted []string
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/b/" && r.URL.Query().Get("list-type") == "2":
		prefix := r.URL.Query().Get("prefix")
		var contents strings.Builder
		for key, size := range f.objects {
			if strings.HasPrefix(key, prefix) {
				fmt.Fprintf(&contents, "<Contents><Key>%s</Key><LastModified>2024-01-02T03:04:05.000Z</LastModified><ETag>&quot;etag&quot;</ETag><Size>%d</Size><StorageClass>STANDARD</StorageClass></Contents>", key, size)
			}
		}
		w.Header().Set("Content-Type", "application/xml")
		fmt.Fprintf(w, `<?xml version="1.0" encoding="UTF-8"?><ListBucketResult xmlns="http://s3.amazonaws.com/doc/2006-03-01/"><Name>b</Name><Prefix>%s</Prefix><MaxKeys>1000</MaxKeys><IsTruncated>false</IsTruncated>%s</ListBucketResult>`, prefix, contents.String())
	case r.Method == http.MethodDelete && strings.HasPrefix(r.URL.Path, "/b/"):
		key := strings.TrimPrefix(r.URL.Path, "/b/")
		delete(f.objects, key)
		f.deleted = append(f.deleted, key)
		w.WriteHeader(http.StatusNoContent)
	default:
		http.Error(w, "unexpected request", http.StatusNotImplemented)
	}
}

func TestDeletePrefix(t *testing.T) {
	s3 := &fakeS3{objects: map[string]int64{
		"protocaas-outputs/j1/sorting": 10,
		"protocaas-outputs/j1/log":     3,
		"protocaas-outputs/j2/sorting": 7,
	}}
	srv := httptest.NewServer(s3)
	defer srv.Close()

	u, _ := ParseURI("wasabi://b?region=us-east-1")
	b, err := connect(u, Credentials{AccessKeyID: "AK", SecretAccessKey: "SK"}, strings.TrimPrefix(srv.URL, "http://"), "us-east-1", false)
	require.NoError(t, err)

	objs, err := b.List(context.Background(), "protocaas-outputs/", 1)
	require.NoError(t, err)
	require.Len(t, objs, 1)

	n, err := b.DeletePrefix(context.Background(), "protocaas-outputs/j1/")
	require.NoError(t, err)
	require.Equal(t, 2, n)
	require.ElementsMatch(t, []string{"protocaas-outputs/j1/sorting", "protocaas-outputs/j1/log"}, s3.deleted)

	s3.mu.Lock()
	require.Contains(t, s3.objects, "protocaas-outputs/j2/sorting")
	s3.mu.Unlock()

	_, err = b.DeletePrefix(context.Background(), "")
	require.Error(t, err)
}
