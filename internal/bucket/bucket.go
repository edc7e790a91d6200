// Package bucket is the object-storage abstraction for file bytes. A
// bucket is addressed by a URI such as wasabi://name?region=us-east-1
// and reached through the S3 API of its provider.
package bucket

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/pkg/errors"
)

// Service names a storage provider.
type Service string

const (
	AWS    Service = "aws"
	Wasabi Service = "wasabi"
	R2     Service = "r2"
	Google Service = "google"
)

// URI is a parsed bucket URI.
type URI struct {
	Service Service
	Bucket  string
	Region  string
	Path    string
}

// ParseURI parses "<scheme>://<bucket>[/<path>][?region=<region>]".
// The schemes s3 and gs are accepted as aliases of aws and google.
func ParseURI(raw string) (URI, error) {
	head, query, _ := strings.Cut(raw, "?")
	scheme, rest, ok := strings.Cut(head, "://")
	if !ok {
		return URI{}, errors.Errorf("bucket uri %q has no scheme", raw)
	}

	var svc Service
	switch scheme {
	case "s3", "aws":
		svc = AWS
	case "gs", "google":
		svc = Google
	case "wasabi":
		svc = Wasabi
	case "r2":
		svc = R2
	default:
		return URI{}, errors.Errorf("unsupported bucket service: %s for uri %s", scheme, raw)
	}

	name, path, _ := strings.Cut(rest, "/")
	if name == "" {
		return URI{}, errors.Errorf("bucket uri %q has no bucket name", raw)
	}

	u := URI{Service: svc, Bucket: name, Path: path}
	if values, err := url.ParseQuery(query); err == nil {
		u.Region = values.Get("region")
	}
	return u, nil
}

// ObjectURL returns the public URL of key. R2 buckets have no
// canonical public host, so callers must configure a base URL.
func (u URI) ObjectURL(key string) (string, error) {
	var base string
	switch u.Service {
	case AWS:
		base = "https://" + u.Bucket + ".s3.amazonaws.com"
	case Wasabi:
		base = "https://s3." + u.regionOr("us-east-1") + ".wasabisys.com/" + u.Bucket
	case Google:
		base = "https://storage.googleapis.com/" + u.Bucket
	default:
		return "", errors.Errorf("no public object url for %s buckets", u.Service)
	}
	return base + "/" + key, nil
}

func (u URI) regionOr(def string) string {
	if u.Region == "" {
		return def
	}
	return u.Region
}

// Credentials is the JSON credential document for a bucket.
type Credentials struct {
	AccessKeyID     string `json:"accessKeyId"`
	SecretAccessKey string `json:"secretAccessKey"`
	Endpoint        string `json:"endpoint,omitempty"`
}

func ParseCredentials(raw string) (Credentials, error) {
	var c Credentials
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		return c, errors.Wrap(err, "decode bucket credentials")
	}
	if c.AccessKeyID == "" {
		return c, errors.New("missing in credentials: accessKeyId")
	}
	if c.SecretAccessKey == "" {
		return c, errors.New("missing in credentials: secretAccessKey")
	}
	return c, nil
}

// ObjectInfo describes a stored object.
type ObjectInfo struct {
	Key          string
	Size         int64
	ETag         string
	LastModified time.Time
}

// Bucket is an S3-compatible bucket.
type Bucket struct {
	uri    URI
	client *minio.Client
}

// New connects to the bucket described by uri.
func New(uri URI, creds Credentials) (*Bucket, error) {
	endpoint, region, err := endpointFor(uri, creds)
	if err != nil {
		return nil, err
	}
	return connect(uri, creds, endpoint, region, true)
}

func connect(uri URI, creds Credentials, endpoint, region string, secure bool) (*Bucket, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:        credentials.NewStaticV4(creds.AccessKeyID, creds.SecretAccessKey, ""),
		Secure:       secure,
		Region:       region,
		BucketLookup: minio.BucketLookupPath,
		Transport:    newTransport(),
	})
	if err != nil {
		return nil, errors.Wrap(err, "create s3 client")
	}
	return &Bucket{uri: uri, client: client}, nil
}

func endpointFor(uri URI, creds Credentials) (string, string, error) {
	switch uri.Service {
	case AWS:
		return "s3.amazonaws.com", uri.regionOr("us-east-1"), nil
	case Wasabi:
		region := uri.regionOr("us-east-1")
		return "s3." + region + ".wasabisys.com", region, nil
	case R2:
		if creds.Endpoint == "" {
			return "", "", errors.New("no endpoint in credentials for r2")
		}
		return hostOf(creds.Endpoint), "auto", nil
	case Google:
		return "storage.googleapis.com", uri.regionOr("auto"), nil
	}
	return "", "", errors.Errorf("unsupported bucket service: %s", uri.Service)
}

func hostOf(endpoint string) string {
	if u, err := url.Parse(endpoint); err == nil && u.Host != "" {
		return u.Host
	}
	return strings.TrimSuffix(endpoint, "/")
}

func newTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          64,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
}

func (b *Bucket) Delete(ctx context.Context, key string) error {
	err := b.client.RemoveObject(ctx, b.uri.Bucket, key, minio.RemoveObjectOptions{})
	return errors.Wrap(err, "problem deleting object")
}

// List returns up to limit objects under prefix; limit <= 0 lists all.
func (b *Bucket) List(ctx context.Context, prefix string, limit int) ([]ObjectInfo, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var out []ObjectInfo
	for obj := range b.client.ListObjects(ctx, b.uri.Bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if obj.Err != nil {
			return nil, errors.Wrap(obj.Err, "list objects")
		}
		out = append(out, ObjectInfo{Key: obj.Key, Size: obj.Size, ETag: obj.ETag, LastModified: obj.LastModified})
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// DeletePrefix removes every object under prefix and returns how many
// were deleted.
func (b *Bucket) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	if prefix == "" {
		return 0, errors.New("refusing to delete with an empty prefix")
	}
	objs, err := b.List(ctx, prefix, 0)
	if err != nil {
		return 0, err
	}
	for i, obj := range objs {
		if err := b.Delete(ctx, obj.Key); err != nil {
			return i, errors.Wrapf(err, "delete %s", obj.Key)
		}
	}
	return len(objs), nil
}

func (b *Bucket) SignedPutURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	u, err := b.client.PresignedPutObject(ctx, b.uri.Bucket, key, ttl)
	if err != nil {
		return "", errors.Wrap(err, "error getting signed url")
	}
	return u.String(), nil
}
