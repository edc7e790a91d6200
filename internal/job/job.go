// Package job is the job lifecycle engine: creation with output
// collision clearing, the processor-facing status state machine, and
// output materialization on completion.
package job

import (
	"context"
	"crypto/subtle"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/protocaas/protocaas/internal/file"
	"github.com/protocaas/protocaas/internal/models"
	"github.com/protocaas/protocaas/internal/permission"
	"github.com/protocaas/protocaas/internal/pubsub"
	"github.com/protocaas/protocaas/internal/store"
	"github.com/protocaas/protocaas/pkg/log"
)

var (
	ErrInvalidJobPrivateKey = errors.New("invalid job private key")
	ErrOutputNotFound       = errors.New("output not found")
	ErrBucketNotConfigured  = errors.New("output bucket is not configured")
)

const (
	// OutputPrefix is the bucket prefix under which job outputs are
	// uploaded, one directory per job.
	OutputPrefix = "protocaas-outputs"
	// JobIDToken in an output file name is replaced with the new job's id.
	JobIDToken = "${job-id}"

	jobIDLength         = 8
	jobPrivateKeyLength = 32
)

// UploadSigner mints signed PUT URLs for output objects.
type UploadSigner interface {
	SignedPutURL(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// ObjectRemover deletes every stored object under a key prefix.
type ObjectRemover interface {
	DeletePrefix(ctx context.Context, prefix string) (int, error)
}

// Outputs locates job outputs in the output bucket.
type Outputs struct {
	// BaseURL is the public URL of the bucket root.
	BaseURL string
	Signer  UploadSigner
	Remover ObjectRemover
	TTL     time.Duration
}

// RemoveObjects deletes the uploaded output objects of each job. The
// job records are already gone by then, so failures are only logged.
func (o Outputs) RemoveObjects(ctx context.Context, jobIDs ...string) {
	if o.Remover == nil {
		return
	}
	for _, id := range jobIDs {
		n, err := o.Remover.DeletePrefix(ctx, OutputPrefix+"/"+id+"/")
		if err != nil {
			log.Warn("failed to remove job output objects", "job_id", id, "error", err)
			continue
		}
		if n > 0 {
			log.Info("removed job output objects", "job_id", id, "count", n)
		}
	}
}

// Key is the object key of a job output.
func (o Outputs) Key(jobID, outputName string) string {
	return OutputPrefix + "/" + jobID + "/" + outputName
}

// URL is the public URL a completed output is read from.
func (o Outputs) URL(jobID, outputName string) (string, error) {
	if o.BaseURL == "" {
		return "", errors.Wrap(ErrBucketNotConfigured, "no output bucket base URL")
	}
	return strings.TrimSuffix(o.BaseURL, "/") + "/" + o.Key(jobID, outputName), nil
}

type Config struct {
	Store     *store.Store
	Evaluator permission.Evaluator
	Publisher pubsub.Publisher
	Outputs   Outputs
	Prober    file.Prober
	Now       func() time.Time
}

type Engine struct {
	store     *store.Store
	evaluator permission.Evaluator
	publisher pubsub.Publisher
	outputs   Outputs
	prober    file.Prober
	now       func() time.Time
}

func NewEngine(cfg Config) *Engine {
	e := &Engine{
		store:     cfg.Store,
		evaluator: cfg.Evaluator,
		publisher: cfg.Publisher,
		outputs:   cfg.Outputs,
		prober:    cfg.Prober,
		now:       cfg.Now,
	}
	if e.publisher == nil {
		e.publisher = pubsub.Noop{}
	}
	if e.now == nil {
		e.now = time.Now
	}
	if e.outputs.TTL <= 0 {
		e.outputs.TTL = 30 * time.Minute
	}
	return e
}

// authorized loads a job and checks the presented capability secret.
func (e *Engine) authorized(ctx context.Context, jobID, jobPrivateKey string) (*models.Job, error) {
	j, err := e.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if subtle.ConstantTimeCompare([]byte(j.JobPrivateKey), []byte(jobPrivateKey)) != 1 {
		return nil, ErrInvalidJobPrivateKey
	}
	return j, nil
}

func (e *Engine) timestamp() float64 {
	return models.Timestamp(e.now())
}
