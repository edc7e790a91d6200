package job

import (
	"context"

	"github.com/pkg/errors"
	"github.com/protocaas/protocaas/internal/models"
)

type ProcessorInput struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

type ProcessorOutput struct {
	Name string `json:"name"`
}

type ProcessorParameter struct {
	Name  string `json:"name"`
	Value any    `json:"value"`
}

// ProcessorJob is the execution view of a job: inputs resolved to URLs,
// outputs and parameters reduced to what a processor needs.
type ProcessorJob struct {
	JobID         string               `json:"jobId"`
	Status        models.JobStatus     `json:"status"`
	ProcessorName string               `json:"processorName"`
	Inputs        []ProcessorInput     `json:"inputs"`
	Outputs       []ProcessorOutput    `json:"outputs"`
	Parameters    []ProcessorParameter `json:"parameters"`
}

func (e *Engine) ProcessorJob(ctx context.Context, jobID, jobPrivateKey string) (*ProcessorJob, error) {
	j, err := e.authorized(ctx, jobID, jobPrivateKey)
	if err != nil {
		return nil, err
	}

	view := &ProcessorJob{
		JobID:         j.JobID,
		Status:        j.Status,
		ProcessorName: j.ProcessorName,
		Inputs:        make([]ProcessorInput, 0, len(j.InputFiles)),
		Outputs:       make([]ProcessorOutput, 0, len(j.OutputFiles)),
		Parameters:    make([]ProcessorParameter, 0, len(j.InputParameters)),
	}
	for _, in := range j.InputFiles {
		f, err := e.store.FindFile(ctx, j.ProjectID, in.FileName)
		if err != nil {
			return nil, err
		}
		if f == nil {
			return nil, errors.Errorf("project file not found: %s", in.FileName)
		}
		kind, url, err := models.ParseContent(f.Content)
		if err != nil {
			return nil, err
		}
		if kind != models.ContentURL {
			return nil, errors.Errorf("project file %s is not a URL", in.FileName)
		}
		view.Inputs = append(view.Inputs, ProcessorInput{Name: in.Name, URL: url})
	}
	for _, out := range j.OutputFiles {
		view.Outputs = append(view.Outputs, ProcessorOutput{Name: out.Name})
	}
	for _, p := range j.InputParameters {
		view.Parameters = append(view.Parameters, ProcessorParameter{Name: p.Name, Value: p.Value})
	}
	return view, nil
}

// SetConsoleOutput overwrites the job's console output.
func (e *Engine) SetConsoleOutput(ctx context.Context, jobID, jobPrivateKey, output string) error {
	if _, err := e.authorized(ctx, jobID, jobPrivateKey); err != nil {
		return err
	}
	return e.store.UpdateJob(ctx, jobID, map[string]any{"console_output": output})
}

// OutputUploadURL mints a signed PUT URL for one declared output.
func (e *Engine) OutputUploadURL(ctx context.Context, jobID, jobPrivateKey, outputName string) (string, error) {
	j, err := e.authorized(ctx, jobID, jobPrivateKey)
	if err != nil {
		return "", err
	}
	declared := false
	for _, out := range j.OutputFiles {
		if out.Name == outputName {
			declared = true
			break
		}
	}
	if !declared {
		return "", errors.Wrap(ErrOutputNotFound, outputName)
	}
	if e.outputs.Signer == nil {
		return "", ErrBucketNotConfigured
	}
	url, err := e.outputs.Signer.SignedPutURL(ctx, e.outputs.Key(j.JobID, outputName), e.outputs.TTL)
	return url, errors.Wrapf(err, "sign upload of %s for job %s", outputName, j.JobID)
}
