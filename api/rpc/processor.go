package rpc

import (
	"context"

	"github.com/protocaas/protocaas/internal/identity"
	"github.com/protocaas/protocaas/internal/job"
)

type processorJobRequest struct {
	JobID         string `json:"jobId"`
	JobPrivateKey string `json:"jobPrivateKey"`
}

type consoleOutputRequest struct {
	JobID         string `json:"jobId"`
	JobPrivateKey string `json:"jobPrivateKey"`
	ConsoleOutput string `json:"consoleOutput"`
}

type uploadURLRequest struct {
	JobID         string `json:"jobId"`
	JobPrivateKey string `json:"jobPrivateKey"`
	OutputName    string `json:"outputName"`
}

// processorArms authenticate with the job private key alone.
func (d *Dispatcher) processorArms() map[string]handler {
	return map[string]handler{
		"processor.getJob": arm(func(ctx context.Context, _ identity.Principal, req processorJobRequest) (Response, error) {
			j, err := d.jobs.ProcessorJob(ctx, req.JobID, req.JobPrivateKey)
			if err != nil {
				return nil, err
			}
			return Response{
				"jobId":         j.JobID,
				"status":        j.Status,
				"processorName": j.ProcessorName,
				"inputs":        j.Inputs,
				"outputs":       j.Outputs,
				"parameters":    j.Parameters,
			}, nil
		}),
		"processor.setJobStatus": arm(func(ctx context.Context, _ identity.Principal, req job.StatusRequest) (Response, error) {
			res, err := d.jobs.SetStatus(ctx, req)
			if err != nil {
				return nil, err
			}
			resp := Response{"success": res.Success}
			if !res.Success {
				resp["error"] = res.Error
			}
			return resp, nil
		}),
		"processor.setJobConsoleOutput": arm(func(ctx context.Context, _ identity.Principal, req consoleOutputRequest) (Response, error) {
			return nil, d.jobs.SetConsoleOutput(ctx, req.JobID, req.JobPrivateKey, req.ConsoleOutput)
		}),
		"processor.getOutputUploadUrl": arm(func(ctx context.Context, _ identity.Principal, req uploadURLRequest) (Response, error) {
			url, err := d.jobs.OutputUploadURL(ctx, req.JobID, req.JobPrivateKey, req.OutputName)
			if err != nil {
				return nil, err
			}
			return Response{"uploadUrl": url}, nil
		}),
	}
}
