package rpc

import (
	"context"

	"github.com/protocaas/protocaas/internal/file"
	"github.com/protocaas/protocaas/internal/identity"
	"github.com/protocaas/protocaas/internal/job"
	"github.com/protocaas/protocaas/internal/models"
)

type workspaceRequest struct {
	WorkspaceID string `json:"workspaceId"`
}

type nameRequest struct {
	Name string `json:"name"`
}

type createProjectRequest struct {
	WorkspaceID string `json:"workspaceId"`
	Name        string `json:"name"`
}

type projectRequest struct {
	WorkspaceID string `json:"workspaceId"`
	ProjectID   string `json:"projectId"`
}

type propertyRequest struct {
	WorkspaceID string `json:"workspaceId"`
	ProjectID   string `json:"projectId"`
	JobID       string `json:"jobId"`
	Property    string `json:"property"`
	Value       any    `json:"value"`
}

type workspaceUsersRequest struct {
	WorkspaceID string                 `json:"workspaceId"`
	Users       []models.WorkspaceUser `json:"users"`
}

type fileRequest struct {
	WorkspaceID string `json:"workspaceId"`
	ProjectID   string `json:"projectId"`
	FileName    string `json:"fileName"`
	NewFileName string `json:"newFileName"`
}

type dataBlobRequest struct {
	WorkspaceID string `json:"workspaceId"`
	ProjectID   string `json:"projectId"`
	SHA1        string `json:"sha1"`
}

type computeResourceRequest struct {
	ComputeResourceID string                      `json:"computeResourceId"`
	ResourceCode      string                      `json:"resourceCode"`
	Name              string                      `json:"name"`
	ProjectID         string                      `json:"projectId"`
	Apps              []models.ComputeResourceApp `json:"apps"`
}

type jobRequest struct {
	WorkspaceID string `json:"workspaceId"`
	JobID       string `json:"jobId"`
}

// userArms serve envelope payloads; the principal was resolved from the
// envelope before routing.
func (d *Dispatcher) userArms() map[string]handler {
	return map[string]handler{
		// workspaces
		"getWorkspaces": arm(func(ctx context.Context, p identity.Principal, _ struct{}) (Response, error) {
			ws, err := d.ws.List(ctx, p)
			if err != nil {
				return nil, err
			}
			return Response{"workspaces": ws}, nil
		}),
		"getWorkspace": arm(func(ctx context.Context, p identity.Principal, req workspaceRequest) (Response, error) {
			ws, err := d.ws.Get(ctx, p, req.WorkspaceID)
			if err != nil {
				return nil, err
			}
			return Response{"workspace": ws}, nil
		}),
		"createWorkspace": arm(func(ctx context.Context, p identity.Principal, req nameRequest) (Response, error) {
			id, err := d.ws.Create(ctx, p, req.Name)
			if err != nil {
				return nil, err
			}
			return Response{"workspaceId": id}, nil
		}),
		"deleteWorkspace": arm(func(ctx context.Context, p identity.Principal, req workspaceRequest) (Response, error) {
			return nil, d.ws.Delete(ctx, p, req.WorkspaceID)
		}),
		"setWorkspaceUsers": arm(func(ctx context.Context, p identity.Principal, req workspaceUsersRequest) (Response, error) {
			return nil, d.ws.SetUsers(ctx, p, req.WorkspaceID, req.Users)
		}),
		"setWorkspaceProperty": arm(func(ctx context.Context, p identity.Principal, req propertyRequest) (Response, error) {
			return nil, d.ws.SetProperty(ctx, p, req.WorkspaceID, req.Property, req.Value)
		}),

		// projects
		"getProjects": arm(func(ctx context.Context, p identity.Principal, req workspaceRequest) (Response, error) {
			projects, err := d.ws.ListProjects(ctx, p, req.WorkspaceID)
			if err != nil {
				return nil, err
			}
			return Response{"projects": projects}, nil
		}),
		"getProject": arm(func(ctx context.Context, p identity.Principal, req projectRequest) (Response, error) {
			project, err := d.ws.GetProject(ctx, p, req.ProjectID)
			if err != nil {
				return nil, err
			}
			return Response{"project": project}, nil
		}),
		"createProject": arm(func(ctx context.Context, p identity.Principal, req createProjectRequest) (Response, error) {
			id, err := d.ws.CreateProject(ctx, p, req.WorkspaceID, req.Name)
			if err != nil {
				return nil, err
			}
			return Response{"projectId": id}, nil
		}),
		"deleteProject": arm(func(ctx context.Context, p identity.Principal, req projectRequest) (Response, error) {
			return nil, d.ws.DeleteProject(ctx, p, req.WorkspaceID, req.ProjectID)
		}),
		"setProjectProperty": arm(func(ctx context.Context, p identity.Principal, req propertyRequest) (Response, error) {
			return nil, d.ws.SetProjectProperty(ctx, p, req.ProjectID, req.Property, req.Value)
		}),

		// files
		"getFiles": arm(func(ctx context.Context, p identity.Principal, req projectRequest) (Response, error) {
			files, err := d.files.List(ctx, p, req.ProjectID)
			if err != nil {
				return nil, err
			}
			return Response{"files": files}, nil
		}),
		"getFile": arm(func(ctx context.Context, p identity.Principal, req fileRequest) (Response, error) {
			f, err := d.files.Get(ctx, p, req.ProjectID, req.FileName)
			if err != nil {
				return nil, err
			}
			return Response{"file": f}, nil
		}),
		"setFile": arm(func(ctx context.Context, p identity.Principal, req file.SetRequest) (Response, error) {
			id, err := d.files.Set(ctx, p, req)
			if err != nil {
				return nil, err
			}
			return Response{"fileId": id}, nil
		}),
		"deleteFile": arm(func(ctx context.Context, p identity.Principal, req fileRequest) (Response, error) {
			return nil, d.files.Delete(ctx, p, req.WorkspaceID, req.ProjectID, req.FileName)
		}),
		"duplicateFile": arm(func(ctx context.Context, p identity.Principal, req fileRequest) (Response, error) {
			id, err := d.files.Duplicate(ctx, p, req.WorkspaceID, req.ProjectID, req.FileName, req.NewFileName)
			if err != nil {
				return nil, err
			}
			return Response{"fileId": id}, nil
		}),
		"renameFile": arm(func(ctx context.Context, p identity.Principal, req fileRequest) (Response, error) {
			return nil, d.files.Rename(ctx, p, req.WorkspaceID, req.ProjectID, req.FileName, req.NewFileName)
		}),
		"getDataBlob": arm(func(ctx context.Context, p identity.Principal, req dataBlobRequest) (Response, error) {
			content, err := d.files.GetDataBlob(ctx, p, req.WorkspaceID, req.ProjectID, req.SHA1)
			if err != nil {
				return nil, err
			}
			return Response{"content": content}, nil
		}),
		"fetchFileText": arm(func(ctx context.Context, p identity.Principal, req fileRequest) (Response, error) {
			text, err := d.files.FetchText(ctx, p, req.ProjectID, req.FileName)
			if err != nil {
				return nil, err
			}
			return Response{"text": text}, nil
		}),

		// compute resources
		"getComputeResources": arm(func(ctx context.Context, p identity.Principal, _ struct{}) (Response, error) {
			crs, err := d.crs.List(ctx, p)
			if err != nil {
				return nil, err
			}
			return Response{"computeResources": crs}, nil
		}),
		"getComputeResource": arm(func(ctx context.Context, _ identity.Principal, req computeResourceRequest) (Response, error) {
			cr, err := d.crs.Get(ctx, req.ComputeResourceID)
			if err != nil {
				return nil, err
			}
			return Response{"computeResource": cr}, nil
		}),
		"registerComputeResource": arm(func(ctx context.Context, p identity.Principal, req computeResourceRequest) (Response, error) {
			return nil, d.crs.Register(ctx, p, req.ComputeResourceID, req.ResourceCode, req.Name)
		}),
		"deleteComputeResource": arm(func(ctx context.Context, p identity.Principal, req computeResourceRequest) (Response, error) {
			return nil, d.crs.Delete(ctx, p, req.ComputeResourceID)
		}),
		"setComputeResourceApps": arm(func(ctx context.Context, p identity.Principal, req computeResourceRequest) (Response, error) {
			return nil, d.crs.SetApps(ctx, p, req.ComputeResourceID, req.Apps)
		}),
		"getActiveComputeResourceNodes": arm(func(ctx context.Context, p identity.Principal, req computeResourceRequest) (Response, error) {
			nodes, err := d.crs.ActiveNodes(ctx, p, req.ComputeResourceID)
			if err != nil {
				return nil, err
			}
			return Response{"activeComputeResourceNodes": nodes}, nil
		}),
		"getPubsubSubscription": arm(func(ctx context.Context, p identity.Principal, req computeResourceRequest) (Response, error) {
			sub, err := d.crs.UserSubscription(ctx, p, req.ComputeResourceID, req.ProjectID)
			if err != nil {
				return nil, err
			}
			return Response{"subscription": sub}, nil
		}),

		// jobs
		"createJob": arm(func(ctx context.Context, p identity.Principal, req job.CreateRequest) (Response, error) {
			id, err := d.jobs.Create(ctx, p, req)
			if err != nil {
				return nil, err
			}
			return Response{"jobId": id}, nil
		}),
		"deleteJob": arm(func(ctx context.Context, p identity.Principal, req jobRequest) (Response, error) {
			return nil, d.jobs.Delete(ctx, p, req.WorkspaceID, req.JobID)
		}),
		"getJob": arm(func(ctx context.Context, p identity.Principal, req jobRequest) (Response, error) {
			j, err := d.jobs.Get(ctx, p, req.JobID)
			if err != nil {
				return nil, err
			}
			return Response{"job": j}, nil
		}),
		"getJobs": arm(func(ctx context.Context, p identity.Principal, req job.ListRequest) (Response, error) {
			jobs, err := d.jobs.List(ctx, p, req)
			if err != nil {
				return nil, err
			}
			return Response{"jobs": jobs}, nil
		}),
		"setJobProperty": arm(func(ctx context.Context, p identity.Principal, req propertyRequest) (Response, error) {
			return nil, d.jobs.SetProperty(ctx, p, req.WorkspaceID, req.JobID, req.Property, req.Value)
		}),
	}
}

type loadProjectRequest struct {
	ProjectID string `json:"projectId"`
}

// clientArms are anonymous reads of publicly readable data.
func (d *Dispatcher) clientArms() map[string]handler {
	return map[string]handler{
		"client.loadProject": arm(func(ctx context.Context, _ identity.Principal, req loadProjectRequest) (Response, error) {
			contents, err := d.ws.LoadProject(ctx, identity.Principal{}, req.ProjectID)
			if err != nil {
				return nil, err
			}
			return Response{"project": contents.Project, "files": contents.Files, "jobs": contents.Jobs}, nil
		}),
	}
}
