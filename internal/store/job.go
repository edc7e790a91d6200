package store

import (
	"context"

	"github.com/pkg/errors"
	"github.com/protocaas/protocaas/internal/models"
)

// JobFilter selects jobs. Zero fields do not constrain.
type JobFilter struct {
	ProjectID         string
	ComputeResourceID string
	BatchID           string
	Statuses          []models.JobStatus
}

func (s *Store) GetJob(ctx context.Context, id string) (*models.Job, error) {
	return first[models.Job](s.conn(ctx).Where("job_id = ?", id), "job", id)
}

func (s *Store) ListJobs(ctx context.Context, f JobFilter) ([]models.Job, error) {
	q := s.conn(ctx)
	if f.ProjectID != "" {
		q = q.Where("project_id = ?", f.ProjectID)
	}
	if f.ComputeResourceID != "" {
		q = q.Where("compute_resource_id = ?", f.ComputeResourceID)
	}
	if f.BatchID != "" {
		q = q.Where("batch_id = ?", f.BatchID)
	}
	if len(f.Statuses) > 0 {
		q = q.Where("status IN ?", f.Statuses)
	}

	var out []models.Job
	if err := q.Order("timestamp_created ASC").Find(&out).Error; err != nil {
		return nil, errors.Wrap(err, "list jobs")
	}
	return out, validateAll("job", out)
}

func (s *Store) CreateJob(ctx context.Context, j *models.Job) error {
	if err := checkValid("job", j); err != nil {
		return err
	}
	return errors.Wrap(s.conn(ctx).Create(j).Error, "create job")
}

func (s *Store) UpdateJob(ctx context.Context, id string, updates map[string]any) error {
	res := s.conn(ctx).Model(&models.Job{}).Where("job_id = ?", id).Updates(updates)
	return checkWrite(res, "job", id)
}

// TransitionJob applies updates only while the job is still in status
// from. Legality check and write are one statement, so two callers
// racing on the same job cannot both succeed; the loser gets
// ErrConflict.
func (s *Store) TransitionJob(ctx context.Context, id string, from models.JobStatus, updates map[string]any) error {
	return retryOnContention(ctx, func() error {
		res := s.conn(ctx).Model(&models.Job{}).
			Where("job_id = ? AND status = ?", id, from).
			Updates(updates)
		if res.Error != nil {
			return errors.Wrapf(res.Error, "transition job %s", id)
		}
		if res.RowsAffected == 0 {
			return errors.Wrapf(ErrConflict, "job %s is no longer %s", id, from)
		}
		return nil
	})
}

func (s *Store) DeleteJob(ctx context.Context, id string) error {
	res := s.conn(ctx).Where("job_id = ?", id).Delete(&models.Job{})
	return checkWrite(res, "job", id)
}

// DeleteJobs removes every listed job; missing ids are ignored.
func (s *Store) DeleteJobs(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	err := s.conn(ctx).Where("job_id IN ?", ids).Delete(&models.Job{}).Error
	return errors.Wrap(err, "delete jobs")
}
