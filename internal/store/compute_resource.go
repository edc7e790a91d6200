package store

import (
	"context"

	"github.com/pkg/errors"
	"github.com/protocaas/protocaas/internal/models"
	"gorm.io/gorm/clause"
)

func (s *Store) GetComputeResource(ctx context.Context, id string) (*models.ComputeResource, error) {
	return first[models.ComputeResource](s.conn(ctx).Where("compute_resource_id = ?", id), "compute resource", id)
}

func (s *Store) ListComputeResources(ctx context.Context, ownerID string) ([]models.ComputeResource, error) {
	var out []models.ComputeResource
	err := s.conn(ctx).
		Where("owner_id = ?", ownerID).
		Order("timestamp_created ASC").
		Find(&out).Error
	if err != nil {
		return nil, errors.Wrap(err, "list compute resources")
	}
	return out, validateAll("compute resource", out)
}

// SaveComputeResource inserts cr or replaces the existing row.
func (s *Store) SaveComputeResource(ctx context.Context, cr *models.ComputeResource) error {
	if err := checkValid("compute resource", cr); err != nil {
		return err
	}
	err := s.conn(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "compute_resource_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"owner_id", "name", "timestamp_created"}),
	}).Create(cr).Error
	return errors.Wrap(err, "save compute resource")
}

func (s *Store) UpdateComputeResource(ctx context.Context, id string, updates map[string]any) error {
	res := s.conn(ctx).Model(&models.ComputeResource{}).Where("compute_resource_id = ?", id).Updates(updates)
	return checkWrite(res, "compute resource", id)
}

func (s *Store) DeleteComputeResource(ctx context.Context, id string) error {
	res := s.conn(ctx).Where("compute_resource_id = ?", id).Delete(&models.ComputeResource{})
	if err := checkWrite(res, "compute resource", id); err != nil {
		return err
	}
	err := s.conn(ctx).Where("compute_resource_id = ?", id).Delete(&models.ComputeResourceNode{}).Error
	return errors.Wrap(err, "delete compute resource nodes")
}

// TouchNode upserts the liveness record of a polling node seen at lastActive.
func (s *Store) TouchNode(ctx context.Context, computeResourceID, nodeID, nodeName string, lastActive float64) error {
	node := &models.ComputeResourceNode{
		ComputeResourceID:   computeResourceID,
		NodeID:              nodeID,
		NodeName:            nodeName,
		TimestampLastActive: lastActive,
	}
	if err := checkValid("compute resource node", node); err != nil {
		return err
	}
	return retryOnContention(ctx, func() error {
		err := s.conn(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "compute_resource_id"}, {Name: "node_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"node_name", "timestamp_last_active"}),
		}).Create(node).Error
		return errors.Wrap(err, "touch compute resource node")
	})
}

// ListNodes returns the nodes of a compute resource active since the
// given timestamp, most recent first.
func (s *Store) ListNodes(ctx context.Context, computeResourceID string, since float64) ([]models.ComputeResourceNode, error) {
	var out []models.ComputeResourceNode
	err := s.conn(ctx).
		Where("compute_resource_id = ? AND timestamp_last_active >= ?", computeResourceID, since).
		Order("timestamp_last_active DESC").
		Find(&out).Error
	if err != nil {
		return nil, errors.Wrap(err, "list compute resource nodes")
	}
	return out, validateAll("compute resource node", out)
}

// PruneNodes deletes liveness records last active before cutoff.
func (s *Store) PruneNodes(ctx context.Context, cutoff float64) (int64, error) {
	res := s.conn(ctx).Where("timestamp_last_active < ?", cutoff).Delete(&models.ComputeResourceNode{})
	if res.Error != nil {
		return 0, errors.Wrap(res.Error, "prune compute resource nodes")
	}
	return res.RowsAffected, nil
}
