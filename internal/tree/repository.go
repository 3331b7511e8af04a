package tree

import (
	"context"

	"gorm.io/gorm"

	"binarymlm/internal/models"
)

// Repository reads tree nodes and member stats. Absent rows are returned as nil
// without an error.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx binds the repository to an open transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

func (r *Repository) FetchNode(ctx context.Context, id uint) (*models.TreeNode, error) {
	var node models.TreeNode
	res := r.db.WithContext(ctx).Where("id = ?", id).Limit(1).Find(&node)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}
	return &node, nil
}

// FetchNodes loads a batch of nodes keyed by id.
func (r *Repository) FetchNodes(ctx context.Context, ids []uint) (map[uint]*models.TreeNode, error) {
	out := make(map[uint]*models.TreeNode, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var nodes []models.TreeNode
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&nodes).Error; err != nil {
		return nil, err
	}
	for i := range nodes {
		out[nodes[i].ID] = &nodes[i]
	}
	return out, nil
}

func (r *Repository) FetchStats(ctx context.Context, id uint) (*models.MemberStats, error) {
	var stats models.MemberStats
	res := r.db.WithContext(ctx).Where("id = ?", id).Limit(1).Find(&stats)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}
	return &stats, nil
}

func (r *Repository) FetchMember(ctx context.Context, id uint) (*models.Member, error) {
	var m models.Member
	res := r.db.WithContext(ctx).Where("id = ?", id).Limit(1).Find(&m)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}
	return &m, nil
}
