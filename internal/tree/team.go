package tree

import (
	"context"
	"fmt"

	"binarymlm/internal/models"
)

// Team lists the members under userID on side in breadth-first order, level by
// level. maxDepth <= 0 means unlimited; depth 1 is the direct child.
func (e *Engine) Team(ctx context.Context, userID uint, side models.Side, maxDepth int) ([]models.Member, error) {
	if !side.Valid() {
		return nil, ErrInvalidSide
	}
	root, err := e.repo.FetchNode(ctx, userID)
	if err != nil {
		return nil, err
	}
	if root == nil {
		return nil, fmt.Errorf("%w: %d", ErrNotPlaced, userID)
	}
	start := root.Child(side)
	if start == nil {
		return nil, nil
	}

	var order []uint
	level := []uint{*start}
	for depth := 1; len(level) > 0 && (maxDepth <= 0 || depth <= maxDepth); depth++ {
		nodes, err := e.repo.FetchNodes(ctx, level)
		if err != nil {
			return nil, err
		}
		var next []uint
		for _, id := range level {
			node, ok := nodes[id]
			if !ok {
				continue
			}
			order = append(order, id)
			if node.LeftChild != nil {
				next = append(next, *node.LeftChild)
			}
			if node.RightChild != nil {
				next = append(next, *node.RightChild)
			}
		}
		level = next
	}
	return e.members(ctx, order)
}

func (e *Engine) LeftTeam(ctx context.Context, userID uint, maxDepth int) ([]models.Member, error) {
	return e.Team(ctx, userID, models.SideLeft, maxDepth)
}

func (e *Engine) RightTeam(ctx context.Context, userID uint, maxDepth int) ([]models.Member, error) {
	return e.Team(ctx, userID, models.SideRight, maxDepth)
}

// IsDescendant reports whether child sits anywhere below ancestor.
func (e *Engine) IsDescendant(ctx context.Context, ancestor, child uint) (bool, error) {
	if ancestor == child {
		return false, nil
	}
	seen := make(map[uint]bool)
	id := child
	for !seen[id] {
		seen[id] = true
		node, err := e.repo.FetchNode(ctx, id)
		if err != nil {
			return false, err
		}
		if node == nil || node.IsRoot() {
			return false, nil
		}
		if node.ParentID == ancestor {
			return true, nil
		}
		id = node.ParentID
	}
	return false, fmt.Errorf("%w: cycle at %d", ErrBrokenChain, id)
}

func (e *Engine) members(ctx context.Context, ids []uint) ([]models.Member, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var rows []models.Member
	if err := e.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	byID := make(map[uint]models.Member, len(rows))
	for _, m := range rows {
		byID[m.ID] = m
	}
	out := make([]models.Member, 0, len(ids))
	for _, id := range ids {
		if m, ok := byID[id]; ok {
			out = append(out, m)
		}
	}
	return out, nil
}
