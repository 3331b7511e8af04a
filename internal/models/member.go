package models

import (
	"time"
)

type Side string

const (
	SideLeft  Side = "left"
	SideRight Side = "right"
)

func (s Side) Valid() bool {
	return s == SideLeft || s == SideRight
}

const (
	RoleMember = "member"
	RoleAdmin  = "admin"
)

type Member struct {
	ID        uint   `gorm:"primaryKey" json:"id"`
	Email     string `gorm:"size:255;index" json:"email"`
	Name      string `gorm:"size:255" json:"name"`
	SponsorID uint   `gorm:"not null;index" json:"sponsor_id"`
	Side      Side   `gorm:"size:8;not null" json:"side"`
	Active    bool   `gorm:"not null" json:"active"`
	Role      string `gorm:"size:32;default:'member'" json:"role"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TreeNode is the member's position in the binary tree. The root is its own parent.
type TreeNode struct {
	ID         uint  `gorm:"primaryKey;autoIncrement:false"`
	LeftChild  *uint `gorm:"index"`
	RightChild *uint `gorm:"index"`
	ParentID   uint  `gorm:"not null;index"`
	SponsorID  uint  `gorm:"not null;index"`
	Side       Side  `gorm:"size:8;not null"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (n *TreeNode) IsRoot() bool {
	return n.ParentID == n.ID
}

func (n *TreeNode) Child(side Side) *uint {
	if side == SideLeft {
		return n.LeftChild
	}
	return n.RightChild
}
