package tree

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"binarymlm/internal/metrics"
	"binarymlm/internal/models"
	"binarymlm/internal/notify"
)

// Engine places members into the binary tree and keeps ancestor stats current.
// Placements are serialized in-process; the conditional slot update guards
// against other writers.
type Engine struct {
	db       *gorm.DB
	repo     *Repository
	notifier notify.Notifier
	metrics  *metrics.Collectors

	mu sync.Mutex
}

func NewEngine(db *gorm.DB, notifier notify.Notifier, m *metrics.Collectors) *Engine {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	return &Engine{db: db, repo: NewRepository(db), notifier: notifier, metrics: m}
}

func (e *Engine) Repository() *Repository {
	return e.repo
}

type Registration struct {
	Email     string
	Name      string
	SponsorID uint
	Side      models.Side
	Role      string
}

// CreateRoot creates the self-parented root member. It is active from the start.
func (e *Engine) CreateRoot(ctx context.Context, email, name string) (*models.Member, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var root models.Member
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var nodes int64
		if err := tx.Model(&models.TreeNode{}).Count(&nodes).Error; err != nil {
			return err
		}
		if nodes > 0 {
			return ErrRootExists
		}
		root = models.Member{Email: email, Name: name, Side: models.SideLeft, Active: true, Role: models.RoleAdmin}
		if err := tx.Create(&root).Error; err != nil {
			return err
		}
		if err := tx.Model(&root).Update("sponsor_id", root.ID).Error; err != nil {
			return err
		}
		if err := createAccounts(tx, root.ID); err != nil {
			return err
		}
		return tx.Create(&models.TreeNode{ID: root.ID, ParentID: root.ID, SponsorID: root.ID, Side: models.SideLeft}).Error
	})
	if err != nil {
		return nil, err
	}
	log.Info().Uint("member_id", root.ID).Msg("created tree root")
	return &root, nil
}

// Register creates a member with empty stats and wallet and places it under
// the sponsor on the requested side.
func (e *Engine) Register(ctx context.Context, reg Registration) (*models.Member, error) {
	if !reg.Side.Valid() {
		return nil, ErrInvalidSide
	}
	if reg.Role == "" {
		reg.Role = models.RoleMember
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	var (
		member models.Member
		parent uint
	)
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		member = models.Member{Email: reg.Email, Name: reg.Name, SponsorID: reg.SponsorID, Side: reg.Side, Role: reg.Role}
		if err := tx.Create(&member).Error; err != nil {
			return err
		}
		if err := createAccounts(tx, member.ID); err != nil {
			return err
		}
		var err error
		parent, err = e.place(ctx, tx, &member)
		return err
	})
	e.metrics.ObservePlacement(string(reg.Side), err)
	if err != nil {
		return nil, err
	}

	log.Info().Uint("member_id", member.ID).Uint("sponsor_id", reg.SponsorID).Uint("parent_id", parent).Str("side", string(reg.Side)).Msg("member registered")
	e.notifier.Notify(notify.Event{
		Name:   notify.EventMemberRegistered,
		UserID: member.ID,
		Fields: map[string]string{
			"sponsor_id": strconv.FormatUint(uint64(reg.SponsorID), 10),
			"parent_id":  strconv.FormatUint(uint64(parent), 10),
			"side":       string(reg.Side),
		},
	})
	return &member, nil
}

// Place inserts an existing member that has no node yet. A member that already
// has a sponsor can only be placed under that sponsor.
func (e *Engine) Place(ctx context.Context, memberID, sponsorID uint, side models.Side) error {
	if !side.Valid() {
		return ErrInvalidSide
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := e.repo.WithTx(tx)
		member, err := repo.FetchMember(ctx, memberID)
		if err != nil {
			return err
		}
		if member == nil {
			return fmt.Errorf("%w: %d", ErrMemberNotFound, memberID)
		}
		existing, err := repo.FetchNode(ctx, memberID)
		if err != nil {
			return err
		}
		if existing != nil {
			return fmt.Errorf("%w: %d", ErrAlreadyPlaced, memberID)
		}
		if member.SponsorID != 0 && member.SponsorID != sponsorID {
			return fmt.Errorf("%w: member %d belongs to sponsor %d", ErrSponsorChanged, memberID, member.SponsorID)
		}
		if member.SponsorID != sponsorID || member.Side != side {
			if err := tx.Model(member).Updates(map[string]any{"sponsor_id": sponsorID, "side": side}).Error; err != nil {
				return err
			}
			member.SponsorID, member.Side = sponsorID, side
		}
		_, err = e.place(ctx, tx, member)
		return err
	})
	e.metrics.ObservePlacement(string(side), err)
	return err
}

// place attaches member under its sponsor and propagates counts to the root.
func (e *Engine) place(ctx context.Context, tx *gorm.DB, member *models.Member) (uint, error) {
	repo := e.repo.WithTx(tx)
	sponsor, err := repo.FetchNode(ctx, member.SponsorID)
	if err != nil {
		return 0, err
	}
	if sponsor == nil {
		return 0, fmt.Errorf("%w: %d", ErrSponsorNotFound, member.SponsorID)
	}

	parentID, err := FindParent(ctx, repo, sponsor.ID, member.Side)
	if err != nil {
		return 0, err
	}

	column := childColumn(member.Side)
	res := tx.Model(&models.TreeNode{}).
		Where("id = ? AND "+column+" IS NULL", parentID).
		Update(column, member.ID)
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		return 0, fmt.Errorf("%w: %s slot of %d was taken", ErrNoOpenSlot, member.Side, parentID)
	}

	node := models.TreeNode{ID: member.ID, ParentID: parentID, SponsorID: member.SponsorID, Side: member.Side}
	if err := tx.Create(&node).Error; err != nil {
		return 0, err
	}

	direct := map[string]any{directColumn(member.Side, false): gorm.Expr(directColumn(member.Side, false) + " + 1")}
	if member.Active {
		direct[directColumn(member.Side, true)] = gorm.Expr(directColumn(member.Side, true) + " + 1")
	}
	if err := tx.Model(&models.MemberStats{}).Where("id = ?", member.SponsorID).Updates(direct).Error; err != nil {
		return 0, err
	}

	inc := Increment{Count: 1}
	if member.Active {
		inc.Active = 1
	}
	if err := SyncParentChain(ctx, tx, parentID, member.Side, inc); err != nil {
		return 0, err
	}
	return parentID, nil
}

// FindParent returns the node that receives a new child on side: the sponsor
// itself when its slot is free, otherwise the first node down the sponsor's
// side chain with that slot open.
func FindParent(ctx context.Context, repo *Repository, sponsorID uint, side models.Side) (uint, error) {
	start, err := repo.FetchNode(ctx, sponsorID)
	if err != nil {
		return 0, err
	}
	if start == nil {
		return 0, fmt.Errorf("%w: %d", ErrSponsorNotFound, sponsorID)
	}
	if start.Child(side) == nil {
		return start.ID, nil
	}

	queue := []uint{*start.Child(side)}
	seen := map[uint]bool{start.ID: true}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if seen[id] {
			continue
		}
		seen[id] = true

		node, err := repo.FetchNode(ctx, id)
		if err != nil {
			return 0, err
		}
		if node == nil {
			continue
		}
		next := node.Child(side)
		if next == nil {
			return node.ID, nil
		}
		queue = append(queue, *next)
	}
	return 0, fmt.Errorf("%w: below %d on %s", ErrNoOpenSlot, sponsorID, side)
}

// Increment is what one insertion or activation adds to each ancestor.
type Increment struct {
	Count  int64
	Active int64
	BV     decimal.Decimal
}

func (inc Increment) columns(side models.Side) map[string]any {
	s := string(side)
	cols := map[string]any{}
	add := func(col string, v any) {
		cols[col] = gorm.Expr(col+" + ?", v)
	}
	if inc.Count != 0 {
		add(s+"_count", inc.Count)
		add("today_"+s+"_count", inc.Count)
	}
	if inc.Active != 0 {
		add(s+"_active_count", inc.Active)
		add("today_"+s+"_active_count", inc.Active)
	}
	if !inc.BV.IsZero() {
		add(s+"_bv", inc.BV)
		add("today_"+s+"_bv", inc.BV)
	}
	return cols
}

// SyncParentChain applies inc to parentID on side, then walks to the root. The
// side for each next ancestor is the slot the current node occupies.
func SyncParentChain(ctx context.Context, tx *gorm.DB, parentID uint, side models.Side, inc Increment) error {
	if len(inc.columns(side)) == 0 {
		return nil
	}
	repo := NewRepository(tx)
	seen := make(map[uint]bool)
	id := parentID
	for {
		if seen[id] {
			return fmt.Errorf("%w: cycle at %d", ErrBrokenChain, id)
		}
		seen[id] = true

		res := tx.Model(&models.MemberStats{}).Where("id = ?", id).Updates(inc.columns(side))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: no stats for %d", ErrBrokenChain, id)
		}

		node, err := repo.FetchNode(ctx, id)
		if err != nil {
			return err
		}
		if node == nil {
			return fmt.Errorf("%w: no node for %d", ErrBrokenChain, id)
		}
		if node.IsRoot() {
			return nil
		}
		side = node.Side
		id = node.ParentID
	}
}

// Activate marks the member active and credits active counts and bv up the
// chain. It must run inside the caller's transaction.
func (e *Engine) Activate(ctx context.Context, tx *gorm.DB, memberID uint, bv decimal.Decimal) error {
	var member models.Member
	res := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", memberID).Limit(1).Find(&member)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %d", ErrMemberNotFound, memberID)
	}
	if member.Active {
		return fmt.Errorf("%w: %d", ErrAlreadyActive, memberID)
	}
	if err := tx.Model(&member).Update("active", true).Error; err != nil {
		return err
	}

	node, err := NewRepository(tx).FetchNode(ctx, memberID)
	if err != nil {
		return err
	}
	if node == nil {
		return fmt.Errorf("%w: %d", ErrNotPlaced, memberID)
	}
	if node.IsRoot() {
		return nil
	}

	col := directColumn(member.Side, true)
	if err := tx.Model(&models.MemberStats{}).Where("id = ?", member.SponsorID).
		Update(col, gorm.Expr(col+" + 1")).Error; err != nil {
		return err
	}
	return SyncParentChain(ctx, tx, node.ParentID, node.Side, Increment{Active: 1, BV: bv})
}

func childColumn(side models.Side) string {
	if side == models.SideLeft {
		return "left_child"
	}
	return "right_child"
}

func directColumn(side models.Side, active bool) string {
	if active {
		return string(side) + "_active_direct_count"
	}
	return string(side) + "_direct_count"
}

func createAccounts(tx *gorm.DB, memberID uint) error {
	if err := tx.Create(&models.MemberStats{ID: memberID}).Error; err != nil {
		return err
	}
	return tx.Create(&models.Wallet{ID: memberID}).Error
}
