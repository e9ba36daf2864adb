package repository

import (
	"context"

	"backend/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RequestRepository gives access to purchase requests with the
// role-scoped visibility the remote contract defines: staff see their
// own requests, approvers see pending work plus what they decided,
// finance sees approved requests.
type RequestRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*model.PurchaseRequest, error)
	FindVisibleByID(ctx context.Context, id uuid.UUID, viewer *model.User) (*model.PurchaseRequest, error)
	ListVisible(ctx context.Context, viewer *model.User, status string, page, limit int) ([]model.PurchaseRequest, int64, error)
}

type requestRepository struct {
	db *gorm.DB
}

func NewRequestRepository(db *gorm.DB) RequestRepository {
	return &requestRepository{db: db}
}

func withRelations(db *gorm.DB) *gorm.DB {
	return db.
		Preload("CreatedBy").
		Preload("ApprovedByLevel1").
		Preload("ApprovedByLevel2").
		Preload("Items").
		Preload("Proforma").
		Preload("PurchaseOrder").
		Preload("Receipts")
}

// visibilityScope narrows a query to what viewer is allowed to see
func visibilityScope(db *gorm.DB, viewer *model.User) *gorm.DB {
	switch {
	case viewer.IsStaff():
		return db.Where("created_by_id = ?", viewer.ID)
	case viewer.IsApprover():
		return db.Where("status = ? OR approved_by_l1_id = ? OR approved_by_l2_id = ?",
			model.StatusPending, viewer.ID, viewer.ID)
	case viewer.IsFinance():
		return db.Where("status = ?", model.StatusApproved)
	default:
		return db.Where("1 = 0")
	}
}

func (r *requestRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.PurchaseRequest, error) {
	var req model.PurchaseRequest
	if err := withRelations(GetDB(ctx, r.db)).First(&req, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *requestRepository) FindVisibleByID(ctx context.Context, id uuid.UUID, viewer *model.User) (*model.PurchaseRequest, error) {
	var req model.PurchaseRequest
	query := visibilityScope(withRelations(GetDB(ctx, r.db)), viewer)
	if err := query.First(&req, "purchase_requests.id = ?", id).Error; err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *requestRepository) ListVisible(ctx context.Context, viewer *model.User, status string, page, limit int) ([]model.PurchaseRequest, int64, error) {
	var total int64
	db := GetDB(ctx, r.db)

	countQuery := visibilityScope(db.Model(&model.PurchaseRequest{}), viewer)
	if status != "" {
		countQuery = countQuery.Where("status = ?", status)
	}
	if err := countQuery.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	fetchQuery := visibilityScope(withRelations(db), viewer)
	if status != "" {
		fetchQuery = fetchQuery.Where("status = ?", status)
	}

	var requests []model.PurchaseRequest
	if err := fetchQuery.Order("created_at DESC").Offset(offset).Limit(limit).Find(&requests).Error; err != nil {
		return nil, 0, err
	}

	return requests, total, nil
}
