package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"time"

	"backend/internal/model"
	"backend/internal/repository"
	"backend/internal/storage"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ReceiptValidator reconciles an uploaded receipt against the purchase
// order. It returns one of the two terminal validation outcomes plus
// the list of mismatches found.
type ReceiptValidator interface {
	Validate(request *model.PurchaseRequest, po *model.PurchaseOrder, receipt *model.Receipt) (status string, discrepancies []string)
}

// AmountReconciler is the default validator: the PO total must match
// the approved request amount.
type AmountReconciler struct{}

func (AmountReconciler) Validate(request *model.PurchaseRequest, po *model.PurchaseOrder, _ *model.Receipt) (string, []string) {
	if !po.TotalAmount.Equal(request.Amount) {
		return model.ReceiptDiscrepancy, []string{
			fmt.Sprintf("purchase order total %s does not match request amount %s",
				po.TotalAmount.StringFixed(2), request.Amount.StringFixed(2)),
		}
	}
	return model.ReceiptValid, nil
}

// --- Interface ---

type DocumentService interface {
	UploadProforma(ctx context.Context, actor Actor, requestID string, fh *multipart.FileHeader) (*ProformaResponse, error)
	UploadReceipt(ctx context.Context, actor Actor, requestID string, fh *multipart.FileHeader) (*ReceiptResponse, error)
	ValidateReceipt(ctx context.Context, actor Actor, receiptID string) (*ReceiptResponse, error)
	ListPurchaseOrders(ctx context.Context, actor Actor, page, limit int) ([]PurchaseOrderResponse, int64, error)
	GetPurchaseOrder(ctx context.Context, actor Actor, id string) (*PurchaseOrderResponse, error)
}

type documentService struct {
	db        *gorm.DB
	users     repository.UserRepository
	store     storage.FileStore
	validator ReceiptValidator
	hub       Broadcaster
}

func NewDocumentService(db *gorm.DB, users repository.UserRepository, store storage.FileStore, validator ReceiptValidator, hub Broadcaster) DocumentService {
	if validator == nil {
		validator = AmountReconciler{}
	}
	return &documentService{
		db:        db,
		users:     users,
		store:     store,
		validator: validator,
		hub:       hub,
	}
}

// --- Implementation ---

func (s *documentService) viewer(ctx context.Context, actor Actor) (*model.User, error) {
	user, err := s.users.GetByID(ctx, actor.ID.String())
	if err != nil {
		return nil, fmt.Errorf("%w: user", ErrNotFound)
	}
	return user, nil
}

func (s *documentService) saveUpload(fh *multipart.FileHeader) (storage.SavedFile, error) {
	saved, err := s.store.Save(fh)
	if err != nil {
		if errors.Is(err, storage.ErrFileTooLarge) || errors.Is(err, storage.ErrDisallowedType) {
			return storage.SavedFile{}, fmt.Errorf("%w: %v", ErrValidation, err)
		}
		return storage.SavedFile{}, err
	}
	return saved, nil
}

// UploadProforma attaches the pre-approval estimate to a pending
// request. Exactly one proforma exists per request: a re-upload
// replaces the previous document.
func (s *documentService) UploadProforma(ctx context.Context, actor Actor, requestID string, fh *multipart.FileHeader) (*ProformaResponse, error) {
	viewer, err := s.viewer(ctx, actor)
	if err != nil {
		return nil, err
	}

	reqID, err := uuid.Parse(requestID)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid request id", ErrValidation)
	}

	saved, err := s.saveUpload(fh)
	if err != nil {
		return nil, err
	}

	var proforma model.Proforma
	var replacedPath string
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var request model.PurchaseRequest
		if findErr := tx.First(&request, "id = ?", reqID).Error; findErr != nil {
			return fmt.Errorf("%w: purchase request", ErrNotFound)
		}

		if request.CreatedByID != viewer.ID && !viewer.IsFinance() {
			return fmt.Errorf("%w: you cannot upload a proforma for this request", ErrForbidden)
		}
		if request.Status != model.StatusPending {
			return fmt.Errorf("%w: proforma can only be attached to pending requests", ErrConflict)
		}

		var existing model.Proforma
		if findErr := tx.First(&existing, "request_id = ?", reqID).Error; findErr == nil {
			replacedPath = existing.FilePath
			if delErr := tx.Delete(&existing).Error; delErr != nil {
				return delErr
			}
		}

		proforma = model.Proforma{
			RequestID:    reqID,
			FilePath:     saved.Path,
			FileName:     saved.Name,
			UploadedByID: &viewer.ID,
		}
		if createErr := tx.Create(&proforma).Error; createErr != nil {
			return fmt.Errorf("failed to create proforma: %w", createErr)
		}

		return writeAudit(tx, &viewer.ID, model.ActionUploadProforma, proforma.ID.String(), saved.Name, map[string]interface{}{
			"request_id": reqID.String(),
			"replaced":   replacedPath != "",
		})
	})
	if err != nil {
		_ = s.store.Remove(saved.Path)
		return nil, err
	}

	if replacedPath != "" {
		_ = s.store.Remove(replacedPath)
	}

	return &ProformaResponse{
		ID:         proforma.ID.String(),
		File:       proforma.FilePath,
		FileName:   proforma.FileName,
		UploadedAt: proforma.UploadedAt.Format(time.RFC3339),
	}, nil
}

// UploadReceipt appends a proof-of-purchase document to an approved
// request. Receipts accumulate; validation starts pending.
func (s *documentService) UploadReceipt(ctx context.Context, actor Actor, requestID string, fh *multipart.FileHeader) (*ReceiptResponse, error) {
	viewer, err := s.viewer(ctx, actor)
	if err != nil {
		return nil, err
	}

	reqID, err := uuid.Parse(requestID)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid request id", ErrValidation)
	}

	saved, err := s.saveUpload(fh)
	if err != nil {
		return nil, err
	}

	var receipt model.Receipt
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var request model.PurchaseRequest
		if findErr := tx.First(&request, "id = ?", reqID).Error; findErr != nil {
			return fmt.Errorf("%w: purchase request", ErrNotFound)
		}

		if request.CreatedByID != viewer.ID && !viewer.IsFinance() {
			return fmt.Errorf("%w: you cannot upload a receipt for this request", ErrForbidden)
		}
		if request.Status != model.StatusApproved {
			return fmt.Errorf("%w: receipts can only be uploaded for approved requests", ErrConflict)
		}

		receipt = model.Receipt{
			RequestID:        reqID,
			FilePath:         saved.Path,
			FileName:         saved.Name,
			UploadedByID:     &viewer.ID,
			ValidationStatus: model.ReceiptPending,
		}
		if createErr := tx.Create(&receipt).Error; createErr != nil {
			return fmt.Errorf("failed to create receipt: %w", createErr)
		}

		return writeAudit(tx, &viewer.ID, model.ActionUploadReceipt, receipt.ID.String(), saved.Name, map[string]interface{}{
			"request_id": reqID.String(),
		})
	})
	if err != nil {
		_ = s.store.Remove(saved.Path)
		return nil, err
	}

	resp := mapReceiptResponse(&receipt)
	return &resp, nil
}

// ValidateReceipt runs the reconciliation collaborator. The outcome is
// valid or discrepancy — a validated receipt never reverts to pending.
func (s *documentService) ValidateReceipt(ctx context.Context, actor Actor, receiptID string) (*ReceiptResponse, error) {
	viewer, err := s.viewer(ctx, actor)
	if err != nil {
		return nil, err
	}

	rcID, err := uuid.Parse(receiptID)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid receipt id", ErrValidation)
	}

	var receipt model.Receipt
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if findErr := tx.First(&receipt, "id = ?", rcID).Error; findErr != nil {
			return fmt.Errorf("%w: receipt", ErrNotFound)
		}

		var request model.PurchaseRequest
		if findErr := tx.Preload("PurchaseOrder").First(&request, "id = ?", receipt.RequestID).Error; findErr != nil {
			return fmt.Errorf("%w: purchase request", ErrNotFound)
		}

		if viewer.IsStaff() && request.CreatedByID != viewer.ID {
			return fmt.Errorf("%w: receipt", ErrNotFound)
		}
		if request.PurchaseOrder == nil {
			return fmt.Errorf("%w: no purchase order found for this request", ErrValidation)
		}

		status, discrepancies := s.validator.Validate(&request, request.PurchaseOrder, &receipt)

		now := time.Now()
		receipt.ValidationStatus = status
		receipt.ValidatedAt = &now
		receipt.Discrepancies = ""
		if len(discrepancies) > 0 {
			payload, _ := json.Marshal(discrepancies)
			receipt.Discrepancies = string(payload)
		}

		if saveErr := tx.Save(&receipt).Error; saveErr != nil {
			return fmt.Errorf("failed to update receipt: %w", saveErr)
		}

		return writeAudit(tx, &viewer.ID, model.ActionValidateReceipt, receipt.ID.String(), receipt.FileName, map[string]interface{}{
			"request_id": receipt.RequestID.String(),
			"status":     status,
		})
	})
	if err != nil {
		return nil, err
	}

	broadcast(s.hub, "receipt.validated", map[string]interface{}{
		"receipt_id": receipt.ID.String(),
		"request_id": receipt.RequestID.String(),
		"status":     receipt.ValidationStatus,
	})

	resp := mapReceiptResponse(&receipt)
	return &resp, nil
}

// poScope narrows purchase-order queries to what viewer may see
func (s *documentService) poScope(db *gorm.DB, viewer *model.User) (*gorm.DB, error) {
	switch {
	case viewer.IsStaff():
		return db.Joins("JOIN purchase_requests ON purchase_requests.id = purchase_orders.request_id").
			Where("purchase_requests.created_by_id = ?", viewer.ID), nil
	case viewer.IsApprover(), viewer.IsFinance():
		return db, nil
	default:
		return nil, fmt.Errorf("%w: purchase orders", ErrForbidden)
	}
}

func (s *documentService) ListPurchaseOrders(ctx context.Context, actor Actor, page, limit int) ([]PurchaseOrderResponse, int64, error) {
	viewer, err := s.viewer(ctx, actor)
	if err != nil {
		return nil, 0, err
	}

	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 20
	}

	db := s.db.WithContext(ctx)
	countQuery, err := s.poScope(db.Model(&model.PurchaseOrder{}), viewer)
	if err != nil {
		return nil, 0, err
	}

	var total int64
	if err := countQuery.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count purchase orders: %w", err)
	}

	fetchQuery, err := s.poScope(db.Model(&model.PurchaseOrder{}), viewer)
	if err != nil {
		return nil, 0, err
	}

	var orders []model.PurchaseOrder
	if err := fetchQuery.Order("generated_at DESC").Offset((page - 1) * limit).Limit(limit).Find(&orders).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch purchase orders: %w", err)
	}

	result := make([]PurchaseOrderResponse, 0, len(orders))
	for i := range orders {
		result = append(result, mapPurchaseOrderResponse(&orders[i]))
	}
	return result, total, nil
}

func (s *documentService) GetPurchaseOrder(ctx context.Context, actor Actor, id string) (*PurchaseOrderResponse, error) {
	viewer, err := s.viewer(ctx, actor)
	if err != nil {
		return nil, err
	}

	poID, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid purchase order id", ErrValidation)
	}

	query, err := s.poScope(s.db.WithContext(ctx).Model(&model.PurchaseOrder{}), viewer)
	if err != nil {
		return nil, err
	}

	var order model.PurchaseOrder
	if err := query.First(&order, "purchase_orders.id = ?", poID).Error; err != nil {
		return nil, fmt.Errorf("%w: purchase order", ErrNotFound)
	}

	resp := mapPurchaseOrderResponse(&order)
	return &resp, nil
}
