package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"backend/internal/model"
	"backend/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Actor is the authenticated caller identity extracted from the JWT claims
type Actor struct {
	ID   uuid.UUID
	Role string
}

// Broadcaster pushes serialized events to connected websocket clients
type Broadcaster interface {
	GetBroadcast() chan []byte
}

// --- DTOs ---

type RequestItemDTO struct {
	Description string          `json:"description"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

type CreateRequestDTO struct {
	Title       string           `json:"title"`
	Description string           `json:"description"`
	Amount      decimal.Decimal  `json:"amount"`
	Items       []RequestItemDTO `json:"items"`
}

type RequestFilter struct {
	Status string // pending, approved, rejected or empty for all
	Page   int
	Limit  int
}

type RequestItemResponse struct {
	ID          string          `json:"id"`
	Description string          `json:"description"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	TotalPrice  decimal.Decimal `json:"total_price"`
}

type ProformaResponse struct {
	ID         string `json:"id"`
	File       string `json:"file"`
	FileName   string `json:"file_name,omitempty"`
	UploadedAt string `json:"uploaded_at"`
}

type PurchaseOrderResponse struct {
	ID          string          `json:"id"`
	RequestID   string          `json:"request_id"`
	PONumber    string          `json:"po_number"`
	File        string          `json:"file,omitempty"`
	VendorName  string          `json:"vendor_name,omitempty"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	GeneratedAt string          `json:"generated_at"`
}

type ReceiptResponse struct {
	ID               string   `json:"id"`
	File             string   `json:"file"`
	ValidationStatus string   `json:"validation_status"`
	Discrepancies    []string `json:"discrepancies,omitempty"`
	UploadedAt       string   `json:"uploaded_at"`
	ValidatedAt      *string  `json:"validated_at,omitempty"`
}

type RequestResponse struct {
	ID                     string                 `json:"id"`
	Title                  string                 `json:"title"`
	Description            string                 `json:"description"`
	Amount                 decimal.Decimal        `json:"amount"`
	Status                 string                 `json:"status"`
	CreatedBy              UserResponse           `json:"created_by"`
	ApprovedByLevel1       *UserResponse          `json:"approved_by_level_1,omitempty"`
	ApprovedByLevel2       *UserResponse          `json:"approved_by_level_2,omitempty"`
	CreatedAt              string                 `json:"created_at"`
	UpdatedAt              string                 `json:"updated_at"`
	ApprovedAt             *string                `json:"approved_at,omitempty"`
	RejectedAt             *string                `json:"rejected_at,omitempty"`
	RejectionReason        string                 `json:"rejection_reason,omitempty"`
	Items                  []RequestItemResponse  `json:"items"`
	CanBeEdited            bool                   `json:"can_be_edited"`
	RequiresLevel1Approval bool                   `json:"requires_level_1_approval"`
	RequiresLevel2Approval bool                   `json:"requires_level_2_approval"`
	Proforma               *ProformaResponse      `json:"proforma,omitempty"`
	PurchaseOrder          *PurchaseOrderResponse `json:"purchase_order,omitempty"`
	Receipts               []ReceiptResponse      `json:"receipts"`
}

type HistoryEntry struct {
	Level     int    `json:"level"`
	Approver  string `json:"approver"`
	Action    string `json:"action"`
	Timestamp string `json:"timestamp"`
}

// --- Interface ---

type RequestService interface {
	Create(ctx context.Context, actor Actor, req CreateRequestDTO) (*RequestResponse, error)
	Update(ctx context.Context, actor Actor, id string, req CreateRequestDTO) (*RequestResponse, error)
	Get(ctx context.Context, actor Actor, id string) (*RequestResponse, error)
	List(ctx context.Context, actor Actor, filter RequestFilter) ([]RequestResponse, int64, error)
	Approve(ctx context.Context, actor Actor, id string) (*RequestResponse, error)
	Reject(ctx context.Context, actor Actor, id string, reason string) (*RequestResponse, error)
	History(ctx context.Context, actor Actor, id string) ([]HistoryEntry, error)
}

type requestService struct {
	db              *gorm.DB
	users           repository.UserRepository
	requests        repository.RequestRepository
	hub             Broadcaster
	level2Threshold decimal.Decimal
}

// NewRequestService builds the lifecycle engine. Requests whose amount
// meets level2Threshold need a second approval before turning approved.
func NewRequestService(db *gorm.DB, users repository.UserRepository, requests repository.RequestRepository, hub Broadcaster, level2Threshold decimal.Decimal) RequestService {
	return &requestService{
		db:              db,
		users:           users,
		requests:        requests,
		hub:             hub,
		level2Threshold: level2Threshold,
	}
}

// --- Implementation ---

func (s *requestService) viewer(ctx context.Context, actor Actor) (*model.User, error) {
	user, err := s.users.GetByID(ctx, actor.ID.String())
	if err != nil {
		return nil, fmt.Errorf("%w: user", ErrNotFound)
	}
	return user, nil
}

// normalize validates the payload and recomputes the amount from the
// items so the stored amount always equals Σ quantity × unit_price.
func normalize(req *CreateRequestDTO) ([]model.RequestItem, error) {
	if strings.TrimSpace(req.Title) == "" {
		return nil, fmt.Errorf("%w: title is required", ErrValidation)
	}
	if strings.TrimSpace(req.Description) == "" {
		return nil, fmt.Errorf("%w: description is required", ErrValidation)
	}

	items := make([]model.RequestItem, 0, len(req.Items))
	for _, item := range req.Items {
		if strings.TrimSpace(item.Description) == "" {
			return nil, fmt.Errorf("%w: item description is required", ErrValidation)
		}
		if item.Quantity <= 0 {
			return nil, fmt.Errorf("%w: item quantity must be positive", ErrValidation)
		}
		if item.UnitPrice.IsNegative() {
			return nil, fmt.Errorf("%w: item unit price cannot be negative", ErrValidation)
		}
		items = append(items, model.RequestItem{
			Description: item.Description,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
		})
	}

	if len(items) > 0 {
		total := decimal.Zero
		for i := range items {
			total = total.Add(items[i].TotalPrice())
		}
		req.Amount = total
	} else if !req.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: amount must be positive", ErrValidation)
	}

	return items, nil
}

func (s *requestService) Create(ctx context.Context, actor Actor, req CreateRequestDTO) (*RequestResponse, error) {
	viewer, err := s.viewer(ctx, actor)
	if err != nil {
		return nil, err
	}
	if !viewer.IsStaff() {
		return nil, fmt.Errorf("%w: only staff can create purchase requests", ErrForbidden)
	}

	items, err := normalize(&req)
	if err != nil {
		return nil, err
	}

	request := model.PurchaseRequest{
		Title:       req.Title,
		Description: req.Description,
		Amount:      req.Amount,
		Status:      model.StatusPending,
		CreatedByID: viewer.ID,
		Items:       items,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if createErr := tx.Create(&request).Error; createErr != nil {
			return fmt.Errorf("failed to create purchase request: %w", createErr)
		}
		return writeAudit(tx, &viewer.ID, model.ActionCreateRequest, request.ID.String(), request.Title, map[string]interface{}{
			"amount": request.Amount.StringFixed(2),
			"items":  len(items),
		})
	})
	if err != nil {
		return nil, err
	}

	return s.reload(ctx, request.ID, viewer)
}

func (s *requestService) Update(ctx context.Context, actor Actor, id string, req CreateRequestDTO) (*RequestResponse, error) {
	viewer, err := s.viewer(ctx, actor)
	if err != nil {
		return nil, err
	}

	requestID, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid request id", ErrValidation)
	}

	items, err := normalize(&req)
	if err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var request model.PurchaseRequest
		if findErr := tx.First(&request, "id = ?", requestID).Error; findErr != nil {
			return fmt.Errorf("%w: purchase request", ErrNotFound)
		}

		if request.CreatedByID != viewer.ID {
			return fmt.Errorf("%w: only the creator can edit a request", ErrForbidden)
		}
		if request.Status != model.StatusPending {
			return fmt.Errorf("%w: only pending requests can be edited", ErrConflict)
		}

		updates := map[string]interface{}{
			"title":       req.Title,
			"description": req.Description,
			"amount":      req.Amount,
			"updated_at":  time.Now(),
		}
		res := tx.Model(&model.PurchaseRequest{}).
			Where("id = ? AND status = ?", requestID, model.StatusPending).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: request was decided concurrently", ErrConflict)
		}

		// Items are replaced wholesale
		if delErr := tx.Where("request_id = ?", requestID).Delete(&model.RequestItem{}).Error; delErr != nil {
			return delErr
		}
		for i := range items {
			items[i].RequestID = requestID
			if createErr := tx.Create(&items[i]).Error; createErr != nil {
				return createErr
			}
		}

		return writeAudit(tx, &viewer.ID, model.ActionUpdateRequest, requestID.String(), req.Title, map[string]interface{}{
			"amount": req.Amount.StringFixed(2),
		})
	})
	if err != nil {
		return nil, err
	}

	return s.reload(ctx, requestID, viewer)
}

func (s *requestService) Get(ctx context.Context, actor Actor, id string) (*RequestResponse, error) {
	viewer, err := s.viewer(ctx, actor)
	if err != nil {
		return nil, err
	}

	requestID, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid request id", ErrValidation)
	}

	request, err := s.requests.FindVisibleByID(ctx, requestID, viewer)
	if err != nil {
		return nil, fmt.Errorf("%w: purchase request", ErrNotFound)
	}

	resp := s.toResponse(request, viewer)
	return &resp, nil
}

func (s *requestService) List(ctx context.Context, actor Actor, filter RequestFilter) ([]RequestResponse, int64, error) {
	viewer, err := s.viewer(ctx, actor)
	if err != nil {
		return nil, 0, err
	}

	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.Limit <= 0 {
		filter.Limit = 20
	}

	requests, total, err := s.requests.ListVisible(ctx, viewer, filter.Status, filter.Page, filter.Limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list purchase requests: %w", err)
	}

	result := make([]RequestResponse, 0, len(requests))
	for i := range requests {
		result = append(result, s.toResponse(&requests[i], viewer))
	}
	return result, total, nil
}

// Approve records the caller's sign-off at the outstanding level. The
// terminal transition is a conditional update so a lost race between
// two approvers surfaces as a conflict, never a double decide.
func (s *requestService) Approve(ctx context.Context, actor Actor, id string) (*RequestResponse, error) {
	viewer, err := s.viewer(ctx, actor)
	if err != nil {
		return nil, err
	}
	if !viewer.IsApprover() {
		return nil, fmt.Errorf("%w: only approvers can approve requests", ErrForbidden)
	}

	requestID, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid request id", ErrValidation)
	}

	var decided bool
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var request model.PurchaseRequest
		if findErr := tx.First(&request, "id = ?", requestID).Error; findErr != nil {
			return fmt.Errorf("%w: purchase request", ErrNotFound)
		}

		if request.Status != model.StatusPending {
			return fmt.Errorf("%w: request is already %s", ErrConflict, request.Status)
		}

		now := time.Now()
		switch {
		case request.ApprovedByL1ID == nil:
			if !viewer.IsApproverLevel1() {
				return fmt.Errorf("%w: level 1 approval required", ErrForbidden)
			}

			updates := map[string]interface{}{
				"approved_by_l1_id": viewer.ID,
				"updated_at":        now,
			}
			// Final approval unless the amount policy demands level 2
			if !request.Amount.GreaterThanOrEqual(s.level2Threshold) {
				updates["status"] = model.StatusApproved
				updates["approved_at"] = now
				decided = true
			}

			res := tx.Model(&model.PurchaseRequest{}).
				Where("id = ? AND status = ? AND approved_by_l1_id IS NULL", requestID, model.StatusPending).
				Updates(updates)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return fmt.Errorf("%w: request was decided concurrently", ErrConflict)
			}

			return writeAudit(tx, &viewer.ID, model.ActionApproveLevel1, requestID.String(), request.Title, map[string]interface{}{
				"final": decided,
			})

		case request.RequiresLevel2Approval(s.level2Threshold):
			if !viewer.IsApproverLevel2() {
				return fmt.Errorf("%w: level 2 approval required", ErrForbidden)
			}

			res := tx.Model(&model.PurchaseRequest{}).
				Where("id = ? AND status = ? AND approved_by_l1_id IS NOT NULL AND approved_by_l2_id IS NULL", requestID, model.StatusPending).
				Updates(map[string]interface{}{
					"approved_by_l2_id": viewer.ID,
					"status":            model.StatusApproved,
					"approved_at":       now,
					"updated_at":        now,
				})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return fmt.Errorf("%w: request was decided concurrently", ErrConflict)
			}
			decided = true

			return writeAudit(tx, &viewer.ID, model.ActionApproveLevel2, requestID.String(), request.Title, map[string]interface{}{
				"final": true,
			})

		default:
			return fmt.Errorf("%w: request does not require approval at this level", ErrConflict)
		}
	})
	if err != nil {
		return nil, err
	}

	if decided {
		broadcast(s.hub, "request.decided", map[string]interface{}{
			"request_id": requestID.String(),
			"status":     model.StatusApproved,
		})
	}

	return s.reload(ctx, requestID, viewer)
}

func (s *requestService) Reject(ctx context.Context, actor Actor, id string, reason string) (*RequestResponse, error) {
	viewer, err := s.viewer(ctx, actor)
	if err != nil {
		return nil, err
	}
	if !viewer.IsApprover() {
		return nil, fmt.Errorf("%w: only approvers can reject requests", ErrForbidden)
	}
	if strings.TrimSpace(reason) == "" {
		return nil, fmt.Errorf("%w: rejection reason is required", ErrValidation)
	}

	requestID, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid request id", ErrValidation)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var request model.PurchaseRequest
		if findErr := tx.First(&request, "id = ?", requestID).Error; findErr != nil {
			return fmt.Errorf("%w: purchase request", ErrNotFound)
		}

		if request.Status != model.StatusPending {
			return fmt.Errorf("%w: request is already %s", ErrConflict, request.Status)
		}

		now := time.Now()
		updates := map[string]interface{}{
			"status":           model.StatusRejected,
			"rejection_reason": reason,
			"rejected_at":      now,
			"updated_at":       now,
		}
		// Attribute the rejection to the outstanding level
		if request.ApprovedByL1ID == nil {
			updates["approved_by_l1_id"] = viewer.ID
		} else {
			updates["approved_by_l2_id"] = viewer.ID
		}

		res := tx.Model(&model.PurchaseRequest{}).
			Where("id = ? AND status = ?", requestID, model.StatusPending).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: request was decided concurrently", ErrConflict)
		}

		return writeAudit(tx, &viewer.ID, model.ActionRejectRequest, requestID.String(), request.Title, map[string]interface{}{
			"reason": reason,
		})
	})
	if err != nil {
		return nil, err
	}

	broadcast(s.hub, "request.decided", map[string]interface{}{
		"request_id": requestID.String(),
		"status":     model.StatusRejected,
	})

	return s.reload(ctx, requestID, viewer)
}

func (s *requestService) History(ctx context.Context, actor Actor, id string) ([]HistoryEntry, error) {
	viewer, err := s.viewer(ctx, actor)
	if err != nil {
		return nil, err
	}

	requestID, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid request id", ErrValidation)
	}

	request, err := s.requests.FindVisibleByID(ctx, requestID, viewer)
	if err != nil {
		return nil, fmt.Errorf("%w: purchase request", ErrNotFound)
	}

	action := func() string {
		if request.Status == model.StatusRejected {
			return "rejected"
		}
		return "approved"
	}

	history := make([]HistoryEntry, 0, 2)
	if request.ApprovedByLevel1 != nil {
		history = append(history, HistoryEntry{
			Level:     1,
			Approver:  request.ApprovedByLevel1.Username,
			Action:    action(),
			Timestamp: request.UpdatedAt.Format(time.RFC3339),
		})
	}
	if request.ApprovedByLevel2 != nil {
		ts := request.UpdatedAt
		if request.ApprovedAt != nil {
			ts = *request.ApprovedAt
		} else if request.RejectedAt != nil {
			ts = *request.RejectedAt
		}
		history = append(history, HistoryEntry{
			Level:     2,
			Approver:  request.ApprovedByLevel2.Username,
			Action:    action(),
			Timestamp: ts.Format(time.RFC3339),
		})
	}

	return history, nil
}

// --- Helpers ---

func (s *requestService) reload(ctx context.Context, id uuid.UUID, viewer *model.User) (*RequestResponse, error) {
	request, err := s.requests.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to reload purchase request: %w", err)
	}
	resp := s.toResponse(request, viewer)
	return &resp, nil
}

// writeAudit appends an audit row inside the surrounding transaction
func writeAudit(tx *gorm.DB, userID *uuid.UUID, action, entityID, entityName string, details map[string]interface{}) error {
	payload, _ := json.Marshal(details)
	audit := model.AuditLog{
		UserID:     userID,
		Action:     action,
		EntityID:   entityID,
		EntityName: entityName,
		Details:    string(payload),
	}
	if err := tx.Create(&audit).Error; err != nil {
		return fmt.Errorf("failed to write audit log: %w", err)
	}
	return nil
}

func (s *requestService) toResponse(r *model.PurchaseRequest, viewer *model.User) RequestResponse {
	resp := RequestResponse{
		ID:                     r.ID.String(),
		Title:                  r.Title,
		Description:            r.Description,
		Amount:                 r.Amount,
		Status:                 r.Status,
		CreatedBy:              mapUserResponse(&r.CreatedBy),
		CreatedAt:              r.CreatedAt.Format(time.RFC3339),
		UpdatedAt:              r.UpdatedAt.Format(time.RFC3339),
		RejectionReason:        r.RejectionReason,
		CanBeEdited:            r.Status == model.StatusPending && viewer != nil && r.CreatedByID == viewer.ID,
		RequiresLevel1Approval: r.RequiresLevel1Approval(),
		RequiresLevel2Approval: r.RequiresLevel2Approval(s.level2Threshold),
		Items:                  make([]RequestItemResponse, 0, len(r.Items)),
		Receipts:               make([]ReceiptResponse, 0, len(r.Receipts)),
	}

	if r.ApprovedByLevel1 != nil {
		u := mapUserResponse(r.ApprovedByLevel1)
		resp.ApprovedByLevel1 = &u
	}
	if r.ApprovedByLevel2 != nil {
		u := mapUserResponse(r.ApprovedByLevel2)
		resp.ApprovedByLevel2 = &u
	}
	if r.ApprovedAt != nil {
		ts := r.ApprovedAt.Format(time.RFC3339)
		resp.ApprovedAt = &ts
	}
	if r.RejectedAt != nil {
		ts := r.RejectedAt.Format(time.RFC3339)
		resp.RejectedAt = &ts
	}

	for i := range r.Items {
		item := &r.Items[i]
		resp.Items = append(resp.Items, RequestItemResponse{
			ID:          item.ID.String(),
			Description: item.Description,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
			TotalPrice:  item.TotalPrice(),
		})
	}

	if r.Proforma != nil {
		resp.Proforma = &ProformaResponse{
			ID:         r.Proforma.ID.String(),
			File:       r.Proforma.FilePath,
			FileName:   r.Proforma.FileName,
			UploadedAt: r.Proforma.UploadedAt.Format(time.RFC3339),
		}
	}
	if r.PurchaseOrder != nil {
		po := mapPurchaseOrderResponse(r.PurchaseOrder)
		resp.PurchaseOrder = &po
	}
	for i := range r.Receipts {
		resp.Receipts = append(resp.Receipts, mapReceiptResponse(&r.Receipts[i]))
	}

	return resp
}

func mapPurchaseOrderResponse(po *model.PurchaseOrder) PurchaseOrderResponse {
	return PurchaseOrderResponse{
		ID:          po.ID.String(),
		RequestID:   po.RequestID.String(),
		PONumber:    po.PONumber,
		File:        po.FilePath,
		VendorName:  po.VendorName,
		TotalAmount: po.TotalAmount,
		GeneratedAt: po.GeneratedAt.Format(time.RFC3339),
	}
}

func mapReceiptResponse(rc *model.Receipt) ReceiptResponse {
	resp := ReceiptResponse{
		ID:               rc.ID.String(),
		File:             rc.FilePath,
		ValidationStatus: rc.ValidationStatus,
		UploadedAt:       rc.UploadedAt.Format(time.RFC3339),
	}
	if rc.Discrepancies != "" {
		var discrepancies []string
		if err := json.Unmarshal([]byte(rc.Discrepancies), &discrepancies); err == nil {
			resp.Discrepancies = discrepancies
		}
	}
	if rc.ValidatedAt != nil {
		ts := rc.ValidatedAt.Format(time.RFC3339)
		resp.ValidatedAt = &ts
	}
	return resp
}
