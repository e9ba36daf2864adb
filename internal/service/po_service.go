package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"backend/internal/model"

	"gorm.io/gorm"
)

// POService generates purchase orders for fully approved requests.
// Generation is decoupled from the approve call: a poller picks up
// approved requests that have no PO yet, so callers observe the PO
// appearing on a later fetch.
type POService interface {
	GeneratePending(ctx context.Context) (int, error)
	RunGenerator(ctx context.Context, interval time.Duration)
}

type poService struct {
	db  *gorm.DB
	hub Broadcaster
}

func NewPOService(db *gorm.DB, hub Broadcaster) POService {
	return &poService{db: db, hub: hub}
}

// RunGenerator polls until ctx is cancelled
func (s *poService) RunGenerator(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.GeneratePending(ctx); err != nil {
				log.Println("purchase order generation failed:", err)
			}
		}
	}
}

// GeneratePending creates purchase orders for every approved request
// that lacks one and returns how many were generated.
func (s *poService) GeneratePending(ctx context.Context) (int, error) {
	var requests []model.PurchaseRequest
	err := s.db.WithContext(ctx).
		Preload("Items").
		Where("status = ?", model.StatusApproved).
		Where("NOT EXISTS (SELECT 1 FROM purchase_orders WHERE purchase_orders.request_id = purchase_requests.id)").
		Find(&requests).Error
	if err != nil {
		return 0, fmt.Errorf("failed to find requests awaiting purchase orders: %w", err)
	}

	generated := 0
	for i := range requests {
		if err := s.generate(ctx, &requests[i]); err != nil {
			log.Printf("failed to generate purchase order for request %s: %v", requests[i].ID, err)
			continue
		}
		generated++
	}
	return generated, nil
}

type poItemData struct {
	Description string `json:"description"`
	Quantity    int    `json:"quantity"`
	UnitPrice   string `json:"unit_price"`
	Total       string `json:"total"`
}

func (s *poService) generate(ctx context.Context, request *model.PurchaseRequest) error {
	items := make([]poItemData, 0, len(request.Items))
	for i := range request.Items {
		item := &request.Items[i]
		items = append(items, poItemData{
			Description: item.Description,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice.StringFixed(2),
			Total:       item.TotalPrice().StringFixed(2),
		})
	}
	itemsData, _ := json.Marshal(map[string]interface{}{"items": items})

	// Attribute the PO to the final approver
	generatedBy := request.ApprovedByL2ID
	if generatedBy == nil {
		generatedBy = request.ApprovedByL1ID
	}

	var po model.PurchaseOrder
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Re-check inside the transaction; another instance may have won
		var count int64
		if err := tx.Model(&model.PurchaseOrder{}).Where("request_id = ?", request.ID).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return fmt.Errorf("%w: purchase order already exists", ErrConflict)
		}

		number, err := nextPONumber(tx)
		if err != nil {
			return fmt.Errorf("failed to generate purchase order number: %w", err)
		}

		po = model.PurchaseOrder{
			RequestID:     request.ID,
			PONumber:      number,
			VendorName:    "Unknown Vendor",
			ItemsData:     string(itemsData),
			TotalAmount:   request.Amount,
			GeneratedByID: generatedBy,
		}
		if err := tx.Create(&po).Error; err != nil {
			return fmt.Errorf("failed to create purchase order: %w", err)
		}

		return writeAudit(tx, generatedBy, model.ActionGeneratePO, po.ID.String(), number, map[string]interface{}{
			"request_id": request.ID.String(),
			"total":      request.Amount.StringFixed(2),
		})
	})
	if err != nil {
		return err
	}

	broadcast(s.hub, "po.generated", map[string]interface{}{
		"request_id": request.ID.String(),
		"po_number":  po.PONumber,
	})
	return nil
}

// nextPONumber yields PO-YYYYMMDD-NNNN, sequential within the day
func nextPONumber(tx *gorm.DB) (string, error) {
	prefix := "PO-" + time.Now().Format("20060102") + "-"

	var count int64
	if err := tx.Model(&model.PurchaseOrder{}).
		Where("po_number LIKE ?", prefix+"%").
		Count(&count).Error; err != nil {
		return "", err
	}

	return fmt.Sprintf("%s%04d", prefix, count+1), nil
}
