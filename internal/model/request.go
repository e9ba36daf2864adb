package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// RequestStatus enum constants
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

// PurchaseRequest represents a purchase request moving through the
// two-level approval workflow. approved and rejected are terminal.
type PurchaseRequest struct {
	ID               uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	Title            string          `gorm:"type:varchar(200);not null" json:"title"`
	Description      string          `gorm:"type:text;not null" json:"description"`
	Amount           decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount"`
	Status           string          `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	CreatedByID      uuid.UUID       `gorm:"type:uuid;not null;index" json:"created_by_id"`
	CreatedBy        User            `gorm:"foreignKey:CreatedByID" json:"created_by"`
	ApprovedByL1ID   *uuid.UUID      `gorm:"type:uuid;index" json:"approved_by_level_1_id"`
	ApprovedByLevel1 *User           `gorm:"foreignKey:ApprovedByL1ID" json:"approved_by_level_1,omitempty"`
	ApprovedByL2ID   *uuid.UUID      `gorm:"type:uuid;index" json:"approved_by_level_2_id"`
	ApprovedByLevel2 *User           `gorm:"foreignKey:ApprovedByL2ID" json:"approved_by_level_2,omitempty"`
	ApprovedAt       *time.Time      `json:"approved_at"`
	RejectedAt       *time.Time      `json:"rejected_at"`
	RejectionReason  string          `gorm:"type:text" json:"rejection_reason"`
	Items            []RequestItem   `gorm:"foreignKey:RequestID;constraint:OnDelete:CASCADE;" json:"items"`
	Proforma         *Proforma       `gorm:"foreignKey:RequestID;constraint:OnDelete:CASCADE;" json:"proforma,omitempty"`
	PurchaseOrder    *PurchaseOrder  `gorm:"foreignKey:RequestID;constraint:OnDelete:CASCADE;" json:"purchase_order,omitempty"`
	Receipts         []Receipt       `gorm:"foreignKey:RequestID;constraint:OnDelete:CASCADE;" json:"receipts"`
	CreatedAt        time.Time       `gorm:"index" json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

func (r *PurchaseRequest) BeforeCreate(*gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// IsPending reports whether the request can still transition
func (r *PurchaseRequest) IsPending() bool { return r.Status == StatusPending }

// RequiresLevel1Approval is true while pending and level 1 has not signed off
func (r *PurchaseRequest) RequiresLevel1Approval() bool {
	return r.Status == StatusPending && r.ApprovedByL1ID == nil
}

// RequiresLevel2Approval encodes the amount-threshold policy: true while
// pending, the amount meets the threshold and level 2 has not signed off
func (r *PurchaseRequest) RequiresLevel2Approval(threshold decimal.Decimal) bool {
	return r.Status == StatusPending &&
		r.Amount.GreaterThanOrEqual(threshold) &&
		r.ApprovedByL2ID == nil
}

// ItemsTotal is the sum of quantity × unit_price over all items
func (r *PurchaseRequest) ItemsTotal() decimal.Decimal {
	total := decimal.Zero
	for _, item := range r.Items {
		total = total.Add(item.TotalPrice())
	}
	return total
}

// RequestItem is a single line item of a purchase request
type RequestItem struct {
	ID          uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	RequestID   uuid.UUID       `gorm:"type:uuid;not null;index" json:"request_id"`
	Description string          `gorm:"type:varchar(200);not null" json:"description"`
	Quantity    int             `gorm:"not null" json:"quantity"`
	UnitPrice   decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"unit_price"`
}

func (i *RequestItem) BeforeCreate(*gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

// TotalPrice is quantity × unit_price
func (i *RequestItem) TotalPrice() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}
