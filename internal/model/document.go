package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Receipt validation status enum constants
const (
	ReceiptPending     = "pending"
	ReceiptValid       = "valid"
	ReceiptDiscrepancy = "discrepancy"
)

// Proforma is the pre-approval estimate document attached to a request.
// At most one proforma exists per request; re-uploads replace it.
type Proforma struct {
	ID           uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	RequestID    uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex" json:"request_id"`
	FilePath     string     `gorm:"type:varchar(500);not null" json:"file"`
	FileName     string     `gorm:"type:varchar(255)" json:"file_name"`
	UploadedByID *uuid.UUID `gorm:"type:uuid" json:"uploaded_by_id"`
	UploadedAt   time.Time  `gorm:"autoCreateTime" json:"uploaded_at"`
}

func (p *Proforma) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// PurchaseOrder is generated asynchronously after final approval
type PurchaseOrder struct {
	ID            uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	RequestID     uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex" json:"request_id"`
	PONumber      string          `gorm:"type:varchar(50);uniqueIndex;not null" json:"po_number"`
	FilePath      string          `gorm:"type:varchar(500)" json:"file"`
	VendorName    string          `gorm:"type:varchar(200)" json:"vendor_name"`
	ItemsData     string          `gorm:"type:jsonb" json:"items_data"` // Serialized snapshot of the ordered items
	TotalAmount   decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"total_amount"`
	GeneratedByID *uuid.UUID      `gorm:"type:uuid" json:"generated_by_id"`
	GeneratedAt   time.Time       `gorm:"autoCreateTime" json:"generated_at"`
}

func (p *PurchaseOrder) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// Receipt is a post-purchase proof document reconciled against the PO
type Receipt struct {
	ID               uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	RequestID        uuid.UUID  `gorm:"type:uuid;not null;index" json:"request_id"`
	FilePath         string     `gorm:"type:varchar(500);not null" json:"file"`
	FileName         string     `gorm:"type:varchar(255)" json:"file_name"`
	UploadedByID     *uuid.UUID `gorm:"type:uuid" json:"uploaded_by_id"`
	ValidationStatus string     `gorm:"type:varchar(20);not null;default:'pending';index" json:"validation_status"`
	Discrepancies    string     `gorm:"type:jsonb" json:"discrepancies"` // Serialized list of reconciliation mismatches
	UploadedAt       time.Time  `gorm:"autoCreateTime" json:"uploaded_at"`
	ValidatedAt      *time.Time `json:"validated_at"`
}

func (r *Receipt) BeforeCreate(*gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
