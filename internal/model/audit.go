package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	ActionRegisterUser = "REGISTER_USER"

	// Request workflow actions
	ActionCreateRequest   = "CREATE_REQUEST"
	ActionUpdateRequest   = "UPDATE_REQUEST"
	ActionApproveLevel1   = "APPROVE_REQUEST_LEVEL_1"
	ActionApproveLevel2   = "APPROVE_REQUEST_LEVEL_2"
	ActionRejectRequest   = "REJECT_REQUEST"
	ActionUploadProforma  = "UPLOAD_PROFORMA"
	ActionUploadReceipt   = "UPLOAD_RECEIPT"
	ActionValidateReceipt = "VALIDATE_RECEIPT"
	ActionGeneratePO      = "GENERATE_PURCHASE_ORDER"
)

// AuditLog tracks Who, What, and When for critical system changes
type AuditLog struct {
	ID         uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	UserID     *uuid.UUID `gorm:"type:uuid;index" json:"user_id"` // Nullable for system actors like the PO generator
	User       *User      `gorm:"foreignKey:UserID" json:"user"`
	Action     string     `gorm:"type:varchar(50);not null;index" json:"action"`
	EntityID   string     `gorm:"type:varchar(50);index" json:"entity_id"`        // Reference string (uuid/code)
	EntityName string     `gorm:"type:varchar(255)" json:"entity_name,omitempty"` // Human readable name
	Details    string     `gorm:"type:jsonb" json:"details"`                      // Serialized JSON payload of the action
	CreatedAt  time.Time  `gorm:"index" json:"created_at"`
}

func (a *AuditLog) BeforeCreate(*gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
