package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Role enum constants — closed set, not extensible at runtime
const (
	RoleStaff          = "staff"
	RoleApproverLevel1 = "approver_level_1"
	RoleApproverLevel2 = "approver_level_2"
	RoleFinance        = "finance"
)

// AllRoles lists every valid role for validation and middleware allow-lists
var AllRoles = []string{RoleStaff, RoleApproverLevel1, RoleApproverLevel2, RoleFinance}

// User represents the central user entity for logic and database structure
type User struct {
	ID         uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Username   string         `gorm:"type:varchar(255);uniqueIndex;not null" json:"username"`
	Email      string         `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	Password   string         `gorm:"type:varchar(255);not null" json:"-"` // Omit password from JSON requests/responses
	FirstName  string         `gorm:"type:varchar(150)" json:"first_name"`
	LastName   string         `gorm:"type:varchar(150)" json:"last_name"`
	Role       string         `gorm:"type:varchar(20);not null;default:'staff'" json:"role"`
	Department string         `gorm:"type:varchar(100)" json:"department,omitempty"`
	Phone      string         `gorm:"type:varchar(20)" json:"phone,omitempty"`
	CreatedAt  time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"-"` // GORM soft delete
}

// BeforeCreate assigns the primary key so the schema works on every dialect
func (u *User) BeforeCreate(*gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

func (u *User) IsStaff() bool { return u.Role == RoleStaff }

func (u *User) IsApproverLevel1() bool { return u.Role == RoleApproverLevel1 }

func (u *User) IsApproverLevel2() bool { return u.Role == RoleApproverLevel2 }

func (u *User) IsFinance() bool { return u.Role == RoleFinance }

// IsApprover reports whether the user may decide requests at any level
func (u *User) IsApprover() bool {
	return u.Role == RoleApproverLevel1 || u.Role == RoleApproverLevel2
}

// ValidRole reports whether role belongs to the closed role set
func ValidRole(role string) bool {
	for _, r := range AllRoles {
		if r == role {
			return true
		}
	}
	return false
}

// RefreshToken stores long-lived tokens allowing users to request new access tokens.
// Only a SHA-256 hash of the raw token is persisted.
type RefreshToken struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    uuid.UUID  `gorm:"type:uuid;not null;index" json:"user_id"`
	User      User       `gorm:"foreignKey:UserID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	TokenHash string     `gorm:"type:varchar(64);uniqueIndex;not null" json:"-"`
	ExpiresAt time.Time  `gorm:"not null" json:"expires_at"`
	RevokedAt *time.Time `json:"revoked_at,omitempty"`
	CreatedAt time.Time  `gorm:"autoCreateTime" json:"created_at"`
}

func (t *RefreshToken) BeforeCreate(*gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

// Usable reports whether the token can still be exchanged for a new pair
func (t *RefreshToken) Usable(now time.Time) bool {
	return t.RevokedAt == nil && now.Before(t.ExpiresAt)
}
