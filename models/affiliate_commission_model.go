package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	CommissionStatusPending = "pending"
	CommissionStatusPaid    = "paid"
)

type AffiliateCommission struct {
	ID uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`

	// Opaque referral code (ex.: viral_AB12CD34). Deliberately not a foreign
	// key into users so commissions survive external referral sources.
	AffiliateCode string `gorm:"size:255;not null" json:"affiliate_code"`

	// Best effort, recovered from checkout metadata when present.
	ReferredUserID *string `gorm:"size:255" json:"referred_user_id"`

	// One commission per transaction, enforced by the unique index. A
	// duplicate insert is treated as success by the derivation code.
	TransactionID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex" json:"transaction_id"`

	Amount   float64 `gorm:"type:numeric(10,2);not null" json:"amount"`
	Currency string  `gorm:"size:3;not null" json:"currency"`
	Status   string  `gorm:"size:20;not null;default:'pending'" json:"status"`

	PaidAt *time.Time `json:"paid_at"`

	// Snapshot of the purchase and referred-user display info at derivation
	// time: itemType, itemId, referredUserName, referredUserEmail.
	Metadata datatypes.JSONMap `json:"metadata"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
