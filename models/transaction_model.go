package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	TxStatusPending = "pending"
	TxStatusPaid    = "paid"
	TxStatusFailed  = "failed"
)

const (
	ItemTypePlan  = "plan"
	ItemTypeAddon = "addon"
)

type PaymentTransaction struct {
	ID       uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	UserID   string    `gorm:"size:255;not null" json:"user_id"`
	ItemType string    `gorm:"size:20;not null" json:"item_type"`
	ItemID   string    `gorm:"size:255;not null" json:"item_id"`
	Amount   float64   `gorm:"type:numeric(10,2);not null" json:"amount"`
	Currency string    `gorm:"size:3;not null" json:"currency"`
	Provider string    `gorm:"size:50;not null" json:"provider"`
	Status   string    `gorm:"size:20;not null;default:'pending'" json:"status"`

	// Opaque session id at the payment provider, filled in once the
	// checkout session has been created.
	ProviderReference *string `gorm:"size:255" json:"provider_reference"`

	// Accumulates every provider interaction (session snapshot, webhook
	// event, manual-confirm marker). Merged into, never replaced.
	RawPayload datatypes.JSONMap `json:"raw_payload"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
