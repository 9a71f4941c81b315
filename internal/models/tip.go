package models

import (
	"time"

	"github.com/google/uuid"
)

// Статусы чаевых
const (
	TipStatusPending   = "pending"
	TipStatusCompleted = "completed"
	TipStatusRefunded  = "refunded"
	TipStatusFailed    = "failed"
)

// Tip представляет чаевые технику. Суммы в центах.
// Инвариант: Amount = PlatformFee + TechnicianPayout.
type Tip struct {
	ID               uuid.UUID  `db:"id" json:"id"`
	TechnicianID     uuid.UUID  `db:"technician_id" json:"technician_id"`
	CustomerID       *uuid.UUID `db:"customer_id" json:"customer_id,omitempty"`
	CustomerName     *string    `db:"customer_name" json:"customer_name,omitempty"`
	Amount           int64      `db:"amount" json:"amount"`
	PlatformFee      int64      `db:"platform_fee" json:"platform_fee"`
	TechnicianPayout int64      `db:"technician_payout" json:"technician_payout"`
	Status           string     `db:"status" json:"status"`
	PaymentIntentID  *string    `db:"payment_intent_id" json:"payment_intent_id,omitempty"`
	Message          *string    `db:"message" json:"message,omitempty"`
	CreatedAt        time.Time  `db:"created_at" json:"created_at"`
	CompletedAt      *time.Time `db:"completed_at" json:"completed_at,omitempty"`
}
