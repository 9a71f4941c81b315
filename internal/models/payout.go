package models

import (
	"time"

	"github.com/google/uuid"
)

// Статусы выплат
const (
	PayoutStatusPending   = "pending"
	PayoutStatusInTransit = "in_transit"
	PayoutStatusPaid      = "paid"
	PayoutStatusFailed    = "failed"
)

// Payout — выплата технику через Stripe Connect transfer. Суммы в центах,
// NetAmount = Amount - Fee.
type Payout struct {
	ID               uuid.UUID  `db:"id" json:"id"`
	TechnicianID     uuid.UUID  `db:"technician_id" json:"technician_id"`
	TransferID       *string    `db:"transfer_id" json:"transfer_id,omitempty"`
	Amount           int64      `db:"amount" json:"amount"`
	Fee              int64      `db:"fee" json:"fee"`
	NetAmount        int64      `db:"net_amount" json:"net_amount"`
	Status           string     `db:"status" json:"status"`
	EstimatedArrival *time.Time `db:"estimated_arrival" json:"estimated_arrival,omitempty"`
	CreatedAt        time.Time  `db:"created_at" json:"created_at"`
}
