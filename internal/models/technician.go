package models

import (
	"time"

	"github.com/google/uuid"
)

// Статусы Stripe Connect аккаунта техника
const (
	StripeAccountStatusNone    = "none"
	StripeAccountStatusPending = "pending"
	StripeAccountStatusActive  = "active"
)

// Technician описывает бизнес-профиль техника и его накопительные счётчики.
// Счётчики total_* обновляются инкрементально в одной транзакции с записью
// события (чаевые, TOA, выплата).
type Technician struct {
	UserID       uuid.UUID  `db:"user_id" json:"user_id"`
	BusinessName *string    `db:"business_name" json:"business_name,omitempty"`
	Category     *string    `db:"category" json:"category,omitempty"`
	Bio          *string    `db:"bio" json:"bio,omitempty"`
	Phone        *string    `db:"phone" json:"phone,omitempty"`
	Location     *string    `db:"location" json:"location,omitempty"`
	PhotoID      *uuid.UUID `db:"photo_id" json:"photo_id,omitempty"`

	StripeAccountID     *string `db:"stripe_account_id" json:"stripe_account_id,omitempty"`
	StripeAccountStatus string  `db:"stripe_account_status" json:"stripe_account_status"`

	TotalTips      int       `db:"total_tips" json:"total_tips"`
	TotalTipAmount int64     `db:"total_tip_amount" json:"total_tip_amount"`
	TotalEarnings  int64     `db:"total_earnings" json:"total_earnings"`
	Points         int64     `db:"points" json:"points"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// TechnicianListItem — карточка техника в публичном каталоге.
type TechnicianListItem struct {
	UserID       uuid.UUID  `db:"user_id" json:"user_id"`
	FirstName    string     `db:"first_name" json:"first_name"`
	LastName     string     `db:"last_name" json:"last_name"`
	UniqueID     string     `db:"unique_id" json:"unique_id"`
	BusinessName *string    `db:"business_name" json:"business_name,omitempty"`
	Category     *string    `db:"category" json:"category,omitempty"`
	Location     *string    `db:"location" json:"location,omitempty"`
	PhotoID      *uuid.UUID `db:"photo_id" json:"photo_id,omitempty"`
	TotalTips    int        `db:"total_tips" json:"total_tips"`
	Points       int64      `db:"points" json:"points"`
	CanBeTipped  bool       `db:"can_be_tipped" json:"can_be_tipped"`
}
