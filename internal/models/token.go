package models

import (
	"time"

	"github.com/google/uuid"
)

// Типы токен-транзакций
const (
	TokenTransactionPurchase = "token_purchase"
	TokenTransactionTOA      = "toa"
	TokenTransactionThankYou = "thank_you"
	TokenTransactionRefund   = "token_refund"
)

// Курс TOA: 100 токенов за доллар.
const TokensPerDollar = 100

// TokenTransaction — запись журнала токенов. Tokens знаковое: отрицательное
// для возвратов. StripeSessionID / StripePaymentIntentID служат ключом
// идемпотентности при повторной доставке события.
type TokenTransaction struct {
	ID                    uuid.UUID  `db:"id" json:"id"`
	Type                  string     `db:"type" json:"type"`
	Tokens                int64      `db:"tokens" json:"tokens"`
	DollarValue           int64      `db:"dollar_value" json:"dollar_value"`
	PointsAwarded         int64      `db:"points_awarded" json:"points_awarded"`
	FromUserID            uuid.UUID  `db:"from_user_id" json:"from_user_id"`
	ToTechnicianID        *uuid.UUID `db:"to_technician_id" json:"to_technician_id,omitempty"`
	StripeSessionID       *string    `db:"stripe_session_id" json:"stripe_session_id,omitempty"`
	StripePaymentIntentID *string    `db:"stripe_payment_intent_id" json:"stripe_payment_intent_id,omitempty"`
	Reason                *string    `db:"reason" json:"reason,omitempty"`
	CreatedAt             time.Time  `db:"created_at" json:"created_at"`
}

// TokenBalance — баланс TOA токенов пользователя. После возврата, превышающего
// остаток, Tokens может уйти в минус; такой баланс помечается NegativeBalance.
type TokenBalance struct {
	UserID          uuid.UUID `db:"user_id" json:"user_id"`
	Tokens          int64     `db:"tokens" json:"tokens"`
	TotalPurchased  int64     `db:"total_purchased" json:"total_purchased"`
	TotalSpent      int64     `db:"total_spent" json:"total_spent"`
	TotalRefunded   int64     `db:"total_refunded" json:"total_refunded"`
	NegativeBalance bool      `db:"negative_balance" json:"negative_balance"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}
