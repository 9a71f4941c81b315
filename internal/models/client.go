package models

import (
	"time"

	"github.com/google/uuid"
)

// Client описывает накопительные счётчики клиента.
type Client struct {
	UserID            uuid.UUID `db:"user_id" json:"user_id"`
	Points            int64     `db:"points" json:"points"`
	TotalTipsSent     int       `db:"total_tips_sent" json:"total_tips_sent"`
	TotalSpent        int64     `db:"total_spent" json:"total_spent"`
	TotalThankYousSent int      `db:"total_thank_yous_sent" json:"total_thank_yous_sent"`
	UpdatedAt         time.Time `db:"updated_at" json:"updated_at"`
}
