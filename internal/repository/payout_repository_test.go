package repository

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/thankatech/backend/internal/models"
)

func TestPayoutRepository_Create_ReservesNetAmount(t *testing.T) {
	conn := newTestDB(t)
	repo := NewPayoutRepository(conn)
	ctx := context.Background()
	techID := createTestTechnician(t, conn, 1800)

	// Запрошено 2000 gross, чистыми 1770: выручки 1800 хватает,
	// потому что резервируется и проверяется чистая сумма.
	payout := &models.Payout{
		TechnicianID: techID,
		Amount:       2000,
		Fee:          230,
		NetAmount:    1770,
		Status:       models.PayoutStatusPending,
	}
	assert.NoError(t, repo.Create(ctx, payout))
	assert.NotEqual(t, uuid.Nil, payout.ID)

	var earnings int64
	assert.NoError(t, conn.Get(&earnings, `SELECT total_earnings FROM technicians WHERE user_id = $1`, techID))
	assert.Equal(t, int64(30), earnings)
}

func TestPayoutRepository_Create_InsufficientEarnings(t *testing.T) {
	conn := newTestDB(t)
	repo := NewPayoutRepository(conn)
	ctx := context.Background()
	techID := createTestTechnician(t, conn, 1000)

	payout := &models.Payout{
		TechnicianID: techID,
		Amount:       2000,
		Fee:          230,
		NetAmount:    1770,
		Status:       models.PayoutStatusPending,
	}
	assert.ErrorIs(t, repo.Create(ctx, payout), ErrInsufficientEarnings)
}
