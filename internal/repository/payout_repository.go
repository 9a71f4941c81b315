package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/thankatech/backend/internal/models"
)

var (
	ErrPayoutNotFound       = errors.New("payout not found")
	ErrInsufficientEarnings = errors.New("insufficient earnings")
)

// PayoutRepository работает с выплатами. Создание выплаты резервирует чистую
// сумму из total_earnings техника в той же транзакции.
type PayoutRepository struct {
	db *sqlx.DB
}

// NewPayoutRepository создаёт экземпляр репозитория.
func NewPayoutRepository(db *sqlx.DB) *PayoutRepository {
	return &PayoutRepository{db: db}
}

// Create сохраняет выплату и списывает её чистую сумму с накопленной выручки
// техника. Комиссия платформы остаётся у платформы и выручку не уменьшает.
func (r *PayoutRepository) Create(ctx context.Context, payout *models.Payout) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("payout repository: begin tx %w", err)
	}
	defer tx.Rollback()

	var earnings int64
	err = tx.GetContext(ctx, &earnings,
		`SELECT total_earnings FROM technicians WHERE user_id = $1 FOR UPDATE`, payout.TechnicianID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrTechnicianNotFound
		}
		return fmt.Errorf("payout repository: lock technician %w", err)
	}
	if earnings < payout.NetAmount {
		return ErrInsufficientEarnings
	}

	query := `
		INSERT INTO payouts (technician_id, transfer_id, amount, fee, net_amount, status, estimated_arrival)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at
	`
	if err := tx.QueryRowxContext(
		ctx,
		query,
		payout.TechnicianID,
		payout.TransferID,
		payout.Amount,
		payout.Fee,
		payout.NetAmount,
		payout.Status,
		payout.EstimatedArrival,
	).Scan(&payout.ID, &payout.CreatedAt); err != nil {
		return fmt.Errorf("payout repository: create %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE technicians SET total_earnings = total_earnings - $2, updated_at = NOW() WHERE user_id = $1`,
		payout.TechnicianID, payout.NetAmount)
	if err != nil {
		return fmt.Errorf("payout repository: reserve earnings %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("payout repository: commit %w", err)
	}
	return nil
}

// SetTransfer привязывает созданный в Stripe transfer к выплате.
func (r *PayoutRepository) SetTransfer(ctx context.Context, payoutID uuid.UUID, transferID, status string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE payouts SET transfer_id = $2, status = $3 WHERE id = $1`, payoutID, transferID, status)
	if err != nil {
		return fmt.Errorf("payout repository: set transfer %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrPayoutNotFound
	}
	return nil
}

// UpdateStatusByTransfer обновляет статус по событию transfer.* из Stripe.
func (r *PayoutRepository) UpdateStatusByTransfer(ctx context.Context, transferID, status string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE payouts SET status = $2 WHERE transfer_id = $1`, transferID, status)
	if err != nil {
		return fmt.Errorf("payout repository: update status %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrPayoutNotFound
	}
	return nil
}

// MarkFailedByTransfer помечает выплату проваленной и возвращает чистую сумму
// обратно в выручку техника. Идемпотентно по статусу.
func (r *PayoutRepository) MarkFailedByTransfer(ctx context.Context, transferID string) (*models.Payout, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("payout repository: begin tx %w", err)
	}
	defer tx.Rollback()

	var payout models.Payout
	err = tx.GetContext(ctx, &payout, `SELECT * FROM payouts WHERE transfer_id = $1 FOR UPDATE`, transferID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPayoutNotFound
		}
		return nil, fmt.Errorf("payout repository: lock payout %w", err)
	}
	if payout.Status == models.PayoutStatusFailed {
		return &payout, nil
	}

	err = tx.GetContext(ctx, &payout, `UPDATE payouts SET status = $2 WHERE id = $1 RETURNING *`,
		payout.ID, models.PayoutStatusFailed)
	if err != nil {
		return nil, fmt.Errorf("payout repository: mark failed %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE technicians SET total_earnings = total_earnings + $2, updated_at = NOW() WHERE user_id = $1`,
		payout.TechnicianID, payout.NetAmount)
	if err != nil {
		return nil, fmt.Errorf("payout repository: restore earnings %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("payout repository: commit %w", err)
	}
	return &payout, nil
}

// Fail помечает выплату проваленной по её идентификатору и возвращает чистую
// сумму в выручку техника. Используется, когда transfer так и не был создан.
func (r *PayoutRepository) Fail(ctx context.Context, payoutID uuid.UUID) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("payout repository: begin tx %w", err)
	}
	defer tx.Rollback()

	var payout models.Payout
	err = tx.GetContext(ctx, &payout, `SELECT * FROM payouts WHERE id = $1 FOR UPDATE`, payoutID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrPayoutNotFound
		}
		return fmt.Errorf("payout repository: lock payout %w", err)
	}
	if payout.Status == models.PayoutStatusFailed {
		return nil
	}

	_, err = tx.ExecContext(ctx, `UPDATE payouts SET status = $2 WHERE id = $1`,
		payout.ID, models.PayoutStatusFailed)
	if err != nil {
		return fmt.Errorf("payout repository: mark failed %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE technicians SET total_earnings = total_earnings + $2, updated_at = NOW() WHERE user_id = $1`,
		payout.TechnicianID, payout.NetAmount)
	if err != nil {
		return fmt.Errorf("payout repository: restore earnings %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("payout repository: commit %w", err)
	}
	return nil
}

// GetByID возвращает выплату.
func (r *PayoutRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Payout, error) {
	var payout models.Payout
	if err := r.db.GetContext(ctx, &payout, `SELECT * FROM payouts WHERE id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPayoutNotFound
		}
		return nil, fmt.Errorf("payout repository: get by id %w", err)
	}
	return &payout, nil
}

// ListByTechnician возвращает выплаты техника, свежие первыми.
func (r *PayoutRepository) ListByTechnician(ctx context.Context, technicianID uuid.UUID, limit, offset int) ([]models.Payout, error) {
	payouts := []models.Payout{}
	query := `
		SELECT * FROM payouts
		WHERE technician_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	if err := r.db.SelectContext(ctx, &payouts, query, technicianID, limit, offset); err != nil {
		return nil, fmt.Errorf("payout repository: list by technician %w", err)
	}
	return payouts, nil
}
