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

var ErrTipNotFound = errors.New("tip not found")

// TipRepository работает с чаевыми. Завершение и возврат чаевых обновляют
// счётчики техника и клиента в одной транзакции с самой записью.
type TipRepository struct {
	db *sqlx.DB
}

// NewTipRepository создаёт экземпляр репозитория.
func NewTipRepository(db *sqlx.DB) *TipRepository {
	return &TipRepository{db: db}
}

// CreatePending сохраняет чаевые в статусе pending до подтверждения оплаты.
func (r *TipRepository) CreatePending(ctx context.Context, tip *models.Tip) error {
	query := `
		INSERT INTO tips (technician_id, customer_id, customer_name, amount, platform_fee, technician_payout, status, payment_intent_id, message)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at
	`
	tip.Status = models.TipStatusPending
	if err := r.db.QueryRowxContext(
		ctx,
		query,
		tip.TechnicianID,
		tip.CustomerID,
		tip.CustomerName,
		tip.Amount,
		tip.PlatformFee,
		tip.TechnicianPayout,
		tip.Status,
		tip.PaymentIntentID,
		tip.Message,
	).Scan(&tip.ID, &tip.CreatedAt); err != nil {
		return fmt.Errorf("tip repository: create %w", err)
	}
	return nil
}

// GetByID возвращает чаевые по идентификатору.
func (r *TipRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Tip, error) {
	var tip models.Tip
	if err := r.db.GetContext(ctx, &tip, `SELECT * FROM tips WHERE id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTipNotFound
		}
		return nil, fmt.Errorf("tip repository: get by id %w", err)
	}
	return &tip, nil
}

// GetByPaymentIntent возвращает чаевые по payment intent.
func (r *TipRepository) GetByPaymentIntent(ctx context.Context, paymentIntentID string) (*models.Tip, error) {
	var tip models.Tip
	if err := r.db.GetContext(ctx, &tip, `SELECT * FROM tips WHERE payment_intent_id = $1`, paymentIntentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTipNotFound
		}
		return nil, fmt.Errorf("tip repository: get by payment intent %w", err)
	}
	return &tip, nil
}

// CompleteByPaymentIntent переводит чаевые в completed и обновляет счётчики
// техника и клиента. Повторная доставка события безопасна: уже завершённые
// чаевые не трогаются, второе значение показывает, применилось ли событие.
func (r *TipRepository) CompleteByPaymentIntent(ctx context.Context, paymentIntentID string) (*models.Tip, bool, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("tip repository: begin tx %w", err)
	}
	defer tx.Rollback()

	var tip models.Tip
	err = tx.GetContext(ctx, &tip, `SELECT * FROM tips WHERE payment_intent_id = $1 FOR UPDATE`, paymentIntentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, ErrTipNotFound
		}
		return nil, false, fmt.Errorf("tip repository: lock tip %w", err)
	}

	if tip.Status != models.TipStatusPending {
		// Уже обработано более ранней доставкой.
		return &tip, false, nil
	}

	err = tx.GetContext(ctx, &tip, `
		UPDATE tips SET status = $2, completed_at = NOW()
		WHERE id = $1
		RETURNING *
	`, tip.ID, models.TipStatusCompleted)
	if err != nil {
		return nil, false, fmt.Errorf("tip repository: complete %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE technicians SET
			total_tips = total_tips + 1,
			total_tip_amount = total_tip_amount + $2,
			total_earnings = total_earnings + $3,
			updated_at = NOW()
		WHERE user_id = $1
	`, tip.TechnicianID, tip.Amount, tip.TechnicianPayout)
	if err != nil {
		return nil, false, fmt.Errorf("tip repository: update technician totals %w", err)
	}

	if tip.CustomerID != nil {
		_, err = tx.ExecContext(ctx, `
			UPDATE clients SET
				total_tips_sent = total_tips_sent + 1,
				total_spent = total_spent + $2,
				updated_at = NOW()
			WHERE user_id = $1
		`, *tip.CustomerID, tip.Amount)
		if err != nil {
			return nil, false, fmt.Errorf("tip repository: update client totals %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("tip repository: commit %w", err)
	}
	return &tip, true, nil
}

// RefundByPaymentIntent помечает чаевые возвращёнными и откатывает выручку
// техника на сумму его доли. Идемпотентно по статусу.
func (r *TipRepository) RefundByPaymentIntent(ctx context.Context, paymentIntentID string) (*models.Tip, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("tip repository: begin tx %w", err)
	}
	defer tx.Rollback()

	var tip models.Tip
	err = tx.GetContext(ctx, &tip, `SELECT * FROM tips WHERE payment_intent_id = $1 FOR UPDATE`, paymentIntentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTipNotFound
		}
		return nil, fmt.Errorf("tip repository: lock tip %w", err)
	}

	if tip.Status == models.TipStatusRefunded {
		return &tip, nil
	}
	wasCompleted := tip.Status == models.TipStatusCompleted

	err = tx.GetContext(ctx, &tip, `UPDATE tips SET status = $2 WHERE id = $1 RETURNING *`,
		tip.ID, models.TipStatusRefunded)
	if err != nil {
		return nil, fmt.Errorf("tip repository: refund %w", err)
	}

	if wasCompleted {
		_, err = tx.ExecContext(ctx, `
			UPDATE technicians SET
				total_tips = total_tips - 1,
				total_tip_amount = total_tip_amount - $2,
				total_earnings = total_earnings - $3,
				updated_at = NOW()
			WHERE user_id = $1
		`, tip.TechnicianID, tip.Amount, tip.TechnicianPayout)
		if err != nil {
			return nil, fmt.Errorf("tip repository: rollback technician totals %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("tip repository: commit %w", err)
	}
	return &tip, nil
}

// ListByTechnician возвращает завершённые чаевые техника, свежие первыми.
func (r *TipRepository) ListByTechnician(ctx context.Context, technicianID uuid.UUID, limit, offset int) ([]models.Tip, error) {
	tips := []models.Tip{}
	query := `
		SELECT * FROM tips
		WHERE technician_id = $1 AND status != $2
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4
	`
	if err := r.db.SelectContext(ctx, &tips, query, technicianID, models.TipStatusPending, limit, offset); err != nil {
		return nil, fmt.Errorf("tip repository: list by technician %w", err)
	}
	return tips, nil
}

// ListByCustomer возвращает чаевые, отправленные клиентом.
func (r *TipRepository) ListByCustomer(ctx context.Context, customerID uuid.UUID, limit, offset int) ([]models.Tip, error) {
	tips := []models.Tip{}
	query := `
		SELECT * FROM tips
		WHERE customer_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	if err := r.db.SelectContext(ctx, &tips, query, customerID, limit, offset); err != nil {
		return nil, fmt.Errorf("tip repository: list by customer %w", err)
	}
	return tips, nil
}
