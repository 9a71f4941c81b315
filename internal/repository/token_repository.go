package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/thankatech/backend/internal/models"
)

var (
	ErrInsufficientTokens       = errors.New("insufficient tokens")
	ErrTokenTransactionNotFound = errors.New("token transaction not found")
)

const pgUniqueViolation = "23505"

// TokenRepository — журнал TOA токенов. Каждая операция выполняется в одной
// транзакции: проверка дубликата, запись в журнал и обновление баланса либо
// применяются вместе, либо не применяются вовсе. Частичные уникальные индексы
// по stripe_session_id / stripe_payment_intent_id страхуют от гонки двух
// одновременных доставок одного события.
type TokenRepository struct {
	db *sqlx.DB
}

// NewTokenRepository создаёт экземпляр репозитория.
func NewTokenRepository(db *sqlx.DB) *TokenRepository {
	return &TokenRepository{db: db}
}

// AddPurchase зачисляет купленные токены. Возвращает false, если сессия уже
// обработана; баланс при этом не меняется.
func (r *TokenRepository) AddPurchase(ctx context.Context, userID uuid.UUID, tokens, dollarValue int64, sessionID string, paymentIntentID *string) (*models.TokenTransaction, bool, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("token repository: begin tx %w", err)
	}
	defer tx.Rollback()

	existing, err := findBySessionID(ctx, tx, sessionID)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, false, nil
	}

	txn := &models.TokenTransaction{
		Type:            models.TokenTransactionPurchase,
		Tokens:          tokens,
		DollarValue:     dollarValue,
		FromUserID:      userID,
		StripeSessionID: &sessionID,
	}
	txn.StripePaymentIntentID = paymentIntentID
	if err := insertTransaction(ctx, tx, txn); err != nil {
		if isUniqueViolation(err) {
			// Параллельная доставка успела первой.
			return r.findBySessionIDFresh(ctx, sessionID)
		}
		return nil, false, err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO token_balances (user_id, tokens, total_purchased)
		VALUES ($1, $2, $2)
		ON CONFLICT (user_id) DO UPDATE SET
			tokens = token_balances.tokens + $2,
			total_purchased = token_balances.total_purchased + $2,
			negative_balance = (token_balances.tokens + $2) < 0,
			updated_at = NOW()
	`, userID, tokens)
	if err != nil {
		return nil, false, fmt.Errorf("token repository: apply purchase %w", err)
	}

	if err := tx.Commit(); err != nil {
		if isUniqueViolation(err) {
			return r.findBySessionIDFresh(ctx, sessionID)
		}
		return nil, false, fmt.Errorf("token repository: commit %w", err)
	}
	return txn, true, nil
}

// Refund списывает возвращённые токены. Возвращает false, если payment intent
// уже обработан. Баланс может уйти в минус: возврат применяется даже если
// токены уже потрачены, такой баланс помечается negative_balance.
func (r *TokenRepository) Refund(ctx context.Context, userID uuid.UUID, tokens, dollarValue int64, paymentIntentID string, reason *string) (*models.TokenTransaction, bool, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("token repository: begin tx %w", err)
	}
	defer tx.Rollback()

	existing, err := findRefundByPaymentIntent(ctx, tx, paymentIntentID)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, false, nil
	}

	txn := &models.TokenTransaction{
		Type:                  models.TokenTransactionRefund,
		Tokens:                -tokens,
		DollarValue:           -dollarValue,
		FromUserID:            userID,
		StripePaymentIntentID: &paymentIntentID,
		Reason:                reason,
	}
	if err := insertTransaction(ctx, tx, txn); err != nil {
		if isUniqueViolation(err) {
			return r.findRefundFresh(ctx, paymentIntentID)
		}
		return nil, false, err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO token_balances (user_id, tokens, total_refunded, negative_balance)
		VALUES ($1, -$2::bigint, $2, TRUE)
		ON CONFLICT (user_id) DO UPDATE SET
			tokens = token_balances.tokens - $2,
			total_refunded = token_balances.total_refunded + $2,
			negative_balance = (token_balances.tokens - $2) < 0,
			updated_at = NOW()
	`, userID, tokens)
	if err != nil {
		return nil, false, fmt.Errorf("token repository: apply refund %w", err)
	}

	if err := tx.Commit(); err != nil {
		if isUniqueViolation(err) {
			return r.findRefundFresh(ctx, paymentIntentID)
		}
		return nil, false, fmt.Errorf("token repository: commit %w", err)
	}
	return txn, true, nil
}

// Spend переводит токены от клиента технику: списывает баланс отправителя и
// начисляет технику очки признательности токен-в-очко.
func (r *TokenRepository) Spend(ctx context.Context, fromUserID, technicianID uuid.UUID, tokens int64) (*models.TokenTransaction, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("token repository: begin tx %w", err)
	}
	defer tx.Rollback()

	var balance models.TokenBalance
	err = tx.GetContext(ctx, &balance, `SELECT * FROM token_balances WHERE user_id = $1 FOR UPDATE`, fromUserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrInsufficientTokens
		}
		return nil, fmt.Errorf("token repository: lock balance %w", err)
	}
	if balance.Tokens < tokens {
		return nil, ErrInsufficientTokens
	}

	txn := &models.TokenTransaction{
		Type:           models.TokenTransactionTOA,
		Tokens:         tokens,
		DollarValue:    tokens * 100 / models.TokensPerDollar,
		PointsAwarded:  tokens,
		FromUserID:     fromUserID,
		ToTechnicianID: &technicianID,
	}
	if err := insertTransaction(ctx, tx, txn); err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE token_balances SET
			tokens = tokens - $2,
			total_spent = total_spent + $2,
			updated_at = NOW()
		WHERE user_id = $1
	`, fromUserID, tokens)
	if err != nil {
		return nil, fmt.Errorf("token repository: debit sender %w", err)
	}

	result, err := tx.ExecContext(ctx,
		`UPDATE technicians SET points = points + $2, updated_at = NOW() WHERE user_id = $1`,
		technicianID, tokens)
	if err != nil {
		return nil, fmt.Errorf("token repository: credit technician %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, ErrTechnicianNotFound
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("token repository: commit %w", err)
	}
	return txn, nil
}

// ThankYou — бесплатная благодарность: одно очко технику и плюс к счётчику
// клиента, без движения токенов.
func (r *TokenRepository) ThankYou(ctx context.Context, fromUserID, technicianID uuid.UUID) (*models.TokenTransaction, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("token repository: begin tx %w", err)
	}
	defer tx.Rollback()

	txn := &models.TokenTransaction{
		Type:           models.TokenTransactionThankYou,
		PointsAwarded:  1,
		FromUserID:     fromUserID,
		ToTechnicianID: &technicianID,
	}
	if err := insertTransaction(ctx, tx, txn); err != nil {
		return nil, err
	}

	result, err := tx.ExecContext(ctx,
		`UPDATE technicians SET points = points + 1, updated_at = NOW() WHERE user_id = $1`, technicianID)
	if err != nil {
		return nil, fmt.Errorf("token repository: credit technician %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, ErrTechnicianNotFound
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE clients SET total_thank_yous_sent = total_thank_yous_sent + 1, updated_at = NOW()
		WHERE user_id = $1
	`, fromUserID)
	if err != nil {
		return nil, fmt.Errorf("token repository: update client %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("token repository: commit %w", err)
	}
	return txn, nil
}

// GetBalance возвращает баланс пользователя; при отсутствии записи — нулевой.
func (r *TokenRepository) GetBalance(ctx context.Context, userID uuid.UUID) (*models.TokenBalance, error) {
	var balance models.TokenBalance
	err := r.db.GetContext(ctx, &balance, `SELECT * FROM token_balances WHERE user_id = $1`, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &models.TokenBalance{UserID: userID}, nil
		}
		return nil, fmt.Errorf("token repository: get balance %w", err)
	}
	return &balance, nil
}

// GetPurchaseByPaymentIntent возвращает покупку токенов по payment intent.
// Нужен возвратам: событие charge.refunded несёт только payment intent.
func (r *TokenRepository) GetPurchaseByPaymentIntent(ctx context.Context, paymentIntentID string) (*models.TokenTransaction, error) {
	var txn models.TokenTransaction
	err := r.db.GetContext(ctx, &txn, `
		SELECT * FROM token_transactions
		WHERE stripe_payment_intent_id = $1 AND type = $2
	`, paymentIntentID, models.TokenTransactionPurchase)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTokenTransactionNotFound
		}
		return nil, fmt.Errorf("token repository: get purchase %w", err)
	}
	return &txn, nil
}

// ListTransactions возвращает журнал пользователя, свежие записи первыми.
func (r *TokenRepository) ListTransactions(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.TokenTransaction, error) {
	txns := []models.TokenTransaction{}
	query := `
		SELECT * FROM token_transactions
		WHERE from_user_id = $1 OR to_technician_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	if err := r.db.SelectContext(ctx, &txns, query, userID, limit, offset); err != nil {
		return nil, fmt.Errorf("token repository: list transactions %w", err)
	}
	return txns, nil
}

func insertTransaction(ctx context.Context, tx *sqlx.Tx, txn *models.TokenTransaction) error {
	query := `
		INSERT INTO token_transactions (type, tokens, dollar_value, points_awarded, from_user_id, to_technician_id, stripe_session_id, stripe_payment_intent_id, reason)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at
	`
	if err := tx.QueryRowxContext(
		ctx,
		query,
		txn.Type,
		txn.Tokens,
		txn.DollarValue,
		txn.PointsAwarded,
		txn.FromUserID,
		txn.ToTechnicianID,
		txn.StripeSessionID,
		txn.StripePaymentIntentID,
		txn.Reason,
	).Scan(&txn.ID, &txn.CreatedAt); err != nil {
		return fmt.Errorf("token repository: insert transaction %w", err)
	}
	return nil
}

func findBySessionID(ctx context.Context, q sqlx.QueryerContext, sessionID string) (*models.TokenTransaction, error) {
	var txn models.TokenTransaction
	err := sqlx.GetContext(ctx, q, &txn, `SELECT * FROM token_transactions WHERE stripe_session_id = $1`, sessionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("token repository: find by session %w", err)
	}
	return &txn, nil
}

func findRefundByPaymentIntent(ctx context.Context, q sqlx.QueryerContext, paymentIntentID string) (*models.TokenTransaction, error) {
	var txn models.TokenTransaction
	err := sqlx.GetContext(ctx, q, &txn, `
		SELECT * FROM token_transactions
		WHERE stripe_payment_intent_id = $1 AND type = $2
	`, paymentIntentID, models.TokenTransactionRefund)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("token repository: find refund %w", err)
	}
	return &txn, nil
}

func (r *TokenRepository) findBySessionIDFresh(ctx context.Context, sessionID string) (*models.TokenTransaction, bool, error) {
	txn, err := findBySessionID(ctx, r.db, sessionID)
	if err != nil {
		return nil, false, err
	}
	return txn, false, nil
}

func (r *TokenRepository) findRefundFresh(ctx context.Context, paymentIntentID string) (*models.TokenTransaction, bool, error) {
	txn, err := findRefundByPaymentIntent(ctx, r.db, paymentIntentID)
	if err != nil {
		return nil, false, err
	}
	return txn, false, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pgUniqueViolation
}
