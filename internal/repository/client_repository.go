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

var ErrClientNotFound = errors.New("client not found")

// ClientRepository работает со счётчиками клиентов.
type ClientRepository struct {
	db *sqlx.DB
}

// NewClientRepository создаёт экземпляр репозитория.
func NewClientRepository(db *sqlx.DB) *ClientRepository {
	return &ClientRepository{db: db}
}

// EnsureProfile создаёт запись клиента, если её ещё нет.
func (r *ClientRepository) EnsureProfile(ctx context.Context, userID uuid.UUID) error {
	query := `INSERT INTO clients (user_id) VALUES ($1) ON CONFLICT (user_id) DO NOTHING`
	if _, err := r.db.ExecContext(ctx, query, userID); err != nil {
		return fmt.Errorf("client repository: ensure profile %w", err)
	}
	return nil
}

// GetByUserID возвращает счётчики клиента.
func (r *ClientRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (*models.Client, error) {
	var client models.Client
	if err := r.db.GetContext(ctx, &client, `SELECT * FROM clients WHERE user_id = $1`, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrClientNotFound
		}
		return nil, fmt.Errorf("client repository: get by user id %w", err)
	}
	return &client, nil
}
