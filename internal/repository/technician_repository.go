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

var ErrTechnicianNotFound = errors.New("technician not found")

// TechnicianRepository работает с профилями техников и их счётчиками.
type TechnicianRepository struct {
	db *sqlx.DB
}

// NewTechnicianRepository создаёт экземпляр репозитория.
func NewTechnicianRepository(db *sqlx.DB) *TechnicianRepository {
	return &TechnicianRepository{db: db}
}

// EnsureProfile создаёт пустой профиль техника, если его ещё нет.
func (r *TechnicianRepository) EnsureProfile(ctx context.Context, userID uuid.UUID) error {
	query := `
		INSERT INTO technicians (user_id, stripe_account_status)
		VALUES ($1, $2)
		ON CONFLICT (user_id) DO NOTHING
	`
	if _, err := r.db.ExecContext(ctx, query, userID, models.StripeAccountStatusNone); err != nil {
		return fmt.Errorf("technician repository: ensure profile %w", err)
	}
	return nil
}

// GetByUserID возвращает профиль техника.
func (r *TechnicianRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (*models.Technician, error) {
	var tech models.Technician
	if err := r.db.GetContext(ctx, &tech, `SELECT * FROM technicians WHERE user_id = $1`, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTechnicianNotFound
		}
		return nil, fmt.Errorf("technician repository: get by user id %w", err)
	}
	return &tech, nil
}

// GetByStripeAccountID возвращает техника по идентификатору Connect аккаунта.
func (r *TechnicianRepository) GetByStripeAccountID(ctx context.Context, accountID string) (*models.Technician, error) {
	var tech models.Technician
	if err := r.db.GetContext(ctx, &tech, `SELECT * FROM technicians WHERE stripe_account_id = $1`, accountID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTechnicianNotFound
		}
		return nil, fmt.Errorf("technician repository: get by stripe account %w", err)
	}
	return &tech, nil
}

// UpdateProfileParams — изменяемые поля профиля. nil означает «не трогать».
type UpdateProfileParams struct {
	BusinessName *string
	Category     *string
	Bio          *string
	Phone        *string
	Location     *string
}

// UpdateProfile частично обновляет профиль техника.
func (r *TechnicianRepository) UpdateProfile(ctx context.Context, userID uuid.UUID, params UpdateProfileParams) error {
	query := `
		UPDATE technicians SET
			business_name = COALESCE($2, business_name),
			category      = COALESCE($3, category),
			bio           = COALESCE($4, bio),
			phone         = COALESCE($5, phone),
			location      = COALESCE($6, location),
			updated_at    = NOW()
		WHERE user_id = $1
	`
	result, err := r.db.ExecContext(ctx, query, userID,
		params.BusinessName, params.Category, params.Bio, params.Phone, params.Location)
	if err != nil {
		return fmt.Errorf("technician repository: update profile %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrTechnicianNotFound
	}
	return nil
}

// SetPhoto привязывает загруженное фото к профилю.
func (r *TechnicianRepository) SetPhoto(ctx context.Context, userID uuid.UUID, photoID uuid.UUID) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE technicians SET photo_id = $2, updated_at = NOW() WHERE user_id = $1`, userID, photoID)
	if err != nil {
		return fmt.Errorf("technician repository: set photo %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrTechnicianNotFound
	}
	return nil
}

// ListParams — фильтры публичного каталога.
type ListParams struct {
	Category *string
	Location *string
	Search   *string
	Limit    int
	Offset   int
}

// List возвращает карточки техников для каталога. can_be_tipped показывает,
// что активный аккаунт может принимать чаевые.
func (r *TechnicianRepository) List(ctx context.Context, params ListParams) ([]models.TechnicianListItem, error) {
	query := `
		SELECT
			t.user_id, u.first_name, u.last_name, u.unique_id,
			t.business_name, t.category, t.location, t.photo_id,
			t.total_tips, t.points,
			u.is_active AS can_be_tipped
		FROM technicians t
		JOIN users u ON u.id = t.user_id
		WHERE u.is_active = TRUE
			AND ($1::text IS NULL OR t.category = $1)
			AND ($2::text IS NULL OR t.location ILIKE '%' || $2 || '%')
			AND ($3::text IS NULL OR
				u.first_name ILIKE '%' || $3 || '%' OR
				u.last_name ILIKE '%' || $3 || '%' OR
				t.business_name ILIKE '%' || $3 || '%')
		ORDER BY t.points DESC, t.total_tips DESC
		LIMIT $4 OFFSET $5
	`
	items := []models.TechnicianListItem{}
	if err := r.db.SelectContext(ctx, &items, query,
		params.Category, params.Location, params.Search, params.Limit, params.Offset); err != nil {
		return nil, fmt.Errorf("technician repository: list %w", err)
	}
	return items, nil
}

// SetStripeAccount сохраняет только что созданный Connect аккаунт техника.
func (r *TechnicianRepository) SetStripeAccount(ctx context.Context, userID uuid.UUID, accountID, status string) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE technicians
		SET stripe_account_id = $2, stripe_account_status = $3, updated_at = NOW()
		WHERE user_id = $1
	`, userID, accountID, status)
	if err != nil {
		return fmt.Errorf("technician repository: set stripe account %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrTechnicianNotFound
	}
	return nil
}

// SetStripeAccountStatus обновляет статус по событию account.updated.
func (r *TechnicianRepository) SetStripeAccountStatus(ctx context.Context, accountID, status string) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE technicians
		SET stripe_account_status = $2, updated_at = NOW()
		WHERE stripe_account_id = $1
	`, accountID, status)
	if err != nil {
		return fmt.Errorf("technician repository: set stripe status %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrTechnicianNotFound
	}
	return nil
}

// ClearStripeAccount сбрасывает Connect аккаунт (удаление в Stripe).
func (r *TechnicianRepository) ClearStripeAccount(ctx context.Context, userID uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE technicians
		SET stripe_account_id = NULL, stripe_account_status = $2, updated_at = NOW()
		WHERE user_id = $1
	`, userID, models.StripeAccountStatusNone)
	if err != nil {
		return fmt.Errorf("technician repository: clear stripe account %w", err)
	}
	return nil
}
