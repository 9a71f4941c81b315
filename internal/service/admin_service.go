package service

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/thankatech/backend/internal/logger"
	"github.com/thankatech/backend/internal/models"
	"github.com/thankatech/backend/internal/pkg/apperror"
	"github.com/thankatech/backend/internal/repository"
)

// AdminUserStore — операции над пользователями, доступные администратору.
type AdminUserStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	Delete(ctx context.Context, userID uuid.UUID) error
	DeleteUserSessions(ctx context.Context, userID uuid.UUID) error
}

// ConnectAccountRemover удаляет Connect аккаунт пользователя.
type ConnectAccountRemover interface {
	DeleteExpressAccount(ctx context.Context, userID uuid.UUID) error
}

// AdminService — административные операции: возвраты и удаление аккаунтов.
type AdminService struct {
	users   AdminUserStore
	tips    *TipService
	connect ConnectAccountRemover
}

// NewAdminService создаёт административный сервис.
func NewAdminService(users AdminUserStore, tips *TipService, connect ConnectAccountRemover) *AdminService {
	return &AdminService{users: users, tips: tips, connect: connect}
}

// RefundTip инициирует возврат чаевых от имени администратора.
func (s *AdminService) RefundTip(ctx context.Context, tipID uuid.UUID, reason string) (*models.Tip, error) {
	return s.tips.RefundTip(ctx, tipID, reason)
}

// DeleteStep — итог одного шага удаления пользователя.
type DeleteStep struct {
	Name  string `json:"name"`
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// DeleteUserResult — пошаговый итог удаления. Partial выставляется, когда
// часть шагов провалилась: ответ в этом случае 207 Multi-Status.
type DeleteUserResult struct {
	UserID  uuid.UUID    `json:"user_id"`
	Steps   []DeleteStep `json:"steps"`
	Partial bool         `json:"partial"`
}

// DeleteUser удаляет внешние ресурсы пользователя и его данные. Провал одного
// шага не останавливает остальные: администратор видит, что осталось
// подчистить вручную.
func (s *AdminService) DeleteUser(ctx context.Context, userID uuid.UUID) (*DeleteUserResult, error) {
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, apperror.ErrUserNotFound
		}
		return nil, err
	}

	result := &DeleteUserResult{UserID: userID}
	addStep := func(name string, err error) {
		step := DeleteStep{Name: name, OK: err == nil}
		if err != nil {
			step.Error = err.Error()
			result.Partial = true
			if logger.Log != nil {
				logger.Log.WithFields(map[string]interface{}{
					"user_id": userID,
					"step":    name,
					"error":   err.Error(),
				}).Warn("admin service: шаг удаления провалился")
			}
		}
		result.Steps = append(result.Steps, step)
	}

	addStep("stripe_account", s.connect.DeleteExpressAccount(ctx, userID))
	addStep("sessions", s.users.DeleteUserSessions(ctx, userID))
	addStep("user_data", s.users.Delete(ctx, userID))

	return result, nil
}
