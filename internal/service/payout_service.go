package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/thankatech/backend/internal/goroutine"
	"github.com/thankatech/backend/internal/logger"
	"github.com/thankatech/backend/internal/models"
	"github.com/thankatech/backend/internal/pkg/apperror"
	"github.com/thankatech/backend/internal/repository"
	"github.com/thankatech/backend/internal/stripe"
)

// Минимальная выплата в центах.
const MinPayoutAmount = 1000

// PayoutStore описывает зависимости сервиса от хранилища выплат.
type PayoutStore interface {
	Create(ctx context.Context, payout *models.Payout) error
	SetTransfer(ctx context.Context, payoutID uuid.UUID, transferID, status string) error
	UpdateStatusByTransfer(ctx context.Context, transferID, status string) error
	MarkFailedByTransfer(ctx context.Context, transferID string) (*models.Payout, error)
	Fail(ctx context.Context, payoutID uuid.UUID) error
	ListByTechnician(ctx context.Context, technicianID uuid.UUID, limit, offset int) ([]models.Payout, error)
}

// TechnicianConnectStore — операции над Connect полями профиля техника.
type TechnicianConnectStore interface {
	GetByUserID(ctx context.Context, userID uuid.UUID) (*models.Technician, error)
	GetByStripeAccountID(ctx context.Context, accountID string) (*models.Technician, error)
	SetStripeAccount(ctx context.Context, userID uuid.UUID, accountID, status string) error
	SetStripeAccountStatus(ctx context.Context, accountID, status string) error
	ClearStripeAccount(ctx context.Context, userID uuid.UUID) error
}

// ConnectClient — операции Stripe Connect, нужные выплатам.
type ConnectClient interface {
	CreateExpressAccount(ctx context.Context, email string, metadata map[string]string) (*stripe.Account, error)
	GetAccount(ctx context.Context, id string) (*stripe.Account, error)
	DeleteAccount(ctx context.Context, id string) error
	CreateAccountLink(ctx context.Context, accountID, refreshURL, returnURL string) (*stripe.AccountLink, error)
	AttachBankAccount(ctx context.Context, accountID, bankToken string) (*stripe.ExternalAccount, error)
	CreateTransfer(ctx context.Context, amount int64, destination string, metadata map[string]string) (*stripe.Transfer, error)
}

// PayoutService — Stripe Connect: ленивое создание Express аккаунта,
// онбординг, привязка банка и выплаты переводами.
type PayoutService struct {
	payouts       PayoutStore
	technicians   TechnicianConnectStore
	users         UserReader
	connect       ConnectClient
	fees          *FeeCalculator
	notifications *NotificationService
	mailer        *Mailer
	baseURL       string
}

// NewPayoutService создаёт сервис выплат. connect может быть nil, если Stripe
// не сконфигурирован: тогда все операции отвечают ошибкой недоступности.
func NewPayoutService(payouts PayoutStore, technicians TechnicianConnectStore, users UserReader, connect ConnectClient, fees *FeeCalculator, notifications *NotificationService, mailer *Mailer, baseURL string) *PayoutService {
	return &PayoutService{
		payouts:       payouts,
		technicians:   technicians,
		users:         users,
		connect:       connect,
		fees:          fees,
		notifications: notifications,
		mailer:        mailer,
		baseURL:       baseURL,
	}
}

// OnboardingResult — итог EnsureExpressAccount.
type OnboardingResult struct {
	AccountID     string `json:"account_id"`
	Status        string `json:"status"`
	OnboardingURL string `json:"onboarding_url,omitempty"`
}

// EnsureExpressAccount создаёт Express аккаунт при первом обращении и выдаёт
// ссылку онбординга. Для уже активного аккаунта ссылка не нужна.
func (s *PayoutService) EnsureExpressAccount(ctx context.Context, userID uuid.UUID) (*OnboardingResult, error) {
	if s.connect == nil {
		return nil, apperror.ErrStripeUnavailable
	}

	tech, err := s.technicians.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrTechnicianNotFound) {
			return nil, apperror.ErrTechnicianNotFound
		}
		return nil, err
	}

	accountID := ""
	if tech.StripeAccountID != nil {
		accountID = *tech.StripeAccountID
	}

	if accountID == "" {
		user, err := s.users.GetByID(ctx, userID)
		if err != nil {
			return nil, err
		}
		account, err := s.connect.CreateExpressAccount(ctx, user.Email, map[string]string{
			"user_id": userID.String(),
		})
		if err != nil {
			return nil, fmt.Errorf("payout service: создание express аккаунта: %w", err)
		}
		accountID = account.ID
		if err := s.technicians.SetStripeAccount(ctx, userID, accountID, models.StripeAccountStatusPending); err != nil {
			return nil, err
		}
		tech.StripeAccountStatus = models.StripeAccountStatusPending
	}

	result := &OnboardingResult{AccountID: accountID, Status: tech.StripeAccountStatus}
	if tech.StripeAccountStatus != models.StripeAccountStatusActive {
		link, err := s.connect.CreateAccountLink(ctx, accountID,
			s.baseURL+"/payouts/onboarding/refresh",
			s.baseURL+"/payouts/onboarding/return")
		if err != nil {
			return nil, fmt.Errorf("payout service: создание ссылки онбординга: %w", err)
		}
		result.OnboardingURL = link.URL
	}
	return result, nil
}

// AccountStatus — состояние Connect аккаунта техника.
type AccountStatus struct {
	AccountID string `json:"account_id,omitempty"`
	Status    string `json:"status"`
	CanPayout bool   `json:"can_payout"`
}

// GetAccountStatus возвращает сохранённый статус аккаунта. Статус двигают
// события account.updated; в Stripe ходим только если статус ещё не записан.
func (s *PayoutService) GetAccountStatus(ctx context.Context, userID uuid.UUID) (*AccountStatus, error) {
	tech, err := s.technicians.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrTechnicianNotFound) {
			return nil, apperror.ErrTechnicianNotFound
		}
		return nil, err
	}

	// Аккаунт есть, а статус ещё не записан: единственный случай,
	// когда спрашиваем Stripe напрямую.
	if tech.StripeAccountID != nil && tech.StripeAccountStatus == models.StripeAccountStatusNone && s.connect != nil {
		account, err := s.connect.GetAccount(ctx, *tech.StripeAccountID)
		if err != nil {
			return nil, fmt.Errorf("payout service: запрос аккаунта: %w", err)
		}
		fresh := models.StripeAccountStatusPending
		if account.ChargesEnabled && account.PayoutsEnabled {
			fresh = models.StripeAccountStatusActive
		}
		if err := s.technicians.SetStripeAccountStatus(ctx, account.ID, fresh); err != nil {
			return nil, err
		}
		tech.StripeAccountStatus = fresh
	}

	status := &AccountStatus{
		Status:    tech.StripeAccountStatus,
		CanPayout: tech.StripeAccountStatus == models.StripeAccountStatusActive,
	}
	if tech.StripeAccountID != nil {
		status.AccountID = *tech.StripeAccountID
	}
	return status, nil
}

// AttachBank привязывает банковский счёт по токену из Stripe.js.
func (s *PayoutService) AttachBank(ctx context.Context, userID uuid.UUID, bankToken string) (*stripe.ExternalAccount, error) {
	if s.connect == nil {
		return nil, apperror.ErrStripeUnavailable
	}

	tech, err := s.technicians.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrTechnicianNotFound) {
			return nil, apperror.ErrTechnicianNotFound
		}
		return nil, err
	}
	if tech.StripeAccountID == nil {
		return nil, fmt.Errorf("payout service: сначала создайте express аккаунт")
	}

	external, err := s.connect.AttachBankAccount(ctx, *tech.StripeAccountID, bankToken)
	if err != nil {
		return nil, fmt.Errorf("payout service: привязка банковского счёта: %w", err)
	}
	return external, nil
}

// RequestPayout создаёт выплату: резервирует сумму из выручки, удерживает
// комиссию и отправляет transfer на Connect аккаунт техника.
func (s *PayoutService) RequestPayout(ctx context.Context, userID uuid.UUID, amount int64) (*models.Payout, error) {
	if s.connect == nil {
		return nil, apperror.ErrStripeUnavailable
	}
	if amount < MinPayoutAmount {
		return nil, fmt.Errorf("payout service: минимальная выплата $%.2f", float64(MinPayoutAmount)/100)
	}

	tech, err := s.technicians.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrTechnicianNotFound) {
			return nil, apperror.ErrTechnicianNotFound
		}
		return nil, err
	}
	if tech.StripeAccountID == nil || tech.StripeAccountStatus != models.StripeAccountStatusActive {
		return nil, fmt.Errorf("payout service: connect аккаунт не активирован")
	}

	fee, net := s.fees.Split(amount)
	if net <= 0 {
		return nil, fmt.Errorf("payout service: сумма слишком мала, комиссия съедает всю выплату")
	}

	arrival := time.Now().Add(48 * time.Hour)
	payout := &models.Payout{
		TechnicianID:     userID,
		Amount:           amount,
		Fee:              fee,
		NetAmount:        net,
		Status:           models.PayoutStatusPending,
		EstimatedArrival: &arrival,
	}
	if err := s.payouts.Create(ctx, payout); err != nil {
		if errors.Is(err, repository.ErrInsufficientEarnings) {
			return nil, fmt.Errorf("payout service: недостаточно выручки для выплаты")
		}
		return nil, err
	}

	transfer, err := s.connect.CreateTransfer(ctx, net, *tech.StripeAccountID, map[string]string{
		"payout_id": payout.ID.String(),
	})
	if err != nil {
		// Возвращаем зарезервированную сумму обратно в выручку.
		if failErr := s.payouts.Fail(ctx, payout.ID); failErr != nil && logger.Log != nil {
			logger.Log.WithFields(map[string]interface{}{
				"payout_id": payout.ID,
				"error":     failErr.Error(),
			}).Error("payout service: не удалось откатить выплату")
		}
		return nil, fmt.Errorf("payout service: создание transfer: %w", err)
	}

	if err := s.payouts.SetTransfer(ctx, payout.ID, transfer.ID, models.PayoutStatusInTransit); err != nil {
		return nil, err
	}
	payout.TransferID = &transfer.ID
	payout.Status = models.PayoutStatusInTransit

	s.notifications.NotifyQuiet(ctx, userID, models.NotificationPayoutUpdated, map[string]interface{}{
		"payout_id":  payout.ID,
		"net_amount": net,
		"status":     payout.Status,
	})

	netAmount := net
	goroutine.SafeGo(func() {
		sendCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		user, err := s.users.GetByID(sendCtx, userID)
		if err != nil {
			return
		}
		if err := s.mailer.SendPayoutCreated(sendCtx, user.Email, user.FirstName, netAmount); err != nil && logger.Log != nil {
			logger.Log.WithFields(map[string]interface{}{
				"user_id": userID,
				"error":   err.Error(),
			}).Warn("payout service: не удалось отправить письмо о выплате")
		}
	})

	return payout, nil
}

// ListPayouts возвращает выплаты техника.
func (s *PayoutService) ListPayouts(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Payout, error) {
	limit, offset = clampPage(limit, offset)
	return s.payouts.ListByTechnician(ctx, userID, limit, offset)
}

// HandleAccountUpdated двигает статус Connect аккаунта по событию
// account.updated. Единственный источник переходов pending <-> active.
func (s *PayoutService) HandleAccountUpdated(ctx context.Context, account *stripe.Account) error {
	status := models.StripeAccountStatusPending
	if account.ChargesEnabled && account.PayoutsEnabled {
		status = models.StripeAccountStatusActive
	}

	tech, err := s.technicians.GetByStripeAccountID(ctx, account.ID)
	if err != nil {
		if errors.Is(err, repository.ErrTechnicianNotFound) {
			// Аккаунт не наш (например создан в дашборде вручную).
			return nil
		}
		return err
	}
	if tech.StripeAccountStatus == status {
		return nil
	}

	if err := s.technicians.SetStripeAccountStatus(ctx, account.ID, status); err != nil {
		return err
	}

	s.notifications.NotifyQuiet(ctx, tech.UserID, models.NotificationAccountUpdated, map[string]interface{}{
		"status": status,
	})
	return nil
}

// HandleTransferPaid помечает выплату доставленной.
func (s *PayoutService) HandleTransferPaid(ctx context.Context, transferID string) error {
	err := s.payouts.UpdateStatusByTransfer(ctx, transferID, models.PayoutStatusPaid)
	if errors.Is(err, repository.ErrPayoutNotFound) {
		return nil
	}
	return err
}

// HandleTransferFailed помечает выплату проваленной и возвращает сумму в
// выручку техника.
func (s *PayoutService) HandleTransferFailed(ctx context.Context, transferID string) error {
	payout, err := s.payouts.MarkFailedByTransfer(ctx, transferID)
	if err != nil {
		if errors.Is(err, repository.ErrPayoutNotFound) {
			return nil
		}
		return err
	}

	s.notifications.NotifyQuiet(ctx, payout.TechnicianID, models.NotificationPayoutUpdated, map[string]interface{}{
		"payout_id": payout.ID,
		"status":    models.PayoutStatusFailed,
	})
	return nil
}

// DeleteExpressAccount удаляет Connect аккаунт техника в Stripe и локально.
// Используется при удалении пользователя администратором.
func (s *PayoutService) DeleteExpressAccount(ctx context.Context, userID uuid.UUID) error {
	tech, err := s.technicians.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrTechnicianNotFound) {
			return nil
		}
		return err
	}
	if tech.StripeAccountID == nil {
		return nil
	}
	if s.connect == nil {
		return apperror.ErrStripeUnavailable
	}

	if err := s.connect.DeleteAccount(ctx, *tech.StripeAccountID); err != nil {
		return fmt.Errorf("payout service: удаление аккаунта в stripe: %w", err)
	}
	return s.technicians.ClearStripeAccount(ctx, userID)
}
