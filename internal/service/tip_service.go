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
	"github.com/thankatech/backend/internal/validation"
)

// TipStore описывает зависимости сервиса от хранилища чаевых.
type TipStore interface {
	CreatePending(ctx context.Context, tip *models.Tip) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Tip, error)
	GetByPaymentIntent(ctx context.Context, paymentIntentID string) (*models.Tip, error)
	CompleteByPaymentIntent(ctx context.Context, paymentIntentID string) (*models.Tip, bool, error)
	RefundByPaymentIntent(ctx context.Context, paymentIntentID string) (*models.Tip, error)
	ListByTechnician(ctx context.Context, technicianID uuid.UUID, limit, offset int) ([]models.Tip, error)
	ListByCustomer(ctx context.Context, customerID uuid.UUID, limit, offset int) ([]models.Tip, error)
}

// TechnicianReader отдаёт профили техников.
type TechnicianReader interface {
	GetByUserID(ctx context.Context, userID uuid.UUID) (*models.Technician, error)
}

// PaymentIntentClient — операции Stripe, нужные чаевым.
type PaymentIntentClient interface {
	CreatePaymentIntent(ctx context.Context, p stripe.CreatePaymentIntentParams) (*stripe.PaymentIntent, error)
	CreateRefund(ctx context.Context, paymentIntentID, reason string) (*stripe.Refund, error)
}

// TipService — бизнес-логика чаевых: создание платежа, завершение по
// вебхуку, возвраты и история.
type TipService struct {
	tips          TipStore
	technicians   TechnicianReader
	users         UserReader
	payments      PaymentIntentClient
	fees          *FeeCalculator
	notifications *NotificationService
	mailer        *Mailer
}

// TipInput — данные для создания чаевых.
type TipInput struct {
	TechnicianID uuid.UUID
	CustomerID   *uuid.UUID
	CustomerName *string
	Amount       int64
	Message      *string
}

// TipIntent — созданные чаевые вместе с client secret для оплаты на фронте.
type TipIntent struct {
	Tip          *models.Tip `json:"tip"`
	ClientSecret string      `json:"client_secret"`
}

// NewTipService создаёт сервис чаевых.
func NewTipService(tips TipStore, technicians TechnicianReader, users UserReader, payments PaymentIntentClient, fees *FeeCalculator, notifications *NotificationService, mailer *Mailer) *TipService {
	return &TipService{
		tips:          tips,
		technicians:   technicians,
		users:         users,
		payments:      payments,
		fees:          fees,
		notifications: notifications,
		mailer:        mailer,
	}
}

// CreateTipIntent создаёт PaymentIntent и pending запись чаевых.
// Чаевые доступны и анонимно: CustomerID может быть nil.
func (s *TipService) CreateTipIntent(ctx context.Context, in TipInput) (*TipIntent, error) {
	if err := validation.ValidateTipAmount(in.Amount); err != nil {
		return nil, fmt.Errorf("tip service: %w", err)
	}
	if s.payments == nil {
		return nil, apperror.ErrStripeUnavailable
	}
	if in.CustomerID != nil && *in.CustomerID == in.TechnicianID {
		return nil, fmt.Errorf("tip service: нельзя оставить чаевые самому себе")
	}

	if _, err := s.technicians.GetByUserID(ctx, in.TechnicianID); err != nil {
		if errors.Is(err, repository.ErrTechnicianNotFound) {
			return nil, apperror.ErrTechnicianNotFound
		}
		return nil, err
	}

	fee, payout := s.fees.Split(in.Amount)
	if payout <= 0 {
		return nil, fmt.Errorf("tip service: сумма слишком мала, комиссия съедает весь платёж")
	}

	metadata := map[string]string{
		"purpose":       "tip",
		"technician_id": in.TechnicianID.String(),
	}
	if in.CustomerID != nil {
		metadata["customer_id"] = in.CustomerID.String()
	}

	intent, err := s.payments.CreatePaymentIntent(ctx, stripe.CreatePaymentIntentParams{
		Amount:      in.Amount,
		Description: "Чаевые технику ThankATech",
		Metadata:    metadata,
	})
	if err != nil {
		return nil, fmt.Errorf("tip service: создание payment intent: %w", err)
	}

	tip := &models.Tip{
		TechnicianID:     in.TechnicianID,
		CustomerID:       in.CustomerID,
		CustomerName:     in.CustomerName,
		Amount:           in.Amount,
		PlatformFee:      fee,
		TechnicianPayout: payout,
		PaymentIntentID:  &intent.ID,
		Message:          in.Message,
	}
	if err := s.tips.CreatePending(ctx, tip); err != nil {
		return nil, err
	}

	return &TipIntent{Tip: tip, ClientSecret: intent.ClientSecret}, nil
}

// CompletePayment завершает чаевые после payment_intent.succeeded.
// Незнакомый payment intent (например покупка токенов) молча пропускается.
func (s *TipService) CompletePayment(ctx context.Context, paymentIntentID string) error {
	tip, applied, err := s.tips.CompleteByPaymentIntent(ctx, paymentIntentID)
	if err != nil {
		if errors.Is(err, repository.ErrTipNotFound) {
			return nil
		}
		return err
	}
	if !applied {
		// Повторная доставка события: уведомление и письмо уже ушли.
		return nil
	}

	customerName := ""
	if tip.CustomerName != nil {
		customerName = *tip.CustomerName
	}
	s.notifications.NotifyQuiet(ctx, tip.TechnicianID, models.NotificationTipReceived, map[string]interface{}{
		"tip_id":        tip.ID,
		"amount":        tip.Amount,
		"payout":        tip.TechnicianPayout,
		"customer_name": customerName,
	})

	technicianID := tip.TechnicianID
	amount := tip.Amount
	goroutine.SafeGo(func() {
		sendCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		user, err := s.users.GetByID(sendCtx, technicianID)
		if err != nil {
			return
		}
		if err := s.mailer.SendTipReceived(sendCtx, user.Email, user.FirstName, amount, customerName); err != nil && logger.Log != nil {
			logger.Log.WithFields(map[string]interface{}{
				"technician_id": technicianID,
				"error":         err.Error(),
			}).Warn("tip service: не удалось отправить письмо о чаевых")
		}
	})

	return nil
}

// ProcessRefund помечает чаевые возвращёнными (событие charge.refunded).
func (s *TipService) ProcessRefund(ctx context.Context, paymentIntentID string) error {
	_, err := s.tips.RefundByPaymentIntent(ctx, paymentIntentID)
	if errors.Is(err, repository.ErrTipNotFound) {
		return nil
	}
	return err
}

// RefundTip инициирует возврат чаевых через Stripe (админская операция).
// Запись о возврате проставит вебхук charge.refunded.
func (s *TipService) RefundTip(ctx context.Context, tipID uuid.UUID, reason string) (*models.Tip, error) {
	if s.payments == nil {
		return nil, apperror.ErrStripeUnavailable
	}

	tip, err := s.tips.GetByID(ctx, tipID)
	if err != nil {
		if errors.Is(err, repository.ErrTipNotFound) {
			return nil, apperror.ErrTipNotFound
		}
		return nil, err
	}
	if tip.Status != models.TipStatusCompleted {
		return nil, fmt.Errorf("tip service: возврат возможен только для завершённых чаевых")
	}
	if tip.PaymentIntentID == nil {
		return nil, fmt.Errorf("tip service: у чаевых нет payment intent")
	}

	if _, err := s.payments.CreateRefund(ctx, *tip.PaymentIntentID, reason); err != nil {
		return nil, fmt.Errorf("tip service: возврат в stripe: %w", err)
	}
	return tip, nil
}

// ListForTechnician возвращает чаевые техника.
func (s *TipService) ListForTechnician(ctx context.Context, technicianID uuid.UUID, limit, offset int) ([]models.Tip, error) {
	limit, offset = clampPage(limit, offset)
	return s.tips.ListByTechnician(ctx, technicianID, limit, offset)
}

// ListForCustomer возвращает чаевые, отправленные клиентом.
func (s *TipService) ListForCustomer(ctx context.Context, customerID uuid.UUID, limit, offset int) ([]models.Tip, error) {
	limit, offset = clampPage(limit, offset)
	return s.tips.ListByCustomer(ctx, customerID, limit, offset)
}

func clampPage(limit, offset int) (int, int) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
