package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
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

// TokenLedger описывает зависимости сервиса от журнала токенов.
type TokenLedger interface {
	AddPurchase(ctx context.Context, userID uuid.UUID, tokens, dollarValue int64, sessionID string, paymentIntentID *string) (*models.TokenTransaction, bool, error)
	Refund(ctx context.Context, userID uuid.UUID, tokens, dollarValue int64, paymentIntentID string, reason *string) (*models.TokenTransaction, bool, error)
	Spend(ctx context.Context, fromUserID, technicianID uuid.UUID, tokens int64) (*models.TokenTransaction, error)
	ThankYou(ctx context.Context, fromUserID, technicianID uuid.UUID) (*models.TokenTransaction, error)
	GetBalance(ctx context.Context, userID uuid.UUID) (*models.TokenBalance, error)
	GetPurchaseByPaymentIntent(ctx context.Context, paymentIntentID string) (*models.TokenTransaction, error)
	ListTransactions(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.TokenTransaction, error)
}

// UserReader отдаёт пользователей для уведомлений и писем.
type UserReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// CheckoutClient — операции Stripe Checkout, нужные сервису токенов.
type CheckoutClient interface {
	CreateCheckoutSession(ctx context.Context, p stripe.CreateCheckoutSessionParams) (*stripe.CheckoutSession, error)
	GetCheckoutSession(ctx context.Context, id string) (*stripe.CheckoutSession, error)
}

// LedgerService — бизнес-логика TOA токенов: покупка через Stripe Checkout,
// возвраты, отправка токенов технику и бесплатные благодарности.
type LedgerService struct {
	ledger        TokenLedger
	users         UserReader
	checkout      CheckoutClient
	notifications *NotificationService
	mailer        *Mailer
	baseURL       string
}

// NewLedgerService создаёт сервис токенов. checkout может быть nil, если
// Stripe не сконфигурирован: тогда покупка недоступна.
func NewLedgerService(ledger TokenLedger, users UserReader, checkout CheckoutClient, notifications *NotificationService, mailer *Mailer, baseURL string) *LedgerService {
	return &LedgerService{
		ledger:        ledger,
		users:         users,
		checkout:      checkout,
		notifications: notifications,
		mailer:        mailer,
		baseURL:       baseURL,
	}
}

// StartPurchase создаёт Checkout сессию покупки токенов. Количество и
// пользователь кладутся в metadata: по ним вебхук зачислит покупку.
func (s *LedgerService) StartPurchase(ctx context.Context, userID uuid.UUID, tokens int64) (*stripe.CheckoutSession, error) {
	if err := validation.ValidateTokens(tokens); err != nil {
		return nil, fmt.Errorf("ledger service: %w", err)
	}
	if s.checkout == nil {
		return nil, apperror.ErrStripeUnavailable
	}

	dollarValue := tokens * 100 / models.TokensPerDollar

	session, err := s.checkout.CreateCheckoutSession(ctx, stripe.CreateCheckoutSessionParams{
		AmountCents: dollarValue,
		ProductName: fmt.Sprintf("%d TOA токенов", tokens),
		SuccessURL:  s.baseURL + "/tokens/success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:   s.baseURL + "/tokens/cancel",
		Metadata: map[string]string{
			"user_id": userID.String(),
			"tokens":  strconv.FormatInt(tokens, 10),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("ledger service: создание checkout сессии: %w", err)
	}
	return session, nil
}

// VerifyPurchase сверяет Checkout сессию и зачисляет токены, если оплата
// прошла, а вебхук ещё не успел. Возвращает актуальный баланс.
func (s *LedgerService) VerifyPurchase(ctx context.Context, userID uuid.UUID, sessionID string) (*models.TokenBalance, error) {
	if s.checkout == nil {
		return nil, apperror.ErrStripeUnavailable
	}

	session, err := s.checkout.GetCheckoutSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("ledger service: проверка checkout сессии: %w", err)
	}

	if session.PaymentStatus == "paid" {
		if _, err := s.applySession(ctx, session); err != nil {
			return nil, err
		}
	}

	return s.ledger.GetBalance(ctx, userID)
}

// ApplyCheckoutSession зачисляет оплаченную Checkout сессию (вызов из вебхука).
// Повторная доставка того же события ничего не меняет.
func (s *LedgerService) ApplyCheckoutSession(ctx context.Context, session *stripe.CheckoutSession) error {
	if session.PaymentStatus != "paid" {
		return nil
	}
	applied, err := s.applySession(ctx, session)
	if err != nil {
		return err
	}
	if !applied {
		if logger.Log != nil {
			logger.Log.WithField("session_id", session.ID).Info("ledger service: сессия уже зачислена")
		}
	}
	return nil
}

// ProcessRefund списывает токены по возврату платежа. Пользователь находится
// по исходной покупке. Повторный возврат того же payment intent игнорируется.
func (s *LedgerService) ProcessRefund(ctx context.Context, paymentIntentID string, amountCents int64, reason string) error {
	purchase, err := s.ledger.GetPurchaseByPaymentIntent(ctx, paymentIntentID)
	if err != nil {
		if errors.Is(err, repository.ErrTokenTransactionNotFound) {
			// Возврат не токеновой покупки: чаевые обрабатываются отдельно.
			return nil
		}
		return err
	}

	tokens := amountCents * models.TokensPerDollar / 100
	var reasonPtr *string
	if reason != "" {
		reasonPtr = &reason
	}

	_, applied, err := s.ledger.Refund(ctx, purchase.FromUserID, tokens, amountCents, paymentIntentID, reasonPtr)
	if err != nil {
		return err
	}
	if !applied && logger.Log != nil {
		logger.Log.WithField("payment_intent_id", paymentIntentID).Info("ledger service: возврат уже обработан")
	}
	return nil
}

// SendTokens переводит токены от клиента технику и уведомляет получателя.
func (s *LedgerService) SendTokens(ctx context.Context, fromUserID, technicianID uuid.UUID, tokens int64) (*models.TokenTransaction, error) {
	if err := validation.ValidateTokens(tokens); err != nil {
		return nil, fmt.Errorf("ledger service: %w", err)
	}
	if fromUserID == technicianID {
		return nil, fmt.Errorf("ledger service: нельзя отправить токены самому себе")
	}

	txn, err := s.ledger.Spend(ctx, fromUserID, technicianID, tokens)
	if err != nil {
		return nil, err
	}

	s.notifications.NotifyQuiet(ctx, technicianID, models.NotificationTokensReceived, map[string]interface{}{
		"tokens":       tokens,
		"from_user_id": fromUserID,
	})
	s.emailUserAsync(technicianID, func(ctx context.Context, user *models.User) error {
		return s.mailer.SendTokensReceived(ctx, user.Email, user.FirstName, tokens)
	})

	return txn, nil
}

// SendThankYou отправляет технику бесплатную благодарность.
func (s *LedgerService) SendThankYou(ctx context.Context, fromUserID, technicianID uuid.UUID) (*models.TokenTransaction, error) {
	if fromUserID == technicianID {
		return nil, fmt.Errorf("ledger service: нельзя поблагодарить самого себя")
	}

	txn, err := s.ledger.ThankYou(ctx, fromUserID, technicianID)
	if err != nil {
		return nil, err
	}

	s.notifications.NotifyQuiet(ctx, technicianID, models.NotificationThankYouReceived, map[string]interface{}{
		"from_user_id": fromUserID,
	})

	return txn, nil
}

// GetBalance возвращает баланс токенов пользователя.
func (s *LedgerService) GetBalance(ctx context.Context, userID uuid.UUID) (*models.TokenBalance, error) {
	return s.ledger.GetBalance(ctx, userID)
}

// ListTransactions возвращает журнал операций пользователя.
func (s *LedgerService) ListTransactions(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.TokenTransaction, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.ledger.ListTransactions(ctx, userID, limit, offset)
}

// applySession разбирает metadata сессии и зачисляет покупку.
func (s *LedgerService) applySession(ctx context.Context, session *stripe.CheckoutSession) (bool, error) {
	rawUserID, ok := session.Metadata["user_id"]
	if !ok {
		return false, fmt.Errorf("ledger service: в сессии %s нет user_id", session.ID)
	}
	userID, err := uuid.Parse(rawUserID)
	if err != nil {
		return false, fmt.Errorf("ledger service: некорректный user_id в сессии %s: %w", session.ID, err)
	}
	tokens, err := strconv.ParseInt(session.Metadata["tokens"], 10, 64)
	if err != nil || tokens <= 0 {
		return false, fmt.Errorf("ledger service: некорректное число токенов в сессии %s", session.ID)
	}

	var paymentIntentID *string
	if session.PaymentIntent != "" {
		pi := session.PaymentIntent
		paymentIntentID = &pi
	}

	_, applied, err := s.ledger.AddPurchase(ctx, userID, tokens, session.AmountTotal, session.ID, paymentIntentID)
	if err != nil {
		return false, err
	}

	if applied {
		s.notifications.NotifyQuiet(ctx, userID, models.NotificationTokensReceived, map[string]interface{}{
			"tokens":    tokens,
			"purchased": true,
		})
		amount := session.AmountTotal
		s.emailUserAsync(userID, func(ctx context.Context, user *models.User) error {
			return s.mailer.SendPurchaseReceipt(ctx, user.Email, user.FirstName, tokens, amount)
		})
	}
	return applied, nil
}

// emailUserAsync отправляет письмо получателю в фоне.
func (s *LedgerService) emailUserAsync(userID uuid.UUID, send func(context.Context, *models.User) error) {
	goroutine.SafeGo(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		user, err := s.users.GetByID(ctx, userID)
		if err != nil {
			return
		}
		if err := send(ctx, user); err != nil && logger.Log != nil {
			logger.Log.WithFields(map[string]interface{}{
				"user_id": userID,
				"error":   err.Error(),
			}).Warn("ledger service: не удалось отправить письмо")
		}
	})
}
