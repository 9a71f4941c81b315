package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/thankatech/backend/internal/logger"
	"github.com/thankatech/backend/internal/stripe"
)

// TokenEventHandler — операции токенов, которые двигает вебхук.
type TokenEventHandler interface {
	ApplyCheckoutSession(ctx context.Context, session *stripe.CheckoutSession) error
	ProcessRefund(ctx context.Context, paymentIntentID string, amountCents int64, reason string) error
}

// TipEventHandler — операции чаевых, которые двигает вебхук.
type TipEventHandler interface {
	CompletePayment(ctx context.Context, paymentIntentID string) error
	ProcessRefund(ctx context.Context, paymentIntentID string) error
}

// ConnectEventHandler — операции Connect, которые двигает вебхук.
type ConnectEventHandler interface {
	HandleAccountUpdated(ctx context.Context, account *stripe.Account) error
	HandleTransferPaid(ctx context.Context, transferID string) error
	HandleTransferFailed(ctx context.Context, transferID string) error
}

// WebhookService проверяет подпись Stripe и раскладывает события по
// обработчикам. Подпись сверяется с каждым из секретов по порядку, что
// позволяет ротировать секрет без простоя.
type WebhookService struct {
	secrets []string
	tokens  TokenEventHandler
	tips    TipEventHandler
	connect ConnectEventHandler
}

// NewWebhookService создаёт диспетчер вебхуков.
func NewWebhookService(secrets []string, tokens TokenEventHandler, tips TipEventHandler, connect ConnectEventHandler) *WebhookService {
	return &WebhookService{
		secrets: secrets,
		tokens:  tokens,
		tips:    tips,
		connect: connect,
	}
}

// VerifyAndParse проверяет подпись и разбирает событие. Ошибка означает, что
// запрос надо отклонить кодом 400.
func (s *WebhookService) VerifyAndParse(payload []byte, sigHeader string) (*stripe.Event, error) {
	event, err := stripe.ConstructEvent(payload, sigHeader, s.secrets)
	if err != nil {
		return nil, fmt.Errorf("webhook service: %w", err)
	}
	return event, nil
}

// Dispatch обрабатывает проверенное событие. Ошибки обработчиков логируются,
// но наружу не выходят: Stripe не должен ретраить событие, которое мы уже
// приняли, из-за внутренней ошибки одного обработчика.
func (s *WebhookService) Dispatch(ctx context.Context, event *stripe.Event) {
	if err := s.dispatch(ctx, event); err != nil && logger.Log != nil {
		logger.Log.WithFields(map[string]interface{}{
			"event_id":   event.ID,
			"event_type": event.Type,
			"error":      err.Error(),
		}).Error("webhook service: ошибка обработки события")
	}
}

func (s *WebhookService) dispatch(ctx context.Context, event *stripe.Event) error {
	switch event.Type {
	case "checkout.session.completed":
		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Object, &session); err != nil {
			return fmt.Errorf("разбор checkout.session: %w", err)
		}
		return s.tokens.ApplyCheckoutSession(ctx, &session)

	case "payment_intent.succeeded":
		var intent stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Object, &intent); err != nil {
			return fmt.Errorf("разбор payment_intent: %w", err)
		}
		return s.tips.CompletePayment(ctx, intent.ID)

	case "charge.refunded":
		var charge stripe.Charge
		if err := json.Unmarshal(event.Data.Object, &charge); err != nil {
			return fmt.Errorf("разбор charge: %w", err)
		}
		if charge.PaymentIntent == "" {
			return nil
		}
		// Возврат касается либо покупки токенов, либо чаевых; оба
		// обработчика идемпотентны и чужой payment intent пропускают.
		if err := s.tokens.ProcessRefund(ctx, charge.PaymentIntent, charge.AmountRefunded, "charge.refunded"); err != nil {
			return err
		}
		return s.tips.ProcessRefund(ctx, charge.PaymentIntent)

	case "account.updated":
		var account stripe.Account
		if err := json.Unmarshal(event.Data.Object, &account); err != nil {
			return fmt.Errorf("разбор account: %w", err)
		}
		return s.connect.HandleAccountUpdated(ctx, &account)

	case "transfer.paid":
		var transfer stripe.Transfer
		if err := json.Unmarshal(event.Data.Object, &transfer); err != nil {
			return fmt.Errorf("разбор transfer: %w", err)
		}
		return s.connect.HandleTransferPaid(ctx, transfer.ID)

	case "transfer.failed", "transfer.reversed":
		var transfer stripe.Transfer
		if err := json.Unmarshal(event.Data.Object, &transfer); err != nil {
			return fmt.Errorf("разбор transfer: %w", err)
		}
		return s.connect.HandleTransferFailed(ctx, transfer.ID)

	default:
		if logger.Log != nil {
			logger.Log.WithField("event_type", event.Type).Debug("webhook service: событие пропущено")
		}
		return nil
	}
}
