package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/thankatech/backend/internal/stripe"
)

type mockTokenEvents struct {
	mock.Mock
}

func (m *mockTokenEvents) ApplyCheckoutSession(ctx context.Context, session *stripe.CheckoutSession) error {
	args := m.Called(ctx, session)
	return args.Error(0)
}

func (m *mockTokenEvents) ProcessRefund(ctx context.Context, paymentIntentID string, amountCents int64, reason string) error {
	args := m.Called(ctx, paymentIntentID, amountCents, reason)
	return args.Error(0)
}

type mockTipEvents struct {
	mock.Mock
}

func (m *mockTipEvents) CompletePayment(ctx context.Context, paymentIntentID string) error {
	args := m.Called(ctx, paymentIntentID)
	return args.Error(0)
}

func (m *mockTipEvents) ProcessRefund(ctx context.Context, paymentIntentID string) error {
	args := m.Called(ctx, paymentIntentID)
	return args.Error(0)
}

type mockConnectEvents struct {
	mock.Mock
}

func (m *mockConnectEvents) HandleAccountUpdated(ctx context.Context, account *stripe.Account) error {
	args := m.Called(ctx, account)
	return args.Error(0)
}

func (m *mockConnectEvents) HandleTransferPaid(ctx context.Context, transferID string) error {
	args := m.Called(ctx, transferID)
	return args.Error(0)
}

func (m *mockConnectEvents) HandleTransferFailed(ctx context.Context, transferID string) error {
	args := m.Called(ctx, transferID)
	return args.Error(0)
}

func eventPayload(t *testing.T, eventType string, object interface{}) []byte {
	t.Helper()
	raw, err := json.Marshal(object)
	assert.NoError(t, err)
	payload, err := json.Marshal(map[string]interface{}{
		"id":      "evt_1",
		"type":    eventType,
		"created": time.Now().Unix(),
		"data":    map[string]interface{}{"object": json.RawMessage(raw)},
	})
	assert.NoError(t, err)
	return payload
}

func TestWebhookService_VerifyAndParse(t *testing.T) {
	svc := NewWebhookService([]string{"whsec_primary"}, new(mockTokenEvents), new(mockTipEvents), new(mockConnectEvents))

	payload := eventPayload(t, "payment_intent.succeeded", stripe.PaymentIntent{ID: "pi_1"})
	header := stripe.SignPayload(payload, "whsec_primary", time.Now().Unix())

	event, err := svc.VerifyAndParse(payload, header)
	assert.NoError(t, err)
	assert.Equal(t, "payment_intent.succeeded", event.Type)
}

func TestWebhookService_VerifyAndParse_SecondarySecret(t *testing.T) {
	// Ротация: подпись старым секретом остаётся валидной, пока он в списке.
	svc := NewWebhookService([]string{"whsec_new", "whsec_old"}, new(mockTokenEvents), new(mockTipEvents), new(mockConnectEvents))

	payload := eventPayload(t, "payment_intent.succeeded", stripe.PaymentIntent{ID: "pi_1"})
	header := stripe.SignPayload(payload, "whsec_old", time.Now().Unix())

	_, err := svc.VerifyAndParse(payload, header)
	assert.NoError(t, err)
}

func TestWebhookService_VerifyAndParse_BadSignature(t *testing.T) {
	svc := NewWebhookService([]string{"whsec_primary"}, new(mockTokenEvents), new(mockTipEvents), new(mockConnectEvents))

	payload := eventPayload(t, "payment_intent.succeeded", stripe.PaymentIntent{ID: "pi_1"})
	header := stripe.SignPayload(payload, "whsec_wrong", time.Now().Unix())

	_, err := svc.VerifyAndParse(payload, header)
	assert.Error(t, err)
}

func TestWebhookService_Dispatch_CheckoutCompleted(t *testing.T) {
	tokens := new(mockTokenEvents)
	tips := new(mockTipEvents)
	connect := new(mockConnectEvents)
	svc := NewWebhookService([]string{"whsec"}, tokens, tips, connect)
	ctx := context.Background()

	tokens.On("ApplyCheckoutSession", ctx, mock.MatchedBy(func(s *stripe.CheckoutSession) bool {
		return s.ID == "cs_1" && s.PaymentStatus == "paid"
	})).Return(nil)

	payload := eventPayload(t, "checkout.session.completed", stripe.CheckoutSession{ID: "cs_1", PaymentStatus: "paid"})
	var event stripe.Event
	assert.NoError(t, json.Unmarshal(payload, &event))

	svc.Dispatch(ctx, &event)
	tokens.AssertExpectations(t)
}

func TestWebhookService_Dispatch_ChargeRefunded(t *testing.T) {
	tokens := new(mockTokenEvents)
	tips := new(mockTipEvents)
	connect := new(mockConnectEvents)
	svc := NewWebhookService([]string{"whsec"}, tokens, tips, connect)
	ctx := context.Background()

	tokens.On("ProcessRefund", ctx, "pi_1", int64(600), "charge.refunded").Return(nil)
	tips.On("ProcessRefund", ctx, "pi_1").Return(nil)

	payload := eventPayload(t, "charge.refunded", stripe.Charge{
		ID: "ch_1", PaymentIntent: "pi_1", AmountRefunded: 600, Refunded: true,
	})
	var event stripe.Event
	assert.NoError(t, json.Unmarshal(payload, &event))

	svc.Dispatch(ctx, &event)
	tokens.AssertExpectations(t)
	tips.AssertExpectations(t)
}

func TestWebhookService_Dispatch_AccountUpdated(t *testing.T) {
	tokens := new(mockTokenEvents)
	tips := new(mockTipEvents)
	connect := new(mockConnectEvents)
	svc := NewWebhookService([]string{"whsec"}, tokens, tips, connect)
	ctx := context.Background()

	connect.On("HandleAccountUpdated", ctx, mock.MatchedBy(func(a *stripe.Account) bool {
		return a.ID == "acct_1" && a.ChargesEnabled && a.PayoutsEnabled
	})).Return(nil)

	payload := eventPayload(t, "account.updated", stripe.Account{
		ID: "acct_1", ChargesEnabled: true, PayoutsEnabled: true, DetailsSubmitted: true,
	})
	var event stripe.Event
	assert.NoError(t, json.Unmarshal(payload, &event))

	svc.Dispatch(ctx, &event)
	connect.AssertExpectations(t)
}

func TestWebhookService_Dispatch_UnknownType(t *testing.T) {
	tokens := new(mockTokenEvents)
	tips := new(mockTipEvents)
	connect := new(mockConnectEvents)
	svc := NewWebhookService([]string{"whsec"}, tokens, tips, connect)

	event := &stripe.Event{ID: "evt_1", Type: "customer.created"}
	svc.Dispatch(context.Background(), event)

	tokens.AssertNotCalled(t, "ApplyCheckoutSession")
	tips.AssertNotCalled(t, "CompletePayment")
}

func TestWebhookService_Dispatch_HandlerErrorSwallowed(t *testing.T) {
	tokens := new(mockTokenEvents)
	tips := new(mockTipEvents)
	connect := new(mockConnectEvents)
	svc := NewWebhookService([]string{"whsec"}, tokens, tips, connect)
	ctx := context.Background()

	tips.On("CompletePayment", ctx, "pi_1").Return(errors.New("db down"))

	payload := eventPayload(t, "payment_intent.succeeded", stripe.PaymentIntent{ID: "pi_1"})
	var event stripe.Event
	assert.NoError(t, json.Unmarshal(payload, &event))

	// Ошибка обработчика не должна привести к панике или ретраю Stripe.
	svc.Dispatch(ctx, &event)
	tips.AssertExpectations(t)
}
