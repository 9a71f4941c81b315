package service

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/thankatech/backend/internal/models"
	"github.com/thankatech/backend/internal/repository"
	"github.com/thankatech/backend/internal/stripe"
)

var errUserMissing = errors.New("user not found")

type mockTokenLedger struct {
	mock.Mock
}

func (m *mockTokenLedger) AddPurchase(ctx context.Context, userID uuid.UUID, tokens, dollarValue int64, sessionID string, paymentIntentID *string) (*models.TokenTransaction, bool, error) {
	args := m.Called(ctx, userID, tokens, dollarValue, sessionID, paymentIntentID)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*models.TokenTransaction), args.Bool(1), args.Error(2)
}

func (m *mockTokenLedger) Refund(ctx context.Context, userID uuid.UUID, tokens, dollarValue int64, paymentIntentID string, reason *string) (*models.TokenTransaction, bool, error) {
	args := m.Called(ctx, userID, tokens, dollarValue, paymentIntentID, reason)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*models.TokenTransaction), args.Bool(1), args.Error(2)
}

func (m *mockTokenLedger) Spend(ctx context.Context, fromUserID, technicianID uuid.UUID, tokens int64) (*models.TokenTransaction, error) {
	args := m.Called(ctx, fromUserID, technicianID, tokens)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.TokenTransaction), args.Error(1)
}

func (m *mockTokenLedger) ThankYou(ctx context.Context, fromUserID, technicianID uuid.UUID) (*models.TokenTransaction, error) {
	args := m.Called(ctx, fromUserID, technicianID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.TokenTransaction), args.Error(1)
}

func (m *mockTokenLedger) GetBalance(ctx context.Context, userID uuid.UUID) (*models.TokenBalance, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.TokenBalance), args.Error(1)
}

func (m *mockTokenLedger) GetPurchaseByPaymentIntent(ctx context.Context, paymentIntentID string) (*models.TokenTransaction, error) {
	args := m.Called(ctx, paymentIntentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.TokenTransaction), args.Error(1)
}

func (m *mockTokenLedger) ListTransactions(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.TokenTransaction, error) {
	args := m.Called(ctx, userID, limit, offset)
	return args.Get(0).([]models.TokenTransaction), args.Error(1)
}

type mockUserReader struct {
	mock.Mock
}

func (m *mockUserReader) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

type mockCheckoutClient struct {
	mock.Mock
}

func (m *mockCheckoutClient) CreateCheckoutSession(ctx context.Context, p stripe.CreateCheckoutSessionParams) (*stripe.CheckoutSession, error) {
	args := m.Called(ctx, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*stripe.CheckoutSession), args.Error(1)
}

func (m *mockCheckoutClient) GetCheckoutSession(ctx context.Context, id string) (*stripe.CheckoutSession, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*stripe.CheckoutSession), args.Error(1)
}

type mockNotificationRepo struct {
	mock.Mock
}

func (m *mockNotificationRepo) Create(ctx context.Context, notification *models.Notification) error {
	args := m.Called(ctx, notification)
	return args.Error(0)
}

func (m *mockNotificationRepo) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Notification, error) {
	args := m.Called(ctx, userID, limit, offset)
	return args.Get(0).([]models.Notification), args.Error(1)
}

func (m *mockNotificationRepo) CountUnread(ctx context.Context, userID uuid.UUID) (int, error) {
	args := m.Called(ctx, userID)
	return args.Int(0), args.Error(1)
}

func (m *mockNotificationRepo) MarkRead(ctx context.Context, userID, notificationID uuid.UUID) error {
	args := m.Called(ctx, userID, notificationID)
	return args.Error(0)
}

func (m *mockNotificationRepo) MarkAllRead(ctx context.Context, userID uuid.UUID) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func newTestLedgerService(ledger *mockTokenLedger, users *mockUserReader, checkout *mockCheckoutClient) *LedgerService {
	notifRepo := new(mockNotificationRepo)
	notifRepo.On("Create", mock.Anything, mock.Anything).Return(nil).Maybe()
	notifications := NewNotificationService(notifRepo, nil)
	mailer := NewMailer(nil, "https://thankatech.test")
	// Фоновые письма дёргают users.GetByID после возврата из сервиса.
	users.On("GetByID", mock.Anything, mock.Anything).Return(nil, errUserMissing).Maybe()

	var checkoutClient CheckoutClient
	if checkout != nil {
		checkoutClient = checkout
	}
	return NewLedgerService(ledger, users, checkoutClient, notifications, mailer, "https://thankatech.test")
}

func TestLedgerService_StartPurchase(t *testing.T) {
	ledger := new(mockTokenLedger)
	users := new(mockUserReader)
	checkout := new(mockCheckoutClient)
	svc := newTestLedgerService(ledger, users, checkout)
	ctx := context.Background()
	userID := uuid.New()

	// 500 токенов стоят $5.00.
	checkout.On("CreateCheckoutSession", ctx, mock.MatchedBy(func(p stripe.CreateCheckoutSessionParams) bool {
		return p.AmountCents == 500 &&
			p.Metadata["user_id"] == userID.String() &&
			p.Metadata["tokens"] == "500"
	})).Return(&stripe.CheckoutSession{ID: "cs_test_1", URL: "https://checkout.stripe.com/cs_test_1"}, nil)

	session, err := svc.StartPurchase(ctx, userID, 500)
	assert.NoError(t, err)
	assert.Equal(t, "cs_test_1", session.ID)
	checkout.AssertExpectations(t)
}

func TestLedgerService_StartPurchase_StripeNotConfigured(t *testing.T) {
	ledger := new(mockTokenLedger)
	users := new(mockUserReader)
	svc := newTestLedgerService(ledger, users, nil)

	_, err := svc.StartPurchase(context.Background(), uuid.New(), 500)
	assert.Error(t, err)
}

func TestLedgerService_ApplyCheckoutSession_FirstDelivery(t *testing.T) {
	ledger := new(mockTokenLedger)
	users := new(mockUserReader)
	checkout := new(mockCheckoutClient)
	svc := newTestLedgerService(ledger, users, checkout)
	ctx := context.Background()
	userID := uuid.New()

	pi := "pi_1"
	session := &stripe.CheckoutSession{
		ID:            "cs_1",
		PaymentStatus: "paid",
		AmountTotal:   500,
		PaymentIntent: pi,
		Metadata:      map[string]string{"user_id": userID.String(), "tokens": "500"},
	}

	ledger.On("AddPurchase", ctx, userID, int64(500), int64(500), "cs_1", &pi).
		Return(&models.TokenTransaction{Tokens: 500}, true, nil)

	assert.NoError(t, svc.ApplyCheckoutSession(ctx, session))
	ledger.AssertExpectations(t)
}

func TestLedgerService_ApplyCheckoutSession_Duplicate(t *testing.T) {
	ledger := new(mockTokenLedger)
	users := new(mockUserReader)
	checkout := new(mockCheckoutClient)
	svc := newTestLedgerService(ledger, users, checkout)
	ctx := context.Background()
	userID := uuid.New()

	session := &stripe.CheckoutSession{
		ID:            "cs_1",
		PaymentStatus: "paid",
		AmountTotal:   500,
		Metadata:      map[string]string{"user_id": userID.String(), "tokens": "500"},
	}

	// Повторная доставка: журнал сообщает, что сессия уже зачислена.
	ledger.On("AddPurchase", ctx, userID, int64(500), int64(500), "cs_1", (*string)(nil)).
		Return(&models.TokenTransaction{Tokens: 500}, false, nil)

	assert.NoError(t, svc.ApplyCheckoutSession(ctx, session))
	ledger.AssertExpectations(t)
}

func TestLedgerService_ApplyCheckoutSession_Unpaid(t *testing.T) {
	ledger := new(mockTokenLedger)
	users := new(mockUserReader)
	checkout := new(mockCheckoutClient)
	svc := newTestLedgerService(ledger, users, checkout)

	session := &stripe.CheckoutSession{ID: "cs_1", PaymentStatus: "unpaid"}
	assert.NoError(t, svc.ApplyCheckoutSession(context.Background(), session))
	ledger.AssertNotCalled(t, "AddPurchase")
}

func TestLedgerService_ProcessRefund(t *testing.T) {
	ledger := new(mockTokenLedger)
	users := new(mockUserReader)
	checkout := new(mockCheckoutClient)
	svc := newTestLedgerService(ledger, users, checkout)
	ctx := context.Background()
	userID := uuid.New()

	ledger.On("GetPurchaseByPaymentIntent", ctx, "pi_1").
		Return(&models.TokenTransaction{FromUserID: userID, Tokens: 500}, nil)
	// Возврат $6.00 при покупке на $5.00: списываются 600 токенов, баланс
	// уходит в минус на стороне репозитория.
	ledger.On("Refund", ctx, userID, int64(600), int64(600), "pi_1", mock.Anything).
		Return(&models.TokenTransaction{Tokens: -600}, true, nil)

	assert.NoError(t, svc.ProcessRefund(ctx, "pi_1", 600, "requested_by_customer"))
	ledger.AssertExpectations(t)
}

func TestLedgerService_ProcessRefund_AlreadyProcessed(t *testing.T) {
	ledger := new(mockTokenLedger)
	users := new(mockUserReader)
	checkout := new(mockCheckoutClient)
	svc := newTestLedgerService(ledger, users, checkout)
	ctx := context.Background()
	userID := uuid.New()

	ledger.On("GetPurchaseByPaymentIntent", ctx, "pi_1").
		Return(&models.TokenTransaction{FromUserID: userID}, nil)
	ledger.On("Refund", ctx, userID, int64(500), int64(500), "pi_1", mock.Anything).
		Return(&models.TokenTransaction{}, false, nil)

	// Повторная доставка charge.refunded не ошибка.
	assert.NoError(t, svc.ProcessRefund(ctx, "pi_1", 500, ""))
}

func TestLedgerService_ProcessRefund_UnknownPaymentIntent(t *testing.T) {
	ledger := new(mockTokenLedger)
	users := new(mockUserReader)
	checkout := new(mockCheckoutClient)
	svc := newTestLedgerService(ledger, users, checkout)
	ctx := context.Background()

	ledger.On("GetPurchaseByPaymentIntent", ctx, "pi_tip").
		Return(nil, repository.ErrTokenTransactionNotFound)

	// Возврат чаевых, а не покупки токенов: журнал не трогаем.
	assert.NoError(t, svc.ProcessRefund(ctx, "pi_tip", 500, ""))
	ledger.AssertNotCalled(t, "Refund")
}

func TestLedgerService_SendTokens(t *testing.T) {
	ledger := new(mockTokenLedger)
	users := new(mockUserReader)
	checkout := new(mockCheckoutClient)
	svc := newTestLedgerService(ledger, users, checkout)
	ctx := context.Background()
	fromID := uuid.New()
	techID := uuid.New()

	users.On("GetByID", mock.Anything, techID).
		Return(&models.User{ID: techID, Email: "tech@example.com", FirstName: "Ray"}, nil).Maybe()
	ledger.On("Spend", ctx, fromID, techID, int64(200)).
		Return(&models.TokenTransaction{Tokens: 200, PointsAwarded: 200}, nil)

	txn, err := svc.SendTokens(ctx, fromID, techID, 200)
	assert.NoError(t, err)
	assert.Equal(t, int64(200), txn.PointsAwarded)
}

func TestLedgerService_SendTokens_ToSelf(t *testing.T) {
	ledger := new(mockTokenLedger)
	users := new(mockUserReader)
	checkout := new(mockCheckoutClient)
	svc := newTestLedgerService(ledger, users, checkout)
	userID := uuid.New()

	_, err := svc.SendTokens(context.Background(), userID, userID, 100)
	assert.Error(t, err)
	ledger.AssertNotCalled(t, "Spend")
}

func TestLedgerService_SendTokens_Insufficient(t *testing.T) {
	ledger := new(mockTokenLedger)
	users := new(mockUserReader)
	checkout := new(mockCheckoutClient)
	svc := newTestLedgerService(ledger, users, checkout)
	ctx := context.Background()
	fromID := uuid.New()
	techID := uuid.New()

	ledger.On("Spend", ctx, fromID, techID, int64(1000)).
		Return(nil, repository.ErrInsufficientTokens)

	_, err := svc.SendTokens(ctx, fromID, techID, 1000)
	assert.ErrorIs(t, err, repository.ErrInsufficientTokens)
}

func TestLedgerService_SendThankYou(t *testing.T) {
	ledger := new(mockTokenLedger)
	users := new(mockUserReader)
	checkout := new(mockCheckoutClient)
	svc := newTestLedgerService(ledger, users, checkout)
	ctx := context.Background()
	fromID := uuid.New()
	techID := uuid.New()

	ledger.On("ThankYou", ctx, fromID, techID).
		Return(&models.TokenTransaction{PointsAwarded: 1}, nil)

	txn, err := svc.SendThankYou(ctx, fromID, techID)
	assert.NoError(t, err)
	assert.Equal(t, int64(1), txn.PointsAwarded)
}

func TestLedgerService_VerifyPurchase_Paid(t *testing.T) {
	ledger := new(mockTokenLedger)
	users := new(mockUserReader)
	checkout := new(mockCheckoutClient)
	svc := newTestLedgerService(ledger, users, checkout)
	ctx := context.Background()
	userID := uuid.New()

	checkout.On("GetCheckoutSession", ctx, "cs_1").Return(&stripe.CheckoutSession{
		ID:            "cs_1",
		PaymentStatus: "paid",
		AmountTotal:   500,
		Metadata:      map[string]string{"user_id": userID.String(), "tokens": "500"},
	}, nil)
	ledger.On("AddPurchase", ctx, userID, int64(500), int64(500), "cs_1", (*string)(nil)).
		Return(&models.TokenTransaction{}, true, nil)
	ledger.On("GetBalance", ctx, userID).
		Return(&models.TokenBalance{UserID: userID, Tokens: 500, TotalPurchased: 500}, nil)

	balance, err := svc.VerifyPurchase(ctx, userID, "cs_1")
	assert.NoError(t, err)
	assert.Equal(t, int64(500), balance.Tokens)
	assert.Equal(t, int64(500), balance.TotalPurchased)
}
