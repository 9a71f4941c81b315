package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/thankatech/backend/internal/models"
	"github.com/thankatech/backend/internal/repository"
	"github.com/thankatech/backend/internal/stripe"
)

type mockTipStore struct {
	mock.Mock
}

func (m *mockTipStore) CreatePending(ctx context.Context, tip *models.Tip) error {
	args := m.Called(ctx, tip)
	if args.Error(0) == nil {
		tip.ID = uuid.New()
		tip.Status = models.TipStatusPending
	}
	return args.Error(0)
}

func (m *mockTipStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Tip, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Tip), args.Error(1)
}

func (m *mockTipStore) GetByPaymentIntent(ctx context.Context, paymentIntentID string) (*models.Tip, error) {
	args := m.Called(ctx, paymentIntentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Tip), args.Error(1)
}

func (m *mockTipStore) CompleteByPaymentIntent(ctx context.Context, paymentIntentID string) (*models.Tip, bool, error) {
	args := m.Called(ctx, paymentIntentID)
	if args.Get(0) == nil {
		return nil, false, args.Error(2)
	}
	return args.Get(0).(*models.Tip), args.Bool(1), args.Error(2)
}

func (m *mockTipStore) RefundByPaymentIntent(ctx context.Context, paymentIntentID string) (*models.Tip, error) {
	args := m.Called(ctx, paymentIntentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Tip), args.Error(1)
}

func (m *mockTipStore) ListByTechnician(ctx context.Context, technicianID uuid.UUID, limit, offset int) ([]models.Tip, error) {
	args := m.Called(ctx, technicianID, limit, offset)
	return args.Get(0).([]models.Tip), args.Error(1)
}

func (m *mockTipStore) ListByCustomer(ctx context.Context, customerID uuid.UUID, limit, offset int) ([]models.Tip, error) {
	args := m.Called(ctx, customerID, limit, offset)
	return args.Get(0).([]models.Tip), args.Error(1)
}

type mockPaymentClient struct {
	mock.Mock
}

func (m *mockPaymentClient) CreatePaymentIntent(ctx context.Context, p stripe.CreatePaymentIntentParams) (*stripe.PaymentIntent, error) {
	args := m.Called(ctx, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*stripe.PaymentIntent), args.Error(1)
}

func (m *mockPaymentClient) CreateRefund(ctx context.Context, paymentIntentID, reason string) (*stripe.Refund, error) {
	args := m.Called(ctx, paymentIntentID, reason)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*stripe.Refund), args.Error(1)
}

func newTestTipService(tips *mockTipStore, techs *mockConnectStore, users *mockUserReader, payments *mockPaymentClient) *TipService {
	notifRepo := new(mockNotificationRepo)
	notifRepo.On("Create", mock.Anything, mock.Anything).Return(nil).Maybe()
	notifications := NewNotificationService(notifRepo, nil)
	mailer := NewMailer(nil, "https://thankatech.test")
	fees := NewFeeCalculator(10, 30)

	var client PaymentIntentClient
	if payments != nil {
		client = payments
	}
	return NewTipService(tips, techs, users, client, fees, notifications, mailer)
}

func TestTipService_CreateTipIntent(t *testing.T) {
	tips := new(mockTipStore)
	techs := new(mockConnectStore)
	users := new(mockUserReader)
	payments := new(mockPaymentClient)
	svc := newTestTipService(tips, techs, users, payments)
	ctx := context.Background()
	techID := uuid.New()
	customerID := uuid.New()

	techs.On("GetByUserID", ctx, techID).Return(&models.Technician{UserID: techID}, nil)
	payments.On("CreatePaymentIntent", ctx, mock.MatchedBy(func(p stripe.CreatePaymentIntentParams) bool {
		return p.Amount == 2000 && p.Metadata["purpose"] == "tip"
	})).Return(&stripe.PaymentIntent{ID: "pi_1", ClientSecret: "pi_1_secret"}, nil)
	tips.On("CreatePending", ctx, mock.MatchedBy(func(tip *models.Tip) bool {
		// $20.00: комиссия 230, технику 1770, сумма сходится.
		return tip.Amount == 2000 && tip.PlatformFee == 230 && tip.TechnicianPayout == 1770 &&
			tip.PlatformFee+tip.TechnicianPayout == tip.Amount
	})).Return(nil)

	intent, err := svc.CreateTipIntent(ctx, TipInput{
		TechnicianID: techID,
		CustomerID:   &customerID,
		Amount:       2000,
	})
	assert.NoError(t, err)
	assert.Equal(t, "pi_1_secret", intent.ClientSecret)
	tips.AssertExpectations(t)
	payments.AssertExpectations(t)
}

func TestTipService_CreateTipIntent_Anonymous(t *testing.T) {
	tips := new(mockTipStore)
	techs := new(mockConnectStore)
	users := new(mockUserReader)
	payments := new(mockPaymentClient)
	svc := newTestTipService(tips, techs, users, payments)
	ctx := context.Background()
	techID := uuid.New()

	techs.On("GetByUserID", ctx, techID).Return(&models.Technician{UserID: techID}, nil)
	payments.On("CreatePaymentIntent", ctx, mock.Anything).
		Return(&stripe.PaymentIntent{ID: "pi_1", ClientSecret: "sec"}, nil)
	tips.On("CreatePending", ctx, mock.MatchedBy(func(tip *models.Tip) bool {
		return tip.CustomerID == nil
	})).Return(nil)

	name := "Прохожий"
	_, err := svc.CreateTipIntent(ctx, TipInput{TechnicianID: techID, CustomerName: &name, Amount: 500})
	assert.NoError(t, err)
}

func TestTipService_CreateTipIntent_SelfTip(t *testing.T) {
	tips := new(mockTipStore)
	techs := new(mockConnectStore)
	users := new(mockUserReader)
	payments := new(mockPaymentClient)
	svc := newTestTipService(tips, techs, users, payments)
	userID := uuid.New()

	_, err := svc.CreateTipIntent(context.Background(), TipInput{
		TechnicianID: userID,
		CustomerID:   &userID,
		Amount:       2000,
	})
	assert.Error(t, err)
	payments.AssertNotCalled(t, "CreatePaymentIntent")
}

func TestTipService_CreateTipIntent_UnknownTechnician(t *testing.T) {
	tips := new(mockTipStore)
	techs := new(mockConnectStore)
	users := new(mockUserReader)
	payments := new(mockPaymentClient)
	svc := newTestTipService(tips, techs, users, payments)
	ctx := context.Background()
	techID := uuid.New()

	techs.On("GetByUserID", ctx, techID).Return(nil, repository.ErrTechnicianNotFound)

	_, err := svc.CreateTipIntent(ctx, TipInput{TechnicianID: techID, Amount: 2000})
	assert.Error(t, err)
}

func TestTipService_CreateTipIntent_AmountTooSmall(t *testing.T) {
	tips := new(mockTipStore)
	techs := new(mockConnectStore)
	users := new(mockUserReader)
	payments := new(mockPaymentClient)
	svc := newTestTipService(tips, techs, users, payments)

	_, err := svc.CreateTipIntent(context.Background(), TipInput{TechnicianID: uuid.New(), Amount: 50})
	assert.Error(t, err)
}

func TestTipService_CompletePayment(t *testing.T) {
	tips := new(mockTipStore)
	techs := new(mockConnectStore)
	users := new(mockUserReader)
	payments := new(mockPaymentClient)
	svc := newTestTipService(tips, techs, users, payments)
	ctx := context.Background()
	techID := uuid.New()

	tips.On("CompleteByPaymentIntent", ctx, "pi_1").Return(&models.Tip{
		ID:               uuid.New(),
		TechnicianID:     techID,
		Amount:           2000,
		TechnicianPayout: 1770,
		Status:           models.TipStatusCompleted,
	}, true, nil)
	users.On("GetByID", mock.Anything, techID).
		Return(&models.User{ID: techID, Email: "tech@example.com", FirstName: "Ray"}, nil).Maybe()

	assert.NoError(t, svc.CompletePayment(ctx, "pi_1"))
	tips.AssertExpectations(t)
}

func TestTipService_CompletePayment_UnknownIntent(t *testing.T) {
	tips := new(mockTipStore)
	techs := new(mockConnectStore)
	users := new(mockUserReader)
	payments := new(mockPaymentClient)
	svc := newTestTipService(tips, techs, users, payments)
	ctx := context.Background()

	// Покупка токенов проходит тем же событием: это не ошибка.
	tips.On("CompleteByPaymentIntent", ctx, "pi_tokens").Return(nil, false, repository.ErrTipNotFound)

	assert.NoError(t, svc.CompletePayment(ctx, "pi_tokens"))
}

func TestTipService_CompletePayment_Redelivery(t *testing.T) {
	tips := new(mockTipStore)
	techs := new(mockConnectStore)
	users := new(mockUserReader)
	notifRepo := new(mockNotificationRepo)
	notifications := NewNotificationService(notifRepo, nil)
	mailer := NewMailer(nil, "https://thankatech.test")
	svc := NewTipService(tips, techs, users, nil, NewFeeCalculator(10, 30), notifications, mailer)
	ctx := context.Background()
	techID := uuid.New()
	tip := &models.Tip{
		ID:               uuid.New(),
		TechnicianID:     techID,
		Amount:           2000,
		TechnicianPayout: 1770,
		Status:           models.TipStatusCompleted,
	}

	// Stripe может доставить payment_intent.succeeded повторно: уведомление
	// и письмо должны уйти ровно один раз.
	tips.On("CompleteByPaymentIntent", ctx, "pi_1").Return(tip, true, nil).Once()
	tips.On("CompleteByPaymentIntent", ctx, "pi_1").Return(tip, false, nil).Once()
	users.On("GetByID", mock.Anything, techID).
		Return(&models.User{ID: techID, Email: "tech@example.com", FirstName: "Ray"}, nil).Maybe()
	notifRepo.On("Create", mock.Anything, mock.Anything).Return(nil)

	assert.NoError(t, svc.CompletePayment(ctx, "pi_1"))
	assert.NoError(t, svc.CompletePayment(ctx, "pi_1"))

	notifRepo.AssertNumberOfCalls(t, "Create", 1)
	tips.AssertExpectations(t)
}

func TestTipService_RefundTip(t *testing.T) {
	tips := new(mockTipStore)
	techs := new(mockConnectStore)
	users := new(mockUserReader)
	payments := new(mockPaymentClient)
	svc := newTestTipService(tips, techs, users, payments)
	ctx := context.Background()
	tipID := uuid.New()
	pi := "pi_1"

	tips.On("GetByID", ctx, tipID).Return(&models.Tip{
		ID:              tipID,
		Status:          models.TipStatusCompleted,
		PaymentIntentID: &pi,
	}, nil)
	payments.On("CreateRefund", ctx, "pi_1", "requested_by_customer").
		Return(&stripe.Refund{ID: "re_1", Status: "succeeded"}, nil)

	_, err := svc.RefundTip(ctx, tipID, "requested_by_customer")
	assert.NoError(t, err)
	payments.AssertExpectations(t)
}

func TestTipService_RefundTip_NotCompleted(t *testing.T) {
	tips := new(mockTipStore)
	techs := new(mockConnectStore)
	users := new(mockUserReader)
	payments := new(mockPaymentClient)
	svc := newTestTipService(tips, techs, users, payments)
	ctx := context.Background()
	tipID := uuid.New()

	tips.On("GetByID", ctx, tipID).Return(&models.Tip{
		ID:     tipID,
		Status: models.TipStatusPending,
	}, nil)

	_, err := svc.RefundTip(ctx, tipID, "")
	assert.Error(t, err)
	payments.AssertNotCalled(t, "CreateRefund")
}
