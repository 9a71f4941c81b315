package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"golang.org/x/crypto/bcrypt"

	"github.com/thankatech/backend/internal/models"
	"github.com/thankatech/backend/internal/repository"
)

type mockAuthRepo struct {
	mock.Mock
}

func (m *mockAuthRepo) Create(ctx context.Context, user *models.User) error {
	args := m.Called(ctx, user)
	if args.Error(0) == nil {
		user.ID = uuid.New()
		user.IsActive = true
	}
	return args.Error(0)
}

func (m *mockAuthRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *mockAuthRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *mockAuthRepo) UpdateLastLoginAt(ctx context.Context, userID uuid.UUID) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func (m *mockAuthRepo) UpdatePassword(ctx context.Context, userID uuid.UUID, passwordHash string) error {
	args := m.Called(ctx, userID, passwordHash)
	return args.Error(0)
}

func (m *mockAuthRepo) CreateSession(ctx context.Context, session *models.Session) error {
	args := m.Called(ctx, session)
	return args.Error(0)
}

func (m *mockAuthRepo) DeleteSession(ctx context.Context, refreshToken string) error {
	args := m.Called(ctx, refreshToken)
	return args.Error(0)
}

func (m *mockAuthRepo) DeleteUserSessions(ctx context.Context, userID uuid.UUID) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func (m *mockAuthRepo) CreatePasswordReset(ctx context.Context, reset *models.PasswordReset) error {
	args := m.Called(ctx, reset)
	return args.Error(0)
}

func (m *mockAuthRepo) GetPasswordResetByToken(ctx context.Context, token string) (*models.PasswordReset, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PasswordReset), args.Error(1)
}

func (m *mockAuthRepo) MarkPasswordResetUsed(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type mockProvisioner struct {
	mock.Mock
}

func (m *mockProvisioner) EnsureProfile(ctx context.Context, userID uuid.UUID) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

type mockPasswordMailer struct {
	mock.Mock
}

func (m *mockPasswordMailer) SendPasswordReset(ctx context.Context, email, firstName, token string) error {
	args := m.Called(ctx, email, firstName, token)
	return args.Error(0)
}

func newTestAuthService(repo *mockAuthRepo, techs, clients *mockProvisioner, mailer *mockPasswordMailer) *AuthService {
	tm := NewTokenManager("access-secret", "refresh-secret", 15*time.Minute, 720*time.Hour)
	return NewAuthService(repo, techs, clients, tm, mailer)
}

func TestAuthService_Register_Technician(t *testing.T) {
	repo := new(mockAuthRepo)
	techs := new(mockProvisioner)
	clients := new(mockProvisioner)
	mailer := new(mockPasswordMailer)
	svc := newTestAuthService(repo, techs, clients, mailer)
	ctx := context.Background()

	repo.On("GetByEmail", ctx, "k00lrav@gmail.com").Return(nil, repository.ErrUserNotFound)
	repo.On("Create", ctx, mock.MatchedBy(func(u *models.User) bool {
		return u.Email == "k00lrav@gmail.com" &&
			u.UniqueID == "ray_soma_k00lrav_gmail_com" &&
			u.Role == models.RoleTechnician
	})).Return(nil)
	techs.On("EnsureProfile", ctx, mock.Anything).Return(nil)
	repo.On("CreateSession", ctx, mock.Anything).Return(nil)

	result, err := svc.Register(ctx, RegisterInput{
		Email:     "k00lrav@gmail.com",
		Password:  "Password1",
		FirstName: "Ray",
		LastName:  "Soma",
		Role:      models.RoleTechnician,
	}, nil)
	assert.NoError(t, err)
	assert.Equal(t, "ray_soma_k00lrav_gmail_com", result.User.UniqueID)
	assert.NotEmpty(t, result.TokenPair.AccessToken)
	repo.AssertExpectations(t)
	techs.AssertExpectations(t)
	clients.AssertNotCalled(t, "EnsureProfile")
}

func TestAuthService_Register_DuplicateEmail(t *testing.T) {
	repo := new(mockAuthRepo)
	techs := new(mockProvisioner)
	clients := new(mockProvisioner)
	mailer := new(mockPasswordMailer)
	svc := newTestAuthService(repo, techs, clients, mailer)
	ctx := context.Background()

	repo.On("GetByEmail", ctx, "taken@example.com").
		Return(&models.User{Email: "taken@example.com"}, nil)

	_, err := svc.Register(ctx, RegisterInput{
		Email:     "taken@example.com",
		Password:  "Password1",
		FirstName: "Ann",
		LastName:  "Lee",
		Role:      models.RoleClient,
	}, nil)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "зарегистрирован")
}

func TestAuthService_Register_AdminRoleForbidden(t *testing.T) {
	repo := new(mockAuthRepo)
	svc := newTestAuthService(repo, new(mockProvisioner), new(mockProvisioner), new(mockPasswordMailer))

	_, err := svc.Register(context.Background(), RegisterInput{
		Email:     "a@example.com",
		Password:  "Password1",
		FirstName: "A",
		LastName:  "B",
		Role:      models.RoleAdmin,
	}, nil)
	assert.Error(t, err)
	repo.AssertNotCalled(t, "Create")
}

func TestAuthService_Register_WeakPassword(t *testing.T) {
	repo := new(mockAuthRepo)
	svc := newTestAuthService(repo, new(mockProvisioner), new(mockProvisioner), new(mockPasswordMailer))

	_, err := svc.Register(context.Background(), RegisterInput{
		Email:     "a@example.com",
		Password:  "short",
		FirstName: "A",
		LastName:  "B",
		Role:      models.RoleClient,
	}, nil)
	assert.Error(t, err)
}

func TestAuthService_Login(t *testing.T) {
	repo := new(mockAuthRepo)
	svc := newTestAuthService(repo, new(mockProvisioner), new(mockProvisioner), new(mockPasswordMailer))
	ctx := context.Background()

	hash, _ := bcrypt.GenerateFromPassword([]byte("Password1"), bcrypt.DefaultCost)
	user := &models.User{
		ID:           uuid.New(),
		Email:        "ray@example.com",
		PasswordHash: string(hash),
		Role:         models.RoleTechnician,
		IsActive:     true,
	}
	repo.On("GetByEmail", ctx, "ray@example.com").Return(user, nil)
	repo.On("UpdateLastLoginAt", ctx, user.ID).Return(nil)
	repo.On("CreateSession", ctx, mock.Anything).Return(nil)

	result, err := svc.Login(ctx, LoginInput{Email: "ray@example.com", Password: "Password1"}, map[string]string{"ip": "127.0.0.1"})
	assert.NoError(t, err)
	assert.NotEmpty(t, result.TokenPair.RefreshToken)
}

func TestAuthService_Login_WrongPassword(t *testing.T) {
	repo := new(mockAuthRepo)
	svc := newTestAuthService(repo, new(mockProvisioner), new(mockProvisioner), new(mockPasswordMailer))
	ctx := context.Background()

	hash, _ := bcrypt.GenerateFromPassword([]byte("Password1"), bcrypt.DefaultCost)
	repo.On("GetByEmail", ctx, "ray@example.com").Return(&models.User{
		ID:           uuid.New(),
		PasswordHash: string(hash),
		IsActive:     true,
	}, nil)

	_, err := svc.Login(ctx, LoginInput{Email: "ray@example.com", Password: "Wrong1234"}, nil)
	assert.Error(t, err)
	repo.AssertNotCalled(t, "CreateSession")
}

func TestAuthService_Login_InactiveAccount(t *testing.T) {
	repo := new(mockAuthRepo)
	svc := newTestAuthService(repo, new(mockProvisioner), new(mockProvisioner), new(mockPasswordMailer))
	ctx := context.Background()

	repo.On("GetByEmail", ctx, "banned@example.com").Return(&models.User{
		ID:       uuid.New(),
		IsActive: false,
	}, nil)

	_, err := svc.Login(ctx, LoginInput{Email: "banned@example.com", Password: "Password1"}, nil)
	assert.Error(t, err)
}

func TestAuthService_RequestPasswordReset_UnknownEmail(t *testing.T) {
	repo := new(mockAuthRepo)
	mailer := new(mockPasswordMailer)
	svc := newTestAuthService(repo, new(mockProvisioner), new(mockProvisioner), mailer)
	ctx := context.Background()

	repo.On("GetByEmail", ctx, "ghost@example.com").Return(nil, repository.ErrUserNotFound)

	// Не раскрываем, существует ли аккаунт.
	assert.NoError(t, svc.RequestPasswordReset(ctx, "ghost@example.com"))
	repo.AssertNotCalled(t, "CreatePasswordReset")
}

func TestAuthService_RequestPasswordReset(t *testing.T) {
	repo := new(mockAuthRepo)
	mailer := new(mockPasswordMailer)
	svc := newTestAuthService(repo, new(mockProvisioner), new(mockProvisioner), mailer)
	ctx := context.Background()
	userID := uuid.New()

	repo.On("GetByEmail", ctx, "ray@example.com").Return(&models.User{
		ID:        userID,
		Email:     "ray@example.com",
		FirstName: "Ray",
	}, nil)
	repo.On("CreatePasswordReset", ctx, mock.MatchedBy(func(r *models.PasswordReset) bool {
		return r.UserID == userID && r.Token != "" && r.ExpiresAt.After(time.Now())
	})).Return(nil)
	mailer.On("SendPasswordReset", mock.Anything, "ray@example.com", "Ray", mock.Anything).Return(nil).Maybe()

	assert.NoError(t, svc.RequestPasswordReset(ctx, "ray@example.com"))
	repo.AssertExpectations(t)
}

func TestAuthService_ResetPassword(t *testing.T) {
	repo := new(mockAuthRepo)
	svc := newTestAuthService(repo, new(mockProvisioner), new(mockProvisioner), new(mockPasswordMailer))
	ctx := context.Background()
	userID := uuid.New()
	resetID := uuid.New()

	repo.On("GetPasswordResetByToken", ctx, "tok123").Return(&models.PasswordReset{
		ID:        resetID,
		UserID:    userID,
		Token:     "tok123",
		ExpiresAt: time.Now().Add(30 * time.Minute),
	}, nil)
	repo.On("UpdatePassword", ctx, userID, mock.Anything).Return(nil)
	repo.On("MarkPasswordResetUsed", ctx, resetID).Return(nil)
	repo.On("DeleteUserSessions", ctx, userID).Return(nil)

	assert.NoError(t, svc.ResetPassword(ctx, "tok123", "NewPassword1"))
	repo.AssertExpectations(t)
}

func TestAuthService_ResetPassword_InvalidToken(t *testing.T) {
	repo := new(mockAuthRepo)
	svc := newTestAuthService(repo, new(mockProvisioner), new(mockProvisioner), new(mockPasswordMailer))
	ctx := context.Background()

	repo.On("GetPasswordResetByToken", ctx, "bad").
		Return(nil, repository.ErrPasswordResetNotFound)

	err := svc.ResetPassword(ctx, "bad", "NewPassword1")
	assert.Error(t, err)
	repo.AssertNotCalled(t, "UpdatePassword")
}
