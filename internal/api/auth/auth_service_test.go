package auth

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/FACorreiaa/go-complaint-auth/internal/api"
	"github.com/FACorreiaa/go-complaint-auth/internal/api/geography"
	"github.com/FACorreiaa/go-complaint-auth/internal/notify"
	"github.com/FACorreiaa/go-complaint-auth/internal/tokens"
	"github.com/FACorreiaa/go-complaint-auth/internal/types"
)

// MockAuthRepo is a mock implementation of the AuthRepo interface
type MockAuthRepo struct {
	mock.Mock
}

func (m *MockAuthRepo) PhoneExists(ctx context.Context, phone string) (bool, error) {
	args := m.Called(ctx, phone)
	return args.Bool(0), args.Error(1)
}

func (m *MockAuthRepo) EmailExists(ctx context.Context, email string) (bool, error) {
	args := m.Called(ctx, email)
	return args.Bool(0), args.Error(1)
}

func (m *MockAuthRepo) CreatePendingUser(ctx context.Context, u types.NewUser, vt types.VerificationToken) (int64, error) {
	args := m.Called(ctx, u, vt)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockAuthRepo) profile(args mock.Arguments) (*types.UserProfile, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.UserProfile), args.Error(1)
}

func (m *MockAuthRepo) GetUserByID(ctx context.Context, userID int64) (*types.UserProfile, error) {
	return m.profile(m.Called(ctx, userID))
}

func (m *MockAuthRepo) GetUserByPhone(ctx context.Context, phone string) (*types.UserProfile, error) {
	return m.profile(m.Called(ctx, phone))
}

func (m *MockAuthRepo) GetUserByEmail(ctx context.Context, email string) (*types.UserProfile, error) {
	return m.profile(m.Called(ctx, email))
}

func (m *MockAuthRepo) GetCredentials(ctx context.Context, userID int64) (*types.CredentialRecord, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.CredentialRecord), args.Error(1)
}

func (m *MockAuthRepo) UpdateLastLogin(ctx context.Context, userID int64, at time.Time) error {
	return m.Called(ctx, userID, at).Error(0)
}

func (m *MockAuthRepo) StoreRefreshToken(ctx context.Context, userID int64, token string, expiresAt time.Time) error {
	return m.Called(ctx, userID, token, expiresAt).Error(0)
}

func (m *MockAuthRepo) GetRefreshToken(ctx context.Context, token string, userID int64) (*types.RefreshToken, error) {
	args := m.Called(ctx, token, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.RefreshToken), args.Error(1)
}

func (m *MockAuthRepo) RotateRefreshToken(ctx context.Context, userID int64, oldToken, newToken string, newExpiresAt time.Time) error {
	return m.Called(ctx, userID, oldToken, newToken, newExpiresAt).Error(0)
}

func (m *MockAuthRepo) DeleteRefreshToken(ctx context.Context, token string) (bool, error) {
	args := m.Called(ctx, token)
	return args.Bool(0), args.Error(1)
}

func (m *MockAuthRepo) DeleteAllRefreshTokens(ctx context.Context, userID int64) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockAuthRepo) IssueVerificationToken(ctx context.Context, vt types.VerificationToken) error {
	return m.Called(ctx, vt).Error(0)
}

func (m *MockAuthRepo) GetVerificationToken(ctx context.Context, token string) (*types.VerificationToken, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.VerificationToken), args.Error(1)
}

func (m *MockAuthRepo) ConsumeVerificationCode(ctx context.Context, userID int64, code string, now time.Time) error {
	return m.Called(ctx, userID, code, now).Error(0)
}

func (m *MockAuthRepo) ConsumeVerificationToken(ctx context.Context, token string, now time.Time) (int64, error) {
	args := m.Called(ctx, token, now)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockAuthRepo) CreatePasswordResetToken(ctx context.Context, prt types.PasswordResetToken) error {
	return m.Called(ctx, prt).Error(0)
}

func (m *MockAuthRepo) ResetPassword(ctx context.Context, token, newHash string, now time.Time) (int64, error) {
	args := m.Called(ctx, token, newHash, now)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockAuthRepo) ChangePassword(ctx context.Context, userID int64, newHash string) error {
	return m.Called(ctx, userID, newHash).Error(0)
}

func (m *MockAuthRepo) DeletePendingUsers(ctx context.Context, createdBefore time.Time) (int64, error) {
	args := m.Called(ctx, createdBefore)
	return args.Get(0).(int64), args.Error(1)
}

type mockGeography struct {
	mock.Mock
}

func (m *mockGeography) Validate(ctx context.Context, g types.Geography) error {
	return m.Called(ctx, g).Error(0)
}

type mockAuditor struct {
	mock.Mock
}

func (m *mockAuditor) Publish(ctx context.Context, e notify.Event) error {
	return m.Called(ctx, e).Error(0)
}

func newMockService(repo *MockAuthRepo, opts ...ServiceOption) *AuthServiceImpl {
	cfg := testConfig()
	return NewAuthService(repo, tokens.NewCodec(cfg.JWT), cfg, testLogger(), opts...)
}

func activeProfile() *types.UserProfile {
	email := rahimEmail
	return &types.UserProfile{
		ID: 7, Phone: rahimPhone, Email: &email, FirstName: "Rahim", LastName: "Uddin",
		Role: types.RoleCustomer, Status: types.StatusActive, EmailVerified: true,
	}
}

func hashOf(t *testing.T, password string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(h)
}

func TestRegister(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		repo := new(MockAuthRepo)
		auditor := new(mockAuditor)
		service := newMockService(repo, WithAuditor(auditor))

		repo.On("PhoneExists", mock.Anything, rahimPhone).Return(false, nil).Once()
		repo.On("EmailExists", mock.Anything, rahimEmail).Return(false, nil).Once()
		repo.On("CreatePendingUser", mock.Anything,
			mock.MatchedBy(func(u types.NewUser) bool {
				return u.Phone == rahimPhone && u.Status == types.StatusPending && !u.EmailVerified &&
					u.Role == types.RoleCustomer &&
					bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(rahimPassword)) == nil
			}),
			mock.MatchedBy(func(vt types.VerificationToken) bool {
				return len(vt.Code) == 6 && len(vt.Token) == 64 && !vt.Used &&
					time.Until(vt.ExpiresAt) > 9*time.Minute && time.Until(vt.ExpiresAt) <= 10*time.Minute
			}),
		).Return(int64(7), nil).Once()
		auditor.On("Publish", mock.Anything, mock.MatchedBy(func(e notify.Event) bool {
			return e.Type == notify.EventUserRegistered && e.UserID == 7
		})).Return(nil).Once()

		res, err := service.Register(ctx, RegisterRequest{
			FirstName: "Rahim", LastName: "Uddin", Phone: "+8801712345678", Email: " Rahim@Example.com ", Password: rahimPassword,
		})
		require.NoError(t, err)
		assert.Equal(t, &RegisterResult{Success: true, Message: MsgRegisteredPendingVerification, RequiresVerification: true}, res)
		repo.AssertExpectations(t)
		auditor.AssertExpectations(t)
	})

	t.Run("DuplicatePhoneFromConstraint", func(t *testing.T) {
		repo := new(MockAuthRepo)
		service := newMockService(repo)

		repo.On("PhoneExists", mock.Anything, rahimPhone).Return(false, nil).Once()
		repo.On("CreatePendingUser", mock.Anything, mock.Anything, mock.Anything).Return(int64(0), ErrDuplicatePhone).Once()

		_, err := service.Register(ctx, RegisterRequest{FirstName: "R", LastName: "U", Phone: rahimPhone, Password: rahimPassword})
		assert.ErrorIs(t, err, ErrDuplicatePhone)
		status, _ := StatusFor(err)
		assert.Equal(t, http.StatusConflict, status)
		repo.AssertExpectations(t)
	})

	t.Run("GeographyReasonPropagates", func(t *testing.T) {
		repo := new(MockAuthRepo)
		geo := new(mockGeography)
		service := newMockService(repo, WithGeography(geo))

		city, ward := "DSCC", 99
		repo.On("PhoneExists", mock.Anything, rahimPhone).Return(false, nil).Once()
		geo.On("Validate", mock.Anything, types.Geography{CityCorporationCode: &city, Ward: &ward}).
			Return(&geography.Error{Reason: "Ward must be between 1 and 75"}).Once()

		_, err := service.Register(ctx, RegisterRequest{
			FirstName: "R", LastName: "U", Phone: rahimPhone, Password: rahimPassword,
			CityCorporationCode: &city, Ward: &ward,
		})
		assert.ErrorIs(t, err, ErrInvalidGeography)
		status, msg := StatusFor(err)
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, "Ward must be between 1 and 75", msg)
		repo.AssertNotCalled(t, "CreatePendingUser", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("StoreFailure", func(t *testing.T) {
		repo := new(MockAuthRepo)
		service := newMockService(repo)

		repo.On("PhoneExists", mock.Anything, rahimPhone).Return(false, errors.New("conn refused")).Once()

		_, err := service.Register(ctx, RegisterRequest{FirstName: "R", LastName: "U", Phone: rahimPhone, Password: rahimPassword})
		require.Error(t, err)
		status, msg := StatusFor(err)
		assert.Equal(t, http.StatusInternalServerError, status)
		assert.NotContains(t, msg, "conn refused")
	})
}

func TestLogin(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		repo := new(MockAuthRepo)
		service := newMockService(repo)
		u := activeProfile()

		repo.On("GetUserByPhone", mock.Anything, rahimPhone).Return(u, nil).Once()
		repo.On("GetCredentials", mock.Anything, u.ID).Return(&types.CredentialRecord{UserID: u.ID, PasswordHash: hashOf(t, rahimPassword)}, nil).Once()
		repo.On("StoreRefreshToken", mock.Anything, u.ID, mock.AnythingOfType("string"), mock.AnythingOfType("time.Time")).Return(nil).Once()
		repo.On("UpdateLastLogin", mock.Anything, u.ID, mock.AnythingOfType("time.Time")).Return(nil).Once()

		pair, err := service.Login(ctx, Identifier{Phone: rahimPhone}, rahimPassword, PortalApp)
		require.NoError(t, err)
		assert.NotEmpty(t, pair.AccessToken)
		assert.Equal(t, u, pair.User)

		claims, err := tokens.NewCodec(testConfig().JWT).VerifyAccessToken(pair.AccessToken)
		require.NoError(t, err)
		assert.Equal(t, "7", claims.Subject)
		assert.Equal(t, rahimEmail, claims.Email)
		repo.AssertExpectations(t)
	})

	t.Run("LastLoginFailureDoesNotFailLogin", func(t *testing.T) {
		repo := new(MockAuthRepo)
		service := newMockService(repo)
		u := activeProfile()

		repo.On("GetUserByEmail", mock.Anything, rahimEmail).Return(u, nil).Once()
		repo.On("GetCredentials", mock.Anything, u.ID).Return(&types.CredentialRecord{UserID: u.ID, PasswordHash: hashOf(t, rahimPassword)}, nil).Once()
		repo.On("StoreRefreshToken", mock.Anything, u.ID, mock.Anything, mock.Anything).Return(nil).Once()
		repo.On("UpdateLastLogin", mock.Anything, u.ID, mock.Anything).Return(errors.New("deadlock detected")).Once()

		_, err := service.Login(ctx, Identifier{Email: rahimEmail}, rahimPassword, "")
		assert.NoError(t, err)
	})

	t.Run("UserNotFound", func(t *testing.T) {
		repo := new(MockAuthRepo)
		service := newMockService(repo)

		repo.On("GetUserByPhone", mock.Anything, "01911111111").Return(nil, api.ErrNotFound).Once()

		pair, err := service.Login(ctx, Identifier{Phone: "01911111111"}, rahimPassword, "")
		assert.Nil(t, pair)
		assert.ErrorIs(t, err, ErrInvalidCredentials)
		repo.AssertNotCalled(t, "GetCredentials", mock.Anything, mock.Anything)
	})

	t.Run("PendingNeedsVerification", func(t *testing.T) {
		repo := new(MockAuthRepo)
		service := newMockService(repo)
		u := activeProfile()
		u.Status, u.EmailVerified = types.StatusPending, false

		repo.On("GetUserByPhone", mock.Anything, rahimPhone).Return(u, nil).Once()

		_, err := service.Login(ctx, Identifier{Phone: rahimPhone}, rahimPassword, "")
		assert.ErrorIs(t, err, ErrVerificationRequired)
		status, _ := StatusFor(err)
		assert.Equal(t, http.StatusForbidden, status)
	})

	t.Run("MissingIdentifier", func(t *testing.T) {
		service := newMockService(new(MockAuthRepo))
		_, err := service.Login(ctx, Identifier{}, rahimPassword, "")
		assert.ErrorIs(t, err, ErrIdentifierRequired)
	})
}

func TestRefresh(t *testing.T) {
	ctx := context.Background()
	codec := tokens.NewCodec(testConfig().JWT)
	u := activeProfile()

	signRefresh := func(t *testing.T) string {
		tok, _, err := codec.SignRefreshToken(tokens.SubjectFromProfile(u))
		require.NoError(t, err)
		return tok
	}

	t.Run("LostRotationRace", func(t *testing.T) {
		repo := new(MockAuthRepo)
		service := newMockService(repo)
		tok := signRefresh(t)

		repo.On("GetRefreshToken", mock.Anything, tok, u.ID).Return(&types.RefreshToken{Token: tok, UserID: u.ID, ExpiresAt: time.Now().Add(time.Hour)}, nil).Once()
		repo.On("GetUserByID", mock.Anything, u.ID).Return(u, nil).Once()
		repo.On("RotateRefreshToken", mock.Anything, u.ID, tok, mock.AnythingOfType("string"), mock.AnythingOfType("time.Time")).Return(api.ErrNotFound).Once()

		_, err := service.Refresh(ctx, tok)
		assert.ErrorIs(t, err, ErrTokenInvalid)
		repo.AssertExpectations(t)
	})

	t.Run("StoredRowExpired", func(t *testing.T) {
		repo := new(MockAuthRepo)
		service := newMockService(repo)
		tok := signRefresh(t)

		repo.On("GetRefreshToken", mock.Anything, tok, u.ID).Return(&types.RefreshToken{Token: tok, UserID: u.ID, ExpiresAt: time.Now().Add(-time.Minute)}, nil).Once()

		_, err := service.Refresh(ctx, tok)
		assert.ErrorIs(t, err, ErrTokenExpired)
		repo.AssertNotCalled(t, "RotateRefreshToken", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("AccessTokenIsNotARefreshToken", func(t *testing.T) {
		repo := new(MockAuthRepo)
		service := newMockService(repo)
		access, _, err := codec.SignAccessToken(tokens.SubjectFromProfile(u))
		require.NoError(t, err)

		_, err = service.Refresh(ctx, access)
		assert.ErrorIs(t, err, ErrTokenInvalid)
		repo.AssertNotCalled(t, "GetRefreshToken", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("SuspendedUser", func(t *testing.T) {
		repo := new(MockAuthRepo)
		service := newMockService(repo)
		tok := signRefresh(t)
		suspended := activeProfile()
		suspended.Status = types.StatusSuspended

		repo.On("GetRefreshToken", mock.Anything, tok, u.ID).Return(&types.RefreshToken{Token: tok, UserID: u.ID, ExpiresAt: time.Now().Add(time.Hour)}, nil).Once()
		repo.On("GetUserByID", mock.Anything, u.ID).Return(suspended, nil).Once()

		_, err := service.Refresh(ctx, tok)
		assert.ErrorIs(t, err, ErrTokenInvalid)
		status, msg := StatusFor(err)
		assert.Equal(t, http.StatusUnauthorized, status)
		assert.Equal(t, "token invalid", msg)
		repo.AssertNotCalled(t, "RotateRefreshToken", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestResendVerificationSwallowsErrors(t *testing.T) {
	repo := new(MockAuthRepo)
	service := newMockService(repo)
	u := activeProfile()
	u.Status, u.EmailVerified = types.StatusPending, false

	repo.On("GetUserByEmail", mock.Anything, rahimEmail).Return(u, nil).Once()
	repo.On("IssueVerificationToken", mock.Anything, mock.MatchedBy(func(vt types.VerificationToken) bool {
		return vt.UserID == u.ID
	})).Return(errors.New("tx aborted")).Once()

	resp := service.ResendVerification(context.Background(), Identifier{Email: rahimEmail})
	assert.Equal(t, &types.Response{Success: true, Message: MsgResendVerification}, resp)
	repo.AssertExpectations(t)
}

func TestVerificationCodeExpiresAfterTenMinutes(t *testing.T) {
	repo := new(MockAuthRepo)
	fixed := time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC)
	service := newMockService(repo, WithClock(func() time.Time { return fixed }))
	u := activeProfile()
	u.Status, u.EmailVerified = types.StatusPending, false

	repo.On("GetUserByEmail", mock.Anything, rahimEmail).Return(u, nil).Once()
	repo.On("IssueVerificationToken", mock.Anything, mock.MatchedBy(func(vt types.VerificationToken) bool {
		return vt.UserID == u.ID && vt.ExpiresAt.Equal(fixed.Add(10*time.Minute))
	})).Return(nil).Once()

	service.ResendVerification(context.Background(), Identifier{Email: rahimEmail})
	repo.AssertExpectations(t)
}

func TestCleanupPendingUsersCutoff(t *testing.T) {
	repo := new(MockAuthRepo)
	fixed := time.Date(2025, 3, 1, 3, 0, 0, 0, time.UTC)
	service := newMockService(repo, WithClock(func() time.Time { return fixed }))

	repo.On("DeletePendingUsers", mock.Anything, fixed.Add(-24*time.Hour)).Return(int64(3), nil).Once()

	n, err := service.CleanupPendingUsers(context.Background(), 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	repo.AssertExpectations(t)
}
