package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/aabhushan/aabhushan-backend/config"
	"github.com/aabhushan/aabhushan-backend/internal/app/model"
	"github.com/aabhushan/aabhushan-backend/internal/app/repository"
	"github.com/aabhushan/aabhushan-backend/internal/db"
	"github.com/aabhushan/aabhushan-backend/pkg/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type memoryOTPStore struct {
	mu    sync.Mutex
	codes map[string]string
}

func newMemoryOTPStore() *memoryOTPStore {
	return &memoryOTPStore{codes: make(map[string]string)}
}

func (s *memoryOTPStore) Store(_ context.Context, phone, code string, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.codes[phone] = code
	return nil
}

func (s *memoryOTPStore) Get(_ context.Context, phone string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.codes[phone], nil
}

func (s *memoryOTPStore) Delete(_ context.Context, phone string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.codes, phone)
	return nil
}

func setupAuthServiceTest(t *testing.T) (*AuthService, *memoryOTPStore, *gorm.DB, *[]string) {
	t.Helper()

	testDB, err := db.SetupTestDB()
	require.NoError(t, err)
	t.Cleanup(func() { db.CleanupTestDB(testDB) })

	otpStore := newMemoryOTPStore()
	var sentTo []string

	svc := &AuthService{
		userRepo: repository.NewUserRepository(testDB),
		otpStore: otpStore,
		sendSMS: func(phone, code string) error {
			sentTo = append(sentTo, phone)
			return nil
		},
		jwtConfig: config.JWTConfig{
			Secret:             "test-secret",
			AccessTokenExpiry:  15 * time.Minute,
			RefreshTokenExpiry: 7 * 24 * time.Hour,
		},
		otpExpiry: 5 * time.Minute,
	}
	return svc, otpStore, testDB, &sentTo
}

func TestAuthService_RequestOTP(t *testing.T) {
	ctx := context.Background()

	t.Run("stores a code and sends the SMS", func(t *testing.T) {
		svc, otpStore, _, sentTo := setupAuthServiceTest(t)

		require.NoError(t, svc.RequestOTP(ctx, "9876543210"))

		code, err := otpStore.Get(ctx, "9876543210")
		require.NoError(t, err)
		assert.Len(t, code, 6)
		assert.Equal(t, []string{"9876543210"}, *sentTo)
	})

	t.Run("rejects malformed phone numbers", func(t *testing.T) {
		svc, _, _, _ := setupAuthServiceTest(t)

		assert.ErrorIs(t, svc.RequestOTP(ctx, "12345"), ErrPhoneInvalid)
		assert.ErrorIs(t, svc.RequestOTP(ctx, "1234567890"), ErrPhoneInvalid)
		assert.ErrorIs(t, svc.RequestOTP(ctx, "98765abc10"), ErrPhoneInvalid)
	})
}

func TestAuthService_VerifyOTP(t *testing.T) {
	ctx := context.Background()

	t.Run("creates the account on first login", func(t *testing.T) {
		svc, otpStore, testDB, _ := setupAuthServiceTest(t)
		require.NoError(t, otpStore.Store(ctx, "9876543210", "123456", time.Minute))

		user, pair, err := svc.VerifyOTP(ctx, "9876543210", "123456")
		require.NoError(t, err)
		assert.NotZero(t, user.ID)
		assert.Equal(t, model.RoleUser, user.Role)
		assert.NotEmpty(t, pair.AccessToken)
		assert.NotEmpty(t, pair.RefreshToken)

		var count int64
		require.NoError(t, testDB.Model(&model.User{}).Count(&count).Error)
		assert.Equal(t, int64(1), count)
	})

	t.Run("reuses the existing account on later logins", func(t *testing.T) {
		svc, otpStore, testDB, _ := setupAuthServiceTest(t)
		existing := &model.User{Phone: "9876543210", Role: model.RoleUser}
		require.NoError(t, testDB.Create(existing).Error)

		require.NoError(t, otpStore.Store(ctx, "9876543210", "654321", time.Minute))

		user, _, err := svc.VerifyOTP(ctx, "9876543210", "654321")
		require.NoError(t, err)
		assert.Equal(t, existing.ID, user.ID)
	})

	t.Run("code is single use", func(t *testing.T) {
		svc, otpStore, _, _ := setupAuthServiceTest(t)
		require.NoError(t, otpStore.Store(ctx, "9876543210", "111111", time.Minute))

		_, _, err := svc.VerifyOTP(ctx, "9876543210", "111111")
		require.NoError(t, err)

		_, _, err = svc.VerifyOTP(ctx, "9876543210", "111111")
		assert.ErrorIs(t, err, ErrOTPExpired)
	})

	t.Run("wrong code is rejected without consuming it", func(t *testing.T) {
		svc, otpStore, _, _ := setupAuthServiceTest(t)
		require.NoError(t, otpStore.Store(ctx, "9876543210", "222222", time.Minute))

		_, _, err := svc.VerifyOTP(ctx, "9876543210", "999999")
		assert.ErrorIs(t, err, ErrOTPInvalid)

		_, _, err = svc.VerifyOTP(ctx, "9876543210", "222222")
		assert.NoError(t, err)
	})

	t.Run("missing code reads as expired", func(t *testing.T) {
		svc, _, _, _ := setupAuthServiceTest(t)

		_, _, err := svc.VerifyOTP(ctx, "9876543210", "123456")
		assert.ErrorIs(t, err, ErrOTPExpired)
	})

	t.Run("issued access token carries the identity", func(t *testing.T) {
		svc, otpStore, _, _ := setupAuthServiceTest(t)
		require.NoError(t, otpStore.Store(ctx, "9876543210", "333333", time.Minute))

		user, pair, err := svc.VerifyOTP(ctx, "9876543210", "333333")
		require.NoError(t, err)

		claims, err := util.ValidateToken(pair.AccessToken, "test-secret")
		require.NoError(t, err)
		assert.Equal(t, user.ID, claims.UserID)
		assert.Equal(t, "9876543210", claims.Phone)
		assert.Equal(t, "user", claims.Role)
	})
}

func TestAuthService_AdminLogin(t *testing.T) {
	t.Run("valid credentials", func(t *testing.T) {
		svc, _, testDB, _ := setupAuthServiceTest(t)
		hash, err := util.HashPassword("s3cret-pass")
		require.NoError(t, err)
		require.NoError(t, testDB.Create(&model.User{
			Phone:        "9000000001",
			Email:        "admin@example.com",
			PasswordHash: hash,
			Role:         model.RoleAdmin,
		}).Error)

		user, pair, err := svc.AdminLogin("admin@example.com", "s3cret-pass")
		require.NoError(t, err)
		assert.Equal(t, model.RoleAdmin, user.Role)
		assert.NotEmpty(t, pair.AccessToken)
	})

	t.Run("wrong password", func(t *testing.T) {
		svc, _, testDB, _ := setupAuthServiceTest(t)
		hash, err := util.HashPassword("right")
		require.NoError(t, err)
		require.NoError(t, testDB.Create(&model.User{
			Phone:        "9000000002",
			Email:        "admin2@example.com",
			PasswordHash: hash,
			Role:         model.RoleAdmin,
		}).Error)

		_, _, err = svc.AdminLogin("admin2@example.com", "wrong")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("unknown email", func(t *testing.T) {
		svc, _, _, _ := setupAuthServiceTest(t)

		_, _, err := svc.AdminLogin("nobody@example.com", "whatever")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("customer account cannot use the admin door", func(t *testing.T) {
		svc, _, testDB, _ := setupAuthServiceTest(t)
		hash, err := util.HashPassword("pass")
		require.NoError(t, err)
		require.NoError(t, testDB.Create(&model.User{
			Phone:        "9000000003",
			Email:        "user@example.com",
			PasswordHash: hash,
			Role:         model.RoleUser,
		}).Error)

		_, _, err = svc.AdminLogin("user@example.com", "pass")
		assert.ErrorIs(t, err, ErrNotAdmin)
	})
}
