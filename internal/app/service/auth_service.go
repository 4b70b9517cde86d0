package service

import (
	"context"
	"errors"
	"regexp"
	"time"

	"github.com/aabhushan/aabhushan-backend/config"
	"github.com/aabhushan/aabhushan-backend/internal/app/model"
	"github.com/aabhushan/aabhushan-backend/internal/app/repository"
	"github.com/aabhushan/aabhushan-backend/pkg/logger"
	"github.com/aabhushan/aabhushan-backend/pkg/redis"
	"github.com/aabhushan/aabhushan-backend/pkg/util"
	"gorm.io/gorm"
)

var (
	ErrPhoneInvalid       = errors.New("invalid phone number")
	ErrOTPInvalid         = errors.New("invalid verification code")
	ErrOTPExpired         = errors.New("verification code expired or not requested")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrNotAdmin           = errors.New("account is not an admin")
)

var phonePattern = regexp.MustCompile(`^[6-9]\d{9}$`)

// OTPStore abstracts the code storage so the service can be tested without
// a redis server.
type OTPStore interface {
	Store(ctx context.Context, phone, code string, expiry time.Duration) error
	Get(ctx context.Context, phone string) (string, error)
	Delete(ctx context.Context, phone string) error
}

type redisOTPStore struct{}

// NewRedisOTPStore returns the store backed by the shared redis client.
func NewRedisOTPStore() OTPStore {
	return &redisOTPStore{}
}

func (redisOTPStore) Store(ctx context.Context, phone, code string, expiry time.Duration) error {
	return redis.StoreOTP(ctx, phone, code, expiry)
}

func (redisOTPStore) Get(ctx context.Context, phone string) (string, error) {
	return redis.GetOTP(ctx, phone)
}

func (redisOTPStore) Delete(ctx context.Context, phone string) error {
	return redis.DeleteOTP(ctx, phone)
}

// SMSSender delivers a verification code to a phone number.
type SMSSender func(phone, code string) error

// AuthService signs customers in by phone OTP and admins by email and
// password. Customer accounts are created on first successful OTP
// verification; there is no separate registration step.
type AuthService struct {
	userRepo  repository.UserRepository
	otpStore  OTPStore
	sendSMS   SMSSender
	jwtConfig config.JWTConfig
	otpExpiry time.Duration
}

func NewAuthService(userRepo repository.UserRepository, otpStore OTPStore, cfg *config.Config) *AuthService {
	sender := func(phone, code string) error {
		return util.SendVerificationSMS(
			cfg.OTP.AuthKey, cfg.OTP.SenderID, cfg.OTP.TemplateID, phone, code,
		)
	}
	return &AuthService{
		userRepo:  userRepo,
		otpStore:  otpStore,
		sendSMS:   sender,
		jwtConfig: cfg.JWT,
		otpExpiry: cfg.OTP.Expiry,
	}
}

// RequestOTP generates and delivers a login code for the phone number.
func (s *AuthService) RequestOTP(ctx context.Context, phone string) error {
	logger.Info("OTP requested", map[string]interface{}{
		"phone": phone,
	})

	if !phonePattern.MatchString(phone) {
		return ErrPhoneInvalid
	}

	code := util.GenerateOTPCode()
	if err := s.otpStore.Store(ctx, phone, code, s.otpExpiry); err != nil {
		return err
	}

	if err := s.sendSMS(phone, code); err != nil {
		logger.Error("Failed to deliver OTP", err, map[string]interface{}{
			"phone": phone,
		})
		return err
	}

	logger.Info("OTP delivered", map[string]interface{}{
		"phone": phone,
	})
	return nil
}

// VerifyOTP checks the submitted code and signs the customer in, creating
// the account on first login. The code is single use.
func (s *AuthService) VerifyOTP(ctx context.Context, phone, code string) (*model.User, *util.TokenPair, error) {
	logger.Info("Verifying OTP", map[string]interface{}{
		"phone": phone,
	})

	if !phonePattern.MatchString(phone) {
		return nil, nil, ErrPhoneInvalid
	}

	stored, err := s.otpStore.Get(ctx, phone)
	if err != nil {
		return nil, nil, err
	}
	if stored == "" {
		return nil, nil, ErrOTPExpired
	}
	if stored != code {
		logger.Warn("OTP mismatch", map[string]interface{}{
			"phone": phone,
		})
		return nil, nil, ErrOTPInvalid
	}

	if err := s.otpStore.Delete(ctx, phone); err != nil {
		logger.Warn("Failed to delete consumed OTP", map[string]interface{}{
			"phone": phone,
		})
	}

	user, err := s.findOrCreateUser(phone)
	if err != nil {
		return nil, nil, err
	}

	pair, err := util.GenerateTokenPair(
		user.ID, user.Phone, string(user.Role),
		s.jwtConfig.Secret,
		s.jwtConfig.AccessTokenExpiry,
		s.jwtConfig.RefreshTokenExpiry,
	)
	if err != nil {
		logger.Error("Failed to generate token pair", err, map[string]interface{}{
			"user_id": user.ID,
		})
		return nil, nil, err
	}

	logger.Info("User signed in by OTP", map[string]interface{}{
		"user_id": user.ID,
	})
	return user, pair, nil
}

// AdminLogin authenticates the admin account with email and password.
func (s *AuthService) AdminLogin(email, password string) (*model.User, *util.TokenPair, error) {
	logger.Info("Admin login attempt", map[string]interface{}{
		"email": email,
	})

	user, err := s.userRepo.FindByEmail(email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrInvalidCredentials
		}
		return nil, nil, err
	}

	if user.Role != model.RoleAdmin {
		return nil, nil, ErrNotAdmin
	}
	if !util.VerifyPassword(user.PasswordHash, password) {
		logger.Warn("Admin login failed: bad password", map[string]interface{}{
			"email": email,
		})
		return nil, nil, ErrInvalidCredentials
	}

	pair, err := util.GenerateTokenPair(
		user.ID, user.Phone, string(user.Role),
		s.jwtConfig.Secret,
		s.jwtConfig.AccessTokenExpiry,
		s.jwtConfig.RefreshTokenExpiry,
	)
	if err != nil {
		return nil, nil, err
	}

	logger.Info("Admin signed in", map[string]interface{}{
		"user_id": user.ID,
	})
	return user, pair, nil
}

// RefreshToken exchanges a valid refresh token for a fresh pair. The spent
// refresh token is blacklisted so it cannot be replayed.
func (s *AuthService) RefreshToken(ctx context.Context, refreshToken string) (*util.TokenPair, error) {
	claims, err := util.ValidateToken(refreshToken, s.jwtConfig.Secret)
	if err != nil {
		return nil, err
	}
	if claims.Subject != "refresh" {
		return nil, util.ErrInvalidToken
	}

	blacklisted, err := redis.IsTokenBlacklisted(ctx, refreshToken)
	if err != nil {
		return nil, err
	}
	if blacklisted {
		return nil, util.ErrInvalidToken
	}

	user, err := s.userRepo.FindByID(claims.UserID)
	if err != nil {
		return nil, err
	}

	if err := redis.BlacklistToken(ctx, refreshToken, s.jwtConfig.RefreshTokenExpiry); err != nil {
		logger.Warn("Failed to blacklist spent refresh token", map[string]interface{}{
			"user_id": user.ID,
		})
	}

	return util.GenerateTokenPair(
		user.ID, user.Phone, string(user.Role),
		s.jwtConfig.Secret,
		s.jwtConfig.AccessTokenExpiry,
		s.jwtConfig.RefreshTokenExpiry,
	)
}

// Logout revokes the presented tokens for the remainder of their lifetime.
func (s *AuthService) Logout(ctx context.Context, accessToken, refreshToken string) error {
	if accessToken != "" {
		if err := redis.BlacklistToken(ctx, accessToken, s.jwtConfig.AccessTokenExpiry); err != nil {
			return err
		}
	}
	if refreshToken != "" {
		if err := redis.BlacklistToken(ctx, refreshToken, s.jwtConfig.RefreshTokenExpiry); err != nil {
			return err
		}
	}
	return nil
}

func (s *AuthService) findOrCreateUser(phone string) (*model.User, error) {
	user, err := s.userRepo.FindByPhone(phone)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	user = &model.User{Phone: phone, Role: model.RoleUser}
	if err := s.userRepo.Create(user); err != nil {
		return nil, err
	}

	logger.Info("Customer account created on first login", map[string]interface{}{
		"user_id": user.ID,
	})
	return user, nil
}
