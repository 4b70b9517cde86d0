package controller

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/aabhushan/aabhushan-backend/config"
	"github.com/aabhushan/aabhushan-backend/internal/app/model"
	"github.com/aabhushan/aabhushan-backend/internal/app/repository"
	"github.com/aabhushan/aabhushan-backend/internal/app/service"
	"github.com/aabhushan/aabhushan-backend/internal/db"
)

// fixedOTPStore keeps codes in memory so tests can log in without redis.
type fixedOTPStore struct {
	codes map[string]string
}

func (s *fixedOTPStore) Store(_ context.Context, phone, code string, _ time.Duration) error {
	s.codes[phone] = code
	return nil
}

func (s *fixedOTPStore) Get(_ context.Context, phone string) (string, error) {
	return s.codes[phone], nil
}

func (s *fixedOTPStore) Delete(_ context.Context, phone string) error {
	delete(s.codes, phone)
	return nil
}

func setupAuthControllerTest(t *testing.T) (*gin.Engine, *gorm.DB, repository.GuestCartStore, *fixedOTPStore, *model.Product) {
	testDB, err := db.SetupTestDB()
	require.NoError(t, err)
	t.Cleanup(func() {
		db.CleanupTestDB(testDB)
	})

	cfg := &config.Config{
		JWT: config.JWTConfig{
			Secret:             "test-secret",
			AccessTokenExpiry:  15 * time.Minute,
			RefreshTokenExpiry: time.Hour,
		},
		OTP: config.OTPConfig{Expiry: 5 * time.Minute},
	}

	otpStore := &fixedOTPStore{codes: map[string]string{}}
	authService := service.NewAuthService(repository.NewUserRepository(testDB), otpStore, cfg)

	guestStore := repository.NewMemoryGuestCartStore()
	cartService := service.NewCartService(
		repository.NewCartRepository(testDB),
		repository.NewProductRepository(testDB),
		guestStore,
	)
	authController := NewAuthController(authService, cartService)

	category := &model.Category{Name: "Rings"}
	require.NoError(t, testDB.Create(category).Error)

	product := &model.Product{
		Name:          "Gold Ring",
		Price:         25000,
		StockQuantity: 10,
		CategoryID:    category.ID,
	}
	require.NoError(t, testDB.Create(product).Error)

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/auth/otp/verify", authController.VerifyOTP)

	return router, testDB, guestStore, otpStore, product
}

func TestAuthController_VerifyOTP_MergesGuestCart(t *testing.T) {
	router, testDB, guestStore, otpStore, product := setupAuthControllerTest(t)

	otpStore.codes["9876543210"] = "123456"
	token := "guest-token-login"
	require.NoError(t, guestStore.Save(context.Background(), token, []model.GuestCartLine{
		{ProductID: product.ID, Quantity: 2},
	}))

	w := postJSON(t, router, "/auth/otp/verify", verifyOTPRequest{
		Phone:          "9876543210",
		Code:           "123456",
		GuestCartToken: token,
	}, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	response := decodeBody(t, w)
	assert.NotEmpty(t, response["access_token"])
	assert.Empty(t, response["skipped_items"])

	cart, ok := response["cart"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(2), cart["total_items"])

	// The account cart holds the merged line.
	user, err := repository.NewUserRepository(testDB).FindByPhone("9876543210")
	require.NoError(t, err)
	cartRepo := repository.NewCartRepository(testDB)
	dbCart, err := cartRepo.FindOrCreateByUserID(user.ID)
	require.NoError(t, err)
	items, err := cartRepo.FindItemsByCartID(dbCart.ID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 2, items[0].Quantity)

	// The guest cart is gone after the merge.
	lines, err := guestStore.Get(context.Background(), token)
	require.NoError(t, err)
	assert.Empty(t, lines)
}

func TestAuthController_VerifyOTP_MergeReportsSkippedItems(t *testing.T) {
	router, testDB, guestStore, otpStore, product := setupAuthControllerTest(t)

	require.NoError(t, testDB.Model(product).Update("stock_quantity", 1).Error)

	otpStore.codes["9876543210"] = "123456"
	token := "guest-token-capped"
	require.NoError(t, guestStore.Save(context.Background(), token, []model.GuestCartLine{
		{ProductID: product.ID, Quantity: 3},
	}))

	w := postJSON(t, router, "/auth/otp/verify", verifyOTPRequest{
		Phone:          "9876543210",
		Code:           "123456",
		GuestCartToken: token,
	}, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	response := decodeBody(t, w)
	assert.NotEmpty(t, response["access_token"])
	assert.Equal(t, []interface{}{"Gold Ring"}, response["skipped_items"])

	cart, ok := response["cart"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(1), cart["total_items"])
}

func TestAuthController_VerifyOTP_WithoutGuestToken(t *testing.T) {
	router, _, _, otpStore, _ := setupAuthControllerTest(t)

	otpStore.codes["9876543210"] = "123456"

	w := postJSON(t, router, "/auth/otp/verify", verifyOTPRequest{
		Phone: "9876543210",
		Code:  "123456",
	}, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	response := decodeBody(t, w)
	assert.NotEmpty(t, response["access_token"])
	assert.NotContains(t, response, "skipped_items")
	assert.NotContains(t, response, "cart")
}

func TestAuthController_VerifyOTP_WrongCode(t *testing.T) {
	router, _, _, otpStore, _ := setupAuthControllerTest(t)

	otpStore.codes["9876543210"] = "123456"

	w := postJSON(t, router, "/auth/otp/verify", verifyOTPRequest{
		Phone: "9876543210",
		Code:  "000000",
	}, nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	response := decodeBody(t, w)
	assert.Equal(t, "AUTH_CODE_INVALID", response["error"])
}
