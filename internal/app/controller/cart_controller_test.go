package controller

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/aabhushan/aabhushan-backend/internal/app/model"
	"github.com/aabhushan/aabhushan-backend/internal/app/repository"
	"github.com/aabhushan/aabhushan-backend/internal/app/service"
	"github.com/aabhushan/aabhushan-backend/internal/db"
	"github.com/aabhushan/aabhushan-backend/internal/middleware"
)

func setupCartControllerTest(t *testing.T) (*CartController, *gin.Engine, *gorm.DB, repository.GuestCartStore, *model.User, *model.Product) {
	testDB, err := db.SetupTestDB()
	require.NoError(t, err)
	t.Cleanup(func() {
		db.CleanupTestDB(testDB)
	})

	guestStore := repository.NewMemoryGuestCartStore()
	cartService := service.NewCartService(
		repository.NewCartRepository(testDB),
		repository.NewProductRepository(testDB),
		guestStore,
	)
	cartController := NewCartController(cartService)

	user := &model.User{
		Phone: "9876543210",
		Name:  "Test User",
		Role:  model.RoleUser,
	}
	require.NoError(t, testDB.Create(user).Error)

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

	return cartController, router, testDB, guestStore, user, product
}

// asUser registers a handler with the user pre-authenticated in context.
func asUser(userID uint, handler gin.HandlerFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.UserIDKey, userID)
		handler(c)
	}
}

func postJSON(t *testing.T, router *gin.Engine, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	jsonBody, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBuffer(jsonBody))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	return response
}

func TestCartController_GetCart_User(t *testing.T) {
	controller, router, testDB, _, user, product := setupCartControllerTest(t)

	cartRepo := repository.NewCartRepository(testDB)
	cart, err := cartRepo.FindOrCreateByUserID(user.ID)
	require.NoError(t, err)
	require.NoError(t, cartRepo.CreateItem(&model.CartItem{
		CartID:    cart.ID,
		ProductID: product.ID,
		Quantity:  3,
	}))

	router.GET("/cart", asUser(user.ID, controller.GetCart))

	req := httptest.NewRequest(http.MethodGet, "/cart", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	response := decodeBody(t, w)
	assert.Equal(t, float64(3), response["total_items"])
	assert.Len(t, response["items"], 1)
}

func TestCartController_GetCart_GuestWithoutToken(t *testing.T) {
	controller, router, _, _, _, _ := setupCartControllerTest(t)

	router.GET("/cart", controller.GetCart)

	req := httptest.NewRequest(http.MethodGet, "/cart", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	response := decodeBody(t, w)
	assert.Equal(t, float64(0), response["total_items"])
	assert.Empty(t, response["items"])
}

func TestCartController_IncreaseQuantity_User(t *testing.T) {
	controller, router, _, _, user, product := setupCartControllerTest(t)

	router.POST("/cart/increase", asUser(user.ID, controller.IncreaseQuantity))

	w := postJSON(t, router, "/cart/increase", cartItemRequest{ProductID: product.ID}, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	response := decodeBody(t, w)
	assert.Equal(t, float64(1), response["total_items"])
}

func TestCartController_IncreaseQuantity_GuestTokenIssued(t *testing.T) {
	controller, router, _, _, _, product := setupCartControllerTest(t)

	router.POST("/cart/increase", controller.IncreaseQuantity)

	w := postJSON(t, router, "/cart/increase", cartItemRequest{ProductID: product.ID}, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	token := w.Header().Get(GuestCartTokenHeader)
	assert.NotEmpty(t, token)

	response := decodeBody(t, w)
	assert.Equal(t, token, response["guest_cart_token"])
	assert.Equal(t, float64(1), response["total_items"])

	// Second call with the token reuses the same cart.
	w = postJSON(t, router, "/cart/increase", cartItemRequest{ProductID: product.ID}, map[string]string{
		GuestCartTokenHeader: token,
	})
	assert.Equal(t, http.StatusOK, w.Code)
	response = decodeBody(t, w)
	assert.Equal(t, float64(2), response["total_items"])
	assert.NotContains(t, response, "guest_cart_token")
}

func TestCartController_IncreaseQuantity_InsufficientStock(t *testing.T) {
	controller, router, testDB, _, user, product := setupCartControllerTest(t)

	require.NoError(t, testDB.Model(product).Update("stock_quantity", 1).Error)

	router.POST("/cart/increase", asUser(user.ID, controller.IncreaseQuantity))

	w := postJSON(t, router, "/cart/increase", cartItemRequest{ProductID: product.ID}, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = postJSON(t, router, "/cart/increase", cartItemRequest{ProductID: product.ID}, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	response := decodeBody(t, w)
	assert.Equal(t, "CART_INSUFFICIENT_STOCK", response["error"])
	assert.Equal(t, "Gold Ring", response["product"])
	assert.Equal(t, float64(1), response["available"])
}

func TestCartController_IncreaseQuantity_ProductNotFound(t *testing.T) {
	controller, router, _, _, user, _ := setupCartControllerTest(t)

	router.POST("/cart/increase", asUser(user.ID, controller.IncreaseQuantity))

	w := postJSON(t, router, "/cart/increase", cartItemRequest{ProductID: 9999}, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCartController_IncreaseQuantity_MissingProductID(t *testing.T) {
	controller, router, _, _, user, _ := setupCartControllerTest(t)

	router.POST("/cart/increase", asUser(user.ID, controller.IncreaseQuantity))

	w := postJSON(t, router, "/cart/increase", map[string]interface{}{}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCartController_DecreaseQuantity_RemovesLineAtZero(t *testing.T) {
	controller, router, _, _, user, product := setupCartControllerTest(t)

	router.POST("/cart/increase", asUser(user.ID, controller.IncreaseQuantity))
	router.POST("/cart/decrease", asUser(user.ID, controller.DecreaseQuantity))

	postJSON(t, router, "/cart/increase", cartItemRequest{ProductID: product.ID}, nil)

	w := postJSON(t, router, "/cart/decrease", cartItemRequest{ProductID: product.ID}, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	response := decodeBody(t, w)
	assert.Equal(t, float64(0), response["total_items"])
	assert.Empty(t, response["items"])
}

func TestCartController_RemoveItem(t *testing.T) {
	controller, router, _, _, user, product := setupCartControllerTest(t)

	router.POST("/cart/increase", asUser(user.ID, controller.IncreaseQuantity))
	router.DELETE("/cart/items/:productId", asUser(user.ID, controller.RemoveItem))

	postJSON(t, router, "/cart/increase", cartItemRequest{ProductID: product.ID}, nil)
	postJSON(t, router, "/cart/increase", cartItemRequest{ProductID: product.ID}, nil)

	req := httptest.NewRequest(http.MethodDelete, "/cart/items/1", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	response := decodeBody(t, w)
	assert.Equal(t, float64(0), response["total_items"])
}

func TestCartController_RemoveItem_InvalidID(t *testing.T) {
	controller, router, _, _, user, _ := setupCartControllerTest(t)

	router.DELETE("/cart/items/:productId", asUser(user.ID, controller.RemoveItem))

	req := httptest.NewRequest(http.MethodDelete, "/cart/items/abc", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCartController_MergeGuestCart(t *testing.T) {
	controller, router, _, guestStore, user, product := setupCartControllerTest(t)

	token := "guest-token-1"
	require.NoError(t, guestStore.Save(context.Background(), token, []model.GuestCartLine{
		{ProductID: product.ID, Quantity: 2},
	}))

	router.POST("/cart/merge", asUser(user.ID, controller.MergeGuestCart))

	w := postJSON(t, router, "/cart/merge", mergeCartRequest{GuestCartToken: token}, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	response := decodeBody(t, w)
	assert.Equal(t, float64(2), response["total_items"])
	assert.Empty(t, response["skipped_items"])

	// The guest cart is gone after the merge.
	lines, err := guestStore.Get(context.Background(), token)
	require.NoError(t, err)
	assert.Empty(t, lines)
}

func TestCartController_MergeGuestCart_SkippedItems(t *testing.T) {
	controller, router, testDB, guestStore, user, product := setupCartControllerTest(t)

	require.NoError(t, testDB.Model(product).Update("stock_quantity", 1).Error)

	token := "guest-token-2"
	require.NoError(t, guestStore.Save(context.Background(), token, []model.GuestCartLine{
		{ProductID: product.ID, Quantity: 3},
	}))

	router.POST("/cart/merge", asUser(user.ID, controller.MergeGuestCart))

	w := postJSON(t, router, "/cart/merge", mergeCartRequest{GuestCartToken: token}, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	response := decodeBody(t, w)
	assert.Equal(t, float64(1), response["total_items"])
	assert.Equal(t, []interface{}{"Gold Ring"}, response["skipped_items"])
}

func TestCartController_MergeGuestCart_Unauthenticated(t *testing.T) {
	controller, router, _, _, _, _ := setupCartControllerTest(t)

	router.POST("/cart/merge", controller.MergeGuestCart)

	w := postJSON(t, router, "/cart/merge", mergeCartRequest{GuestCartToken: "whatever"}, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCartController_ValidateCheckout_Empty(t *testing.T) {
	controller, router, _, _, user, _ := setupCartControllerTest(t)

	router.POST("/cart/validate", asUser(user.ID, controller.ValidateCheckout))

	w := postJSON(t, router, "/cart/validate", nil, nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	response := decodeBody(t, w)
	assert.Equal(t, "CART_EMPTY", response["error"])
}

func TestCartController_ValidateCheckout_Passes(t *testing.T) {
	controller, router, _, _, user, product := setupCartControllerTest(t)

	router.POST("/cart/increase", asUser(user.ID, controller.IncreaseQuantity))
	router.POST("/cart/validate", asUser(user.ID, controller.ValidateCheckout))

	postJSON(t, router, "/cart/increase", cartItemRequest{ProductID: product.ID}, nil)

	w := postJSON(t, router, "/cart/validate", nil, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	response := decodeBody(t, w)
	assert.Equal(t, true, response["valid"])
}

func TestCartController_ValidateCheckout_Blocked(t *testing.T) {
	controller, router, testDB, _, user, product := setupCartControllerTest(t)

	router.POST("/cart/increase", asUser(user.ID, controller.IncreaseQuantity))
	router.POST("/cart/validate", asUser(user.ID, controller.ValidateCheckout))

	postJSON(t, router, "/cart/increase", cartItemRequest{ProductID: product.ID}, nil)
	postJSON(t, router, "/cart/increase", cartItemRequest{ProductID: product.ID}, nil)

	// Stock drops after the items were added.
	require.NoError(t, testDB.Model(product).Update("stock_quantity", 1).Error)

	w := postJSON(t, router, "/cart/validate", nil, nil)

	assert.Equal(t, http.StatusConflict, w.Code)
	response := decodeBody(t, w)
	assert.Equal(t, "CART_CHECKOUT_BLOCKED", response["error"])

	violations, ok := response["violations"].([]interface{})
	require.True(t, ok)
	require.Len(t, violations, 1)
	violation := violations[0].(map[string]interface{})
	assert.Equal(t, float64(2), violation["requested"])
	assert.Equal(t, float64(1), violation["available"])
}
