package controller

import (
	stderrors "errors"
	"net/http"
	"strconv"

	"github.com/aabhushan/aabhushan-backend/internal/app/service"
	"github.com/aabhushan/aabhushan-backend/internal/errors"
	"github.com/aabhushan/aabhushan-backend/internal/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// GuestCartTokenHeader carries the guest cart token. The storefront keeps
// the token locally and sends it on every cart call until login.
const GuestCartTokenHeader = "X-Guest-Cart-Token"

type CartController struct {
	cartService *service.CartService
}

func NewCartController(cartService *service.CartService) *CartController {
	return &CartController{cartService: cartService}
}

type cartItemRequest struct {
	ProductID uint `json:"product_id" binding:"required"`
}

type mergeCartRequest struct {
	GuestCartToken string `json:"guest_cart_token" binding:"required"`
}

// GetCart returns the cart summary for the caller, authenticated or guest.
// GET /api/v1/cart
func (ctrl *CartController) GetCart(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	if userID, ok := middleware.GetUserID(c); ok {
		summary, err := ctrl.cartService.GetCart(userID)
		if err != nil {
			log.Error("Failed to fetch cart", err, map[string]interface{}{
				"user_id": userID,
			})
			errors.InternalError(c, "Could not load your cart")
			return
		}
		c.JSON(http.StatusOK, summary)
		return
	}

	token := c.GetHeader(GuestCartTokenHeader)
	if token == "" {
		// A guest without a token has an empty cart and no state yet.
		c.JSON(http.StatusOK, gin.H{"items": []interface{}{}, "total_items": 0})
		return
	}

	summary, err := ctrl.cartService.GetGuestCart(c.Request.Context(), token)
	if err != nil {
		log.Error("Failed to fetch guest cart", err, map[string]interface{}{
			"token": token,
		})
		errors.InternalError(c, "Could not load your cart")
		return
	}
	c.JSON(http.StatusOK, summary)
}

// IncreaseQuantity adds one unit of a product to the cart.
// POST /api/v1/cart/increase
func (ctrl *CartController) IncreaseQuantity(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	var req cartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errors.BadRequest(c, errors.ValidationInvalidInput, "product_id is required")
		return
	}

	if userID, ok := middleware.GetUserID(c); ok {
		summary, err := ctrl.cartService.IncreaseQuantity(userID, req.ProductID)
		if err != nil {
			ctrl.respondCartError(c, err)
			return
		}
		c.JSON(http.StatusOK, summary)
		return
	}

	token := c.GetHeader(GuestCartTokenHeader)
	issued := false
	if token == "" {
		// First cart write of this guest; issue their token.
		token = uuid.New().String()
		issued = true
	}

	summary, err := ctrl.cartService.IncreaseGuestQuantity(c.Request.Context(), token, req.ProductID)
	if err != nil {
		ctrl.respondCartError(c, err)
		return
	}

	c.Header(GuestCartTokenHeader, token)
	if issued {
		log.Info("Guest cart token issued", map[string]interface{}{
			"token": token,
		})
		c.JSON(http.StatusOK, gin.H{
			"items":            summary.Items,
			"total_items":      summary.TotalItems,
			"guest_cart_token": token,
		})
		return
	}
	c.JSON(http.StatusOK, summary)
}

// DecreaseQuantity removes one unit of a product from the cart.
// POST /api/v1/cart/decrease
func (ctrl *CartController) DecreaseQuantity(c *gin.Context) {
	var req cartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errors.BadRequest(c, errors.ValidationInvalidInput, "product_id is required")
		return
	}

	if userID, ok := middleware.GetUserID(c); ok {
		summary, err := ctrl.cartService.DecreaseQuantity(userID, req.ProductID)
		if err != nil {
			ctrl.respondCartError(c, err)
			return
		}
		c.JSON(http.StatusOK, summary)
		return
	}

	token := c.GetHeader(GuestCartTokenHeader)
	if token == "" {
		c.JSON(http.StatusOK, gin.H{"items": []interface{}{}, "total_items": 0})
		return
	}

	summary, err := ctrl.cartService.DecreaseGuestQuantity(c.Request.Context(), token, req.ProductID)
	if err != nil {
		ctrl.respondCartError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// RemoveItem drops a product from the cart entirely.
// DELETE /api/v1/cart/items/:productId
func (ctrl *CartController) RemoveItem(c *gin.Context) {
	productID, err := strconv.ParseUint(c.Param("productId"), 10, 32)
	if err != nil {
		errors.BadRequest(c, errors.ValidationInvalidID, "Invalid product ID")
		return
	}

	if userID, ok := middleware.GetUserID(c); ok {
		summary, err := ctrl.cartService.RemoveItem(userID, uint(productID))
		if err != nil {
			ctrl.respondCartError(c, err)
			return
		}
		c.JSON(http.StatusOK, summary)
		return
	}

	token := c.GetHeader(GuestCartTokenHeader)
	if token == "" {
		c.JSON(http.StatusOK, gin.H{"items": []interface{}{}, "total_items": 0})
		return
	}

	summary, err := ctrl.cartService.RemoveGuestItem(c.Request.Context(), token, uint(productID))
	if err != nil {
		ctrl.respondCartError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// MergeGuestCart folds the guest cart into the signed-in user's cart,
// called right after login. Items that could not be merged in full come
// back in skipped_items.
// POST /api/v1/cart/merge
func (ctrl *CartController) MergeGuestCart(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	userID, ok := middleware.GetUserID(c)
	if !ok {
		errors.Unauthorized(c, "")
		return
	}

	var req mergeCartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errors.BadRequest(c, errors.ValidationInvalidInput, "guest_cart_token is required")
		return
	}

	summary, skipped, err := ctrl.cartService.MergeGuestCart(c.Request.Context(), userID, req.GuestCartToken)
	if err != nil {
		log.Error("Guest cart merge failed", err, map[string]interface{}{
			"user_id": userID,
		})
		errors.InternalError(c, "Could not merge your cart")
		return
	}

	if skipped == nil {
		skipped = []string{}
	}
	c.JSON(http.StatusOK, gin.H{
		"items":         summary.Items,
		"total_items":   summary.TotalItems,
		"skipped_items": skipped,
	})
}

// ValidateCheckout reports whether the cart can proceed to checkout.
// POST /api/v1/cart/validate
func (ctrl *CartController) ValidateCheckout(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		errors.Unauthorized(c, "Please sign in to check out")
		return
	}

	err := ctrl.cartService.ValidateCheckout(userID)
	if err == nil {
		c.JSON(http.StatusOK, gin.H{"valid": true})
		return
	}

	var blocked *service.CheckoutBlockedError
	switch {
	case stderrors.Is(err, service.ErrCartEmpty):
		errors.BadRequest(c, errors.CartEmpty, "Your cart is empty")
	case stderrors.As(err, &blocked):
		c.JSON(http.StatusConflict, gin.H{
			"error":      errors.CartCheckoutBlocked,
			"message":    "Some items exceed the available stock",
			"violations": blocked.Violations,
		})
	default:
		errors.InternalError(c, "")
	}
}

// respondCartError maps service errors onto the cart error codes.
func (ctrl *CartController) respondCartError(c *gin.Context, err error) {
	log := middleware.GetLoggerFromContext(c)

	var stockErr *service.InsufficientStockError
	switch {
	case stderrors.Is(err, service.ErrProductNotFound):
		errors.NotFound(c, errors.ProductNotFound, "Product not found")
	case stderrors.As(err, &stockErr):
		c.JSON(http.StatusConflict, gin.H{
			"error":     errors.CartInsufficientStock,
			"message":   "Only " + strconv.Itoa(stockErr.Available) + " left in stock for " + stockErr.ProductName,
			"product":   stockErr.ProductName,
			"available": stockErr.Available,
		})
	default:
		log.Error("Cart operation failed", err, nil)
		errors.InternalError(c, "")
	}
}
