package controller

import (
	stderrors "errors"
	"net/http"

	"github.com/aabhushan/aabhushan-backend/internal/app/service"
	"github.com/aabhushan/aabhushan-backend/internal/errors"
	"github.com/aabhushan/aabhushan-backend/internal/middleware"
	"github.com/aabhushan/aabhushan-backend/pkg/payment/phonepe"
	"github.com/gin-gonic/gin"
)

type PaymentController struct {
	paymentService *service.PaymentService
}

func NewPaymentController(paymentService *service.PaymentService) *PaymentController {
	return &PaymentController{paymentService: paymentService}
}

type checkoutRequest struct {
	AddressID uint `json:"address_id" binding:"required"`
}

type callbackRequest struct {
	Response string `json:"response" binding:"required"`
}

// Checkout turns the cart into an order and returns the gateway redirect.
// POST /api/v1/payments/checkout
func (ctrl *PaymentController) Checkout(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	userID, ok := middleware.GetUserID(c)
	if !ok {
		errors.Unauthorized(c, "Please sign in to check out")
		return
	}

	var req checkoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errors.BadRequest(c, errors.ValidationInvalidInput, "address_id is required")
		return
	}

	result, err := ctrl.paymentService.Checkout(c.Request.Context(), userID, req.AddressID)
	if err != nil {
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
		case stderrors.Is(err, service.ErrAddressNotFound):
			errors.NotFound(c, errors.AddressNotFound, "Address not found")
		case stderrors.Is(err, phonepe.ErrGatewayUnreachable), stderrors.Is(err, phonepe.ErrPaymentRejected):
			log.Error("Payment gateway rejected checkout", err, map[string]interface{}{
				"user_id": userID,
			})
			errors.RespondWithError(c, http.StatusBadGateway, errors.PaymentFailed, "The payment service is unavailable, please try again")
		default:
			log.Error("Checkout failed", err, map[string]interface{}{
				"user_id": userID,
			})
			errors.InternalError(c, "")
		}
		return
	}

	c.JSON(http.StatusOK, result)
}

// Callback receives the gateway's server-to-server settlement notice.
// POST /api/v1/payments/phonepe/callback
func (ctrl *PaymentController) Callback(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	var req callbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errors.BadRequest(c, errors.ValidationInvalidInput, "Malformed callback body")
		return
	}

	order, err := ctrl.paymentService.HandleCallback(req.Response, c.GetHeader("X-VERIFY"))
	if err != nil {
		switch {
		case stderrors.Is(err, phonepe.ErrInvalidCallback):
			log.Warn("Rejected payment callback with bad signature", nil)
			errors.Unauthorized(c, "Invalid callback signature")
		case stderrors.Is(err, service.ErrOrderNotFound):
			errors.NotFound(c, errors.PaymentNotFound, "No order matches this payment")
		default:
			log.Error("Payment callback processing failed", err, nil)
			errors.InternalError(c, "")
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"order_id":       order.ID,
		"payment_status": order.PaymentStatus,
	})
}

// ConfirmPayment re-checks the gateway when the customer returns from the
// payment page, in case the callback was lost.
// POST /api/v1/payments/orders/:id/confirm
func (ctrl *PaymentController) ConfirmPayment(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	userID, ok := middleware.GetUserID(c)
	if !ok {
		errors.Unauthorized(c, "")
		return
	}

	orderID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	order, err := ctrl.paymentService.ConfirmPayment(c.Request.Context(), userID, orderID)
	if err != nil {
		switch {
		case stderrors.Is(err, service.ErrOrderNotFound):
			errors.NotFound(c, errors.OrderNotFound, "Order not found")
		case stderrors.Is(err, phonepe.ErrGatewayUnreachable):
			errors.RespondWithError(c, http.StatusBadGateway, errors.PaymentFailed, "Could not reach the payment service")
		default:
			log.Error("Payment confirmation failed", err, map[string]interface{}{
				"order_id": orderID,
			})
			errors.InternalError(c, "")
		}
		return
	}

	c.JSON(http.StatusOK, order)
}

// CancelPayment marks an abandoned payment as cancelled.
// POST /api/v1/payments/orders/:id/cancel
func (ctrl *PaymentController) CancelPayment(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	userID, ok := middleware.GetUserID(c)
	if !ok {
		errors.Unauthorized(c, "")
		return
	}

	orderID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	order, err := ctrl.paymentService.CancelPayment(userID, orderID)
	if err != nil {
		switch {
		case stderrors.Is(err, service.ErrOrderNotFound):
			errors.NotFound(c, errors.OrderNotFound, "Order not found")
		case stderrors.Is(err, service.ErrPaymentAlreadySettled):
			errors.Conflict(c, errors.PaymentAlreadySettled, "This payment has already been settled")
		default:
			log.Error("Payment cancellation failed", err, map[string]interface{}{
				"order_id": orderID,
			})
			errors.InternalError(c, "")
		}
		return
	}

	c.JSON(http.StatusOK, order)
}
