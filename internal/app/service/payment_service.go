package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/aabhushan/aabhushan-backend/internal/app/model"
	"github.com/aabhushan/aabhushan-backend/pkg/logger"
	"github.com/aabhushan/aabhushan-backend/pkg/payment/phonepe"
	"github.com/google/uuid"
)

const paymentProviderPhonePe = "phonepe"

// PaymentGateway is the slice of the PhonePe client the service needs,
// extracted so tests can stub the gateway.
type PaymentGateway interface {
	InitiatePayment(ctx context.Context, merchantTxnID string, userID uint, amountPaise int64) (*phonepe.PaymentSession, error)
	CheckStatus(ctx context.Context, merchantTxnID string) (*phonepe.StatusResult, error)
	VerifyCallback(encodedBody, xVerify string) (*phonepe.CallbackPayload, error)
}

// CheckoutResult is what the storefront needs to hand the customer to the
// gateway: the new order plus the redirect URL.
type CheckoutResult struct {
	Order       *model.Order `json:"order"`
	RedirectURL string       `json:"redirect_url"`
}

// PaymentService drives the redirect flow: create the order, open a
// gateway session, then settle the order from the callback or an explicit
// status check when the customer returns.
type PaymentService struct {
	gateway      PaymentGateway
	orderService *OrderService
}

func NewPaymentService(gateway PaymentGateway, orderService *OrderService) *PaymentService {
	return &PaymentService{
		gateway:      gateway,
		orderService: orderService,
	}
}

// Checkout converts the user's cart into an order and opens a payment
// session for it. The order stays pending until the gateway reports back;
// if the session cannot be opened the order is cancelled and stock
// released immediately.
func (s *PaymentService) Checkout(ctx context.Context, userID, addressID uint) (*CheckoutResult, error) {
	order, err := s.orderService.CreateOrderFromCart(userID, addressID)
	if err != nil {
		return nil, err
	}

	merchantTxnID := newMerchantTxnID(order.ID)
	if err := s.orderService.AttachPaymentTxn(order.ID, paymentProviderPhonePe, merchantTxnID); err != nil {
		return nil, err
	}

	amountPaise := int64(math.Round(order.TotalAmount * 100))
	session, err := s.gateway.InitiatePayment(ctx, merchantTxnID, userID, amountPaise)
	if err != nil {
		logger.Error("Failed to open payment session, cancelling order", err, map[string]interface{}{
			"order_id": order.ID,
		})
		if _, cancelErr := s.orderService.HandlePaymentFailure(merchantTxnID, model.PaymentStatusFailed); cancelErr != nil {
			logger.Error("Failed to cancel order after session failure", cancelErr, map[string]interface{}{
				"order_id": order.ID,
			})
		}
		return nil, err
	}

	order.PaymentProvider = paymentProviderPhonePe
	order.PaymentTxnID = merchantTxnID

	logger.Info("Payment session opened", map[string]interface{}{
		"order_id":        order.ID,
		"merchant_txn_id": merchantTxnID,
	})
	return &CheckoutResult{Order: order, RedirectURL: session.RedirectURL}, nil
}

// HandleCallback settles an order from the gateway's server-to-server
// callback. An invalid signature is rejected without touching any order.
func (s *PaymentService) HandleCallback(encodedBody, xVerify string) (*model.Order, error) {
	payload, err := s.gateway.VerifyCallback(encodedBody, xVerify)
	if err != nil {
		return nil, err
	}

	return s.applyState(
		payload.Data.MerchantTransactionID,
		payload.Data.TransactionID,
		phonepe.PaymentState(payload.Data.State),
	)
}

// ConfirmPayment re-checks the gateway when the customer lands back on the
// result page, covering the case where the callback was lost.
func (s *PaymentService) ConfirmPayment(ctx context.Context, userID uint, orderID uint) (*model.Order, error) {
	order, err := s.orderService.GetOrder(userID, orderID)
	if err != nil {
		return nil, err
	}
	if order.PaymentTxnID == "" {
		return nil, ErrOrderNotFound
	}
	if order.PaymentStatus != model.PaymentStatusPending {
		// Already settled by the callback; nothing to do.
		return order, nil
	}

	status, err := s.gateway.CheckStatus(ctx, order.PaymentTxnID)
	if err != nil {
		return nil, err
	}

	return s.applyState(order.PaymentTxnID, status.GatewayTransactionID, status.State)
}

func (s *PaymentService) applyState(merchantTxnID, gatewayTxnID string, state phonepe.PaymentState) (*model.Order, error) {
	switch state {
	case phonepe.StateCompleted:
		order, err := s.orderService.HandlePaymentSuccess(merchantTxnID, gatewayTxnID)
		if errors.Is(err, ErrPaymentAlreadySettled) {
			// Callback and status check raced; fetch the settled order.
			return s.settledOrder(merchantTxnID)
		}
		return order, err
	case phonepe.StateFailed:
		order, err := s.orderService.HandlePaymentFailure(merchantTxnID, failureStatus(state))
		if errors.Is(err, ErrPaymentAlreadySettled) {
			return s.settledOrder(merchantTxnID)
		}
		return order, err
	default:
		// Still pending at the gateway; leave the order as is.
		logger.Info("Payment still pending at gateway", map[string]interface{}{
			"merchant_txn_id": merchantTxnID,
		})
		return s.settledOrder(merchantTxnID)
	}
}

func (s *PaymentService) settledOrder(merchantTxnID string) (*model.Order, error) {
	order, err := s.orderService.orderRepo.FindByPaymentTxnID(merchantTxnID)
	if err != nil {
		return nil, ErrOrderNotFound
	}
	return order, nil
}

// failureStatus distinguishes a customer backing out from a hard failure.
func failureStatus(state phonepe.PaymentState) model.PaymentStatus {
	if state == phonepe.StateFailed {
		return model.PaymentStatusFailed
	}
	return model.PaymentStatusCancelled
}

// CancelPayment marks a payment the customer abandoned on the gateway page
// as cancelled and releases the order's stock.
func (s *PaymentService) CancelPayment(userID, orderID uint) (*model.Order, error) {
	order, err := s.orderService.GetOrder(userID, orderID)
	if err != nil {
		return nil, err
	}
	if order.PaymentTxnID == "" {
		return nil, ErrOrderNotFound
	}

	return s.orderService.HandlePaymentFailure(order.PaymentTxnID, model.PaymentStatusCancelled)
}

// newMerchantTxnID builds a gateway-safe transaction ID: uppercase, no
// hyphens, unique per attempt.
func newMerchantTxnID(orderID uint) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", ""))
	return fmt.Sprintf("ORD%d%s%s", orderID, time.Now().Format("20060102"), suffix[:12])
}
