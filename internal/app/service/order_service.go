package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/aabhushan/aabhushan-backend/internal/app/model"
	"github.com/aabhushan/aabhushan-backend/internal/app/repository"
	"github.com/aabhushan/aabhushan-backend/pkg/logger"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrOrderNotFound         = errors.New("order not found")
	ErrAddressNotFound       = errors.New("address not found")
	ErrInvalidStatusChange   = errors.New("invalid order status change")
	ErrOrderNotCancellable   = errors.New("order can no longer be cancelled")
	ErrPaymentAlreadySettled = errors.New("payment already settled")
)

// OrderNotifier receives order lifecycle events, used to push live updates
// to the admin dashboard. A nil notifier disables the feed.
type OrderNotifier interface {
	NotifyOrderCreated(order *model.Order)
	NotifyOrderUpdated(order *model.Order)
}

// OrderService turns a validated cart into an order inside one
// transaction: stock is decremented with row locks so two checkouts cannot
// both take the last unit.
type OrderService struct {
	db          *gorm.DB
	orderRepo   repository.OrderRepository
	addressRepo repository.AddressRepository
	cartService *CartService
	notifier    OrderNotifier
}

func NewOrderService(
	db *gorm.DB,
	orderRepo repository.OrderRepository,
	addressRepo repository.AddressRepository,
	cartService *CartService,
	notifier OrderNotifier,
) *OrderService {
	return &OrderService{
		db:          db,
		orderRepo:   orderRepo,
		addressRepo: addressRepo,
		cartService: cartService,
		notifier:    notifier,
	}
}

// CreateOrderFromCart checks the cart against stock, snapshots prices and
// the shipping address, decrements stock and empties the cart, all in one
// transaction.
func (s *OrderService) CreateOrderFromCart(userID, addressID uint) (*model.Order, error) {
	logger.Info("Creating order from cart", map[string]interface{}{
		"user_id":    userID,
		"address_id": addressID,
	})

	if err := s.cartService.ValidateCheckout(userID); err != nil {
		return nil, err
	}

	address, err := s.addressRepo.FindByID(addressID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAddressNotFound
		}
		return nil, err
	}
	if address.UserID != userID {
		return nil, ErrAddressNotFound
	}

	var orderID uint
	err = s.db.Transaction(func(tx *gorm.DB) error {
		var cart model.Cart
		if err := tx.Where("user_id = ?", userID).First(&cart).Error; err != nil {
			return err
		}

		var items []model.CartItem
		if err := tx.Where("cart_id = ?", cart.ID).Order("id").Find(&items).Error; err != nil {
			return err
		}
		if len(items) == 0 {
			return ErrCartEmpty
		}

		quantities := make(map[uint]int)
		productOrder := make([]uint, 0, len(items))
		for _, item := range items {
			if _, seen := quantities[item.ProductID]; !seen {
				productOrder = append(productOrder, item.ProductID)
			}
			quantities[item.ProductID] += item.Quantity
		}

		query := tx.Where("id IN ?", productOrder)
		// SQLite, used in tests, has no row locks.
		if tx.Dialector.Name() == "postgres" {
			query = query.Clauses(clause.Locking{Strength: "UPDATE"})
		}
		var products []model.Product
		if err := query.Find(&products).Error; err != nil {
			return err
		}
		byID := make(map[uint]*model.Product, len(products))
		for i := range products {
			byID[products[i].ID] = &products[i]
		}

		total := 0.0
		orderItems := make([]model.OrderItem, 0, len(productOrder))
		for _, productID := range productOrder {
			product, ok := byID[productID]
			if !ok {
				return &CheckoutBlockedError{Violations: []StockViolation{{
					ProductID:   productID,
					ProductName: fmt.Sprintf("product #%d", productID),
					Requested:   quantities[productID],
					Available:   0,
				}}}
			}

			qty := quantities[productID]
			result := tx.Model(&model.Product{}).
				Where("id = ? AND stock_quantity >= ?", productID, qty).
				Update("stock_quantity", gorm.Expr("stock_quantity - ?", qty))
			if result.Error != nil {
				return result.Error
			}
			if result.RowsAffected == 0 {
				return &CheckoutBlockedError{Violations: []StockViolation{{
					ProductID:   productID,
					ProductName: product.Name,
					Requested:   qty,
					Available:   product.StockQuantity,
				}}}
			}

			total += product.Price * float64(qty)
			orderItems = append(orderItems, model.OrderItem{
				ProductID: productID,
				Quantity:  qty,
				Price:     product.Price,
			})
		}

		order := model.Order{
			UserID:          userID,
			TotalAmount:     total,
			Status:          model.OrderStatusPending,
			PaymentStatus:   model.PaymentStatusPending,
			AddressID:       &address.ID,
			ShippingAddress: formatShippingAddress(address),
			OrderItems:      orderItems,
		}
		if err := tx.Create(&order).Error; err != nil {
			return err
		}
		orderID = order.ID

		return tx.Where("cart_id = ?", cart.ID).Delete(&model.CartItem{}).Error
	})
	if err != nil {
		logger.Error("Order creation failed", err, map[string]interface{}{
			"user_id": userID,
		})
		return nil, err
	}

	order, err := s.orderRepo.FindByID(orderID)
	if err != nil {
		return nil, err
	}

	logger.Info("Order created", map[string]interface{}{
		"order_id":     order.ID,
		"user_id":      userID,
		"total_amount": order.TotalAmount,
	})
	if s.notifier != nil {
		s.notifier.NotifyOrderCreated(order)
	}
	return order, nil
}

// GetOrder returns the order only to its owner.
func (s *OrderService) GetOrder(userID, orderID uint) (*model.Order, error) {
	order, err := s.orderRepo.FindByID(orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	if order.UserID != userID {
		return nil, ErrOrderNotFound
	}
	return order, nil
}

func (s *OrderService) ListUserOrders(userID uint) ([]model.Order, error) {
	return s.orderRepo.FindByUserID(userID)
}

// ListOrders is the admin view across all users.
func (s *OrderService) ListOrders(filter repository.OrderFilter) ([]model.Order, int64, error) {
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 || filter.PageSize > 100 {
		filter.PageSize = 20
	}
	return s.orderRepo.FindAll(filter)
}

// GetOrderAdmin skips the ownership check.
func (s *OrderService) GetOrderAdmin(orderID uint) (*model.Order, error) {
	order, err := s.orderRepo.FindByID(orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	return order, nil
}

var allowedStatusChanges = map[model.OrderStatus][]model.OrderStatus{
	model.OrderStatusPending:   {model.OrderStatusConfirmed, model.OrderStatusCancelled},
	model.OrderStatusConfirmed: {model.OrderStatusShipping, model.OrderStatusCancelled},
	model.OrderStatusShipping:  {model.OrderStatusDelivered},
}

// UpdateOrderStatus applies an admin status change along the allowed
// pending -> confirmed -> shipping -> delivered path.
func (s *OrderService) UpdateOrderStatus(orderID uint, status model.OrderStatus) (*model.Order, error) {
	order, err := s.GetOrderAdmin(orderID)
	if err != nil {
		return nil, err
	}

	allowed := false
	for _, next := range allowedStatusChanges[order.Status] {
		if next == status {
			allowed = true
			break
		}
	}
	if !allowed {
		logger.Warn("Rejected order status change", map[string]interface{}{
			"order_id": orderID,
			"from":     order.Status,
			"to":       status,
		})
		return nil, ErrInvalidStatusChange
	}

	if err := s.orderRepo.UpdateStatus(orderID, status); err != nil {
		return nil, err
	}

	order.Status = status
	logger.Info("Order status updated", map[string]interface{}{
		"order_id": orderID,
		"status":   status,
	})
	if s.notifier != nil {
		s.notifier.NotifyOrderUpdated(order)
	}
	return order, nil
}

// CancelOrder lets a customer cancel their own order while it is still
// pending and unpaid. Reserved stock goes back on the shelf.
func (s *OrderService) CancelOrder(userID, orderID uint) (*model.Order, error) {
	order, err := s.GetOrder(userID, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status != model.OrderStatusPending || order.PaymentStatus != model.PaymentStatusPending {
		return nil, ErrOrderNotCancellable
	}

	if err := s.cancelAndRestock(order, model.PaymentStatusCancelled); err != nil {
		return nil, err
	}

	logger.Info("Order cancelled by customer", map[string]interface{}{
		"order_id": orderID,
		"user_id":  userID,
	})
	if s.notifier != nil {
		s.notifier.NotifyOrderUpdated(order)
	}
	return order, nil
}

// HandlePaymentSuccess settles a completed payment: the order is confirmed
// and the gateway transaction recorded. Settling twice is rejected.
func (s *OrderService) HandlePaymentSuccess(merchantTxnID, gatewayTxnID string) (*model.Order, error) {
	order, err := s.orderRepo.FindByPaymentTxnID(merchantTxnID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	if order.PaymentStatus != model.PaymentStatusPending {
		return nil, ErrPaymentAlreadySettled
	}

	now := time.Now()
	order.PaymentStatus = model.PaymentStatusCompleted
	order.PaymentApprovedAt = &now
	order.Status = model.OrderStatusConfirmed

	if err := s.orderRepo.Update(order); err != nil {
		return nil, err
	}

	logger.Info("Payment settled", map[string]interface{}{
		"order_id":        order.ID,
		"merchant_txn_id": merchantTxnID,
		"gateway_txn_id":  gatewayTxnID,
	})
	if s.notifier != nil {
		s.notifier.NotifyOrderUpdated(order)
	}
	return order, nil
}

// HandlePaymentFailure records a cancelled or failed payment, cancels the
// order and releases its stock.
func (s *OrderService) HandlePaymentFailure(merchantTxnID string, paymentStatus model.PaymentStatus) (*model.Order, error) {
	order, err := s.orderRepo.FindByPaymentTxnID(merchantTxnID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	if order.PaymentStatus != model.PaymentStatusPending {
		return nil, ErrPaymentAlreadySettled
	}

	if err := s.cancelAndRestock(order, paymentStatus); err != nil {
		return nil, err
	}

	logger.Info("Payment failed, order cancelled", map[string]interface{}{
		"order_id":        order.ID,
		"merchant_txn_id": merchantTxnID,
		"payment_status":  paymentStatus,
	})
	if s.notifier != nil {
		s.notifier.NotifyOrderUpdated(order)
	}
	return order, nil
}

// CancelExpiredPayments cancels orders that sat unpaid longer than maxAge
// and releases their stock. Returns how many were cancelled.
func (s *OrderService) CancelExpiredPayments(maxAge time.Duration) (int, error) {
	cutoff := time.Now().Add(-maxAge)
	orders, err := s.orderRepo.FindExpiredPending(cutoff)
	if err != nil {
		return 0, err
	}

	cancelled := 0
	for i := range orders {
		order := &orders[i]
		if order.Status != model.OrderStatusPending {
			continue
		}
		if err := s.cancelAndRestock(order, model.PaymentStatusCancelled); err != nil {
			logger.Error("Failed to cancel expired order", err, map[string]interface{}{
				"order_id": order.ID,
			})
			continue
		}
		cancelled++
		if s.notifier != nil {
			s.notifier.NotifyOrderUpdated(order)
		}
	}

	if cancelled > 0 {
		logger.Info("Expired unpaid orders cancelled", map[string]interface{}{
			"count": cancelled,
		})
	}
	return cancelled, nil
}

// cancelAndRestock flips the order to cancelled and returns its reserved
// units to stock in one transaction.
func (s *OrderService) cancelAndRestock(order *model.Order, paymentStatus model.PaymentStatus) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		for _, item := range order.OrderItems {
			err := tx.Model(&model.Product{}).
				Where("id = ?", item.ProductID).
				Update("stock_quantity", gorm.Expr("stock_quantity + ?", item.Quantity)).Error
			if err != nil {
				return err
			}
		}

		order.Status = model.OrderStatusCancelled
		order.PaymentStatus = paymentStatus
		return tx.Model(&model.Order{}).Where("id = ?", order.ID).Updates(map[string]interface{}{
			"status":         order.Status,
			"payment_status": order.PaymentStatus,
		}).Error
	})
}

// AttachPaymentTxn records the merchant transaction ID and provider when a
// payment session is opened for the order.
func (s *OrderService) AttachPaymentTxn(orderID uint, provider, merchantTxnID string) error {
	order, err := s.GetOrderAdmin(orderID)
	if err != nil {
		return err
	}
	order.PaymentProvider = provider
	order.PaymentTxnID = merchantTxnID
	return s.orderRepo.Update(order)
}

// ExportOrders renders the filtered order list as a spreadsheet for the
// back office.
func (s *OrderService) ExportOrders(filter repository.OrderFilter) (*excelize.File, error) {
	filter.Page = 0
	filter.PageSize = 0
	orders, _, err := s.orderRepo.FindAll(filter)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	sheet := "Orders"
	f.SetSheetName("Sheet1", sheet)

	headers := []string{"Order ID", "Customer Phone", "Total Amount", "Status", "Payment Status", "Payment Txn", "Items", "Created At"}
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheet, cell, header)
	}

	for row, order := range orders {
		itemCount := 0
		for _, item := range order.OrderItems {
			itemCount += item.Quantity
		}
		values := []interface{}{
			order.ID,
			order.User.Phone,
			order.TotalAmount,
			string(order.Status),
			string(order.PaymentStatus),
			order.PaymentTxnID,
			itemCount,
			order.CreatedAt.Format("2006-01-02 15:04:05"),
		}
		for col, value := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			f.SetCellValue(sheet, cell, value)
		}
	}

	logger.Info("Order export generated", map[string]interface{}{
		"rows": len(orders),
	})
	return f, nil
}

func formatShippingAddress(address *model.Address) string {
	line := address.Name + ", " + address.Phone + ", " + address.Line1
	if address.Line2 != "" {
		line += ", " + address.Line2
	}
	return fmt.Sprintf("%s, %s, %s - %s", line, address.City, address.State, address.Pincode)
}
