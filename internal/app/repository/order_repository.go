package repository

import (
	"time"

	"github.com/aabhushan/aabhushan-backend/internal/app/model"
	"github.com/aabhushan/aabhushan-backend/pkg/logger"
	"gorm.io/gorm"
)

// OrderFilter holds the admin list query parameters.
type OrderFilter struct {
	Status        *model.OrderStatus
	PaymentStatus *model.PaymentStatus
	From          *time.Time
	To            *time.Time
	Page          int
	PageSize      int
}

type OrderRepository interface {
	FindByID(id uint) (*model.Order, error)
	FindByUserID(userID uint) ([]model.Order, error)
	FindByPaymentTxnID(txnID string) (*model.Order, error)
	FindAll(filter OrderFilter) ([]model.Order, int64, error)
	FindExpiredPending(cutoff time.Time) ([]model.Order, error)
	Update(order *model.Order) error
	UpdateStatus(id uint, status model.OrderStatus) error
}

type orderRepository struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &orderRepository{db: db}
}

func (r *orderRepository) FindByID(id uint) (*model.Order, error) {
	var order model.Order
	err := r.db.
		Preload("OrderItems").
		Preload("OrderItems.Product").
		Preload("Address").
		First(&order, id).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *orderRepository) FindByUserID(userID uint) ([]model.Order, error) {
	var orders []model.Order
	err := r.db.
		Where("user_id = ?", userID).
		Preload("OrderItems").
		Preload("OrderItems.Product").
		Order("created_at DESC").
		Find(&orders).Error
	if err != nil {
		logger.Error("Failed to list orders by user in database", err, map[string]interface{}{
			"user_id": userID,
		})
		return nil, err
	}
	return orders, nil
}

func (r *orderRepository) FindByPaymentTxnID(txnID string) (*model.Order, error) {
	var order model.Order
	err := r.db.
		Where("payment_txn_id = ?", txnID).
		Preload("OrderItems").
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *orderRepository) FindAll(filter OrderFilter) ([]model.Order, int64, error) {
	query := r.db.Model(&model.Order{})

	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.PaymentStatus != nil {
		query = query.Where("payment_status = ?", *filter.PaymentStatus)
	}
	if filter.From != nil {
		query = query.Where("created_at >= ?", *filter.From)
	}
	if filter.To != nil {
		query = query.Where("created_at <= ?", *filter.To)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		logger.Error("Failed to count orders in database", err)
		return nil, 0, err
	}

	if filter.Page > 0 && filter.PageSize > 0 {
		offset := (filter.Page - 1) * filter.PageSize
		query = query.Offset(offset).Limit(filter.PageSize)
	}

	var orders []model.Order
	err := query.
		Preload("User").
		Preload("OrderItems").
		Preload("OrderItems.Product").
		Order("created_at DESC").
		Find(&orders).Error
	if err != nil {
		logger.Error("Failed to list orders in database", err)
		return nil, 0, err
	}

	return orders, total, nil
}

// FindExpiredPending returns orders still awaiting payment whose creation
// time is before the cutoff. The expiry job cancels these.
func (r *orderRepository) FindExpiredPending(cutoff time.Time) ([]model.Order, error) {
	var orders []model.Order
	err := r.db.
		Where("payment_status = ? AND created_at < ?", model.PaymentStatusPending, cutoff).
		Preload("OrderItems").
		Find(&orders).Error
	if err != nil {
		logger.Error("Failed to find expired pending orders in database", err)
		return nil, err
	}
	return orders, nil
}

func (r *orderRepository) Update(order *model.Order) error {
	logger.Debug("Updating order in database", map[string]interface{}{
		"order_id":       order.ID,
		"status":         order.Status,
		"payment_status": order.PaymentStatus,
	})

	if err := r.db.Save(order).Error; err != nil {
		logger.Error("Failed to update order in database", err, map[string]interface{}{
			"order_id": order.ID,
		})
		return err
	}
	return nil
}

func (r *orderRepository) UpdateStatus(id uint, status model.OrderStatus) error {
	logger.Debug("Updating order status in database", map[string]interface{}{
		"order_id": id,
		"status":   status,
	})

	err := r.db.Model(&model.Order{}).Where("id = ?", id).Update("status", status).Error
	if err != nil {
		logger.Error("Failed to update order status in database", err, map[string]interface{}{
			"order_id": id,
		})
		return err
	}
	return nil
}
