package controller

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"time"

	"github.com/aabhushan/aabhushan-backend/internal/app/model"
	"github.com/aabhushan/aabhushan-backend/internal/app/repository"
	"github.com/aabhushan/aabhushan-backend/internal/app/service"
	"github.com/aabhushan/aabhushan-backend/internal/errors"
	"github.com/aabhushan/aabhushan-backend/internal/middleware"
	"github.com/gin-gonic/gin"
)

type OrderController struct {
	orderService *service.OrderService
}

func NewOrderController(orderService *service.OrderService) *OrderController {
	return &OrderController{orderService: orderService}
}

type updateOrderStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// ListMyOrders returns the caller's order history.
// GET /api/v1/orders
func (ctrl *OrderController) ListMyOrders(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	userID, ok := middleware.GetUserID(c)
	if !ok {
		errors.Unauthorized(c, "")
		return
	}

	orders, err := ctrl.orderService.ListUserOrders(userID)
	if err != nil {
		log.Error("Failed to list orders", err, map[string]interface{}{
			"user_id": userID,
		})
		errors.InternalError(c, "Could not load your orders")
		return
	}

	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

// GetOrder returns one of the caller's orders.
// GET /api/v1/orders/:id
func (ctrl *OrderController) GetOrder(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		errors.Unauthorized(c, "")
		return
	}

	orderID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	order, err := ctrl.orderService.GetOrder(userID, orderID)
	if err != nil {
		if stderrors.Is(err, service.ErrOrderNotFound) {
			errors.NotFound(c, errors.OrderNotFound, "Order not found")
			return
		}
		errors.InternalError(c, "")
		return
	}

	c.JSON(http.StatusOK, order)
}

// CancelOrder cancels the caller's own pending unpaid order.
// POST /api/v1/orders/:id/cancel
func (ctrl *OrderController) CancelOrder(c *gin.Context) {
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

	order, err := ctrl.orderService.CancelOrder(userID, orderID)
	if err != nil {
		switch {
		case stderrors.Is(err, service.ErrOrderNotFound):
			errors.NotFound(c, errors.OrderNotFound, "Order not found")
		case stderrors.Is(err, service.ErrOrderNotCancellable):
			errors.Conflict(c, errors.OrderInvalidStatus, "This order can no longer be cancelled")
		default:
			log.Error("Failed to cancel order", err, map[string]interface{}{
				"order_id": orderID,
			})
			errors.InternalError(c, "")
		}
		return
	}

	c.JSON(http.StatusOK, order)
}

// ListOrders is the admin order list with filters.
// GET /api/v1/admin/orders
func (ctrl *OrderController) ListOrders(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	filter := buildOrderFilter(c)
	orders, total, err := ctrl.orderService.ListOrders(filter)
	if err != nil {
		log.Error("Failed to list orders", err, nil)
		errors.InternalError(c, "")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"orders": orders,
		"total":  total,
	})
}

// GetOrderAdmin returns any order (admin).
// GET /api/v1/admin/orders/:id
func (ctrl *OrderController) GetOrderAdmin(c *gin.Context) {
	orderID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	order, err := ctrl.orderService.GetOrderAdmin(orderID)
	if err != nil {
		if stderrors.Is(err, service.ErrOrderNotFound) {
			errors.NotFound(c, errors.OrderNotFound, "Order not found")
			return
		}
		errors.InternalError(c, "")
		return
	}

	c.JSON(http.StatusOK, order)
}

// UpdateOrderStatus moves an order along its fulfilment path (admin).
// PATCH /api/v1/admin/orders/:id/status
func (ctrl *OrderController) UpdateOrderStatus(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	orderID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req updateOrderStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errors.BadRequest(c, errors.ValidationInvalidInput, "status is required")
		return
	}

	order, err := ctrl.orderService.UpdateOrderStatus(orderID, model.OrderStatus(req.Status))
	if err != nil {
		switch {
		case stderrors.Is(err, service.ErrOrderNotFound):
			errors.NotFound(c, errors.OrderNotFound, "Order not found")
		case stderrors.Is(err, service.ErrInvalidStatusChange):
			errors.Conflict(c, errors.OrderInvalidStatus, "That status change is not allowed")
		default:
			log.Error("Failed to update order status", err, map[string]interface{}{
				"order_id": orderID,
			})
			errors.InternalError(c, "")
		}
		return
	}

	c.JSON(http.StatusOK, order)
}

// ExportOrders streams the filtered order list as a spreadsheet (admin).
// GET /api/v1/admin/orders/export
func (ctrl *OrderController) ExportOrders(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	f, err := ctrl.orderService.ExportOrders(buildOrderFilter(c))
	if err != nil {
		log.Error("Failed to export orders", err, nil)
		errors.InternalError(c, "Could not generate the export")
		return
	}

	filename := fmt.Sprintf("orders_%s.xlsx", time.Now().Format("20060102_150405"))
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")

	if err := f.Write(c.Writer); err != nil {
		log.Error("Failed to stream order export", err, nil)
	}
}

func buildOrderFilter(c *gin.Context) repository.OrderFilter {
	filter := repository.OrderFilter{
		Page:     parseIntQuery(c, "page", 1),
		PageSize: parseIntQuery(c, "page_size", 20),
	}
	if status := c.Query("status"); status != "" {
		s := model.OrderStatus(status)
		filter.Status = &s
	}
	if paymentStatus := c.Query("payment_status"); paymentStatus != "" {
		p := model.PaymentStatus(paymentStatus)
		filter.PaymentStatus = &p
	}
	if from, err := time.Parse("2006-01-02", c.Query("from")); err == nil {
		filter.From = &from
	}
	if to, err := time.Parse("2006-01-02", c.Query("to")); err == nil {
		end := to.Add(24*time.Hour - time.Second)
		filter.To = &end
	}
	return filter
}
