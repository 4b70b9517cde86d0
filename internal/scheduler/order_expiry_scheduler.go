package scheduler

import (
	"time"

	"github.com/robfig/cron/v3"

	"github.com/aabhushan/aabhushan-backend/internal/app/service"
	"github.com/aabhushan/aabhushan-backend/pkg/logger"
)

// paymentTimeout is how long a pending order may wait for its payment
// before the stock goes back on sale.
const paymentTimeout = 30 * time.Minute

// OrderExpiryScheduler sweeps orders whose payment never arrived.
type OrderExpiryScheduler struct {
	orderService *service.OrderService
	cron         *cron.Cron
}

func NewOrderExpiryScheduler(orderService *service.OrderService) *OrderExpiryScheduler {
	return &OrderExpiryScheduler{
		orderService: orderService,
		cron:         cron.New(),
	}
}

// Start schedules the sweep every ten minutes and runs one immediately
// to catch orders that expired while the server was down.
func (s *OrderExpiryScheduler) Start() error {
	if _, err := s.cron.AddFunc("*/10 * * * *", s.sweep); err != nil {
		return err
	}

	s.cron.Start()
	logger.Info("Order expiry scheduler started", map[string]interface{}{
		"interval": "10m",
		"timeout":  paymentTimeout.String(),
	})

	go s.sweep()
	return nil
}

// Stop waits for a running sweep to finish.
func (s *OrderExpiryScheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	logger.Info("Order expiry scheduler stopped", nil)
}

func (s *OrderExpiryScheduler) sweep() {
	cancelled, err := s.orderService.CancelExpiredPayments(paymentTimeout)
	if err != nil {
		logger.Error("Order expiry sweep failed", err, nil)
		return
	}
	if cancelled > 0 {
		logger.Info("Expired pending orders cancelled", map[string]interface{}{
			"count": cancelled,
		})
	}
}
