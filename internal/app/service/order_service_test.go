package service

import (
	"testing"
	"time"

	"github.com/aabhushan/aabhushan-backend/internal/app/model"
	"github.com/aabhushan/aabhushan-backend/internal/app/repository"
	"github.com/aabhushan/aabhushan-backend/internal/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupOrderServiceTest(t *testing.T) (*OrderService, *CartService, *gorm.DB) {
	t.Helper()

	testDB, err := db.SetupTestDB()
	require.NoError(t, err)
	t.Cleanup(func() { db.CleanupTestDB(testDB) })

	cartService := NewCartService(
		repository.NewCartRepository(testDB),
		repository.NewProductRepository(testDB),
		repository.NewMemoryGuestCartStore(),
	)
	orderService := NewOrderService(
		testDB,
		repository.NewOrderRepository(testDB),
		repository.NewAddressRepository(testDB),
		cartService,
		nil,
	)
	return orderService, cartService, testDB
}

func createTestAddress(t *testing.T, testDB *gorm.DB, userID uint) *model.Address {
	t.Helper()

	address := &model.Address{
		UserID:  userID,
		Name:    "Asha Devi",
		Phone:   "9876543210",
		Line1:   "12 MG Road",
		City:    "Jaipur",
		State:   "Rajasthan",
		Pincode: "302001",
	}
	require.NoError(t, testDB.Create(address).Error)
	return address
}

func currentStock(t *testing.T, testDB *gorm.DB, productID uint) int {
	t.Helper()

	var product model.Product
	require.NoError(t, testDB.First(&product, productID).Error)
	return product.StockQuantity
}

func TestOrderService_CreateOrderFromCart(t *testing.T) {
	t.Run("creates the order with snapshots and empties the cart", func(t *testing.T) {
		orderService, cartService, testDB := setupOrderServiceTest(t)
		user := createTestUser(t, testDB, "9876520001")
		address := createTestAddress(t, testDB, user.ID)
		product := createTestProduct(t, testDB, "Kundan Set", 5)

		for i := 0; i < 2; i++ {
			_, err := cartService.IncreaseQuantity(user.ID, product.ID)
			require.NoError(t, err)
		}

		order, err := orderService.CreateOrderFromCart(user.ID, address.ID)
		require.NoError(t, err)
		assert.Equal(t, model.OrderStatusPending, order.Status)
		assert.Equal(t, model.PaymentStatusPending, order.PaymentStatus)
		assert.Equal(t, 5000.0, order.TotalAmount)
		require.Len(t, order.OrderItems, 1)
		assert.Equal(t, 2, order.OrderItems[0].Quantity)
		assert.Equal(t, 2500.0, order.OrderItems[0].Price)
		assert.Contains(t, order.ShippingAddress, "12 MG Road")
		assert.Contains(t, order.ShippingAddress, "302001")

		assert.Equal(t, 3, currentStock(t, testDB, product.ID))

		summary, err := cartService.GetCart(user.ID)
		require.NoError(t, err)
		assert.Empty(t, summary.Items)
	})

	t.Run("later price changes do not alter the snapshot", func(t *testing.T) {
		orderService, cartService, testDB := setupOrderServiceTest(t)
		user := createTestUser(t, testDB, "9876520002")
		address := createTestAddress(t, testDB, user.ID)
		product := createTestProduct(t, testDB, "Polki Ring", 5)

		_, err := cartService.IncreaseQuantity(user.ID, product.ID)
		require.NoError(t, err)

		order, err := orderService.CreateOrderFromCart(user.ID, address.ID)
		require.NoError(t, err)

		require.NoError(t, testDB.Model(&model.Product{}).
			Where("id = ?", product.ID).
			Update("price", 9999).Error)

		reloaded, err := orderService.GetOrder(user.ID, order.ID)
		require.NoError(t, err)
		assert.Equal(t, 2500.0, reloaded.OrderItems[0].Price)
	})

	t.Run("empty cart cannot check out", func(t *testing.T) {
		orderService, _, testDB := setupOrderServiceTest(t)
		user := createTestUser(t, testDB, "9876520003")
		address := createTestAddress(t, testDB, user.ID)

		_, err := orderService.CreateOrderFromCart(user.ID, address.ID)
		assert.ErrorIs(t, err, ErrCartEmpty)
	})

	t.Run("stock drop after carting blocks and leaves everything intact", func(t *testing.T) {
		orderService, cartService, testDB := setupOrderServiceTest(t)
		user := createTestUser(t, testDB, "9876520004")
		address := createTestAddress(t, testDB, user.ID)
		product := createTestProduct(t, testDB, "Meenakari Pendant", 3)

		for i := 0; i < 3; i++ {
			_, err := cartService.IncreaseQuantity(user.ID, product.ID)
			require.NoError(t, err)
		}
		require.NoError(t, testDB.Model(&model.Product{}).
			Where("id = ?", product.ID).
			Update("stock_quantity", 1).Error)

		_, err := orderService.CreateOrderFromCart(user.ID, address.ID)
		assert.ErrorIs(t, err, ErrCheckoutBlocked)

		// Nothing was taken and the cart survives.
		assert.Equal(t, 1, currentStock(t, testDB, product.ID))
		summary, err := cartService.GetCart(user.ID)
		require.NoError(t, err)
		assert.Equal(t, 3, summary.TotalItems)
	})

	t.Run("another user's address is rejected", func(t *testing.T) {
		orderService, cartService, testDB := setupOrderServiceTest(t)
		user := createTestUser(t, testDB, "9876520005")
		other := createTestUser(t, testDB, "9876520006")
		otherAddress := createTestAddress(t, testDB, other.ID)
		product := createTestProduct(t, testDB, "Jhumka", 5)

		_, err := cartService.IncreaseQuantity(user.ID, product.ID)
		require.NoError(t, err)

		_, err = orderService.CreateOrderFromCart(user.ID, otherAddress.ID)
		assert.ErrorIs(t, err, ErrAddressNotFound)
	})
}

func TestOrderService_StatusChanges(t *testing.T) {
	orderService, cartService, testDB := setupOrderServiceTest(t)
	user := createTestUser(t, testDB, "9876520007")
	address := createTestAddress(t, testDB, user.ID)
	product := createTestProduct(t, testDB, "Bangle Pair", 5)

	_, err := cartService.IncreaseQuantity(user.ID, product.ID)
	require.NoError(t, err)
	order, err := orderService.CreateOrderFromCart(user.ID, address.ID)
	require.NoError(t, err)

	t.Run("pending to shipping is rejected", func(t *testing.T) {
		_, err := orderService.UpdateOrderStatus(order.ID, model.OrderStatusShipping)
		assert.ErrorIs(t, err, ErrInvalidStatusChange)
	})

	t.Run("walks the allowed path", func(t *testing.T) {
		for _, status := range []model.OrderStatus{
			model.OrderStatusConfirmed,
			model.OrderStatusShipping,
			model.OrderStatusDelivered,
		} {
			updated, err := orderService.UpdateOrderStatus(order.ID, status)
			require.NoError(t, err)
			assert.Equal(t, status, updated.Status)
		}
	})

	t.Run("delivered is terminal", func(t *testing.T) {
		_, err := orderService.UpdateOrderStatus(order.ID, model.OrderStatusCancelled)
		assert.ErrorIs(t, err, ErrInvalidStatusChange)
	})
}

func TestOrderService_CancelOrder(t *testing.T) {
	orderService, cartService, testDB := setupOrderServiceTest(t)
	user := createTestUser(t, testDB, "9876520008")
	address := createTestAddress(t, testDB, user.ID)
	product := createTestProduct(t, testDB, "Chandbali", 5)

	for i := 0; i < 2; i++ {
		_, err := cartService.IncreaseQuantity(user.ID, product.ID)
		require.NoError(t, err)
	}
	order, err := orderService.CreateOrderFromCart(user.ID, address.ID)
	require.NoError(t, err)
	require.Equal(t, 3, currentStock(t, testDB, product.ID))

	t.Run("cancelling a pending order restores stock", func(t *testing.T) {
		cancelled, err := orderService.CancelOrder(user.ID, order.ID)
		require.NoError(t, err)
		assert.Equal(t, model.OrderStatusCancelled, cancelled.Status)
		assert.Equal(t, model.PaymentStatusCancelled, cancelled.PaymentStatus)
		assert.Equal(t, 5, currentStock(t, testDB, product.ID))
	})

	t.Run("cancelled order cannot be cancelled again", func(t *testing.T) {
		_, err := orderService.CancelOrder(user.ID, order.ID)
		assert.ErrorIs(t, err, ErrOrderNotCancellable)
	})
}

func TestOrderService_PaymentTransitions(t *testing.T) {
	t.Run("success confirms the order once", func(t *testing.T) {
		orderService, cartService, testDB := setupOrderServiceTest(t)
		user := createTestUser(t, testDB, "9876520009")
		address := createTestAddress(t, testDB, user.ID)
		product := createTestProduct(t, testDB, "Mangalsutra", 5)

		_, err := cartService.IncreaseQuantity(user.ID, product.ID)
		require.NoError(t, err)
		order, err := orderService.CreateOrderFromCart(user.ID, address.ID)
		require.NoError(t, err)
		require.NoError(t, orderService.AttachPaymentTxn(order.ID, "phonepe", "TXNPAY1"))

		settled, err := orderService.HandlePaymentSuccess("TXNPAY1", "GW1")
		require.NoError(t, err)
		assert.Equal(t, model.PaymentStatusCompleted, settled.PaymentStatus)
		assert.Equal(t, model.OrderStatusConfirmed, settled.Status)
		assert.NotNil(t, settled.PaymentApprovedAt)

		_, err = orderService.HandlePaymentSuccess("TXNPAY1", "GW1")
		assert.ErrorIs(t, err, ErrPaymentAlreadySettled)
	})

	t.Run("failure cancels the order and restores stock", func(t *testing.T) {
		orderService, cartService, testDB := setupOrderServiceTest(t)
		user := createTestUser(t, testDB, "9876520010")
		address := createTestAddress(t, testDB, user.ID)
		product := createTestProduct(t, testDB, "Payal", 4)

		_, err := cartService.IncreaseQuantity(user.ID, product.ID)
		require.NoError(t, err)
		order, err := orderService.CreateOrderFromCart(user.ID, address.ID)
		require.NoError(t, err)
		require.Equal(t, 3, currentStock(t, testDB, product.ID))
		require.NoError(t, orderService.AttachPaymentTxn(order.ID, "phonepe", "TXNPAY2"))

		failed, err := orderService.HandlePaymentFailure("TXNPAY2", model.PaymentStatusCancelled)
		require.NoError(t, err)
		assert.Equal(t, model.OrderStatusCancelled, failed.Status)
		assert.Equal(t, model.PaymentStatusCancelled, failed.PaymentStatus)
		assert.Equal(t, 4, currentStock(t, testDB, product.ID))
	})

	t.Run("unknown transaction", func(t *testing.T) {
		orderService, _, _ := setupOrderServiceTest(t)

		_, err := orderService.HandlePaymentSuccess("NOPE", "GW")
		assert.ErrorIs(t, err, ErrOrderNotFound)
	})
}

func TestOrderService_CancelExpiredPayments(t *testing.T) {
	orderService, cartService, testDB := setupOrderServiceTest(t)
	user := createTestUser(t, testDB, "9876520011")
	address := createTestAddress(t, testDB, user.ID)
	product := createTestProduct(t, testDB, "Haar", 10)

	_, err := cartService.IncreaseQuantity(user.ID, product.ID)
	require.NoError(t, err)
	stale, err := orderService.CreateOrderFromCart(user.ID, address.ID)
	require.NoError(t, err)

	_, err = cartService.IncreaseQuantity(user.ID, product.ID)
	require.NoError(t, err)
	fresh, err := orderService.CreateOrderFromCart(user.ID, address.ID)
	require.NoError(t, err)

	// Age the first order past the cutoff.
	require.NoError(t, testDB.Model(&model.Order{}).
		Where("id = ?", stale.ID).
		Update("created_at", time.Now().Add(-2*time.Hour)).Error)

	cancelled, err := orderService.CancelExpiredPayments(30 * time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, cancelled)

	staleReloaded, err := orderService.GetOrder(user.ID, stale.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusCancelled, staleReloaded.Status)

	freshReloaded, err := orderService.GetOrder(user.ID, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusPending, freshReloaded.Status)

	// Only the stale order's unit came back.
	assert.Equal(t, 9, currentStock(t, testDB, product.ID))
}
