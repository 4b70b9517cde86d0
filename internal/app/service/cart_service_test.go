package service

import (
	"context"
	"testing"

	"github.com/aabhushan/aabhushan-backend/internal/app/model"
	"github.com/aabhushan/aabhushan-backend/internal/app/repository"
	"github.com/aabhushan/aabhushan-backend/internal/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupCartServiceTest(t *testing.T) (*CartService, repository.GuestCartStore, *gorm.DB) {
	t.Helper()

	testDB, err := db.SetupTestDB()
	require.NoError(t, err)
	t.Cleanup(func() { db.CleanupTestDB(testDB) })

	guestStore := repository.NewMemoryGuestCartStore()
	svc := NewCartService(
		repository.NewCartRepository(testDB),
		repository.NewProductRepository(testDB),
		guestStore,
	)
	return svc, guestStore, testDB
}

func createTestUser(t *testing.T, testDB *gorm.DB, phone string) *model.User {
	t.Helper()

	user := &model.User{Phone: phone, Role: model.RoleUser}
	require.NoError(t, testDB.Create(user).Error)
	return user
}

func createTestProduct(t *testing.T, testDB *gorm.DB, name string, stock int) *model.Product {
	t.Helper()

	category := &model.Category{Name: "Category for " + name}
	require.NoError(t, testDB.Create(category).Error)

	product := &model.Product{
		Name:          name,
		Price:         2500,
		StockQuantity: stock,
		CategoryID:    category.ID,
	}
	require.NoError(t, testDB.Create(product).Error)
	return product
}

func TestCartService_IncreaseQuantity(t *testing.T) {
	svc, _, testDB := setupCartServiceTest(t)
	user := createTestUser(t, testDB, "9876510001")
	product := createTestProduct(t, testDB, "Gold Bangle", 3)

	t.Run("first increase creates a line with quantity one", func(t *testing.T) {
		summary, err := svc.IncreaseQuantity(user.ID, product.ID)
		require.NoError(t, err)
		require.Len(t, summary.Items, 1)
		assert.Equal(t, 1, summary.Items[0].Quantity)
		assert.Equal(t, 1, summary.TotalItems)
	})

	t.Run("second increase bumps the same line", func(t *testing.T) {
		summary, err := svc.IncreaseQuantity(user.ID, product.ID)
		require.NoError(t, err)
		require.Len(t, summary.Items, 1)
		assert.Equal(t, 2, summary.Items[0].Quantity)
		assert.Equal(t, 2, summary.TotalItems)
	})

	t.Run("increase at the stock ceiling is rejected", func(t *testing.T) {
		_, err := svc.IncreaseQuantity(user.ID, product.ID)
		require.NoError(t, err) // third unit, stock is 3

		_, err = svc.IncreaseQuantity(user.ID, product.ID)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrInsufficientStock)

		var stockErr *InsufficientStockError
		require.ErrorAs(t, err, &stockErr)
		assert.Equal(t, "Gold Bangle", stockErr.ProductName)
		assert.Equal(t, 3, stockErr.Available)
	})

	t.Run("ceiling uses a fresh product read", func(t *testing.T) {
		// Restock; the increase that just failed must now pass.
		require.NoError(t, testDB.Model(&model.Product{}).
			Where("id = ?", product.ID).
			Update("stock_quantity", 10).Error)

		summary, err := svc.IncreaseQuantity(user.ID, product.ID)
		require.NoError(t, err)
		assert.Equal(t, 4, summary.TotalItems)
	})

	t.Run("unknown product", func(t *testing.T) {
		_, err := svc.IncreaseQuantity(user.ID, 99999)
		assert.ErrorIs(t, err, ErrProductNotFound)
	})
}

func TestCartService_DecreaseQuantity(t *testing.T) {
	svc, _, testDB := setupCartServiceTest(t)
	user := createTestUser(t, testDB, "9876510002")
	product := createTestProduct(t, testDB, "Silver Anklet", 10)

	_, err := svc.IncreaseQuantity(user.ID, product.ID)
	require.NoError(t, err)
	_, err = svc.IncreaseQuantity(user.ID, product.ID)
	require.NoError(t, err)

	t.Run("decrease above one keeps the line", func(t *testing.T) {
		summary, err := svc.DecreaseQuantity(user.ID, product.ID)
		require.NoError(t, err)
		require.Len(t, summary.Items, 1)
		assert.Equal(t, 1, summary.Items[0].Quantity)
	})

	t.Run("decrease at one deletes the line", func(t *testing.T) {
		summary, err := svc.DecreaseQuantity(user.ID, product.ID)
		require.NoError(t, err)
		assert.Empty(t, summary.Items)
		assert.Equal(t, 0, summary.TotalItems)

		var count int64
		require.NoError(t, testDB.Model(&model.CartItem{}).
			Where("product_id = ?", product.ID).
			Count(&count).Error)
		assert.Zero(t, count)
	})

	t.Run("decrease of an absent product is a no-op", func(t *testing.T) {
		summary, err := svc.DecreaseQuantity(user.ID, product.ID)
		require.NoError(t, err)
		assert.Empty(t, summary.Items)
	})
}

func TestCartService_RemoveItem(t *testing.T) {
	svc, _, testDB := setupCartServiceTest(t)
	user := createTestUser(t, testDB, "9876510003")
	product := createTestProduct(t, testDB, "Pearl Necklace", 10)

	for i := 0; i < 3; i++ {
		_, err := svc.IncreaseQuantity(user.ID, product.ID)
		require.NoError(t, err)
	}

	t.Run("removes the line whatever its quantity", func(t *testing.T) {
		summary, err := svc.RemoveItem(user.ID, product.ID)
		require.NoError(t, err)
		assert.Empty(t, summary.Items)
	})

	t.Run("removing an absent product is a no-op", func(t *testing.T) {
		summary, err := svc.RemoveItem(user.ID, product.ID)
		require.NoError(t, err)
		assert.Empty(t, summary.Items)
	})
}

func TestCartService_TotalItemsSumsQuantities(t *testing.T) {
	svc, _, testDB := setupCartServiceTest(t)
	user := createTestUser(t, testDB, "9876510004")
	productA := createTestProduct(t, testDB, "Diamond Stud", 10)
	productB := createTestProduct(t, testDB, "Gold Chain", 10)

	for i := 0; i < 3; i++ {
		_, err := svc.IncreaseQuantity(user.ID, productA.ID)
		require.NoError(t, err)
	}
	for i := 0; i < 2; i++ {
		_, err := svc.IncreaseQuantity(user.ID, productB.ID)
		require.NoError(t, err)
	}

	summary, err := svc.GetCart(user.ID)
	require.NoError(t, err)
	assert.Len(t, summary.Items, 2)
	assert.Equal(t, 5, summary.TotalItems, "badge counts units, not lines")
}

func TestCartService_ValidateCheckout(t *testing.T) {
	svc, _, testDB := setupCartServiceTest(t)
	user := createTestUser(t, testDB, "9876510005")
	productA := createTestProduct(t, testDB, "Ruby Ring", 5)
	productB := createTestProduct(t, testDB, "Emerald Pendant", 5)

	t.Run("empty cart is rejected", func(t *testing.T) {
		err := svc.ValidateCheckout(user.ID)
		assert.ErrorIs(t, err, ErrCartEmpty)
	})

	t.Run("cart within stock passes", func(t *testing.T) {
		for i := 0; i < 2; i++ {
			_, err := svc.IncreaseQuantity(user.ID, productA.ID)
			require.NoError(t, err)
		}
		_, err := svc.IncreaseQuantity(user.ID, productB.ID)
		require.NoError(t, err)

		assert.NoError(t, svc.ValidateCheckout(user.ID))
	})

	t.Run("stock drop after carting blocks checkout with details", func(t *testing.T) {
		require.NoError(t, testDB.Model(&model.Product{}).
			Where("id = ?", productA.ID).
			Update("stock_quantity", 1).Error)

		err := svc.ValidateCheckout(user.ID)
		require.ErrorIs(t, err, ErrCheckoutBlocked)

		var blocked *CheckoutBlockedError
		require.ErrorAs(t, err, &blocked)
		require.Len(t, blocked.Violations, 1)
		assert.Equal(t, "Ruby Ring", blocked.Violations[0].ProductName)
		assert.Equal(t, 2, blocked.Violations[0].Requested)
		assert.Equal(t, 1, blocked.Violations[0].Available)
	})

	t.Run("duplicate lines for one product are summed", func(t *testing.T) {
		// Simulate a duplicate line slipping in; validation must compare
		// the summed quantity against stock.
		var cart model.Cart
		require.NoError(t, testDB.Where("user_id = ?", user.ID).First(&cart).Error)
		require.NoError(t, testDB.Create(&model.CartItem{
			CartID:    cart.ID,
			ProductID: productB.ID,
			Quantity:  5,
		}).Error)

		err := svc.ValidateCheckout(user.ID)
		require.ErrorIs(t, err, ErrCheckoutBlocked)

		var blocked *CheckoutBlockedError
		require.ErrorAs(t, err, &blocked)

		found := false
		for _, v := range blocked.Violations {
			if v.ProductID == productB.ID {
				found = true
				assert.Equal(t, 6, v.Requested)
				assert.Equal(t, 5, v.Available)
			}
		}
		assert.True(t, found, "summed duplicate lines must violate")
	})

	t.Run("deleted product counts as zero stock", func(t *testing.T) {
		require.NoError(t, testDB.Delete(&model.Product{}, productA.ID).Error)

		err := svc.ValidateCheckout(user.ID)
		require.ErrorIs(t, err, ErrCheckoutBlocked)

		var blocked *CheckoutBlockedError
		require.ErrorAs(t, err, &blocked)

		found := false
		for _, v := range blocked.Violations {
			if v.ProductID == productA.ID {
				found = true
				assert.Zero(t, v.Available)
			}
		}
		assert.True(t, found)
	})
}

func TestCartService_GuestCart(t *testing.T) {
	svc, _, testDB := setupCartServiceTest(t)
	ctx := context.Background()
	product := createTestProduct(t, testDB, "Toe Ring", 2)
	token := "guest-token-1"

	t.Run("empty guest cart", func(t *testing.T) {
		summary, err := svc.GetGuestCart(ctx, token)
		require.NoError(t, err)
		assert.Empty(t, summary.Items)
		assert.Zero(t, summary.TotalItems)
	})

	t.Run("increase builds the cart with product details", func(t *testing.T) {
		summary, err := svc.IncreaseGuestQuantity(ctx, token, product.ID)
		require.NoError(t, err)
		require.Len(t, summary.Items, 1)
		assert.Equal(t, "Toe Ring", summary.Items[0].Product.Name)
		assert.Equal(t, 1, summary.TotalItems)
	})

	t.Run("guest increase honors the stock ceiling", func(t *testing.T) {
		_, err := svc.IncreaseGuestQuantity(ctx, token, product.ID)
		require.NoError(t, err)

		_, err = svc.IncreaseGuestQuantity(ctx, token, product.ID)
		assert.ErrorIs(t, err, ErrInsufficientStock)
	})

	t.Run("decrease and remove mirror the server cart", func(t *testing.T) {
		summary, err := svc.DecreaseGuestQuantity(ctx, token, product.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, summary.TotalItems)

		summary, err = svc.RemoveGuestItem(ctx, token, product.ID)
		require.NoError(t, err)
		assert.Empty(t, summary.Items)
	})
}

func TestCartService_MergeGuestCart(t *testing.T) {
	ctx := context.Background()

	t.Run("merges fully within stock and clears the guest store", func(t *testing.T) {
		svc, guestStore, testDB := setupCartServiceTest(t)
		user := createTestUser(t, testDB, "9876510006")
		product := createTestProduct(t, testDB, "Nose Pin", 10)

		require.NoError(t, guestStore.Save(ctx, "tok", []model.GuestCartLine{
			{ProductID: product.ID, Quantity: 3},
		}))

		summary, skipped, err := svc.MergeGuestCart(ctx, user.ID, "tok")
		require.NoError(t, err)
		assert.Empty(t, skipped)
		assert.Equal(t, 3, summary.TotalItems)

		lines, err := guestStore.Get(ctx, "tok")
		require.NoError(t, err)
		assert.Empty(t, lines, "guest store cleared after merge")
	})

	t.Run("adds guest quantity on top of existing server quantity", func(t *testing.T) {
		svc, guestStore, testDB := setupCartServiceTest(t)
		user := createTestUser(t, testDB, "9876510007")
		product := createTestProduct(t, testDB, "Gold Coin", 10)

		_, err := svc.IncreaseQuantity(user.ID, product.ID)
		require.NoError(t, err)
		_, err = svc.IncreaseQuantity(user.ID, product.ID)
		require.NoError(t, err)

		require.NoError(t, guestStore.Save(ctx, "tok", []model.GuestCartLine{
			{ProductID: product.ID, Quantity: 3},
		}))

		summary, skipped, err := svc.MergeGuestCart(ctx, user.ID, "tok")
		require.NoError(t, err)
		assert.Empty(t, skipped)
		assert.Equal(t, 5, summary.TotalItems)
	})

	t.Run("caps at stock and reports the product", func(t *testing.T) {
		svc, guestStore, testDB := setupCartServiceTest(t)
		user := createTestUser(t, testDB, "9876510008")
		product := createTestProduct(t, testDB, "Silver Bar", 2)

		require.NoError(t, guestStore.Save(ctx, "tok", []model.GuestCartLine{
			{ProductID: product.ID, Quantity: 5},
		}))

		summary, skipped, err := svc.MergeGuestCart(ctx, user.ID, "tok")
		require.NoError(t, err)
		require.Len(t, skipped, 1)
		assert.Equal(t, "Silver Bar", skipped[0])
		assert.Equal(t, 2, summary.TotalItems, "merged as far as stock allows")
	})

	t.Run("a failing line does not stop later lines", func(t *testing.T) {
		svc, guestStore, testDB := setupCartServiceTest(t)
		user := createTestUser(t, testDB, "9876510009")
		productOK := createTestProduct(t, testDB, "Bracelet", 10)

		require.NoError(t, guestStore.Save(ctx, "tok", []model.GuestCartLine{
			{ProductID: 99999, Quantity: 1}, // never existed
			{ProductID: productOK.ID, Quantity: 2},
		}))

		summary, skipped, err := svc.MergeGuestCart(ctx, user.ID, "tok")
		require.NoError(t, err)
		require.Len(t, skipped, 1)
		assert.Equal(t, "product #99999", skipped[0])
		assert.Equal(t, 2, summary.TotalItems)
	})

	t.Run("empty guest cart merges to a no-op", func(t *testing.T) {
		svc, _, testDB := setupCartServiceTest(t)
		user := createTestUser(t, testDB, "9876510010")

		summary, skipped, err := svc.MergeGuestCart(ctx, user.ID, "missing")
		require.NoError(t, err)
		assert.Empty(t, skipped)
		assert.Zero(t, summary.TotalItems)
	})
}
