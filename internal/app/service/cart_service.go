package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/aabhushan/aabhushan-backend/internal/app/model"
	"github.com/aabhushan/aabhushan-backend/internal/app/repository"
	"github.com/aabhushan/aabhushan-backend/pkg/logger"
	"gorm.io/gorm"
)

var (
	ErrProductNotFound   = errors.New("product not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrCartEmpty         = errors.New("cart is empty")
	ErrCheckoutBlocked   = errors.New("cart has items exceeding available stock")
)

// InsufficientStockError reports a rejected quantity increase. Available is
// the product's current stock, so the storefront can show the ceiling.
type InsufficientStockError struct {
	ProductID   uint
	ProductName string
	Available   int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: %d available", e.ProductName, e.Available)
}

func (e *InsufficientStockError) Unwrap() error {
	return ErrInsufficientStock
}

// StockViolation is one cart line exceeding available stock at checkout.
type StockViolation struct {
	ProductID   uint   `json:"product_id"`
	ProductName string `json:"product_name"`
	Requested   int    `json:"requested"`
	Available   int    `json:"available"`
}

// CheckoutBlockedError aggregates every stock violation found during
// checkout validation so the storefront can list them all at once.
type CheckoutBlockedError struct {
	Violations []StockViolation
}

func (e *CheckoutBlockedError) Error() string {
	return fmt.Sprintf("checkout blocked: %d items exceed available stock", len(e.Violations))
}

func (e *CheckoutBlockedError) Unwrap() error {
	return ErrCheckoutBlocked
}

// CartService is the stock-aware quantity mutation engine. Every mutation
// re-reads the product before changing quantities and returns a fresh
// summary so the storefront badge never drifts from the stored cart.
type CartService struct {
	cartRepo    repository.CartRepository
	productRepo repository.ProductRepository
	guestStore  repository.GuestCartStore
}

func NewCartService(
	cartRepo repository.CartRepository,
	productRepo repository.ProductRepository,
	guestStore repository.GuestCartStore,
) *CartService {
	return &CartService{
		cartRepo:    cartRepo,
		productRepo: productRepo,
		guestStore:  guestStore,
	}
}

// ==================== Authenticated cart ====================

func (s *CartService) GetCart(userID uint) (*model.CartSummary, error) {
	cart, err := s.cartRepo.FindOrCreateByUserID(userID)
	if err != nil {
		return nil, err
	}
	return s.summarize(cart.ID)
}

// IncreaseQuantity adds one unit of a product to the user's cart. The stock
// ceiling is checked against a fresh product read; when the cart already
// holds all available stock the increase is rejected.
func (s *CartService) IncreaseQuantity(userID, productID uint) (*model.CartSummary, error) {
	logger.Info("Increasing cart quantity", map[string]interface{}{
		"user_id":    userID,
		"product_id": productID,
	})

	cart, err := s.cartRepo.FindOrCreateByUserID(userID)
	if err != nil {
		return nil, err
	}

	product, err := s.productRepo.FindByID(productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, err
	}

	currentQty, err := s.quantityInCart(cart.ID, productID)
	if err != nil {
		return nil, err
	}

	if currentQty+1 > product.StockQuantity {
		logger.Warn("Quantity increase rejected by stock ceiling", map[string]interface{}{
			"user_id":    userID,
			"product_id": productID,
			"in_cart":    currentQty,
			"stock":      product.StockQuantity,
		})
		return nil, &InsufficientStockError{
			ProductID:   productID,
			ProductName: product.Name,
			Available:   product.StockQuantity,
		}
	}

	item, err := s.cartRepo.FindItemByCartAndProduct(cart.ID, productID)
	switch {
	case err == nil:
		item.Quantity++
		if err := s.cartRepo.UpdateItem(item); err != nil {
			return nil, err
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
		item = &model.CartItem{CartID: cart.ID, ProductID: productID, Quantity: 1}
		if err := s.cartRepo.CreateItem(item); err != nil {
			return nil, err
		}
	default:
		return nil, err
	}

	return s.summarize(cart.ID)
}

// DecreaseQuantity removes one unit of a product. Reaching zero deletes the
// line; decreasing a product not in the cart changes nothing.
func (s *CartService) DecreaseQuantity(userID, productID uint) (*model.CartSummary, error) {
	logger.Info("Decreasing cart quantity", map[string]interface{}{
		"user_id":    userID,
		"product_id": productID,
	})

	cart, err := s.cartRepo.FindOrCreateByUserID(userID)
	if err != nil {
		return nil, err
	}

	item, err := s.cartRepo.FindItemByCartAndProduct(cart.ID, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return s.summarize(cart.ID)
		}
		return nil, err
	}

	item.Quantity--
	if item.Quantity <= 0 {
		if err := s.cartRepo.DeleteItem(item.ID); err != nil {
			return nil, err
		}
	} else {
		if err := s.cartRepo.UpdateItem(item); err != nil {
			return nil, err
		}
	}

	return s.summarize(cart.ID)
}

// RemoveItem drops a product's line entirely regardless of its quantity.
func (s *CartService) RemoveItem(userID, productID uint) (*model.CartSummary, error) {
	logger.Info("Removing cart item", map[string]interface{}{
		"user_id":    userID,
		"product_id": productID,
	})

	cart, err := s.cartRepo.FindOrCreateByUserID(userID)
	if err != nil {
		return nil, err
	}

	item, err := s.cartRepo.FindItemByCartAndProduct(cart.ID, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return s.summarize(cart.ID)
		}
		return nil, err
	}

	if err := s.cartRepo.DeleteItem(item.ID); err != nil {
		return nil, err
	}

	return s.summarize(cart.ID)
}

// ClearCart empties the user's cart, used after a successful checkout.
func (s *CartService) ClearCart(userID uint) error {
	cart, err := s.cartRepo.FindOrCreateByUserID(userID)
	if err != nil {
		return err
	}
	return s.cartRepo.DeleteItemsByCartID(cart.ID)
}

// ValidateCheckout checks every cart line against current stock in a single
// batched product read. Quantities of duplicate lines for the same product
// are summed before comparison. All violations are reported together.
func (s *CartService) ValidateCheckout(userID uint) error {
	cart, err := s.cartRepo.FindOrCreateByUserID(userID)
	if err != nil {
		return err
	}

	items, err := s.cartRepo.FindItemsByCartID(cart.ID)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		return ErrCartEmpty
	}

	required := make(map[uint]int)
	order := make([]uint, 0, len(items))
	for _, item := range items {
		if _, seen := required[item.ProductID]; !seen {
			order = append(order, item.ProductID)
		}
		required[item.ProductID] += item.Quantity
	}

	products, err := s.productRepo.FindByIDs(order)
	if err != nil {
		return err
	}
	available := make(map[uint]*model.Product, len(products))
	for i := range products {
		available[products[i].ID] = &products[i]
	}

	var violations []StockViolation
	for _, productID := range order {
		product, ok := available[productID]
		if !ok {
			// A product deleted since it was carted counts as zero stock.
			violations = append(violations, StockViolation{
				ProductID:   productID,
				ProductName: fmt.Sprintf("product #%d", productID),
				Requested:   required[productID],
				Available:   0,
			})
			continue
		}
		if required[productID] > product.StockQuantity {
			violations = append(violations, StockViolation{
				ProductID:   productID,
				ProductName: product.Name,
				Requested:   required[productID],
				Available:   product.StockQuantity,
			})
		}
	}

	if len(violations) > 0 {
		logger.Warn("Checkout blocked by stock violations", map[string]interface{}{
			"user_id":    userID,
			"violations": len(violations),
		})
		return &CheckoutBlockedError{Violations: violations}
	}
	return nil
}

// ==================== Guest cart ====================

func (s *CartService) GetGuestCart(ctx context.Context, token string) (*model.CartSummary, error) {
	lines, err := s.guestStore.Get(ctx, token)
	if err != nil {
		return nil, err
	}
	return s.summarizeGuest(lines)
}

// IncreaseGuestQuantity mirrors IncreaseQuantity for a guest cart held in
// the token store, with the same fresh-read stock ceiling.
func (s *CartService) IncreaseGuestQuantity(ctx context.Context, token string, productID uint) (*model.CartSummary, error) {
	logger.Info("Increasing guest cart quantity", map[string]interface{}{
		"token":      token,
		"product_id": productID,
	})

	product, err := s.productRepo.FindByID(productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, err
	}

	lines, err := s.guestStore.Get(ctx, token)
	if err != nil {
		return nil, err
	}

	currentQty := 0
	for _, line := range lines {
		if line.ProductID == productID {
			currentQty += line.Quantity
		}
	}

	if currentQty+1 > product.StockQuantity {
		return nil, &InsufficientStockError{
			ProductID:   productID,
			ProductName: product.Name,
			Available:   product.StockQuantity,
		}
	}

	lines = repository.AddLine(lines, productID, 1)
	if err := s.guestStore.Save(ctx, token, lines); err != nil {
		return nil, err
	}

	return s.summarizeGuest(lines)
}

func (s *CartService) DecreaseGuestQuantity(ctx context.Context, token string, productID uint) (*model.CartSummary, error) {
	lines, err := s.guestStore.Get(ctx, token)
	if err != nil {
		return nil, err
	}

	lines = repository.DecreaseLine(lines, productID)
	if err := s.guestStore.Save(ctx, token, lines); err != nil {
		return nil, err
	}

	return s.summarizeGuest(lines)
}

func (s *CartService) RemoveGuestItem(ctx context.Context, token string, productID uint) (*model.CartSummary, error) {
	lines, err := s.guestStore.Get(ctx, token)
	if err != nil {
		return nil, err
	}

	lines = repository.RemoveLine(lines, productID)
	if err := s.guestStore.Save(ctx, token, lines); err != nil {
		return nil, err
	}

	return s.summarizeGuest(lines)
}

// ==================== Merge on login ====================

// MergeGuestCart folds a guest cart into the user's server cart after
// login. Lines merge strictly one at a time in stored order; a line that
// cannot be applied in full (stock ceiling, product gone) is applied as far
// as stock allows and its product name is reported back. The guest store
// entry is cleared no matter what, so the merge never replays.
func (s *CartService) MergeGuestCart(ctx context.Context, userID uint, token string) (*model.CartSummary, []string, error) {
	logger.Info("Merging guest cart into user cart", map[string]interface{}{
		"user_id": userID,
		"token":   token,
	})

	lines, err := s.guestStore.Get(ctx, token)
	if err != nil {
		return nil, nil, err
	}

	var skipped []string
	for _, line := range lines {
		name, ok := s.mergeLine(userID, line)
		if !ok {
			skipped = append(skipped, name)
		}
	}

	if err := s.guestStore.Clear(ctx, token); err != nil {
		// The merge already happened; losing the clear only risks a
		// second merge attempt, which the stock ceiling bounds anyway.
		logger.Warn("Failed to clear guest cart after merge", map[string]interface{}{
			"user_id": userID,
			"token":   token,
		})
	}

	summary, err := s.GetCart(userID)
	if err != nil {
		return nil, skipped, err
	}

	logger.Info("Guest cart merge finished", map[string]interface{}{
		"user_id":       userID,
		"merged_lines":  len(lines) - len(skipped),
		"skipped_lines": len(skipped),
	})
	return summary, skipped, nil
}

// mergeLine applies one guest line unit by unit and reports whether the
// full quantity landed. The name returned identifies the product for the
// skipped list even when the product row is gone.
func (s *CartService) mergeLine(userID uint, line model.GuestCartLine) (string, bool) {
	name := fmt.Sprintf("product #%d", line.ProductID)

	for i := 0; i < line.Quantity; i++ {
		_, err := s.IncreaseQuantity(userID, line.ProductID)
		if err == nil {
			continue
		}

		var stockErr *InsufficientStockError
		if errors.As(err, &stockErr) {
			return stockErr.ProductName, false
		}
		if errors.Is(err, ErrProductNotFound) {
			return name, false
		}

		logger.Error("Failed to merge guest cart line", err, map[string]interface{}{
			"user_id":    userID,
			"product_id": line.ProductID,
		})
		return name, false
	}
	return name, true
}

// ==================== Helpers ====================

func (s *CartService) summarize(cartID uint) (*model.CartSummary, error) {
	items, err := s.cartRepo.FindItemsByCartID(cartID)
	if err != nil {
		return nil, err
	}
	return model.NewCartSummary(items), nil
}

// summarizeGuest resolves product details for guest lines so the summary
// has the same shape as the authenticated one. Lines whose product no
// longer exists are dropped from the view but left in the store.
func (s *CartService) summarizeGuest(lines []model.GuestCartLine) (*model.CartSummary, error) {
	ids := make([]uint, 0, len(lines))
	for _, line := range lines {
		ids = append(ids, line.ProductID)
	}

	products, err := s.productRepo.FindByIDs(ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[uint]model.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	items := make([]model.CartItem, 0, len(lines))
	for _, line := range lines {
		product, ok := byID[line.ProductID]
		if !ok {
			continue
		}
		items = append(items, model.CartItem{
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			Product:   product,
		})
	}
	return model.NewCartSummary(items), nil
}

// quantityInCart sums every line of the product in the cart. Duplicate
// lines should not occur, but the ceiling must hold even if they do.
func (s *CartService) quantityInCart(cartID, productID uint) (int, error) {
	items, err := s.cartRepo.FindItemsByCartID(cartID)
	if err != nil {
		return 0, err
	}
	total := 0
	for _, item := range items {
		if item.ProductID == productID {
			total += item.Quantity
		}
	}
	return total, nil
}
