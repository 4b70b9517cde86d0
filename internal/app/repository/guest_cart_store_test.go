package repository

import (
	"context"
	"testing"

	"github.com/aabhushan/aabhushan-backend/internal/app/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryGuestCartStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryGuestCartStore()

	t.Run("unknown token reads as empty cart", func(t *testing.T) {
		lines, err := store.Get(ctx, "missing-token")
		require.NoError(t, err)
		assert.Empty(t, lines)
		assert.NotNil(t, lines)
	})

	t.Run("save then get round trips", func(t *testing.T) {
		saved := []model.GuestCartLine{
			{ProductID: 1, Quantity: 2},
			{ProductID: 5, Quantity: 1},
		}
		require.NoError(t, store.Save(ctx, "token-a", saved))

		lines, err := store.Get(ctx, "token-a")
		require.NoError(t, err)
		assert.Equal(t, saved, lines)
	})

	t.Run("saving empty lines clears the cart", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, "token-b", []model.GuestCartLine{{ProductID: 2, Quantity: 3}}))
		require.NoError(t, store.Save(ctx, "token-b", nil))

		lines, err := store.Get(ctx, "token-b")
		require.NoError(t, err)
		assert.Empty(t, lines)
	})

	t.Run("clear removes the cart", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, "token-c", []model.GuestCartLine{{ProductID: 7, Quantity: 1}}))
		require.NoError(t, store.Clear(ctx, "token-c"))

		lines, err := store.Get(ctx, "token-c")
		require.NoError(t, err)
		assert.Empty(t, lines)
	})

	t.Run("stored lines are not aliased by the caller slice", func(t *testing.T) {
		saved := []model.GuestCartLine{{ProductID: 9, Quantity: 1}}
		require.NoError(t, store.Save(ctx, "token-d", saved))
		saved[0].Quantity = 99

		lines, err := store.Get(ctx, "token-d")
		require.NoError(t, err)
		assert.Equal(t, 1, lines[0].Quantity)
	})
}

func TestDecodeGuestCartLines(t *testing.T) {
	t.Run("valid payload decodes", func(t *testing.T) {
		lines := decodeGuestCartLines("t", []byte(`[{"product_id":3,"quantity":2}]`))
		require.Len(t, lines, 1)
		assert.Equal(t, uint(3), lines[0].ProductID)
		assert.Equal(t, 2, lines[0].Quantity)
	})

	t.Run("corrupted payload reads as empty cart", func(t *testing.T) {
		lines := decodeGuestCartLines("t", []byte(`{not json`))
		assert.NotNil(t, lines)
		assert.Empty(t, lines)
	})

	t.Run("json null reads as empty cart", func(t *testing.T) {
		lines := decodeGuestCartLines("t", []byte(`null`))
		assert.NotNil(t, lines)
		assert.Empty(t, lines)
	})
}

func TestGuestCartLineHelpers(t *testing.T) {
	t.Run("AddLine appends a new product", func(t *testing.T) {
		lines := AddLine(nil, 1, 1)
		require.Len(t, lines, 1)
		assert.Equal(t, 1, lines[0].Quantity)
	})

	t.Run("AddLine bumps an existing product", func(t *testing.T) {
		lines := []model.GuestCartLine{{ProductID: 1, Quantity: 2}}
		lines = AddLine(lines, 1, 1)
		require.Len(t, lines, 1)
		assert.Equal(t, 3, lines[0].Quantity)
	})

	t.Run("DecreaseLine drops the line at zero", func(t *testing.T) {
		lines := []model.GuestCartLine{{ProductID: 1, Quantity: 1}, {ProductID: 2, Quantity: 4}}
		lines = DecreaseLine(lines, 1)
		require.Len(t, lines, 1)
		assert.Equal(t, uint(2), lines[0].ProductID)
	})

	t.Run("DecreaseLine keeps the line above zero", func(t *testing.T) {
		lines := []model.GuestCartLine{{ProductID: 1, Quantity: 2}}
		lines = DecreaseLine(lines, 1)
		require.Len(t, lines, 1)
		assert.Equal(t, 1, lines[0].Quantity)
	})

	t.Run("DecreaseLine ignores unknown products", func(t *testing.T) {
		lines := []model.GuestCartLine{{ProductID: 1, Quantity: 2}}
		lines = DecreaseLine(lines, 42)
		require.Len(t, lines, 1)
		assert.Equal(t, 2, lines[0].Quantity)
	})

	t.Run("RemoveLine drops regardless of quantity", func(t *testing.T) {
		lines := []model.GuestCartLine{{ProductID: 1, Quantity: 5}, {ProductID: 2, Quantity: 1}}
		lines = RemoveLine(lines, 1)
		require.Len(t, lines, 1)
		assert.Equal(t, uint(2), lines[0].ProductID)
	})

	t.Run("SumQuantities sums quantities not line count", func(t *testing.T) {
		lines := []model.GuestCartLine{{ProductID: 1, Quantity: 3}, {ProductID: 2, Quantity: 2}}
		assert.Equal(t, 5, SumQuantities(lines))
	})

	t.Run("SumQuantities of empty cart is zero", func(t *testing.T) {
		assert.Equal(t, 0, SumQuantities(nil))
	})
}
