package basket_test

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vasiliy-maslov/megano/internal/basket"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestBasket_TotalPrice_ExactDecimal(t *testing.T) {
	b := basket.New()
	require.NoError(t, b.Add(1, dec("19.99"), 3))

	require.True(t, dec("59.97").Equal(b.TotalPrice()), "got %s", b.TotalPrice())
}

func TestBasket_Add_IncrementsAndKeepsPrice(t *testing.T) {
	b := basket.New()
	require.NoError(t, b.Add(7, dec("80.00"), 1))
	require.NoError(t, b.Add(7, dec("100.00"), 2))

	assert.Equal(t, 3, b.CountOf(7))
	assert.True(t, dec("80.00").Equal(b.PriceOf(7)))
	assert.True(t, b.Modified())
}

func TestBasket_Add_InvalidCount(t *testing.T) {
	b := basket.New()
	require.ErrorIs(t, b.Add(1, dec("1"), 0), basket.ErrInvalidCount)
	assert.False(t, b.Modified())
}

func TestBasket_Remove(t *testing.T) {
	tests := []struct {
		name      string
		remove    int
		wantCount int
		wantTotal string
	}{
		{name: "partial", remove: 1, wantCount: 2, wantTotal: "25.00"},
		{name: "exact", remove: 3, wantCount: 0, wantTotal: "5.00"},
		{name: "more_than_stored", remove: 10, wantCount: 0, wantTotal: "5.00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := basket.New()
			require.NoError(t, b.Add(1, dec("10.00"), 3))
			require.NoError(t, b.Add(2, dec("5.00"), 1))

			require.NoError(t, b.Remove(1, tt.remove))

			assert.Equal(t, tt.wantCount, b.CountOf(1))
			assert.Equal(t, tt.wantCount > 0, b.Contains(1))
			assert.True(t, dec(tt.wantTotal).Equal(b.TotalPrice()), "got %s", b.TotalPrice())
		})
	}
}

func TestBasket_Remove_Absent(t *testing.T) {
	b := basket.New()
	require.ErrorIs(t, b.Remove(42, 1), basket.ErrItemNotInBasket)
	assert.False(t, b.Modified())
}

func TestBasket_ZeroDefaults(t *testing.T) {
	b := basket.New()
	assert.Equal(t, 0, b.CountOf(5))
	assert.True(t, decimal.Zero.Equal(b.PriceOf(5)))
	assert.True(t, decimal.Zero.Equal(b.TotalPrice()))
}

func TestBasket_ClearAndIDs(t *testing.T) {
	b := basket.New()
	require.NoError(t, b.Add(3, dec("1"), 1))
	require.NoError(t, b.Add(1, dec("1"), 1))
	assert.Equal(t, []int64{1, 3}, b.ProductIDs())

	b.Clear()
	assert.Equal(t, 0, b.Len())
	assert.Empty(t, b.ProductIDs())
}

func TestBasket_JSONRoundTripKeepsPrice(t *testing.T) {
	b := basket.New()
	require.NoError(t, b.Add(9, dec("19.99"), 2))

	raw, err := json.Marshal(b)
	require.NoError(t, err)

	var loaded basket.Basket
	require.NoError(t, json.Unmarshal(raw, &loaded))
	assert.False(t, loaded.Modified())
	assert.Equal(t, 2, loaded.CountOf(9))
	assert.True(t, dec("39.98").Equal(loaded.TotalPrice()))
}
