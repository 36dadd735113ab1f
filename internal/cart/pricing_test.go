package cart

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rp-jtw/storefront/internal/backend"
)

func TestComputePricePrecedence(t *testing.T) {
	cases := []struct {
		name string
		item Item
		want float64
	}{
		{"number", Item{Price: backend.NumberPrice(100)}, 100},
		{"currency string", Item{Price: backend.TextPrice("₹1,000")}, 1000},
		{"string with spaces and decimals", Item{Price: backend.TextPrice("₹ 25,999.50")}, 25999},
		{"unparseable string", Item{Price: backend.TextPrice("on request")}, 0},
		{"string beats making charges", Item{Price: backend.TextPrice("abc"), MakingChargesPerGram: 50, Weight: 2}, 0},
		{"making charges", Item{MakingChargesPerGram: 50, Weight: 2}, 100},
		{"making charges without weight", Item{MakingChargesPerGram: 50}, 0},
		{"nothing", Item{}, 0},
		{"zero number wins", Item{Price: backend.NumberPrice(0), MakingChargesPerGram: 50, Weight: 2}, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, ComputePrice(tc.item))
		})
	}
}

func TestComputeTotal(t *testing.T) {
	items := []Item{
		{Price: backend.NumberPrice(100), Quantity: 2},
		{Price: backend.TextPrice("₹50"), Quantity: 1},
	}
	require.Equal(t, 250.0, ComputeTotal(items))
}

func TestComputeTotalTreatsMissingQuantityAsOne(t *testing.T) {
	items := []Item{
		{Price: backend.NumberPrice(100)},
		{Price: backend.NumberPrice(10), Quantity: -3},
	}
	require.Equal(t, 110.0, ComputeTotal(items))
	require.Equal(t, 0.0, ComputeTotal(nil))
}

func TestCount(t *testing.T) {
	require.Equal(t, 5, Count([]Item{{Quantity: 2}, {Quantity: 3}, {Quantity: 0}}))
}
