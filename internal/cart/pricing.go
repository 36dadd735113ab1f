package cart

import (
	"strconv"
	"strings"
)

// ComputePrice returns the unit price of an item. A numeric price wins; a
// currency string is read up to its first non-digit after dropping the rupee
// sign, commas and spaces; failing both, making charges times weight is used
// when both are set. Anything else is zero.
func ComputePrice(it Item) float64 {
	switch {
	case it.Price.Number != nil:
		return *it.Price.Number
	case it.Price.Text != "":
		return parseLeadingInt(it.Price.Text)
	case it.MakingChargesPerGram != 0 && it.Weight != 0:
		return it.MakingChargesPerGram * it.Weight
	}
	return 0
}

var priceNoise = strings.NewReplacer("₹", "", ",", "", " ", "")

func parseLeadingInt(s string) float64 {
	s = priceNoise.Replace(s)
	end := 0
	if end < len(s) && (s[end] == '-' || s[end] == '+') {
		end++
	}
	digits := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == digits {
		return 0
	}
	v, err := strconv.ParseFloat(s[:end], 64)
	if err != nil {
		return 0
	}
	return v
}

// Quantity is the multiplier used for pricing: at least one.
func Quantity(it Item) int {
	return max(it.Quantity, 1)
}

// ComputeTotal sums unit price times quantity over items.
func ComputeTotal(items []Item) float64 {
	var total float64
	for _, it := range items {
		total += ComputePrice(it) * float64(Quantity(it))
	}
	return total
}

// Count is the number of units in the cart, shown on the cart badge.
func Count(items []Item) int {
	n := 0
	for _, it := range items {
		if it.Quantity > 0 {
			n += it.Quantity
		}
	}
	return n
}
