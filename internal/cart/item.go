// Package cart keeps the storefront cart in step with the backend, fills in
// product details for display and prices the result for an enquiry.
package cart

import "github.com/rp-jtw/storefront/internal/backend"

// Item is one cart line as the storefront shows it. Lines start as stubs
// (product id and quantity) and gain product details once enriched.
type Item struct {
	ProductID            string        `json:"productId"`
	Quantity             int           `json:"quantity"`
	Name                 string        `json:"name,omitempty"`
	Description          string        `json:"description,omitempty"`
	Price                backend.Price `json:"price"`
	Weight               float64       `json:"weight,omitempty"`
	MakingChargesPerGram float64       `json:"makingChargesPerGram,omitempty"`
	Purity               string        `json:"purity,omitempty"`
	Images               []string      `json:"images,omitempty"`
	Enriched             bool          `json:"enriched"`
}

// fromBackend turns a backend cart line into an Item, keeping any product
// fields the backend already populated.
func fromBackend(line backend.CartItem) Item {
	it := Item{ProductID: line.ProductID, Quantity: line.Quantity}
	if line.Product != nil {
		it = withProduct(it, *line.Product)
		// a populated line is not the same as a fresh product fetch
		it.Enriched = false
	}
	return it
}

func fromBackendCart(c backend.Cart) []Item {
	items := make([]Item, 0, len(c.Items))
	for _, line := range c.Items {
		items = append(items, fromBackend(line))
	}
	return items
}

func withProduct(it Item, p backend.Product) Item {
	if p.ID != "" {
		it.ProductID = p.ID
	}
	it.Name = p.Name
	it.Description = p.Description
	it.Price = p.Price
	it.Weight = float64(p.Weight)
	it.MakingChargesPerGram = float64(p.MakingChargesPerGram)
	it.Purity = p.Purity
	it.Images = p.Images
	it.Enriched = true
	return it
}
