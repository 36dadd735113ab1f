package backend

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// envelope is the wrapper every backend response uses.
type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// VerifyResult is returned by a successful OTP verification.
type VerifyResult struct {
	AccessToken string `json:"accessToken"`
	Status      string `json:"status"`
}

// Profile is the registered business user as the backend reports it.
type Profile struct {
	ID           string `json:"_id,omitempty"`
	FirstName    string `json:"firstName"`
	LastName     string `json:"lastName"`
	BusinessName string `json:"businessName"`
	GSTNumber    string `json:"gstNumber,omitempty"`
	Email        string `json:"email"`
	City         string `json:"city"`
	State        string `json:"state"`
	PhoneNumber  string `json:"phoneNumber,omitempty"`
	ISDCode      string `json:"isdCode,omitempty"`
	Status       string `json:"status"`
}

// UnmarshalJSON accepts the misspelled "buisnessName" and the short "phone"
// keys some backend versions emit.
func (p *Profile) UnmarshalJSON(data []byte) error {
	type plain Profile
	var aux struct {
		plain
		BuisnessName string `json:"buisnessName"`
		Phone        string `json:"phone"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*p = Profile(aux.plain)
	if p.BusinessName == "" {
		p.BusinessName = aux.BuisnessName
	}
	if p.PhoneNumber == "" {
		p.PhoneNumber = aux.Phone
	}
	return nil
}

// ProfileUpdate is the body of PATCH /auth/profile.
type ProfileUpdate struct {
	FirstName    string `json:"firstName"`
	LastName     string `json:"lastName"`
	BusinessName string `json:"businessName"`
	GSTNumber    string `json:"gstNumber,omitempty"`
	Email        string `json:"email"`
	City         string `json:"city"`
	State        string `json:"state"`
}

// Price keeps a product price as the backend sent it: a JSON number, a
// currency formatted string such as "₹25,999", or nothing at all.
type Price struct {
	Number *float64
	Text   string
}

// NumberPrice builds a numeric Price.
func NumberPrice(v float64) Price { return Price{Number: &v} }

// TextPrice builds a string Price.
func TextPrice(s string) Price { return Price{Text: s} }

// IsZero reports whether no price was sent.
func (p Price) IsZero() bool { return p.Number == nil && p.Text == "" }

func (p *Price) UnmarshalJSON(data []byte) error {
	*p = Price{}
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	if data[0] == '"' {
		return json.Unmarshal(data, &p.Text)
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		// booleans, objects and other junk are treated as absent
		return nil
	}
	p.Number = &v
	return nil
}

func (p Price) MarshalJSON() ([]byte, error) {
	switch {
	case p.Number != nil:
		return json.Marshal(*p.Number)
	case p.Text != "":
		return json.Marshal(p.Text)
	default:
		return []byte("null"), nil
	}
}

// Number is a float that also decodes from numeric strings; anything
// unparseable becomes zero.
type Number float64

func (n *Number) UnmarshalJSON(data []byte) error {
	*n = 0
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil
		}
		if v, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			*n = Number(v)
		}
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err == nil {
		*n = Number(v)
	}
	return nil
}

// Category groups catalog products.
type Category struct {
	ID          string `json:"_id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Image       string `json:"image,omitempty"`
}

// Product is a catalog entry.
type Product struct {
	ID                   string    `json:"_id"`
	Name                 string    `json:"name"`
	Description          string    `json:"description,omitempty"`
	Price                Price     `json:"price"`
	Weight               Number    `json:"weight"`
	MakingChargesPerGram Number    `json:"makingChargesPerGram"`
	Purity               string    `json:"purity,omitempty"`
	CategoryID           string    `json:"categoryId,omitempty"`
	Category             *Category `json:"category,omitempty"`
	Images               []string  `json:"images,omitempty"`
}

// UnmarshalJSON accepts "category" as either an id or an embedded object and
// folds a single "image" into Images.
func (p *Product) UnmarshalJSON(data []byte) error {
	type plain Product
	var aux struct {
		plain
		Category json.RawMessage `json:"category"`
		Image    string          `json:"image"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*p = Product(aux.plain)
	p.Category = nil
	if raw := bytes.TrimSpace(aux.Category); len(raw) > 0 {
		switch raw[0] {
		case '"':
			_ = json.Unmarshal(raw, &p.CategoryID)
		case '{':
			var c Category
			if err := json.Unmarshal(raw, &c); err == nil {
				p.Category = &c
				if p.CategoryID == "" {
					p.CategoryID = c.ID
				}
			}
		}
	}
	if len(p.Images) == 0 && aux.Image != "" {
		p.Images = []string{aux.Image}
	}
	return nil
}

// CartItem is one line of the backend cart. The product may arrive as a bare
// id, as an embedded object under productId, or flattened into the line.
type CartItem struct {
	ID        string   `json:"_id,omitempty"`
	ProductID string   `json:"productId"`
	Quantity  int      `json:"quantity"`
	Product   *Product `json:"product,omitempty"`
}

func (c *CartItem) UnmarshalJSON(data []byte) error {
	var aux struct {
		ID        string          `json:"_id"`
		ProductID json.RawMessage `json:"productId"`
		Quantity  *Number         `json:"quantity"`
		Qty       *Number         `json:"qty"`
		Name      string          `json:"name"`
		Price     Price           `json:"price"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*c = CartItem{ID: aux.ID}
	switch {
	case aux.Quantity != nil:
		c.Quantity = int(*aux.Quantity)
	case aux.Qty != nil:
		c.Quantity = int(*aux.Qty)
	}

	raw := bytes.TrimSpace(aux.ProductID)
	switch {
	case len(raw) > 0 && raw[0] == '"':
		if err := json.Unmarshal(raw, &c.ProductID); err != nil {
			return err
		}
	case len(raw) > 0 && raw[0] == '{':
		var p Product
		if err := json.Unmarshal(raw, &p); err != nil {
			return err
		}
		c.Product = &p
		c.ProductID = p.ID
	case aux.Name != "" || !aux.Price.IsZero():
		// populated line: the line itself is the product
		var p Product
		if err := json.Unmarshal(data, &p); err != nil {
			return err
		}
		c.Product = &p
		c.ProductID = p.ID
		c.ID = ""
	}
	return nil
}

// Cart is the authoritative cart returned by every cart endpoint.
type Cart struct {
	ID     string     `json:"_id,omitempty"`
	UserID string     `json:"userId,omitempty"`
	Items  []CartItem `json:"items"`
}

// UnmarshalJSON accepts both {items:[...]} and a bare item list.
func (c *Cart) UnmarshalJSON(data []byte) error {
	*c = Cart{}
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	if data[0] == '[' {
		return json.Unmarshal(data, &c.Items)
	}
	type plain Cart
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*c = Cart(p)
	return nil
}

type enquiryResult struct {
	Message string `json:"message"`
}
