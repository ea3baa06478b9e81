package models

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Product 代表購物車中的單個商品項目
type Product struct {
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	ImageURL string  `json:"image_url"`
	Price    float64 `json:"price"`
	Quantity uint64  `json:"quantity"`
}

var (
	ErrProductIDRequired = errors.New("product id is required")
	ErrQuantityInvalid   = errors.New("product quantity must be greater than zero")
)

func NewProduct() *Product {
	return new(Product)
}

// Subtotal returns price times quantity in the product's currency unit.
func (p Product) Subtotal() float64 {
	return p.Price * float64(p.Quantity)
}

// Validate checks the invariants of a stored cart entry.
func (p Product) Validate() error {
	if p.ID == "" {
		return ErrProductIDRequired
	}
	if p.Quantity == 0 {
		return ErrQuantityInvalid
	}
	return nil
}

func (p Product) Marshal() (string, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("marshal product %s: %w", p.ID, err)
	}
	return string(data), nil
}

// UnmarshalProduct parses a persisted record and validates it.
func UnmarshalProduct(value string) (*Product, error) {
	product := NewProduct()
	if err := json.Unmarshal([]byte(value), product); err != nil {
		return nil, fmt.Errorf("unmarshal product: %w", err)
	}
	if err := product.Validate(); err != nil {
		return nil, err
	}
	return product, nil
}
