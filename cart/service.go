package cart

import (
	"context"

	"goflare.io/gomarket/models"
)

// Service is what the rest of the application sees of the cart.
type Service interface {
	Products() []models.Product
	AddToCart(ctx context.Context, product models.Product) error
	Increment(ctx context.Context, id string) error
	Decrement(ctx context.Context, id string) error
}

var _ Service = (*Store)(nil)
