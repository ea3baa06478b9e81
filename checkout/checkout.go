// Package checkout turns a cart snapshot into totals and Stripe Checkout session parameters.
package checkout

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v79"

	"goflare.io/gomarket/models"
)

var ErrEmptyCart = errors.New("checkout: cart is empty")

// zeroDecimalCurrencies are charged in whole units by Stripe.
var zeroDecimalCurrencies = map[stripe.Currency]bool{
	"bif": true, "clp": true, "djf": true, "gnf": true, "jpy": true, "kmf": true,
	"krw": true, "mga": true, "pyg": true, "rwf": true, "ugx": true, "vnd": true,
	"vuv": true, "xaf": true, "xof": true, "xpf": true,
}

// Line is one product of the summary.
type Line struct {
	ProductID string
	Title     string
	Quantity  uint64
	UnitPrice decimal.Decimal
	Subtotal  decimal.Decimal
}

type Summary struct {
	Lines    []Line
	Quantity uint64
	Total    decimal.Decimal
	Currency stripe.Currency
}

func normalize(currency stripe.Currency) stripe.Currency {
	return stripe.Currency(strings.ToLower(string(currency)))
}

// Summarize totals the cart in currency.
func Summarize(products []models.Product, currency stripe.Currency) Summary {
	summary := Summary{
		Lines:    make([]Line, 0, len(products)),
		Total:    decimal.Zero,
		Currency: normalize(currency),
	}
	for _, p := range products {
		unit := decimal.NewFromFloat(p.Price)
		subtotal := unit.Mul(decimal.NewFromInt(int64(p.Quantity)))
		summary.Lines = append(summary.Lines, Line{
			ProductID: p.ID,
			Title:     p.Title,
			Quantity:  p.Quantity,
			UnitPrice: unit,
			Subtotal:  subtotal,
		})
		summary.Quantity += p.Quantity
		summary.Total = summary.Total.Add(subtotal)
	}
	return summary
}

// UnitAmount converts a price to the smallest currency unit Stripe expects.
func UnitAmount(price float64, currency stripe.Currency) int64 {
	amount := decimal.NewFromFloat(price)
	if !zeroDecimalCurrencies[normalize(currency)] {
		amount = amount.Shift(2)
	}
	return amount.Round(0).IntPart()
}

// LineItems builds one Checkout line item per product with inline price data.
func LineItems(products []models.Product, currency stripe.Currency) ([]*stripe.CheckoutSessionLineItemParams, error) {
	if len(products) == 0 {
		return nil, ErrEmptyCart
	}

	currency = normalize(currency)
	items := make([]*stripe.CheckoutSessionLineItemParams, 0, len(products))
	for _, p := range products {
		productData := &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
			Name:     stripe.String(p.Title),
			Metadata: map[string]string{"product_id": p.ID},
		}
		if p.ImageURL != "" {
			productData.Images = stripe.StringSlice([]string{p.ImageURL})
		}

		items = append(items, &stripe.CheckoutSessionLineItemParams{
			Quantity: stripe.Int64(int64(p.Quantity)),
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:    stripe.String(string(currency)),
				UnitAmount:  stripe.Int64(UnitAmount(p.Price, currency)),
				ProductData: productData,
			},
		})
	}
	return items, nil
}

// SessionParams returns the parameters of a one-off payment Checkout session for the cart.
func SessionParams(products []models.Product, currency stripe.Currency, successURL, cancelURL string) (*stripe.CheckoutSessionParams, error) {
	items, err := LineItems(products, currency)
	if err != nil {
		return nil, err
	}

	return &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems:  items,
		SuccessURL: stripe.String(successURL),
		CancelURL:  stripe.String(cancelURL),
	}, nil
}
