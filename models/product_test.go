package models_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goflare.io/gomarket/models"
	"goflare.io/gomarket/models/enum"
)

func TestUnmarshalProduct(t *testing.T) {
	product, err := models.UnmarshalProduct(`{"id":"A","title":"T","image_url":"u","price":10,"quantity":2}`)
	require.NoError(t, err)
	assert.Equal(t, models.Product{ID: "A", Title: "T", ImageURL: "u", Price: 10, Quantity: 2}, *product)
}

func TestUnmarshalProduct_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  error
	}{
		{name: "missing id", value: `{"title":"T","quantity":1}`, want: models.ErrProductIDRequired},
		{name: "zero quantity", value: `{"id":"A","quantity":0}`, want: models.ErrQuantityInvalid},
		{name: "absent quantity", value: `{"id":"A"}`, want: models.ErrQuantityInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := models.UnmarshalProduct(tt.value)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	_, err := models.UnmarshalProduct("{not json")
	assert.Error(t, err)

	_, err = models.UnmarshalProduct(`{"id":"A","quantity":-1}`)
	assert.Error(t, err)
}

func TestProductSubtotal(t *testing.T) {
	p := models.Product{ID: "A", Price: 2.5, Quantity: 4}
	assert.InDelta(t, 10.0, p.Subtotal(), 1e-9)
}

func TestNewCartEvent(t *testing.T) {
	p := models.Product{ID: "A", Title: "T", Quantity: 3}

	added := models.NewCartEvent(enum.CartEventTypeProductAdded, p)
	assert.NotEmpty(t, added.ID)
	assert.Equal(t, "A", added.ProductID)
	assert.Equal(t, uint64(3), added.Quantity)
	require.NotNil(t, added.Product)
	assert.Equal(t, p, *added.Product)

	removed := models.NewCartEvent(enum.CartEventTypeProductRemoved, models.Product{ID: "A"})
	assert.Nil(t, removed.Product)
	assert.Equal(t, uint64(0), removed.Quantity)

	assert.NotEqual(t, added.ID, removed.ID)
	assert.True(t, enum.CartEventTypeCartCleared.Valid())
	assert.False(t, enum.CartEventType("bogus").Valid())
}
