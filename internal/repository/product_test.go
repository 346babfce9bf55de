package repository

import (
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tuanvumaihuynh/product-catalog/internal/model"
	"github.com/tuanvumaihuynh/product-catalog/pkg/ptr"
)

func TestProductNamedArgs(t *testing.T) {
	now := time.Now()
	id := uuid.New()

	t.Run("Should map optional fields to valid pg values", func(t *testing.T) {
		args, err := productNamedArgs(model.Product{
			ID:              id,
			Name:            "Laptop",
			Category:        model.CategoryElectronics,
			UnitPrice:       ptr.New(1299.5),
			QuantityInStock: ptr.New(3),
			CreatedAt:       now,
			UpdatedAt:       now,
		})
		require.NoError(t, err)

		assert.Equal(t, id, args["id"])
		assert.Equal(t, "Electronics", args["category"])

		price := args["unit_price"].(pgtype.Numeric)
		assert.True(t, price.Valid)
		f, err := price.Float64Value()
		require.NoError(t, err)
		assert.InDelta(t, 1299.5, f.Float64, 0.0001)

		assert.Equal(t, pgtype.Int4{Int32: 3, Valid: true}, args["quantity_in_stock"])
	})

	t.Run("Should map missing optional fields to NULL", func(t *testing.T) {
		args, err := productNamedArgs(model.Product{ID: id, Name: "Chair", Category: model.CategoryFurniture})
		require.NoError(t, err)

		assert.False(t, args["unit_price"].(pgtype.Numeric).Valid)
		assert.False(t, args["quantity_in_stock"].(pgtype.Int4).Valid)
	})

	t.Run("Should reject quantity outside int32", func(t *testing.T) {
		_, err := productNamedArgs(model.Product{ID: id, QuantityInStock: ptr.New(math.MaxInt32 + 1)})
		assert.ErrorContains(t, err, "quantity in stock out of range")
	})
}

func TestProductRowToModelProduct(t *testing.T) {
	var price pgtype.Numeric
	require.NoError(t, price.Scan("10.25"))

	row := productRow{
		ID:              uuid.New(),
		Name:            "Lamp",
		Category:        "HomeAppliances",
		UnitPrice:       price,
		QuantityInStock: pgtype.Int4{Int32: 7, Valid: true},
	}

	product, err := productRowToModelProduct(row)
	require.NoError(t, err)
	assert.Equal(t, model.CategoryHomeAppliances, product.Category)
	require.NotNil(t, product.UnitPrice)
	assert.InDelta(t, 10.25, *product.UnitPrice, 0.0001)
	require.NotNil(t, product.QuantityInStock)
	assert.Equal(t, 7, *product.QuantityInStock)

	row.UnitPrice = pgtype.Numeric{}
	row.QuantityInStock = pgtype.Int4{}
	product, err = productRowToModelProduct(row)
	require.NoError(t, err)
	assert.Nil(t, product.UnitPrice)
	assert.Nil(t, product.QuantityInStock)
}
