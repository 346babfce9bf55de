package repository

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/tuanvumaihuynh/product-catalog/internal/model"
	"github.com/tuanvumaihuynh/product-catalog/internal/storage/db"
)

// ProductRepository persists catalog products.
//
// Lookups and updates report a missing product as a nil result, never as an error;
// errors are reserved for storage faults.
type ProductRepository interface {
	WithDB(db db.DB) ProductRepository
	CreateProduct(ctx context.Context, product model.Product) error
	ListAllProducts(ctx context.Context) ([]model.Product, error)
	GetProductByID(ctx context.Context, id uuid.UUID) (*model.Product, error)
	UpdateProduct(ctx context.Context, product model.Product) (*model.Product, error)
	DeleteProduct(ctx context.Context, id uuid.UUID) (bool, error)
}

type productRepository struct {
	db db.DB
}

func NewProductRepository(db db.DB) ProductRepository {
	return &productRepository{
		db: db,
	}
}

func (r productRepository) WithDB(db db.DB) ProductRepository {
	return &productRepository{
		db: db,
	}
}

const productColumns = `id, name, category, unit_price, quantity_in_stock, created_at, updated_at`

type productRow struct {
	ID              uuid.UUID      `db:"id"`
	Name            string         `db:"name"`
	Category        string         `db:"category"`
	UnitPrice       pgtype.Numeric `db:"unit_price"`
	QuantityInStock pgtype.Int4    `db:"quantity_in_stock"`
	CreatedAt       time.Time      `db:"created_at"`
	UpdatedAt       time.Time      `db:"updated_at"`
}

func (r productRepository) CreateProduct(ctx context.Context, product model.Product) error {
	args, err := productNamedArgs(product)
	if err != nil {
		return err
	}

	if _, err := r.db.Exec(ctx, `
		INSERT INTO products (`+productColumns+`)
		VALUES (@id, @name, @category, @unit_price, @quantity_in_stock, @created_at, @updated_at)
	`, args); err != nil {
		return fmt.Errorf("create product: %w", err)
	}

	return nil
}

func (r productRepository) ListAllProducts(ctx context.Context) ([]model.Product, error) {
	rows, err := r.db.Query(ctx, `SELECT `+productColumns+` FROM products ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list all products: %w", err)
	}

	productRows, err := pgx.CollectRows(rows, pgx.RowToStructByName[productRow])
	if err != nil {
		return nil, fmt.Errorf("collect product rows: %w", err)
	}

	modelProducts := make([]model.Product, 0, len(productRows))
	for _, row := range productRows {
		modelProduct, err := productRowToModelProduct(row)
		if err != nil {
			return nil, fmt.Errorf("convert product to model product: %w", err)
		}
		modelProducts = append(modelProducts, modelProduct)
	}

	return modelProducts, nil
}

func (r productRepository) GetProductByID(ctx context.Context, id uuid.UUID) (*model.Product, error) {
	rows, err := r.db.Query(ctx, `SELECT `+productColumns+` FROM products WHERE id = @id`, pgx.NamedArgs{
		"id": id,
	})
	if err != nil {
		return nil, fmt.Errorf("get product by id: %w", err)
	}

	return collectOptionalProduct(rows)
}

func (r productRepository) UpdateProduct(ctx context.Context, product model.Product) (*model.Product, error) {
	args, err := productNamedArgs(product)
	if err != nil {
		return nil, err
	}

	rows, err := r.db.Query(ctx, `
		UPDATE products
		SET
			name              = @name,
			category          = @category,
			unit_price        = @unit_price,
			quantity_in_stock = @quantity_in_stock,
			updated_at        = @updated_at
		WHERE id = @id
		RETURNING `+productColumns, args)
	if err != nil {
		return nil, fmt.Errorf("update product: %w", err)
	}

	return collectOptionalProduct(rows)
}

func (r productRepository) DeleteProduct(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM products WHERE id = @id`, pgx.NamedArgs{
		"id": id,
	})
	if err != nil {
		return false, fmt.Errorf("delete product: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}

func collectOptionalProduct(rows pgx.Rows) (*model.Product, error) {
	row, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[productRow])
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("collect product row: %w", err)
	}

	product, err := productRowToModelProduct(row)
	if err != nil {
		return nil, fmt.Errorf("convert product to model product: %w", err)
	}

	return &product, nil
}

func productNamedArgs(product model.Product) (pgx.NamedArgs, error) {
	var price pgtype.Numeric
	if product.UnitPrice != nil {
		if err := price.Scan(fmt.Sprintf("%f", *product.UnitPrice)); err != nil {
			return nil, fmt.Errorf("scan price: %w", err)
		}
	}

	var quantity pgtype.Int4
	if product.QuantityInStock != nil {
		q := *product.QuantityInStock
		if q > math.MaxInt32 || q < math.MinInt32 {
			return nil, fmt.Errorf("quantity in stock out of range: %d", q)
		}
		quantity = pgtype.Int4{Int32: int32(q), Valid: true}
	}

	return pgx.NamedArgs{
		"id":                product.ID,
		"name":              product.Name,
		"category":          string(product.Category),
		"unit_price":        price,
		"quantity_in_stock": quantity,
		"created_at":        product.CreatedAt,
		"updated_at":        product.UpdatedAt,
	}, nil
}

func productRowToModelProduct(row productRow) (model.Product, error) {
	product := model.Product{
		ID:        row.ID,
		Name:      row.Name,
		Category:  model.Category(row.Category),
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}

	if row.UnitPrice.Valid {
		price, err := row.UnitPrice.Float64Value()
		if err != nil {
			return model.Product{}, fmt.Errorf("convert price to float64: %w", err)
		}
		product.UnitPrice = &price.Float64
	}

	if row.QuantityInStock.Valid {
		quantity := int(row.QuantityInStock.Int32)
		product.QuantityInStock = &quantity
	}

	return product, nil
}
