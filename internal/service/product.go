package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tuanvumaihuynh/product-catalog/internal/apperr"
	"github.com/tuanvumaihuynh/product-catalog/internal/event"
	"github.com/tuanvumaihuynh/product-catalog/internal/model"
	"github.com/tuanvumaihuynh/product-catalog/internal/repository"
	"github.com/tuanvumaihuynh/product-catalog/internal/storage/db"
	"github.com/tuanvumaihuynh/product-catalog/internal/storage/mq"
	"github.com/tuanvumaihuynh/product-catalog/pkg/validator"
)

// Upper bounds follow the products table: VARCHAR(255) name, NUMERIC(18,2) price and
// INTEGER quantity. Validation errors name fields by their json tag.
type CreateProductParams struct {
	Name            string         `json:"productName" validate:"required,max=255"`
	Category        model.Category `json:"category" validate:"enum"`
	UnitPrice       *float64       `json:"unitPrice" validate:"omitempty,gte=0,lt=10000000000000000"`
	QuantityInStock *int           `json:"quantityInStock" validate:"omitempty,gte=0,lte=2147483647"`
}

// UpdateProductParams carries the identity of the product and every mutable field.
// Fields left nil are cleared.
type UpdateProductParams struct {
	ProductID       string         `json:"productID" validate:"required,uuid"`
	Name            string         `json:"productName" validate:"required,max=255"`
	Category        model.Category `json:"category" validate:"enum"`
	UnitPrice       *float64       `json:"unitPrice" validate:"omitempty,gte=0,lt=10000000000000000"`
	QuantityInStock *int           `json:"quantityInStock" validate:"omitempty,gte=0,lte=2147483647"`
}

type ProductService interface {
	CreateProduct(ctx context.Context, params CreateProductParams) (model.Product, error)
	GetProductByID(ctx context.Context, id uuid.UUID) (model.Product, error)
	ListAllProducts(ctx context.Context) ([]model.Product, error)
	// UpdateProduct returns a nil product and a nil error when the product was deleted
	// between being loaded and being written.
	UpdateProduct(ctx context.Context, params *UpdateProductParams) (*model.Product, error)
	DeleteProduct(ctx context.Context, id uuid.UUID) error
}

type productService struct {
	db          db.DB
	validator   validator.Validator
	productRepo repository.ProductRepository
	publisher   mq.Publisher

	nameUpdateRoutingKey string
}

func NewProductService(
	db db.DB,
	validator validator.Validator,
	productRepo repository.ProductRepository,
	publisher mq.Publisher,
	nameUpdateRoutingKey string,
) ProductService {
	return &productService{
		db:                   db,
		validator:            validator,
		productRepo:          productRepo,
		publisher:            publisher,
		nameUpdateRoutingKey: nameUpdateRoutingKey,
	}
}

func (s *productService) CreateProduct(ctx context.Context, params CreateProductParams) (model.Product, error) {
	if err := s.validator.Validate(params); err != nil {
		return model.Product{}, fmt.Errorf("validate params: %w", err)
	}

	id, err := uuid.NewV7()
	if err != nil {
		return model.Product{}, fmt.Errorf("generate uuid v7: %w", err)
	}

	now := time.Now()
	product := model.Product{
		ID:              id,
		Name:            params.Name,
		Category:        params.Category,
		UnitPrice:       params.UnitPrice,
		QuantityInStock: params.QuantityInStock,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.productRepo.CreateProduct(ctx, product); err != nil {
		return model.Product{}, fmt.Errorf("product repository create product: %w", err)
	}

	return product, nil
}

func (s *productService) GetProductByID(ctx context.Context, id uuid.UUID) (model.Product, error) {
	product, err := s.productRepo.GetProductByID(ctx, id)
	if err != nil {
		return model.Product{}, fmt.Errorf("product repository get product by id: %w", err)
	}
	if product == nil {
		return model.Product{}, apperr.ProductNotFoundErr
	}

	return *product, nil
}

func (s *productService) ListAllProducts(ctx context.Context) ([]model.Product, error) {
	products, err := s.productRepo.ListAllProducts(ctx)
	if err != nil {
		return nil, fmt.Errorf("product repository list all products: %w", err)
	}

	return products, nil
}

func (s *productService) UpdateProduct(ctx context.Context, params *UpdateProductParams) (*model.Product, error) {
	if params == nil {
		return nil, apperr.ErrNilParams
	}

	if err := s.validator.Validate(params); err != nil {
		return nil, fmt.Errorf("validate params: %w", err)
	}

	id, err := uuid.Parse(params.ProductID)
	if err != nil {
		return nil, apperr.InvalidProductIDErr.WrapParent(err)
	}

	var (
		existing    *model.Product
		updated     *model.Product
		nameChanged bool
	)
	if err := s.db.WithTx(ctx, func(db db.DB) error {
		productRepo := s.productRepo.WithDB(db)

		var err error
		existing, err = productRepo.GetProductByID(ctx, id)
		if err != nil {
			return fmt.Errorf("product repository get product by id: %w", err)
		}
		if existing == nil {
			return apperr.InvalidProductIDErr
		}

		product := model.Product{
			ID:              existing.ID,
			Name:            params.Name,
			Category:        params.Category,
			UnitPrice:       params.UnitPrice,
			QuantityInStock: params.QuantityInStock,
			CreatedAt:       existing.CreatedAt,
			UpdatedAt:       time.Now(),
		}

		// Compared against the stored value, before it is overwritten.
		nameChanged = existing.Name != product.Name

		updated, err = productRepo.UpdateProduct(ctx, product)
		if err != nil {
			return fmt.Errorf("product repository update product: %w", err)
		}

		return nil
	}); err != nil {
		return nil, fmt.Errorf("db with tx: %w", err)
	}

	if updated == nil {
		return nil, nil
	}

	if nameChanged {
		// The update is committed; a cancelled request must not drop the notification.
		s.publisher.Publish(context.WithoutCancel(ctx), s.nameUpdateRoutingKey, event.ProductNameUpdatedEvent{
			ProductID: existing.ID.String(),
			NewName:   updated.Name,
		})
	}

	return updated, nil
}

func (s *productService) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	deleted, err := s.productRepo.DeleteProduct(ctx, id)
	if err != nil {
		return fmt.Errorf("product repository delete product: %w", err)
	}
	if !deleted {
		return apperr.ProductNotFoundErr
	}

	return nil
}
