package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/tuanvumaihuynh/product-catalog/internal/apperr"
	"github.com/tuanvumaihuynh/product-catalog/internal/model"
	"github.com/tuanvumaihuynh/product-catalog/internal/service"
)

const productLocationPrefix = "/api/products/search/product-id/"

type ProductResponse struct {
	ProductID       uuid.UUID `json:"productID"`
	ProductName     string    `json:"productName"`
	Category        string    `json:"category"`
	UnitPrice       *float64  `json:"unitPrice"`
	QuantityInStock *int      `json:"quantityInStock"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

type CreateProductRequest struct {
	ProductName     string   `json:"productName"`
	Category        string   `json:"category"`
	UnitPrice       *float64 `json:"unitPrice"`
	QuantityInStock *int     `json:"quantityInStock"`
}

type UpdateProductRequest struct {
	ProductID       string   `json:"productID"`
	ProductName     string   `json:"productName"`
	Category        string   `json:"category"`
	UnitPrice       *float64 `json:"unitPrice"`
	QuantityInStock *int     `json:"quantityInStock"`
}

type productHandler struct {
	productSvc service.ProductService
}

func newProductHandler(productSvc service.ProductService) *productHandler {
	return &productHandler{
		productSvc: productSvc,
	}
}

func (h *productHandler) ListProducts(w http.ResponseWriter, r *http.Request) error {
	products, err := h.productSvc.ListAllProducts(r.Context())
	if err != nil {
		return fmt.Errorf("product service list all products: %w", err)
	}

	items := make([]ProductResponse, 0, len(products))
	for _, product := range products {
		items = append(items, toProductResponse(product))
	}

	return writeJSON(w, http.StatusOK, items)
}

func (h *productHandler) GetProductByID(w http.ResponseWriter, r *http.Request) error {
	id, err := productIDParam(r)
	if err != nil {
		return err
	}

	product, err := h.productSvc.GetProductByID(r.Context(), id)
	if err != nil {
		return fmt.Errorf("product service get product by id: %w", err)
	}

	return writeJSON(w, http.StatusOK, toProductResponse(product))
}

func (h *productHandler) CreateProduct(w http.ResponseWriter, r *http.Request) error {
	var req CreateProductRequest
	if err := decodeJSONBody(r, &req); err != nil {
		return err
	}

	product, err := h.productSvc.CreateProduct(r.Context(), service.CreateProductParams{
		Name:            req.ProductName,
		Category:        model.Category(req.Category),
		UnitPrice:       req.UnitPrice,
		QuantityInStock: req.QuantityInStock,
	})
	if err != nil {
		return fmt.Errorf("product service create product: %w", err)
	}

	w.Header().Set("Location", productLocationPrefix+product.ID.String())
	return writeJSON(w, http.StatusCreated, toProductResponse(product))
}

func (h *productHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) error {
	var req UpdateProductRequest
	if err := decodeJSONBody(r, &req); err != nil {
		return err
	}

	product, err := h.productSvc.UpdateProduct(r.Context(), &service.UpdateProductParams{
		ProductID:       req.ProductID,
		Name:            req.ProductName,
		Category:        model.Category(req.Category),
		UnitPrice:       req.UnitPrice,
		QuantityInStock: req.QuantityInStock,
	})
	if err != nil {
		return fmt.Errorf("product service update product: %w", err)
	}
	if product == nil {
		return apperr.ProductUpdateFailedErr
	}

	return writeJSON(w, http.StatusOK, toProductResponse(*product))
}

func (h *productHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) error {
	id, err := productIDParam(r)
	if err != nil {
		return err
	}

	if err := h.productSvc.DeleteProduct(r.Context(), id); err != nil {
		return fmt.Errorf("product service delete product: %w", err)
	}

	w.WriteHeader(http.StatusNoContent)
	return nil
}

func productIDParam(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "productID"))
	if err != nil {
		return uuid.Nil, apperr.ValidationErr.WrapParent(fmt.Errorf("invalid product id: %w", err))
	}
	return id, nil
}

func decodeJSONBody(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return apperr.ValidationErr.WrapParent(errors.New("request body is empty"))
		}
		return apperr.ValidationErr.WrapParent(fmt.Errorf("invalid request body: %w", err))
	}

	return nil
}

func toProductResponse(product model.Product) ProductResponse {
	return ProductResponse{
		ProductID:       product.ID,
		ProductName:     product.Name,
		Category:        string(product.Category),
		UnitPrice:       product.UnitPrice,
		QuantityInStock: product.QuantityInStock,
		CreatedAt:       product.CreatedAt,
		UpdatedAt:       product.UpdatedAt,
	}
}
