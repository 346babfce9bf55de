package apperr

import (
	"errors"

	"github.com/tuanvumaihuynh/product-catalog/pkg/zerror"
)

const (
	ValidationErrorCode     = "VALIDATION_FAILED"
	InvalidProductIDCode    = "INVALID_PRODUCT_ID"
	ProductNotFoundCode     = "PRODUCT_NOT_FOUND"
	ProductUpdateFailedCode = "PRODUCT_UPDATE_FAILED"
)

// ErrNilParams is returned when an operation receives no request at all.
var ErrNilParams = errors.New("nil params")

var (
	ValidationErr          = zerror.NewValidationFailed(ValidationErrorCode, "validation error")
	InvalidProductIDErr    = zerror.NewBadRequest(InvalidProductIDCode, "product id does not match any product")
	ProductNotFoundErr     = zerror.NewNotFound(ProductNotFoundCode, "product not found")
	ProductUpdateFailedErr = zerror.NewInternalServerError(ProductUpdateFailedCode, "product could not be updated")
)
