package apierr

import (
	"errors"
	"net/http"

	govalidator "github.com/go-playground/validator/v10"

	"github.com/tuanvumaihuynh/product-catalog/pkg/validator"
	"github.com/tuanvumaihuynh/product-catalog/pkg/zerror"
)

const (
	internalServerErrorCode = "internalServerError"
	validationErrorCode     = "validationError"
)

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ErrorResponse is the error response for the API.
type ErrorResponse struct {
	Code    string        `json:"code"`
	Message string        `json:"message"`
	Details *[]FieldError `json:"details,omitempty"`

	// StatusCode is the status code for the error response.
	StatusCode int `json:"-"`
}

var InternalServerErr = ErrorResponse{
	Code:       internalServerErrorCode,
	Message:    "an unknown error occurred",
	StatusCode: http.StatusInternalServerError,
}

// New converts err into the response body sent to clients. Validation errors list every
// failed field, zerror values keep their code and message, anything else is hidden behind
// InternalServerErr.
func New(err error) ErrorResponse {
	var validationErrs govalidator.ValidationErrors
	if errors.As(err, &validationErrs) {
		details := make([]FieldError, len(validationErrs))
		for i, fe := range validationErrs {
			details[i] = FieldError{
				Field:   fe.Field(),
				Message: validator.ValidationErrorMessage(fe),
			}
		}

		return ErrorResponse{
			Code:       validationErrorCode,
			Message:    "validation error",
			Details:    &details,
			StatusCode: http.StatusBadRequest,
		}
	}

	var zErr zerror.ZError
	if errors.As(err, &zErr) {
		res := ErrorResponse{
			Code:       zErr.Code(),
			Message:    zErr.Msg(),
			StatusCode: HTTPStatus(zErr.Status()),
		}
		// Request decoding failures carry the decoder message as parent.
		if zErr.Status() == zerror.StatusValidationFailed && zErr.Parent() != nil {
			res.Code = validationErrorCode
			res.Message = zErr.Parent().Error()
		}
		return res
	}

	return InternalServerErr
}

var httpStatuses = map[zerror.Status]int{
	zerror.StatusUnauthorized:        http.StatusUnauthorized,
	zerror.StatusForbidden:           http.StatusForbidden,
	zerror.StatusNotFound:            http.StatusNotFound,
	zerror.StatusUnprocessableEntity: http.StatusUnprocessableEntity,
	zerror.StatusConflict:            http.StatusConflict,
	zerror.StatusTooManyRequests:     http.StatusTooManyRequests,
	zerror.StatusBadRequest:          http.StatusBadRequest,
	zerror.StatusValidationFailed:    http.StatusBadRequest,
	zerror.StatusTimeout:             http.StatusGatewayTimeout,
	zerror.StatusNotImplemented:      http.StatusNotImplemented,
	zerror.StatusBadGateway:          http.StatusBadGateway,
	zerror.StatusServiceUnavailable:  http.StatusServiceUnavailable,
}

// HTTPStatus maps a zerror status to an HTTP status code. Unknown statuses map to 500.
func HTTPStatus(status zerror.Status) int {
	if code, ok := httpStatuses[status]; ok {
		return code
	}
	return http.StatusInternalServerError
}
