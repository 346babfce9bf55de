package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/tuanvumaihuynh/product-catalog/pkg/correlationid"
)

// CorrelationID reuses the caller's X-Correlation-ID or generates one, stores it in the
// request context and echoes it on the response.
func CorrelationID() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(correlationid.Header)
			if id == "" {
				id = uuid.NewString()
			}

			w.Header().Set(correlationid.Header, id)
			ctx := correlationid.NewContext(r.Context(), id)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
