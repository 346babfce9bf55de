package middleware

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.9.0"
	"go.opentelemetry.io/otel/trace"
)

const unknownRoute = "<unknown>"

// Trace starts a server span per request, continuing any trace found in the incoming
// headers. The span is renamed after routing, once chi knows the matched pattern.
func Trace(tracer trace.Tracer) func(http.Handler) http.Handler {
	propagator := otel.GetTextMapPropagator

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isOperationalPath(r) {
				next.ServeHTTP(w, r)
				return
			}

			ctx := propagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
			ctx, span := tracer.Start(ctx, r.Method,
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(requestAttributes(r)...),
			)
			defer span.End()

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			route := routePattern(r.WithContext(ctx))
			span.SetName(r.Method + " " + route)
			span.SetAttributes(
				semconv.HTTPRouteKey.String(route),
				semconv.HTTPStatusCodeKey.Int(ww.Status()),
			)
			if ww.Status() >= http.StatusInternalServerError {
				span.SetStatus(codes.Error, http.StatusText(ww.Status()))
			}
		})
	}
}

func requestAttributes(r *http.Request) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		semconv.HTTPMethodKey.String(r.Method),
		semconv.HTTPURLKey.String(r.RequestURI),
	}
	if ua := r.UserAgent(); ua != "" {
		attrs = append(attrs, semconv.HTTPUserAgentKey.String(ua))
	}
	return attrs
}

// routePattern returns the chi pattern matched for r, or unknownRoute before routing.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return unknownRoute
}

// skipPaths are not traced, logged or counted per route.
var skipPaths = map[string]struct{}{
	"/healthz":          {},
	"/metrics":          {},
	"/docs":             {},
	"/docs/openapi.yml": {},
}

func isOperationalPath(r *http.Request) bool {
	_, ok := skipPaths[r.URL.Path]
	return ok
}
