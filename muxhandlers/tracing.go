package muxhandlers

import (
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/vitalvas/flacon/mux"
)

// tracerName is the instrumentation scope of spans started by
// TracingMiddleware.
const tracerName = "github.com/vitalvas/flacon/muxhandlers"

// TracingConfig configures the Tracing middleware behaviour.
type TracingConfig struct {
	// TracerProvider creates the tracer. Defaults to the global provider.
	TracerProvider trace.TracerProvider

	// Propagator extracts the parent span context from request headers.
	// Defaults to the global propagator.
	Propagator propagation.TextMapPropagator
}

// TracingMiddleware returns a middleware that starts one server span per
// dispatch. The span is named "METHOD pattern" for matched requests and
// "METHOD" for fallbacks, so unmatched paths never inflate span names.
// Responses with a 5xx status mark the span as failed.
//
// The span context replaces the request context, so handlers that call
// c.Context() continue the trace.
func TracingMiddleware(cfg TracingConfig) mux.MiddlewareFunc {
	provider := cfg.TracerProvider
	if provider == nil {
		provider = otel.GetTracerProvider()
	}

	propagator := cfg.Propagator
	if propagator == nil {
		propagator = otel.GetTextMapPropagator()
	}

	tracer := provider.Tracer(tracerName)

	return func(next mux.HandlerFunc) mux.HandlerFunc {
		return func(c *mux.Context) (any, error) {
			ctx := propagator.Extract(c.Context(), propagation.HeaderCarrier(c.Header()))

			name := c.Method()
			attrs := []attribute.KeyValue{
				attribute.String("http.request.method", c.Method()),
				attribute.String("url.path", c.Path()),
				attribute.String("flacon.app", c.App().Name()),
			}

			if rule := c.Rule(); rule != nil {
				name += " " + rule.Pattern()
				attrs = append(attrs,
					attribute.String("http.route", rule.Pattern()),
					attribute.String("flacon.endpoint", rule.Endpoint()),
				)
			}

			ctx, span := tracer.Start(ctx, name,
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(attrs...),
			)
			defer span.End()

			c.SetContext(ctx)

			resp := c.Respond(next)
			status := resp.StatusCode()

			span.SetAttributes(attribute.Int("http.response.status_code", status))
			if status >= http.StatusInternalServerError {
				span.SetStatus(codes.Error, http.StatusText(status))
			}

			return resp, nil
		}
	}
}
