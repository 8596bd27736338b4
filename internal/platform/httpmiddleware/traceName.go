package httpmiddleware

import (
	"go.opentelemetry.io/otel/trace"

	"ixurl.local/gee"
)

// TraceName renames the otelhttp server span to "METHOD /route/:pattern" once
// the router has matched.
func TraceName() gee.HandlerFunc {
	return func(ctx *gee.Context) {
		ctx.Next()
		if ctx.RoutePattern == "" {
			return
		}
		span := trace.SpanFromContext(ctx.Req.Context())
		span.SetName(ctx.Method + " " + ctx.RoutePattern)
	}
}
