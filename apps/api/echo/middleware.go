package echoapi

import (
	"strconv"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/trezcool/academia/apps/api/echo")

// tracingMiddleware opens one server span per request, named after the matched route.
func tracingMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			req := ctx.Request()
			reqCtx, span := tracer.Start(req.Context(), req.Method+" "+ctx.Path(), trace.WithSpanKind(trace.SpanKindServer))
			defer span.End()
			ctx.SetRequest(req.WithContext(reqCtx))

			err := next(ctx)
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
				// let the error handler write the response so its status is recorded
				ctx.Error(err)
			}
			span.SetAttributes(
				attribute.String("http.route", ctx.Path()),
				attribute.Int("http.response.status_code", ctx.Response().Status),
				attribute.String("http.request.method", req.Method),
				attribute.String("url.path", req.URL.Path),
			)
			if p := getContextPrincipal(ctx); p != nil {
				span.SetAttributes(attribute.String("enduser.id", strconv.FormatInt(p.ID, 10)))
			}
			return nil
		}
	}
}
