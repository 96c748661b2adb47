package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
)

var (
	errUnauthorized   = echo.NewHTTPError(http.StatusUnauthorized, "user not authenticated")
	errRefreshExpired = echo.NewHTTPError(http.StatusForbidden, "refresh has expired")
)

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		var message interface{}

		var (
			httpErr   *echo.HTTPError
			fieldErrs validator.ValidationErrors
			validErr  *core.ValidationError
			authErr   *core.AuthorizationError
			notFound  *core.NotFoundError
			upstream  *core.UpstreamError
		)

		switch {
		case errors.Cause(err) == core.ErrUnauthenticated:
			code = http.StatusUnauthorized
			message = err.Error()
		case errors.As(err, &httpErr):
			if httpErr == middleware.ErrJWTMissing {
				code = http.StatusUnauthorized
				message = httpErr.Message
				break
			}
			if httpErr.Internal != nil {
				if herr, ok := httpErr.Internal.(*echo.HTTPError); ok {
					httpErr = herr
				}
			}
			code = httpErr.Code
			message = httpErr.Message
		case errors.As(err, &fieldErrs):
			fldErrs := make(map[string]string, len(fieldErrs))
			for _, vErr := range fieldErrs {
				fldErrs[vErr.Field()] = vErr.Translate(translator)
			}
			code = http.StatusBadRequest
			message = fldErrs
		case errors.As(err, &validErr):
			if validErr.Fields != nil {
				fldErrs := make(map[string]string, len(validErr.Fields))
				for _, fErr := range validErr.Fields {
					fldErrs[fErr.Field] = fErr.Error
				}
				message = fldErrs
			} else {
				message = validErr.Error()
			}
			code = http.StatusBadRequest
		case errors.As(err, &authErr):
			code = http.StatusForbidden
			message = authErr.Error()
		case errors.As(err, &notFound):
			code = http.StatusNotFound
			message = notFound.Error()
		case errors.As(err, &upstream):
			code = http.StatusServiceUnavailable
			message = http.StatusText(code)
			logger.Error(upstream.Error(), append([]interface{}{err}, contextPrincipal(ctx)...)...)
		default: // any other error is a server error
			code = http.StatusInternalServerError
			msg := http.StatusText(http.StatusInternalServerError)
			message = msg
			logger.Error(msg, append([]interface{}{errors.Wrap(err, msg)}, contextPrincipal(ctx)...)...)

			// shutting down...
			if core.IsShutdown(err) {
				signalShutdown()
			}
		}

		if ctx.Echo().Debug {
			message = err.Error()
		}
		if m, ok := message.(string); ok {
			message = echo.Map{"error": m}
		}

		// Send response
		if !ctx.Response().Committed {
			if ctx.Request().Method == http.MethodHead { // Issue #608
				err = ctx.NoContent(code)
			} else {
				err = ctx.JSON(code, message)
			}
			if err != nil {
				ctx.Echo().Logger.Error(err)
			}
		}
	}
}

// contextPrincipal returns the logger args identifying the caller, if any.
func contextPrincipal(ctx echo.Context) []interface{} {
	if p := getContextPrincipal(ctx); p != nil {
		return []interface{}{*p}
	}
	return nil
}
