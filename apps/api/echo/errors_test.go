package echoapi

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/user"
)

type spyLogger struct {
	errors []string
	args   [][]interface{}
}

func (l *spyLogger) Debug(string, ...interface{}) {}
func (l *spyLogger) Info(string, ...interface{})  {}
func (l *spyLogger) Warn(string, ...interface{})  {}
func (l *spyLogger) Fatal(string, ...interface{}) {}

func (l *spyLogger) Error(msg string, args ...interface{}) {
	l.errors = append(l.errors, msg)
	l.args = append(l.args, args)
}

func TestAppHTTPErrorHandler(t *testing.T) {
	validate, translator := core.NewValidator()
	type login struct {
		Email string `json:"email" validate:"required,email"`
	}
	fieldErrs := validate.Struct(login{})

	tests := []struct {
		name         string
		err          error
		wantCode     int
		wantBody     string
		wantLogged   bool
		wantShutdown bool
	}{
		{name: "anonymous", err: errors.Wrap(core.ErrUnauthenticated, "listing grades"), wantCode: http.StatusUnauthorized,
			wantBody: `{"error":"listing grades: authentication credentials were not provided"}`},
		{name: "missing jwt", err: middleware.ErrJWTMissing, wantCode: http.StatusUnauthorized, wantBody: `{"error":"missing or malformed jwt"}`},
		{name: "http error", err: echo.NewHTTPError(http.StatusMethodNotAllowed), wantCode: http.StatusMethodNotAllowed,
			wantBody: `{"error":"Method Not Allowed"}`},
		{name: "wrapped http error", err: &echo.HTTPError{Code: http.StatusBadRequest, Message: "bind", Internal: errRefreshExpired},
			wantCode: http.StatusForbidden, wantBody: `{"error":"refresh has expired"}`},
		{name: "validator errors", err: fieldErrs, wantCode: http.StatusBadRequest, wantBody: `{"email":"this field is required"}`},
		{name: "field error", err: errors.Wrap(core.NewFieldError("role", "invalid role"), "updating user"), wantCode: http.StatusBadRequest,
			wantBody: `{"role":"invalid role"}`},
		{name: "validation error", err: core.NewValidationError(errors.New("invalid credentials")), wantCode: http.StatusBadRequest,
			wantBody: `{"error":"invalid credentials"}`},
		{name: "authorization", err: core.NewAuthorizationError("create", "grade"), wantCode: http.StatusForbidden,
			wantBody: `{"error":"permission denied: create grade"}`},
		{name: "not found", err: errors.Wrap(core.NewNotFoundError("grade"), "getting grade"), wantCode: http.StatusNotFound,
			wantBody: `{"error":"grade not found"}`},
		{name: "upstream", err: core.NewUpstreamError("redis", errors.New("connection refused")), wantCode: http.StatusServiceUnavailable,
			wantBody: `{"error":"Service Unavailable"}`, wantLogged: true},
		{name: "unexpected", err: errors.New("boom"), wantCode: http.StatusInternalServerError,
			wantBody: `{"error":"Internal Server Error"}`, wantLogged: true},
		{name: "shutdown", err: errors.Wrap(core.NewShutdownError("integrity"), "saving"), wantCode: http.StatusInternalServerError,
			wantBody: `{"error":"Internal Server Error"}`, wantLogged: true, wantShutdown: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			logger := new(spyLogger)
			var shutdown bool
			handler := newAppHTTPErrorHandler(logger, translator, func() { shutdown = true })

			app := echo.New()
			rec := httptest.NewRecorder()
			ctx := app.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
			ctx.Set(principalContextKey, &user.Principal{ID: 1, Email: "admin@test.cd", Role: user.RoleAdmin})

			handler(tc.err, ctx)

			assert.Equal(t, tc.wantCode, rec.Code)
			assert.JSONEq(t, tc.wantBody, rec.Body.String())
			assert.Equal(t, tc.wantLogged, len(logger.errors) > 0)
			if tc.wantLogged {
				assert.Contains(t, logger.args[0], user.Principal{ID: 1, Email: "admin@test.cd", Role: user.RoleAdmin})
			}
			assert.Equal(t, tc.wantShutdown, shutdown)
		})
	}

	t.Run("debug exposes the error", func(t *testing.T) {
		app := echo.New()
		app.Debug = true
		rec := httptest.NewRecorder()
		ctx := app.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)

		newAppHTTPErrorHandler(new(spyLogger), translator, func() {})(errors.New("boom"), ctx)

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.JSONEq(t, `{"error":"boom"}`, rec.Body.String())
	})

	t.Run("head requests get no body", func(t *testing.T) {
		app := echo.New()
		rec := httptest.NewRecorder()
		ctx := app.NewContext(httptest.NewRequest(http.MethodHead, "/", nil), rec)

		newAppHTTPErrorHandler(new(spyLogger), translator, func() {})(core.NewNotFoundError("grade"), ctx)

		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Empty(t, rec.Body.String())
	})
}
