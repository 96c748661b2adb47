package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/user"
)

type userApi struct {
	svc      user.Service
	validate *validator.Validate
	conf     *core.Config
}

func registerUserAPI(g *echo.Group, authed []echo.MiddlewareFunc, svc user.Service, validate *validator.Validate, conf *core.Config) {
	api := userApi{svc: svc, validate: validate, conf: conf}

	ug := g.Group("/users")

	// authed endpoints
	ag := ug.Group("", authed...)
	ag.POST("/token-refresh", api.refreshToken)
	ag.GET("", api.query)
	ag.GET("/roles", api.queryRoles)
	ag.GET("/:id", api.retrieve)
	ag.PUT("/:id", api.update)
	ag.PATCH("/:id", api.update)
	ag.DELETE("/:id", api.destroy)

	// un-authed endpoints; registered last so they override the group's catch-all routes
	ug.POST("", api.register)
	ug.POST("/login", api.login)

	sg := g.Group("/students", authed...)
	sg.GET("", api.queryStudents)
	sg.POST("", api.createStudent)
}

// Handlers

func (api *userApi) register(ctx echo.Context) error {
	var data user.NewUser
	if err := bind(ctx, &data, "NewUser"); err != nil {
		return err
	}
	usr, err := api.svc.Register(ctx.Request().Context(), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, usr)
}

func (api *userApi) login(ctx echo.Context) error {
	var data LoginRequest
	if err := bind(ctx, &data, "LoginRequest"); err != nil {
		return err
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	p, err := api.svc.Authenticate(ctx.Request().Context(), data.Email, data.Password)
	if err != nil {
		return err
	}
	usr, err := api.svc.GetByEmail(ctx.Request().Context(), p.Email)
	if err != nil {
		return errors.Wrap(err, "finding authenticated user")
	}
	token, err := GenerateToken(api.conf, GetUserClaims(api.conf, usr))
	if err != nil {
		return errors.Wrap(err, "generating token")
	}
	return ctx.JSON(http.StatusOK, LoginResponse{Token: token})
}

func (api *userApi) refreshToken(ctx echo.Context) error {
	token, err := refreshToken(ctx, api.conf, api.svc)
	if err != nil {
		return errors.Wrap(err, "refreshing token")
	}
	return ctx.JSON(http.StatusOK, LoginResponse{Token: token})
}

func (api *userApi) query(ctx echo.Context) error {
	page, err := api.svc.Query(ctx.Request().Context(), getContextPrincipal(ctx), listParams(ctx))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, page)
}

func (api *userApi) queryRoles(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, user.Roles)
}

func (api *userApi) retrieve(ctx echo.Context) error {
	id, err := pathID(ctx, "user")
	if err != nil {
		return err
	}
	usr, err := api.svc.Get(ctx.Request().Context(), getContextPrincipal(ctx), id)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (api *userApi) update(ctx echo.Context) error {
	id, err := pathID(ctx, "user")
	if err != nil {
		return err
	}
	var data user.UpdateUser
	if err = bind(ctx, &data, "UpdateUser"); err != nil {
		return err
	}
	usr, err := api.svc.Update(ctx.Request().Context(), getContextPrincipal(ctx), id, data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (api *userApi) destroy(ctx echo.Context) error {
	id, err := pathID(ctx, "user")
	if err != nil {
		return err
	}
	if err = api.svc.Delete(ctx.Request().Context(), getContextPrincipal(ctx), id); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *userApi) queryStudents(ctx echo.Context) error {
	page, err := api.svc.QueryStudents(ctx.Request().Context(), getContextPrincipal(ctx), listParams(ctx))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, page)
}

func (api *userApi) createStudent(ctx echo.Context) error {
	var data user.NewStudent
	if err := bind(ctx, &data, "NewStudent"); err != nil {
		return err
	}
	student, err := api.svc.CreateStudent(ctx.Request().Context(), getContextPrincipal(ctx), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, student)
}

type (
	LoginRequest struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required"`
	}

	LoginResponse struct {
		Token string `json:"token"`
	}
)

func (lr *LoginRequest) Validate(validate *validator.Validate) error {
	lr.Email = core.CleanString(lr.Email, true /* lower */)
	return validate.Struct(lr)
}
