package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/academia/core/attendance"
)

type attendanceApi struct {
	svc *attendance.Service
}

func registerAttendanceAPI(g *echo.Group, authed []echo.MiddlewareFunc, svc *attendance.Service) {
	api := attendanceApi{svc: svc}

	ag := g.Group("/attendance", authed...)
	ag.GET("", api.query)
	ag.POST("", api.create)
	ag.GET("/:id", api.retrieve)
	ag.PUT("/:id", api.update)
	ag.PATCH("/:id", api.update)
	ag.DELETE("/:id", api.destroy)
}

func (api *attendanceApi) query(ctx echo.Context) error {
	page, err := api.svc.Query(ctx.Request().Context(), getContextPrincipal(ctx), listParams(ctx))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, page)
}

func (api *attendanceApi) create(ctx echo.Context) error {
	var data attendance.NewAttendance
	if err := bind(ctx, &data, "NewAttendance"); err != nil {
		return err
	}
	a, err := api.svc.Create(ctx.Request().Context(), getContextPrincipal(ctx), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, a)
}

func (api *attendanceApi) retrieve(ctx echo.Context) error {
	id, err := pathID(ctx, "attendance")
	if err != nil {
		return err
	}
	a, err := api.svc.Get(ctx.Request().Context(), getContextPrincipal(ctx), id)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, a)
}

func (api *attendanceApi) update(ctx echo.Context) error {
	id, err := pathID(ctx, "attendance")
	if err != nil {
		return err
	}
	var data attendance.UpdateAttendance
	if err = bind(ctx, &data, "UpdateAttendance"); err != nil {
		return err
	}
	a, err := api.svc.Update(ctx.Request().Context(), getContextPrincipal(ctx), id, data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, a)
}

func (api *attendanceApi) destroy(ctx echo.Context) error {
	id, err := pathID(ctx, "attendance")
	if err != nil {
		return err
	}
	if err = api.svc.Delete(ctx.Request().Context(), getContextPrincipal(ctx), id); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}
