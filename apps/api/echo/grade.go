package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/academia/core/grade"
)

type gradeApi struct {
	svc *grade.Service
}

func registerGradeAPI(g *echo.Group, authed []echo.MiddlewareFunc, svc *grade.Service) {
	api := gradeApi{svc: svc}

	gg := g.Group("/grades", authed...)
	gg.GET("", api.query)
	gg.POST("", api.create)
	gg.GET("/:id", api.retrieve)
	gg.PUT("/:id", api.update)
	gg.PATCH("/:id", api.update)
	gg.DELETE("/:id", api.destroy)
}

func (api *gradeApi) query(ctx echo.Context) error {
	page, err := api.svc.Query(ctx.Request().Context(), getContextPrincipal(ctx), listParams(ctx))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, page)
}

func (api *gradeApi) create(ctx echo.Context) error {
	var data grade.NewGrade
	if err := bind(ctx, &data, "NewGrade"); err != nil {
		return err
	}
	g, err := api.svc.Create(ctx.Request().Context(), getContextPrincipal(ctx), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, g)
}

func (api *gradeApi) retrieve(ctx echo.Context) error {
	id, err := pathID(ctx, "grade")
	if err != nil {
		return err
	}
	g, err := api.svc.Get(ctx.Request().Context(), getContextPrincipal(ctx), id)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, g)
}

func (api *gradeApi) update(ctx echo.Context) error {
	id, err := pathID(ctx, "grade")
	if err != nil {
		return err
	}
	var data grade.UpdateGrade
	if err = bind(ctx, &data, "UpdateGrade"); err != nil {
		return err
	}
	g, err := api.svc.Update(ctx.Request().Context(), getContextPrincipal(ctx), id, data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, g)
}

func (api *gradeApi) destroy(ctx echo.Context) error {
	id, err := pathID(ctx, "grade")
	if err != nil {
		return err
	}
	if err = api.svc.Delete(ctx.Request().Context(), getContextPrincipal(ctx), id); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}
