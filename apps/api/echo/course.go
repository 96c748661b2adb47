package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/academia/core/course"
)

type courseApi struct {
	svc *course.Service
}

func registerCourseAPI(g *echo.Group, authed []echo.MiddlewareFunc, svc *course.Service) {
	api := courseApi{svc: svc}

	cg := g.Group("/courses", authed...)
	cg.GET("", api.query)
	cg.POST("", api.create)
	cg.GET("/:id", api.retrieve)
	cg.PUT("/:id", api.update)
	cg.PATCH("/:id", api.update)
	cg.DELETE("/:id", api.destroy)

	eg := g.Group("/enrollments", authed...)
	eg.GET("", api.queryEnrollments)
	eg.POST("", api.enroll)
	eg.GET("/:id", api.retrieveEnrollment)
	eg.PUT("/:id", api.updateEnrollment)
	eg.PATCH("/:id", api.updateEnrollment)
	eg.DELETE("/:id", api.unenroll)
}

func (api *courseApi) query(ctx echo.Context) error {
	page, err := api.svc.Query(ctx.Request().Context(), getContextPrincipal(ctx), listParams(ctx))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, page)
}

func (api *courseApi) create(ctx echo.Context) error {
	var data course.NewCourse
	if err := bind(ctx, &data, "NewCourse"); err != nil {
		return err
	}
	c, err := api.svc.Create(ctx.Request().Context(), getContextPrincipal(ctx), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, c)
}

func (api *courseApi) retrieve(ctx echo.Context) error {
	id, err := pathID(ctx, "course")
	if err != nil {
		return err
	}
	c, err := api.svc.Get(ctx.Request().Context(), getContextPrincipal(ctx), id)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, c)
}

func (api *courseApi) update(ctx echo.Context) error {
	id, err := pathID(ctx, "course")
	if err != nil {
		return err
	}
	var data course.UpdateCourse
	if err = bind(ctx, &data, "UpdateCourse"); err != nil {
		return err
	}
	c, err := api.svc.Update(ctx.Request().Context(), getContextPrincipal(ctx), id, data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, c)
}

func (api *courseApi) destroy(ctx echo.Context) error {
	id, err := pathID(ctx, "course")
	if err != nil {
		return err
	}
	if err = api.svc.Delete(ctx.Request().Context(), getContextPrincipal(ctx), id); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Enrollments

func (api *courseApi) queryEnrollments(ctx echo.Context) error {
	page, err := api.svc.QueryEnrollments(ctx.Request().Context(), getContextPrincipal(ctx), listParams(ctx))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, page)
}

func (api *courseApi) enroll(ctx echo.Context) error {
	var data course.NewEnrollment
	if err := bind(ctx, &data, "NewEnrollment"); err != nil {
		return err
	}
	e, err := api.svc.Enroll(ctx.Request().Context(), getContextPrincipal(ctx), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, e)
}

func (api *courseApi) retrieveEnrollment(ctx echo.Context) error {
	id, err := pathID(ctx, "enrollment")
	if err != nil {
		return err
	}
	e, err := api.svc.GetEnrollment(ctx.Request().Context(), getContextPrincipal(ctx), id)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, e)
}

func (api *courseApi) updateEnrollment(ctx echo.Context) error {
	id, err := pathID(ctx, "enrollment")
	if err != nil {
		return err
	}
	var data course.UpdateEnrollment
	if err = bind(ctx, &data, "UpdateEnrollment"); err != nil {
		return err
	}
	e, err := api.svc.UpdateEnrollment(ctx.Request().Context(), getContextPrincipal(ctx), id, data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, e)
}

func (api *courseApi) unenroll(ctx echo.Context) error {
	id, err := pathID(ctx, "enrollment")
	if err != nil {
		return err
	}
	if err = api.svc.Unenroll(ctx.Request().Context(), getContextPrincipal(ctx), id); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}
