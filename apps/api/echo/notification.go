package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/academia/core/notification"
)

type notificationApi struct {
	dispatcher *notification.Dispatcher
}

func registerNotificationAPI(g *echo.Group, authed []echo.MiddlewareFunc, dispatcher *notification.Dispatcher) {
	api := notificationApi{dispatcher: dispatcher}

	ng := g.Group("/notifications", authed...)
	ng.GET("", api.query)
	ng.POST("", api.create)
}

func (api *notificationApi) query(ctx echo.Context) error {
	page, err := api.dispatcher.Query(ctx.Request().Context(), getContextPrincipal(ctx), listParams(ctx))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, page)
}

func (api *notificationApi) create(ctx echo.Context) error {
	var data notification.NewNotification
	if err := bind(ctx, &data, "NewNotification"); err != nil {
		return err
	}
	n, err := api.dispatcher.Create(ctx.Request().Context(), getContextPrincipal(ctx), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, n)
}
