package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/MarMar-mg/school-managment-system-sub000/core/notification"
)

type notificationApi struct {
	svc notification.Service
}

// registerNotificationAPI serves the notifications of the authenticated user.
func registerNotificationAPI(g *echo.Group, authed []echo.MiddlewareFunc, svc notification.Service) {
	api := notificationApi{svc: svc}

	ng := g.Group("/notifications", authed...)
	ng.GET("", api.query)
	ng.GET("/unread-count", api.unreadCount)
	ng.POST("/read", api.markRead)
	ng.DELETE("", api.destroy)
}

func (api *notificationApi) query(ctx echo.Context) error {
	actor, err := contextActor(ctx)
	if err != nil {
		return err
	}
	page, err := bindPage(ctx)
	if err != nil {
		return err
	}
	filter := notification.QueryFilter{
		UserID:     actor.User().ID,
		UnreadOnly: ctx.QueryParam("unread") == "true",
		Page:       page,
	}
	notes, err := api.svc.Query(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying notifications")
	}
	if notes == nil {
		notes = []notification.Notification{}
	}
	return ctx.JSON(http.StatusOK, notes)
}

func (api *notificationApi) unreadCount(ctx echo.Context) error {
	actor, err := contextActor(ctx)
	if err != nil {
		return err
	}
	n, err := api.svc.CountUnread(ctx.Request().Context(), actor.User().ID)
	if err != nil {
		return errors.Wrap(err, "counting unread notifications")
	}
	return ctx.JSON(http.StatusOK, CountResponse{Count: n})
}

// markRead marks the listed notifications as read. No ids means all of them.
func (api *notificationApi) markRead(ctx echo.Context) error {
	actor, err := contextActor(ctx)
	if err != nil {
		return err
	}
	var data notification.IDs
	if err := bind(ctx, &data, "IDs"); err != nil {
		return err
	}
	n, err := api.svc.MarkRead(ctx.Request().Context(), actor.User().ID, data.IDs...)
	if err != nil {
		return errors.Wrap(err, "marking notifications read")
	}
	return ctx.JSON(http.StatusOK, CountResponse{Count: n})
}

// destroy deletes the notifications listed in ?id=1&id=2. No ids means all of them.
func (api *notificationApi) destroy(ctx echo.Context) error {
	actor, err := contextActor(ctx)
	if err != nil {
		return err
	}
	ids, err := queryIDs(ctx, "id")
	if err != nil {
		return err
	}
	n, err := api.svc.Delete(ctx.Request().Context(), actor.User().ID, ids...)
	if err != nil {
		return errors.Wrap(err, "deleting notifications")
	}
	return ctx.JSON(http.StatusOK, CountResponse{Count: n})
}
