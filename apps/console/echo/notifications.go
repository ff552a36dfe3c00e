package echoapi

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/cmrsapp/console/core/notification"
)

func registerNotificationAPI(g *echo.Group, s *server) {
	ng := g.Group("/notifications")
	ng.GET("", s.listNotifications)
	ng.GET("/bell", s.notificationBell)
	ng.GET("/alerts", s.drainAlerts)
	ng.PUT("/read", s.markAllNotificationsRead)
	ng.PUT("/:id/read", s.markNotificationRead)
	ng.POST("/refresh", s.refreshNotifications)

	if s.opts.Conf.Debug {
		// development aid: round-trips a synthetic event through the
		// notification service back onto our own topic
		ng.POST("/test", s.publishTestNotification)
	}
}

// notificationBell is the header indicator: the unread count and the
// debounced connection status.
func (s *server) notificationBell(ctx echo.Context) error {
	ch := s.currentChannel()
	if ch == nil {
		return ctx.JSON(http.StatusOK, echo.Map{"unreadCount": 0, "status": notification.StatusConnecting})
	}
	return ctx.JSON(http.StatusOK, echo.Map{
		"unreadCount": ch.UnreadCount(),
		"status":      ch.Status(),
	})
}

func (s *server) listNotifications(ctx echo.Context) error {
	ch := s.currentChannel()
	if ch == nil {
		return ctx.JSON(http.StatusOK, []notification.Notification{})
	}
	return ctx.JSON(http.StatusOK, ch.Notifications())
}

// drainAlerts hands out the pending toast alerts exactly once.
func (s *server) drainAlerts(ctx echo.Context) error {
	ch := s.currentChannel()
	if ch == nil {
		return ctx.JSON(http.StatusOK, []notification.Alert{})
	}
	alerts := ch.Alerts()
	if alerts == nil {
		alerts = []notification.Alert{}
	}
	return ctx.JSON(http.StatusOK, alerts)
}

func (s *server) markNotificationRead(ctx echo.Context) error {
	ch := s.currentChannel()
	if ch == nil {
		return errHttpNotFound
	}
	id, err := strconv.ParseInt(ctx.Param("id"), 10, 64)
	if err != nil {
		id = 0 // the channel logs and ignores invalid ids
	}
	if err := ch.MarkOne(ctx.Request().Context(), id); err != nil {
		return errors.Wrap(err, "marking notification read")
	}
	return ctx.JSON(http.StatusOK, echo.Map{"unreadCount": ch.UnreadCount()})
}

func (s *server) markAllNotificationsRead(ctx echo.Context) error {
	ch := s.currentChannel()
	if ch == nil {
		return errHttpNotFound
	}
	if err := ch.MarkAllUnread(ctx.Request().Context()); err != nil {
		return errors.Wrap(err, "marking notifications read")
	}
	return ctx.JSON(http.StatusOK, echo.Map{"unreadCount": ch.UnreadCount()})
}

func (s *server) refreshNotifications(ctx echo.Context) error {
	ch := s.currentChannel()
	if ch == nil {
		return errHttpNotFound
	}
	ch.Refresh(ctx.Request().Context())
	return ctx.JSON(http.StatusOK, ch.Notifications())
}

func (s *server) publishTestNotification(ctx echo.Context) error {
	var event notification.Notification
	if err := ctx.Bind(&event); err != nil {
		return errors.Wrap(err, "binding to Notification")
	}
	if err := s.opts.Client.PublishTestEvent(ctx.Request().Context(), event); err != nil {
		return errors.Wrap(err, "publishing test event")
	}
	return ctx.NoContent(http.StatusAccepted)
}
