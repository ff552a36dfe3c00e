package echoapi

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/cmrsapp/console/core/access"
)

// Screen is the JSON descriptor a guarded route renders: which resource and
// view the client should mount, plus any route params.
type Screen struct {
	Resource string            `json:"resource"`
	View     string            `json:"view"`
	Params   map[string]string `json:"params,omitempty"`
}

// registerScreens mounts every route of the resource catalog under the
// path-rule guard. Authorization stays in the guard; handlers only describe
// the screen.
func registerScreens(g *echo.Group, s *server) {
	for _, res := range access.Catalog {
		res := res
		if res.Name == "notifications" {
			continue // served by the notification API, not a screen stub
		}
		if res.ListPath != "" {
			g.GET(res.ListPath, screenHandler(res.Name, "list"))
		}
		if res.ShowPath != "" {
			g.GET(res.ShowPath, screenHandler(res.Name, "show"))
		}
		if res.CreatePath != "" {
			g.GET(res.CreatePath, screenHandler(res.Name, "create"))
		}
		if res.EditPath != "" {
			g.GET(res.EditPath, screenHandler(res.Name, "edit"))
		}
	}

	// the action behind a vacancy alert
	g.POST("/courseRegistration/classes/:classId/register", s.registerForClass)
}

func screenHandler(resource, view string) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		params := make(map[string]string, len(ctx.ParamNames()))
		for _, name := range ctx.ParamNames() {
			params[name] = ctx.Param(name)
		}
		if len(params) == 0 {
			params = nil
		}
		return ctx.JSON(http.StatusOK, Screen{Resource: resource, View: view, Params: params})
	}
}

// menu returns the navigation entries visible to the signed-in role set.
func (s *server) menu(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, access.VisibleResources(s.opts.Session.Roles()))
}

// forbidden is where the guard lands a signed-in principal lacking the
// required role; it offers the interrupted target for a retry elsewhere.
func (s *server) forbidden(ctx echo.Context) error {
	backTo := "/"
	if prev, err := s.opts.State.Get(keyPreviousPage); err == nil && prev != "" {
		backTo = prev
	}
	return ctx.JSON(http.StatusForbidden, echo.Map{
		"error":  errHttpForbidden.Message,
		"backTo": backTo,
	})
}

func (s *server) registerForClass(ctx echo.Context) error {
	classID, err := strconv.ParseInt(ctx.Param("classId"), 10, 64)
	if err != nil || classID <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid class id")
	}
	if err := s.opts.Client.RegisterForClass(ctx.Request().Context(), classID); err != nil {
		s.opts.Session.HandleAPIError(err)
		return errors.Wrap(err, "registering for class")
	}
	return ctx.NoContent(http.StatusCreated)
}
