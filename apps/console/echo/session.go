package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/cmrsapp/console/core"
	"github.com/cmrsapp/console/core/session"
)

type (
	LoginRequest struct {
		Username string `json:"username" validate:"required"`
		Password string `json:"password" validate:"required"`
	}

	LoginResponse struct {
		RedirectTo string `json:"redirectTo"`
		Degraded   bool   `json:"degraded,omitempty"`
	}
)

func registerSessionAPI(app *echo.Echo, s *server) {
	app.GET("/login", s.loginScreen)
	app.POST("/login", s.login)

	ag := app.Group("", s.guardRoles())
	ag.POST("/logout", s.logout)
	ag.GET("/identity", s.identity)
}

func (s *server) loginScreen(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, Screen{Resource: "login", View: "form"})
}

// login authenticates the credentials and opens the notification channel for
// the new session. Rejected credentials come back as an inline field error,
// never as a server fault.
func (s *server) login(ctx echo.Context) error {
	var data LoginRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LoginRequest")
	}
	if err := s.opts.Validate.Struct(&data); err != nil {
		return err
	}

	result, err := s.opts.Session.Login(ctx.Request().Context(), data.Username, data.Password)
	if err != nil {
		if errors.Cause(err) == session.ErrAuthenticationFailed {
			return core.NewValidationError(session.ErrAuthenticationFailed)
		}
		return errors.Wrap(err, "logging in")
	}

	s.openChannel(s.opts.Session.Identity())

	// an interrupted navigation wins over the role-based landing screen
	redirectTo := result.RedirectTo
	if prev, err := s.opts.State.Get(keyPreviousPage); err == nil && prev != "" {
		redirectTo = prev
		if err := s.opts.State.Delete(keyPreviousPage); err != nil {
			s.opts.Logger.Warn("clearing previous page", err)
		}
	}

	return ctx.JSON(http.StatusOK, LoginResponse{RedirectTo: redirectTo, Degraded: result.Degraded})
}

func (s *server) logout(ctx echo.Context) error {
	s.opts.Session.Logout()
	return ctx.JSON(http.StatusOK, echo.Map{"redirectTo": "/login"})
}

// identity returns the signed-in principal's profile projection.
func (s *server) identity(ctx echo.Context) error {
	identity := s.opts.Session.Identity()
	if identity == nil {
		return errHttpNotFound
	}
	return ctx.JSON(http.StatusOK, identity)
}
