package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/cmrsapp/console/core/access"
)

// previousPage remembers where an unauthenticated visitor was headed so the
// login flow can send them back afterwards.
const keyPreviousPage = "previousPage"

// guard authorizes each request by its path against the access rules. The
// decision is made fresh on every request; nothing is cached between
// navigations.
func (s *server) guard() echo.MiddlewareFunc {
	return s.guardWith(func(ctx echo.Context, roles []string) bool {
		return access.Authorize(roles, ctx.Request().URL.Path)
	})
}

// guardRoles authorizes against an explicit role set instead of the path
// rules. An empty set admits any authenticated principal.
func (s *server) guardRoles(required ...string) echo.MiddlewareFunc {
	return s.guardWith(func(_ echo.Context, roles []string) bool {
		if access.HasRole(roles, access.RoleAdmin) {
			return true
		}
		if len(required) == 0 {
			return len(roles) > 0
		}
		return access.HasAnyRole(roles, required)
	})
}

func (s *server) guardWith(authorized func(echo.Context, []string) bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			check := s.opts.Session.Check()
			if !check.Authenticated {
				// remember the target; login sends the visitor back
				if err := s.opts.State.Set(keyPreviousPage, ctx.Request().URL.Path); err != nil {
					s.opts.Logger.Warn("storing previous page", err)
				}
				return ctx.Redirect(http.StatusFound, check.RedirectTo)
			}

			s.ensureChannel()

			if !authorized(ctx, s.opts.Session.Roles()) {
				if err := s.opts.State.Set(keyPreviousPage, ctx.Request().URL.Path); err != nil {
					s.opts.Logger.Warn("storing previous page", err)
				}
				return ctx.Redirect(http.StatusFound, "/forbidden")
			}
			return next(ctx)
		}
	}
}
