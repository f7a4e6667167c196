package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/farsihub/backend/core/access"
	"github.com/farsihub/backend/core/session"
)

// sessionMiddleware resolves the token bearer's session, waiting out any
// in-flight profile fetch, and stores the settled snapshot on the context.
func sessionMiddleware(mgr *session.Manager) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context claims")
			}

			snap, err := mgr.Resolve(ctx.Request().Context(), claims.Subject)
			if err != nil {
				return echo.NewHTTPError(http.StatusServiceUnavailable, "session is still resolving")
			}
			ctx.Set(contextSnapKey, snap)
			return next(ctx)
		}
	}
}

// accessMiddleware gates a route group behind the navigation decision for
// the app route it serves. Redirect decisions are answered with 303 and a
// Location header so clients land where the frontend router would send them.
func accessMiddleware(route string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			snap, err := getContextSnapshot(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context snapshot")
			}

			switch d := access.Decide(snap, route); d.Kind {
			case access.Allow:
				return next(ctx)
			case access.Loading:
				return echo.NewHTTPError(http.StatusServiceUnavailable, "session is still resolving")
			default:
				return ctx.Redirect(http.StatusSeeOther, d.Target)
			}
		}
	}
}
