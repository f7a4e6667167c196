package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/farsihub/backend/core/access"
	"github.com/farsihub/backend/core/quiz"
	"github.com/farsihub/backend/core/session"
	"github.com/farsihub/backend/core/user"
)

type sessionApi struct {
	mgr      *session.Manager
	usrSvc   *user.Service
	quizSvc  *quiz.Service
	validate *validator.Validate
}

func registerSessionAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps *Deps) {
	api := sessionApi{
		mgr:      deps.SessionMgr,
		usrSvc:   deps.UsrSvc,
		quizSvc:  deps.QuizSvc,
		validate: deps.Validate,
	}

	sg := g.Group("/session", jwt, sessionMiddleware(deps.SessionMgr))
	sg.GET("", api.retrieve)
	sg.GET("/decision", api.decide)
	sg.POST("/refresh", api.refresh)
	sg.POST("/signout", api.signOut)
	sg.DELETE("", api.deleteAccount)
	sg.PUT("/avatar", api.updateAvatar)
	sg.POST("/onboarding", api.completeOnboarding)
	sg.GET("/achievements", api.achievements)
}

// Handlers

func (api *sessionApi) retrieve(ctx echo.Context) error {
	snap, err := getContextSnapshot(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context snapshot")
	}
	return ctx.JSON(http.StatusOK, newSessionResponse(snap))
}

// decide exposes the navigation decision for an app path, so the frontend
// router and the backend agree on where a session may go.
func (api *sessionApi) decide(ctx echo.Context) error {
	snap, err := getContextSnapshot(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context snapshot")
	}
	path := ctx.QueryParam("path")
	if path == "" {
		path = "/"
	}
	return ctx.JSON(http.StatusOK, newDecisionResponse(access.Decide(snap, path)))
}

func (api *sessionApi) refresh(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	snap, err := api.mgr.Refresh(ctx.Request().Context(), claims.Subject)
	if err != nil {
		return errors.Wrap(err, "refreshing session")
	}
	return ctx.JSON(http.StatusOK, newSessionResponse(snap))
}

func (api *sessionApi) signOut(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	if err := api.mgr.SignOut(ctx.Request().Context(), claims.Subject); err != nil {
		return errors.Wrap(err, "signing out")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// deleteAccount removes the profile document first and the identity second,
// in that order.
func (api *sessionApi) deleteAccount(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	if err := api.mgr.DeleteAccount(ctx.Request().Context(), claims.Subject); err != nil {
		return errors.Wrap(err, "deleting account")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *sessionApi) updateAvatar(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	var data AvatarRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to AvatarRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	if err := api.mgr.UpdateProfilePicture(ctx.Request().Context(), claims.Subject, data.PhotoURL); err != nil {
		return errors.Wrap(err, "updating profile picture")
	}

	// the identity update pushed the session back into Resolving; wait it
	// out so the response carries the settled user
	snap, err := api.mgr.Resolve(ctx.Request().Context(), claims.Subject)
	if err != nil {
		return errors.Wrap(err, "resolving session")
	}
	return ctx.JSON(http.StatusOK, newSessionResponse(snap))
}

func (api *sessionApi) completeOnboarding(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	var data user.Onboarding
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Onboarding")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	if _, err := api.usrSvc.CompleteOnboarding(ctx.Request().Context(), claims.Subject, data); err != nil {
		return errors.Wrap(err, "completing onboarding")
	}

	// settle the session on the updated profile before answering
	snap, err := api.mgr.Refresh(ctx.Request().Context(), claims.Subject)
	if err != nil {
		return errors.Wrap(err, "refreshing session")
	}
	return ctx.JSON(http.StatusOK, newSessionResponse(snap))
}

func (api *sessionApi) achievements(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	subs, err := api.quizSvc.ByUser(ctx.Request().Context(), claims.Subject)
	if err != nil {
		return errors.Wrap(err, "querying submissions")
	}
	if subs == nil {
		subs = []quiz.Submission{}
	}
	return ctx.JSON(http.StatusOK, subs)
}
