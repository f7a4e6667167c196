package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/farsihub/backend/core"
	"github.com/farsihub/backend/core/identity"
	"github.com/farsihub/backend/core/session"
	"github.com/farsihub/backend/core/user"
)

type userApi struct {
	idnSvc     *identity.Service
	usrSvc     *user.Service
	sessionMgr *session.Manager
	validate   *validator.Validate
	translator ut.Translator
}

func registerUserAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps *Deps) {
	api := userApi{
		idnSvc:     deps.IdnSvc,
		usrSvc:     deps.UsrSvc,
		sessionMgr: deps.SessionMgr,
		validate:   deps.Validate,
		translator: deps.Translator,
	}

	ag := g.Group("/auth")

	// un-authed endpoints
	// TODO: rate limit `/password-reset` & `/password-reset-confirm`
	ag.POST("/signup", api.signup)
	ag.POST("/login", api.login)
	ag.POST("/password-reset", api.resetPassword)
	ag.POST("/password-reset-confirm", api.confirmPasswordReset)

	ag.POST("/token-refresh", api.refreshToken, jwt)

	// admin endpoints
	ug := g.Group("/users", jwt, sessionMiddleware(deps.SessionMgr), accessMiddleware("/admin/students"))
	ug.GET("", api.query)
	ug.GET("/:id", api.retrieve)
	ug.PUT("/:id/approval", api.setApproval)
}

// Handlers

// signup registers the identity, creates its profile document and only then
// signs in. Resolution finds the profile in place, so a fresh signup can
// never be bounced for a missing profile.
func (api *userApi) signup(ctx echo.Context) error {
	var data identity.Signup
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Signup")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	idn, err := api.idnSvc.Register(ctx.Request().Context(), data.Email, data.Password)
	if err != nil {
		if errors.Cause(err) == identity.ErrEmailExists {
			return core.NewValidationError(nil, core.FieldError{Field: "email", Error: identity.ErrEmailExists.Error()})
		}
		return errors.Wrap(err, "registering identity")
	}

	if _, err = api.usrSvc.Create(ctx.Request().Context(), user.NewProfile{
		ID:    idn.ID,
		Name:  data.Name,
		Email: idn.Email,
	}); err != nil {
		return errors.Wrap(err, "creating profile")
	}

	claims, err := authenticate(ctx, data.Email, data.Password, api.idnSvc, api.sessionMgr)
	if err != nil {
		return errors.Wrap(err, "signing in after signup")
	}
	token, err := GenerateToken(claims)
	if err != nil {
		return errors.Wrap(err, "generating token")
	}

	snap := api.sessionMgr.Snapshot(idn.ID)
	return ctx.JSON(http.StatusCreated, LoginResponse{Token: token, User: snap.User})
}

func (api *userApi) login(ctx echo.Context) error {
	var data LoginRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LoginRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	claims, err := authenticate(ctx, data.Email, data.Password, api.idnSvc, api.sessionMgr)
	if err != nil {
		return errors.Wrap(err, "authenticating")
	}
	token, err := GenerateToken(claims)
	if err != nil {
		return errors.Wrap(err, "generating token")
	}

	snap := api.sessionMgr.Snapshot(claims.Subject)
	return ctx.JSON(http.StatusOK, LoginResponse{Token: token, User: snap.User})
}

func (api *userApi) resetPassword(ctx echo.Context) error {
	var data PasswordResetRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to PasswordResetRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	if err := api.idnSvc.RequestPasswordReset(ctx.Request().Context(), data.Email); !(err == nil || errors.Cause(err) == identity.ErrUnknownAccount) {
		// do not return errors to attackers
		ctx.Logger().Errorf("%+v", errors.Wrap(err, "requesting password reset"))
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{
		Success: "If the email address supplied is associated with an account on this system, " +
			"an email will arrive in your inbox shortly with instructions to reset your password.",
	})
}

func (api *userApi) confirmPasswordReset(ctx echo.Context) error {
	var data identity.ResetPassword
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ResetPassword")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	if err := api.idnSvc.ConfirmPasswordReset(ctx.Request().Context(), data.UID, data.Token, data.Password); err != nil {
		return errors.Wrap(err, "resetting password")
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: "Password has been reset with the new password."})
}

func (api *userApi) refreshToken(ctx echo.Context) error {
	token, err := refreshToken(ctx, api.sessionMgr)
	if err != nil {
		return errors.Wrap(err, "refreshing token")
	}
	return ctx.JSON(http.StatusOK, LoginResponse{Token: token})
}

func (api *userApi) query(ctx echo.Context) error {
	filter := new(user.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []user.Profile{})
	}

	profiles, err := api.usrSvc.Filter(ctx.Request().Context(), *filter)
	if err != nil {
		return errors.Wrap(err, "querying profiles")
	}
	if profiles == nil {
		profiles = []user.Profile{}
	}
	return ctx.JSON(http.StatusOK, profiles)
}

func (api *userApi) retrieve(ctx echo.Context) error {
	p, err := api.usrSvc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "finding profile by ID")
	}
	return ctx.JSON(http.StatusOK, p)
}

// setApproval flips the student approval gate. The owner's live session
// picks the change up through its profile watch.
func (api *userApi) setApproval(ctx echo.Context) error {
	var data ApprovalRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ApprovalRequest")
	}
	if data.Approved == nil {
		return core.NewValidationError(nil, core.FieldError{Field: "approved", Error: "approved is required"})
	}

	p, err := api.usrSvc.SetApproved(ctx.Request().Context(), ctx.Param("id"), *data.Approved)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "setting approval")
	}
	return ctx.JSON(http.StatusOK, p)
}
