package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/farsihub/backend/core"
	"github.com/farsihub/backend/core/qna"
)

type qnaApi struct {
	svc      *qna.Service
	validate *validator.Validate
}

func registerQnaAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps *Deps) {
	api := qnaApi{svc: deps.QnaSvc, validate: deps.Validate}

	// a single group per prefix: a second Group call with the same prefix
	// would overwrite the first one's catch-all routes
	qg := g.Group("/qna", jwt, sessionMiddleware(deps.SessionMgr))
	content := accessMiddleware("/lectures")
	admin := accessMiddleware("/admin/qna")
	qg.GET("", api.query, content)
	qg.POST("", api.ask, content)
	qg.PUT("/:id/answer", api.answer, admin)
	qg.DELETE("/:id", api.destroy, admin)
}

func (api *qnaApi) query(ctx echo.Context) error {
	filter := new(qna.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []qna.Thread{})
	}

	threads, err := api.svc.Filter(ctx.Request().Context(), *filter)
	if err != nil {
		return errors.Wrap(err, "querying threads")
	}
	if threads == nil {
		threads = []qna.Thread{}
	}
	return ctx.JSON(http.StatusOK, threads)
}

func (api *qnaApi) ask(ctx echo.Context) error {
	snap, err := getContextSnapshot(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context snapshot")
	}
	if !snap.Authenticated() {
		return errUnauthorized
	}

	var data qna.NewThread
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewThread")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	t, err := api.svc.Ask(ctx.Request().Context(), snap.User.ID, snap.User.Name, data)
	if err != nil {
		return errors.Wrap(err, "creating thread")
	}
	return ctx.JSON(http.StatusCreated, t)
}

func (api *qnaApi) answer(ctx echo.Context) error {
	var data AnswerRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to AnswerRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	t, err := api.svc.Answer(ctx.Request().Context(), ctx.Param("id"), data.Text)
	if err != nil {
		switch errors.Cause(err) {
		case qna.ErrNotFound:
			return errHttpNotFound
		case qna.ErrAlreadyAnswered:
			return core.NewValidationError(err)
		}
		return errors.Wrap(err, "answering thread")
	}
	return ctx.JSON(http.StatusOK, t)
}

func (api *qnaApi) destroy(ctx echo.Context) error {
	if err := api.svc.Delete(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting thread")
	}
	return ctx.NoContent(http.StatusNoContent)
}
