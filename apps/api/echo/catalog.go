package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/farsihub/backend/core/catalog"
	"github.com/farsihub/backend/core/quiz"
)

type catalogApi struct {
	svc      *catalog.Service
	quizSvc  *quiz.Service
	validate *validator.Validate
}

func registerCatalogAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps *Deps) {
	api := catalogApi{
		svc:      deps.CatalogSvc,
		quizSvc:  deps.QuizSvc,
		validate: deps.Validate,
	}

	// a single group; access decisions attach per route so a second
	// same-prefix Group call cannot overwrite the first one's catch-alls
	cg := g.Group("", jwt, sessionMiddleware(deps.SessionMgr))
	content := accessMiddleware("/lectures")
	admin := accessMiddleware("/admin/lectures")

	// content routes, any signed-in (onboarded) user
	cg.GET("/subjects", api.querySubjects, content)
	cg.GET("/lectures", api.queryLectures, content)
	cg.GET("/lectures/:id", api.retrieveLecture, content)
	cg.POST("/lectures/:id/submissions", api.submitQuiz, content)

	// admin routes
	cg.POST("/subjects", api.createSubject, admin)
	cg.DELETE("/subjects/:id", api.destroySubject, admin)
	cg.POST("/lectures", api.createLecture, admin)
	cg.PUT("/lectures/:id", api.updateLecture, admin)
	cg.DELETE("/lectures/:id", api.destroyLecture, admin)
	cg.PUT("/lectures/:id/quiz", api.attachQuiz, admin)
	cg.DELETE("/lectures/:id/quiz", api.removeQuiz, admin)
	cg.GET("/lectures/:id/submissions", api.queryLectureSubmissions, admin)
}

// Handlers

func (api *catalogApi) querySubjects(ctx echo.Context) error {
	filter := new(catalog.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []catalog.Subject{})
	}

	subjects, err := api.svc.FilterSubjects(ctx.Request().Context(), *filter)
	if err != nil {
		return errors.Wrap(err, "querying subjects")
	}
	if subjects == nil {
		subjects = []catalog.Subject{}
	}
	return ctx.JSON(http.StatusOK, subjects)
}

func (api *catalogApi) createSubject(ctx echo.Context) error {
	var data catalog.NewSubject
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSubject")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	s, err := api.svc.CreateSubject(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating subject")
	}
	return ctx.JSON(http.StatusCreated, s)
}

func (api *catalogApi) destroySubject(ctx echo.Context) error {
	if err := api.svc.DeleteSubject(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting subject")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *catalogApi) queryLectures(ctx echo.Context) error {
	filter := new(catalog.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []catalog.Lecture{})
	}

	lectures, err := api.svc.FilterLectures(ctx.Request().Context(), *filter)
	if err != nil {
		return errors.Wrap(err, "querying lectures")
	}
	if lectures == nil {
		lectures = []catalog.Lecture{}
	}
	return ctx.JSON(http.StatusOK, lectures)
}

func (api *catalogApi) retrieveLecture(ctx echo.Context) error {
	l, err := api.svc.GetLecture(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		if errors.Cause(err) == catalog.ErrLectureNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "finding lecture by ID")
	}
	return ctx.JSON(http.StatusOK, l)
}

func (api *catalogApi) createLecture(ctx echo.Context) error {
	var data catalog.NewLecture
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewLecture")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	l, err := api.svc.CreateLecture(ctx.Request().Context(), data)
	if err != nil {
		if errors.Cause(err) == catalog.ErrSubjectNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "creating lecture")
	}
	return ctx.JSON(http.StatusCreated, l)
}

func (api *catalogApi) updateLecture(ctx echo.Context) error {
	var data catalog.UpdateLecture
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateLecture")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	l, err := api.svc.UpdateLecture(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		if errors.Cause(err) == catalog.ErrLectureNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "updating lecture")
	}
	return ctx.JSON(http.StatusOK, l)
}

func (api *catalogApi) destroyLecture(ctx echo.Context) error {
	if err := api.svc.DeleteLecture(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting lecture")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *catalogApi) attachQuiz(ctx echo.Context) error {
	var data quiz.Quiz
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Quiz")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	l, err := api.svc.AttachQuiz(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		if errors.Cause(err) == catalog.ErrLectureNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "attaching quiz")
	}
	return ctx.JSON(http.StatusOK, l)
}

func (api *catalogApi) removeQuiz(ctx echo.Context) error {
	l, err := api.svc.RemoveQuiz(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		if errors.Cause(err) == catalog.ErrLectureNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "removing quiz")
	}
	return ctx.JSON(http.StatusOK, l)
}

// submitQuiz grades a student attempt against the lecture's embedded quiz.
// Unapproved students are rejected by the quiz service.
func (api *catalogApi) submitQuiz(ctx echo.Context) error {
	snap, err := getContextSnapshot(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context snapshot")
	}
	if !snap.Authenticated() {
		return errUnauthorized
	}

	l, err := api.svc.GetLecture(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		if errors.Cause(err) == catalog.ErrLectureNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "finding lecture by ID")
	}
	if l.Quiz == nil {
		return errHttpNotFound
	}

	var data quiz.NewSubmission
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSubmission")
	}
	data.SubjectID = l.SubjectID
	data.LectureID = l.ID
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	u := snap.User
	actor := quiz.Actor{ID: u.ID, Admin: u.IsAdmin(), Approved: u.Approved}
	s, err := api.quizSvc.Submit(ctx.Request().Context(), actor, *l.Quiz, data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, s)
}

func (api *catalogApi) queryLectureSubmissions(ctx echo.Context) error {
	subs, err := api.quizSvc.ByLecture(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "querying submissions")
	}
	if subs == nil {
		subs = []quiz.Submission{}
	}
	return ctx.JSON(http.StatusOK, subs)
}
