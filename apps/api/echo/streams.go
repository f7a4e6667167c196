package echoapi

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/farsihub/backend/core/catalog"
	"github.com/farsihub/backend/core/qna"
	"github.com/farsihub/backend/core/realtime"
	"github.com/farsihub/backend/core/session"
)

// streamApi exposes the watch channels as server-sent event streams. Each
// stream pushes a full snapshot on every change and closes with the request
// context.
type streamApi struct {
	sessionMgr *session.Manager
	catalogSvc *catalog.Service
	qnaSvc     *qna.Service
	hub        *realtime.Hub
}

func registerStreamAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps *Deps) {
	api := streamApi{
		sessionMgr: deps.SessionMgr,
		catalogSvc: deps.CatalogSvc,
		qnaSvc:     deps.QnaSvc,
		hub:        deps.Hub,
	}

	sg := g.Group("/streams", jwt, sessionMiddleware(deps.SessionMgr))
	sg.GET("/session", api.streamSession)
	sg.GET("/lectures", api.streamLectures, accessMiddleware("/lectures"))
	sg.GET("/qna", api.streamThreads, accessMiddleware("/lectures"))
	sg.GET("/events", api.streamEvents, accessMiddleware("/admin/students"))
}

type sseWriter struct {
	res *echo.Response
}

func newSSEWriter(ctx echo.Context) sseWriter {
	res := ctx.Response()
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set("Cache-Control", "no-store")
	res.Header().Set("Connection", "keep-alive")
	res.WriteHeader(http.StatusOK)
	res.Flush()
	return sseWriter{res: res}
}

func (w sseWriter) send(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return errors.Wrap(err, "marshalling event payload")
	}
	if _, err = fmt.Fprintf(w.res, "data: %s\n\n", data); err != nil {
		return errors.Wrap(err, "writing event")
	}
	w.res.Flush()
	return nil
}

func (api *streamApi) streamSession(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting claims")
	}

	w := newSSEWriter(ctx)
	snaps := make(chan session.Snapshot, 16)
	sess := api.sessionMgr.Session(claims.Subject)
	unsub := sess.Subscribe(func(s session.Snapshot) {
		select {
		case snaps <- s:
		default:
		}
	})
	defer unsub()

	if err = w.send(newSessionResponse(sess.Snapshot())); err != nil {
		return nil
	}
	done := ctx.Request().Context().Done()
	for {
		select {
		case <-done:
			return nil
		case s := <-snaps:
			if err = w.send(newSessionResponse(s)); err != nil {
				return nil
			}
		}
	}
}

func (api *streamApi) streamLectures(ctx echo.Context) error {
	filter := new(catalog.QueryFilter)
	_ = ctx.Bind(filter)

	w := newSSEWriter(ctx)
	snaps := make(chan []catalog.Lecture, 16)
	failed := make(chan error, 1)
	unsub := api.catalogSvc.WatchLectures(*filter,
		func(lectures []catalog.Lecture) {
			select {
			case snaps <- lectures:
			default:
			}
		},
		func(err error) {
			select {
			case failed <- err:
			default:
			}
		},
	)
	defer unsub()

	lectures, err := api.catalogSvc.FilterLectures(ctx.Request().Context(), *filter)
	if err != nil {
		return nil
	}
	if lectures == nil {
		lectures = []catalog.Lecture{}
	}
	if err = w.send(lectures); err != nil {
		return nil
	}
	done := ctx.Request().Context().Done()
	for {
		select {
		case <-done:
			return nil
		case <-failed:
			return nil
		case ls := <-snaps:
			if ls == nil {
				ls = []catalog.Lecture{}
			}
			if err = w.send(ls); err != nil {
				return nil
			}
		}
	}
}

func (api *streamApi) streamThreads(ctx echo.Context) error {
	filter := new(qna.QueryFilter)
	_ = ctx.Bind(filter)

	w := newSSEWriter(ctx)
	snaps := make(chan []qna.Thread, 16)
	failed := make(chan error, 1)
	unsub := api.qnaSvc.Watch(*filter,
		func(threads []qna.Thread) {
			select {
			case snaps <- threads:
			default:
			}
		},
		func(err error) {
			select {
			case failed <- err:
			default:
			}
		},
	)
	defer unsub()

	threads, err := api.qnaSvc.Filter(ctx.Request().Context(), *filter)
	if err != nil {
		return nil
	}
	if threads == nil {
		threads = []qna.Thread{}
	}
	if err = w.send(threads); err != nil {
		return nil
	}
	done := ctx.Request().Context().Done()
	for {
		select {
		case <-done:
			return nil
		case <-failed:
			return nil
		case ts := <-snaps:
			if ts == nil {
				ts = []qna.Thread{}
			}
			if err = w.send(ts); err != nil {
				return nil
			}
		}
	}
}

// streamEvents relays the hub's audit events, eg. denied quiz submissions.
func (api *streamApi) streamEvents(ctx echo.Context) error {
	w := newSSEWriter(ctx)
	events, unsub := api.hub.Subscribe()
	defer unsub()

	done := ctx.Request().Context().Done()
	for {
		select {
		case <-done:
			return nil
		case evt, ok := <-events:
			if !ok {
				return nil
			}
			if err := w.send(evt); err != nil {
				return nil
			}
		}
	}
}
