package echoapi

import (
	"context"
	"net/http"
	"os"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/farsihub/backend/core"
	"github.com/farsihub/backend/core/catalog"
	"github.com/farsihub/backend/core/identity"
	"github.com/farsihub/backend/core/qna"
	"github.com/farsihub/backend/core/quiz"
	"github.com/farsihub/backend/core/realtime"
	"github.com/farsihub/backend/core/session"
	"github.com/farsihub/backend/core/user"
)

type (
	// Deps carries everything the API needs; main wires it up once.
	Deps struct {
		Conf       *core.Config
		Logger     core.Logger
		IdnSvc     *identity.Service
		UsrSvc     *user.Service
		SessionMgr *session.Manager
		CatalogSvc *catalog.Service
		QuizSvc    *quiz.Service
		QnaSvc     *qna.Service
		Hub        *realtime.Hub
		Validate   *validator.Validate
		Translator ut.Translator
	}

	Server interface {
		http.Handler
		Start()
		Stop(context.Context) error
	}

	server struct {
		addr string
		app  *echo.Echo
	}
)

var _ Server = (*server)(nil)

func NewServer(addr string, shutdown chan<- os.Signal, deps *Deps) Server {
	s := &server{
		addr: addr,
		app:  echo.New(),
	}
	s.setup(shutdown, deps)
	return s
}

func (s *server) setup(shutdown chan<- os.Signal, deps *Deps) {
	conf := deps.Conf
	initAuth(conf)

	s.app.Pre(middleware.RemoveTrailingSlash())
	if !conf.TestMode {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}

	signalShutdown := func() {
		if shutdown != nil {
			shutdown <- syscall.SIGTERM
		}
	}
	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(deps.Logger, deps.Translator, signalShutdown)
	s.app.Debug = conf.Debug

	s.app.GET("/", home)

	v1 := s.app.Group("/v1")
	jwt := middleware.JWTWithConfig(appJWTConfig)

	registerUserAPI(v1, jwt, deps)
	registerSessionAPI(v1, jwt, deps)
	registerCatalogAPI(v1, jwt, deps)
	registerQnaAPI(v1, jwt, deps)
	registerStreamAPI(v1, jwt, deps)
}

func (s *server) Start() {
	if err := s.app.Start(s.addr); err != nil && err != http.ErrServerClosed {
		s.app.Logger.Fatal(err)
	}
}

func (s *server) Stop(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to FarsiHub API!")
}
