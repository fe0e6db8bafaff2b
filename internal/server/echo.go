package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// EchoRouter serves the same API as Router on labstack/echo.
type EchoRouter struct {
	ctl      Controller
	basePath string
	log      *slog.Logger
}

func NewEchoRouter(ctl Controller, basePath string, log *slog.Logger) *EchoRouter {
	if log == nil {
		log = slog.Default()
	}
	return &EchoRouter{ctl: ctl, basePath: sanitizeBase(basePath), log: log}
}

func (r *EchoRouter) Handler() http.Handler {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover(), r.logRequests)
	r.Register(e.Group(r.basePath))
	return e
}

// Register mounts the routes on an existing echo group.
func (r *EchoRouter) Register(g *echo.Group) {
	g.POST("/start", r.handleStart)
	g.POST("/stop", r.handleStop)
	g.POST("/restart", r.handleRestart)
	g.GET("/status", r.handleStatus)
	g.GET("/debug/process", r.handleDebugProcess)
}

func (r *EchoRouter) logRequests(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)
		r.log.Debug("http request",
			"method", c.Request().Method,
			"path", c.Request().URL.Path,
			"status", c.Response().Status,
			"duration", time.Since(start))
		return err
	}
}

func (r *EchoRouter) handleStart(c echo.Context) error {
	err := r.ctl.Start(c.Request().Context())
	code, body := startResult(err)
	logOutcome(r.log, "start", code, err)
	return c.JSON(code, body)
}

func (r *EchoRouter) handleStop(c echo.Context) error {
	err := r.ctl.Stop(c.Request().Context())
	code, body := stopResult(err)
	logOutcome(r.log, "stop", code, err)
	return c.JSON(code, body)
}

func (r *EchoRouter) handleRestart(c echo.Context) error {
	err := r.ctl.Restart(c.Request().Context())
	code, body := startResult(err)
	logOutcome(r.log, "restart", code, err)
	return c.JSON(code, body)
}

func (r *EchoRouter) handleStatus(c echo.Context) error {
	return c.JSON(http.StatusOK, toStatusResp(r.ctl.Status()))
}

func (r *EchoRouter) handleDebugProcess(c echo.Context) error {
	return c.JSON(http.StatusOK, toDebugResp(r.ctl.Status()))
}
