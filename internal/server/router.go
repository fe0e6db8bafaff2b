package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Router provides embeddable HTTP handlers controlling the bot.
// Endpoints:
//
//	POST {basePath}/start
//	POST {basePath}/stop
//	POST {basePath}/restart
//	GET  {basePath}/status
//	GET  {basePath}/debug/process
//
// basePath may be empty or start with '/'; no trailing slash.
type Router struct {
	ctl      Controller
	basePath string
	log      *slog.Logger
}

// NewRouter constructs a Router. A nil logger falls back to slog.Default.
func NewRouter(ctl Controller, basePath string, log *slog.Logger) *Router {
	if log == nil {
		log = slog.Default()
	}
	return &Router{ctl: ctl, basePath: sanitizeBase(basePath), log: log}
}

// Handler returns an http.Handler powered by gin that can be mounted in any server/mux.
func (r *Router) Handler() http.Handler {
	g := gin.New()
	g.Use(gin.Recovery(), r.logRequests())
	r.Register(g.Group(r.basePath))
	return g
}

// Register mounts the routes on an existing gin group.
func (r *Router) Register(group *gin.RouterGroup) {
	group.POST("/start", r.handleStart)
	group.POST("/stop", r.handleStop)
	group.POST("/restart", r.handleRestart)
	group.GET("/status", r.handleStatus)
	group.GET("/debug/process", r.handleDebugProcess)
}

func (r *Router) logRequests() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		r.log.Debug("http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start))
	}
}

// --- Handlers ---

func (r *Router) handleStart(c *gin.Context) {
	err := r.ctl.Start(c.Request.Context())
	code, body := startResult(err)
	logOutcome(r.log, "start", code, err)
	c.JSON(code, body)
}

func (r *Router) handleStop(c *gin.Context) {
	err := r.ctl.Stop(c.Request.Context())
	code, body := stopResult(err)
	logOutcome(r.log, "stop", code, err)
	c.JSON(code, body)
}

func (r *Router) handleRestart(c *gin.Context) {
	err := r.ctl.Restart(c.Request.Context())
	code, body := startResult(err)
	logOutcome(r.log, "restart", code, err)
	c.JSON(code, body)
}

func (r *Router) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, toStatusResp(r.ctl.Status()))
}

func (r *Router) handleDebugProcess(c *gin.Context) {
	c.JSON(http.StatusOK, toDebugResp(r.ctl.Status()))
}
