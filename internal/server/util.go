package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/loykin/botvisor/internal/supervisor"
)

// Controller is what the HTTP layer needs from the supervisor.
type Controller interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Restart(ctx context.Context) error
	Status() supervisor.Status
}

type messageResp struct {
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

type statusResp struct {
	Online bool   `json:"online"`
	Uptime string `json:"uptime"`
}

type debugProcessResp struct {
	Online    bool       `json:"online"`
	Uptime    string     `json:"uptime"`
	PID       int        `json:"pid,omitempty"`
	RunID     string     `json:"run_id,omitempty"`
	StartedAt *time.Time `json:"started_at,omitempty"`
}

const (
	msgStarted        = "Bot started"
	msgStopped        = "Bot stopped"
	msgAlreadyRunning = "Bot is already running"
	msgNotRunning     = "Bot is not running"
	msgStartFailed    = "Bot failed to start"
	msgStopFailed     = "Bot failed to stop"
	msgUnavailable    = "Bot controller is shutting down"
)

// startResult maps the outcome of Start or Restart onto a status code and body.
func startResult(err error) (int, messageResp) {
	var le *supervisor.LaunchError
	switch {
	case err == nil:
		return http.StatusOK, messageResp{Message: msgStarted}
	case errors.Is(err, supervisor.ErrAlreadyRunning):
		return http.StatusBadRequest, messageResp{Message: msgAlreadyRunning}
	case errors.As(err, &le):
		return http.StatusInternalServerError, messageResp{Message: msgStartFailed, Error: le.Error()}
	default:
		return otherFailure(err, msgStartFailed)
	}
}

func stopResult(err error) (int, messageResp) {
	var se *supervisor.SignalError
	switch {
	case err == nil:
		return http.StatusOK, messageResp{Message: msgStopped}
	case errors.Is(err, supervisor.ErrNotRunning):
		return http.StatusBadRequest, messageResp{Message: msgNotRunning}
	case errors.As(err, &se):
		return http.StatusInternalServerError, messageResp{Message: msgStopFailed, Error: se.Error()}
	default:
		return otherFailure(err, msgStopFailed)
	}
}

func otherFailure(err error, msg string) (int, messageResp) {
	if errors.Is(err, supervisor.ErrClosed) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return http.StatusServiceUnavailable, messageResp{Message: msgUnavailable, Error: err.Error()}
	}
	return http.StatusInternalServerError, messageResp{Message: msg, Error: err.Error()}
}

func toStatusResp(st supervisor.Status) statusResp {
	return statusResp{Online: st.Online, Uptime: supervisor.FormatUptime(st.Uptime)}
}

func toDebugResp(st supervisor.Status) debugProcessResp {
	r := debugProcessResp{Online: st.Online, Uptime: supervisor.FormatUptime(st.Uptime)}
	if st.Online {
		r.PID = st.PID
		r.RunID = st.RunID
		started := st.StartedAt
		r.StartedAt = &started
	}
	return r
}

func logOutcome(log *slog.Logger, op string, code int, err error) {
	switch {
	case code >= http.StatusInternalServerError:
		log.Error("bot "+op+" failed", "status", code, "error", err)
	case err != nil:
		log.Info("bot "+op+" rejected", "status", code, "reason", err.Error())
	}
}

func sanitizeBase(bp string) string {
	bp = strings.TrimSpace(bp)
	if bp == "" || bp == "/" {
		return ""
	}
	if !strings.HasPrefix(bp, "/") {
		bp = "/" + bp
	}
	bp = strings.TrimRight(bp, "/")
	return bp
}

// NewHandler builds the API on the named engine ("gin" or "echo").
func NewHandler(engine string, ctl Controller, basePath string, log *slog.Logger) (http.Handler, error) {
	switch engine {
	case "", "gin":
		return NewRouter(ctl, basePath, log).Handler(), nil
	case "echo":
		return NewEchoRouter(ctl, basePath, log).Handler(), nil
	}
	return nil, fmt.Errorf("unknown http engine %q", engine)
}

// NewServer wraps h in an http.Server with the controller's timeouts.
// WriteTimeout covers a restart waiting out the stop timeout.
func NewServer(addr string, h http.Handler, writeTimeout time.Duration) *http.Server {
	if writeTimeout < 15*time.Second {
		writeTimeout = 15 * time.Second
	}
	return &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       60 * time.Second,
	}
}
