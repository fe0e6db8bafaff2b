package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loykin/botvisor/internal/process"
	"github.com/loykin/botvisor/internal/supervisor"
)

type fakeCtl struct {
	mu         sync.Mutex
	startErr   error
	stopErr    error
	restartErr error
	status     supervisor.Status
	calls      []string
}

func (f *fakeCtl) record(op string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, op)
}

func (f *fakeCtl) Start(context.Context) error   { f.record("start"); return f.startErr }
func (f *fakeCtl) Stop(context.Context) error    { f.record("stop"); return f.stopErr }
func (f *fakeCtl) Restart(context.Context) error { f.record("restart"); return f.restartErr }
func (f *fakeCtl) Status() supervisor.Status     { f.record("status"); return f.status }

func quietLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

var engines = []string{"gin", "echo"}

func setupHandler(t *testing.T, engine string, ctl Controller, base string) http.Handler {
	t.Helper()
	gin.SetMode(gin.TestMode)
	h, err := NewHandler(engine, ctl, base, quietLogger())
	require.NoError(t, err)
	return h
}

func doReq(t *testing.T, h http.Handler, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m), rec.Body.String())
	return m
}

func TestLifecycleRoutes(t *testing.T) {
	cases := []struct {
		name    string
		ctl     *fakeCtl
		path    string
		code    int
		message string
	}{
		{"start ok", &fakeCtl{}, "/start", http.StatusOK, "Bot started"},
		{"start running", &fakeCtl{startErr: supervisor.ErrAlreadyRunning}, "/start", http.StatusBadRequest, "Bot is already running"},
		{"start launch", &fakeCtl{startErr: &supervisor.LaunchError{Argv: []string{"x"}, Err: errors.New("not found")}}, "/start", http.StatusInternalServerError, "Bot failed to start"},
		{"stop ok", &fakeCtl{}, "/stop", http.StatusOK, "Bot stopped"},
		{"stop absent", &fakeCtl{stopErr: supervisor.ErrNotRunning}, "/stop", http.StatusBadRequest, "Bot is not running"},
		{"stop closed", &fakeCtl{stopErr: supervisor.ErrClosed}, "/stop", http.StatusServiceUnavailable, msgUnavailable},
		{"restart ok", &fakeCtl{}, "/restart", http.StatusOK, "Bot started"},
		{"restart running", &fakeCtl{restartErr: supervisor.ErrAlreadyRunning}, "/restart", http.StatusBadRequest, "Bot is already running"},
	}
	for _, engine := range engines {
		for _, c := range cases {
			t.Run(engine+"/"+c.name, func(t *testing.T) {
				h := setupHandler(t, engine, c.ctl, "/bot")
				rec := doReq(t, h, http.MethodPost, "/bot"+c.path)
				assert.Equal(t, c.code, rec.Code)
				assert.Equal(t, c.message, decode(t, rec)["message"])
			})
		}
	}
}

func TestStatusRoute(t *testing.T) {
	for _, engine := range engines {
		t.Run(engine, func(t *testing.T) {
			ctl := &fakeCtl{status: supervisor.Status{Online: true, Uptime: time.Hour + 2*time.Minute + 5*time.Second, PID: 9}}
			h := setupHandler(t, engine, ctl, "")
			rec := doReq(t, h, http.MethodGet, "/status")
			require.Equal(t, http.StatusOK, rec.Code)
			assert.JSONEq(t, `{"online":true,"uptime":"1h 2m 5s"}`, rec.Body.String())

			rec = doReq(t, h, http.MethodGet, "/debug/process")
			require.Equal(t, http.StatusOK, rec.Code)
			m := decode(t, rec)
			assert.Equal(t, true, m["online"])
			assert.Equal(t, float64(9), m["pid"])
		})
	}
}

func TestWrongMethodAndBase(t *testing.T) {
	for _, engine := range engines {
		t.Run(engine, func(t *testing.T) {
			ctl := &fakeCtl{}
			h := setupHandler(t, engine, ctl, "/api/")
			assert.NotEqual(t, http.StatusOK, doReq(t, h, http.MethodGet, "/api/start").Code)
			assert.Equal(t, http.StatusNotFound, doReq(t, h, http.MethodPost, "/start").Code)
			assert.Equal(t, http.StatusOK, doReq(t, h, http.MethodPost, "/api/start").Code)
			assert.Equal(t, []string{"start"}, ctl.calls)
		})
	}
}

type panicCtl struct{ fakeCtl }

func (p *panicCtl) Start(context.Context) error { panic("boom") }

func TestRecoveryMiddleware(t *testing.T) {
	for _, engine := range engines {
		t.Run(engine, func(t *testing.T) {
			h := setupHandler(t, engine, &panicCtl{}, "")
			rec := doReq(t, h, http.MethodPost, "/start")
			assert.Equal(t, http.StatusInternalServerError, rec.Code)
		})
	}
}

// TestEndToEnd drives a real supervisor through an HTTP server.
func TestEndToEnd(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires sleep on Unix-like systems")
	}
	for _, engine := range engines {
		t.Run(engine, func(t *testing.T) {
			sup := supervisor.New(supervisor.Options{
				Spec:         process.Spec{Name: "bot", Command: []string{"sleep", "30"}},
				RestartDelay: 100 * time.Millisecond,
				StopTimeout:  2 * time.Second,
				Logger:       quietLogger(),
			})
			ctx, cancel := context.WithCancel(context.Background())
			go sup.Run(ctx)
			t.Cleanup(func() {
				sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer scancel()
				_ = sup.Shutdown(sctx)
				cancel()
			})

			ts := httptest.NewServer(setupHandler(t, engine, sup, ""))
			defer ts.Close()

			call := func(method, path string) (int, string) {
				req, err := http.NewRequest(method, ts.URL+path, nil)
				require.NoError(t, err)
				resp, err := ts.Client().Do(req)
				require.NoError(t, err)
				defer func() { _ = resp.Body.Close() }()
				b, err := io.ReadAll(resp.Body)
				require.NoError(t, err)
				return resp.StatusCode, string(b)
			}

			code, body := call(http.MethodPost, "/start")
			assert.Equal(t, http.StatusOK, code)
			assert.JSONEq(t, `{"message":"Bot started"}`, body)

			code, body = call(http.MethodPost, "/start")
			assert.Equal(t, http.StatusBadRequest, code)
			assert.JSONEq(t, `{"message":"Bot is already running"}`, body)

			code, body = call(http.MethodGet, "/status")
			assert.Equal(t, http.StatusOK, code)
			var st statusResp
			require.NoError(t, json.Unmarshal([]byte(body), &st))
			assert.True(t, st.Online)

			code, body = call(http.MethodPost, "/restart")
			assert.Equal(t, http.StatusOK, code)
			assert.JSONEq(t, `{"message":"Bot started"}`, body)

			code, body = call(http.MethodPost, "/stop")
			assert.Equal(t, http.StatusOK, code)
			assert.JSONEq(t, `{"message":"Bot stopped"}`, body)

			code, body = call(http.MethodPost, "/stop")
			assert.Equal(t, http.StatusBadRequest, code)
			assert.JSONEq(t, `{"message":"Bot is not running"}`, body)

			code, body = call(http.MethodGet, "/status")
			assert.Equal(t, http.StatusOK, code)
			assert.JSONEq(t, `{"online":false,"uptime":"0h 0m 0s"}`, body)
		})
	}
}
