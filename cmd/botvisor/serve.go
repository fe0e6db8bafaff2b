package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/loykin/botvisor"
	"github.com/loykin/botvisor/internal/config"
	"github.com/loykin/botvisor/internal/logger"
)

const shutdownGrace = 15 * time.Second

// runServe loads configuration and runs the controller until ctx is done.
// onListen, when set, receives the bound API address.
func runServe(ctx context.Context, path string, onListen func(addr string)) error {
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return serve(ctx, cfg, onListen)
}

func serve(ctx context.Context, cfg *config.Config, onListen func(addr string)) error {
	log, closer := logger.New(cfg.LoggerConfig())
	defer func() { _ = closer.Close() }()
	prev := slog.Default()
	slog.SetDefault(log)
	defer slog.SetDefault(prev)

	spec, err := cfg.ProcessSpec()
	if err != nil {
		return fmt.Errorf("bot spec: %w", err)
	}

	var metricsSrv *http.Server
	if cfg.Metrics.Enabled {
		if err := botvisor.RegisterMetricsDefault(); err != nil {
			log.Warn("metrics registration failed", "error", err)
		}
		metricsSrv = botvisor.MetricsServer(cfg.Metrics.Listen)
		go func() {
			log.Info("metrics listening", "addr", cfg.Metrics.Listen)
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("metrics server error", "error", err)
			}
		}()
	}

	opts := botvisor.Options{
		Spec:         spec,
		RestartDelay: cfg.Bot.RestartDelay,
		StopTimeout:  cfg.Bot.StopTimeout,
		Logger:       log,
	}
	if cfg.History.DSN != "" {
		sink, err := botvisor.NewHistorySink(cfg.History.DSN)
		if err != nil {
			return fmt.Errorf("history sink: %w", err)
		}
		defer func() { _ = sink.Close() }()
		opts.History = sink
	}

	sup := botvisor.New(opts)
	loopCtx, stopLoop := context.WithCancel(context.Background())
	defer stopLoop()
	go sup.Run(loopCtx)

	h, err := botvisor.NewHTTPHandler(cfg.Server.Engine, sup, cfg.Server.BasePath, log)
	if err != nil {
		return err
	}
	// a restart may block for stop timeout plus restart delay
	srv := botvisor.NewHTTPServer(cfg.Addr(), h, cfg.Bot.StopTimeout+cfg.Bot.RestartDelay+shutdownGrace)
	ln, err := net.Listen("tcp", cfg.Addr())
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.Addr(), err)
	}
	log.Info("controller listening", "addr", ln.Addr().String(), "engine", cfg.Server.Engine, "base_path", cfg.Server.BasePath, "command", spec.String())
	if onListen != nil {
		onListen(ln.Addr().String())
	}

	srvErr := make(chan error, 1)
	go func() { srvErr <- srv.Serve(ln) }()

	var runErr error
	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case err := <-srvErr:
		if !errors.Is(err, http.ErrServerClosed) {
			runErr = err
		}
	}

	sctx, cancel := context.WithTimeout(context.Background(), cfg.Bot.StopTimeout+shutdownGrace)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		log.Warn("http shutdown", "error", err)
	}
	if metricsSrv != nil {
		_ = metricsSrv.Shutdown(sctx)
	}
	if cfg.Bot.StopOnExit {
		if err := sup.Shutdown(sctx); err != nil {
			log.Warn("bot shutdown", "error", err)
		}
	} else if err := sup.Close(sctx); err != nil {
		log.Warn("controller close", "error", err)
	}
	return runErr
}
