package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/specs-feup/weaver/internal/httpapi"
	"github.com/specs-feup/weaver/internal/log"
	"github.com/specs-feup/weaver/internal/parallel"
	"github.com/specs-feup/weaver/internal/session"
	"github.com/specs-feup/weaver/internal/telemetry"
	"github.com/specs-feup/weaver/internal/weave"
)

const shutdownGrace = 30 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "serve accepts weaving requests over HTTP",
	RunE:  doServe,
}

func bindServeFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("addr", "", "listen address (server.addr)")
	f.Int("pool-size", 0, "number of jobs running in parallel (pool.size)")
	f.String("launcher", "", "executable starting the weaving tool (weaver.launcher)")
	f.String("temp-dir", "", "directory holding the session directories (weaver.temp_dir)")
	f.String("timeout", "", "deadline of a single tool run, 0s disables it (weaver.timeout)")
	f.Bool("no-janitor", false, "do not sweep stale session directories")

	bindOverride(overrides, "server.addr", f.Lookup("addr"))
	bindOverride(overrides, "pool.size", f.Lookup("pool-size"))
	bindOverride(overrides, "weaver.launcher", f.Lookup("launcher"))
	bindOverride(overrides, "weaver.temp_dir", f.Lookup("temp-dir"))
	bindOverride(overrides, "weaver.timeout", f.Lookup("timeout"))
	bindOverride(overrides, "janitor.enabled", nil)
	bindOverride(overrides, "service.log", nil)
	bindOverride(overrides, "service.verbose", nil)
}

func doServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	attrs := slog.Group("weaver",
		slog.String("cmd", "serve"),
		slog.Int("pid", os.Getpid()),
	)
	ctx = log.ContextAttrs(ctx, attrs)

	if noJanitor, _ := cmd.Flags().GetBool("no-janitor"); noJanitor {
		config.Janitor.Enabled = false
	}

	var metrics *telemetry.Metrics
	var metricsHandler http.Handler
	if config.Service.Metrics {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		metrics = telemetry.New(reg)
		metricsHandler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	}

	if config.Weaver.TimeoutDuration() == 0 {
		slog.WarnContext(ctx, "weaver.timeout is 0: a hung tool blocks its slot forever")
	}

	sessions := session.NewManager(config.Weaver.TempDir)
	executor := weave.NewExecutor(weave.NewConfig(config.Weaver), sessions).WithObserver(metrics)
	pool := parallel.NewPool(config.Pool.Size).WithObserver(metrics.ObservePool)
	dispatcher := weave.NewDispatcher(pool, executor)

	srv := &http.Server{
		Addr: config.Server.Addr,
		Handler: httpapi.NewRouter(dispatcher, sessions, httpapi.Config{
			MaxBody:     config.Server.MaxBody,
			CORSOrigins: config.Server.CORSOrigins,
			Metrics:     metricsHandler,
		}),
		ReadTimeout:  config.Server.ReadTimeoutDuration(),
		WriteTimeout: config.Server.WriteTimeoutDuration(),
		// jobs of a stopping server are killed, their sessions released
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.InfoContext(ctx, "listening", "addr", srv.Addr, "pool", config.Pool.Size, "temp_dir", sessions.Base())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serving http: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), shutdownGrace)
		defer cancel()
		slog.InfoContext(ctx, "shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	if config.Janitor.Enabled {
		janitor := session.NewJanitor(sessions, config.Janitor.MaxAgeDuration()).
			WithSweptFunc(metrics.ObserveSwept)
		g.Go(func() error {
			return janitor.Run(gctx, config.Janitor.Schedule)
		})
	}
	return g.Wait()
}
