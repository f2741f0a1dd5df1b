package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/danielhkuo/clubvote/ballot"
	"github.com/danielhkuo/clubvote/candidate"
	"github.com/danielhkuo/clubvote/cliparse"
	"github.com/danielhkuo/clubvote/db"
	"github.com/danielhkuo/clubvote/election"
	"github.com/danielhkuo/clubvote/metrics"
	"github.com/danielhkuo/clubvote/middleware"
	"github.com/danielhkuo/clubvote/router"
	"github.com/danielhkuo/clubvote/tally"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// Parse configuration
	cfg, err := cliparse.ParseFlags(os.Args[1:])
	if err != nil {
		slog.Error("Error parsing flags", "error", err)
		os.Exit(1)
	}
	setupLogging(cfg)

	if err := run(cfg); err != nil {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func setupLogging(cfg cliparse.Config) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if strings.EqualFold(cfg.LogFormat, "json") {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}

func run(cfg cliparse.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Connect and verify
	dbConn, dialect, err := db.Open(cfg.DatabaseType, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer dbConn.Close()

	// Create schema (tables)
	if err := db.CreateSchema(dbConn, dialect); err != nil {
		return err
	}
	slog.Info("Database schema ready", "database", dialect)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	store := election.NewStore(dbConn, dialect)
	controller := election.NewController(store, m)
	engine := tally.NewEngine(store, m)
	hub := tally.NewHub(engine, m, cfg.TallyPollInterval)
	scheduler := election.NewScheduler(controller, cfg.SchedulerInterval)

	// Requests get their own base context; a signal only starts Shutdown
	server := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.Port),
		ReadHeaderTimeout: 10 * time.Second,
	}
	mux := router.NewRouter(router.Services{
		Controller: controller,
		Registry:   candidate.NewRegistry(store, m),
		Ledger:     ballot.NewLedger(store, m, hub),
		Engine:     engine,
		Hub:        hub,
		Gatherer:   reg,
		OnShutdown: server.RegisterOnShutdown,
	}, cfg)
	server.Handler = middleware.CORS(mux)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("Listening", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return hub.Run(gctx)
	})
	g.Go(func() error {
		return scheduler.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		slog.Info("Shutting down")
		return server.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	slog.Info("Server closed", "error", err)
	return err
}
