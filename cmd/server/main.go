package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/hperssn/coindoro/internal/config"
	httpapi "github.com/hperssn/coindoro/internal/http"
	"github.com/hperssn/coindoro/internal/runner"
	"github.com/hperssn/coindoro/internal/storage"
)

func main() {
	defaults := config.Default()

	app := cli.App{
		Name:  "coindoro",
		Usage: "focus timer that pays reward units for worked time",
	}

	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:    "addr",
			Usage:   "listen address for the API server",
			Value:   defaults.Addr,
			EnvVars: []string{"COINDORO_ADDR"},
		},
		&cli.StringFlag{
			Name:    "metrics-addr",
			Usage:   "listen address for the prometheus metrics server, empty to disable",
			Value:   defaults.MetricsAddr,
			EnvVars: []string{"COINDORO_METRICS_ADDR"},
		},
		&cli.StringFlag{
			Name:    "env",
			Usage:   "deployment environment (development, staging, production)",
			Value:   defaults.Env,
			EnvVars: []string{"APP_ENV"},
		},
		&cli.StringFlag{
			Name:    "log-level",
			Usage:   "log level",
			Value:   defaults.LogLevel,
			EnvVars: []string{"LOG_LEVEL"},
		},
		&cli.IntFlag{
			Name:    "session-length-minutes",
			Usage:   "default focus session length",
			Value:   defaults.SessionLengthMinutes,
			EnvVars: []string{"COINDORO_SESSION_LENGTH_MINUTES"},
		},
		&cli.IntFlag{
			Name:    "minutes-per-reward-unit",
			Usage:   "default worked minutes per reward unit, 0 disables rewards",
			Value:   defaults.MinutesPerRewardUnit,
			EnvVars: []string{"COINDORO_MINUTES_PER_REWARD_UNIT"},
		},
		&cli.DurationFlag{
			Name:    "sample-interval",
			Usage:   "countdown sampling period",
			Value:   defaults.SampleInterval,
			EnvVars: []string{"COINDORO_SAMPLE_INTERVAL"},
		},
		&cli.DurationFlag{
			Name:    "smooth-interval",
			Usage:   "balance projection period while the view is expanded",
			Value:   defaults.SmoothInterval,
			EnvVars: []string{"COINDORO_SMOOTH_INTERVAL"},
		},
		&cli.DurationFlag{
			Name:    "session-ttl",
			Usage:   "drop sessions idle for longer than this",
			Value:   defaults.SessionTTL,
			EnvVars: []string{"COINDORO_SESSION_TTL"},
		},
		&cli.StringFlag{
			Name:    "db-driver",
			Usage:   "history store (sqlite, postgres, none)",
			Value:   defaults.DBDriver,
			EnvVars: []string{"COINDORO_DB_DRIVER"},
		},
		&cli.StringFlag{
			Name:    "db-dsn",
			Usage:   "history store data source name",
			Value:   defaults.DBDSN,
			EnvVars: []string{"COINDORO_DB_DSN", "DATABASE_URL"},
		},
		&cli.Float64Flag{
			Name:    "rate-limit",
			Usage:   "mutating requests per second per user, 0 disables",
			Value:   defaults.RateLimit,
			EnvVars: []string{"COINDORO_RATE_LIMIT"},
		},
	}

	app.Action = run

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func configFromCLI(cctx *cli.Context) *config.Config {
	return &config.Config{
		Addr:                 cctx.String("addr"),
		MetricsAddr:          cctx.String("metrics-addr"),
		Env:                  cctx.String("env"),
		LogLevel:             cctx.String("log-level"),
		SessionLengthMinutes: cctx.Int("session-length-minutes"),
		MinutesPerRewardUnit: cctx.Int("minutes-per-reward-unit"),
		SampleInterval:       cctx.Duration("sample-interval"),
		SmoothInterval:       cctx.Duration("smooth-interval"),
		SessionTTL:           cctx.Duration("session-ttl"),
		DBDriver:             cctx.String("db-driver"),
		DBDSN:                cctx.String("db-dsn"),
		RateLimit:            cctx.Float64("rate-limit"),
	}
}

func run(cctx *cli.Context) error {
	cfg := configFromCLI(cctx)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger, err := cfg.NewLogger()
	if err != nil {
		return err
	}
	defer func() {
		_ = logger.Sync()
	}()

	ctx, stop := signal.NotifyContext(cctx.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	history, err := storage.Open(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		return fmt.Errorf("opening %s history store: %w", cfg.DBDriver, err)
	}

	mcfg := runner.ManagerConfig{
		Config: runner.Config{
			Logger:         logger.With("source", "runner"),
			SampleInterval: cfg.SampleInterval,
			SmoothInterval: cfg.SmoothInterval,
		},
		IdleTTL: cfg.SessionTTL,
	}
	if history != nil {
		mcfg.Recorder = history
		defer history.Close()
	}

	managerCtx, stopManager := context.WithCancel(context.Background())
	defer stopManager()
	manager := runner.NewSessionManager(managerCtx, mcfg)

	router := httpapi.NewRouter(httpapi.RouterConfig{
		Manager:        manager,
		History:        history,
		Defaults:       cfg.Settings(),
		Logger:         logger.With("source", "http"),
		AllowAnonymous: cfg.Env == "development",
		RateLimit:      cfg.RateLimit,
	})

	api := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	var metrics *http.Server
	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metrics = &http.Server{Addr: cfg.MetricsAddr, Handler: mux}
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Infow("api server listening", "addr", cfg.Addr, "history", cfg.DBDriver)
		if err := api.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("api server: %w", err)
		}
		return nil
	})

	if metrics != nil {
		g.Go(func() error {
			logger.Infow("metrics server listening", "addr", cfg.MetricsAddr)
			if err := metrics.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		// Stopping the sessions first closes their event streams, which lets
		// open SSE requests finish before the server drains.
		manager.StopAll()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		err := api.Shutdown(shutdownCtx)
		if metrics != nil {
			err = errors.Join(err, metrics.Shutdown(shutdownCtx))
		}
		return err
	})

	return g.Wait()
}
