package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/udisondev/uologin/internal/config"
	"github.com/udisondev/uologin/internal/db"
	"github.com/udisondev/uologin/internal/login"
)

const (
	ConfigPath    = "config/loginproxy.yaml"
	statsInterval = time.Minute
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("shutting down", "signal", sig)
		cancel()
	}()

	if err := run(ctx); err != nil {
		slog.Error("fatal", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfgPath := ConfigPath
	if p := os.Getenv("UOLOGIN_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.LoadLoginProxy(cfgPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	level, err := cfg.SlogLevel()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	})))

	slog.Info("uologin proxy starting")
	slog.Info("config loaded",
		"bind", cfg.BindAddress,
		"port", cfg.Port,
		"default_version", cfg.DefaultVersion,
		"extra_versions", len(cfg.ExtraVersions),
		"history", cfg.History.Enabled,
	)

	var repo login.DetectionRepository = login.NopDetectionRepository{}
	if cfg.History.Enabled {
		dsn := cfg.History.Database.DSN()

		database, err := db.New(ctx, dsn)
		if err != nil {
			return fmt.Errorf("connecting to database: %w", err)
		}
		defer database.Close()
		slog.Info("database connected")

		if err := db.RunMigrations(ctx, dsn); err != nil {
			return fmt.Errorf("running migrations: %w", err)
		}
		slog.Info("database migrations applied")

		repo = db.NewPostgresDetectionRepository(database.Pool())
	}

	server, err := login.NewServer(cfg, nil, repo, login.NewDumpHandler(nil))
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := server.Run(gctx); err != nil {
			return fmt.Errorf("login proxy: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		reportSessions(gctx, server.SessionManager())
		return nil
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// reportSessions periodically logs active sessions by state.
func reportSessions(ctx context.Context, sm *login.SessionManager) {
	ticker := time.NewTicker(statsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			counts := sm.CountByState()
			if len(counts) == 0 {
				continue
			}
			attrs := make([]any, 0, 2*len(counts))
			for state, n := range counts {
				attrs = append(attrs, state.String(), n)
			}
			slog.Info("active sessions", attrs...)
		}
	}
}
