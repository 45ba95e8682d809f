package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/heartmarshall/zengin-sync/internal/config"
)

// badgerGCInterval is how often the embedded store reclaims its value log.
const badgerGCInterval = 10 * time.Minute

// Run is the server entry point. It loads configuration, wires the
// components, serves HTTP and runs the in-process scheduler until ctx is
// cancelled, then shuts everything down within the configured timeout.
func Run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := NewLogger(cfg.Log)

	logger.Info("starting application",
		slog.String("version", BuildVersion()),
		slog.String("log_level", cfg.Log.Level),
		slog.String("environment", cfg.App.Environment),
		slog.String("store", cfg.Store.Backend),
		slog.String("scheduler", cfg.Scheduler.Backend),
	)

	c, err := Build(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("build components: %w", err)
	}
	defer c.Close()

	return Serve(ctx, c)
}

// Serve runs the HTTP server and background jobs for already built components.
func Serve(ctx context.Context, c *Components) error {
	cfg := c.Config
	logger := c.Logger

	handler, stopLimiter := NewRouter(c)
	defer stopLimiter()

	srv := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port)),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	if c.Local != nil {
		if _, err := c.Local.Restore(ctx, c.Store); err != nil {
			return fmt.Errorf("restore one-shots: %w", err)
		}
		if cfg.Scheduler.DailyEnabled {
			if err := c.Local.AddDaily(cfg.Scheduler.DailyCron); err != nil {
				return err
			}
		}
		c.Local.Start()
		defer c.Local.Stop()
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("http server listening", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down http server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if c.Badger != nil && !cfg.Store.BadgerInMemory {
		g.Go(func() error {
			ticker := time.NewTicker(badgerGCInterval)
			defer ticker.Stop()
			for {
				select {
				case <-gctx.Done():
					return nil
				case <-ticker.C:
					c.Badger.RunGC()
				}
			}
		})
	}

	err := g.Wait()
	logger.Info("server stopped")
	return err
}
