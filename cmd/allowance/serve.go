package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/dukerupert/allowance/internal/config"
	"github.com/dukerupert/allowance/internal/database"
	"github.com/dukerupert/allowance/internal/events"
	"github.com/dukerupert/allowance/internal/logging"
	"github.com/dukerupert/allowance/internal/server"
)

const (
	shutdownTimeout        = 10 * time.Second
	rateLimitCleanupPeriod = 5 * time.Minute
)

func serveCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the allowance scheduler",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig(v)
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg, logger)
		},
	}
	cmd.Flags().String("port", "", "HTTP port")
	_ = v.BindPFlag("port", cmd.Flags().Lookup("port"))
	return cmd
}

// loadConfig resolves and validates configuration and sets up logging.
func loadConfig(v *viper.Viper) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(v)
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	return cfg, logging.Setup(cfg.LogLevel, cfg.LogFormat), nil
}

func serve(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	db, err := database.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	var publisher events.Publisher = events.Nop{}
	if cfg.AMQPURL != "" {
		p, err := events.NewAMQP(cfg.AMQPURL, cfg.AMQPExchange, logger)
		if err != nil {
			return err
		}
		publisher = p
		logger.Info("publishing events", "exchange", cfg.AMQPExchange)
	}

	srv, err := server.New(db, server.Options{
		JWTSecret:         cfg.JWTSecret,
		TokenTTL:          cfg.TokenTTL,
		AllowedOrigins:    cfg.AllowedOrigins,
		CacheMaxCost:      cfg.CacheMaxCost,
		AllowanceInterval: cfg.AllowanceInterval,
		Publisher:         publisher,
	}, logger)
	if err != nil {
		publisher.Close()
		return err
	}
	defer srv.Close()

	// No WriteTimeout: websocket connections outlive any fixed deadline.
	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("allowance api listening", "addr", httpServer.Addr, "version", version)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		return srv.RateLimiter().Run(ctx, rateLimitCleanupPeriod)
	})

	g.Go(func() error {
		sched := srv.Scheduler()
		sched.Start(ctx)
		<-ctx.Done()
		sched.Stop()
		return nil
	})

	return g.Wait()
}
