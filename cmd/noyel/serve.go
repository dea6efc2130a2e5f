package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"noyel/internal/handlers"
	"noyel/internal/search"
	"noyel/internal/session"
	"noyel/pkg/db"
	"noyel/pkg/telemetry"
)

func newServeCommand() *cobra.Command {
	var skipMigrate bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(commandContext(cmd), skipMigrate)
		},
	}

	cmd.Flags().BoolVar(&skipMigrate, "skip-migrate", false, "Do not apply pending migrations on startup")
	return cmd
}

func runServe(ctx context.Context, skipMigrate bool) error {
	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", serviceName).Logger()
	log.Logger = logger

	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	shutdownTelemetry, traceMiddleware, err := telemetry.Init(ctx, serviceName, cfg.OTLPEndpoint)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("shutdown telemetry")
		}
	}()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	if !skipMigrate {
		if err := db.Migrate(ctx, a.pool, db.Up, nil); err != nil {
			return err
		}
	}

	var sessions session.Store = session.NewMemoryStore()
	if cfg.RedisURL != "" {
		client, err := session.Connect(ctx, cfg.RedisURL)
		if err != nil {
			return err
		}
		defer client.Close()
		sessions = session.NewRedisStore(client)
	} else {
		logger.Warn().Msg("REDIS_URL not set, sessions are kept in memory")
	}

	api, err := handlers.New(handlers.Services{
		Accounts: a.accounts,
		Gifts:    a.gifts,
		Sessions: sessions,
		Search:   search.NewPgxSearcher(a.pool),
		Exporter: a.exporter,
		Metrics:  a.metrics,
		Gatherer: a.registry,
		Ready:    a.ready,
	}, handlers.Config{
		ServiceName:        serviceName,
		SessionTTL:         cfg.SessionTTL,
		CookieDomain:       cfg.CookieDomain,
		CookieSecure:       cfg.CookieSecure,
		AllowedOrigins:     cfg.AllowedOrigins,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		Logger:             logger,
		Telemetry:          traceMiddleware,
	})
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.Addr).Msg("starting noyel")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("shutdown server")
	}
	return nil
}
