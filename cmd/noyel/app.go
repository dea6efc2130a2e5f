package main

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"noyel/internal/account"
	"noyel/internal/config"
	noyeldb "noyel/internal/db"
	"noyel/internal/export"
	"noyel/internal/kdo"
	"noyel/internal/mailer"
	"noyel/internal/metrics"
	"noyel/pkg/bus"
	"noyel/pkg/db"
	"noyel/pkg/mail"
	"noyel/pkg/render"
	gos3 "noyel/pkg/s3"
)

// app holds the dependencies shared by the subcommands.
type app struct {
	cfg      config.Config
	log      zerolog.Logger
	pool     *pgxpool.Pool
	db       *gorm.DB
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	bus      *bus.Bus
	sender   mail.Sender
	accounts *account.Service
	gifts    *kdo.Service
	exporter *export.Exporter
}

// newApp connects to the database and the optional mail queue and builds the
// domain services. The caller must Close it.
func newApp(ctx context.Context, cfg config.Config, logger zerolog.Logger) (*app, error) {
	a := &app{cfg: cfg, log: logger, registry: prometheus.NewRegistry()}
	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a.metrics = metrics.New(a.registry)

	var err error
	if a.pool, err = db.Open(ctx, cfg.DBDSN); err != nil {
		return nil, fmt.Errorf("open pool: %w", err)
	}
	if a.db, err = noyeldb.Connect(ctx, cfg.DBDSN); err != nil {
		a.Close()
		return nil, fmt.Errorf("connect database: %w", err)
	}

	if a.sender, err = newSender(cfg, logger); err != nil {
		a.Close()
		return nil, err
	}
	engine, err := render.New()
	if err != nil {
		a.Close()
		return nil, err
	}

	var outbox mailer.Outbox = mailer.NewDirectOutbox(a.sender, a.metrics)
	if cfg.NATSURL != "" {
		if a.bus, err = bus.New(cfg.NATSURL); err != nil {
			a.Close()
			return nil, fmt.Errorf("connect nats: %w", err)
		}
		if err := a.bus.EnsureStream(mailer.StreamName, mailer.Subject); err != nil {
			a.Close()
			return nil, fmt.Errorf("ensure mail stream: %w", err)
		}
		outbox = mailer.NewQueueOutbox(a.bus, a.metrics)
	}
	notifier := mailer.NewNotifier(engine, outbox, mailer.NotifierOptions{
		SiteName: cfg.SiteName,
		SiteURL:  cfg.SiteURL,
		ResetTTL: cfg.PasswordResetTTL,
	})

	a.accounts = account.NewService(a.db, notifier, account.Options{
		SecretKey:        cfg.SecretKey,
		PasswordResetTTL: cfg.PasswordResetTTL,
		Hasher:           account.NewBcryptHasher(cfg.BcryptCost),
		Metrics:          a.metrics,
	})
	a.gifts = kdo.NewService(a.db, notifier)

	if a.exporter, err = newExporter(ctx, cfg, a.db); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func newSender(cfg config.Config, logger zerolog.Logger) (mail.Sender, error) {
	if cfg.SMTPHost == "" {
		logger.Warn().Msg("SMTP_HOST not set, emails are only logged")
		return mail.NewLogSender(), nil
	}
	sender, err := mail.NewSMTPSender(mail.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUser,
		Password: cfg.SMTPPassword,
		From:     cfg.MailFrom,
	})
	if err != nil {
		return nil, fmt.Errorf("smtp sender: %w", err)
	}
	return sender, nil
}

func newExporter(ctx context.Context, cfg config.Config, database *gorm.DB) (*export.Exporter, error) {
	opts := export.Options{DefaultRecipient: cfg.ExportRecipient}
	if cfg.AgeSecretKey != "" {
		signer, err := export.NewSigner(cfg.AgeSecretKey)
		if err != nil {
			return nil, fmt.Errorf("export signer: %w", err)
		}
		opts.Signer = signer
	}
	if cfg.S3.Enabled() {
		client, err := gos3.NewClient(ctx, gos3.Config{
			Endpoint:     cfg.S3.Endpoint,
			Region:       cfg.S3.Region,
			AccessKey:    cfg.S3.AccessKey,
			SecretKey:    cfg.S3.SecretKey,
			Bucket:       cfg.S3.Bucket,
			UsePathStyle: cfg.S3.UsePathStyle,
		})
		if err != nil {
			return nil, fmt.Errorf("s3 client: %w", err)
		}
		opts.Uploader = client
	}
	return export.New(database, opts), nil
}

// ready checks both database handles.
func (a *app) ready(ctx context.Context) error {
	if err := db.Ping(ctx, a.pool); err != nil {
		return fmt.Errorf("pool: %w", err)
	}
	sqlDB, err := a.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (a *app) Close() {
	if a.bus != nil {
		a.bus.Close()
	}
	if a.db != nil {
		if err := noyeldb.Close(a.db); err != nil {
			a.log.Error().Err(err).Msg("close database")
		}
	}
	if a.pool != nil {
		a.pool.Close()
	}
}
