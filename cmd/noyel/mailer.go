package main

import (
	"errors"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"noyel/internal/mailer"
	"noyel/pkg/bus"
)

func newMailerCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "mailer",
		Short: "Send the emails queued on NATS",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)
			cfg, err := loadConfig(ctx)
			if err != nil {
				return err
			}
			if cfg.NATSURL == "" {
				return errors.New("NATS_URL is required to run the mail worker")
			}
			logger := log.Logger.With().Str("component", "mailer").Logger()

			sender, err := newSender(cfg, logger)
			if err != nil {
				return err
			}
			b, err := bus.New(cfg.NATSURL)
			if err != nil {
				return err
			}
			defer b.Close()
			if err := b.EnsureStream(mailer.StreamName, mailer.Subject); err != nil {
				return err
			}

			return mailer.NewWorker(b, sender, nil, logger).Run(ctx)
		},
	}
}
