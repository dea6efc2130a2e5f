package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"noyel/pkg/db"
)

func newMigrateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:       "migrate [up|down|status]",
		Short:     "Apply, roll back or list schema migrations",
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{string(db.Up), string(db.Down), string(db.Status)},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)
			dir := db.Up
			if len(args) == 1 {
				dir = db.Direction(args[0])
			}

			cfg, err := loadConfig(ctx)
			if err != nil {
				return err
			}
			pool, err := db.Open(ctx, cfg.DBDSN)
			if err != nil {
				return fmt.Errorf("open pool: %w", err)
			}
			defer pool.Close()

			out := cmd.OutOrStdout()
			err = db.Migrate(ctx, pool, dir, func(version int64, applied bool) {
				state := "pending"
				if applied {
					state = "applied"
				}
				fmt.Fprintf(out, "%05d\t%s\n", version, state)
			})
			if err != nil {
				return fmt.Errorf("migrate %s: %w", dir, err)
			}
			if dir != db.Status {
				fmt.Fprintf(out, "migrate %s: done\n", dir)
			}
			return nil
		},
	}
	return cmd
}
