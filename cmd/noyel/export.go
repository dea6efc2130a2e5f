package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"noyel/internal/export"
)

func newExportCommand() *cobra.Command {
	var (
		username  string
		output    string
		recipient string
		upload    bool
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the data of an account to a tar.zst archive",
		RunE: func(cmd *cobra.Command, args []string) error {
			if output == "" && !upload {
				return errors.New("either --output or --upload is required")
			}
			ctx := commandContext(cmd)
			cfg, err := loadConfig(ctx)
			if err != nil {
				return err
			}
			a, err := newApp(ctx, cfg, log.Logger)
			if err != nil {
				return err
			}
			defer a.Close()

			user, err := a.accounts.GetUserByUsername(ctx, username)
			if err != nil {
				return fmt.Errorf("user %q: %w", username, err)
			}

			out := cmd.OutOrStdout()
			if upload {
				res, err := a.exporter.Upload(ctx, user, recipient)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "uploaded %s (expires %s)\n%s\n", res.Key, res.ExpiresAt.Format(time.RFC3339), res.URL)
				return nil
			}

			f, err := os.Create(output)
			if err != nil {
				return err
			}
			archive, err := a.exporter.Write(ctx, f, user, recipient)
			if closeErr := f.Close(); err == nil {
				err = closeErr
			}
			if err != nil {
				_ = os.Remove(output)
				return err
			}
			fmt.Fprintf(out, "wrote %s: %d files, encrypted=%t\n", output, len(archive.Manifest.Files), archive.Encrypted)
			return nil
		},
	}

	cmd.Flags().StringVar(&username, "username", "", "Account to export")
	cmd.Flags().StringVar(&output, "output", "", "Destination archive file")
	cmd.Flags().StringVar(&recipient, "recipient", "", "age X25519 recipient to encrypt the archive for")
	cmd.Flags().BoolVar(&upload, "upload", false, "Upload to S3 and print a presigned download link")
	_ = cmd.MarkFlagRequired("username")

	cmd.AddCommand(newExportVerifyCommand())
	return cmd
}

func newExportVerifyCommand() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check the manifest and checksums of an unencrypted archive",
		Long:  "Check the manifest and checksums of an unencrypted archive. The signature is verified when AGE_SECRET_KEY is set.",
		RunE: func(cmd *cobra.Command, args []string) error {
			var signer *export.Signer
			if key := os.Getenv("AGE_SECRET_KEY"); key != "" {
				s, err := export.NewSigner(key)
				if err != nil {
					return err
				}
				signer = s
			}

			f, err := os.Open(file)
			if err != nil {
				return err
			}
			defer f.Close()

			manifest, _, err := export.Inspect(f, signer)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: export of %s created %s, %d files, signed=%t\n",
				file, manifest.Username, manifest.CreatedAt.Format(time.RFC3339), len(manifest.Files), manifest.Signature != "")
			return nil
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "Archive to verify")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}
