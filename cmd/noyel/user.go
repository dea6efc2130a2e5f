package main

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"noyel/internal/account"
)

func newUserCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage user accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.AddCommand(newUserCreateCommand())
	cmd.AddCommand(newUserSetActiveCommand())
	return cmd
}

func newUserCreateCommand() *cobra.Command {
	var (
		in       account.SignupInput
		verified bool
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an account with one email address",
		RunE: func(cmd *cobra.Command, args []string) error {
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

			in.PasswordConfirm = in.Password
			user, err := a.accounts.Signup(ctx, in)
			if err != nil && !(verified && errors.Is(err, account.ErrMailDelivery)) {
				return err
			}
			if verified {
				email, err := account.NormalizeEmail(in.Email)
				if err != nil {
					return err
				}
				if _, err := a.accounts.VerifyEmail(ctx, user, email, account.MakeHash(cfg.SecretKey, email)); err != nil {
					return fmt.Errorf("verify %s: %w", email, err)
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created user %s (%s)\n", user.Username, user.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&in.Username, "username", "", "Login name")
	cmd.Flags().StringVar(&in.DisplayName, "display-name", "", "Name shown to other users")
	cmd.Flags().StringVar(&in.Email, "email", "", "Email address")
	cmd.Flags().StringVar(&in.Password, "password", "", "Initial password")
	cmd.Flags().BoolVar(&verified, "verified", false, "Mark the email address as verified")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newUserSetActiveCommand() *cobra.Command {
	var (
		username string
		active   bool
	)

	cmd := &cobra.Command{
		Use:   "set-active",
		Short: "Enable or disable logins for an account",
		RunE: func(cmd *cobra.Command, args []string) error {
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
			if err := a.accounts.SetActive(ctx, user.ID, active); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "user %s active=%t\n", user.Username, active)
			return nil
		},
	}

	cmd.Flags().StringVar(&username, "username", "", "Login name")
	cmd.Flags().BoolVar(&active, "active", true, "Whether the account may log in")
	_ = cmd.MarkFlagRequired("username")
	return cmd
}
