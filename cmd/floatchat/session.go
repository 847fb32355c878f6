package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/vovakirdan/floatchat/internal/app"
	"github.com/vovakirdan/floatchat/internal/config"
	"github.com/vovakirdan/floatchat/internal/session"
	"github.com/vovakirdan/floatchat/internal/store/sqlite"
)

var sessionReveal bool

// sessionCmd manages the stored sails.sid cookie.
var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Manage the Floatplane session cookie",
	Long: `The sockets authenticate with the sails.sid cookie of a logged in
browser session. Copy it from the browser and store it with 'session set'.
A session_cookie in the config file takes precedence over the stored one.`,
}

var sessionSetCmd = &cobra.Command{
	Use:   "set <cookie>",
	Short: "Store the session cookie",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSessions(func(ctx context.Context, svc *session.Service, _ *zerolog.Logger) error {
			if err := svc.Save(ctx, args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "session cookie stored")
			return nil
		})
	},
}

var sessionShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the session cookie in use",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSessions(func(ctx context.Context, svc *session.Service, _ *zerolog.Logger) error {
			value, source, err := svc.Cookie(ctx)
			if err != nil {
				return err
			}
			if !sessionReveal {
				value = session.Mask(value)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (from %s)\n", value, source)
			return nil
		})
	},
}

var sessionClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove the stored session cookie",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSessions(func(ctx context.Context, svc *session.Service, logger *zerolog.Logger) error {
			if err := svc.Clear(ctx); err != nil {
				return err
			}
			if _, source, err := svc.Cookie(ctx); err == nil && source == session.SourceConfig {
				logger.Warn().Msg("session_cookie is still set in the config file")
			}
			fmt.Fprintln(cmd.OutOrStdout(), "stored session cookie removed")
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(sessionCmd)
	sessionCmd.AddCommand(sessionSetCmd, sessionShowCmd, sessionClearCmd)
	sessionShowCmd.Flags().BoolVar(&sessionReveal, "reveal", false, "print the full cookie")
}

// withSessions runs fn with a session service backed by the configured database.
func withSessions(fn func(context.Context, *session.Service, *zerolog.Logger) error) error {
	cfg, logger, err := loadConfig(os.Stderr)
	if err != nil {
		return err
	}
	st, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("init store: %w", err)
	}
	defer st.Close()

	return fn(context.Background(), session.NewService(st, cfg.SessionCookie), logger)
}

// storedCookie resolves the cookie for a socket command. A missing cookie is
// not fatal.
func storedCookie(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (string, error) {
	st, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return "", fmt.Errorf("init store: %w", err)
	}
	defer st.Close()

	return app.ResolveCookie(ctx, session.NewService(st, cfg.SessionCookie), logger), nil
}
