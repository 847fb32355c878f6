package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/vovakirdan/floatchat/internal/config"
	applog "github.com/vovakirdan/floatchat/internal/log"
)

var (
	configPath string
	logLevel   string
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "floatchat",
	Short: "Floatplane livestream chat client",
	Long: `floatchat connects to Floatplane livestream chat over the Sails socket
protocol. It can print a channel to the terminal, watch the frontend
notification socket, or run a local HTTP and WebSocket bridge.

Authenticate once with 'floatchat session set <sails.sid cookie>'.`,
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ./floatchat.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: trace, debug, info, warn, error, off")
}

// loadConfig resolves configuration and builds the logger writing to out.
func loadConfig(out io.Writer) (*config.Config, *zerolog.Logger, error) {
	boot := applog.NewTo(out, logLevel)
	cfg, path, err := config.Load(boot, configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}

	logger := applog.NewTo(out, cfg.LogLevel)
	logger.Debug().Str("path", path).Msg("configuration loaded")
	return &cfg, logger, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
