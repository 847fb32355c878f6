package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/floatchat/internal/app"
	"github.com/vovakirdan/floatchat/internal/config"
)

var (
	serveAddr     string
	serveChannels []string
)

// serveCmd runs the local bridge.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the local HTTP and WebSocket bridge",
	Long: `Serve shares one chat socket between every channel joined through the
local API, persists chatter to the database and streams it to WebSocket
listeners. Channels from the config file are joined on start.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig(os.Stdout)
		if err != nil {
			return err
		}
		cfg.UpdateFrom(config.Config{Addr: serveAddr, Channels: serveChannels})

		application, err := app.New(cfg, logger)
		if err != nil {
			return fmt.Errorf("init app: %w", err)
		}

		ctx, stop := signalContext()
		defer stop()

		logger.Info().Str("addr", cfg.Addr).Strs("channels", cfg.Channels).Msg("starting floatchat bridge")
		if err := application.Run(ctx); err != nil {
			return fmt.Errorf("server exited with error: %w", err)
		}
		logger.Info().Msg("server stopped")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "HTTP listen address (overrides config)")
	serveCmd.Flags().StringSliceVar(&serveChannels, "channel", nil, "channel to join on start, repeatable (overrides config)")
}
