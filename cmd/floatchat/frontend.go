package main

import (
	"encoding/json"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/floatchat/internal/app"
	"github.com/vovakirdan/floatchat/internal/realtime"
)

var frontendEvents []string

// frontendCmd logs push notifications from the frontend socket.
var frontendCmd = &cobra.Command{
	Use:   "frontend",
	Short: "Log push events from the Floatplane frontend socket",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig(os.Stderr)
		if err != nil {
			return err
		}

		ctx, stop := signalContext()
		defer stop()

		cookie, err := storedCookie(ctx, cfg, logger)
		if err != nil {
			return err
		}

		p := &eventPrinter{printer: newPrinter(cmd.OutOrStdout(), true, logger)}
		transport := realtime.NewTransport(app.Endpoint(cfg, cfg.FrontendURL, cookie, logger))
		socket := realtime.NewFrontendSocket(transport, p, app.Options(cfg, logger), frontendEvents...)

		return runUntilSignal(ctx, socket, p.printer, cfg.RPCTimeout+time.Second, logger)
	},
}

func init() {
	rootCmd.AddCommand(frontendCmd)
	frontendCmd.Flags().StringSliceVar(&frontendEvents, "event", realtime.DefaultFrontendEvents, "push event to subscribe to, repeatable")
}

// eventPrinter prints frontend push events as JSON lines.
type eventPrinter struct {
	*printer
}

func (p *eventPrinter) OnEvent(name string, payload json.RawMessage) {
	line, err := json.Marshal(struct {
		Event   string          `json:"event"`
		Payload json.RawMessage `json:"payload,omitempty"`
	}{name, payload})
	if err != nil {
		p.log.Warn().Err(err).Str("event", name).Msg("unprintable push event")
		return
	}
	p.mu.Lock()
	p.out.Write(append(line, '\n'))
	p.mu.Unlock()
}
