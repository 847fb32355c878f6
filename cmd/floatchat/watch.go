package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/vovakirdan/floatchat/internal/app"
	"github.com/vovakirdan/floatchat/internal/chatter"
	"github.com/vovakirdan/floatchat/internal/realtime"
)

var (
	watchPlain       bool
	watchNoReconnect bool
)

// watchCmd prints one channel to the terminal.
var watchCmd = &cobra.Command{
	Use:   "watch <channel>",
	Short: "Print the chat of a livestream channel",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig(os.Stderr)
		if err != nil {
			return err
		}
		channel := args[0]

		ctx, stop := signalContext()
		defer stop()

		cookie, err := storedCookie(ctx, cfg, logger)
		if err != nil {
			return err
		}

		opts := app.Options(cfg, logger)
		if watchNoReconnect {
			opts.AutoReconnect = false
		}
		p := newPrinter(cmd.OutOrStdout(), watchPlain, logger)
		transport := realtime.NewTransport(app.Endpoint(cfg, cfg.ChatURL, cookie, logger))
		socket := realtime.NewChatSocket(transport, channel, p, opts)

		return runUntilSignal(ctx, socket, p, cfg.RPCTimeout+time.Second, logger)
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().BoolVar(&watchPlain, "plain", false, "print without colors")
	watchCmd.Flags().BoolVar(&watchNoReconnect, "no-reconnect", false, "exit instead of redialing after a lost connection")
}

// socket is the part of ChatSocket and FrontendSocket the commands drive.
type socket interface {
	Run(ctx context.Context)
	Connect()
	Disconnect()
	State() realtime.State
}

// runUntilSignal connects s and, once ctx is done, disconnects it and waits
// up to grace for the leave to finish before closing the transport.
func runUntilSignal(ctx context.Context, s socket, p *printer, grace time.Duration, logger *zerolog.Logger) error {
	runCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Run(runCtx)
	}()

	s.Connect()
	<-ctx.Done()

	if st := s.State(); st.Active() || st == realtime.StateUnexpectedlyDisconnected {
		logger.Info().Msg("disconnecting")
		s.Disconnect()
		select {
		case <-p.disconnected:
		case <-time.After(grace):
			logger.Warn().Dur("grace", grace).Msg("leave did not finish in time")
		}
	}
	cancel()
	<-done
	return nil
}

// printer writes chat lines and lifecycle notices for a terminal.
type printer struct {
	realtime.NopDelegate

	mu           sync.Mutex
	out          io.Writer
	plain        bool
	log          *zerolog.Logger
	disconnected chan struct{}
	once         sync.Once
}

func newPrinter(out io.Writer, plain bool, logger *zerolog.Logger) *printer {
	return &printer{out: out, plain: plain, log: logger, disconnected: make(chan struct{})}
}

func (p *printer) OnConnected() {
	p.log.Info().Msg("connected")
}

func (p *printer) OnDisconnected(st realtime.State) {
	if st == realtime.StateDisconnectedBySelf {
		p.once.Do(func() { close(p.disconnected) })
		return
	}
	p.log.Warn().Stringer("state", st).Msg("connection lost")
}

func (p *printer) OnError(err error) {
	p.log.Error().Err(err).Msg("session error")
}

func (p *printer) OnChatter(r chatter.Rendered) {
	line := chatter.Styled(r)
	if p.plain {
		line = chatter.Plain(r)
	}
	p.mu.Lock()
	fmt.Fprintln(p.out, line)
	p.mu.Unlock()
}
