package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/spf13/cobra"

	"github.com/vovakirdan/floatchat/internal/proto"
)

var tailAddr string

// tailCmd follows channels through a running bridge.
var tailCmd = &cobra.Command{
	Use:   "tail <channel>",
	Short: "Follow a channel through a running 'floatchat serve'",
	Long: `Tail attaches to the WebSocket feed of the local bridge. Type +<channel>
or -<channel> and press Enter to follow or drop more channels.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		addr := tailAddr
		if addr == "" {
			cfg, _, err := loadConfig(os.Stderr)
			if err != nil {
				return err
			}
			addr = "ws://" + cfg.Addr
		}

		baseCtx, stop := signalContext()
		defer stop()
		ctx, cancel := context.WithCancel(baseCtx)
		defer cancel()

		conn, _, err := websocket.Dial(ctx, addr+"/ws/channels/"+args[0], nil)
		if err != nil {
			return fmt.Errorf("dial: %w", err)
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Following %s via %s. Ctrl+C to exit.\n", args[0], addr)

		go func() {
			defer cancel()
			tailCommands(ctx, conn, os.Stdin, out)
		}()

		err = tailFeed(ctx, conn, out)
		_ = conn.Close(websocket.StatusNormalClosure, "bye")
		return err
	},
}

func init() {
	rootCmd.AddCommand(tailCmd)
	tailCmd.Flags().StringVar(&tailAddr, "addr", "", "bridge address, e.g. ws://127.0.0.1:8089 (default from config)")
}

func tailFeed(ctx context.Context, conn *websocket.Conn, out io.Writer) error {
	for {
		var outbound struct {
			Type  string          `json:"type"`
			Event string          `json:"event"`
			Data  json.RawMessage `json:"data"`
			Error *proto.Error    `json:"error"`
		}
		if err := wsjson.Read(ctx, conn, &outbound); err != nil {
			// Treat expected shutdowns quietly.
			if errors.Is(err, context.Canceled) {
				return nil
			}
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}

		if outbound.Type == proto.OutboundTypeError && outbound.Error != nil {
			fmt.Fprintf(out, "! %s: %s\n", outbound.Error.Code, outbound.Error.Msg)
			continue
		}
		fmt.Fprint(out, formatOutbound(outbound.Event, outbound.Data))
	}
}

func formatOutbound(event string, data json.RawMessage) string {
	switch event {
	case proto.OutboundEventChatter:
		var line proto.EventChatter
		if err := json.Unmarshal(data, &line); err != nil {
			return fmt.Sprintf("! undecodable chatter: %v\n", err)
		}
		return fmt.Sprintf("[%s] %s: %s\n", line.Channel, line.User, line.Text)
	case proto.OutboundEventHistory:
		var h proto.EventHistory
		if err := json.Unmarshal(data, &h); err != nil {
			return fmt.Sprintf("! undecodable history: %v\n", err)
		}
		var b strings.Builder
		for _, line := range h.Lines {
			fmt.Fprintf(&b, "[%s] %s: %s\n", h.Channel, line.User, line.Text)
		}
		return b.String()
	case proto.OutboundEventConnected, proto.OutboundEventDisconnected, proto.OutboundEventState:
		var st proto.EventState
		if err := json.Unmarshal(data, &st); err != nil {
			return fmt.Sprintf("! undecodable state: %v\n", err)
		}
		return fmt.Sprintf("[%s] * %s\n", st.Channel, st.State)
	default:
		return fmt.Sprintf("event=%s data=%s\n", event, data)
	}
}

func tailCommands(ctx context.Context, conn *websocket.Conn, in io.Reader, out io.Writer) {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				// Stdin closed; keep following.
				<-ctx.Done()
				return
			}
			typ, channel, ok := parseTailCommand(line)
			if !ok {
				if strings.TrimSpace(line) != "" {
					fmt.Fprintln(out, "! use +<channel> or -<channel>")
				}
				continue
			}
			payload, _ := json.Marshal(proto.SubscribeData{Channel: channel})
			if err := wsjson.Write(ctx, conn, proto.Inbound{Type: typ, Data: payload}); err != nil {
				fmt.Fprintf(out, "! send: %v\n", err)
				return
			}
		}
	}
}

func parseTailCommand(line string) (string, string, bool) {
	line = strings.TrimSpace(line)
	if len(line) < 2 {
		return "", "", false
	}
	switch line[0] {
	case '+':
		return proto.InboundTypeSubscribe, line[1:], true
	case '-':
		return proto.InboundTypeUnsubscribe, line[1:], true
	}
	return "", "", false
}
