// Command siren-sim connects to the relay as a siren, registers, and
// acknowledges every command addressed to it. Useful for exercising the
// dashboard without hardware.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/joho/godotenv"

	"github.com/sirenwatch/siren-backend/internal/alert"
	"github.com/sirenwatch/siren-backend/internal/logging"
	"github.com/sirenwatch/siren-backend/internal/relay"
)

func main() {
	_ = godotenv.Load(".env.local")

	url := flag.String("url", "ws://localhost:5050/ws", "Relay websocket URL")
	sirenID := flag.String("id", "", "Siren id to register as (required)")
	playFor := flag.Duration("play-for", 0, "Send ack-off this long after ack-on; 0 keeps playing until an off command")
	logLevel := flag.String("log-level", "info", "Log level")
	flag.Parse()

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logging.ParseLevel(*logLevel)})))

	if *sirenID == "" {
		fmt.Fprintln(os.Stderr, "--id is required")
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *url, *sirenID, *playFor); err != nil {
		slog.Error("simulator stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, url, sirenID string, playFor time.Duration) error {
	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	conn, _, _, err := ws.Dial(dialCtx, url)
	cancel()
	if err != nil {
		return fmt.Errorf("dial %s: %w", url, err)
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	sim := &simulator{conn: conn, sirenID: sirenID, playFor: playFor}
	if err := sim.send(relay.EventRegister, sirenID); err != nil {
		return err
	}
	slog.Info("registered", "siren", sirenID, "url", url)

	return sim.loop(ctx)
}

type simulator struct {
	conn    net.Conn
	sirenID string
	playFor time.Duration
	stopAt  time.Time
}

func (s *simulator) send(event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	frame, err := json.Marshal(relay.Envelope{Event: event, Data: data})
	if err != nil {
		return err
	}
	if err := wsutil.WriteClientText(s.conn, frame); err != nil {
		return fmt.Errorf("send %s: %w", event, err)
	}
	return nil
}

// loop reads server frames. wsutil answers pings while reading, so a read
// deadline doubles as the playback timer.
func (s *simulator) loop(ctx context.Context) error {
	for {
		s.conn.SetReadDeadline(s.stopAt)

		data, err := wsutil.ReadServerText(s.conn)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() && !s.stopAt.IsZero() {
				s.stopAt = time.Time{}
				if err := s.ack(false); err != nil {
					return err
				}
				continue
			}
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}

		var env relay.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			slog.Warn("ignoring malformed frame", "error", err)
			continue
		}
		if err := s.handle(env); err != nil {
			return err
		}
	}
}

func (s *simulator) handle(env relay.Envelope) error {
	switch env.Event {
	case relay.EventControlSiren, relay.EventControlMultiSiren:
		var cmd alert.Command
		if err := json.Unmarshal(env.Data, &cmd); err != nil {
			slog.Warn("ignoring malformed command", "error", err)
			return nil
		}
		if cmd.SirenID != s.sirenID && !slices.Contains(cmd.SirenIDs, s.sirenID) {
			return nil
		}
		slog.Info("command received",
			"action", cmd.Action,
			"alert_type", cmd.AlertType,
			"language", cmd.Language,
			"frequency", cmd.Frequency,
		)
		if cmd.Action == alert.ActionOff {
			s.stopAt = time.Time{}
			return s.ack(false)
		}
		if s.playFor > 0 {
			s.stopAt = time.Now().Add(s.playFor)
		}
		return s.ack(true)

	case relay.EventStatusChange:
		var ev relay.StatusChangeEvent
		if json.Unmarshal(env.Data, &ev) == nil && ev.SirenID == s.sirenID {
			slog.Debug("status change", "status", ev.Status, "seq", ev.Seq)
		}
	}
	return nil
}

func (s *simulator) ack(running bool) error {
	event := relay.EventAckOff
	if running {
		event = relay.EventAckOn
	}
	slog.Info("acknowledging", "event", event)
	return s.send(event, s.sirenID)
}
