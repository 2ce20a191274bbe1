package main

import (
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/gobwas/ws/wsutil"

	"github.com/sirenwatch/siren-backend/internal/alert"
	"github.com/sirenwatch/siren-backend/internal/relay"
)

func commandEnvelope(t *testing.T, event string, cmd alert.Command) relay.Envelope {
	t.Helper()
	data, err := json.Marshal(cmd)
	if err != nil {
		t.Fatal(err)
	}
	return relay.Envelope{Event: event, Data: data}
}

// readFrames collects client frames written to the far end of a pipe.
func readFrames(server net.Conn) <-chan relay.Envelope {
	out := make(chan relay.Envelope, 4)
	go func() {
		defer close(out)
		for {
			data, err := wsutil.ReadClientText(server)
			if err != nil {
				return
			}
			var env relay.Envelope
			if json.Unmarshal(data, &env) == nil {
				out <- env
			}
		}
	}()
	return out
}

func TestHandleAcksOwnCommands(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()
	frames := readFrames(server)

	sim := &simulator{conn: client, sirenID: "S1", playFor: time.Minute}

	if err := sim.handle(commandEnvelope(t, relay.EventControlSiren, alert.Command{SirenID: "S2", Action: "on"})); err != nil {
		t.Fatalf("handle other siren: %v", err)
	}
	if err := sim.handle(commandEnvelope(t, relay.EventControlMultiSiren, alert.Command{SirenIDs: []string{"S9", "S1"}, Action: "on"})); err != nil {
		t.Fatalf("handle multi: %v", err)
	}

	select {
	case env := <-frames:
		var id string
		json.Unmarshal(env.Data, &id)
		if env.Event != relay.EventAckOn || id != "S1" {
			t.Fatalf("frame = %s %s, want ack-on S1", env.Event, env.Data)
		}
	case <-time.After(time.Second):
		t.Fatal("no ack sent")
	}
	if sim.stopAt.IsZero() {
		t.Error("play-for timer not armed")
	}

	if err := sim.handle(commandEnvelope(t, relay.EventControlSiren, alert.Command{SirenID: "S1", Action: "off"})); err != nil {
		t.Fatalf("handle off: %v", err)
	}
	select {
	case env := <-frames:
		if env.Event != relay.EventAckOff {
			t.Fatalf("frame = %s, want ack-off", env.Event)
		}
	case <-time.After(time.Second):
		t.Fatal("no ack-off sent")
	}
	if !sim.stopAt.IsZero() {
		t.Error("timer still armed after off")
	}
}
