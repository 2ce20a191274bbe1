package relay

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/sirenwatch/siren-backend/internal/sirens"
)

// Inbound event names.
const (
	EventRegister          = "siren-register"
	EventControl           = "siren-control"
	EventControlMulti      = "siren-control-multi"
	EventAckOn             = "siren-ack-on"
	EventAckOff            = "siren-ack-off"
	EventStatusCheck       = "siren-status-check"
	EventConnectionManager = "connection-manager"
)

// Outbound event names.
const (
	EventControlSiren      = "siren-control-siren"
	EventControlMultiSiren = "siren-control-multi-siren"
	EventStatusChange      = "siren-status-change"
	EventAcked             = "siren-acked"
	EventStatusUpdate      = "siren-status-update"
	EventConnectionPush    = "connection-manager-push"
)

// Envelope is the JSON frame exchanged over the websocket in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

func encode(event string, payload interface{}) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", event, err)
	}
	return json.Marshal(Envelope{Event: event, Data: data})
}

// StatusChangeEvent is broadcast on register and disconnect. Seq is assigned
// when the causing operation starts, so a subscriber that keeps the highest
// Seq per siren can drop updates that complete out of order.
type StatusChangeEvent struct {
	SirenID     string        `json:"sirenId"`
	Status      sirens.Status `json:"status"`
	LastChecked time.Time     `json:"lastChecked"`
	Seq         uint64        `json:"seq"`
}

// AckEvent is broadcast whenever a siren reports playback starting or stopping.
type AckEvent struct {
	SirenID     string    `json:"sirenId"`
	Running     bool      `json:"running"`
	LastChecked time.Time `json:"lastChecked"`
	Seq         uint64    `json:"seq"`
}

// StatusUpdateEvent answers a status check, to the requester only.
type StatusUpdateEvent struct {
	SirenID     string        `json:"sirenId"`
	Status      sirens.Status `json:"status"`
	Playing     bool          `json:"playing"`
	LastChecked time.Time     `json:"lastChecked"`
}

type ConnectionPushEvent struct {
	SirenID  string `json:"sirenId"`
	IsOnline bool   `json:"isOnline"`
}

// decodeSirenID accepts either a bare JSON string or {"sirenId": "..."}.
func decodeSirenID(data json.RawMessage) (string, error) {
	var id string
	if err := json.Unmarshal(data, &id); err != nil {
		var obj struct {
			SirenID string `json:"sirenId"`
		}
		if objErr := json.Unmarshal(data, &obj); objErr != nil {
			return "", fmt.Errorf("%w: siren id: %v", ErrTransport, err)
		}
		id = obj.SirenID
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return "", fmt.Errorf("%w: empty siren id", ErrTransport)
	}
	return id, nil
}
