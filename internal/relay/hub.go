// Package relay is the real-time hub between sirens and dashboards. It keeps
// the connection to siren bindings in memory, mirrors status and playback into
// the registry, and fans commands out to every connected client.
package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirenwatch/siren-backend/internal/alert"
	"github.com/sirenwatch/siren-backend/internal/geo"
	"github.com/sirenwatch/siren-backend/internal/sirens"
)

var ErrConnectionClosed = errors.New("connection closed")

type Options struct {
	// ClearPlayingOnDisconnect also writes playing=false when a siren's
	// owning connection drops. Off by default: playback state is whatever
	// the device last acknowledged.
	ClearPlayingOnDisconnect bool

	// PersistTimeout bounds each registry call. Zero means no bound.
	PersistTimeout time.Duration

	SendBuffer int
	PingPeriod time.Duration
	PongWait   time.Duration

	Now func() time.Time
}

func (o *Options) setDefaults() {
	if o.SendBuffer <= 0 {
		o.SendBuffer = 256
	}
	if o.PingPeriod <= 0 {
		o.PingPeriod = 2 * time.Second
	}
	if o.PongWait <= 0 {
		o.PongWait = 5 * time.Second
	}
	if o.Now == nil {
		o.Now = time.Now
	}
}

// ConnectionInfo describes one live connection.
type ConnectionInfo struct {
	ConnID      string    `json:"connId"`
	SirenID     string    `json:"sirenId,omitempty"`
	RemoteAddr  string    `json:"remoteAddr,omitempty"`
	ConnectedAt time.Time `json:"connectedAt"`
}

// Hub owns the connection table. Its maps are only touched under mu; registry
// calls and JSON encoding happen outside the lock.
type Hub struct {
	registry   Registry
	normalizer *alert.Normalizer
	opts       Options

	mu       sync.Mutex
	clients  map[string]*Client
	bindings map[string]string // connID -> sirenID
	owners   map[string]string // sirenID -> connID of the latest registration
	closed   bool

	pumps sync.WaitGroup

	stampMu   sync.Mutex
	seq       atomic.Uint64
	lastStamp time.Time
}

func NewHub(registry Registry, normalizer *alert.Normalizer, opts Options) *Hub {
	opts.setDefaults()
	if normalizer == nil {
		normalizer = alert.NewNormalizer("")
	}
	return &Hub{
		registry:   registry,
		normalizer: normalizer,
		opts:       opts,
		clients:    make(map[string]*Client),
		bindings:   make(map[string]string),
		owners:     make(map[string]string),
	}
}

// stamp returns the sequence number and timestamp for an operation that is
// starting now. Timestamps follow seq and are strictly increasing at the
// registry's microsecond precision.
func (h *Hub) stamp() (uint64, time.Time) {
	h.stampMu.Lock()
	defer h.stampMu.Unlock()
	at := h.opts.Now().UTC().Truncate(time.Microsecond)
	if !at.After(h.lastStamp) {
		at = h.lastStamp.Add(time.Microsecond)
	}
	h.lastStamp = at
	return h.seq.Add(1), at
}

// attach adds c to the connection table. It fails once Close has started.
func (h *Hub) attach(c *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c.id] = c
	if c.conn != nil {
		h.pumps.Add(1)
	}
	return true
}

// Register binds connID to sirenID, marks the siren active and broadcasts the
// change. A later registration of the same siren from another connection takes
// ownership; the earlier connection's disconnect then leaves the siren alone.
func (h *Hub) Register(ctx context.Context, connID, sirenID string) error {
	h.mu.Lock()
	if _, ok := h.clients[connID]; !ok {
		h.mu.Unlock()
		return fmt.Errorf("register %s on %s: %w", sirenID, connID, ErrConnectionClosed)
	}
	if prev, ok := h.bindings[connID]; ok && prev != sirenID && h.owners[prev] == connID {
		delete(h.owners, prev)
	}
	h.bindings[connID] = sirenID
	h.owners[sirenID] = connID
	seq, at := h.stamp()
	h.mu.Unlock()

	slog.Info("siren registered", "siren", sirenID, "conn", connID)

	err := h.persist(ctx, sirenID, sirens.StatePatch{Status: sirens.StatusActive, LastChecked: at})
	if errors.Is(err, sirens.ErrNotFound) {
		slog.Warn("registered siren is not in the registry", "siren", sirenID, "conn", connID)
		return err
	}
	if err != nil {
		slog.Error("failed to persist siren registration", "siren", sirenID, "error", err)
	}

	h.broadcast(EventStatusChange, StatusChangeEvent{
		SirenID:     sirenID,
		Status:      sirens.StatusActive,
		LastChecked: at,
		Seq:         seq,
	})
	return err
}

// Disconnect removes connID from the hub. It is safe to call more than once;
// only the first call has any effect. The bound siren is marked inactive only
// when this connection still owns it.
func (h *Hub) Disconnect(ctx context.Context, connID string) error {
	h.mu.Lock()
	c, ok := h.clients[connID]
	if !ok {
		h.mu.Unlock()
		return nil
	}
	delete(h.clients, connID)
	close(c.send)

	sirenID, bound := h.bindings[connID]
	delete(h.bindings, connID)
	owns := bound && h.owners[sirenID] == connID
	var (
		seq uint64
		at  time.Time
	)
	if owns {
		delete(h.owners, sirenID)
		seq, at = h.stamp()
	}
	h.mu.Unlock()

	slog.Info("connection closed", "conn", connID, "siren", sirenID)
	if !owns {
		if bound {
			slog.Debug("siren owned by a newer connection, leaving status", "siren", sirenID, "conn", connID)
		}
		return nil
	}

	patch := sirens.StatePatch{Status: sirens.StatusInactive, LastChecked: at}
	if h.opts.ClearPlayingOnDisconnect {
		stopped := false
		patch.Playing = &stopped
	}

	err := h.persist(ctx, sirenID, patch)
	if errors.Is(err, sirens.ErrNotFound) {
		slog.Warn("disconnected siren is not in the registry", "siren", sirenID)
		return err
	}
	if err != nil {
		slog.Error("failed to persist siren disconnect", "siren", sirenID, "error", err)
	}

	h.broadcast(EventStatusChange, StatusChangeEvent{
		SirenID:     sirenID,
		Status:      sirens.StatusInactive,
		LastChecked: at,
		Seq:         seq,
	})
	return err
}

// Control broadcasts a command. Commands with SirenIDs go out as the multi
// event; otherwise SirenID must be set.
func (h *Hub) Control(cmd alert.Command) error {
	cmd = h.normalizer.Control(cmd)
	switch {
	case len(cmd.SirenIDs) > 0:
		cmd.SirenID = ""
		slog.Info("broadcasting multi-siren command", "sirens", len(cmd.SirenIDs), "action", cmd.Action)
		h.broadcast(EventControlMultiSiren, cmd)
	case cmd.SirenID != "":
		slog.Debug("broadcasting siren command", "siren", cmd.SirenID, "action", cmd.Action)
		h.broadcast(EventControlSiren, cmd)
	default:
		return ErrInvalidCommand
	}
	return nil
}

// Acknowledge records that a siren started or stopped playback. It does not
// require the siren to be registered on any connection.
func (h *Hub) Acknowledge(ctx context.Context, sirenID string, running bool) error {
	seq, at := h.stamp()

	err := h.persist(ctx, sirenID, sirens.StatePatch{Playing: &running, LastChecked: at})
	if errors.Is(err, sirens.ErrNotFound) {
		slog.Warn("acknowledged siren is not in the registry", "siren", sirenID, "running", running)
		return err
	}
	if err != nil {
		slog.Error("failed to persist siren ack", "siren", sirenID, "running", running, "error", err)
	}

	h.broadcast(EventAcked, AckEvent{
		SirenID:     sirenID,
		Running:     running,
		LastChecked: at,
		Seq:         seq,
	})
	return err
}

// StatusCheck reads the persisted state of sirenID and sends it to connID only.
func (h *Hub) StatusCheck(ctx context.Context, connID, sirenID string) (StatusUpdateEvent, error) {
	ctx, cancel := h.persistContext(ctx)
	defer cancel()

	s, err := h.registry.Find(ctx, sirenID)
	if err != nil {
		err = classify(err)
		if errors.Is(err, sirens.ErrNotFound) {
			slog.Warn("status check for unknown siren", "siren", sirenID, "conn", connID)
		} else {
			slog.Error("status check failed", "siren", sirenID, "error", err)
		}
		return StatusUpdateEvent{}, err
	}

	ev := StatusUpdateEvent{
		SirenID:     s.ID,
		Status:      s.Status,
		Playing:     s.Playing,
		LastChecked: s.LastChecked,
	}
	if !h.sendTo(connID, EventStatusUpdate, ev) {
		slog.Debug("status update not delivered", "siren", sirenID, "conn", connID)
	}
	return ev, nil
}

// ConnectionManager relays a device's self-reported online flag to everyone.
func (h *Hub) ConnectionManager(sirenID string, isOnline bool) {
	h.broadcast(EventConnectionPush, ConnectionPushEvent{SirenID: sirenID, IsOnline: isOnline})
}

// Geofence sends req.Command to every registry siren inside any of req.Rings
// and returns the sirens that were targeted.
func (h *Hub) Geofence(ctx context.Context, req alert.Request) ([]sirens.Summary, error) {
	ctx, cancel := h.persistContext(ctx)
	defer cancel()

	all, err := h.registry.List(ctx)
	if err != nil {
		return nil, classify(err)
	}

	matched := geo.Select(req.Rings, all, func(s sirens.Siren) (string, geo.Point) {
		return s.ID, geo.Point{Lat: s.Location.Lat, Lng: s.Location.Lng}
	})

	activated := make([]sirens.Summary, 0, len(matched))
	for _, s := range matched {
		if err := h.Control(req.Command.For(s.ID)); err != nil {
			return activated, err
		}
		activated = append(activated, s.ToSummary())
	}

	slog.Info("geofence trigger dispatched",
		"source", req.Source,
		"polygons", len(req.Rings),
		"sirens", len(activated),
		"action", req.Command.Action,
	)
	return activated, nil
}

// Connections returns a snapshot of live connections ordered by connect time.
func (h *Hub) Connections() []ConnectionInfo {
	h.mu.Lock()
	out := make([]ConnectionInfo, 0, len(h.clients))
	for id, c := range h.clients {
		out = append(out, ConnectionInfo{
			ConnID:      id,
			SirenID:     h.bindings[id],
			RemoteAddr:  c.remoteAddr,
			ConnectedAt: c.connectedAt,
		})
	}
	h.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].ConnectedAt.Equal(out[j].ConnectedAt) {
			return out[i].ConnID < out[j].ConnID
		}
		return out[i].ConnectedAt.Before(out[j].ConnectedAt)
	})
	return out
}

// Close stops accepting connections, closes the live ones and waits for their
// disconnects to be processed or ctx to expire.
func (h *Hub) Close(ctx context.Context) error {
	h.mu.Lock()
	h.closed = true
	live := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		live = append(live, c)
	}
	h.mu.Unlock()

	for _, c := range live {
		c.close()
	}

	done := make(chan struct{})
	go func() {
		h.pumps.Wait()
		close(done)
	}()

	select {
	case <-done:
		slog.Info("relay hub closed", "connections", len(live))
		return nil
	case <-ctx.Done():
		return fmt.Errorf("close relay hub: %w", ctx.Err())
	}
}

// dispatch decodes one inbound frame and runs the matching operation. A bad
// frame is dropped; the connection stays open.
func (h *Hub) dispatch(ctx context.Context, connID string, raw []byte) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic while handling event", "conn", connID, "panic", r)
		}
	}()

	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil || env.Event == "" {
		slog.Warn("dropping malformed frame", "conn", connID, "error", err)
		return
	}

	if err := h.handle(ctx, connID, env); err != nil {
		if errors.Is(err, ErrTransport) || errors.Is(err, ErrInvalidCommand) {
			slog.Warn("dropping event", "conn", connID, "event", env.Event, "error", err)
		}
	}
}

func (h *Hub) handle(ctx context.Context, connID string, env Envelope) error {
	switch env.Event {
	case EventRegister:
		id, err := decodeSirenID(env.Data)
		if err != nil {
			return err
		}
		return h.Register(ctx, connID, id)

	case EventControl, EventControlMulti:
		var cmd alert.Command
		if err := json.Unmarshal(env.Data, &cmd); err != nil {
			return fmt.Errorf("%w: %v", ErrTransport, err)
		}
		if env.Event == EventControl {
			cmd.SirenIDs = nil
		} else if len(cmd.SirenIDs) == 0 {
			return ErrInvalidCommand
		}
		return h.Control(cmd)

	case EventAckOn, EventAckOff:
		id, err := decodeSirenID(env.Data)
		if err != nil {
			return err
		}
		return h.Acknowledge(ctx, id, env.Event == EventAckOn)

	case EventStatusCheck:
		id, err := decodeSirenID(env.Data)
		if err != nil {
			return err
		}
		_, err = h.StatusCheck(ctx, connID, id)
		return err

	case EventConnectionManager:
		var p ConnectionPushEvent
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return fmt.Errorf("%w: %v", ErrTransport, err)
		}
		if p.SirenID == "" {
			return fmt.Errorf("%w: empty siren id", ErrTransport)
		}
		h.ConnectionManager(p.SirenID, p.IsOnline)
		return nil
	}

	return fmt.Errorf("%w: unknown event %q", ErrTransport, env.Event)
}

// broadcast encodes once and queues the frame on every connection. A client
// whose buffer is full misses the frame.
func (h *Hub) broadcast(event string, payload interface{}) {
	msg, err := encode(event, payload)
	if err != nil {
		slog.Error("failed to encode event", "event", event, "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for id, c := range h.clients {
		if !c.enqueue(msg) {
			slog.Warn("send buffer full, dropping event", "conn", id, "event", event)
		}
	}
}

func (h *Hub) sendTo(connID, event string, payload interface{}) bool {
	msg, err := encode(event, payload)
	if err != nil {
		slog.Error("failed to encode event", "event", event, "error", err)
		return false
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	c, ok := h.clients[connID]
	if !ok {
		return false
	}
	return c.enqueue(msg)
}

func (h *Hub) persist(ctx context.Context, sirenID string, patch sirens.StatePatch) error {
	ctx, cancel := h.persistContext(ctx)
	defer cancel()
	err := classify(h.registry.UpdateState(ctx, sirenID, patch))
	if errors.Is(err, sirens.ErrStale) {
		slog.Debug("newer state already stored, write skipped", "siren", sirenID, "last_checked", patch.LastChecked)
		return nil
	}
	return err
}

func (h *Hub) persistContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if h.opts.PersistTimeout > 0 {
		return context.WithTimeout(ctx, h.opts.PersistTimeout)
	}
	return context.WithCancel(ctx)
}
