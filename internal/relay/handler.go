package relay

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/sirenwatch/siren-backend/internal/alert"
	"github.com/sirenwatch/siren-backend/internal/geo"
	"github.com/sirenwatch/siren-backend/internal/middleware"
	"github.com/sirenwatch/siren-backend/internal/sirens"
)

const maxTriggerBody = 1 << 20

// Sirens are not browsers, so any origin may open a socket.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// ServeWS upgrades the request and starts the client pumps.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	c := h.newClient(conn, r.RemoteAddr)
	if !h.attach(c) {
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
		conn.Close()
		return
	}

	slog.Info("websocket connected", "conn", c.id, "remote", r.RemoteAddr)
	go c.writePump()
	go c.readPump()
}

type triggerResponse struct {
	Success         bool             `json:"success"`
	SirensActivated []sirens.Summary `json:"sirensActivated"`
}

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeTriggerError(w http.ResponseWriter, source string, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, geo.ErrMalformedGeometry) || errors.Is(err, alert.ErrMalformedAlert) {
		status = http.StatusBadRequest
		slog.Warn("rejected trigger", "source", source, "error", err)
	} else {
		slog.Error("trigger failed", "source", source, "error", err)
	}
	writeJSON(w, status, errorResponse{Success: false, Error: err.Error()})
}

func (h *Hub) trigger(w http.ResponseWriter, r *http.Request, req alert.Request) {
	activated, err := h.Geofence(r.Context(), req)
	if err != nil {
		writeTriggerError(w, req.Source, err)
		return
	}
	writeJSON(w, http.StatusOK, triggerResponse{Success: true, SirensActivated: activated})
}

// HandlePlatform accepts the JSON platform trigger.
func (h *Hub) HandlePlatform(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxTriggerBody)

	var body alert.PlatformRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeTriggerError(w, "platform", fmt.Errorf("%w: %v", alert.ErrMalformedAlert, err))
		return
	}

	req, err := h.normalizer.Platform(body)
	if err != nil {
		writeTriggerError(w, "platform", err)
		return
	}
	h.trigger(w, r, req)
}

// HandleCAP accepts a CAP 1.2 XML alert.
func (h *Hub) HandleCAP(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxTriggerBody)

	capAlert, err := alert.ParseCAP(r.Body)
	if err != nil {
		writeTriggerError(w, "cap", err)
		return
	}

	req, err := h.normalizer.CAP(capAlert)
	if err != nil {
		writeTriggerError(w, "cap", err)
		return
	}
	h.trigger(w, r, req)
}

func (h *Hub) HandleConnections(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Connections())
}

// SetupRoutes mounts the trigger endpoints. Triggers are rate limited per
// client address and then pass through triggerMW; the connection listing is
// admin only.
func SetupRoutes(hub *Hub, sessions middleware.SessionFetcher, limiter *middleware.LimiterPool, triggerMW ...func(http.Handler) http.Handler) http.Handler {
	r := chi.NewRouter()

	r.Group(func(r chi.Router) {
		r.Use(middleware.RateLimit(limiter))
		r.Use(triggerMW...)
		r.Post("/platform", hub.HandlePlatform)
		r.Post("/cap", hub.HandleCAP)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.SessionMiddleware(sessions))
		r.Use(middleware.AdminMiddleware)
		r.Get("/connections", hub.HandleConnections)
	})

	return r
}
