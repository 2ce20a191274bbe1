// Package webhooks authenticates trigger deliveries from upstream alerting
// systems and drops redeliveries of the same alert.
package webhooks

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"path"
	"strings"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

const (
	SignatureHeader = "X-Siren-Signature"
	DeliveryHeader  = "X-Siren-Delivery-Id"

	maxBody = 1 << 20
)

// DeliveryStore records delivery ids. Record reports fresh=false when the id
// was already seen. Release forgets an id so the sender's retry is handled.
type DeliveryStore interface {
	Record(ctx context.Context, deliveryID, source string, payload []byte) (fresh bool, err error)
	Release(ctx context.Context, deliveryID string) error
}

// Sign returns the signature header value for body and deliveryID.
func Sign(secret, deliveryID string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	mac.Write([]byte(deliveryID))
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func verify(sig, deliveryID string, body []byte, secret string) bool {
	if !strings.HasPrefix(sig, "sha256=") {
		return false
	}
	return hmac.Equal([]byte(sig), []byte(Sign(secret, deliveryID, body)))
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{"success": false, "error": msg})
}

// Middleware requires a valid signature when secret is set and, when
// deliveries is non-nil, answers redeliveries without calling next. A
// delivery counts as handled only once next answers 2xx; otherwise its id is
// released and a retry dispatches again. An empty secret disables both checks.
func Middleware(secret string, deliveries DeliveryStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if secret == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, maxBody)
			raw, err := io.ReadAll(r.Body)
			if err != nil {
				writeError(w, http.StatusRequestEntityTooLarge, "payload too large or unreadable")
				return
			}
			r.Body.Close()

			id := r.Header.Get(DeliveryHeader)
			if id == "" {
				writeError(w, http.StatusBadRequest, "missing delivery id")
				return
			}
			if !verify(r.Header.Get(SignatureHeader), id, raw, secret) {
				slog.Warn("rejected unsigned trigger", "delivery", id, "remote", r.RemoteAddr)
				writeError(w, http.StatusUnauthorized, "invalid signature")
				return
			}

			if deliveries != nil {
				fresh, err := deliveries.Record(r.Context(), id, path.Base(r.URL.Path), raw)
				if err != nil {
					slog.Error("failed to record delivery", "delivery", id, "error", err)
					writeError(w, http.StatusInternalServerError, "failed to record delivery")
					return
				}
				if !fresh {
					slog.Info("duplicate trigger delivery ignored", "delivery", id)
					w.Header().Set("Content-Type", "application/json")
					w.Write([]byte(`{"success":true,"duplicate":true}`))
					return
				}
			}

			r.Body = io.NopCloser(bytes.NewReader(raw))
			if deliveries == nil {
				next.ServeHTTP(w, r)
				return
			}

			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			handled := false
			defer func() {
				if handled {
					return
				}
				ctx := context.WithoutCancel(r.Context())
				if err := deliveries.Release(ctx, id); err != nil {
					slog.Error("failed to release delivery", "delivery", id, "error", err)
					return
				}
				slog.Info("trigger failed, delivery released for retry", "delivery", id, "status", ww.Status())
			}()
			next.ServeHTTP(ww, r)
			status := ww.Status()
			handled = status == 0 || (status >= 200 && status < 300)
		})
	}
}
