package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/labframe/api/cfg"
	"github.com/labframe/api/notify"
	"github.com/labframe/api/telemetry"
)

// handleEvents streams change events for one project over
// Server-Sent Events. Opening the stream opens the project store,
// which starts its change detector.
func (h *Handlers) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeErrorResponse(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	scope, err := h.manager.Resolve(r.Context(), projectFrom(r))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if _, err := h.manager.Get(r.Context(), scope); err != nil {
		writeStoreError(w, err)
		return
	}

	sub := h.hub.Subscribe(scope)
	defer sub.Cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	if _, err := fmt.Fprintf(w, "event: connected\ndata: {\"scope\":%q}\n\n", scope); err != nil {
		telemetry.PushDisconnectsTotal.With("write_error").Inc()
		return
	}
	flusher.Flush()

	log.Info().Str("project", scope).Msg("Push connection opened")
	streamEvents(r.Context().Done(), w, flusher, sub, cfg.KeepAliveInterval())
}

// streamEvents drains a subscription into an event-stream writer,
// interleaving keep-alive comments while the feed is idle. Returns
// when the client goes away, a write fails, or the subscription
// channel closes.
func streamEvents(clientGone <-chan struct{}, w http.ResponseWriter, flusher http.Flusher, sub *notify.Subscription, keepAlive time.Duration) {
	ticker := time.NewTicker(keepAlive)
	defer ticker.Stop()

	for {
		select {
		case ev, open := <-sub.Events():
			if !open {
				telemetry.PushDisconnectsTotal.With("shutdown").Inc()
				return
			}
			if err := writeEventFrame(w, ev); err != nil {
				sub.Cancel()
				telemetry.PushDisconnectsTotal.With("write_error").Inc()
				log.Debug().Err(err).Str("project", sub.Scope()).Msg("Push connection write failed")
				return
			}
			flusher.Flush()
			ticker.Reset(keepAlive)

		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				sub.Cancel()
				telemetry.PushDisconnectsTotal.With("write_error").Inc()
				return
			}
			flusher.Flush()
			telemetry.KeepAlivesTotal.Inc()

		case <-clientGone:
			sub.Cancel()
			telemetry.PushDisconnectsTotal.With("client").Inc()
			log.Info().Str("project", sub.Scope()).Msg("Push connection closed by client")
			return
		}
	}
}

// writeEventFrame writes one change event as an SSE frame
func writeEventFrame(w http.ResponseWriter, ev notify.ChangeEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: change\nid: %d\ndata: %s\n\n", ev.Seq, payload)
	return err
}
