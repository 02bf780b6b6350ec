package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"keyvisor/pkg/types"
)

// EventSource streams bus events of the given types (all when none) until
// ctx is done.
type EventSource interface {
	Events(ctx context.Context, eventTypes ...string) <-chan types.Event
}

// eventsHandler serves bus events as Server-Sent Events. The stream ends when
// the client disconnects or the server base context is cancelled.
func eventsHandler(src EventSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			writeJSONError(w, http.StatusInternalServerError, "streaming unsupported")
			return
		}
		ctx, cancel := joinContexts(serverBaseCtx, r.Context())
		defer cancel()
		events := src.Events(ctx, eventTypes(r)...)

		h := w.Header()
		h.Set("Content-Type", "text/event-stream")
		h.Set("Cache-Control", "no-cache")
		h.Set("Connection", "keep-alive")
		h.Set("X-Accel-Buffering", "no")
		w.WriteHeader(http.StatusOK)

		out := io.Writer(w)
		if requestLogLevel(r) >= LevelDebug {
			out = io.MultiWriter(w, &loggingLineWriter{log: reqLogger(r)})
		}
		_, _ = io.WriteString(out, ": connected\n\n")
		flusher.Flush()

		eventStreams.Inc()
		defer eventStreams.Dec()
		heartbeat := time.NewTicker(eventHeartbeat)
		defer heartbeat.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-heartbeat.C:
				if _, err := io.WriteString(out, ": ping\n\n"); err != nil {
					return
				}
				flusher.Flush()
			case e, ok := <-events:
				if !ok {
					return
				}
				b, err := json.Marshal(e)
				if err != nil {
					reqLogger(r).Warn().Err(err).Str("type", e.Type).Msg("drop unencodable event")
					continue
				}
				if _, err := fmt.Fprintf(out, "event: %s\ndata: %s\n\n", e.Type, b); err != nil {
					return
				}
				flusher.Flush()
				eventsStreamed.Inc()
			}
		}
	}
}

// eventTypes collects the ?type= filter; values may repeat or be comma separated.
func eventTypes(r *http.Request) []string {
	var out []string
	for _, v := range r.URL.Query()["type"] {
		for _, t := range strings.Split(v, ",") {
			if t = strings.TrimSpace(t); t != "" {
				out = append(out, t)
			}
		}
	}
	return out
}

// joinContexts returns a context that is canceled when either a or b is done.
// The returned cancel func must be called to release resources when the handler ends.
func joinContexts(a, b context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(a)
	stop := context.AfterFunc(b, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}
