package observer

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/Arbiter-Network/adjudication_layer/infrastructure/httputil"
)

// sseHeartbeat keeps idle streams alive through proxies.
const sseHeartbeat = 15 * time.Second

// handleEventStream serves the realtime event feed as server-sent events.
// Filters mirror the /observer/logs query parameters; verbose includes
// debug-severity events.
func (s *Server) handleEventStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		httputil.InternalError(w, "streaming unsupported")
		return
	}

	filter := EventFilter{
		Type:     httputil.QueryString(r, "type", ""),
		Severity: httputil.QueryString(r, "severity", ""),
		TaskID:   httputil.QueryString(r, "taskId", ""),
	}
	verbose := httputil.QueryBool(r, "verbose", false)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	events, cancel := s.events.Subscribe(128)
	defer cancel()

	heartbeat := time.NewTicker(sseHeartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return

		case event := <-events:
			if !filter.matches(event) {
				continue
			}
			if !verbose && event.Severity == SeverityDebug {
				continue
			}
			if err := writeSSE(w, "event", event); err != nil {
				return
			}
			flusher.Flush()

		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": heartbeat\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// writeSSE emits one named SSE frame with a JSON payload. Failures emit an
// error frame before the stream closes.
func writeSSE(w http.ResponseWriter, name string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		_, _ = fmt.Fprintf(w, "event: error\ndata: {\"error\":%q}\n\n", err.Error())
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\nid: %d\ndata: %s\n\n", name, extractCursor(payload), data)
	return err
}

func extractCursor(payload interface{}) int64 {
	if event, ok := payload.(Event); ok {
		return event.Cursor
	}
	return 0
}
