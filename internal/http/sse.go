package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/hperssn/coindoro/internal/runner"
)

// streamEvents relays the runner's events as server-sent events, opening
// with the current snapshot. Each request gets its own subscription, so
// several clients may follow one session. The stream ends when the session
// stops.
func (a *api) streamEvents(w http.ResponseWriter, r *http.Request) {
	rn, ok := a.runnerFor(w, r)
	if !ok {
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, "streaming unsupported", "internal", http.StatusInternalServerError)
		return
	}

	events, unsubscribe, err := rn.Subscribe()
	if err != nil {
		respondRejection(w, err)
		return
	}
	defer unsubscribe()

	snap, err := rn.Snapshot()
	if err != nil {
		respondRejection(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	if err := writeEvent(w, runner.Event{Type: runner.EventTick, Snapshot: snap}); err != nil {
		return
	}
	flusher.Flush()

	for {
		select {
		case e, ok := <-events:
			if !ok {
				return
			}
			if err := writeEvent(w, e); err != nil {
				a.log.Debugw("event stream write failed", "session", rn.ID(), "err", err)
				return
			}
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}

func writeEvent(w http.ResponseWriter, e runner.Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", e.Type, data)
	return err
}
