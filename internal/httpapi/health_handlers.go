package httpapi

import (
	"net/http"
)

type HealthHandler struct{}

func (h HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]any{"ok": true})
}

type QueueHandler struct {
	Queue     Queue
	Discovery CostReporter
}

// Status reports queue depth, counters and discovery spend.
func (h QueueHandler) Status(w http.ResponseWriter, r *http.Request) {
	v := QueueView{Stats: h.Queue.Stats(), Tasks: h.Queue.Queued()}
	if h.Discovery != nil {
		t := h.Discovery.Totals()
		v.Discovery = &t
	}
	WriteJSON(w, http.StatusOK, v)
}
