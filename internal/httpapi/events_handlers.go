package httpapi

import (
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/glovejobs/POSTJOB-browser-sub000/internal/events"
)

type EventsHandler struct {
	Hub *events.Hub
}

// ServeJob streams one job's progress events.
func (h EventsHandler) ServeJob(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, mux.Vars(r)["id"])
}

// ServeAll streams every job's events.
func (h EventsHandler) ServeAll(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, events.Firehose)
}

func (h EventsHandler) serve(w http.ResponseWriter, r *http.Request, topic string) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		WriteError(w, r, http.StatusInternalServerError, "stream_unsupported", "Streaming unsupported")
		return
	}

	ch := h.Hub.Subscribe(topic)
	defer h.Hub.Unsubscribe(topic, ch)

	ping := events.MakeEvent(RequestIDFrom(r.Context()), topic, "ping", nil)
	fmt.Fprintf(w, "event: message\ndata: %s\n\n", ping)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			fmt.Fprintf(w, "event: message\ndata: %s\n\n", msg)
			flusher.Flush()
		}
	}
}
