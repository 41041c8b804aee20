package events

import (
	"context"
	"sync"
)

// Notifier delivers events best-effort to whoever is listening.
type Notifier interface {
	Publish(ctx context.Context, e Event) error
}

// Firehose is the topic that receives every job's events.
const Firehose = ""

// Hub is an in-process topic fan-out keyed by job id.
type Hub struct {
	mu      sync.Mutex
	clients map[string]map[chan string]struct{}
}

func NewHub() *Hub {
	return &Hub{clients: make(map[string]map[chan string]struct{})}
}

// Subscribe returns a channel for topic. Use Firehose for all jobs.
func (h *Hub) Subscribe(topic string) chan string {
	ch := make(chan string, 16)
	h.mu.Lock()
	set, ok := h.clients[topic]
	if !ok {
		set = make(map[chan string]struct{})
		h.clients[topic] = set
	}
	set[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *Hub) Unsubscribe(topic string, ch chan string) {
	h.mu.Lock()
	if set, ok := h.clients[topic]; ok {
		if _, ok := set[ch]; ok {
			delete(set, ch)
			close(ch)
		}
		if len(set) == 0 {
			delete(h.clients, topic)
		}
	}
	h.mu.Unlock()
}

// Subscribers counts channels on topic.
func (h *Hub) Subscribers(topic string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients[topic])
}

func (h *Hub) Publish(_ context.Context, e Event) error {
	msg := e.Encode()
	h.mu.Lock()
	defer h.mu.Unlock()
	h.send(h.clients[e.JobID], msg)
	if e.JobID != Firehose {
		h.send(h.clients[Firehose], msg)
	}
	return nil
}

func (h *Hub) send(set map[chan string]struct{}, msg string) {
	for ch := range set {
		select {
		case ch <- msg:
		default:
			// drop if slow
		}
	}
}
