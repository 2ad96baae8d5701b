package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"

	"marketwatch/internal/events"
)

// Broker fans pipeline events out to SSE clients. Slow clients are
// skipped, never waited on.
type Broker struct {
	bus *events.Bus

	mu      sync.RWMutex
	clients map[chan []byte]struct{}
}

func NewBroker(bus *events.Bus) *Broker {
	return &Broker{bus: bus, clients: make(map[chan []byte]struct{})}
}

// Run forwards bus events to connected clients until ctx is done.
func (b *Broker) Run(ctx context.Context) {
	sub := b.bus.Subscribe()
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-sub:
			msg, err := json.Marshal(ev)
			if err != nil {
				log.Printf("sse marshal: %v", err)
				continue
			}
			b.mu.RLock()
			for client := range b.clients {
				select {
				case client <- msg:
				default:
				}
			}
			b.mu.RUnlock()
		}
	}
}

func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	client := make(chan []byte, 16)
	b.mu.Lock()
	b.clients[client] = struct{}{}
	b.mu.Unlock()
	defer func() {
		b.mu.Lock()
		delete(b.clients, client)
		b.mu.Unlock()
	}()

	for {
		select {
		case <-r.Context().Done():
			return
		case msg := <-client:
			fmt.Fprintf(w, "data: %s\n\n", msg)
			flusher.Flush()
		}
	}
}
