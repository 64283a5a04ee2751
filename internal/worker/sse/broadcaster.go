// Package sse streams reducer snapshots and coaching events to the webview
// over Server-Sent Events.
package sse

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
)

// writeTimeout bounds a single client write so one stale connection cannot
// stall a broadcast.
const writeTimeout = 2 * time.Second

type client struct {
	id      int
	w       http.ResponseWriter
	flusher http.Flusher
	done    chan struct{}
}

// Broadcaster fans events out to every connected webview.
type Broadcaster struct {
	mu      sync.Mutex
	clients map[int]*client
	nextID  int
}

// NewBroadcaster creates an empty broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{clients: map[int]*client{}}
}

// ClientCount returns the number of connected clients.
func (b *Broadcaster) ClientCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.clients)
}

// Event is one named SSE payload.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// Broadcast marshals the event once and writes it to every client. Clients
// that fail or time out are dropped.
func (b *Broadcaster) Broadcast(event Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("event", event.Type).Msg("Failed to marshal SSE event")
		return
	}
	message := append(append([]byte("data: "), payload...), '\n', '\n')

	b.mu.Lock()
	targets := make([]*client, 0, len(b.clients))
	for _, c := range b.clients {
		targets = append(targets, c)
	}
	b.mu.Unlock()

	for _, c := range targets {
		if !b.write(c, message) {
			b.drop(c.id)
		}
	}
}

// write sends one message to one client under the write timeout.
func (b *Broadcaster) write(c *client, message []byte) bool {
	result := make(chan bool, 1)
	go func() {
		if _, err := c.w.Write(message); err != nil {
			result <- false
			return
		}
		c.flusher.Flush()
		result <- true
	}()

	select {
	case ok := <-result:
		return ok
	case <-time.After(writeTimeout):
		log.Debug().Int("client", c.id).Msg("SSE write timed out")
		return false
	case <-c.done:
		return false
	}
}

func (b *Broadcaster) drop(id int) {
	b.mu.Lock()
	c, ok := b.clients[id]
	if ok {
		delete(b.clients, id)
	}
	b.mu.Unlock()
	if ok {
		select {
		case <-c.done:
		default:
			close(c.done)
		}
		log.Debug().Int("client", id).Msg("SSE client dropped")
	}
}

// ServeHTTP handles one SSE subscription until the client disconnects.
func (b *Broadcaster) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	b.mu.Lock()
	b.nextID++
	c := &client{id: b.nextID, w: w, flusher: flusher, done: make(chan struct{})}
	b.clients[c.id] = c
	count := len(b.clients)
	b.mu.Unlock()

	log.Debug().Int("client", c.id).Int("total", count).Msg("SSE client connected")

	fmt.Fprintf(w, "data: {\"type\":\"connected\"}\n\n")
	flusher.Flush()

	<-r.Context().Done()
	b.drop(c.id)
}
