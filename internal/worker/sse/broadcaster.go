// Package sse streams live gateway activity to operators as Server-Sent Events.
package sse

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	// WriteTimeout bounds a write to one client so a stale connection cannot
	// hold up the others.
	WriteTimeout = 2 * time.Second
)

// Event types.
const (
	EventConnected = "connected"
	EventRequest   = "ussd.request"
	EventSMS       = "sms.inbound"
)

// Event is one feed entry. Phone is expected to be masked already.
type Event struct {
	Time      time.Time `json:"time"`
	Type      string    `json:"type"`
	SessionID string    `json:"sessionId,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	Outcome   string    `json:"outcome,omitempty"`
	Depth     int       `json:"depth,omitempty"`
	Millis    int64     `json:"durationMs,omitempty"`
}

// Client is a connected feed subscriber.
type Client struct {
	Writer  http.ResponseWriter
	Flusher http.Flusher
	Done    chan struct{}
	ID      string
	once    sync.Once
	writeMu sync.Mutex
}

// send writes one framed message. Writes to a client are serialized.
func (c *Client) send(message string) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if _, err := c.Writer.Write([]byte(message)); err != nil {
		return err
	}
	c.Flusher.Flush()
	return nil
}

func (c *Client) close() {
	c.once.Do(func() { close(c.Done) })
}

// Broadcaster fans events out to every connected client.
type Broadcaster struct {
	clients map[string]*Client
	mu      sync.RWMutex
}

// NewBroadcaster creates a broadcaster with no clients.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		clients: make(map[string]*Client),
	}
}

// AddClient registers w as a subscriber.
func (b *Broadcaster) AddClient(w http.ResponseWriter) (*Client, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("streaming not supported")
	}

	client := &Client{
		ID:      uuid.NewString(),
		Writer:  w,
		Flusher: flusher,
		Done:    make(chan struct{}),
	}

	b.mu.Lock()
	b.clients[client.ID] = client
	count := len(b.clients)
	b.mu.Unlock()

	log.Debug().Str("clientId", client.ID).Int("totalClients", count).Msg("Feed client connected")
	return client, nil
}

// RemoveClient unregisters a subscriber. Safe to call more than once.
func (b *Broadcaster) RemoveClient(client *Client) {
	b.mu.Lock()
	delete(b.clients, client.ID)
	count := len(b.clients)
	b.mu.Unlock()

	client.close()
	log.Debug().Str("clientId", client.ID).Int("totalClients", count).Msg("Feed client disconnected")
}

// Publish sends ev to all clients. Clients whose write fails or times out are dropped.
func (b *Broadcaster) Publish(ev Event) {
	if ev.Time.IsZero() {
		ev.Time = time.Now().UTC()
	}
	data, err := json.Marshal(ev)
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal feed event")
		return
	}
	message := fmt.Sprintf("event: %s\ndata: %s\n\n", ev.Type, data)

	b.mu.RLock()
	clients := make([]*Client, 0, len(b.clients))
	for _, c := range b.clients {
		clients = append(clients, c)
	}
	b.mu.RUnlock()

	if len(clients) == 0 {
		return
	}

	dead := make(chan *Client, len(clients))
	var wg sync.WaitGroup
	for _, c := range clients {
		select {
		case <-c.Done:
			continue
		default:
		}
		wg.Add(1)
		go func(c *Client) {
			defer wg.Done()
			if !b.write(c, message) {
				dead <- c
			}
		}(c)
	}
	wg.Wait()
	close(dead)

	for c := range dead {
		b.RemoveClient(c)
	}
}

// write reports whether the message reached the client in time.
func (b *Broadcaster) write(c *Client, message string) bool {
	result := make(chan error, 1)
	go func() {
		result <- c.send(message)
	}()

	select {
	case err := <-result:
		if err != nil {
			log.Debug().Err(err).Str("clientId", c.ID).Msg("Feed write failed")
			return false
		}
		return true
	case <-time.After(WriteTimeout):
		log.Warn().Str("clientId", c.ID).Dur("timeout", WriteTimeout).Msg("Feed write timed out")
		return false
	case <-c.Done:
		return true
	}
}

// ClientCount returns the number of connected clients.
func (b *Broadcaster) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

// HandleSSE streams events until the request context ends.
func (b *Broadcaster) HandleSSE(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	client, err := b.AddClient(w)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	defer b.RemoveClient(client)

	hello, _ := json.Marshal(Event{Type: EventConnected, SessionID: client.ID, Time: time.Now().UTC()})
	if err := client.send(fmt.Sprintf("event: %s\ndata: %s\n\n", EventConnected, hello)); err != nil {
		return
	}

	select {
	case <-r.Context().Done():
	case <-client.Done:
	}
}
