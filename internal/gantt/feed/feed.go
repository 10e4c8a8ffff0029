// Package feed pushes change notifications to browsers over WebSocket.
//
// Every committed sync batch is broadcast as a "sync" message carrying the
// ids it created, updated and removed, and every reseed as a "reload". Clients
// use them as a hint to refetch GET /api/load; the feed never carries task
// data and a dropped message is never replayed.
package feed

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/sirupsen/logrus"

	gsync "github.com/ganttd/ganttd/internal/gantt/sync"
)

// MessageType defines the type of feed message
type MessageType string

const (
	// MessageTypeHello is sent once to each client as it connects
	MessageTypeHello MessageType = "hello"

	// MessageTypeSync indicates a sync batch committed changes
	MessageTypeSync MessageType = "sync"

	// MessageTypeReload indicates the whole task set was replaced
	MessageTypeReload MessageType = "reload"
)

// Message outcomes reported to the Observer.
const (
	OutcomeSent    = "sent"
	OutcomeDropped = "dropped"
	OutcomeFailed  = "failed"
)

const (
	broadcastBuffer = 100
	writeTimeout    = 5 * time.Second
)

// Message is one feed frame.
type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// HelloData is the payload of a hello message.
type HelloData struct {
	Clients int `json:"clients"`
}

// ReloadData is the payload of a reload message.
type ReloadData struct {
	Tasks int `json:"tasks"`
}

// Observer receives client counts and message outcomes.
type Observer interface {
	ObserveFeedClients(n int)
	ObserveFeedMessage(typ, outcome string)
}

// Config holds hub configuration
type Config struct {
	// OriginPatterns lists the cross-origin hosts allowed to connect, in
	// the host[:port] form websocket.AcceptOptions expects. Same-origin
	// requests are always allowed.
	OriginPatterns []string

	// Logger defaults to the logrus standard logger.
	Logger logrus.FieldLogger

	// Observer is optional.
	Observer Observer
}

// Hub manages WebSocket clients and broadcasts feed messages. The zero value
// is not usable; create one with NewHub and start it with Run.
type Hub struct {
	clients   map[*websocket.Conn]struct{}
	clientsMu sync.RWMutex

	broadcast chan Message

	ctx    context.Context
	cancel context.CancelFunc

	origins  []string
	log      logrus.FieldLogger
	observer Observer
}

// NewHub creates a hub. It accepts connections immediately but only delivers
// broadcasts once Run is running.
func NewHub(cfg Config) *Hub {
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}
	if cfg.Observer == nil {
		cfg.Observer = nopObserver{}
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		clients:   make(map[*websocket.Conn]struct{}),
		broadcast: make(chan Message, broadcastBuffer),
		ctx:       ctx,
		cancel:    cancel,
		origins:   cfg.OriginPatterns,
		log:       cfg.Logger.WithField("component", "feed"),
		observer:  cfg.Observer,
	}
}

// Run delivers broadcasts until ctx is done, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	defer h.shutdown()

	for {
		select {
		case <-ctx.Done():
			return
		case <-h.ctx.Done():
			return
		case msg := <-h.broadcast:
			h.deliver(msg)
		}
	}
}

// Close stops Run and disconnects every client.
func (h *Hub) Close() {
	h.cancel()
}

func (h *Hub) shutdown() {
	h.cancel()

	h.clientsMu.Lock()
	for conn := range h.clients {
		_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
		delete(h.clients, conn)
	}
	h.clientsMu.Unlock()

	h.observer.ObserveFeedClients(0)
	h.log.Info("feed stopped")
}

// Broadcast queues msg for every client. It never blocks: when the queue is
// full the message is dropped.
func (h *Hub) Broadcast(msg Message) {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}

	select {
	case <-h.ctx.Done():
		return
	default:
	}

	select {
	case h.broadcast <- msg:
	default:
		h.observer.ObserveFeedMessage(string(msg.Type), OutcomeDropped)
		h.log.WithField("type", msg.Type).Warn("broadcast queue full, dropping message")
	}
}

// NotifySync implements sync.Notifier.
func (h *Hub) NotifySync(c gsync.ChangeSet) {
	h.publish(MessageTypeSync, c)
}

// NotifyReload announces that the task set was replaced with n tasks.
func (h *Hub) NotifyReload(n int) {
	h.publish(MessageTypeReload, ReloadData{Tasks: n})
}

func (h *Hub) publish(typ MessageType, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		h.log.WithError(err).WithField("type", typ).Error("failed to marshal feed payload")
		return
	}
	h.Broadcast(Message{Type: typ, Data: data})
}

func (h *Hub) deliver(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.log.WithError(err).Error("failed to marshal feed message")
		return
	}

	h.clientsMu.RLock()
	clients := make([]*websocket.Conn, 0, len(h.clients))
	for conn := range h.clients {
		clients = append(clients, conn)
	}
	h.clientsMu.RUnlock()

	// Written outside the lock so a slow client cannot stall registration.
	for _, conn := range clients {
		if err := h.write(conn, data); err != nil {
			h.observer.ObserveFeedMessage(string(msg.Type), OutcomeFailed)
			h.log.WithError(err).Debug("failed to send to client")
			h.removeClient(conn)
			continue
		}
		h.observer.ObserveFeedMessage(string(msg.Type), OutcomeSent)
	}
}

func (h *Hub) write(conn *websocket.Conn, data []byte) error {
	ctx, cancel := context.WithTimeout(h.ctx, writeTimeout)
	defer cancel()
	return conn.Write(ctx, websocket.MessageText, data)
}

// ServeHTTP upgrades the request to a WebSocket and registers the client.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	select {
	case <-h.ctx.Done():
		http.Error(w, "feed closed", http.StatusServiceUnavailable)
		return
	default:
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.origins,
	})
	if err != nil {
		h.log.WithError(err).Warn("websocket upgrade failed")
		return
	}

	h.clientsMu.Lock()
	h.clients[conn] = struct{}{}
	count := len(h.clients)
	h.clientsMu.Unlock()

	h.observer.ObserveFeedClients(count)
	h.log.WithFields(logrus.Fields{
		"clients":   count,
		"remote_ip": r.RemoteAddr,
	}).Info("feed client connected")

	hello, _ := json.Marshal(HelloData{Clients: count})
	data, _ := json.Marshal(Message{Type: MessageTypeHello, Timestamp: time.Now(), Data: hello})
	if err := h.write(conn, data); err != nil {
		h.removeClient(conn)
		return
	}

	go h.readLoop(conn)
}

// readLoop discards client frames and notices disconnects.
func (h *Hub) readLoop(conn *websocket.Conn) {
	defer h.removeClient(conn)

	for {
		if _, _, err := conn.Read(h.ctx); err != nil {
			return
		}
	}
}

func (h *Hub) removeClient(conn *websocket.Conn) {
	h.clientsMu.Lock()
	if _, ok := h.clients[conn]; !ok {
		h.clientsMu.Unlock()
		return
	}
	delete(h.clients, conn)
	count := len(h.clients)
	h.clientsMu.Unlock()

	_ = conn.Close(websocket.StatusNormalClosure, "")
	h.observer.ObserveFeedClients(count)
	h.log.WithField("clients", count).Info("feed client disconnected")
}

// ClientCount returns the current number of connected clients
func (h *Hub) ClientCount() int {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	return len(h.clients)
}

type nopObserver struct{}

func (nopObserver) ObserveFeedClients(int) {}
func (nopObserver) ObserveFeedMessage(string, string) {}
