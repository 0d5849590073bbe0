package server

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/arthur-debert/kitman/pkg/logging"
	"github.com/arthur-debert/kitman/pkg/progress"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// MessageType tags what a websocket message carries.
type MessageType string

const (
	TypeProgress MessageType = "progress"
	TypeResult   MessageType = "result"
	TypeError    MessageType = "error"
)

// Message is what clients receive on /ws.
type Message struct {
	Type   MessageType     `json:"type"`
	Event  *progress.Event `json:"event,omitempty"`
	Result *ResultView     `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

const writeWait = 5 * time.Second

// Hub fans progress events out to every connected websocket client. It is
// a progress.Reporter, so the engine reports into it directly. Events are
// queued on a progress.Channel per operation so the engine never waits on
// a slow client.
type Hub struct {
	clients  map[*websocket.Conn]bool
	cmu      sync.Mutex
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	current *progress.Channel
	drained chan struct{}

	logger zerolog.Logger
}

// NewHub creates an idle hub.
func NewHub(logger *zerolog.Logger) *Hub {
	return &Hub{
		clients: make(map[*websocket.Conn]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The bridge listens on loopback for a local front end.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger: logging.OrDefault(logger, "server.hub"),
	}
}

// Report queues e for broadcast. Events outside an operation are dropped.
func (h *Hub) Report(e progress.Event) {
	h.mu.RLock()
	ch := h.current
	h.mu.RUnlock()
	if ch != nil {
		ch.Report(e)
	}
}

// begin opens the event queue for one operation.
func (h *Hub) begin() {
	ch := progress.NewChannel()
	drained := make(chan struct{})
	h.mu.Lock()
	h.current, h.drained = ch, drained
	h.mu.Unlock()

	go func() {
		defer close(drained)
		for e := range ch.Events() {
			e := e
			h.broadcast(Message{Type: TypeProgress, Event: &e})
		}
	}()
}

// finish flushes the queued events and then sends msg, so clients always
// see the result after the last progress event.
func (h *Hub) finish(msg Message) {
	h.mu.Lock()
	ch, drained := h.current, h.drained
	h.current, h.drained = nil, nil
	h.mu.Unlock()

	if ch != nil {
		ch.Close()
		<-drained
	}
	h.broadcast(msg)
}

// Clients returns how many websocket clients are connected.
func (h *Hub) Clients() int {
	h.cmu.Lock()
	defer h.cmu.Unlock()
	return len(h.clients)
}

// HandleWebSocket upgrades the request and keeps the client registered
// until it disconnects.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}

	h.cmu.Lock()
	h.clients[conn] = true
	h.cmu.Unlock()
	h.logger.Debug().Str("remote", r.RemoteAddr).Msg("client connected")

	// Clients never send anything we act on; reading only detects the close.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	h.drop(conn)
}

func (h *Hub) drop(conn *websocket.Conn) {
	h.cmu.Lock()
	delete(h.clients, conn)
	h.cmu.Unlock()
	_ = conn.Close()
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.cmu.Lock()
	defer h.cmu.Unlock()
	for conn := range h.clients {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, ""), time.Now().Add(writeWait))
		_ = conn.Close()
		delete(h.clients, conn)
	}
}

func (h *Hub) broadcast(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error().Err(err).Str("type", string(msg.Type)).Msg("encode message")
		return
	}

	h.cmu.Lock()
	defer h.cmu.Unlock()
	for conn := range h.clients {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			h.logger.Debug().Err(err).Msg("dropping client")
			_ = conn.Close()
			delete(h.clients, conn)
		}
	}
}
