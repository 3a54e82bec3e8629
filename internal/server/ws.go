package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/ayusman/natya/internal/gesture"
	"github.com/ayusman/natya/internal/logger"
	"github.com/ayusman/natya/internal/recognition"
	"github.com/ayusman/natya/internal/server/api"
)

const writeWait = 2 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

// Inbound message types on the live socket.
const (
	msgSample  = "sample"
	msgReady   = "ready"
	msgStopped = "stopped"
)

// liveMessage is one inbound frame. Sample frames carry position, velocity
// and an optional timestamp; ready frames carry the readiness flag.
type liveMessage struct {
	Type      string    `json:"type"`
	Channel   string    `json:"channel"`
	Position  r3.Vec    `json:"position"`
	Velocity  r3.Vec    `json:"velocity"`
	Timestamp time.Time `json:"timestamp"`
	Ready     *bool     `json:"ready"`
}

type liveReply struct {
	Type  string             `json:"type"`
	Event *recognition.Event `json:"event,omitempty"`
	Error string             `json:"error,omitempty"`
}

type liveClient struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *liveClient) send(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// LiveHandler feeds samples from WebSocket clients into the recognizer and
// broadcasts every recognition event to all connected clients.
type LiveHandler struct {
	recognizer api.Recognizer
	log        logger.Logger
	clients    map[*liveClient]bool
	mu         sync.RWMutex
}

// NewLiveHandler creates a LiveHandler subscribed to r's events.
func NewLiveHandler(r api.Recognizer, log logger.Logger) *LiveHandler {
	h := &LiveHandler{
		recognizer: r,
		log:        log,
		clients:    make(map[*liveClient]bool),
	}
	r.OnEvent(h.broadcast)
	return h
}

// ServeHTTP handles WebSocket upgrade requests.
func (h *LiveHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn(r.Context(), "websocket upgrade failed", logger.Error(err))
		return
	}
	defer conn.Close()

	client := &liveClient{conn: conn}
	h.mu.Lock()
	h.clients[client] = true
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.clients, client)
		h.mu.Unlock()
	}()

	ctx := r.Context()
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.log.Debug(ctx, "live client disconnected", logger.Error(err))
			}
			return
		}
		if err := h.handle(ctx, data); err != nil {
			if sendErr := client.send(liveReply{Type: "error", Error: err.Error()}); sendErr != nil {
				return
			}
		}
	}
}

func (h *LiveHandler) handle(ctx context.Context, data []byte) error {
	var msg liveMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return errors.New("invalid message")
	}

	switch msg.Type {
	case msgStopped:
		h.recognizer.PlayerStopped(ctx)
		return nil
	case msgSample, msgReady:
	default:
		return errors.New("unknown message type")
	}

	ch, err := gesture.ParseChannel(msg.Channel)
	if err != nil {
		return err
	}

	if msg.Type == msgReady {
		ready := true
		if msg.Ready != nil {
			ready = *msg.Ready
		}
		return h.recognizer.MarkReady(ctx, ch, ready)
	}

	return h.recognizer.SubmitSample(ctx, recognition.Sample{
		Channel:   ch,
		Position:  msg.Position,
		Velocity:  msg.Velocity,
		Timestamp: msg.Timestamp,
	})
}

// broadcast sends e to every connected client. Clients that cannot keep up
// are dropped.
func (h *LiveHandler) broadcast(e recognition.Event) {
	reply := liveReply{Type: "event", Event: &e}

	h.mu.RLock()
	clients := make([]*liveClient, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		if err := c.send(reply); err != nil {
			h.log.Debug(context.Background(), "dropping live client", logger.Error(err))
			c.conn.Close()
		}
	}
}

// Clients returns the number of connected clients.
func (h *LiveHandler) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
