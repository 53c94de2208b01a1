// Package ws carries engine commands and state snapshots over websockets.
package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"nhooyr.io/websocket"

	"github.com/youngZwiebelandtheGemuseBeat/setgame/internal/game"
)

// ---------- message envelope ----------

const (
	// client -> server
	TypeClaim     = "claim"
	TypeRename    = "rename"
	TypeHeartbeat = "heartbeat"
	TypeSync      = "state_request"

	// server -> client
	TypeWelcome = "welcome"
	TypeState   = "state"
	TypeResult  = "result"
	TypeError   = "error"
)

const maxPlayerIDLen = 64

// Msg is the outbound envelope.
type Msg struct {
	T string `json:"t"`
	M any    `json:"m,omitempty"`
}

type inbound struct {
	T string          `json:"t"`
	M json.RawMessage `json:"m,omitempty"`
}

type claimPayload struct {
	Cards []int `json:"cards"`
}

type renamePayload struct {
	Name string `json:"name"`
}

// Engine is the part of game.Engine the transport drives.
type Engine interface {
	ClaimSet(playerID string, cards []int) game.Result
	UpdateName(playerID, name string) game.Result
	Heartbeat(playerID string)
	RegisterConnection(playerID string)
	UnregisterConnection(playerID string)
	CurrentState() game.State
}

// ---------- hub ----------

// Hub tracks live sockets and fans engine snapshots out to all of them.
type Hub struct {
	allowOrigins map[string]bool
	engine       Engine
	log          *slog.Logger

	mu      sync.RWMutex
	clients map[*Client]struct{}

	broadcast chan []byte
}

// NewHub builds a hub accepting the given browser origins.
func NewHub(allow []string, log *slog.Logger) *Hub {
	m := map[string]bool{}
	for _, a := range allow {
		if a != "" {
			m[a] = true
		}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Hub{
		allowOrigins: m,
		log:          log,
		clients:      map[*Client]struct{}{},
		broadcast:    make(chan []byte, 256),
	}
}

// Attach wires the engine commands are forwarded to. Call before serving.
func (h *Hub) Attach(e Engine) {
	h.engine = e
}

// Notify implements game.Broadcaster. It only queues; Run does the fan-out.
// When the queue is full the oldest snapshot gives way.
func (h *Hub) Notify(s game.State) {
	b, err := encodeState(s)
	if err != nil {
		h.log.Error("encode state", "error", err)
		return
	}
	if pushNewest(h.broadcast, b) {
		h.log.Warn("hub broadcast queue full, dropped stale snapshot")
	}
}

// Run delivers queued snapshots until ctx ends.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-h.broadcast:
			h.mu.RLock()
			for c := range h.clients {
				if c.enqueue(msg) {
					h.log.Debug("client lagging, dropped stale message", "player", c.playerID)
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Clients reports how many sockets are open.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ---------- websockets ----------

// ServeWS upgrades the request and runs the socket until it closes.
// The player identity comes from the player_id query parameter; a fresh
// one is minted when it is absent.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	origin := r.Header.Get("Origin")
	if origin != "" && !h.allowOrigins[origin] {
		http.Error(w, "forbidden origin", http.StatusForbidden)
		return
	}

	playerID := r.URL.Query().Get("player_id")
	if len(playerID) > maxPlayerIDLen {
		http.Error(w, "player_id too long", http.StatusBadRequest)
		return
	}
	if playerID == "" {
		playerID = uuid.NewString()
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
	if err != nil {
		h.log.Warn("websocket accept failed", "error", err)
		return
	}

	client := newClient(playerID, conn)
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	h.mu.Lock()
	h.clients[client] = struct{}{}
	h.mu.Unlock()
	h.engine.RegisterConnection(playerID)
	h.log.Info("client connected", "player", playerID)

	h.sendTo(client, Msg{T: TypeWelcome, M: map[string]string{"player_id": playerID}})
	h.sendTo(client, Msg{T: TypeState, M: h.engine.CurrentState()})

	go client.writeLoop(ctx)
	h.readLoop(ctx, client)

	h.mu.Lock()
	delete(h.clients, client)
	close(client.send)
	h.mu.Unlock()
	h.engine.UnregisterConnection(playerID)
	h.log.Info("client disconnected", "player", playerID)
}

func (h *Hub) readLoop(ctx context.Context, c *Client) {
	for {
		_, data, err := c.conn.Read(ctx)
		if err != nil {
			return
		}
		var m inbound
		if err := json.Unmarshal(data, &m); err != nil {
			h.log.Debug("bad message", "player", c.playerID, "error", err)
			continue
		}
		h.handle(c, m)
	}
}

func (h *Hub) handle(c *Client, m inbound) {
	switch m.T {
	case TypeClaim:
		var p claimPayload
		if err := decodePayload(m.M, &p); err != nil {
			h.sendTo(c, Msg{T: TypeError, M: map[string]string{"message": "Malformed claim"}})
			return
		}
		h.reply(c, h.engine.ClaimSet(c.playerID, p.Cards))

	case TypeRename:
		var p renamePayload
		if err := decodePayload(m.M, &p); err != nil {
			h.sendTo(c, Msg{T: TypeError, M: map[string]string{"message": "Malformed rename"}})
			return
		}
		h.reply(c, h.engine.UpdateName(c.playerID, p.Name))

	case TypeHeartbeat:
		h.engine.Heartbeat(c.playerID)

	case TypeSync:
		h.sendTo(c, Msg{T: TypeState, M: h.engine.CurrentState()})

	default:
		h.log.Debug("unknown message type", "player", c.playerID, "type", m.T)
	}
}

// reply answers the sender only; the new state reaches everyone via Notify.
func (h *Hub) reply(c *Client, res game.Result) {
	if !res.Success {
		h.sendTo(c, Msg{T: TypeError, M: map[string]string{"message": res.Message}})
		return
	}
	h.sendTo(c, Msg{T: TypeResult, M: map[string]any{"success": true, "message": res.Message}})
}

// ServeState writes the current snapshot as plain JSON.
func (h *Hub) ServeState(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(h.engine.CurrentState()); err != nil {
		h.log.Warn("write state", "error", err)
	}
}

// ---------- helpers ----------

func (h *Hub) sendTo(c *Client, msg Msg) {
	b, err := json.Marshal(msg)
	if err != nil {
		h.log.Error("encode message", "type", msg.T, "error", err)
		return
	}
	c.enqueue(b)
}

func encodeState(s game.State) ([]byte, error) {
	return json.Marshal(Msg{T: TypeState, M: s})
}

func decodePayload(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, v)
}
