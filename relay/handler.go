package relay

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/mbiss10/secure-aggregation/protocol"
)

const writeTimeout = 10 * time.Second

// Handler exposes a Relay over websockets.
type Handler struct {
	relay    *Relay
	log      *slog.Logger
	upgrader websocket.Upgrader
}

// NewHandler creates the websocket front end for relay.
func NewHandler(relay *Relay, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{
		relay: relay,
		log:   log.With("component", "relay-ws"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Browser participants connect from arbitrary origins.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// RegisterRoutes registers the websocket endpoint and a status route.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/ws", h.handleWebsocket)
	r.Get("/relay/status", h.handleStatus)
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h.relay.Status())
}

func (h *Handler) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied with an HTTP error.
		h.log.Warn("Websocket upgrade failed", "remote", r.RemoteAddr, "err", err)
		return
	}

	peer := &wsPeer{conn: conn}
	id, err := h.relay.Join(peer)
	if err != nil {
		if !errors.Is(err, ErrRoundFull) {
			h.log.Error("Could not register participant", "remote", r.RemoteAddr, "err", err)
			peer.Close()
		} else {
			h.log.Info("Turned away participant, round is full", "remote", r.RemoteAddr)
		}
		return
	}
	defer h.relay.Leave(id)

	log := h.log.With("participant", id, "remote", r.RemoteAddr)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) && !peer.closed() {
				log.Warn("Connection lost", "err", err)
			}
			return
		}

		if err := h.relay.Handle(id, data); err != nil {
			if protocol.IsRecoverable(err) || errors.Is(err, protocol.ErrDataConsistency) {
				log.Warn("Ignoring message", "err", err)
				continue
			}
			log.Error("Message handling failed", "err", err)
		}
	}
}

// wsPeer serializes writes to a websocket connection.
type wsPeer struct {
	mu       sync.Mutex
	conn     *websocket.Conn
	isClosed bool
}

func (p *wsPeer) Send(data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.isClosed {
		return websocket.ErrCloseSent
	}
	p.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return p.conn.WriteMessage(websocket.TextMessage, data)
}

func (p *wsPeer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.isClosed {
		return nil
	}
	p.isClosed = true

	deadline := time.Now().Add(time.Second)
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = p.conn.WriteControl(websocket.CloseMessage, msg, deadline)
	return p.conn.Close()
}

func (p *wsPeer) closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.isClosed
}

// HijacksConnections reports that the websocket route takes over the
// underlying connection.
func (h *Handler) HijacksConnections() bool { return true }
