package chatws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/avoronin/aichat/internal/auth"
	"github.com/avoronin/aichat/internal/responder"
	"github.com/avoronin/aichat/internal/store"
	"github.com/coder/websocket"
	"github.com/google/uuid"
)

// wsClient wraps a connection with a write lock; room broadcasts may write
// from other connections' handler goroutines.
type wsClient struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

// connTable implements Emitter over live websocket connections. Emissions
// to connections that have already gone away are dropped silently.
type connTable struct {
	mu      sync.RWMutex
	clients map[string]*wsClient
}

func newConnTable() *connTable {
	return &connTable{clients: make(map[string]*wsClient)}
}

func (t *connTable) add(connID string, conn *websocket.Conn) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.clients[connID] = &wsClient{conn: conn}
}

func (t *connTable) remove(connID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.clients, connID)
}

// Emit marshals an event envelope and writes it to the connection.
func (t *connTable) Emit(connID, event string, data any) {
	t.mu.RLock()
	client := t.clients[connID]
	t.mu.RUnlock()
	if client == nil {
		return
	}

	payload, err := json.Marshal(data)
	if err != nil {
		slog.Error("Failed to marshal event payload", "event", event, "error", err)
		return
	}
	frame, err := json.Marshal(Envelope{Event: event, Data: payload})
	if err != nil {
		slog.Error("Failed to marshal event envelope", "event", event, "error", err)
		return
	}

	client.mu.Lock()
	defer client.mu.Unlock()
	if err := client.conn.Write(context.Background(), websocket.MessageText, frame); err != nil {
		slog.Debug("Dropped event to closed connection", "conn_id", connID, "event", event)
	}
}

// Handler serves the realtime chat endpoint.
type Handler struct {
	tm            *auth.TokenManager
	registry      *Registry
	conns         *connTable
	router        *Router
	allowedOrigin string
	isDev         bool
}

// NewHandler creates a websocket chat handler. The router emits through the
// handler's own connection table.
func NewHandler(tm *auth.TokenManager, repo store.Repository, gen responder.Generator, allowedOrigin string, isDev bool) *Handler {
	registry := NewRegistry()
	conns := newConnTable()
	return &Handler{
		tm:            tm,
		registry:      registry,
		conns:         conns,
		router:        NewRouter(repo, gen, registry, conns),
		allowedOrigin: allowedOrigin,
		isDev:         isDev,
	}
}

// ServeHTTP upgrades the connection after verifying the bearer credential.
// A missing or invalid credential rejects the handshake; no session state is
// created. The credential is verified once and cached for the connection's
// lifetime.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token := auth.BearerToken(r)
	if token == "" {
		http.Error(w, `{"error":"missing credential"}`, http.StatusUnauthorized)
		return
	}
	userID, err := h.tm.Verify(token)
	if err != nil {
		slog.Warn("WebSocket authentication failed", "error", err, "ip", r.RemoteAddr)
		http.Error(w, `{"error":"invalid credential"}`, http.StatusUnauthorized)
		return
	}

	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("Failed to accept WebSocket", "error", err, "user_id", userID)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "session ended"); closeErr != nil {
			slog.Debug("Failed to close websocket", "error", closeErr, "user_id", userID)
		}
	}()

	connID := uuid.NewString()
	h.conns.add(connID, ws)
	h.registry.Register(connID, userID)
	defer func() {
		h.registry.Unregister(connID)
		h.conns.remove(connID)
	}()

	slog.Info("WebSocket connection established", "conn_id", connID, "user_id", userID)

	ctx := r.Context()
	h.readLoop(ctx, ws, connID)
	slog.Info("WebSocket connection closed", "conn_id", connID, "user_id", userID)
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	if h.isDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" || h.allowedOrigin == "" || h.allowedOrigin == "*" {
		return true
	}
	if origin == h.allowedOrigin {
		return true
	}
	slog.Warn("WebSocket origin rejected", "origin", origin, "allowed", h.allowedOrigin)
	return false
}

// readLoop dispatches client events sequentially. Handling send_message
// inline keeps per-connection chunk emission strictly ordered; concurrent
// connections interleave freely in their own handler goroutines.
func (h *Handler) readLoop(ctx context.Context, ws *websocket.Conn, connID string) {
	for {
		_, message, err := ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 {
				slog.Debug("WebSocket closed by client", "conn_id", connID)
			} else {
				slog.Debug("WebSocket read ended", "error", err, "conn_id", connID)
			}
			return
		}

		var env Envelope
		if err := json.Unmarshal(message, &env); err != nil {
			h.conns.Emit(connID, EventError, ErrorPayload{Message: "Malformed event"})
			continue
		}

		switch env.Event {
		case EventSendMessage:
			var p SendMessagePayload
			if err := json.Unmarshal(env.Data, &p); err != nil || p.Content == "" || p.ChatID == 0 {
				h.conns.Emit(connID, EventError, ErrorPayload{Message: "Malformed send_message payload"})
				continue
			}
			h.router.SendMessage(ctx, connID, p)
		case EventJoinChat:
			var p JoinChatPayload
			if err := json.Unmarshal(env.Data, &p); err != nil || p.ChatID == 0 {
				h.conns.Emit(connID, EventError, ErrorPayload{Message: "Malformed join_chat payload"})
				continue
			}
			h.router.JoinChat(connID, p)
		default:
			h.conns.Emit(connID, EventError, ErrorPayload{Message: "Unknown event"})
		}
	}
}
