package chatws

import (
	"context"
	"log/slog"
	"strings"

	"github.com/avoronin/aichat/internal/domain"
	"github.com/avoronin/aichat/internal/responder"
	"github.com/avoronin/aichat/internal/store"
)

// Emitter delivers an event to a single connection. Delivery to a closed or
// unknown connection must be dropped silently, never returned as an error.
type Emitter interface {
	Emit(connID, event string, data any)
}

// Router orchestrates message handling: session checks, persistence,
// assistant reply generation, and event emission. It is transport-free;
// the websocket handler feeds it decoded events.
type Router struct {
	repo     store.Repository
	gen      responder.Generator
	registry *Registry
	emitter  Emitter
}

// NewRouter creates a message router.
func NewRouter(repo store.Repository, gen responder.Generator, registry *Registry, emitter Emitter) *Router {
	return &Router{
		repo:     repo,
		gen:      gen,
		registry: registry,
		emitter:  emitter,
	}
}

func (rt *Router) emitError(connID, message string) {
	rt.emitter.Emit(connID, EventError, ErrorPayload{Message: message})
}

// broadcastSaved delivers a persisted-message event to the originating
// connection and to every other member of the chat's room.
func (rt *Router) broadcastSaved(connID, event string, msg *domain.Message) {
	payload := messagePayload(msg)
	rt.emitter.Emit(connID, event, payload)
	for _, member := range rt.registry.RoomMembers(msg.ChatID) {
		if member != connID {
			rt.emitter.Emit(member, event, payload)
		}
	}
}

// JoinChat adds the connection to the chat's broadcast room. Ownership of
// the chat is not checked here; the room only scopes event delivery.
func (rt *Router) JoinChat(connID string, p JoinChatPayload) {
	rt.registry.JoinRoom(connID, p.ChatID)
}

// SendMessage handles a submitted message end to end: persist the user
// message, confirm it, then generate, persist, and emit the assistant reply.
// Each persistence call commits independently; a failure partway through
// leaves earlier writes in place.
func (rt *Router) SendMessage(ctx context.Context, connID string, p SendMessagePayload) {
	userID, ok := rt.registry.Lookup(connID)
	if !ok {
		rt.emitError(connID, "Not authenticated")
		return
	}

	userMsg, err := rt.repo.CreateMessage(ctx, &domain.Message{
		Content:      p.Content,
		SenderType:   domain.SenderUser,
		ChatID:       p.ChatID,
		UserSenderID: &userID,
	})
	if err != nil {
		slog.Error("Failed to persist user message", "error", err, "user_id", userID, "chat_id", p.ChatID)
		rt.emitError(connID, "Failed to save message")
		return
	}
	rt.broadcastSaved(connID, EventMessageSaved, userMsg)

	agent, err := rt.repo.GetOrCreateAgent(ctx)
	if err != nil {
		slog.Error("Failed to resolve agent", "error", err)
		rt.emitError(connID, "Failed to generate response")
		return
	}

	if p.Stream {
		rt.streamReply(ctx, connID, p, agent)
		return
	}
	rt.wholeReply(ctx, connID, p, agent)
}

// streamReply emits chunks strictly in order, accumulating them into the
// full response that gets persisted after the sequence is exhausted.
func (rt *Router) streamReply(ctx context.Context, connID string, p SendMessagePayload, agent *domain.Agent) {
	rt.emitter.Emit(connID, EventStreamStart, StreamStartPayload{ChatID: p.ChatID})

	var full strings.Builder
	for chunk, err := range rt.gen.Stream(ctx, p.Content) {
		if err != nil {
			slog.Warn("Stream aborted", "error", err, "chat_id", p.ChatID)
			return
		}
		full.WriteString(chunk)
		rt.emitter.Emit(connID, EventStreamChunk, StreamChunkPayload{
			Chunk:  chunk,
			ChatID: p.ChatID,
		})
	}

	aiMsg, err := rt.repo.CreateMessage(ctx, &domain.Message{
		Content:       full.String(),
		SenderType:    domain.SenderAI,
		ChatID:        p.ChatID,
		AgentSenderID: &agent.ID,
	})
	if err != nil {
		slog.Error("Failed to persist assistant message", "error", err, "chat_id", p.ChatID)
		rt.emitError(connID, "Failed to save response")
		return
	}
	rt.broadcastSaved(connID, EventStreamEnd, aiMsg)
}

func (rt *Router) wholeReply(ctx context.Context, connID string, p SendMessagePayload, agent *domain.Agent) {
	content, err := rt.gen.Complete(ctx, p.Content)
	if err != nil {
		slog.Warn("Response generation aborted", "error", err, "chat_id", p.ChatID)
		return
	}

	aiMsg, err := rt.repo.CreateMessage(ctx, &domain.Message{
		Content:       content,
		SenderType:    domain.SenderAI,
		ChatID:        p.ChatID,
		AgentSenderID: &agent.ID,
	})
	if err != nil {
		slog.Error("Failed to persist assistant message", "error", err, "chat_id", p.ChatID)
		rt.emitError(connID, "Failed to save response")
		return
	}
	rt.broadcastSaved(connID, EventMessageSaved, aiMsg)
}
