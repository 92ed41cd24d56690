// Package chatws implements the realtime chat protocol over WebSocket:
// connection authentication, session registry, room membership, and the
// message router that orchestrates persistence and assistant replies.
package chatws

import (
	"encoding/json"
	"time"

	"github.com/avoronin/aichat/internal/domain"
)

// Client-to-server event names.
const (
	EventSendMessage = "send_message"
	EventJoinChat    = "join_chat"
)

// Server-to-client event names.
const (
	EventMessageSaved = "message_saved"
	EventStreamStart  = "ai_stream_start"
	EventStreamChunk  = "ai_stream_chunk"
	EventStreamEnd    = "ai_stream_end"
	EventError        = "error"
)

// Envelope is the wire frame for every event in either direction.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// SendMessagePayload is the client request to submit a message to a chat.
type SendMessagePayload struct {
	Content string `json:"content"`
	ChatID  int64  `json:"chat_id"`
	Stream  bool   `json:"stream,omitempty"`
}

// JoinChatPayload is the client request to join a chat's broadcast room.
type JoinChatPayload struct {
	ChatID int64 `json:"chat_id"`
}

// MessagePayload confirms a persisted message. Sent as message_saved for
// both user and whole-mode assistant messages, and as ai_stream_end for the
// final streamed reply.
type MessagePayload struct {
	ID         int64             `json:"id"`
	Content    string            `json:"content"`
	SenderType domain.SenderType `json:"sender_type"`
	CreatedAt  time.Time         `json:"created_at"`
	ChatID     int64             `json:"chat_id"`
}

// StreamStartPayload announces the beginning of a streamed reply.
type StreamStartPayload struct {
	ChatID int64 `json:"chat_id"`
}

// StreamChunkPayload carries one chunk of a streamed reply.
type StreamChunkPayload struct {
	Chunk  string `json:"chunk"`
	ChatID int64  `json:"chat_id"`
}

// ErrorPayload is a soft failure delivered to the originating connection.
type ErrorPayload struct {
	Message string `json:"message"`
}

func messagePayload(msg *domain.Message) MessagePayload {
	return MessagePayload{
		ID:         msg.ID,
		Content:    msg.Content,
		SenderType: msg.SenderType,
		CreatedAt:  msg.CreatedAt,
		ChatID:     msg.ChatID,
	}
}
