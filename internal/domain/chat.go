package domain

import "time"

// DefaultChatTitle is used when a chat is created without an explicit title.
const DefaultChatTitle = "New Chat"

// Chat is a conversation owned by a single user.
type Chat struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	UserID    int64     `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}
