// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"errors"

	"github.com/avoronin/aichat/internal/domain"
)

// ErrNotFound is returned when a referenced record does not exist or is not
// visible to the caller.
var ErrNotFound = errors.New("record not found")

// Repository defines the persistence operations the chat backend needs.
// Each call commits independently; no transaction spans multiple calls.
type Repository interface {
	// CreateUser inserts a new user and returns it with the assigned id.
	CreateUser(ctx context.Context, user *domain.User) (*domain.User, error)

	// GetUserByEmail retrieves a user by email. Returns (nil, nil) when no
	// such user exists.
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)

	// GetUserByID retrieves a user by id. Returns (nil, nil) when no such
	// user exists.
	GetUserByID(ctx context.Context, id int64) (*domain.User, error)

	// CreateChat inserts a new chat owned by the given user.
	CreateChat(ctx context.Context, userID int64, title string) (*domain.Chat, error)

	// ListChats returns the user's chats, newest first.
	ListChats(ctx context.Context, userID int64) ([]*domain.Chat, error)

	// GetChat retrieves a chat scoped to its owner. Returns ErrNotFound
	// when the chat is absent or owned by a different user.
	GetChat(ctx context.Context, chatID, userID int64) (*domain.Chat, error)

	// ListMessages returns a chat's messages ordered by creation time.
	ListMessages(ctx context.Context, chatID int64) ([]*domain.Message, error)

	// CreateMessage inserts a message and returns it with the assigned id
	// and timestamp. The message must satisfy domain.Message.Validate.
	CreateMessage(ctx context.Context, msg *domain.Message) (*domain.Message, error)

	// GetOrCreateAgent returns the singleton agent, creating it on first
	// use. Safe under concurrent first use: at most one row ever exists.
	GetOrCreateAgent(ctx context.Context) (*domain.Agent, error)

	// Ping verifies database connectivity.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
