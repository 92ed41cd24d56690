package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/avoronin/aichat/internal/domain"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	PRAGMA foreign_keys = ON;
	CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		email TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		first_name TEXT,
		last_name TEXT,
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS chats (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		title TEXT NOT NULL,
		user_id INTEGER NOT NULL REFERENCES users(id),
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_chats_user ON chats(user_id, created_at);

	CREATE TABLE IF NOT EXISTS agents (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		role TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS messages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		content TEXT NOT NULL,
		sender_type TEXT NOT NULL CHECK (sender_type IN ('user', 'ai')),
		chat_id INTEGER NOT NULL REFERENCES chats(id),
		user_sender_id INTEGER REFERENCES users(id),
		agent_sender_id INTEGER REFERENCES agents(id),
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_messages_chat ON messages(chat_id, created_at);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// CreateUser inserts a new user and returns it with the assigned id.
func (s *SQLiteStore) CreateUser(ctx context.Context, user *domain.User) (*domain.User, error) {
	now := time.Now()
	query := `
	INSERT INTO users (email, password_hash, first_name, last_name, created_at)
	VALUES (?, ?, ?, ?, ?)`

	result, err := s.db.ExecContext(ctx, query,
		user.Email, user.PasswordHash, user.FirstName, user.LastName, now.Unix(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get user id: %w", err)
	}

	created := *user
	created.ID = id
	created.CreatedAt = time.Unix(now.Unix(), 0)
	return &created, nil
}

func (s *SQLiteStore) scanUser(row *sql.Row) (*domain.User, error) {
	var user domain.User
	var firstName, lastName sql.NullString
	var createdAt int64

	err := row.Scan(&user.ID, &user.Email, &user.PasswordHash,
		&firstName, &lastName, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan user row: %w", err)
	}

	user.FirstName = firstName.String
	user.LastName = lastName.String
	user.CreatedAt = time.Unix(createdAt, 0)
	return &user, nil
}

// GetUserByEmail retrieves a user by email.
func (s *SQLiteStore) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := `
	SELECT id, email, password_hash, first_name, last_name, created_at
	FROM users WHERE email = ?`
	return s.scanUser(s.db.QueryRowContext(ctx, query, email))
}

// GetUserByID retrieves a user by id.
func (s *SQLiteStore) GetUserByID(ctx context.Context, id int64) (*domain.User, error) {
	query := `
	SELECT id, email, password_hash, first_name, last_name, created_at
	FROM users WHERE id = ?`
	return s.scanUser(s.db.QueryRowContext(ctx, query, id))
}

// CreateChat inserts a new chat owned by the given user.
func (s *SQLiteStore) CreateChat(ctx context.Context, userID int64, title string) (*domain.Chat, error) {
	if title == "" {
		title = domain.DefaultChatTitle
	}

	now := time.Now()
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO chats (title, user_id, created_at) VALUES (?, ?, ?)`,
		title, userID, now.Unix(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert chat: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get chat id: %w", err)
	}

	return &domain.Chat{
		ID:        id,
		Title:     title,
		UserID:    userID,
		CreatedAt: time.Unix(now.Unix(), 0),
	}, nil
}

// ListChats returns the user's chats, newest first.
func (s *SQLiteStore) ListChats(ctx context.Context, userID int64) ([]*domain.Chat, error) {
	query := `
	SELECT id, title, user_id, created_at
	FROM chats WHERE user_id = ? ORDER BY created_at DESC, id DESC`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("query chats: %w", err)
	}
	defer rows.Close()

	chats := []*domain.Chat{}
	for rows.Next() {
		var chat domain.Chat
		var createdAt int64
		if err := rows.Scan(&chat.ID, &chat.Title, &chat.UserID, &createdAt); err != nil {
			return nil, fmt.Errorf("scan chat row: %w", err)
		}
		chat.CreatedAt = time.Unix(createdAt, 0)
		chats = append(chats, &chat)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chat rows: %w", err)
	}
	return chats, nil
}

// GetChat retrieves a chat scoped to its owner.
func (s *SQLiteStore) GetChat(ctx context.Context, chatID, userID int64) (*domain.Chat, error) {
	query := `
	SELECT id, title, user_id, created_at
	FROM chats WHERE id = ? AND user_id = ?`

	var chat domain.Chat
	var createdAt int64
	err := s.db.QueryRowContext(ctx, query, chatID, userID).
		Scan(&chat.ID, &chat.Title, &chat.UserID, &createdAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan chat row: %w", err)
	}

	chat.CreatedAt = time.Unix(createdAt, 0)
	return &chat, nil
}

// ListMessages returns a chat's messages ordered by creation time.
func (s *SQLiteStore) ListMessages(ctx context.Context, chatID int64) ([]*domain.Message, error) {
	query := `
	SELECT id, content, sender_type, chat_id, user_sender_id, agent_sender_id, created_at
	FROM messages WHERE chat_id = ? ORDER BY created_at ASC, id ASC`

	rows, err := s.db.QueryContext(ctx, query, chatID)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	messages := []*domain.Message{}
	for rows.Next() {
		var msg domain.Message
		var userSender, agentSender sql.NullInt64
		var createdAt int64
		err := rows.Scan(&msg.ID, &msg.Content, &msg.SenderType, &msg.ChatID,
			&userSender, &agentSender, &createdAt)
		if err != nil {
			return nil, fmt.Errorf("scan message row: %w", err)
		}
		if userSender.Valid {
			msg.UserSenderID = &userSender.Int64
		}
		if agentSender.Valid {
			msg.AgentSenderID = &agentSender.Int64
		}
		msg.CreatedAt = time.Unix(createdAt, 0)
		messages = append(messages, &msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate message rows: %w", err)
	}
	return messages, nil
}

// CreateMessage inserts a message and returns it with the assigned id.
func (s *SQLiteStore) CreateMessage(ctx context.Context, msg *domain.Message) (*domain.Message, error) {
	if err := msg.Validate(); err != nil {
		return nil, err
	}

	now := time.Now()
	query := `
	INSERT INTO messages (content, sender_type, chat_id, user_sender_id, agent_sender_id, created_at)
	VALUES (?, ?, ?, ?, ?, ?)`

	var userSender, agentSender interface{}
	if msg.UserSenderID != nil {
		userSender = *msg.UserSenderID
	}
	if msg.AgentSenderID != nil {
		agentSender = *msg.AgentSenderID
	}

	result, err := s.db.ExecContext(ctx, query,
		msg.Content, msg.SenderType, msg.ChatID, userSender, agentSender, now.Unix(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get message id: %w", err)
	}

	created := *msg
	created.ID = id
	created.CreatedAt = time.Unix(now.Unix(), 0)
	return &created, nil
}

// GetOrCreateAgent returns the singleton agent, creating it on first use.
// The conflict-tolerant insert keeps concurrent first calls from producing
// two rows.
func (s *SQLiteStore) GetOrCreateAgent(ctx context.Context) (*domain.Agent, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO agents (id, role) VALUES (1, ?) ON CONFLICT(id) DO NOTHING`,
		domain.AgentRole,
	)
	if err != nil {
		return nil, fmt.Errorf("insert agent: %w", err)
	}

	var agent domain.Agent
	err = s.db.QueryRowContext(ctx, `SELECT id, role FROM agents WHERE id = 1`).
		Scan(&agent.ID, &agent.Role)
	if err != nil {
		return nil, fmt.Errorf("scan agent row: %w", err)
	}
	return &agent, nil
}
