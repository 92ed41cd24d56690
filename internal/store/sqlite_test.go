package store

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/avoronin/aichat/internal/domain"
)

func newTestStore(t *testing.T) Repository {
	t.Helper()
	repo, err := NewSQLite(filepath.Join(t.TempDir(), "chat.db"))
	if err != nil {
		t.Fatalf("NewSQLite failed: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func createTestUser(t *testing.T, repo Repository, email string) *domain.User {
	t.Helper()
	user, err := repo.CreateUser(context.Background(), &domain.User{
		Email:        email,
		PasswordHash: "hashed",
	})
	if err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	return user
}

func TestCreateAndGetUser(t *testing.T) {
	repo := newTestStore(t)
	ctx := context.Background()

	created, err := repo.CreateUser(ctx, &domain.User{
		Email:        "alice@example.com",
		PasswordHash: "hashed",
		FirstName:    "Alice",
	})
	if err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	if created.ID == 0 {
		t.Error("Expected assigned user id")
	}

	byEmail, err := repo.GetUserByEmail(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("GetUserByEmail failed: %v", err)
	}
	if byEmail == nil || byEmail.ID != created.ID || byEmail.FirstName != "Alice" {
		t.Errorf("Unexpected user by email: %+v", byEmail)
	}

	byID, err := repo.GetUserByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetUserByID failed: %v", err)
	}
	if byID == nil || byID.Email != "alice@example.com" {
		t.Errorf("Unexpected user by id: %+v", byID)
	}

	missing, err := repo.GetUserByEmail(ctx, "nobody@example.com")
	if err != nil {
		t.Fatalf("GetUserByEmail failed: %v", err)
	}
	if missing != nil {
		t.Errorf("Expected nil for unknown email, got %+v", missing)
	}
}

func TestDuplicateEmailRejected(t *testing.T) {
	repo := newTestStore(t)
	ctx := context.Background()

	createTestUser(t, repo, "alice@example.com")
	_, err := repo.CreateUser(ctx, &domain.User{Email: "alice@example.com", PasswordHash: "x"})
	if err == nil {
		t.Error("Expected unique constraint violation for duplicate email")
	}
}

func TestChatLifecycle(t *testing.T) {
	repo := newTestStore(t)
	ctx := context.Background()
	user := createTestUser(t, repo, "alice@example.com")

	first, err := repo.CreateChat(ctx, user.ID, "")
	if err != nil {
		t.Fatalf("CreateChat failed: %v", err)
	}
	if first.Title != domain.DefaultChatTitle {
		t.Errorf("Expected default title %q, got %q", domain.DefaultChatTitle, first.Title)
	}

	second, err := repo.CreateChat(ctx, user.ID, "Go questions")
	if err != nil {
		t.Fatalf("CreateChat failed: %v", err)
	}

	chats, err := repo.ListChats(ctx, user.ID)
	if err != nil {
		t.Fatalf("ListChats failed: %v", err)
	}
	if len(chats) != 2 {
		t.Fatalf("Expected 2 chats, got %d", len(chats))
	}
	// Newest first.
	if chats[0].ID != second.ID || chats[1].ID != first.ID {
		t.Errorf("Expected newest-first order, got %d then %d", chats[0].ID, chats[1].ID)
	}
}

func TestGetChatOwnershipScoped(t *testing.T) {
	repo := newTestStore(t)
	ctx := context.Background()
	alice := createTestUser(t, repo, "alice@example.com")
	bob := createTestUser(t, repo, "bob@example.com")

	chat, err := repo.CreateChat(ctx, alice.ID, "private")
	if err != nil {
		t.Fatalf("CreateChat failed: %v", err)
	}

	if _, err := repo.GetChat(ctx, chat.ID, alice.ID); err != nil {
		t.Errorf("Owner should see the chat: %v", err)
	}

	_, err = repo.GetChat(ctx, chat.ID, bob.ID)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound for foreign chat, got %v", err)
	}

	_, err = repo.GetChat(ctx, 9999, alice.ID)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound for missing chat, got %v", err)
	}
}

func TestMessagePersistenceAndOrdering(t *testing.T) {
	repo := newTestStore(t)
	ctx := context.Background()
	user := createTestUser(t, repo, "alice@example.com")
	chat, err := repo.CreateChat(ctx, user.ID, "")
	if err != nil {
		t.Fatalf("CreateChat failed: %v", err)
	}
	agent, err := repo.GetOrCreateAgent(ctx)
	if err != nil {
		t.Fatalf("GetOrCreateAgent failed: %v", err)
	}

	userMsg, err := repo.CreateMessage(ctx, &domain.Message{
		Content:      "hello",
		SenderType:   domain.SenderUser,
		ChatID:       chat.ID,
		UserSenderID: &user.ID,
	})
	if err != nil {
		t.Fatalf("CreateMessage (user) failed: %v", err)
	}

	aiMsg, err := repo.CreateMessage(ctx, &domain.Message{
		Content:       "hi, how can I help?",
		SenderType:    domain.SenderAI,
		ChatID:        chat.ID,
		AgentSenderID: &agent.ID,
	})
	if err != nil {
		t.Fatalf("CreateMessage (ai) failed: %v", err)
	}

	messages, err := repo.ListMessages(ctx, chat.ID)
	if err != nil {
		t.Fatalf("ListMessages failed: %v", err)
	}
	if len(messages) != 2 {
		t.Fatalf("Expected 2 messages, got %d", len(messages))
	}
	if messages[0].ID != userMsg.ID || messages[1].ID != aiMsg.ID {
		t.Errorf("Expected chronological order, got %d then %d", messages[0].ID, messages[1].ID)
	}
	if messages[0].UserSenderID == nil || messages[0].AgentSenderID != nil {
		t.Errorf("User message sender fields inconsistent: %+v", messages[0])
	}
	if messages[1].AgentSenderID == nil || messages[1].UserSenderID != nil {
		t.Errorf("AI message sender fields inconsistent: %+v", messages[1])
	}
}

func TestCreateMessageRejectsInconsistentSender(t *testing.T) {
	repo := newTestStore(t)
	ctx := context.Background()
	user := createTestUser(t, repo, "alice@example.com")
	chat, err := repo.CreateChat(ctx, user.ID, "")
	if err != nil {
		t.Fatalf("CreateChat failed: %v", err)
	}

	_, err = repo.CreateMessage(ctx, &domain.Message{
		Content:    "bad",
		SenderType: domain.SenderUser,
		ChatID:     chat.ID,
		// UserSenderID missing.
	})
	if !errors.Is(err, domain.ErrInconsistentSender) {
		t.Errorf("Expected ErrInconsistentSender, got %v", err)
	}
}

func TestGetOrCreateAgentConcurrent(t *testing.T) {
	repo := newTestStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	agents := make([]*domain.Agent, 10)
	errs := make([]error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			agents[i], errs[i] = repo.GetOrCreateAgent(ctx)
		}(i)
	}
	wg.Wait()

	for i := 0; i < 10; i++ {
		if errs[i] != nil {
			t.Fatalf("GetOrCreateAgent %d failed: %v", i, errs[i])
		}
		if agents[i].ID != 1 {
			t.Errorf("Expected agent id 1, got %d", agents[i].ID)
		}
	}

	var count int
	s := repo.(*SQLiteStore)
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM agents`).Scan(&count); err != nil {
		t.Fatalf("Count agents failed: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected exactly one agent row, got %d", count)
	}
}
