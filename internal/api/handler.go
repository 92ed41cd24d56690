// Package api provides HTTP handlers for the conventional REST interface:
// registration, login, and chat CRUD.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/avoronin/aichat/internal/auth"
	"github.com/avoronin/aichat/internal/domain"
	"github.com/avoronin/aichat/internal/store"
	"github.com/go-chi/chi/v5"
)

// Handler serves the REST API.
type Handler struct {
	repo store.Repository
	tm   *auth.TokenManager
}

// NewHandler creates a new Handler.
func NewHandler(repo store.Repository, tm *auth.TokenManager) *Handler {
	return &Handler{repo: repo, tm: tm}
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// RegisterRoutes mounts all REST routes on the router.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/api/auth/register", h.Register)
	r.Post("/api/auth/login", h.Login)

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth(h.tm))
		r.Get("/api/auth/me", h.Me)
		r.Post("/api/chats", h.CreateChat)
		r.Get("/api/chats", h.ListChats)
		r.Get("/api/chats/{chatID}", h.GetChat)
	})
}

type registerRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	AccessToken string       `json:"access_token"`
	TokenType   string       `json:"token_type"`
	User        *domain.User `json:"user"`
}

type chatWithMessages struct {
	*domain.Chat
	Messages []*domain.Message `json:"messages"`
}

func (h *Handler) issueToken(w http.ResponseWriter, user *domain.User) {
	token, err := h.tm.Issue(user.ID)
	if err != nil {
		slog.Error("Failed to issue token", "error", err, "user_id", user.ID)
		Error(w, http.StatusInternalServerError, "failed to issue token")
		return
	}
	JSON(w, http.StatusOK, tokenResponse{
		AccessToken: token,
		TokenType:   "bearer",
		User:        user,
	})
}

// Register creates a new account and returns a bearer token for it.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || !strings.Contains(req.Email, "@") {
		Error(w, http.StatusBadRequest, "invalid email")
		return
	}
	if req.Password == "" {
		Error(w, http.StatusBadRequest, "password is required")
		return
	}

	existing, err := h.repo.GetUserByEmail(r.Context(), req.Email)
	if err != nil {
		slog.Error("Failed to look up user", "error", err)
		Error(w, http.StatusInternalServerError, "registration failed")
		return
	}
	if existing != nil {
		Error(w, http.StatusBadRequest, "Email already registered")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		slog.Error("Failed to hash password", "error", err)
		Error(w, http.StatusInternalServerError, "registration failed")
		return
	}

	user, err := h.repo.CreateUser(r.Context(), &domain.User{
		Email:        req.Email,
		PasswordHash: hash,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
	})
	if err != nil {
		slog.Error("Failed to create user", "error", err)
		Error(w, http.StatusInternalServerError, "registration failed")
		return
	}

	h.issueToken(w, user)
}

// Login verifies credentials and returns a bearer token.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := h.repo.GetUserByEmail(r.Context(), req.Email)
	if err != nil {
		slog.Error("Failed to look up user", "error", err)
		Error(w, http.StatusInternalServerError, "login failed")
		return
	}
	if user == nil || !auth.CheckPassword(req.Password, user.PasswordHash) {
		Error(w, http.StatusUnauthorized, "Incorrect email or password")
		return
	}

	h.issueToken(w, user)
}

// Me returns the authenticated user.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	user, err := h.repo.GetUserByID(r.Context(), userID)
	if err != nil {
		slog.Error("Failed to load user", "error", err, "user_id", userID)
		Error(w, http.StatusInternalServerError, "failed to load user")
		return
	}
	if user == nil {
		Error(w, http.StatusUnauthorized, "User not found")
		return
	}
	JSON(w, http.StatusOK, user)
}

type createChatRequest struct {
	Title string `json:"title"`
}

// CreateChat creates a chat owned by the caller.
func (h *Handler) CreateChat(w http.ResponseWriter, r *http.Request) {
	var req createChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	chat, err := h.repo.CreateChat(r.Context(), auth.UserIDFromContext(r.Context()), req.Title)
	if err != nil {
		slog.Error("Failed to create chat", "error", err)
		Error(w, http.StatusInternalServerError, "failed to create chat")
		return
	}
	JSON(w, http.StatusOK, chat)
}

// ListChats returns the caller's chats, newest first.
func (h *Handler) ListChats(w http.ResponseWriter, r *http.Request) {
	chats, err := h.repo.ListChats(r.Context(), auth.UserIDFromContext(r.Context()))
	if err != nil {
		slog.Error("Failed to list chats", "error", err)
		Error(w, http.StatusInternalServerError, "failed to list chats")
		return
	}
	JSON(w, http.StatusOK, chats)
}

// GetChat returns a chat with its messages in chronological order. Chats
// owned by other users are indistinguishable from missing ones.
func (h *Handler) GetChat(w http.ResponseWriter, r *http.Request) {
	chatID, err := strconv.ParseInt(chi.URLParam(r, "chatID"), 10, 64)
	if err != nil {
		Error(w, http.StatusBadRequest, "invalid chat id")
		return
	}

	chat, err := h.repo.GetChat(r.Context(), chatID, auth.UserIDFromContext(r.Context()))
	if errors.Is(err, store.ErrNotFound) {
		Error(w, http.StatusNotFound, "Chat not found")
		return
	}
	if err != nil {
		slog.Error("Failed to load chat", "error", err, "chat_id", chatID)
		Error(w, http.StatusInternalServerError, "failed to load chat")
		return
	}

	messages, err := h.repo.ListMessages(r.Context(), chatID)
	if err != nil {
		slog.Error("Failed to load messages", "error", err, "chat_id", chatID)
		Error(w, http.StatusInternalServerError, "failed to load messages")
		return
	}

	JSON(w, http.StatusOK, chatWithMessages{Chat: chat, Messages: messages})
}
