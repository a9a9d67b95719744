package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"back_tg/internal/services"
)

// ChatHandler exposes the dashboard chat assistant.
type ChatHandler struct {
	authService *services.AuthService
	chatService *services.ChatService
}

func NewChatHandler(authService *services.AuthService, chatService *services.ChatService) *ChatHandler {
	return &ChatHandler{
		authService: authService,
		chatService: chatService,
	}
}

type chatRequest struct {
	Message string `json:"message"`
	TopK    int    `json:"top_k"`
}

// HandleChat sends a message to the AI assistant
func (h *ChatHandler) HandleChat(w http.ResponseWriter, r *http.Request) {
	userID, err := extractUserIDFromToken(h.authService, r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Message == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	reply, err := h.chatService.Chat(r.Context(), userID, req.Message, req.TopK)
	if err != nil {
		if errors.Is(err, services.ErrAIServiceUnavailable) {
			writeError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		log.Printf("ERROR: User %d - Chat failed: %v", userID, err)
		writeError(w, http.StatusInternalServerError, "Failed to process chat message")
		return
	}

	writeJSON(w, http.StatusOK, reply)
}

// HandleGetHistory returns the user's assistant chat history
func (h *ChatHandler) HandleGetHistory(w http.ResponseWriter, r *http.Request) {
	userID, err := extractUserIDFromToken(h.authService, r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}

	messages, err := h.chatService.GetHistory(r.Context(), userID)
	if err != nil {
		log.Printf("ERROR: User %d - Failed to load chat history: %v", userID, err)
		writeError(w, http.StatusInternalServerError, "Failed to load chat history")
		return
	}

	writeJSON(w, http.StatusOK, messages)
}

// HandleClearHistory deletes the user's assistant chat history
func (h *ChatHandler) HandleClearHistory(w http.ResponseWriter, r *http.Request) {
	userID, err := extractUserIDFromToken(h.authService, r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}

	if err := h.chatService.ClearHistory(r.Context(), userID); err != nil {
		log.Printf("ERROR: User %d - Failed to clear chat history: %v", userID, err)
		writeError(w, http.StatusInternalServerError, "Failed to clear chat history")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"ok": true})
}
