package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"back_tg/internal/services"
	"back_tg/internal/telegram"
)

// TelegramHandler exposes the connection handshake over HTTP. One
// authenticated user per call; the handshake manager does the work.
type TelegramHandler struct {
	authService *services.AuthService
	manager     *telegram.Manager
}

func NewTelegramHandler(authService *services.AuthService, manager *telegram.Manager) *TelegramHandler {
	return &TelegramHandler{
		authService: authService,
		manager:     manager,
	}
}

type saveCredentialsRequest struct {
	AppID      int    `json:"appId"`
	SecretHash string `json:"secretHash"`
}

type sendCodeRequest struct {
	Phone string `json:"phone"`
}

type verifyCodeRequest struct {
	Code string `json:"code"`
}

type verifyPasswordRequest struct {
	Password string `json:"password"`
}

type autoReplyRequest struct {
	Enabled *bool `json:"enabled"`
}

// HandleSaveCredentials saves the user's API credentials (step 1)
func (h *TelegramHandler) HandleSaveCredentials(w http.ResponseWriter, r *http.Request) {
	userID, err := extractUserIDFromToken(h.authService, r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}

	var req saveCredentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.AppID <= 0 || len(req.SecretHash) < 10 {
		writeError(w, http.StatusBadRequest, "appId and secretHash are required")
		return
	}

	if err := h.manager.SaveCredentials(r.Context(), userID, req.AppID, req.SecretHash); err != nil {
		log.Printf("ERROR: User %d - Failed to save telegram credentials: %v", userID, err)
		writeError(w, http.StatusInternalServerError, "Failed to save credentials")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"status": "credentials_saved"})
}

// HandleSendCode requests a login code for the given phone (step 2)
func (h *TelegramHandler) HandleSendCode(w http.ResponseWriter, r *http.Request) {
	userID, err := extractUserIDFromToken(h.authService, r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}

	var req sendCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Phone == "" {
		writeError(w, http.StatusBadRequest, "phone is required")
		return
	}

	if err := h.manager.SendCode(r.Context(), userID, req.Phone); err != nil {
		if errors.Is(err, telegram.ErrSessionNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		log.Printf("ERROR: User %d - Failed to send login code: %v", userID, err)
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"status": "code_sent"})
}

// HandleVerifyCode verifies the received login code (step 3)
func (h *TelegramHandler) HandleVerifyCode(w http.ResponseWriter, r *http.Request) {
	userID, err := extractUserIDFromToken(h.authService, r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}

	var req verifyCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Code == "" {
		writeError(w, http.StatusBadRequest, "code is required")
		return
	}

	result, err := h.manager.VerifyCode(r.Context(), userID, req.Code)
	if err != nil {
		if errors.Is(err, telegram.ErrSessionNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": result})
}

// HandleVerifyPassword verifies the 2FA password (step 4, if required)
func (h *TelegramHandler) HandleVerifyPassword(w http.ResponseWriter, r *http.Request) {
	userID, err := extractUserIDFromToken(h.authService, r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}

	var req verifyPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Password == "" {
		writeError(w, http.StatusBadRequest, "password is required")
		return
	}

	result, err := h.manager.VerifyPassword(r.Context(), userID, req.Password)
	if err != nil {
		if errors.Is(err, telegram.ErrSessionNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": result})
}

// HandleToggleAutoReply flips AI auto-reply on or off
func (h *TelegramHandler) HandleToggleAutoReply(w http.ResponseWriter, r *http.Request) {
	userID, err := extractUserIDFromToken(h.authService, r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}

	var req autoReplyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Enabled == nil {
		writeError(w, http.StatusBadRequest, "enabled is required")
		return
	}

	session, err := h.manager.ToggleAutoReply(r.Context(), userID, *req.Enabled)
	if err != nil {
		if errors.Is(err, telegram.ErrSessionNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		log.Printf("ERROR: User %d - Failed to toggle auto-reply: %v", userID, err)
		writeError(w, http.StatusInternalServerError, "Failed to update session")
		return
	}

	writeJSON(w, http.StatusOK, session)
}

// HandleDisconnect closes the live connection and marks the session
// disconnected
func (h *TelegramHandler) HandleDisconnect(w http.ResponseWriter, r *http.Request) {
	userID, err := extractUserIDFromToken(h.authService, r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}

	if err := h.manager.Disconnect(r.Context(), userID); err != nil {
		if errors.Is(err, telegram.ErrSessionNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		log.Printf("ERROR: User %d - Failed to disconnect: %v", userID, err)
		writeError(w, http.StatusInternalServerError, "Failed to disconnect")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "disconnected"})
}

// HandleStatus returns the user's session, or null when none exists
func (h *TelegramHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	userID, err := extractUserIDFromToken(h.authService, r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}

	session, err := h.manager.GetStatus(r.Context(), userID)
	if err != nil {
		log.Printf("ERROR: User %d - Failed to load telegram status: %v", userID, err)
		writeError(w, http.StatusInternalServerError, "Failed to load status")
		return
	}

	writeJSON(w, http.StatusOK, session)
}
