package handlers

import (
	"errors"
	"log"
	"net/http"

	"back_tg/internal/services"

	"github.com/gorilla/mux"
)

// FileHandler exposes document upload for the AI assistant.
type FileHandler struct {
	authService *services.AuthService
	fileService *services.FileService
}

func NewFileHandler(authService *services.AuthService, fileService *services.FileService) *FileHandler {
	return &FileHandler{
		authService: authService,
		fileService: fileService,
	}
}

// HandleUpload stores one uploaded document and feeds it to the AI service
func (h *FileHandler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	userID, err := extractUserIDFromToken(h.authService, r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}

	if err := r.ParseMultipartForm(12 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required")
		return
	}
	file.Close()

	mimeType := header.Header.Get("Content-Type")

	stored, err := h.fileService.Upload(r.Context(), userID, header, mimeType)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"success": true,
		"file":    stored,
	})
}

// HandleList returns the user's uploaded files
func (h *FileHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	userID, err := extractUserIDFromToken(h.authService, r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}

	files, err := h.fileService.List(r.Context(), userID)
	if err != nil {
		log.Printf("ERROR: User %d - Failed to list files: %v", userID, err)
		writeError(w, http.StatusInternalServerError, "Failed to list files")
		return
	}

	writeJSON(w, http.StatusOK, files)
}

// HandleDelete removes an uploaded file and its AI service chunks
func (h *FileHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	userID, err := extractUserIDFromToken(h.authService, r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}

	fileID := mux.Vars(r)["id"]
	if fileID == "" {
		writeError(w, http.StatusBadRequest, "file id is required")
		return
	}

	if err := h.fileService.Delete(r.Context(), userID, fileID); err != nil {
		if errors.Is(err, services.ErrFileNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		log.Printf("ERROR: User %d - Failed to delete file %s: %v", userID, fileID, err)
		writeError(w, http.StatusInternalServerError, "Failed to delete file")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}
