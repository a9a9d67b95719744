package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"back_tg/internal/services"
)

// extractUserIDFromToken extracts the authenticated user ID from the
// request's bearer token.
func extractUserIDFromToken(authService *services.AuthService, r *http.Request) (uint, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return 0, fmt.Errorf("authorization header required")
	}

	tokenString := strings.TrimPrefix(authHeader, "Bearer ")
	if tokenString == authHeader {
		return 0, fmt.Errorf("invalid authorization header format")
	}

	claims, err := authService.ValidateToken(tokenString)
	if err != nil {
		return 0, fmt.Errorf("invalid token: %v", err)
	}

	return claims.UserID, nil
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]interface{}{
		"success": false,
		"error":   message,
	})
}
