package main

import (
	"context"
	"log"
	"net/http"
	"os"

	"back_tg/internal/database"
	"back_tg/internal/handlers"
	"back_tg/internal/services"
	"back_tg/internal/telegram"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
)

// CORS middleware
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {

		// Set CORS headers
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "86400") // 24 hours

		// Handle preflight requests
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func main() {
	log.Println("DEBUG: Starting Telegram auto-reply backend...")

	// Load environment variables from .env file
	_ = godotenv.Load()

	// Initialize database
	log.Println("DEBUG: Initializing database...")
	database.InitDatabase()
	db := database.GetDB()

	// Core wiring: one registry and manager own all live connections
	aiService := services.NewAIService()
	authService := &services.AuthService{}
	registry := telegram.NewRegistry()
	store := telegram.NewConversationStore(db)
	listener := telegram.NewListener(db, store, aiService)
	manager := telegram.NewManager(db, registry, telegram.GotdDialer{}, listener)

	chatService := services.NewChatService(db, aiService)
	fileService := services.NewFileService(db, aiService)

	userHandler := handlers.NewUserHandler(authService)
	tgHandler := handlers.NewTelegramHandler(authService, manager)
	chatHandler := handlers.NewChatHandler(authService, chatService)
	fileHandler := handlers.NewFileHandler(authService, fileService)

	// Re-establish live connections for sessions persisted as active.
	// Per-user failures downgrade that user only, never startup.
	go manager.RestoreActiveSessions(context.Background())

	r := mux.NewRouter()

	// User management endpoints
	r.HandleFunc("/api/auth/register", userHandler.Register).Methods("POST")
	r.HandleFunc("/api/auth/login", userHandler.Login).Methods("POST")
	r.HandleFunc("/api/auth/profile", userHandler.GetProfile).Methods("GET")

	// Telegram connection handshake endpoints
	r.HandleFunc("/api/telegram/credentials", tgHandler.HandleSaveCredentials).Methods("POST")
	r.HandleFunc("/api/telegram/send-code", tgHandler.HandleSendCode).Methods("POST")
	r.HandleFunc("/api/telegram/verify-code", tgHandler.HandleVerifyCode).Methods("POST")
	r.HandleFunc("/api/telegram/verify-password", tgHandler.HandleVerifyPassword).Methods("POST")
	r.HandleFunc("/api/telegram/auto-reply", tgHandler.HandleToggleAutoReply).Methods("PATCH")
	r.HandleFunc("/api/telegram/disconnect", tgHandler.HandleDisconnect).Methods("DELETE")
	r.HandleFunc("/api/telegram/status", tgHandler.HandleStatus).Methods("GET")

	// AI assistant endpoints
	r.HandleFunc("/api/ai/chat", chatHandler.HandleChat).Methods("POST")
	r.HandleFunc("/api/ai/history", chatHandler.HandleGetHistory).Methods("GET")
	r.HandleFunc("/api/ai/history", chatHandler.HandleClearHistory).Methods("DELETE")

	// File endpoints
	r.HandleFunc("/api/files", fileHandler.HandleUpload).Methods("POST")
	r.HandleFunc("/api/files", fileHandler.HandleList).Methods("GET")
	r.HandleFunc("/api/files/{id}", fileHandler.HandleDelete).Methods("DELETE")

	// Health check endpoint
	r.HandleFunc("/api/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok","message":"Backend is running"}`))
	}).Methods("GET")

	// Apply CORS middleware
	handler := corsMiddleware(r)

	port := os.Getenv("BACKEND_PORT")
	if port == "" {
		port = "4000"
	}

	log.Printf("Telegram auto-reply backend started on :%s", port)

	log.Fatal(http.ListenAndServe(":"+port, handler))
}
