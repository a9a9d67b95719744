package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"
)

// ErrAIServiceUnavailable is returned for any transport failure or
// non-success response from the AI service. Internal error detail is
// logged, never surfaced to callers.
var ErrAIServiceUnavailable = errors.New("AI service is unavailable")

// ChatTurn is one prior message handed to the AI service as context.
// Role is "user" or "assistant".
type ChatTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatReply is the AI service's answer.
type ChatReply struct {
	Reply        string `json:"reply"`
	SourcesCount int    `json:"sources_count"`
}

// ProcessFileResult reports document ingestion output.
type ProcessFileResult struct {
	FileID      string `json:"file_id"`
	ChunksCount int    `json:"chunks_count"`
	Status      string `json:"status"`
}

// AIService is a thin client for the external reply-generation service.
type AIService struct {
	BaseURL string
	client  *http.Client
}

// NewAIService creates an AI service client from AI_SERVICE_URL.
func NewAIService() *AIService {
	baseURL := os.Getenv("AI_SERVICE_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8000"
	}

	return &AIService{
		BaseURL: baseURL,
		client:  &http.Client{Timeout: 60 * time.Second},
	}
}

type aiChatRequest struct {
	Message             string     `json:"message"`
	UserID              string     `json:"user_id"`
	ConversationHistory []ChatTurn `json:"conversation_history,omitempty"`
	TopK                int        `json:"top_k,omitempty"`
}

type aiProcessRequest struct {
	FileID   string `json:"file_id"`
	UserID   string `json:"user_id"`
	FilePath string `json:"file_path"`
	MimeType string `json:"mime_type"`
}

// GenerateReply asks the AI service for a reply to message, with history
// as conversation context.
func (as *AIService) GenerateReply(ctx context.Context, userID uint, message string, history []ChatTurn) (*ChatReply, error) {
	return as.generate(ctx, userID, message, history, 0)
}

func (as *AIService) generate(ctx context.Context, userID uint, message string, history []ChatTurn, topK int) (*ChatReply, error) {
	payload := aiChatRequest{
		Message:             message,
		UserID:              fmt.Sprintf("%d", userID),
		ConversationHistory: history,
		TopK:                topK,
	}

	var reply ChatReply
	if err := as.post(ctx, "/api/chat", payload, &reply); err != nil {
		log.Printf("ERROR: User %d - Failed to get chat response from AI service: %v", userID, err)
		return nil, ErrAIServiceUnavailable
	}

	return &reply, nil
}

// ProcessFile pushes an uploaded document into the AI service's
// ingestion pipeline.
func (as *AIService) ProcessFile(ctx context.Context, fileID string, userID uint, filePath, mimeType string) (*ProcessFileResult, error) {
	payload := aiProcessRequest{
		FileID:   fileID,
		UserID:   fmt.Sprintf("%d", userID),
		FilePath: filePath,
		MimeType: mimeType,
	}

	var result ProcessFileResult
	if err := as.post(ctx, "/api/process", payload, &result); err != nil {
		log.Printf("ERROR: User %d - Failed to process file %s in AI service: %v", userID, fileID, err)
		return nil, ErrAIServiceUnavailable
	}

	return &result, nil
}

// DeleteFileChunks removes a document's chunks from the AI service.
// Best-effort: a missing file or unreachable service is only logged.
func (as *AIService) DeleteFileChunks(ctx context.Context, fileID string) {
	url := fmt.Sprintf("%s/api/process/%s", as.BaseURL, fileID)

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, url, nil)
	if err != nil {
		log.Printf("WARNING: Could not build chunk delete request for file %s: %v", fileID, err)
		return
	}

	resp, err := as.client.Do(req)
	if err != nil {
		log.Printf("WARNING: Could not delete chunks for file %s: %v", fileID, err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 && resp.StatusCode != http.StatusNotFound {
		log.Printf("WARNING: Failed to delete chunks for file %s: status %d", fileID, resp.StatusCode)
	}
}

func (as *AIService) post(ctx context.Context, path string, payload interface{}, out interface{}) error {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, as.BaseURL+path, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := as.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request to AI service: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read AI service response: %v", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("AI service error (status %d): %s", resp.StatusCode, string(body))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to unmarshal AI service response: %v", err)
	}

	return nil
}
