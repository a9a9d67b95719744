package services

import (
	"context"

	"back_tg/internal/models"

	"gorm.io/gorm"
)

// ChatService backs the dashboard chat assistant. Its history lives in
// chat_messages and is unrelated to the auto-reply conversation log.
type ChatService struct {
	db *gorm.DB
	ai *AIService
}

// NewChatService creates a chat service.
func NewChatService(db *gorm.DB, ai *AIService) *ChatService {
	return &ChatService{db: db, ai: ai}
}

// Chat sends a message to the AI assistant with the user's recent chat
// history as context, then persists both turns.
func (cs *ChatService) Chat(ctx context.Context, userID uint, message string, topK int) (*ChatReply, error) {
	// Newest window, fetched descending then reversed into ascending
	// order for the AI service.
	var previous []models.ChatMessage
	if err := cs.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").Order("id DESC").
		Limit(models.ConversationHistoryCap).
		Find(&previous).Error; err != nil {
		return nil, err
	}
	for i, j := 0, len(previous)-1; i < j; i, j = i+1, j-1 {
		previous[i], previous[j] = previous[j], previous[i]
	}

	history := make([]ChatTurn, 0, len(previous))
	for _, m := range previous {
		history = append(history, ChatTurn{Role: m.Role, Content: m.Content})
	}

	reply, err := cs.ai.generate(ctx, userID, message, history, topK)
	if err != nil {
		return nil, err
	}

	turns := []models.ChatMessage{
		{UserID: userID, Role: "user", Content: message},
		{UserID: userID, Role: "assistant", Content: reply.Reply},
	}
	if err := cs.db.WithContext(ctx).Create(&turns).Error; err != nil {
		return nil, err
	}

	return reply, nil
}

// GetHistory returns the user's assistant chat history, oldest first.
func (cs *ChatService) GetHistory(ctx context.Context, userID uint) ([]models.ChatMessage, error) {
	var messages []models.ChatMessage
	err := cs.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC").Order("id ASC").
		Find(&messages).Error
	return messages, err
}

// ClearHistory deletes the user's assistant chat history.
func (cs *ChatService) ClearHistory(ctx context.Context, userID uint) error {
	return cs.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Delete(&models.ChatMessage{}).Error
}
