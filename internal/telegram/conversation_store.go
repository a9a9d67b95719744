package telegram

import (
	"context"

	"back_tg/internal/models"

	"gorm.io/gorm"
)

// ConversationStore persists per-peer auto-reply history with bounded
// retention. Ordering for retrieval and trimming is strictly creation
// time ascending, with row id as tiebreaker for same-instant turns.
type ConversationStore struct {
	db *gorm.DB
}

// NewConversationStore creates a store on the given database.
func NewConversationStore(db *gorm.DB) *ConversationStore {
	return &ConversationStore{db: db}
}

// Append stores one turn for (user, peer).
func (cs *ConversationStore) Append(ctx context.Context, userID uint, peerID, role, content string) error {
	turn := models.TelegramConversation{
		UserID:  userID,
		PeerID:  peerID,
		Role:    role,
		Content: content,
	}
	return cs.db.WithContext(ctx).Create(&turn).Error
}

// Recent returns up to limit most-recent turns for (user, peer) in
// ascending creation order.
func (cs *ConversationStore) Recent(ctx context.Context, userID uint, peerID string, limit int) ([]models.TelegramConversation, error) {
	var turns []models.TelegramConversation
	err := cs.db.WithContext(ctx).
		Where("user_id = ? AND peer_id = ?", userID, peerID).
		Order("created_at DESC").Order("id DESC").
		Limit(limit).
		Find(&turns).Error
	if err != nil {
		return nil, err
	}

	// Fetched newest-first; reverse into ascending order.
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}

	return turns, nil
}

// Trim deletes the oldest turns for (user, peer) beyond cap. Best-effort
// housekeeping: a concurrent reader may briefly observe more than cap
// rows between an append and the trim.
func (cs *ConversationStore) Trim(ctx context.Context, userID uint, peerID string, cap int) error {
	var count int64
	if err := cs.db.WithContext(ctx).
		Model(&models.TelegramConversation{}).
		Where("user_id = ? AND peer_id = ?", userID, peerID).
		Count(&count).Error; err != nil {
		return err
	}

	excess := count - int64(cap)
	if excess <= 0 {
		return nil
	}

	var ids []uint
	if err := cs.db.WithContext(ctx).
		Model(&models.TelegramConversation{}).
		Where("user_id = ? AND peer_id = ?", userID, peerID).
		Order("created_at ASC").Order("id ASC").
		Limit(int(excess)).
		Pluck("id", &ids).Error; err != nil {
		return err
	}

	return cs.db.WithContext(ctx).
		Delete(&models.TelegramConversation{}, "id IN ?", ids).Error
}

// Count returns the stored turn count for (user, peer).
func (cs *ConversationStore) Count(ctx context.Context, userID uint, peerID string) (int64, error) {
	var count int64
	err := cs.db.WithContext(ctx).
		Model(&models.TelegramConversation{}).
		Where("user_id = ? AND peer_id = ?", userID, peerID).
		Count(&count).Error
	return count, err
}
