package telegram

import (
	"context"
	"log"

	"back_tg/internal/models"
	"back_tg/internal/services"

	"gorm.io/gorm"
)

// Responder generates a reply for an incoming message given prior
// conversation context. Implemented by services.AIService.
type Responder interface {
	GenerateReply(ctx context.Context, userID uint, message string, history []services.ChatTurn) (*services.ChatReply, error)
}

// Listener handles inbound private messages on live connections: it
// gates on the per-session auto-reply flag, builds bounded history,
// asks the responder for a reply, persists both turns and sends the
// reply back. Every failure is absorbed and logged; a failed auto-reply
// never tears down the listener or the connection.
type Listener struct {
	db        *gorm.DB
	store     *ConversationStore
	responder Responder
}

// NewListener creates a message listener.
func NewListener(db *gorm.DB, store *ConversationStore, responder Responder) *Listener {
	return &Listener{
		db:        db,
		store:     store,
		responder: responder,
	}
}

// Attach subscribes the listener to a live connection. Each qualifying
// event is handled in its own goroutine so a slow responder call never
// blocks the connection's event loop.
func (l *Listener) Attach(userID uint, client Client) {
	client.OnMessage(func(msg IncomingMessage) {
		go l.Handle(context.Background(), userID, msg)
	})

	log.Printf("DEBUG: User %d - Listening for incoming messages", userID)
}

// Handle processes one inbound message event.
func (l *Listener) Handle(ctx context.Context, userID uint, msg IncomingMessage) {
	if msg.Text == "" || !msg.Private {
		return
	}

	// Live gate, re-read per message rather than cached at attach time.
	var session models.TelegramSession
	if err := l.db.WithContext(ctx).Where("user_id = ?", userID).First(&session).Error; err != nil {
		log.Printf("WARNING: User %d - Could not load session for incoming message: %v", userID, err)
		return
	}
	if !session.AutoReplyEnabled {
		return
	}

	peerID := msg.PeerID
	if peerID == "" {
		peerID = "unknown"
	}
	if peerID == "unknown" {
		// Fallback bucket: multiple peers may collide here.
		log.Printf("WARNING: User %d - Incoming message without a resolvable peer id", userID)
	}

	turns, err := l.store.Recent(ctx, userID, peerID, models.ConversationHistoryCap)
	if err != nil {
		log.Printf("ERROR: User %d - Failed to load conversation history for peer %s: %v", userID, peerID, err)
		return
	}

	history := make([]services.ChatTurn, 0, len(turns))
	for _, turn := range turns {
		role := "user"
		if turn.Role == models.TurnRoleGenerated {
			role = "assistant"
		}
		history = append(history, services.ChatTurn{Role: role, Content: turn.Content})
	}

	reply, err := l.responder.GenerateReply(ctx, userID, msg.Text, history)
	if err != nil {
		log.Printf("ERROR: User %d - Failed to generate auto-reply for peer %s: %v", userID, peerID, err)
		return
	}

	// Persist incoming then generated, then trim retention. Persistence
	// failures are logged but the reply still goes out to the peer.
	if err := l.store.Append(ctx, userID, peerID, models.TurnRoleIncoming, msg.Text); err != nil {
		log.Printf("ERROR: User %d - Failed to store incoming turn for peer %s: %v", userID, peerID, err)
	}
	if err := l.store.Append(ctx, userID, peerID, models.TurnRoleGenerated, reply.Reply); err != nil {
		log.Printf("ERROR: User %d - Failed to store generated turn for peer %s: %v", userID, peerID, err)
	}
	if err := l.store.Trim(ctx, userID, peerID, models.ConversationHistoryCap); err != nil {
		log.Printf("WARNING: User %d - Failed to trim conversation history for peer %s: %v", userID, peerID, err)
	}

	if err := msg.Reply(ctx, reply.Reply); err != nil {
		log.Printf("ERROR: User %d - Failed to send auto-reply to peer %s: %v", userID, peerID, err)
		return
	}

	log.Printf("DEBUG: User %d - Auto-replied to peer %s", userID, peerID)
}
