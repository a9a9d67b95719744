package telegram

import (
	"context"
	"errors"
	"fmt"
	"log"

	"back_tg/internal/models"

	"gorm.io/gorm"
)

// Connection flow results returned to the HTTP layer.
const (
	StatusConnected        = "connected"
	StatusPasswordRequired = "password_required"
)

// Manager drives the multi-step Telegram login handshake per user,
// owns session state transitions and mutates the connection registry.
// Handshake steps are expected to be invoked in sequence by the caller;
// concurrent calls for the same user are not serialized here.
type Manager struct {
	db       *gorm.DB
	registry *Registry
	dialer   Dialer
	listener *Listener
}

// NewManager creates a handshake manager.
func NewManager(db *gorm.DB, registry *Registry, dialer Dialer, listener *Listener) *Manager {
	return &Manager{
		db:       db,
		registry: registry,
		dialer:   dialer,
		listener: listener,
	}
}

// SaveCredentials upserts the user's API credentials and resets the
// handshake to pending. Any live connection is closed and deregistered
// first: a credential change invalidates an in-flight login.
func (m *Manager) SaveCredentials(ctx context.Context, userID uint, apiID int, apiHash string) error {
	m.registry.Release(userID)

	var session models.TelegramSession
	err := m.db.WithContext(ctx).Where("user_id = ?", userID).First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		session = models.TelegramSession{
			UserID:  userID,
			APIID:   apiID,
			APIHash: apiHash,
			Status:  models.SessionStatusPending,
		}
		if err := m.db.WithContext(ctx).Create(&session).Error; err != nil {
			return err
		}
		log.Printf("DEBUG: User %d - Telegram credentials saved", userID)
		return nil
	}
	if err != nil {
		return err
	}

	session.APIID = apiID
	session.APIHash = apiHash
	session.Status = models.SessionStatusPending
	session.SessionToken = ""
	session.PendingCodeHash = ""
	if err := m.db.WithContext(ctx).Save(&session).Error; err != nil {
		return err
	}

	log.Printf("DEBUG: User %d - Telegram credentials updated, handshake reset", userID)
	return nil
}

// SendCode opens a fresh unauthenticated connection with the stored
// credentials and asks Telegram to deliver a login code to phone. The
// awaiting_code transition is persisted only after the protocol call
// succeeds; a connect or request failure leaves the session unchanged.
func (m *Manager) SendCode(ctx context.Context, userID uint, phone string) error {
	session, err := m.getSession(ctx, userID)
	if err != nil {
		return err
	}

	// Drop any connection left over from an earlier attempt.
	m.registry.Release(userID)

	client, err := m.dialer.Dial(ctx, Credentials{APIID: session.APIID, APIHash: session.APIHash}, "")
	if err != nil {
		return fmt.Errorf("failed to connect to telegram: %v", err)
	}

	codeHash, err := client.SendCode(ctx, phone)
	if err != nil {
		closeQuietly(client)
		return fmt.Errorf("failed to request login code: %v", err)
	}

	session.Phone = phone
	session.Status = models.SessionStatusAwaitingCode
	session.PendingCodeHash = codeHash
	session.SessionToken = ""
	if err := m.db.WithContext(ctx).Save(session).Error; err != nil {
		closeQuietly(client)
		return err
	}

	// Registered unauthenticated; the verify step needs this connection.
	m.registry.Set(userID, client)

	log.Printf("DEBUG: User %d - Login code sent to %s", userID, phone)
	return nil
}

// VerifyCode submits the received login code. Returns StatusConnected on
// success and StatusPasswordRequired when the account needs its 2FA
// password; any other protocol rejection is surfaced as an error with
// session state and registry unchanged.
func (m *Manager) VerifyCode(ctx context.Context, userID uint, code string) (string, error) {
	session, err := m.getSession(ctx, userID)
	if err != nil {
		return "", err
	}

	if session.PendingCodeHash == "" {
		return "", ErrNoPendingCode
	}

	client, ok := m.registry.Get(userID)
	if !ok {
		return "", ErrNotConnected
	}

	err = client.SignIn(ctx, session.Phone, session.PendingCodeHash, code)
	if errors.Is(err, ErrPasswordNeeded) {
		session.Status = models.SessionStatusAwaitingPassword
		if err := m.db.WithContext(ctx).Save(session).Error; err != nil {
			return "", err
		}
		log.Printf("DEBUG: User %d - Two-factor password required", userID)
		return StatusPasswordRequired, nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to verify code: %v", err)
	}

	session.PendingCodeHash = ""
	if err := m.activate(ctx, session, client); err != nil {
		return "", err
	}

	return StatusConnected, nil
}

// VerifyPassword submits the 2FA password for accounts that require it.
func (m *Manager) VerifyPassword(ctx context.Context, userID uint, password string) (string, error) {
	session, err := m.getSession(ctx, userID)
	if err != nil {
		return "", err
	}

	client, ok := m.registry.Get(userID)
	if !ok {
		return "", ErrNotConnected
	}

	if err := client.SignInWithPassword(ctx, password); err != nil {
		return "", fmt.Errorf("failed to verify password: %v", err)
	}

	session.PendingCodeHash = ""
	if err := m.activate(ctx, session, client); err != nil {
		return "", err
	}

	return StatusConnected, nil
}

// activate persists the serialized session, marks the record active and
// starts the message listener on the now-authenticated connection.
func (m *Manager) activate(ctx context.Context, session *models.TelegramSession, client Client) error {
	token, err := client.ExportSession(ctx)
	if err != nil {
		return fmt.Errorf("failed to export session: %v", err)
	}

	session.SessionToken = token
	session.Status = models.SessionStatusActive
	if err := m.db.WithContext(ctx).Save(session).Error; err != nil {
		return err
	}

	m.listener.Attach(session.UserID, client)

	log.Printf("DEBUG: User %d - Telegram connected", session.UserID)
	return nil
}

// Disconnect closes and deregisters the live connection if present and
// marks the session disconnected. Idempotent when no connection exists.
// The session token is kept so a later reconnect flow can be informed.
func (m *Manager) Disconnect(ctx context.Context, userID uint) error {
	session, err := m.getSession(ctx, userID)
	if err != nil {
		return err
	}

	m.registry.Release(userID)

	session.Status = models.SessionStatusDisconnected
	if err := m.db.WithContext(ctx).Save(session).Error; err != nil {
		return err
	}

	log.Printf("DEBUG: User %d - Telegram disconnected", userID)
	return nil
}

// ToggleAutoReply flips the auto-reply flag, independent of connection
// state, and returns the updated session.
func (m *Manager) ToggleAutoReply(ctx context.Context, userID uint, enabled bool) (*models.TelegramSession, error) {
	session, err := m.getSession(ctx, userID)
	if err != nil {
		return nil, err
	}

	session.AutoReplyEnabled = enabled
	if err := m.db.WithContext(ctx).Save(session).Error; err != nil {
		return nil, err
	}

	log.Printf("DEBUG: User %d - Auto-reply set to %v", userID, enabled)
	return session, nil
}

// GetStatus returns the user's session, or nil when none exists.
func (m *Manager) GetStatus(ctx context.Context, userID uint) (*models.TelegramSession, error) {
	var session models.TelegramSession
	err := m.db.WithContext(ctx).Where("user_id = ?", userID).First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// RestoreActiveSessions re-establishes live connections for every
// session persisted as active, attaching the message listener to each.
// A failure for one user downgrades that user to disconnected and never
// aborts restoration of the others.
func (m *Manager) RestoreActiveSessions(ctx context.Context) {
	var sessions []models.TelegramSession
	if err := m.db.WithContext(ctx).
		Where("status = ?", models.SessionStatusActive).
		Find(&sessions).Error; err != nil {
		log.Printf("ERROR: Failed to load active telegram sessions: %v", err)
		return
	}

	restored := 0
	for i := range sessions {
		session := &sessions[i]
		if session.SessionToken == "" {
			continue
		}

		client, err := m.dialer.Dial(ctx,
			Credentials{APIID: session.APIID, APIHash: session.APIHash},
			session.SessionToken)
		if err != nil {
			log.Printf("ERROR: User %d - Failed to restore telegram session: %v", session.UserID, err)
			if err := m.db.WithContext(ctx).
				Model(&models.TelegramSession{}).
				Where("id = ?", session.ID).
				Update("status", models.SessionStatusDisconnected).Error; err != nil {
				log.Printf("ERROR: User %d - Failed to downgrade session status: %v", session.UserID, err)
			}
			continue
		}

		m.registry.Set(session.UserID, client)
		m.listener.Attach(session.UserID, client)
		restored++

		log.Printf("DEBUG: User %d - Restored telegram session", session.UserID)
	}

	log.Printf("DEBUG: Restored %d of %d active telegram sessions", restored, len(sessions))
}

func (m *Manager) getSession(ctx context.Context, userID uint) (*models.TelegramSession, error) {
	var session models.TelegramSession
	err := m.db.WithContext(ctx).Where("user_id = ?", userID).First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}
