package telegram

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/gotd/contrib/bg"
	"github.com/gotd/td/session"
	tgclient "github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/auth"
	"github.com/gotd/td/telegram/message"
	"github.com/gotd/td/tg"
)

// GotdDialer opens MTProto connections via gotd/td. This is the single
// place where the protocol library's error text and event shapes are
// interpreted; the rest of the system sees only the Client contract.
type GotdDialer struct{}

// Dial opens a connection, restoring a previously exported session when
// sessionToken is non-empty. The connection runs detached until Close.
func (GotdDialer) Dial(ctx context.Context, creds Credentials, sessionToken string) (Client, error) {
	storage := &memorySession{}
	if sessionToken != "" {
		raw, err := base64.StdEncoding.DecodeString(sessionToken)
		if err != nil {
			return nil, fmt.Errorf("invalid session token: %v", err)
		}
		storage.data = raw
	}

	c := &gotdClient{storage: storage}

	dispatcher := tg.NewUpdateDispatcher()
	dispatcher.OnNewMessage(c.onNewMessage)

	client := tgclient.NewClient(creds.APIID, creds.APIHash, tgclient.Options{
		SessionStorage: storage,
		UpdateHandler:  dispatcher,
	})

	c.client = client
	c.sender = message.NewSender(client.API())

	stop, err := connectDetached(ctx, client)
	if err != nil {
		return nil, err
	}
	c.stop = stop

	return c, nil
}

// connectDetached starts the client's run loop in the background. The
// loop must not inherit dial-time cancellation: handshake dials arrive
// on HTTP request contexts that end when the handler returns, while the
// connection itself lives until the registry closes it. Context values
// still flow through; cancellation and deadlines do not.
func connectDetached(ctx context.Context, client bg.Client) (bg.StopFunc, error) {
	return bg.Connect(client, bg.WithContext(context.WithoutCancel(ctx)))
}

type gotdClient struct {
	client  *tgclient.Client
	sender  *message.Sender
	storage *memorySession
	stop    bg.StopFunc

	mu      sync.RWMutex
	handler MessageHandler
}

func (c *gotdClient) SendCode(ctx context.Context, phone string) (string, error) {
	sent, err := c.client.Auth().SendCode(ctx, phone, auth.SendCodeOptions{})
	if err != nil {
		return "", err
	}

	code, ok := sent.(*tg.AuthSentCode)
	if !ok {
		return "", fmt.Errorf("unexpected sent code response %T", sent)
	}

	return code.PhoneCodeHash, nil
}

func (c *gotdClient) SignIn(ctx context.Context, phone, codeHash, code string) error {
	_, err := c.client.Auth().SignIn(ctx, phone, code, codeHash)
	if err != nil {
		// Translate the second-factor signal into the package sentinel
		// here so nothing above this boundary matches on error text.
		if errors.Is(err, auth.ErrPasswordAuthNeeded) ||
			strings.Contains(err.Error(), "SESSION_PASSWORD_NEEDED") {
			return ErrPasswordNeeded
		}
		return err
	}
	return nil
}

func (c *gotdClient) SignInWithPassword(ctx context.Context, password string) error {
	_, err := c.client.Auth().Password(ctx, password)
	return err
}

func (c *gotdClient) ExportSession(ctx context.Context) (string, error) {
	data, err := c.storage.LoadSession(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to read session storage: %v", err)
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

func (c *gotdClient) OnMessage(handler MessageHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handler = handler
}

func (c *gotdClient) Close() error {
	if c.stop == nil {
		return nil
	}
	return c.stop()
}

func (c *gotdClient) onNewMessage(ctx context.Context, e tg.Entities, u *tg.UpdateNewMessage) error {
	m, ok := u.Message.(*tg.Message)
	if !ok || m.Out {
		return nil
	}

	c.mu.RLock()
	handler := c.handler
	c.mu.RUnlock()
	if handler == nil {
		return nil
	}

	_, private := m.PeerID.(*tg.PeerUser)

	handler(IncomingMessage{
		PeerID:  peerIDOf(m),
		Text:    m.Message,
		Private: private,
		Reply: func(ctx context.Context, text string) error {
			_, err := c.sender.Reply(e, u).Text(ctx, text)
			return err
		},
	})

	return nil
}

// peerIDOf derives the stable interlocutor id from a message. Priority:
// sender user id, then peer user id, then chat id, then channel id,
// then "unknown".
func peerIDOf(m *tg.Message) string {
	if from, ok := m.FromID.(*tg.PeerUser); ok {
		return strconv.FormatInt(from.UserID, 10)
	}
	switch peer := m.PeerID.(type) {
	case *tg.PeerUser:
		return strconv.FormatInt(peer.UserID, 10)
	case *tg.PeerChat:
		return strconv.FormatInt(peer.ChatID, 10)
	case *tg.PeerChannel:
		return strconv.FormatInt(peer.ChannelID, 10)
	}
	return "unknown"
}

// memorySession keeps gotd session bytes in memory so they can be moved
// in and out of the durable session token.
type memorySession struct {
	mu   sync.RWMutex
	data []byte
}

func (s *memorySession) LoadSession(_ context.Context) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.data) == 0 {
		return nil, session.ErrNotFound
	}
	out := make([]byte, len(s.data))
	copy(out, s.data)
	return out, nil
}

func (s *memorySession) StoreSession(_ context.Context, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = append([]byte(nil), data...)
	return nil
}
