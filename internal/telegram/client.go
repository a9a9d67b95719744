package telegram

import (
	"context"
	"errors"
)

// Errors returned by the handshake manager. Handlers map these onto HTTP
// statuses; anything else surfaced from VerifyCode/VerifyPassword is a
// protocol rejection of the supplied code or password.
var (
	// ErrSessionNotFound means the user never saved credentials.
	ErrSessionNotFound = errors.New("telegram session not found")

	// ErrNoPendingCode means verifyCode was called without a stored
	// phone code hash. The caller must request a new code.
	ErrNoPendingCode = errors.New("phone code hash not found, request a new code")

	// ErrNotConnected means no live connection is registered for the
	// user. The caller must restart the connection flow.
	ErrNotConnected = errors.New("telegram client not initialized, start the connection flow again")

	// ErrPasswordNeeded signals that the account has two-factor auth
	// enabled and a password step must follow. Translated from the
	// protocol's SESSION_PASSWORD_NEEDED at the client boundary; nothing
	// above that boundary inspects protocol error text.
	ErrPasswordNeeded = errors.New("two-factor password required")
)

// Credentials identify an application to Telegram. Each user supplies
// their own pair from my.telegram.org.
type Credentials struct {
	APIID   int
	APIHash string
}

// IncomingMessage is one inbound message event from a live connection.
type IncomingMessage struct {
	// PeerID is the stable identifier of the interlocutor, derived from
	// the event with a documented priority (sender user id, then peer
	// user id, then chat id, then channel id, then "unknown").
	PeerID string

	// Text is the plain message text, empty for non-text messages.
	Text string

	// Private reports whether this is a direct, non-group message.
	Private bool

	// Reply sends text back on the originating connection as a reply to
	// this message.
	Reply func(ctx context.Context, text string) error
}

// MessageHandler consumes inbound message events.
type MessageHandler func(msg IncomingMessage)

// Client is a live protocol connection for one user. Exactly zero or one
// exists per user at any moment, tracked by the Registry.
type Client interface {
	// SendCode asks Telegram to deliver a login code to phone and
	// returns the code hash correlating the later sign-in call.
	SendCode(ctx context.Context, phone string) (codeHash string, err error)

	// SignIn completes the code step. Returns ErrPasswordNeeded when the
	// account requires a second factor.
	SignIn(ctx context.Context, phone, codeHash, code string) error

	// SignInWithPassword completes the two-factor step.
	SignInWithPassword(ctx context.Context, password string) error

	// ExportSession returns the durable serialized form of this
	// connection, reusable by a later Dial.
	ExportSession(ctx context.Context) (string, error)

	// OnMessage registers the handler for inbound messages. At most one
	// handler is active per connection.
	OnMessage(handler MessageHandler)

	// Close releases the underlying network connection.
	Close() error
}

// Dialer opens protocol connections. sessionToken restores a previously
// exported session; empty starts an unauthenticated connection for the
// login handshake.
type Dialer interface {
	Dial(ctx context.Context, creds Credentials, sessionToken string) (Client, error)
}
