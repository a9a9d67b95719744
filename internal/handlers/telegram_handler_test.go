package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"back_tg/internal/models"
	"back_tg/internal/services"
	"back_tg/internal/telegram"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// stubClient is a canned protocol connection for handler tests.
type stubClient struct {
	codeHash    string
	token       string
	signInErr   error
	passwordErr error
}

func (c *stubClient) SendCode(ctx context.Context, phone string) (string, error) {
	return c.codeHash, nil
}
func (c *stubClient) SignIn(ctx context.Context, phone, codeHash, code string) error {
	return c.signInErr
}
func (c *stubClient) SignInWithPassword(ctx context.Context, password string) error {
	return c.passwordErr
}
func (c *stubClient) ExportSession(ctx context.Context) (string, error) { return c.token, nil }
func (c *stubClient) OnMessage(handler telegram.MessageHandler)         {}
func (c *stubClient) Close() error                                      { return nil }

type stubDialer struct {
	client *stubClient
	err    error
}

func (d *stubDialer) Dial(ctx context.Context, creds telegram.Credentials, sessionToken string) (telegram.Client, error) {
	if d.err != nil {
		return nil, d.err
	}
	return d.client, nil
}

type stubResponder struct{}

func (stubResponder) GenerateReply(ctx context.Context, userID uint, message string, history []services.ChatTurn) (*services.ChatReply, error) {
	return &services.ChatReply{Reply: "ok"}, nil
}

func newTelegramTestHandler(t *testing.T, dialer telegram.Dialer) *TelegramHandler {
	t.Helper()
	t.Setenv("JWT_SECRET", "handler-test-secret")

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.TelegramSession{}, &models.TelegramConversation{}))

	registry := telegram.NewRegistry()
	store := telegram.NewConversationStore(db)
	listener := telegram.NewListener(db, store, stubResponder{})
	manager := telegram.NewManager(db, registry, dialer, listener)

	return NewTelegramHandler(&services.AuthService{}, manager)
}

func bearerToken(t *testing.T, userID uint) string {
	t.Helper()
	claims := services.JWTClaims{
		UserID:   userID,
		Username: "budi",
		Email:    "budi@example.com",
		Role:     "user",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("handler-test-secret"))
	require.NoError(t, err)
	return "Bearer " + token
}

func doJSON(t *testing.T, handler http.HandlerFunc, method, auth, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, "/", strings.NewReader(body))
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestHandshakeFlowOverHTTP(t *testing.T) {
	client := &stubClient{codeHash: "hash-abc", token: "exported", signInErr: telegram.ErrPasswordNeeded}
	h := newTelegramTestHandler(t, &stubDialer{client: client})
	auth := bearerToken(t, 1)

	rec := doJSON(t, h.HandleSaveCredentials, http.MethodPost, auth, `{"appId":12345,"secretHash":"hash-long-enough"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "credentials_saved", decodeBody(t, rec)["status"])

	rec = doJSON(t, h.HandleSendCode, http.MethodPost, auth, `{"phone":"+628123"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "code_sent", decodeBody(t, rec)["status"])

	rec = doJSON(t, h.HandleVerifyCode, http.MethodPost, auth, `{"code":"11111"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, telegram.StatusPasswordRequired, decodeBody(t, rec)["status"])

	rec = doJSON(t, h.HandleVerifyPassword, http.MethodPost, auth, `{"password":"hunter2"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, telegram.StatusConnected, decodeBody(t, rec)["status"])

	rec = doJSON(t, h.HandleStatus, http.MethodGet, auth, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.SessionStatusActive, decodeBody(t, rec)["status"])

	rec = doJSON(t, h.HandleDisconnect, http.MethodDelete, auth, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "disconnected", decodeBody(t, rec)["status"])
}

func TestSendCodeRequiresCredentials(t *testing.T) {
	h := newTelegramTestHandler(t, &stubDialer{client: &stubClient{}})

	rec := doJSON(t, h.HandleSendCode, http.MethodPost, bearerToken(t, 1), `{"phone":"+628123"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSendCodeUnreachableTelegram(t *testing.T) {
	h := newTelegramTestHandler(t, &stubDialer{err: errors.New("dc unreachable")})
	auth := bearerToken(t, 1)

	rec := doJSON(t, h.HandleSaveCredentials, http.MethodPost, auth, `{"appId":12345,"secretHash":"hash-long-enough"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, h.HandleSendCode, http.MethodPost, auth, `{"phone":"+628123"}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestVerifyCodeRejectionReturnsBadRequest(t *testing.T) {
	client := &stubClient{codeHash: "hash-abc", signInErr: errors.New("PHONE_CODE_INVALID")}
	h := newTelegramTestHandler(t, &stubDialer{client: client})
	auth := bearerToken(t, 1)

	doJSON(t, h.HandleSaveCredentials, http.MethodPost, auth, `{"appId":12345,"secretHash":"hash-long-enough"}`)
	doJSON(t, h.HandleSendCode, http.MethodPost, auth, `{"phone":"+628123"}`)

	rec := doJSON(t, h.HandleVerifyCode, http.MethodPost, auth, `{"code":"22222"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSaveCredentialsValidation(t *testing.T) {
	h := newTelegramTestHandler(t, &stubDialer{})
	auth := bearerToken(t, 1)

	rec := doJSON(t, h.HandleSaveCredentials, http.MethodPost, auth, `{"appId":0,"secretHash":"hash-long-enough"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, h.HandleSaveCredentials, http.MethodPost, auth, `{"appId":12345,"secretHash":"short"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, h.HandleSaveCredentials, http.MethodPost, auth, `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestToggleAutoReplyOverHTTP(t *testing.T) {
	h := newTelegramTestHandler(t, &stubDialer{})
	auth := bearerToken(t, 1)

	doJSON(t, h.HandleSaveCredentials, http.MethodPost, auth, `{"appId":12345,"secretHash":"hash-long-enough"}`)

	rec := doJSON(t, h.HandleToggleAutoReply, http.MethodPatch, auth, `{"enabled":true}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decodeBody(t, rec)["auto_reply_enabled"])

	rec = doJSON(t, h.HandleToggleAutoReply, http.MethodPatch, auth, `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStatusWithoutSessionReturnsNull(t *testing.T) {
	h := newTelegramTestHandler(t, &stubDialer{})

	rec := doJSON(t, h.HandleStatus, http.MethodGet, bearerToken(t, 1), "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "null", strings.TrimSpace(rec.Body.String()))
}

func TestRejectsMissingOrMalformedToken(t *testing.T) {
	h := newTelegramTestHandler(t, &stubDialer{})

	rec := doJSON(t, h.HandleStatus, http.MethodGet, "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(t, h.HandleStatus, http.MethodGet, "Bearer garbage", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(t, h.HandleStatus, http.MethodGet, "Basic abc", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
