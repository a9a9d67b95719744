package services

import (
	"path/filepath"
	"testing"

	"back_tg/internal/database"
	"back_tg/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupAuthDB(t *testing.T) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}))

	prev := database.DB
	database.DB = db
	t.Cleanup(func() { database.DB = prev })
}

func TestRegisterAndLogin(t *testing.T) {
	setupAuthDB(t)
	as := &AuthService{}

	user, err := as.Register(models.UserRegister{
		Username: "budi",
		Email:    "budi@example.com",
		Password: "secret123",
	})
	require.NoError(t, err)
	assert.Equal(t, "budi", user.Username)
	assert.Equal(t, "user", user.Role)

	token, logged, err := as.Login(models.UserLogin{Email: "budi@example.com", Password: "secret123"})
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.Equal(t, user.ID, logged.ID)

	claims, err := as.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, "budi@example.com", claims.Email)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	setupAuthDB(t)
	as := &AuthService{}

	_, err := as.Register(models.UserRegister{Username: "budi", Email: "budi@example.com", Password: "secret123"})
	require.NoError(t, err)

	_, err = as.Register(models.UserRegister{Username: "other", Email: "budi@example.com", Password: "secret123"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "email already registered")

	_, err = as.Register(models.UserRegister{Username: "budi", Email: "new@example.com", Password: "secret123"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "username already taken")
}

func TestLoginWrongPassword(t *testing.T) {
	setupAuthDB(t)
	as := &AuthService{}

	_, err := as.Register(models.UserRegister{Username: "budi", Email: "budi@example.com", Password: "secret123"})
	require.NoError(t, err)

	_, _, err = as.Login(models.UserLogin{Email: "budi@example.com", Password: "wrong"})
	require.Error(t, err)

	_, _, err = as.Login(models.UserLogin{Email: "nobody@example.com", Password: "secret123"})
	require.Error(t, err)
}

func TestValidateTokenRejectsGarbage(t *testing.T) {
	as := &AuthService{}

	_, err := as.ValidateToken("not-a-token")
	assert.Error(t, err)
}
