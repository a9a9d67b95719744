package services

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"back_tg/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newFileDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.File{}))
	return db
}

func multipartHeader(t *testing.T, filename, content string) *multipart.FileHeader {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	require.NoError(t, req.ParseMultipartForm(1<<20))
	return req.MultipartForm.File["file"][0]
}

func TestUploadStoresAndIngests(t *testing.T) {
	ctx := context.Background()
	t.Setenv("UPLOAD_DIR", t.TempDir())
	db := newFileDB(t)

	var got aiProcessRequest
	ai, srv := newTestAIService(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/process", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		json.NewEncoder(w).Encode(ProcessFileResult{FileID: got.FileID, ChunksCount: 4, Status: "ready"})
	}))
	defer srv.Close()

	fs := NewFileService(db, ai)
	file, err := fs.Upload(ctx, 1, multipartHeader(t, "notes.txt", "hello world"), "text/plain")
	require.NoError(t, err)

	assert.Equal(t, models.FileStatusReady, file.Status)
	assert.Equal(t, 4, file.ChunksCount)
	assert.Equal(t, "notes.txt", file.OriginalName)
	assert.Equal(t, file.FileID, got.FileID)

	stored, err := os.ReadFile(file.StoragePath)
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(stored))
}

func TestUploadMarksFailedOnIngestionError(t *testing.T) {
	ctx := context.Background()
	t.Setenv("UPLOAD_DIR", t.TempDir())
	db := newFileDB(t)

	ai, srv := newTestAIService(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	fs := NewFileService(db, ai)
	file, err := fs.Upload(ctx, 1, multipartHeader(t, "notes.txt", "hello"), "text/plain")
	require.NoError(t, err)

	assert.Equal(t, models.FileStatusFailed, file.Status)
}

func TestUploadRejectsUnsupportedType(t *testing.T) {
	ctx := context.Background()
	t.Setenv("UPLOAD_DIR", t.TempDir())
	fs := NewFileService(newFileDB(t), nil)

	_, err := fs.Upload(ctx, 1, multipartHeader(t, "cat.png", "bytes"), "image/png")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported file type")
}

func TestDeleteRemovesFileEverywhere(t *testing.T) {
	ctx := context.Background()
	t.Setenv("UPLOAD_DIR", t.TempDir())
	db := newFileDB(t)

	var deletedPath string
	ai, srv := newTestAIService(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodDelete {
			deletedPath = r.URL.Path
			w.WriteHeader(http.StatusOK)
			return
		}
		json.NewEncoder(w).Encode(ProcessFileResult{ChunksCount: 1, Status: "ready"})
	}))
	defer srv.Close()

	fs := NewFileService(db, ai)
	file, err := fs.Upload(ctx, 1, multipartHeader(t, "notes.txt", "hello"), "text/plain")
	require.NoError(t, err)

	require.NoError(t, fs.Delete(ctx, 1, file.FileID))

	assert.Equal(t, "/api/process/"+file.FileID, deletedPath)
	_, err = os.Stat(file.StoragePath)
	assert.True(t, os.IsNotExist(err))

	files, err := fs.List(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestDeleteUnknownFile(t *testing.T) {
	ctx := context.Background()
	t.Setenv("UPLOAD_DIR", t.TempDir())
	fs := NewFileService(newFileDB(t), nil)

	err := fs.Delete(ctx, 1, "no-such-file")
	assert.ErrorIs(t, err, ErrFileNotFound)
}

func TestDeleteIsScopedToOwner(t *testing.T) {
	ctx := context.Background()
	t.Setenv("UPLOAD_DIR", t.TempDir())
	db := newFileDB(t)

	ai, srv := newTestAIService(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(ProcessFileResult{ChunksCount: 1, Status: "ready"})
	}))
	defer srv.Close()

	fs := NewFileService(db, ai)
	file, err := fs.Upload(ctx, 1, multipartHeader(t, "notes.txt", "hello"), "text/plain")
	require.NoError(t, err)

	err = fs.Delete(ctx, 2, file.FileID)
	assert.ErrorIs(t, err, ErrFileNotFound)
}
