package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"os"
	"path/filepath"

	"back_tg/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrFileNotFound means the file does not exist or belongs to another user.
var ErrFileNotFound = errors.New("file not found")

// Document types accepted for ingestion.
var allowedMimeTypes = map[string]string{
	"text/plain":      "txt",
	"application/pdf": "pdf",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": "docx",
	"text/markdown":   "md",
	"text/x-markdown": "md",
}

const maxFileSize = 10 * 1024 * 1024 // 10MB

// FileService stores uploaded documents on disk and feeds them to the
// AI service's ingestion pipeline.
type FileService struct {
	db        *gorm.DB
	ai        *AIService
	uploadDir string
}

// NewFileService creates a file service storing uploads under UPLOAD_DIR.
func NewFileService(db *gorm.DB, ai *AIService) *FileService {
	uploadDir := os.Getenv("UPLOAD_DIR")
	if uploadDir == "" {
		uploadDir = "uploads"
	}

	if err := os.MkdirAll(uploadDir, 0o755); err != nil {
		log.Printf("WARNING: Could not create upload directory %s: %v", uploadDir, err)
	}

	return &FileService{db: db, ai: ai, uploadDir: uploadDir}
}

// Upload validates and stores one document, then pushes it to the AI
// service. An ingestion failure marks the file failed rather than
// erroring the upload.
func (fs *FileService) Upload(ctx context.Context, userID uint, header *multipart.FileHeader, mimeType string) (*models.File, error) {
	if _, ok := allowedMimeTypes[mimeType]; !ok {
		return nil, fmt.Errorf("unsupported file type: %s", mimeType)
	}
	if header.Size > maxFileSize {
		return nil, fmt.Errorf("file too large: %d bytes (max %d)", header.Size, maxFileSize)
	}

	src, err := header.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open upload: %v", err)
	}
	defer src.Close()

	fileID := uuid.NewString()
	storagePath := filepath.Join(fs.uploadDir, fileID+filepath.Ext(header.Filename))

	dst, err := os.Create(storagePath)
	if err != nil {
		return nil, fmt.Errorf("failed to store upload: %v", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(storagePath)
		return nil, fmt.Errorf("failed to store upload: %v", err)
	}
	dst.Close()

	file := models.File{
		UserID:       userID,
		FileID:       fileID,
		OriginalName: header.Filename,
		StoragePath:  storagePath,
		MimeType:     mimeType,
		Size:         header.Size,
		Status:       models.FileStatusProcessing,
	}
	if err := fs.db.WithContext(ctx).Create(&file).Error; err != nil {
		os.Remove(storagePath)
		return nil, err
	}

	result, err := fs.ai.ProcessFile(ctx, fileID, userID, storagePath, mimeType)
	if err != nil {
		file.Status = models.FileStatusFailed
	} else {
		file.Status = models.FileStatusReady
		file.ChunksCount = result.ChunksCount
	}
	if err := fs.db.WithContext(ctx).Save(&file).Error; err != nil {
		log.Printf("WARNING: User %d - Failed to update file %s status: %v", userID, fileID, err)
	}

	log.Printf("DEBUG: User %d - Uploaded file %s (%s, status %s)", userID, header.Filename, fileID, file.Status)
	return &file, nil
}

// List returns the user's uploaded files, newest first.
func (fs *FileService) List(ctx context.Context, userID uint) ([]models.File, error) {
	var files []models.File
	err := fs.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&files).Error
	return files, err
}

// Delete removes a file record, its stored bytes and its AI service chunks.
func (fs *FileService) Delete(ctx context.Context, userID uint, fileID string) error {
	var file models.File
	err := fs.db.WithContext(ctx).
		Where("user_id = ? AND file_id = ?", userID, fileID).
		First(&file).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrFileNotFound
	}
	if err != nil {
		return err
	}

	fs.ai.DeleteFileChunks(ctx, file.FileID)

	if err := os.Remove(file.StoragePath); err != nil && !os.IsNotExist(err) {
		log.Printf("WARNING: User %d - Could not remove stored file %s: %v", userID, file.StoragePath, err)
	}

	return fs.db.WithContext(ctx).Delete(&file).Error
}
