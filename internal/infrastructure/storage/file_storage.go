// internal/infrastructure/storage/file_storage.go
package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/garyjia/fieldops-portal/internal/application/port"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var unsafeNameChars = regexp.MustCompile(`[^a-zA-Z0-9.\-_]`)

// LocalStagingStorage implements port.StagingStorage on the local filesystem.
// Files live under <baseDir>/<session>/<uuid>_<name>; references are relative to baseDir.
type LocalStagingStorage struct {
	baseDir string
	logger  *zap.Logger
}

// NewLocalStagingStorage creates a new LocalStagingStorage
func NewLocalStagingStorage(baseDir string, logger *zap.Logger) *LocalStagingStorage {
	return &LocalStagingStorage{
		baseDir: baseDir,
		logger:  logger,
	}
}

// Stage writes content for a session and returns its relative reference
func (s *LocalStagingStorage) Stage(ctx context.Context, sessionID, fileName string, content io.Reader) (string, error) {
	folder := SanitizeName(sessionID)
	if folder == "" {
		return "", fmt.Errorf("cannot stage file: empty session id")
	}

	name := SanitizeName(fileName)
	if name == "" {
		name = "upload"
	}
	ref := filepath.Join(folder, uuid.NewString()+"_"+name)
	fullPath := s.GetFullPath(ref)

	if err := s.validatePath(fullPath); err != nil {
		return "", err
	}

	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		s.logger.Error("Failed to create staging folder",
			zap.String("session_id", sessionID),
			zap.Error(err))
		return "", fmt.Errorf("failed to create directories: %w", err)
	}

	f, err := os.OpenFile(fullPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return "", fmt.Errorf("failed to create staged file: %w", err)
	}
	defer f.Close()

	size, err := io.Copy(f, content)
	if err != nil {
		s.logger.Error("Failed to write staged file",
			zap.String("path", fullPath),
			zap.Error(err))
		return "", fmt.Errorf("failed to write file: %w", err)
	}

	s.logger.Debug("File staged",
		zap.String("session_id", sessionID),
		zap.String("ref", ref),
		zap.Int64("size", size))

	return ref, nil
}

// Read reads the content behind a staged reference
func (s *LocalStagingStorage) Read(ctx context.Context, ref string) ([]byte, error) {
	fullPath := s.GetFullPath(ref)

	if err := s.validatePath(fullPath); err != nil {
		return nil, err
	}

	content, err := os.ReadFile(fullPath)
	if err != nil {
		s.logger.Error("Failed to read staged file",
			zap.String("path", fullPath),
			zap.Error(err))
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	return content, nil
}

// Release removes a session's staging folder; missing folders are not an error
func (s *LocalStagingStorage) Release(ctx context.Context, sessionID string) error {
	folder := SanitizeName(sessionID)
	if folder == "" {
		return nil
	}
	fullPath := s.GetFullPath(folder)

	if _, err := os.Stat(fullPath); os.IsNotExist(err) {
		return nil
	}

	if err := os.RemoveAll(fullPath); err != nil {
		s.logger.Error("Failed to release staging folder",
			zap.String("session_id", sessionID),
			zap.Error(err))
		return fmt.Errorf("failed to delete folder: %w", err)
	}

	s.logger.Debug("Released staging folder", zap.String("session_id", sessionID))
	return nil
}

// GetFullPath converts a relative reference to a full path
func (s *LocalStagingStorage) GetFullPath(ref string) string {
	return filepath.Join(s.baseDir, ref)
}

// validatePath checks that the path stays inside baseDir
func (s *LocalStagingStorage) validatePath(fullPath string) error {
	absPath, err := filepath.Abs(fullPath)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}

	absBase, err := filepath.Abs(s.baseDir)
	if err != nil {
		return fmt.Errorf("failed to resolve base path: %w", err)
	}

	if !strings.HasPrefix(absPath, absBase+string(filepath.Separator)) && absPath != absBase {
		return fmt.Errorf("path escapes base directory: %s", fullPath)
	}

	return nil
}

// SanitizeName returns a filesystem-safe version of a file or folder name
func SanitizeName(name string) string {
	name = strings.ReplaceAll(name, "..", "")
	name = strings.ReplaceAll(name, "/", "")
	name = strings.ReplaceAll(name, "\\", "")
	return unsafeNameChars.ReplaceAllString(name, "")
}

var _ port.StagingStorage = (*LocalStagingStorage)(nil)
