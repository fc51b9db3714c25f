package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
)

type filesystemPhotoStorage struct {
	Locator
	basePath string
	logger   logrus.FieldLogger
}

// NewFilesystemPhotoStorage builds PhotoStorage keeping photos as files under basePath
func NewFilesystemPhotoStorage(basePath string, locator Locator, logger logrus.FieldLogger) (PhotoStorage, error) {
	if basePath == "" {
		return nil, errors.New("photo storage base path is required")
	}

	absPath, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve photo storage path - %w", err)
	}

	if err := os.MkdirAll(absPath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create photo storage directory - %w", err)
	}

	return &filesystemPhotoStorage{
		Locator:  locator,
		basePath: absPath,
		logger:   logger.WithField("storage", "filesystem"),
	}, nil
}

func (s *filesystemPhotoStorage) Put(_ context.Context, key string, content []byte) error {
	path, err := s.fullPath(key)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory - %w", err)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, content, 0o600); err != nil {
		return fmt.Errorf("failed to write temp file - %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to rename temp file - %w", err)
	}
	return nil
}

func (s *filesystemPhotoStorage) Get(_ context.Context, key string) ([]byte, error) {
	path, err := s.fullPath(key)
	if err != nil {
		return nil, err
	}

	content, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read file - %w", err)
	}
	return content, nil
}

func (s *filesystemPhotoStorage) Delete(_ context.Context, key string) error {
	path, err := s.fullPath(key)
	if err != nil {
		return err
	}

	if err := os.Remove(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to remove file - %w", err)
	}

	dir := filepath.Dir(path)
	if dir == s.basePath {
		return nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		s.logger.Warnf("failed to read directory %s for cleanup - %v", dir, err)
		return nil
	}

	if len(entries) == 0 {
		if err := os.Remove(dir); err != nil && !errors.Is(err, fs.ErrNotExist) {
			s.logger.Warnf("failed to remove empty directory %s - %v", dir, err)
		}
	}
	return nil
}

func (s *filesystemPhotoStorage) fullPath(key string) (string, error) {
	if err := ValidateKey(key); err != nil {
		return "", err
	}

	path := filepath.Join(s.basePath, filepath.FromSlash(key))
	if !strings.HasPrefix(path, s.basePath+string(filepath.Separator)) {
		return "", ErrInvalidKey
	}
	return path, nil
}
