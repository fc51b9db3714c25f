package service

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/docker/go-units"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	apperrors "github.com/umalmyha/customer-records/internal/errors"
	"github.com/umalmyha/customer-records/internal/storage"
)

const photoKeyPrefix = "customer-photos"

// PhotoService manages customer photos lifecycle in blob storage
type PhotoService interface {
	// Upload stores photo under unique key and returns its url
	Upload(ctx context.Context, content []byte, filename string) (string, error)
	// Remove deletes photo by url, failures are logged and never returned
	Remove(ctx context.Context, url string)
}

type photoService struct {
	storage           storage.PhotoStorage
	maxSize           int64
	validImgMimeTypes map[string]struct{}
	logger            logrus.FieldLogger
}

// NewPhotoService builds PhotoService accepting images up to maxSize bytes
func NewPhotoService(s storage.PhotoStorage, maxSize int64, logger logrus.FieldLogger) PhotoService {
	return &photoService{
		storage: s,
		maxSize: maxSize,
		// only types reported by http.DetectContentType
		validImgMimeTypes: map[string]struct{}{
			"image/gif":    {},
			"image/jpeg":   {},
			"image/png":    {},
			"image/webp":   {},
			"image/bmp":    {},
			"image/x-icon": {},
		},
		logger: logger.WithField("service", "photo"),
	}
}

func (s *photoService) Upload(ctx context.Context, content []byte, filename string) (string, error) {
	if len(content) == 0 {
		return "", apperrors.NewValidationErr("photo", "photo is empty")
	}

	if int64(len(content)) > s.maxSize {
		msg := fmt.Sprintf("photo size must not exceed %s", units.BytesSize(float64(s.maxSize)))
		return "", apperrors.NewValidationErr("photo", msg)
	}

	mimeType := http.DetectContentType(content)
	if !s.isMimeTypeAllowed(mimeType) {
		return "", apperrors.NewValidationErr("photo", fmt.Sprintf("MIME type %s is not allowed", mimeType))
	}

	key := photoKey(filename)
	if err := s.storage.Put(ctx, key, content); err != nil {
		return "", apperrors.NewStorageErr("upload photo", err)
	}

	s.logger.Debugf("photo %s uploaded (%s)", key, units.HumanSize(float64(len(content))))
	return s.storage.URL(key), nil
}

func (s *photoService) Remove(ctx context.Context, url string) {
	key, err := s.storage.KeyFromURL(url)
	if err != nil {
		s.logger.Warnf("failed to resolve photo key from url %s - %v", url, err)
		return
	}

	if err := s.storage.Delete(ctx, key); err != nil {
		s.logger.Warnf("failed to delete photo %s - %v", key, err)
	}
}

func (s *photoService) isMimeTypeAllowed(mime string) bool {
	_, ok := s.validImgMimeTypes[mime]
	return ok
}

func photoKey(filename string) string {
	ext := strings.ToLower(filepath.Ext(filepath.Base(filename)))
	return fmt.Sprintf("%s/%s%s", photoKeyPrefix, uuid.NewString(), ext)
}
