// Package storage provides blob storage for customer photos.
// Drivers store raw bytes under keys and expose them through public urls served by the http api.
package storage

import (
	"context"
	"errors"
	"strings"
)

// PhotosRoute is http route prefix photos are served from
const PhotosRoute = "/api/photos/"

var (
	// ErrNotFound indicates the requested key does not exist in storage.
	ErrNotFound = errors.New("storage: key not found")

	// ErrInvalidKey indicates the key is empty, contains path traversal
	// or url doesn't belong to the storage.
	ErrInvalidKey = errors.New("storage: invalid key")
)

// PhotoStorage is blob storage for photos
type PhotoStorage interface {
	// Put stores content under key, existing content is overwritten.
	Put(ctx context.Context, key string, content []byte) error
	// Get returns content stored under key or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)
	// Delete removes content under key, missing key is not an error.
	Delete(ctx context.Context, key string) error
	// URL returns durable public url of the key.
	URL(key string) string
	// KeyFromURL resolves key back from url returned by URL.
	KeyFromURL(url string) (string, error)
}

// Locator maps keys to public urls and back
type Locator struct {
	prefix string
}

// NewLocator builds Locator for photos served under baseURL
func NewLocator(baseURL string) Locator {
	return Locator{prefix: strings.TrimRight(baseURL, "/") + PhotosRoute}
}

// URL returns public url for key
func (l Locator) URL(key string) string {
	return l.prefix + key
}

// KeyFromURL resolves key from public url
func (l Locator) KeyFromURL(url string) (string, error) {
	if !strings.HasPrefix(url, l.prefix) {
		return "", ErrInvalidKey
	}

	key := strings.TrimPrefix(url, l.prefix)
	if err := ValidateKey(key); err != nil {
		return "", err
	}
	return key, nil
}

// ValidateKey rejects empty keys and keys escaping storage root
func ValidateKey(key string) error {
	if key == "" || strings.HasPrefix(key, "/") {
		return ErrInvalidKey
	}

	for _, segment := range strings.Split(key, "/") {
		if segment == "" || segment == "." || segment == ".." {
			return ErrInvalidKey
		}
	}
	return nil
}
