// Package store persists scene snapshots as opaque byte blobs under short
// keys, either on the local filesystem or in a MinIO bucket.
package store

import (
	"context"
	"errors"
	"fmt"
	"regexp"
)

var (
	// ErrNotFound is returned by Load when no blob exists under the key.
	ErrNotFound = errors.New("store: not found")
	// ErrInvalidKey is returned for keys outside the accepted alphabet.
	ErrInvalidKey = errors.New("store: invalid key")
)

// Store saves and loads blobs by key.
type Store interface {
	Save(ctx context.Context, key string, data []byte) error
	Load(ctx context.Context, key string) ([]byte, error)
}

var keyPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,127}$`)

// ValidateKey reports whether key can be stored. Keys never contain path
// separators.
func ValidateKey(key string) error {
	if !keyPattern.MatchString(key) {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return nil
}
