// Package storage binds the schedule service to its single persisted blob:
// one config document at a configured bucket and key.
package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/dusklight/duskd/internal/kv"
)

// ErrNotFound is returned by Load when no blob has ever been stored.
var ErrNotFound = errors.New("config blob not found")

// ConfigStore reads and writes the persisted schedule config blob. There is
// no locking or versioning: the blob is small, writes are rare, and
// last-write-wins is acceptable.
type ConfigStore struct {
	bucket kv.Bucket
	key    string
}

// NewConfigStore creates a store over the given bucket and key.
func NewConfigStore(bucket kv.Bucket, key string) *ConfigStore {
	return &ConfigStore{bucket: bucket, key: key}
}

// Load returns the stored blob, or ErrNotFound when absent.
func (s *ConfigStore) Load(ctx context.Context) ([]byte, error) {
	data, ok, err := s.bucket.Get(ctx, s.key)
	if err != nil {
		return nil, fmt.Errorf("failed to load config blob: %w", err)
	}
	if !ok {
		return nil, ErrNotFound
	}
	return data, nil
}

// Save replaces the stored blob.
func (s *ConfigStore) Save(ctx context.Context, blob []byte) error {
	if err := s.bucket.Put(ctx, s.key, blob); err != nil {
		return fmt.Errorf("failed to save config blob: %w", err)
	}
	return nil
}
