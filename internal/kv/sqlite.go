// Package kv provides simple key-value blob storage with SQLite persistence
// and an in-memory option for tests.
package kv

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Bucket is the interface for key-value blob operations.
type Bucket interface {
	// Name returns the bucket name.
	Name() string

	// Get retrieves a value by key. The second return reports whether the
	// key exists.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Put saves a value with the given key, replacing any previous value.
	Put(ctx context.Context, key string, value []byte) error

	// Delete removes a key from the bucket. Returns true if the key existed.
	Delete(ctx context.Context, key string) (bool, error)
}

// SQLiteBucket is a persistent bucket backed by SQLite.
type SQLiteBucket struct {
	db   *sql.DB
	name string
}

// NewSQLiteBucket creates a new SQLite-backed bucket.
func NewSQLiteBucket(db *sql.DB, name string) *SQLiteBucket {
	return &SQLiteBucket{
		db:   db,
		name: name,
	}
}

// Name returns the bucket name.
func (b *SQLiteBucket) Name() string {
	return b.name
}

// Get retrieves a value by key.
func (b *SQLiteBucket) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value string

	err := b.db.QueryRowContext(ctx, `
		SELECT value FROM kv_store
		WHERE bucket = ? AND key = ?
	`, b.name, key).Scan(&value)

	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get value: %w", err)
	}

	return []byte(value), true, nil
}

// Put saves a value with the given key.
func (b *SQLiteBucket) Put(ctx context.Context, key string, value []byte) error {
	now := time.Now().UTC().Unix()

	_, err := b.db.ExecContext(ctx, `
		INSERT INTO kv_store (bucket, key, value, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(bucket, key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at
	`, b.name, key, string(value), now, now)

	if err != nil {
		return fmt.Errorf("failed to store value: %w", err)
	}

	return nil
}

// Delete removes a key from the bucket.
func (b *SQLiteBucket) Delete(ctx context.Context, key string) (bool, error) {
	result, err := b.db.ExecContext(ctx, `
		DELETE FROM kv_store WHERE bucket = ? AND key = ?
	`, b.name, key)
	if err != nil {
		return false, fmt.Errorf("failed to delete key: %w", err)
	}

	affected, _ := result.RowsAffected()
	return affected > 0, nil
}
