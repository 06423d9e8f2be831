package storage

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/fafycat/fafycat/internal/common"
	"github.com/fafycat/fafycat/internal/service"
)

var _ service.ModelStore = (*BoltModelStore)(nil)

var (
	modelBucket = []byte("models")
	currentKey  = []byte("current")
)

// BoltModelStore persists serialized model snapshots in a bbolt file.
// Writes go through a single transaction, so a crash mid-save never
// leaves a partial snapshot behind.
type BoltModelStore struct {
	db *bolt.DB
}

// NewBoltModelStore opens (or creates) the model store at path.
func NewBoltModelStore(path string) (*BoltModelStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("failed to create model store directory: %w", err)
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open model store: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(modelBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create model bucket: %w", err)
	}

	return &BoltModelStore{db: db}, nil
}

// SaveSnapshot replaces the current snapshot atomically.
func (m *BoltModelStore) SaveSnapshot(ctx context.Context, serialized []byte) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if len(serialized) == 0 {
		return common.NewConfigError("refusing to save empty model snapshot")
	}

	err := m.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(modelBucket).Put(currentKey, serialized)
	})
	if err != nil {
		return fmt.Errorf("failed to save model snapshot: %w", err)
	}

	slog.Debug("saved model snapshot", "bytes", len(serialized))
	return nil
}

// LoadSnapshot returns the current snapshot bytes, or ErrModelNotTrained
// when no snapshot has been saved yet.
func (m *BoltModelStore) LoadSnapshot(ctx context.Context) ([]byte, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	var serialized []byte
	err := m.db.View(func(tx *bolt.Tx) error {
		value := tx.Bucket(modelBucket).Get(currentKey)
		if value != nil {
			serialized = make([]byte, len(value))
			copy(serialized, value)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load model snapshot: %w", err)
	}
	if serialized == nil {
		return nil, common.ErrModelNotTrained
	}
	return serialized, nil
}

// Close closes the underlying bbolt database.
func (m *BoltModelStore) Close() error {
	if m.db == nil {
		return nil
	}
	if err := m.db.Close(); err != nil {
		return fmt.Errorf("failed to close model store: %w", err)
	}
	return nil
}
