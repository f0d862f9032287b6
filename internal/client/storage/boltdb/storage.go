// Package boltdb — реализация клиентского хранилища на BoltDB.
// Файловая блокировка BoltDB заодно гарантирует, что на устройстве
// работает один экземпляр клиента.
package boltdb

import (
	"context"
	"fmt"

	"go.etcd.io/bbolt"
)

var (
	// BoltDB bucket names
	bucketAuth        = []byte("auth")
	bucketDocuments   = []byte("documents")
	bucketCheckpoints = []byte("checkpoints")
	bucketPending     = []byte("pending")
	bucketMeta        = []byte("meta")
)

// Storage represents BoltDB storage implementation for client
type Storage struct {
	db *bbolt.DB
}

// New creates a new BoltDB storage instance
// dbPath is the path to the BoltDB database file
func New(ctx context.Context, dbPath string) (*Storage, error) {
	db, err := bbolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open boltdb: %w", err)
	}

	storage := &Storage{db: db}

	if err := storage.initBuckets(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize buckets: %w", err)
	}

	return storage, nil
}

// Close closes the database connection
func (s *Storage) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// initBuckets создает необходимые buckets если они не существуют.
// Документы и очереди коллекций живут во вложенных buckets внутри
// documents/ и pending/.
func (s *Storage) initBuckets() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketAuth, bucketDocuments, bucketCheckpoints, bucketPending, bucketMeta} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("failed to create %s bucket: %w", name, err)
			}
		}
		return nil
	})
}

// collectionBucket возвращает вложенный bucket коллекции, создавая его
// при необходимости. Только для Update-транзакций.
func collectionBucket(tx *bbolt.Tx, parent []byte, collection string) (*bbolt.Bucket, error) {
	root := tx.Bucket(parent)
	if root == nil {
		return nil, fmt.Errorf("%s bucket not found", parent)
	}
	if !tx.Writable() {
		b := root.Bucket([]byte(collection))
		return b, nil
	}
	b, err := root.CreateBucketIfNotExists([]byte(collection))
	if err != nil {
		return nil, fmt.Errorf("failed to create %s/%s bucket: %w", parent, collection, err)
	}
	return b, nil
}
