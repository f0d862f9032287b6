package boltdb

import (
	"context"
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/iudanet/doorsync/internal/client/storage"
	"github.com/iudanet/doorsync/internal/models"
)

// SaveDocument записывает документ коллекции, замещая прежнюю версию.
func (s *Storage) SaveDocument(ctx context.Context, collection, id string, doc json.RawMessage) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket, err := collectionBucket(tx, bucketDocuments, collection)
		if err != nil {
			return err
		}
		if err := bucket.Put([]byte(id), doc); err != nil {
			return fmt.Errorf("failed to save document %s/%s: %w", collection, id, err)
		}
		return nil
	})
}

// GetDocument возвращает документ или ErrDocumentNotFound.
func (s *Storage) GetDocument(ctx context.Context, collection, id string) (json.RawMessage, error) {
	var doc json.RawMessage

	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket, err := collectionBucket(tx, bucketDocuments, collection)
		if err != nil {
			return err
		}
		if bucket == nil {
			return storage.ErrDocumentNotFound
		}

		data := bucket.Get([]byte(id))
		if data == nil {
			return storage.ErrDocumentNotFound
		}

		// Копия: данные bucket валидны только внутри транзакции.
		doc = append(json.RawMessage(nil), data...)
		return nil
	})

	if err != nil {
		return nil, err
	}
	return doc, nil
}

// ListDocuments возвращает все документы коллекции.
func (s *Storage) ListDocuments(ctx context.Context, collection string) ([]json.RawMessage, error) {
	var docs []json.RawMessage

	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket, err := collectionBucket(tx, bucketDocuments, collection)
		if err != nil {
			return err
		}
		if bucket == nil {
			return nil
		}

		return bucket.ForEach(func(_, v []byte) error {
			docs = append(docs, append(json.RawMessage(nil), v...))
			return nil
		})
	})

	if err != nil {
		return nil, err
	}
	return docs, nil
}

// SaveCheckpoint записывает чекпоинт коллекции.
func (s *Storage) SaveCheckpoint(ctx context.Context, collection string, cp models.Checkpoint) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketCheckpoints)
		if bucket == nil {
			return fmt.Errorf("checkpoints bucket not found")
		}

		data, err := json.Marshal(cp)
		if err != nil {
			return fmt.Errorf("failed to marshal checkpoint: %w", err)
		}
		return bucket.Put([]byte(collection), data)
	})
}

// GetCheckpoint возвращает чекпоинт коллекции, нулевой — если коллекция
// ещё не синхронизировалась.
func (s *Storage) GetCheckpoint(ctx context.Context, collection string) (models.Checkpoint, error) {
	var cp models.Checkpoint

	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketCheckpoints)
		if bucket == nil {
			return fmt.Errorf("checkpoints bucket not found")
		}

		data := bucket.Get([]byte(collection))
		if data == nil {
			return nil
		}
		return json.Unmarshal(data, &cp)
	})

	if err != nil {
		return models.Checkpoint{}, err
	}
	return cp, nil
}
