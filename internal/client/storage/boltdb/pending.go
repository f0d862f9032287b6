package boltdb

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/iudanet/doorsync/internal/client/storage"
)

// EnqueuePending ставит изменение в очередь коллекции. Ключ — растущий
// счётчик bucket, поэтому ListPending отдаёт строки в порядке постановки.
func (s *Storage) EnqueuePending(ctx context.Context, collection string, row storage.PendingRow) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket, err := collectionBucket(tx, bucketPending, collection)
		if err != nil {
			return err
		}

		seq, err := bucket.NextSequence()
		if err != nil {
			return fmt.Errorf("failed to get pending sequence: %w", err)
		}

		data, err := json.Marshal(row)
		if err != nil {
			return fmt.Errorf("failed to marshal pending row: %w", err)
		}

		key := make([]byte, 8)
		binary.BigEndian.PutUint64(key, seq)
		return bucket.Put(key, data)
	})
}

// ListPending возвращает очередь коллекции в порядке постановки.
func (s *Storage) ListPending(ctx context.Context, collection string) ([]storage.PendingRow, error) {
	var rows []storage.PendingRow

	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket, err := collectionBucket(tx, bucketPending, collection)
		if err != nil {
			return err
		}
		if bucket == nil {
			return nil
		}

		return bucket.ForEach(func(k, v []byte) error {
			var row storage.PendingRow
			if err := json.Unmarshal(v, &row); err != nil {
				return fmt.Errorf("failed to unmarshal pending row: %w", err)
			}
			row.Key = binary.BigEndian.Uint64(k)
			rows = append(rows, row)
			return nil
		})
	})

	if err != nil {
		return nil, err
	}
	return rows, nil
}

// RemovePending убирает из очереди строки с указанными Key. Повторная
// постановка того же документа получает новый Key и удалением более
// ранней строки не затрагивается.
func (s *Storage) RemovePending(ctx context.Context, collection string, keys []uint64) error {
	if len(keys) == 0 {
		return nil
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket, err := collectionBucket(tx, bucketPending, collection)
		if err != nil {
			return err
		}

		k := make([]byte, 8)
		for _, key := range keys {
			binary.BigEndian.PutUint64(k, key)
			if err := bucket.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
}
