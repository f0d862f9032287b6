package boltdb

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.etcd.io/bbolt"
)

var clientIDKey = []byte("client_id")

// ClientID возвращает стабильный идентификатор установки клиента,
// генерируя uuid при первом вызове.
func (s *Storage) ClientID(ctx context.Context) (string, error) {
	var id string

	err := s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketMeta)
		if bucket == nil {
			return fmt.Errorf("meta bucket not found")
		}

		if data := bucket.Get(clientIDKey); data != nil {
			id = string(data)
			return nil
		}

		id = uuid.New().String()
		return bucket.Put(clientIDKey, []byte(id))
	})

	if err != nil {
		return "", err
	}
	return id, nil
}
