// Package replica — серверное ядро репликации: merge-резолверы четырёх
// коллекций и инкрементальный pull поверх движка пагинации.
//
// Резолвер решает create-или-update для каждой строки push-батча, применяет
// правило конфликтов своей коллекции, проставляет серверные метаданные и
// после записи всего батча публикует его в шину рассылки. Конкурентные
// push-батчи одной коллекции сериализуются мьютексом сервиса: решение
// create/update и запись не атомарны и не должны перемежаться.
package replica

import (
	"encoding/json"
	"fmt"

	"github.com/iudanet/doorsync/internal/models"
	"github.com/iudanet/doorsync/internal/server/stream"
)

// Row — одна строка push-батча: состояние, утверждаемое клиентом, и,
// опционально, состояние, которое клиент считал мастер-копией.
// Assumed сейчас не участвует в решении (зарезервировано для строгой
// проверки конфликтов через ErrMergeConflict).
type Row[D any] struct {
	New     *D
	Assumed *D
}

// marshalDocs кодирует записанные документы для шины рассылки.
func marshalDocs[D any](docs []*D) ([]json.RawMessage, error) {
	out := make([]json.RawMessage, 0, len(docs))
	for _, doc := range docs {
		data, err := json.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal document for stream: %w", err)
		}
		out = append(out, data)
	}
	return out, nil
}

// publishBatch публикует батч в шину. Вызывается строго после того, как
// весь батч записан в хранилище: подписчик не должен видеть документ
// раньше его durability.
func publishBatch[D any](bus *stream.Bus, collection string, written []*D, cp models.Checkpoint) error {
	if bus == nil || len(written) == 0 {
		return nil
	}
	docs, err := marshalDocs(written)
	if err != nil {
		return err
	}
	bus.Publish(stream.Event{
		Collection: collection,
		Documents:  docs,
		Checkpoint: cp,
	})
	return nil
}
