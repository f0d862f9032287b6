// Package replication реализует чистое ядро чекпоинт-пагинации.
// Оно задаёт единственный тотальный порядок документов и по нему нарезает
// инкрементальные страницы; одинаково используется всеми коллекциями.
package replication

import (
	"sort"

	"github.com/iudanet/doorsync/internal/models"
)

// Document — минимальный контракт документа для пагинации.
// Ему удовлетворяет любой тип, встраивающий models.Meta.
type Document interface {
	DocumentID() string
	UpdatedAt() models.Timestamp
}

// Less задаёт тотальный порядок документов: по server_updated_at
// (численно), при равенстве — по id (лексикографически). Порядок
// детерминирован, поэтому пагинация не пропускает и не повторяет документы.
func Less(a, b Document) bool {
	if c := a.UpdatedAt().Compare(b.UpdatedAt()); c != 0 {
		return c < 0
	}
	return a.DocumentID() < b.DocumentID()
}

// After сообщает, находится ли документ строго после чекпоинта в тотальном
// порядке. Нулевой чекпоинт означает "с начала истории": ему удовлетворяет
// любой документ.
func After(d Document, cp models.Checkpoint) bool {
	if cp.IsZero() {
		return true
	}
	if c := d.UpdatedAt().Compare(cp.ServerUpdatedAt); c != 0 {
		return c > 0
	}
	return d.DocumentID() > cp.ID
}

// Paginate возвращает очередную страницу документов после чекпоинта и новый
// чекпоинт. Страница — первые limit подходящих документов по возрастанию
// тотального порядка; limit <= 0 снимает ограничение. Для пустой страницы
// чекпоинт возвращается без изменений, чтобы вызывающий мог отличить
// "нового нет" от потери позиции.
func Paginate[D Document](docs []D, cp models.Checkpoint, limit int) ([]D, models.Checkpoint) {
	ordered := make([]D, len(docs))
	copy(ordered, docs)
	sort.Slice(ordered, func(i, j int) bool {
		return Less(ordered[i], ordered[j])
	})

	page := make([]D, 0, len(ordered))
	for _, d := range ordered {
		if !After(d, cp) {
			continue
		}
		page = append(page, d)
		if limit > 0 && len(page) == limit {
			break
		}
	}

	if len(page) == 0 {
		return page, cp
	}
	last := page[len(page)-1]
	return page, models.Checkpoint{
		ID:              last.DocumentID(),
		ServerUpdatedAt: last.UpdatedAt(),
	}
}
