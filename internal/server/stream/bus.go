// Package stream реализует внутрипроцессную шину рассылки изменений:
// каждый успешный push публикуется в канал своей коллекции и доставляется
// всем текущим подписчикам live-потока. Шина создаётся при старте сервера
// и передаётся явно — никаких скрытых синглтонов.
package stream

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/iudanet/doorsync/internal/models"
)

// defaultBuffer — размер буфера канала подписчика. Медленный подписчик,
// переполнивший буфер, теряет событие и обязан догнать состояние pull-ом
// при переподключении (доставка best-effort, без replay).
const defaultBuffer = 16

// Event — одно событие шины: документы, записанные одним push-батчем,
// и итоговый чекпоинт батча.
type Event struct {
	Collection string
	Documents  []json.RawMessage
	Checkpoint models.Checkpoint
}

// Bus — широковещательная шина с каналом на коллекцию.
// Подписчики, подключившиеся после публикации, прошлых событий не видят.
type Bus struct {
	logger *slog.Logger
	subs   map[string]map[uint64]chan Event
	nextID uint64
	buffer int
	closed bool
	mu     sync.Mutex
}

// NewBus creates a broadcast bus.
func NewBus(logger *slog.Logger) *Bus {
	return &Bus{
		logger: logger,
		subs:   make(map[string]map[uint64]chan Event),
		buffer: defaultBuffer,
	}
}

// Subscribe регистрирует подписчика коллекции и возвращает канал событий
// и функцию отписки. После отписки или Close канал закрывается.
func (b *Bus) Subscribe(collection string) (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, b.buffer)
	if b.closed {
		close(ch)
		return ch, func() {}
	}

	if b.subs[collection] == nil {
		b.subs[collection] = make(map[uint64]chan Event)
	}
	b.nextID++
	id := b.nextID
	b.subs[collection][id] = ch

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if subs, ok := b.subs[collection]; ok {
				if _, ok := subs[id]; ok {
					delete(subs, id)
					close(ch)
				}
			}
		})
	}
	return ch, unsubscribe
}

// Publish доставляет событие всем текущим подписчикам его коллекции.
// Отправка неблокирующая: переполненный подписчик пропускает событие.
func (b *Bus) Publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}

	for id, ch := range b.subs[ev.Collection] {
		select {
		case ch <- ev:
		default:
			b.logger.Warn("stream subscriber too slow, dropping event",
				"collection", ev.Collection,
				"subscriber", id,
				"documents", len(ev.Documents),
			)
		}
	}
}

// Close закрывает шину и каналы всех подписчиков.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for _, subs := range b.subs {
		for _, ch := range subs {
			close(ch)
		}
	}
	b.subs = make(map[string]map[uint64]chan Event)
}
