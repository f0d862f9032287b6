package replica

import (
	"sync"
	"time"

	"github.com/iudanet/doorsync/internal/models"
)

// Clock выдаёт серверные отметки server_updated_at.
type Clock interface {
	Now() models.Timestamp
}

// monotonicClock — часы на основе настенного времени, которые никогда не
// возвращают одно значение дважды: при совпадении миллисекунды отметка
// сдвигается вперёд. Это сохраняет строгую монотонность server_updated_at,
// на которой держится тотальный порядок пагинации.
type monotonicClock struct {
	now  func() time.Time
	last models.Timestamp
	mu   sync.Mutex
}

// NewClock creates a monotonic millisecond clock backed by time.Now.
func NewClock() Clock {
	return &monotonicClock{now: time.Now}
}

// NewClockAt создаёт часы с подменённым источником времени.
// Используется в тестах.
func NewClockAt(now func() time.Time) Clock {
	return &monotonicClock{now: now}
}

// Now возвращает следующую отметку времени.
func (c *monotonicClock) Now() models.Timestamp {
	c.mu.Lock()
	defer c.mu.Unlock()

	ts := models.TimestampFrom(c.now())
	if ts <= c.last {
		ts = c.last + 1
	}
	c.last = ts
	return ts
}
