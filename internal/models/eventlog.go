package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Типы и акторы событий handshake-журнала.
const (
	EventTypeReceive = "RECEIVE"
	EventActorServer = "SERVER"
)

// Event — одна запись журнала событий handshake.
type Event struct {
	Type  string    `json:"type"`
	At    Timestamp `json:"at"`
	Actor string    `json:"actor"`
}

// EventLog — упорядоченный append-only журнал событий. Контракт
// сериализации: JSON-массив объектов Event в порядке поступления.
// Разбор и кодирование изолированы здесь и не смешиваются с merge-логикой.
type EventLog []Event

// ParseEventLog разбирает сериализованный журнал. Исторически клиент
// присылает в поле events одиночный объект-событие, поэтому наряду с
// массивом принимается и объект. Пустая строка — пустой журнал.
func ParseEventLog(s string) (EventLog, error) {
	trimmed := bytes.TrimSpace([]byte(s))
	if len(trimmed) == 0 {
		return nil, nil
	}
	if trimmed[0] == '{' {
		var ev Event
		if err := json.Unmarshal(trimmed, &ev); err != nil {
			return nil, fmt.Errorf("invalid event: %w", err)
		}
		return EventLog{ev}, nil
	}
	var log EventLog
	if err := json.Unmarshal(trimmed, &log); err != nil {
		return nil, fmt.Errorf("invalid event log: %w", err)
	}
	return log, nil
}

// Append возвращает журнал с дописанными в конец событиями.
func (l EventLog) Append(events ...Event) EventLog {
	return append(l, events...)
}

// Encode сериализует журнал в JSON-массив.
func (l EventLog) Encode() (string, error) {
	if l == nil {
		l = EventLog{}
	}
	data, err := json.Marshal(l)
	if err != nil {
		return "", fmt.Errorf("encode event log: %w", err)
	}
	return string(data), nil
}
