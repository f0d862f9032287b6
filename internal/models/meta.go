// Package models содержит доменные модели системы контроля доступа:
// четыре реплицируемых документа (транзакция входа, дверь, handshake-журнал,
// клиентский лог), общие метаданные репликации и тип Timestamp.
package models

import "encoding/json"

// Meta — метаданные репликации, общие для всех документов.
// Серверные поля (server_*, diff_time_*) заполняет только сервер,
// клиентские (client_*) — только устройство-источник.
type Meta struct {
	ID              string    `json:"id"`
	ServerCreatedAt Timestamp `json:"server_created_at,omitempty"`
	ServerUpdatedAt Timestamp `json:"server_updated_at,omitempty"`
	ClientCreatedAt Timestamp `json:"client_created_at,omitempty"`
	ClientUpdatedAt Timestamp `json:"client_updated_at,omitempty"`
	DiffTimeCreate  Timestamp `json:"diff_time_create,omitempty"`
	DiffTimeUpdate  Timestamp `json:"diff_time_update,omitempty"`
	Deleted         bool      `json:"deleted"`
}

// DocumentID возвращает первичный ключ документа.
func (m *Meta) DocumentID() string { return m.ID }

// UpdatedAt возвращает серверную отметку последнего изменения.
func (m *Meta) UpdatedAt() Timestamp { return m.ServerUpdatedAt }

// StampCreate проставляет серверные отметки при создании документа
// и фиксирует расхождение часов сервера и клиента.
func (m *Meta) StampCreate(now Timestamp) {
	m.ServerCreatedAt = now
	m.ServerUpdatedAt = now
	m.DiffTimeCreate = now.Sub(m.ClientCreatedAt)
}

// StampUpdate проставляет серверные отметки при обновлении документа.
func (m *Meta) StampUpdate(now Timestamp) {
	m.ServerUpdatedAt = now
	m.DiffTimeUpdate = now.Sub(m.ClientUpdatedAt)
}

// ExtractMeta достаёт метаданные репликации из JSON-представления документа
// любой коллекции. Используется клиентом, которому для применения документа
// не нужно знать его полную схему.
func ExtractMeta(doc []byte) (Meta, error) {
	var m Meta
	if err := json.Unmarshal(doc, &m); err != nil {
		return Meta{}, err
	}
	return m, nil
}
