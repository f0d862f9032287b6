package models

// ClientLogEntry — операционный лог клиента (двери-киоска).
// Записи неизменяемы: повторный push с существующим id — ошибка
// протокола, а не повод для merge.
type ClientLogEntry struct {
	Meta
	ClientID string `json:"client_id"`
	Type     string `json:"type"`
	Status   string `json:"status"`
	MetaData string `json:"meta_data"`
}
