package models

import "github.com/iudanet/doorsync/pkg/api"

// Checkpoint — курсор репликации: пара (id, server_updated_at) последнего
// увиденного документа. Принадлежит одной паре коллекция/сессия и никогда
// не разделяется между сессиями.
type Checkpoint struct {
	ID              string    `json:"id"`
	ServerUpdatedAt Timestamp `json:"server_updated_at"`
}

// IsZero reports whether the checkpoint marks the beginning of history.
// Нулевой чекпоинт означает "отдать всё".
func (c Checkpoint) IsZero() bool {
	return c.ID == "" && c.ServerUpdatedAt == 0
}

// API converts the checkpoint to its wire representation.
func (c Checkpoint) API() api.Checkpoint {
	return api.Checkpoint{
		ID:              c.ID,
		ServerUpdatedAt: c.ServerUpdatedAt.String(),
	}
}

// CheckpointFromAPI парсит чекпоинт из проводного представления.
func CheckpointFromAPI(c api.Checkpoint) (Checkpoint, error) {
	ts, err := ParseTimestamp(c.ServerUpdatedAt)
	if err != nil {
		return Checkpoint{}, err
	}
	return Checkpoint{ID: c.ID, ServerUpdatedAt: ts}, nil
}
