// Package api содержит проводные типы протокола репликации doorsync.
// Документы передаются в своём JSON-представлении как есть; конверты
// pull/push/stream одинаковы для всех четырёх коллекций.
package api

import "encoding/json"

// Имена реплицируемых коллекций.
const (
	CollectionTransaction = "transaction"
	CollectionDoor        = "door"
	CollectionHandshake   = "handshake"
	CollectionLogClient   = "logclient"
)

// Collections перечисляет все коллекции в фиксированном порядке.
func Collections() []string {
	return []string{
		CollectionTransaction,
		CollectionDoor,
		CollectionHandshake,
		CollectionLogClient,
	}
}

// Checkpoint — проводное представление курсора репликации.
// server_updated_at — строка с целым числом миллисекунд.
type Checkpoint struct {
	ID              string `json:"id"`
	ServerUpdatedAt string `json:"server_updated_at"`
}

// PullWhere — необязательный фильтр выборочного pull. Поддерживается
// только коллекцией transaction; непустые поля сопоставляются по подстроке.
type PullWhere struct {
	DoorID string `json:"door_id,omitempty"`
	Status string `json:"status,omitempty"`
}

// PullRequest — запрос инкрементальной выборки.
// Отсутствующий чекпоинт означает выборку с начала истории.
type PullRequest struct {
	Checkpoint *Checkpoint `json:"checkpoint,omitempty"`
	Limit      int         `json:"limit"`
	Where      *PullWhere  `json:"where,omitempty"`
}

// PullResponse — страница документов и продвинутый чекпоинт.
// Тот же конверт сервер шлёт в live-потоке по websocket.
type PullResponse struct {
	Documents  []json.RawMessage `json:"documents"`
	Checkpoint Checkpoint        `json:"checkpoint"`
}

// PushRow — одна строка push-батча: утверждаемое клиентом состояние
// документа и, опционально, состояние, которое клиент считал мастер-копией
// на момент изменения.
type PushRow struct {
	NewDocumentState   json.RawMessage `json:"newDocumentState"`
	AssumedMasterState json.RawMessage `json:"assumedMasterState,omitempty"`
}

// PushRequest — батч изменений одной коллекции.
type PushRequest struct {
	Rows []PushRow `json:"rows"`
}

// PushResponse — записанные сервером документы в порядке обработки.
type PushResponse struct {
	Documents []json.RawMessage `json:"documents"`
}

// TokenRequest — запрос токена доступа двери.
// EnrollKey — общий ключ регистрации, известный двери и серверу.
type TokenRequest struct {
	DoorID     string `json:"door_id"`
	DeviceName string `json:"device_name"`
	EnrollKey  string `json:"enroll_key"`
}

// TokenResponse — выданный токен доступа.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

// HealthResponse — ответ health check.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
}

// ErrorResponse — тело ответа при ошибке.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
