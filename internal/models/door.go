package models

// Статусы двери. Ими управляет трекер присутствия по факту
// подключения/отключения live-потока.
const (
	DoorStatusOnline  = "ONLINE"
	DoorStatusOffline = "OFFLINE"
)

// Door — дверь-контроллер.
// CurrentPersons ведёт прикладной слой; протокол репликации его
// только переносит, но никогда не пересчитывает.
type Door struct {
	Meta
	Name           string `json:"name"`
	Status         string `json:"status"`
	MaxPersons     int    `json:"max_persons"`
	CurrentPersons int    `json:"current_persons"`
}
