package models

// Статусы транзакции входа/выхода.
const (
	CheckInStatusIn  = "IN"
	CheckInStatusOut = "OUT"
)

// CheckInRecord — транзакция регистрации студента на двери-киоске.
// Инвариант: в любой момент не более одной записи с данным student_number
// имеет статус "IN"; его проверяет merge-резолвер коллекции.
type CheckInRecord struct {
	Meta
	Name           string `json:"name"`
	StudentNumber  string `json:"student_number"`
	IDCardBase64   string `json:"id_card_base64"`
	RegisterType   string `json:"register_type"`
	Status         string `json:"status"`
	DoorPermission string `json:"door_permission"`
}

// CheckInWhere — необязательный фильтр выборочного pull по коллекции
// транзакций. Пустое поле означает "совпадает всё"; непустое —
// совпадение по подстроке.
type CheckInWhere struct {
	DoorPermission string
	Status         string
}
