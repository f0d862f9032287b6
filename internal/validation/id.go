package validation

import (
	"fmt"
	"regexp"
)

// MaxIDLen — максимальная длина первичного ключа документа.
// Ограничение продублировано в схеме хранилища.
const MaxIDLen = 100

// DoorIDPattern определяет допустимый формат идентификатора двери.
// Только латинские буквы, цифры, дефис и нижнее подчеркивание.
var DoorIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,100}$`)

// ValidateDoorID проверяет идентификатор двери при регистрации.
func ValidateDoorID(id string) error {
	if id == "" {
		return fmt.Errorf("door_id cannot be empty")
	}
	if !DoorIDPattern.MatchString(id) {
		return fmt.Errorf("door_id can only contain letters, numbers, hyphens and underscores (max %d characters)", MaxIDLen)
	}
	return nil
}

// ValidateDocumentID проверяет первичный ключ документа в push-батче.
// Формат свободнее дверного: клиенты генерируют uuid и составные ключи.
func ValidateDocumentID(id string) error {
	if id == "" {
		return fmt.Errorf("document id cannot be empty")
	}
	if len(id) > MaxIDLen {
		return fmt.Errorf("document id must not exceed %d characters", MaxIDLen)
	}
	return nil
}
