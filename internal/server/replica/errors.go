package replica

import "errors"

// Ошибки бизнес-правил merge-резолверов. Нарушение отменяет push-батч
// целиком и синхронно возвращается вызывающему.
var (
	// ErrDuplicateActiveCheckIn нарушен инвариант "не более одного
	// активного входа на student_number".
	ErrDuplicateActiveCheckIn = errors.New("student is already checked in")

	// ErrDuplicateLogEntry — повторный push клиентского лога с
	// существующим id; записи журнала неизменяемы.
	ErrDuplicateLogEntry = errors.New("client log entry already exists")

	// ErrMergeConflict зарезервирована для строгой проверки
	// assumedMasterState; сейчас не возвращается.
	ErrMergeConflict = errors.New("merge conflict")
)
