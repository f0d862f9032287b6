package models

import (
	"fmt"
	"strconv"
	"time"
)

// Timestamp представляет момент времени в миллисекундах от эпохи Unix.
// На проводе и в хранилищах кодируется строкой с целым числом
// ("1712131415926"), как того требует протокол репликации.
// Тип задаёт единственное место, где определены сравнение и сериализация,
// вместо разбросанных по коду преобразований строка/число.
type Timestamp int64

// TimestampFrom converts a time.Time to a Timestamp.
func TimestampFrom(t time.Time) Timestamp {
	return Timestamp(t.UnixMilli())
}

// ParseTimestamp разбирает строковое представление ("1712131415926").
// Пустая строка трактуется как нулевой Timestamp.
func ParseTimestamp(s string) (Timestamp, error) {
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	return Timestamp(v), nil
}

// Time returns the instant as a time.Time.
func (ts Timestamp) Time() time.Time {
	return time.UnixMilli(int64(ts))
}

// IsZero reports whether the timestamp is unset.
func (ts Timestamp) IsZero() bool {
	return ts == 0
}

// Compare возвращает -1, 0 или 1 в порядке возрастания времени.
func (ts Timestamp) Compare(other Timestamp) int {
	switch {
	case ts < other:
		return -1
	case ts > other:
		return 1
	default:
		return 0
	}
}

// Before reports whether ts is strictly earlier than other.
func (ts Timestamp) Before(other Timestamp) bool { return ts < other }

// After reports whether ts is strictly later than other.
func (ts Timestamp) After(other Timestamp) bool { return ts > other }

// Sub возвращает разницу ts-other в миллисекундах.
// Используется для diff_time_create / diff_time_update.
func (ts Timestamp) Sub(other Timestamp) Timestamp {
	return ts - other
}

// String returns the wire encoding: the integer as a decimal string.
func (ts Timestamp) String() string {
	return strconv.FormatInt(int64(ts), 10)
}

// MarshalJSON encodes the timestamp as a quoted decimal string.
func (ts Timestamp) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(ts.String())), nil
}

// UnmarshalJSON принимает строку с числом, пустую строку, null
// или голое число (исторические клиенты присылали оба варианта).
func (ts *Timestamp) UnmarshalJSON(data []byte) error {
	s := string(data)
	if s == "null" {
		*ts = 0
		return nil
	}
	if unquoted, err := strconv.Unquote(s); err == nil {
		s = unquoted
	}
	v, err := ParseTimestamp(s)
	if err != nil {
		return err
	}
	*ts = v
	return nil
}
