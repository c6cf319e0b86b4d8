package models

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"
)

// TimestampLayout фиксированной ширины, поэтому строки сортируются так же, как время
const TimestampLayout = "2006-01-02T15:04:05.000000Z07:00"

// Форматы, которые принимаются при чтении (включая записи без зоны)
var parseLayouts = []string{
	time.RFC3339Nano,
	TimestampLayout,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
}

// Timestamp время в документах хранилища.
// Нулевое значение означает "отсутствует" и сериализуется как null.
type Timestamp struct {
	time.Time
}

// At оборачивает time.Time
func At(t time.Time) Timestamp {
	return Timestamp{Time: t}
}

// Ptr возвращает время или nil для пустого значения
func (t Timestamp) Ptr() *time.Time {
	if t.IsZero() {
		return nil
	}
	v := t.Time
	return &v
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.UTC().Format(TimestampLayout))
}

// UnmarshalJSON никогда не возвращает ошибку формата: нечитаемое значение
// превращается в пустой Timestamp.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	t.Time = time.Time{}

	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}

	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil
	}

	parsed, ok := ParseTimestamp(raw)
	if ok {
		t.Time = parsed
	}
	return nil
}

// ParseTimestamp разбирает строку времени; время без зоны считается UTC
func ParseTimestamp(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range parseLayouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			return parsed.UTC(), true
		}
	}
	return time.Time{}, false
}
