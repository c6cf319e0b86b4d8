package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// encodeDocument сериализует документ в JSON с отступами.
// Время сериализуется через models.Timestamp.
func encodeDocument(doc any) ([]byte, error) {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// decodeDocument возвращает ErrCorrupted, если содержимое не разбирается
func decodeDocument(data []byte, out any) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return fmt.Errorf("%w: empty document", ErrCorrupted)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: %v", ErrCorrupted, err)
	}
	return nil
}
