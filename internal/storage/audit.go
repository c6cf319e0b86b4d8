package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/RESERPIX/authstore/internal/metrics"
	"github.com/RESERPIX/authstore/internal/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AuditFilter фильтр чтения журнала аудита
type AuditFilter struct {
	UserID    string
	EventType string
	// Limit > 0 оставляет только последние Limit записей
	Limit int
}

// AppendAuditEvent дописывает событие одной строкой JSON в конец журнала.
// Ошибка логируется и возвращается; основная операция вызывающего из-за нее
// не должна откатываться.
func (s *Store) AppendAuditEvent(ctx context.Context, event models.AuditEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if event.EventType == "" {
		return fmt.Errorf("%w: empty event type", ErrInvalidArgument)
	}
	if event.EventID == "" {
		event.EventID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = models.At(s.now())
	}

	line, err := json.Marshal(event)
	if err != nil {
		return s.auditFailed(event, err)
	}
	line = append(line, '\n')

	unlock := s.lockGlobal()
	defer unlock()

	file, err := os.OpenFile(s.auditPath(), os.O_WRONLY|os.O_CREATE|os.O_APPEND, filePerm)
	if err != nil {
		return s.auditFailed(event, err)
	}

	if _, err := file.Write(line); err != nil {
		_ = file.Close()
		return s.auditFailed(event, err)
	}
	if s.files.fsync {
		if err := file.Sync(); err != nil {
			_ = file.Close()
			return s.auditFailed(event, err)
		}
	}
	if err := file.Close(); err != nil {
		return s.auditFailed(event, err)
	}
	return nil
}

func (s *Store) auditFailed(event models.AuditEvent, err error) error {
	metrics.AuditAppendFailuresTotal.Inc()
	s.logger.Error("Failed to append audit event",
		zap.String("event_type", event.EventType),
		zap.String("user_id", event.UserID),
		zap.Error(err),
	)
	return fmt.Errorf("append audit event: %w", ErrIO)
}

// ListAuditEvents читает журнал. Недописанная последняя строка (сбой во время
// записи) игнорируется, нечитаемые строки в середине пропускаются с предупреждением.
func (s *Store) ListAuditEvents(ctx context.Context, filter AuditFilter) ([]models.AuditEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	unlock := s.lockGlobal()
	data, err := os.ReadFile(s.auditPath())
	unlock()

	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []models.AuditEvent{}, nil
		}
		s.logger.Error("Failed to read audit log", zap.Error(err))
		return nil, fmt.Errorf("read audit log: %w", ErrIO)
	}

	events := make([]models.AuditEvent, 0, 64)
	lineNo := 0
	for offset := 0; offset < len(data); {
		lineNo++
		raw, next, terminated := nextLine(data, offset)
		offset = next

		line := bytes.TrimSpace(raw)
		if len(line) == 0 {
			continue
		}
		var event models.AuditEvent
		if err := json.Unmarshal(line, &event); err != nil {
			// Только строка без \n в самом конце файла считается недописанной
			if !terminated {
				s.logger.Warn("Ignoring partial trailing audit line", zap.Int("line", lineNo))
				break
			}
			metrics.CorruptedFilesTotal.WithLabelValues("audit").Inc()
			s.logger.Warn("Skipping undecodable audit line", zap.Int("line", lineNo), zap.Error(err))
			continue
		}
		if filter.UserID != "" && event.UserID != filter.UserID {
			continue
		}
		if filter.EventType != "" && event.EventType != filter.EventType {
			continue
		}
		events = append(events, event)
	}

	if filter.Limit > 0 && len(events) > filter.Limit {
		events = events[len(events)-filter.Limit:]
	}
	return events, nil
}

// nextLine возвращает строку, начинающуюся с offset, смещение следующей
// и признак того, что строка завершена переводом строки
func nextLine(data []byte, offset int) ([]byte, int, bool) {
	end := bytes.IndexByte(data[offset:], '\n')
	if end < 0 {
		return data[offset:], len(data), false
	}
	return data[offset : offset+end], offset + end + 1, true
}
