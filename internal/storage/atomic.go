package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/RESERPIX/authstore/internal/metrics"
	"go.uber.org/zap"
)

const (
	dirPerm  = 0o700
	filePerm = 0o600
	tmpExt   = ".tmp"
)

// Подменяется в тестах для имитации сбоя между записью и переименованием
var renameFile = os.Rename

var removeFile = os.Remove // откат неполной записи

// fileStore атомарная запись и чтение JSON-документов.
//
// Запись идет во временный файл <path>.tmp, который затем переименовывается
// поверх <path>. Читатель видит либо старое, либо полностью новое содержимое.
// Каталог после rename не синхронизируется: сбой питания сразу после
// переименования на некоторых ФС может вернуть старую версию файла.
type fileStore struct {
	logger *zap.Logger
	fsync  bool
}

func newFileStore(logger *zap.Logger, fsync bool) *fileStore {
	return &fileStore{logger: logger, fsync: fsync}
}

// write никогда не изменяет path напрямую
func (f *fileStore) write(path string, doc any) error {
	data, err := encodeDocument(doc)
	if err != nil {
		return f.writeFailed(path, "encode", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), dirPerm); err != nil {
		return f.writeFailed(path, "mkdir", err)
	}

	tmpPath := path + tmpExt
	file, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, filePerm)
	if err != nil {
		return f.writeFailed(path, "open temp", err)
	}

	if _, err := file.Write(data); err != nil {
		_ = file.Close()
		_ = os.Remove(tmpPath)
		return f.writeFailed(path, "write temp", err)
	}

	if f.fsync {
		if err := file.Sync(); err != nil {
			_ = file.Close()
			_ = os.Remove(tmpPath)
			return f.writeFailed(path, "sync temp", err)
		}
	}

	if err := file.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return f.writeFailed(path, "close temp", err)
	}

	if err := renameFile(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return f.writeFailed(path, "rename", err)
	}

	metrics.AtomicWritesTotal.WithLabelValues(metrics.ResultOK).Inc()
	return nil
}

func (f *fileStore) writeFailed(path, step string, err error) error {
	metrics.AtomicWritesTotal.WithLabelValues(metrics.ResultError).Inc()
	f.logger.Error("Atomic write failed",
		zap.String("path", path),
		zap.String("step", step),
		zap.Error(err),
	)
	return fmt.Errorf("write %s: %w", filepath.Base(path), ErrIO)
}

// read возвращает (false, nil), если файла нет
func (f *fileStore) read(path string, out any) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		f.logger.Error("Failed to read document",
			zap.String("path", path),
			zap.Error(err),
		)
		return false, fmt.Errorf("read %s: %w", filepath.Base(path), ErrIO)
	}

	if err := decodeDocument(data, out); err != nil {
		metrics.CorruptedFilesTotal.WithLabelValues(documentKind(path)).Inc()
		f.logger.Error("Corrupted document on disk",
			zap.String("path", path),
			zap.Int("size", len(data)),
			zap.Error(err),
		)
		return true, fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}

	return true, nil
}

// exists различает "нет файла" и ошибку stat
func (f *fileStore) exists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	f.logger.Error("Failed to stat document", zap.String("path", path), zap.Error(err))
	return false, fmt.Errorf("stat %s: %w", filepath.Base(path), ErrIO)
}

// maxQuarantineNames сколько копий с одной меткой времени допускается
const maxQuarantineNames = 100

// quarantine переименовывает поврежденный файл, чтобы следующая запись
// не уничтожила его содержимое бесследно. Если свободного имени нет,
// файл остается на месте и возвращается ErrIO.
func (f *fileStore) quarantine(path string, now time.Time) error {
	target, err := quarantineTarget(path, now)
	if err != nil {
		f.logger.Error("No free name for corrupted document",
			zap.String("path", path),
			zap.Error(err),
		)
		return fmt.Errorf("quarantine %s: %w", filepath.Base(path), ErrIO)
	}

	if err := renameFile(path, target); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		f.logger.Error("Failed to move corrupted document aside",
			zap.String("path", path),
			zap.Error(err),
		)
		return fmt.Errorf("quarantine %s: %w", filepath.Base(path), ErrIO)
	}

	f.logger.Warn("Corrupted document moved aside",
		zap.String("path", path),
		zap.String("target", target),
	)
	return nil
}

// quarantineTarget подбирает еще не занятое имя: rename молча заменяет
// существующий файл
func quarantineTarget(path string, now time.Time) (string, error) {
	base := path + ".corrupt-" + now.UTC().Format("20060102T150405Z")
	for i := 0; i < maxQuarantineNames; i++ {
		target := base
		if i > 0 {
			target = fmt.Sprintf("%s.%d", base, i)
		}
		_, err := os.Stat(target)
		if errors.Is(err, os.ErrNotExist) {
			return target, nil
		}
		if err != nil {
			return "", err
		}
	}
	return "", fmt.Errorf("%d names taken for %s", maxQuarantineNames, base)
}

func documentKind(path string) string {
	switch name := filepath.Base(path); {
	case name == userFile:
		return "user"
	case name == sessionsFile:
		return "sessions"
	case name == invitationsFile:
		return "invitations"
	case name == settingsFile:
		return "settings"
	case strings.HasPrefix(name, auditFile):
		return "audit"
	default:
		return "other"
	}
}
