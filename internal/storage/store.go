// Package storage хранилище пользователей, сессий, приглашений и настроек
// на отдельных JSON-файлах.
//
// Структура каталога:
//
//	<root>/
//	  user_<user_id>/
//	    user.json
//	    sessions.json
//	  invitations.json
//	  settings.json
//	  auth_audit.log
//
// Все изменения одного пользователя сериализуются его мьютексом, общие файлы
// защищены одним глобальным мьютексом. Хранилище рассчитано на один процесс.
package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/RESERPIX/authstore/internal/models"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const (
	userDirPrefix   = "user_"
	userFile        = "user.json"
	sessionsFile    = "sessions.json"
	invitationsFile = "invitations.json"
	settingsFile    = "settings.json"
	auditFile       = "auth_audit.log"
	probeFile       = ".healthcheck.json"
)

var userIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)

// Store долгоживущий экземпляр хранилища; создается один раз на процесс
// через Open и передается зависимым компонентам явно.
type Store struct {
	root       string
	logger     *zap.Logger
	files      *fileStore
	locks      *LockRegistry
	validate   *validator.Validate
	now        func() time.Time
	bcryptCost int
	defaults   models.Settings
	index      *secondaryIndex
}

type options struct {
	logger     *zap.Logger
	clock      func() time.Time
	fsync      bool
	bcryptCost int
	defaults   models.Settings
	useIndex   bool
}

// Option настройка Open
type Option func(*options)

func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithClock подменяет источник времени (для тестов)
func WithClock(clock func() time.Time) Option {
	return func(o *options) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// WithFsync включает fsync временного файла перед rename (по умолчанию включен)
func WithFsync(enabled bool) Option {
	return func(o *options) {
		o.fsync = enabled
	}
}

func WithBcryptCost(cost int) Option {
	return func(o *options) {
		if cost >= bcrypt.MinCost && cost <= bcrypt.MaxCost {
			o.bcryptCost = cost
		}
	}
}

// WithDefaultSettings настройки, возвращаемые пока settings.json не создан
func WithDefaultSettings(settings models.Settings) Option {
	return func(o *options) {
		o.defaults = settings
	}
}

// WithSecondaryIndex включает индекс в памяти по telegram_id, username и
// session_id. Ответы совпадают с полным сканированием.
func WithSecondaryIndex(enabled bool) Option {
	return func(o *options) {
		o.useIndex = enabled
	}
}

// Open создает корневой каталог и возвращает хранилище
func Open(root string, opts ...Option) (*Store, error) {
	o := options{
		logger:     zap.NewNop(),
		clock:      time.Now,
		fsync:      true,
		bcryptCost: bcrypt.DefaultCost,
		defaults:   models.DefaultSettings(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	root = strings.TrimSpace(root)
	if root == "" {
		return nil, fmt.Errorf("%w: empty data directory", ErrInvalidArgument)
	}
	root = filepath.Clean(root)

	if err := os.MkdirAll(root, dirPerm); err != nil {
		o.logger.Error("Failed to create data directory", zap.String("root", root), zap.Error(err))
		return nil, fmt.Errorf("create data directory: %w", ErrIO)
	}

	s := &Store{
		root:       root,
		logger:     o.logger,
		files:      newFileStore(o.logger, o.fsync),
		locks:      NewLockRegistry(),
		validate:   validator.New(),
		now:        o.clock,
		bcryptCost: o.bcryptCost,
		defaults:   o.defaults,
	}

	if o.useIndex {
		s.index = newSecondaryIndex()
		if err := s.rebuildIndex(context.Background()); err != nil {
			return nil, fmt.Errorf("build secondary index: %w", err)
		}
	}

	s.logger.Info("Auth store opened",
		zap.String("root", root),
		zap.Bool("fsync", o.fsync),
		zap.Bool("secondary_index", o.useIndex),
	)

	return s, nil
}

// Root каталог данных
func (s *Store) Root() string {
	return s.root
}

// Locks реестр блокировок хранилища
func (s *Store) Locks() *LockRegistry {
	return s.locks
}

// Probe проверяет, что каталог данных доступен для атомарной записи и чтения
func (s *Store) Probe(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	path := filepath.Join(s.root, probeFile)
	doc := map[string]models.Timestamp{"checked_at": models.At(s.now())}

	unlock := s.lockGlobal()
	defer unlock()

	if err := s.files.write(path, doc); err != nil {
		return err
	}
	var back map[string]models.Timestamp
	if _, err := s.files.read(path, &back); err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		s.logger.Warn("Failed to remove probe file", zap.String("path", path), zap.Error(err))
	}
	return nil
}

func (s *Store) userDir(userID string) (string, error) {
	if !userIDPattern.MatchString(userID) {
		return "", fmt.Errorf("%w: user id %q", ErrInvalidArgument, userID)
	}
	return filepath.Join(s.root, userDirPrefix+userID), nil
}

func (s *Store) userPath(userID string) (string, error) {
	dir, err := s.userDir(userID)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, userFile), nil
}

func (s *Store) sessionsPath(userID string) (string, error) {
	dir, err := s.userDir(userID)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, sessionsFile), nil
}

func (s *Store) invitationsPath() string {
	return filepath.Join(s.root, invitationsFile)
}

func (s *Store) settingsPath() string {
	return filepath.Join(s.root, settingsFile)
}

func (s *Store) auditPath() string {
	return filepath.Join(s.root, auditFile)
}

// lockUser берет мьютекс пользователя; вернуть нужно вызовом результата
func (s *Store) lockUser(userID string) func() {
	lock := s.locks.LockFor(userID)
	acquire(lock, scopeUser)
	return lock.Unlock
}

func (s *Store) lockGlobal() func() {
	lock := s.locks.Global()
	acquire(lock, scopeGlobal)
	return lock.Unlock
}

// userIDs перечисляет пространства пользователей в лексическом порядке
func (s *Store) userIDs() ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		s.logger.Error("Failed to list data directory", zap.String("root", s.root), zap.Error(err))
		return nil, fmt.Errorf("list users: %w", ErrIO)
	}

	ids := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), userDirPrefix) {
			continue
		}
		id := strings.TrimPrefix(entry.Name(), userDirPrefix)
		if userIDPattern.MatchString(id) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (s *Store) validateRecord(record any) error {
	if err := s.validate.Struct(record); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	return nil
}
