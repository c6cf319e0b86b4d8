package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/RESERPIX/authstore/internal/models"
	"github.com/RESERPIX/authstore/pkg/utils"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type sessionsDocument struct {
	Sessions []models.Session `json:"sessions"`
}

// CreateUser создает пространство пользователя: user.json и пустой sessions.json.
// Пустой user_id заполняется UUID.
func (s *Store) CreateUser(ctx context.Context, user models.User) (*models.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if user.UserID == "" {
		user.UserID = uuid.NewString()
	}
	if user.Role == "" {
		user.Role = models.RoleUser
	}
	now := s.now()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = models.At(now)
	}
	user.UpdatedAt = models.At(now)
	if err := s.validateRecord(user); err != nil {
		return nil, err
	}

	userPath, err := s.userPath(user.UserID)
	if err != nil {
		return nil, err
	}
	sessionsPath, err := s.sessionsPath(user.UserID)
	if err != nil {
		return nil, err
	}

	unlock := s.lockUser(user.UserID)
	defer unlock()

	exists, err := s.files.exists(userPath)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fmt.Errorf("user %s: %w", user.UserID, ErrAlreadyExists)
	}

	if err := s.files.write(userPath, user); err != nil {
		return nil, err
	}
	if err := s.files.write(sessionsPath, sessionsDocument{Sessions: []models.Session{}}); err != nil {
		// Без sessions.json пользователь неполный, откатываем user.json
		if rmErr := removeFile(userPath); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			s.logger.Error("Failed to roll back user record",
				zap.String("user_id", user.UserID),
				zap.Error(rmErr),
			)
		}
		return nil, err
	}

	s.index.putUser(user)

	s.logger.Info("User created",
		zap.String("user_id", user.UserID),
		zap.String("role", user.Role.String()),
	)

	return &user, nil
}

// GetUser возвращает ErrNotFound, если пользователя нет
func (s *Store) GetUser(ctx context.Context, userID string) (*models.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := s.userPath(userID)
	if err != nil {
		return nil, err
	}

	unlock := s.lockUser(userID)
	defer unlock()

	return s.readUser(path, userID)
}

// UpdateUser перезаписывает запись целиком; telegram_id менять нельзя
func (s *Store) UpdateUser(ctx context.Context, user models.User) (*models.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.validateRecord(user); err != nil {
		return nil, err
	}
	path, err := s.userPath(user.UserID)
	if err != nil {
		return nil, err
	}

	unlock := s.lockUser(user.UserID)
	defer unlock()

	current, err := s.readUser(path, user.UserID)
	if err != nil {
		return nil, err
	}
	if current.TelegramID != user.TelegramID {
		return nil, fmt.Errorf("%w: telegram_id is immutable", ErrInvalidArgument)
	}

	user.CreatedAt = current.CreatedAt
	user.UpdatedAt = models.At(s.now())

	if err := s.files.write(path, user); err != nil {
		return nil, err
	}

	s.index.putUser(user)
	return &user, nil
}

// ModifyUser читает, изменяет и сохраняет запись под блокировкой пользователя.
// Ошибка fn возвращается без изменений, запись при этом не пишется.
// user_id, telegram_id и created_at fn поменять не может.
func (s *Store) ModifyUser(ctx context.Context, userID string, fn func(*models.User) error) (*models.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := s.userPath(userID)
	if err != nil {
		return nil, err
	}

	unlock := s.lockUser(userID)
	defer unlock()

	current, err := s.readUser(path, userID)
	if err != nil {
		return nil, err
	}

	user := *current
	if err := fn(&user); err != nil {
		return nil, err
	}
	user.UserID = current.UserID
	user.TelegramID = current.TelegramID
	user.CreatedAt = current.CreatedAt
	user.UpdatedAt = models.At(s.now())
	if err := s.validateRecord(user); err != nil {
		return nil, err
	}

	if err := s.files.write(path, user); err != nil {
		return nil, err
	}

	s.index.putUser(user)
	return &user, nil
}

// SoftDeleteUser только снимает is_active; файлы пользователя остаются
func (s *Store) SoftDeleteUser(ctx context.Context, userID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := s.userPath(userID)
	if err != nil {
		return err
	}

	unlock := s.lockUser(userID)
	defer unlock()

	user, err := s.readUser(path, userID)
	if err != nil {
		return err
	}

	user.IsActive = false
	user.UpdatedAt = models.At(s.now())

	if err := s.files.write(path, user); err != nil {
		return err
	}

	s.index.putUser(*user)
	s.logger.Info("User deactivated", zap.String("user_id", userID))
	return nil
}

// ChangeUserPassword хеширует новый пароль и выставляет окно принудительной смены
func (s *Store) ChangeUserPassword(ctx context.Context, userID, newPassword string, mustChange bool, tempExpiry time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if newPassword == "" {
		return fmt.Errorf("%w: empty password", ErrInvalidArgument)
	}
	path, err := s.userPath(userID)
	if err != nil {
		return err
	}

	hash, err := utils.HashPassword(newPassword, s.bcryptCost)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}

	unlock := s.lockUser(userID)
	defer unlock()

	user, err := s.readUser(path, userID)
	if err != nil {
		return err
	}

	now := s.now()
	user.PasswordHash = hash
	user.MustChangePassword = mustChange
	if mustChange {
		user.TempPasswordExpiry = models.At(tempExpiry)
	} else {
		user.TempPasswordExpiry = models.Timestamp{}
	}
	user.PasswordChangedAt = models.At(now)
	user.UpdatedAt = models.At(now)

	return s.files.write(path, user)
}

// FindUserByTelegramID сканирует всех пользователей (O(n)), если индекс выключен
func (s *Store) FindUserByTelegramID(ctx context.Context, telegramID int64) (*models.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if candidates, ok := s.index.telegramOwners(telegramID); ok {
		for _, userID := range candidates {
			if user, err := s.peekUser(userID); err == nil && user.TelegramID == telegramID {
				return user, nil
			}
		}
	}

	return s.scanUsers(ctx, func(u *models.User) bool {
		return u.TelegramID == telegramID
	})
}

// FindUserByUsername возвращает первое совпадение в порядке каталогов
func (s *Store) FindUserByUsername(ctx context.Context, username string) (*models.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if username == "" {
		return nil, fmt.Errorf("username: %w", ErrNotFound)
	}

	if candidates, ok := s.index.usernameOwners(username); ok {
		for _, userID := range candidates {
			if user, err := s.peekUser(userID); err == nil && user.Username == username {
				return user, nil
			}
		}
	}

	return s.scanUsers(ctx, func(u *models.User) bool {
		return u.Username == username
	})
}

// ListUsers возвращает пользователей в порядке каталогов
func (s *Store) ListUsers(ctx context.Context, includeInactive bool) ([]models.User, error) {
	ids, err := s.userIDs()
	if err != nil {
		return nil, err
	}

	users := make([]models.User, 0, len(ids))
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		user, err := s.peekUser(id)
		if err != nil {
			continue
		}
		if !includeInactive && !user.IsActive {
			continue
		}
		users = append(users, *user)
	}
	return users, nil
}

// scanUsers читает записи без блокировок: атомарный rename гарантирует,
// что файл всегда целый
func (s *Store) scanUsers(ctx context.Context, match func(*models.User) bool) (*models.User, error) {
	ids, err := s.userIDs()
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		user, err := s.peekUser(id)
		if err != nil {
			continue
		}
		if match(user) {
			return user, nil
		}
	}
	return nil, fmt.Errorf("user: %w", ErrNotFound)
}

// peekUser чтение без блокировки пользователя
func (s *Store) peekUser(userID string) (*models.User, error) {
	path, err := s.userPath(userID)
	if err != nil {
		return nil, err
	}
	user, err := s.readUser(path, userID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		s.logger.Warn("Skipping unreadable user", zap.String("user_id", userID), zap.Error(err))
	}
	return user, err
}

func (s *Store) readUser(path, userID string) (*models.User, error) {
	var user models.User
	found, err := s.files.read(path, &user)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("user %s: %w", userID, ErrNotFound)
	}
	return &user, nil
}

// userExists проверка наличия user.json
func (s *Store) userExists(userID string) error {
	path, err := s.userPath(userID)
	if err != nil {
		return err
	}
	exists, err := s.files.exists(path)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("user %s: %w", userID, ErrNotFound)
	}
	return nil
}
