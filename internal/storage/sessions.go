package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/RESERPIX/authstore/internal/metrics"
	"github.com/RESERPIX/authstore/internal/models"
	"github.com/RESERPIX/authstore/pkg/utils"
	"go.uber.org/zap"
)

const sessionTokenBytes = 32

// CleanupExpiredSessions удаляет просроченные сессии пользователя и возвращает
// их количество. Сессия без читаемого expires_at считается просроченной.
// Повторный вызов ничего не удаляет.
func (s *Store) CleanupExpiredSessions(ctx context.Context, userID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	path, err := s.sessionsPath(userID)
	if err != nil {
		return 0, err
	}

	unlock := s.lockUser(userID)
	defer unlock()

	if err := s.userExists(userID); err != nil {
		return 0, err
	}

	sessions, err := s.loadSessions(path)
	if err != nil {
		return 0, err
	}

	now := s.now()
	kept := make([]models.Session, 0, len(sessions))
	var expired []string
	for _, session := range sessions {
		if session.Expired(now) {
			expired = append(expired, session.SessionID)
			continue
		}
		kept = append(kept, session)
	}

	if len(expired) == 0 {
		return 0, nil
	}

	if err := s.files.write(path, sessionsDocument{Sessions: kept}); err != nil {
		return 0, err
	}

	s.index.dropSessions(expired...)
	metrics.SessionsSweptTotal.Add(float64(len(expired)))
	s.logger.Debug("Expired sessions removed",
		zap.String("user_id", userID),
		zap.Int("count", len(expired)),
	)

	return len(expired), nil
}

// CreateSession сначала чистит просроченные сессии пользователя (отдельная
// блокировка), затем под новой блокировкой добавляет сессию.
func (s *Store) CreateSession(ctx context.Context, userID string, session models.Session) (*models.Session, error) {
	if _, err := s.CleanupExpiredSessions(ctx, userID); err != nil {
		return nil, err
	}

	path, err := s.sessionsPath(userID)
	if err != nil {
		return nil, err
	}

	if session.UserID != "" && session.UserID != userID {
		return nil, fmt.Errorf("%w: session owner mismatch", ErrInvalidArgument)
	}
	session.UserID = userID

	if session.SessionID == "" {
		token, err := utils.GenerateSecureToken(sessionTokenBytes)
		if err != nil {
			return nil, fmt.Errorf("generate session id: %w", err)
		}
		session.SessionID = token
	}

	now := s.now()
	if session.CreatedAt.IsZero() {
		session.CreatedAt = models.At(now)
	}
	session.LastActivity = models.At(now)
	session.IsActive = true

	if session.ExpiresAt.IsZero() {
		settings, err := s.GetSettings(ctx)
		if err != nil {
			return nil, err
		}
		session.ExpiresAt = models.At(session.CreatedAt.Add(settings.SessionTTL()))
	}
	if !session.ExpiresAt.After(session.CreatedAt.Time) {
		return nil, fmt.Errorf("%w: expires_at must be after created_at", ErrInvalidArgument)
	}
	if err := s.validateRecord(session); err != nil {
		return nil, err
	}

	unlock := s.lockUser(userID)
	defer unlock()

	if err := s.userExists(userID); err != nil {
		return nil, err
	}

	sessions, err := s.loadSessions(path)
	if err != nil {
		return nil, err
	}
	for _, existing := range sessions {
		if existing.SessionID == session.SessionID {
			return nil, fmt.Errorf("session: %w", ErrAlreadyExists)
		}
	}

	sessions = append(sessions, session)
	if err := s.files.write(path, sessionsDocument{Sessions: sessions}); err != nil {
		return nil, err
	}

	s.index.putSession(session.SessionID, userID)
	return &session, nil
}

// GetSession ищет сессию по всем пользователям: O(число пользователей),
// если не включен вторичный индекс
func (s *Store) GetSession(ctx context.Context, sessionID string) (*models.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if sessionID == "" {
		return nil, fmt.Errorf("session: %w", ErrNotFound)
	}

	if userID, ok := s.index.sessionOwner(sessionID); ok {
		session, err := s.findUserSession(userID, sessionID)
		if err == nil {
			return session, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
	}

	ids, err := s.userIDs()
	if err != nil {
		return nil, err
	}
	for _, userID := range ids {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		session, err := s.findUserSession(userID, sessionID)
		if err == nil {
			return session, nil
		}
		if !errors.Is(err, ErrNotFound) {
			s.logger.Warn("Skipping unreadable sessions", zap.String("user_id", userID), zap.Error(err))
		}
	}

	return nil, fmt.Errorf("session: %w", ErrNotFound)
}

// RevokeSession удаляет сессию у владельца
func (s *Store) RevokeSession(ctx context.Context, sessionID string) error {
	owned, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}

	path, err := s.sessionsPath(owned.UserID)
	if err != nil {
		return err
	}

	unlock := s.lockUser(owned.UserID)
	defer unlock()

	sessions, err := s.loadSessions(path)
	if err != nil {
		return err
	}

	kept := make([]models.Session, 0, len(sessions))
	for _, session := range sessions {
		if session.SessionID != sessionID {
			kept = append(kept, session)
		}
	}
	// Сессию могли удалить между поиском владельца и блокировкой
	if len(kept) == len(sessions) {
		return fmt.Errorf("session: %w", ErrNotFound)
	}

	if err := s.files.write(path, sessionsDocument{Sessions: kept}); err != nil {
		return err
	}

	s.index.dropSessions(sessionID)
	return nil
}

// RevokeUserSessions удаляет все сессии пользователя ("выйти на всех устройствах")
func (s *Store) RevokeUserSessions(ctx context.Context, userID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	path, err := s.sessionsPath(userID)
	if err != nil {
		return 0, err
	}

	unlock := s.lockUser(userID)
	defer unlock()

	if err := s.userExists(userID); err != nil {
		return 0, err
	}

	sessions, err := s.loadSessions(path)
	if err != nil {
		return 0, err
	}
	if len(sessions) == 0 {
		return 0, nil
	}

	if err := s.files.write(path, sessionsDocument{Sessions: []models.Session{}}); err != nil {
		return 0, err
	}

	ids := make([]string, 0, len(sessions))
	for _, session := range sessions {
		ids = append(ids, session.SessionID)
	}
	s.index.dropSessions(ids...)

	return len(sessions), nil
}

// TouchSession обновляет last_activity
func (s *Store) TouchSession(ctx context.Context, sessionID string) (*models.Session, error) {
	owned, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	path, err := s.sessionsPath(owned.UserID)
	if err != nil {
		return nil, err
	}

	unlock := s.lockUser(owned.UserID)
	defer unlock()

	sessions, err := s.loadSessions(path)
	if err != nil {
		return nil, err
	}

	for i := range sessions {
		if sessions[i].SessionID != sessionID {
			continue
		}
		sessions[i].LastActivity = models.At(s.now())
		if err := s.files.write(path, sessionsDocument{Sessions: sessions}); err != nil {
			return nil, err
		}
		touched := sessions[i]
		return &touched, nil
	}

	return nil, fmt.Errorf("session: %w", ErrNotFound)
}

// ListUserSessions без includeExpired возвращает только сессии с expires_at > now
func (s *Store) ListUserSessions(ctx context.Context, userID string, includeExpired bool) ([]models.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := s.sessionsPath(userID)
	if err != nil {
		return nil, err
	}

	unlock := s.lockUser(userID)
	defer unlock()

	if err := s.userExists(userID); err != nil {
		return nil, err
	}

	sessions, err := s.loadSessions(path)
	if err != nil {
		return nil, err
	}
	if includeExpired {
		return sessions, nil
	}

	now := s.now()
	live := make([]models.Session, 0, len(sessions))
	for _, session := range sessions {
		if !session.Expired(now) {
			live = append(live, session)
		}
	}
	return live, nil
}

func (s *Store) findUserSession(userID, sessionID string) (*models.Session, error) {
	path, err := s.sessionsPath(userID)
	if err != nil {
		return nil, err
	}

	unlock := s.lockUser(userID)
	defer unlock()

	sessions, err := s.loadSessions(path)
	if err != nil {
		return nil, err
	}
	for _, session := range sessions {
		if session.SessionID == sessionID {
			found := session
			return &found, nil
		}
	}
	return nil, fmt.Errorf("session: %w", ErrNotFound)
}

// loadSessions вызывается под блокировкой пользователя.
// Поврежденный файл откладывается в сторону и считается пустым списком.
func (s *Store) loadSessions(path string) ([]models.Session, error) {
	var doc sessionsDocument
	_, err := s.files.read(path, &doc)
	if err != nil {
		if errors.Is(err, ErrCorrupted) {
			if err := s.files.quarantine(path, s.now()); err != nil {
				return nil, err
			}
			return []models.Session{}, nil
		}
		return nil, err
	}
	if doc.Sessions == nil {
		doc.Sessions = []models.Session{}
	}
	return doc.Sessions, nil
}
