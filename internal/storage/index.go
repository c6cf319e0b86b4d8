package storage

import (
	"context"
	"sort"
	"sync"

	"github.com/RESERPIX/authstore/internal/models"
	"go.uber.org/zap"
)

// secondaryIndex необязательный индекс в памяти. Источник истины всегда файлы:
// найденное по индексу перепроверяется чтением, промах ведет к полному
// сканированию. Все методы безопасны для nil (индекс выключен).
type secondaryIndex struct {
	mu         sync.RWMutex
	byTelegram map[int64]map[string]struct{}
	byUsername map[string]map[string]struct{}
	bySession  map[string]string
	usernames  map[string]string // user_id -> username
	telegrams  map[string]int64  // user_id -> telegram_id
}

func newSecondaryIndex() *secondaryIndex {
	return &secondaryIndex{
		byTelegram: make(map[int64]map[string]struct{}),
		byUsername: make(map[string]map[string]struct{}),
		bySession:  make(map[string]string),
		usernames:  make(map[string]string),
		telegrams:  make(map[string]int64),
	}
}

// rebuildIndex полное сканирование при открытии хранилища
func (s *Store) rebuildIndex(ctx context.Context) error {
	ids, err := s.userIDs()
	if err != nil {
		return err
	}

	sessions := 0
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return err
		}
		user, err := s.peekUser(id)
		if err != nil {
			continue
		}
		s.index.putUser(*user)

		path, err := s.sessionsPath(id)
		if err != nil {
			continue
		}
		unlock := s.lockUser(id)
		list, err := s.loadSessions(path)
		unlock()
		if err != nil {
			continue
		}
		for _, session := range list {
			s.index.putSession(session.SessionID, id)
			sessions++
		}
	}

	s.logger.Info("Secondary index built",
		zap.Int("users", len(ids)),
		zap.Int("sessions", sessions),
	)
	return nil
}

func (ix *secondaryIndex) putUser(user models.User) {
	if ix == nil {
		return
	}
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if previous, ok := ix.telegrams[user.UserID]; ok && previous != user.TelegramID {
		removeOwner(ix.byTelegram, previous, user.UserID)
	}
	ix.telegrams[user.UserID] = user.TelegramID
	if user.TelegramID != 0 {
		addOwner(ix.byTelegram, user.TelegramID, user.UserID)
	}

	if previous, ok := ix.usernames[user.UserID]; ok && previous != user.Username {
		removeOwner(ix.byUsername, previous, user.UserID)
	}
	ix.usernames[user.UserID] = user.Username
	if user.Username != "" {
		addOwner(ix.byUsername, user.Username, user.UserID)
	}
}

func addOwner[K comparable](owners map[K]map[string]struct{}, key K, userID string) {
	set := owners[key]
	if set == nil {
		set = make(map[string]struct{})
		owners[key] = set
	}
	set[userID] = struct{}{}
}

func removeOwner[K comparable](owners map[K]map[string]struct{}, key K, userID string) {
	set := owners[key]
	if set == nil {
		return
	}
	delete(set, userID)
	if len(set) == 0 {
		delete(owners, key)
	}
}

func sortedOwners(set map[string]struct{}) ([]string, bool) {
	if len(set) == 0 {
		return nil, false
	}
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, true
}

// telegramOwners возвращает владельцев в порядке каталогов, как при сканировании
func (ix *secondaryIndex) telegramOwners(telegramID int64) ([]string, bool) {
	if ix == nil {
		return nil, false
	}
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return sortedOwners(ix.byTelegram[telegramID])
}

// usernameOwners возвращает владельцев в порядке каталогов, как при сканировании
func (ix *secondaryIndex) usernameOwners(username string) ([]string, bool) {
	if ix == nil {
		return nil, false
	}
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	return sortedOwners(ix.byUsername[username])
}

func (ix *secondaryIndex) putSession(sessionID, userID string) {
	if ix == nil {
		return
	}
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.bySession[sessionID] = userID
}

func (ix *secondaryIndex) sessionOwner(sessionID string) (string, bool) {
	if ix == nil {
		return "", false
	}
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	id, ok := ix.bySession[sessionID]
	return id, ok
}

func (ix *secondaryIndex) dropSessions(sessionIDs ...string) {
	if ix == nil {
		return
	}
	ix.mu.Lock()
	defer ix.mu.Unlock()
	for _, id := range sessionIDs {
		delete(ix.bySession, id)
	}
}
