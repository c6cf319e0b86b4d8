package storage

import (
	"context"
	"errors"

	"github.com/RESERPIX/authstore/internal/models"
	"go.uber.org/zap"
)

type settingsDocument struct {
	AuthSettings models.Settings `json:"auth_settings"`
}

// GetSettings возвращает сохраненные настройки или значения по умолчанию
func (s *Store) GetSettings(ctx context.Context) (*models.Settings, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	unlock := s.lockGlobal()
	defer unlock()

	settings, err := s.loadSettings()
	if err != nil {
		return nil, err
	}
	return &settings, nil
}

// UpdateSettings заменяет настройки целиком
func (s *Store) UpdateSettings(ctx context.Context, settings models.Settings) (*models.Settings, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.validateRecord(settings); err != nil {
		return nil, err
	}

	unlock := s.lockGlobal()
	defer unlock()

	settings.UpdatedAt = models.At(s.now())
	if err := s.files.write(s.settingsPath(), settingsDocument{AuthSettings: settings}); err != nil {
		return nil, err
	}

	s.logger.Info("Auth settings updated",
		zap.Int("session_ttl_hours", settings.Session.SessionTTLHours),
		zap.Int("max_login_attempts", settings.RateLimit.MaxLoginAttempts),
	)
	return &settings, nil
}

// loadSettings вызывается под глобальной блокировкой
func (s *Store) loadSettings() (models.Settings, error) {
	var doc settingsDocument
	found, err := s.files.read(s.settingsPath(), &doc)
	if err != nil {
		if !errors.Is(err, ErrCorrupted) {
			return models.Settings{}, err
		}
		if err := s.files.quarantine(s.settingsPath(), s.now()); err != nil {
			return models.Settings{}, err
		}
		return s.defaults, nil
	}
	if !found {
		return s.defaults, nil
	}
	if err := s.validateRecord(doc.AuthSettings); err != nil {
		s.logger.Error("Stored auth settings are invalid, using defaults", zap.Error(err))
		return s.defaults, nil
	}
	return doc.AuthSettings, nil
}
