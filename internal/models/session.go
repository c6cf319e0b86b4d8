package models

import "time"

// Session сессия пользователя; хранится в user_<id>/sessions.json
type Session struct {
	SessionID    string    `json:"session_id" validate:"required,min=16"`
	UserID       string    `json:"user_id" validate:"required"`
	CreatedAt    Timestamp `json:"created_at"`
	ExpiresAt    Timestamp `json:"expires_at"`
	LastActivity Timestamp `json:"last_activity"`
	IsActive     bool      `json:"is_active"`
	UserAgent    string    `json:"user_agent,omitempty"`
	IPAddress    string    `json:"ip_address,omitempty"`
}

// Expired: отсутствующий или нечитаемый expires_at тоже считается истекшим
func (s Session) Expired(now time.Time) bool {
	return s.ExpiresAt.IsZero() || !now.Before(s.ExpiresAt.Time)
}

// IsUsable сессия активна и не истекла
func (s Session) IsUsable(now time.Time) bool {
	return s.IsActive && !s.Expired(now)
}
