package models

import "time"

// PasswordPolicy требования к паролям
type PasswordPolicy struct {
	MinLength            int  `json:"min_length" validate:"gte=4,lte=128"`
	RequireUppercase     bool `json:"require_uppercase"`
	RequireLowercase     bool `json:"require_lowercase"`
	RequireDigit         bool `json:"require_digit"`
	RequireSpecial       bool `json:"require_special"`
	TempPasswordTTLHours int  `json:"temp_password_ttl_hours" validate:"gte=1"`
}

// SessionPolicy параметры сессий
type SessionPolicy struct {
	SessionTTLHours int `json:"session_ttl_hours" validate:"gte=1"`
}

// RateLimits защита от перебора паролей
type RateLimits struct {
	MaxLoginAttempts int `json:"max_login_attempts" validate:"gte=1"`
	LockoutMinutes   int `json:"lockout_minutes" validate:"gte=1"`
}

// InvitePolicy значения по умолчанию для новых приглашений
type InvitePolicy struct {
	DefaultMaxUses  int `json:"default_max_uses" validate:"gte=1"`
	DefaultTTLHours int `json:"default_ttl_hours" validate:"gte=1"`
}

// Settings глобальные настройки аутентификации (settings.json)
type Settings struct {
	Password  PasswordPolicy `json:"password_policy"`
	Session   SessionPolicy  `json:"session_policy"`
	RateLimit RateLimits     `json:"rate_limits"`
	Invite    InvitePolicy   `json:"invite_policy"`
	UpdatedAt Timestamp      `json:"updated_at"`
}

func (s Settings) SessionTTL() time.Duration {
	return time.Duration(s.Session.SessionTTLHours) * time.Hour
}

func (s Settings) TempPasswordTTL() time.Duration {
	return time.Duration(s.Password.TempPasswordTTLHours) * time.Hour
}

func (s Settings) LockoutWindow() time.Duration {
	return time.Duration(s.RateLimit.LockoutMinutes) * time.Minute
}

func (s Settings) InviteTTL() time.Duration {
	return time.Duration(s.Invite.DefaultTTLHours) * time.Hour
}

// DefaultSettings используются, пока администратор не сохранил свои
func DefaultSettings() Settings {
	return Settings{
		Password: PasswordPolicy{
			MinLength:            8,
			RequireUppercase:     true,
			RequireLowercase:     true,
			RequireDigit:         true,
			RequireSpecial:       false,
			TempPasswordTTLHours: 24,
		},
		Session: SessionPolicy{
			SessionTTLHours: 24,
		},
		RateLimit: RateLimits{
			MaxLoginAttempts: 5,
			LockoutMinutes:   15,
		},
		Invite: InvitePolicy{
			DefaultMaxUses:  1,
			DefaultTTLHours: 72,
		},
	}
}
