package models

// User запись пользователя (user_<id>/user.json)
type User struct {
	UserID             string    `json:"user_id" validate:"required,max=128"`
	TelegramID         int64     `json:"telegram_id" validate:"gte=0"`
	Username           string    `json:"username" validate:"max=64"`
	PasswordHash       string    `json:"password_hash"`
	Role               Role      `json:"role" validate:"required,oneof=guest user admin super_admin"`
	IsActive           bool      `json:"is_active"`
	IsBlocked          bool      `json:"is_blocked"`
	MustChangePassword bool      `json:"must_change_password"`
	TempPasswordExpiry Timestamp `json:"temp_password_expires_at"`
	FailedLoginCount   int       `json:"failed_login_attempts" validate:"gte=0"`
	LastFailedLogin    Timestamp `json:"last_failed_login"`
	CreatedAt          Timestamp `json:"created_at"`
	UpdatedAt          Timestamp `json:"updated_at"`
	LastLogin          Timestamp `json:"last_login"`
	PasswordChangedAt  Timestamp `json:"password_changed_at"`
}
