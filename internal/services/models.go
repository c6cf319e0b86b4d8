package services

import (
	"time"

	"github.com/RESERPIX/authstore/internal/models"
)

// Структуры запросов и ответов

type RegisterRequest struct {
	InviteCode string
	Username   string
	Password   string
	TelegramID int64
}

type RegisterResponse struct {
	UserID           string
	Role             models.Role
	PasswordStrength int // 0..4, см. utils.PasswordStrength
	Message          string
}

// LoginRequest вход по username или по telegram_id (если задан)
type LoginRequest struct {
	Username   string
	TelegramID int64
	Password   string
	UserAgent  string
	IPAddress  string
}

type LoginResponse struct {
	SessionID          string
	ExpiresAt          time.Time
	User               *UserProfile
	MustChangePassword bool
	Message            string
}

type ValidateSessionResponse struct {
	Valid   bool
	Session *models.Session
	User    *UserProfile
}

type ChangePasswordResponse struct {
	Message string
}

type TemporaryPasswordResponse struct {
	Password  string
	ExpiresAt time.Time
	Message   string
}

type UserProfile struct {
	UserID             string
	Username           string
	TelegramID         int64
	Role               models.Role
	IsActive           bool
	IsBlocked          bool
	MustChangePassword bool
	LastLogin          string
	CreatedAt          string
}

func mapUserToProfile(user *models.User) *UserProfile {
	profile := &UserProfile{
		UserID:             user.UserID,
		Username:           user.Username,
		TelegramID:         user.TelegramID,
		Role:               user.Role,
		IsActive:           user.IsActive,
		IsBlocked:          user.IsBlocked,
		MustChangePassword: user.MustChangePassword,
		CreatedAt:          user.CreatedAt.Format(time.RFC3339),
	}

	if !user.LastLogin.IsZero() {
		profile.LastLogin = user.LastLogin.Format(time.RFC3339)
	}

	return profile
}
