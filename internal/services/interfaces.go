package services

import (
	"context"
	"time"

	"github.com/RESERPIX/authstore/internal/models"
)

// Store определяет интерфейс хранилища, с которым работает AuthService
type Store interface {
	CreateUser(ctx context.Context, user models.User) (*models.User, error)
	GetUser(ctx context.Context, userID string) (*models.User, error)
	ModifyUser(ctx context.Context, userID string, fn func(*models.User) error) (*models.User, error)
	SoftDeleteUser(ctx context.Context, userID string) error
	FindUserByTelegramID(ctx context.Context, telegramID int64) (*models.User, error)
	FindUserByUsername(ctx context.Context, username string) (*models.User, error)
	ListUsers(ctx context.Context, includeInactive bool) ([]models.User, error)
	ChangeUserPassword(ctx context.Context, userID, newPassword string, mustChange bool, tempExpiry time.Time) error

	CreateSession(ctx context.Context, userID string, session models.Session) (*models.Session, error)
	GetSession(ctx context.Context, sessionID string) (*models.Session, error)
	TouchSession(ctx context.Context, sessionID string) (*models.Session, error)
	RevokeSession(ctx context.Context, sessionID string) error
	RevokeUserSessions(ctx context.Context, userID string) (int, error)

	CreateInvitation(ctx context.Context, invitation models.Invitation) (*models.Invitation, error)
	ConsumeInvitation(ctx context.Context, code, consumerUserID string) (*models.Invitation, error)

	GetSettings(ctx context.Context) (*models.Settings, error)
	UpdateSettings(ctx context.Context, settings models.Settings) (*models.Settings, error)

	AppendAuditEvent(ctx context.Context, event models.AuditEvent) error
}
