package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/RESERPIX/authstore/internal/config"
	"github.com/RESERPIX/authstore/internal/models"
	"github.com/RESERPIX/authstore/internal/storage"
	"github.com/RESERPIX/authstore/pkg/locale"
	"github.com/RESERPIX/authstore/pkg/logger"
	"github.com/RESERPIX/authstore/pkg/utils"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrUserNotFound        = errors.New("user not found")
	ErrUserExists          = errors.New("user already exists")
	ErrInvalidUsername     = errors.New("invalid username")
	ErrWeakPassword        = errors.New("weak password")
	ErrInvalidInvite       = errors.New("invalid invite")
	ErrAccountInactive     = errors.New("account inactive")
	ErrAccountBlocked      = errors.New("account blocked")
	ErrTooManyAttempts     = errors.New("too many attempts")
	ErrTempPasswordExpired = errors.New("temporary password expired")
	ErrInvalidSession      = errors.New("invalid session")
	ErrPermissionDenied    = errors.New("permission denied")
)

const (
	inviteTypeRegistration = "registration"
	tempPasswordLength     = 12
)

var _ Store = (*storage.Store)(nil)

type AuthService struct {
	store      Store
	bcryptCost int
	logger     *zap.Logger
	now        func() time.Time

	// registerMu от проверки уникальности до записи пользователя
	registerMu sync.Mutex
}

func NewAuthService(store Store, config *config.Config, logger *zap.Logger) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		store:      store,
		bcryptCost: config.Security.BCryptCost,
		logger:     logger,
		now:        time.Now,
	}
}

// Регистрация пользователя по приглашению
func (s *AuthService) Register(ctx context.Context, req RegisterRequest) (*RegisterResponse, error) {
	settings, err := s.store.GetSettings(ctx)
	if err != nil {
		return nil, err
	}

	// Валидация входных данных
	if !utils.IsValidUsername(req.Username) {
		return nil, ErrInvalidUsername
	}
	if problems := utils.ValidatePassword(req.Password, passwordRules(settings)); len(problems) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrWeakPassword, strings.Join(problems, "; "))
	}

	s.registerMu.Lock()
	defer s.registerMu.Unlock()

	// Проверка существования пользователя
	if err := s.checkUserExists(ctx, req.TelegramID, req.Username); err != nil {
		return nil, err
	}

	// Приглашение списывается до создания пользователя: из конкурентных
	// регистраций по последнему использованию проходит ровно одна
	userID := uuid.NewString()
	invitation, err := s.store.ConsumeInvitation(ctx, req.InviteCode, userID)
	if err != nil {
		return nil, inviteError(err)
	}

	// Хеширование пароля
	hashedPassword, err := utils.HashPassword(req.Password, s.bcryptCost)
	if err != nil {
		return nil, err
	}

	now := s.now()
	user, err := s.store.CreateUser(ctx, models.User{
		UserID:            userID,
		TelegramID:        req.TelegramID,
		Username:          req.Username,
		PasswordHash:      hashedPassword,
		Role:              invitation.TargetRole,
		IsActive:          true,
		CreatedAt:         models.At(now),
		PasswordChangedAt: models.At(now),
	})
	if err != nil {
		// Использование приглашения уже списано и не возвращается
		s.logger.Error("Failed to create user after invite consumption",
			zap.String("invite_code", invitation.InviteCode),
			zap.String("user_id", userID),
			zap.Error(err),
		)
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.audit(ctx, models.EventInviteConsumed, user.UserID, map[string]any{
		"invite_code": invitation.InviteCode,
		"uses_count":  invitation.UsesCount,
		"max_uses":    invitation.MaxUses,
	})
	strength := utils.PasswordStrength(req.Password)
	s.audit(ctx, models.EventUserRegistered, user.UserID, map[string]any{
		"username":          user.Username,
		"telegram_id":       user.TelegramID,
		"role":              user.Role.String(),
		"password_strength": strength,
	})

	return &RegisterResponse{
		UserID:           user.UserID,
		Role:             user.Role,
		PasswordStrength: strength,
		Message:          locale.Get("registration_successful"),
	}, nil
}

// BootstrapAdmin создает первого super_admin без приглашения. Допустим,
// только пока в хранилище нет ни одного активного администратора.
func (s *AuthService) BootstrapAdmin(ctx context.Context, username, password string, telegramID int64) (*RegisterResponse, error) {
	s.registerMu.Lock()
	defer s.registerMu.Unlock()

	users, err := s.store.ListUsers(ctx, false)
	if err != nil {
		return nil, err
	}
	for _, user := range users {
		if user.Role.AtLeast(models.RoleAdmin) {
			return nil, fmt.Errorf("%w: administrator already exists", ErrPermissionDenied)
		}
	}

	settings, err := s.store.GetSettings(ctx)
	if err != nil {
		return nil, err
	}
	if !utils.IsValidUsername(username) {
		return nil, ErrInvalidUsername
	}
	if problems := utils.ValidatePassword(password, passwordRules(settings)); len(problems) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrWeakPassword, strings.Join(problems, "; "))
	}
	if err := s.checkUserExists(ctx, telegramID, username); err != nil {
		return nil, err
	}

	hashedPassword, err := utils.HashPassword(password, s.bcryptCost)
	if err != nil {
		return nil, err
	}

	now := s.now()
	user, err := s.store.CreateUser(ctx, models.User{
		TelegramID:        telegramID,
		Username:          username,
		PasswordHash:      hashedPassword,
		Role:              models.RoleSuperAdmin,
		IsActive:          true,
		CreatedAt:         models.At(now),
		PasswordChangedAt: models.At(now),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	strength := utils.PasswordStrength(password)
	s.audit(ctx, models.EventUserRegistered, user.UserID, map[string]any{
		"username":          user.Username,
		"role":              user.Role.String(),
		"bootstrap":         true,
		"password_strength": strength,
	})

	return &RegisterResponse{
		UserID:           user.UserID,
		Role:             user.Role,
		PasswordStrength: strength,
		Message:          locale.Get("registration_successful"),
	}, nil
}

// Авторизация пользователя
func (s *AuthService) Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	// Поиск пользователя
	user, err := s.findUserByLogin(ctx, req)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.audit(ctx, models.EventLoginFailed, "", map[string]any{
				"username":    req.Username,
				"telegram_id": req.TelegramID,
				"reason":      "unknown_user",
				"ip_address":  req.IPAddress,
			})
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if !user.IsActive {
		s.recordFailedLogin(ctx, user.UserID, "inactive", req.IPAddress)
		return nil, ErrAccountInactive
	}
	if user.IsBlocked {
		s.recordFailedLogin(ctx, user.UserID, "blocked", req.IPAddress)
		return nil, ErrAccountBlocked
	}

	settings, err := s.store.GetSettings(ctx)
	if err != nil {
		return nil, err
	}
	now := s.now()

	// Проверка количества попыток входа
	if lockedOut(user, settings, now) {
		s.recordFailedLogin(ctx, user.UserID, "locked_out", req.IPAddress)
		return nil, fmt.Errorf("%w: %s", ErrTooManyAttempts,
			locale.Getf("account_locked", settings.RateLimit.LockoutMinutes))
	}

	// Проверка пароля
	if !utils.CheckPassword(user.PasswordHash, req.Password) {
		if err := s.countFailedAttempt(ctx, user.UserID, settings, now); err != nil {
			s.logger.Error("Failed to record failed login attempt",
				zap.String("user_id", user.UserID),
				zap.Error(err),
			)
		}
		s.recordFailedLogin(ctx, user.UserID, "bad_password", req.IPAddress)
		return nil, ErrInvalidCredentials
	}

	// Временный пароль действует только до temp_password_expires_at
	if user.MustChangePassword && !now.Before(user.TempPasswordExpiry.Time) {
		s.recordFailedLogin(ctx, user.UserID, "temp_password_expired", req.IPAddress)
		return nil, ErrTempPasswordExpired
	}

	// Обновление последнего входа и сброс счетчика неудачных попыток.
	// Запись перечитывается под блокировкой: за время проверки пароля
	// пользователя могли заблокировать или сменить ему пароль.
	passwordHash := user.PasswordHash
	updated, err := s.store.ModifyUser(ctx, user.UserID, func(u *models.User) error {
		switch {
		case !u.IsActive:
			return ErrAccountInactive
		case u.IsBlocked:
			return ErrAccountBlocked
		case u.PasswordHash != passwordHash:
			return ErrInvalidCredentials
		}
		u.FailedLoginCount = 0
		u.LastFailedLogin = models.Timestamp{}
		u.LastLogin = models.At(now)
		return nil
	})
	if err != nil {
		if reason, ok := staleLoginReason(err); ok {
			s.recordFailedLogin(ctx, user.UserID, reason, req.IPAddress)
			return nil, err
		}
		return nil, fmt.Errorf("failed to update user: %w", err)
	}

	// Создание сессии
	session, err := s.store.CreateSession(ctx, updated.UserID, models.Session{
		CreatedAt: models.At(now),
		ExpiresAt: models.At(now.Add(settings.SessionTTL())),
		UserAgent: req.UserAgent,
		IPAddress: req.IPAddress,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	// Блокировка между записью и созданием сессии могла уже отозвать
	// сессии пользователя; новая сессия не должна ее пережить
	if err := s.ensureStillAllowed(ctx, updated.UserID, session.SessionID); err != nil {
		if reason, ok := staleLoginReason(err); ok {
			s.recordFailedLogin(ctx, updated.UserID, reason, req.IPAddress)
		}
		return nil, err
	}

	// Аудит лог
	s.audit(ctx, models.EventLoginSuccess, updated.UserID, map[string]any{
		"ip_address": req.IPAddress,
		"user_agent": req.UserAgent,
	})

	message := locale.Get("login_successful")
	if updated.MustChangePassword {
		message = locale.Get("password_change_required")
	}

	return &LoginResponse{
		SessionID:          session.SessionID,
		ExpiresAt:          session.ExpiresAt.Time,
		User:               mapUserToProfile(updated),
		MustChangePassword: updated.MustChangePassword,
		Message:            message,
	}, nil
}

// Logout завершает сессию или все сессии ее владельца; возвращает число
// удаленных сессий
func (s *AuthService) Logout(ctx context.Context, sessionID string, logoutAllDevices bool) (int, error) {
	session, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return 0, ErrInvalidSession
		}
		return 0, err
	}

	revoked := 1
	if logoutAllDevices {
		revoked, err = s.store.RevokeUserSessions(ctx, session.UserID)
	} else {
		err = s.store.RevokeSession(ctx, sessionID)
	}
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return 0, ErrInvalidSession
		}
		return 0, err
	}

	s.audit(ctx, models.EventLogout, session.UserID, map[string]any{
		"all_devices": logoutAllDevices,
		"revoked":     revoked,
	})
	return revoked, nil
}

// ValidateSession проверяет сессию и владельца, продлевает last_activity
func (s *AuthService) ValidateSession(ctx context.Context, sessionID string) (*ValidateSessionResponse, error) {
	session, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrInvalidSession
		}
		return nil, err
	}
	if !session.IsUsable(s.now()) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidSession, locale.Get("session_expired"))
	}

	user, err := s.store.GetUser(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrInvalidSession
		}
		return nil, err
	}
	if !user.IsActive || user.IsBlocked {
		return nil, ErrInvalidSession
	}

	touched, err := s.store.TouchSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrInvalidSession
		}
		return nil, err
	}

	return &ValidateSessionResponse{
		Valid:   true,
		Session: touched,
		User:    mapUserToProfile(user),
	}, nil
}

// ChangePassword смена пароля самим пользователем; снимает must_change_password
func (s *AuthService) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) (*ChangePasswordResponse, error) {
	user, err := s.getUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	if !utils.CheckPassword(user.PasswordHash, currentPassword) {
		return nil, ErrInvalidCredentials
	}
	if currentPassword == newPassword {
		return nil, fmt.Errorf("%w: %s", ErrWeakPassword, locale.Get("password_same"))
	}

	settings, err := s.store.GetSettings(ctx)
	if err != nil {
		return nil, err
	}
	if problems := utils.ValidatePassword(newPassword, passwordRules(settings)); len(problems) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrWeakPassword, strings.Join(problems, "; "))
	}

	if err := s.store.ChangeUserPassword(ctx, userID, newPassword, false, time.Time{}); err != nil {
		return nil, fmt.Errorf("failed to change password: %w", err)
	}

	s.audit(ctx, models.EventPasswordChanged, userID, nil)

	return &ChangePasswordResponse{Message: locale.Get("password_changed")}, nil
}

// IssueTemporaryPassword выдает временный пароль с окном принудительной смены
// и завершает все сессии пользователя
func (s *AuthService) IssueTemporaryPassword(ctx context.Context, actorID, userID string) (*TemporaryPasswordResponse, error) {
	actor, err := s.requireRole(ctx, actorID, models.RoleAdmin)
	if err != nil {
		return nil, err
	}
	target, err := s.getUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !actor.Role.AtLeast(target.Role) {
		return nil, ErrPermissionDenied
	}

	settings, err := s.store.GetSettings(ctx)
	if err != nil {
		return nil, err
	}
	password, err := generateTempPassword(passwordRules(settings))
	if err != nil {
		return nil, err
	}

	expiresAt := s.now().Add(settings.TempPasswordTTL())
	if err := s.store.ChangeUserPassword(ctx, userID, password, true, expiresAt); err != nil {
		return nil, fmt.Errorf("failed to change password: %w", err)
	}
	if _, err := s.store.RevokeUserSessions(ctx, userID); err != nil {
		s.logger.Warn("Failed to revoke sessions", zap.String("user_id", userID), zap.Error(err))
	}

	s.audit(ctx, models.EventTempPasswordIssue, userID, map[string]any{
		"issued_by":  actorID,
		"expires_at": models.At(expiresAt),
	})

	return &TemporaryPasswordResponse{
		Password:  password,
		ExpiresAt: expiresAt,
		Message:   locale.Getf("temp_password_issued", settings.Password.TempPasswordTTLHours),
	}, nil
}

// CreateInvite приглашение может выдать только администратор и не выше своей роли.
// maxUses == 0 берется из настроек.
func (s *AuthService) CreateInvite(ctx context.Context, actorID string, role models.Role, maxUses int) (*models.Invitation, error) {
	actor, err := s.requireRole(ctx, actorID, models.RoleAdmin)
	if err != nil {
		return nil, err
	}
	if role == "" {
		role = models.RoleUser
	}
	if !role.Valid() || !actor.Role.AtLeast(role) {
		return nil, fmt.Errorf("%w: %s", ErrPermissionDenied, locale.Get("invite_role_forbidden"))
	}

	invitation, err := s.store.CreateInvitation(ctx, models.Invitation{
		InviteType:      inviteTypeRegistration,
		TargetRole:      role,
		CreatedByUserID: actorID,
		MaxUses:         maxUses,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create invitation: %w", err)
	}

	s.audit(ctx, models.EventInviteCreated, actorID, map[string]any{
		"invite_code": invitation.InviteCode,
		"target_role": invitation.TargetRole.String(),
		"max_uses":    invitation.MaxUses,
		"expires_at":  invitation.ExpiresAt,
	})
	return invitation, nil
}

// SetBlocked блокировка завершает все сессии пользователя
func (s *AuthService) SetBlocked(ctx context.Context, actorID, userID string, blocked bool) error {
	target, err := s.manageableUser(ctx, actorID, userID)
	if err != nil {
		return err
	}

	_, err = s.store.ModifyUser(ctx, target.UserID, func(u *models.User) error {
		u.IsBlocked = blocked
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}

	event := models.EventUserUnblocked
	if blocked {
		event = models.EventUserBlocked
		if _, err := s.store.RevokeUserSessions(ctx, userID); err != nil {
			s.logger.Warn("Failed to revoke sessions", zap.String("user_id", userID), zap.Error(err))
		}
	}

	s.audit(ctx, event, userID, map[string]any{"actor": actorID})
	return nil
}

// DeactivateUser мягкое удаление: запись остается, is_active снимается
func (s *AuthService) DeactivateUser(ctx context.Context, actorID, userID string) error {
	if _, err := s.manageableUser(ctx, actorID, userID); err != nil {
		return err
	}

	if err := s.store.SoftDeleteUser(ctx, userID); err != nil {
		return fmt.Errorf("failed to deactivate user: %w", err)
	}
	if _, err := s.store.RevokeUserSessions(ctx, userID); err != nil {
		s.logger.Warn("Failed to revoke sessions", zap.String("user_id", userID), zap.Error(err))
	}

	s.audit(ctx, models.EventUserDeactivated, userID, map[string]any{"actor": actorID})
	return nil
}

// UpdateSettings доступно только super_admin
func (s *AuthService) UpdateSettings(ctx context.Context, actorID string, settings models.Settings) (*models.Settings, error) {
	if _, err := s.requireRole(ctx, actorID, models.RoleSuperAdmin); err != nil {
		return nil, err
	}

	updated, err := s.store.UpdateSettings(ctx, settings)
	if err != nil {
		return nil, fmt.Errorf("failed to update settings: %w", err)
	}

	s.audit(ctx, models.EventSettingsUpdated, actorID, nil)
	return updated, nil
}

// Вспомогательные методы

func (s *AuthService) checkUserExists(ctx context.Context, telegramID int64, username string) error {
	if telegramID != 0 {
		_, err := s.store.FindUserByTelegramID(ctx, telegramID)
		if err == nil {
			return fmt.Errorf("%w: %s", ErrUserExists, locale.Get("telegram_already_bound"))
		}
		if !errors.Is(err, storage.ErrNotFound) {
			return err
		}
	}

	// username может повторяться только у деактивированных записей
	existing, err := s.findActiveByUsername(ctx, username)
	if err != nil {
		return err
	}
	if existing != nil {
		return ErrUserExists
	}
	return nil
}

func (s *AuthService) findUserByLogin(ctx context.Context, req LoginRequest) (*models.User, error) {
	if req.TelegramID != 0 {
		return s.store.FindUserByTelegramID(ctx, req.TelegramID)
	}

	// Активная запись важнее деактивированных однофамильцев
	active, err := s.findActiveByUsername(ctx, req.Username)
	if err != nil {
		return nil, err
	}
	if active != nil {
		return active, nil
	}
	return s.store.FindUserByUsername(ctx, req.Username)
}

// findActiveByUsername возвращает nil, если активного пользователя с таким именем нет
func (s *AuthService) findActiveByUsername(ctx context.Context, username string) (*models.User, error) {
	users, err := s.store.ListUsers(ctx, false)
	if err != nil {
		return nil, err
	}
	for i := range users {
		if users[i].Username == username {
			return &users[i], nil
		}
	}
	return nil, nil
}

func (s *AuthService) getUser(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

// requireRole проверяет, что actor активен, не заблокирован и имеет роль не ниже minRole
func (s *AuthService) requireRole(ctx context.Context, actorID string, minRole models.Role) (*models.User, error) {
	actor, err := s.getUser(ctx, actorID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrPermissionDenied
		}
		return nil, err
	}
	if !actor.IsActive || actor.IsBlocked || !actor.Role.AtLeast(minRole) {
		return nil, ErrPermissionDenied
	}
	return actor, nil
}

// manageableUser администратор управляет только пользователями не выше себя
// и не может применить действие к самому себе
func (s *AuthService) manageableUser(ctx context.Context, actorID, userID string) (*models.User, error) {
	actor, err := s.requireRole(ctx, actorID, models.RoleAdmin)
	if err != nil {
		return nil, err
	}
	if actorID == userID {
		return nil, ErrPermissionDenied
	}
	target, err := s.getUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !actor.Role.AtLeast(target.Role) {
		return nil, ErrPermissionDenied
	}
	return target, nil
}

// countFailedAttempt после окна блокировки счет начинается заново
func (s *AuthService) countFailedAttempt(ctx context.Context, userID string, settings *models.Settings, now time.Time) error {
	_, err := s.store.ModifyUser(ctx, userID, func(u *models.User) error {
		if !u.LastFailedLogin.IsZero() && now.Sub(u.LastFailedLogin.Time) >= settings.LockoutWindow() {
			u.FailedLoginCount = 0
		}
		u.FailedLoginCount++
		u.LastFailedLogin = models.At(now)
		return nil
	})
	return err
}

// ensureStillAllowed отзывает только что созданную сессию, если пользователь
// успел стать неактивным или заблокированным
func (s *AuthService) ensureStillAllowed(ctx context.Context, userID, sessionID string) error {
	current, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to reload user: %w", err)
	}

	var reason error
	switch {
	case !current.IsActive:
		reason = ErrAccountInactive
	case current.IsBlocked:
		reason = ErrAccountBlocked
	default:
		return nil
	}

	if err := s.store.RevokeSession(ctx, sessionID); err != nil && !errors.Is(err, storage.ErrNotFound) {
		s.logger.Error("Failed to revoke session of disabled user",
			zap.String("user_id", userID),
			zap.Error(err),
		)
		return fmt.Errorf("failed to revoke session: %w", err)
	}
	return reason
}

func staleLoginReason(err error) (string, bool) {
	switch {
	case errors.Is(err, ErrAccountInactive):
		return "inactive", true
	case errors.Is(err, ErrAccountBlocked):
		return "blocked", true
	case errors.Is(err, ErrInvalidCredentials):
		return "password_changed", true
	}
	return "", false
}

func (s *AuthService) recordFailedLogin(ctx context.Context, userID, reason, ipAddress string) {
	s.audit(ctx, models.EventLoginFailed, userID, map[string]any{
		"reason":     reason,
		"ip_address": ipAddress,
	})
}

// audit ошибка журнала не прерывает основную операцию
func (s *AuthService) audit(ctx context.Context, eventType, userID string, details map[string]any) {
	err := s.store.AppendAuditEvent(ctx, models.AuditEvent{
		EventType: eventType,
		UserID:    userID,
		Details:   details,
	})
	if err != nil {
		logger.AuditLog(s.logger, userID, eventType, details, err)
	}
}

func lockedOut(user *models.User, settings *models.Settings, now time.Time) bool {
	if user.FailedLoginCount < settings.RateLimit.MaxLoginAttempts {
		return false
	}
	if user.LastFailedLogin.IsZero() {
		return false
	}
	return now.Sub(user.LastFailedLogin.Time) < settings.LockoutWindow()
}

func passwordRules(settings *models.Settings) utils.PasswordRules {
	return utils.PasswordRules{
		MinLength:      settings.Password.MinLength,
		RequireUpper:   settings.Password.RequireUppercase,
		RequireLower:   settings.Password.RequireLowercase,
		RequireDigit:   settings.Password.RequireDigit,
		RequireSpecial: settings.Password.RequireSpecial,
	}
}

// generateTempPassword подбирает случайный пароль, удовлетворяющий политике
func generateTempPassword(rules utils.PasswordRules) (string, error) {
	length := tempPasswordLength
	if rules.MinLength > length {
		length = rules.MinLength
	}

	for attempt := 0; attempt < 32; attempt++ {
		password, err := utils.GenerateRandomString(length)
		if err != nil {
			return "", err
		}
		// в алфавите GenerateRandomString нет спецсимволов
		if rules.RequireSpecial {
			password += "#"
		}
		if len(utils.ValidatePassword(password, rules)) == 0 {
			return password, nil
		}
	}
	return "", errors.New("failed to generate temporary password")
}

func inviteError(err error) error {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return fmt.Errorf("%w: %s", ErrInvalidInvite, locale.Get("invite_not_found"))
	case errors.Is(err, storage.ErrInactive):
		return fmt.Errorf("%w: %s", ErrInvalidInvite, locale.Get("invite_inactive"))
	case errors.Is(err, storage.ErrAlreadyConsumed):
		return fmt.Errorf("%w: %s", ErrInvalidInvite, locale.Get("invite_consumed"))
	case errors.Is(err, storage.ErrExpired):
		return fmt.Errorf("%w: %s", ErrInvalidInvite, locale.Get("invite_expired"))
	default:
		return err
	}
}
