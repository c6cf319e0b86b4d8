package models

// Типы событий аудита
const (
	EventUserRegistered    = "user_registered"
	EventUserUpdated       = "user_updated"
	EventUserDeactivated   = "user_deactivated"
	EventUserBlocked       = "user_blocked"
	EventUserUnblocked     = "user_unblocked"
	EventLoginSuccess      = "login_success"
	EventLoginFailed       = "login_failed"
	EventLogout            = "logout"
	EventPasswordChanged   = "password_changed"
	EventTempPasswordIssue = "temp_password_issued"
	EventInviteCreated     = "invite_created"
	EventInviteConsumed    = "invite_consumed"
	EventSettingsUpdated   = "settings_updated"
)

// AuditEvent строка журнала auth_audit.log
type AuditEvent struct {
	EventID   string         `json:"event_id"`
	EventType string         `json:"event_type"`
	UserID    string         `json:"user_id,omitempty"`
	Timestamp Timestamp      `json:"timestamp"`
	Details   map[string]any `json:"details,omitempty"`
}
