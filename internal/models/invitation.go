package models

import "time"

// Invitation приглашение; все приглашения лежат в одном invitations.json
type Invitation struct {
	InviteCode       string    `json:"invite_code" validate:"required,max=128"`
	InviteType       string    `json:"invite_type,omitempty" validate:"max=64"`
	TargetRole       Role      `json:"target_role" validate:"required,oneof=guest user admin super_admin"`
	CreatedByUserID  string    `json:"created_by_user_id"`
	MaxUses          int       `json:"max_uses" validate:"gte=1"`
	UsesCount        int       `json:"uses_count" validate:"gte=0,ltefield=MaxUses"`
	IsActive         bool      `json:"is_active"`
	IsConsumed       bool      `json:"is_consumed"`
	ConsumedAt       Timestamp `json:"consumed_at"`
	ConsumedByUserID string    `json:"consumed_by_user_id,omitempty"`
	CreatedAt        Timestamp `json:"created_at"`
	ExpiresAt        Timestamp `json:"expires_at"`
}

// Expired: без срока действия приглашение считается истекшим
func (i Invitation) Expired(now time.Time) bool {
	return i.ExpiresAt.IsZero() || !now.Before(i.ExpiresAt.Time)
}

// Exhausted все использования израсходованы
func (i Invitation) Exhausted() bool {
	return i.IsConsumed || i.UsesCount >= i.MaxUses
}
