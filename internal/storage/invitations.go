package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/RESERPIX/authstore/internal/metrics"
	"github.com/RESERPIX/authstore/internal/models"
	"github.com/nrednav/cuid2"
	"go.uber.org/zap"
)

type invitationsDocument struct {
	Invitations map[string]models.Invitation `json:"invitations"`
}

// CreateInvitation сохраняет приглашение; пустой код генерируется.
// max_uses и expires_at по умолчанию берутся из настроек.
func (s *Store) CreateInvitation(ctx context.Context, invitation models.Invitation) (*models.Invitation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	unlock := s.lockGlobal()
	defer unlock()

	settings, err := s.loadSettings()
	if err != nil {
		return nil, err
	}
	now := s.now()

	if invitation.InviteCode == "" {
		invitation.InviteCode = cuid2.Generate()
	}
	if invitation.TargetRole == "" {
		invitation.TargetRole = models.RoleUser
	}
	if invitation.MaxUses == 0 {
		invitation.MaxUses = settings.Invite.DefaultMaxUses
	}
	if invitation.CreatedAt.IsZero() {
		invitation.CreatedAt = models.At(now)
	}
	if invitation.ExpiresAt.IsZero() {
		invitation.ExpiresAt = models.At(invitation.CreatedAt.Add(settings.InviteTTL()))
	}
	invitation.UsesCount = 0
	invitation.IsConsumed = false
	invitation.IsActive = true
	invitation.ConsumedAt = models.Timestamp{}
	invitation.ConsumedByUserID = ""

	if err := s.validateRecord(invitation); err != nil {
		return nil, err
	}

	doc, err := s.loadInvitations()
	if err != nil {
		return nil, err
	}
	if _, exists := doc.Invitations[invitation.InviteCode]; exists {
		return nil, fmt.Errorf("invitation %s: %w", invitation.InviteCode, ErrAlreadyExists)
	}

	doc.Invitations[invitation.InviteCode] = invitation
	if err := s.files.write(s.invitationsPath(), doc); err != nil {
		return nil, err
	}

	s.logger.Info("Invitation created",
		zap.String("invite_code", invitation.InviteCode),
		zap.String("target_role", invitation.TargetRole.String()),
		zap.Int("max_uses", invitation.MaxUses),
		zap.String("created_by", invitation.CreatedByUserID),
	)

	return &invitation, nil
}

// GetInvitation возвращает приглашение независимо от его состояния
func (s *Store) GetInvitation(ctx context.Context, code string) (*models.Invitation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	unlock := s.lockGlobal()
	defer unlock()

	doc, err := s.loadInvitations()
	if err != nil {
		return nil, err
	}
	invitation, ok := doc.Invitations[code]
	if !ok {
		return nil, fmt.Errorf("invitation %s: %w", code, ErrNotFound)
	}
	return &invitation, nil
}

// ValidateInvitation возвращает приглашение только если им можно воспользоваться;
// иначе ErrNotFound, ErrInactive, ErrAlreadyConsumed или ErrExpired
func (s *Store) ValidateInvitation(ctx context.Context, code string) (*models.Invitation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	unlock := s.lockGlobal()
	defer unlock()

	doc, err := s.loadInvitations()
	if err != nil {
		return nil, err
	}
	invitation, ok := doc.Invitations[code]
	if !ok {
		s.logInvalidInvitation(code, "not_found")
		return nil, fmt.Errorf("invitation %s: %w", code, ErrNotFound)
	}
	if err := s.checkInvitation(invitation); err != nil {
		return nil, err
	}
	return &invitation, nil
}

// ConsumeInvitation перечитывает приглашение под глобальной блокировкой,
// проверяет его заново и увеличивает uses_count. Из конкурентных попыток
// для последнего использования успешна ровно одна.
func (s *Store) ConsumeInvitation(ctx context.Context, code, consumerUserID string) (*models.Invitation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	unlock := s.lockGlobal()
	defer unlock()

	doc, err := s.loadInvitations()
	if err != nil {
		metrics.InvitationConsumptionsTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	invitation, ok := doc.Invitations[code]
	if !ok {
		s.logInvalidInvitation(code, "not_found")
		metrics.InvitationConsumptionsTotal.WithLabelValues("not_found").Inc()
		return nil, fmt.Errorf("invitation %s: %w", code, ErrNotFound)
	}
	if err := s.checkInvitation(invitation); err != nil {
		metrics.InvitationConsumptionsTotal.WithLabelValues(consumptionResult(err)).Inc()
		return nil, err
	}

	now := s.now()
	invitation.UsesCount++
	invitation.ConsumedAt = models.At(now)
	invitation.ConsumedByUserID = consumerUserID
	if invitation.UsesCount == invitation.MaxUses {
		invitation.IsConsumed = true
	}

	doc.Invitations[code] = invitation
	if err := s.files.write(s.invitationsPath(), doc); err != nil {
		metrics.InvitationConsumptionsTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	metrics.InvitationConsumptionsTotal.WithLabelValues("ok").Inc()
	s.logger.Info("Invitation consumed",
		zap.String("invite_code", code),
		zap.String("consumer", consumerUserID),
		zap.Int("uses_count", invitation.UsesCount),
		zap.Int("max_uses", invitation.MaxUses),
	)

	return &invitation, nil
}

// ListInvitations сортирует по created_at
func (s *Store) ListInvitations(ctx context.Context, includeConsumed bool) ([]models.Invitation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	unlock := s.lockGlobal()
	defer unlock()

	doc, err := s.loadInvitations()
	if err != nil {
		return nil, err
	}

	out := make([]models.Invitation, 0, len(doc.Invitations))
	for _, invitation := range doc.Invitations {
		if !includeConsumed && invitation.Exhausted() {
			continue
		}
		out = append(out, invitation)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt.Time) {
			return out[i].InviteCode < out[j].InviteCode
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt.Time)
	})
	return out, nil
}

// UpdateInvitation меняет только изменяемые поля; состояние использования
// всегда берется с диска и может двигаться только вперед
func (s *Store) UpdateInvitation(ctx context.Context, invitation models.Invitation) (*models.Invitation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	unlock := s.lockGlobal()
	defer unlock()

	doc, err := s.loadInvitations()
	if err != nil {
		return nil, err
	}
	current, ok := doc.Invitations[invitation.InviteCode]
	if !ok {
		return nil, fmt.Errorf("invitation %s: %w", invitation.InviteCode, ErrNotFound)
	}

	if invitation.MaxUses < current.UsesCount {
		return nil, fmt.Errorf("%w: max_uses below uses_count", ErrInvalidArgument)
	}

	current.IsActive = invitation.IsActive
	current.MaxUses = invitation.MaxUses
	current.InviteType = invitation.InviteType
	if invitation.TargetRole != "" {
		current.TargetRole = invitation.TargetRole
	}
	if !invitation.ExpiresAt.IsZero() {
		current.ExpiresAt = invitation.ExpiresAt
	}
	if current.UsesCount == current.MaxUses {
		current.IsConsumed = true
	}

	if err := s.validateRecord(current); err != nil {
		return nil, err
	}

	doc.Invitations[current.InviteCode] = current
	if err := s.files.write(s.invitationsPath(), doc); err != nil {
		return nil, err
	}
	return &current, nil
}

// checkInvitation вызывается под глобальной блокировкой
func (s *Store) checkInvitation(invitation models.Invitation) error {
	switch {
	case !invitation.IsActive:
		s.logInvalidInvitation(invitation.InviteCode, "inactive")
		return fmt.Errorf("invitation %s: %w", invitation.InviteCode, ErrInactive)
	case invitation.Exhausted():
		s.logInvalidInvitation(invitation.InviteCode, "consumed")
		return fmt.Errorf("invitation %s: %w", invitation.InviteCode, ErrAlreadyConsumed)
	case invitation.Expired(s.now()):
		s.logInvalidInvitation(invitation.InviteCode, "expired")
		return fmt.Errorf("invitation %s: %w", invitation.InviteCode, ErrExpired)
	}
	return nil
}

func (s *Store) logInvalidInvitation(code, reason string) {
	s.logger.Info("Invitation rejected",
		zap.String("invite_code", code),
		zap.String("reason", reason),
	)
}

// loadInvitations вызывается под глобальной блокировкой.
// Поврежденный файл откладывается в сторону и считается пустым.
func (s *Store) loadInvitations() (invitationsDocument, error) {
	var doc invitationsDocument
	_, err := s.files.read(s.invitationsPath(), &doc)
	if err != nil {
		if !errors.Is(err, ErrCorrupted) {
			return invitationsDocument{}, err
		}
		if err := s.files.quarantine(s.invitationsPath(), s.now()); err != nil {
			return invitationsDocument{}, err
		}
		doc = invitationsDocument{}
	}
	if doc.Invitations == nil {
		doc.Invitations = make(map[string]models.Invitation)
	}
	return doc, nil
}

func consumptionResult(err error) string {
	switch {
	case errors.Is(err, ErrInactive):
		return "inactive"
	case errors.Is(err, ErrAlreadyConsumed):
		return "consumed"
	case errors.Is(err, ErrExpired):
		return "expired"
	default:
		return "error"
	}
}
