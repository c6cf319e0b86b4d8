package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/RESERPIX/authstore/internal/metrics"
	"github.com/RESERPIX/authstore/internal/models"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func mustCreateInvitation(t *testing.T, s *Store, code string, maxUses int) *models.Invitation {
	t.Helper()
	invitation, err := s.CreateInvitation(context.Background(), models.Invitation{
		InviteCode:      code,
		TargetRole:      models.RoleUser,
		CreatedByUserID: "admin",
		MaxUses:         maxUses,
	})
	require.NoError(t, err)
	return invitation
}

func TestCreateInvitation(t *testing.T) {
	ctx := context.Background()
	clock := newTestClock()
	store := newTestStore(t, clock)

	t.Run("defaults from settings", func(t *testing.T) {
		invitation, err := store.CreateInvitation(ctx, models.Invitation{CreatedByUserID: "admin"})
		require.NoError(t, err)

		assert.NotEmpty(t, invitation.InviteCode)
		assert.Equal(t, models.RoleUser, invitation.TargetRole)
		assert.Equal(t, 1, invitation.MaxUses)
		assert.Zero(t, invitation.UsesCount)
		assert.True(t, invitation.IsActive)
		assert.False(t, invitation.IsConsumed)
		assert.True(t, invitation.ExpiresAt.Equal(clock.Now().Add(72*time.Hour)))
	})

	t.Run("consumption state cannot be preset", func(t *testing.T) {
		invitation, err := store.CreateInvitation(ctx, models.Invitation{
			InviteCode: "preset",
			MaxUses:    3,
			UsesCount:  3,
			IsConsumed: true,
		})
		require.NoError(t, err)
		assert.Zero(t, invitation.UsesCount)
		assert.False(t, invitation.IsConsumed)
	})

	t.Run("duplicate code", func(t *testing.T) {
		mustCreateInvitation(t, store, "dup-code", 1)
		_, err := store.CreateInvitation(ctx, models.Invitation{InviteCode: "dup-code"})
		assert.ErrorIs(t, err, ErrAlreadyExists)
	})

	t.Run("invalid role", func(t *testing.T) {
		_, err := store.CreateInvitation(ctx, models.Invitation{TargetRole: "root"})
		assert.ErrorIs(t, err, ErrInvalidArgument)
	})
}

func TestValidateInvitation(t *testing.T) {
	ctx := context.Background()
	clock := newTestClock()
	store := newTestStore(t, clock)

	valid := mustCreateInvitation(t, store, "valid", 1)
	got, err := store.ValidateInvitation(ctx, valid.InviteCode)
	require.NoError(t, err)
	assert.Equal(t, valid.InviteCode, got.InviteCode)

	_, err = store.ValidateInvitation(ctx, "unknown")
	assert.ErrorIs(t, err, ErrNotFound)

	inactive := mustCreateInvitation(t, store, "inactive", 1)
	inactive.IsActive = false
	_, err = store.UpdateInvitation(ctx, *inactive)
	require.NoError(t, err)
	_, err = store.ValidateInvitation(ctx, "inactive")
	assert.ErrorIs(t, err, ErrInactive)

	mustCreateInvitation(t, store, "used", 1)
	_, err = store.ConsumeInvitation(ctx, "used", "u1")
	require.NoError(t, err)
	_, err = store.ValidateInvitation(ctx, "used")
	assert.ErrorIs(t, err, ErrAlreadyConsumed)

	clock.Advance(73 * time.Hour)
	_, err = store.ValidateInvitation(ctx, "valid")
	assert.ErrorIs(t, err, ErrExpired)

	// get возвращает приглашение в любом состоянии
	expired, err := store.GetInvitation(ctx, "valid")
	require.NoError(t, err)
	assert.True(t, expired.IsActive)
}

func TestConsumeInvitationMultiUse(t *testing.T) {
	ctx := context.Background()
	clock := newTestClock()
	store := newTestStore(t, clock)
	mustCreateInvitation(t, store, "team", 2)

	first, err := store.ConsumeInvitation(ctx, "team", "alice")
	require.NoError(t, err)
	assert.Equal(t, 1, first.UsesCount)
	assert.False(t, first.IsConsumed)
	assert.Equal(t, "alice", first.ConsumedByUserID)
	assert.True(t, first.ConsumedAt.Equal(clock.Now()))

	clock.Advance(time.Minute)

	second, err := store.ConsumeInvitation(ctx, "team", "bob")
	require.NoError(t, err)
	assert.Equal(t, 2, second.UsesCount)
	assert.True(t, second.IsConsumed)
	assert.Equal(t, "bob", second.ConsumedByUserID)
	assert.True(t, second.ConsumedAt.Equal(clock.Now()))

	_, err = store.ConsumeInvitation(ctx, "team", "carol")
	assert.ErrorIs(t, err, ErrAlreadyConsumed)

	stored, err := store.GetInvitation(ctx, "team")
	require.NoError(t, err)
	assert.Equal(t, 2, stored.UsesCount)
	assert.Equal(t, "bob", stored.ConsumedByUserID)

	_, err = store.ConsumeInvitation(ctx, "missing", "dave")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestConcurrentConsumeSingleUse(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, newTestClock())
	mustCreateInvitation(t, store, "race", 1)

	okBefore := testutil.ToFloat64(metrics.InvitationConsumptionsTotal.WithLabelValues("ok"))
	consumedBefore := testutil.ToFloat64(metrics.InvitationConsumptionsTotal.WithLabelValues("consumed"))

	const consumers = 32
	var successes, rejected atomic.Int32

	var g errgroup.Group
	for i := 0; i < consumers; i++ {
		i := i
		g.Go(func() error {
			_, err := store.ConsumeInvitation(ctx, "race", fmt.Sprintf("user-%d", i))
			switch {
			case err == nil:
				successes.Add(1)
			case errors.Is(err, ErrAlreadyConsumed):
				rejected.Add(1)
			default:
				return err
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, int32(1), successes.Load())
	assert.Equal(t, int32(consumers-1), rejected.Load())

	stored, err := store.GetInvitation(ctx, "race")
	require.NoError(t, err)
	assert.Equal(t, 1, stored.UsesCount)
	assert.True(t, stored.IsConsumed)

	assert.Equal(t, okBefore+1, testutil.ToFloat64(metrics.InvitationConsumptionsTotal.WithLabelValues("ok")))
	assert.Equal(t, consumedBefore+consumers-1,
		testutil.ToFloat64(metrics.InvitationConsumptionsTotal.WithLabelValues("consumed")))
}

func TestUpdateInvitation(t *testing.T) {
	ctx := context.Background()
	clock := newTestClock()
	store := newTestStore(t, clock)
	mustCreateInvitation(t, store, "multi", 3)

	for _, consumer := range []string{"a", "b"} {
		_, err := store.ConsumeInvitation(ctx, "multi", consumer)
		require.NoError(t, err)
	}

	current, err := store.GetInvitation(ctx, "multi")
	require.NoError(t, err)

	t.Run("max uses below uses count", func(t *testing.T) {
		change := *current
		change.MaxUses = 1
		_, err := store.UpdateInvitation(ctx, change)
		assert.ErrorIs(t, err, ErrInvalidArgument)
	})

	t.Run("consumption state comes from disk", func(t *testing.T) {
		change := *current
		change.UsesCount = 0
		change.IsConsumed = false
		change.ConsumedByUserID = ""
		newExpiry := clock.Now().Add(240 * time.Hour)
		change.ExpiresAt = models.At(newExpiry)

		updated, err := store.UpdateInvitation(ctx, change)
		require.NoError(t, err)
		assert.Equal(t, 2, updated.UsesCount)
		assert.Equal(t, "b", updated.ConsumedByUserID)
		assert.True(t, updated.ExpiresAt.Equal(newExpiry))
	})

	t.Run("lowering max uses to uses count consumes", func(t *testing.T) {
		change := *current
		change.MaxUses = 2
		updated, err := store.UpdateInvitation(ctx, change)
		require.NoError(t, err)
		assert.True(t, updated.IsConsumed)

		// Назад переход невозможен
		change.MaxUses = 5
		updated, err = store.UpdateInvitation(ctx, change)
		require.NoError(t, err)
		assert.True(t, updated.IsConsumed)

		_, err = store.ConsumeInvitation(ctx, "multi", "c")
		assert.ErrorIs(t, err, ErrAlreadyConsumed)
	})

	t.Run("unknown code", func(t *testing.T) {
		_, err := store.UpdateInvitation(ctx, models.Invitation{InviteCode: "nope", MaxUses: 1})
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestListInvitations(t *testing.T) {
	ctx := context.Background()
	clock := newTestClock()
	store := newTestStore(t, clock)

	mustCreateInvitation(t, store, "zeta", 1)
	clock.Advance(time.Minute)
	mustCreateInvitation(t, store, "alpha", 1)
	clock.Advance(time.Minute)
	mustCreateInvitation(t, store, "used", 1)
	_, err := store.ConsumeInvitation(ctx, "used", "u1")
	require.NoError(t, err)

	open, err := store.ListInvitations(ctx, false)
	require.NoError(t, err)
	require.Len(t, open, 2)
	assert.Equal(t, "zeta", open[0].InviteCode)
	assert.Equal(t, "alpha", open[1].InviteCode)

	all, err := store.ListInvitations(ctx, true)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestCorruptedInvitationsFile(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, newTestClock())
	mustCreateInvitation(t, store, "lost", 1)

	path := filepath.Join(store.Root(), invitationsFile)
	require.NoError(t, os.WriteFile(path, []byte(`{"invitations": {"lost": `), filePerm))

	_, err := store.GetInvitation(ctx, "lost")
	assert.ErrorIs(t, err, ErrNotFound)

	matches, err := filepath.Glob(path + ".corrupt-*")
	require.NoError(t, err)
	assert.Len(t, matches, 1)

	mustCreateInvitation(t, store, "fresh", 1)
	_, err = store.ValidateInvitation(ctx, "fresh")
	assert.NoError(t, err)
}
