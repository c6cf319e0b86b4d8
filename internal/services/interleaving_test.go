package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/RESERPIX/authstore/internal/config"
	"github.com/RESERPIX/authstore/internal/models"
	"github.com/RESERPIX/authstore/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/errgroup"
)

// interleavingStore выполняет чужую операцию посреди операции сервиса.
// Каждый хук срабатывает один раз.
type interleavingStore struct {
	*storage.Store

	mu                 sync.Mutex
	beforeSettings     func()
	afterCreateSession func()
	beforeGetUser      map[string]func()
}

func newInterleavingStore(store *storage.Store) *interleavingStore {
	return &interleavingStore{Store: store, beforeGetUser: make(map[string]func())}
}

func (s *interleavingStore) take(hook *func()) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn := *hook
	*hook = nil
	return fn
}

func (s *interleavingStore) GetSettings(ctx context.Context) (*models.Settings, error) {
	if hook := s.take(&s.beforeSettings); hook != nil {
		hook()
	}
	return s.Store.GetSettings(ctx)
}

func (s *interleavingStore) CreateSession(ctx context.Context, userID string, session models.Session) (*models.Session, error) {
	created, err := s.Store.CreateSession(ctx, userID, session)
	if hook := s.take(&s.afterCreateSession); hook != nil {
		hook()
	}
	return created, err
}

func (s *interleavingStore) GetUser(ctx context.Context, userID string) (*models.User, error) {
	s.mu.Lock()
	hook := s.beforeGetUser[userID]
	delete(s.beforeGetUser, userID)
	s.mu.Unlock()
	if hook != nil {
		hook()
	}
	return s.Store.GetUser(ctx, userID)
}

func liveSessions(t *testing.T, f *fixture, userID string) []models.Session {
	t.Helper()
	sessions, err := f.store.ListUserSessions(context.Background(), userID, true)
	require.NoError(t, err)
	return sessions
}

func TestLoginRacesWithAccountChanges(t *testing.T) {
	ctx := context.Background()

	t.Run("blocked while checking password", func(t *testing.T) {
		f := newFixture(t)
		userID := f.register(t, "alice", 1001, models.RoleUser)

		store := newInterleavingStore(f.store)
		store.beforeSettings = func() {
			require.NoError(t, f.svc.SetBlocked(ctx, f.admin, userID, true))
		}

		_, err := f.service(store).Login(ctx, LoginRequest{Username: "alice", Password: testPassword})
		assert.ErrorIs(t, err, ErrAccountBlocked)

		user, err := f.store.GetUser(ctx, userID)
		require.NoError(t, err)
		assert.True(t, user.IsBlocked)
		assert.True(t, user.LastLogin.IsZero())
		assert.Empty(t, liveSessions(t, f, userID))
	})

	t.Run("deactivated while checking password", func(t *testing.T) {
		f := newFixture(t)
		userID := f.register(t, "alice", 1001, models.RoleUser)

		store := newInterleavingStore(f.store)
		store.beforeSettings = func() {
			require.NoError(t, f.svc.DeactivateUser(ctx, f.admin, userID))
		}

		_, err := f.service(store).Login(ctx, LoginRequest{Username: "alice", Password: testPassword})
		assert.ErrorIs(t, err, ErrAccountInactive)

		user, err := f.store.GetUser(ctx, userID)
		require.NoError(t, err)
		assert.False(t, user.IsActive)
		assert.Empty(t, liveSessions(t, f, userID))
	})

	t.Run("password changed while checking password", func(t *testing.T) {
		f := newFixture(t)
		userID := f.register(t, "alice", 1001, models.RoleUser)

		store := newInterleavingStore(f.store)
		store.beforeSettings = func() {
			require.NoError(t, f.store.ChangeUserPassword(ctx, userID, "Other1234", false, time.Time{}))
		}

		_, err := f.service(store).Login(ctx, LoginRequest{Username: "alice", Password: testPassword})
		assert.ErrorIs(t, err, ErrInvalidCredentials)
		assert.Empty(t, liveSessions(t, f, userID))

		_, err = f.login("alice", "Other1234")
		assert.NoError(t, err)
	})

	t.Run("blocked after session created", func(t *testing.T) {
		f := newFixture(t)
		userID := f.register(t, "alice", 1001, models.RoleUser)

		store := newInterleavingStore(f.store)
		store.afterCreateSession = func() {
			_, err := f.store.ModifyUser(ctx, userID, func(u *models.User) error {
				u.IsBlocked = true
				return nil
			})
			require.NoError(t, err)
		}

		_, err := f.service(store).Login(ctx, LoginRequest{Username: "alice", Password: testPassword})
		assert.ErrorIs(t, err, ErrAccountBlocked)
		assert.Empty(t, liveSessions(t, f, userID))
	})

	t.Run("failed attempt keeps concurrent block", func(t *testing.T) {
		f := newFixture(t)
		userID := f.register(t, "alice", 1001, models.RoleUser)

		store := newInterleavingStore(f.store)
		store.beforeSettings = func() {
			require.NoError(t, f.svc.SetBlocked(ctx, f.admin, userID, true))
		}

		_, err := f.service(store).Login(ctx, LoginRequest{Username: "alice", Password: "Wrong1234"})
		assert.ErrorIs(t, err, ErrInvalidCredentials)

		user, err := f.store.GetUser(ctx, userID)
		require.NoError(t, err)
		assert.True(t, user.IsBlocked)
		assert.Equal(t, 1, user.FailedLoginCount)
	})
}

func TestSetBlockedKeepsConcurrentFailedAttempt(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	userID := f.register(t, "alice", 1001, models.RoleUser)

	store := newInterleavingStore(f.store)
	store.beforeGetUser[userID] = func() {
		_, err := f.login("alice", "Wrong1234")
		require.ErrorIs(t, err, ErrInvalidCredentials)
	}

	require.NoError(t, f.service(store).SetBlocked(ctx, f.admin, userID, true))

	user, err := f.store.GetUser(ctx, userID)
	require.NoError(t, err)
	assert.True(t, user.IsBlocked)
	assert.Equal(t, 1, user.FailedLoginCount)
	assert.True(t, user.LastFailedLogin.Equal(f.clock.Now()))
}

func TestConcurrentFailedLoginsAllCounted(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	userID := f.register(t, "alice", 1001, models.RoleUser)

	const attempts = 4
	var g errgroup.Group
	for i := 0; i < attempts; i++ {
		i := i
		g.Go(func() error {
			_, err := f.login("alice", "Wrong1234")
			if !errors.Is(err, ErrInvalidCredentials) {
				return fmt.Errorf("attempt %d: %v", i, err)
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	user, err := f.store.GetUser(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, attempts, user.FailedLoginCount)
}

func TestConcurrentRegistrationUniqueness(t *testing.T) {
	ctx := context.Background()
	const attempts = 8

	race := func(t *testing.T, f *fixture, request func(i int, code string) RegisterRequest) (int32, int32) {
		t.Helper()
		codes := make([]string, attempts)
		for i := range codes {
			invite, err := f.svc.CreateInvite(ctx, f.admin, models.RoleUser, 1)
			require.NoError(t, err)
			codes[i] = invite.InviteCode
		}

		var registered, duplicates atomic.Int32
		var g errgroup.Group
		for i := 0; i < attempts; i++ {
			i := i
			g.Go(func() error {
				_, err := f.svc.Register(ctx, request(i, codes[i]))
				switch {
				case err == nil:
					registered.Add(1)
				case errors.Is(err, ErrUserExists):
					duplicates.Add(1)
				default:
					return err
				}
				return nil
			})
		}
		require.NoError(t, g.Wait())
		return registered.Load(), duplicates.Load()
	}

	t.Run("same telegram id", func(t *testing.T) {
		f := newFixture(t)
		registered, duplicates := race(t, f, func(i int, code string) RegisterRequest {
			return RegisterRequest{
				InviteCode: code,
				Username:   fmt.Sprintf("racer%d", i),
				Password:   testPassword,
				TelegramID: 777,
			}
		})
		assert.Equal(t, int32(1), registered)
		assert.Equal(t, int32(attempts-1), duplicates)

		users, err := f.store.ListUsers(ctx, true)
		require.NoError(t, err)
		owners := 0
		for _, user := range users {
			if user.TelegramID == 777 {
				owners++
			}
		}
		assert.Equal(t, 1, owners)
	})

	t.Run("same username", func(t *testing.T) {
		f := newFixture(t)
		registered, duplicates := race(t, f, func(i int, code string) RegisterRequest {
			return RegisterRequest{
				InviteCode: code,
				Username:   "carol",
				Password:   testPassword,
				TelegramID: int64(9000 + i),
			}
		})
		assert.Equal(t, int32(1), registered)
		assert.Equal(t, int32(attempts-1), duplicates)

		users, err := f.store.ListUsers(ctx, false)
		require.NoError(t, err)
		named := 0
		for _, user := range users {
			if user.Username == "carol" {
				named++
			}
		}
		assert.Equal(t, 1, named)
	})
}

func TestConcurrentBootstrapAdmin(t *testing.T) {
	ctx := context.Background()
	store, err := storage.Open(t.TempDir(), storage.WithFsync(false), storage.WithBcryptCost(bcrypt.MinCost))
	require.NoError(t, err)
	svc := NewAuthService(store, &config.Config{Security: config.SecurityConfig{BCryptCost: bcrypt.MinCost}}, nil)

	const attempts = 5
	var created atomic.Int32
	var g errgroup.Group
	for i := 0; i < attempts; i++ {
		i := i
		g.Go(func() error {
			_, err := svc.BootstrapAdmin(ctx, fmt.Sprintf("root%d", i), testPassword, int64(i+1))
			switch {
			case err == nil:
				created.Add(1)
			case errors.Is(err, ErrPermissionDenied):
			default:
				return err
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, int32(1), created.Load())
	users, err := store.ListUsers(ctx, true)
	require.NoError(t, err)
	assert.Len(t, users, 1)
}
