package main

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/RESERPIX/authstore/internal/models"
	"github.com/RESERPIX/authstore/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cli struct {
	t       *testing.T
	dataDir string
}

func newCLI(t *testing.T) *cli {
	return &cli{t: t, dataDir: t.TempDir()}
}

func (c *cli) run(args ...string) (int, string, string) {
	c.t.Helper()
	var stdout, stderr bytes.Buffer
	global := []string{"--data-dir", c.dataDir, "--bcrypt-cost", "4", "--fsync=false", "--log-level", "error"}
	code := run(append(global, args...), &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestCLIAdminWorkflow(t *testing.T) {
	c := newCLI(t)

	code, out, _ := c.run("create-admin", "--username", "root", "--password", "Secret123", "--telegram-id", "42")
	require.Equal(t, 0, code)
	assert.Contains(t, out, "super_admin")

	store, err := storage.Open(c.dataDir, storage.WithFsync(false))
	require.NoError(t, err)
	admin, err := store.FindUserByTelegramID(context.Background(), 42)
	require.NoError(t, err)

	t.Run("second admin refused", func(t *testing.T) {
		code, _, _ := c.run("create-admin", "--username", "other", "--password", "Secret123")
		assert.Equal(t, 1, code)
	})

	t.Run("users", func(t *testing.T) {
		code, out, _ := c.run("users")
		require.Equal(t, 0, code)
		assert.Contains(t, out, admin.UserID)
		assert.Contains(t, out, "root")
	})

	var invitation models.Invitation
	t.Run("invite", func(t *testing.T) {
		code, out, _ := c.run("invite", "--actor", admin.UserID, "--role", "admin", "--max-uses", "3")
		require.Equal(t, 0, code)
		require.NoError(t, json.Unmarshal([]byte(out), &invitation))
		assert.Equal(t, models.RoleAdmin, invitation.TargetRole)
		assert.Equal(t, 3, invitation.MaxUses)
	})

	t.Run("invites", func(t *testing.T) {
		code, out, _ := c.run("invites")
		require.Equal(t, 0, code)
		assert.Contains(t, out, invitation.InviteCode)
		assert.Contains(t, out, "0/3")
	})

	t.Run("invite without actor", func(t *testing.T) {
		code, _, _ := c.run("invite")
		assert.Equal(t, 1, code)
	})

	t.Run("settings", func(t *testing.T) {
		code, out, _ := c.run("settings")
		require.Equal(t, 0, code)
		var settings models.Settings
		require.NoError(t, json.Unmarshal([]byte(out), &settings))
		assert.Equal(t, models.DefaultSettings().Password.MinLength, settings.Password.MinLength)
	})

	t.Run("audit", func(t *testing.T) {
		code, out, _ := c.run("audit", "--type", models.EventUserRegistered)
		require.Equal(t, 0, code)
		lines := strings.Split(strings.TrimSpace(out), "\n")
		require.Len(t, lines, 1)
		var event models.AuditEvent
		require.NoError(t, json.Unmarshal([]byte(lines[0]), &event))
		assert.Equal(t, admin.UserID, event.UserID)
	})

	t.Run("sweep", func(t *testing.T) {
		code, out, _ := c.run("sweep", admin.UserID)
		require.Equal(t, 0, code)
		assert.Contains(t, out, "removed 0")
	})

	t.Run("health", func(t *testing.T) {
		code, out, _ := c.run("health", "--verbose")
		require.Equal(t, 0, code)
		assert.Contains(t, out, `"status": "healthy"`)
		assert.Contains(t, out, `"users_total": 1`)
	})
}

func TestCLIUsageErrors(t *testing.T) {
	c := newCLI(t)

	code, _, stderr := c.run()
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr, "Usage: authstore")

	code, _, stderr = c.run("launch")
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr, `unknown command "launch"`)

	code, _, _ = c.run("sweep")
	assert.Equal(t, 1, code)
}
