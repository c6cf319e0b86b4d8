package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/RESERPIX/authstore/internal/app"
	"github.com/RESERPIX/authstore/internal/config"
	"github.com/RESERPIX/authstore/internal/models"
	"github.com/RESERPIX/authstore/internal/services"
	"github.com/RESERPIX/authstore/internal/storage"
	"github.com/RESERPIX/authstore/pkg/logger"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

const usage = `Usage: authstore [global flags] <command> [flags]

Commands:
  health [--verbose]              check the data directory
  users [--all]                   list users
  create-admin --username --password [--telegram-id]
                                  create the first super_admin
  invite --actor <user_id> [--role] [--max-uses]
                                  create an invitation
  invites [--all]                 list invitations
  sweep <user_id>                 remove expired sessions of a user
  audit [--user] [--type] [--limit]
                                  print audit events
  settings                        print auth settings
`

type command func(ctx context.Context, env *environment, args []string) error

var commands = map[string]command{
	"health":       runHealth,
	"users":        runUsers,
	"create-admin": runCreateAdmin,
	"invite":       runInvite,
	"invites":      runInvites,
	"sweep":        runSweep,
	"audit":        runAudit,
	"settings":     runSettings,
}

// environment создается один раз и передается командам явно
type environment struct {
	store  *storage.Store
	auth   *services.AuthService
	health *app.HealthChecker
	out    io.Writer
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	flags := pflag.NewFlagSet("authstore", pflag.ContinueOnError)
	flags.SetOutput(stderr)
	flags.SetInterspersed(false)
	flags.Usage = func() {
		fmt.Fprint(stderr, usage)
		fmt.Fprintln(stderr, "\nGlobal flags:")
		flags.PrintDefaults()
	}
	config.RegisterFlags(flags)

	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		return 2
	}
	if flags.NArg() == 0 {
		flags.Usage()
		return 2
	}

	name := flags.Arg(0)
	cmd, ok := commands[name]
	if !ok {
		fmt.Fprintf(stderr, "unknown command %q\n", name)
		flags.Usage()
		return 2
	}

	cfg, err := config.Load(flags)
	if err != nil {
		fmt.Fprintf(stderr, "failed to load config: %v\n", err)
		return 1
	}

	log, err := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		fmt.Fprintf(stderr, "failed to init logger: %v\n", err)
		return 1
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := storage.Open(cfg.Storage.DataDir,
		storage.WithLogger(log),
		storage.WithFsync(cfg.Storage.Fsync),
		storage.WithBcryptCost(cfg.Security.BCryptCost),
		storage.WithDefaultSettings(cfg.DefaultSettings()),
		storage.WithSecondaryIndex(cfg.Storage.SecondaryIndex),
	)
	if err != nil {
		log.Error("Failed to open store", zap.String("data_dir", cfg.Storage.DataDir), zap.Error(err))
		return 1
	}

	env := &environment{
		store:  store,
		auth:   services.NewAuthService(store, cfg, log),
		health: app.NewHealthChecker(store, log),
		out:    stdout,
	}

	if err := cmd(ctx, env, flags.Args()[1:]); err != nil {
		log.Error("Command failed", zap.String("command", name), zap.Error(err))
		return 1
	}
	return 0
}

func runHealth(ctx context.Context, env *environment, args []string) error {
	fs := pflag.NewFlagSet("health", pflag.ContinueOnError)
	verbose := fs.Bool("verbose", false, "include detailed stats")
	if err := fs.Parse(args); err != nil {
		return err
	}

	status := env.health.CheckHealth(ctx)
	if err := printJSON(env.out, status); err != nil {
		return err
	}
	if *verbose {
		if err := printJSON(env.out, env.health.GetDetailedStats(ctx)); err != nil {
			return err
		}
	}
	if status.Status != "healthy" {
		return errors.New(status.Message)
	}
	return nil
}

func runUsers(ctx context.Context, env *environment, args []string) error {
	fs := pflag.NewFlagSet("users", pflag.ContinueOnError)
	all := fs.Bool("all", false, "include deactivated users")
	if err := fs.Parse(args); err != nil {
		return err
	}

	users, err := env.store.ListUsers(ctx, *all)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(env.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "USER_ID\tUSERNAME\tTELEGRAM_ID\tROLE\tACTIVE\tBLOCKED\tLAST_LOGIN")
	for _, u := range users {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%t\t%t\t%s\n",
			u.UserID, u.Username, u.TelegramID, u.Role, u.IsActive, u.IsBlocked, formatTime(u.LastLogin))
	}
	return w.Flush()
}

func runCreateAdmin(ctx context.Context, env *environment, args []string) error {
	fs := pflag.NewFlagSet("create-admin", pflag.ContinueOnError)
	username := fs.String("username", "", "admin username")
	password := fs.String("password", "", "admin password")
	telegramID := fs.Int64("telegram-id", 0, "telegram id to bind")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *username == "" || *password == "" {
		return errors.New("--username and --password are required")
	}

	resp, err := env.auth.BootstrapAdmin(ctx, *username, *password, *telegramID)
	if err != nil {
		return err
	}
	fmt.Fprintf(env.out, "%s: %s (%s)\n", resp.Message, resp.UserID, resp.Role)
	return nil
}

func runInvite(ctx context.Context, env *environment, args []string) error {
	fs := pflag.NewFlagSet("invite", pflag.ContinueOnError)
	actor := fs.String("actor", "", "user_id of the inviting admin")
	role := fs.String("role", string(models.RoleUser), "role granted by the invitation")
	maxUses := fs.Int("max-uses", 0, "number of registrations (0 = settings default)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *actor == "" {
		return errors.New("--actor is required")
	}

	invitation, err := env.auth.CreateInvite(ctx, *actor, models.Role(*role), *maxUses)
	if err != nil {
		return err
	}
	return printJSON(env.out, invitation)
}

func runInvites(ctx context.Context, env *environment, args []string) error {
	fs := pflag.NewFlagSet("invites", pflag.ContinueOnError)
	all := fs.Bool("all", false, "include consumed invitations")
	if err := fs.Parse(args); err != nil {
		return err
	}

	invitations, err := env.store.ListInvitations(ctx, *all)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(env.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "CODE\tROLE\tUSES\tACTIVE\tEXPIRES_AT\tCREATED_BY")
	for _, inv := range invitations {
		fmt.Fprintf(w, "%s\t%s\t%d/%d\t%t\t%s\t%s\n",
			inv.InviteCode, inv.TargetRole, inv.UsesCount, inv.MaxUses, inv.IsActive,
			formatTime(inv.ExpiresAt), inv.CreatedByUserID)
	}
	return w.Flush()
}

func runSweep(ctx context.Context, env *environment, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: sweep <user_id>")
	}

	removed, err := env.store.CleanupExpiredSessions(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(env.out, "removed %d expired session(s)\n", removed)
	return nil
}

func runAudit(ctx context.Context, env *environment, args []string) error {
	fs := pflag.NewFlagSet("audit", pflag.ContinueOnError)
	user := fs.String("user", "", "filter by user_id")
	eventType := fs.String("type", "", "filter by event type")
	limit := fs.Int("limit", 50, "show only the last N events (0 = all)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	events, err := env.store.ListAuditEvents(ctx, storage.AuditFilter{
		UserID:    *user,
		EventType: *eventType,
		Limit:     *limit,
	})
	if err != nil {
		return err
	}

	enc := json.NewEncoder(env.out)
	for _, event := range events {
		if err := enc.Encode(event); err != nil {
			return err
		}
	}
	return nil
}

func runSettings(ctx context.Context, env *environment, args []string) error {
	settings, err := env.store.GetSettings(ctx)
	if err != nil {
		return err
	}
	return printJSON(env.out, settings)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func formatTime(ts models.Timestamp) string {
	if ts.IsZero() {
		return "-"
	}
	return ts.UTC().Format(time.RFC3339)
}
