package app

import (
	"context"
	"fmt"
	"time"

	"github.com/RESERPIX/authstore/internal/storage"
	"github.com/RESERPIX/authstore/pkg/locale"
	"go.uber.org/zap"
)

const (
	statusHealthy   = "healthy"
	statusUnhealthy = "unhealthy"

	checkTimeout = 5 * time.Second
)

// HealthStatus представляет статус здоровья хранилища
type HealthStatus struct {
	Status    string            `json:"status"`
	Message   string            `json:"message"`
	Timestamp time.Time         `json:"timestamp"`
	Uptime    string            `json:"uptime"`
	Services  map[string]Status `json:"services"`
}

// Status представляет статус отдельной проверки
type Status struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Latency string `json:"latency,omitempty"`
}

// HealthChecker проверяет здоровье хранилища
type HealthChecker struct {
	store  *storage.Store
	logger *zap.Logger
	start  time.Time
}

// NewHealthChecker создает новый экземпляр HealthChecker
func NewHealthChecker(store *storage.Store, logger *zap.Logger) *HealthChecker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HealthChecker{
		store:  store,
		logger: logger,
		start:  time.Now(),
	}
}

// CheckHealth проверяет запись в каталог данных и читаемость общих файлов
func (h *HealthChecker) CheckHealth(ctx context.Context) *HealthStatus {
	status := &HealthStatus{
		Status:    statusHealthy,
		Message:   locale.Get("service_healthy"),
		Timestamp: time.Now(),
		Uptime:    h.getUptime(),
		Services:  make(map[string]Status),
	}

	status.Services["data_dir"] = h.checkDataDir(ctx)
	status.Services["users"] = h.checkUsers(ctx)
	status.Services["invitations"] = h.checkInvitations(ctx)

	for name, check := range status.Services {
		if check.Status == statusUnhealthy {
			status.Status = statusUnhealthy
			status.Message = locale.Get("service_unhealthy")
			h.logger.Warn("Health check failed",
				zap.String("check", name),
				zap.String("message", check.Message),
			)
		}
	}

	return status
}

// checkDataDir атомарная запись, чтение и удаление пробного файла
func (h *HealthChecker) checkDataDir(ctx context.Context) Status {
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	if err := h.store.Probe(ctx); err != nil {
		return Status{
			Status:  statusUnhealthy,
			Message: fmt.Sprintf("Probe write failed: %v", err),
		}
	}

	return Status{
		Status:  statusHealthy,
		Message: fmt.Sprintf("Writable: %s", h.store.Root()),
		Latency: time.Since(start).String(),
	}
}

func (h *HealthChecker) checkUsers(ctx context.Context) Status {
	start := time.Now()

	users, err := h.store.ListUsers(ctx, true)
	if err != nil {
		return Status{
			Status:  statusUnhealthy,
			Message: fmt.Sprintf("User scan failed: %v", err),
		}
	}

	active := 0
	for _, user := range users {
		if user.IsActive {
			active++
		}
	}

	return Status{
		Status:  statusHealthy,
		Message: fmt.Sprintf("Users: %d, active: %d", len(users), active),
		Latency: time.Since(start).String(),
	}
}

func (h *HealthChecker) checkInvitations(ctx context.Context) Status {
	start := time.Now()

	invitations, err := h.store.ListInvitations(ctx, true)
	if err != nil {
		return Status{
			Status:  statusUnhealthy,
			Message: fmt.Sprintf("Invitations read failed: %v", err),
		}
	}

	return Status{
		Status:  statusHealthy,
		Message: fmt.Sprintf("Invitations: %d", len(invitations)),
		Latency: time.Since(start).String(),
	}
}

// getUptime возвращает время работы процесса
func (h *HealthChecker) getUptime() string {
	uptime := time.Since(h.start)

	if uptime < time.Minute {
		return fmt.Sprintf("%.0fs", uptime.Seconds())
	} else if uptime < time.Hour {
		return fmt.Sprintf("%.0fm", uptime.Minutes())
	} else if uptime < 24*time.Hour {
		return fmt.Sprintf("%.0fh", uptime.Hours())
	} else {
		days := int(uptime.Hours() / 24)
		return fmt.Sprintf("%dd", days)
	}
}

// GetDetailedStats возвращает детальную статистику
func (h *HealthChecker) GetDetailedStats(ctx context.Context) map[string]interface{} {
	stats := make(map[string]interface{})

	stats["data_dir"] = h.store.Root()
	stats["user_locks"] = h.store.Locks().Len()

	if users, err := h.store.ListUsers(ctx, true); err == nil {
		stats["users_total"] = len(users)
	}
	if invitations, err := h.store.ListInvitations(ctx, false); err == nil {
		stats["invitations_usable"] = len(invitations)
	}

	// Общая статистика
	stats["uptime"] = h.getUptime()
	stats["start_time"] = h.start
	stats["current_time"] = time.Now()

	return stats
}
