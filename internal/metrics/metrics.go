// Package metrics описывает метрики Prometheus хранилища аутентификации.
// Метрики регистрируются в реестре по умолчанию при импорте пакета.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "authstore"

// Результаты атомарной записи
const (
	ResultOK    = "ok"
	ResultError = "error"
)

// AtomicWritesTotal количество атомарных записей документов.
// Label result: "ok" или "error".
var AtomicWritesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "atomic_writes_total",
		Help:      "Total number of atomic document writes, by result.",
	},
	[]string{"result"},
)

// CorruptedFilesTotal файлы, которые не удалось декодировать.
// Label kind: user, sessions, invitations, settings, audit, other.
var CorruptedFilesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "corrupted_files_total",
		Help:      "Total number of documents that failed to decode.",
	},
	[]string{"kind"},
)

// LockWaitSeconds время ожидания блокировки.
// Label scope: "user" или "global".
var LockWaitSeconds = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "lock_wait_seconds",
		Help:      "Time spent waiting to acquire a store lock.",
		Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1},
	},
	[]string{"scope"},
)

// InvitationConsumptionsTotal попытки использования приглашений.
// Label result: ok, not_found, inactive, consumed, expired, error.
var InvitationConsumptionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "invitation_consumptions_total",
		Help:      "Total number of invitation consumption attempts, by result.",
	},
	[]string{"result"},
)

// SessionsSweptTotal удаленные при очистке просроченные сессии
var SessionsSweptTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sessions_swept_total",
		Help:      "Total number of expired sessions removed by cleanup.",
	},
)

// AuditAppendFailuresTotal неудачные записи в журнал аудита
var AuditAppendFailuresTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "audit_append_failures_total",
		Help:      "Total number of audit events that could not be appended.",
	},
)
