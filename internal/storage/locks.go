package storage

import (
	"sync"
	"time"

	"github.com/RESERPIX/authstore/internal/metrics"
)

const (
	scopeUser   = "user"
	scopeGlobal = "global"
)

// LockRegistry выдает мьютекс на каждый ключ (пользователя) и один
// глобальный мьютекс для общих файлов: приглашений, настроек и аудита.
//
// Мьютексы создаются лениво и никогда не удаляются.
type LockRegistry struct {
	mu     sync.Mutex
	locks  map[string]*sync.Mutex
	global sync.Mutex
}

// NewLockRegistry создает пустой реестр
func NewLockRegistry() *LockRegistry {
	return &LockRegistry{
		locks: make(map[string]*sync.Mutex),
	}
}

// LockFor возвращает мьютекс ключа, создавая его при первом обращении.
// Реестр держит свою блокировку только на время поиска/вставки.
func (r *LockRegistry) LockFor(key string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()

	lock, ok := r.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		r.locks[key] = lock
	}
	return lock
}

// Global мьютекс общих файлов
func (r *LockRegistry) Global() *sync.Mutex {
	return &r.global
}

// Len количество созданных мьютексов по ключам
func (r *LockRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.locks)
}

// acquire берет мьютекс и замеряет ожидание; вызывающий обязан вызвать Unlock
func acquire(lock *sync.Mutex, scope string) {
	start := time.Now()
	lock.Lock()
	metrics.LockWaitSeconds.WithLabelValues(scope).Observe(time.Since(start).Seconds())
}
