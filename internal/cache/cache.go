package cache

import (
	"log/slog"
	"sync"
	"time"
)

// Cache defines a generic cache interface
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, data T)
	Delete(key string)
	Size() int
}

// OwnerScoped caches per-owner query results so that every entry of one
// owner can be dropped at once after a write.
type OwnerScoped[T any] struct {
	lru *LRUCache[T]
}

func NewOwnerScoped[T any](maxSize int, ttl time.Duration) *OwnerScoped[T] {
	return &OwnerScoped[T]{lru: NewLRUCache[T](maxSize, ttl)}
}

func ownerPrefix(owner string) string { return owner + "\x00" }

func (o *OwnerScoped[T]) Get(owner, query string) (T, bool) {
	return o.lru.Get(ownerPrefix(owner) + query)
}

func (o *OwnerScoped[T]) Set(owner, query string, data T) {
	o.lru.Set(ownerPrefix(owner)+query, data)
}

// InvalidateOwner drops every cached result of owner.
func (o *OwnerScoped[T]) InvalidateOwner(owner string) {
	o.lru.DeletePrefix(ownerPrefix(owner))
}

func (o *OwnerScoped[T]) CleanExpired() int { return o.lru.CleanExpired() }

func (o *OwnerScoped[T]) Size() int { return o.lru.Size() }

// Cleaner is implemented by caches that support expiry sweeps.
type Cleaner interface {
	CleanExpired() int
}

// Manager sweeps expired entries of its registered caches.
type Manager struct {
	mu          sync.Mutex
	caches      []Cleaner
	stopCleanup chan struct{}
	cleanupDone chan struct{}
}

func NewManager() *Manager {
	return &Manager{}
}

func (m *Manager) Register(c Cleaner) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.caches = append(m.caches, c)
}

// Sweep cleans every registered cache once and returns the entries removed.
func (m *Manager) Sweep() int {
	m.mu.Lock()
	caches := append([]Cleaner(nil), m.caches...)
	m.mu.Unlock()

	total := 0
	for _, c := range caches {
		total += c.CleanExpired()
	}
	return total
}

// StartCleanup sweeps every interval until Stop is called.
func (m *Manager) StartCleanup(interval time.Duration) {
	m.mu.Lock()
	if m.stopCleanup != nil {
		m.mu.Unlock()
		return
	}
	m.stopCleanup = make(chan struct{})
	m.cleanupDone = make(chan struct{})
	stop, done := m.stopCleanup, m.cleanupDone
	m.mu.Unlock()

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if n := m.Sweep(); n > 0 {
					slog.Debug("Cache cleanup", "component", "cache", "removed", n)
				}
			case <-stop:
				return
			}
		}
	}()
}

// Stop ends the cleanup goroutine and waits for it.
func (m *Manager) Stop() {
	m.mu.Lock()
	stop, done := m.stopCleanup, m.cleanupDone
	m.stopCleanup = nil
	m.mu.Unlock()
	if stop != nil {
		close(stop)
		<-done
	}
}
