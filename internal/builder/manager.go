package builder

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"dentaldesk/internal/log"
)

// Manager hands out one hydrated Session per tenant
type Manager struct {
	store        *StateStore
	catalog      *Catalog
	historyLimit int

	mu       sync.Mutex
	sessions map[string]*Session
	loading  map[string]chan struct{}
}

// NewManager creates a session manager
func NewManager(store *StateStore, catalog *Catalog, historyLimit int) *Manager {
	return &Manager{
		store:        store,
		catalog:      catalog,
		historyLimit: historyLimit,
		sessions:     make(map[string]*Session),
		loading:      make(map[string]chan struct{}),
	}
}

// Session returns the tenant's session, hydrating it on first use.
// Hydration runs without holding the manager lock, so a slow store only
// delays callers for the same tenant.
func (m *Manager) Session(ctx context.Context, tenant string) *Session {
	for {
		m.mu.Lock()
		if s, ok := m.sessions[tenant]; ok {
			m.mu.Unlock()
			return s
		}
		if wait, ok := m.loading[tenant]; ok {
			m.mu.Unlock()
			<-wait
			continue
		}
		wait := make(chan struct{})
		m.loading[tenant] = wait
		m.mu.Unlock()

		s := NewSession(tenant, m.store, m.catalog, m.historyLimit, uuid.NewString)
		s.Hydrate(ctx)

		m.mu.Lock()
		m.sessions[tenant] = s
		delete(m.loading, tenant)
		m.mu.Unlock()
		close(wait)
		return s
	}
}

// Store returns the underlying state store
func (m *Manager) Store() *StateStore { return m.store }

// Catalog returns the shipped template catalog
func (m *Manager) Catalog() *Catalog { return m.catalog }

// Close flushes every session with unsaved changes
func (m *Manager) Close(ctx context.Context) error {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.Unlock()

	var errs []error
	for _, s := range sessions {
		if !s.Dirty() {
			continue
		}
		log.Info("Flushing unsaved builder changes for %s", s.Tenant())
		if err := s.Close(ctx); err != nil {
			log.Error("Failed to flush builder session %s: %v", s.Tenant(), err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
