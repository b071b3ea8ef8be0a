// Package session provides the per-session state store for the USSD gateway.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/thebtf/inkingi-ussd/pkg/models"
)

// DefaultTTL is the inactivity window after which a session expires.
const DefaultTTL = 30 * time.Minute

// Store maps session identifiers to session state.
// No operation fails: unknown ids read as empty sessions.
type Store interface {
	Get(ctx context.Context, id string) models.Session
	Merge(ctx context.Context, id string, patch models.Patch)
	SetLocale(ctx context.Context, id, locale string)
	Delete(ctx context.Context, id string)
	// SweepExpired removes sessions idle since before now minus the TTL and
	// returns how many were removed.
	SweepExpired(now time.Time) int
}

// MemoryStore is an in-process Store. State is lost on restart.
type MemoryStore struct {
	sessions map[string]*models.Session
	now      func() time.Time
	ttl      time.Duration
	mu       sync.RWMutex
}

// NewMemoryStore creates an in-memory store expiring sessions after ttl.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryStore{
		sessions: make(map[string]*models.Session),
		now:      time.Now,
		ttl:      ttl,
	}
}

// WithClock replaces the clock used to stamp activity. Intended for tests.
func (m *MemoryStore) WithClock(now func() time.Time) *MemoryStore {
	m.now = now
	return m
}

// Get returns a copy of the session, or an empty session carrying only the id.
func (m *MemoryStore) Get(_ context.Context, id string) models.Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return models.Session{ID: id}
	}
	return s.Clone()
}

// Merge applies patch to the session, creating it if absent.
func (m *MemoryStore) Merge(_ context.Context, id string, patch models.Patch) {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		s = &models.Session{ID: id}
		m.sessions[id] = s
	}
	patch.Apply(s, now)
}

// SetLocale stores the session locale.
func (m *MemoryStore) SetLocale(ctx context.Context, id, locale string) {
	m.Merge(ctx, id, models.Patch{Locale: &locale})
}

// Delete removes a session.
func (m *MemoryStore) Delete(_ context.Context, id string) {
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
}

// SweepExpired removes sessions idle for longer than the TTL.
func (m *MemoryStore) SweepExpired(now time.Time) int {
	cutoff := now.Add(-m.ttl)
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for id, s := range m.sessions {
		if s.LastActivity.Before(cutoff) {
			delete(m.sessions, id)
			removed++
		}
	}
	return removed
}

// Len returns the number of live sessions.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Sweeper periodically calls SweepExpired on a store.
type Sweeper struct {
	store    Store
	stop     chan struct{}
	done     chan struct{}
	interval time.Duration
	stopOnce sync.Once
}

// NewSweeper creates a sweeper for store running every interval.
func NewSweeper(store Store, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &Sweeper{
		store:    store,
		interval: interval,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Run sweeps until ctx is cancelled or Stop is called.
func (s *Sweeper) Run(ctx context.Context) {
	defer close(s.done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stop:
			return
		case now := <-ticker.C:
			if removed := s.store.SweepExpired(now); removed > 0 {
				log.Info().Int("removed", removed).Msg("Swept expired sessions")
			}
		}
	}
}

// Stop terminates Run. Safe to call multiple times.
func (s *Sweeper) Stop() {
	s.stopOnce.Do(func() {
		close(s.stop)
	})
}

// Done is closed once Run has returned.
func (s *Sweeper) Done() <-chan struct{} {
	return s.done
}
