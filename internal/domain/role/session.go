package role

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"hrims/internal/domain/directory"
)

// Identity is what the session provider tells us about the caller.
type Identity struct {
	UID             string `json:"uid"`
	Email           string `json:"email"`
	DisplayName     string `json:"displayName"`
	IsAuthenticated bool   `json:"isAuthenticated"`
}

// SessionState is passed explicitly to the workflow and handlers. Degraded is
// set when the employee lookup did not answer in time and the default role was
// used instead.
type SessionState struct {
	Identity   Identity            `json:"identity"`
	Employee   *directory.Employee `json:"employee,omitempty"`
	Role       Role                `json:"role"`
	ResolvedAt time.Time           `json:"resolvedAt"`
	Degraded   bool                `json:"degraded"`
}

func (s SessionState) EmployeeID() string {
	if s.Employee == nil {
		return ""
	}
	return s.Employee.ID
}

func (s SessionState) IsHR() bool {
	return s.Role.IsHR()
}

type SessionOption func(*SessionManager)

func WithLoadTimeout(d time.Duration) SessionOption {
	return func(m *SessionManager) {
		if d > 0 {
			m.loadTimeout = d
		}
	}
}

func WithTTL(d time.Duration) SessionOption {
	return func(m *SessionManager) {
		if d > 0 {
			m.ttl = d
		}
	}
}

func WithClock(now func() time.Time) SessionOption {
	return func(m *SessionManager) {
		if now != nil {
			m.now = now
		}
	}
}

type cachedSession struct {
	state   SessionState
	expires time.Time
}

// SessionManager caches resolved sessions per uid. A refresh waits at most
// loadTimeout for the directory; a slower lookup keeps running in the
// background and replaces the cached state once it lands.
type SessionManager struct {
	directory   directory.Source
	resolver    *Resolver
	log         zerolog.Logger
	loadTimeout time.Duration
	ttl         time.Duration
	now         func() time.Time

	mu       sync.Mutex
	sessions map[string]cachedSession
	inflight map[string]chan struct{}
}

func NewSessionManager(source directory.Source, resolver *Resolver, log zerolog.Logger, opts ...SessionOption) *SessionManager {
	m := &SessionManager{
		directory:   source,
		resolver:    resolver,
		log:         log,
		loadTimeout: 3 * time.Second,
		ttl:         10 * time.Minute,
		now:         time.Now,
		sessions:    map[string]cachedSession{},
		inflight:    map[string]chan struct{}{},
	}
	if m.resolver == nil {
		m.resolver = NewResolver(log, nil)
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Current returns the cached state for identity, refreshing when missing or
// expired. Degraded entries are never served from cache.
func (m *SessionManager) Current(ctx context.Context, identity Identity) SessionState {
	if !identity.IsAuthenticated || identity.UID == "" {
		return m.anonymous(identity)
	}
	m.mu.Lock()
	cached, ok := m.sessions[identity.UID]
	m.mu.Unlock()
	if ok && m.now().Before(cached.expires) && !cached.state.Degraded {
		return cached.state
	}
	return m.Refresh(ctx, identity)
}

// Refresh re-reads the employee and resolves a fresh role.
func (m *SessionManager) Refresh(ctx context.Context, identity Identity) SessionState {
	if !identity.IsAuthenticated || identity.UID == "" {
		return m.anonymous(identity)
	}

	done := m.startLoad(identity)

	timer := time.NewTimer(m.loadTimeout)
	defer timer.Stop()

	select {
	case <-done:
		m.mu.Lock()
		cached, ok := m.sessions[identity.UID]
		m.mu.Unlock()
		if ok {
			return cached.state
		}
		return m.fallback(identity)
	case <-timer.C:
		m.log.Warn().
			Str("uid", identity.UID).
			Dur("timeout", m.loadTimeout).
			Msg("employee lookup slow; serving default role until it completes")
		return m.fallback(identity)
	case <-ctx.Done():
		return m.fallback(identity)
	}
}

// Invalidate drops the cached state so the next Current call reloads it.
func (m *SessionManager) Invalidate(uid string) {
	m.mu.Lock()
	delete(m.sessions, uid)
	m.mu.Unlock()
}

// startLoad begins a directory lookup for identity unless one is already
// running, and returns a channel closed when that lookup finishes.
func (m *SessionManager) startLoad(identity Identity) <-chan struct{} {
	m.mu.Lock()
	if done, ok := m.inflight[identity.UID]; ok {
		m.mu.Unlock()
		return done
	}
	done := make(chan struct{})
	m.inflight[identity.UID] = done
	m.mu.Unlock()

	go func() {
		defer func() {
			m.mu.Lock()
			delete(m.inflight, identity.UID)
			m.mu.Unlock()
			close(done)
		}()

		// Detached from the request: the lookup outlives a timed-out caller.
		emp, err := m.lookup(context.Background(), identity)
		if err != nil {
			if !errors.Is(err, directory.ErrNotFound) {
				m.log.Warn().Err(err).Str("uid", identity.UID).Msg("employee lookup failed")
				return
			}
			m.store(identity, SessionState{
				Identity:   identity,
				Role:       Default(),
				ResolvedAt: m.now(),
			})
			return
		}
		m.store(identity, SessionState{
			Identity:   identity,
			Employee:   &emp,
			Role:       m.resolver.Resolve(&emp),
			ResolvedAt: m.now(),
		})
	}()
	return done
}

func (m *SessionManager) lookup(ctx context.Context, identity Identity) (directory.Employee, error) {
	emp, err := m.directory.EmployeeByAuthID(ctx, identity.UID)
	if err == nil {
		return emp, nil
	}
	if !errors.Is(err, directory.ErrNotFound) || strings.TrimSpace(identity.Email) == "" {
		return directory.Employee{}, err
	}
	return m.directory.EmployeeByEmail(ctx, identity.Email)
}

func (m *SessionManager) store(identity Identity, state SessionState) {
	m.mu.Lock()
	m.sessions[identity.UID] = cachedSession{state: state, expires: m.now().Add(m.ttl)}
	m.mu.Unlock()
}

func (m *SessionManager) fallback(identity Identity) SessionState {
	return SessionState{Identity: identity, Role: Default(), ResolvedAt: m.now(), Degraded: true}
}

func (m *SessionManager) anonymous(identity Identity) SessionState {
	return SessionState{Identity: identity, Role: Default(), ResolvedAt: m.now()}
}
