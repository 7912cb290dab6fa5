package role

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"hrims/internal/domain/directory"
)

func zeroLogger() zerolog.Logger { return zerolog.Nop() }

type fakeDirectory struct {
	mu      sync.Mutex
	byAuth  map[string]directory.Employee
	byEmail map[string]directory.Employee
	release chan struct{}
	err     error
	calls   int
}

func (f *fakeDirectory) wait(ctx context.Context) error {
	if f.release == nil {
		return nil
	}
	select {
	case <-f.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *fakeDirectory) EmployeeByAuthID(ctx context.Context, uid string) (directory.Employee, error) {
	if err := f.wait(ctx); err != nil {
		return directory.Employee{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return directory.Employee{}, f.err
	}
	if emp, ok := f.byAuth[uid]; ok {
		return emp, nil
	}
	return directory.Employee{}, directory.ErrNotFound
}

func (f *fakeDirectory) EmployeeByEmail(_ context.Context, email string) (directory.Employee, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if emp, ok := f.byEmail[email]; ok {
		return emp, nil
	}
	return directory.Employee{}, directory.ErrNotFound
}

func (f *fakeDirectory) EmployeeByID(_ context.Context, id string) (directory.Employee, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, emp := range f.byAuth {
		if emp.ID == id {
			return emp, nil
		}
	}
	return directory.Employee{}, directory.ErrNotFound
}

func (f *fakeDirectory) set(uid string, emp directory.Employee) {
	f.mu.Lock()
	f.byAuth[uid] = emp
	f.mu.Unlock()
}

func newManager(src directory.Source, opts ...SessionOption) *SessionManager {
	return NewSessionManager(src, NewResolver(zeroLogger(), nil), zeroLogger(), opts...)
}

func TestCurrentResolvesEmployeeRole(t *testing.T) {
	src := &fakeDirectory{byAuth: map[string]directory.Employee{
		"u-dean": {ID: "e1", AcademicRoleLevel: intp(1), DepartmentID: "d1"},
	}}
	m := newManager(src)

	state := m.Current(context.Background(), Identity{UID: "u-dean", IsAuthenticated: true})
	if state.Degraded {
		t.Fatalf("did not expect degraded state")
	}
	if state.Role.Level != LevelDean || state.EmployeeID() != "e1" {
		t.Fatalf("unexpected state: %+v", state)
	}
	if state.Role.ApprovalScope != ScopeDepartment {
		t.Fatalf("expected department scope, got %s", state.Role.ApprovalScope)
	}
}

func TestCurrentServesCacheUntilInvalidated(t *testing.T) {
	src := &fakeDirectory{byAuth: map[string]directory.Employee{
		"u1": {ID: "e1", AcademicRoleLevel: intp(3)},
	}}
	m := newManager(src)
	id := Identity{UID: "u1", IsAuthenticated: true}

	if got := m.Current(context.Background(), id).Role.Level; got != LevelFaculty {
		t.Fatalf("expected faculty, got %d", got)
	}

	src.set("u1", directory.Employee{ID: "e1", AcademicRoleLevel: intp(2)})
	if got := m.Current(context.Background(), id).Role.Level; got != LevelFaculty {
		t.Fatalf("expected cached faculty role, got %d", got)
	}

	m.Invalidate("u1")
	if got := m.Current(context.Background(), id).Role.Level; got != LevelChair {
		t.Fatalf("expected chair after invalidate, got %d", got)
	}
}

func TestCurrentReloadsAfterTTL(t *testing.T) {
	src := &fakeDirectory{byAuth: map[string]directory.Employee{
		"u1": {ID: "e1", AcademicRoleLevel: intp(3)},
	}}
	now := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	m := newManager(src, WithTTL(time.Minute), WithClock(func() time.Time { return now }))
	id := Identity{UID: "u1", IsAuthenticated: true}

	m.Current(context.Background(), id)
	src.set("u1", directory.Employee{ID: "e1", AcademicRoleLevel: intp(0)})

	now = now.Add(2 * time.Minute)
	if got := m.Current(context.Background(), id).Role.Level; got != LevelVPAA {
		t.Fatalf("expected reload after ttl, got %d", got)
	}
}

func TestRefreshTimesOutToDefaultRole(t *testing.T) {
	src := &fakeDirectory{
		byAuth:  map[string]directory.Employee{"u1": {ID: "e1", IsHR: true}},
		release: make(chan struct{}),
	}
	m := newManager(src, WithLoadTimeout(20*time.Millisecond))
	id := Identity{UID: "u1", IsAuthenticated: true}

	state := m.Refresh(context.Background(), id)
	if !state.Degraded {
		t.Fatalf("expected degraded state on timeout")
	}
	if state.Role != Default() || state.Employee != nil {
		t.Fatalf("expected default role without employee, got %+v", state)
	}

	close(src.release)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		state = m.Current(context.Background(), id)
		if !state.Degraded {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if state.Degraded || !state.IsHR() {
		t.Fatalf("expected HR role once the lookup completed, got %+v", state)
	}
}

func TestRefreshHonoursCallerContext(t *testing.T) {
	src := &fakeDirectory{
		byAuth:  map[string]directory.Employee{"u1": {ID: "e1"}},
		release: make(chan struct{}),
	}
	defer close(src.release)
	m := newManager(src, WithLoadTimeout(time.Minute))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	state := m.Refresh(ctx, Identity{UID: "u1", IsAuthenticated: true})
	if !state.Degraded || state.Role != Default() {
		t.Fatalf("expected degraded default role, got %+v", state)
	}
}

func TestUnknownEmployeeGetsDefaultRole(t *testing.T) {
	src := &fakeDirectory{byAuth: map[string]directory.Employee{}}
	m := newManager(src)

	state := m.Current(context.Background(), Identity{UID: "ghost", IsAuthenticated: true})
	if state.Degraded {
		t.Fatalf("not-found is a definite answer, not a degraded one")
	}
	if state.Role != Default() || state.Employee != nil {
		t.Fatalf("expected default role, got %+v", state)
	}
}

func TestLookupFallsBackToEmail(t *testing.T) {
	src := &fakeDirectory{
		byAuth:  map[string]directory.Employee{},
		byEmail: map[string]directory.Employee{"chair@example.edu": {ID: "e9", AcademicRoleLevel: intp(2), ProgramID: "p1"}},
	}
	m := newManager(src)

	state := m.Current(context.Background(), Identity{UID: "u9", Email: "chair@example.edu", IsAuthenticated: true})
	if state.EmployeeID() != "e9" || state.Role.Level != LevelChair {
		t.Fatalf("expected chair via email lookup, got %+v", state)
	}
}

func TestLookupErrorIsDegraded(t *testing.T) {
	src := &fakeDirectory{byAuth: map[string]directory.Employee{}, err: errors.New("connection refused")}
	m := newManager(src)

	state := m.Current(context.Background(), Identity{UID: "u1", IsAuthenticated: true})
	if !state.Degraded || state.Role != Default() {
		t.Fatalf("expected degraded default role, got %+v", state)
	}
}

func TestAnonymousIdentity(t *testing.T) {
	src := &fakeDirectory{byAuth: map[string]directory.Employee{}}
	m := newManager(src)

	state := m.Current(context.Background(), Identity{})
	if state.Role != Default() || state.Degraded {
		t.Fatalf("unexpected anonymous state: %+v", state)
	}
	if src.calls != 0 {
		t.Fatalf("anonymous callers must not hit the directory")
	}
}
