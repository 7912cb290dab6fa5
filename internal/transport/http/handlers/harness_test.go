package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"hrims/internal/domain/auth"
	"hrims/internal/domain/directory"
	"hrims/internal/domain/leave"
	"hrims/internal/domain/reports"
	"hrims/internal/domain/role"
	employeeshandler "hrims/internal/transport/http/handlers/employees"
	leavehandler "hrims/internal/transport/http/handlers/leave"
	reportshandler "hrims/internal/transport/http/handlers/reports"
	sessionhandler "hrims/internal/transport/http/handlers/session"
	"hrims/internal/transport/http/middleware"
)

const testSecret = "test-secret"

// Monday; requests in the tests start the following week.
var testToday = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func (e envelope) code() string {
	if e.Error == nil {
		return ""
	}
	return e.Error.Code
}

func intPtr(v int) *int { return &v }

var testEmployees = []directory.Employee{
	{ID: "hr", AuthID: "u-hr", Email: "hr@hrims.test", FirstName: "Hana", LastName: "Reyes", IsHR: true},
	{ID: "dean", AuthID: "u-dean", Email: "dean@hrims.test", FirstName: "Dario", LastName: "Cruz", DepartmentID: "D1", RoleLevel: intPtr(role.LevelDean)},
	{ID: "dean2", AuthID: "u-dean2", Email: "dean2@hrims.test", FirstName: "Dina", LastName: "Lim", DepartmentID: "D2", RoleLevel: intPtr(role.LevelDean)},
	{ID: "chair", AuthID: "u-chair", Email: "chair@hrims.test", FirstName: "Carla", LastName: "Santos", DepartmentID: "D1", ProgramID: "P1", RoleLevel: intPtr(role.LevelChair)},
	{ID: "fac", AuthID: "u-fac", Email: "fac@hrims.test", FirstName: "Felix", LastName: "Tan", DepartmentID: "D1", ProgramID: "P1", AcademicRoleLevel: intPtr(role.LevelFaculty)},
}

type memDirectory struct {
	employees []directory.Employee
}

func (d memDirectory) find(match func(directory.Employee) bool) (directory.Employee, error) {
	for _, emp := range d.employees {
		if match(emp) {
			return emp, nil
		}
	}
	return directory.Employee{}, directory.ErrNotFound
}

func (d memDirectory) EmployeeByEmail(_ context.Context, email string) (directory.Employee, error) {
	return d.find(func(e directory.Employee) bool { return strings.EqualFold(e.Email, email) })
}

func (d memDirectory) EmployeeByID(_ context.Context, id string) (directory.Employee, error) {
	return d.find(func(e directory.Employee) bool { return e.ID == id })
}

func (d memDirectory) EmployeeByAuthID(_ context.Context, authID string) (directory.Employee, error) {
	return d.find(func(e directory.Employee) bool { return e.AuthID == authID })
}

// memBackend keeps requests and credits in memory and enforces the same
// optimistic status check the Postgres store does.
type memBackend struct {
	mu       sync.Mutex
	requests map[string]leave.LeaveRequest
	credits  map[string]leave.LeaveCredit
	types    []leave.LeaveType
	nextID   int
}

func newMemBackend() *memBackend {
	return &memBackend{
		requests: map[string]leave.LeaveRequest{},
		credits:  map[string]leave.LeaveCredit{},
		types:    []leave.LeaveType{{ID: "lt1", Code: "VL", Name: "Vacation Leave", DefaultCredits: 15}},
	}
}

func creditKey(employeeID, leaveType string, year int) string {
	return fmt.Sprintf("%s|%s|%d", employeeID, strings.ToLower(leaveType), year)
}

func (m *memBackend) grant(employeeID, leaveType string, year int, total float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.credits[creditKey(employeeID, leaveType, year)] = leave.LeaveCredit{
		EmployeeID: employeeID, LeaveType: leaveType, Year: year, TotalCredits: total,
	}.Normalize()
}

func (m *memBackend) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

func (m *memBackend) filter(keep func(leave.LeaveRequest) bool) []leave.LeaveRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []leave.LeaveRequest{}
	for _, r := range m.requests {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out
}

func (m *memBackend) MyRequests(_ context.Context, actor leave.Actor) ([]leave.LeaveRequest, error) {
	return m.filter(func(r leave.LeaveRequest) bool { return r.Employee.ID == actor.EmployeeID }), nil
}

func (m *memBackend) PendingForApproval(_ context.Context, _ leave.Actor) ([]leave.LeaveRequest, error) {
	return m.filter(func(r leave.LeaveRequest) bool { return r.Status == leave.StatusPending }), nil
}

func (m *memBackend) PendingForHRApproval(_ context.Context, _ leave.Actor) ([]leave.LeaveRequest, error) {
	return m.filter(func(r leave.LeaveRequest) bool {
		return r.Status == leave.StatusPending || r.Status == leave.StatusSupervisorApproved
	}), nil
}

func (m *memBackend) ListRequests(_ context.Context, _ leave.Actor, filter leave.RequestFilter) (leave.RequestListResult, error) {
	out := m.filter(func(r leave.LeaveRequest) bool {
		return (filter.Status == "" || r.Status == filter.Status) &&
			(filter.DepartmentID == "" || r.Employee.DepartmentID == filter.DepartmentID)
	})
	return leave.RequestListResult{Requests: out, Total: len(out)}, nil
}

func (m *memBackend) GetRequest(_ context.Context, _ leave.Actor, id string) (leave.LeaveRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.requests[id]
	if !ok {
		return leave.LeaveRequest{}, leave.ErrNotFound
	}
	return r, nil
}

func (m *memBackend) CreateRequest(_ context.Context, _ leave.Actor, req leave.NewRequest) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	id := fmt.Sprintf("req-%d", m.nextID)
	m.requests[id] = leave.LeaveRequest{
		ID:            id,
		Employee:      req.Employee,
		LeaveType:     req.LeaveType,
		StartDate:     req.StartDate,
		EndDate:       req.EndDate,
		DaysRequested: req.DaysRequested,
		Reason:        req.Reason,
		Status:        leave.StatusPending,
		CreatedAt:     testToday,
	}
	return id, nil
}

func (m *memBackend) ApplyTransition(_ context.Context, t leave.Transition) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.requests[t.RequestID]
	if !ok {
		return leave.ErrNotFound
	}
	if r.Status != t.From {
		return leave.ErrInvalidTransition
	}
	if t.DeductDays > 0 {
		key := creditKey(t.EmployeeID, t.LeaveType, t.Year)
		c := m.credits[key]
		if err := c.Deduct(t.DeductDays); err != nil {
			return err
		}
		m.credits[key] = c
	}
	at := t.At
	switch t.Action {
	case leave.ActionPreApprove:
		r.SupervisorApprovedBy, r.SupervisorApprovalDate, r.SupervisorApprovalNotes = t.ActorName, &at, t.Notes
	case leave.ActionFinalApprove:
		r.ApprovedBy, r.ApprovalDate, r.ApprovalNotes = t.ActorName, &at, t.Notes
	case leave.ActionBypassApprove:
		r.ApprovedBy, r.ApprovalDate, r.BypassReason = t.ActorName, &at, t.Notes
	case leave.ActionReject:
		r.RejectedBy, r.RejectionReason = t.ActorName, t.Notes
	}
	r.Status = t.To
	m.requests[t.RequestID] = r
	return nil
}

func (m *memBackend) Credit(_ context.Context, employeeID, leaveType string, year int) (leave.LeaveCredit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.credits[creditKey(employeeID, leaveType, year)]
	if !ok {
		return leave.LeaveCredit{}, leave.ErrNotFound
	}
	return c.Normalize(), nil
}

func (m *memBackend) Credits(_ context.Context, employeeID string, year int) ([]leave.LeaveCredit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []leave.LeaveCredit{}
	for _, c := range m.credits {
		if c.EmployeeID == employeeID && c.Year == year {
			out = append(out, c.Normalize())
		}
	}
	return out, nil
}

func (m *memBackend) AdjustCredit(_ context.Context, adj leave.CreditAdjustment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := creditKey(adj.EmployeeID, adj.LeaveType, adj.Year)
	c := m.credits[key]
	c.EmployeeID, c.LeaveType, c.Year, c.TotalCredits = adj.EmployeeID, adj.LeaveType, adj.Year, adj.TotalCredits
	m.credits[key] = c.Normalize()
	return nil
}

func (m *memBackend) LeaveTypes(_ context.Context) ([]leave.LeaveType, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]leave.LeaveType(nil), m.types...), nil
}

func (m *memBackend) CreateLeaveType(_ context.Context, t leave.LeaveType) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t.ID = fmt.Sprintf("lt%d", len(m.types)+1)
	m.types = append(m.types, t)
	return t.ID, nil
}

type idempotencyEntry struct {
	hash    string
	pending bool
	resp    middleware.StoredResponse
}

type memIdempotency struct {
	mu      sync.Mutex
	entries map[string]idempotencyEntry
}

func (m *memIdempotency) Reserve(_ context.Context, userID, endpoint, key, hash string) (middleware.StoredResponse, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.entries == nil {
		m.entries = map[string]idempotencyEntry{}
	}
	id := userID + "|" + endpoint + "|" + key
	entry, ok := m.entries[id]
	switch {
	case !ok:
		m.entries[id] = idempotencyEntry{hash: hash, pending: true}
		return middleware.StoredResponse{}, false, nil
	case entry.hash != hash:
		return middleware.StoredResponse{}, false, middleware.ErrIdempotencyConflict
	case entry.pending:
		return middleware.StoredResponse{}, false, middleware.ErrIdempotencyInProgress
	}
	return entry.resp, true, nil
}

func (m *memIdempotency) Save(_ context.Context, userID, endpoint, key, hash string, resp middleware.StoredResponse) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[userID+"|"+endpoint+"|"+key] = idempotencyEntry{hash: hash, resp: resp}
	return nil
}

func (m *memIdempotency) Release(_ context.Context, userID, endpoint, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := userID + "|" + endpoint + "|" + key
	if entry, ok := m.entries[id]; ok && entry.pending {
		delete(m.entries, id)
	}
	return nil
}

type secretVerifier struct{}

func (secretVerifier) Verify(token string) (*auth.Claims, error) {
	return auth.ParseToken(testSecret, token)
}

type harness struct {
	t       *testing.T
	server  *httptest.Server
	backend *memBackend
}

// newHarness serves the authenticated API over an in-memory backend with
// the real services and middleware in front of it.
func newHarness(t *testing.T) *harness {
	t.Helper()
	log := zerolog.Nop()
	backend := newMemBackend()
	dir := memDirectory{employees: testEmployees}

	sessions := role.NewSessionManager(dir, role.NewResolver(log, nil), log)
	leaveService := leave.NewService(backend, nil, nil, log, leave.WithClock(func() time.Time { return testToday }))
	reportService := reports.NewService(leaveService, backend, nil, log)

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Auth(secretVerifier{}))
	router.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth(sessions))
			sessionhandler.NewHandler(sessions, log).RegisterRoutes(r)
			employeeshandler.NewHandler(dir, log).RegisterRoutes(r)
			leavehandler.NewHandler(leaveService, &memIdempotency{}, log).RegisterRoutes(r)
			reportshandler.NewHandler(reportService, log).RegisterRoutes(r)
		})
	})

	ts := httptest.NewServer(router)
	t.Cleanup(ts.Close)
	return &harness{t: t, server: ts, backend: backend}
}

func tokenFor(t *testing.T, uid string) string {
	t.Helper()
	for _, emp := range testEmployees {
		if emp.AuthID == uid {
			token, err := auth.GenerateToken(testSecret, auth.Claims{UserID: uid, Email: emp.Email, Name: emp.FullName()}, time.Hour)
			if err != nil {
				t.Fatalf("token: %v", err)
			}
			return token
		}
	}
	t.Fatalf("no test employee with auth id %s", uid)
	return ""
}

func (h *harness) do(method, path, uid string, body any, headers map[string]string) (*http.Response, envelope) {
	h.t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			h.t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequest(method, h.server.URL+"/api/v1"+path, reader)
	if err != nil {
		h.t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if uid != "" {
		req.Header.Set("Authorization", "Bearer "+tokenFor(h.t, uid))
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := h.server.Client().Do(req)
	if err != nil {
		h.t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		h.t.Fatalf("read body: %v", err)
	}
	var env envelope
	if len(raw) > 0 && strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(raw, &env); err != nil {
			h.t.Fatalf("decode %s %s: %v (%s)", method, path, err, raw)
		}
	}
	return resp, env
}

func (h *harness) expect(method, path, uid string, body any, want int) envelope {
	h.t.Helper()
	resp, env := h.do(method, path, uid, body, nil)
	if resp.StatusCode != want {
		h.t.Fatalf("%s %s as %s: expected %d, got %d (error=%s)", method, path, uid, want, resp.StatusCode, env.code())
	}
	return env
}

type requestBody struct {
	ID             string   `json:"id"`
	Status         string   `json:"status"`
	DaysRequested  int      `json:"days_requested"`
	ApprovedBy     string   `json:"approved_by"`
	BypassReason   string   `json:"bypass_reason"`
	AllowedActions []string `json:"allowed_actions"`
}

func decodeRequest(t *testing.T, env envelope) requestBody {
	t.Helper()
	var out requestBody
	if err := json.Unmarshal(env.Data, &out); err != nil {
		t.Fatalf("decode request: %v", err)
	}
	return out
}

func (h *harness) fileRequest(uid string) requestBody {
	h.t.Helper()
	env := h.expect(http.MethodPost, "/leave/requests", uid, map[string]string{
		"leave_type": "Vacation Leave",
		"start_date": "2026-03-09",
		"end_date":   "2026-03-11",
		"reason":     "family trip",
	}, http.StatusCreated)
	return decodeRequest(h.t, env)
}
