package backendapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"hrims/internal/domain/directory"
	"hrims/internal/domain/leave"
	"hrims/internal/requestctx"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := New(srv.URL, "svc-token", 2*time.Second, zerolog.Nop())
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return c
}

func TestNewRejectsBadURL(t *testing.T) {
	if _, err := New("ftp://hr.example.edu", "", time.Second, zerolog.Nop()); err == nil {
		t.Fatal("expected scheme error")
	}
}

func TestEmployeeByEmailSendsTokenAndDecodes(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/employees/by_email/" || r.URL.Query().Get("email") != "dean@example.edu" {
			t.Errorf("unexpected request %s", r.URL)
		}
		if r.Header.Get("Authorization") != "Bearer svc-token" {
			t.Errorf("missing bearer token")
		}
		if r.Header.Get("X-Request-ID") != "req-1" {
			t.Errorf("request id not forwarded")
		}
		_, _ = io.WriteString(w, `{"id": 42, "email": "dean@example.edu", "first_name": "Lito", "departmentId": 7, "academic_role_level": 1, "isHR": false}`)
	})

	ctx := requestctx.WithRequestID(context.Background(), "req-1")
	emp, err := c.EmployeeByEmail(ctx, "dean@example.edu")
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if emp.ID != "42" || emp.DepartmentID != "7" || emp.AcademicRoleLevel == nil || *emp.AcademicRoleLevel != 1 {
		t.Fatalf("unexpected employee: %+v", emp)
	}
}

func TestEmployeeNotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"detail": "Not found."}`)
	})
	_, err := c.EmployeeByAuthID(context.Background(), "uid-x")
	if !errors.Is(err, directory.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Message != "Not found." {
		t.Fatalf("expected APIError in chain, got %v", err)
	}
}

func TestPendingForApprovalPassesEmailHint(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/leave-requests/pending_for_approval/" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("employee_email") != "chair@example.edu" {
			t.Errorf("missing employee_email hint")
		}
		_, _ = io.WriteString(w, `[{"id": 1, "employee": {"id": 9, "programId": "P1"}, "leave_type": "Vacation Leave",
			"start_date": "2026-03-09", "end_date": "2026-03-11", "days_requested": 3, "status": "Pending",
			"created_at": "2026-03-01T08:00:00Z"}]`)
	})

	reqs, err := c.PendingForApproval(context.Background(), leave.Actor{Email: "chair@example.edu"})
	if err != nil {
		t.Fatalf("queue failed: %v", err)
	}
	if len(reqs) != 1 {
		t.Fatalf("expected one request, got %d", len(reqs))
	}
	r := reqs[0]
	if r.ID != "1" || r.Employee.ID != "9" || r.Status != leave.StatusPending || r.DaysRequested != 3 {
		t.Fatalf("unexpected request: %+v", r)
	}
	if r.StartDate.Format(time.DateOnly) != "2026-03-09" || r.CreatedAt.IsZero() {
		t.Fatalf("dates not parsed: %+v", r)
	}
}

func TestListRequestsPaginatedEnvelope(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("status") != "Approved" || q.Get("limit") != "2" || q.Get("offset") != "4" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		_, _ = io.WriteString(w, `{"count": 9, "results": [{"id": "a", "status": "Approved"}, {"id": "b", "status": "Approved"}]}`)
	})
	res, err := c.ListRequests(context.Background(), leave.Actor{}, leave.RequestFilter{Status: leave.StatusApproved, Limit: 2, Offset: 4})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if res.Total != 9 || len(res.Requests) != 2 {
		t.Fatalf("unexpected page: %+v", res)
	}
}

func TestApplyTransitionPostsExpectedStatus(t *testing.T) {
	var got transitionBody
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/leave-requests/r1/reject_request/" {
			t.Errorf("unexpected call %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	})

	err := c.ApplyTransition(context.Background(), leave.Transition{
		RequestID: "r1",
		Action:    leave.ActionReject,
		From:      leave.StatusPending,
		ActorName: "Paz Cruz",
		Notes:     "short staffed",
	})
	if err != nil {
		t.Fatalf("transition failed: %v", err)
	}
	if got.ExpectedStatus != "Pending" || got.RejectionReason != "short staffed" || got.Notes != "" {
		t.Fatalf("unexpected body: %+v", got)
	}
}

func TestApplyTransitionErrorMapping(t *testing.T) {
	cases := []struct {
		status int
		body   string
		want   error
	}{
		{http.StatusConflict, `{"error": "request is no longer pending"}`, leave.ErrInvalidTransition},
		{http.StatusBadRequest, `{"error": "Insufficient leave credits"}`, leave.ErrInsufficientCredits},
		{http.StatusNotFound, `{"detail": "Not found."}`, leave.ErrNotFound},
	}
	for _, tc := range cases {
		c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(tc.status)
			_, _ = io.WriteString(w, tc.body)
		})
		err := c.ApplyTransition(context.Background(), leave.Transition{RequestID: "r1", Action: leave.ActionFinalApprove})
		if !errors.Is(err, tc.want) {
			t.Fatalf("status %d: expected %v, got %v", tc.status, tc.want, err)
		}
	}

	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = io.WriteString(w, "<html>bad gateway</html>")
	})
	err := c.ApplyTransition(context.Background(), leave.Transition{RequestID: "r1", Action: leave.ActionCancel})
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusBadGateway || strings.Contains(apiErr.Message, "<html>") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCreditPicksMatchingType(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("employee_id") != "e1" || r.URL.Query().Get("year") != "2026" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		_, _ = io.WriteString(w, `[
			{"employee_id": "e1", "leave_type": "Sick Leave", "year": 2026, "total_credits": 15, "used_credits": 1},
			{"employee_id": "e1", "leave_type": "Vacation Leave", "year": 2026, "total_credits": 10, "used_credits": 4, "remaining_credits": 99}
		]`)
	})
	credit, err := c.Credit(context.Background(), "e1", "vacation leave", 2026)
	if err != nil {
		t.Fatalf("credit failed: %v", err)
	}
	if credit.LeaveType != "Vacation Leave" || credit.RemainingCredits != 6 {
		t.Fatalf("unexpected credit: %+v", credit)
	}
	if _, err := c.Credit(context.Background(), "e1", "Emergency Leave", 2026); !errors.Is(err, leave.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCreateRequestReturnsID(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body createRequestBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode: %v", err)
		}
		if body.StartDate != "2026-03-09" || body.DaysRequested != 2 || body.Employee != "e1" {
			t.Errorf("unexpected body %+v", body)
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"id": 77, "status": "Pending"}`)
	})
	id, err := c.CreateRequest(context.Background(), leave.Actor{}, leave.NewRequest{
		Employee:      leave.EmployeeRef{ID: "e1"},
		LeaveType:     "Vacation Leave",
		StartDate:     time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC),
		EndDate:       time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
		DaysRequested: 2,
	})
	if err != nil || id != "77" {
		t.Fatalf("unexpected create result %q %v", id, err)
	}
}

func TestErrorMessageShapes(t *testing.T) {
	cases := []struct{ body, want string }{
		{`{"detail": "Authentication credentials were not provided."}`, "Authentication credentials were not provided."},
		{`{"end_date": ["must be after start_date"]}`, "end_date: must be after start_date"},
		{`plain failure`, "plain failure"},
		{``, "500 Internal Server Error"},
	}
	for _, tc := range cases {
		if got := errorMessage([]byte(tc.body), "500 Internal Server Error"); got != tc.want {
			t.Fatalf("errorMessage(%q) = %q want %q", tc.body, got, tc.want)
		}
	}
}
