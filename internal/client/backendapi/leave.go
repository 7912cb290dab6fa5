package backendapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"hrims/internal/domain/leave"
)

var _ leave.Backend = (*Client)(nil)

const (
	requestsPath = "/api/leave-requests/"
	creditsPath  = "/api/leave-credits/"
	typesPath    = "/api/leave-types/"
)

// actorQuery carries the caller's email so the backend can correlate the
// call with its own employee record.
func actorQuery(actor leave.Actor) url.Values {
	q := url.Values{}
	if actor.Email != "" {
		q.Set("employee_email", actor.Email)
	}
	return q
}

func (c *Client) MyRequests(ctx context.Context, actor leave.Actor) ([]leave.LeaveRequest, error) {
	return c.requestList(ctx, requestsPath+"my_requests/", actorQuery(actor))
}

func (c *Client) PendingForApproval(ctx context.Context, actor leave.Actor) ([]leave.LeaveRequest, error) {
	return c.requestList(ctx, requestsPath+"pending_for_approval/", actorQuery(actor))
}

func (c *Client) PendingForHRApproval(ctx context.Context, actor leave.Actor) ([]leave.LeaveRequest, error) {
	return c.requestList(ctx, requestsPath+"pending_for_hr_approval/", actorQuery(actor))
}

func (c *Client) ListRequests(ctx context.Context, actor leave.Actor, filter leave.RequestFilter) (leave.RequestListResult, error) {
	q := actorQuery(actor)
	if filter.Status != "" {
		q.Set("status", string(filter.Status))
	}
	if filter.EmployeeID != "" {
		q.Set("employee", filter.EmployeeID)
	}
	if filter.DepartmentID != "" {
		q.Set("department", filter.DepartmentID)
	}
	if filter.Year > 0 {
		q.Set("year", strconv.Itoa(filter.Year))
	}
	if filter.Limit > 0 {
		q.Set("limit", strconv.Itoa(filter.Limit))
		q.Set("offset", strconv.Itoa(filter.Offset))
	}

	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, requestsPath, q, nil, &raw); err != nil {
		return leave.RequestListResult{}, mapLeaveError(err)
	}
	items, total, err := decodeList[wireRequest](raw)
	if err != nil {
		return leave.RequestListResult{}, err
	}
	return leave.RequestListResult{Requests: requestsToDomain(items), Total: total}, nil
}

func (c *Client) GetRequest(ctx context.Context, actor leave.Actor, id string) (leave.LeaveRequest, error) {
	if strings.TrimSpace(id) == "" {
		return leave.LeaveRequest{}, leave.ErrNotFound
	}
	var out wireRequest
	if err := c.do(ctx, http.MethodGet, requestsPath+url.PathEscape(id)+"/", actorQuery(actor), nil, &out); err != nil {
		return leave.LeaveRequest{}, mapLeaveError(err)
	}
	return out.toDomain(), nil
}

type createRequestBody struct {
	Employee      string `json:"employee"`
	EmployeeEmail string `json:"employee_email,omitempty"`
	LeaveType     string `json:"leave_type"`
	StartDate     string `json:"start_date"`
	EndDate       string `json:"end_date"`
	DaysRequested int    `json:"days_requested"`
	Reason        string `json:"reason"`
}

func (c *Client) CreateRequest(ctx context.Context, actor leave.Actor, req leave.NewRequest) (string, error) {
	body := createRequestBody{
		Employee:      req.Employee.ID,
		EmployeeEmail: req.Employee.Email,
		LeaveType:     req.LeaveType,
		StartDate:     req.StartDate.Format(time.DateOnly),
		EndDate:       req.EndDate.Format(time.DateOnly),
		DaysRequested: req.DaysRequested,
		Reason:        req.Reason,
	}
	var out wireRequest
	if err := c.do(ctx, http.MethodPost, requestsPath, actorQuery(actor), body, &out); err != nil {
		return "", mapLeaveError(err)
	}
	if out.ID == "" {
		return "", fmt.Errorf("backend api: create returned no id")
	}
	return string(out.ID), nil
}

type transitionBody struct {
	ExpectedStatus  string `json:"expected_status"`
	ApproverName    string `json:"approver_name,omitempty"`
	ApproverEmail   string `json:"approver_email,omitempty"`
	Notes           string `json:"notes,omitempty"`
	BypassReason    string `json:"bypass_reason,omitempty"`
	RejectionReason string `json:"rejection_reason,omitempty"`
	DeductDays      int    `json:"deduct_days,omitempty"`
}

var transitionPaths = map[leave.Action]string{
	leave.ActionPreApprove:    "supervisor_approve/",
	leave.ActionFinalApprove:  "approve_request/",
	leave.ActionBypassApprove: "bypass_approve/",
	leave.ActionReject:        "reject_request/",
	leave.ActionCancel:        "cancel/",
}

// ApplyTransition posts the state change. The backend owns the status
// precondition and the credit deduction.
func (c *Client) ApplyTransition(ctx context.Context, t leave.Transition) error {
	suffix, ok := transitionPaths[t.Action]
	if !ok {
		return fmt.Errorf("%w: %s", leave.ErrInvalidTransition, t.Action)
	}
	body := transitionBody{
		ExpectedStatus: string(t.From),
		ApproverName:   t.ActorName,
		ApproverEmail:  t.ActorEmail,
		DeductDays:     t.DeductDays,
	}
	switch t.Action {
	case leave.ActionBypassApprove:
		body.BypassReason = t.Notes
	case leave.ActionReject:
		body.RejectionReason = t.Notes
	default:
		body.Notes = t.Notes
	}
	q := url.Values{}
	if t.ActorEmail != "" {
		q.Set("employee_email", t.ActorEmail)
	}
	path := requestsPath + url.PathEscape(t.RequestID) + "/" + suffix
	if err := c.do(ctx, http.MethodPost, path, q, body, nil); err != nil {
		return mapLeaveError(err)
	}
	return nil
}

func (c *Client) Credit(ctx context.Context, employeeID, leaveType string, year int) (leave.LeaveCredit, error) {
	q := url.Values{
		"employee_id": {employeeID},
		"year":        {strconv.Itoa(year)},
		"leave_type":  {leaveType},
	}
	credits, err := c.credits(ctx, q)
	if err != nil {
		return leave.LeaveCredit{}, err
	}
	for _, credit := range credits {
		if strings.EqualFold(credit.LeaveType, leaveType) && (credit.Year == 0 || credit.Year == year) {
			return credit, nil
		}
	}
	return leave.LeaveCredit{}, leave.ErrNotFound
}

func (c *Client) Credits(ctx context.Context, employeeID string, year int) ([]leave.LeaveCredit, error) {
	return c.credits(ctx, url.Values{"employee_id": {employeeID}, "year": {strconv.Itoa(year)}})
}

func (c *Client) credits(ctx context.Context, q url.Values) ([]leave.LeaveCredit, error) {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, creditsPath, q, nil, &raw); err != nil {
		return nil, mapLeaveError(err)
	}
	items, _, err := decodeList[wireCredit](raw)
	if err != nil {
		return nil, err
	}
	out := make([]leave.LeaveCredit, 0, len(items))
	for _, item := range items {
		out = append(out, item.toDomain())
	}
	return out, nil
}

type adjustBody struct {
	EmployeeID   string  `json:"employee_id"`
	LeaveType    string  `json:"leave_type"`
	Year         int     `json:"year"`
	TotalCredits float64 `json:"total_credits"`
	AdjustedBy   string  `json:"adjusted_by,omitempty"`
	Reason       string  `json:"reason,omitempty"`
}

func (c *Client) AdjustCredit(ctx context.Context, adj leave.CreditAdjustment) error {
	body := adjustBody{
		EmployeeID:   adj.EmployeeID,
		LeaveType:    adj.LeaveType,
		Year:         adj.Year,
		TotalCredits: adj.TotalCredits,
		AdjustedBy:   adj.AdjustedBy,
		Reason:       adj.Reason,
	}
	if err := c.do(ctx, http.MethodPost, creditsPath+"adjust/", nil, body, nil); err != nil {
		return mapLeaveError(err)
	}
	return nil
}

func (c *Client) LeaveTypes(ctx context.Context) ([]leave.LeaveType, error) {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, typesPath, nil, nil, &raw); err != nil {
		return nil, mapLeaveError(err)
	}
	items, _, err := decodeList[wireLeaveType](raw)
	if err != nil {
		return nil, err
	}
	out := make([]leave.LeaveType, 0, len(items))
	for _, item := range items {
		out = append(out, item.toDomain())
	}
	return out, nil
}

func (c *Client) CreateLeaveType(ctx context.Context, t leave.LeaveType) (string, error) {
	body := map[string]any{"code": t.Code, "name": t.Name, "default_credits": t.DefaultCredits}
	var out wireLeaveType
	if err := c.do(ctx, http.MethodPost, typesPath, nil, body, &out); err != nil {
		return "", mapLeaveError(err)
	}
	return string(out.ID), nil
}

func (c *Client) requestList(ctx context.Context, path string, q url.Values) ([]leave.LeaveRequest, error) {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, path, q, nil, &raw); err != nil {
		return nil, mapLeaveError(err)
	}
	items, _, err := decodeList[wireRequest](raw)
	if err != nil {
		return nil, err
	}
	return requestsToDomain(items), nil
}

func requestsToDomain(items []wireRequest) []leave.LeaveRequest {
	out := make([]leave.LeaveRequest, 0, len(items))
	for _, item := range items {
		out = append(out, item.toDomain())
	}
	return out
}

// mapLeaveError keeps the APIError in the chain and adds the workflow
// sentinel the status implies.
func mapLeaveError(err error) error {
	switch statusOf(err) {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %w", leave.ErrNotFound, err)
	case http.StatusConflict:
		return fmt.Errorf("%w: %w", leave.ErrInvalidTransition, err)
	case http.StatusBadRequest:
		if strings.Contains(strings.ToLower(err.Error()), "insufficient") {
			return fmt.Errorf("%w: %w", leave.ErrInsufficientCredits, err)
		}
	}
	return err
}
