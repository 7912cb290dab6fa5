package backendapi

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"hrims/internal/domain/directory"
)

var _ directory.Source = (*Client)(nil)

func (c *Client) EmployeeByEmail(ctx context.Context, email string) (directory.Employee, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return directory.Employee{}, directory.ErrNotFound
	}
	return c.employee(ctx, "/api/employees/by_email/", url.Values{"email": {email}})
}

func (c *Client) EmployeeByID(ctx context.Context, id string) (directory.Employee, error) {
	if strings.TrimSpace(id) == "" {
		return directory.Employee{}, directory.ErrNotFound
	}
	return c.employee(ctx, "/api/employees/"+url.PathEscape(id)+"/", nil)
}

func (c *Client) EmployeeByAuthID(ctx context.Context, authID string) (directory.Employee, error) {
	if strings.TrimSpace(authID) == "" {
		return directory.Employee{}, directory.ErrNotFound
	}
	return c.employee(ctx, "/api/employees/by_auth_id/", url.Values{"auth_id": {authID}})
}

func (c *Client) employee(ctx context.Context, path string, query url.Values) (directory.Employee, error) {
	var out wireEmployee
	if err := c.do(ctx, http.MethodGet, path, query, nil, &out); err != nil {
		if statusOf(err) == http.StatusNotFound {
			return directory.Employee{}, fmt.Errorf("%w: %w", directory.ErrNotFound, err)
		}
		return directory.Employee{}, err
	}
	if out.ID == "" {
		return directory.Employee{}, directory.ErrNotFound
	}
	return out.toDomain(), nil
}
