package client

import (
	"context"
	"fmt"
	"net/http"

	"resqnet-web/pkg/models"
)

// AdminKind is a collection the admin endpoints manage.
type AdminKind string

const (
	AdminUsers         AdminKind = "users"
	AdminDisasters     AdminKind = "disasters"
	AdminRequests      AdminKind = "requests"
	AdminContributions AdminKind = "contributions"
	AdminNotifications AdminKind = "notifications"
)

// AdminKinds lists every managed collection.
var AdminKinds = []AdminKind{AdminUsers, AdminDisasters, AdminRequests, AdminContributions, AdminNotifications}

// ParseAdminKind validates a path segment.
func ParseAdminKind(s string) (AdminKind, bool) {
	for _, k := range AdminKinds {
		if string(k) == s {
			return k, true
		}
	}
	return "", false
}

func (c *Client) AdminListUsers(ctx context.Context) ([]models.User, error) {
	out := []models.User{}
	if err := c.getList(ctx, "/admin/users", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) AdminListDisasters(ctx context.Context) ([]models.Disaster, error) {
	out := []models.Disaster{}
	if err := c.getList(ctx, "/admin/disasters", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) AdminListRequests(ctx context.Context) ([]models.ResourceRequest, error) {
	out := []models.ResourceRequest{}
	if err := c.getList(ctx, "/admin/requests", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) AdminListContributions(ctx context.Context) ([]models.Contribution, error) {
	out := []models.Contribution{}
	if err := c.getList(ctx, "/admin/contributions", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) AdminListNotifications(ctx context.Context) ([]models.Notification, error) {
	out := []models.Notification{}
	if err := c.getList(ctx, "/admin/notifications", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// AdminList dispatches to the typed list call for kind.
func (c *Client) AdminList(ctx context.Context, kind AdminKind) (any, error) {
	switch kind {
	case AdminUsers:
		return c.AdminListUsers(ctx)
	case AdminDisasters:
		return c.AdminListDisasters(ctx)
	case AdminRequests:
		return c.AdminListRequests(ctx)
	case AdminContributions:
		return c.AdminListContributions(ctx)
	case AdminNotifications:
		return c.AdminListNotifications(ctx)
	}
	return nil, fmt.Errorf("%w: unknown admin collection %q", ErrValidation, kind)
}

// AdminDelete DELETE /admin/{kind}/{id}
func (c *Client) AdminDelete(ctx context.Context, kind AdminKind, id int64) error {
	if _, ok := ParseAdminKind(string(kind)); !ok {
		return fmt.Errorf("%w: unknown admin collection %q", ErrValidation, kind)
	}
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/admin/%s/%d", kind, id), nil, nil)
}

// AdminSummary GET /admin/summary
func (c *Client) AdminSummary(ctx context.Context) (*models.Summary, error) {
	var out models.Summary
	if err := c.do(ctx, http.MethodGet, "/admin/summary", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
