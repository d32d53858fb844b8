package client

import (
	"context"
	"fmt"
	"net/http"

	"resqnet-web/pkg/models"
)

// ListNotifications GET /notifications
func (c *Client) ListNotifications(ctx context.Context) ([]models.Notification, error) {
	out := []models.Notification{}
	if err := c.getList(ctx, "/notifications", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListUnreadNotifications GET /notifications/unread
func (c *Client) ListUnreadNotifications(ctx context.Context) ([]models.Notification, error) {
	out := []models.Notification{}
	if err := c.getList(ctx, "/notifications/unread", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// MarkNotificationRead PUT /notifications/{id}/read
func (c *Client) MarkNotificationRead(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodPut, fmt.Sprintf("/notifications/%d/read", id), nil, nil)
}

// DeleteNotification DELETE /notifications/{id}
func (c *Client) DeleteNotification(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/notifications/%d", id), nil, nil)
}
