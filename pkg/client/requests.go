package client

import (
	"context"
	"net/http"
	"strings"

	"resqnet-web/pkg/models"
)

// ListRequests GET /requests (RESPONDER, ADMIN)
func (c *Client) ListRequests(ctx context.Context) ([]models.ResourceRequest, error) {
	out := []models.ResourceRequest{}
	if err := c.getList(ctx, "/requests", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListMyRequests GET /requests/my (REPORTER)
func (c *Client) ListMyRequests(ctx context.Context) ([]models.ResourceRequest, error) {
	out := []models.ResourceRequest{}
	if err := c.getList(ctx, "/requests/my", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateRequest validates and submits a resource request.
func (c *Client) CreateRequest(ctx context.Context, in models.ResourceRequestInput) (*models.ResourceRequest, error) {
	in.Category = strings.TrimSpace(in.Category)
	if err := in.Validate(); err != nil {
		return nil, err
	}
	var out models.ResourceRequest
	if err := c.do(ctx, http.MethodPost, "/requests", in, &out, withIdempotencyKey()); err != nil {
		return nil, err
	}
	return &out, nil
}
