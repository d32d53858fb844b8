package client

import (
	"context"
	"fmt"
	"net/http"

	"resqnet-web/pkg/models"
)

// ListDisasters GET /disasters
func (c *Client) ListDisasters(ctx context.Context) ([]models.Disaster, error) {
	out := []models.Disaster{}
	if err := c.getList(ctx, "/disasters", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetDisaster GET /disasters/{id}
func (c *Client) GetDisaster(ctx context.Context, id int64) (*models.Disaster, error) {
	var out models.Disaster
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/disasters/%d", id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateDisaster validates and submits a disaster report.
func (c *Client) CreateDisaster(ctx context.Context, in models.DisasterInput) (*models.Disaster, error) {
	in = in.Normalize()
	if err := in.Validate(); err != nil {
		return nil, err
	}
	var out models.Disaster
	if err := c.do(ctx, http.MethodPost, "/disasters", in, &out, withIdempotencyKey()); err != nil {
		return nil, err
	}
	return &out, nil
}
