package client

import (
	"context"
	"net/http"
	"strings"

	"resqnet-web/pkg/models"
)

// Login exchanges email and password for a credential.
func (c *Client) Login(ctx context.Context, req models.UserLoginRequest) (*models.UserLoginResponse, error) {
	req.Email = strings.TrimSpace(req.Email)
	if err := req.Validate(); err != nil {
		return nil, err
	}
	var out models.UserLoginResponse
	if err := c.do(ctx, http.MethodPost, "/auth/login", req, &out); err != nil {
		return nil, err
	}
	if out.Token == "" {
		return nil, &APIError{StatusCode: http.StatusBadGateway, Method: http.MethodPost, Endpoint: "/auth/login",
			Message: "login response did not include a token"}
	}
	return &out, nil
}

// Register creates a REPORTER or RESPONDER account.
func (c *Client) Register(ctx context.Context, req models.UserRegisterRequest) (*models.User, error) {
	req.Email = strings.TrimSpace(req.Email)
	req.Name = strings.TrimSpace(req.Name)
	if role, ok := models.ParseRole(string(req.Role)); ok {
		req.Role = role
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	var out models.User
	if err := c.do(ctx, http.MethodPost, "/auth/register", req, &out, withIdempotencyKey()); err != nil {
		return nil, err
	}
	return &out, nil
}
