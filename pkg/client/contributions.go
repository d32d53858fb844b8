package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"golang.org/x/sync/errgroup"

	"resqnet-web/pkg/models"
)

// FanOutLimit caps concurrent per-request contribution fetches.
const FanOutLimit = 4

// ListContributions GET /contributions
func (c *Client) ListContributions(ctx context.Context) ([]models.Contribution, error) {
	out := []models.Contribution{}
	if err := c.getList(ctx, "/contributions", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListContributionsByRequest GET /contributions/request/{id}
func (c *Client) ListContributionsByRequest(ctx context.Context, requestID int64) ([]models.Contribution, error) {
	out := []models.Contribution{}
	if err := c.getList(ctx, fmt.Sprintf("/contributions/request/%d", requestID), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListContributionsForRequests fetches contributions request by request,
// FanOutLimit at a time, in request order. A failure on one request is logged
// and skipped so a map still renders; a rejected credential or a cancelled
// context aborts the whole fan-out.
func (c *Client) ListContributionsForRequests(ctx context.Context, requests []models.ResourceRequest) ([]models.Contribution, error) {
	perRequest := make([][]models.Contribution, len(requests))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(FanOutLimit)
	for i, req := range requests {
		i, req := i, req
		g.Go(func() error {
			list, err := c.ListContributionsByRequest(ctx, req.ID)
			if err != nil {
				if errors.Is(err, ErrUnauthenticated) || errors.Is(err, context.Canceled) {
					return err
				}
				c.log.Warn().Err(err).Int64("request_id", req.ID).Msg("skipping contributions for request")
				return nil
			}
			perRequest[i] = list
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]models.Contribution, 0)
	for _, list := range perRequest {
		out = append(out, list...)
	}
	return out, nil
}

// ListContributionsByResponder GET /contributions/responder/{email}
func (c *Client) ListContributionsByResponder(ctx context.Context, email string) ([]models.Contribution, error) {
	out := []models.Contribution{}
	if err := c.getList(ctx, "/contributions/responder/"+url.PathEscape(email), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateContribution validates and submits a contribution.
func (c *Client) CreateContribution(ctx context.Context, in models.ContributionInput) (*models.Contribution, error) {
	in = in.Normalize()
	if err := in.Validate(); err != nil {
		return nil, err
	}
	var out models.Contribution
	if err := c.do(ctx, http.MethodPost, "/contributions", in, &out, withIdempotencyKey()); err != nil {
		return nil, err
	}
	return &out, nil
}
