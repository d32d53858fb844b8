package handlers

import (
	"net/http"

	"golang.org/x/sync/errgroup"

	"resqnet-web/pkg/config"
	"resqnet-web/pkg/markers"
	"resqnet-web/pkg/models"
	"resqnet-web/pkg/utils"
)

// DashboardHandler 地图视图
type DashboardHandler struct {
	config *config.Config
}

// NewDashboardHandler 创建地图视图处理器
func NewDashboardHandler(cfg *config.Config) *DashboardHandler {
	return &DashboardHandler{config: cfg}
}

type mapView struct {
	Role    models.Role                  `json:"role"`
	Markers []markers.DisasterMarker     `json:"markers"`
	Legend  map[models.DisplayStatus]int `json:"legend"`
	// Requests the viewer can act on: their own as reporter, all otherwise.
	Requests []markers.RequestView `json:"requests"`
}

type adminMapView struct {
	mapView
	Reporters  []models.User `json:"reporters"`
	Responders []models.User `json:"responders"`
}

// Dashboard is the role-specific map. Reporters see their own requests and
// the contributions made against them; responders and admins see every
// request with its contributions.
func (h *DashboardHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	page, ok := currentPage(w, r)
	if !ok {
		return
	}
	role := page.Session.State().Role()

	var (
		disasters     []models.Disaster
		requests      []models.ResourceRequest
		contributions []models.Contribution
	)
	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() (err error) {
		disasters, err = page.API.ListDisasters(ctx)
		return err
	})
	switch role {
	case models.RoleReporter:
		g.Go(func() (err error) {
			requests, err = page.API.ListMyRequests(ctx)
			return err
		})
		g.Go(func() (err error) {
			contributions, err = page.API.ListContributions(ctx)
			return err
		})
	case models.RoleResponder, models.RoleAdmin:
		g.Go(func() (err error) {
			requests, err = page.API.ListRequests(ctx)
			if err != nil {
				return err
			}
			contributions, err = page.API.ListContributionsForRequests(ctx, requests)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		writeAPIError(w, r, page, err)
		return
	}

	utils.WriteSuccessResponse(w, buildMapView(role, disasters, requests, contributions))
}

// AdminDashboard is the admin map: every disaster, request and contribution
// plus the reporter/responder rosters.
func (h *DashboardHandler) AdminDashboard(w http.ResponseWriter, r *http.Request) {
	page, ok := currentPage(w, r)
	if !ok {
		return
	}

	var (
		disasters     []models.Disaster
		requests      []models.ResourceRequest
		contributions []models.Contribution
		users         []models.User
	)
	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() (err error) {
		disasters, err = page.API.ListDisasters(ctx)
		return err
	})
	g.Go(func() (err error) {
		users, err = page.API.AdminListUsers(ctx)
		return err
	})
	g.Go(func() (err error) {
		requests, err = page.API.ListRequests(ctx)
		if err != nil {
			return err
		}
		contributions, err = page.API.ListContributionsForRequests(ctx, requests)
		return err
	})
	if err := g.Wait(); err != nil {
		writeAPIError(w, r, page, err)
		return
	}

	view := adminMapView{
		mapView:    buildMapView(models.RoleAdmin, disasters, requests, contributions),
		Reporters:  []models.User{},
		Responders: []models.User{},
	}
	for _, u := range users {
		switch u.Role {
		case models.RoleReporter:
			view.Reporters = append(view.Reporters, u)
		case models.RoleResponder:
			view.Responders = append(view.Responders, u)
		}
	}
	utils.WriteSuccessResponse(w, view)
}

func buildMapView(role models.Role, disasters []models.Disaster, requests []models.ResourceRequest, contributions []models.Contribution) mapView {
	ms := markers.BuildDisasterMarkers(disasters, requests, contributions)
	return mapView{
		Role:     role,
		Markers:  ms,
		Legend:   markers.CountByStatus(ms),
		Requests: markers.ViewRequests(requests),
	}
}
