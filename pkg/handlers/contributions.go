package handlers

import (
	"net/http"

	"golang.org/x/sync/errgroup"

	"resqnet-web/pkg/config"
	"resqnet-web/pkg/markers"
	"resqnet-web/pkg/models"
	"resqnet-web/pkg/utils"
)

// ContributionHandler 捐助处理器
type ContributionHandler struct {
	config *config.Config
}

// NewContributionHandler 创建捐助处理器
func NewContributionHandler(cfg *config.Config) *ContributionHandler {
	return &ContributionHandler{config: cfg}
}

type requestContributions struct {
	Request       markers.RequestView         `json:"request"`
	Contributions []models.Contribution       `json:"contributions"`
	Pins          []markers.ContributionGroup `json:"pins"`
}

// ReceivedContributions lists, per own request, what responders contributed.
func (h *ContributionHandler) ReceivedContributions(w http.ResponseWriter, r *http.Request) {
	page, ok := currentPage(w, r)
	if !ok {
		return
	}
	requests, err := page.API.ListMyRequests(r.Context())
	if err != nil {
		writeAPIError(w, r, page, err)
		return
	}
	all, err := page.API.ListContributionsForRequests(r.Context(), requests)
	if err != nil {
		writeAPIError(w, r, page, err)
		return
	}

	byRequest := make(map[int64][]models.Contribution)
	for _, c := range all {
		byRequest[c.RequestID] = append(byRequest[c.RequestID], c)
	}
	out := make([]requestContributions, 0, len(requests))
	total := 0
	for _, v := range markers.ViewRequests(requests) {
		list := byRequest[v.ID]
		if list == nil {
			list = []models.Contribution{}
		}
		total += len(list)
		out = append(out, requestContributions{Request: v, Contributions: list, Pins: markers.GroupContributions(list)})
	}
	utils.WriteListResponse(w, out, total, nil)
}

// MyContributions lists what the logged-in responder has contributed.
func (h *ContributionHandler) MyContributions(w http.ResponseWriter, r *http.Request) {
	page, ok := currentPage(w, r)
	if !ok {
		return
	}
	st := page.Session.State()
	if st.Identity == nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}

	var (
		mine     []models.Contribution
		requests []models.ResourceRequest
	)
	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() (err error) {
		mine, err = page.API.ListContributionsByResponder(ctx, st.Identity.Subject)
		return err
	})
	g.Go(func() (err error) {
		requests, err = page.API.ListRequests(ctx)
		return err
	})
	if err := g.Wait(); err != nil {
		writeAPIError(w, r, page, err)
		return
	}

	byID := make(map[int64]markers.RequestView, len(requests))
	for _, v := range markers.ViewRequests(requests) {
		byID[v.ID] = v
	}
	type entry struct {
		models.Contribution
		Request *markers.RequestView `json:"request,omitempty"`
	}
	out := make([]entry, 0, len(mine))
	for _, c := range mine {
		e := entry{Contribution: c}
		if v, ok := byID[c.RequestID]; ok {
			e.Request = &v
		}
		out = append(out, e)
	}
	utils.WriteListResponse(w, out, len(out), nil)
}

// Contribute 提交捐助
func (h *ContributionHandler) Contribute(w http.ResponseWriter, r *http.Request) {
	page, ok := currentPage(w, r)
	if !ok {
		return
	}
	var in models.ContributionInput
	if !decodeBody(w, r, &in) {
		return
	}
	created, err := page.API.CreateContribution(r.Context(), in)
	if err != nil {
		writeAPIError(w, r, page, err)
		return
	}
	utils.WriteCreatedResponse(w, created)
}
