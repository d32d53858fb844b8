package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"resqnet-web/pkg/config"
	"resqnet-web/pkg/markers"
	"resqnet-web/pkg/models"
	"resqnet-web/pkg/utils"
)

// RequestHandler 物资请求处理器
type RequestHandler struct {
	config *config.Config
}

// NewRequestHandler 创建物资请求处理器
func NewRequestHandler(cfg *config.Config) *RequestHandler {
	return &RequestHandler{config: cfg}
}

// MyRequests 报告者自己的请求，带展示状态与进度
func (h *RequestHandler) MyRequests(w http.ResponseWriter, r *http.Request) {
	page, ok := currentPage(w, r)
	if !ok {
		return
	}
	requests, err := page.API.ListMyRequests(r.Context())
	if err != nil {
		writeAPIError(w, r, page, err)
		return
	}
	views := markers.ViewRequests(requests)
	utils.WriteListResponse(w, views, len(views), countByDisplayStatus(views))
}

// ListRequests lists every request. ?status= filters on the display status
// (REPORTED, PARTIAL, FULFILLED, case-insensitive) and ?disasterId= on the
// disaster.
func (h *RequestHandler) ListRequests(w http.ResponseWriter, r *http.Request) {
	page, ok := currentPage(w, r)
	if !ok {
		return
	}

	var (
		status     models.RequestStatus
		disasterID int64
	)
	if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
		var ok bool
		if status, ok = models.ParseStatusFilter(raw); !ok {
			utils.WriteBadRequestResponse(w, "status must be REPORTED, PARTIAL or FULFILLED")
			return
		}
	}
	if raw := r.URL.Query().Get("disasterId"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			utils.WriteBadRequestResponse(w, "disasterId must be a positive integer")
			return
		}
		disasterID = id
	}

	requests, err := page.API.ListRequests(r.Context())
	if err != nil {
		writeAPIError(w, r, page, err)
		return
	}

	views := make([]markers.RequestView, 0, len(requests))
	for _, v := range markers.ViewRequests(requests) {
		if status != "" && v.DisplayStatus != status {
			continue
		}
		if disasterID != 0 && v.DisasterID != disasterID {
			continue
		}
		views = append(views, v)
	}
	utils.WriteListResponse(w, views, len(views), countByDisplayStatus(views))
}

// CreateRequest 创建物资请求
func (h *RequestHandler) CreateRequest(w http.ResponseWriter, r *http.Request) {
	page, ok := currentPage(w, r)
	if !ok {
		return
	}
	var in models.ResourceRequestInput
	if !decodeBody(w, r, &in) {
		return
	}
	created, err := page.API.CreateRequest(r.Context(), in)
	if err != nil {
		writeAPIError(w, r, page, err)
		return
	}
	utils.WriteCreatedResponse(w, markers.ViewRequests([]models.ResourceRequest{*created})[0])
}

func countByDisplayStatus(views []markers.RequestView) map[string]int {
	counts := map[string]int{
		string(models.RequestReported):  0,
		string(models.RequestPartial):   0,
		string(models.RequestFulfilled): 0,
	}
	for _, v := range views {
		counts[string(v.DisplayStatus)]++
	}
	return counts
}
