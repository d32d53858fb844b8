package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"resqnet-web/pkg/config"
	"resqnet-web/pkg/models"
	"resqnet-web/pkg/utils"
)

// DisasterHandler 灾情处理器
type DisasterHandler struct {
	config *config.Config
}

// NewDisasterHandler 创建灾情处理器
func NewDisasterHandler(cfg *config.Config) *DisasterHandler {
	return &DisasterHandler{config: cfg}
}

// ListDisasters 灾情列表，附按严重程度的计数
func (h *DisasterHandler) ListDisasters(w http.ResponseWriter, r *http.Request) {
	page, ok := currentPage(w, r)
	if !ok {
		return
	}
	disasters, err := page.API.ListDisasters(r.Context())
	if err != nil {
		writeAPIError(w, r, page, err)
		return
	}

	counts := map[string]int{}
	for _, d := range disasters {
		counts[string(d.Severity)]++
	}
	utils.WriteListResponse(w, disasters, len(disasters), counts)
}

// GetDisaster 单个灾情
func (h *DisasterHandler) GetDisaster(w http.ResponseWriter, r *http.Request) {
	page, ok := currentPage(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	d, err := page.API.GetDisaster(r.Context(), id)
	if err != nil {
		writeAPIError(w, r, page, err)
		return
	}
	utils.WriteSuccessResponse(w, d)
}

// ReportDisaster validates the form locally before submitting it.
func (h *DisasterHandler) ReportDisaster(w http.ResponseWriter, r *http.Request) {
	page, ok := currentPage(w, r)
	if !ok {
		return
	}
	var in models.DisasterInput
	if !decodeBody(w, r, &in) {
		return
	}
	d, err := page.API.CreateDisaster(r.Context(), in)
	if err != nil {
		writeAPIError(w, r, page, err)
		return
	}
	utils.WriteCreatedResponse(w, d)
}

// pathID parses the {id} URL parameter, answering 400 itself when invalid.
func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		utils.WriteBadRequestResponse(w, "Invalid id")
		return 0, false
	}
	return id, true
}
