package handlers

import (
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"

	"resqnet-web/pkg/client"
	"resqnet-web/pkg/config"
	"resqnet-web/pkg/models"
	"resqnet-web/pkg/obs"
	"resqnet-web/pkg/utils"
)

// AdminHandler 管理后台处理器
type AdminHandler struct {
	config *config.Config
}

// NewAdminHandler 创建管理后台处理器
func NewAdminHandler(cfg *config.Config) *AdminHandler {
	return &AdminHandler{config: cfg}
}

type summaryView struct {
	models.Summary
	Charts summaryCharts `json:"charts"`
}

type summaryCharts struct {
	RequestStatus []models.ChartSlice `json:"requestStatus"`
	UserRoles     []models.ChartSlice `json:"userRoles"`
	Totals        []models.ChartSlice `json:"totals"`
}

// Summary 汇总统计，附图表数据
func (h *AdminHandler) Summary(w http.ResponseWriter, r *http.Request) {
	page, ok := currentPage(w, r)
	if !ok {
		return
	}
	s, err := page.API.AdminSummary(r.Context())
	if err != nil {
		writeAPIError(w, r, page, err)
		return
	}
	utils.WriteSuccessResponse(w, newSummaryView(*s))
}

func newSummaryView(s models.Summary) summaryView {
	return summaryView{
		Summary: s,
		Charts: summaryCharts{
			RequestStatus: chartSlices(s.RequestStatusCounts),
			UserRoles:     chartSlices(s.UserRoleCounts),
			Totals: []models.ChartSlice{
				{Label: "users", Value: int64(s.TotalUsers)},
				{Label: "disasters", Value: int64(s.TotalDisasters)},
				{Label: "requests", Value: int64(s.TotalRequests)},
				{Label: "contributions", Value: int64(s.TotalContributions)},
			},
		},
	}
}

// chartSlices 转换为按标签排序的图表数据
func chartSlices(counts map[string]int64) []models.ChartSlice {
	out := make([]models.ChartSlice, 0, len(counts))
	for label, v := range counts {
		out = append(out, models.ChartSlice{Label: label, Value: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Label < out[j].Label })
	return out
}

// List GET /admin/{kind}
func (h *AdminHandler) List(w http.ResponseWriter, r *http.Request) {
	page, ok := currentPage(w, r)
	if !ok {
		return
	}
	kind, ok := adminKind(w, r)
	if !ok {
		return
	}
	list, err := page.API.AdminList(r.Context(), kind)
	if err != nil {
		writeAPIError(w, r, page, err)
		return
	}
	utils.WriteListResponse(w, list, listLen(list), nil)
}

// Delete removes one record. The response is only sent after the API
// confirms the deletion.
func (h *AdminHandler) Delete(w http.ResponseWriter, r *http.Request) {
	page, ok := currentPage(w, r)
	if !ok {
		return
	}
	kind, ok := adminKind(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := page.API.AdminDelete(r.Context(), kind, id); err != nil {
		writeAPIError(w, r, page, err)
		return
	}
	obs.Logger().Info().Str("kind", string(kind)).Int64("id", id).Msg("admin deleted record")
	utils.WriteSuccessResponse(w, map[string]interface{}{"kind": kind, "id": id, "deleted": true})
}

func adminKind(w http.ResponseWriter, r *http.Request) (client.AdminKind, bool) {
	kind, ok := client.ParseAdminKind(chi.URLParam(r, "kind"))
	if !ok {
		utils.WriteNotFoundResponse(w, "Unknown admin collection")
		return "", false
	}
	return kind, true
}

func listLen(list interface{}) int {
	switch v := list.(type) {
	case []models.User:
		return len(v)
	case []models.Disaster:
		return len(v)
	case []models.ResourceRequest:
		return len(v)
	case []models.Contribution:
		return len(v)
	case []models.Notification:
		return len(v)
	}
	return 0
}
