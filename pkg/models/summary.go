package models

// Summary is the admin aggregate returned by GET /admin/summary.
type Summary struct {
	TotalUsers          int              `json:"totalUsers"`
	TotalDisasters      int              `json:"totalDisasters"`
	TotalRequests       int              `json:"totalRequests"`
	TotalContributions  int              `json:"totalContributions"`
	RequestStatusCounts map[string]int64 `json:"requestStatusCounts"`
	UserRoleCounts      map[string]int64 `json:"userRoleCounts"`
}

// ChartSlice is one labelled value of a pie chart dataset.
type ChartSlice struct {
	Label string `json:"label"`
	Value int64  `json:"value"`
}
