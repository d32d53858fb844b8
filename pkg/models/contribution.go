package models

import (
	"strings"
)

// ContributionCategories are the categories the backend accepts for contributions.
var ContributionCategories = []string{"food", "water", "medical", "shelter"}

// Contribution 响应者的资源贡献
type Contribution struct {
	ID                  int64     `json:"id"`
	RequestID           int64     `json:"requestId"`
	Category            string    `json:"category"`
	ContributedQuantity int       `json:"contributedQuantity"`
	Latitude            *float64  `json:"latitude,omitempty"`
	Longitude           *float64  `json:"longitude,omitempty"`
	ResponderEmail      string    `json:"responderEmail,omitempty"`
	ResponderName       string    `json:"responderName,omitempty"`
	Items               []string  `json:"items,omitempty"`
	CreatedAt           Timestamp `json:"createdAt"`
	UpdatedAt           Timestamp `json:"updatedAt"`
}

// HasLocation reports whether the contribution carries map coordinates.
func (c Contribution) HasLocation() bool {
	return c.Latitude != nil && c.Longitude != nil
}

// ContributionInput 贡献表单
type ContributionInput struct {
	RequestID           int64    `json:"requestId"`
	Category            string   `json:"category"`
	ContributedQuantity int      `json:"contributedQuantity"`
	Latitude            *float64 `json:"latitude,omitempty"`
	Longitude           *float64 `json:"longitude,omitempty"`
}

// Normalize lowercases the category, which the backend matches case-sensitively.
func (in ContributionInput) Normalize() ContributionInput {
	in.Category = strings.ToLower(strings.TrimSpace(in.Category))
	return in
}

// Validate mirrors the backend's ContributionDTO constraints.
func (in ContributionInput) Validate() error {
	var errs ValidationErrors
	if in.ContributedQuantity < 1 {
		errs = errs.Add("contributedQuantity", "contribution quantity must be at least 1")
	}
	if in.RequestID <= 0 {
		errs = errs.Add("requestId", "request id is required")
	}
	category := strings.ToLower(strings.TrimSpace(in.Category))
	switch {
	case category == "":
		errs = errs.Add("category", "category is required")
	case !containsString(ContributionCategories, category):
		errs = errs.Add("category", "category must be one of: food, water, medical, shelter")
	}
	if (in.Latitude == nil) != (in.Longitude == nil) {
		errs = errs.Add("location", "latitude and longitude must be provided together")
	}
	if in.Latitude != nil && !within(*in.Latitude, -90, 90) {
		errs = errs.Add("latitude", "latitude must be between -90 and 90")
	}
	if in.Longitude != nil && !within(*in.Longitude, -180, 180) {
		errs = errs.Add("longitude", "longitude must be between -180 and 180")
	}
	return errs.OrNil()
}

func containsString(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
