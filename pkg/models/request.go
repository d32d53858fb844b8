package models

import (
	"strings"
)

// RequestStatus 资源请求状态。服务端目前只返回 PENDING / FULFILLED，
// REPORTED 与 PARTIAL 用于客户端展示。
type RequestStatus string

const (
	RequestReported  RequestStatus = "REPORTED"
	RequestPending   RequestStatus = "PENDING"
	RequestPartial   RequestStatus = "PARTIAL"
	RequestFulfilled RequestStatus = "FULFILLED"
)

// ParseStatusFilter accepts the display statuses a request list can be
// filtered on, in any case.
func ParseStatusFilter(raw string) (RequestStatus, bool) {
	switch s := RequestStatus(strings.ToUpper(strings.TrimSpace(raw))); s {
	case RequestReported, RequestPartial, RequestFulfilled:
		return s, true
	}
	return "", false
}

// ResourceRequest 资源请求
type ResourceRequest struct {
	ID                int64         `json:"id"`
	DisasterID        int64         `json:"disasterId"`
	Category          string        `json:"category"`
	RequestedQuantity int           `json:"requestedQuantity"`
	FulfilledQuantity int           `json:"fulfilledQuantity"`
	Status            RequestStatus `json:"status"`
	ReporterEmail     string        `json:"reporterEmail,omitempty"`
	CreatedAt         Timestamp     `json:"createdAt"`
}

// ResourceRequestInput 资源请求表单
type ResourceRequestInput struct {
	DisasterID        int64  `json:"disasterId"`
	Category          string `json:"category"`
	RequestedQuantity int    `json:"requestedQuantity"`
}

// Validate mirrors the backend's ResourceRequestDTO constraints.
func (in ResourceRequestInput) Validate() error {
	var errs ValidationErrors
	category := strings.TrimSpace(in.Category)
	if category == "" {
		errs = errs.Add("category", "category is required")
	} else if len(category) > 100 {
		errs = errs.Add("category", "category must not exceed 100 characters")
	}
	if in.RequestedQuantity < 1 {
		errs = errs.Add("requestedQuantity", "requested quantity must be at least 1")
	}
	if in.DisasterID <= 0 {
		errs = errs.Add("disasterId", "disaster id is required")
	}
	return errs.OrNil()
}
