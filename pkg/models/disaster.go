package models

import (
	"strings"
)

// Severity 灾害严重程度
type Severity string

const (
	SeverityLow    Severity = "LOW"
	SeverityMedium Severity = "MEDIUM"
	SeverityHigh   Severity = "HIGH"
)

// ParseSeverity normalizes form input ("high", "High") into a Severity.
func ParseSeverity(raw string) (Severity, bool) {
	switch s := Severity(strings.ToUpper(strings.TrimSpace(raw))); s {
	case SeverityLow, SeverityMedium, SeverityHigh:
		return s, true
	}
	return "", false
}

// DisplayStatus 地图标记的显示状态（客户端近似计算，非权威）
type DisplayStatus string

const (
	DisplayReported  DisplayStatus = "reported"
	DisplayPartial   DisplayStatus = "partial"
	DisplayFulfilled DisplayStatus = "fulfilled"
)

// Disaster 灾害报告
type Disaster struct {
	ID            int64     `json:"id"`
	Type          string    `json:"type"`
	Severity      Severity  `json:"severity"`
	Description   string    `json:"description"`
	Latitude      float64   `json:"latitude"`
	Longitude     float64   `json:"longitude"`
	ReporterEmail string    `json:"reporterEmail,omitempty"`
	ReporterName  string    `json:"reporterName,omitempty"`
	CreatedAt     Timestamp `json:"createdAt"`
	// Status and Contributions are computed server side.
	Status        string   `json:"status,omitempty"`
	Contributions []string `json:"contributions,omitempty"`
}

// DisasterInput 灾害上报表单
type DisasterInput struct {
	Type        string   `json:"type"`
	Severity    Severity `json:"severity"`
	Description string   `json:"description"`
	Latitude    float64  `json:"latitude"`
	Longitude   float64  `json:"longitude"`
}

// Normalize canonicalizes the severity casing and trims text fields.
func (in DisasterInput) Normalize() DisasterInput {
	in.Type = strings.TrimSpace(in.Type)
	in.Description = strings.TrimSpace(in.Description)
	if s, ok := ParseSeverity(string(in.Severity)); ok {
		in.Severity = s
	}
	return in
}

// Validate mirrors the backend's DisasterDTO constraints.
func (in DisasterInput) Validate() error {
	var errs ValidationErrors
	if strings.TrimSpace(in.Type) == "" {
		errs = errs.Add("type", "disaster type is required")
	}
	if strings.TrimSpace(string(in.Severity)) == "" {
		errs = errs.Add("severity", "severity is required")
	} else if _, ok := ParseSeverity(string(in.Severity)); !ok {
		errs = errs.Add("severity", "severity must be LOW, MEDIUM or HIGH")
	}
	if strings.TrimSpace(in.Description) == "" {
		errs = errs.Add("description", "description is required")
	}
	if !within(in.Latitude, -90, 90) {
		errs = errs.Add("latitude", "latitude must be between -90 and 90")
	}
	if !within(in.Longitude, -180, 180) {
		errs = errs.Add("longitude", "longitude must be between -180 and 180")
	}
	return errs.OrNil()
}
