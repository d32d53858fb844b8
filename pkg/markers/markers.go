// Package markers derives map view-models from disasters, requests and
// contributions. Results are a display approximation of server state and are
// never fed back to the API.
package markers

import (
	"github.com/shopspring/decimal"

	"resqnet-web/pkg/models"
)

// RequestView is a request with its display status and progress.
type RequestView struct {
	models.ResourceRequest
	DisplayStatus models.RequestStatus `json:"displayStatus"`
	// ProgressPercent is fulfilled/requested in percent, capped at 100.
	ProgressPercent decimal.Decimal `json:"progressPercent"`
}

// ContributionGroup is one map pin: a responder's contributions at one spot.
type ContributionGroup struct {
	ResponderEmail string           `json:"responderEmail"`
	ResponderName  string           `json:"responderName,omitempty"`
	Latitude       float64          `json:"latitude"`
	Longitude      float64          `json:"longitude"`
	Categories     []string         `json:"categories"`
	TotalQuantity  int              `json:"totalQuantity"`
	Count          int              `json:"count"`
	UpdatedAt      models.Timestamp `json:"updatedAt"`
}

// DisasterMarker is everything the map shows for one disaster.
type DisasterMarker struct {
	Disaster      models.Disaster       `json:"disaster"`
	Status        models.DisplayStatus  `json:"status"`
	RequestCount  int                   `json:"requestCount"`
	Requests      []RequestView         `json:"requests"`
	Contributions []models.Contribution `json:"contributions"`
	Pins          []ContributionGroup   `json:"pins"`
}

// DisasterStatus colours a disaster marker from its requests: no requests is
// reported, all fulfilled is fulfilled, any progress is partial.
func DisasterStatus(requests []models.ResourceRequest) models.DisplayStatus {
	if len(requests) == 0 {
		return models.DisplayReported
	}
	all, some := true, false
	for _, r := range requests {
		done := r.Status == models.RequestFulfilled
		if !done {
			all = false
		}
		if done || r.FulfilledQuantity > 0 {
			some = true
		}
	}
	switch {
	case all:
		return models.DisplayFulfilled
	case some:
		return models.DisplayPartial
	default:
		return models.DisplayReported
	}
}

// RequestStatus is the display status of one request. The server's FULFILLED
// wins; otherwise the quantities decide.
func RequestStatus(r models.ResourceRequest) models.RequestStatus {
	switch {
	case r.Status == models.RequestFulfilled:
		return models.RequestFulfilled
	case r.RequestedQuantity > 0 && r.FulfilledQuantity >= r.RequestedQuantity:
		return models.RequestFulfilled
	case r.FulfilledQuantity > 0 || r.Status == models.RequestPartial:
		return models.RequestPartial
	default:
		return models.RequestReported
	}
}

// Progress returns fulfilled/requested as a percentage with one decimal place.
func Progress(r models.ResourceRequest) decimal.Decimal {
	if r.RequestedQuantity <= 0 {
		return decimal.Zero
	}
	hundred := decimal.NewFromInt(100)
	p := decimal.NewFromInt(int64(r.FulfilledQuantity)).
		Div(decimal.NewFromInt(int64(r.RequestedQuantity))).
		Mul(hundred).
		Round(1)
	if p.GreaterThan(hundred) {
		return hundred
	}
	if p.IsNegative() {
		return decimal.Zero
	}
	return p
}

// ViewRequests decorates requests with display status and progress.
func ViewRequests(requests []models.ResourceRequest) []RequestView {
	out := make([]RequestView, 0, len(requests))
	for _, r := range requests {
		out = append(out, RequestView{ResourceRequest: r, DisplayStatus: RequestStatus(r), ProgressPercent: Progress(r)})
	}
	return out
}

type groupKey struct {
	responder string
	lat, lon  string
}

// coordKey renders a coordinate as its shortest exact decimal so equal
// floats always produce the same key.
func coordKey(v float64) string {
	return decimal.NewFromFloat(v).String()
}

// GroupContributions merges contributions sharing (responder, latitude,
// longitude) into one pin. Quantities are summed, categories deduplicated in
// first-seen order, and the latest updatedAt kept. Contributions without
// coordinates get no pin. Groups keep the order they were first seen in.
func GroupContributions(contributions []models.Contribution) []ContributionGroup {
	index := make(map[groupKey]int)
	groups := make([]ContributionGroup, 0)
	for _, c := range contributions {
		if !c.HasLocation() {
			continue
		}
		k := groupKey{responder: c.ResponderEmail, lat: coordKey(*c.Latitude), lon: coordKey(*c.Longitude)}
		i, ok := index[k]
		if !ok {
			index[k] = len(groups)
			groups = append(groups, ContributionGroup{
				ResponderEmail: c.ResponderEmail,
				ResponderName:  c.ResponderName,
				Latitude:       *c.Latitude,
				Longitude:      *c.Longitude,
				Categories:     []string{c.Category},
				TotalQuantity:  c.ContributedQuantity,
				Count:          1,
				UpdatedAt:      latest(c),
			})
			continue
		}
		g := &groups[i]
		g.TotalQuantity += c.ContributedQuantity
		g.Count++
		if !containsCategory(g.Categories, c.Category) {
			g.Categories = append(g.Categories, c.Category)
		}
		if t := latest(c); t.After(g.UpdatedAt.Time) {
			g.UpdatedAt = t
		}
		if g.ResponderName == "" {
			g.ResponderName = c.ResponderName
		}
	}
	return groups
}

// latest prefers updatedAt and falls back to createdAt.
func latest(c models.Contribution) models.Timestamp {
	if !c.UpdatedAt.IsZero() {
		return c.UpdatedAt
	}
	return c.CreatedAt
}

func containsCategory(list []string, c string) bool {
	for _, v := range list {
		if v == c {
			return true
		}
	}
	return false
}

// BuildDisasterMarkers assembles one marker per disaster, in input order.
func BuildDisasterMarkers(disasters []models.Disaster, requests []models.ResourceRequest, contributions []models.Contribution) []DisasterMarker {
	byDisaster := make(map[int64][]models.ResourceRequest)
	requestDisaster := make(map[int64]int64, len(requests))
	for _, r := range requests {
		byDisaster[r.DisasterID] = append(byDisaster[r.DisasterID], r)
		requestDisaster[r.ID] = r.DisasterID
	}
	contribByDisaster := make(map[int64][]models.Contribution)
	for _, c := range contributions {
		if d, ok := requestDisaster[c.RequestID]; ok {
			contribByDisaster[d] = append(contribByDisaster[d], c)
		}
	}

	markers := make([]DisasterMarker, 0, len(disasters))
	for _, d := range disasters {
		related := byDisaster[d.ID]
		contribs := contribByDisaster[d.ID]
		if contribs == nil {
			contribs = []models.Contribution{}
		}
		markers = append(markers, DisasterMarker{
			Disaster:      d,
			Status:        DisasterStatus(related),
			RequestCount:  len(related),
			Requests:      ViewRequests(related),
			Contributions: contribs,
			Pins:          GroupContributions(contribs),
		})
	}
	return markers
}

// CountByStatus tallies markers for the map legend.
func CountByStatus(markers []DisasterMarker) map[models.DisplayStatus]int {
	counts := map[models.DisplayStatus]int{
		models.DisplayReported:  0,
		models.DisplayPartial:   0,
		models.DisplayFulfilled: 0,
	}
	for _, m := range markers {
		counts[m.Status]++
	}
	return counts
}
