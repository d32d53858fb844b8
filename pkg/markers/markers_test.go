package markers

import (
	"testing"
	"time"

	"resqnet-web/pkg/models"
)

func ptr(v float64) *float64 { return &v }

func ts(t *testing.T, s string) models.Timestamp {
	t.Helper()
	v, err := models.ParseTimestamp(s)
	if err != nil {
		t.Fatal(err)
	}
	return v
}

func TestDisasterStatus(t *testing.T) {
	cases := []struct {
		name     string
		requests []models.ResourceRequest
		want     models.DisplayStatus
	}{
		{"no requests", nil, models.DisplayReported},
		{"one fulfilled one untouched", []models.ResourceRequest{
			{ID: 1, Status: models.RequestFulfilled, RequestedQuantity: 10, FulfilledQuantity: 10},
			{ID: 2, Status: models.RequestPending, RequestedQuantity: 5, FulfilledQuantity: 0},
		}, models.DisplayPartial},
		{"fulfilled without quantity", []models.ResourceRequest{
			{ID: 1, Status: models.RequestFulfilled},
			{ID: 2, Status: models.RequestPending, RequestedQuantity: 5},
		}, models.DisplayPartial},
		{"all fulfilled", []models.ResourceRequest{
			{ID: 1, Status: models.RequestFulfilled},
			{ID: 2, Status: models.RequestFulfilled},
		}, models.DisplayFulfilled},
		{"some progress", []models.ResourceRequest{
			{ID: 1, Status: models.RequestPending, RequestedQuantity: 5, FulfilledQuantity: 2},
		}, models.DisplayPartial},
		{"nothing contributed", []models.ResourceRequest{
			{ID: 1, Status: models.RequestPending, RequestedQuantity: 5},
			{ID: 2, Status: models.RequestPending, RequestedQuantity: 3},
		}, models.DisplayReported},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := DisasterStatus(tc.requests); got != tc.want {
				t.Fatalf("DisasterStatus=%s want %s", got, tc.want)
			}
		})
	}
}

func TestRequestStatusAndProgress(t *testing.T) {
	cases := []struct {
		req      models.ResourceRequest
		want     models.RequestStatus
		progress string
	}{
		{models.ResourceRequest{Status: models.RequestPending, RequestedQuantity: 5}, models.RequestReported, "0"},
		{models.ResourceRequest{Status: models.RequestPending, RequestedQuantity: 3, FulfilledQuantity: 1}, models.RequestPartial, "33.3"},
		{models.ResourceRequest{Status: models.RequestPending, RequestedQuantity: 4, FulfilledQuantity: 4}, models.RequestFulfilled, "100"},
		{models.ResourceRequest{Status: models.RequestFulfilled, RequestedQuantity: 4, FulfilledQuantity: 6}, models.RequestFulfilled, "100"},
		{models.ResourceRequest{Status: models.RequestPartial}, models.RequestPartial, "0"},
	}
	for i, tc := range cases {
		if got := RequestStatus(tc.req); got != tc.want {
			t.Fatalf("case %d RequestStatus=%s want %s", i, got, tc.want)
		}
		if got := Progress(tc.req).String(); got != tc.progress {
			t.Fatalf("case %d Progress=%s want %s", i, got, tc.progress)
		}
	}
}

func TestGroupContributionsMergesSameResponderAndSpot(t *testing.T) {
	contribs := []models.Contribution{
		{ID: 1, RequestID: 1, Category: "food", ContributedQuantity: 10, ResponderEmail: "r@x.io",
			Latitude: ptr(12.9716), Longitude: ptr(77.5946), UpdatedAt: ts(t, "2025-03-10T09:00:00")},
		{ID: 2, RequestID: 2, Category: "water", ContributedQuantity: 5, ResponderEmail: "r@x.io",
			Latitude: ptr(12.9716), Longitude: ptr(77.5946), UpdatedAt: ts(t, "2025-03-10T11:30:00")},
	}
	groups := GroupContributions(contribs)
	if len(groups) != 1 {
		t.Fatalf("groups=%d want 1", len(groups))
	}
	g := groups[0]
	if g.TotalQuantity != 15 || g.Count != 2 {
		t.Fatalf("total=%d count=%d", g.TotalQuantity, g.Count)
	}
	if len(g.Categories) != 2 || g.Categories[0] != "food" || g.Categories[1] != "water" {
		t.Fatalf("categories=%v", g.Categories)
	}
	if g.UpdatedAt.Hour() != 11 {
		t.Fatalf("UpdatedAt=%v, want the most recent", g.UpdatedAt)
	}
}

func TestGroupContributionsKeepsDistinctGroupsApart(t *testing.T) {
	contribs := []models.Contribution{
		{Category: "food", ContributedQuantity: 1, ResponderEmail: "a@x.io", Latitude: ptr(1), Longitude: ptr(2)},
		{Category: "food", ContributedQuantity: 2, ResponderEmail: "b@x.io", Latitude: ptr(1), Longitude: ptr(2)},
		{Category: "food", ContributedQuantity: 3, ResponderEmail: "a@x.io", Latitude: ptr(1.5), Longitude: ptr(2)},
		{Category: "food", ContributedQuantity: 4, ResponderEmail: "a@x.io"},
		{Category: "food", ContributedQuantity: 5, ResponderEmail: "a@x.io", Latitude: ptr(1)},
		{Category: "food", ContributedQuantity: 6, ResponderEmail: "a@x.io", Latitude: ptr(1), Longitude: ptr(2)},
	}
	groups := GroupContributions(contribs)
	if len(groups) != 3 {
		t.Fatalf("groups=%d want 3: %+v", len(groups), groups)
	}
	if groups[0].ResponderEmail != "a@x.io" || groups[0].TotalQuantity != 7 {
		t.Fatalf("first group=%+v", groups[0])
	}
	if groups[0].Categories[0] != "food" || len(groups[0].Categories) != 1 {
		t.Fatalf("duplicate category kept: %v", groups[0].Categories)
	}
	if groups[1].ResponderEmail != "b@x.io" || groups[2].Latitude != 1.5 {
		t.Fatalf("order not preserved: %+v", groups)
	}
}

func TestGroupContributionsFallsBackToCreatedAt(t *testing.T) {
	created := models.NewTimestamp(time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC))
	groups := GroupContributions([]models.Contribution{
		{ResponderEmail: "a", Latitude: ptr(0), Longitude: ptr(0), CreatedAt: created},
	})
	if !groups[0].UpdatedAt.Equal(created.Time) {
		t.Fatalf("UpdatedAt=%v", groups[0].UpdatedAt)
	}
}

func TestBuildDisasterMarkers(t *testing.T) {
	disasters := []models.Disaster{
		{ID: 1, Type: "Flood", Severity: models.SeverityHigh},
		{ID: 2, Type: "Fire", Severity: models.SeverityLow},
	}
	requests := []models.ResourceRequest{
		{ID: 10, DisasterID: 1, Category: "water", RequestedQuantity: 5, FulfilledQuantity: 5, Status: models.RequestFulfilled},
		{ID: 11, DisasterID: 1, Category: "food", RequestedQuantity: 5, Status: models.RequestPending},
		{ID: 12, DisasterID: 99, Category: "food", RequestedQuantity: 1},
	}
	contribs := []models.Contribution{
		{ID: 100, RequestID: 10, Category: "water", ContributedQuantity: 5, ResponderEmail: "r@x.io", Latitude: ptr(1), Longitude: ptr(1)},
		{ID: 101, RequestID: 12, Category: "food", ContributedQuantity: 1},
	}

	markers := BuildDisasterMarkers(disasters, requests, contribs)
	if len(markers) != 2 {
		t.Fatalf("markers=%d", len(markers))
	}
	flood, fire := markers[0], markers[1]
	if flood.Status != models.DisplayPartial || flood.RequestCount != 2 {
		t.Fatalf("flood=%s/%d", flood.Status, flood.RequestCount)
	}
	if len(flood.Contributions) != 1 || len(flood.Pins) != 1 {
		t.Fatalf("flood contributions=%d pins=%d", len(flood.Contributions), len(flood.Pins))
	}
	if flood.Requests[0].DisplayStatus != models.RequestFulfilled || flood.Requests[1].DisplayStatus != models.RequestReported {
		t.Fatalf("request display statuses=%v,%v", flood.Requests[0].DisplayStatus, flood.Requests[1].DisplayStatus)
	}
	if fire.Status != models.DisplayReported || fire.RequestCount != 0 || fire.Contributions == nil {
		t.Fatalf("fire=%+v", fire)
	}

	counts := CountByStatus(markers)
	if counts[models.DisplayPartial] != 1 || counts[models.DisplayReported] != 1 || counts[models.DisplayFulfilled] != 0 {
		t.Fatalf("counts=%v", counts)
	}
}
