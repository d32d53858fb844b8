package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"resqnet-web/pkg/client"
	"resqnet-web/pkg/models"
	"resqnet-web/pkg/utils"
)

func TestWriteAPIErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
		wantFields int
	}{
		{"local validation", models.ValidationErrors{}.Add("category", "category is required"), http.StatusUnprocessableEntity, utils.CodeValidation, 1},
		{"api field errors", &client.APIError{StatusCode: 400, Fields: models.ValidationErrors{}.Add("email", "taken")}, http.StatusUnprocessableEntity, utils.CodeValidation, 1},
		{"forbidden", &client.APIError{StatusCode: 403, Message: "Access Denied"}, http.StatusForbidden, utils.CodeForbidden, 0},
		{"not found", &client.APIError{StatusCode: 404}, http.StatusNotFound, utils.CodeNotFound, 0},
		{"server", &client.APIError{StatusCode: 503}, http.StatusBadGateway, utils.CodeUpstream, 0},
		{"transport", &client.TransportError{Method: "GET", Endpoint: "/disasters", Err: context.DeadlineExceeded}, http.StatusBadGateway, utils.CodeUpstream, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
			writeAPIError(rec, req, nil, tt.err)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status=%d want %d", rec.Code, tt.wantStatus)
			}
			var body utils.APIResponse
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatal(err)
			}
			if body.Error == nil || body.Error.Code != tt.wantCode || len(body.Error.Fields) != tt.wantFields {
				t.Fatalf("error=%+v", body.Error)
			}
		})
	}
}

func TestWriteAPIErrorCancelledWritesNothing(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	writeAPIError(rec, req, nil, &client.TransportError{Method: "GET", Endpoint: "/disasters", Err: context.Canceled})
	if rec.Body.Len() != 0 {
		t.Fatalf("wrote %q for a cancelled request", rec.Body.String())
	}
}

func TestSummaryChartsAreSorted(t *testing.T) {
	v := newSummaryView(models.Summary{
		TotalUsers:          5,
		TotalRequests:       3,
		RequestStatusCounts: map[string]int64{"PENDING": 2, "FULFILLED": 1},
		UserRoleCounts:      map[string]int64{"RESPONDER": 2, "ADMIN": 1, "REPORTER": 2},
	})
	if got := v.Charts.RequestStatus; len(got) != 2 || got[0].Label != "FULFILLED" || got[1].Value != 2 {
		t.Fatalf("request status chart=%+v", got)
	}
	roles := v.Charts.UserRoles
	if roles[0].Label != "ADMIN" || roles[1].Label != "REPORTER" || roles[2].Label != "RESPONDER" {
		t.Fatalf("user roles chart=%+v", roles)
	}
	if v.Charts.Totals[0] != (models.ChartSlice{Label: "users", Value: 5}) {
		t.Fatalf("totals=%+v", v.Charts.Totals)
	}
}

func TestListLen(t *testing.T) {
	if n := listLen([]models.User{{}, {}}); n != 2 {
		t.Fatalf("users=%d", n)
	}
	if n := listLen([]models.Notification{}); n != 0 {
		t.Fatalf("notifications=%d", n)
	}
	if n := listLen("nope"); n != 0 {
		t.Fatalf("unknown=%d", n)
	}
}
