package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"clearmark/internal/capability"
)

func TestCapabilityStatus(t *testing.T) {
	app, _, _, _, caps, _ := newTestApp()
	caps.status = capability.Status{Granted: false, Requested: true}

	rec := httptest.NewRecorder()
	app.CapabilityStatus(rec, httptest.NewRequest(http.MethodGet, "/v1/capability", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Video capability.Status `json:"video"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Video.Granted || !resp.Video.Requested {
		t.Fatalf("video status = %+v", resp.Video)
	}
}

func TestCapabilityStatusFailure(t *testing.T) {
	app, _, _, _, caps, _ := newTestApp()
	caps.statusErr = assertErr("store offline")

	rec := httptest.NewRecorder()
	app.CapabilityStatus(rec, httptest.NewRequest(http.MethodGet, "/v1/capability", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
}

func TestCapabilityRequest(t *testing.T) {
	app, _, _, _, caps, _ := newTestApp()

	rec := httptest.NewRecorder()
	app.CapabilityRequest(rec, httptest.NewRequest(http.MethodPost, "/v1/capability/request", nil))

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if caps.requests != 1 {
		t.Fatalf("recorded %d requests, want 1", caps.requests)
	}
	var resp map[string]bool
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp["requested"] {
		t.Fatalf("response = %v", resp)
	}
}

func TestCapabilityRequestFailure(t *testing.T) {
	app, _, _, _, caps, _ := newTestApp()
	caps.requestErr = assertErr("store offline")

	rec := httptest.NewRecorder()
	app.CapabilityRequest(rec, httptest.NewRequest(http.MethodPost, "/v1/capability/request", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
}
