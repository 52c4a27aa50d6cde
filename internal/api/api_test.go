package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/flooorgang/floorline/internal/models"
)

type fakeStore struct {
	pingErr     error
	runs        []models.ScanRun
	picks       []models.Pick
	gotLimit    int
	gotDate     time.Time
	gotUnscored bool
}

func (f *fakeStore) Ping(context.Context) error { return f.pingErr }

func (f *fakeStore) ListRuns(_ context.Context, limit int) ([]models.ScanRun, error) {
	f.gotLimit = limit
	return f.runs, nil
}

func (f *fakeStore) PicksByDate(_ context.Context, date time.Time, unscoredOnly bool) ([]models.Pick, error) {
	f.gotDate = date
	f.gotUnscored = unscoredOnly
	return f.picks, nil
}

func newTestServer(t *testing.T, store *fakeStore) *httptest.Server {
	t.Helper()
	h := NewHandler(store, time.UTC)
	h.now = func() time.Time { return time.Date(2025, 11, 20, 18, 0, 0, 0, time.UTC) }
	server := httptest.NewServer(NewRouter(h, []string{"*"}))
	t.Cleanup(server.Close)
	return server
}

func getJSON(t *testing.T, url string, wantStatus int) map[string]interface{} {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		t.Fatalf("GET %s: status %d, want %d", url, resp.StatusCode, wantStatus)
	}
	var body map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("bad JSON: %v", err)
	}
	return body
}

func TestHealthCheck(t *testing.T) {
	store := &fakeStore{}
	server := newTestServer(t, store)

	body := getJSON(t, server.URL+"/health", http.StatusOK)
	if body["status"] != "healthy" {
		t.Errorf("status = %v", body["status"])
	}

	store.pingErr = errors.New("database is locked")
	body = getJSON(t, server.URL+"/health", http.StatusServiceUnavailable)
	if body["message"] != "storage unhealthy" {
		t.Errorf("message = %v", body["message"])
	}
}

func TestGetRuns(t *testing.T) {
	store := &fakeStore{runs: []models.ScanRun{{ID: 2, Sport: "nba"}, {ID: 1, Sport: "nba"}}}
	server := newTestServer(t, store)

	tests := []struct {
		query     string
		wantLimit int
	}{
		{"", defaultRunLimit},
		{"?limit=5", 5},
		{"?limit=abc", defaultRunLimit},
		{"?limit=-3", defaultRunLimit},
		{"?limit=10000", maxRunLimit},
	}

	for _, tt := range tests {
		body := getJSON(t, server.URL+"/api/v1/runs"+tt.query, http.StatusOK)
		if store.gotLimit != tt.wantLimit {
			t.Errorf("query %q: limit = %d, want %d", tt.query, store.gotLimit, tt.wantLimit)
		}
		if body["count"].(float64) != 2 {
			t.Errorf("query %q: count = %v", tt.query, body["count"])
		}
	}
}

func TestGetPicks(t *testing.T) {
	store := &fakeStore{picks: []models.Pick{
		{Opportunity: models.Opportunity{ID: "a"}, Result: models.ResultHit},
		{Opportunity: models.Opportunity{ID: "b"}, Result: models.ResultMiss},
		{Opportunity: models.Opportunity{ID: "c"}},
	}}
	server := newTestServer(t, store)

	body := getJSON(t, server.URL+"/api/v1/picks?date=2025-11-18&unscored=true", http.StatusOK)
	if !store.gotDate.Equal(time.Date(2025, 11, 18, 0, 0, 0, 0, time.UTC)) || !store.gotUnscored {
		t.Errorf("store called with date=%v unscored=%v", store.gotDate, store.gotUnscored)
	}
	if body["count"].(float64) != 3 || body["hits"].(float64) != 1 || body["misses"].(float64) != 1 {
		t.Errorf("unexpected body: %v", body)
	}

	body = getJSON(t, server.URL+"/api/v1/picks", http.StatusOK)
	if body["date"] != "2025-11-20" || store.gotUnscored {
		t.Errorf("default date = %v, unscored = %v", body["date"], store.gotUnscored)
	}

	getJSON(t, server.URL+"/api/v1/picks?date=11/20/2025", http.StatusBadRequest)
}

func TestMetricsEndpoint(t *testing.T) {
	server := newTestServer(t, &fakeStore{})
	getJSON(t, server.URL+"/api/v1/runs", http.StatusOK)

	resp, err := http.Get(server.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	if !strings.Contains(string(body), `path="/api/v1/runs"`) {
		t.Errorf("expected API request metric in output:\n%s", body)
	}
}
