package httpserver

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"wa-catalog/internal/repo"
	"wa-catalog/internal/stats"
)

type fakeAdmin struct {
	vendors  map[string]repo.Vendor
	products map[string]repo.Product
}

func newFakeAdmin() *fakeAdmin {
	return &fakeAdmin{
		vendors:  map[string]repo.Vendor{},
		products: map[string]repo.Product{},
	}
}

func (f *fakeAdmin) Ping(ctx context.Context) error { return nil }

func (f *fakeAdmin) GetVendorByID(ctx context.Context, id string) (*repo.Vendor, error) {
	if v, ok := f.vendors[id]; ok {
		return &v, nil
	}
	return nil, nil
}

func (f *fakeAdmin) InsertVendor(ctx context.Context, v repo.Vendor) (*repo.Vendor, error) {
	v.ID = "v1"
	f.vendors[v.ID] = v
	return &v, nil
}

func (f *fakeAdmin) UpdateVendor(ctx context.Context, v repo.Vendor) error {
	f.vendors[v.ID] = v
	return nil
}

func (f *fakeAdmin) DeleteVendor(ctx context.Context, id string) error {
	delete(f.vendors, id)
	return nil
}

func (f *fakeAdmin) ListVendorSample(ctx context.Context, limit int) ([]repo.Vendor, error) {
	out := make([]repo.Vendor, 0, len(f.vendors))
	for _, v := range f.vendors {
		out = append(out, v)
	}
	return out, nil
}

func (f *fakeAdmin) GetProductByID(ctx context.Context, id string) (*repo.Product, error) {
	if p, ok := f.products[id]; ok {
		return &p, nil
	}
	return nil, nil
}

func (f *fakeAdmin) InsertProduct(ctx context.Context, p repo.Product) (*repo.Product, error) {
	p.ID = "p1"
	f.products[p.ID] = p
	return &p, nil
}

func (f *fakeAdmin) UpdateProduct(ctx context.Context, p repo.Product) error {
	f.products[p.ID] = p
	return nil
}

func (f *fakeAdmin) DeleteProduct(ctx context.Context, id string) error {
	delete(f.products, id)
	return nil
}

func (f *fakeAdmin) ListInStockProducts(ctx context.Context, limit int) ([]repo.Product, error) {
	out := make([]repo.Product, 0, len(f.products))
	for _, p := range f.products {
		out = append(out, p)
	}
	return out, nil
}

type fakeStats struct{}

func (fakeStats) Snapshot(ctx context.Context) stats.Snapshot {
	return stats.Snapshot{
		TotalUsers:     42,
		TopSearches:    map[string]int{},
		TopVendors:     []stats.TopVendor{},
		DailyActivity:  make([]stats.DailyActivity, 7),
		RecentSearches: []stats.RecentSearch{},
	}
}

func (fakeStats) PeriodStats(ctx context.Context, days int) stats.PeriodStats {
	return stats.PeriodStats{Period: "Last 7 days"}
}

func newTestServer() *Server {
	logger := slog.New(slog.DiscardHandler)
	return New(":0", newFakeAdmin(), fakeStats{}, logger, nil)
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	rec := httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(rec, req)
	return rec
}

func TestStatsEndpointServesSnapshot(t *testing.T) {
	rec := do(t, newTestServer(), http.MethodGet, "/api/stats", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var snap stats.Snapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if snap.TotalUsers != 42 {
		t.Fatalf("expected totalUsers 42, got %d", snap.TotalUsers)
	}
}

func TestStatsPeriodRejectsBadDays(t *testing.T) {
	s := newTestServer()
	for _, path := range []string{"/api/stats/period/0", "/api/stats/period/abc", "/api/stats/period/365"} {
		rec := do(t, s, http.MethodGet, path, "")
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", path, rec.Code)
		}
		var envelope map[string]string
		if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
			t.Fatalf("%s: invalid error envelope: %v", path, err)
		}
		if envelope["error"] == "" || envelope["message"] == "" {
			t.Errorf("%s: envelope missing fields: %v", path, envelope)
		}
	}
}

func TestVendorLifecycle(t *testing.T) {
	s := newTestServer()

	rec := do(t, s, http.MethodPost, "/api/vendors",
		`{"name":"TechShop","city":"Cotonou","whatsappNumber":"22991234567","verified":true}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = do(t, s, http.MethodGet, "/api/vendors/v1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get: expected 200, got %d", rec.Code)
	}

	rec = do(t, s, http.MethodDelete, "/api/vendors/v1", "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete: expected 204, got %d", rec.Code)
	}

	rec = do(t, s, http.MethodGet, "/api/vendors/v1", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("get after delete: expected 404, got %d", rec.Code)
	}
}

func TestVendorCreateValidation(t *testing.T) {
	rec := do(t, newTestServer(), http.MethodPost, "/api/vendors", `{"name":"X"}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
}

func TestHealthz(t *testing.T) {
	rec := do(t, newTestServer(), http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestShutdownCompletes(t *testing.T) {
	s := newTestServer()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}
