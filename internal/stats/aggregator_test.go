package stats

import (
	"context"
	"log/slog"
	"reflect"
	"testing"
	"time"

	"wa-catalog/internal/repo"
)

// stuckStore blocks every read until its context expires.
type stuckStore struct{}

func (stuckStore) wait(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

func (s stuckStore) ListUsers(ctx context.Context, limit int) ([]repo.User, error) {
	return nil, s.wait(ctx)
}
func (s stuckStore) ListRecentSearchLogs(ctx context.Context, limit int) ([]repo.SearchLog, error) {
	return nil, s.wait(ctx)
}
func (s stuckStore) ListSearchLogsSince(ctx context.Context, since time.Time, limit int) ([]repo.SearchLog, error) {
	return nil, s.wait(ctx)
}
func (s stuckStore) ListVendorClicks(ctx context.Context, limit int) ([]repo.VendorClick, error) {
	return nil, s.wait(ctx)
}
func (s stuckStore) ListVendorSample(ctx context.Context, limit int) ([]repo.Vendor, error) {
	return nil, s.wait(ctx)
}
func (s stuckStore) ListRecentAnalyticsEvents(ctx context.Context, limit int) ([]repo.AnalyticsEvent, error) {
	return nil, s.wait(ctx)
}
func (s stuckStore) CountSearchLogsBetween(ctx context.Context, from, to time.Time) (int, error) {
	return 0, s.wait(ctx)
}
func (s stuckStore) CountVendorClicksBetween(ctx context.Context, from, to time.Time) (int, error) {
	return 0, s.wait(ctx)
}
func (s stuckStore) CountUsersActiveBetween(ctx context.Context, from, to time.Time) (int, error) {
	return 0, s.wait(ctx)
}

// fixedStore serves a fixed in-memory dataset.
type fixedStore struct {
	users   []repo.User
	logs    []repo.SearchLog
	clicks  []repo.VendorClick
	vendors []repo.Vendor
	events  []repo.AnalyticsEvent
}

func (f *fixedStore) ListUsers(ctx context.Context, limit int) ([]repo.User, error) {
	return f.users, nil
}
func (f *fixedStore) ListRecentSearchLogs(ctx context.Context, limit int) ([]repo.SearchLog, error) {
	return f.logs, nil
}
func (f *fixedStore) ListSearchLogsSince(ctx context.Context, since time.Time, limit int) ([]repo.SearchLog, error) {
	return f.logs, nil
}
func (f *fixedStore) ListVendorClicks(ctx context.Context, limit int) ([]repo.VendorClick, error) {
	return f.clicks, nil
}
func (f *fixedStore) ListVendorSample(ctx context.Context, limit int) ([]repo.Vendor, error) {
	return f.vendors, nil
}
func (f *fixedStore) ListRecentAnalyticsEvents(ctx context.Context, limit int) ([]repo.AnalyticsEvent, error) {
	return f.events, nil
}
func (f *fixedStore) CountSearchLogsBetween(ctx context.Context, from, to time.Time) (int, error) {
	n := 0
	for _, l := range f.logs {
		if !l.CreatedAt.Before(from) && l.CreatedAt.Before(to) {
			n++
		}
	}
	return n, nil
}
func (f *fixedStore) CountVendorClicksBetween(ctx context.Context, from, to time.Time) (int, error) {
	n := 0
	for _, c := range f.clicks {
		if !c.CreatedAt.Before(from) && c.CreatedAt.Before(to) {
			n++
		}
	}
	return n, nil
}
func (f *fixedStore) CountUsersActiveBetween(ctx context.Context, from, to time.Time) (int, error) {
	n := 0
	for _, u := range f.users {
		if !u.LastMessageAt.Before(from) && u.LastMessageAt.Before(to) {
			n++
		}
	}
	return n, nil
}

func discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func ms(v int64) *int64 { return &v }

func TestSnapshotAllTimeoutsYieldsZeroDefaults(t *testing.T) {
	agg := New(stuckStore{}, discard(), nil, 30*time.Millisecond)

	snap := agg.Snapshot(context.Background())

	if snap.TotalUsers != 0 || snap.TotalSearches != 0 || snap.TotalClicks != 0 {
		t.Fatalf("expected zero totals, got %+v", snap)
	}
	if snap.ConversionRate != 0 || snap.SuccessRate != 0 || snap.ErrorRate != 0 {
		t.Fatalf("expected zero rates, got %+v", snap)
	}
	if len(snap.DailyActivity) != 7 {
		t.Fatalf("expected 7 daily entries, got %d", len(snap.DailyActivity))
	}
	for _, day := range snap.DailyActivity {
		if day.Searches != 0 || day.Clicks != 0 || day.Users != 0 {
			t.Fatalf("expected zero day, got %+v", day)
		}
		if day.Date == "" {
			t.Fatal("daily entries must carry a date label even when empty")
		}
	}
	if snap.TopSearches == nil || snap.TopVendors == nil || snap.RecentSearches == nil {
		t.Fatal("collections must be non-nil even when empty")
	}
}

func TestSnapshotDerivedMetrics(t *testing.T) {
	now := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)
	store := &fixedStore{
		users: []repo.User{
			{PhoneNumber: "22991111111", TotalMessages: 5, TotalSearches: 4, TotalClicks: 2, LastMessageAt: now.Add(-time.Hour)},
			{PhoneNumber: "22992222222", TotalMessages: 1, TotalSearches: 0, TotalClicks: 0, LastMessageAt: now.AddDate(0, 0, -3)},
		},
		logs: []repo.SearchLog{
			{UserPhone: "22991111111", Query: "iPhone", ResultsCount: 2, ResponseTimeMs: ms(100), CreatedAt: now.Add(-time.Hour), VendorsReturned: []string{"v1"}},
			{UserPhone: "22991111111", Query: "iphone", ResultsCount: 1, ResponseTimeMs: ms(300), CreatedAt: now.AddDate(0, 0, -1)},
			{UserPhone: "22992222222", Query: "chaussures", ResultsCount: 0, CreatedAt: now.AddDate(0, 0, -2)},
		},
		clicks: []repo.VendorClick{
			{UserPhone: "22991111111", VendorID: "v1", CreatedAt: now.Add(-time.Hour)},
		},
		vendors: []repo.Vendor{
			{ID: "v1", Name: "TechShop", City: "Cotonou"},
			{ID: "v2", Name: "ModeBoutique", City: "Porto-Novo"},
		},
		events: []repo.AnalyticsEvent{
			{EventType: "message_processed", EventData: map[string]any{"intent": "search_product"}},
			{EventType: "message_processed", EventData: map[string]any{"intent": "help"}},
			{EventType: "error"},
			{EventType: "message_processed", EventData: map[string]any{"intent": "other"}},
		},
	}
	agg := New(store, discard(), nil, time.Second)
	agg.now = func() time.Time { return now }

	snap := agg.Snapshot(context.Background())

	if snap.TotalUsers != 2 || snap.ActiveToday != 1 {
		t.Fatalf("user totals wrong: %+v", snap)
	}
	if snap.TotalSearches != 3 || snap.SearchesToday != 1 {
		t.Fatalf("search totals wrong: %+v", snap)
	}
	if snap.AvgSearchesPerUser != 2.0 || snap.AvgClicksPerUser != 1.0 {
		t.Fatalf("per-user averages wrong: %+v", snap)
	}
	if snap.ReturnRate != 50.0 {
		t.Fatalf("return rate: got %v", snap.ReturnRate)
	}
	// Both casings of the same query fold into one lowercase bucket.
	if snap.TopSearches["iphone"] != 2 {
		t.Fatalf("top searches: %v", snap.TopSearches)
	}
	if snap.AvgResponseTime != 200 || snap.MaxResponseTime != 300 {
		t.Fatalf("response times wrong: avg=%d max=%d", snap.AvgResponseTime, snap.MaxResponseTime)
	}
	if snap.ConversionRate != 33.3 {
		t.Fatalf("conversion rate: got %v", snap.ConversionRate)
	}
	if snap.ErrorRate != 25.0 || snap.SuccessRate != 75.0 {
		t.Fatalf("rates wrong: err=%v succ=%v", snap.ErrorRate, snap.SuccessRate)
	}
	if snap.ProductSearches != 1 || snap.HelpRequests != 1 || snap.OtherQueries != 1 {
		t.Fatalf("intent counts wrong: %+v", snap)
	}
	if len(snap.TopVendors) != 2 || snap.TopVendors[0].Name != "TechShop" {
		t.Fatalf("top vendors wrong: %+v", snap.TopVendors)
	}
	if snap.TopVendors[0].Views != 1 || snap.TopVendors[0].Clicks != 1 {
		t.Fatalf("vendor views/clicks wrong: %+v", snap.TopVendors[0])
	}
	if len(snap.RecentSearches) != 3 {
		t.Fatalf("recent searches wrong: %+v", snap.RecentSearches)
	}
	if snap.RecentSearches[0].UserPhone != "229****111" {
		t.Fatalf("masking wrong: %q", snap.RecentSearches[0].UserPhone)
	}
	if len(snap.DailyActivity) != 7 {
		t.Fatalf("expected 7 daily entries, got %d", len(snap.DailyActivity))
	}
	// Today is the last entry and carries today's search and click.
	last := snap.DailyActivity[6]
	if last.Searches != 1 || last.Clicks != 1 || last.Users != 1 {
		t.Fatalf("today's activity wrong: %+v", last)
	}
}

func TestSnapshotIsIdempotentOverFixedData(t *testing.T) {
	now := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)
	store := &fixedStore{
		users: []repo.User{{PhoneNumber: "22991111111", TotalMessages: 2, LastMessageAt: now}},
		logs:  []repo.SearchLog{{UserPhone: "22991111111", Query: "tv", ResultsCount: 1, CreatedAt: now}},
	}
	agg := New(store, discard(), nil, time.Second)
	agg.now = func() time.Time { return now }

	first := agg.Snapshot(context.Background())
	second := agg.Snapshot(context.Background())
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("snapshots differ:\n%+v\n%+v", first, second)
	}
}

func TestPeriodStatsCountsPerDay(t *testing.T) {
	now := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)
	store := &fixedStore{
		logs: []repo.SearchLog{
			{UserPhone: "a", Query: "tv", ResponseTimeMs: ms(100), CreatedAt: now.Add(-time.Hour)},
			{UserPhone: "b", Query: "tv", ResponseTimeMs: ms(200), CreatedAt: now.AddDate(0, 0, -1)},
			{UserPhone: "a", Query: "radio", CreatedAt: now.AddDate(0, 0, -1)},
		},
	}
	agg := New(store, discard(), nil, time.Second)
	agg.now = func() time.Time { return now }

	period := agg.PeriodStats(context.Background(), 7)

	if period.Period != "Last 7 days" {
		t.Fatalf("period label: %q", period.Period)
	}
	if period.TotalSearches != 3 || period.UniqueUsers != 2 {
		t.Fatalf("period totals wrong: %+v", period)
	}
	if period.AvgResponseTime != 150 {
		t.Fatalf("avg response: got %d", period.AvgResponseTime)
	}
	if len(period.DailyActivity) != 7 {
		t.Fatalf("expected 7 days, got %d", len(period.DailyActivity))
	}
	if period.DailyActivity[6].Searches != 1 || period.DailyActivity[5].Searches != 2 {
		t.Fatalf("per-day counts wrong: %+v", period.DailyActivity)
	}
}

func TestMaskPhone(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"22991234567", "229****567"},
		{"1234567", "123****567"},
		{"123456", "Hidden"},
		{"", "Hidden"},
	}
	for _, c := range cases {
		if got := maskPhone(c.in); got != c.want {
			t.Errorf("maskPhone(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}
