package stats

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"

	"wa-catalog/internal/metrics"
	"wa-catalog/internal/repo"
)

const (
	userFetchLimit      = 1000
	searchFetchLimit    = 100
	clickFetchLimit     = 1000
	vendorSampleLimit   = 20
	analyticsFetchLimit = 200

	recentSearchesShown = 10
	topSearchesShown    = 10
	topVendorsShown     = 8
	dailyActivityDays   = 7
)

// Store is the slice of storage the aggregator reads.
type Store interface {
	ListUsers(ctx context.Context, limit int) ([]repo.User, error)
	ListRecentSearchLogs(ctx context.Context, limit int) ([]repo.SearchLog, error)
	ListSearchLogsSince(ctx context.Context, since time.Time, limit int) ([]repo.SearchLog, error)
	ListVendorClicks(ctx context.Context, limit int) ([]repo.VendorClick, error)
	ListVendorSample(ctx context.Context, limit int) ([]repo.Vendor, error)
	ListRecentAnalyticsEvents(ctx context.Context, limit int) ([]repo.AnalyticsEvent, error)
	CountSearchLogsBetween(ctx context.Context, from, to time.Time) (int, error)
	CountVendorClicksBetween(ctx context.Context, from, to time.Time) (int, error)
	CountUsersActiveBetween(ctx context.Context, from, to time.Time) (int, error)
}

// DailyActivity is one day of the trailing activity series.
type DailyActivity struct {
	Date     string `json:"date"`
	Searches int    `json:"searches"`
	Clicks   int    `json:"clicks"`
	Users    int    `json:"users"`
}

// TopVendor is one row of the vendor leaderboard.
type TopVendor struct {
	Name   string `json:"name"`
	City   string `json:"city"`
	Views  int    `json:"views"`
	Clicks int    `json:"clicks"`
}

// RecentSearch is one row of the masked recent-search preview.
type RecentSearch struct {
	Query     string    `json:"query"`
	UserPhone string    `json:"userPhone"`
	Timestamp time.Time `json:"timestamp"`
	Results   int       `json:"results"`
}

// Snapshot is the dashboard payload. Every field is populated on every
// call; sub-queries that fail or time out leave their fields at zero.
type Snapshot struct {
	TotalUsers         int             `json:"totalUsers"`
	ActiveToday        int             `json:"activeToday"`
	TotalSearches      int             `json:"totalSearches"`
	SearchesToday      int             `json:"searchesToday"`
	TotalClicks        int             `json:"totalClicks"`
	AvgResponseTime    int64           `json:"avgResponseTime"`
	MaxResponseTime    int64           `json:"maxResponseTime"`
	ConversionRate     float64         `json:"conversionRate"`
	ReturnRate         float64         `json:"returnRate"`
	SuccessRate        float64         `json:"successRate"`
	ErrorRate          float64         `json:"errorRate"`
	AvgSearchesPerUser float64         `json:"avgSearchesPerUser"`
	AvgClicksPerUser   float64         `json:"avgClicksPerUser"`
	ProductSearches    int             `json:"productSearches"`
	VendorSearches     int             `json:"vendorSearches"`
	HelpRequests       int             `json:"helpRequests"`
	OtherQueries       int             `json:"otherQueries"`
	TopSearches        map[string]int  `json:"topSearches"`
	TopVendors         []TopVendor     `json:"topVendors"`
	DailyActivity      []DailyActivity `json:"dailyActivity"`
	RecentSearches     []RecentSearch  `json:"recentSearches"`
}

// PeriodStats summarizes search activity over a trailing period.
type PeriodStats struct {
	Period          string          `json:"period"`
	TotalSearches   int             `json:"totalSearches"`
	AvgResponseTime int64           `json:"avgResponseTime"`
	UniqueUsers     int             `json:"uniqueUsers"`
	DailyActivity   []DailyActivity `json:"dailyActivity"`
}

// Aggregator computes dashboard statistics from bounded storage reads.
// It degrades instead of failing: a slow or broken sub-query zeroes its
// slice of the snapshot and nothing else.
type Aggregator struct {
	store        Store
	logger       *slog.Logger
	metrics      *metrics.Metrics
	queryTimeout time.Duration
	now          func() time.Time
}

// New builds an aggregator. queryTimeout bounds the slowest sub-query;
// lighter reads get a fraction of it.
func New(store Store, logger *slog.Logger, metricRegistry *metrics.Metrics, queryTimeout time.Duration) *Aggregator {
	if queryTimeout <= 0 {
		queryTimeout = 3 * time.Second
	}
	return &Aggregator{
		store:        store,
		logger:       logger.With("component", "stats"),
		metrics:      metricRegistry,
		queryTimeout: queryTimeout,
		now:          time.Now,
	}
}

// Snapshot computes the full dashboard snapshot. It always returns a
// fully-populated value; it never returns an error.
func (a *Aggregator) Snapshot(ctx context.Context) Snapshot {
	start := time.Now()
	defer func() {
		if a.metrics != nil {
			a.metrics.SnapshotDuration.Observe(time.Since(start).Seconds())
		}
	}()

	now := a.now()
	snap := emptySnapshot(now)

	var (
		users   []repo.User
		logs    []repo.SearchLog
		clicks  []repo.VendorClick
		vendors []repo.Vendor
		events  []repo.AnalyticsEvent
	)

	shortTimeout := a.queryTimeout * 2 / 3
	outcomes := settleAll(ctx, []fetchOp{
		{name: "users", timeout: a.queryTimeout, run: func(ctx context.Context) (func(), error) {
			rows, err := a.store.ListUsers(ctx, userFetchLimit)
			return func() { users = rows }, err
		}},
		{name: "search_logs", timeout: a.queryTimeout, run: func(ctx context.Context) (func(), error) {
			rows, err := a.store.ListRecentSearchLogs(ctx, searchFetchLimit)
			return func() { logs = rows }, err
		}},
		{name: "vendor_clicks", timeout: shortTimeout, run: func(ctx context.Context) (func(), error) {
			rows, err := a.store.ListVendorClicks(ctx, clickFetchLimit)
			return func() { clicks = rows }, err
		}},
		{name: "vendors", timeout: shortTimeout, run: func(ctx context.Context) (func(), error) {
			rows, err := a.store.ListVendorSample(ctx, vendorSampleLimit)
			return func() { vendors = rows }, err
		}},
		{name: "analytics", timeout: shortTimeout, run: func(ctx context.Context) (func(), error) {
			rows, err := a.store.ListRecentAnalyticsEvents(ctx, analyticsFetchLimit)
			return func() { events = rows }, err
		}},
	})

	for name, outcome := range outcomes {
		if a.metrics != nil {
			a.metrics.SnapshotQueries.WithLabelValues(name, outcome).Inc()
		}
		if outcome != outcomeSuccess {
			a.logger.Warn("snapshot sub-query degraded", "query", name, "outcome", outcome)
		}
	}

	today := midnight(now)
	a.foldUsers(&snap, users, today)
	a.foldSearchLogs(&snap, logs, today)
	a.foldClicks(&snap, clicks)
	a.foldTopVendors(&snap, vendors, clicks, logs)
	a.foldAnalytics(&snap, events)
	a.foldDailyActivity(&snap, users, logs, clicks, now)

	return snap
}

func (a *Aggregator) foldUsers(snap *Snapshot, users []repo.User, today time.Time) {
	snap.TotalUsers = len(users)
	if len(users) == 0 {
		return
	}
	var searches, clicks, returning int
	for _, u := range users {
		if !u.LastMessageAt.Before(today) {
			snap.ActiveToday++
		}
		searches += u.TotalSearches
		clicks += u.TotalClicks
		if u.TotalMessages > 1 {
			returning++
		}
	}
	snap.AvgSearchesPerUser = round1(float64(searches) / float64(len(users)))
	snap.AvgClicksPerUser = round1(float64(clicks) / float64(len(users)))
	snap.ReturnRate = round1(float64(returning) / float64(len(users)) * 100)
}

func (a *Aggregator) foldSearchLogs(snap *Snapshot, logs []repo.SearchLog, today time.Time) {
	snap.TotalSearches = len(logs)
	if len(logs) == 0 {
		return
	}

	for _, log := range logs {
		if !log.CreatedAt.Before(today) {
			snap.SearchesToday++
		}
	}

	for i, log := range logs {
		if i == recentSearchesShown {
			break
		}
		query := log.Query
		if query == "" {
			query = "Unknown"
		}
		snap.RecentSearches = append(snap.RecentSearches, RecentSearch{
			Query:     query,
			UserPhone: maskPhone(log.UserPhone),
			Timestamp: log.CreatedAt,
			Results:   log.ResultsCount,
		})
	}

	counts := make(map[string]int)
	for _, log := range logs {
		query := strings.ToLower(log.Query)
		if query == "" {
			query = "unknown"
		}
		counts[query]++
	}
	snap.TopSearches = topN(counts, topSearchesShown)

	var sum, max, sampled int64
	for _, log := range logs {
		if log.ResponseTimeMs == nil {
			continue
		}
		sampled++
		sum += *log.ResponseTimeMs
		if *log.ResponseTimeMs > max {
			max = *log.ResponseTimeMs
		}
	}
	if sampled > 0 {
		snap.AvgResponseTime = sum / sampled
		snap.MaxResponseTime = max
	}
}

func (a *Aggregator) foldClicks(snap *Snapshot, clicks []repo.VendorClick) {
	snap.TotalClicks = len(clicks)
	if snap.TotalSearches > 0 {
		snap.ConversionRate = round1(float64(snap.TotalClicks) / float64(snap.TotalSearches) * 100)
	}
}

func (a *Aggregator) foldTopVendors(snap *Snapshot, vendors []repo.Vendor, clicks []repo.VendorClick, logs []repo.SearchLog) {
	if len(vendors) == 0 {
		return
	}

	clicksByVendor := make(map[string]int)
	for _, c := range clicks {
		clicksByVendor[c.VendorID]++
	}
	viewsByVendor := make(map[string]int)
	for _, log := range logs {
		for _, id := range log.VendorsReturned {
			viewsByVendor[id]++
		}
	}

	top := make([]TopVendor, 0, len(vendors))
	for _, v := range vendors {
		top = append(top, TopVendor{
			Name:   v.Name,
			City:   v.City,
			Views:  viewsByVendor[v.ID],
			Clicks: clicksByVendor[v.ID],
		})
	}
	sort.SliceStable(top, func(i, j int) bool { return top[i].Clicks > top[j].Clicks })
	if len(top) > topVendorsShown {
		top = top[:topVendorsShown]
	}
	snap.TopVendors = top
}

func (a *Aggregator) foldAnalytics(snap *Snapshot, events []repo.AnalyticsEvent) {
	if len(events) == 0 {
		return
	}

	var errorEvents int
	for _, evt := range events {
		if evt.EventType == "error" {
			errorEvents++
		}
		if evt.EventType != "message_processed" {
			continue
		}
		intent, _ := evt.EventData["intent"].(string)
		switch {
		case intent == "search_product" || intent == "search_location":
			snap.ProductSearches++
		case intent == "search_vendor":
			snap.VendorSearches++
		case intent == "help":
			snap.HelpRequests++
		case intent == "other":
			snap.OtherQueries++
		}
	}

	snap.ErrorRate = round1(float64(errorEvents) / float64(len(events)) * 100)
	snap.SuccessRate = round1(100 - snap.ErrorRate)
}

// foldDailyActivity counts per-day activity over the in-memory samples.
// The series always has seven entries, oldest first.
func (a *Aggregator) foldDailyActivity(snap *Snapshot, users []repo.User, logs []repo.SearchLog, clicks []repo.VendorClick, now time.Time) {
	for i := range snap.DailyActivity {
		dayStart := midnight(now).AddDate(0, 0, i-(dailyActivityDays-1))
		dayEnd := dayStart.AddDate(0, 0, 1)
		day := &snap.DailyActivity[i]

		for _, log := range logs {
			if inRange(log.CreatedAt, dayStart, dayEnd) {
				day.Searches++
			}
		}
		for _, c := range clicks {
			if inRange(c.CreatedAt, dayStart, dayEnd) {
				day.Clicks++
			}
		}
		for _, u := range users {
			if inRange(u.LastMessageAt, dayStart, dayEnd) {
				day.Users++
			}
		}
	}
}

// PeriodStats summarizes the trailing period with bounded range queries.
// Like Snapshot it degrades to zeros instead of failing.
func (a *Aggregator) PeriodStats(ctx context.Context, days int) PeriodStats {
	if days <= 0 {
		days = 7
	}
	now := a.now()
	since := midnight(now).AddDate(0, 0, -(days - 1))

	out := PeriodStats{
		Period:        fmt.Sprintf("Last %d days", days),
		DailyActivity: make([]DailyActivity, 0, days),
	}

	logCtx, cancel := context.WithTimeout(ctx, a.queryTimeout)
	logs, err := a.store.ListSearchLogsSince(logCtx, since, userFetchLimit)
	cancel()
	if err != nil {
		a.logger.Warn("period search-log fetch degraded", "error", err)
	} else {
		out.TotalSearches = len(logs)
		seen := make(map[string]struct{})
		var sum, sampled int64
		for _, log := range logs {
			seen[log.UserPhone] = struct{}{}
			if log.ResponseTimeMs != nil {
				sum += *log.ResponseTimeMs
				sampled++
			}
		}
		out.UniqueUsers = len(seen)
		if sampled > 0 {
			out.AvgResponseTime = sum / sampled
		}
	}

	for i := days - 1; i >= 0; i-- {
		dayStart := midnight(now).AddDate(0, 0, -i)
		dayEnd := dayStart.AddDate(0, 0, 1)
		day := DailyActivity{Date: dayStart.Format("Mon")}

		dayCtx, cancel := context.WithTimeout(ctx, a.queryTimeout)
		if n, err := a.store.CountSearchLogsBetween(dayCtx, dayStart, dayEnd); err == nil {
			day.Searches = n
		} else {
			a.logger.Warn("period day count degraded", "query", "searches", "error", err)
		}
		if n, err := a.store.CountVendorClicksBetween(dayCtx, dayStart, dayEnd); err == nil {
			day.Clicks = n
		} else {
			a.logger.Warn("period day count degraded", "query", "clicks", "error", err)
		}
		if n, err := a.store.CountUsersActiveBetween(dayCtx, dayStart, dayEnd); err == nil {
			day.Users = n
		} else {
			a.logger.Warn("period day count degraded", "query", "users", "error", err)
		}
		cancel()

		out.DailyActivity = append(out.DailyActivity, day)
	}
	return out
}

// emptySnapshot is the zero-defaulted payload every call starts from. The
// daily series is pre-filled with seven labeled zero days, oldest first.
func emptySnapshot(now time.Time) Snapshot {
	daily := make([]DailyActivity, 0, dailyActivityDays)
	for i := dailyActivityDays - 1; i >= 0; i-- {
		daily = append(daily, DailyActivity{Date: midnight(now).AddDate(0, 0, -i).Format("Mon")})
	}
	return Snapshot{
		TopSearches:    map[string]int{},
		TopVendors:     []TopVendor{},
		DailyActivity:  daily,
		RecentSearches: []RecentSearch{},
	}
}

// maskPhone hides the middle of a phone-like identity: first three and
// last three characters survive, anything shorter than seven is hidden
// entirely.
func maskPhone(phone string) string {
	if len(phone) < 7 {
		return "Hidden"
	}
	return phone[:3] + "****" + phone[len(phone)-3:]
}

func topN(counts map[string]int, n int) map[string]int {
	type kv struct {
		k string
		v int
	}
	sorted := make([]kv, 0, len(counts))
	for k, v := range counts {
		sorted = append(sorted, kv{k, v})
	}
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].v != sorted[j].v {
			return sorted[i].v > sorted[j].v
		}
		return sorted[i].k < sorted[j].k
	})
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	out := make(map[string]int, len(sorted))
	for _, e := range sorted {
		out[e.k] = e.v
	}
	return out
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func inRange(t, from, to time.Time) bool {
	return !t.Before(from) && t.Before(to)
}

func round1(x float64) float64 {
	return math.Round(x*10) / 10
}
