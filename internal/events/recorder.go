package events

import (
	"context"
	"log/slog"

	"wa-catalog/internal/metrics"
	"wa-catalog/internal/repo"
)

// Store is the slice of storage the recorder writes to.
type Store interface {
	InsertMessage(ctx context.Context, msg repo.MessageRecord) error
	InsertSearchLog(ctx context.Context, log repo.SearchLog) error
	InsertVendorClick(ctx context.Context, click repo.VendorClick) error
	InsertAnalyticsEvent(ctx context.Context, evt repo.AnalyticsEvent) error
	IncrementUserStat(ctx context.Context, phone, stat string) error
}

// StreamPublisher mirrors analytics events to an external stream.
type StreamPublisher interface {
	Publish(ctx context.Context, evt repo.AnalyticsEvent) error
}

// Recorder is the best-effort analytics write path. Every method swallows
// its own storage errors: a failed log write must never abort the message
// pipeline or delay a reply. Composite records are deliberately
// non-transactional; partial application is accepted.
type Recorder struct {
	store   Store
	stream  StreamPublisher
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// New builds a recorder. stream may be nil when no broker is configured.
func New(store Store, stream StreamPublisher, logger *slog.Logger, metricRegistry *metrics.Metrics) *Recorder {
	return &Recorder{
		store:   store,
		stream:  stream,
		logger:  logger.With("component", "events"),
		metrics: metricRegistry,
	}
}

// RecordMessage persists one inbound or outbound message.
func (r *Recorder) RecordMessage(ctx context.Context, msg repo.MessageRecord) {
	if err := r.store.InsertMessage(ctx, msg); err != nil {
		r.dropped("message", err)
	}
}

// RecordSearch persists a search log, its analytics event, and bumps the
// user's running search counter.
func (r *Recorder) RecordSearch(ctx context.Context, log repo.SearchLog) {
	if err := r.store.InsertSearchLog(ctx, log); err != nil {
		r.dropped("search_log", err)
	}

	r.RecordEvent(ctx, repo.AnalyticsEvent{
		EventType: "search",
		UserPhone: log.UserPhone,
		EventData: map[string]any{
			"query":         log.Query,
			"results_count": log.ResultsCount,
		},
		ResponseTimeMs: log.ResponseTimeMs,
	})

	if err := r.store.IncrementUserStat(ctx, log.UserPhone, "total_searches"); err != nil {
		r.dropped("search_counter", err)
	}
}

// RecordVendorClick persists a vendor click, its analytics event, and bumps
// the user's click counter.
func (r *Recorder) RecordVendorClick(ctx context.Context, click repo.VendorClick) {
	if err := r.store.InsertVendorClick(ctx, click); err != nil {
		r.dropped("vendor_click", err)
	}

	r.RecordEvent(ctx, repo.AnalyticsEvent{
		EventType: "vendor_click",
		UserPhone: click.UserPhone,
		EventData: map[string]any{
			"vendor_id":    click.VendorID,
			"search_query": click.SearchQuery,
		},
	})

	if err := r.store.IncrementUserStat(ctx, click.UserPhone, "total_clicks"); err != nil {
		r.dropped("click_counter", err)
	}
}

// RecordEvent persists one analytics event and, when configured, mirrors
// it onto the event stream.
func (r *Recorder) RecordEvent(ctx context.Context, evt repo.AnalyticsEvent) {
	if evt.UserPhone == "" {
		evt.UserPhone = "system"
	}
	if err := r.store.InsertAnalyticsEvent(ctx, evt); err != nil {
		r.dropped("analytics", err)
	}
	if r.stream != nil {
		if err := r.stream.Publish(ctx, evt); err != nil {
			r.dropped("stream", err)
		}
	}
}

func (r *Recorder) dropped(event string, err error) {
	r.logger.Warn("analytics write dropped", "event", event, "error", err)
	if r.metrics != nil {
		r.metrics.EventWriteErrors.WithLabelValues(event).Inc()
	}
}
