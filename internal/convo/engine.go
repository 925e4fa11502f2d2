package convo

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"wa-catalog/internal/metrics"
	"wa-catalog/internal/nlu"
	"wa-catalog/internal/repo"
	"wa-catalog/internal/search"
)

// sideEffectTimeout bounds each fire-and-forget write so a stuck database
// cannot pin goroutines forever.
const sideEffectTimeout = 5 * time.Second

// InboundMessage is one chat message handed to the router by the transport.
type InboundMessage struct {
	ID        string
	From      string
	To        string
	Body      string
	Kind      string
	Timestamp time.Time
	HasMedia  bool
	PushName  string
}

// Sender delivers a text reply to a chat identity.
type Sender interface {
	SendText(ctx context.Context, identity, text string) error
}

// Limiter gates per-identity message throughput.
type Limiter interface {
	Admit(identity string, now time.Time) bool
}

// Classifier is the AI collaborator used for routing and normalization.
type Classifier interface {
	ClassifyIntent(ctx context.Context, text string) (nlu.Classification, error)
	ExtractKeywords(ctx context.Context, text string) (nlu.Keywords, error)
}

// Searcher matches a free-text query against the catalog.
type Searcher interface {
	Search(ctx context.Context, query string) search.Results
}

// Recorder is the best-effort analytics sink.
type Recorder interface {
	RecordMessage(ctx context.Context, msg repo.MessageRecord)
	RecordSearch(ctx context.Context, log repo.SearchLog)
	RecordVendorClick(ctx context.Context, click repo.VendorClick)
	RecordEvent(ctx context.Context, evt repo.AnalyticsEvent)
}

// UserStore maintains user profiles.
type UserStore interface {
	UpsertUser(ctx context.Context, phone string, name *string) (*repo.User, error)
}

// Engine routes inbound messages to handlers by classified intent and owns
// the per-message side effects: receipt log, optional search or click log,
// and exactly one processed event.
type Engine struct {
	limiter    Limiter
	classifier Classifier
	searcher   Searcher
	recorder   Recorder
	users      UserStore
	sender     Sender
	logger     *slog.Logger
	metrics    *metrics.Metrics

	wg sync.WaitGroup
}

// New builds the router.
func New(limiter Limiter, classifier Classifier, searcher Searcher, recorder Recorder, users UserStore, sender Sender, logger *slog.Logger, metricRegistry *metrics.Metrics) *Engine {
	return &Engine{
		limiter:    limiter,
		classifier: classifier,
		searcher:   searcher,
		recorder:   recorder,
		users:      users,
		sender:     sender,
		logger:     logger.With("component", "convo"),
		metrics:    metricRegistry,
	}
}

// Drain blocks until all in-flight side-effect writes have finished.
func (e *Engine) Drain() {
	e.wg.Wait()
}

// ProcessMessage drives one inbound message end to end. It never returns an
// error and never panics out: any unexpected failure yields an apologetic
// reply and an error event.
func (e *Engine) ProcessMessage(ctx context.Context, msg InboundMessage) {
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("message handling panicked", "recovered", r, "message_id", msg.ID)
			if e.metrics != nil {
				e.metrics.Errors.WithLabelValues("convo").Inc()
			}
			e.reply(ctx, msg, formatError())
			e.async(func(sideCtx context.Context) {
				e.recorder.RecordEvent(sideCtx, repo.AnalyticsEvent{
					EventType: "error",
					UserPhone: msg.From,
					EventData: map[string]any{"message_id": msg.ID},
				})
			})
		}
	}()

	if e.metrics != nil {
		e.metrics.IncomingMessages.WithLabelValues(msg.Kind).Inc()
	}

	e.async(func(sideCtx context.Context) {
		e.recorder.RecordMessage(sideCtx, repo.MessageRecord{
			MessageID: msg.ID,
			FromPhone: msg.From,
			ToPhone:   msg.To,
			Body:      msg.Body,
			Kind:      msg.Kind,
			IsFromBot: false,
			SentAt:    msg.Timestamp,
		})
	})

	var name *string
	if msg.PushName != "" {
		n := msg.PushName
		name = &n
	}
	e.async(func(sideCtx context.Context) {
		if _, err := e.users.UpsertUser(sideCtx, msg.From, name); err != nil {
			e.logger.Warn("user upsert failed", "identity", msg.From, "error", err)
		}
	})

	if !e.limiter.Admit(msg.From, start) {
		if e.metrics != nil {
			e.metrics.RateLimited.Inc()
		}
		e.reply(ctx, msg, formatRateLimit())
		e.processed(msg, "rate_limited", start)
		return
	}

	if msg.HasMedia && msg.Body == "" {
		e.reply(ctx, msg, formatMediaAck())
		e.processed(msg, "media", start)
		return
	}

	class, err := e.classifier.ClassifyIntent(ctx, msg.Body)
	if err != nil {
		e.logger.Debug("intent classification failed, routing as other", "error", err)
		class = nlu.Classification{Intent: nlu.IntentOther}
	}

	var text string
	switch {
	case class.Intent == nlu.IntentGreeting:
		text = formatWelcome(msg.PushName)
	case class.Intent == nlu.IntentHelp:
		text = formatHelp()
	case class.Intent == nlu.IntentComplaint:
		text = formatComplaintAck()
	case class.Intent.IsSearch():
		text = e.handleSearch(ctx, msg, class.Intent, msg.Body)
	case class.Intent == nlu.IntentOrder:
		text = e.handleOrder(ctx, msg, class)
	default:
		text = e.handleOther(ctx, msg)
	}
	if text == "" {
		text = formatDidNotUnderstand()
	}

	if e.metrics != nil {
		e.metrics.IntentsRouted.WithLabelValues(string(class.Intent)).Inc()
	}
	e.reply(ctx, msg, text)
	e.processed(msg, string(class.Intent), start)
}

func (e *Engine) handleSearch(ctx context.Context, msg InboundMessage, intent nlu.Intent, query string) string {
	res := e.searcher.Search(ctx, query)

	e.async(func(sideCtx context.Context) {
		e.recorder.RecordSearch(sideCtx, repo.SearchLog{
			UserPhone:       msg.From,
			Query:           query,
			Intent:          string(intent),
			ResultsCount:    res.Count(),
			VendorsReturned: res.VendorIDs(),
		})
	})

	return formatSearchResults(res, query)
}

func (e *Engine) handleOrder(ctx context.Context, msg InboundMessage, class nlu.Classification) string {
	target := class.Entity("product")
	if target == "" {
		target = class.Entity("vendor")
	}
	if target == "" {
		return formatOrderPrompt()
	}

	res := e.searcher.Search(ctx, target)
	for _, p := range res.Products {
		if p.Vendor == nil {
			continue
		}
		vendor := *p.Vendor
		query := msg.Body
		e.async(func(sideCtx context.Context) {
			e.recorder.RecordVendorClick(sideCtx, repo.VendorClick{
				UserPhone:   msg.From,
				VendorID:    vendor.ID,
				SearchQuery: &query,
			})
		})
		return formatOrderConfirmation(vendor, p, msg.From)
	}
	return formatOrderMiss()
}

// handleOther retries unclassified messages as a search when keyword
// extraction finds anything usable. An unreachable classifier falls back
// to raw tokenization so the catalog stays searchable.
func (e *Engine) handleOther(ctx context.Context, msg InboundMessage) string {
	keywords, err := e.classifier.ExtractKeywords(ctx, msg.Body)
	if err != nil {
		if len(nlu.Tokenize(msg.Body)) == 0 {
			return formatDidNotUnderstand()
		}
	} else if len(keywords.Keywords) == 0 {
		return formatDidNotUnderstand()
	}
	return e.handleSearch(ctx, msg, nlu.IntentSearchProduct, msg.Body)
}

func (e *Engine) reply(ctx context.Context, msg InboundMessage, text string) {
	if text == "" {
		return
	}
	if err := e.sender.SendText(ctx, msg.From, text); err != nil {
		e.logger.Error("reply delivery failed", "identity", msg.From, "error", err)
		if e.metrics != nil {
			e.metrics.Errors.WithLabelValues("convo").Inc()
		}
		return
	}
	if e.metrics != nil {
		e.metrics.OutgoingMessages.WithLabelValues("text").Inc()
	}
	e.async(func(sideCtx context.Context) {
		e.recorder.RecordMessage(sideCtx, repo.MessageRecord{
			MessageID: "bot_" + uuid.NewString(),
			FromPhone: msg.To,
			ToPhone:   msg.From,
			Body:      text,
			Kind:      "text",
			IsFromBot: true,
			SentAt:    time.Now(),
		})
	})
}

// processed emits the single terminal analytics event for one message.
func (e *Engine) processed(msg InboundMessage, intent string, start time.Time) {
	elapsed := time.Since(start).Milliseconds()
	e.async(func(sideCtx context.Context) {
		e.recorder.RecordEvent(sideCtx, repo.AnalyticsEvent{
			EventType: "message_processed",
			UserPhone: msg.From,
			EventData: map[string]any{
				"intent":       intent,
				"message_kind": msg.Kind,
				"response_ms":  elapsed,
			},
			ResponseTimeMs: &elapsed,
		})
	})
}

// async runs a side-effect write without delaying the reply. The write gets
// a detached context so an already-answered message cannot cancel it.
func (e *Engine) async(fn func(ctx context.Context)) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), sideEffectTimeout)
		defer cancel()
		fn(ctx)
	}()
}
