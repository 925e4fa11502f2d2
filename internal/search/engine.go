package search

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"wa-catalog/internal/cache"
	"wa-catalog/internal/metrics"
	"wa-catalog/internal/nlu"
	"wa-catalog/internal/repo"
)

const (
	candidateCap      = 10
	candidateCacheTTL = time.Minute
)

// CatalogStore is the slice of storage the engine reads.
type CatalogStore interface {
	ListInStockProducts(ctx context.Context, limit int) ([]repo.Product, error)
	ListActiveVendors(ctx context.Context, city string, limit int) ([]repo.Vendor, error)
}

// Normalizer turns a raw query into keywords plus category/location hints.
type Normalizer interface {
	ExtractKeywords(ctx context.Context, text string) (nlu.Keywords, error)
	ImproveQuery(ctx context.Context, text string) (string, error)
}

// Results holds matched catalog entities in upstream fetch order.
type Results struct {
	Products []repo.Product
	Vendors  []repo.Vendor
}

// Count returns the total number of matched entities.
func (r Results) Count() int {
	return len(r.Products) + len(r.Vendors)
}

// VendorIDs returns the ids of matched vendors in result order.
func (r Results) VendorIDs() []string {
	ids := make([]string, 0, len(r.Vendors))
	for _, v := range r.Vendors {
		ids = append(ids, v.ID)
	}
	return ids
}

// Engine performs keyword search over the product and vendor catalog.
type Engine struct {
	store   CatalogStore
	nlu     Normalizer
	cache   *cache.Redis
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// New builds a search engine. cache may be nil.
func New(store CatalogStore, normalizer Normalizer, redis *cache.Redis, logger *slog.Logger, metricRegistry *metrics.Metrics) *Engine {
	return &Engine{
		store:   store,
		nlu:     normalizer,
		cache:   redis,
		logger:  logger.With("component", "search"),
		metrics: metricRegistry,
	}
}

// Search matches the query against in-stock products and active verified
// vendors. It never fails: normalization falls back to naive tokenization
// and storage errors yield empty results.
func (e *Engine) Search(ctx context.Context, query string) Results {
	start := time.Now()
	defer func() {
		if e.metrics != nil {
			e.metrics.SearchDuration.Observe(time.Since(start).Seconds())
		}
	}()

	keywords, location := e.normalize(ctx, query)
	if len(keywords) == 0 {
		return Results{}
	}

	products := e.fetchProducts(ctx)
	vendors := e.fetchVendors(ctx, location)

	var res Results
	for _, p := range products {
		if matchesAny(productText(p), keywords) {
			res.Products = append(res.Products, p)
		}
	}
	for _, v := range vendors {
		if matchesAny(vendorText(v), keywords) {
			res.Vendors = append(res.Vendors, v)
		}
	}
	return res
}

func (e *Engine) normalize(ctx context.Context, query string) (keywords []string, location string) {
	extracted, err := e.nlu.ExtractKeywords(ctx, query)
	if err == nil {
		return extracted.Keywords, extracted.Location
	}
	e.logger.Debug("keyword extraction failed, falling back", "error", err)
	if improved, impErr := e.nlu.ImproveQuery(ctx, query); impErr == nil {
		return nlu.Tokenize(improved), ""
	}
	return nlu.Tokenize(query), ""
}

func (e *Engine) fetchProducts(ctx context.Context) []repo.Product {
	const cacheKey = "catalog:products:instock"
	if e.cache != nil {
		var cached []repo.Product
		if ok, err := e.cache.GetJSON(ctx, cacheKey, &cached); err != nil {
			e.logger.Warn("product cache read failed", "error", err)
		} else if ok {
			return cached
		}
	}

	products, err := e.store.ListInStockProducts(ctx, candidateCap)
	if err != nil {
		e.logger.Warn("product candidate fetch failed", "error", err)
		if e.metrics != nil {
			e.metrics.Errors.WithLabelValues("search").Inc()
		}
		return nil
	}

	if e.cache != nil {
		if err := e.cache.SetJSON(ctx, cacheKey, products, candidateCacheTTL); err != nil {
			e.logger.Warn("product cache write failed", "error", err)
		}
	}
	return products
}

func (e *Engine) fetchVendors(ctx context.Context, city string) []repo.Vendor {
	cacheKey := fmt.Sprintf("catalog:vendors:active:%s", strings.ToLower(city))
	if e.cache != nil {
		var cached []repo.Vendor
		if ok, err := e.cache.GetJSON(ctx, cacheKey, &cached); err != nil {
			e.logger.Warn("vendor cache read failed", "error", err)
		} else if ok {
			return cached
		}
	}

	vendors, err := e.store.ListActiveVendors(ctx, city, candidateCap)
	if err != nil {
		e.logger.Warn("vendor candidate fetch failed", "error", err)
		if e.metrics != nil {
			e.metrics.Errors.WithLabelValues("search").Inc()
		}
		return nil
	}

	if e.cache != nil {
		if err := e.cache.SetJSON(ctx, cacheKey, vendors, candidateCacheTTL); err != nil {
			e.logger.Warn("vendor cache write failed", "error", err)
		}
	}
	return vendors
}

// matchesAny retains a candidate when any keyword appears as a
// case-insensitive substring of its searchable text.
func matchesAny(searchable string, keywords []string) bool {
	searchable = strings.ToLower(searchable)
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw == "" {
			continue
		}
		if strings.Contains(searchable, kw) {
			return true
		}
	}
	return false
}

func productText(p repo.Product) string {
	parts := []string{p.Name, p.Description, p.Category}
	parts = append(parts, p.Keywords...)
	return strings.Join(parts, " ")
}

func vendorText(v repo.Vendor) string {
	parts := []string{v.Name, v.City}
	parts = append(parts, v.Categories...)
	return strings.Join(parts, " ")
}
