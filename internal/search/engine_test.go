package search

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"wa-catalog/internal/nlu"
	"wa-catalog/internal/repo"
)

type fakeCatalog struct {
	products    []repo.Product
	vendors     []repo.Vendor
	productsErr error
	vendorsErr  error
	lastCity    string
}

func (f *fakeCatalog) ListInStockProducts(ctx context.Context, limit int) ([]repo.Product, error) {
	return f.products, f.productsErr
}

func (f *fakeCatalog) ListActiveVendors(ctx context.Context, city string, limit int) ([]repo.Vendor, error) {
	f.lastCity = city
	return f.vendors, f.vendorsErr
}

type fakeNormalizer struct {
	keywords nlu.Keywords
	improved string
	err      error
}

func (f *fakeNormalizer) ExtractKeywords(ctx context.Context, text string) (nlu.Keywords, error) {
	return f.keywords, f.err
}

func (f *fakeNormalizer) ImproveQuery(ctx context.Context, text string) (string, error) {
	if f.improved == "" {
		return "", f.err
	}
	return f.improved, nil
}

func discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestSearchMatchesKeywordSubstring(t *testing.T) {
	catalog := &fakeCatalog{
		products: []repo.Product{
			{ID: "p1", Name: "iPhone 13 128GB", Keywords: []string{"iphone", "apple"}, Availability: "in_stock"},
			{ID: "p2", Name: "Samsung Galaxy S21", Availability: "in_stock"},
		},
		vendors: []repo.Vendor{
			{ID: "v1", Name: "TechShop", City: "Cotonou", Categories: []string{"Electronique"}},
		},
	}
	engine := New(catalog, &fakeNormalizer{keywords: nlu.Keywords{Keywords: []string{"iphone"}}}, nil, discard(), nil)

	res := engine.Search(context.Background(), "iPhone 13")
	if len(res.Products) != 1 || res.Products[0].ID != "p1" {
		t.Fatalf("expected only p1, got %+v", res.Products)
	}
	if len(res.Vendors) != 0 {
		t.Fatalf("expected no vendor match, got %+v", res.Vendors)
	}
	if res.Count() != 1 {
		t.Fatalf("expected count 1, got %d", res.Count())
	}
}

func TestSearchFallsBackToTokenizationWhenNormalizerFails(t *testing.T) {
	catalog := &fakeCatalog{
		products: []repo.Product{
			{ID: "p1", Name: "iPhone 13 128GB", Keywords: []string{"iphone"}, Availability: "in_stock"},
		},
	}
	engine := New(catalog, &fakeNormalizer{err: errors.New("classifier down")}, nil, discard(), nil)

	res := engine.Search(context.Background(), "iPhone 13")
	if len(res.Products) != 1 {
		t.Fatalf("expected fallback tokenization to match, got %+v", res.Products)
	}
}

func TestSearchUsesImprovedQueryWhenExtractionFails(t *testing.T) {
	catalog := &fakeCatalog{
		products: []repo.Product{
			{ID: "p1", Name: "iPhone 13 128GB", Keywords: []string{"iphone"}, Availability: "in_stock"},
		},
	}
	norm := &fakeNormalizer{err: errors.New("extraction down"), improved: "iphone"}
	engine := New(catalog, norm, nil, discard(), nil)

	res := engine.Search(context.Background(), "ifone 13")
	if len(res.Products) != 1 {
		t.Fatalf("expected improved-query match, got %+v", res.Products)
	}
}

func TestSearchPassesLocationToVendorFetch(t *testing.T) {
	catalog := &fakeCatalog{
		vendors: []repo.Vendor{
			{ID: "v1", Name: "Resto Parakou", City: "Parakou", Categories: []string{"Alimentation"}},
		},
	}
	norm := &fakeNormalizer{keywords: nlu.Keywords{Keywords: []string{"resto"}, Location: "Parakou"}}
	engine := New(catalog, norm, nil, discard(), nil)

	res := engine.Search(context.Background(), "restaurants à Parakou")
	if catalog.lastCity != "Parakou" {
		t.Fatalf("expected city narrowing, got %q", catalog.lastCity)
	}
	if len(res.Vendors) != 1 {
		t.Fatalf("expected one vendor, got %+v", res.Vendors)
	}
}

func TestSearchEmptyQueryReturnsEmptyResults(t *testing.T) {
	engine := New(&fakeCatalog{}, &fakeNormalizer{err: errors.New("down")}, nil, discard(), nil)
	res := engine.Search(context.Background(), "")
	if res.Count() != 0 {
		t.Fatalf("expected empty results, got %d", res.Count())
	}
}

func TestSearchStorageFailureYieldsEmptyNotError(t *testing.T) {
	catalog := &fakeCatalog{
		productsErr: errors.New("db down"),
		vendorsErr:  errors.New("db down"),
	}
	engine := New(catalog, &fakeNormalizer{keywords: nlu.Keywords{Keywords: []string{"iphone"}}}, nil, discard(), nil)
	res := engine.Search(context.Background(), "iphone")
	if res.Count() != 0 {
		t.Fatalf("expected empty results on storage failure, got %d", res.Count())
	}
}
