package repo

import (
	"context"
	"io/fs"
	"time"
)

// Store defines the persistence operations the pipeline and aggregator
// depend on. *Repository is the Postgres implementation; tests substitute
// in-memory fakes.
type Store interface {
	// Lifecycle
	Close()
	Ping(ctx context.Context) error
	RunMigrations(ctx context.Context, filesystem fs.FS) error

	// Users
	UpsertUser(ctx context.Context, phone string, name *string) (*User, error)
	GetUserByPhone(ctx context.Context, phone string) (*User, error)
	IncrementUserStat(ctx context.Context, phone, stat string) error
	ListUsers(ctx context.Context, limit int) ([]User, error)
	CountUsersActiveBetween(ctx context.Context, from, to time.Time) (int, error)

	// Messages
	InsertMessage(ctx context.Context, msg MessageRecord) error

	// Search logs
	InsertSearchLog(ctx context.Context, log SearchLog) error
	ListRecentSearchLogs(ctx context.Context, limit int) ([]SearchLog, error)
	ListSearchLogsSince(ctx context.Context, since time.Time, limit int) ([]SearchLog, error)
	CountSearchLogsBetween(ctx context.Context, from, to time.Time) (int, error)

	// Vendor clicks
	InsertVendorClick(ctx context.Context, click VendorClick) error
	ListVendorClicks(ctx context.Context, limit int) ([]VendorClick, error)
	CountVendorClicksBetween(ctx context.Context, from, to time.Time) (int, error)

	// Analytics events
	InsertAnalyticsEvent(ctx context.Context, evt AnalyticsEvent) error
	ListRecentAnalyticsEvents(ctx context.Context, limit int) ([]AnalyticsEvent, error)

	// Catalog reads
	ListInStockProducts(ctx context.Context, limit int) ([]Product, error)
	ListActiveVendors(ctx context.Context, city string, limit int) ([]Vendor, error)
	ListVendorSample(ctx context.Context, limit int) ([]Vendor, error)

	// Catalog CRUD (admin surface)
	GetVendorByID(ctx context.Context, id string) (*Vendor, error)
	InsertVendor(ctx context.Context, v Vendor) (*Vendor, error)
	UpdateVendor(ctx context.Context, v Vendor) error
	DeleteVendor(ctx context.Context, id string) error
	GetProductByID(ctx context.Context, id string) (*Product, error)
	InsertProduct(ctx context.Context, p Product) (*Product, error)
	UpdateProduct(ctx context.Context, p Product) error
	DeleteProduct(ctx context.Context, id string) error

	// API keys
	SyncGeminiKeys(ctx context.Context, keys []string) error
	ListActiveGeminiKeys(ctx context.Context) ([]APIKey, error)
	SetCooldownUntil(ctx context.Context, id string, until time.Time) error
	MarkKeyUsed(ctx context.Context, id string) error
}
