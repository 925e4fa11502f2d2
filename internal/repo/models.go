package repo

import "time"

// User represents a bot_users row, keyed by the phone-like identity.
type User struct {
	ID            string
	PhoneNumber   string
	Name          *string
	TotalMessages int
	TotalSearches int
	TotalClicks   int
	LastMessageAt time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// MessageRecord persists one inbound or outbound chat message.
type MessageRecord struct {
	MessageID string
	FromPhone string
	ToPhone   string
	Body      string
	Kind      string
	MediaURL  *string
	IsFromBot bool
	SentAt    time.Time
	CreatedAt time.Time
}

// SearchLog is the append-only record of one catalog search.
type SearchLog struct {
	ID              string
	UserPhone       string
	Query           string
	Intent          string
	ResultsCount    int
	VendorsReturned []string
	ResponseTimeMs  *int64
	CreatedAt       time.Time
}

// VendorClick records a user expressing interest in a vendor.
type VendorClick struct {
	ID          string
	UserPhone   string
	VendorID    string
	SearchQuery *string
	CreatedAt   time.Time
}

// AnalyticsEvent is the append-only audit trail of notable occurrences.
// UserPhone is "system" for events without a user dimension.
type AnalyticsEvent struct {
	ID             string
	EventType      string
	UserPhone      string
	EventData      map[string]any
	ResponseTimeMs *int64
	CreatedAt      time.Time
}

// Vendor represents a vendors row.
type Vendor struct {
	ID             string
	Name           string
	City           string
	Categories     []string
	Verified       bool
	Status         string
	RatingAverage  float64
	RatingCount    int
	WhatsAppNumber string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Product represents a products row. Vendor is populated on reads that
// join the owning vendor.
type Product struct {
	ID           string
	VendorID     string
	Name         string
	Category     string
	Price        int64
	Description  string
	Keywords     []string
	Availability string
	Condition    string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	Vendor       *Vendor
}

// APIKey represents a record in the api_keys table.
type APIKey struct {
	ID            string
	Provider      string
	Value         string
	CooldownUntil *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
