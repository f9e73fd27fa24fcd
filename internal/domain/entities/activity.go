package entities

import "time"

// FeedKind identifies one of the two upstream activity feeds
type FeedKind string

const (
	// FeedSearch is the search-history feed
	FeedSearch FeedKind = "search"

	// FeedPurchase is the purchase-history feed
	FeedPurchase FeedKind = "purchase"
)

// ActivityRecord represents a single user interaction from an upstream feed.
// Category may be empty; empty categories are filtered out by scoring and
// never counted.
type ActivityRecord struct {
	UserID     int64     `json:"user_id"`
	Kind       FeedKind  `json:"kind"`
	Label      string    `json:"label"`
	Category   string    `json:"category"`
	OccurredAt time.Time `json:"occurred_at"`
}

// ActivitySet pairs the search and purchase records for one user. It exists
// only for the duration of a single orchestration call.
type ActivitySet struct {
	UserID          int64
	SearchRecords   []ActivityRecord
	PurchaseRecords []ActivityRecord
}

// Empty reports whether neither feed produced any records
func (s ActivitySet) Empty() bool {
	return len(s.SearchRecords) == 0 && len(s.PurchaseRecords) == 0
}
