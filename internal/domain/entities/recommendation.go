package entities

import (
	"bytes"
	"encoding/json"
)

// NoDataMessage is returned for users with no activity in either feed
const NoDataMessage = "No data found"

// ProcessingTimeoutError marks a result whose scoring pass missed its deadline
const ProcessingTimeoutError = "processing timeout"

// CategoryScore is one entry of the frequency-ranked top-category list
type CategoryScore struct {
	Category string  `json:"category"`
	Score    float64 `json:"score"`
}

// UserProfile summarizes engagement signals derived from a user's activity
type UserProfile struct {
	EngagementLevel     string `json:"engagement_level"`
	PurchaseIntent      string `json:"purchase_intent"`
	ExplorationTendency string `json:"exploration_tendency"`
	Segment             string `json:"segment"`
}

// WeightageResult holds the weighted category scores computed from one
// user's activity set.
//
// Invariants: for each feed, the unique and duplicate lists partition the
// original category sequence as multisets, and OverallWeight equals
// WeightageSearch + WeightagePurchase rounded to two decimals.
type WeightageResult struct {
	UserID             int64              `json:"user_id"`
	WeightageSearch    float64            `json:"weightage_search"`
	WeightagePurchase  float64            `json:"weightage_purchase"`
	OverallWeight      float64            `json:"overall_weight"`
	SearchUnique       []string           `json:"search_category_unique"`
	SearchDuplicates   []string           `json:"search_category_duplicates"`
	PurchaseUnique     []string           `json:"purchase_category_unique"`
	PurchaseDuplicates []string           `json:"purchase_category_duplicates"`
	TopCategories      []CategoryScore    `json:"top_categories"`
	CategoryScores     map[string]float64 `json:"category_scores"`
	SearchCount        int                `json:"search_count"`
	PurchaseCount      int                `json:"purchase_count"`
	TotalInteractions  int                `json:"total_interactions"`
	Profile            UserProfile        `json:"profile"`
}

// RecommendationSummary is the recommendations block of a successful result
type RecommendationSummary struct {
	Weightage             float64         `json:"weightage"`
	SearchWeight          float64         `json:"search_weight"`
	PurchaseWeight        float64         `json:"purchase_weight"`
	RecommendedCategories []string        `json:"recommended_categories"`
	ExploreCategories     []string        `json:"explore_categories"`
	TopCategories         []CategoryScore `json:"top_categories"`
}

// ResultMetadata carries interaction counts and the derived user profile
type ResultMetadata struct {
	SearchCount       int         `json:"search_count"`
	PurchaseCount     int         `json:"purchase_count"`
	TotalInteractions int         `json:"total_interactions"`
	Profile           UserProfile `json:"profile"`
}

// RecommendationResult is the per-user result served by the orchestrator.
// Exactly one of the three variants is populated: a full summary, the
// "No data found" placeholder, or a processing-timeout error shape.
type RecommendationResult struct {
	UserID          int64
	Message         string
	Error           string
	Recommendations *RecommendationSummary
	Metadata        *ResultMetadata
}

// NewNoDataResult builds the placeholder result for a user with no activity
func NewNoDataResult(userID int64) *RecommendationResult {
	return &RecommendationResult{
		UserID:  userID,
		Message: NoDataMessage,
	}
}

// NewTimeoutResult builds the error-shaped result for a scoring timeout
func NewTimeoutResult(userID int64) *RecommendationResult {
	return &RecommendationResult{
		UserID: userID,
		Error:  ProcessingTimeoutError,
	}
}

// resultWire is the serialized form shared by all three result variants.
// The no-data placeholder renders recommendations as an empty list, so the
// raw message bridges the list/object difference.
type resultWire struct {
	UserID          int64           `json:"user_id"`
	Message         string          `json:"message,omitempty"`
	Error           string          `json:"error,omitempty"`
	Recommendations json.RawMessage `json:"recommendations,omitempty"`
	Metadata        *ResultMetadata `json:"metadata,omitempty"`
}

var emptyList = json.RawMessage("[]")

// MarshalJSON implements json.Marshaler
func (r *RecommendationResult) MarshalJSON() ([]byte, error) {
	wire := resultWire{
		UserID:   r.UserID,
		Message:  r.Message,
		Error:    r.Error,
		Metadata: r.Metadata,
	}

	switch {
	case r.Recommendations != nil:
		raw, err := json.Marshal(r.Recommendations)
		if err != nil {
			return nil, err
		}
		wire.Recommendations = raw
	case r.Error == "":
		wire.Recommendations = emptyList
	}

	return json.Marshal(wire)
}

// UnmarshalJSON implements json.Unmarshaler
func (r *RecommendationResult) UnmarshalJSON(data []byte) error {
	var wire resultWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}

	r.UserID = wire.UserID
	r.Message = wire.Message
	r.Error = wire.Error
	r.Metadata = wire.Metadata
	r.Recommendations = nil

	raw := bytes.TrimSpace(wire.Recommendations)
	if len(raw) > 0 && raw[0] == '{' {
		summary := &RecommendationSummary{}
		if err := json.Unmarshal(raw, summary); err != nil {
			return err
		}
		r.Recommendations = summary
	}

	return nil
}

// BatchResult aggregates the outcome of one batch-recommend call. Results
// holds the serialized per-user payloads; cached entries pass through
// byte-identical.
type BatchResult struct {
	Successful     int               `json:"successful"`
	Failed         int               `json:"failed"`
	TotalRequested int               `json:"total_requested"`
	CacheHits      int               `json:"cache_hits"`
	CacheMisses    int               `json:"cache_misses"`
	Results        []json.RawMessage `json:"results"`
}

// WarmingAck acknowledges a warm-cache request. The referenced job runs in
// the background; the ack never waits for it.
type WarmingAck struct {
	Status    string `json:"status"`
	JobID     string `json:"job_id"`
	UserCount int    `json:"user_count"`
}
