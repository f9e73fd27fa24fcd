package cache

import "fmt"

// Per-user cache key namespaces. The three keys are disjoint and are always
// invalidated together.

// SearchKey returns the cache key for a user's search feed data
func SearchKey(userID int64) string {
	return fmt.Sprintf("search:%d", userID)
}

// PurchaseKey returns the cache key for a user's purchase feed data
func PurchaseKey(userID int64) string {
	return fmt.Sprintf("purchase:%d", userID)
}

// RecommendationKey returns the cache key for a user's assembled result
func RecommendationKey(userID int64) string {
	return fmt.Sprintf("recommendation:%d", userID)
}

// UserKeys returns every cache key belonging to a user
func UserKeys(userID int64) []string {
	return []string{SearchKey(userID), PurchaseKey(userID), RecommendationKey(userID)}
}
