// Package scoring computes weighted category scores from a user's activity.
// It is pure computation: no I/O, no shared state, and no failure modes
// beyond treating malformed records as empty categories.
package scoring

import (
	"math"
	"sort"

	"github.com/shopstream/recommendation-service/internal/domain/entities"
)

const maxTopCategories = 10

// Score derives a WeightageResult from one user's activity set. Duplicate
// purchases weigh 3x and duplicate searches 2x; unique interactions add a
// tenth of a point each. An empty set yields a zero-valued result, not an
// error.
func Score(set entities.ActivitySet) entities.WeightageResult {
	searchCats := extractCategories(set.SearchRecords)
	purchaseCats := extractCategories(set.PurchaseRecords)

	searchUnique, searchDuplicates := splitUniqueDuplicates(searchCats)
	purchaseUnique, purchaseDuplicates := splitUniqueDuplicates(purchaseCats)

	weightageSearch := float64(len(searchDuplicates))*2 + float64(len(searchUnique))/10
	weightagePurchase := float64(len(purchaseDuplicates))*3 + float64(len(purchaseUnique))/10

	result := entities.WeightageResult{
		UserID:             set.UserID,
		WeightageSearch:    round2(weightageSearch),
		WeightagePurchase:  round2(weightagePurchase),
		OverallWeight:      round2(weightageSearch + weightagePurchase),
		SearchUnique:       searchUnique,
		SearchDuplicates:   searchDuplicates,
		PurchaseUnique:     purchaseUnique,
		PurchaseDuplicates: purchaseDuplicates,
		TopCategories:      topCategories(searchCats, purchaseCats),
		CategoryScores:     categoryScores(searchCats, purchaseCats),
		SearchCount:        len(searchCats),
		PurchaseCount:      len(purchaseCats),
		TotalInteractions:  len(searchCats) + len(purchaseCats),
	}
	result.Profile = buildProfile(result)

	return result
}

// extractCategories collects the non-empty category labels of a feed in
// record order
func extractCategories(records []entities.ActivityRecord) []string {
	categories := make([]string, 0, len(records))
	for _, record := range records {
		if record.Category != "" {
			categories = append(categories, record.Category)
		}
	}
	return categories
}

// splitUniqueDuplicates partitions a category sequence into first
// occurrences (in first-seen order) and every repeat occurrence. Together
// the two lists reconstruct the input as a multiset.
func splitUniqueDuplicates(categories []string) (unique, duplicates []string) {
	unique = []string{}
	duplicates = []string{}
	seen := make(map[string]struct{}, len(categories))

	for _, category := range categories {
		if _, ok := seen[category]; ok {
			duplicates = append(duplicates, category)
			continue
		}
		seen[category] = struct{}{}
		unique = append(unique, category)
	}

	return unique, duplicates
}

// categoryScores scores every category seen in either feed: one point per
// search occurrence, three per purchase occurrence.
func categoryScores(searchCats, purchaseCats []string) map[string]float64 {
	scores := make(map[string]float64, len(searchCats)+len(purchaseCats))
	for _, category := range searchCats {
		scores[category] += 1.0
	}
	for _, category := range purchaseCats {
		scores[category] += 3.0
	}
	for category, score := range scores {
		scores[category] = round2(score)
	}
	return scores
}

// topCategories ranks categories by score descending, breaking ties by
// first-seen order across the search-then-purchase sequence, and keeps the
// top ten.
func topCategories(searchCats, purchaseCats []string) []entities.CategoryScore {
	scores := categoryScores(searchCats, purchaseCats)

	firstSeen := make(map[string]int, len(scores))
	order := 0
	for _, category := range append(append([]string{}, searchCats...), purchaseCats...) {
		if _, ok := firstSeen[category]; !ok {
			firstSeen[category] = order
			order++
		}
	}

	ranked := make([]entities.CategoryScore, 0, len(scores))
	for category, score := range scores {
		ranked = append(ranked, entities.CategoryScore{Category: category, Score: score})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return firstSeen[ranked[i].Category] < firstSeen[ranked[j].Category]
	})

	if len(ranked) > maxTopCategories {
		ranked = ranked[:maxTopCategories]
	}
	return ranked
}

// buildProfile derives coarse engagement signals from the computed weights
// and counts
func buildProfile(result entities.WeightageResult) entities.UserProfile {
	return entities.UserProfile{
		EngagementLevel:     engagementLevel(result.OverallWeight),
		PurchaseIntent:      purchaseIntent(result.SearchCount, result.PurchaseCount),
		ExplorationTendency: explorationTendency(len(result.SearchUnique), result.SearchCount),
		Segment:             userSegment(result.SearchCount, result.PurchaseCount),
	}
}

func engagementLevel(overallWeight float64) string {
	switch {
	case overallWeight > 50:
		return "high"
	case overallWeight > 20:
		return "medium"
	case overallWeight > 0:
		return "low"
	default:
		return "none"
	}
}

func purchaseIntent(searchCount, purchaseCount int) string {
	if searchCount == 0 {
		return "unknown"
	}
	ratio := float64(purchaseCount) / float64(searchCount)
	switch {
	case ratio > 0.5:
		return "high"
	case ratio > 0.2:
		return "medium"
	default:
		return "low"
	}
}

func explorationTendency(uniqueSearches, totalSearches int) string {
	if totalSearches == 0 {
		return "unknown"
	}
	ratio := float64(uniqueSearches) / float64(totalSearches)
	switch {
	case ratio > 0.7:
		return "high"
	case ratio > 0.4:
		return "medium"
	default:
		return "low"
	}
}

func userSegment(searchCount, purchaseCount int) string {
	switch {
	case purchaseCount > 10:
		return "power_buyer"
	case purchaseCount > 5:
		return "regular_buyer"
	case searchCount > 20:
		return "browser"
	case searchCount > 5:
		return "casual_browser"
	default:
		return "new_user"
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
