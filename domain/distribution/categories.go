package distribution

import "biascope/domain/core"

// SharedCategories carries one ordered category set used identically for
// the cohort and reference profiles of a categorical/ordinal variable.
// Derived once from the declared domain and the observed union, then
// passed explicitly into both profiling calls.
type SharedCategories struct {
	Categories  []string
	Fingerprint core.BinningFingerprint
}

// NewSharedCategories freezes an ordered category set and fingerprints it.
func NewSharedCategories(categories []string) SharedCategories {
	frozen := make([]string, len(categories))
	copy(frozen, categories)
	return SharedCategories{
		Categories:  frozen,
		Fingerprint: core.ComputeCategoryFingerprint(frozen),
	}
}

// Index returns the bucket position for a category, mapping anything
// outside the set to the reserved other bucket.
func (c SharedCategories) Index(category string) int {
	other := -1
	for i, cat := range c.Categories {
		if cat == category {
			return i
		}
		if cat == OtherBucket {
			other = i
		}
	}
	return other
}
