// Package assignment distributes a dataset's items across its annotators and
// keeps the distribution consistent when the roster changes.
package assignment

// PlanEntry pairs one item with the annotator responsible for it.
type PlanEntry struct {
	ItemID      uint
	AnnotatorID uint
}

// BuildPlan computes a balanced round-robin distribution of items over
// annotators. With N items and K annotators every annotator receives
// floor(N/K) items and the first N mod K annotators one extra; items are
// consumed in the given order and handed out in a single pass, so the
// result is deterministic for a fixed annotator order. Any two annotators
// differ by at most one item. An empty annotator list yields an empty plan.
func BuildPlan(itemIDs, annotatorIDs []uint) []PlanEntry {
	if len(annotatorIDs) == 0 || len(itemIDs) == 0 {
		return nil
	}

	perAnnotator := len(itemIDs) / len(annotatorIDs)
	extra := len(itemIDs) % len(annotatorIDs)

	plan := make([]PlanEntry, 0, len(itemIDs))
	itemIndex := 0
	for i, annotatorID := range annotatorIDs {
		count := perAnnotator
		if i < extra {
			count++
		}
		for j := 0; j < count && itemIndex < len(itemIDs); j++ {
			plan = append(plan, PlanEntry{ItemID: itemIDs[itemIndex], AnnotatorID: annotatorID})
			itemIndex++
		}
	}

	return plan
}

// PlanCounts tallies a plan's items per annotator. Useful for reporting and
// for verifying balance.
func PlanCounts(plan []PlanEntry) map[uint]int {
	counts := make(map[uint]int)
	for _, entry := range plan {
		counts[entry.AnnotatorID]++
	}
	return counts
}
