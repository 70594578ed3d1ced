package retriever

import (
	"sort"

	"github.com/rshah/memex/internal/memexcfg"
)

// mmrSelect greedily picks up to topK candidates, trading relevance against
// source diversity (spec.md §4.6): each step picks the candidate maximizing
//
//	lambda*score - (1-lambda)*penalty
//
// where penalty is SourceRepeatPenalty if that candidate's source_path is
// already represented in the selection. The first pick is always the
// highest base score, since no source is yet represented.
func mmrSelect(candidates []candidate, topK int) []candidate {
	ordered := make([]candidate, len(candidates))
	copy(ordered, candidates)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].score > ordered[j].score })

	selected := make([]candidate, 0, topK)
	usedSources := make(map[string]bool, topK)
	remaining := ordered

	for len(selected) < topK && len(remaining) > 0 {
		bestIdx := 0
		bestVal := mmrValue(remaining[0], usedSources)
		for i := 1; i < len(remaining); i++ {
			val := mmrValue(remaining[i], usedSources)
			if val > bestVal {
				bestVal = val
				bestIdx = i
			}
		}

		chosen := remaining[bestIdx]
		selected = append(selected, chosen)
		usedSources[chosen.sourcePath] = true
		remaining = append(remaining[:bestIdx], remaining[bestIdx+1:]...)
	}

	return selected
}

func mmrValue(c candidate, usedSources map[string]bool) float64 {
	penalty := 0.0
	if usedSources[c.sourcePath] {
		penalty = memexcfg.SourceRepeatPenalty
	}
	return memexcfg.MMRLambda*float64(c.score) - (1-memexcfg.MMRLambda)*penalty
}
