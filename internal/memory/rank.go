package memory

import (
	"sort"
	"strings"
)

// candidatePool is how many stored memories the ranker considers per query.
const candidatePool = 20

// Ranker scores memories against an utterance with lexical word overlap.
// It holds no state; the zero value is ready to use.
type Ranker struct{}

// Rank returns up to k memories most relevant to query, best first.
//
// Score is the count of shared lowercase words between query and memory
// content, multiplied by the memory's importance. Memories sharing no words
// with the query are discarded, whatever their importance. Ties keep the
// input order, so equally-scored memories stay sorted by importance and
// recency as the store returned them. The result is deterministic for a
// given input.
func (Ranker) Rank(query string, memories []*Memory, k int) []*Memory {
	if k <= 0 || len(memories) == 0 {
		return nil
	}
	if len(memories) > candidatePool {
		memories = memories[:candidatePool]
	}

	queryWords := wordSet(query)
	if len(queryWords) == 0 {
		return nil
	}

	type scored struct {
		memory *Memory
		score  int
	}
	var ranked []scored
	for _, m := range memories {
		overlap := 0
		for w := range wordSet(m.Content) {
			if queryWords[w] {
				overlap++
			}
		}
		if overlap == 0 {
			continue
		}
		ranked = append(ranked, scored{memory: m, score: overlap * m.Importance})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].score > ranked[j].score
	})

	if len(ranked) > k {
		ranked = ranked[:k]
	}
	out := make([]*Memory, len(ranked))
	for i, r := range ranked {
		out[i] = r.memory
	}
	return out
}

func wordSet(s string) map[string]bool {
	words := strings.Fields(strings.ToLower(s))
	if len(words) == 0 {
		return nil
	}
	set := make(map[string]bool, len(words))
	for _, w := range words {
		set[w] = true
	}
	return set
}
