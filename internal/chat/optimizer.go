package chat

import "github.com/wellora/coach/internal/llm"

// Counter estimates token cost of text. Satisfied by llm.TokenCounter.
type Counter interface {
	Count(text string) int
}

// Optimizer trims a turn sequence to a token budget while preserving
// conversational coherence.
type Optimizer struct {
	counter Counter
}

// NewOptimizer creates an Optimizer using counter for cost estimates.
func NewOptimizer(counter Counter) *Optimizer {
	return &Optimizer{counter: counter}
}

// Optimize returns turns trimmed to fit budget. System turns are always
// kept in original order. The remaining turns are admitted newest-first
// until the first one that would overflow; admission stops there, so the
// output is a contiguous recent suffix rather than an arbitrary subset.
// Admitted turns follow the system turns in chronological order.
//
// Input that already fits is returned unchanged. The newest non-system
// turn is always included even when its cost alone exceeds the remaining
// budget: dropping the message being answered would be worse than
// overshooting the budget once.
func (o *Optimizer) Optimize(turns []llm.Turn, budget int) []llm.Turn {
	if len(turns) == 0 {
		return nil
	}

	total := 0
	for _, t := range turns {
		total += o.counter.Count(t.Content)
	}
	if total <= budget {
		return turns
	}

	var system, rest []llm.Turn
	for _, t := range turns {
		if t.Role == llm.RoleSystem {
			system = append(system, t)
		} else {
			rest = append(rest, t)
		}
	}

	used := 0
	for _, t := range system {
		used += o.counter.Count(t.Content)
	}

	// Newest-first admission; kept counts how many of the trailing turns
	// survive.
	kept := 0
	for i := len(rest) - 1; i >= 0; i-- {
		cost := o.counter.Count(rest[i].Content)
		if used+cost > budget {
			if kept == 0 && i == len(rest)-1 {
				kept = 1
			}
			break
		}
		used += cost
		kept++
	}

	out := make([]llm.Turn, 0, len(system)+kept)
	out = append(out, system...)
	out = append(out, rest[len(rest)-kept:]...)
	return out
}
