package protocol

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/wellora/coach/internal/llm"
)

// Selection strategies.
const (
	StrategyKeyword = "keyword"
	StrategyModel   = "model"
	StrategyOff     = "off"
)

// selectMaxTokens caps the model-strategy response; it only needs to hold a
// short list of numbers.
const selectMaxTokens = 50

// matchPrompt asks the model which protocols apply. %s/%d placeholders:
// query, limit, numbered protocol list.
const matchPrompt = `Given this user query from a health chatbot: %q

Which of these safety protocols are most relevant? Select up to %d by number.

%s

Respond with ONLY the numbers separated by commas (e.g., "1,3,5"). If none are relevant, respond "NONE".`

// Selector picks the protocols relevant to a user query.
type Selector struct {
	client   llm.Client // only used by the model strategy
	strategy string
	topK     int
	logger   *slog.Logger
}

// NewSelector creates a Selector. client may be nil when strategy is not
// StrategyModel.
func NewSelector(client llm.Client, strategy string, topK int, logger *slog.Logger) (*Selector, error) {
	switch strategy {
	case StrategyKeyword, StrategyOff:
	case StrategyModel:
		if client == nil {
			return nil, fmt.Errorf("model strategy requires a completion client")
		}
	default:
		return nil, fmt.Errorf("unknown protocol strategy %q", strategy)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Selector{client: client, strategy: strategy, topK: topK, logger: logger}, nil
}

// Select returns up to topK protocols relevant to query, highest priority
// first. The model strategy degrades to the top protocols by priority when
// the model call or its output cannot be used; selection never fails a turn.
func (s *Selector) Select(ctx context.Context, query string, protocols []*Protocol) []*Protocol {
	if s.topK <= 0 || len(protocols) == 0 {
		return nil
	}

	switch s.strategy {
	case StrategyOff:
		return nil
	case StrategyModel:
		return s.selectByModel(ctx, query, protocols)
	default:
		return s.selectByKeyword(query, protocols)
	}
}

// selectByKeyword matches case-insensitive keyword substrings against the
// query. Matches sort by priority descending, name ascending.
func (s *Selector) selectByKeyword(query string, protocols []*Protocol) []*Protocol {
	lowered := strings.ToLower(query)

	var matched []*Protocol
	for _, p := range protocols {
		for _, kw := range p.Keywords {
			if kw == "" {
				continue
			}
			if strings.Contains(lowered, strings.ToLower(kw)) {
				matched = append(matched, p)
				break
			}
		}
	}

	sortByPriority(matched)
	return truncate(matched, s.topK)
}

// selectByModel asks the completion client to pick protocols from a numbered
// list. Any failure, including unparseable output, falls back to the highest
// priority protocols.
func (s *Selector) selectByModel(ctx context.Context, query string, protocols []*Protocol) []*Protocol {
	var list strings.Builder
	for i, p := range protocols {
		fmt.Fprintf(&list, "%d. %s (Category: %s, Priority: %d)\n", i+1, p.Name, p.Category, p.Priority)
	}

	turns := []llm.Turn{
		{Role: llm.RoleSystem, Content: "You are a protocol matcher. Respond only with numbers or NONE."},
		{Role: llm.RoleUser, Content: fmt.Sprintf(matchPrompt, query, s.topK, list.String())},
	}
	resp, err := s.client.Complete(ctx, turns, llm.CompleteOpts{
		Temperature: 0,
		MaxTokens:   selectMaxTokens,
	})
	if err != nil {
		s.logger.Warn("protocol matching call failed, falling back to priority", "error", err)
		return s.fallback(protocols)
	}

	answer := strings.TrimSpace(resp.Content)
	if strings.Contains(strings.ToUpper(answer), "NONE") {
		return nil
	}

	matched := parseSelection(answer, protocols)
	if matched == nil {
		s.logger.Warn("could not parse protocol selection, falling back to priority",
			"answer", llm.Truncate(answer, 100))
		return s.fallback(protocols)
	}

	sortByPriority(matched)
	return truncate(matched, s.topK)
}

// parseSelection decodes "1,3,5" into the referenced protocols. Tokens that
// are not valid in-range numbers are skipped; nil means nothing usable.
func parseSelection(answer string, protocols []*Protocol) []*Protocol {
	var matched []*Protocol
	seen := make(map[int]bool)
	for _, tok := range strings.Split(answer, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(tok))
		if err != nil {
			continue
		}
		idx := n - 1
		if idx < 0 || idx >= len(protocols) || seen[idx] {
			continue
		}
		seen[idx] = true
		matched = append(matched, protocols[idx])
	}
	return matched
}

func (s *Selector) fallback(protocols []*Protocol) []*Protocol {
	sorted := make([]*Protocol, len(protocols))
	copy(sorted, protocols)
	sortByPriority(sorted)
	return truncate(sorted, s.topK)
}

func sortByPriority(protocols []*Protocol) {
	sort.SliceStable(protocols, func(i, j int) bool {
		if protocols[i].Priority != protocols[j].Priority {
			return protocols[i].Priority > protocols[j].Priority
		}
		return protocols[i].Name < protocols[j].Name
	})
}

func truncate(protocols []*Protocol, k int) []*Protocol {
	if len(protocols) > k {
		return protocols[:k]
	}
	return protocols
}
