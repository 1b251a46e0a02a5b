package protocol

import (
	"context"
	"errors"
	"testing"

	"github.com/wellora/coach/internal/testutil"
)

func proto(name string, priority int, keywords ...string) *Protocol {
	return &Protocol{Name: name, Category: "safety", Priority: priority, Keywords: keywords, Active: true}
}

func TestKeywordSelectMatchesSubstring(t *testing.T) {
	protocols := []*Protocol{
		proto("Emergency Recognition", 10, "chest pain", "stroke"),
		proto("Scope of Practice", 7, "meal plan"),
	}
	sel, err := NewSelector(nil, StrategyKeyword, 3, testutil.Logger())
	if err != nil {
		t.Fatalf("NewSelector() error = %v", err)
	}

	got := sel.Select(context.Background(), "I have Chest Pain right now", protocols)
	if len(got) != 1 || got[0].Name != "Emergency Recognition" {
		t.Errorf("Select() = %v, want Emergency Recognition only", names(got))
	}
}

func TestKeywordSelectSortsByPriorityThenName(t *testing.T) {
	protocols := []*Protocol{
		proto("B Protocol", 5, "sleep"),
		proto("A Protocol", 5, "sleep"),
		proto("C Protocol", 9, "sleep"),
	}
	sel, _ := NewSelector(nil, StrategyKeyword, 3, testutil.Logger())

	got := sel.Select(context.Background(), "my sleep is bad", protocols)
	want := []string{"C Protocol", "A Protocol", "B Protocol"}
	if g := names(got); !equal(g, want) {
		t.Errorf("Select() order = %v, want %v", g, want)
	}
}

func TestKeywordSelectTruncatesToTopK(t *testing.T) {
	protocols := []*Protocol{
		proto("One", 9, "sleep"),
		proto("Two", 8, "sleep"),
		proto("Three", 7, "sleep"),
	}
	sel, _ := NewSelector(nil, StrategyKeyword, 2, testutil.Logger())

	got := sel.Select(context.Background(), "sleep", protocols)
	if g := names(got); !equal(g, []string{"One", "Two"}) {
		t.Errorf("Select() = %v, want top 2 by priority", g)
	}
}

func TestKeywordSelectNoMatch(t *testing.T) {
	protocols := []*Protocol{proto("Emergency Recognition", 10, "chest pain")}
	sel, _ := NewSelector(nil, StrategyKeyword, 3, testutil.Logger())

	if got := sel.Select(context.Background(), "what should I eat", protocols); len(got) != 0 {
		t.Errorf("Select() = %v, want empty", names(got))
	}
}

func TestModelSelectParsesIndices(t *testing.T) {
	protocols := []*Protocol{
		proto("Alpha", 5),
		proto("Beta", 9),
		proto("Gamma", 7),
	}
	client := testutil.NewMockLLM("2,3")
	sel, err := NewSelector(client, StrategyModel, 3, testutil.Logger())
	if err != nil {
		t.Fatalf("NewSelector() error = %v", err)
	}

	got := sel.Select(context.Background(), "anything", protocols)
	// Selected Beta (9) and Gamma (7), sorted by priority.
	if g := names(got); !equal(g, []string{"Beta", "Gamma"}) {
		t.Errorf("Select() = %v, want [Beta Gamma]", g)
	}
}

func TestModelSelectNone(t *testing.T) {
	protocols := []*Protocol{proto("Alpha", 5)}
	client := testutil.NewMockLLM("NONE")
	sel, _ := NewSelector(client, StrategyModel, 3, testutil.Logger())

	if got := sel.Select(context.Background(), "anything", protocols); len(got) != 0 {
		t.Errorf("Select() = %v, want empty", names(got))
	}
}

func TestModelSelectFallsBackOnGarbage(t *testing.T) {
	protocols := []*Protocol{
		proto("Low", 3),
		proto("High", 10),
		proto("Mid", 6),
	}
	client := testutil.NewMockLLM("I think the most relevant would be the first one!")
	sel, _ := NewSelector(client, StrategyModel, 2, testutil.Logger())

	got := sel.Select(context.Background(), "anything", protocols)
	if g := names(got); !equal(g, []string{"High", "Mid"}) {
		t.Errorf("fallback Select() = %v, want top 2 by priority", g)
	}
}

func TestModelSelectFallsBackOnCallFailure(t *testing.T) {
	protocols := []*Protocol{
		proto("Low", 3),
		proto("High", 10),
	}
	client := testutil.NewMockLLM("")
	client.FailWith(errors.New("upstream down"))
	sel, _ := NewSelector(client, StrategyModel, 1, testutil.Logger())

	got := sel.Select(context.Background(), "anything", protocols)
	if g := names(got); !equal(g, []string{"High"}) {
		t.Errorf("fallback Select() = %v, want [High]", g)
	}
}

func TestModelSelectIgnoresOutOfRangeIndices(t *testing.T) {
	protocols := []*Protocol{proto("Alpha", 5), proto("Beta", 6)}
	client := testutil.NewMockLLM("0, 2, 99")
	sel, _ := NewSelector(client, StrategyModel, 3, testutil.Logger())

	got := sel.Select(context.Background(), "anything", protocols)
	if g := names(got); !equal(g, []string{"Beta"}) {
		t.Errorf("Select() = %v, want [Beta]", g)
	}
}

func TestStrategyOff(t *testing.T) {
	protocols := []*Protocol{proto("Emergency Recognition", 10, "chest pain")}
	sel, _ := NewSelector(nil, StrategyOff, 3, testutil.Logger())

	if got := sel.Select(context.Background(), "chest pain", protocols); len(got) != 0 {
		t.Errorf("Select() with off strategy = %v, want empty", names(got))
	}
}

func TestNewSelectorRejectsModelWithoutClient(t *testing.T) {
	if _, err := NewSelector(nil, StrategyModel, 3, testutil.Logger()); err == nil {
		t.Error("NewSelector() accepted model strategy without a client")
	}
}

func names(protocols []*Protocol) []string {
	out := make([]string, len(protocols))
	for i, p := range protocols {
		out[i] = p.Name
	}
	return out
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
