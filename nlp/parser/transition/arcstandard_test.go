package transition

import (
	"testing"

	nlp "tparse/nlp/types"
	"tparse/util"
)

// the dog barks . -- with heads the->dog, dog->barks, .->barks
func testSentence() *nlp.Sentence {
	return &nlp.Sentence{Tokens: []nlp.Token{
		{Word: "the", Tag: "DT", Label: "det", Head: 1},
		{Word: "dog", Tag: "NN", Label: "nsubj", Head: 2},
		{Word: "barks", Tag: "VB", Label: "root", Head: nlp.NoHead},
		{Word: ".", Tag: ".", Label: "punct", Head: 2},
	}}
}

func testLabelMap() *util.TermFrequencyMap {
	labels := util.NewTermFrequencyMap()
	for _, label := range []string{"det", "nsubj", "root", "punct"} {
		labels.Increment(label)
	}
	return labels
}

func newTestState(keepHistory bool) (*ArcStandard, *ParserState) {
	system := &ArcStandard{}
	labels := testLabelMap()
	state := NewParserState(testSentence(), system.NewTransitionState(keepHistory), labels)
	return system, state
}

func TestArcStandardGoldSequence(t *testing.T) {
	system, state := newTestState(true)
	steps := 0
	for !system.IsFinalState(state) {
		action := system.GetNextGoldAction(state)
		if !system.IsAllowedAction(action, state) {
			t.Fatalf("oracle produced disallowed action %v at %v", action, state)
		}
		system.PerformAction(action, state)
		if steps++; steps > 2*state.NumTokens() {
			t.Fatal("gold derivation did not terminate")
		}
	}
	sent := state.Sentence()
	for i := 0; i < sent.Len(); i++ {
		if state.Head(i) != sent.Token(i).Head {
			t.Errorf("token %d: head %v, expected gold head %v", i, state.Head(i), sent.Token(i).Head)
		}
		if !state.IsTokenCorrect(i) {
			t.Errorf("token %d not scored correct after gold derivation", i)
		}
	}
	history := state.TransitionState().History()
	if len(history) != steps {
		t.Errorf("history has %d actions, expected %d", len(history), steps)
	}
}

func TestArcStandardActionEncoding(t *testing.T) {
	system := &ArcStandard{}
	numLabels := 4
	if n := system.NumActions(numLabels); n != 9 {
		t.Errorf("NumActions(4) = %d, expected 9", n)
	}
	for label := 0; label < numLabels; label++ {
		la, ra := leftArcAction(label), rightArcAction(label)
		if !isLeftArc(la) || arcLabel(la) != label {
			t.Errorf("left arc encoding broken for label %d: action %d", label, la)
		}
		if !isRightArc(ra) || arcLabel(ra) != label {
			t.Errorf("right arc encoding broken for label %d: action %d", label, ra)
		}
	}
}

func TestArcStandardLegality(t *testing.T) {
	system, state := newTestState(false)
	// initial state: empty stack, arcs disallowed, shift allowed
	if !system.IsAllowedAction(shiftAction, state) {
		t.Error("shift disallowed on initial state")
	}
	if system.IsAllowedAction(leftArcAction(0), state) || system.IsAllowedAction(rightArcAction(0), state) {
		t.Error("arc actions allowed on empty stack")
	}
	system.PerformAction(shiftAction, state)
	if system.IsAllowedAction(leftArcAction(0), state) {
		t.Error("left arc allowed with single-element stack")
	}
	system.PerformAction(shiftAction, state)
	system.PerformAction(shiftAction, state)
	system.PerformAction(shiftAction, state)
	// all input consumed
	if system.IsAllowedAction(shiftAction, state) {
		t.Error("shift allowed at end of input")
	}
	if !system.IsAllowedAction(leftArcAction(2), state) {
		t.Error("left arc disallowed with full stack")
	}
}

func TestArcStandardDisallowedActionPanics(t *testing.T) {
	system, state := newTestState(false)
	defer func() {
		if r := recover(); r == nil {
			t.Error("performing a disallowed action did not panic")
		}
	}()
	system.PerformAction(leftArcAction(0), state)
}

func TestArcStandardStackBufferPartition(t *testing.T) {
	system, state := newTestState(false)
	// walk a non-gold but legal derivation, checking the partition invariant
	actions := []int{shiftAction, shiftAction, rightArcAction(0), shiftAction, leftArcAction(1), shiftAction, rightArcAction(2)}
	for _, action := range actions {
		if !system.IsAllowedAction(action, state) {
			t.Fatalf("action %v unexpectedly disallowed", action)
		}
		system.PerformAction(action, state)
		checkPartition(t, state)
	}
	if !system.IsFinalState(state) {
		t.Errorf("expected final state, got %v", state)
	}
}

// checkPartition verifies every token is on the stack, in the buffer, or
// consumed via an attachment, with no overlaps.
func checkPartition(t *testing.T, state *ParserState) {
	seen := make(map[int]string)
	for k := 0; k < state.StackSize(); k++ {
		tok := state.Stack(k)
		if prev, dup := seen[tok]; dup {
			t.Fatalf("token %d in both stack and %s", tok, prev)
		}
		seen[tok] = "stack"
	}
	for i := state.Next(); i < state.NumTokens(); i++ {
		if prev, dup := seen[i]; dup {
			t.Fatalf("token %d in both buffer and %s", i, prev)
		}
		seen[i] = "buffer"
	}
	for i := 0; i < state.NumTokens(); i++ {
		if _, ok := seen[i]; !ok && state.Head(i) == nlp.NoHead {
			t.Fatalf("token %d consumed without a head", i)
		}
	}
}

func TestUnmappedGoldLabel(t *testing.T) {
	sent := testSentence()
	sent.Tokens[0].Label = "amod" // not in the label map
	system := &ArcStandard{}
	state := NewParserState(sent, system.NewTransitionState(false), testLabelMap())

	if got := state.GoldLabel(0); got != -1 {
		t.Errorf("GoldLabel of an unmapped label = %v, expected -1", got)
	}

	// attaching with the most frequent label must not score correct
	system.PerformAction(shiftAction, state)
	system.PerformAction(shiftAction, state)
	system.PerformAction(leftArcAction(0), state)
	if state.IsTokenCorrect(0) {
		t.Error("token with unmapped gold label scored correct")
	}
}

func TestOracleUnmappedGoldLabelPanics(t *testing.T) {
	sent := testSentence()
	sent.Tokens[0].Label = "amod"
	system := &ArcStandard{}
	state := NewParserState(sent, system.NewTransitionState(false), testLabelMap())
	system.PerformAction(shiftAction, state)
	system.PerformAction(shiftAction, state)
	defer func() {
		if r := recover(); r == nil {
			t.Error("oracle built an arc action for an unmapped gold label")
		}
	}()
	system.GetNextGoldAction(state)
}

func TestAddParseToDocument(t *testing.T) {
	system, state := newTestState(false)
	for !system.IsFinalState(state) {
		system.PerformAction(system.GetNextGoldAction(state), state)
	}
	doc := state.Sentence().Copy()
	state.AddParseToDocument(doc)
	for i := 0; i < doc.Len(); i++ {
		if doc.Token(i).Head != state.Sentence().Token(i).Head {
			t.Errorf("token %d: document head %v, expected %v", i, doc.Token(i).Head, state.Sentence().Token(i).Head)
		}
	}
	if doc.Token(0).Label != "det" {
		t.Errorf("token 0 label %q, expected det", doc.Token(0).Label)
	}
	// projection must not touch the original
	if state.Sentence().Token(2).Label != "root" {
		t.Error("projection mutated the corpus sentence")
	}
}
