package transition

import (
	"fmt"

	nlp "tparse/nlp/types"
	"tparse/util"
	"tparse/util/conf"
)

// ArcStandard is the arc-standard transition system over a stack and buffer:
//
//	SH    (S,    i|B, A) => (S|i,  B, A)
//	LA-r  (S|ij, B,   A) => (S|j,  B, A+{(j,r,i)})
//	RA-r  (S|ij, B,   A) => (S|i,  B, A+{(i,r,j)})
//
// Arc actions attach the two topmost stack tokens. Actions are encoded as
// SHIFT=0, LA(r)=1+2r, RA(r)=2+2r for a label space of fixed size.
type ArcStandard struct{}

var _ System = &ArcStandard{}

const shiftAction = 0

func leftArcAction(label int) int {
	return 1 + (label << 1)
}

func rightArcAction(label int) int {
	return 2 + (label << 1)
}

// arcLabel recovers the label id of an arc action.
func arcLabel(action int) int {
	return (action - 1) >> 1
}

func isLeftArc(action int) bool {
	return action > 0 && (action-1)%2 == 0
}

func isRightArc(action int) bool {
	return action > 0 && (action-1)%2 == 1
}

func init() {
	RegisterSystem("arc-standard", func() System { return &ArcStandard{} })
}

func (a *ArcStandard) Setup(ctx *conf.Context, store *util.SharedStore) error {
	return nil
}

func (a *ArcStandard) Init(ctx *conf.Context) error {
	return nil
}

func (a *ArcStandard) NumActions(numLabels int) int {
	return 1 + 2*numLabels
}

func (a *ArcStandard) IsAllowedAction(action int, state *ParserState) bool {
	if action == shiftAction {
		return !state.EndOfInput()
	}
	return state.StackSize() > 1
}

func (a *ArcStandard) PerformAction(action int, state *ParserState) {
	if !a.IsAllowedAction(action, state) {
		panic(fmt.Sprintf("disallowed arc-standard action %v on %v", action, state))
	}
	switch {
	case action == shiftAction:
		state.Push(state.Next())
		state.Advance()
	case isLeftArc(action):
		s0 := state.Pop()
		s1 := state.Pop()
		state.AddArc(s1, s0, arcLabel(action))
		state.Push(s0)
	case isRightArc(action):
		s0 := state.Pop()
		s1 := state.Pop()
		state.AddArc(s0, s1, arcLabel(action))
		state.Push(s1)
	default:
		panic(fmt.Sprintf("unknown arc-standard action %v", action))
	}
	if ext, ok := state.TransitionState().(*arcStandardState); ok {
		ext.record(action)
	}
}

func (a *ArcStandard) IsFinalState(state *ParserState) bool {
	return state.EndOfInput() && state.StackSize() < 2
}

// GetNextGoldAction implements the standard oracle:
// LA if the gold head of s1 is s0; RA if the gold head of s0 is s1 and all
// of s0's dependents right of the cursor are already attached; else SH.
func (a *ArcStandard) GetNextGoldAction(state *ParserState) int {
	if state.StackSize() > 1 {
		s0 := state.Stack(0)
		s1 := state.Stack(1)
		if state.GoldHead(s1) == s0 {
			return leftArcAction(goldArcLabel(state, s1))
		}
		if state.GoldHead(s0) == s1 && doneChildrenRightOf(state, s0) {
			return rightArcAction(goldArcLabel(state, s0))
		}
	}
	return shiftAction
}

// goldArcLabel is GoldLabel for an arc the oracle is about to build; a label
// missing from the label map cannot be encoded into an action.
func goldArcLabel(state *ParserState, index int) int {
	label := state.GoldLabel(index)
	if label < 0 {
		panic(fmt.Sprintf("gold label %q of token %v missing from label map",
			state.Sentence().Token(index).Label, index))
	}
	return label
}

// doneChildrenRightOf reports whether no token at or after the buffer cursor
// has head as its gold head.
func doneChildrenRightOf(state *ParserState, head int) bool {
	index := state.Next()
	numTokens := state.NumTokens()
	for index < numTokens {
		goldHead := state.GoldHead(index)
		if goldHead == head {
			return false
		}
		// Skip ahead to the next possible child; tokens between index and
		// its gold head cannot be children of head in a projective tree.
		if goldHead > index {
			index = goldHead
		} else {
			index++
		}
	}
	return true
}

func (a *ArcStandard) NewTransitionState(keepHistory bool) TransitionState {
	return &arcStandardState{keepHistory: keepHistory}
}

func (a *ArcStandard) Close() error {
	return nil
}

func (a *ArcStandard) Name() string {
	return "arc-standard"
}

// arcStandardState is the per-state extension for arc-standard: an optional
// action history, plus head/label based correctness and projection.
type arcStandardState struct {
	keepHistory bool
	history     []int
}

var _ TransitionState = &arcStandardState{}

func (s *arcStandardState) Init(state *ParserState) {
	if s.keepHistory {
		s.history = make([]int, 0, 2*state.NumTokens())
	}
}

func (s *arcStandardState) record(action int) {
	if s.keepHistory {
		s.history = append(s.history, action)
	}
}

func (s *arcStandardState) History() []int {
	return s.history
}

// IsTokenCorrect compares the inferred head and label against gold.
func (s *arcStandardState) IsTokenCorrect(state *ParserState, index int) bool {
	return state.Head(index) == state.GoldHead(index) &&
		(state.Head(index) == nlp.NoHead || state.Label(index) == state.GoldLabel(index))
}

func (s *arcStandardState) AddParseToDocument(state *ParserState, sentence *nlp.Sentence) {
	labelMap := state.LabelMap()
	for i := 0; i < state.NumTokens(); i++ {
		token := sentence.Token(i)
		token.Head = state.Head(i)
		if label := state.Label(i); label >= 0 {
			token.Label = labelMap.GetTerm(label)
		} else {
			token.Label = nlp.NoLabel
		}
	}
}
