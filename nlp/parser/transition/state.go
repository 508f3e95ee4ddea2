package transition

import (
	"fmt"
	"strings"

	nlp "tparse/nlp/types"
	"tparse/util"
)

// ParserState is the mutable incremental parse state of a single sentence:
// a stack of token indices, a cursor into the remaining input tokens, and
// the partial head/label assignment built so far. The sentence itself is
// referenced, never copied, and carries the gold annotation used by oracles
// and token-correctness checks.
//
// Every token index is in exactly one of stack, buffer (at or after the
// cursor) or consumed; arcs are only ever added, never revoked.
type ParserState struct {
	sentence *nlp.Sentence
	labelMap *util.TermFrequencyMap
	stack    []int
	next     int
	head     []int
	label    []int
	ext      TransitionState
}

// NewParserState creates a state over sentence with an empty stack, the
// cursor at token 0 and no arcs. ext is the transition system's per-state
// extension (see System.NewTransitionState); it is initialized here.
func NewParserState(sentence *nlp.Sentence, ext TransitionState, labelMap *util.TermFrequencyMap) *ParserState {
	n := sentence.Len()
	state := &ParserState{
		sentence: sentence,
		labelMap: labelMap,
		stack:    make([]int, 0, n),
		next:     0,
		head:     make([]int, n),
		label:    make([]int, n),
		ext:      ext,
	}
	for i := 0; i < n; i++ {
		state.head[i] = nlp.NoHead
		state.label[i] = -1
	}
	if ext != nil {
		ext.Init(state)
	}
	return state
}

func (s *ParserState) Sentence() *nlp.Sentence {
	return s.sentence
}

func (s *ParserState) NumTokens() int {
	return len(s.head)
}

func (s *ParserState) TransitionState() TransitionState {
	return s.ext
}

func (s *ParserState) LabelMap() *util.TermFrequencyMap {
	return s.labelMap
}

// Next returns the token index at the buffer cursor.
func (s *ParserState) Next() int {
	return s.next
}

// Input returns the token index offset tokens past the cursor, or -1 when
// that position is beyond the end of input.
func (s *ParserState) Input(offset int) int {
	i := s.next + offset
	if i < 0 || i >= len(s.head) {
		return -1
	}
	return i
}

func (s *ParserState) Advance() {
	if s.next >= len(s.head) {
		panic("advanced past end of input")
	}
	s.next++
}

func (s *ParserState) EndOfInput() bool {
	return s.next == len(s.head)
}

func (s *ParserState) Push(index int) {
	s.stack = append(s.stack, index)
}

func (s *ParserState) Pop() int {
	if len(s.stack) == 0 {
		panic("pop of empty parse stack")
	}
	top := s.stack[len(s.stack)-1]
	s.stack = s.stack[:len(s.stack)-1]
	return top
}

func (s *ParserState) Top() int {
	return s.Stack(0)
}

// Stack returns the token index position elements below the stack top, or
// -1 when position is outside the stack.
func (s *ParserState) Stack(position int) int {
	i := len(s.stack) - 1 - position
	if position < 0 || i < 0 {
		return -1
	}
	return s.stack[i]
}

func (s *ParserState) StackSize() int {
	return len(s.stack)
}

func (s *ParserState) StackEmpty() bool {
	return len(s.stack) == 0
}

// AddArc attaches token index to head with the given label id. Arcs are
// monotone: re-heading an already attached token is a programming error.
func (s *ParserState) AddArc(index, head, label int) {
	if index < 0 || index >= len(s.head) {
		panic(fmt.Sprintf("arc modifier out of range: %v", index))
	}
	s.head[index] = head
	s.label[index] = label
}

// Head returns the inferred head of token index, NoHead when unattached.
func (s *ParserState) Head(index int) int {
	if index < 0 || index >= len(s.head) {
		return nlp.NoHead
	}
	return s.head[index]
}

// Label returns the inferred label id of token index, -1 when unattached.
func (s *ParserState) Label(index int) int {
	if index < 0 || index >= len(s.label) {
		return -1
	}
	return s.label[index]
}

// GoldHead returns the reference head of token index.
func (s *ParserState) GoldHead(index int) int {
	return s.sentence.Token(index).Head
}

// GoldLabel returns the reference label id of token index, -1 when the
// label is missing from the label map. The sentinel never equals a real
// label id, so a corpus/map mismatch can not pass a correctness check.
func (s *ParserState) GoldLabel(index int) int {
	return s.labelMap.LookupIndex(s.sentence.Token(index).Label, -1)
}

// IsTokenCorrect reports whether the annotation built for token index
// matches gold, as defined by the transition system's state extension.
func (s *ParserState) IsTokenCorrect(index int) bool {
	return s.ext.IsTokenCorrect(s, index)
}

// AddParseToDocument copies the built annotation into sentence, a pure
// projection of the state.
func (s *ParserState) AddParseToDocument(sentence *nlp.Sentence) {
	s.ext.AddParseToDocument(s, sentence)
}

func (s *ParserState) String() string {
	stackWords := make([]string, len(s.stack))
	for i, tok := range s.stack {
		stackWords[i] = s.sentence.Token(tok).Word
	}
	bufferWords := make([]string, 0, 3)
	for i := s.next; i < len(s.head) && i < s.next+3; i++ {
		bufferWords = append(bufferWords, s.sentence.Token(i).Word)
	}
	return fmt.Sprintf("([%s],[%s])",
		strings.Join(stackWords, ","), strings.Join(bufferWords, ","))
}
