package transition

import (
	"fmt"

	nlp "tparse/nlp/types"
	"tparse/util"
	"tparse/util/conf"
)

// Tagger casts sequence tagging as a transition system: each action assigns
// a tag to the token at the buffer cursor and advances. The action space is
// the tag vocabulary; token correctness is tag accuracy.
type Tagger struct {
	tagMap     *util.TermFrequencyMap
	tagMapPath string
	store      *util.SharedStore
}

var _ System = &Tagger{}

func init() {
	RegisterSystem("tagger", func() System { return &Tagger{} })
}

func (t *Tagger) Setup(ctx *conf.Context, store *util.SharedStore) error {
	path, err := ctx.InputFile("tag-map")
	if err != nil {
		return err
	}
	value, err := store.Get(path, func(p string) (interface{}, error) {
		return util.LoadTermFrequencyMap(p, 0, 0)
	})
	if err != nil {
		return err
	}
	t.tagMap = value.(*util.TermFrequencyMap)
	t.tagMapPath = path
	t.store = store
	return nil
}

func (t *Tagger) Init(ctx *conf.Context) error {
	return nil
}

func (t *Tagger) NumActions(numLabels int) int {
	return t.tagMap.Size()
}

func (t *Tagger) IsAllowedAction(action int, state *ParserState) bool {
	return !state.EndOfInput() && action >= 0 && action < t.tagMap.Size()
}

func (t *Tagger) PerformAction(action int, state *ParserState) {
	if !t.IsAllowedAction(action, state) {
		panic(fmt.Sprintf("disallowed tagger action %v on %v", action, state))
	}
	ext := state.TransitionState().(*taggerState)
	ext.tags[state.Next()] = action
	ext.record(action)
	state.Push(state.Next())
	state.Advance()
}

func (t *Tagger) IsFinalState(state *ParserState) bool {
	return state.EndOfInput()
}

func (t *Tagger) GetNextGoldAction(state *ParserState) int {
	token := state.Sentence().Token(state.Next())
	action := t.tagMap.LookupIndex(token.Tag, -1)
	if action < 0 {
		panic(fmt.Sprintf("gold tag %q of token %v missing from tag map", token.Tag, state.Next()))
	}
	return action
}

func (t *Tagger) NewTransitionState(keepHistory bool) TransitionState {
	return &taggerState{tagMap: t.tagMap, keepHistory: keepHistory}
}

func (t *Tagger) Close() error {
	if t.store != nil {
		t.store.Release(t.tagMapPath)
		t.store = nil
	}
	return nil
}

func (t *Tagger) Name() string {
	return "tagger"
}

// taggerState holds the tag assigned to each consumed token.
type taggerState struct {
	tagMap      *util.TermFrequencyMap
	tags        []int
	keepHistory bool
	history     []int
}

var _ TransitionState = &taggerState{}

func (s *taggerState) Init(state *ParserState) {
	s.tags = make([]int, state.NumTokens())
	for i := range s.tags {
		s.tags[i] = -1
	}
	if s.keepHistory {
		s.history = make([]int, 0, state.NumTokens())
	}
}

func (s *taggerState) record(action int) {
	if s.keepHistory {
		s.history = append(s.history, action)
	}
}

func (s *taggerState) History() []int {
	return s.history
}

// Tag returns the tag id assigned to token index, -1 when unassigned.
func (s *taggerState) Tag(index int) int {
	if index < 0 || index >= len(s.tags) {
		return -1
	}
	return s.tags[index]
}

func (s *taggerState) IsTokenCorrect(state *ParserState, index int) bool {
	return s.tags[index] == s.tagMap.LookupIndex(state.Sentence().Token(index).Tag, -1)
}

func (s *taggerState) AddParseToDocument(state *ParserState, sentence *nlp.Sentence) {
	for i := 0; i < state.NumTokens(); i++ {
		if s.tags[i] >= 0 {
			sentence.Token(i).Tag = s.tagMap.GetTerm(s.tags[i])
		}
	}
}
