package transition

import (
	"fmt"
	"sort"

	nlp "tparse/nlp/types"
	"tparse/util"
	"tparse/util/conf"
)

// System defines the action space and semantics of one parsing formalism.
// A System is configured once (Setup then Init, both before any parsing)
// and is stateless across calls: all per-sentence state lives in the
// ParserState and its TransitionState extension.
type System interface {
	// Setup reads formalism parameters from the task context and loads any
	// resources it owns through store. Called once, before Init.
	Setup(ctx *conf.Context, store *util.SharedStore) error

	// Init finishes configuration. Called once, after Setup.
	Init(ctx *conf.Context) error

	// NumActions returns the fixed size of the action space given the size
	// of the label vocabulary.
	NumActions(numLabels int) int

	// IsAllowedAction is a purely structural legality check.
	IsAllowedAction(action int, state *ParserState) bool

	// PerformAction mutates state in place. Calling it with a disallowed
	// action is a programming error and panics.
	PerformAction(action int, state *ParserState)

	// IsFinalState reports whether no further actions apply to state.
	IsFinalState(state *ParserState) bool

	// GetNextGoldAction returns the action reproducing the sentence's
	// reference annotation. Undefined on final states.
	GetNextGoldAction(state *ParserState) int

	// NewTransitionState returns the formalism's per-state extension,
	// recording the applied action history when keepHistory is set.
	NewTransitionState(keepHistory bool) TransitionState

	// Close releases resources acquired in Setup.
	Close() error

	Name() string
}

// TransitionState is formalism-specific data attached to a ParserState for
// the state's lifetime. It also defines what a "correct token" means for
// the formalism and how a finished parse is projected onto a sentence.
type TransitionState interface {
	Init(state *ParserState)
	IsTokenCorrect(state *ParserState, index int) bool
	AddParseToDocument(state *ParserState, sentence *nlp.Sentence)
	History() []int
}

var systems = make(map[string]func() System)

// RegisterSystem adds a named System constructor to the formalism table.
// The set of formalisms is closed at process start: registration happens
// from package init functions only.
func RegisterSystem(name string, create func() System) {
	if _, exists := systems[name]; exists {
		panic("transition system registered twice: " + name)
	}
	systems[name] = create
}

// NewSystem looks up a System constructor by formalism name.
func NewSystem(name string) (System, error) {
	create, exists := systems[name]
	if !exists {
		return nil, fmt.Errorf("unknown transition system %q (have %v)", name, SystemNames())
	}
	return create(), nil
}

func SystemNames() []string {
	names := make([]string, 0, len(systems))
	for name := range systems {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
