package parser

import (
	"fmt"
	"io"
	"log"
	"math"
	"sync"

	"tparse/nlp/parser/transition"
	nlp "tparse/nlp/types"
	"tparse/util"
	"tparse/util/conf"
)

// parsingReader drives a batch of parser states through a transition
// system: the common machinery of the gold and decoded readers. One Step
// performs actions on every live state, recycles finished sentences,
// rewinds the corpus at epoch boundaries and extracts features for the
// states left in the batch.
//
// A single mutex serializes whole steps; per-slot state is shared across
// the phases of a step, so there is deliberately no finer locking.
type parsingReader struct {
	mu sync.Mutex

	ctx       *conf.Context
	store     *util.SharedStore
	argPrefix string

	maxBatchSize int
	featureSize  int

	batch      *SentenceBatch
	states     []*transition.ParserState
	workspaces []*transition.WorkspaceSet
	registry   *transition.WorkspaceRegistry
	features   *transition.Extractor
	system     transition.System

	labelMap  *util.TermFrequencyMap
	labelPath string

	numActions int
	numEpochs  int
	started    bool
}

func newParsingReader(ctx *conf.Context, store *util.SharedStore, corpusName, argPrefix string, batchSize, featureSize int) (*parsingReader, error) {
	if batchSize < 1 {
		return nil, fmt.Errorf("batch size must be positive, got %d", batchSize)
	}

	r := &parsingReader{
		ctx:          ctx,
		store:        store,
		argPrefix:    argPrefix,
		maxBatchSize: batchSize,
		featureSize:  featureSize,
		batch:        NewSentenceBatch(batchSize),
		states:       make([]*transition.ParserState, batchSize),
		workspaces:   make([]*transition.WorkspaceSet, batchSize),
		registry:     transition.NewWorkspaceRegistry(),
	}
	for i := range r.workspaces {
		r.workspaces[i] = &transition.WorkspaceSet{}
	}

	if err := r.batch.Init(ctx, corpusName); err != nil {
		return nil, err
	}

	r.features = transition.NewExtractor(argPrefix)
	system, err := transition.NewSystem(ctx.Get("transition_system", "arc-standard"))
	if err != nil {
		return nil, err
	}
	r.system = system

	// From here on partially acquired resources are returned through Close.
	if err := r.init(); err != nil {
		r.Close()
		return nil, err
	}
	return r, nil
}

func (r *parsingReader) init() error {
	if err := r.features.Setup(r.ctx); err != nil {
		return err
	}
	if err := r.system.Setup(r.ctx, r.store); err != nil {
		return err
	}
	if err := r.features.Init(r.ctx, r.store); err != nil {
		return err
	}
	if err := r.system.Init(r.ctx); err != nil {
		return err
	}
	r.features.RequestWorkspaces(r.registry)

	labelPath, err := r.ctx.InputFile("label-map")
	if err != nil {
		return err
	}
	value, err := r.store.Get(labelPath, func(p string) (interface{}, error) {
		return util.LoadTermFrequencyMap(p, 0, 0)
	})
	if err != nil {
		return err
	}
	r.labelMap = value.(*util.TermFrequencyMap)
	r.labelPath = labelPath
	r.numActions = r.system.NumActions(r.labelMap.Size())

	if required := len(r.features.EmbeddingDims()); r.featureSize != required {
		return fmt.Errorf("task context requires feature_size=%d, got %d", required, r.featureSize)
	}
	return nil
}

// NumActions returns the fixed action-space size of the configured system.
func (r *parsingReader) NumActions() int {
	return r.numActions
}

func (r *parsingReader) FeatureGroups() int {
	return r.features.NumGroups()
}

func (r *parsingReader) EmbeddingDims() []int {
	return r.features.EmbeddingDims()
}

// advanceSentence recycles slot: the current state is dropped and the next
// corpus sentence, if any, gets a fresh state and preprocessed workspaces.
func (r *parsingReader) advanceSentence(slot int) error {
	r.states[slot] = nil
	ok, err := r.batch.AdvanceSentence(slot)
	if err != nil {
		return err
	}
	if ok {
		r.states[slot] = transition.NewParserState(
			r.batch.Sentence(slot), r.system.NewTransitionState(true), r.labelMap)
		r.workspaces[slot].Reset(r.registry)
		r.features.Preprocess(r.workspaces[slot], r.states[slot])
	}
	return nil
}

// start fills the batch for the very first step. The initial corpus pass is
// epoch 0; the counter only increments on subsequent full traversals.
func (r *parsingReader) start() error {
	r.started = true
	for i := 0; i < r.maxBatchSize; i++ {
		if err := r.advanceSentence(i); err != nil {
			return err
		}
	}
	return nil
}

// finish advances every finalized state to its next sentence (skipping
// trivially-final ones) and rewinds the corpus when the batch drains.
func (r *parsingReader) finish() error {
	for i := 0; i < r.maxBatchSize; i++ {
		if r.states[i] == nil {
			continue
		}
		for r.system.IsFinalState(r.states[i]) {
			if err := r.advanceSentence(i); err != nil {
				return err
			}
			if r.states[i] == nil {
				break
			}
		}
	}
	if r.batch.Size() == 0 {
		r.numEpochs++
		log.Println("Starting epoch", r.numEpochs)
		if err := r.batch.Rewind(); err != nil {
			return err
		}
		for i := 0; i < r.maxBatchSize; i++ {
			if err := r.advanceSentence(i); err != nil {
				return err
			}
		}
	}
	return nil
}

// extract builds the step's feature output: one row per occupied slot, in
// slot order, per feature group.
func (r *parsingReader) extract() ([][][]transition.SparseFeature, error) {
	out := make([][][]transition.SparseFeature, r.features.NumGroups())
	for g := range out {
		out[g] = make([][]transition.SparseFeature, 0, r.batch.Size())
	}
	for i := 0; i < r.maxBatchSize; i++ {
		if r.states[i] == nil {
			continue
		}
		groups, err := r.features.ExtractSparseFeatures(r.workspaces[i], r.states[i])
		if err != nil {
			return nil, err
		}
		for g, group := range groups {
			out[g] = append(out[g], group)
		}
	}
	return out, nil
}

// Close releases shared resources. Term maps are refcounted in the shared
// store; the last reader standing evicts them.
func (r *parsingReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.features.Release()
	if err := r.system.Close(); err != nil {
		return err
	}
	if r.labelMap != nil {
		r.store.Release(r.labelPath)
		r.labelMap = nil
	}
	if closer, ok := r.batch.corpus.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// GoldStep is the output of one gold-policy step: feature rows per group,
// the epoch counter, and for every emitted feature row the gold action to
// train towards.
type GoldStep struct {
	Features    [][][]transition.SparseFeature
	Epoch       int
	GoldActions []int
}

// GoldReader always applies the gold action to every state: the
// training-data generation policy.
type GoldReader struct {
	*parsingReader
}

func NewGoldReader(ctx *conf.Context, store *util.SharedStore, corpusName, argPrefix string, batchSize, featureSize int) (*GoldReader, error) {
	r, err := newParsingReader(ctx, store, corpusName, argPrefix, batchSize, featureSize)
	if err != nil {
		return nil, err
	}
	return &GoldReader{r}, nil
}

// Step advances every state by its gold action, recycles finished
// sentences, and emits features with the matching next gold actions.
func (g *GoldReader) Step() (*GoldStep, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.started {
		if err := g.start(); err != nil {
			return nil, err
		}
	} else {
		// The oracle is trusted: it only produces legal actions.
		for i := 0; i < g.maxBatchSize; i++ {
			if g.states[i] != nil {
				g.system.PerformAction(g.system.GetNextGoldAction(g.states[i]), g.states[i])
			}
		}
	}

	if err := g.finish(); err != nil {
		return nil, err
	}
	features, err := g.extract()
	if err != nil {
		return nil, err
	}

	actions := make([]int, 0, g.batch.Size())
	for i := 0; i < g.maxBatchSize; i++ {
		if g.states[i] != nil {
			actions = append(actions, g.system.GetNextGoldAction(g.states[i]))
		}
	}
	return &GoldStep{Features: features, Epoch: g.numEpochs, GoldActions: actions}, nil
}

// DecodedStep is the output of one decoded-policy step: feature rows per
// group, the epoch counter, this step's token-accuracy tally, and the
// sentences finalized during the step, annotated with their inferred parse.
type DecodedStep struct {
	Features   [][][]transition.SparseFeature
	Epoch      int
	NumTokens  int
	NumCorrect int
	Documents  []*nlp.Sentence
}

// DecodedReader applies the highest-scoring allowed action per state, using
// a score matrix computed externally from the previous step's features:
// the inference/evaluation policy.
type DecodedReader struct {
	*parsingReader

	scoringType string
	lastBatch   int

	numTokens  int
	numCorrect int
	documents  []*nlp.Sentence
}

func NewDecodedReader(ctx *conf.Context, store *util.SharedStore, corpusName, argPrefix string, batchSize, featureSize int) (*DecodedReader, error) {
	r, err := newParsingReader(ctx, store, corpusName, argPrefix, batchSize, featureSize)
	if err != nil {
		return nil, err
	}
	scoringType := ctx.Get(argPrefix+"_scoring", "")
	if !nlp.ValidScoringType(scoringType) {
		r.Close()
		return nil, fmt.Errorf("unknown %s_scoring value %q", argPrefix, scoringType)
	}
	return &DecodedReader{parsingReader: r, scoringType: scoringType}, nil
}

// Step applies one decoded action per state. scores has one row per feature
// row emitted by the previous step (none for the first step) and one column
// per action.
func (d *DecodedReader) Step(scores [][]float32) (*DecodedStep, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.numTokens = 0
	d.numCorrect = 0

	if !d.started {
		if len(scores) != 0 {
			return nil, fmt.Errorf("first step expects no scores, got %d rows", len(scores))
		}
		if err := d.start(); err != nil {
			return nil, err
		}
	} else if err := d.performActions(scores); err != nil {
		return nil, err
	}

	if err := d.finish(); err != nil {
		return nil, err
	}
	features, err := d.extract()
	if err != nil {
		return nil, err
	}
	d.lastBatch = d.batch.Size()

	documents := d.documents
	d.documents = nil
	return &DecodedStep{
		Features:   features,
		Epoch:      d.numEpochs,
		NumTokens:  d.numTokens,
		NumCorrect: d.numCorrect,
		Documents:  documents,
	}, nil
}

func (d *DecodedReader) performActions(scores [][]float32) error {
	if len(scores) != d.lastBatch {
		return fmt.Errorf("score matrix has %d rows, expected %d", len(scores), d.lastBatch)
	}
	batchIndex := 0
	for i := 0; i < d.maxBatchSize; i++ {
		state := d.states[i]
		if state == nil {
			continue
		}
		row := scores[batchIndex]
		batchIndex++
		if len(row) != d.numActions {
			return fmt.Errorf("score matrix has %d columns, expected %d actions", len(row), d.numActions)
		}

		// Stable argmax over allowed actions: strict > keeps the first
		// action reaching the maximum.
		bestAction := -1
		bestScore := float32(math.Inf(-1))
		for action, score := range row {
			if score > bestScore && d.system.IsAllowedAction(action, state) {
				bestAction = action
				bestScore = score
			}
		}
		if bestAction < 0 {
			return fmt.Errorf("no allowed action for batch slot %d", i)
		}
		d.system.PerformAction(bestAction, state)

		if d.system.IsFinalState(state) {
			d.computeTokenAccuracy(state)
			document := state.Sentence().Copy()
			state.AddParseToDocument(document)
			d.documents = append(d.documents, document)
		}
	}
	return nil
}

// computeTokenAccuracy tallies correct tokens of a finished sentence under
// the configured scoring policy.
func (d *DecodedReader) computeTokenAccuracy(state *transition.ParserState) {
	sentence := state.Sentence()
	for i := 0; i < sentence.Len(); i++ {
		token := sentence.Token(i)
		if nlp.ScoreToken(token.Word, token.Tag, d.scoringType) {
			d.numTokens++
			if state.IsTokenCorrect(i) {
				d.numCorrect++
			}
		}
	}
}

// GoldScores returns a one-hot score matrix selecting the gold action for
// every live state. It lets a decoded pipeline be exercised end to end
// without an external scorer (the output should reproduce gold parses).
func (d *DecodedReader) GoldScores() [][]float32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	scores := make([][]float32, 0, d.batch.Size())
	for i := 0; i < d.maxBatchSize; i++ {
		if d.states[i] == nil {
			continue
		}
		row := make([]float32, d.numActions)
		row[d.system.GetNextGoldAction(d.states[i])] = 1
		scores = append(scores, row)
	}
	return scores
}
