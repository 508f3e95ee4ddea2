package parser

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	nlp "tparse/nlp/types"
	"tparse/util"
	"tparse/util/conf"
)

const oneTokenCorpus = `1	Yes	_	UH	UH	_	0	root	_	_

1	No	_	UH	UH	_	0	root	_	_

1	Maybe	_	UH	UH	_	0	root	_	_
`

const twoTokenCorpus = `1	the	_	DT	DT	_	2	det	_	_
2	dog	_	NN	NN	_	0	root	_	_
`

const fourTokenCorpus = `1	the	_	DT	DT	_	2	det	_	_
2	dog	_	NN	NN	_	3	nsubj	_	_
3	barks	_	VB	VB	_	0	root	_	_
4	.	_	.	.	_	3	punct	_	_
`

func writeMapFile(t *testing.T, dir, name string, terms []string) string {
	t.Helper()
	m := util.NewTermFrequencyMap()
	for _, term := range terms {
		m.Increment(term)
	}
	path := filepath.Join(dir, name)
	require.NoError(t, m.Save(path))
	return path
}

// newTestContext builds a task context with a corpus file, term maps and a
// single word-based feature group. Equal term frequencies make map ids
// lexicographic, so tests can predict them.
func newTestContext(t *testing.T, corpus string, words, labels []string) *conf.Context {
	t.Helper()
	dir := t.TempDir()
	corpusPath := filepath.Join(dir, "corpus.conll")
	require.NoError(t, os.WriteFile(corpusPath, []byte(corpus), 0666))

	ctx := conf.New()
	ctx.Set("transition_system", "arc-standard")
	ctx.Set("parser_features", "input.word")
	ctx.Set("parser_embedding_names", "words")
	ctx.Set("parser_embedding_dims", "8")
	ctx.SetInput("training-corpus", corpusPath)
	ctx.SetInput("word-map", writeMapFile(t, dir, "word-map", words))
	ctx.SetInput("label-map", writeMapFile(t, dir, "label-map", labels))
	return ctx
}

func TestGoldReaderEpochs(t *testing.T) {
	ctx := newTestContext(t, oneTokenCorpus, []string{"Yes", "No", "Maybe"}, []string{"root"})
	store := util.NewSharedStore()
	reader, err := NewGoldReader(ctx, store, "training-corpus", "parser", 2, 1)
	require.NoError(t, err)
	defer reader.Close()

	// First step fills the batch from the first corpus pass: still epoch 0.
	step, err := reader.Step()
	require.NoError(t, err)
	assert.Equal(t, 0, step.Epoch)
	assert.Len(t, step.Features[0], 2)
	assert.Equal(t, []int{0, 0}, step.GoldActions, "one-token sentences start with SHIFT")

	// Both sentences finish; only one sentence is left in the corpus.
	step, err = reader.Step()
	require.NoError(t, err)
	assert.Equal(t, 0, step.Epoch)
	assert.Len(t, step.Features[0], 1)

	// The batch drains: rewind, refill, epoch counter moves.
	step, err = reader.Step()
	require.NoError(t, err)
	assert.Equal(t, 1, step.Epoch)
	assert.Len(t, step.Features[0], 2)
}

func TestGoldReaderActionSequence(t *testing.T) {
	ctx := newTestContext(t, fourTokenCorpus,
		[]string{"the", "dog", "barks", "."},
		[]string{"det", "nsubj", "punct", "root"})
	store := util.NewSharedStore()
	reader, err := NewGoldReader(ctx, store, "training-corpus", "parser", 1, 1)
	require.NoError(t, err)
	defer reader.Close()

	assert.Equal(t, 9, reader.NumActions())

	var actions []int
	for {
		step, err := reader.Step()
		require.NoError(t, err)
		if step.Epoch >= 1 {
			break
		}
		require.Len(t, step.GoldActions, 1)
		actions = append(actions, step.GoldActions[0])
	}
	// Label ids are lexicographic: det=0, nsubj=1, punct=2.
	// SH SH LA(det) SH LA(nsubj) SH RA(punct)
	assert.Equal(t, []int{0, 0, 1, 0, 3, 0, 6}, actions)
}

func TestDecodedReaderTieBreak(t *testing.T) {
	ctx := newTestContext(t, twoTokenCorpus, []string{"the", "dog"}, []string{"det", "root"})
	store := util.NewSharedStore()
	reader, err := NewDecodedReader(ctx, store, "training-corpus", "parser", 1, 1)
	require.NoError(t, err)
	defer reader.Close()

	require.Equal(t, 5, reader.NumActions())
	tied := [][]float32{make([]float32, 5)}

	step, err := reader.Step(nil)
	require.NoError(t, err)
	assert.Len(t, step.Features[0], 1)

	// All-zero scores: SHIFT (action 0) wins while allowed.
	for i := 0; i < 2; i++ {
		step, err = reader.Step(tied)
		require.NoError(t, err)
		assert.Empty(t, step.Documents)
	}

	// SHIFT is now disallowed; among the tied arc actions the lowest index,
	// LEFT-ARC(det), must win.
	step, err = reader.Step(tied)
	require.NoError(t, err)
	require.Len(t, step.Documents, 1)
	doc := step.Documents[0]
	assert.Equal(t, 1, doc.Token(0).Head)
	assert.Equal(t, "det", doc.Token(0).Label)
	assert.Equal(t, nlp.NoHead, doc.Token(1).Head)
	assert.Equal(t, 2, step.NumTokens)
	assert.Equal(t, 2, step.NumCorrect)
	assert.Equal(t, 1, step.Epoch, "single-sentence corpus rewinds as the sentence finishes")
}

func TestDecodedReaderGoldScoresPipeline(t *testing.T) {
	ctx := newTestContext(t, fourTokenCorpus,
		[]string{"the", "dog", "barks", "."},
		[]string{"det", "nsubj", "punct", "root"})
	ctx.Set("parser_scoring", "default")
	store := util.NewSharedStore()
	reader, err := NewDecodedReader(ctx, store, "training-corpus", "parser", 1, 1)
	require.NoError(t, err)
	defer reader.Close()

	step, err := reader.Step(nil)
	require.NoError(t, err)

	var (
		documents  []*nlp.Sentence
		numTokens  int
		numCorrect int
	)
	for step.Epoch < 1 {
		step, err = reader.Step(reader.GoldScores())
		require.NoError(t, err)
		numTokens += step.NumTokens
		numCorrect += step.NumCorrect
		documents = append(documents, step.Documents...)
	}

	// The "." token carries a punctuation tag and is not scored.
	assert.Equal(t, 3, numTokens)
	assert.Equal(t, 3, numCorrect, "gold-driven decoding reproduces the gold parse")

	require.Len(t, documents, 1)
	doc := documents[0]
	assert.Equal(t, 1, doc.Token(0).Head)
	assert.Equal(t, 2, doc.Token(1).Head)
	assert.Equal(t, nlp.NoHead, doc.Token(2).Head)
	assert.Equal(t, 2, doc.Token(3).Head)
	assert.Equal(t, "det", doc.Token(0).Label)
	assert.Equal(t, "nsubj", doc.Token(1).Label)
	assert.Equal(t, nlp.NoLabel, doc.Token(2).Label, "root tokens keep no attached label")
	assert.Equal(t, "punct", doc.Token(3).Label)
}

func TestDecodedReaderScoreValidation(t *testing.T) {
	ctx := newTestContext(t, twoTokenCorpus, []string{"the", "dog"}, []string{"det", "root"})
	store := util.NewSharedStore()
	reader, err := NewDecodedReader(ctx, store, "training-corpus", "parser", 1, 1)
	require.NoError(t, err)
	defer reader.Close()

	_, err = reader.Step([][]float32{make([]float32, 5)})
	assert.Error(t, err, "first step must not receive scores")

	_, err = reader.Step(nil)
	require.NoError(t, err)

	_, err = reader.Step([][]float32{make([]float32, 5), make([]float32, 5)})
	assert.Error(t, err, "row count must match the previous batch")

	_, err = reader.Step([][]float32{make([]float32, 3)})
	assert.Error(t, err, "column count must match the action space")
}

func TestReaderConfigErrors(t *testing.T) {
	ctx := newTestContext(t, twoTokenCorpus, []string{"the", "dog"}, []string{"det", "root"})
	store := util.NewSharedStore()

	_, err := NewGoldReader(ctx, store, "training-corpus", "parser", 0, 1)
	assert.Error(t, err, "batch size must be positive")

	_, err = NewGoldReader(ctx, store, "training-corpus", "parser", 1, 2)
	assert.Error(t, err, "feature size must match the embedding dims")

	_, err = NewGoldReader(ctx, store, "missing-corpus", "parser", 1, 1)
	assert.Error(t, err)

	ctx.Set("parser_scoring", "uas")
	_, err = NewDecodedReader(ctx, store, "training-corpus", "parser", 1, 1)
	assert.Error(t, err, "unknown scoring type")

	assert.Equal(t, 0, store.Len(), "failed construction leaks no shared resources")
}

func TestReaderCloseReleasesStore(t *testing.T) {
	ctx := newTestContext(t, oneTokenCorpus, []string{"Yes", "No", "Maybe"}, []string{"root"})
	store := util.NewSharedStore()
	reader, err := NewGoldReader(ctx, store, "training-corpus", "parser", 2, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, store.Len(), "word map and label map are shared")

	_, err = reader.Step()
	require.NoError(t, err)

	require.NoError(t, reader.Close())
	assert.Equal(t, 0, store.Len())
}

func TestSentenceBatchAdvance(t *testing.T) {
	ctx := newTestContext(t, oneTokenCorpus, []string{"Yes", "No", "Maybe"}, []string{"root"})
	batch := NewSentenceBatch(2)
	require.NoError(t, batch.Init(ctx, "training-corpus"))

	ok, err := batch.AdvanceSentence(0)
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = batch.AdvanceSentence(1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 2, batch.Size())
	assert.Equal(t, "Yes", batch.Sentence(0).Token(0).Word)
	assert.Equal(t, "No", batch.Sentence(1).Token(0).Word)

	// Third sentence replaces slot 0; the next advance drains the slot.
	ok, err = batch.AdvanceSentence(0)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Maybe", batch.Sentence(0).Token(0).Word)

	ok, err = batch.AdvanceSentence(0)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, batch.Sentence(0))
	assert.Equal(t, 1, batch.Size())

	// Rewind restores the original order.
	require.NoError(t, batch.Rewind())
	ok, err = batch.AdvanceSentence(0)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Yes", batch.Sentence(0).Token(0).Word)
}
