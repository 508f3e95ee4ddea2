package parser

import (
	"io"

	"tparse/nlp/format/conll"
	nlp "tparse/nlp/types"
	"tparse/util/conf"
)

// Corpus is a rewindable cursor over a sentence stream. Read returns io.EOF
// when the stream is exhausted; Rewind restores the exact original order.
type Corpus interface {
	Read() (*nlp.Sentence, error)
	Rewind() error
}

// SentenceBatch keeps up to maxBatchSize sentences in flight, one per slot.
// A slot is empty (nil sentence) between exhaustion of the corpus and the
// next Rewind.
type SentenceBatch struct {
	corpus    Corpus
	sentences []*nlp.Sentence
	size      int
}

func NewSentenceBatch(maxBatchSize int) *SentenceBatch {
	return &SentenceBatch{sentences: make([]*nlp.Sentence, maxBatchSize)}
}

// Init opens the corpus registered under corpusName in the task context.
func (b *SentenceBatch) Init(ctx *conf.Context, corpusName string) error {
	path, err := ctx.InputFile(corpusName)
	if err != nil {
		return err
	}
	corpus, err := conll.OpenCorpus(path)
	if err != nil {
		return err
	}
	b.corpus = corpus
	return nil
}

// InitFromCorpus attaches an already-open corpus, used by tests and by
// callers with non-file sentence sources.
func (b *SentenceBatch) InitFromCorpus(corpus Corpus) {
	b.corpus = corpus
}

// AdvanceSentence loads the next corpus sentence into slot. It returns
// false, leaving the slot empty, when the corpus is exhausted; exhaustion
// is normal control flow, not an error.
func (b *SentenceBatch) AdvanceSentence(slot int) (bool, error) {
	if b.sentences[slot] != nil {
		b.sentences[slot] = nil
		b.size--
	}
	sentence, err := b.corpus.Read()
	if err == io.EOF {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	b.sentences[slot] = sentence
	b.size++
	return true, nil
}

// Size returns the number of occupied slots.
func (b *SentenceBatch) Size() int {
	return b.size
}

// Rewind resets the corpus cursor to the start: the epoch boundary.
func (b *SentenceBatch) Rewind() error {
	return b.corpus.Rewind()
}

// Sentence returns the sentence loaded in slot, valid until the next
// AdvanceSentence on that slot.
func (b *SentenceBatch) Sentence(slot int) *nlp.Sentence {
	return b.sentences[slot]
}
