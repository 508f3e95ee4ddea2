package types

import (
	"reflect"
)

const (
	// NoHead is the head of tokens with no head assigned and of root tokens.
	NoHead = -1
	// NoLabel is the label of tokens with no relation assigned.
	NoLabel = "_"
)

// Token is one corpus token with its gold annotation. Head is the index of
// the head token within the sentence (NoHead for the root), Label the
// dependency relation to that head.
type Token struct {
	Word  string
	Tag   string
	Label string
	Head  int
}

// Sentence is an immutable ordered token sequence. A Sentence is owned by
// the corpus reader; parser states reference it without copying.
type Sentence struct {
	Tokens []Token
}

func (s *Sentence) Len() int {
	return len(s.Tokens)
}

func (s *Sentence) Token(i int) *Token {
	return &s.Tokens[i]
}

func (s *Sentence) Equal(other *Sentence) bool {
	if s == nil || other == nil {
		return s == other
	}
	return reflect.DeepEqual(s.Tokens, other.Tokens)
}

// Copy returns a deep copy, used when annotating parsed output without
// touching the corpus-owned original.
func (s *Sentence) Copy() *Sentence {
	tokens := make([]Token, len(s.Tokens))
	copy(tokens, s.Tokens)
	return &Sentence{Tokens: tokens}
}
