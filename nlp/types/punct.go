package types

import (
	"unicode"
)

// Token-scoring policies for accuracy evaluation. A policy decides which
// tokens count towards the total; punctuation is conventionally excluded.
const (
	ScoreAll          = ""
	ScoreDefault      = "default"       // skip tokens whose tag is pure punctuation
	ScoreConllX       = "conllx"        // skip tokens whose word is pure punctuation
	ScoreIgnoreParens = "ignore_parens" // conllx, also skipping parentheses
)

// ValidScoringType reports whether scoringType names a known policy.
func ValidScoringType(scoringType string) bool {
	switch scoringType {
	case ScoreAll, ScoreDefault, ScoreConllX, ScoreIgnoreParens:
		return true
	}
	return false
}

func isPunctuation(s string) bool {
	if len(s) == 0 {
		return false
	}
	for _, r := range s {
		if !unicode.IsPunct(r) && !unicode.IsSymbol(r) {
			return false
		}
	}
	return true
}

// ScoreToken reports whether a token with the given word and tag should be
// counted under the scoring policy.
func ScoreToken(word, tag, scoringType string) bool {
	switch scoringType {
	case ScoreDefault:
		return !isPunctuation(tag)
	case ScoreConllX:
		return !isPunctuation(word)
	case ScoreIgnoreParens:
		// Penn-Treebank-style bracket tokens are not unicode punctuation.
		switch word {
		case "-LRB-", "-RRB-", "-LSB-", "-RSB-", "-LCB-", "-RCB-":
			return false
		}
		return !isPunctuation(word)
	default:
		return true
	}
}
