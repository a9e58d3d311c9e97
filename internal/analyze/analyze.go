// Package analyze wraps the morphological analysis capability used by the
// keyword index. The analyzer is injected, never reached through a global;
// failures are recovered locally with naive whitespace tokenization so that
// indexing degrades instead of failing.
package analyze

import (
	"unicode"
)

// Token is one morphological analysis result.
type Token struct {
	// Surface is the token as it appears in the text.
	Surface string
	// BaseForm is the dictionary form, empty when unknown.
	BaseForm string
	// PartOfSpeech is the analyzer's top-level POS tag.
	PartOfSpeech string
	// Reading is the phonetic reading, optional.
	Reading string
	// Start and End are byte offsets of Surface in the analyzed text.
	// End == Start means the analyzer reported no position.
	Start int
	End   int
}

// Analyzer is the morphological analysis capability.
// Implementations may be shared between indexing operations and must be
// safe for concurrent use.
type Analyzer interface {
	Analyze(text string) ([]Token, error)
}

// Result carries either analyzed tokens or fallback tokens with an explicit
// marker, so callers never need exception-style control flow to detect the
// degraded path.
type Result struct {
	Tokens   []Token
	Fallback bool
}

// IndexablePOS is the set of part-of-speech tags worth indexing: noun,
// verb, adjective, adverb, interjection and pre-noun adjectival, in the
// IPA dictionary's tag vocabulary.
var IndexablePOS = map[string]struct{}{
	"名詞":  {}, // noun
	"動詞":  {}, // verb
	"形容詞": {}, // adjective
	"副詞":  {}, // adverb
	"感動詞": {}, // interjection
	"連体詞": {}, // pre-noun adjectival
}

// IsIndexable reports whether a POS tag belongs to the indexable set.
func IsIndexable(pos string) bool {
	_, ok := IndexablePOS[pos]
	return ok
}

// Tokenize runs the analyzer over text, falling back to whitespace
// splitting when the analyzer is nil or fails. The fallback path is always
// taken on failure; the error itself is never surfaced.
func Tokenize(a Analyzer, text string) *Result {
	if a != nil {
		tokens, err := a.Analyze(text)
		if err == nil {
			return &Result{Tokens: tokens}
		}
	}
	return &Result{Tokens: FallbackTokens(text), Fallback: true}
}

// FallbackTokens splits text on whitespace and punctuation, recording byte
// offsets. The tokens carry no POS tag; consumers must skip POS filtering
// for fallback results.
func FallbackTokens(text string) []Token {
	var tokens []Token
	start := -1
	for i, r := range text {
		if unicode.IsSpace(r) || unicode.IsPunct(r) {
			if start >= 0 {
				tokens = append(tokens, Token{Surface: text[start:i], Start: start, End: i})
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		tokens = append(tokens, Token{Surface: text[start:], Start: start, End: len(text)})
	}
	return tokens
}
