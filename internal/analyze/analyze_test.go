package analyze

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubAnalyzer struct {
	tokens []Token
	err    error
}

func (s *stubAnalyzer) Analyze(text string) ([]Token, error) {
	return s.tokens, s.err
}

func TestTokenizeUsesAnalyzer(t *testing.T) {
	a := &stubAnalyzer{tokens: []Token{
		{Surface: "魔法使い", BaseForm: "魔法使い", PartOfSpeech: "名詞"},
		{Surface: "歩く", BaseForm: "歩く", PartOfSpeech: "動詞"},
	}}
	res := Tokenize(a, "whatever")
	require.False(t, res.Fallback)
	require.Len(t, res.Tokens, 2)
	assert.Equal(t, "名詞", res.Tokens[0].PartOfSpeech)
}

func TestTokenizeFallsBackOnError(t *testing.T) {
	a := &stubAnalyzer{err: fmt.Errorf("dictionary exploded")}
	res := Tokenize(a, "the wizard casts spells")
	require.True(t, res.Fallback)
	surfaces := make([]string, 0, len(res.Tokens))
	for _, tok := range res.Tokens {
		surfaces = append(surfaces, tok.Surface)
		assert.Empty(t, tok.PartOfSpeech)
	}
	assert.Equal(t, []string{"the", "wizard", "casts", "spells"}, surfaces)
}

func TestTokenizeFallsBackWithoutAnalyzer(t *testing.T) {
	res := Tokenize(nil, "one, two.  three")
	require.True(t, res.Fallback)
	assert.Len(t, res.Tokens, 3)
}

func TestIsIndexable(t *testing.T) {
	for pos := range IndexablePOS {
		assert.True(t, IsIndexable(pos))
	}
	assert.False(t, IsIndexable("助詞"))
	assert.False(t, IsIndexable("記号"))
	assert.False(t, IsIndexable(""))
}

func TestFallbackTokensEmptyInput(t *testing.T) {
	assert.Empty(t, FallbackTokens(""))
	assert.Empty(t, FallbackTokens("   \n\t"))
}

func TestFallbackTokensOffsets(t *testing.T) {
	text := "one, two.  three"
	tokens := FallbackTokens(text)
	require.Len(t, tokens, 3)
	for _, tok := range tokens {
		assert.Equal(t, tok.Surface, text[tok.Start:tok.End])
	}
	assert.Equal(t, 0, tokens[0].Start)
	assert.Equal(t, "three", tokens[2].Surface)
	assert.Equal(t, len(text), tokens[2].End)
}

func TestKagomeAnalyzerOffsets(t *testing.T) {
	a, err := NewKagomeAnalyzer()
	require.NoError(t, err)

	text := "猫は猫である"
	tokens, err := a.Analyze(text)
	require.NoError(t, err)
	require.NotEmpty(t, tokens)

	var catStarts []int
	prevEnd := 0
	for _, tok := range tokens {
		assert.Equal(t, tok.Surface, text[tok.Start:tok.End])
		assert.GreaterOrEqual(t, tok.Start, prevEnd)
		prevEnd = tok.End
		if tok.Surface == "猫" {
			catStarts = append(catStarts, tok.Start)
		}
	}

	// The repeated surface resolves to two distinct positions.
	require.Len(t, catStarts, 2)
	assert.NotEqual(t, catStarts[0], catStarts[1])
}
