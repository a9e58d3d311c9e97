package analyze

import (
	"fmt"

	"github.com/ikawaha/kagome-dict/ipa"
	"github.com/ikawaha/kagome/v2/tokenizer"
)

// KagomeAnalyzer implements Analyzer with the kagome morphological
// analyzer and the IPA dictionary.
type KagomeAnalyzer struct {
	t *tokenizer.Tokenizer
}

// NewKagomeAnalyzer builds a kagome-backed analyzer. Dictionary loading is
// the expensive part; construct once and share the instance.
func NewKagomeAnalyzer() (*KagomeAnalyzer, error) {
	t, err := tokenizer.New(ipa.Dict(), tokenizer.OmitBosEos())
	if err != nil {
		return nil, fmt.Errorf("failed to build kagome tokenizer: %w", err)
	}
	return &KagomeAnalyzer{t: t}, nil
}

// Analyze runs morphological analysis over text.
func (a *KagomeAnalyzer) Analyze(text string) ([]Token, error) {
	morphs := a.t.Tokenize(text)

	// Kagome reports rune offsets; Token carries byte offsets.
	runeToByte := make([]int, 0, len(text)+1)
	for i := range text {
		runeToByte = append(runeToByte, i)
	}
	runeToByte = append(runeToByte, len(text))

	tokens := make([]Token, 0, len(morphs))
	for _, m := range morphs {
		tok := Token{Surface: m.Surface}
		if m.Start >= 0 && m.Start <= m.End && m.End < len(runeToByte) {
			tok.Start = runeToByte[m.Start]
			tok.End = runeToByte[m.End]
		}
		if pos := m.POS(); len(pos) > 0 {
			tok.PartOfSpeech = pos[0]
		}
		if base, ok := m.BaseForm(); ok {
			tok.BaseForm = base
		}
		if reading, ok := m.Reading(); ok {
			tok.Reading = reading
		}
		tokens = append(tokens, tok)
	}
	return tokens, nil
}
