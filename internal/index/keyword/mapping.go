package keyword

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	keywordanalyzer "github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/registry"

	"github.com/yomogi/novelindex/internal/analyze"
)

const (
	// morphTokenizerType is the registered tokenizer type name.
	morphTokenizerType = "morph_tokenizer"

	// morphTokenizerName is the per-index tokenizer instance name.
	morphTokenizerName = "morph"

	// morphAnalyzerName is the per-index analyzer name.
	morphAnalyzerName = "morph_analyzer"
)

func init() {
	_ = registry.RegisterTokenizer(morphTokenizerType, morphTokenizerConstructor)
}

// morphTokenizer adapts the morphological analysis capability to bleve.
// Only tokens whose part of speech is indexable and whose surface is at
// least minLength runes long are emitted; when analysis fails the fallback
// tokens skip the POS filter so indexing degrades instead of failing.
type morphTokenizer struct {
	analyzer  analyze.Analyzer
	minLength int
}

// morphTokenizerConstructor builds a tokenizer from per-index config. The
// analyzer instance travels through the config map, so no process-global
// analyzer registration is needed.
func morphTokenizerConstructor(config map[string]interface{}, cache *registry.Cache) (analysis.Tokenizer, error) {
	t := &morphTokenizer{minLength: DefaultMinWordLength}
	if a, ok := config["analyzer"].(analyze.Analyzer); ok {
		t.analyzer = a
	}
	if n, ok := config["min_length"].(int); ok && n > 0 {
		t.minLength = n
	}
	return t, nil
}

// Tokenize implements analysis.Tokenizer.
func (t *morphTokenizer) Tokenize(input []byte) analysis.TokenStream {
	text := string(input)
	res := analyze.Tokenize(t.analyzer, text)

	stream := make(analysis.TokenStream, 0, len(res.Tokens))
	pos := 1
	offset := 0
	for _, tok := range res.Tokens {
		if !res.Fallback && !analyze.IsIndexable(tok.PartOfSpeech) {
			continue
		}
		if utf8.RuneCountInString(tok.Surface) < t.minLength {
			continue
		}
		term := tok.BaseForm
		if term == "" {
			term = tok.Surface
		}

		// Offsets reported by the analyzer disambiguate repeated surfaces;
		// locating the surface by search is the fallback for analyzers that
		// report none.
		start, end := tok.Start, tok.End
		if end <= start {
			idx := strings.Index(text[offset:], tok.Surface)
			if idx >= 0 {
				start = offset + idx
			} else {
				start = offset
			}
			end = start + len(tok.Surface)
		}
		if end > len(text) {
			end = len(text)
		}

		stream = append(stream, &analysis.Token{
			Term:     []byte(term),
			Start:    start,
			End:      end,
			Position: pos,
			Type:     analysis.AlphaNumeric,
		})
		pos++
		if end > offset {
			offset = end
		}
	}
	return stream
}

// buildIndexMapping wires title/content/tags through the morphological
// analyzer and keeps project/file as exact keyword fields.
func buildIndexMapping(a analyze.Analyzer, minLength int) (*mapping.IndexMappingImpl, error) {
	indexMapping := bleve.NewIndexMapping()

	err := indexMapping.AddCustomTokenizer(morphTokenizerName, map[string]interface{}{
		"type":       morphTokenizerType,
		"analyzer":   a,
		"min_length": minLength,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to add morph tokenizer: %w", err)
	}

	err = indexMapping.AddCustomAnalyzer(morphAnalyzerName, map[string]interface{}{
		"type":      custom.Name,
		"tokenizer": morphTokenizerName,
		"token_filters": []string{
			lowercase.Name,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to add morph analyzer: %w", err)
	}

	morphField := bleve.NewTextFieldMapping()
	morphField.Analyzer = morphAnalyzerName

	exactField := bleve.NewTextFieldMapping()
	exactField.Analyzer = keywordanalyzer.Name

	doc := bleve.NewDocumentMapping()
	doc.AddFieldMappingsAt("title", morphField)
	doc.AddFieldMappingsAt("content", morphField)
	doc.AddFieldMappingsAt("tags", morphField)
	doc.AddFieldMappingsAt("project", exactField)
	doc.AddFieldMappingsAt("file", exactField)

	indexMapping.DefaultMapping = doc
	indexMapping.DefaultAnalyzer = morphAnalyzerName

	return indexMapping, nil
}

// bleveDocument is the document shape stored in the index. Matches across
// the three analyzed fields are merged per chunk by bleve's scoring.
type bleveDocument struct {
	Title   string   `json:"title"`
	Content string   `json:"content"`
	Tags    []string `json:"tags,omitempty"`
	Project string   `json:"project"`
	File    string   `json:"file"`
}
