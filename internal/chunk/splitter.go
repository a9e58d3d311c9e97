package chunk

import (
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"
)

// headingPattern matches markdown headings: # Title through ###### Title.
var headingPattern = regexp.MustCompile(`^(#{1,6})\s+(.+)$`)

// Options configures a Splitter.
type Options struct {
	// MaxTokens is the per-chunk token budget (default: DefaultMaxTokens).
	MaxTokens int

	// OverlapRatio (0.0-1.0) controls how many trailing characters of a
	// chunk are repeated as a prefix of the next chunk within a section.
	OverlapRatio float64
}

// Splitter splits document text into chunks. It is stateless; splitting the
// same text with the same options always yields the same chunk list.
type Splitter struct {
	opts Options
}

// NewSplitter creates a splitter, applying defaults and clamping the
// overlap ratio into [0, 1].
func NewSplitter(opts Options) *Splitter {
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = DefaultMaxTokens
	}
	if opts.OverlapRatio < 0 {
		opts.OverlapRatio = 0
	}
	if opts.OverlapRatio > 1 {
		opts.OverlapRatio = 1
	}
	return &Splitter{opts: opts}
}

// piece is an intermediate chunk body with its consumed line span.
type piece struct {
	text  string
	start int // 1-based
	end   int // 1-based, inclusive
}

// section is a heading-delimited region of the document.
type section struct {
	title string
	start int // 1-based line of the first line in the section
	lines []string
}

// Split splits text into ordered chunks. A structural pass cuts the text at
// headings; a size pass splits oversized sections at paragraph boundaries,
// falling back to raw character slicing for single oversized paragraphs.
// Empty input yields exactly one chunk with empty content.
func (s *Splitter) Split(text, filePath, projectID string) []*Chunk {
	lines := strings.Split(text, "\n")
	var chunks []*Chunk
	for _, sec := range parseSections(lines) {
		for _, p := range s.splitSection(sec) {
			chunks = append(chunks, &Chunk{
				Title:      sec.title,
				Content:    p.text,
				FilePath:   filePath,
				StartLine:  p.start,
				EndLine:    p.end,
				ChunkIndex: len(chunks),
				ProjectID:  projectID,
			})
		}
	}
	if len(chunks) == 0 {
		chunks = append(chunks, &Chunk{
			Title:     DefaultTitle,
			FilePath:  filePath,
			StartLine: 1,
			EndLine:   1,
			ProjectID: projectID,
		})
	}
	return chunks
}

// parseSections cuts lines into heading-delimited sections. Text before the
// first heading (or headingless text) becomes a section titled DefaultTitle.
func parseSections(lines []string) []*section {
	var sections []*section
	var cur *section
	for i, line := range lines {
		if m := headingPattern.FindStringSubmatch(line); m != nil {
			if cur != nil {
				sections = append(sections, cur)
			}
			cur = &section{title: strings.TrimSpace(m[2]), start: i + 1}
		} else if cur == nil {
			cur = &section{title: DefaultTitle, start: i + 1}
		}
		cur.lines = append(cur.lines, line)
	}
	if cur != nil {
		sections = append(sections, cur)
	}
	return sections
}

// splitSection turns one section into pieces honoring the token budget.
func (s *Splitter) splitSection(sec *section) []piece {
	lines := sec.lines
	for len(lines) > 1 && strings.TrimSpace(lines[len(lines)-1]) == "" {
		lines = lines[:len(lines)-1]
	}
	full := strings.Join(lines, "\n")
	if strings.TrimSpace(full) == "" {
		return nil
	}

	if EstimateTokens(full) <= s.opts.MaxTokens {
		return []piece{{text: full, start: sec.start, end: sec.start + len(lines) - 1}}
	}

	var pieces []piece
	var cur *piece
	flush := func() {
		if cur != nil {
			pieces = append(pieces, *cur)
			cur = nil
		}
	}
	for _, para := range splitParagraphs(lines, sec.start) {
		if EstimateTokens(para.text) > s.opts.MaxTokens {
			flush()
			pieces = append(pieces, s.sliceRaw(para)...)
			continue
		}
		if cur == nil {
			p := para
			cur = &p
			continue
		}
		joined := cur.text + "\n\n" + para.text
		if EstimateTokens(joined) > s.opts.MaxTokens {
			flush()
			p := para
			cur = &p
		} else {
			cur.text = joined
			cur.end = para.end
		}
	}
	flush()

	return s.applyOverlap(pieces)
}

// splitParagraphs groups consecutive non-blank lines into paragraphs,
// tracking each paragraph's line span.
func splitParagraphs(lines []string, start int) []piece {
	var paras []piece
	i := 0
	for i < len(lines) {
		if strings.TrimSpace(lines[i]) == "" {
			i++
			continue
		}
		j := i
		for j < len(lines) && strings.TrimSpace(lines[j]) != "" {
			j++
		}
		paras = append(paras, piece{
			text:  strings.Join(lines[i:j], "\n"),
			start: start + i,
			end:   start + j - 1,
		})
		i = j
	}
	return paras
}

// sliceRaw splits a single oversized paragraph into sequential character
// slices, never cutting inside a UTF-8 rune.
func (s *Splitter) sliceRaw(para piece) []piece {
	maxChars := s.opts.MaxTokens * TokensPerChar
	text := para.text
	var pieces []piece
	off := 0
	for off < len(text) {
		end := off + maxChars
		if end >= len(text) {
			end = len(text)
		} else {
			for end > off && !utf8.RuneStart(text[end]) {
				end--
			}
		}
		startLine := para.start + strings.Count(text[:off], "\n")
		endLine := para.start + strings.Count(text[:end], "\n")
		if end > 0 && text[end-1] == '\n' {
			endLine--
		}
		pieces = append(pieces, piece{text: text[off:end], start: startLine, end: endLine})
		off = end
	}
	return pieces
}

// applyOverlap prefixes each piece after the first with the trailing
// characters of its predecessor. The prefix repeats already-consumed text,
// so line spans are left untouched. A ratio of 1.0 repeats a full budget's
// worth of characters; the prefix is applied once per piece, so even the
// degenerate ratio cannot loop.
func (s *Splitter) applyOverlap(pieces []piece) []piece {
	if s.opts.OverlapRatio <= 0 || len(pieces) < 2 {
		return pieces
	}
	n := int(float64(s.opts.MaxTokens*TokensPerChar) * s.opts.OverlapRatio)
	if n <= 0 {
		return pieces
	}
	out := make([]piece, len(pieces))
	out[0] = pieces[0]
	for i := 1; i < len(pieces); i++ {
		p := pieces[i]
		if tail := runeSafeTail(pieces[i-1].text, n); tail != "" {
			p.text = tail + "\n" + p.text
		}
		out[i] = p
	}
	return out
}

// runeSafeTail returns at most n trailing bytes of text, aligned to a rune
// boundary.
func runeSafeTail(text string, n int) string {
	if n >= len(text) {
		return text
	}
	start := len(text) - n
	for start < len(text) && !utf8.RuneStart(text[start]) {
		start++
	}
	return text[start:]
}

// DetectFileType classifies a project-relative path as settings when any
// path segment is a settings directory, content otherwise.
func DetectFileType(relPath string) FileType {
	for _, seg := range strings.Split(filepath.ToSlash(relPath), "/") {
		if strings.EqualFold(seg, "settings") || seg == "設定" {
			return FileTypeSettings
		}
	}
	return FileTypeContent
}
