// Package chunk splits document text into token-budgeted, heading-aware
// chunks with stable identity. Identity has three parts: BaseID encodes the
// chunk's location in its file, Hash digests its title and content, and ID
// combines both so content edits produce a new ID at the same location.
//
// The hash is truncated to 8 hex characters. At very large corpus sizes this
// carries a non-negligible collision probability; it is kept as-is because
// the ID format is part of the external contract.
package chunk

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Token estimation constants. Counting is a character-based approximation,
// not a model tokenizer; it only needs to be deterministic and monotonic.
const (
	// TokensPerChar is the rough character-to-token ratio.
	TokensPerChar = 4

	// DefaultMaxTokens is the default chunk budget.
	DefaultMaxTokens = 512

	// DefaultOverlapRatio is the default trailing-overlap ratio.
	DefaultOverlapRatio = 0.1

	// DefaultTitle is used for sections without a heading.
	DefaultTitle = "Document"

	// HashLength is the number of hex characters kept from the content digest.
	HashLength = 8
)

// FileType classifies a source file within a project.
type FileType string

const (
	FileTypeContent  FileType = "content"
	FileTypeSettings FileType = "settings"
)

// Chunk is the unit of indexing.
type Chunk struct {
	Title      string   // Heading text, or DefaultTitle
	Content    string   // Chunk body, may include overlap prefix
	FilePath   string   // Relative to the project root
	StartLine  int      // 1-based, inclusive
	EndLine    int      // 1-based, inclusive
	ChunkIndex int      // 0-based sequence number within the file
	ProjectID  string   // Namespace key
	FileType   FileType // content or settings, optional
	Tags       []string // Optional ordered tags
}

// BaseID identifies the chunk's location within its file. It is stable
// across content edits that do not shift the line range or sequence number.
func (c *Chunk) BaseID() string {
	return fmt.Sprintf("%s::%d-%d::chunk-%d", c.FilePath, c.StartLine, c.EndLine, c.ChunkIndex)
}

// Hash digests the chunk's title and content into HashLength hex characters.
// Identical (title, content) pairs always produce identical hashes.
func (c *Chunk) Hash() string {
	sum := sha256.Sum256([]byte(c.Title + "\n" + c.Content))
	return hex.EncodeToString(sum[:])[:HashLength]
}

// ID uniquely addresses a (location, content) pair within a project.
func (c *Chunk) ID() string {
	return c.BaseID() + "@" + c.Hash()
}

// EstimateTokens approximates the token count of text by character length.
// More characters never yields fewer tokens.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	return (len(text) + TokensPerChar - 1) / TokensPerChar
}
