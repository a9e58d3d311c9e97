package index

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yomogi/novelindex/internal/chunk"
)

func mkChunk(file string, start, end, idx int, content string) *chunk.Chunk {
	return &chunk.Chunk{
		Title:      "T",
		Content:    content,
		FilePath:   file,
		StartLine:  start,
		EndLine:    end,
		ChunkIndex: idx,
		ProjectID:  "p1",
	}
}

func TestDiffClassification(t *testing.T) {
	existing := mkChunk("a.md", 1, 5, 0, "original text")
	indexed := map[string]Indexed{
		existing.BaseID(): {ID: existing.ID(), Hash: existing.Hash()},
	}

	t.Run("unchanged", func(t *testing.T) {
		same := mkChunk("a.md", 1, 5, 0, "original text")
		res := Diff(indexed, []*chunk.Chunk{same})
		assert.Empty(t, res.Added)
		assert.Empty(t, res.Updated)
		assert.Empty(t, res.RemovedIDs)
		assert.Equal(t, 1, res.Unchanged)
	})

	t.Run("updated replaces old id", func(t *testing.T) {
		edited := mkChunk("a.md", 1, 5, 0, "edited text")
		res := Diff(indexed, []*chunk.Chunk{edited})
		require.Len(t, res.Updated, 1)
		assert.Empty(t, res.Added)
		assert.Equal(t, 0, res.Unchanged)
		require.Len(t, res.RemovedIDs, 1)
		assert.Equal(t, existing.ID(), res.RemovedIDs[0])
	})

	t.Run("added for novel baseId", func(t *testing.T) {
		fresh := mkChunk("a.md", 10, 12, 1, "new paragraph")
		same := mkChunk("a.md", 1, 5, 0, "original text")
		res := Diff(indexed, []*chunk.Chunk{same, fresh})
		require.Len(t, res.Added, 1)
		assert.Equal(t, fresh.ID(), res.Added[0].ID())
		assert.Equal(t, 1, res.Unchanged)
		assert.Empty(t, res.RemovedIDs)
	})

	t.Run("implicit removal not counted", func(t *testing.T) {
		res := Diff(indexed, nil)
		counts := res.Counts()
		assert.Zero(t, counts.Added)
		assert.Zero(t, counts.Updated)
		assert.Zero(t, counts.Unchanged)
		require.Len(t, res.RemovedIDs, 1)
		assert.Equal(t, existing.ID(), res.RemovedIDs[0])
	})
}

func TestGroupByFile(t *testing.T) {
	a0 := mkChunk("a.md", 1, 2, 0, "x")
	a1 := mkChunk("a.md", 3, 4, 1, "y")
	b0 := mkChunk("b.md", 1, 2, 0, "z")
	groups := GroupByFile([]*chunk.Chunk{a0, b0, a1})
	require.Len(t, groups, 2)
	assert.Len(t, groups[FileKey{Project: "p1", File: "a.md"}], 2)
	assert.Len(t, groups[FileKey{Project: "p1", File: "b.md"}], 1)
}

func TestClampScore(t *testing.T) {
	assert.Equal(t, 0.0, ClampScore(-0.3))
	assert.Equal(t, 1.0, ClampScore(3.7))
	assert.Equal(t, 0.5, ClampScore(0.5))
}

func TestSnippet(t *testing.T) {
	content := "The old wizard lived at the top of the tallest tower and studied forbidden spells every night."

	t.Run("centers on first term", func(t *testing.T) {
		s := Snippet(content, "tower", 40)
		assert.Contains(t, s, "tower")
		assert.True(t, strings.HasPrefix(s, Ellipsis))
		assert.LessOrEqual(t, len(s), 40+2*len(Ellipsis))
	})

	t.Run("case-insensitive", func(t *testing.T) {
		s := Snippet(content, "WIZARD", 60)
		assert.Contains(t, s, "wizard")
	})

	t.Run("no match starts at beginning", func(t *testing.T) {
		s := Snippet(content, "dragon", 30)
		assert.True(t, strings.HasPrefix(s, "The old wizard"))
		assert.True(t, strings.HasSuffix(s, Ellipsis))
	})

	t.Run("short content returned whole", func(t *testing.T) {
		assert.Equal(t, "tiny", Snippet("tiny", "tiny", 100))
	})

	t.Run("multibyte safe", func(t *testing.T) {
		jp := strings.Repeat("魔法使いは塔に住んでいた。", 20)
		s := Snippet(jp, "塔", 50)
		assert.True(t, isValidUTF8(s))
		assert.LessOrEqual(t, len(s), 50+2*len(Ellipsis))
	})

	t.Run("empty content", func(t *testing.T) {
		assert.Equal(t, "", Snippet("", "x", 50))
	})
}

func isValidUTF8(s string) bool {
	return strings.ToValidUTF8(s, "�") == s
}
