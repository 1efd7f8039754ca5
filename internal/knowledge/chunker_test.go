package knowledge

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func paragraph(n int) Element {
	return Element{Type: ElementParagraph, Text: strings.Repeat("a", n)}
}

func TestChunker_SmallElementsMergeIntoOneChunk(t *testing.T) {
	chunker := NewChunker(ChunkerOptions{ChunkCharacterLimit: 4096, ChunkOverlap: 40})

	doc := ParsedDocument{Elements: []Element{
		{Type: ElementHeading, Text: "概述"},
		{Type: ElementParagraph, Text: "第一段内容"},
		{Type: ElementListItem, Text: "要点一"},
	}}

	chunks := chunker.Chunk(doc)
	require.Len(t, chunks, 1)
	assert.Equal(t, 0, chunks[0].Order)
	assert.Equal(t, "概述\n\n第一段内容\n\n要点一", chunks[0].Text)
}

func TestChunker_OrderStrictlyIncreasingFromZero(t *testing.T) {
	chunker := NewChunker(ChunkerOptions{ChunkCharacterLimit: 100, ChunkOverlap: 10})

	var elements []Element
	for i := 0; i < 20; i++ {
		elements = append(elements, paragraph(80))
	}

	chunks := chunker.Chunk(ParsedDocument{Elements: elements})
	require.NotEmpty(t, chunks)
	for i, chunk := range chunks {
		assert.Equal(t, i, chunk.Order)
		assert.NotEmpty(t, chunk.Text)
	}
}

func TestChunker_ThreeLargeParagraphs(t *testing.T) {
	chunker := NewChunker(ChunkerOptions{ChunkCharacterLimit: 4096, ChunkOverlap: 40})

	doc := ParsedDocument{Elements: []Element{
		paragraph(3000), paragraph(3000), paragraph(3000),
	}}

	chunks := chunker.Chunk(doc)
	require.Len(t, chunks, 3)

	// 后续分块以前一分块的尾部重叠窗口开头
	for i := 1; i < len(chunks); i++ {
		prev := []rune(chunks[i-1].Text)
		tail := string(prev[len(prev)-40:])
		assert.True(t, strings.HasPrefix(chunks[i].Text, tail),
			"chunk %d should begin with the last 40 chars of chunk %d", i, i-1)
	}
}

func TestChunker_OverlapWindowBetweenChunks(t *testing.T) {
	chunker := NewChunker(ChunkerOptions{ChunkCharacterLimit: 50, ChunkOverlap: 8})

	doc := ParsedDocument{Elements: []Element{
		{Type: ElementParagraph, Text: strings.Repeat("x", 40)},
		{Type: ElementParagraph, Text: strings.Repeat("y", 40)},
	}}

	chunks := chunker.Chunk(doc)
	require.Len(t, chunks, 2)
	assert.Equal(t, strings.Repeat("x", 40), chunks[0].Text)
	assert.True(t, strings.HasPrefix(chunks[1].Text, strings.Repeat("x", 8)+"\n\n"))
}

func TestChunker_EmptyDocument(t *testing.T) {
	chunker := NewChunker(ChunkerOptions{})

	assert.Empty(t, chunker.Chunk(ParsedDocument{}))
	assert.Empty(t, chunker.Chunk(ParsedDocument{Elements: []Element{
		{Type: ElementParagraph, Text: "   "},
		{Type: ElementParagraph, Text: "\n\t"},
	}}))
}

func TestChunker_OversizedElementEmittedWhole(t *testing.T) {
	chunker := NewChunker(ChunkerOptions{ChunkCharacterLimit: 100, ChunkOverlap: 10})

	doc := ParsedDocument{Elements: []Element{paragraph(500)}}

	// 单个超限元素不硬切分，整体作为一个超大分块
	chunks := chunker.Chunk(doc)
	require.Len(t, chunks, 1)
	assert.Len(t, chunks[0].Text, 500)
}

func TestChunker_CodeFenceTruncation(t *testing.T) {
	chunker := NewChunker(ChunkerOptions{
		ChunkCharacterLimit: 100000,
		MaxCodeFenceSize:    100,
		TruncateCodeFences:  true,
	})

	doc := ParsedDocument{Elements: []Element{
		{Type: ElementCodeBlock, Text: strings.Repeat("b", 300)},
	}}

	chunks := chunker.Chunk(doc)
	require.Len(t, chunks, 1)
	assert.Equal(t, strings.Repeat("b", 100)+"\n[code truncated]", chunks[0].Text)
}

func TestChunker_CodeFenceTruncationRespectsUTF8Boundary(t *testing.T) {
	chunker := NewChunker(ChunkerOptions{
		ChunkCharacterLimit: 100000,
		MaxCodeFenceSize:    100,
		TruncateCodeFences:  true,
	})

	// 每个汉字3字节，100不是3的倍数，截断点必须回退到符文边界
	doc := ParsedDocument{Elements: []Element{
		{Type: ElementCodeBlock, Text: strings.Repeat("码", 200)},
	}}

	chunks := chunker.Chunk(doc)
	require.Len(t, chunks, 1)
	truncated := strings.TrimSuffix(chunks[0].Text, "\n[code truncated]")
	assert.True(t, len(truncated) <= 100)
	for _, r := range truncated {
		assert.Equal(t, '码', r)
	}
}

func TestChunker_CodeFencePassthroughWhenTruncationDisabled(t *testing.T) {
	chunker := NewChunker(ChunkerOptions{
		ChunkCharacterLimit: 100000,
		MaxCodeFenceSize:    100,
		TruncateCodeFences:  false,
	})

	text := strings.Repeat("b", 300)
	chunks := chunker.Chunk(ParsedDocument{Elements: []Element{
		{Type: ElementCodeBlock, Text: text},
	}})
	require.Len(t, chunks, 1)
	assert.Equal(t, text, chunks[0].Text)
}

func TestChunker_OverlapLargerThanLimitFallsBack(t *testing.T) {
	chunker := NewChunker(ChunkerOptions{ChunkCharacterLimit: 100, ChunkOverlap: 200})

	assert.Equal(t, 25, chunker.chunkOverlap)
}
