package knowledge

import (
	"strings"
	"unicode/utf8"

	"github.com/aihub/knowledge-go/internal/logger"
	"go.uber.org/zap"
)

const (
	defaultChunkCharacterLimit = 4096
	defaultChunkOverlap        = 40
	defaultMaxCodeFenceSize    = 10 * 1024

	chunkSeparator   = "\n\n"
	truncationMarker = "\n[code truncated]"
)

// ChunkerOptions 分块器配置
type ChunkerOptions struct {
	ChunkCharacterLimit int
	ChunkOverlap        int
	MaxCodeFenceSize    int  // UTF-8字节数
	TruncateCodeFences  bool // 为false时超大代码块原样通过，仅记录警告
}

// Chunker 文档分块器：按结构元素顺序累积文本，超限处切块并保留滑动窗口重叠
type Chunker struct {
	chunkLimit         int
	chunkOverlap       int
	maxCodeFenceSize   int
	truncateCodeFences bool
}

// NewChunker 创建分块器
func NewChunker(opts ChunkerOptions) *Chunker {
	if opts.ChunkCharacterLimit <= 0 {
		opts.ChunkCharacterLimit = defaultChunkCharacterLimit
	}
	if opts.ChunkOverlap < 0 {
		opts.ChunkOverlap = defaultChunkOverlap
	}
	if opts.ChunkOverlap >= opts.ChunkCharacterLimit {
		opts.ChunkOverlap = opts.ChunkCharacterLimit / 4
	}
	if opts.MaxCodeFenceSize <= 0 {
		opts.MaxCodeFenceSize = defaultMaxCodeFenceSize
	}
	return &Chunker{
		chunkLimit:         opts.ChunkCharacterLimit,
		chunkOverlap:       opts.ChunkOverlap,
		maxCodeFenceSize:   opts.MaxCodeFenceSize,
		truncateCodeFences: opts.TruncateCodeFences,
	}
}

// Chunk 将结构化文档切分为有序分块草稿。
// 分块顺序从0严格递增且无空洞；相邻分块之间保留ChunkOverlap个字符的重叠。
// 单个超限元素不做硬切分，整体作为一个超大分块输出。
func (c *Chunker) Chunk(doc ParsedDocument) []ChunkDraft {
	var chunks []ChunkDraft
	var buf []rune
	hasContent := false // buf中包含重叠窗口之外的新内容

	emit := func() {
		chunks = append(chunks, ChunkDraft{
			Order: len(chunks),
			Text:  string(buf),
		})
	}

	for _, el := range doc.Elements {
		text := el.Text
		if el.Type == ElementCodeBlock {
			text = c.guardCodeFence(text)
		}
		if strings.TrimSpace(text) == "" {
			continue
		}

		t := []rune(text)
		if hasContent && len(buf)+len(chunkSeparator)+len(t) > c.chunkLimit {
			emit()
			buf = c.overlapOf(buf)
			hasContent = false
		}

		if len(buf) > 0 {
			buf = append(buf, []rune(chunkSeparator)...)
		}
		buf = append(buf, t...)
		hasContent = true
	}

	if hasContent {
		emit()
	}

	return chunks
}

// overlapOf 返回分块尾部的重叠窗口，作为下一分块的起始内容
func (c *Chunker) overlapOf(buf []rune) []rune {
	if c.chunkOverlap <= 0 || len(buf) <= c.chunkOverlap {
		return nil
	}
	overlap := make([]rune, c.chunkOverlap)
	copy(overlap, buf[len(buf)-c.chunkOverlap:])
	return overlap
}

// guardCodeFence 代码块字节数守卫：超限时在UTF-8安全边界截断并追加标记
func (c *Chunker) guardCodeFence(text string) string {
	if len(text) <= c.maxCodeFenceSize {
		return text
	}
	if !c.truncateCodeFences {
		logger.Warn("oversized code fence passed through, truncation disabled",
			zap.Int("bytes", len(text)),
			zap.Int("limit", c.maxCodeFenceSize))
		return text
	}

	cut := c.maxCodeFenceSize
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut] + truncationMarker
}
