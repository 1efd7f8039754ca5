package knowledge

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatChunkKey(t *testing.T) {
	assert.Equal(t, "report123-p0007", FormatChunkKey("report123", 7))
	assert.Equal(t, "manual-p0000", FormatChunkKey("manual", 0))
	assert.Equal(t, "big-p1234", FormatChunkKey("big", 1234))
}

func TestParseChunkKey_Roundtrip(t *testing.T) {
	for _, source := range []string{"report123", "manual.pdf", "带中文名的文档"} {
		for _, order := range []int{0, 1, 42, 9999} {
			parsed := ParseChunkKey(FormatChunkKey(source, order))
			assert.Equal(t, source, parsed.Source)
			assert.Equal(t, order, parsed.Order)
		}
	}
}

func TestParseChunkKey_SourceContainsSeparator(t *testing.T) {
	// 来源名里出现"-p"时取最后一个分隔符
	parsed := ParseChunkKey("my-project-p0003")
	assert.Equal(t, "my-project", parsed.Source)
	assert.Equal(t, 3, parsed.Order)
}

func TestParseChunkKey_MalformedKeys(t *testing.T) {
	// 无分隔符、序号非法、来源为空时整个键视为来源
	for _, key := range []string{"plainkey", "doc-pabc", "doc-p-1", "-p0001", ""} {
		parsed := ParseChunkKey(key)
		assert.Equal(t, key, parsed.Source, "key %q", key)
		assert.Equal(t, 0, parsed.Order, "key %q", key)
	}
}

func TestChunkKeyID_Stable(t *testing.T) {
	key := FormatChunkKey("report123", 7)
	assert.Equal(t, ChunkKeyID(key), ChunkKeyID(key))
	assert.NotEqual(t, ChunkKeyID(key), ChunkKeyID(FormatChunkKey("report123", 8)))
	assert.NotEqual(t, ChunkKeyID(key), ChunkKeyID(FormatChunkKey("report124", 7)))
}
