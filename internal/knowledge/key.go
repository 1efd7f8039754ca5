package knowledge

import (
	"fmt"
	"hash/fnv"
	"strconv"
	"strings"
)

// 分块键约定：<sourceId>-p<4位序号>，如 "report123-p0007"
const chunkKeySeparator = "-p"

// ChunkKey 分块键的解析结果
type ChunkKey struct {
	Source string
	Order  int
}

// FormatChunkKey 按约定拼接分块键
func FormatChunkKey(source string, order int) string {
	return fmt.Sprintf("%s%s%04d", source, chunkKeySeparator, order)
}

// ParseChunkKey 解析分块键，恢复来源与分块顺序。
// 找不到分隔符或序号非法时整个键视为来源，顺序为0。
func ParseChunkKey(key string) ChunkKey {
	idx := strings.LastIndex(key, chunkKeySeparator)
	if idx <= 0 {
		return ChunkKey{Source: key}
	}

	order, err := strconv.Atoi(key[idx+len(chunkKeySeparator):])
	if err != nil || order < 0 {
		return ChunkKey{Source: key}
	}

	return ChunkKey{Source: key[:idx], Order: order}
}

// ChunkKeyID 将字符串分块键映射为稳定的int64主键。
// FNV-64a散列，同一逻辑键总是映射到同一物理ID；
// 这是容忍碰撞的便捷映射，不是安全机制。
func ChunkKeyID(key string) int64 {
	h := fnv.New64a()
	h.Write([]byte(key))
	return int64(h.Sum64())
}
