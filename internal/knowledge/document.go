package knowledge

// ElementType 文档结构元素类型
type ElementType string

const (
	ElementHeading   ElementType = "heading"
	ElementParagraph ElementType = "paragraph"
	ElementListItem  ElementType = "list_item"
	ElementTableRow  ElementType = "table_row"
	ElementQuote     ElementType = "quote"
	ElementCodeBlock ElementType = "code_block"
)

// Element 解析后的文档结构元素，保持原文顺序
type Element struct {
	Type ElementType
	Text string
}

// ParsedDocument 上游解析器产出的结构化文档
type ParsedDocument struct {
	Elements []Element
}

// ChunkDraft 分块草稿：仅含文本与顺序，嵌入向量由后续流程生成
type ChunkDraft struct {
	Order int
	Text  string
}
