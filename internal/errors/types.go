package errors

import (
	"errors"
	"fmt"
)

// ErrorCode 错误码类型
type ErrorCode string

// 预定义错误码
const (
	// 通用错误
	ErrCodeInternal     ErrorCode = "INTERNAL_ERROR"
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"

	// 向量存储错误
	ErrCodeDimensionMismatch  ErrorCode = "DIMENSION_MISMATCH"
	ErrCodeBackendUnavailable ErrorCode = "BACKEND_UNAVAILABLE"
	ErrCodeCollectionNotFound ErrorCode = "COLLECTION_NOT_FOUND"
	ErrCodeIndexNotReady      ErrorCode = "INDEX_NOT_READY"

	// 元数据存储错误
	ErrCodeMetadataStore ErrorCode = "METADATA_STORE_ERROR"

	// 外部服务错误
	ErrCodeEmbeddingFailed ErrorCode = "EMBEDDING_FAILED"
)

// AppError 应用错误结构体
type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Cause   error     `json:"-"`
}

// Error 实现error接口
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap 返回底层错误
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithCause 添加错误原因
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// 错误构造函数

// NewDimensionMismatchError 创建向量维度不匹配错误
func NewDimensionMismatchError(expected, actual int) *AppError {
	return &AppError{
		Code:    ErrCodeDimensionMismatch,
		Message: fmt.Sprintf("embedding dimension mismatch: expected %d, got %d", expected, actual),
	}
}

// NewBackendUnavailableError 创建存储后端不可用错误
func NewBackendUnavailableError(backend string, cause error) *AppError {
	return &AppError{
		Code:    ErrCodeBackendUnavailable,
		Message: fmt.Sprintf("vector store backend %s unavailable", backend),
		Cause:   cause,
	}
}

// NewCollectionNotFoundError 创建集合不存在错误
func NewCollectionNotFoundError(collection string) *AppError {
	return &AppError{
		Code:    ErrCodeCollectionNotFound,
		Message: fmt.Sprintf("collection %s not found", collection),
	}
}

// NewIndexNotReadyError 创建索引未就绪错误（可重试）
func NewIndexNotReadyError(collection string, cause error) *AppError {
	return &AppError{
		Code:    ErrCodeIndexNotReady,
		Message: fmt.Sprintf("index for collection %s not ready", collection),
		Cause:   cause,
	}
}

// NewInvalidInputError 创建输入无效错误
func NewInvalidInputError(field, reason string) *AppError {
	return &AppError{
		Code:    ErrCodeInvalidInput,
		Message: fmt.Sprintf("invalid input for field '%s': %s", field, reason),
	}
}

// 错误分类辅助函数

func hasCode(err error, code ErrorCode) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// IsDimensionMismatch 检查是否为维度不匹配错误
func IsDimensionMismatch(err error) bool {
	return hasCode(err, ErrCodeDimensionMismatch)
}

// IsBackendUnavailable 检查是否为后端不可用错误
func IsBackendUnavailable(err error) bool {
	return hasCode(err, ErrCodeBackendUnavailable)
}

// IsCollectionNotFound 检查是否为集合不存在错误
func IsCollectionNotFound(err error) bool {
	return hasCode(err, ErrCodeCollectionNotFound)
}

// IsIndexNotReady 检查是否为索引未就绪错误
func IsIndexNotReady(err error) bool {
	return hasCode(err, ErrCodeIndexNotReady)
}

// GetAppError 获取AppError，如果不是则包装为内部错误
func GetAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return &AppError{Code: ErrCodeInternal, Message: "internal error", Cause: err}
}
