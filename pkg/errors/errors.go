package errors

import (
	"errors"
	"fmt"
)

// ErrorCode 错误码类型
type ErrorCode string

const (
	CodeInvalidInput   ErrorCode = "INVALID_INPUT"
	CodeNotFound       ErrorCode = "NOT_FOUND"
	CodeAlreadyExists  ErrorCode = "ALREADY_EXISTS"
	CodeUnauthorized   ErrorCode = "UNAUTHORIZED"
	CodeForbidden      ErrorCode = "FORBIDDEN"
	CodeInternal       ErrorCode = "INTERNAL_ERROR"
	CodeServiceUnavail ErrorCode = "SERVICE_UNAVAILABLE"

	// CodeUndefinedEvent 事件种类没有对应的迁移表条目
	CodeUndefinedEvent ErrorCode = "UNDEFINED_EVENT"
	// CodeIllegalTransition 当前状态不在事件允许的来源状态集合里
	CodeIllegalTransition ErrorCode = "ILLEGAL_TRANSITION"
	// CodeVersionConflict 乐观并发版本号不匹配，调用方已耗尽重试次数
	CodeVersionConflict ErrorCode = "VERSION_CONFLICT"
	// CodeInvariantViolation 领域不变量被破坏（如一条记录之外又出现一片叶子）
	CodeInvariantViolation ErrorCode = "INVARIANT_VIOLATION"
	// CodeInvalidEventCombination event_kind 与 event_subkind 的组合不在允许集合内
	CodeInvalidEventCombination ErrorCode = "INVALID_EVENT_COMBINATION"
	// CodeConcurrentStateOverwrite 写入提交后回读发现状态已被另一写入者覆盖
	CodeConcurrentStateOverwrite ErrorCode = "CONCURRENT_STATE_OVERWRITE"
	// CodeDecryptionFailed 凭证密文无法被当前密钥解密（认证标签不匹配或密文损坏）
	CodeDecryptionFailed ErrorCode = "DECRYPTION_FAILED"
)

// IllegalTransitionError 携带当前状态与允许来源状态集合，便于调用方渲染友好的错误信息。
type IllegalTransitionError struct {
	EventAPICode    string
	FromAPICode     string
	PermittedCodes  []string
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("event %q cannot be created from state %q (requires one of %v)",
		e.EventAPICode, e.FromAPICode, e.PermittedCodes)
}

// NewIllegalTransitionError 创建非法迁移错误，包裹进 AppError 以携带错误码。
func NewIllegalTransitionError(eventAPICode, fromAPICode string, permitted []string) *AppError {
	return &AppError{
		Code:    CodeIllegalTransition,
		Message: fmt.Sprintf("illegal transition for event %q", eventAPICode),
		Err: &IllegalTransitionError{
			EventAPICode:   eventAPICode,
			FromAPICode:    fromAPICode,
			PermittedCodes: permitted,
		},
	}
}

// NewUndefinedEventError 创建未定义事件种类错误
func NewUndefinedEventError(eventAPICode string) *AppError {
	return &AppError{
		Code:    CodeUndefinedEvent,
		Message: fmt.Sprintf("event kind %q has no transition table entry", eventAPICode),
	}
}

// NewVersionConflictError 创建乐观并发冲突错误（重试耗尽后抛出）
func NewVersionConflictError(message string) *AppError {
	return &AppError{
		Code:    CodeVersionConflict,
		Message: message,
	}
}

// NewInvariantViolationError 创建领域不变量错误
func NewInvariantViolationError(message string) *AppError {
	return &AppError{
		Code:    CodeInvariantViolation,
		Message: message,
	}
}

// NewInvalidEventCombinationError 创建事件种类/子种类组合非法错误
func NewInvalidEventCombinationError(message string) *AppError {
	return &AppError{
		Code:    CodeInvalidEventCombination,
		Message: message,
	}
}

// NewConcurrentStateOverwriteError 创建并发覆盖错误：提交后回读发现状态已变
func NewConcurrentStateOverwriteError(message string) *AppError {
	return &AppError{
		Code:    CodeConcurrentStateOverwrite,
		Message: message,
	}
}

// NewDecryptionFailedError 创建解密失败错误，包裹底层 AEAD/编码错误
func NewDecryptionFailedError(message string, cause error) *AppError {
	return &AppError{
		Code:    CodeDecryptionFailed,
		Message: message,
		Err:     cause,
	}
}

// IsIllegalTransition 判断是否为非法迁移错误
func IsIllegalTransition(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == CodeIllegalTransition
	}
	return false
}

// IsVersionConflict 判断是否为乐观并发冲突错误
func IsVersionConflict(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == CodeVersionConflict
	}
	return false
}

// IsInvalidEventCombination 判断是否为事件组合非法错误
func IsInvalidEventCombination(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == CodeInvalidEventCombination
	}
	return false
}

// IsConcurrentStateOverwrite 判断是否为并发覆盖错误
func IsConcurrentStateOverwrite(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == CodeConcurrentStateOverwrite
	}
	return false
}

// IsDecryptionFailed 判断是否为解密失败错误
func IsDecryptionFailed(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == CodeDecryptionFailed
	}
	return false
}

// IsInvariantViolation 判断是否为领域不变量错误
func IsInvariantViolation(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == CodeInvariantViolation
	}
	return false
}

// AppError 应用错误
type AppError struct {
	Code    ErrorCode
	Message string
	Err     error
}

// Error 实现 error 接口
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap 实现 errors.Unwrap
func (e *AppError) Unwrap() error {
	return e.Err
}

// NewInvalidInputError 创建无效输入错误
func NewInvalidInputError(message string) *AppError {
	return &AppError{
		Code:    CodeInvalidInput,
		Message: message,
	}
}

// NewNotFoundError 创建未找到错误
func NewNotFoundError(message string) *AppError {
	return &AppError{
		Code:    CodeNotFound,
		Message: message,
	}
}

// NewAlreadyExistsError 创建已存在错误
func NewAlreadyExistsError(message string) *AppError {
	return &AppError{
		Code:    CodeAlreadyExists,
		Message: message,
	}
}

// NewInternalError 创建内部错误
func NewInternalError(message string) *AppError {
	return &AppError{
		Code:    CodeInternal,
		Message: message,
	}
}

// NewInternalErrorWithCause 创建带原因的内部错误
func NewInternalErrorWithCause(message string, cause error) *AppError {
	return &AppError{
		Code:    CodeInternal,
		Message: message,
		Err:     cause,
	}
}

// IsNotFound 判断是否为未找到错误
func IsNotFound(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == CodeNotFound
	}
	return false
}

// IsInvalidInput 判断是否为无效输入错误
func IsInvalidInput(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == CodeInvalidInput
	}
	return false
}

// IsAlreadyExists 判断是否为已存在错误
func IsAlreadyExists(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == CodeAlreadyExists
	}
	return false
}
