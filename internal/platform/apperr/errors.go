package apperr

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Code 是机器可读的错误类别。
type Code string

const (
	CodeInternal    Code = "INTERNAL"
	CodeValidation  Code = "VALIDATION"
	CodeNotFound    Code = "NOT_FOUND"
	CodeForbidden   Code = "FORBIDDEN"
	CodeConflict    Code = "CONFLICT_EXCEEDED"
	CodeUnavailable Code = "UNAVAILABLE"
)

// Error 是带错误类别的领域错误。
type Error struct {
	Code    Code   // 错误类别
	Message string // 可以直接返回给前端的描述
	Cause   error  // 被包装的底层错误
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap 返回底层错误，支持 errors.Is/As 的链式查找。
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is 按错误类别匹配，使各模块的哨兵错误可以互相比较。
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// Validation 构造一个输入校验错误，支持格式化参数。
func Validation(format string, args ...any) *Error {
	return New(CodeValidation, fmt.Sprintf(format, args...))
}

// NotFound 构造一个资源不存在错误。
func NotFound(format string, args ...any) *Error {
	return New(CodeNotFound, fmt.Sprintf(format, args...))
}

// CodeOf 返回错误链中第一个领域错误的类别，没有则为 CodeInternal。
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// HTTPStatus 把错误类别映射为HTTP状态码。
func HTTPStatus(err error) int {
	switch CodeOf(err) {
	case CodeValidation:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeForbidden:
		return http.StatusForbidden
	case CodeConflict:
		return http.StatusConflict
	case CodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Respond 把错误写成统一的JSON响应。
// 内部错误不向前端暴露细节。
func Respond(c *gin.Context, err error) {
	status := HTTPStatus(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		message = "服务器内部错误"
	}
	c.JSON(status, gin.H{"error": message, "code": CodeOf(err)})
}
