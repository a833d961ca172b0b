// Package errors 定义统一错误码
package errors

import (
	"fmt"
	"net/http"
)

// Code 错误码
type Code string

// 错误码定义
const (
	// 通用错误
	CodeInvalidParam Code = "INVALID_PARAM"
	CodeInternal     Code = "INTERNAL"

	// 会话
	CodeSessionNotFound Code = "SESSION_NOT_FOUND"
	CodeInvalidPair     Code = "INVALID_PAIR"

	// 下单参数
	CodeInvalidAction  Code = "INVALID_ACTION"
	CodeInvalidValue   Code = "INVALID_VALUE"
	CodeActionInternal Code = "ACTION_INTERNAL"

	// 行情与账户快照
	CodeSnapshotUnavailable Code = "SNAPSHOT_UNAVAILABLE"
)

// Error 业务错误
type Error struct {
	Code      Code   `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
	RequestID string `json:"requestId,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// New 创建错误
func New(code Code, message string) *Error {
	return &Error{
		Code:      code,
		Message:   message,
		Retryable: isRetryable(code),
	}
}

// Newf 创建格式化错误
func Newf(code Code, format string, args ...interface{}) *Error {
	return New(code, fmt.Sprintf(format, args...))
}

// WithRequestID 返回带请求 ID 的副本，预定义错误可直接使用
func (e *Error) WithRequestID(requestID string) *Error {
	out := *e
	out.RequestID = requestID
	return &out
}

// HTTPStatus 返回对应的 HTTP 状态码
func (e *Error) HTTPStatus() int {
	return httpStatus(e.Code)
}

// isRetryable 快照拉取失败属于下游抖动，客户端可以重试
func isRetryable(code Code) bool {
	switch code {
	case CodeSnapshotUnavailable:
		return true
	default:
		return false
	}
}

func httpStatus(code Code) int {
	switch code {
	case CodeInvalidParam, CodeInvalidAction, CodeInvalidValue, CodeInvalidPair:
		return http.StatusBadRequest
	case CodeActionInternal:
		return http.StatusForbidden
	case CodeSessionNotFound:
		return http.StatusNotFound
	case CodeSnapshotUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// 预定义错误
var (
	ErrSessionNotFound     = New(CodeSessionNotFound, "session not found")
	ErrSnapshotUnavailable = New(CodeSnapshotUnavailable, "market snapshot unavailable, please retry")
	ErrInternal            = New(CodeInternal, "internal error")
)
