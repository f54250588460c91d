package utils

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind 业务错误分类：全部为可恢复错误，同步返回给调用方
type ErrorKind string

const (
	ErrKindValidation   ErrorKind = "validation"         // 入参非法，未产生状态变更
	ErrKindConflict     ErrorKind = "conflict"           // 与现有状态冲突（重复报名/重复支付/档期冲突等）
	ErrKindPrecondition ErrorKind = "precondition"       // 前置条件不满足（未报名/出价过低等）
	ErrKindNotFound     ErrorKind = "not_found"          // 引用的实体不存在
	ErrKindExhausted    ErrorKind = "resource_exhausted" // 资源不足（无空闲鉴定师/拍品不足）
)

// AppError 业务错误，携带分类供handler映射HTTP状态码
type AppError struct {
	Kind ErrorKind
	Msg  string
}

func (e *AppError) Error() string {
	return e.Msg
}

// NewValidationError 入参校验错误
func NewValidationError(format string, args ...interface{}) error {
	return &AppError{Kind: ErrKindValidation, Msg: fmt.Sprintf(format, args...)}
}

// NewConflictError 状态冲突错误
func NewConflictError(format string, args ...interface{}) error {
	return &AppError{Kind: ErrKindConflict, Msg: fmt.Sprintf(format, args...)}
}

// NewPreconditionError 前置条件错误
func NewPreconditionError(format string, args ...interface{}) error {
	return &AppError{Kind: ErrKindPrecondition, Msg: fmt.Sprintf(format, args...)}
}

// NewNotFoundError 实体不存在错误
func NewNotFoundError(format string, args ...interface{}) error {
	return &AppError{Kind: ErrKindNotFound, Msg: fmt.Sprintf(format, args...)}
}

// NewExhaustedError 资源不足错误
func NewExhaustedError(format string, args ...interface{}) error {
	return &AppError{Kind: ErrKindExhausted, Msg: fmt.Sprintf(format, args...)}
}

// KindOf 提取错误分类，非业务错误返回空串
func KindOf(err error) ErrorKind {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return ""
}

// HTTPStatus 错误分类 -> HTTP状态码
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case ErrKindValidation, ErrKindPrecondition, ErrKindExhausted:
		return http.StatusBadRequest
	case ErrKindConflict:
		return http.StatusConflict
	case ErrKindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
