// Package xerrors 提供 bfametrics 统一的错误处理工具。
//
// 约定：
//   - 构造函数与配置校验使用 Wrap/Wrapf 补充上下文，保留错误链
//   - 跨组件可判定的错误使用哨兵错误（ErrInvalidInput 等），调用方用 Is 判断
//   - 需要机器可读分类时使用 WithCode，日志中配合 clog.ErrorWithCode 输出
package xerrors

import (
	"errors"
	"fmt"
)

// 哨兵错误，供各组件包装后返回
var (
	// ErrInvalidInput 输入或配置无效
	ErrInvalidInput = errors.New("invalid input")
	// ErrNotFound 资源不存在
	ErrNotFound = errors.New("not found")
	// ErrUnavailable 依赖的外部服务不可用
	ErrUnavailable = errors.New("unavailable")
)

// 常用错误码
const (
	CodeInvalidInput = "INVALID_INPUT"
	CodeDecode       = "DECODE_FAILED"
	CodeRegistry     = "REGISTRY_FAILED"
)

// Wrap 用上下文信息包装错误，保留错误链。
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// Wrapf 用格式化的上下文信息包装错误。
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Invalid 构造一个包装 ErrInvalidInput 的错误。
func Invalid(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrInvalidInput)
}

// WithCode 用错误码包装错误。
func WithCode(err error, code string) error {
	if err == nil {
		return nil
	}
	return &CodedError{Code: code, Cause: err}
}

// CodedError 带有机器可读错误码的错误。
type CodedError struct {
	Code  string
	Cause error
}

func (e *CodedError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %v", e.Code, e.Cause)
	}
	return fmt.Sprintf("[%s]", e.Code)
}

func (e *CodedError) Unwrap() error {
	return e.Cause
}

// GetCode 从错误链中提取错误码，没有则返回空字符串。
func GetCode(err error) string {
	var coded *CodedError
	if errors.As(err, &coded) {
		return coded.Code
	}
	return ""
}

// Must 如果 err 不为 nil，则 panic。仅用于初始化阶段。
func Must[T any](v T, err error) T {
	if err != nil {
		panic(fmt.Sprintf("must: %v", err))
	}
	return v
}

// MultiError 合并多个错误。
type MultiError struct {
	Errors []error
}

func (m *MultiError) Error() string {
	switch len(m.Errors) {
	case 0:
		return "no errors"
	case 1:
		return m.Errors[0].Error()
	default:
		return fmt.Sprintf("%v (and %d more errors)", m.Errors[0], len(m.Errors)-1)
	}
}

func (m *MultiError) Unwrap() []error {
	return m.Errors
}

// Combine 将多个错误合并为一个，全部为 nil 时返回 nil。
// 关闭流程中用于汇总各组件的 Close/Shutdown 错误。
func Combine(errs ...error) error {
	var nonNil []error
	for _, err := range errs {
		if err != nil {
			nonNil = append(nonNil, err)
		}
	}
	switch len(nonNil) {
	case 0:
		return nil
	case 1:
		return nonNil[0]
	default:
		return &MultiError{Errors: nonNil}
	}
}

// 标准库函数再导出
var (
	New    = errors.New
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	Join   = errors.Join
)
