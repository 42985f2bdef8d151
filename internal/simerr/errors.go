package simerr

import (
	"errors"
	"fmt"
)

// Category 错误分类，决定错误在加载期/运行期的处理方式
type Category string

const (
	// CategoryConfiguration 配置错误（未知传感器类型、不支持的PGN、场景文件格式错误），加载期致命
	CategoryConfiguration Category = "configuration"
	// CategoryValidation 校验错误（schema/语义违规），以报告形式返回
	CategoryValidation Category = "validation"
	// CategoryGeneration 数据生成错误（参数非法、数值溢出），跳过本次tick
	CategoryGeneration Category = "generation"
	// CategoryEncoding 编码错误（传感器不支持的PGN/语句），跳过该目标
	CategoryEncoding Category = "encoding"
)

// Error 带分类的错误
type Error struct {
	Category Category
	Op       string // 发生错误的操作，如 "load", "tick", "encode"
	Subject  string // 相关对象，如 "depth:0" 或 "pgn 128267"
	Err      error
}

// Error implements error
func (e *Error) Error() string {
	if e.Subject != "" {
		return fmt.Sprintf("%s %s [%s]: %v", e.Category, e.Op, e.Subject, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Category, e.Op, e.Err)
}

// Unwrap 返回底层错误
func (e *Error) Unwrap() error { return e.Err }

func newError(c Category, op, subject string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Category: c, Op: op, Subject: subject, Err: err}
}

// Configuration 包装为配置错误
func Configuration(op, subject string, err error) error {
	return newError(CategoryConfiguration, op, subject, err)
}

// Validation 包装为校验错误
func Validation(op, subject string, err error) error {
	return newError(CategoryValidation, op, subject, err)
}

// Generation 包装为数据生成错误
func Generation(op, subject string, err error) error {
	return newError(CategoryGeneration, op, subject, err)
}

// Encoding 包装为编码错误
func Encoding(op, subject string, err error) error {
	return newError(CategoryEncoding, op, subject, err)
}

// CategoryOf 返回错误链中第一个分类错误的类别
func CategoryOf(err error) (Category, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Category, true
	}
	return "", false
}

// IsCategory 判断错误是否属于指定类别
func IsCategory(err error, c Category) bool {
	got, ok := CategoryOf(err)
	return ok && got == c
}
