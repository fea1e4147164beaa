package order

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration 缺少链 ID、receiver 地址等必需配置
	ErrConfiguration = errors.New("configuration error")
	// ErrOverflow 数值字段无法无损编码为十进制字符串
	ErrOverflow = errors.New("numeric overflow")
	// ErrEstimation 交易预估失败，订单不会成交
	ErrEstimation = errors.New("gas estimation failed")
	// ErrTransport 签名或广播失败
	ErrTransport = errors.New("transport error")
	// ErrDuplicate 唯一键冲突（digest 或 txHash）
	ErrDuplicate = errors.New("duplicate key")
)

const maxDiagnosticLen = 100

// PersistenceError 存储层错误，诊断信息截断到 100 字符
type PersistenceError struct {
	Op     string
	Detail string
	Err    error
}

func NewPersistenceError(op string, err error) *PersistenceError {
	detail := err.Error()
	if len(detail) > maxDiagnosticLen {
		detail = detail[:maxDiagnosticLen] + "..."
	}
	return &PersistenceError{Op: op, Detail: detail, Err: err}
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Detail)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// Configurationf 构造配置错误
func Configurationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfiguration, fmt.Sprintf(format, args...))
}
