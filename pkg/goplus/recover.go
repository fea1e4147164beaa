package goplus

import (
	"fmt"
	"runtime"

	"github.com/utrading/utrading-limit-relayer/pkg/logger"
)

const maxStackDepth = 32

// Recover 捕获 panic 并记录调用栈，必须直接 defer 调用
func Recover() {
	if r := recover(); r != nil {
		logPanic(r)
	}
}

// RecoverWith 捕获 panic 后执行 fn（例如回滚去重状态）
func RecoverWith(fn func(r any)) {
	if r := recover(); r != nil {
		logPanic(r)
		if fn != nil {
			fn(r)
		}
	}
}

func logPanic(r any) {
	callers := make([]string, 0, maxStackDepth)
	for i := 2; i <= maxStackDepth; i++ {
		_, file, line, ok := runtime.Caller(i)
		if !ok {
			break
		}
		callers = append(callers, fmt.Sprintf("%s:%d", file, line))
	}

	logger.Error().
		Str("panic", fmt.Sprint(r)).
		Strs("callers", callers).
		Msg("recovered from panic")
}
