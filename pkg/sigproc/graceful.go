package sigproc

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/utrading/utrading-limit-relayer/pkg/goplus"
	"github.com/utrading/utrading-limit-relayer/pkg/logger"
)

// DefaultTimeout 关闭流程的最长等待时间
const DefaultTimeout = 30 * time.Second

type HandlerFunc func(os.Signal)

// GracefulShutdown 收到 SIGINT/SIGTERM/SIGQUIT 后执行 shutdown
// shutdown 完成或超时后进程退出
func GracefulShutdown(shutdown HandlerFunc) {
	GracefulShutdownTimeout(shutdown, DefaultTimeout)
}

func GracefulShutdownTimeout(shutdown HandlerFunc, timeout time.Duration) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	goplus.Go(func() {
		sig := <-sigChan
		logger.Info().Str("signal", sig.String()).Msg("received signal, shutting down")

		done := make(chan struct{})
		goplus.Go(func() {
			defer close(done)
			shutdown(sig)
		})

		code := 0
		select {
		case <-done:
			logger.Info().Msg("shutdown complete")
		case <-time.After(timeout):
			logger.Warn().Dur("timeout", timeout).Msg("shutdown timeout, forcing exit")
			code = 1
		}

		os.Exit(code)
	})
}
