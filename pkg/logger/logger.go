package logger

import (
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/rs/zerolog/pkgerrors"
	"gopkg.in/natefinch/lumberjack.v2"
)

const TimeFormat = "2006-01-02 15:04:05"

// sink 当前生效的文件输出
type sink struct {
	files []*lumberjack.Logger
	stop  chan struct{}
	once  sync.Once
}

var (
	mu      sync.Mutex
	current *sink
)

func initLogger(cfg Config) error {
	zerolog.TimeFieldFormat = time.RFC3339
	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack
	zerolog.SetGlobalLevel(parseLevel(cfg.Level))

	files := cfg.files()
	for _, f := range files {
		if err := os.MkdirAll(filepath.Dir(f.Path), 0o755); err != nil {
			return err
		}
	}

	s := &sink{stop: make(chan struct{})}
	writers := make([]io.Writer, 0, len(files)+1)

	// 已配置等级的位掩码，用于未配置等级的回落
	var routed uint16
	for _, f := range files {
		routed |= 1 << uint(parseLevel(f.Level))
	}

	for _, f := range files {
		lj := &lumberjack.Logger{
			Filename:   f.Path,
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge,
			Compress:   cfg.Compress,
		}
		s.files = append(s.files, lj)

		var out io.Writer = lj
		if !cfg.JSON {
			out = zerolog.ConsoleWriter{Out: lj, TimeFormat: TimeFormat, NoColor: true}
		}
		writers = append(writers, &levelRouter{level: parseLevel(f.Level), routed: routed, out: out})
	}

	if cfg.Console {
		writers = append(writers, zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: TimeFormat})
	}

	log.Logger = zerolog.New(zerolog.MultiLevelWriter(writers...)).
		With().Timestamp().Caller().Logger()

	mu.Lock()
	old := current
	current = s
	mu.Unlock()
	old.close()

	go s.rotateDaily()
	return nil
}

// levelRouter 只写入本等级；info 文件兜底所有未单独配置的等级，error 文件兜底 fatal
type levelRouter struct {
	level  zerolog.Level
	routed uint16
	out    io.Writer
}

func (w *levelRouter) Write(p []byte) (int, error) {
	return w.out.Write(p)
}

func (w *levelRouter) WriteLevel(level zerolog.Level, p []byte) (int, error) {
	if level == w.level {
		return w.out.Write(p)
	}
	unrouted := w.routed&(1<<uint(level)) == 0
	switch w.level {
	case zerolog.InfoLevel:
		if unrouted {
			return w.out.Write(p)
		}
	case zerolog.ErrorLevel:
		if level == zerolog.FatalLevel && unrouted {
			return w.out.Write(p)
		}
	}
	return len(p), nil
}

// rotateDaily 每天零点轮转全部文件
func (s *sink) rotateDaily() {
	for {
		now := time.Now()
		midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()).AddDate(0, 0, 1)
		timer := time.NewTimer(midnight.Sub(now))

		select {
		case <-s.stop:
			timer.Stop()
			return
		case <-timer.C:
			for _, lj := range s.files {
				if err := lj.Rotate(); err != nil {
					log.Logger.Err(err).Str("file", lj.Filename).Msg("rotate log file failed")
				}
			}
		}
	}
}

func (s *sink) close() {
	if s == nil {
		return
	}
	s.once.Do(func() {
		close(s.stop)
		for _, lj := range s.files {
			_ = lj.Close()
		}
	})
}

// Component 返回带 component 字段的子 logger
func Component(name string) zerolog.Logger {
	return log.Logger.With().Str("component", name).Logger()
}

func Info() *zerolog.Event {
	return log.Logger.Info()
}

func Debug() *zerolog.Event {
	return log.Logger.Debug()
}

func Error() *zerolog.Event {
	return log.Logger.Error()
}

func Warn() *zerolog.Event {
	return log.Logger.Warn()
}

func Fatal() *zerolog.Event {
	return log.Logger.Fatal()
}

func Err(err error) *zerolog.Event {
	return log.Logger.Err(err)
}

// Close 停止轮转并关闭文件
func Close() {
	mu.Lock()
	s := current
	current = nil
	mu.Unlock()
	s.close()
}
