package logger

import (
	"path/filepath"

	"github.com/rs/zerolog"
)

const (
	DEBUG = "debug"
	INFO  = "info"
	WARN  = "warn"
	ERROR = "error"
	FATAL = "fatal"
)

// parseLevel 未知等级按 info 处理
func parseLevel(name string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(name)
	if err != nil || lvl == zerolog.NoLevel || lvl < zerolog.DebugLevel || lvl > zerolog.FatalLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

// LevelFile 某个等级写入的文件
type LevelFile struct {
	Level string
	Path  string
}

type Config struct {
	Dir        string      // 日志目录，Files 为空时在此生成 info.log 与 error.log
	Files      []LevelFile // 分等级文件
	Level      string      // 全局最低等级
	MaxSize    int         // 单文件最大 MB
	MaxBackups int
	MaxAge     int // 天
	Compress   bool
	Console    bool // 同时输出到 stdout
	JSON       bool // 文件输出 JSON 而非 console 格式
}

// files 返回实际生效的等级文件
func (c Config) files() []LevelFile {
	if len(c.Files) > 0 {
		return c.Files
	}
	dir := c.Dir
	if dir == "" {
		dir = "logs"
	}
	return []LevelFile{
		{Level: ERROR, Path: filepath.Join(dir, "error.log")},
		{Level: INFO, Path: filepath.Join(dir, "info.log")},
	}
}

func DefaultConfig() Config {
	return Config{
		Dir:        "logs",
		Level:      INFO,
		MaxSize:    10,
		MaxBackups: 60,
		MaxAge:     7,
	}
}

type Builder struct {
	config Config
}

func NewBuilder() *Builder {
	return &Builder{config: DefaultConfig()}
}

func (b *Builder) SetDir(dir string) *Builder {
	if dir != "" {
		b.config.Dir = dir
	}
	return b
}

func (b *Builder) SetMaxSize(size int) *Builder {
	b.config.MaxSize = size
	return b
}

func (b *Builder) SetMaxBackups(backups int) *Builder {
	b.config.MaxBackups = backups
	return b
}

func (b *Builder) SetMaxAge(days int) *Builder {
	b.config.MaxAge = days
	return b
}

func (b *Builder) SetLevel(level string) *Builder {
	b.config.Level = level
	return b
}

func (b *Builder) EnableCompression(enable bool) *Builder {
	b.config.Compress = enable
	return b
}

func (b *Builder) EnableConsoleOutput(enable bool) *Builder {
	b.config.Console = enable
	return b
}

func (b *Builder) EnableJSON(enable bool) *Builder {
	b.config.JSON = enable
	return b
}

// AddLevelFile 指定等级单独写入 path，设置后不再使用 Dir 下的默认文件
func (b *Builder) AddLevelFile(level, path string) *Builder {
	b.config.Files = append(b.config.Files, LevelFile{Level: level, Path: path})
	return b
}

func (b *Builder) Build() error {
	return initLogger(b.config)
}
