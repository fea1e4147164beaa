package token

import (
	"os"
	"time"

	"github.com/utrading/utrading-limit-relayer/pkg/logger"
)

// Loader 定期从文件重载 token list（文件修改后才会重载）
type Loader struct {
	registry       *Registry
	path           string
	reloadInterval time.Duration
	lastModTime    time.Time
	done           chan struct{}
}

// NewLoader 创建 Loader，首次加载失败会返回错误
func NewLoader(registry *Registry, path string, interval time.Duration) (*Loader, error) {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	l := &Loader{
		registry:       registry,
		path:           path,
		reloadInterval: interval,
		done:           make(chan struct{}),
	}

	if err := l.load(); err != nil {
		return nil, err
	}

	logger.Info().
		Str("path", path).
		Interface("stats", registry.Stats()).
		Msg("token list loaded")

	return l, nil
}

// Start 启动后台重载
func (l *Loader) Start() {
	ticker := time.NewTicker(l.reloadInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := l.reloadIfNeeded(); err != nil {
					logger.Error().Err(err).Str("path", l.path).Msg("reload token list failed")
				}
			case <-l.done:
				return
			}
		}
	}()
}

// Close 停止重载
func (l *Loader) Close() {
	close(l.done)
}

func (l *Loader) load() error {
	info, err := os.Stat(l.path)
	if err != nil {
		return err
	}
	if err = l.registry.LoadFile(l.path); err != nil {
		return err
	}
	l.lastModTime = info.ModTime()
	return nil
}

func (l *Loader) reloadIfNeeded() error {
	info, err := os.Stat(l.path)
	if err != nil {
		return err
	}
	if !info.ModTime().After(l.lastModTime) {
		return nil
	}
	if err = l.load(); err != nil {
		return err
	}
	logger.Info().Str("path", l.path).Msg("token list reloaded")
	return nil
}
