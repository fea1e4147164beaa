package goplus

import (
	"sync"
	"sync/atomic"
)

var (
	defaultGroup     *WaitGroup
	defaultGroupOnce sync.Once
)

// DefaultGroup 进程级协程组，退出前可 Wait
func DefaultGroup() *WaitGroup {
	defaultGroupOnce.Do(func() {
		defaultGroup = NewWaitGroup()
	})
	return defaultGroup
}

func Go(fn func()) {
	DefaultGroup().Go(fn)
}

func Wait() {
	DefaultGroup().Wait()
}

// WaitGroup 带计数与 panic 保护的 sync.WaitGroup
type WaitGroup struct {
	wg      sync.WaitGroup
	running atomic.Int64
}

func NewWaitGroup() *WaitGroup {
	return &WaitGroup{}
}

func (s *WaitGroup) Go(fn func()) {
	s.running.Add(1)
	s.wg.Add(1)

	go func() {
		defer s.done()
		defer Recover()

		fn()
	}()
}

func (s *WaitGroup) done() {
	s.running.Add(-1)
	s.wg.Done()
}

// Running 当前运行中的协程数
func (s *WaitGroup) Running() int64 {
	return s.running.Load()
}

func (s *WaitGroup) Wait() {
	s.wg.Wait()
}
