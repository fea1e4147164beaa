package concurrent

import (
	"sync"
	"sync/atomic"
)

// Map 泛型并发 map，带 O(1) 长度
type Map[K comparable, V any] struct {
	length atomic.Int64
	data   sync.Map
}

func (m *Map[K, V]) Len() int64 {
	return m.length.Load()
}

func (m *Map[K, V]) Load(key K) (V, bool) {
	value, ok := m.data.Load(key)
	if !ok {
		var zero V
		return zero, false
	}
	return value.(V), true
}

// Swap 写入并返回旧值，loaded 表示 key 已存在
func (m *Map[K, V]) Swap(key K, value V) (V, bool) {
	previous, loaded := m.data.Swap(key, value)
	if !loaded {
		m.length.Add(1)
		var zero V
		return zero, false
	}
	return previous.(V), true
}

func (m *Map[K, V]) LoadAndDelete(key K) (V, bool) {
	value, loaded := m.data.LoadAndDelete(key)
	if !loaded {
		var zero V
		return zero, false
	}
	m.length.Add(-1)
	return value.(V), true
}

func (m *Map[K, V]) Range(f func(K, V) bool) {
	m.data.Range(func(key, value any) bool {
		return f(key.(K), value.(V))
	})
}

// Drain 取出并删除当前全部条目
// 与 Swap 并发时，新写入的条目要么被本次取出，要么留给下一次
func (m *Map[K, V]) Drain() []V {
	out := make([]V, 0, m.Len())
	m.data.Range(func(key, _ any) bool {
		if v, ok := m.LoadAndDelete(key.(K)); ok {
			out = append(out, v)
		}
		return true
	})
	return out
}
