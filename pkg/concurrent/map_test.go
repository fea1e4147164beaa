package concurrent

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMap_SwapTracksLength(t *testing.T) {
	var m Map[string, int]

	_, loaded := m.Swap("a", 1)
	assert.False(t, loaded)
	prev, loaded := m.Swap("a", 2)
	assert.True(t, loaded)
	assert.Equal(t, 1, prev)
	assert.Equal(t, int64(1), m.Len())

	v, ok := m.Load("a")
	assert.True(t, ok)
	assert.Equal(t, 2, v)

	_, ok = m.LoadAndDelete("a")
	assert.True(t, ok)
	_, ok = m.LoadAndDelete("a")
	assert.False(t, ok)
	assert.Zero(t, m.Len())
}

func TestMap_Drain(t *testing.T) {
	var m Map[int, int]
	for i := 0; i < 10; i++ {
		m.Swap(i, i*i)
	}

	got := m.Drain()
	assert.Len(t, got, 10)
	assert.Zero(t, m.Len())
	assert.Empty(t, m.Drain())
}

func TestMap_ConcurrentDrain(t *testing.T) {
	var (
		m     Map[int, int]
		wg    sync.WaitGroup
		mu    sync.Mutex
		total int
	)

	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(base int) {
			defer wg.Done()
			for i := 0; i < 250; i++ {
				m.Swap(base*1000+i, i)
			}
		}(w)
	}
	for d := 0; d < 2; d++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				n := len(m.Drain())
				mu.Lock()
				total += n
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	total += len(m.Drain())
	assert.Equal(t, 1000, total)
}
