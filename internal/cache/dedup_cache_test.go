package cache

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utrading/utrading-limit-relayer/internal/order"
)

func TestExecutionDedup_Window(t *testing.T) {
	dedup := NewExecutionDedup(100 * time.Millisecond)
	d := common.HexToHash("0x01")

	// 第一次登记，第二次在窗口内被拦截
	assert.False(t, dedup.AlreadyExecuting(d))
	assert.True(t, dedup.AlreadyExecuting(d))

	// 窗口过期后重新允许
	time.Sleep(150 * time.Millisecond)
	assert.False(t, dedup.AlreadyExecuting(d))
	assert.True(t, dedup.AlreadyExecuting(d))
}

func TestExecutionDedup_SecondCallDoesNotRefresh(t *testing.T) {
	dedup := NewExecutionDedup(150 * time.Millisecond)
	d := common.HexToHash("0x02")

	assert.False(t, dedup.AlreadyExecuting(d))
	time.Sleep(100 * time.Millisecond)
	assert.True(t, dedup.AlreadyExecuting(d))

	// 若第二次调用重新登记，此时仍会被拦截
	time.Sleep(80 * time.Millisecond)
	assert.False(t, dedup.AlreadyExecuting(d))
}

func TestExecutionDedup_DefaultWindow(t *testing.T) {
	dedup := NewExecutionDedup(0)
	assert.Equal(t, 180*time.Second, dedup.Window())
}

func TestExecutionDedup_Remove(t *testing.T) {
	dedup := NewExecutionDedup(time.Minute)
	d := common.HexToHash("0x03")

	assert.False(t, dedup.AlreadyExecuting(d))
	dedup.Remove(d)
	assert.False(t, dedup.AlreadyExecuting(d))

	// 不同 digest 互不影响
	assert.False(t, dedup.AlreadyExecuting(common.HexToHash("0x04")))
	assert.Equal(t, 2, dedup.Len())
}

func TestExecutionDedup_Concurrent(t *testing.T) {
	dedup := NewExecutionDedup(time.Minute)
	d := common.HexToHash("0x05")

	var (
		wg      sync.WaitGroup
		winners atomic.Int32
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if !dedup.AlreadyExecuting(d) {
				winners.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), winners.Load())
}

type fakeReceiptSource struct {
	receipts []order.ExecutedOrder
	err      error
	since    time.Time
}

func (f *fakeReceiptSource) SubmittedSince(_ context.Context, since time.Time) ([]order.ExecutedOrder, error) {
	f.since = since
	return f.receipts, f.err
}

func TestExecutionDedup_LoadFromDB(t *testing.T) {
	dedup := NewExecutionDedup(time.Minute)
	recent := common.HexToHash("0x06")
	stale := common.HexToHash("0x07")

	src := &fakeReceiptSource{receipts: []order.ExecutedOrder{
		{Digest: recent, SubmittedAt: time.Now().Add(-10 * time.Second)},
		{Digest: stale, SubmittedAt: time.Now().Add(-2 * time.Minute)},
	}}
	require.NoError(t, dedup.LoadFromDB(context.Background(), src))

	assert.WithinDuration(t, time.Now().Add(-time.Minute), src.since, time.Second)
	assert.True(t, dedup.AlreadyExecuting(recent))
	assert.False(t, dedup.AlreadyExecuting(stale))
}

func TestExecutionDedup_LoadFromDBError(t *testing.T) {
	dedup := NewExecutionDedup(time.Minute)

	assert.Error(t, dedup.LoadFromDB(context.Background(), nil))
	assert.Error(t, dedup.LoadFromDB(context.Background(), &fakeReceiptSource{err: errors.New("db down")}))
}

func TestExecutionDedup_Stats(t *testing.T) {
	dedup := NewExecutionDedup(time.Minute)
	dedup.AlreadyExecuting(common.HexToHash("0x08"))

	stats := dedup.Stats()
	assert.Equal(t, 1, stats["item_count"])
	assert.Equal(t, 60.0, stats["window_seconds"])
}

func BenchmarkExecutionDedup_AlreadyExecuting(b *testing.B) {
	dedup := NewExecutionDedup(time.Minute)
	b.RunParallel(func(pb *testing.PB) {
		var i uint64
		for pb.Next() {
			i++
			dedup.AlreadyExecuting(common.BigToHash(new(big.Int).SetUint64(i % 1024)))
		}
	})
}
