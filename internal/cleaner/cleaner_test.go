package cleaner

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memStore 内存实现：endTime 映射
type memStore struct {
	mu       sync.Mutex
	orders   map[common.Hash]int64
	valid    map[common.Hash]bool
	queryErr error
	calls    int
}

func newMemStore() *memStore {
	return &memStore{orders: map[common.Hash]int64{}, valid: map[common.Hash]bool{}}
}

func (s *memStore) add(n int64, endTime int64) common.Hash {
	h := common.BigToHash(big.NewInt(n))
	s.orders[h] = endTime
	s.valid[h] = true
	return h
}

func (s *memStore) ExpiredDigests(_ context.Context, now int64, limit int) ([]common.Hash, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.queryErr != nil {
		return nil, s.queryErr
	}
	var out []common.Hash
	for h, end := range s.orders {
		if s.valid[h] && end <= now && len(out) < limit {
			out = append(out, h)
		}
	}
	return out, nil
}

func (s *memStore) InvalidateOrders(_ context.Context, digests []common.Hash) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, h := range digests {
		if s.valid[h] {
			s.valid[h] = false
			n++
		}
	}
	return n, nil
}

func (s *memStore) validCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, v := range s.valid {
		if v {
			n++
		}
	}
	return n
}

func TestSweep_InvalidatesInBatches(t *testing.T) {
	store := newMemStore()
	for i := int64(1); i <= 7; i++ {
		store.add(i, 100)
	}
	live := store.add(100, 1000)

	c := NewCleaner(store, time.Minute, 3)
	c.now = func() time.Time { return time.Unix(500, 0) }

	n, err := c.Sweep(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(7), n)
	assert.Equal(t, 1, store.validCount())
	assert.True(t, store.valid[live])
	// 3 + 3 + 1
	assert.Equal(t, 3, store.calls)
}

func TestSweep_NothingExpired(t *testing.T) {
	store := newMemStore()
	store.add(1, 1000)

	c := NewCleaner(store, time.Minute, 10)
	c.now = func() time.Time { return time.Unix(500, 0) }

	n, err := c.Sweep(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSweep_QueryError(t *testing.T) {
	store := newMemStore()
	store.queryErr = errors.New("db down")

	_, err := NewCleaner(store, time.Minute, 10).Sweep(context.Background())
	assert.Error(t, err)
}

func TestCleaner_StartStop(t *testing.T) {
	store := newMemStore()
	store.add(1, 0)

	c := NewCleaner(store, 10*time.Millisecond, 0)
	assert.Equal(t, 500, c.batch)

	c.Start()
	assert.Eventually(t, func() bool { return store.validCount() == 0 }, time.Second, 5*time.Millisecond)
	c.Stop()
}
