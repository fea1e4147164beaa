package cleaner

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/utrading/utrading-limit-relayer/internal/monitor"
	"github.com/utrading/utrading-limit-relayer/pkg/logger"
)

// ExpiryStore 过期订单查询与失效
type ExpiryStore interface {
	ExpiredDigests(ctx context.Context, now int64, limit int) ([]common.Hash, error)
	InvalidateOrders(ctx context.Context, digests []common.Hash) (int64, error)
}

// Cleaner 定时把 endTime 已过的有效订单置为无效
type Cleaner struct {
	store    ExpiryStore
	interval time.Duration
	batch    int
	now      func() time.Time
	done     chan struct{}
	stopped  chan struct{}
}

// NewCleaner 创建清理器
func NewCleaner(store ExpiryStore, interval time.Duration, batch int) *Cleaner {
	if interval <= 0 {
		interval = time.Minute
	}
	if batch <= 0 {
		batch = 500
	}
	return &Cleaner{
		store:    store,
		interval: interval,
		batch:    batch,
		now:      time.Now,
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
}

// Start 启动清理任务
func (c *Cleaner) Start() {
	go func() {
		defer close(c.stopped)

		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()

		logger.Info().Dur("interval", c.interval).Msg("expiry sweeper started")

		// 启动时立即执行一次
		c.sweep()

		for {
			select {
			case <-ticker.C:
				c.sweep()
			case <-c.done:
				logger.Info().Msg("expiry sweeper stopped")
				return
			}
		}
	}()
}

// Stop 停止清理器并等待当前一轮结束
func (c *Cleaner) Stop() {
	close(c.done)
	<-c.stopped
}

func (c *Cleaner) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), c.interval)
	defer cancel()

	total, err := c.Sweep(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("sweep expired orders failed")
	}
	if total > 0 {
		logger.Info().Int64("invalidated", total).Msg("expired orders invalidated")
	}
}

// Sweep 分批失效过期订单，直到没有剩余或出错
func (c *Cleaner) Sweep(ctx context.Context) (int64, error) {
	now := c.now().Unix()

	var total int64
	for {
		digests, err := c.store.ExpiredDigests(ctx, now, c.batch)
		if err != nil {
			return total, err
		}
		if len(digests) == 0 {
			return total, nil
		}

		n, err := c.store.InvalidateOrders(ctx, digests)
		if err != nil {
			return total, err
		}
		total += n
		monitor.AddOrdersInvalidated(n)

		// 不足一批说明已清完；n 为 0 时避免空转
		if len(digests) < c.batch || n == 0 {
			return total, nil
		}
	}
}
