package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/patrickmn/go-cache"

	"github.com/utrading/utrading-limit-relayer/internal/order"
	"github.com/utrading/utrading-limit-relayer/pkg/logger"
)

// DefaultDebounceWindow 同一订单两次提交的最小间隔
const DefaultDebounceWindow = 180 * time.Second

// ExecutionDedup 执行去重表，使用 go-cache 实现 TTL 自动过期
// 过期条目在访问时惰性判断，janitor 按窗口周期回收内存
type ExecutionDedup struct {
	cache  *cache.Cache
	window time.Duration
}

// NewExecutionDedup 创建执行去重表，window<=0 时使用默认 180s
func NewExecutionDedup(window time.Duration) *ExecutionDedup {
	if window <= 0 {
		window = DefaultDebounceWindow
	}
	return &ExecutionDedup{
		cache:  cache.New(window, window),
		window: window,
	}
}

// AlreadyExecuting 原子检查并登记
// 窗口内已登记返回 true（不重新登记）；否则登记当前时间并返回 false
func (c *ExecutionDedup) AlreadyExecuting(digest common.Hash) bool {
	// Add 在持有锁的情况下检查存在性与过期时间
	return c.cache.Add(digest.Hex(), time.Now(), cache.DefaultExpiration) != nil
}

// Remove 清除登记，订单在下一轮可重新提交
func (c *ExecutionDedup) Remove(digest common.Hash) {
	c.cache.Delete(digest.Hex())
}

// markUntil 以剩余窗口登记
func (c *ExecutionDedup) markUntil(digest common.Hash, insertedAt time.Time, ttl time.Duration) {
	c.cache.Set(digest.Hex(), insertedAt, ttl)
}

type ReceiptSource interface {
	SubmittedSince(ctx context.Context, since time.Time) ([]order.ExecutedOrder, error)
}

// LoadFromDB 从执行回执恢复去重状态
// 用于服务重启后避免重复提交仍在 pending 的订单
func (c *ExecutionDedup) LoadFromDB(ctx context.Context, source ReceiptSource) error {
	if source == nil {
		return fmt.Errorf("receipt source is nil")
	}

	now := time.Now()
	receipts, err := source.SubmittedSince(ctx, now.Add(-c.window))
	if err != nil {
		return fmt.Errorf("get submitted receipts failed: %w", err)
	}

	count := 0
	for _, r := range receipts {
		remaining := c.window - now.Sub(r.SubmittedAt)
		if remaining <= 0 {
			continue
		}
		c.markUntil(r.Digest, r.SubmittedAt, remaining)
		count++
	}

	logger.Info().
		Int("count", count).
		Dur("window", c.window).
		Msg("loaded submitted orders from database")

	return nil
}

func (c *ExecutionDedup) Window() time.Duration {
	return c.window
}

// Len 当前条目数（可能包含尚未回收的过期条目）
func (c *ExecutionDedup) Len() int {
	return c.cache.ItemCount()
}

// Stats 获取统计信息
func (c *ExecutionDedup) Stats() map[string]any {
	return map[string]any{
		"item_count":     c.cache.ItemCount(),
		"window_seconds": c.window.Seconds(),
	}
}
