package processor

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/multierr"

	"github.com/utrading/utrading-limit-relayer/internal/monitor"
	"github.com/utrading/utrading-limit-relayer/internal/order"
	"github.com/utrading/utrading-limit-relayer/pkg/concurrent"
	"github.com/utrading/utrading-limit-relayer/pkg/logger"
)

const receiptsTable = "executed_orders"

// ReceiptStore 回执持久化
type ReceiptStore interface {
	RecordExecutionReceipts(ctx context.Context, receipts []order.ExecutedOrder) ([]order.ExecutedOrder, error)
}

// ReceiptPublisher 回执事件发布
type ReceiptPublisher interface {
	PublishExecutedOrder(r order.ExecutedOrder) error
}

// ReceiptWriterConfig 批量写入配置
type ReceiptWriterConfig struct {
	BatchSize     int           // 批量大小（默认 100）
	FlushInterval time.Duration // 刷新间隔（默认 200ms）
	MaxQueueSize  int           // 最大队列大小（默认 10000）
}

// ReceiptWriter 执行回执批量写入器
// 按 txHash 去重缓冲，按数量或间隔刷新；写入失败只记录日志，不会影响已广播的交易
type ReceiptWriter struct {
	config    *ReceiptWriterConfig
	store     ReceiptStore
	publisher ReceiptPublisher
	queue     chan order.ExecutedOrder
	buffers   concurrent.Map[common.Hash, order.ExecutedOrder]
	flushMu   sync.Mutex
	flushTick *time.Ticker
	done      chan struct{}
	wg        sync.WaitGroup
}

// NewReceiptWriter 创建回执写入器，publisher 可为 nil
func NewReceiptWriter(config *ReceiptWriterConfig, store ReceiptStore, publisher ReceiptPublisher) *ReceiptWriter {
	if config == nil {
		config = &ReceiptWriterConfig{}
	}

	if config.BatchSize <= 0 {
		config.BatchSize = 100
	}
	if config.FlushInterval <= 0 {
		config.FlushInterval = 200 * time.Millisecond
	}
	if config.MaxQueueSize <= 0 {
		config.MaxQueueSize = 10000
	}

	return &ReceiptWriter{
		config:    config,
		store:     store,
		publisher: publisher,
		queue:     make(chan order.ExecutedOrder, config.MaxQueueSize),
		done:      make(chan struct{}),
	}
}

// Start 启动批量写入器
func (w *ReceiptWriter) Start() {
	w.flushTick = time.NewTicker(w.config.FlushInterval)

	w.wg.Add(2)
	go w.receiveLoop()
	go w.flushLoop()
}

func (w *ReceiptWriter) receiveLoop() {
	defer w.wg.Done()
	for {
		select {
		case r := <-w.queue:
			w.buffer(r)
			if w.buffers.Len() >= int64(w.config.BatchSize) {
				w.flush()
			}
		case <-w.done:
			// 处理队列中剩余的数据
			for len(w.queue) > 0 {
				w.buffer(<-w.queue)
			}
			return
		}
	}
}

func (w *ReceiptWriter) buffer(r order.ExecutedOrder) {
	if _, loaded := w.buffers.Swap(r.TxHash, r); loaded {
		monitor.IncBatchDedupCacheHit(receiptsTable)
	}
}

func (w *ReceiptWriter) flushLoop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.flushTick.C:
			w.flush()
		case <-w.done:
			return
		}
	}
}

// flush 写入当前缓冲
func (w *ReceiptWriter) flush() {
	w.flushMu.Lock()
	defer w.flushMu.Unlock()

	batch := w.buffers.Drain()
	if len(batch) == 0 {
		return
	}

	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	saved, err := w.store.RecordExecutionReceipts(ctx, batch)
	monitor.ObserveBatchWriteSize(len(batch))
	monitor.ObserveBatchWriteDuration(time.Since(start).Seconds())
	monitor.AddReceiptsPersisted("success", len(saved))

	if err != nil {
		failed := multierr.Errors(err)
		monitor.AddReceiptsPersisted("error", len(failed))
		for _, e := range failed {
			logger.Error().Err(e).
				Bool("duplicate", errors.Is(e, order.ErrDuplicate)).
				Msg("persist execution receipt failed")
		}
	}
	logger.Debug().Int("count", len(batch)).Int("saved", len(saved)).Msg("receipts flushed")

	if w.publisher == nil {
		return
	}
	for _, r := range saved {
		if err := w.publisher.PublishExecutedOrder(r); err != nil {
			logger.Warn().Err(err).Str("tx_hash", r.TxHash.Hex()).Msg("publish executed order failed")
		}
	}
}

// Add 添加回执
func (w *ReceiptWriter) Add(r order.ExecutedOrder) error {
	select {
	case w.queue <- r:
		return nil
	default:
		monitor.IncMessageQueueFull()
		return ErrQueueFull
	}
}

// AddAll 批量添加，返回所有入队失败
func (w *ReceiptWriter) AddAll(receipts []order.ExecutedOrder) error {
	var errs error
	for _, r := range receipts {
		if err := w.Add(r); err != nil {
			errs = multierr.Append(errs, err)
		}
	}
	return errs
}

// Stop 停止写入器并刷新全部缓冲
func (w *ReceiptWriter) Stop() {
	close(w.done)
	w.wg.Wait()
	w.flush()

	if w.flushTick != nil {
		w.flushTick.Stop()
	}
}

// GracefulShutdown 优雅关闭，带超时控制
func (w *ReceiptWriter) GracefulShutdown(timeout time.Duration) error {
	done := make(chan struct{})
	go func() {
		w.Stop()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		logger.Warn().Dur("timeout", timeout).Msg("receipt writer shutdown timeout")
		return ErrShutdownTimeout
	}
}

// ErrQueueFull 队列满错误
var ErrQueueFull = errors.New("receipt queue full")

// ErrShutdownTimeout 关闭超时错误
var ErrShutdownTimeout = errors.New("shutdown timeout")
