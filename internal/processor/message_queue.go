package processor

import (
	"sync"

	"github.com/utrading/utrading-limit-relayer/internal/monitor"
	"github.com/utrading/utrading-limit-relayer/pkg/goplus"
	"github.com/utrading/utrading-limit-relayer/pkg/logger"
)

// MessageHandler 消息处理器接口
type MessageHandler interface {
	HandleMessage(msg Message) error
}

// MessageQueue 异步消息队列，单 worker 顺序消费
type MessageQueue struct {
	queue    chan Message
	wg       sync.WaitGroup
	handler  MessageHandler
	done     chan struct{}
	stopOnce sync.Once
}

// NewMessageQueue 创建消息队列
func NewMessageQueue(size int, handler MessageHandler) *MessageQueue {
	if size <= 0 {
		size = 1000
	}
	return &MessageQueue{
		queue:   make(chan Message, size),
		handler: handler,
		done:    make(chan struct{}),
	}
}

// Start 启动工作协程
func (q *MessageQueue) Start() {
	q.wg.Add(1)
	go q.worker()
}

func (q *MessageQueue) worker() {
	defer q.wg.Done()
	for {
		select {
		case msg := <-q.queue:
			q.handle(msg)
		case <-q.done:
			// 处理队列中剩余的消息
			for {
				select {
				case msg := <-q.queue:
					q.handle(msg)
				default:
					return
				}
			}
		}
	}
}

func (q *MessageQueue) handle(msg Message) {
	defer goplus.Recover()

	monitor.SetMessageQueueSize(len(q.queue))
	if err := q.handler.HandleMessage(msg); err != nil {
		logger.Error().Err(err).Str("type", msg.Type()).Msg("handle message failed")
	}
}

// Enqueue 发送消息（带背压策略）
func (q *MessageQueue) Enqueue(msg Message) error {
	select {
	case q.queue <- msg:
		monitor.SetMessageQueueSize(len(q.queue))
		return nil
	default:
		monitor.IncMessageQueueFull()
		logger.Warn().
			Str("type", msg.Type()).
			Int("queue_size", len(q.queue)).
			Msg("message queue full, falling back to sync processing")

		// 队列满时同步处理（阻塞调用方）
		return q.handler.HandleMessage(msg)
	}
}

// Stop 停止队列，已入队的消息会被处理完
func (q *MessageQueue) Stop() {
	q.stopOnce.Do(func() {
		close(q.done)
	})
	q.wg.Wait()
}

// Size 返回当前队列大小
func (q *MessageQueue) Size() int {
	return len(q.queue)
}
