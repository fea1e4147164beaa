package nats

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/utrading/utrading-limit-relayer/internal/monitor"
	"github.com/utrading/utrading-limit-relayer/internal/order"
	"github.com/utrading/utrading-limit-relayer/pkg/logger"
)

const (
	SubjectSubmitted  = "submitted"
	SubjectEligible   = "eligible"
	SubjectInvalidate = "invalidate"
	SubjectCandidates = "candidates"
	SubjectExecuted   = "executed"
)

// Subject 返回 <prefix>.<chainId>.<name>
func Subject(prefix string, chainID int64, name string) string {
	return fmt.Sprintf("%s.%d.%s", prefix, chainID, name)
}

// Connect 连接 NATS，断线自动重连并同步连接指标
func Connect(url string) (*nats.Conn, error) {
	return nats.Connect(url,
		nats.Name("limit-relayer"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			monitor.SetNATSConnected(false)
			logger.Warn().Err(err).Msg("nats disconnected")
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			monitor.SetNATSConnected(true)
			logger.Info().Str("url", c.ConnectedUrl()).Msg("nats reconnected")
		}),
	)
}

// Publisher NATS 发布器
type Publisher struct {
	conn    *nats.Conn
	prefix  string
	chainID int64
	mu      sync.RWMutex
	closed  bool
}

// NewPublisher 创建 NATS 发布器
func NewPublisher(conn *nats.Conn, prefix string, chainID int64) *Publisher {
	monitor.SetNATSConnected(conn != nil && conn.IsConnected())
	return &Publisher{
		conn:    conn,
		prefix:  prefix,
		chainID: chainID,
	}
}

// PublishExecutedOrder 发布执行回执事件
func (p *Publisher) PublishExecutedOrder(r order.ExecutedOrder) error {
	subject := Subject(p.prefix, p.chainID, SubjectExecuted)

	data, err := json.Marshal(NewExecutedOrderEvent(p.chainID, r))
	if err != nil {
		logger.Error().Err(err).Msg("marshal executed order failed")
		return err
	}
	return p.publish(subject, data)
}

func (p *Publisher) publish(subject string, data []byte) error {
	if !p.IsConnected() {
		monitor.IncNATSPublishError(subject)
		return nats.ErrConnectionClosed
	}
	if err := p.conn.Publish(subject, data); err != nil {
		monitor.IncNATSPublishError(subject)
		return err
	}
	return nil
}

// IsConnected 检查发布器是否已连接
func (p *Publisher) IsConnected() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return !p.closed && p.conn != nil && !p.conn.IsClosed()
}

// Close 刷新并关闭连接
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true

	monitor.SetNATSConnected(false)

	if p.conn == nil {
		return nil
	}
	err := p.conn.FlushTimeout(5 * time.Second)
	p.conn.Close()
	return err
}
