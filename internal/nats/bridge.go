package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/nats-io/nats.go"

	"github.com/utrading/utrading-limit-relayer/internal/monitor"
	"github.com/utrading/utrading-limit-relayer/internal/order"
	"github.com/utrading/utrading-limit-relayer/internal/processor"
	"github.com/utrading/utrading-limit-relayer/pkg/goplus"
	"github.com/utrading/utrading-limit-relayer/pkg/logger"
)

// OrderStore bridge 需要的存储操作
type OrderStore interface {
	SaveOrder(ctx context.Context, o order.StoredOrder) (bool, error)
	QueryEligibleOrders(ctx context.Context, pairAddress, tokenIn common.Address, now int64) ([]order.StoredOrder, error)
	InvalidateOrders(ctx context.Context, digests []common.Hash) (int64, error)
}

// CandidateQueue 候选批次队列
type CandidateQueue interface {
	Enqueue(msg processor.Message) error
}

// Bridge 把 NATS subject 映射到存储与执行流程
type Bridge struct {
	conn    *nats.Conn
	prefix  string
	chainID int64
	store   OrderStore
	queue   CandidateQueue
	timeout time.Duration
	now     func() time.Time

	mu   sync.Mutex
	subs []*nats.Subscription
}

func NewBridge(conn *nats.Conn, prefix string, chainID int64, store OrderStore, queue CandidateQueue) *Bridge {
	return &Bridge{
		conn:    conn,
		prefix:  prefix,
		chainID: chainID,
		store:   store,
		queue:   queue,
		timeout: 10 * time.Second,
		now:     time.Now,
	}
}

// Start 订阅全部入站 subject
func (b *Bridge) Start() error {
	handlers := map[string]func(ctx context.Context, data []byte) any{
		SubjectSubmitted:  b.onSubmitted,
		SubjectEligible:   b.onEligible,
		SubjectInvalidate: b.onInvalidate,
		SubjectCandidates: b.onCandidates,
	}

	for name, h := range handlers {
		if err := b.subscribe(Subject(b.prefix, b.chainID, name), h); err != nil {
			b.Stop()
			return err
		}
	}

	logger.Info().Str("prefix", b.prefix).Int64("chain_id", b.chainID).Msg("nats bridge started")
	return nil
}

func (b *Bridge) subscribe(subject string, h func(ctx context.Context, data []byte) any) error {
	sub, err := b.conn.Subscribe(subject, func(m *nats.Msg) {
		defer goplus.Recover()

		monitor.IncNATSReceived(subject)

		ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
		defer cancel()

		reply := h(ctx, m.Data)
		if m.Reply == "" || reply == nil {
			return
		}
		data, err := json.Marshal(reply)
		if err != nil {
			logger.Error().Err(err).Str("subject", subject).Msg("marshal reply failed")
			return
		}
		if err := m.Respond(data); err != nil {
			monitor.IncNATSPublishError(m.Reply)
			logger.Warn().Err(err).Str("subject", subject).Msg("respond failed")
		}
	})
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", subject, err)
	}

	b.mu.Lock()
	b.subs = append(b.subs, sub)
	b.mu.Unlock()
	return nil
}

// Stop 取消订阅，已投递的消息继续处理
func (b *Bridge) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, sub := range b.subs {
		if err := sub.Drain(); err != nil {
			logger.Warn().Err(err).Str("subject", sub.Subject).Msg("drain subscription failed")
		}
	}
	b.subs = nil
}

func (b *Bridge) onSubmitted(ctx context.Context, data []byte) any {
	var p StoredOrderPayload
	if err := json.Unmarshal(data, &p); err != nil {
		logger.Warn().Err(err).Msg("invalid submitted order")
		return SaveReply{Error: err.Error()}
	}

	saved, err := b.store.SaveOrder(ctx, p.StoredOrder())
	if err != nil {
		monitor.IncOrdersSaved("error")
		logger.Error().Err(err).Str("digest", p.Digest.Hex()).Msg("save order failed")
		return SaveReply{Error: err.Error()}
	}

	if saved {
		monitor.IncOrdersSaved("saved")
		logger.Info().Str("digest", p.Digest.Hex()).Msg("order saved")
	} else {
		monitor.IncOrdersSaved("duplicate")
		logger.Debug().Str("digest", p.Digest.Hex()).Msg("order already saved")
	}
	return SaveReply{Saved: saved}
}

func (b *Bridge) onEligible(ctx context.Context, data []byte) any {
	var req EligibleRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return EligibleReply{Orders: []StoredOrderPayload{}, Error: err.Error()}
	}

	now := req.Now
	if now == 0 {
		now = b.now().Unix()
	}

	orders, err := b.store.QueryEligibleOrders(ctx, req.PairAddress, req.TokenIn, now)
	if err != nil {
		logger.Error().Err(err).Str("pair", req.PairAddress.Hex()).Msg("query eligible orders failed")
		return EligibleReply{Orders: []StoredOrderPayload{}, Error: err.Error()}
	}

	reply := EligibleReply{Orders: make([]StoredOrderPayload, 0, len(orders))}
	for _, o := range orders {
		reply.Orders = append(reply.Orders, NewStoredOrderPayload(o))
	}
	return reply
}

func (b *Bridge) onInvalidate(ctx context.Context, data []byte) any {
	var req InvalidateRequest
	if err := json.Unmarshal(data, &req); err != nil {
		logger.Warn().Err(err).Msg("invalid invalidate request")
		return nil
	}
	if len(req.Digests) == 0 {
		return nil
	}

	n, err := b.store.InvalidateOrders(ctx, req.Digests)
	if err != nil {
		logger.Error().Err(err).Int("digests", len(req.Digests)).Msg("invalidate orders failed")
		return nil
	}
	monitor.AddOrdersInvalidated(n)
	logger.Info().Int64("invalidated", n).Int("requested", len(req.Digests)).Msg("orders invalidated")
	return nil
}

func (b *Bridge) onCandidates(_ context.Context, data []byte) any {
	var req CandidatesRequest
	if err := json.Unmarshal(data, &req); err != nil {
		logger.Warn().Err(err).Msg("invalid candidate batch")
		return nil
	}

	candidates, dropped := req.ExecutableOrders()
	if dropped > 0 {
		logger.Warn().Int("dropped", dropped).Msg("candidates with missing amounts dropped")
	}
	if len(candidates) == 0 {
		return nil
	}

	msg := processor.CandidateBatchMessage{
		Candidates: candidates,
		GasPrice:   req.GasPrice.Int(),
		ReceivedAt: b.now(),
	}
	if err := b.queue.Enqueue(msg); err != nil {
		logger.Error().Err(err).Int("candidates", len(candidates)).Msg("enqueue candidate batch failed")
	}
	return nil
}
