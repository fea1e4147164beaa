package monitor

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics 指标收集器
type Metrics struct {
	// 执行相关
	executionsTotal    *prometheus.CounterVec
	executionBatchSize prometheus.Histogram
	fillDurationSecs   prometheus.Histogram
	dedupEntries       prometheus.Gauge
	// 存储相关
	ordersSavedTotal       *prometheus.CounterVec
	receiptsPersistedTotal *prometheus.CounterVec
	ordersInvalidatedTotal prometheus.Counter
	// NATS
	natsConnected         prometheus.Gauge
	natsMessagesReceived  *prometheus.CounterVec
	natsPublishErrorTotal *prometheus.CounterVec
	// 消息队列
	messageQueueSize      prometheus.Gauge
	messageQueueFullTotal prometheus.Counter
	// 批量写入器
	batchWriteSize         prometheus.Histogram
	batchWriteDurationSecs prometheus.Histogram
	batchDedupCacheHit     *prometheus.CounterVec
}

// NewMetrics 创建指标收集器
func NewMetrics(namespace string) *Metrics {
	m := &Metrics{
		executionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "executions_total",
				Help:      "订单执行结果计数",
			},
			[]string{"result"}, // submitted, skipped, estimation_failed, transport_failed
		),
		executionBatchSize: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "execution_batch_size",
				Help:      "每批候选订单数量分布",
				Buckets:   []float64{1, 2, 5, 10, 20, 50, 100},
			},
		),
		fillDurationSecs: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "fill_duration_seconds",
				Help:      "单个订单预估+签名+广播耗时（秒）",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
		),
		dedupEntries: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "dedup_entries",
				Help:      "执行去重表当前条目数",
			},
		),
		ordersSavedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "orders_saved_total",
				Help:      "订单保存计数",
			},
			[]string{"result"}, // created, duplicate, error
		),
		receiptsPersistedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "receipts_persisted_total",
				Help:      "执行回执写入计数",
			},
			[]string{"result"}, // success, error
		),
		ordersInvalidatedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "orders_invalidated_total",
				Help:      "标记失效的订单总数",
			},
		),
		natsConnected: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "nats_connected",
				Help:      "NATS connection status (1=connected, 0=disconnected)",
			},
		),
		natsMessagesReceived: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "nats_messages_received_total",
				Help:      "Total number of NATS messages received",
			},
			[]string{"subject"},
		),
		natsPublishErrorTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "nats_publish_errors_total",
				Help:      "Total number of NATS publish errors",
			},
			[]string{"subject"},
		),
		messageQueueSize: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "message_queue_size",
				Help:      "消息队列当前大小",
			},
		),
		messageQueueFullTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "message_queue_full_total",
				Help:      "消息队列满事件总数",
			},
		),
		batchWriteSize: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "batch_write_size",
				Help:      "批量写入大小分布",
				Buckets:   []float64{1, 10, 25, 50, 100, 200, 500},
			},
		),
		batchWriteDurationSecs: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "batch_write_duration_seconds",
				Help:      "批量写入耗时分布（秒）",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			},
		),
		batchDedupCacheHit: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "batch_dedup_cache_hit_total",
				Help:      "Total number of batch deduplication cache hits",
			},
			[]string{"table"},
		),
	}

	prometheus.MustRegister(
		m.executionsTotal,
		m.executionBatchSize,
		m.fillDurationSecs,
		m.dedupEntries,
		m.ordersSavedTotal,
		m.receiptsPersistedTotal,
		m.ordersInvalidatedTotal,
		m.natsConnected,
		m.natsMessagesReceived,
		m.natsPublishErrorTotal,
		m.messageQueueSize,
		m.messageQueueFullTotal,
		m.batchWriteSize,
		m.batchWriteDurationSecs,
		m.batchDedupCacheHit,
	)

	return m
}

// IncExecution 增加执行结果计数
func (m *Metrics) IncExecution(result string) {
	m.executionsTotal.WithLabelValues(result).Inc()
}

// ObserveExecutionBatch 观察批次大小
func (m *Metrics) ObserveExecutionBatch(size int) {
	m.executionBatchSize.Observe(float64(size))
}

// ObserveFillDuration 观察 fill 耗时
func (m *Metrics) ObserveFillDuration(seconds float64) {
	m.fillDurationSecs.Observe(seconds)
}

// SetDedupEntries 设置去重表条目数
func (m *Metrics) SetDedupEntries(count int) {
	m.dedupEntries.Set(float64(count))
}

// IncOrdersSaved 增加订单保存计数
func (m *Metrics) IncOrdersSaved(result string) {
	m.ordersSavedTotal.WithLabelValues(result).Inc()
}

// AddReceiptsPersisted 增加回执写入计数
func (m *Metrics) AddReceiptsPersisted(result string, count int) {
	m.receiptsPersistedTotal.WithLabelValues(result).Add(float64(count))
}

// AddOrdersInvalidated 增加失效订单计数
func (m *Metrics) AddOrdersInvalidated(count int64) {
	m.ordersInvalidatedTotal.Add(float64(count))
}

// SetNATSConnected 设置NATS连接状态
func (m *Metrics) SetNATSConnected(connected bool) {
	if connected {
		m.natsConnected.Set(1)
	} else {
		m.natsConnected.Set(0)
	}
}

// IncNATSReceived 增加接收消息计数
func (m *Metrics) IncNATSReceived(subject string) {
	m.natsMessagesReceived.WithLabelValues(subject).Inc()
}

// IncNATSPublishError 增加发布失败计数
func (m *Metrics) IncNATSPublishError(subject string) {
	m.natsPublishErrorTotal.WithLabelValues(subject).Inc()
}

// SetMessageQueueSize 设置消息队列大小
func (m *Metrics) SetMessageQueueSize(size int) {
	m.messageQueueSize.Set(float64(size))
}

// IncMessageQueueFull 增加消息队列满事件计数
func (m *Metrics) IncMessageQueueFull() {
	m.messageQueueFullTotal.Inc()
}

// ObserveBatchWriteSize 观察批量写入大小
func (m *Metrics) ObserveBatchWriteSize(size int) {
	m.batchWriteSize.Observe(float64(size))
}

// ObserveBatchWriteDuration 观察批量写入耗时
func (m *Metrics) ObserveBatchWriteDuration(duration float64) {
	m.batchWriteDurationSecs.Observe(duration)
}

// IncBatchDedupCacheHit 增加批量写入去重缓存命中计数
func (m *Metrics) IncBatchDedupCacheHit(table string) {
	m.batchDedupCacheHit.WithLabelValues(table).Inc()
}

var (
	globalMetrics *Metrics
	metricsOnce   sync.Once
)

// GetMetrics 获取全局指标收集器
func GetMetrics() *Metrics {
	metricsOnce.Do(func() {
		globalMetrics = NewMetrics("limit_relayer")
	})
	return globalMetrics
}

// InitMetrics 初始化指标收集器（供main使用）
func InitMetrics() {
	GetMetrics()
}
