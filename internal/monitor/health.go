package monitor

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/utrading/utrading-limit-relayer/pkg/goplus"
	"github.com/utrading/utrading-limit-relayer/pkg/logger"
)

// StoreRef 订单存储引用接口
type StoreRef interface {
	Ping(ctx context.Context) error
}

// PublisherRef NATS发布器引用接口
type PublisherRef interface {
	IsConnected() bool
}

// ExecutorRef 执行器引用接口
type ExecutorRef interface {
	Stats() map[string]any
}

// HealthServer HTTP 健康检查和指标服务器
type HealthServer struct {
	addr         string
	chainID      int64
	store        StoreRef
	publisher    PublisherRef
	executor     ExecutorRef
	server       *http.Server
	mu           sync.RWMutex
	healthy      bool
	healthySince time.Time
	startTime    time.Time
}

// NewHealthServer 创建健康检查服务器
func NewHealthServer(addr string, chainID int64, store StoreRef, publisher PublisherRef, executor ExecutorRef) *HealthServer {
	return &HealthServer{
		addr:         addr,
		chainID:      chainID,
		store:        store,
		publisher:    publisher,
		executor:     executor,
		healthy:      true,
		healthySince: time.Now(),
		startTime:    time.Now(),
	}
}

// Handler 注册全部端点
func (h *HealthServer) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", h.healthHandler)
	mux.HandleFunc("/health/ready", h.readyHandler)
	mux.HandleFunc("/health/live", h.liveHandler)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/status", h.statusHandler)

	return mux
}

// Start 启动HTTP服务器
func (h *HealthServer) Start() error {
	h.server = &http.Server{
		Addr:         h.addr,
		Handler:      h.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	goplus.Go(func() {
		if err := h.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("health server error")
		}
	})

	logger.Info().Str("addr", h.addr).Msg("health server started")

	return nil
}

// Stop 停止服务器
func (h *HealthServer) Stop(ctx context.Context) error {
	h.mu.Lock()
	h.healthy = false
	h.mu.Unlock()

	if h.server == nil {
		return nil
	}
	return h.server.Shutdown(ctx)
}

func (h *HealthServer) healthHandler(w http.ResponseWriter, r *http.Request) {
	status := h.getHealthStatus(r.Context())
	code := http.StatusOK
	if !status.Healthy {
		code = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(status)
}

func (h *HealthServer) readyHandler(w http.ResponseWriter, r *http.Request) {
	if !h.isReady(r.Context()) {
		http.Error(w, "not ready", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (h *HealthServer) liveHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (h *HealthServer) statusHandler(w http.ResponseWriter, r *http.Request) {
	status := h.getHealthStatus(r.Context())
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(status)
}

// isReady 数据库可用即就绪，NATS 断开不影响执行
func (h *HealthServer) isReady(ctx context.Context) bool {
	h.mu.RLock()
	healthy := h.healthy
	h.mu.RUnlock()

	if !healthy {
		return false
	}

	return h.pingStore(ctx)
}

func (h *HealthServer) pingStore(ctx context.Context) bool {
	if h.store == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return h.store.Ping(ctx) == nil
}

func (h *HealthServer) getHealthStatus(ctx context.Context) HealthStatus {
	h.mu.RLock()
	healthy := h.healthy
	healthySince := h.healthySince
	h.mu.RUnlock()

	dbConnected := h.pingStore(ctx)

	natsConnected := false
	if h.publisher != nil {
		natsConnected = h.publisher.IsConnected()
	}

	var executorStats map[string]any
	if h.executor != nil {
		executorStats = h.executor.Stats()
	}

	return HealthStatus{
		Healthy:      healthy && dbConnected,
		HealthySince: healthySince.Format(time.RFC3339),
		Uptime:       time.Since(h.startTime).String(),
		ChainID:      h.chainID,
		Database:     ConnStatus{Connected: dbConnected},
		NATS:         ConnStatus{Connected: natsConnected},
		Executor:     executorStats,
	}
}

// HealthStatus 健康状态结构
type HealthStatus struct {
	Healthy      bool           `json:"healthy"`
	HealthySince string         `json:"healthy_since"`
	Uptime       string         `json:"uptime"`
	ChainID      int64          `json:"chain_id"`
	Database     ConnStatus     `json:"database"`
	NATS         ConnStatus     `json:"nats"`
	Executor     map[string]any `json:"executor,omitempty"`
}

// ConnStatus 连接状态
type ConnStatus struct {
	Connected bool `json:"connected"`
}
