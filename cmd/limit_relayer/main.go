package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/utrading/utrading-limit-relayer/config"
	"github.com/utrading/utrading-limit-relayer/internal/cache"
	"github.com/utrading/utrading-limit-relayer/internal/chain"
	"github.com/utrading/utrading-limit-relayer/internal/cleaner"
	"github.com/utrading/utrading-limit-relayer/internal/dal"
	"github.com/utrading/utrading-limit-relayer/internal/dao"
	"github.com/utrading/utrading-limit-relayer/internal/executor"
	"github.com/utrading/utrading-limit-relayer/internal/monitor"
	"github.com/utrading/utrading-limit-relayer/internal/nats"
	"github.com/utrading/utrading-limit-relayer/internal/order"
	"github.com/utrading/utrading-limit-relayer/internal/processor"
	"github.com/utrading/utrading-limit-relayer/internal/profit"
	"github.com/utrading/utrading-limit-relayer/internal/token"
	"github.com/utrading/utrading-limit-relayer/pkg/logger"
	"github.com/utrading/utrading-limit-relayer/pkg/sigproc"
)

func main() {
	var configFile string
	flag.StringVar(&configFile, "config", "cfg.toml", "config file path")
	flag.Parse()

	// 加载配置
	if err := config.Init(configFile); err != nil {
		panic(err)
	}
	cfg := config.Get()

	// 初始化日志
	if err := initLogger(cfg); err != nil {
		panic("init logger failed: " + err.Error())
	}
	defer logger.Close()

	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	chainID := cfg.Relayer.ChainID
	logger.Info().Int64("chain_id", chainID).Msg("limit_relayer starting...")

	// 初始化指标
	monitor.InitMetrics()

	// 初始化数据库
	db, err := dal.InitDB(cfg.MySQL)
	if err != nil {
		logger.Fatal().Err(err).Msg("init db failed")
	}
	dal.AutoMigrate(db, chainID)

	pairs := order.NewPairAddresser(
		common.HexToAddress(cfg.Chain.PairFactory),
		common.HexToHash(cfg.Chain.PairInitCodeHash),
	)
	store := dao.NewOrderStore(db, chainID, pairs)

	// token list：未配置文件时使用内置列表
	registry := token.NewRegistry()
	var tokenLoader *token.Loader
	if cfg.Chain.TokenListPath != "" {
		tokenLoader, err = token.NewLoader(registry, cfg.Chain.TokenListPath, 0)
		if err != nil {
			logger.Fatal().Err(err).Str("path", cfg.Chain.TokenListPath).Msg("load token list failed")
		}
		tokenLoader.Start()
	}

	profitTokens := cfg.Relayer.ProfitTokens
	if len(profitTokens) == 0 {
		profitTokens = token.DefaultProfitTokens(chainID)
	}
	resolver := profit.NewResolver(chainID, profitTokens, registry)

	// 链上连接
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dialCtx, dialCancel := context.WithTimeout(ctx, 15*time.Second)
	client, err := chain.Dial(dialCtx, cfg.Chain.RPCURL, chainID)
	dialCancel()
	if err != nil {
		logger.Fatal().Err(err).Msg("dial rpc failed")
	}
	defer client.Close()

	filler, err := chain.NewFiller(client, cfg.Chain.PrivateKey, chain.FillerConfig{
		ChainID:           chainID,
		LimitOrderAddress: common.HexToAddress(cfg.Chain.LimitOrderAddress),
		GasLimit:          cfg.Chain.GasLimit,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("init filler failed")
	}
	gasOracle := chain.NewGasOracle(client)

	// 执行器与去重表
	dedup := cache.NewExecutionDedup(cfg.Relayer.DebounceWindow)
	exec, err := executor.New(executor.Config{
		ChainID:           chainID,
		ReceiverAddresses: receiverAddresses(cfg),
		ProfitReceiver:    common.HexToAddress(cfg.Relayer.ProfitReceiver),
		PoolSize:          cfg.Relayer.WorkerPoolSize,
	}, filler, resolver, dedup)
	if err != nil {
		logger.Fatal().Err(err).Msg("init executor failed")
	}

	// 恢复去重状态，防止重启后重复提交
	if cfg.Relayer.RestoreDedup {
		if err = dedup.LoadFromDB(ctx, store); err != nil {
			logger.Warn().Err(err).Msg("restore dedup from receipts failed")
		}
	}

	// NATS
	conn, err := nats.Connect(cfg.NATS.Endpoint)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect nats failed")
	}
	publisher := nats.NewPublisher(conn, cfg.NATS.SubjectPrefix, chainID)

	// 回执写入器
	receiptWriter := processor.NewReceiptWriter(&processor.ReceiptWriterConfig{
		BatchSize:     cfg.BatchWriter.BatchSize,
		FlushInterval: cfg.BatchWriter.FlushInterval,
		MaxQueueSize:  cfg.BatchWriter.MaxQueueSize,
	}, store, publisher)
	receiptWriter.Start()

	// 候选批次队列
	handler := processor.NewExecutionHandler(exec, gasOracle, receiptWriter, 0)
	queue := processor.NewMessageQueue(1000, handler)
	queue.Start()

	bridge := nats.NewBridge(conn, cfg.NATS.SubjectPrefix, chainID, store, queue)
	if err = bridge.Start(); err != nil {
		logger.Fatal().Err(err).Msg("start nats bridge failed")
	}

	// 过期订单清理
	sweeper := cleaner.NewCleaner(store, cfg.Relayer.ExpirySweepInterval, cfg.Relayer.ExpirySweepBatch)
	sweeper.Start()

	// 健康检查
	healthServer := monitor.NewHealthServer(cfg.Relayer.HealthServerAddr, chainID, store, publisher, exec)
	if err = healthServer.Start(); err != nil {
		logger.Fatal().Err(err).Msg("start health server failed")
	}

	logger.Info().
		Int64("chain_id", chainID).
		Str("filler", filler.From().Hex()).
		Str("health_addr", cfg.Relayer.HealthServerAddr).
		Strs("unresolved_profit_tokens", resolver.Unresolved()).
		Msg("limit_relayer started successfully")

	// 优雅关闭：先停入口，再清空队列与回执
	sigproc.GracefulShutdown(func(sig os.Signal) {
		logger.Info().Str("signal", sig.String()).Msg("shutting down...")

		bridge.Stop()
		sweeper.Stop()
		if tokenLoader != nil {
			tokenLoader.Close()
		}

		queue.Stop()
		exec.Close()

		if err := receiptWriter.GracefulShutdown(10 * time.Second); err != nil {
			logger.Error().Err(err).Msg("receipt writer shutdown failed")
		}
		_ = publisher.Close()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = healthServer.Stop(shutdownCtx)

		config.Stop()
		cancel()
		dal.Close(db)

		logger.Info().Msg("limit_relayer service stopped")
	})

	<-ctx.Done()
}

func initLogger(cfg *config.Config) error {
	return logger.NewBuilder().
		SetDir(cfg.Logger.Dir).
		SetMaxSize(cfg.Logger.MaxSize).
		SetMaxBackups(cfg.Logger.MaxBackups).
		SetMaxAge(cfg.Logger.MaxAge).
		SetLevel(cfg.Logger.Level).
		EnableCompression(cfg.Logger.Compress).
		EnableConsoleOutput(cfg.Logger.Console).
		EnableJSON(cfg.Logger.JSON).
		Build()
}

// receiverAddresses 解析配置中的 receiver 地址，非法地址跳过
func receiverAddresses(cfg *config.Config) map[int64]common.Address {
	out := make(map[int64]common.Address)
	for id, addr := range cfg.ReceiverMap() {
		if !common.IsHexAddress(addr) {
			logger.Warn().Int64("chain_id", id).Str("address", addr).Msg("invalid receiver address, skipped")
			continue
		}
		out[id] = common.HexToAddress(addr)
	}
	return out
}
