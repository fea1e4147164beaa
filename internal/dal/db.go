package dal

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	proxymysql "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/proxy"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	"gorm.io/plugin/dbresolver"

	"github.com/utrading/utrading-limit-relayer/config"
	"github.com/utrading/utrading-limit-relayer/internal/models"
	"github.com/utrading/utrading-limit-relayer/pkg/logger"
)

type GormLogger struct{}

func (l GormLogger) Printf(f string, args ...any) {
	log.Printf(f, args...)
}

func (l GormLogger) Print(args ...any) {
	log.Print(args...)
}

var (
	db     *gorm.DB
	dbOnce sync.Once
	dbErr  error
)

// InitDB 初始化全局连接（只执行一次）
func InitDB(cfg config.MySQL) (*gorm.DB, error) {
	dbOnce.Do(func() {
		db, dbErr = Connect(cfg)
	})
	return db, dbErr
}

// DB 返回全局连接
func DB() *gorm.DB {
	return db
}

// registerProxyDialer 注册 SOCKS5 代理拨号器
func registerProxyDialer(proxyAddr string) error {
	dialer, err := proxy.SOCKS5("tcp", proxyAddr, nil, &net.Dialer{})
	if err != nil {
		return fmt.Errorf("create proxy dialer failed: %w", err)
	}

	proxymysql.RegisterDialContext("tcp", func(ctx context.Context, addr string) (net.Conn, error) {
		if cd, ok := dialer.(proxy.ContextDialer); ok {
			return cd.DialContext(ctx, "tcp", addr)
		}
		return dialer.Dial("tcp", addr)
	})

	return nil
}

func gormConfig() *gorm.Config {
	return &gorm.Config{
		Logger: gormlogger.New(
			GormLogger{}, gormlogger.Config{
				SlowThreshold:             200 * time.Millisecond,
				LogLevel:                  gormlogger.Warn,
				Colorful:                  false,
				IgnoreRecordNotFoundError: true,
			},
		),
		// 唯一键冲突统一转换为 gorm.ErrDuplicatedKey
		TranslateError: true,
	}
}

// OpenSQLite 打开 sqlite 连接（本地开发与测试）
func OpenSQLite(dsn string) (*gorm.DB, error) {
	conn, err := gorm.Open(sqlite.Open(dsn), gormConfig())
	if err != nil {
		return nil, fmt.Errorf("open sqlite failed: %w", err)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return nil, err
	}
	// sqlite 单写者
	sqlDB.SetMaxOpenConns(1)

	return conn, nil
}

// Connect 按配置建立连接，mysql 支持读写分离与 SOCKS5 代理
func Connect(cfg config.MySQL) (*gorm.DB, error) {
	if cfg.Driver == "sqlite" {
		return OpenSQLite(cfg.DSN)
	}

	if cfg.ProxyEnabled {
		if err := registerProxyDialer(cfg.ProxyAddr); err != nil {
			return nil, err
		}
		logger.Info().Str("proxy", cfg.ProxyAddr).Msg("mysql proxy enabled")
	}

	conn, err := gorm.Open(mysql.Open(cfg.DSN), gormConfig())
	if err != nil {
		return nil, fmt.Errorf("connect mysql master failed: %w", err)
	}

	maxIdleTime := time.Hour
	if cfg.SetConnMaxIdleTime > 0 {
		maxIdleTime = time.Duration(cfg.SetConnMaxIdleTime) * time.Second
	}

	maxLifetime := 2 * time.Hour
	if cfg.SetConnMaxLifetime > 0 {
		maxLifetime = time.Duration(cfg.SetConnMaxLifetime) * time.Second
	}

	if len(cfg.SlaveAddr) > 0 {
		replicas := make([]gorm.Dialector, 0, len(cfg.SlaveAddr))
		for _, addr := range cfg.SlaveAddr {
			replicas = append(replicas, mysql.Open(addr))
		}

		plugin := dbresolver.Register(dbresolver.Config{
			Replicas:          replicas,
			TraceResolverMode: true,
		}).
			SetConnMaxIdleTime(maxIdleTime).
			SetConnMaxLifetime(maxLifetime).
			SetMaxIdleConns(cfg.MaxIdleConnections).
			SetMaxOpenConns(cfg.MaxOpenConnections)
		if err = conn.Use(plugin); err != nil {
			return nil, fmt.Errorf("register dbresolver failed: %w", err)
		}
		logger.Info().Int("slaves", len(cfg.SlaveAddr)).Msg("mysql replicas configured")
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql.DB failed: %w", err)
	}

	sqlDB.SetMaxIdleConns(cfg.MaxIdleConnections)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConnections)
	sqlDB.SetConnMaxIdleTime(maxIdleTime)
	sqlDB.SetConnMaxLifetime(maxLifetime)

	logger.Info().Msgf("mysql connected: max_idle=%d, max_open=%d, max_idle_time=%v, max_lifetime=%v",
		cfg.MaxIdleConnections, cfg.MaxOpenConnections, maxIdleTime, maxLifetime)

	return conn, nil
}

// Close 关闭连接
func Close(conn *gorm.DB) {
	if conn == nil {
		return
	}
	sqlDB, err := conn.DB()
	if err != nil {
		logger.Error().Err(err).Msg("get sql.DB failed")
		return
	}
	if err = sqlDB.Close(); err != nil {
		logger.Error().Err(err).Msg("close db failed")
		return
	}

	logger.Info().Msg("db closed")
}

// ChainTables 指定链的表名与模型
func ChainTables(chainID int64) map[string]any {
	return map[string]any{
		models.LimitOrderTable(chainID):    &models.LimitOrder{},
		models.ExecutedOrderTable(chainID): &models.ExecutedOrder{},
		models.OrderCounterTable(chainID):  &models.OrderCounter{},
	}
}

// AutoMigrate 迁移指定链的分表
// 失败时记录警告日志，不中断服务启动
func AutoMigrate(conn *gorm.DB, chainID int64) {
	if conn == nil {
		log.Error().Msg("database not initialized, skip auto migration")
		return
	}

	for table, model := range ChainTables(chainID) {
		if err := conn.Table(table).AutoMigrate(model); err != nil {
			log.Warn().Err(err).
				Str("table", table).
				Msg("auto migrate failed, continuing anyway")
		} else {
			log.Info().Str("table", table).Msg("auto migrate success")
		}
	}
}
