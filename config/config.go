package config

import (
	"os"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cast"
	"go.uber.org/multierr"

	"github.com/utrading/utrading-limit-relayer/internal/order"
	"github.com/utrading/utrading-limit-relayer/pkg/logger"
)

// 默认 receiver（多链统一部署的 settlement receiver）
const DefaultReceiverAddress = "0x802290173908ed30A9642D6872e252Ef4f6e59A2"

type Relayer struct {
	ChainID             int64             `toml:"chain_id"`
	ReceiverAddresses   map[string]string `toml:"receiver_addresses"` // key: chain id
	ProfitReceiver      string            `toml:"profit_receiver"`
	ProfitTokens        []string          `toml:"profit_tokens"` // 越靠前优先级越高，空时使用网络默认列表
	DebounceWindow      time.Duration     `toml:"debounce_window"`
	WorkerPoolSize      int               `toml:"worker_pool_size"`
	RestoreDedup        bool              `toml:"restore_dedup"`
	HealthServerAddr    string            `toml:"health_server_addr"`
	ExpirySweepInterval time.Duration     `toml:"expiry_sweep_interval"`
	ExpirySweepBatch    int               `toml:"expiry_sweep_batch"`
}

type Chain struct {
	RPCURL            string `toml:"rpc_url"`
	PrivateKey        string `toml:"private_key"`
	LimitOrderAddress string `toml:"limit_order_address"`
	PairFactory       string `toml:"pair_factory"`
	PairInitCodeHash  string `toml:"pair_init_code_hash"`
	TokenListPath     string `toml:"token_list_path"`
	GasLimit          uint64 `toml:"gas_limit"`
}

type MySQL struct {
	Driver             string   `toml:"driver"` // mysql | sqlite
	DSN                string   `toml:"dsn"`
	SlaveAddr          []string `toml:"slave_addr"`
	MaxIdleConnections int      `toml:"max_idle_connections"`
	MaxOpenConnections int      `toml:"max_open_connections"`
	SetConnMaxLifetime int      `toml:"set_conn_max_lifetime"`
	SetConnMaxIdleTime int      `toml:"set_conn_max_idle_time"`
	ProxyEnabled       bool     `toml:"proxy_enabled"`
	ProxyAddr          string   `toml:"proxy_addr"`
}

type NATS struct {
	Endpoint      string `toml:"endpoint"`
	SubjectPrefix string `toml:"subject_prefix"`
}

type Logger struct {
	Dir        string `toml:"dir"`
	Level      string `toml:"level"`
	MaxSize    int    `toml:"max_size"`
	MaxBackups int    `toml:"max_backups"`
	MaxAge     int    `toml:"max_age"`
	Compress   bool   `toml:"compress"`
	Console    bool   `toml:"console"`
	JSON       bool   `toml:"json"`
}

type BatchWriter struct {
	BatchSize     int           `toml:"batch_size"`
	FlushInterval time.Duration `toml:"flush_interval"`
	MaxQueueSize  int           `toml:"max_queue_size"`
}

type Config struct {
	Relayer     Relayer     `toml:"relayer"`
	Chain       Chain       `toml:"chain"`
	MySQL       MySQL       `toml:"mysql"`
	NATS        NATS        `toml:"nats"`
	Logger      Logger      `toml:"log"`
	BatchWriter BatchWriter `toml:"batch_writer"`
}

var (
	cfg         *Config
	cfgPath     string
	cfgLock     sync.RWMutex
	lastModTime time.Time
	stopChan    chan struct{}
)

func Default() *Config {
	return &Config{
		Relayer: Relayer{
			ChainID: 1,
			ReceiverAddresses: map[string]string{
				"1":   DefaultReceiverAddress,
				"137": DefaultReceiverAddress,
			},
			DebounceWindow:      180 * time.Second,
			WorkerPoolSize:      32,
			RestoreDedup:        true,
			HealthServerAddr:    "0.0.0.0:16800",
			ExpirySweepInterval: time.Minute,
			ExpirySweepBatch:    500,
		},
		Chain: Chain{
			RPCURL:   "http://localhost:8545",
			GasLimit: 600000,
		},
		MySQL: MySQL{
			Driver:             "mysql",
			DSN:                "root:password@tcp(localhost:3306)/limit_relayer?charset=utf8mb4&parseTime=True&loc=UTC",
			SlaveAddr:          []string{},
			MaxIdleConnections: 16,
			MaxOpenConnections: 64,
			SetConnMaxLifetime: 7200,
			SetConnMaxIdleTime: 3600,
			ProxyEnabled:       false,
			ProxyAddr:          "127.0.0.1:7890",
		},
		NATS: NATS{
			Endpoint:      "nats://localhost:4222",
			SubjectPrefix: "limit",
		},
		Logger: Logger{
			Dir:        "logs",
			Level:      "info",
			MaxSize:    10,
			MaxBackups: 60,
			MaxAge:     7,
			Compress:   false,
			Console:    false,
		},
		BatchWriter: BatchWriter{
			BatchSize:     100,
			FlushInterval: 200 * time.Millisecond,
			MaxQueueSize:  10000,
		},
	}
}

// ReceiverAddress 返回指定链的 receiver 地址
func (c *Config) ReceiverAddress(chainID int64) (string, bool) {
	addr, ok := c.Relayer.ReceiverAddresses[cast.ToString(chainID)]
	return addr, ok && addr != ""
}

// ReceiverMap chain id -> receiver，忽略无法解析的 key
func (c *Config) ReceiverMap() map[int64]string {
	out := make(map[int64]string, len(c.Relayer.ReceiverAddresses))
	for k, v := range c.Relayer.ReceiverAddresses {
		id, err := cast.ToInt64E(k)
		if err != nil {
			continue
		}
		out[id] = v
	}
	return out
}

// Validate 检查必需配置，返回全部问题（均可用 errors.Is 匹配 order.ErrConfiguration）
func (c *Config) Validate() error {
	var err error
	if c.Relayer.ChainID == 0 {
		err = multierr.Append(err, order.Configurationf("relayer.chain_id is required"))
	} else if addr, ok := c.ReceiverAddress(c.Relayer.ChainID); !ok {
		err = multierr.Append(err, order.Configurationf("relayer.receiver_addresses has no entry for chain %d", c.Relayer.ChainID))
	} else if !validAddress(addr) {
		err = multierr.Append(err, order.Configurationf("relayer.receiver_addresses[%d] is not a valid address: %q", c.Relayer.ChainID, addr))
	}
	if c.Relayer.ProfitReceiver == "" {
		err = multierr.Append(err, order.Configurationf("relayer.profit_receiver is required"))
	} else if !validAddress(c.Relayer.ProfitReceiver) {
		err = multierr.Append(err, order.Configurationf("relayer.profit_receiver is not a valid address: %q", c.Relayer.ProfitReceiver))
	}
	if c.Relayer.DebounceWindow <= 0 {
		err = multierr.Append(err, order.Configurationf("relayer.debounce_window must be positive"))
	}
	if c.MySQL.DSN == "" {
		err = multierr.Append(err, order.Configurationf("mysql.dsn is required"))
	}
	return err
}

// validAddress 非零的 0x 十六进制地址
func validAddress(s string) bool {
	return common.IsHexAddress(s) && common.HexToAddress(s) != (common.Address{})
}

func Load(path string) error {
	c := Default()
	if _, err := toml.DecodeFile(path, c); err != nil {
		return err
	}

	info, err := os.Stat(path)
	if err != nil {
		return err
	}

	cfgLock.Lock()
	defer cfgLock.Unlock()
	cfg = c
	cfgPath = path
	lastModTime = info.ModTime()

	return nil
}

func Get() *Config {
	cfgLock.RLock()
	defer cfgLock.RUnlock()
	return cfg
}

// Init 初始化配置并启动定期重载（默认10秒）
func Init(path string) error {
	return InitWithInterval(path, 10*time.Second)
}

// InitWithInterval 初始化配置并指定重载间隔
// 链 ID、DSN 等启动参数重载后不会生效，仅影响运行期读取 Get() 的调用方
func InitWithInterval(path string, interval time.Duration) error {
	if err := Load(path); err != nil {
		return err
	}

	stopChan = make(chan struct{})
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				reloadIfNeeded()
			case <-stopChan:
				return
			}
		}
	}()

	return nil
}

// Stop 停止配置重载
func Stop() {
	if stopChan != nil {
		close(stopChan)
		stopChan = nil
	}
}

// reloadIfNeeded 仅在文件修改时重载
func reloadIfNeeded() {
	cfgLock.RLock()
	path := cfgPath
	lastMod := lastModTime
	cfgLock.RUnlock()

	if path == "" {
		return
	}

	info, err := os.Stat(path)
	if err != nil {
		logger.Error().Err(err).Msg("config stat failed")
		return
	}

	if info.ModTime().After(lastMod) {
		if err = Load(path); err != nil {
			logger.Error().Err(err).Msg("config reload failed")
		} else {
			logger.Info().Msg("config reloaded")
		}
	}
}
