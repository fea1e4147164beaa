package models

// OrderFields 限价单签名字段
// 大数统一存储为十进制字符串，时间戳存储为 BIGINT 以便范围查询
type OrderFields struct {
	Maker            string `gorm:"type:varchar(42);not null;comment:挂单地址" json:"maker"`
	TokenIn          string `gorm:"type:varchar(42);not null;index;comment:卖出 token" json:"token_in"`
	TokenOut         string `gorm:"type:varchar(42);not null;comment:买入 token" json:"token_out"`
	TokenInDecimals  uint8  `gorm:"not null" json:"token_in_decimals"`
	TokenOutDecimals uint8  `gorm:"not null" json:"token_out_decimals"`
	AmountIn         string `gorm:"type:varchar(80);not null" json:"amount_in"`
	AmountOut        string `gorm:"type:varchar(80);not null" json:"amount_out"`
	Recipient        string `gorm:"type:varchar(42);not null" json:"recipient"`
	StartTime        int64  `gorm:"not null;comment:生效时间(秒)" json:"start_time"`
	EndTime          int64  `gorm:"not null;index;comment:失效时间(秒)" json:"end_time"`
	StopPrice        string `gorm:"type:varchar(80);not null" json:"stop_price"`
	OracleAddress    string `gorm:"type:varchar(42);not null" json:"oracle_address"`
	OracleData       string `gorm:"type:text" json:"oracle_data"` // 0x 前缀 hex
	V                uint8  `gorm:"not null" json:"v"`
	R                string `gorm:"type:varchar(66);not null" json:"r"`
	S                string `gorm:"type:varchar(66);not null" json:"s"`
	ChainID          int64  `gorm:"not null" json:"chain_id"`
}
