package models

import (
	"fmt"
	"time"
)

// LimitOrder 限价单表（按链分表：limit_orders_<chainId>）
type LimitOrder struct {
	ID          uint64 `gorm:"primaryKey;autoIncrement" json:"id"`
	Digest      string `gorm:"type:varchar(66);not null;uniqueIndex;comment:订单摘要" json:"digest"`
	Price       string `gorm:"type:varchar(80);not null" json:"price"`
	PairAddress string `gorm:"type:varchar(42);not null;index;comment:交易对地址" json:"pair_address"`
	Valid       bool   `gorm:"not null;default:true;index" json:"valid"`

	OrderFields `gorm:"embedded"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (LimitOrder) TableName() string {
	return "limit_orders"
}

// LimitOrderTable 指定链的限价单表名
func LimitOrderTable(chainID int64) string {
	return fmt.Sprintf("limit_orders_%d", chainID)
}
