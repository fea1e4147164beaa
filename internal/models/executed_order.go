package models

import (
	"fmt"
	"time"
)

// ExecutedOrder 执行回执表（按链分表：executed_orders_<chainId>）
type ExecutedOrder struct {
	ID         uint64      `gorm:"primaryKey;autoIncrement" json:"id"`
	Digest     string      `gorm:"type:varchar(66);not null;index" json:"digest"`
	Order      OrderFields `gorm:"embedded;embeddedPrefix:order_" json:"order"`
	FillAmount string      `gorm:"type:varchar(80);not null" json:"fill_amount"`
	TxHash     string      `gorm:"type:varchar(66);not null;uniqueIndex;comment:交易哈希" json:"tx_hash"`
	Status     int8        `gorm:"not null;comment:-1 unknown, 0 failed, 1 passed" json:"status"`

	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (ExecutedOrder) TableName() string {
	return "executed_orders"
}

// ExecutedOrderTable 指定链的执行回执表名
func ExecutedOrderTable(chainID int64) string {
	return fmt.Sprintf("executed_orders_%d", chainID)
}
