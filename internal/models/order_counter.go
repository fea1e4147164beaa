package models

import "fmt"

// OrderCounter 每日新订单计数（仅用于运营统计）
type OrderCounter struct {
	ID      uint64 `gorm:"primaryKey;autoIncrement" json:"id"`
	Date    string `gorm:"type:varchar(10);not null;uniqueIndex;comment:日期 YYYY-MM-DD(UTC)" json:"date"`
	Counter int64  `gorm:"not null;default:0" json:"counter"`
}

func (OrderCounter) TableName() string {
	return "order_counters"
}

// OrderCounterTable 指定链的计数表名
func OrderCounterTable(chainID int64) string {
	return fmt.Sprintf("order_counters_%d", chainID)
}
