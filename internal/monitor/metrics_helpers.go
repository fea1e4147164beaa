package monitor

// 便捷函数供外部调用，无需访问 Metrics 实例

// IncExecution 增加执行结果计数
func IncExecution(result string) {
	GetMetrics().IncExecution(result)
}

// ObserveExecutionBatch 观察批次大小
func ObserveExecutionBatch(size int) {
	GetMetrics().ObserveExecutionBatch(size)
}

// ObserveFillDuration 观察 fill 耗时
func ObserveFillDuration(seconds float64) {
	GetMetrics().ObserveFillDuration(seconds)
}

// SetDedupEntries 设置去重表条目数
func SetDedupEntries(count int) {
	GetMetrics().SetDedupEntries(count)
}

// IncOrdersSaved 增加订单保存计数
func IncOrdersSaved(result string) {
	GetMetrics().IncOrdersSaved(result)
}

// AddReceiptsPersisted 增加回执写入计数
func AddReceiptsPersisted(result string, count int) {
	GetMetrics().AddReceiptsPersisted(result, count)
}

// AddOrdersInvalidated 增加失效订单计数
func AddOrdersInvalidated(count int64) {
	GetMetrics().AddOrdersInvalidated(count)
}

// SetNATSConnected 设置NATS连接状态
func SetNATSConnected(connected bool) {
	GetMetrics().SetNATSConnected(connected)
}

// IncNATSReceived 增加接收消息计数
func IncNATSReceived(subject string) {
	GetMetrics().IncNATSReceived(subject)
}

// IncNATSPublishError 增加发布失败计数
func IncNATSPublishError(subject string) {
	GetMetrics().IncNATSPublishError(subject)
}

// SetMessageQueueSize 设置消息队列大小
func SetMessageQueueSize(size int) {
	GetMetrics().SetMessageQueueSize(size)
}

// IncMessageQueueFull 增加消息队列满事件计数
func IncMessageQueueFull() {
	GetMetrics().IncMessageQueueFull()
}

// ObserveBatchWriteSize 观察批量写入大小
func ObserveBatchWriteSize(size int) {
	GetMetrics().ObserveBatchWriteSize(size)
}

// ObserveBatchWriteDuration 观察批量写入耗时
func ObserveBatchWriteDuration(duration float64) {
	GetMetrics().ObserveBatchWriteDuration(duration)
}

// IncBatchDedupCacheHit 增加批量写入去重缓存命中计数
func IncBatchDedupCacheHit(table string) {
	GetMetrics().IncBatchDedupCacheHit(table)
}
