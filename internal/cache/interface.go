package cache

import "github.com/ethereum/go-ethereum/common"

// DedupGuard 执行去重接口
type DedupGuard interface {
	AlreadyExecuting(digest common.Hash) bool
	Remove(digest common.Hash)
	Stats() map[string]any
}

var _ DedupGuard = (*ExecutionDedup)(nil)
