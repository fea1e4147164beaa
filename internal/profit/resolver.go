package profit

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/utrading/utrading-limit-relayer/internal/token"
	"github.com/utrading/utrading-limit-relayer/pkg/logger"
)

// TokenLookup token 注册表查询
type TokenLookup interface {
	Lookup(chainID int64, symbol string) (token.Token, bool)
}

// Resolver 决定利润保留在哪一侧资产
// 构造完成后只读，可并发使用
type Resolver struct {
	chainID    int64
	rank       map[common.Address]int
	unresolved []string
}

// NewResolver symbols 越靠前优先级越高
// 无法解析的 symbol 记录告警后跳过，其余资产仍然生效
func NewResolver(chainID int64, symbols []string, lookup TokenLookup) *Resolver {
	resolved := make([]common.Address, 0, len(symbols))
	var unresolved []string
	for _, s := range symbols {
		t, ok := lookup.Lookup(chainID, s)
		if !ok {
			unresolved = append(unresolved, s)
			logger.Warn().
				Int64("chain_id", chainID).
				Str("symbol", s).
				Msg("profit token not found in token registry")
			continue
		}
		resolved = append(resolved, t.Address)
	}

	// 反转后的下标即优先级，重复地址取最高优先级
	rank := make(map[common.Address]int, len(resolved))
	for i, addr := range resolved {
		if _, ok := rank[addr]; !ok {
			rank[addr] = len(resolved) - 1 - i
		}
	}

	logger.Info().
		Int64("chain_id", chainID).
		Strs("symbols", symbols).
		Int("resolved", len(rank)).
		Msg("profit resolver initialized")

	return &Resolver{chainID: chainID, rank: rank, unresolved: unresolved}
}

// priority 未配置的资产优先级为 -1
func (r *Resolver) priority(addr common.Address) int {
	if p, ok := r.rank[addr]; ok {
		return p
	}
	return -1
}

// KeepTokenIn tokenIn 优先级严格高于 tokenOut 时返回 true
func (r *Resolver) KeepTokenIn(tokenIn, tokenOut common.Address) bool {
	return r.priority(tokenIn) > r.priority(tokenOut)
}

// Unresolved 返回无法解析的 symbol
func (r *Resolver) Unresolved() []string {
	return r.unresolved
}
