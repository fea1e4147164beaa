package token

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cast"
	"github.com/tidwall/gjson"
)

//go:embed tokenlist.json
var defaultTokenList []byte

// Token 资产元数据
type Token struct {
	ChainID  int64
	Address  common.Address
	Symbol   string
	Name     string
	Decimals uint8
}

// Registry token 注册表，按 chainId + symbol 索引
type Registry struct {
	mu     sync.RWMutex
	tokens map[int64]map[string]Token
}

// NewRegistry 使用内置 token list 初始化
func NewRegistry() *Registry {
	r := &Registry{tokens: make(map[int64]map[string]Token)}
	if err := r.Load(defaultTokenList); err != nil {
		panic(fmt.Sprintf("embedded token list is invalid: %v", err))
	}
	return r
}

// LoadFile 从文件加载 token list，替换现有数据
func (r *Registry) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read token list failed: %w", err)
	}
	return r.Load(data)
}

// Load 解析 Uniswap 风格 token list（{"tokens":[...]}）
func (r *Registry) Load(data []byte) error {
	if !gjson.ValidBytes(data) {
		return fmt.Errorf("token list is not valid json")
	}

	list := gjson.GetBytes(data, "tokens")
	if !list.IsArray() {
		return fmt.Errorf("token list has no tokens array")
	}

	next := make(map[int64]map[string]Token)
	list.ForEach(func(_, item gjson.Result) bool {
		addr := item.Get("address").String()
		symbol := item.Get("symbol").String()
		if !common.IsHexAddress(addr) || symbol == "" {
			return true
		}

		t := Token{
			ChainID:  item.Get("chainId").Int(),
			Address:  common.HexToAddress(addr),
			Symbol:   symbol,
			Name:     item.Get("name").String(),
			Decimals: uint8(item.Get("decimals").Uint()),
		}
		if next[t.ChainID] == nil {
			next[t.ChainID] = make(map[string]Token)
		}
		// 同链同 symbol 保留第一个
		key := strings.ToUpper(symbol)
		if _, exists := next[t.ChainID][key]; !exists {
			next[t.ChainID][key] = t
		}
		return true
	})

	r.mu.Lock()
	r.tokens = next
	r.mu.Unlock()
	return nil
}

// Lookup 按 symbol 查找（大小写不敏感）
func (r *Registry) Lookup(chainID int64, symbol string) (Token, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tokens[chainID][strings.ToUpper(symbol)]
	return t, ok
}

// Tokens 返回指定链的全部 token
func (r *Registry) Tokens(chainID int64) []Token {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Token, 0, len(r.tokens[chainID]))
	for _, t := range r.tokens[chainID] {
		out = append(out, t)
	}
	return out
}

// Stats 获取统计信息
func (r *Registry) Stats() map[string]any {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := make(map[string]any, len(r.tokens))
	total := 0
	for chainID, tokens := range r.tokens {
		stats["chain_"+cast.ToString(chainID)] = len(tokens)
		total += len(tokens)
	}
	stats["total"] = total
	return stats
}
