package token

// 各网络偏好的利润资产，越靠前优先级越高
var defaultProfitTokens = map[int64][]string{
	1:   {"WETH", "USDC", "USDT", "DAI", "WBTC"},
	137: {"WMATIC", "WETH", "USDC", "USDT", "DAI", "WBTC"},
}

// DefaultProfitTokens 返回网络默认利润资产列表（副本）
func DefaultProfitTokens(chainID int64) []string {
	src := defaultProfitTokens[chainID]
	out := make([]string, len(src))
	copy(out, src)
	return out
}
