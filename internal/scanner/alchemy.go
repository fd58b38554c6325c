package scanner

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/tokenbot/gotrader/internal/chains"
)

// alchemy_getAssetTransfers 请求与响应
// 只有 Alchemy 系端点支持该方法，普通节点会报 method not found，
// 调用方拿到错误后换 Etherscan。

type alchemyRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type alchemyTransferParams struct {
	ToAddress    string   `json:"toAddress"`
	Category     []string `json:"category"`
	Order        string   `json:"order"`
	MaxCount     string   `json:"maxCount"`
	WithMetadata bool     `json:"withMetadata"`
}

type alchemyResponse struct {
	Result struct {
		Transfers []struct {
			From        string      `json:"from"`
			To          string      `json:"to"`
			Asset       string      `json:"asset"`
			Value       json.Number `json:"value"`
			Hash        string      `json:"hash"`
			BlockNum    string      `json:"blockNum"`
			RawContract struct {
				Address string `json:"address"`
				Decimal string `json:"decimal"`
			} `json:"rawContract"`
		} `json:"transfers"`
	} `json:"result"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// alchemyHosts 各链的 Alchemy 托管端点
var alchemyHosts = map[uint64]string{
	1:        "eth-mainnet.g.alchemy.com",
	11155111: "eth-sepolia.g.alchemy.com",
	8453:     "base-mainnet.g.alchemy.com",
	84532:    "base-sepolia.g.alchemy.com",
	42161:    "arb-mainnet.g.alchemy.com",
	421614:   "arb-sepolia.g.alchemy.com",
	137:      "polygon-mainnet.g.alchemy.com",
	10:       "opt-mainnet.g.alchemy.com",
}

// alchemyEndpoint 配了 ALCHEMY_API_KEY 且链有托管端点时走专用端点，
// 否则退回该链配置的 RPC（RPC 本身是 Alchemy 端点时一样能用）。
func (s *Scanner) alchemyEndpoint(cctx *chains.Context) string {
	if s.alchemyKey == "" {
		return cctx.RPCURL
	}
	host, ok := alchemyHosts[cctx.ChainID()]
	if !ok {
		return cctx.RPCURL
	}
	return "https://" + host + "/v2/" + s.alchemyKey
}

// alchemyTransfers 最近 100 笔打进钱包的 ERC20 转账，新的在前
func (s *Scanner) alchemyTransfers(ctx context.Context, rpcURL string) ([]transferIn, error) {
	req := alchemyRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "alchemy_getAssetTransfers",
		Params: []any{
			alchemyTransferParams{
				ToAddress:    s.wallet.Hex(),
				Category:     []string{"erc20"},
				Order:        "desc",
				MaxCount:     "0x64",
				WithMetadata: true,
			},
		},
	}

	var resp alchemyResponse
	httpResp, err := s.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(req).
		SetResult(&resp).
		Post(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("alchemy 请求失败: %w", err)
	}
	if httpResp.StatusCode() != 200 {
		return nil, errors.Errorf("alchemy http non-2xx: %d", httpResp.StatusCode())
	}
	if resp.Error != nil {
		return nil, errors.Errorf("alchemy 错误 %d: %s", resp.Error.Code, resp.Error.Message)
	}

	out := make([]transferIn, 0, len(resp.Result.Transfers))
	for _, tr := range resp.Result.Transfers {
		out = append(out, transferIn{
			From:     tr.From,
			Token:    tr.RawContract.Address,
			Symbol:   tr.Asset,
			Decimals: int32(parseHex(tr.RawContract.Decimal, 18)),
			Amount:   tr.Value.String(),
			TxHash:   tr.Hash,
			Block:    uint64(parseHex(tr.BlockNum, 0)),
		})
	}
	return out, nil
}

// parseHex 解析 0x 前缀的十六进制数，失败返回 fallback
func parseHex(s string, fallback int64) int64 {
	s = strings.TrimPrefix(strings.TrimSpace(s), "0x")
	if s == "" {
		return fallback
	}
	v, err := strconv.ParseInt(s, 16, 64)
	if err != nil {
		return fallback
	}
	return v
}
