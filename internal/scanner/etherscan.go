package scanner

import (
	"context"
	"fmt"
	"math/big"
	"strconv"

	"github.com/pkg/errors"

	"github.com/tokenbot/gotrader/internal/chains"
	"github.com/tokenbot/gotrader/internal/domain"
)

// etherscanURLs 各链的区块浏览器 API 端点
var etherscanURLs = map[uint64]string{
	1:        "https://api.etherscan.io/api",
	11155111: "https://api-sepolia.etherscan.io/api",
	10:       "https://api-optimistic.etherscan.io/api",
	137:      "https://api.polygonscan.com/api",
	42161:    "https://api.arbiscan.io/api",
	421614:   "https://api-sepolia.arbiscan.io/api",
	8453:     "https://api.basescan.org/api",
	84532:    "https://api-sepolia.basescan.org/api",
}

type etherscanTokenTxResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Result  []struct {
		From            string `json:"from"`
		To              string `json:"to"`
		ContractAddress string `json:"contractAddress"`
		TokenSymbol     string `json:"tokenSymbol"`
		TokenDecimal    string `json:"tokenDecimal"`
		Value           string `json:"value"`
		Hash            string `json:"hash"`
		BlockNumber     string `json:"blockNumber"`
	} `json:"result"`
}

// etherscanTransfers 浏览器 API 兜底：account/tokentx 最近 100 笔
func (s *Scanner) etherscanTransfers(ctx context.Context, chainID uint64) ([]transferIn, error) {
	if s.etherscanKey == "" {
		return nil, errors.New("未配置 ETHERSCAN_API_KEY")
	}
	baseURL, ok := etherscanURLs[chainID]
	if !ok {
		return nil, fmt.Errorf("链 %d 没有浏览器 API 端点", chainID)
	}

	var resp etherscanTokenTxResponse
	httpResp, err := s.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"module":  "account",
			"action":  "tokentx",
			"address": s.wallet.Hex(),
			"sort":    "desc",
			"page":    "1",
			"offset":  "100",
			"apikey":  s.etherscanKey,
		}).
		SetResult(&resp).
		Get(baseURL)
	if err != nil {
		return nil, errors.Wrap(err, "etherscan 请求失败")
	}
	if httpResp.StatusCode() != 200 {
		return nil, errors.Errorf("etherscan http non-2xx: %d", httpResp.StatusCode())
	}
	// status=0 且无记录时 message 是 "No transactions found"，不算错误
	if resp.Status != "1" {
		if len(resp.Result) == 0 {
			return nil, nil
		}
		return nil, fmt.Errorf("etherscan 错误: %s", resp.Message)
	}

	wallet := domain.NormalizeAddress(s.wallet.Hex())
	out := make([]transferIn, 0, len(resp.Result))
	for _, tx := range resp.Result {
		if domain.NormalizeAddress(tx.To) != wallet {
			continue
		}
		decimals := int32(18)
		if d, err := strconv.ParseInt(tx.TokenDecimal, 10, 32); err == nil {
			decimals = int32(d)
		}
		amount := ""
		if raw, ok := new(big.Int).SetString(tx.Value, 10); ok {
			amount = chains.FromWei(raw, decimals).String()
		}
		block, _ := strconv.ParseUint(tx.BlockNumber, 10, 64)
		out = append(out, transferIn{
			From:     tx.From,
			Token:    tx.ContractAddress,
			Symbol:   tx.TokenSymbol,
			Decimals: decimals,
			Amount:   amount,
			TxHash:   tx.Hash,
			Block:    block,
		})
	}
	return out, nil
}
