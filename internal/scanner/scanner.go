package scanner

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-resty/resty/v2"

	"github.com/tokenbot/gotrader/internal/chains"
	"github.com/tokenbot/gotrader/internal/config"
	"github.com/tokenbot/gotrader/internal/discovery"
	"github.com/tokenbot/gotrader/internal/domain"
	"github.com/tokenbot/gotrader/internal/registry"
	"github.com/tokenbot/gotrader/internal/whitelist"
	"github.com/tokenbot/gotrader/pkg/logger"
)

// transferIn 统一后的到账记录（Alchemy 与 Etherscan 两个来源归一到同一形状）
type transferIn struct {
	From     string
	Token    string
	Symbol   string
	Decimals int32
	Amount   string // 人类单位数量文本，仅用于审计事件
	TxHash   string
	Block    uint64
}

// Scanner 钱包转账扫描
// 没有定时器：只在启动时和每笔成交落账后各扫一次，其余时间完全不动。
type Scanner struct {
	chains       *chains.Manager
	reg          *registry.Registry
	wl           *whitelist.Store
	scout        *discovery.Scout
	wallet       common.Address
	http         *resty.Client
	alchemyKey   string
	etherscanKey string
}

// NewScanner 创建扫描器
func NewScanner(m *chains.Manager, reg *registry.Registry, wl *whitelist.Store, scout *discovery.Scout, wallet common.Address, scanCfg config.ScanConfig) *Scanner {
	client := resty.New().
		SetTimeout(15 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(1 * time.Second)
	return &Scanner{
		chains:       m,
		reg:          reg,
		wl:           wl,
		scout:        scout,
		wallet:       wallet,
		http:         client,
		alchemyKey:   scanCfg.AlchemyAPIKey,
		etherscanKey: scanCfg.EtherscanAPIKey,
	}
}

// Scan 扫一轮所有启用链上的白名单到账
// 单链失败只跳过该链，返回本轮新激活的代币数。
func (s *Scanner) Scan(ctx context.Context) int {
	senders, err := s.wl.ListSenders(ctx)
	if err != nil {
		logger.Errorf("读取白名单发送者失败: %v", err)
		return 0
	}
	if len(senders) == 0 {
		logger.Infof("白名单发送者为空，跳过扫描")
		return 0
	}
	senderSet := make(map[string]bool, len(senders))
	for _, sd := range senders {
		senderSet[domain.NormalizeAddress(sd.Address)] = true
	}

	activated := 0
	for _, cctx := range s.chains.All() {
		n, err := s.scanChain(ctx, cctx, senderSet)
		activated += n
		if err != nil {
			logger.Warnf("%s 转账扫描失败，跳过该链: %v", cctx.Config.Name, err)
		}
	}

	// 补扫：库里已有但还没激活的代币，余额仍在的重新拉起来
	activated += s.registrySweep(ctx)

	if activated > 0 {
		logger.Infof("扫描完成: 激活 %d 个代币", activated)
	} else {
		logger.Infof("扫描完成: 没有新代币")
	}
	return activated
}

// scanChain 单链扫描：先走 Alchemy，失败换 Etherscan
func (s *Scanner) scanChain(ctx context.Context, cctx *chains.Context, senders map[string]bool) (int, error) {
	cfg := cctx.Config
	transfers, err := s.alchemyTransfers(ctx, s.alchemyEndpoint(cctx))
	if err != nil {
		logger.Debugf("%s Alchemy 扫描失败，改用 Etherscan: %v", cfg.Name, err)
		transfers, err = s.etherscanTransfers(ctx, cfg.ChainID)
		if err != nil {
			return 0, err
		}
	}

	// 报价币本身不作为交易标的
	skip := map[string]bool{
		domain.NormalizeAddress(cfg.USDC.Hex()): true,
		domain.NormalizeAddress(cfg.WETH.Hex()): true,
	}

	activated := 0
	for _, tr := range transfers {
		sender := domain.NormalizeAddress(tr.From)
		if !senders[sender] {
			continue
		}
		token := domain.NormalizeAddress(tr.Token)
		if token == "" || skip[token] {
			continue
		}

		existing, err := s.reg.GetToken(ctx, cfg.ChainID, token)
		if err != nil {
			logger.Errorf("查询代币 %s 失败: %v", token, err)
			continue
		}
		if existing != nil && existing.Active {
			continue
		}

		tokenAddr := common.HexToAddress(token)
		decimals := cctx.TokenDecimals(ctx, tokenAddr)
		balance, err := cctx.BalanceOf(ctx, tokenAddr, s.wallet)
		if err != nil {
			logger.Debugf("读取 %s 余额失败: %v", token, err)
			continue
		}
		human := chains.FromWei(balance, decimals)
		if !human.IsPositive() {
			continue
		}

		symbol := cctx.TokenSymbol(ctx, tokenAddr)
		if symbol == "???" && tr.Symbol != "" {
			symbol = tr.Symbol
		}

		if err := s.wl.LogTransfer(ctx, &whitelist.Event{
			Token:   token,
			ChainID: cfg.ChainID,
			Sender:  sender,
			Amount:  tr.Amount,
			Block:   tr.Block,
			TxHash:  tr.TxHash,
			Actor:   "scanner",
		}); err != nil {
			logger.Debugf("记录到账事件失败: %v", err)
		}

		if err := s.wl.WhitelistToken(ctx, &whitelist.Token{
			Address: token,
			ChainID: cfg.ChainID,
			Symbol:  symbol,
			Sender:  sender,
			Auto:    true,
		}); err != nil {
			logger.Warnf("自动加白失败 %s: %v", symbol, err)
			continue
		}
		allowed, err := s.wl.IsTokenWhitelisted(ctx, token, cfg.ChainID)
		if err != nil || !allowed {
			logger.Infof("[扫描] %s@%s 已被拉黑，跳过", symbol, cfg.Name)
			continue
		}

		logger.Infof("[扫描] %s@%s 来自 %s... 余额 %s", symbol, cfg.Name, sender[:10], human)
		if err := s.activate(ctx, cfg.ChainID, token, symbol, decimals); err != nil {
			logger.Warnf("[扫描] %s@%s 激活失败: %v", symbol, cfg.Name, err)
			continue
		}
		activated++
	}
	return activated, nil
}

// registrySweep 把库里余额仍在、池子可定价但未激活的代币重新激活
func (s *Scanner) registrySweep(ctx context.Context) int {
	tokens, err := s.reg.ListTokens(ctx)
	if err != nil {
		logger.Errorf("读取代币列表失败: %v", err)
		return 0
	}

	activated := 0
	for _, t := range tokens {
		if t.Active {
			continue
		}
		cctx, ok := s.chains.Get(t.ChainID)
		if !ok {
			continue
		}
		cfg := cctx.Config
		addr := domain.NormalizeAddress(t.Address)
		if addr == domain.NormalizeAddress(cfg.USDC.Hex()) || addr == domain.NormalizeAddress(cfg.WETH.Hex()) {
			continue
		}
		allowed, err := s.wl.IsTokenWhitelisted(ctx, addr, t.ChainID)
		if err != nil || !allowed {
			continue
		}

		tokenAddr := common.HexToAddress(addr)
		decimals := t.Decimals
		if decimals == 0 {
			decimals = cctx.TokenDecimals(ctx, tokenAddr)
		}
		balance, err := cctx.BalanceOf(ctx, tokenAddr, s.wallet)
		if err != nil {
			continue
		}
		human := chains.FromWei(balance, decimals)
		if !human.IsPositive() {
			continue
		}

		if err := s.activate(ctx, t.ChainID, addr, t.Symbol, decimals); err != nil {
			logger.Debugf("[补扫] %s 激活失败: %v", t.Symbol, err)
			continue
		}
		logger.Infof("[补扫] %s@%s 余额 %s", t.Symbol, cfg.Name, human)
		activated++
	}
	return activated
}

// activate 先确认有可定价的池子，再登记并激活
// 找不到池子的代币留在未激活状态，不用任何别的价格来源兜底。
func (s *Scanner) activate(ctx context.Context, chainID uint64, token, symbol string, decimals int32) error {
	if _, err := s.scout.EnsurePool(ctx, chainID, token); err != nil {
		return err
	}
	if err := s.reg.UpsertToken(ctx, &domain.Token{
		Address:  token,
		ChainID:  chainID,
		Symbol:   symbol,
		Name:     symbol,
		Decimals: decimals,
	}); err != nil {
		return err
	}
	return s.reg.SetTokenActive(ctx, chainID, token, true)
}
