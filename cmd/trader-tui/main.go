package main

import (
	"flag"
	"fmt"
	"log"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
)

const maxTableRows = 12

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("62")).
			Padding(0, 1)

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15"))

	profitStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("2")) // 绿色

	lossStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("1")) // 红色

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	alertStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("1")).
			Padding(0, 1)
)

// 面板接口的响应结构，字段与 /api/dashboard 一一对应
type summaryData struct {
	TotalTrades   int             `json:"total_trades"`
	ClosedTrades  int             `json:"closed_trades"`
	WinRate       decimal.Decimal `json:"win_rate"`
	TotalPnL      decimal.Decimal `json:"total_pnl"`
	OpenPositions int             `json:"open_positions"`
	ActiveTokens  int             `json:"active_tokens"`
}

type walletData struct {
	Address  string          `json:"address"`
	ETH      decimal.Decimal `json:"eth"`
	WETH     decimal.Decimal `json:"weth"`
	USDC     decimal.Decimal `json:"usdc"`
	ETHPrice decimal.Decimal `json:"eth_price"`
}

type positionData struct {
	Symbol       string          `json:"symbol"`
	ChainName    string          `json:"chain_name"`
	Status       string          `json:"status"`
	EntryPrice   decimal.Decimal `json:"entry_price"`
	CurrentPrice decimal.Decimal `json:"current_price"`
	Amount       decimal.Decimal `json:"amount"`
	ValueUSD     decimal.Decimal `json:"value_usd"`
	TakeProfit   decimal.Decimal `json:"take_profit"`
	StopLoss     decimal.Decimal `json:"stop_loss"`
	PnL          decimal.Decimal `json:"unrealized_pnl"`
	PnLPct       decimal.Decimal `json:"unrealized_pnl_pct"`
}

type tradeData struct {
	Symbol    string          `json:"symbol"`
	ChainName string          `json:"chain_name"`
	Side      string          `json:"side"`
	Price     decimal.Decimal `json:"price"`
	Amount    decimal.Decimal `json:"amount"`
	PnL       decimal.Decimal `json:"pnl"`
	Time      time.Time       `json:"timestamp"`
}

type emergencyData struct {
	StopActive    bool `json:"stop_active"`
	SellAllActive bool `json:"sell_all_active"`
}

type dashboardData struct {
	Summary   summaryData    `json:"summary"`
	Wallet    walletData     `json:"wallet"`
	Positions []positionData `json:"positions"`
	Completed []tradeData    `json:"completed"`
	Emergency emergencyData  `json:"emergency"`
}

type tickMsg time.Time

type dashMsg *dashboardData

type errMsg struct{ err error }

type model struct {
	apiBase string
	http    *resty.Client

	dash       *dashboardData
	err        error
	lastUpdate time.Time
}

func initialModel(apiBase string) model {
	return model{
		apiBase: strings.TrimRight(apiBase, "/"),
		http: resty.New().
			SetTimeout(5 * time.Second),
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(tickCmd(), fetchCmd(m.http, m.apiBase))
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "r":
			return m, fetchCmd(m.http, m.apiBase)
		}

	case tickMsg:
		return m, tea.Batch(tickCmd(), fetchCmd(m.http, m.apiBase))

	case dashMsg:
		m.dash = msg
		m.err = nil
		m.lastUpdate = time.Now()
		return m, nil

	case errMsg:
		m.err = msg.err
		return m, nil
	}
	return m, nil
}

func (m model) View() string {
	var s strings.Builder

	if m.dash == nil {
		if m.err != nil {
			return fmt.Sprintf("连接 %s 失败: %v\n\n按 q 退出\n", m.apiBase, m.err)
		}
		return "正在连接交易机器人...\n\n按 q 退出\n"
	}

	d := m.dash
	header := fmt.Sprintf("钱包 %s | %s ETH  %s WETH  %s USDC | ETH $%s",
		shortAddr(d.Wallet.Address),
		d.Wallet.ETH.StringFixed(4), d.Wallet.WETH.StringFixed(4), d.Wallet.USDC.StringFixed(2),
		d.Wallet.ETHPrice.StringFixed(2))
	s.WriteString(headerStyle.Render(header))
	s.WriteString("\n")

	pnlStr := "$" + d.Summary.TotalPnL.StringFixed(4)
	if d.Summary.TotalPnL.IsNegative() {
		pnlStr = lossStyle.Render(pnlStr)
	} else {
		pnlStr = profitStyle.Render(pnlStr)
	}
	s.WriteString(fmt.Sprintf("累计盈亏 %s | 胜率 %s%% (%d 平仓) | 活跃代币 %d\n",
		pnlStr, d.Summary.WinRate.StringFixed(1), d.Summary.ClosedTrades, d.Summary.ActiveTokens))

	if d.Emergency.StopActive {
		s.WriteString(alertStyle.Render("紧急停止已触发"))
		s.WriteString("\n")
	}
	if d.Emergency.SellAllActive {
		s.WriteString(alertStyle.Render("清仓进行中"))
		s.WriteString("\n")
	}
	s.WriteString("\n")

	s.WriteString(titleStyle.Render(fmt.Sprintf("持仓 (%d)", len(d.Positions))))
	s.WriteString("\n")
	s.WriteString(renderPositions(d.Positions))
	s.WriteString("\n")

	s.WriteString(titleStyle.Render("最近平仓"))
	s.WriteString("\n")
	s.WriteString(renderCompleted(d.Completed))
	s.WriteString("\n")

	s.WriteString(dimStyle.Render(fmt.Sprintf("更新于 %s | r 刷新 | q 退出",
		m.lastUpdate.Format("15:04:05"))))
	if m.err != nil {
		s.WriteString(dimStyle.Render(fmt.Sprintf(" | 上次请求失败: %v", m.err)))
	}
	s.WriteString("\n")
	return s.String()
}

func renderPositions(positions []positionData) string {
	if len(positions) == 0 {
		return dimStyle.Render("  （空仓）") + "\n"
	}

	var s strings.Builder
	s.WriteString(dimStyle.Render(fmt.Sprintf("  %-8s %-10s %-12s %12s %12s %12s %14s %8s\n",
		"代币", "链", "状态", "入场价", "现价", "市值", "浮动盈亏", "幅度")))
	for i, p := range positions {
		if i >= maxTableRows {
			s.WriteString(dimStyle.Render(fmt.Sprintf("  …… 其余 %d 条\n", len(positions)-maxTableRows)))
			break
		}
		pnl := fmt.Sprintf("$%s", p.PnL.StringFixed(4))
		pct := p.PnLPct.StringFixed(2) + "%"
		line := fmt.Sprintf("  %-8s %-10s %-12s %12s %12s %12s %14s %8s\n",
			p.Symbol, p.ChainName, p.Status,
			p.EntryPrice.StringFixed(6), p.CurrentPrice.StringFixed(6),
			"$"+p.ValueUSD.StringFixed(2), pnl, pct)
		if p.PnL.IsNegative() {
			s.WriteString(lossStyle.Render(line))
		} else {
			s.WriteString(profitStyle.Render(line))
		}
	}
	return s.String()
}

func renderCompleted(trades []tradeData) string {
	if len(trades) == 0 {
		return dimStyle.Render("  （暂无平仓记录）") + "\n"
	}

	var s strings.Builder
	for i, t := range trades {
		if i >= maxTableRows {
			break
		}
		pnl := "$" + t.PnL.StringFixed(4)
		line := fmt.Sprintf("  %s  %-8s %-10s %12s × %-12s %12s\n",
			t.Time.Format("01-02 15:04"), t.Symbol, t.ChainName,
			t.Price.StringFixed(6), t.Amount.StringFixed(4), pnl)
		if t.PnL.IsNegative() {
			s.WriteString(lossStyle.Render(line))
		} else {
			s.WriteString(profitStyle.Render(line))
		}
	}
	return s.String()
}

func shortAddr(addr string) string {
	if len(addr) <= 12 {
		return addr
	}
	return addr[:8] + "…" + addr[len(addr)-4:]
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func fetchCmd(client *resty.Client, apiBase string) tea.Cmd {
	return func() tea.Msg {
		var dash dashboardData
		resp, err := client.R().
			SetResult(&dash).
			Get(apiBase + "/api/dashboard")
		if err != nil {
			return errMsg{err}
		}
		if resp.StatusCode() != 200 {
			return errMsg{fmt.Errorf("HTTP %d", resp.StatusCode())}
		}
		return dashMsg(&dash)
	}
}

func main() {
	apiBase := flag.String("api", "http://localhost:4000", "交易机器人 API 地址")
	flag.Parse()

	p := tea.NewProgram(initialModel(*apiBase), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		log.Fatalf("运行程序失败: %v", err)
	}
}
