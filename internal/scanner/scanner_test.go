package scanner

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-resty/resty/v2"

	"github.com/tokenbot/gotrader/internal/chains"
	"github.com/tokenbot/gotrader/internal/config"
)

const testWallet = "0x1111111111111111111111111111111111111111"

func newTestScanner(etherscanKey string) *Scanner {
	return &Scanner{
		wallet:       common.HexToAddress(testWallet),
		http:         resty.New(),
		etherscanKey: etherscanKey,
	}
}

func TestAlchemyEndpoint(t *testing.T) {
	cctx := &chains.Context{
		Config: config.ChainConfig{ChainID: 8453},
		RPCURL: "https://rpc.example/base",
	}

	// 没配 key 时走链自己的 RPC
	s := newTestScanner("")
	if got := s.alchemyEndpoint(cctx); got != "https://rpc.example/base" {
		t.Fatalf("无 key 应退回 RPC, got %s", got)
	}

	// 配了 key 且链有托管端点时拼专用端点
	s.alchemyKey = "test-key"
	want := "https://base-mainnet.g.alchemy.com/v2/test-key"
	if got := s.alchemyEndpoint(cctx); got != want {
		t.Fatalf("expected %s, got %s", want, got)
	}

	// 没有托管端点的链即使配了 key 也退回 RPC
	other := &chains.Context{
		Config: config.ChainConfig{ChainID: 999999},
		RPCURL: "https://rpc.example/other",
	}
	if got := s.alchemyEndpoint(other); got != "https://rpc.example/other" {
		t.Fatalf("未知链应退回 RPC, got %s", got)
	}
}

func TestAlchemyTransfers_ParsesResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":{"transfers":[
			{"from":"0xAAAA000000000000000000000000000000000001","asset":"TEST","value":1.5,
			 "hash":"0xh1","blockNum":"0x10",
			 "rawContract":{"address":"0xBBBB000000000000000000000000000000000002","decimal":"0x12"}}
		]}}`))
	}))
	defer srv.Close()

	s := newTestScanner("")
	transfers, err := s.alchemyTransfers(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("alchemyTransfers 失败: %v", err)
	}
	if len(transfers) != 1 {
		t.Fatalf("expected 1 transfer, got %d", len(transfers))
	}
	tr := transfers[0]
	if tr.Token != "0xBBBB000000000000000000000000000000000002" {
		t.Fatalf("token 解析错误: %s", tr.Token)
	}
	if tr.Decimals != 18 {
		t.Fatalf("expected decimals 18, got %d", tr.Decimals)
	}
	if tr.Block != 16 {
		t.Fatalf("expected block 16, got %d", tr.Block)
	}
	if tr.Amount != "1.5" {
		t.Fatalf("expected amount 1.5, got %s", tr.Amount)
	}
	if tr.Symbol != "TEST" {
		t.Fatalf("expected symbol TEST, got %s", tr.Symbol)
	}
}

func TestAlchemyTransfers_RPCError(t *testing.T) {
	// 普通节点不支持 alchemy_getAssetTransfers，返回 JSON-RPC 错误
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"jsonrpc":"2.0","id":1,"error":{"code":-32601,"message":"method not found"}}`))
	}))
	defer srv.Close()

	s := newTestScanner("")
	if _, err := s.alchemyTransfers(context.Background(), srv.URL); err == nil {
		t.Fatal("expected error for JSON-RPC error response")
	}
}

func TestEtherscanTransfers_FiltersByRecipient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("action") != "tokentx" {
			t.Errorf("expected action=tokentx, got %s", r.URL.Query().Get("action"))
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"1","message":"OK","result":[
			{"from":"0xaaaa000000000000000000000000000000000001","to":"` + testWallet + `",
			 "contractAddress":"0xcccc000000000000000000000000000000000003","tokenSymbol":"ABC",
			 "tokenDecimal":"18","value":"2000000000000000000","hash":"0xh2","blockNumber":"1234"},
			{"from":"0xaaaa000000000000000000000000000000000001","to":"0x9999999999999999999999999999999999999999",
			 "contractAddress":"0xdddd000000000000000000000000000000000004","tokenSymbol":"XYZ",
			 "tokenDecimal":"6","value":"5000000","hash":"0xh3","blockNumber":"1235"}
		]}`))
	}))
	defer srv.Close()

	s := newTestScanner("test-key")
	etherscanURLs[31337] = srv.URL
	defer delete(etherscanURLs, 31337)

	transfers, err := s.etherscanTransfers(context.Background(), 31337)
	if err != nil {
		t.Fatalf("etherscanTransfers 失败: %v", err)
	}
	// 打到别人钱包的转账要被过滤掉
	if len(transfers) != 1 {
		t.Fatalf("expected 1 transfer, got %d", len(transfers))
	}
	if transfers[0].Symbol != "ABC" {
		t.Fatalf("expected ABC, got %s", transfers[0].Symbol)
	}
	if transfers[0].Amount != "2" {
		t.Fatalf("expected amount 2, got %s", transfers[0].Amount)
	}
	if transfers[0].Block != 1234 {
		t.Fatalf("expected block 1234, got %d", transfers[0].Block)
	}
}

func TestEtherscanTransfers_NoTransactions(t *testing.T) {
	// 没有转账记录时 status=0，不应视为错误
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"0","message":"No transactions found","result":[]}`))
	}))
	defer srv.Close()

	s := newTestScanner("test-key")
	etherscanURLs[31338] = srv.URL
	defer delete(etherscanURLs, 31338)

	transfers, err := s.etherscanTransfers(context.Background(), 31338)
	if err != nil {
		t.Fatalf("空记录不应报错: %v", err)
	}
	if len(transfers) != 0 {
		t.Fatalf("expected 0 transfers, got %d", len(transfers))
	}
}

func TestEtherscanTransfers_RequiresKey(t *testing.T) {
	s := newTestScanner("")
	if _, err := s.etherscanTransfers(context.Background(), 1); err == nil {
		t.Fatal("expected error without API key")
	}
}

func TestParseHex(t *testing.T) {
	cases := []struct {
		in       string
		fallback int64
		want     int64
	}{
		{"0x12", 18, 18},
		{"0x64", 0, 100},
		{"", 18, 18},
		{"0xzz", 7, 7},
		{"10", 0, 16},
	}
	for _, c := range cases {
		if got := parseHex(c.in, c.fallback); got != c.want {
			t.Fatalf("parseHex(%q) = %d, want %d", c.in, got, c.want)
		}
	}
}
