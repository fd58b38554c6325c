package whitelist

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// TokenStatus 代币在白名单流水线中的状态
type TokenStatus string

const (
	TokenStatusPending   TokenStatus = "pending"   // 等待发现池子/建仓
	TokenStatusActive    TokenStatus = "active"    // 交易中
	TokenStatusCompleted TokenStatus = "completed" // 已平仓完成
	TokenStatusBlocked   TokenStatus = "blocked"   // 拉黑，永不交易
)

// 审计事件类型
const (
	EventTransferIn       = "transfer_in"
	EventSenderAdded      = "sender_added"
	EventSenderRemoved    = "sender_removed"
	EventTokenWhitelisted = "token_whitelisted"
	EventStatusChanged    = "status_changed"
	EventTokenBlocked     = "token_blocked"
)

// Sender 受信任的转账来源地址
type Sender struct {
	Address string    `json:"address"`
	Label   string    `json:"label"`
	AddedAt time.Time `json:"added_at"`
}

// Token 白名单代币
// 来自白名单发送者的到账自动进入白名单；blocked 状态一旦写入不会被自动流程覆盖。
type Token struct {
	Address string      `json:"address"`
	ChainID uint64      `json:"chain_id"`
	Symbol  string      `json:"symbol"`
	Sender  string      `json:"sender"`
	Auto    bool        `json:"auto_whitelisted"`
	Status  TokenStatus `json:"status"`
	AddedAt time.Time   `json:"added_at"`
}

// Event 审计事件：到账记录与每次白名单变更
type Event struct {
	ID      string    `json:"id"`
	Token   string    `json:"token_address"`
	ChainID uint64    `json:"chain_id"`
	Sender  string    `json:"sender"`
	Amount  string    `json:"amount"`
	Block   uint64    `json:"block_number"`
	TxHash  string    `json:"tx_hash"`
	Type    string    `json:"event_type"`
	Actor   string    `json:"actor"`
	Detail  string    `json:"detail"`
	Time    time.Time `json:"timestamp"`
}

// Store 发送者/代币白名单与审计事件的持久层
// 与 Registry 分库：白名单是操作员控制面，仓位数据是交易状态。
type Store struct {
	db *sql.DB
}

// Open 打开（或创建）白名单库并执行迁移
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("whitelist: 数据库路径为空")
	}
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("mkdir db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close 关闭底层数据库
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stmts := []string{
		`PRAGMA journal_mode=WAL;`,
		`
CREATE TABLE IF NOT EXISTS whitelisted_senders (
  address TEXT NOT NULL PRIMARY KEY,
  label TEXT NOT NULL DEFAULT '',
  added_at TEXT NOT NULL
);`,
		`
CREATE TABLE IF NOT EXISTS whitelisted_tokens (
  address TEXT NOT NULL,
  chain_id INTEGER NOT NULL,
  symbol TEXT NOT NULL DEFAULT '',
  sender TEXT NOT NULL DEFAULT '',
  auto_whitelisted INTEGER NOT NULL DEFAULT 1,
  status TEXT NOT NULL DEFAULT 'pending',
  added_at TEXT NOT NULL,
  PRIMARY KEY (address, chain_id)
);`,
		`CREATE INDEX IF NOT EXISTS idx_whitelisted_tokens_status ON whitelisted_tokens(status);`,
		`
CREATE TABLE IF NOT EXISTS token_events (
  id TEXT PRIMARY KEY,
  token_address TEXT NOT NULL DEFAULT '',
  chain_id INTEGER NOT NULL DEFAULT 0,
  sender TEXT NOT NULL DEFAULT '',
  amount TEXT NOT NULL DEFAULT '',
  block_number INTEGER NOT NULL DEFAULT 0,
  tx_hash TEXT NOT NULL DEFAULT '',
  event_type TEXT NOT NULL,
  actor TEXT NOT NULL DEFAULT '',
  detail TEXT NOT NULL DEFAULT '',
  ts TEXT NOT NULL
);`,
		`CREATE INDEX IF NOT EXISTS idx_token_events_ts ON token_events(ts DESC);`,
	}

	for _, q := range stmts {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("whitelist migrate exec failed: %w", err)
		}
	}
	return nil
}
