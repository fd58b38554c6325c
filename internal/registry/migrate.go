package registry

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

func (r *Registry) migrate() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stmts := []string{
		`PRAGMA journal_mode=WAL;`,
		`PRAGMA foreign_keys=ON;`,
		`
CREATE TABLE IF NOT EXISTS tokens (
  chain_id INTEGER NOT NULL,
  address TEXT NOT NULL,
  symbol TEXT NOT NULL DEFAULT '',
  name TEXT NOT NULL DEFAULT '',
  decimals INTEGER NOT NULL DEFAULT 18,
  active INTEGER NOT NULL DEFAULT 1,
  first_seen TEXT NOT NULL,
  updated_at TEXT NOT NULL,
  PRIMARY KEY (chain_id, address)
);`,
		`
CREATE TABLE IF NOT EXISTS pools (
  chain_id INTEGER NOT NULL,
  token TEXT NOT NULL,
  pool_address TEXT NOT NULL,
  fee_tier INTEGER NOT NULL,
  quote_token TEXT NOT NULL,
  liquidity TEXT NOT NULL DEFAULT '0',
  token_is_zero INTEGER NOT NULL DEFAULT 0,
  discovered_at TEXT NOT NULL,
  PRIMARY KEY (chain_id, token, quote_token, fee_tier)
);`,
		`CREATE INDEX IF NOT EXISTS idx_pools_chain_token ON pools(chain_id, token);`,
		`
CREATE TABLE IF NOT EXISTS positions (
  id TEXT PRIMARY KEY,
  token TEXT NOT NULL,
  chain_id INTEGER NOT NULL,
  symbol TEXT NOT NULL DEFAULT '',
  decimals INTEGER NOT NULL DEFAULT 18,
  entry_price TEXT NOT NULL,
  entry_time TEXT NOT NULL,
  amount TEXT NOT NULL,
  take_profit TEXT NOT NULL,
  stop_loss TEXT NOT NULL,
  fee_tier INTEGER NOT NULL DEFAULT 3000,
  quote_token TEXT NOT NULL DEFAULT 'USDC',
  status TEXT NOT NULL DEFAULT 'HOLDING',
  exit_price TEXT,
  exit_tx TEXT,
  pnl TEXT,
  reason TEXT,
  closed_at TEXT
);`,
		// 同一 (chain, token) 只允许一个未平仓仓位
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_positions_open_unique ON positions(chain_id, token) WHERE status != 'CLOSED';`,
		`CREATE INDEX IF NOT EXISTS idx_positions_status ON positions(status);`,
		`
CREATE TABLE IF NOT EXISTS trades (
  id TEXT PRIMARY KEY,
  side TEXT NOT NULL,
  token TEXT NOT NULL,
  chain_id INTEGER NOT NULL,
  symbol TEXT NOT NULL DEFAULT '',
  price TEXT NOT NULL,
  amount TEXT NOT NULL,
  pnl TEXT NOT NULL DEFAULT '0',
  tx_hash TEXT NOT NULL DEFAULT '',
  gas_native TEXT NOT NULL DEFAULT '0',
  gas_usd TEXT NOT NULL DEFAULT '0',
  ts TEXT NOT NULL
);`,
		`CREATE INDEX IF NOT EXISTS idx_trades_ts ON trades(ts DESC);`,
		`
CREATE TABLE IF NOT EXISTS wallet_snapshots (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  address TEXT NOT NULL,
  eth TEXT NOT NULL DEFAULT '0',
  weth TEXT NOT NULL DEFAULT '0',
  usdc TEXT NOT NULL DEFAULT '0',
  eth_price TEXT NOT NULL DEFAULT '0',
  ts TEXT NOT NULL
);`,
		`CREATE INDEX IF NOT EXISTS idx_wallet_snapshots_ts ON wallet_snapshots(ts DESC);`,
	}

	for _, q := range stmts {
		if _, err := r.db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("migrate exec failed: %w", err)
		}
	}

	// 兼容：旧库没有 volatility 列时补齐（SQLite 不支持 ADD COLUMN IF NOT EXISTS）
	hasVol, err := hasColumn(ctx, r.db, "positions", "volatility")
	if err != nil {
		return err
	}
	if !hasVol {
		if _, err := r.db.ExecContext(ctx, `ALTER TABLE positions ADD COLUMN volatility TEXT NOT NULL DEFAULT '0';`); err != nil {
			return fmt.Errorf("alter positions add volatility: %w", err)
		}
	}

	return nil
}

func hasColumn(ctx context.Context, db *sql.DB, table string, col string) (bool, error) {
	rows, err := db.QueryContext(ctx, fmt.Sprintf(`PRAGMA table_info(%s);`, table))
	if err != nil {
		return false, err
	}
	defer rows.Close()
	// PRAGMA table_info 返回：cid,name,type,notnull,dflt_value,pk
	for rows.Next() {
		var (
			cid       int
			name      string
			typ       string
			notnull   int
			dfltValue any
			pk        int
		)
		if err := rows.Scan(&cid, &name, &typ, &notnull, &dfltValue, &pk); err != nil {
			return false, err
		}
		if name == col {
			return true, nil
		}
	}
	return false, rows.Err()
}
