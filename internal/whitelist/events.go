package whitelist

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tokenbot/gotrader/internal/domain"
)

// LogTransfer 记录一次白名单发送者的到账事件
func (s *Store) LogTransfer(ctx context.Context, e *Event) error {
	e.Type = EventTransferIn
	e.Token = domain.NormalizeAddress(e.Token)
	e.Sender = domain.NormalizeAddress(e.Sender)
	return s.appendEvent(ctx, e)
}

func (s *Store) appendEvent(ctx context.Context, e *Event) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Time.IsZero() {
		e.Time = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO token_events (id, token_address, chain_id, sender, amount, block_number, tx_hash, event_type, actor, detail, ts)
VALUES (?,?,?,?,?,?,?,?,?,?,?)
`, e.ID, e.Token, e.ChainID, e.Sender, e.Amount, e.Block, e.TxHash, e.Type, e.Actor, e.Detail,
		e.Time.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	return nil
}

// RecentEvents 最近的审计事件，limit<=0 时默认 50
func (s *Store) RecentEvents(ctx context.Context, limit int) ([]Event, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT id, token_address, chain_id, sender, amount, block_number, tx_hash, event_type, actor, detail, ts
FROM token_events ORDER BY ts DESC LIMIT ?
`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var e Event
		var ts string
		if err := rows.Scan(&e.ID, &e.Token, &e.ChainID, &e.Sender, &e.Amount, &e.Block, &e.TxHash, &e.Type, &e.Actor, &e.Detail, &ts); err != nil {
			return nil, err
		}
		e.Time, _ = time.Parse(time.RFC3339Nano, ts)
		out = append(out, e)
	}
	return out, rows.Err()
}
