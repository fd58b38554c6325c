package whitelist

import (
	"context"
	"fmt"
	"time"

	"github.com/tokenbot/gotrader/internal/domain"
)

// AddSender 添加受信任的发送者地址，重复添加覆盖标签
func (s *Store) AddSender(ctx context.Context, address, label, actor string) error {
	addr := domain.NormalizeAddress(address)
	if addr == "" {
		return fmt.Errorf("发送者地址为空")
	}
	_, err := s.db.ExecContext(ctx, `
INSERT OR REPLACE INTO whitelisted_senders (address, label, added_at)
VALUES (?,?,?)
`, addr, label, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("add sender: %w", err)
	}
	return s.appendEvent(ctx, &Event{
		Sender: addr,
		Type:   EventSenderAdded,
		Actor:  actor,
		Detail: fmt.Sprintf(`{"label":%q}`, label),
	})
}

// RemoveSender 移除发送者，之后该地址的到账不再自动入白名单
func (s *Store) RemoveSender(ctx context.Context, address, actor string) error {
	addr := domain.NormalizeAddress(address)
	res, err := s.db.ExecContext(ctx, `DELETE FROM whitelisted_senders WHERE address=?`, addr)
	if err != nil {
		return fmt.Errorf("remove sender: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("发送者 %s 不在白名单", address)
	}
	return s.appendEvent(ctx, &Event{
		Sender: addr,
		Type:   EventSenderRemoved,
		Actor:  actor,
	})
}

// IsSenderWhitelisted 大小写不敏感地检查发送者是否受信任
func (s *Store) IsSenderWhitelisted(ctx context.Context, address string) (bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM whitelisted_senders WHERE address=?`,
		domain.NormalizeAddress(address))
	var n int
	if err := row.Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

// ListSenders 全部受信任发送者，按添加时间倒序
func (s *Store) ListSenders(ctx context.Context) ([]Sender, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT address, label, added_at FROM whitelisted_senders ORDER BY added_at DESC
`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Sender
	for rows.Next() {
		var sd Sender
		var addedAt string
		if err := rows.Scan(&sd.Address, &sd.Label, &addedAt); err != nil {
			return nil, err
		}
		sd.AddedAt, _ = time.Parse(time.RFC3339Nano, addedAt)
		out = append(out, sd)
	}
	return out, rows.Err()
}
