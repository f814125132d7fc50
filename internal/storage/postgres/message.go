package postgres

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/akhundovte/shopwatch/internal/domain"
	"github.com/akhundovte/shopwatch/internal/notify"
)

type MessageStore struct {
	db *sqlx.DB
}

func NewMessageStore(db *sqlx.DB) *MessageStore {
	return &MessageStore{db: db}
}

func (s *MessageStore) CreateBatch(ctx context.Context, msgs []domain.OutboundMessage) error {
	if len(msgs) == 0 {
		return nil
	}
	var (
		sb   strings.Builder
		args []any
	)
	sb.WriteString(`INSERT INTO notice_msg (user_id, product_id, text, status) VALUES `)
	for i, m := range msgs {
		if i > 0 {
			sb.WriteString(", ")
		}
		base := i * 4
		sb.WriteString("($" + strconv.Itoa(base+1) + ", $" + strconv.Itoa(base+2) +
			", $" + strconv.Itoa(base+3) + ", $" + strconv.Itoa(base+4) + ")")
		args = append(args, m.UserID, m.ProductID, m.Text, m.Status)
	}
	_, err := executor(ctx, s.db).ExecContext(ctx, sb.String(), args...)
	return err
}

// ClaimBatch picks up to limit queued messages, oldest users first, and
// marks them in-progress so a concurrent run cannot pick them again.
func (s *MessageStore) ClaimBatch(ctx context.Context, limit int) ([]notify.ClaimedMessage, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryxContext(ctx, `
		SELECT m.id, u.chat_id, u.first_name, m.text
		FROM notice_msg m
		INNER JOIN users u ON u.id = m.user_id
		WHERE m.status = $1
		ORDER BY m.user_id, m.id
		LIMIT $2
		FOR UPDATE OF m SKIP LOCKED`,
		domain.StatusNotSend, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var (
		claimed []notify.ClaimedMessage
		ids     []int64
	)
	for rows.Next() {
		var m notify.ClaimedMessage
		if err := rows.Scan(&m.MessageID, &m.ChatID, &m.FirstName, &m.Text); err != nil {
			return nil, err
		}
		claimed = append(claimed, m)
		ids = append(ids, m.MessageID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, tx.Commit()
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE notice_msg SET status = $1, sent_at = $2 WHERE id = ANY($3)`,
		domain.StatusInProgress, time.Now().UTC(), pq.Array(ids),
	)
	if err != nil {
		return nil, err
	}
	return claimed, tx.Commit()
}

func (s *MessageStore) MarkSent(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := executor(ctx, s.db).ExecContext(ctx,
		`UPDATE notice_msg SET status = $1, sent_at = $2 WHERE id = ANY($3)`,
		domain.StatusSent, time.Now().UTC(), pq.Array(ids),
	)
	return err
}
