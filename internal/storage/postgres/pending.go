package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/akhundovte/shopwatch/internal/domain"
	"github.com/akhundovte/shopwatch/internal/notify"
)

// PendingChangeStore persists the notice ledger: at most one row per
// stock line, deleted once compiled.
type PendingChangeStore struct {
	db *sqlx.DB
}

func NewPendingChangeStore(db *sqlx.DB) *PendingChangeStore {
	return &PendingChangeStore{db: db}
}

func (s *PendingChangeStore) GetByStockIDs(ctx context.Context, stockIDs []int64) ([]domain.PendingChange, error) {
	if len(stockIDs) == 0 {
		return nil, nil
	}
	rows, err := executor(ctx, s.db).QueryxContext(ctx,
		`SELECT stock_id, data FROM notice_stock WHERE stock_id = ANY($1)`,
		pq.Array(stockIDs),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.PendingChange
	for rows.Next() {
		var (
			pc  domain.PendingChange
			raw []byte
		)
		if err := rows.Scan(&pc.StockID, &raw); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(raw, &pc.Data); err != nil {
			return nil, fmt.Errorf("parse pending change: %w", err)
		}
		result = append(result, pc)
	}
	return result, rows.Err()
}

// Save applies one staging pass in a single transaction.
func (s *PendingChangeStore) Save(ctx context.Context, creates []domain.PendingChange, updates map[int64]domain.ChangeData, deleteStockIDs []int64) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, pc := range creates {
		raw, err := json.Marshal(pc.Data)
		if err != nil {
			return fmt.Errorf("marshal pending change: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO notice_stock (stock_id, data) VALUES ($1, $2)`, pc.StockID, raw); err != nil {
			return err
		}
	}
	for stockID, data := range updates {
		raw, err := json.Marshal(data)
		if err != nil {
			return fmt.Errorf("marshal pending change: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE notice_stock SET data = $1 WHERE stock_id = $2`, raw, stockID); err != nil {
			return err
		}
	}
	if len(deleteStockIDs) > 0 {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM notice_stock WHERE stock_id = ANY($1)`, pq.Array(deleteStockIDs)); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (s *PendingChangeStore) DeleteByStockIDs(ctx context.Context, stockIDs []int64) error {
	if len(stockIDs) == 0 {
		return nil
	}
	_, err := executor(ctx, s.db).ExecContext(ctx,
		`DELETE FROM notice_stock WHERE stock_id = ANY($1)`, pq.Array(stockIDs))
	return err
}

// DeleteOrphaned removes ledger rows no subscription references, so a
// row whose last watcher narrowed or dropped their selection does not
// sit in the table forever.
func (s *PendingChangeStore) DeleteOrphaned(ctx context.Context) (int64, error) {
	res, err := executor(ctx, s.db).ExecContext(ctx, `
		DELETE FROM notice_stock ns
		WHERE NOT EXISTS (
			SELECT 1 FROM sub_user_stock_ix subi WHERE subi.stock_id = ns.stock_id
		)`,
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// PendingBySubscription loads the compilation input: every pending row a
// user subscribed to, joined with its stock, product and shop, grouped
// by (user, product).
func (s *PendingChangeStore) PendingBySubscription(ctx context.Context) ([]notify.ProductNotice, error) {
	rows, err := executor(ctx, s.db).QueryxContext(ctx, `
		SELECT
			sub.user_id,
			p.id AS product_id, p.name, p.reference, p.url, p.parameters,
			sh.label AS shop_label,
			json_agg(json_build_object(
				'stock_id', ns.stock_id,
				'data', ns.data,
				'parameters', ps.parameters,
				'discount', ps.discount
			) ORDER BY ns.stock_id) AS notice_lines
		FROM sub_user_stock_ix subi
		INNER JOIN notice_stock ns ON ns.stock_id = subi.stock_id
		INNER JOIN sub_user sub ON sub.id = subi.sub_id
		INNER JOIN product_stock ps ON ps.id = subi.stock_id
		INNER JOIN product p ON p.id = ps.product_id
		INNER JOIN shop sh ON sh.id = p.shop_id
		GROUP BY sub.user_id, p.id, sh.id
		ORDER BY sub.user_id, p.id`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var notices []notify.ProductNotice
	for rows.Next() {
		var (
			n         notify.ProductNotice
			rawParams []byte
			rawLines  []byte
		)
		err := rows.Scan(&n.UserID, &n.ProductID, &n.ProductName, &n.Reference,
			&n.ProductURL, &rawParams, &n.ShopLabel, &rawLines)
		if err != nil {
			return nil, err
		}
		if n.ProductParams, err = unmarshalProductParams(rawParams); err != nil {
			return nil, err
		}
		var lines []noticeLineRow
		if err := json.Unmarshal(rawLines, &lines); err != nil {
			return nil, fmt.Errorf("parse notice lines: %w", err)
		}
		for _, l := range lines {
			n.Lines = append(n.Lines, notify.NoticeLine{
				StockID:     l.StockID,
				Data:        l.Data,
				StockParams: l.Params,
				Discount:    l.Discount,
			})
		}
		notices = append(notices, n)
	}
	return notices, rows.Err()
}

type noticeLineRow struct {
	StockID  int64               `json:"stock_id"`
	Data     domain.ChangeData   `json:"data"`
	Params   *domain.StockParams `json:"parameters"`
	Discount *int64              `json:"discount"`
}
