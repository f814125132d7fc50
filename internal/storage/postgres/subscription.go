package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/akhundovte/shopwatch/internal/domain"
)

// SubscriptionStore manages the sub_user / sub_user_stock_ix pair. Save
// runs its own transaction and takes a row lock on the subscription so
// two concurrent edits by the same user serialize.
type SubscriptionStore struct {
	db *sqlx.DB
}

func NewSubscriptionStore(db *sqlx.DB) *SubscriptionStore {
	return &SubscriptionStore{db: db}
}

// Save creates or edits a subscription. typeCodes/optionCodes narrow the
// watched stock lines by their variant parameters; nil means no filter.
func (s *SubscriptionStore) Save(ctx context.Context, userID, productID int64, typeCodes, optionCodes []string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var subID int64
	err = tx.QueryRowxContext(ctx,
		`SELECT id FROM sub_user WHERE product_id = $1 AND user_id = $2 FOR UPDATE`,
		productID, userID,
	).Scan(&subID)
	switch {
	case err == sql.ErrNoRows:
		if err := s.create(ctx, tx, userID, productID, typeCodes, optionCodes); err != nil {
			return err
		}
	case err != nil:
		return err
	default:
		if err := s.edit(ctx, tx, subID, productID, typeCodes, optionCodes); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (s *SubscriptionStore) Delete(ctx context.Context, subID, userID int64) error {
	_, err := executor(ctx, s.db).ExecContext(ctx,
		`DELETE FROM sub_user WHERE id = $1 AND user_id = $2`, subID, userID)
	return err
}

// ListByUser returns a user's subscriptions, newest first.
func (s *SubscriptionStore) ListByUser(ctx context.Context, userID int64, limit, offset int) ([]domain.Subscription, error) {
	var subs []domain.Subscription
	err := sqlx.SelectContext(ctx, executor(ctx, s.db), &subs, `
		SELECT id, user_id, product_id, created_at, updated_at
		FROM sub_user
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`,
		userID, limit, offset,
	)
	return subs, err
}

// create points the subscription at the parent product when the watched
// product is a variant, while the stock links stay on the variant itself.
func (s *SubscriptionStore) create(ctx context.Context, tx *sqlx.Tx, userID, productID int64, typeCodes, optionCodes []string) error {
	var parentID *int64
	if err := tx.QueryRowxContext(ctx,
		`SELECT parent_id FROM product WHERE id = $1`, productID).Scan(&parentID); err != nil {
		return err
	}
	subProductID := productID
	if parentID != nil {
		subProductID = *parentID
	}

	var subID int64
	err := tx.QueryRowxContext(ctx, `
		INSERT INTO sub_user (user_id, product_id, updated_at)
		VALUES ($1, $2, $3)
		RETURNING id`,
		userID, subProductID, time.Now().UTC(),
	).Scan(&subID)
	if err != nil {
		return err
	}

	query, args := stockFilterQuery(productID, typeCodes, optionCodes)
	_, err = tx.ExecContext(ctx,
		`INSERT INTO sub_user_stock_ix (sub_id, stock_id) SELECT $`+fmt.Sprint(len(args)+1)+`, id FROM (`+query+`) sel`,
		append(args, subID)...,
	)
	return err
}

func (s *SubscriptionStore) edit(ctx context.Context, tx *sqlx.Tx, subID, productID int64, typeCodes, optionCodes []string) error {
	current, err := selectIDs(ctx, tx,
		`SELECT stock_id FROM sub_user_stock_ix WHERE sub_id = $1`, subID)
	if err != nil {
		return err
	}
	query, args := stockFilterQuery(productID, typeCodes, optionCodes)
	wanted, err := selectIDs(ctx, tx, query, args...)
	if err != nil {
		return err
	}

	var deleteIDs []int64
	for id := range current {
		if _, ok := wanted[id]; !ok {
			deleteIDs = append(deleteIDs, id)
		}
	}
	var addIDs []int64
	for id := range wanted {
		if _, ok := current[id]; !ok {
			addIDs = append(addIDs, id)
		}
	}

	if len(deleteIDs) > 0 {
		_, err = tx.ExecContext(ctx,
			`DELETE FROM sub_user_stock_ix WHERE sub_id = $1 AND stock_id = ANY($2)`,
			subID, pq.Array(deleteIDs))
		if err != nil {
			return err
		}
	}
	for _, id := range addIDs {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO sub_user_stock_ix (sub_id, stock_id) VALUES ($1, $2)`, subID, id)
		if err != nil {
			return err
		}
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE sub_user SET updated_at = $1 WHERE id = $2`, time.Now().UTC(), subID)
	return err
}

func stockFilterQuery(productID int64, typeCodes, optionCodes []string) (string, []any) {
	query := `SELECT id FROM product_stock WHERE product_id = $1`
	args := []any{productID}
	if typeCodes != nil {
		args = append(args, pq.Array(typeCodes))
		query += fmt.Sprintf(` AND parameters->>'type_code' = ANY($%d)`, len(args))
	}
	if optionCodes != nil {
		args = append(args, pq.Array(optionCodes))
		query += fmt.Sprintf(` AND parameters->>'option_code' = ANY($%d)`, len(args))
	}
	return query, args
}

func selectIDs(ctx context.Context, tx *sqlx.Tx, query string, args ...any) (map[int64]struct{}, error) {
	rows, err := tx.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make(map[int64]struct{})
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids[id] = struct{}{}
	}
	return ids, rows.Err()
}
