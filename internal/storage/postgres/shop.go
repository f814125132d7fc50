package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/akhundovte/shopwatch/internal/domain"
)

type ShopStore struct {
	db *sqlx.DB
}

func NewShopStore(db *sqlx.DB) *ShopStore {
	return &ShopStore{db: db}
}

const shopSelect = `SELECT id, name, label, domain, url, parse_params, enabled, need_cookies, sort FROM shop`

// GetByDomain matches a shop by the registrable part of a URL host.
func (s *ShopStore) GetByDomain(ctx context.Context, host string) (*domain.Shop, error) {
	parts := strings.Split(host, ".")
	if len(parts) > 2 {
		parts = parts[len(parts)-2:]
	}
	dom := strings.Join(parts, ".")

	row := executor(ctx, s.db).QueryRowxContext(ctx, shopSelect+` WHERE domain = $1`, dom)
	return scanShop(row)
}

// ListEnabled returns the active shops in display order.
func (s *ShopStore) ListEnabled(ctx context.Context) ([]domain.Shop, error) {
	rows, err := executor(ctx, s.db).QueryxContext(ctx, shopSelect+` WHERE enabled ORDER BY sort, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var shops []domain.Shop
	for rows.Next() {
		sh, err := scanShop(rows)
		if err != nil {
			return nil, err
		}
		shops = append(shops, *sh)
	}
	return shops, rows.Err()
}

// UpdateParseParams refreshes the scrape parameters (headers, cookies)
// of one shop; everything else on the row is immutable.
func (s *ShopStore) UpdateParseParams(ctx context.Context, shopID int64, params *domain.ParseParams) error {
	raw, err := marshalNullable(params)
	if err != nil {
		return err
	}
	_, err = executor(ctx, s.db).ExecContext(ctx,
		`UPDATE shop SET parse_params = $1 WHERE id = $2`, raw, shopID)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanShop(row rowScanner) (*domain.Shop, error) {
	var (
		sh        domain.Shop
		rawParams []byte
	)
	err := row.Scan(&sh.ID, &sh.Name, &sh.Label, &sh.Domain, &sh.URL,
		&rawParams, &sh.Enabled, &sh.NeedCookies, &sh.Sort)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if len(rawParams) > 0 {
		sh.ParseParams = &domain.ParseParams{}
		if err := json.Unmarshal(rawParams, sh.ParseParams); err != nil {
			return nil, fmt.Errorf("parse shop params: %w", err)
		}
	}
	return &sh, nil
}
