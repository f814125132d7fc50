package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/akhundovte/shopwatch/internal/domain"
	"github.com/akhundovte/shopwatch/internal/reconcile"
)

type ProductStore struct {
	db *sqlx.DB
}

func NewProductStore(db *sqlx.DB) *ProductStore {
	return &ProductStore{db: db}
}

// GetByReference looks a product up by its natural key and loads its
// stock lines.
func (s *ProductStore) GetByReference(ctx context.Context, reference string, shopID int64) (*domain.Product, error) {
	ex := executor(ctx, s.db)

	row := ex.QueryRowxContext(ctx, `
		SELECT id, shop_id, parent_id, name, url, parse_url, reference, parameters, created_at
		FROM product
		WHERE reference = $1 AND shop_id = $2`,
		reference, shopID,
	)

	var (
		p         domain.Product
		rawParams []byte
	)
	err := row.Scan(&p.ID, &p.ShopID, &p.ParentID, &p.Name, &p.URL, &p.ParseURL,
		&p.Reference, &rawParams, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if p.Params, err = unmarshalProductParams(rawParams); err != nil {
		return nil, err
	}

	rows, err := ex.QueryxContext(ctx, `
		SELECT id, product_id, sku, available, price_base, price_sale, price_card, discount, parameters
		FROM product_stock
		WHERE product_id = $1
		ORDER BY id`,
		p.ID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		st, err := scanStock(rows)
		if err != nil {
			return nil, err
		}
		p.Stocks = append(p.Stocks, *st)
	}
	return &p, rows.Err()
}

// CreateWithStocks inserts a first-sighted product and its stock lines.
func (s *ProductStore) CreateWithStocks(ctx context.Context, p *domain.Product) (int64, error) {
	ex := executor(ctx, s.db)

	params, err := marshalNullable(p.Params)
	if err != nil {
		return 0, err
	}

	var id int64
	err = ex.QueryRowxContext(ctx, `
		INSERT INTO product (shop_id, parent_id, name, url, parse_url, reference, parameters)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`,
		p.ShopID, p.ParentID, p.Name, p.URL, p.ParseURL, p.Reference, params,
	).Scan(&id)
	if err != nil {
		return 0, err
	}

	if len(p.Stocks) > 0 {
		if err := insertStocks(ctx, ex, id, p.Stocks); err != nil {
			return 0, err
		}
	}
	return id, nil
}

// Apply executes one product's staged mutation set. Callers wrap it in
// a transaction so the set commits or rolls back as a whole.
func (s *ProductStore) Apply(ctx context.Context, m *reconcile.Mutations) error {
	ex := executor(ctx, s.db)

	for _, st := range m.PriceHistory {
		_, err := ex.ExecContext(ctx, `
			INSERT INTO price_history (stock_id, price_base, price_sale, price_card, at)
			VALUES ($1, $2, $3, $4, $5)`,
			st.ID, st.PriceBase, st.PriceSale, st.PriceCard, time.Now().UTC(),
		)
		if err != nil {
			return fmt.Errorf("insert price history: %w", err)
		}
	}

	if len(m.ProductFields) > 0 {
		if err := updateFromMap(ctx, ex, "product", m.ProductID, productColumns, m.ProductFields); err != nil {
			return fmt.Errorf("update product: %w", err)
		}
	}

	if len(m.StockCreates) > 0 {
		if err := insertStocks(ctx, ex, m.ProductID, m.StockCreates); err != nil {
			return fmt.Errorf("insert stocks: %w", err)
		}
	}

	for stockID, fields := range m.StockUpdates {
		if err := updateFromMap(ctx, ex, "product_stock", stockID, stockColumns, fields); err != nil {
			return fmt.Errorf("update stock %d: %w", stockID, err)
		}
	}

	if len(m.StockDeleteIDs) > 0 {
		var err error
		if m.HardDelete {
			_, err = ex.ExecContext(ctx,
				`DELETE FROM product_stock WHERE id = ANY($1)`, pq.Array(m.StockDeleteIDs))
		} else {
			_, err = ex.ExecContext(ctx,
				`UPDATE product_stock SET available = FALSE WHERE id = ANY($1)`, pq.Array(m.StockDeleteIDs))
		}
		if err != nil {
			return fmt.Errorf("delete stocks: %w", err)
		}
	}

	return nil
}

// WatchTargets lists the scrape entries for every subscribed product in
// an enabled shop.
func (s *ProductStore) WatchTargets(ctx context.Context) ([]domain.WatchTarget, error) {
	rows, err := executor(ctx, s.db).QueryxContext(ctx, `
		SELECT DISTINCT p.id, p.url, p.parse_url, sh.id AS shop_id, sh.name AS shop_name, sh.parse_params
		FROM product p
		INNER JOIN shop sh ON sh.id = p.shop_id
		INNER JOIN sub_user sub ON sub.product_id = p.id
		WHERE sh.enabled
		ORDER BY p.id`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var targets []domain.WatchTarget
	for rows.Next() {
		var (
			t         domain.WatchTarget
			rawParams []byte
		)
		if err := rows.Scan(&t.ProductID, &t.URL, &t.ParseURL, &t.ShopID, &t.ShopName, &rawParams); err != nil {
			return nil, err
		}
		if len(rawParams) > 0 {
			t.ParseParams = &domain.ParseParams{}
			if err := json.Unmarshal(rawParams, t.ParseParams); err != nil {
				return nil, fmt.Errorf("parse shop params: %w", err)
			}
		}
		targets = append(targets, t)
	}
	return targets, rows.Err()
}

var (
	productColumns = []string{"name", "url", "parse_url", "parameters", "parent_id"}
	stockColumns   = []string{"available", "price_base", "price_sale", "price_card", "discount", "parameters"}
)

// updateFromMap builds an UPDATE from the staged field map, walking the
// allowed columns in a fixed order.
func updateFromMap(ctx context.Context, ex sqlx.ExtContext, table string, id int64, columns []string, fields map[string]any) error {
	var (
		sb   strings.Builder
		args []any
	)
	sb.WriteString("UPDATE ")
	sb.WriteString(table)
	sb.WriteString(" SET ")
	for _, col := range columns {
		val, ok := fields[col]
		if !ok {
			continue
		}
		if col == "parameters" {
			b, err := marshalNullable(val)
			if err != nil {
				return err
			}
			val = b
		}
		if len(args) > 0 {
			sb.WriteString(", ")
		}
		args = append(args, val)
		sb.WriteString(col)
		sb.WriteString(" = $")
		sb.WriteString(strconv.Itoa(len(args)))
	}
	if len(args) == 0 {
		return nil
	}
	args = append(args, id)
	sb.WriteString(" WHERE id = $")
	sb.WriteString(strconv.Itoa(len(args)))

	_, err := ex.ExecContext(ctx, sb.String(), args...)
	return err
}

func insertStocks(ctx context.Context, ex sqlx.ExtContext, productID int64, stocks []domain.Stock) error {
	var (
		sb   strings.Builder
		args []any
	)
	sb.WriteString(`INSERT INTO product_stock
		(product_id, sku, available, price_base, price_sale, price_card, discount, parameters) VALUES `)
	for i, st := range stocks {
		params, err := marshalNullable(st.Params)
		if err != nil {
			return err
		}
		if i > 0 {
			sb.WriteString(", ")
		}
		base := i * 8
		sb.WriteString("($" + strconv.Itoa(base+1))
		for j := 2; j <= 8; j++ {
			sb.WriteString(", $" + strconv.Itoa(base+j))
		}
		sb.WriteString(")")
		args = append(args, productID, st.SKU, st.Available,
			st.PriceBase, st.PriceSale, st.PriceCard, st.Discount, params)
	}
	_, err := ex.ExecContext(ctx, sb.String(), args...)
	return err
}

func scanStock(rows *sqlx.Rows) (*domain.Stock, error) {
	var (
		st        domain.Stock
		base      decimal.NullDecimal
		sale      decimal.NullDecimal
		card      decimal.NullDecimal
		rawParams []byte
	)
	err := rows.Scan(&st.ID, &st.ProductID, &st.SKU, &st.Available,
		&base, &sale, &card, &st.Discount, &rawParams)
	if err != nil {
		return nil, err
	}
	st.PriceBase = nullableDecimal(base)
	st.PriceSale = nullableDecimal(sale)
	st.PriceCard = nullableDecimal(card)
	if len(rawParams) > 0 {
		st.Params = &domain.StockParams{}
		if err := json.Unmarshal(rawParams, st.Params); err != nil {
			return nil, fmt.Errorf("parse stock params: %w", err)
		}
	}
	return &st, nil
}

func nullableDecimal(d decimal.NullDecimal) *decimal.Decimal {
	if !d.Valid {
		return nil
	}
	v := d.Decimal
	return &v
}

func unmarshalProductParams(raw []byte) (*domain.ProductParams, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	p := &domain.ProductParams{}
	if err := json.Unmarshal(raw, p); err != nil {
		return nil, fmt.Errorf("parse product params: %w", err)
	}
	return p, nil
}

// marshalNullable encodes a params value for a jsonb column, keeping SQL
// NULL for nil pointers.
func marshalNullable(v any) (any, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case *domain.ProductParams:
		if x == nil {
			return nil, nil
		}
	case *domain.StockParams:
		if x == nil {
			return nil, nil
		}
	case *domain.ParseParams:
		if x == nil {
			return nil, nil
		}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal params: %w", err)
	}
	return b, nil
}
