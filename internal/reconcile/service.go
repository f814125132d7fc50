// Package reconcile diffs freshly parsed product snapshots against
// persisted state and decides what changed: field updates, stock line
// inserts/updates/deletes, price history rows and the change set handed
// to the notification stager.
package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/akhundovte/shopwatch/internal/domain"
)

// Mutations is the staged outcome of one diff, applied atomically.
type Mutations struct {
	ProductID     int64
	ProductFields map[string]any
	StockCreates  []domain.Stock
	StockUpdates  map[int64]map[string]any
	// StockDeleteIDs are rows whose SKU vanished from the snapshot;
	// HardDelete picks between removal and setting available=false.
	StockDeleteIDs []int64
	HardDelete     bool
	// PriceHistory holds prior stock rows to append before updates land.
	PriceHistory []domain.Stock
}

func (m *Mutations) empty() bool {
	return len(m.ProductFields) == 0 && len(m.StockCreates) == 0 &&
		len(m.StockUpdates) == 0 && len(m.StockDeleteIDs) == 0 && len(m.PriceHistory) == 0
}

// Options tunes one reconciliation call.
type Options struct {
	// DeleteMissing hard-deletes stock rows absent from the snapshot;
	// false only disables them.
	DeleteMissing bool
	// Parent groups this snapshot under a variant family head.
	Parent *domain.Product
}

type Service struct {
	products ProductStore
	stager   Stager
	tx       TransactionManager
	logger   *slog.Logger
}

func NewService(products ProductStore, stager Stager, tx TransactionManager, logger *slog.Logger) *Service {
	return &Service{
		products: products,
		stager:   stager,
		tx:       tx,
		logger:   logger,
	}
}

// Outcome reports what one reconciliation did.
type Outcome struct {
	Product *domain.Product
	// Audit lists every applied change in operator-readable form.
	Audit []string
	// Created is true when the product was first-sighted and inserted.
	Created bool
}

// Reconcile processes one parsed snapshot for a shop. A product unseen
// before is inserted verbatim with no diff and no notification. A known
// product is compared field by field; all staged mutations commit in one
// transaction and the change set is staged only after the commit.
func (s *Service) Reconcile(ctx context.Context, snap *domain.Product, shopID int64, opts Options) (*Outcome, error) {
	if err := snap.Validate(); err != nil {
		return nil, err
	}
	snap.ShopID = shopID
	if opts.Parent != nil {
		parentID := opts.Parent.ID
		snap.ParentID = &parentID
	}

	cur, err := s.products.GetByReference(ctx, snap.Reference, shopID)
	if errors.Is(err, domain.ErrNotFound) {
		id, err := s.products.CreateWithStocks(ctx, snap)
		if err != nil {
			return nil, fmt.Errorf("create product: %w", err)
		}
		snap.ID = id
		s.logger.Info("new product", "product_id", id, "reference", snap.Reference, "shop_id", shopID)
		return &Outcome{Product: snap, Created: true}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get product by reference: %w", err)
	}

	snap.ID = cur.ID
	var audit []string
	muts, changes := s.diff(snap, cur, opts.DeleteMissing, &audit)

	if !muts.empty() {
		err = s.tx.WithTransaction(ctx, func(txCtx context.Context) error {
			return s.products.Apply(txCtx, muts)
		})
		if err != nil {
			return nil, fmt.Errorf("apply mutations: %w", err)
		}
	}

	if !changes.Empty() || len(changes.SeenStockIDs) > 0 {
		if err := s.stager.Stage(ctx, changes); err != nil {
			return nil, fmt.Errorf("stage changes: %w", err)
		}
	}

	return &Outcome{Product: snap, Audit: audit}, nil
}

func (s *Service) diff(snap, cur *domain.Product, deleteMissing bool, audit *[]string) (*Mutations, *domain.ChangeSet) {
	muts := &Mutations{
		ProductID:     cur.ID,
		ProductFields: s.diffProduct(snap, cur, audit),
		StockUpdates:  make(map[int64]map[string]any),
		HardDelete:    deleteMissing,
	}
	changes := &domain.ChangeSet{
		ProductID:         cur.ID,
		Changes:           make(map[int64]domain.ChangeData),
		AvailableStockIDs: make(map[int64]struct{}),
	}

	bySKU := make(map[string]*domain.Stock, len(snap.Stocks))
	for i := range snap.Stocks {
		bySKU[snap.Stocks[i].SKU] = &snap.Stocks[i]
	}

	for i := range cur.Stocks {
		stockCur := &cur.Stocks[i]
		stockNew, ok := bySKU[stockCur.SKU]
		if !ok {
			if id := s.checkDeleteStock(cur.ID, stockCur, deleteMissing, audit); id != 0 {
				muts.StockDeleteIDs = append(muts.StockDeleteIDs, id)
			}
			continue
		}

		update, priceChange, becameAvailable := s.diffStock(stockCur, stockNew, audit)
		if len(update) > 0 {
			muts.StockUpdates[stockCur.ID] = update
		}
		if len(priceChange) > 0 {
			muts.PriceHistory = append(muts.PriceHistory, *stockCur)
		}

		// A price change takes notification priority over an
		// availability flip on the same line.
		switch {
		case len(priceChange) > 0:
			changes.Changes[stockCur.ID] = domain.ChangeData{Price: priceChange}
		case becameAvailable:
			changes.Changes[stockCur.ID] = domain.ChangeData{Available: true}
		}
		changes.SeenStockIDs = append(changes.SeenStockIDs, stockCur.ID)
		if stockNew.Available {
			changes.AvailableStockIDs[stockCur.ID] = struct{}{}
		}
		delete(bySKU, stockCur.SKU)
	}

	// Whatever remains in the lookup was never persisted: genuinely new
	// variants, inserted without notification.
	for i := range snap.Stocks {
		if _, ok := bySKU[snap.Stocks[i].SKU]; ok {
			muts.StockCreates = append(muts.StockCreates, snap.Stocks[i])
		}
	}

	return muts, changes
}

var productFields = []string{"name", "url", "parse_url", "parameters", "parent_id"}

func (s *Service) diffProduct(snap, cur *domain.Product, audit *[]string) map[string]any {
	update := make(map[string]any)
	for _, field := range productFields {
		valNew, valCur := productField(snap, field), productField(cur, field)
		var equal bool
		switch field {
		case "parameters":
			equal = snap.Params.Equal(cur.Params)
		case "parent_id":
			equal = domain.Int64sEqual(snap.ParentID, cur.ParentID)
		default:
			equal = valNew == valCur
		}
		if !equal {
			update[field] = valNew
			*audit = append(*audit, auditLine("product", cur.ID, field, valCur, valNew))
		}
	}
	return update
}

func productField(p *domain.Product, field string) any {
	switch field {
	case "name":
		return p.Name
	case "url":
		return p.URL
	case "parse_url":
		return p.ParseURL
	case "parameters":
		return p.Params
	case "parent_id":
		return p.ParentID
	default:
		return nil
	}
}

func (s *Service) diffStock(cur, new *domain.Stock, audit *[]string) (map[string]any, map[domain.PriceField]domain.PricePair, bool) {
	update := make(map[string]any)

	if !cur.Params.Equal(new.Params) {
		update["parameters"] = new.Params
		*audit = append(*audit, auditLine("product_stock", cur.ID, "parameters", cur.Params, new.Params))
	}

	priceChange := s.diffPrices(cur, new, update)

	becameAvailable := false
	if cur.Available != new.Available {
		update["available"] = new.Available
		if new.Available {
			becameAvailable = true
		}
	}

	return update, priceChange, becameAvailable
}

// diffPrices compares the three price columns and the stored discount.
// A sale price present in the store but absent from the snapshot is a
// scraping artifact: the whole price comparison is skipped for the line,
// with no update, no notice and no history row.
func (s *Service) diffPrices(cur, new *domain.Stock, update map[string]any) map[domain.PriceField]domain.PricePair {
	if cur.PriceSale != nil && new.PriceSale == nil {
		return nil
	}

	priceChange := make(map[domain.PriceField]domain.PricePair)
	for field, pair := range map[domain.PriceField][2]*decimal.Decimal{
		domain.PriceFieldBase: {cur.PriceBase, new.PriceBase},
		domain.PriceFieldSale: {cur.PriceSale, new.PriceSale},
		domain.PriceFieldCard: {cur.PriceCard, new.PriceCard},
	} {
		if !domain.DecimalsEqual(pair[0], pair[1]) {
			update["price_"+string(field)] = pair[1]
			priceChange[field] = domain.PricePair{Old: pair[0], New: pair[1]}
		}
	}

	// A pure re-price with no discount lands base and sale on the same
	// value; keep only the sale entry so the user sees a single line.
	if base, okBase := priceChange[domain.PriceFieldBase]; okBase {
		if sale, okSale := priceChange[domain.PriceFieldSale]; okSale {
			if domain.DecimalsEqual(base.New, sale.New) {
				delete(priceChange, domain.PriceFieldBase)
			}
		}
	}

	if !domain.Int64sEqual(cur.Discount, new.Discount) {
		update["discount"] = new.Discount
	}

	if len(priceChange) == 0 {
		return nil
	}
	return priceChange
}

func (s *Service) checkDeleteStock(productID int64, cur *domain.Stock, deleteMissing bool, audit *[]string) int64 {
	detail := fmt.Sprintf("product_id: %d, sku: %s", productID, cur.SKU)
	if deleteMissing {
		*audit = append(*audit, fmt.Sprintf("deleting product_stock id %d (%s)", cur.ID, detail))
		return cur.ID
	}
	// Soft-disable is only worth doing (and reporting) when the row was
	// still marked available.
	if cur.Available {
		*audit = append(*audit, fmt.Sprintf("setting not available product_stock id %d (%s)", cur.ID, detail))
		return cur.ID
	}
	return 0
}

func auditLine(table string, id int64, field string, oldVal, newVal any) string {
	return fmt.Sprintf("%s id %d field %s: old='%s' new='%s'", table, id, field, display(oldVal), display(newVal))
}

func display(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case *int64:
		if x == nil {
			return ""
		}
		return strconv.FormatInt(*x, 10)
	case *domain.ProductParams:
		if x == nil {
			return ""
		}
		b, _ := json.Marshal(x)
		return string(b)
	case *domain.StockParams:
		if x == nil {
			return ""
		}
		b, _ := json.Marshal(x)
		return string(b)
	default:
		return fmt.Sprintf("%v", x)
	}
}
