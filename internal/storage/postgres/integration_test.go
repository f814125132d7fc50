//go:build integration

package postgres

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/akhundovte/shopwatch/internal/domain"
	"github.com/akhundovte/shopwatch/internal/notify"
	"github.com/akhundovte/shopwatch/internal/reconcile"
)

type PostgresIntegrationSuite struct {
	suite.Suite
	ctx       context.Context
	container *postgres.PostgresContainer
	db        *sqlx.DB
}

func (s *PostgresIntegrationSuite) SetupSuite() {
	s.ctx = context.Background()

	migrationsPath, err := filepath.Abs("../../../migrations")
	s.Require().NoError(err)

	container, err := postgres.Run(s.ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("test_db"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		postgres.WithInitScripts(
			filepath.Join(migrationsPath, "001_init.up.sql"),
		),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	s.Require().NoError(err)
	s.container = container

	connStr, err := container.ConnectionString(s.ctx, "sslmode=disable")
	s.Require().NoError(err)

	db, err := sqlx.Connect("postgres", connStr)
	s.Require().NoError(err)
	s.db = db
}

func (s *PostgresIntegrationSuite) TearDownSuite() {
	if s.db != nil {
		s.db.Close()
	}
	if s.container != nil {
		_ = s.container.Terminate(s.ctx)
	}
}

func (s *PostgresIntegrationSuite) SetupTest() {
	for _, table := range []string{
		"notice_msg", "notice_stock", "sub_user_stock_ix", "sub_user",
		"price_history", "product_stock", "product", "shop", "users",
	} {
		_, _ = s.db.ExecContext(s.ctx, "DELETE FROM "+table)
	}
}

func TestPostgresIntegrationSuite(t *testing.T) {
	suite.Run(t, new(PostgresIntegrationSuite))
}

func (s *PostgresIntegrationSuite) dec(v string) *decimal.Decimal {
	d := decimal.RequireFromString(v)
	return &d
}

func (s *PostgresIntegrationSuite) createShop() int64 {
	var id int64
	err := s.db.QueryRowxContext(s.ctx, `
		INSERT INTO shop (name, label, domain, url, enabled)
		VALUES ('example', 'Example Shop', 'shop.example', 'https://shop.example', TRUE)
		RETURNING id`).Scan(&id)
	s.Require().NoError(err)
	return id
}

func (s *PostgresIntegrationSuite) createUser(chatID int64) int64 {
	var id int64
	err := s.db.QueryRowxContext(s.ctx,
		`INSERT INTO users (chat_id, first_name) VALUES ($1, 'Tester') RETURNING id`, chatID).Scan(&id)
	s.Require().NoError(err)
	return id
}

func (s *PostgresIntegrationSuite) sampleProduct(shopID int64) *domain.Product {
	return &domain.Product{
		ShopID:    shopID,
		Name:      "Sneaker",
		URL:       "https://shop.example/p/1",
		ParseURL:  "https://shop.example/api/p/1",
		Reference: "ref-1",
		Stocks: []domain.Stock{
			{SKU: "A", Available: true, PriceBase: s.dec("100.00"),
				Params: &domain.StockParams{TypeCode: "black", OptionCode: "42", OptionName: "42"}},
			{SKU: "B", Available: false, PriceBase: s.dec("100.00"), PriceSale: s.dec("80.00")},
		},
	}
}

func (s *PostgresIntegrationSuite) TestProductStore_CreateAndGetByReference() {
	store := NewProductStore(s.db)
	shopID := s.createShop()

	id, err := store.CreateWithStocks(s.ctx, s.sampleProduct(shopID))
	s.Require().NoError(err)
	s.Greater(id, int64(0))

	got, err := store.GetByReference(s.ctx, "ref-1", shopID)
	s.Require().NoError(err)
	s.Equal(id, got.ID)
	s.Equal("Sneaker", got.Name)
	s.Require().Len(got.Stocks, 2)
	s.Equal("A", got.Stocks[0].SKU)
	s.True(got.Stocks[0].PriceBase.Equal(decimal.RequireFromString("100.00")))
	s.Require().NotNil(got.Stocks[0].Params)
	s.Equal("black", got.Stocks[0].Params.TypeCode)
	s.Nil(got.Stocks[0].PriceSale)
	s.True(got.Stocks[1].PriceSale.Equal(decimal.RequireFromString("80.00")))

	_, err = store.GetByReference(s.ctx, "missing", shopID)
	s.True(errors.Is(err, domain.ErrNotFound))
}

func (s *PostgresIntegrationSuite) TestProductStore_ApplyMutations() {
	store := NewProductStore(s.db)
	tm := NewTransactionManager(s.db)
	shopID := s.createShop()

	id, err := store.CreateWithStocks(s.ctx, s.sampleProduct(shopID))
	s.Require().NoError(err)
	cur, err := store.GetByReference(s.ctx, "ref-1", shopID)
	s.Require().NoError(err)

	stockA := cur.Stocks[0]
	muts := &reconcile.Mutations{
		ProductID:     id,
		ProductFields: map[string]any{"name": "Sneaker v2"},
		StockUpdates: map[int64]map[string]any{
			stockA.ID: {"price_base": s.dec("90.00"), "available": false},
		},
		StockCreates:   []domain.Stock{{SKU: "C", Available: true, PriceBase: s.dec("50.00")}},
		StockDeleteIDs: []int64{cur.Stocks[1].ID},
		HardDelete:     false,
		PriceHistory:   []domain.Stock{stockA},
	}

	err = tm.WithTransaction(s.ctx, func(ctx context.Context) error {
		return store.Apply(ctx, muts)
	})
	s.Require().NoError(err)

	got, err := store.GetByReference(s.ctx, "ref-1", shopID)
	s.Require().NoError(err)
	s.Equal("Sneaker v2", got.Name)
	s.Require().Len(got.Stocks, 3)

	bySKU := map[string]domain.Stock{}
	for _, st := range got.Stocks {
		bySKU[st.SKU] = st
	}
	s.True(bySKU["A"].PriceBase.Equal(decimal.RequireFromString("90.00")))
	s.False(bySKU["A"].Available)
	s.False(bySKU["B"].Available)
	s.True(bySKU["C"].Available)

	var histCount int
	s.Require().NoError(s.db.GetContext(s.ctx, &histCount,
		`SELECT COUNT(*) FROM price_history WHERE stock_id = $1`, stockA.ID))
	s.Equal(1, histCount)
}

func (s *PostgresIntegrationSuite) TestTransactionRollback() {
	store := NewProductStore(s.db)
	tm := NewTransactionManager(s.db)
	shopID := s.createShop()

	id, err := store.CreateWithStocks(s.ctx, s.sampleProduct(shopID))
	s.Require().NoError(err)

	err = tm.WithTransaction(s.ctx, func(ctx context.Context) error {
		if err := store.Apply(ctx, &reconcile.Mutations{
			ProductID:     id,
			ProductFields: map[string]any{"name": "should not persist"},
		}); err != nil {
			return err
		}
		return errors.New("boom")
	})
	s.Error(err)

	got, err := store.GetByReference(s.ctx, "ref-1", shopID)
	s.Require().NoError(err)
	s.Equal("Sneaker", got.Name)
}

func (s *PostgresIntegrationSuite) TestWatchTargetsListsSubscribedProducts() {
	store := NewProductStore(s.db)
	shopID := s.createShop()
	userID := s.createUser(1000)

	id, err := store.CreateWithStocks(s.ctx, s.sampleProduct(shopID))
	s.Require().NoError(err)

	// No subscription yet: nothing to watch.
	targets, err := store.WatchTargets(s.ctx)
	s.Require().NoError(err)
	s.Empty(targets)

	_, err = s.db.ExecContext(s.ctx,
		`INSERT INTO sub_user (user_id, product_id) VALUES ($1, $2)`, userID, id)
	s.Require().NoError(err)

	targets, err = store.WatchTargets(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(targets, 1)
	s.Equal(id, targets[0].ProductID)
	s.Equal("example", targets[0].ShopName)
	s.Equal("https://shop.example/api/p/1", targets[0].ParseURL)
}

func (s *PostgresIntegrationSuite) TestPendingChangeStore_RoundTrip() {
	productStore := NewProductStore(s.db)
	store := NewPendingChangeStore(s.db)
	shopID := s.createShop()

	_, err := productStore.CreateWithStocks(s.ctx, s.sampleProduct(shopID))
	s.Require().NoError(err)
	cur, err := productStore.GetByReference(s.ctx, "ref-1", shopID)
	s.Require().NoError(err)
	stockID := cur.Stocks[0].ID

	data := domain.ChangeData{Price: map[domain.PriceField]domain.PricePair{
		domain.PriceFieldBase: {Old: s.dec("100"), New: s.dec("80")},
	}}
	err = store.Save(s.ctx, []domain.PendingChange{{StockID: stockID, Data: data}}, nil, nil)
	s.Require().NoError(err)

	rows, err := store.GetByStockIDs(s.ctx, []int64{stockID})
	s.Require().NoError(err)
	s.Require().Len(rows, 1)
	pair := rows[0].Data.Price[domain.PriceFieldBase]
	s.True(pair.Old.Equal(decimal.RequireFromString("100")))
	s.True(pair.New.Equal(decimal.RequireFromString("80")))

	updated := domain.ChangeData{Price: map[domain.PriceField]domain.PricePair{
		domain.PriceFieldBase: {Old: s.dec("100"), New: s.dec("70")},
	}}
	err = store.Save(s.ctx, nil, map[int64]domain.ChangeData{stockID: updated}, nil)
	s.Require().NoError(err)

	rows, err = store.GetByStockIDs(s.ctx, []int64{stockID})
	s.Require().NoError(err)
	s.True(rows[0].Data.Price[domain.PriceFieldBase].New.Equal(decimal.RequireFromString("70")))

	s.Require().NoError(store.DeleteByStockIDs(s.ctx, []int64{stockID}))
	rows, err = store.GetByStockIDs(s.ctx, []int64{stockID})
	s.Require().NoError(err)
	s.Empty(rows)
}

func (s *PostgresIntegrationSuite) TestPendingChangeStore_DeleteOrphaned() {
	productStore := NewProductStore(s.db)
	pendingStore := NewPendingChangeStore(s.db)
	subStore := NewSubscriptionStore(s.db)
	shopID := s.createShop()
	userID := s.createUser(1000)

	id, err := productStore.CreateWithStocks(s.ctx, s.sampleProduct(shopID))
	s.Require().NoError(err)
	cur, err := productStore.GetByReference(s.ctx, "ref-1", shopID)
	s.Require().NoError(err)

	// Watch both lines, then stage a change for each.
	s.Require().NoError(subStore.Save(s.ctx, userID, id, nil, nil))
	creates := []domain.PendingChange{
		{StockID: cur.Stocks[0].ID, Data: domain.ChangeData{Available: true}},
		{StockID: cur.Stocks[1].ID, Data: domain.ChangeData{Available: true}},
	}
	s.Require().NoError(pendingStore.Save(s.ctx, creates, nil, nil))

	removed, err := pendingStore.DeleteOrphaned(s.ctx)
	s.Require().NoError(err)
	s.Equal(int64(0), removed)

	// Narrowing the watch to the black variant strands the other row.
	s.Require().NoError(subStore.Save(s.ctx, userID, id, []string{"black"}, nil))

	removed, err = pendingStore.DeleteOrphaned(s.ctx)
	s.Require().NoError(err)
	s.Equal(int64(1), removed)

	rows, err := pendingStore.GetByStockIDs(s.ctx, []int64{cur.Stocks[0].ID, cur.Stocks[1].ID})
	s.Require().NoError(err)
	s.Require().Len(rows, 1)
	s.Equal(cur.Stocks[0].ID, rows[0].StockID)
}

func (s *PostgresIntegrationSuite) TestPendingBySubscriptionJoins() {
	productStore := NewProductStore(s.db)
	pendingStore := NewPendingChangeStore(s.db)
	subStore := NewSubscriptionStore(s.db)
	shopID := s.createShop()
	userID := s.createUser(1000)

	id, err := productStore.CreateWithStocks(s.ctx, s.sampleProduct(shopID))
	s.Require().NoError(err)
	cur, err := productStore.GetByReference(s.ctx, "ref-1", shopID)
	s.Require().NoError(err)

	s.Require().NoError(subStore.Save(s.ctx, userID, id, nil, nil))

	data := domain.ChangeData{Price: map[domain.PriceField]domain.PricePair{
		domain.PriceFieldBase: {Old: s.dec("100"), New: s.dec("80")},
	}}
	err = pendingStore.Save(s.ctx, []domain.PendingChange{{StockID: cur.Stocks[0].ID, Data: data}}, nil, nil)
	s.Require().NoError(err)

	notices, err := pendingStore.PendingBySubscription(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(notices, 1)
	s.Equal(userID, notices[0].UserID)
	s.Equal(id, notices[0].ProductID)
	s.Equal("Example Shop", notices[0].ShopLabel)
	s.Require().Len(notices[0].Lines, 1)
	s.Equal(cur.Stocks[0].ID, notices[0].Lines[0].StockID)
	s.Require().NotNil(notices[0].Lines[0].StockParams)
	s.Equal("black", notices[0].Lines[0].StockParams.TypeCode)
}

func (s *PostgresIntegrationSuite) TestSubscriptionSaveEditNarrowsStocks() {
	productStore := NewProductStore(s.db)
	subStore := NewSubscriptionStore(s.db)
	shopID := s.createShop()
	userID := s.createUser(1000)

	id, err := productStore.CreateWithStocks(s.ctx, s.sampleProduct(shopID))
	s.Require().NoError(err)

	s.Require().NoError(subStore.Save(s.ctx, userID, id, nil, nil))

	var linked int
	s.Require().NoError(s.db.GetContext(s.ctx, &linked, `SELECT COUNT(*) FROM sub_user_stock_ix`))
	s.Equal(2, linked)

	// Narrow the watch to one variant type; the other link is removed.
	s.Require().NoError(subStore.Save(s.ctx, userID, id, []string{"black"}, nil))
	s.Require().NoError(s.db.GetContext(s.ctx, &linked, `SELECT COUNT(*) FROM sub_user_stock_ix`))
	s.Equal(1, linked)

	subs, err := subStore.ListByUser(s.ctx, userID, 10, 0)
	s.Require().NoError(err)
	s.Require().Len(subs, 1)
	s.NotNil(subs[0].UpdatedAt)

	s.Require().NoError(subStore.Delete(s.ctx, subs[0].ID, userID))
	s.Require().NoError(s.db.GetContext(s.ctx, &linked, `SELECT COUNT(*) FROM sub_user_stock_ix`))
	s.Equal(0, linked)
}

func (s *PostgresIntegrationSuite) TestMessageStore_ClaimLifecycle() {
	store := NewMessageStore(s.db)
	userID := s.createUser(1000)

	msgs := []domain.OutboundMessage{
		{UserID: userID, Text: "msg 1", Status: domain.StatusNotSend},
		{UserID: userID, Text: "msg 2", Status: domain.StatusNotSend},
	}
	s.Require().NoError(store.CreateBatch(s.ctx, msgs))

	claimed, err := store.ClaimBatch(s.ctx, 10)
	s.Require().NoError(err)
	s.Require().Len(claimed, 2)
	s.Equal(int64(1000), claimed[0].ChatID)

	// Claimed messages are in_progress and invisible to the next claim.
	again, err := store.ClaimBatch(s.ctx, 10)
	s.Require().NoError(err)
	s.Empty(again)

	s.Require().NoError(store.MarkSent(s.ctx, []int64{claimed[0].MessageID, claimed[1].MessageID}))

	var sent int
	s.Require().NoError(s.db.GetContext(s.ctx, &sent,
		`SELECT COUNT(*) FROM notice_msg WHERE status = $1 AND sent_at IS NOT NULL`, domain.StatusSent))
	s.Equal(2, sent)
}

func (s *PostgresIntegrationSuite) TestShopStore() {
	store := NewShopStore(s.db)
	s.createShop()

	shops, err := store.ListEnabled(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(shops, 1)
	s.Equal("example", shops[0].Name)

	sh, err := store.GetByDomain(s.ctx, "www.shop.example")
	s.Require().NoError(err)
	s.Equal(shops[0].ID, sh.ID)

	params := &domain.ParseParams{Headers: map[string]string{"User-Agent": "watcher"}}
	s.Require().NoError(store.UpdateParseParams(s.ctx, sh.ID, params))

	sh, err = store.GetByDomain(s.ctx, "shop.example")
	s.Require().NoError(err)
	s.Require().NotNil(sh.ParseParams)
	s.Equal("watcher", sh.ParseParams.Headers["User-Agent"])
}

var _ notify.NoticeSource = (*PendingChangeStore)(nil)
var _ notify.PendingStore = (*PendingChangeStore)(nil)
var _ notify.MessageStore = (*MessageStore)(nil)
