package notify_test

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"testing"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"github.com/akhundovte/shopwatch/internal/domain"
	"github.com/akhundovte/shopwatch/internal/notify"
	"github.com/akhundovte/shopwatch/internal/notify/mocks"
)

type CompilerTestSuite struct {
	suite.Suite
	ctrl     *gomock.Controller
	source   *mocks.MockNoticeSource
	pending  *mocks.MockPendingStore
	messages *mocks.MockMessageStore
	compiler *notify.Compiler
}

func (s *CompilerTestSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.source = mocks.NewMockNoticeSource(s.ctrl)
	s.pending = mocks.NewMockPendingStore(s.ctrl)
	s.messages = mocks.NewMockMessageStore(s.ctrl)
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	s.compiler = notify.NewCompiler(s.source, s.pending, s.messages, logger)
}

func (s *CompilerTestSuite) TearDownTest() {
	s.ctrl.Finish()
}

func TestCompilerTestSuite(t *testing.T) {
	suite.Run(t, new(CompilerTestSuite))
}

func (s *CompilerTestSuite) notice(userID, productID, stockID int64) notify.ProductNotice {
	return notify.ProductNotice{
		UserID:      userID,
		ProductID:   productID,
		ProductName: fmt.Sprintf("Product %d", productID),
		ProductURL:  "https://shop.example/p/1",
		Reference:   fmt.Sprintf("ref-%d", productID),
		ShopLabel:   "Example Shop",
		Lines: []notify.NoticeLine{
			{
				StockID: stockID,
				Data: domain.ChangeData{Price: map[domain.PriceField]domain.PricePair{
					domain.PriceFieldBase: {Old: dec("100"), New: dec("80")},
				}},
			},
		},
	}
}

func (s *CompilerTestSuite) TestCompileRendersAndClearsLedger() {
	ctx := context.Background()
	notices := []notify.ProductNotice{
		s.notice(1, 7, 11),
		s.notice(2, 7, 11),
	}

	s.pending.EXPECT().DeleteOrphaned(ctx).Return(int64(0), nil)
	s.source.EXPECT().PendingBySubscription(ctx).Return(notices, nil)
	s.messages.EXPECT().CreateBatch(ctx, gomock.Any()).DoAndReturn(
		func(_ context.Context, msgs []domain.OutboundMessage) error {
			s.Len(msgs, 2)
			for _, m := range msgs {
				s.Equal(domain.StatusNotSend, m.Status)
				s.Require().NotNil(m.ProductID)
				s.Equal(int64(7), *m.ProductID)
				s.Contains(m.Text, "100 &#8594; 80")
			}
			return nil
		},
	)
	// One ledger row serves both subscribers and is deleted once.
	s.pending.EXPECT().DeleteByStockIDs(ctx, []int64{11}).Return(nil)

	s.NoError(s.compiler.Compile(ctx))
}

func (s *CompilerTestSuite) TestCompileChunksLargeBatches() {
	ctx := context.Background()
	var notices []notify.ProductNotice
	for i := int64(1); i <= 25; i++ {
		notices = append(notices, s.notice(i, i, 100+i))
	}

	s.pending.EXPECT().DeleteOrphaned(ctx).Return(int64(0), nil)
	s.source.EXPECT().PendingBySubscription(ctx).Return(notices, nil)

	var batchSizes []int
	s.messages.EXPECT().CreateBatch(ctx, gomock.Any()).DoAndReturn(
		func(_ context.Context, msgs []domain.OutboundMessage) error {
			batchSizes = append(batchSizes, len(msgs))
			return nil
		},
	).Times(3)
	s.pending.EXPECT().DeleteByStockIDs(ctx, gomock.Any()).DoAndReturn(
		func(_ context.Context, ids []int64) error {
			sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
			s.Len(ids, 25)
			s.Equal(int64(101), ids[0])
			s.Equal(int64(125), ids[24])
			return nil
		},
	)

	s.NoError(s.compiler.Compile(ctx))
	s.Equal([]int{10, 10, 5}, batchSizes)
}

func (s *CompilerTestSuite) TestCompileNothingPending() {
	ctx := context.Background()
	s.pending.EXPECT().DeleteOrphaned(ctx).Return(int64(0), nil)
	s.source.EXPECT().PendingBySubscription(ctx).Return(nil, nil)
	s.NoError(s.compiler.Compile(ctx))
}

func (s *CompilerTestSuite) TestCompileSweepsUnwatchedRows() {
	ctx := context.Background()

	// Rows that lost their last watcher are removed even when nothing is
	// left to compile afterwards.
	s.pending.EXPECT().DeleteOrphaned(ctx).Return(int64(3), nil)
	s.source.EXPECT().PendingBySubscription(ctx).Return(nil, nil)

	s.NoError(s.compiler.Compile(ctx))
}
