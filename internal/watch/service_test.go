package watch

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"github.com/akhundovte/shopwatch/internal/domain"
	"github.com/akhundovte/shopwatch/internal/fetch"
	"github.com/akhundovte/shopwatch/internal/parser"
	"github.com/akhundovte/shopwatch/internal/reconcile"
	"github.com/akhundovte/shopwatch/internal/watch/mocks"
)

// fakeParser returns a canned family for every page.
type fakeParser struct {
	shop   string
	result *parser.Result
	err    error
}

func (f *fakeParser) Shop() string { return f.shop }

func (f *fakeParser) Parse(ctx context.Context, raw []byte, pctx *parser.Context) (*parser.Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type WatchServiceTestSuite struct {
	suite.Suite
	ctrl *gomock.Controller

	source     *mocks.MockTargetSource
	fetcher    *mocks.MockBatchFetcher
	reconciler *mocks.MockReconciler
	events     *mocks.MockEventPublisher

	logger *slog.Logger
}

func (s *WatchServiceTestSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.source = mocks.NewMockTargetSource(s.ctrl)
	s.fetcher = mocks.NewMockBatchFetcher(s.ctrl)
	s.reconciler = mocks.NewMockReconciler(s.ctrl)
	s.events = mocks.NewMockEventPublisher(s.ctrl)
	s.logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func (s *WatchServiceTestSuite) TearDownTest() {
	s.ctrl.Finish()
}

func TestWatchServiceTestSuite(t *testing.T) {
	suite.Run(t, new(WatchServiceTestSuite))
}

func (s *WatchServiceTestSuite) newService(parsers ...parser.Parser) *Service {
	return NewService(s.source, s.fetcher, parser.NewRegistry(parsers...), s.reconciler, s.events, s.logger)
}

// runPipeline makes the fetch mock behave like the real pipeline: every
// handler runs with a canned body, failures are collected.
func (s *WatchServiceTestSuite) runPipeline(body []byte) {
	s.fetcher.EXPECT().Run(gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, reqs []*fetch.Request) []error {
			var errs []error
			for _, req := range reqs {
				if err := req.OnResponse(ctx, body); err != nil {
					errs = append(errs, err)
				}
			}
			return errs
		},
	)
}

func (s *WatchServiceTestSuite) target() domain.WatchTarget {
	return domain.WatchTarget{
		ProductID: 7,
		URL:       "https://shop.example/p/1",
		ParseURL:  "https://shop.example/api/p/1",
		ShopID:    3,
		ShopName:  "example",
	}
}

func (s *WatchServiceTestSuite) TestRunReconcilesFamilyAndPublishesAudit() {
	ctx := context.Background()
	head := &domain.Product{Name: "Sneaker", Reference: "ref-1"}
	variant := &domain.Product{Name: "Sneaker White", Reference: "ref-2"}
	svc := s.newService(&fakeParser{
		shop:   "example",
		result: &parser.Result{Snapshots: []*domain.Product{head, variant}},
	})

	s.source.EXPECT().WatchTargets(ctx).Return([]domain.WatchTarget{s.target()}, nil)
	s.runPipeline([]byte("<html/>"))

	persistedHead := &domain.Product{ID: 7, Name: "Sneaker", Reference: "ref-1"}
	s.reconciler.EXPECT().Reconcile(gomock.Any(), head, int64(3), reconcile.Options{DeleteMissing: true}).
		Return(&reconcile.Outcome{Product: persistedHead, Audit: []string{"product id 7 field name changed"}}, nil)
	s.reconciler.EXPECT().Reconcile(gomock.Any(), variant, int64(3),
		reconcile.Options{DeleteMissing: true, Parent: persistedHead}).
		Return(&reconcile.Outcome{Product: &domain.Product{ID: 8}, Created: true}, nil)

	s.events.EXPECT().PublishAudit(gomock.Any(), int64(7), []string{"product id 7 field name changed"}).Return(nil)
	s.events.EXPECT().PublishBatchReport(gomock.Any(), gomock.Any(), "").Return(nil)

	stats, err := svc.Run(ctx)

	s.NoError(err)
	s.Equal(1, stats.Targets)
	s.Equal(1, stats.Fetched)
	s.Equal(1, stats.New)
	s.Equal(1, stats.Updated)
	s.Equal(0, stats.Errors)
}

func (s *WatchServiceTestSuite) TestRunParseFailureIsolatedPerProduct() {
	ctx := context.Background()
	svc := s.newService(&fakeParser{shop: "example", err: errors.New("markup changed")})

	s.source.EXPECT().WatchTargets(ctx).Return([]domain.WatchTarget{s.target()}, nil)
	s.runPipeline([]byte("<html/>"))

	s.events.EXPECT().PublishBatchReport(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, stats domain.BatchStats, errorLines string) error {
			s.Contains(errorLines, "markup changed")
			return nil
		},
	)

	stats, err := svc.Run(ctx)

	s.NoError(err)
	s.Equal(1, stats.Fetched)
	s.Equal(1, stats.Errors)
	s.Equal(0, stats.Updated)
}

func (s *WatchServiceTestSuite) TestRunUnknownShopReported() {
	ctx := context.Background()
	svc := s.newService()

	s.source.EXPECT().WatchTargets(ctx).Return([]domain.WatchTarget{s.target()}, nil)
	s.runPipeline([]byte("<html/>"))
	s.events.EXPECT().PublishBatchReport(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)

	stats, err := svc.Run(ctx)

	s.NoError(err)
	s.Equal(1, stats.Errors)
}

func (s *WatchServiceTestSuite) TestRunNoTargets() {
	ctx := context.Background()
	svc := s.newService()

	s.source.EXPECT().WatchTargets(ctx).Return(nil, nil)

	stats, err := svc.Run(ctx)

	s.NoError(err)
	s.Equal(0, stats.Targets)
}

func (s *WatchServiceTestSuite) TestRunTargetListingFails() {
	ctx := context.Background()
	svc := s.newService()

	s.source.EXPECT().WatchTargets(ctx).Return(nil, errors.New("db down"))

	_, err := svc.Run(ctx)
	s.Error(err)
}
