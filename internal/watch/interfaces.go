package watch

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

import (
	"context"

	"github.com/akhundovte/shopwatch/internal/domain"
	"github.com/akhundovte/shopwatch/internal/fetch"
	"github.com/akhundovte/shopwatch/internal/reconcile"
)

// TargetSource lists the products due for a batch run.
type TargetSource interface {
	WatchTargets(ctx context.Context) ([]domain.WatchTarget, error)
}

// BatchFetcher drains a request batch and returns permanent failures.
type BatchFetcher interface {
	Run(ctx context.Context, reqs []*fetch.Request) []error
}

// Reconciler applies one snapshot against persisted state.
type Reconciler interface {
	Reconcile(ctx context.Context, snap *domain.Product, shopID int64, opts reconcile.Options) (*reconcile.Outcome, error)
}

// EventPublisher emits operator events for a run.
type EventPublisher interface {
	PublishAudit(ctx context.Context, productID int64, lines []string) error
	PublishBatchReport(ctx context.Context, stats domain.BatchStats, errorLines string) error
}
