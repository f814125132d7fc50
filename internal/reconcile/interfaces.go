package reconcile

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

import (
	"context"

	"github.com/akhundovte/shopwatch/internal/domain"
)

// ProductStore is the persistence surface the engine needs: natural-key
// lookup and application of one product's staged mutation set.
type ProductStore interface {
	// GetByReference returns the product and its stock lines matched by
	// (shop id, reference), or domain.ErrNotFound.
	GetByReference(ctx context.Context, reference string, shopID int64) (*domain.Product, error)
	// CreateWithStocks inserts a first-sighted product verbatim and
	// returns its id.
	CreateWithStocks(ctx context.Context, p *domain.Product) (int64, error)
	// Apply executes the mutation set; callers scope it in a transaction.
	Apply(ctx context.Context, m *Mutations) error
}

// Stager records a product's change set in the pending-change ledger.
// Invoked only after the mutation transaction commits.
type Stager interface {
	Stage(ctx context.Context, changes *domain.ChangeSet) error
}

// TransactionManager scopes a function to one database transaction.
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
