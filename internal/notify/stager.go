// Package notify maintains the durable pending-change ledger and turns it
// into rendered outbound messages on a separate compilation schedule.
package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/akhundovte/shopwatch/internal/domain"
)

// Stager coalesces reconciliation change sets into the ledger, keeping at
// most one pending row per stock line.
type Stager struct {
	pending PendingStore
	logger  *slog.Logger
}

func NewStager(pending PendingStore, logger *slog.Logger) *Stager {
	return &Stager{pending: pending, logger: logger}
}

// Stage upserts the change set into the ledger. Existing price records
// merge with incoming ones so the eventual message spans from the
// earliest-seen old value to the latest new one; payloads without price
// information never overwrite an existing price record. An "available"
// marker is cleared when this pass saw the line unavailable again without
// staging a new notice.
func (s *Stager) Stage(ctx context.Context, changes *domain.ChangeSet) error {
	ids := make([]int64, 0, len(changes.SeenStockIDs)+len(changes.Changes))
	seen := make(map[int64]struct{}, len(changes.SeenStockIDs))
	for _, id := range changes.SeenStockIDs {
		ids = append(ids, id)
		seen[id] = struct{}{}
	}
	for id := range changes.Changes {
		if _, ok := seen[id]; !ok {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil
	}

	existing, err := s.pending.GetByStockIDs(ctx, ids)
	if err != nil {
		return fmt.Errorf("get pending changes: %w", err)
	}

	incoming := make(map[int64]domain.ChangeData, len(changes.Changes))
	for id, data := range changes.Changes {
		incoming[id] = data
	}

	updates := make(map[int64]domain.ChangeData)
	var deleteIDs []int64
	for _, row := range existing {
		if data, ok := incoming[row.StockID]; ok {
			if merged, changed := mergeChange(row.Data, data); changed {
				updates[row.StockID] = merged
			}
			delete(incoming, row.StockID)
			continue
		}
		if row.Data.Available {
			if _, available := changes.AvailableStockIDs[row.StockID]; !available {
				deleteIDs = append(deleteIDs, row.StockID)
			}
		}
	}

	var creates []domain.PendingChange
	for id, data := range incoming {
		creates = append(creates, domain.PendingChange{StockID: id, Data: data})
	}

	if len(creates) == 0 && len(updates) == 0 && len(deleteIDs) == 0 {
		return nil
	}
	if err := s.pending.Save(ctx, creates, updates, deleteIDs); err != nil {
		return fmt.Errorf("save pending changes: %w", err)
	}
	s.logger.Debug("staged pending changes",
		"product_id", changes.ProductID,
		"created", len(creates), "updated", len(updates), "deleted", len(deleteIDs))
	return nil
}

// mergeChange folds an incoming payload into an existing ledger row.
// Incoming payloads without a price record are discarded. When both carry
// prices they merge field by field: a field present in both keeps the
// existing old value and takes the incoming new one.
func mergeChange(existing, incoming domain.ChangeData) (domain.ChangeData, bool) {
	if len(incoming.Price) == 0 {
		return existing, false
	}
	if len(existing.Price) == 0 {
		return incoming, true
	}

	merged := make(map[domain.PriceField]domain.PricePair, len(existing.Price)+len(incoming.Price))
	for field, pair := range existing.Price {
		merged[field] = pair
	}
	for field, pair := range incoming.Price {
		if prev, ok := merged[field]; ok {
			pair.Old = prev.Old
		}
		merged[field] = pair
	}
	return domain.ChangeData{Price: merged}, true
}
