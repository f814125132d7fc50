package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/akhundovte/shopwatch/internal/domain"
)

// createBatchSize bounds one bulk insert of rendered messages.
const createBatchSize = 10

// Compiler runs on its own schedule: it renders the pending-change ledger
// into outbound messages and clears the consumed rows. The ledger is a
// work queue, not an audit log, so consumed rows are deleted regardless
// of downstream delivery outcome.
type Compiler struct {
	source   NoticeSource
	pending  PendingStore
	messages MessageStore
	logger   *slog.Logger
}

func NewCompiler(source NoticeSource, pending PendingStore, messages MessageStore, logger *slog.Logger) *Compiler {
	return &Compiler{
		source:   source,
		pending:  pending,
		messages: messages,
		logger:   logger,
	}
}

// Compile renders one message per (user, product) group of pending rows,
// enqueues them as not_send and deletes the consumed ledger rows. Rows
// that lost their last watcher since they were staged are swept first;
// no subscription join can ever reach them.
func (c *Compiler) Compile(ctx context.Context) error {
	swept, err := c.pending.DeleteOrphaned(ctx)
	if err != nil {
		return fmt.Errorf("sweep orphaned changes: %w", err)
	}
	if swept > 0 {
		c.logger.Info("swept orphaned pending changes", "rows", swept)
	}

	notices, err := c.source.PendingBySubscription(ctx)
	if err != nil {
		return fmt.Errorf("load pending notices: %w", err)
	}
	if len(notices) == 0 {
		return nil
	}

	consumed := make(map[int64]struct{})
	batch := make([]domain.OutboundMessage, 0, createBatchSize)
	created := 0
	for i := range notices {
		notice := &notices[i]
		text, err := renderMessage(notice)
		if err != nil {
			return err
		}
		productID := notice.ProductID
		batch = append(batch, domain.OutboundMessage{
			UserID:    notice.UserID,
			ProductID: &productID,
			Text:      text,
			Status:    domain.StatusNotSend,
		})
		for _, line := range notice.Lines {
			consumed[line.StockID] = struct{}{}
		}
		if len(batch) == createBatchSize {
			if err := c.messages.CreateBatch(ctx, batch); err != nil {
				return fmt.Errorf("create messages: %w", err)
			}
			created += len(batch)
			batch = batch[:0]
		}
	}
	if len(batch) > 0 {
		if err := c.messages.CreateBatch(ctx, batch); err != nil {
			return fmt.Errorf("create messages: %w", err)
		}
		created += len(batch)
	}

	ids := make([]int64, 0, len(consumed))
	for id := range consumed {
		ids = append(ids, id)
	}
	if err := c.pending.DeleteByStockIDs(ctx, ids); err != nil {
		return fmt.Errorf("clear pending changes: %w", err)
	}

	c.logger.Info("compiled notices", "messages", created, "pending_cleared", len(ids))
	return nil
}
