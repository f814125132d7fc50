package notify

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

import (
	"context"

	"github.com/akhundovte/shopwatch/internal/domain"
)

// PendingStore persists the pending-change ledger.
type PendingStore interface {
	GetByStockIDs(ctx context.Context, stockIDs []int64) ([]domain.PendingChange, error)
	// Save applies creates, updates and deletes in one transaction.
	Save(ctx context.Context, creates []domain.PendingChange, updates map[int64]domain.ChangeData, deleteStockIDs []int64) error
	DeleteByStockIDs(ctx context.Context, stockIDs []int64) error
	// DeleteOrphaned removes rows no subscription watches anymore and
	// reports how many went.
	DeleteOrphaned(ctx context.Context) (int64, error)
}

// NoticeLine is one ledger row joined with its stock line.
type NoticeLine struct {
	StockID     int64
	Data        domain.ChangeData
	StockParams *domain.StockParams
	Discount    *int64
}

// ProductNotice groups the pending rows one user is watching on one
// product, joined with the product and shop context a message needs.
type ProductNotice struct {
	UserID        int64
	ProductID     int64
	ProductName   string
	ProductURL    string
	Reference     string
	ShopLabel     string
	ProductParams *domain.ProductParams
	Lines         []NoticeLine
}

// NoticeSource reads the compilation input: every subscription whose
// watched stock lines have pending-change rows, grouped by (user, product).
type NoticeSource interface {
	PendingBySubscription(ctx context.Context) ([]ProductNotice, error)
}

// ClaimedMessage is one not_send message claimed for delivery, joined
// with its recipient.
type ClaimedMessage struct {
	MessageID int64
	ChatID    int64
	FirstName *string
	Text      string
}

// MessageStore persists and claims outbound messages.
type MessageStore interface {
	CreateBatch(ctx context.Context, msgs []domain.OutboundMessage) error
	// ClaimBatch selects up to limit not_send messages ordered by
	// recipient and marks them in_progress with a timestamp.
	ClaimBatch(ctx context.Context, limit int) ([]ClaimedMessage, error)
	MarkSent(ctx context.Context, ids []int64) error
}

// Sender is the external delivery channel.
type Sender interface {
	Send(ctx context.Context, chatID int64, text string) error
}
