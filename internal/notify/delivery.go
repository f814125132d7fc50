package notify

import (
	"context"
	"fmt"
	"log/slog"
)

// claimBatchSize is how many messages one claim takes at a time.
const claimBatchSize = 10

// Delivery drains the outbound queue through the external channel.
// Delivery failures are surfaced in the log, never retried here.
type Delivery struct {
	messages MessageStore
	sender   Sender
	logger   *slog.Logger
}

func NewDelivery(messages MessageStore, sender Sender, logger *slog.Logger) *Delivery {
	return &Delivery{messages: messages, sender: sender, logger: logger}
}

// Run claims not_send messages in fixed-size batches ordered by recipient
// and hands each to the delivery channel one at a time, until the queue
// is empty.
func (d *Delivery) Run(ctx context.Context) error {
	for {
		claimed, err := d.messages.ClaimBatch(ctx, claimBatchSize)
		if err != nil {
			return fmt.Errorf("claim messages: %w", err)
		}
		if len(claimed) == 0 {
			return nil
		}

		var sentIDs []int64
		for _, msg := range claimed {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := d.sender.Send(ctx, msg.ChatID, msg.Text); err != nil {
				d.logger.Error("delivery failed",
					"message_id", msg.MessageID, "chat_id", msg.ChatID, "error", err)
				continue
			}
			sentIDs = append(sentIDs, msg.MessageID)
		}
		if len(sentIDs) > 0 {
			if err := d.messages.MarkSent(ctx, sentIDs); err != nil {
				return fmt.Errorf("mark sent: %w", err)
			}
		}
	}
}
