package domain

import "time"

// MessageStatus is the delivery state of an outbound message.
type MessageStatus int16

const (
	StatusNotSend    MessageStatus = 0
	StatusInProgress MessageStatus = 1
	StatusSent       MessageStatus = 2
)

// OutboundMessage is a rendered notification queued for delivery.
type OutboundMessage struct {
	ID        int64         `db:"id"`
	UserID    int64         `db:"user_id"`
	ProductID *int64        `db:"product_id"`
	Text      string        `db:"text"`
	Status    MessageStatus `db:"status"`
	SentAt    *time.Time    `db:"sent_at"`
}

// User is a chat user known to the watcher.
type User struct {
	ID        int64   `db:"id"`
	ChatID    int64   `db:"chat_id"`
	FirstName *string `db:"first_name"`
}

// Subscription links a user to a product and, through a join table, to the
// stock lines the user wants notified about.
type Subscription struct {
	ID        int64      `db:"id"`
	UserID    int64      `db:"user_id"`
	ProductID int64      `db:"product_id"`
	CreatedAt time.Time  `db:"created_at"`
	UpdatedAt *time.Time `db:"updated_at"`
}

// BatchStats summarizes one scheduled watch run.
type BatchStats struct {
	Targets  int
	Fetched  int
	New      int
	Updated  int
	Errors   int
	Duration time.Duration
}
