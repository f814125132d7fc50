package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/akhundovte/shopwatch/internal/domain"
)

// RabbitMQ publishes operator events: per-product audit trails, batch
// reports and heartbeats. Consumers are ops tooling, not end users.
type RabbitMQ struct {
	conn       *amqp.Connection
	channel    *amqp.Channel
	exchange   string
	routingKey string
	logger     *slog.Logger
}

type Config struct {
	URL        string
	Exchange   string
	RoutingKey string
	QueueName  string
}

func NewRabbitMQ(cfg Config, logger *slog.Logger) (*RabbitMQ, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	err = ch.ExchangeDeclare(
		cfg.Exchange,
		"direct",
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}

	q, err := ch.QueueDeclare(
		cfg.QueueName,
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare queue: %w", err)
	}

	err = ch.QueueBind(
		q.Name,
		cfg.RoutingKey,
		cfg.Exchange,
		false,
		nil,
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("bind queue: %w", err)
	}

	logger.Info("connected to rabbitmq",
		"exchange", cfg.Exchange,
		"queue", cfg.QueueName,
		"routing_key", cfg.RoutingKey,
	)

	return &RabbitMQ{
		conn:       conn,
		channel:    ch,
		exchange:   cfg.Exchange,
		routingKey: cfg.RoutingKey,
		logger:     logger,
	}, nil
}

type Event struct {
	Kind      string    `json:"kind"`
	ProductID int64     `json:"product_id,omitempty"`
	Lines     []string  `json:"lines,omitempty"`
	Stats     *Stats    `json:"stats,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type Stats struct {
	Targets    int    `json:"targets"`
	Fetched    int    `json:"fetched"`
	New        int    `json:"new"`
	Updated    int    `json:"updated"`
	Errors     int    `json:"errors"`
	DurationMS int64  `json:"duration_ms"`
	ErrorLines string `json:"error_lines,omitempty"`
}

// PublishAudit emits the change audit of one reconciled product.
func (r *RabbitMQ) PublishAudit(ctx context.Context, productID int64, lines []string) error {
	if len(lines) == 0 {
		return nil
	}
	err := r.publish(ctx, Event{
		Kind:      "audit",
		ProductID: productID,
		Lines:     lines,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		return err
	}

	r.logger.Debug("published audit",
		"product_id", productID,
		"lines", len(lines),
	)
	return nil
}

// PublishBatchReport emits the summary of one finished watch run.
func (r *RabbitMQ) PublishBatchReport(ctx context.Context, stats domain.BatchStats, errorLines string) error {
	return r.publish(ctx, Event{
		Kind: "batch_report",
		Stats: &Stats{
			Targets:    stats.Targets,
			Fetched:    stats.Fetched,
			New:        stats.New,
			Updated:    stats.Updated,
			Errors:     stats.Errors,
			DurationMS: stats.Duration.Milliseconds(),
			ErrorLines: errorLines,
		},
		Timestamp: time.Now().UTC(),
	})
}

// PublishHeartbeat emits the daily liveness event.
func (r *RabbitMQ) PublishHeartbeat(ctx context.Context) error {
	return r.publish(ctx, Event{
		Kind:      "heartbeat",
		Timestamp: time.Now().UTC(),
	})
}

func (r *RabbitMQ) publish(ctx context.Context, ev Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	err = r.channel.PublishWithContext(
		ctx,
		r.exchange,
		r.routingKey,
		false,
		false,
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			Body:         body,
			Timestamp:    time.Now(),
		},
	)
	if err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}

func (r *RabbitMQ) Close() error {
	if r.channel != nil {
		r.channel.Close()
	}
	if r.conn != nil {
		return r.conn.Close()
	}
	return nil
}
