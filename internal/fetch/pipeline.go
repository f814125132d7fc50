package fetch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

const (
	// DefaultQueueSize bounds the request channel; a full queue blocks
	// the producer, not the workers.
	DefaultQueueSize = 100
	// DefaultThrottle is the pause between enqueued requests so target
	// servers never see a burst.
	DefaultThrottle = 2 * time.Second
	// DefaultWorkers is the consumer pool size.
	DefaultWorkers = 1
)

// PipelineConfig tunes a batch run. Zero values take defaults.
type PipelineConfig struct {
	QueueSize int
	Throttle  time.Duration
	Workers   int
}

// Pipeline drains request batches through a bounded queue and a fixed
// worker pool sharing one Client. Individual recoverable failures are
// collected, never raised; a fatal worker failure cancels the whole run.
type Pipeline struct {
	client    *Client
	queueSize int
	throttle  time.Duration
	workers   int
	logger    *slog.Logger
}

func NewPipeline(client *Client, cfg PipelineConfig, logger *slog.Logger) *Pipeline {
	if cfg.QueueSize == 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	if cfg.Throttle == 0 {
		cfg.Throttle = DefaultThrottle
	}
	if cfg.Workers == 0 {
		cfg.Workers = DefaultWorkers
	}
	return &Pipeline{
		client:    client,
		queueSize: cfg.QueueSize,
		throttle:  cfg.Throttle,
		workers:   cfg.Workers,
		logger:    logger,
	}
}

// Run executes the batch and returns the permanent per-request failures.
// It completes when the producer has enqueued everything, the queue has
// drained and all workers are idle, or earlier on cancellation.
func (p *Pipeline) Run(ctx context.Context, reqs []*Request) []error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	queue := make(chan *Request, p.queueSize)

	go p.produce(ctx, queue, reqs)

	var (
		mu   sync.Mutex
		errs []error
		wg   sync.WaitGroup
	)
	record := func(err error) {
		mu.Lock()
		errs = append(errs, err)
		mu.Unlock()
	}

	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for req := range queue {
				if ctx.Err() != nil {
					return
				}
				if err := p.handle(ctx, req); err != nil {
					record(err)
					var fatal *FatalError
					if errors.As(err, &fatal) {
						p.logger.Error("pipeline fatal, cancelling batch",
							"worker", worker, "error", err)
						cancel()
						return
					}
				}
			}
		}(i)
	}

	wg.Wait()
	return errs
}

// produce inserts requests into the queue at a fixed throttle and closes
// it when done.
func (p *Pipeline) produce(ctx context.Context, queue chan<- *Request, reqs []*Request) {
	defer close(queue)
	for _, req := range reqs {
		select {
		case <-ctx.Done():
			return
		case queue <- req:
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(p.throttle):
		}
	}
}

// handle performs one request and dispatches its handler. A handler panic
// is an unexpected worker failure and surfaces as a FatalError.
func (p *Pipeline) handle(ctx context.Context, req *Request) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &FatalError{URL: req.URL, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	body, err := p.client.Do(ctx, req)
	if err != nil {
		return &RequestError{URL: req.URL, Err: err}
	}
	if req.OnResponse == nil {
		return nil
	}
	if err := req.OnResponse(ctx, body); err != nil {
		return &RequestError{URL: req.URL, Err: err}
	}
	return nil
}
