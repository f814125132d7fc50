// Package watch runs the scheduled batch: list subscribed products, fetch
// their pages through the throttled pipeline, parse, reconcile and report.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/akhundovte/shopwatch/internal/domain"
	"github.com/akhundovte/shopwatch/internal/fetch"
	"github.com/akhundovte/shopwatch/internal/parser"
	"github.com/akhundovte/shopwatch/internal/reconcile"
)

type Service struct {
	source     TargetSource
	fetcher    BatchFetcher
	parsers    *parser.Registry
	reconciler Reconciler
	events     EventPublisher
	logger     *slog.Logger
}

func NewService(
	source TargetSource,
	fetcher BatchFetcher,
	parsers *parser.Registry,
	reconciler Reconciler,
	events EventPublisher,
	logger *slog.Logger,
) *Service {
	return &Service{
		source:     source,
		fetcher:    fetcher,
		parsers:    parsers,
		reconciler: reconciler,
		events:     events,
		logger:     logger,
	}
}

// Run executes one batch. A failure on one product is recorded and never
// stops the rest; the run ends with a single operator report.
func (s *Service) Run(ctx context.Context) (domain.BatchStats, error) {
	start := time.Now()

	targets, err := s.source.WatchTargets(ctx)
	if err != nil {
		return domain.BatchStats{}, fmt.Errorf("list watch targets: %w", err)
	}

	stats := domain.BatchStats{Targets: len(targets)}
	if len(targets) == 0 {
		return stats, nil
	}

	// OnResponse handlers run on pipeline workers; counters are shared.
	var mu sync.Mutex

	reqs := make([]*fetch.Request, 0, len(targets))
	for i := range targets {
		t := targets[i]
		req := &fetch.Request{URL: scrapeURL(t)}
		if t.ParseParams != nil {
			req.Headers = t.ParseParams.Headers
			req.Cookies = t.ParseParams.Cookies
		}
		req.OnResponse = func(ctx context.Context, body []byte) error {
			mu.Lock()
			stats.Fetched++
			mu.Unlock()

			created, updated, err := s.process(ctx, t, body)
			if err != nil {
				return err
			}
			mu.Lock()
			stats.New += created
			stats.Updated += updated
			mu.Unlock()
			return nil
		}
		reqs = append(reqs, req)
	}

	errs := s.fetcher.Run(ctx, reqs)
	stats.Errors = len(errs)
	stats.Duration = time.Since(start)

	if err := s.events.PublishBatchReport(ctx, stats, joinErrors(errs)); err != nil {
		s.logger.Error("publish batch report", "error", err)
	}

	s.logger.Info("watch run finished",
		"targets", stats.Targets,
		"fetched", stats.Fetched,
		"new", stats.New,
		"updated", stats.Updated,
		"errors", stats.Errors,
		"duration", stats.Duration,
	)
	return stats, nil
}

// process parses one page and reconciles the whole variant family: the
// canonical snapshot first, then the siblings pointing at it as parent.
func (s *Service) process(ctx context.Context, t domain.WatchTarget, body []byte) (created, updated int, err error) {
	p, err := s.parsers.Get(t.ShopName)
	if err != nil {
		return 0, 0, err
	}

	pctx := &parser.Context{URL: scrapeURL(t), ProductURL: t.URL}
	if t.ParseParams != nil {
		pctx.Headers = t.ParseParams.Headers
		pctx.Cookies = t.ParseParams.Cookies
	}
	res, err := p.Parse(ctx, body, pctx)
	if err != nil {
		return 0, 0, fmt.Errorf("parse %s: %w", t.ShopName, err)
	}
	canonical := res.Canonical()
	if canonical == nil {
		return 0, 0, fmt.Errorf("parse %s: empty result", t.ShopName)
	}

	opts := reconcile.Options{}
	if t.ParseParams != nil {
		opts.DeleteMissing = t.ParseParams.DeleteMissing()
	} else {
		opts.DeleteMissing = true
	}

	head, err := s.reconciler.Reconcile(ctx, canonical, t.ShopID, opts)
	if err != nil {
		return 0, 0, fmt.Errorf("reconcile %s: %w", canonical.Reference, err)
	}
	audit := head.Audit
	created, updated = tally(head)

	for _, snap := range res.Snapshots[1:] {
		opts.Parent = head.Product
		out, err := s.reconciler.Reconcile(ctx, snap, t.ShopID, opts)
		if err != nil {
			return created, updated, fmt.Errorf("reconcile %s: %w", snap.Reference, err)
		}
		audit = append(audit, out.Audit...)
		c, u := tally(out)
		created += c
		updated += u
	}

	if len(audit) > 0 {
		if err := s.events.PublishAudit(ctx, head.Product.ID, audit); err != nil {
			s.logger.Error("publish audit", "product_id", head.Product.ID, "error", err)
		}
	}
	return created, updated, nil
}

func tally(out *reconcile.Outcome) (created, updated int) {
	if out.Created {
		return 1, 0
	}
	if len(out.Audit) > 0 {
		return 0, 1
	}
	return 0, 0
}

func scrapeURL(t domain.WatchTarget) string {
	if t.ParseURL != "" {
		return t.ParseURL
	}
	return t.URL
}

func joinErrors(errs []error) string {
	if len(errs) == 0 {
		return ""
	}
	lines := make([]string, len(errs))
	for i, err := range errs {
		lines[i] = err.Error()
	}
	return strings.Join(lines, "\n")
}
