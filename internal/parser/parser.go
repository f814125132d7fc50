// Package parser defines the contract between the watch pipeline and the
// per-shop page parsers. Parsers themselves live outside the core; the
// registry resolves one per shop and is injected where needed.
package parser

import (
	"context"
	"fmt"

	"github.com/akhundovte/shopwatch/internal/domain"
	"github.com/akhundovte/shopwatch/internal/fetch"
)

// Error is a parse failure, distinct from transport failures. UserMsg, if
// set, may be shown to the user who submitted the link.
type Error struct {
	Shop    string
	Msg     string
	UserMsg string
	Err     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("parser %s: %s", e.Shop, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Fetcher lets a parser issue follow-up requests for multi-step pages
// through the pipeline's shared client.
type Fetcher interface {
	Do(ctx context.Context, req *fetch.Request) ([]byte, error)
}

// Context carries the request surroundings into a parse call.
type Context struct {
	// URL is the scrape URL the bytes came from.
	URL string
	// ProductURL is the canonical page URL when it differs from URL.
	ProductURL string
	Headers    map[string]string
	Cookies    map[string]string
	Fetcher    Fetcher
}

// Result is the outcome of parsing one page: one snapshot, or an ordered
// variant family with the canonical item first.
type Result struct {
	Snapshots []*domain.Product
	// Selected is the variant key currently chosen on the page, when the
	// shop exposes one.
	Selected string
}

// Canonical returns the family head.
func (r *Result) Canonical() *domain.Product {
	if len(r.Snapshots) == 0 {
		return nil
	}
	return r.Snapshots[0]
}

// Parser turns raw page bytes into product snapshots for one shop.
type Parser interface {
	Shop() string
	Parse(ctx context.Context, raw []byte, pctx *Context) (*Result, error)
}

// URLPreparer is an optional parser capability: rewrite a user-submitted
// URL into the scrape URL before fetching.
type URLPreparer interface {
	PrepareURL(url string) string
}

// Registry maps shop names to parser implementations. Resolved once at
// startup and read-only afterwards.
type Registry struct {
	parsers map[string]Parser
}

func NewRegistry(parsers ...Parser) *Registry {
	m := make(map[string]Parser, len(parsers))
	for _, p := range parsers {
		m[p.Shop()] = p
	}
	return &Registry{parsers: m}
}

// Get resolves the parser for a shop.
func (r *Registry) Get(shop string) (Parser, error) {
	p, ok := r.parsers[shop]
	if !ok {
		return nil, fmt.Errorf("no parser registered for shop %q", shop)
	}
	return p, nil
}
