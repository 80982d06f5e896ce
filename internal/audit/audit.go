// Package audit mirrors raw fetch and scrape envelopes to an optional
// secondary sink for later inspection. Writes are fire-and-forget,
// at-least-once at best; the primary pipeline never depends on them.
package audit

import (
	"context"

	"github.com/ecopulse/ecopulse/internal/source"
)

// Sink receives envelope mirrors. Implementations must be safe to call from
// any goroutine and must not block the pipeline on sink failures.
type Sink interface {
	RecordFetch(ctx context.Context, result source.FetchResult)
	RecordScrape(ctx context.Context, result source.ScrapeResult)
	Close() error
}

// Noop is the sink substituted when no audit backend is configured or the
// configured one is unreachable at startup.
type Noop struct{}

func (Noop) RecordFetch(context.Context, source.FetchResult)   {}
func (Noop) RecordScrape(context.Context, source.ScrapeResult) {}
func (Noop) Close() error                                      { return nil }
