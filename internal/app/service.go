// Package app ties sources, transforms, and storage together: it owns the
// per-source fetch cycles, the aggregate fetch-all operation, and the status
// notification channel consumed by external observers.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ecopulse/ecopulse/internal/audit"
	"github.com/ecopulse/ecopulse/internal/source"
	"github.com/ecopulse/ecopulse/internal/store"
	"github.com/ecopulse/ecopulse/internal/transform"
)

// Source names recorded in the source-run log.
const (
	SourceEnvironment = "environment"
	SourceMacro       = "macro"
	SourceWikipedia   = "wikipedia"
)

// Storage is the store contract the service depends on.
type Storage interface {
	transform.EnvWriter
	transform.MacroWriter
	UpdateLocationWiki(locationKey, title, summary string) error
	LogRun(started, finished string, ok bool, message string) error
	LogSourceRun(sourceName, started, finished string, ok bool, message string, itemCount int) error
	LatestEnvRows(locationKey string, limit int) ([]store.EnvRow, error)
	LatestEnvKPIs(locationKey string) (store.EnvRow, error)
	MacroSeries(indicator string, startYear, endYear int) ([]store.MacroRow, error)
	MacroLatest(indicator string) ([]store.MacroRow, error)
	Locations() ([]store.LocationRow, error)
	RecentRuns(limit int) ([]store.Run, error)
	RecentSourceRuns(limit int) ([]store.SourceRun, error)
}

// Fetcher is a source adapter producing fetch envelopes.
type Fetcher interface {
	Fetch(ctx context.Context) []source.FetchResult
}

// Scraper is a source adapter producing scrape envelopes.
type Scraper interface {
	ScrapeAll(ctx context.Context) []source.ScrapeResult
}

// Intervals holds the per-source refresh intervals the scheduler reads.
type Intervals struct {
	Environment time.Duration
	Macro       time.Duration
	Wikipedia   time.Duration
}

// Service is the central coordinator used by the HTTP API and the scheduler.
type Service struct {
	storage Storage
	env     Fetcher
	macro   Fetcher
	wiki    Scraper
	sink    audit.Sink

	mu        sync.RWMutex
	notifyFn  func(string)
	intervals Intervals
}

func NewService(storage Storage, env, macro Fetcher, wiki Scraper, sink audit.Sink, intervals Intervals) *Service {
	if sink == nil {
		sink = audit.Noop{}
	}
	return &Service{
		storage:   storage,
		env:       env,
		macro:     macro,
		wiki:      wiki,
		sink:      sink,
		intervals: intervals,
	}
}

// SetStatusFunc registers the status observer. At most one observer is held;
// the last registration wins. Pass nil to clear.
func (s *Service) SetStatusFunc(fn func(string)) {
	s.mu.Lock()
	s.notifyFn = fn
	s.mu.Unlock()
}

func (s *Service) notify(message string) {
	slog.Info(message)
	s.mu.RLock()
	fn := s.notifyFn
	s.mu.RUnlock()
	if fn != nil {
		fn(message)
	}
}

// Intervals returns the current per-source refresh intervals.
func (s *Service) Intervals() Intervals {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.intervals
}

// SetIntervals replaces the refresh intervals; the scheduler picks them up
// on its next completed cycle.
func (s *Service) SetIntervals(iv Intervals) error {
	if iv.Environment <= 0 || iv.Macro <= 0 || iv.Wikipedia <= 0 {
		return fmt.Errorf("intervals must be positive")
	}
	s.mu.Lock()
	s.intervals = iv
	s.mu.Unlock()
	s.notify(fmt.Sprintf("Intervals updated (env: %s, macro: %s, wiki: %s)",
		iv.Environment, iv.Macro, iv.Wikipedia))
	return nil
}

// FetchAll runs all three source cycles in sequence and records one
// aggregate run. A failing cycle does not stop the remaining ones; the run
// is successful only when every cycle succeeded.
func (s *Service) FetchAll(ctx context.Context) error {
	started := nowUTC()
	s.notify("Running data fetch...")

	err := errors.Join(
		s.FetchEnvironment(ctx),
		s.FetchMacro(ctx),
		s.FetchWikipedia(ctx),
	)

	finished := nowUTC()
	if err != nil {
		s.notify(fmt.Sprintf("Fetch failed: %v", err))
		if logErr := s.storage.LogRun(started, finished, false, err.Error()); logErr != nil {
			slog.Error("failed to record run", "error", logErr)
		}
		return err
	}

	s.notify("Fetch complete")
	if logErr := s.storage.LogRun(started, finished, true, "ok"); logErr != nil {
		slog.Error("failed to record run", "error", logErr)
	}
	return nil
}

// FetchEnvironment runs one environmental cycle: fetch, mirror to the audit
// sink, transform, and record the source run.
func (s *Service) FetchEnvironment(ctx context.Context) error {
	started := nowUTC()
	s.notify("Fetching environment data...")

	results := s.env.Fetch(ctx)
	for _, res := range results {
		s.sink.RecordFetch(ctx, res)
	}

	if err := transform.Environment(results, s.storage); err != nil {
		s.recordSourceRun(SourceEnvironment, started, false, err.Error(), 0)
		s.notify(fmt.Sprintf("Environment failed: %v", err))
		return fmt.Errorf("environment cycle: %w", err)
	}

	s.recordSourceRun(SourceEnvironment, started, true, "ok", len(results))
	s.notify(fmt.Sprintf("Environment updated (%d payloads)", len(results)))
	return nil
}

// FetchMacro runs one macro-economic cycle.
func (s *Service) FetchMacro(ctx context.Context) error {
	started := nowUTC()
	s.notify("Fetching macro data...")

	results := s.macro.Fetch(ctx)
	for _, res := range results {
		s.sink.RecordFetch(ctx, res)
	}

	if err := transform.Macro(results, s.storage); err != nil {
		s.recordSourceRun(SourceMacro, started, false, err.Error(), 0)
		s.notify(fmt.Sprintf("Macro failed: %v", err))
		return fmt.Errorf("macro cycle: %w", err)
	}

	s.recordSourceRun(SourceMacro, started, true, "ok", len(results))
	s.notify(fmt.Sprintf("Macro updated (%d payloads)", len(results)))
	return nil
}

// FetchWikipedia runs one enrichment cycle: scrape each reference page and
// write successful title/summary pairs back onto the location dimension.
func (s *Service) FetchWikipedia(ctx context.Context) error {
	started := nowUTC()
	s.notify("Refreshing Wikipedia summaries...")

	results := s.wiki.ScrapeAll(ctx)
	for _, res := range results {
		s.sink.RecordScrape(ctx, res)
		if !res.OK {
			continue
		}
		if err := s.storage.UpdateLocationWiki(res.LocationKey, res.Title, res.Summary); err != nil {
			s.recordSourceRun(SourceWikipedia, started, false, err.Error(), 0)
			s.notify(fmt.Sprintf("Wikipedia failed: %v", err))
			return fmt.Errorf("wikipedia cycle: %w", err)
		}
	}

	s.recordSourceRun(SourceWikipedia, started, true, "ok", len(results))
	s.notify(fmt.Sprintf("Wikipedia updated (%d pages)", len(results)))
	return nil
}

// recordSourceRun persists per-source execution metadata. Exactly one record
// is written per cycle attempt, success or failure.
func (s *Service) recordSourceRun(name, started string, ok bool, message string, count int) {
	if err := s.storage.LogSourceRun(name, started, nowUTC(), ok, message, count); err != nil {
		slog.Error("failed to record source run", "source", name, "error", err)
	}
}

// Read delegates consumed by the HTTP API.

func (s *Service) RecentEnv(locationKey string, limit int) ([]store.EnvRow, error) {
	return s.storage.LatestEnvRows(locationKey, limit)
}

func (s *Service) LatestEnv(locationKey string) (store.EnvRow, error) {
	return s.storage.LatestEnvKPIs(locationKey)
}

func (s *Service) MacroSeries(indicator string, startYear, endYear int) ([]store.MacroRow, error) {
	return s.storage.MacroSeries(indicator, startYear, endYear)
}

func (s *Service) MacroLatest(indicator string) ([]store.MacroRow, error) {
	return s.storage.MacroLatest(indicator)
}

func (s *Service) Locations() ([]store.LocationRow, error) {
	return s.storage.Locations()
}

func (s *Service) RecentRuns(limit int) ([]store.Run, error) {
	return s.storage.RecentRuns(limit)
}

func (s *Service) RecentSourceRuns(limit int) ([]store.SourceRun, error) {
	return s.storage.RecentSourceRuns(limit)
}

func nowUTC() string {
	return time.Now().UTC().Format(time.RFC3339)
}
