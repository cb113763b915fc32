// Package engine runs a crawl session: it fetches each listing page,
// turns its product cards into records, accumulates them, and writes the
// accumulated list out after every page and once more at session end.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/IshaanNene/divanscraper/internal/config"
	"github.com/IshaanNene/divanscraper/internal/extract"
	"github.com/IshaanNene/divanscraper/internal/fetcher"
	"github.com/IshaanNene/divanscraper/internal/observability"
	"github.com/IshaanNene/divanscraper/internal/parser"
	"github.com/IshaanNene/divanscraper/internal/pipeline"
	"github.com/IshaanNene/divanscraper/internal/storage"
	"github.com/IshaanNene/divanscraper/internal/types"
)

// State represents the engine's current lifecycle state.
type State int32

const (
	StateIdle     State = 0
	StateRunning  State = 1
	StateStopping State = 2
	StateStopped  State = 3
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Stats tracks crawl statistics.
type Stats struct {
	PagesFetched   atomic.Int64
	PagesFailed    atomic.Int64
	SeedsSkipped   atomic.Int64
	CardsFound     atomic.Int64
	RecordsKept    atomic.Int64
	RecordsDropped atomic.Int64
	FlushesOK      atomic.Int64
	FlushesFailed  atomic.Int64
	StartTime      time.Time
}

// Snapshot returns a copy of stats safe for reading.
func (s *Stats) Snapshot() map[string]any {
	elapsed := time.Duration(0)
	if !s.StartTime.IsZero() {
		elapsed = time.Since(s.StartTime).Round(time.Millisecond)
	}
	return map[string]any{
		"pages_fetched":   s.PagesFetched.Load(),
		"pages_failed":    s.PagesFailed.Load(),
		"seeds_skipped":   s.SeedsSkipped.Load(),
		"cards_found":     s.CardsFound.Load(),
		"records_kept":    s.RecordsKept.Load(),
		"records_dropped": s.RecordsDropped.Load(),
		"flushes_ok":      s.FlushesOK.Load(),
		"flushes_failed":  s.FlushesFailed.Load(),
		"elapsed":         elapsed.String(),
	}
}

// RecordCallback receives each finished record in accumulation order.
type RecordCallback func(rec types.Record)

// Engine is a single crawl session. Pages are processed one at a time and
// cards in document order, so the accumulated records keep page order
// followed by card order.
type Engine struct {
	cfg        *config.Config
	logger     *slog.Logger
	fetcher    fetcher.Fetcher
	locator    parser.Locator
	extractor  *extract.Extractor
	normalizer *pipeline.Normalizer
	storage    storage.Storage
	metrics    *observability.Metrics
	onRecord   RecordCallback

	state    atomic.Int32
	stats    *Stats
	mu       sync.Mutex
	results  []types.Record
	finalize sync.Once
}

// New creates an Engine from cfg. The card locator, extractor and
// normalizer are built here; the fetcher and storage are supplied with
// SetFetcher and SetStorage because opening them does I/O.
func New(cfg *config.Config, logger *slog.Logger) (*Engine, error) {
	locator, err := parser.NewLocator(cfg.Selectors, logger)
	if err != nil {
		return nil, fmt.Errorf("card locator: %w", err)
	}

	return &Engine{
		cfg:        cfg,
		logger:     logger.With("component", "engine"),
		locator:    locator,
		extractor:  extract.New(cfg.Site, cfg.Selectors.Active(), cfg.Extract, logger),
		normalizer: pipeline.NewNormalizer(cfg.Pipeline, cfg.Site.Category, logger),
		stats:      &Stats{},
	}, nil
}

// SetFetcher sets the page fetcher. The engine closes it on Finalize.
func (e *Engine) SetFetcher(f fetcher.Fetcher) { e.fetcher = f }

// SetStorage sets the output writer. The engine closes it on Finalize.
func (e *Engine) SetStorage(s storage.Storage) { e.storage = s }

// SetMetrics enables Prometheus counters for the session.
func (e *Engine) SetMetrics(m *observability.Metrics) { e.metrics = m }

// OnRecord registers a callback invoked for every admitted record.
func (e *Engine) OnRecord(cb RecordCallback) { e.onRecord = cb }

// Stats returns the current crawl statistics.
func (e *Engine) Stats() *Stats { return e.stats }

// GetState returns the current engine state.
func (e *Engine) GetState() State { return State(e.state.Load()) }

// Results returns a copy of the records accumulated so far.
func (e *Engine) Results() []types.Record {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]types.Record, len(e.results))
	copy(out, e.results)
	return out
}

// Run processes every start URL in order, then calls Finalize. When ctx
// is cancelled the remaining seeds are skipped, Finalize still runs, and
// ctx's error is returned. Run can only be called once.
func (e *Engine) Run(ctx context.Context) error {
	if e.fetcher == nil || e.storage == nil {
		return errors.New("engine: fetcher and storage must be set before Run")
	}
	if !e.state.CompareAndSwap(int32(StateIdle), int32(StateRunning)) {
		if e.GetState() == StateStopped {
			return types.ErrSessionFinalized
		}
		return fmt.Errorf("engine is in state %s, cannot run", e.GetState())
	}
	defer e.Finalize(context.WithoutCancel(ctx))

	e.stats.StartTime = time.Now()
	e.logger.Info("crawl starting",
		"seeds", len(e.cfg.Site.StartURLs),
		"fetcher", e.fetcher.Type(),
		"storage", e.storage.Name(),
		"backend", e.cfg.Selectors.Backend,
	)

	// Repeated seeds are fetched again and their records accumulated again.
	for _, seed := range e.cfg.Site.StartURLs {
		if err := ctx.Err(); err != nil {
			e.logger.Warn("crawl interrupted", "error", err)
			return err
		}

		req, err := e.newRequest(seed)
		if err != nil {
			e.stats.SeedsSkipped.Add(1)
			e.pageOutcome("skipped")
			e.logger.Warn("seed skipped", "url", seed, "error", err)
			continue
		}
		e.processPage(ctx, req)
	}
	return ctx.Err()
}

// newRequest validates a seed and checks it against allowed_domains.
// Local file seeds are exempt from the domain check.
func (e *Engine) newRequest(seed string) (*types.Request, error) {
	if err := config.ValidateSeed(seed); err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrInvalidURL, err)
	}
	req, err := types.NewRequest(seed)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrInvalidURL, err)
	}
	if req.URL.Scheme != "file" && !config.DomainAllowed(req.Domain(), e.cfg.Site.AllowedDomains) {
		return nil, fmt.Errorf("domain %q is not allowed", req.Domain())
	}
	return req, nil
}

// processPage fetches one page, runs its cards through extraction and
// normalization, and flushes the accumulated records.
func (e *Engine) processPage(ctx context.Context, req *types.Request) {
	logger := e.logger.With("url", req.URLString())

	resp, err := e.fetcher.Fetch(ctx, req)
	if err != nil {
		e.stats.PagesFailed.Add(1)
		e.pageOutcome("failed")
		var fe *types.FetchError
		if errors.As(err, &fe) && fe.IsRetryable() {
			logger.Warn("fetch failed (retryable)", "status", fe.StatusCode, "retry_after", fe.RetryAfter, "error", err)
		} else {
			logger.Warn("fetch failed", "error", err)
		}
		return
	}
	if e.metrics != nil {
		e.metrics.FetchDuration.Observe(resp.FetchDuration.Seconds())
	}
	if !resp.IsSuccess() {
		e.stats.PagesFailed.Add(1)
		e.pageOutcome("failed")
		logger.Warn("non-success response ignored", "status", resp.StatusCode)
		return
	}

	cards, err := e.locator.Cards(resp)
	if err != nil {
		e.stats.PagesFailed.Add(1)
		e.pageOutcome("failed")
		logger.Error("page parse failed", "error", err)
		return
	}
	e.stats.PagesFetched.Add(1)
	e.pageOutcome("ok")
	e.stats.CardsFound.Add(int64(len(cards)))
	if e.metrics != nil {
		e.metrics.CardsFound.Add(float64(len(cards)))
	}
	logger.Info("cards found", "count", len(cards))
	if len(cards) == 0 {
		logger.Warn("page has no product cards", "error", types.ErrNoCards)
	}

	kept := 0
	for _, card := range cards {
		raw := e.extractor.Extract(card)
		rec, ok := e.normalizer.Normalize(raw)
		if !ok {
			e.stats.RecordsDropped.Add(1)
			if e.metrics != nil {
				e.metrics.RecordsDropped.Inc()
			}
			continue
		}
		e.accept(rec)
		kept++
	}
	logger.Info("page processed", "cards", len(cards), "kept", kept, "total", len(e.results))

	e.flush(ctx, "page")
}

func (e *Engine) accept(rec types.Record) {
	e.mu.Lock()
	e.results = append(e.results, rec)
	size := len(e.results)
	e.mu.Unlock()

	e.stats.RecordsKept.Add(1)
	if e.metrics != nil {
		e.metrics.RecordsKept.Inc()
		e.metrics.ResultSetSize.Set(float64(size))
	}
	if e.onRecord != nil {
		e.onRecord(rec)
	}
}

// flush writes the full accumulated list. Failures are logged and the
// session carries on.
func (e *Engine) flush(ctx context.Context, reason string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(e.results) == 0 {
		e.flushOutcome("empty")
		e.logger.Info("no records to save", "reason", reason)
		return
	}

	if err := e.storage.Flush(ctx, e.results); err != nil {
		e.stats.FlushesFailed.Add(1)
		e.flushOutcome("failed")
		e.logger.Error("flush failed", "reason", reason, "records", len(e.results), "error", err)
		return
	}
	e.stats.FlushesOK.Add(1)
	e.flushOutcome("ok")
	e.logger.Debug("flush complete", "reason", reason, "records", len(e.results))
}

// Finalize ends the session: it writes the accumulated records once more,
// whether or not the last page flush succeeded, then closes the storage
// and fetcher. Only the first call has any effect.
func (e *Engine) Finalize(ctx context.Context) {
	e.finalize.Do(func() {
		e.state.Store(int32(StateStopping))
		e.logger.Info("session finalizing", "records", len(e.Results()))

		if e.storage != nil {
			e.flush(ctx, "finalize")
			if err := e.storage.Close(); err != nil {
				e.logger.Error("storage close error", "error", &types.StorageError{Backend: e.storage.Name(), Err: err})
			}
		}
		if e.fetcher != nil {
			if err := e.fetcher.Close(); err != nil {
				e.logger.Error("fetcher close error", "error", err)
			}
		}

		e.state.Store(int32(StateStopped))
		e.logger.Info("session finished", "stats", e.stats.Snapshot())
	})
}

func (e *Engine) pageOutcome(status string) {
	if e.metrics != nil {
		e.metrics.PagesTotal.WithLabelValues(status).Inc()
	}
}

func (e *Engine) flushOutcome(result string) {
	if e.metrics != nil {
		e.metrics.FlushesTotal.WithLabelValues(result).Inc()
	}
}
