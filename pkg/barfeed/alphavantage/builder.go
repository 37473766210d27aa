package alphavantage

import (
	"context"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/indalsig/barfeed/internal/logger"
	"github.com/indalsig/barfeed/internal/types"
	"github.com/indalsig/barfeed/pkg/barfeed"
	"github.com/indalsig/barfeed/pkg/errors"
)

// Options configures one batch feed build.
type Options struct {
	// Symbols to load, in the order they should appear in the feed.
	// Duplicates are processed independently; they collide on the same
	// cache file, last write wins.
	Symbols []string `validate:"required,min=1,dive,required"`
	// Storage is the cache root directory, created if absent.
	Storage string `validate:"required"`
	// Frequency of the requested bars. Only day, week, hour and minute
	// are supported.
	Frequency types.Frequency `validate:"required"`
	// FromDate and ToDate bound loaded bars inclusively on both ends.
	// Filtering happens after parsing; the vendor always returns the full
	// history. Zero values leave the corresponding side open.
	FromDate time.Time
	ToDate   time.Time
	// Timezone localizes parsed timestamps. Nil means UTC.
	Timezone *time.Location
	// SkipErrors records per-symbol download and parse failures and keeps
	// going instead of aborting the batch. Filesystem failures abort
	// regardless.
	SkipErrors bool
	// APIKey authenticates with the vendor. Empty falls back to the
	// client's key, then to the rate-limited "demo" token.
	APIKey string
	// ColumnNames overrides CSV header names per logical column key. An
	// empty value for "adj_close" disables adjusted-close parsing.
	ColumnNames map[string]string
	// ForceDownload refreshes cache files even when they exist.
	ForceDownload bool
	// SkipMalformedRows drops unparseable CSV rows instead of failing the
	// symbol.
	SkipMalformedRows bool
	// Workers bounds the number of symbols processed concurrently.
	// Zero or one reproduces the strictly sequential reference behavior.
	Workers int `validate:"omitempty,min=1"`
}

// SkippedSymbol records one symbol excluded from a feed under the
// skip-errors policy, together with the failure that excluded it.
type SkippedSymbol struct {
	Symbol string
	Err    error
}

// Builder builds bar feeds from cached or freshly downloaded Alpha Vantage
// CSV files.
type Builder struct {
	client   *Client
	validate *validator.Validate
	log      *logger.Logger
}

// NewBuilder creates a builder. A nil logger defaults to a no-op. The
// client is used as given; its logger is left untouched.
func NewBuilder(client *Client, log *logger.Logger) *Builder {
	if log == nil {
		log = logger.NewNopLogger()
	}

	return &Builder{
		client:   client,
		validate: validator.New(),
		log:      log,
	}
}

// BuildFeed downloads (or reuses cached) CSV files for every symbol and
// loads them into a feed. Symbols keep their input order in the result.
//
// With SkipErrors set, per-symbol download and parse failures are returned
// in the skipped list and the batch keeps going; otherwise the first
// failure aborts the batch and no feed is returned. Unsupported
// frequencies fail here, before any network call. Filesystem failures
// always abort.
func (b *Builder) BuildFeed(ctx context.Context, opts Options) (*barfeed.Feed, []SkippedSymbol, error) {
	if err := b.validate.Struct(opts); err != nil {
		return nil, nil, errors.Wrap(errors.ErrCodeInvalidParameter, "invalid build options", err)
	}

	feed, err := barfeed.NewFeed(opts.Frequency, opts.Timezone)
	if err != nil {
		return nil, nil, err
	}

	feed.SetLogger(b.log)

	if !opts.FromDate.IsZero() || !opts.ToDate.IsZero() {
		if err := feed.SetDateRangeFilter(opts.FromDate, opts.ToDate); err != nil {
			return nil, nil, err
		}
	}

	// Copy the overrides so callers reusing an options value across
	// builds never leak mappings between feeds.
	for key, name := range copyColumnNames(opts.ColumnNames) {
		columnKey, err := barfeed.ParseColumnKey(key)
		if err != nil {
			return nil, nil, err
		}

		if name == "" && columnKey == barfeed.ColumnAdjClose {
			if err := feed.DisableAdjClose(); err != nil {
				return nil, nil, err
			}

			continue
		}

		if err := feed.SetColumnName(columnKey, name); err != nil {
			return nil, nil, err
		}
	}

	storage := Storage{Root: opts.Storage}
	if err := storage.EnsureRoot(); err != nil {
		return nil, nil, err
	}

	feed.Seal()

	results, err := b.loadSymbols(ctx, feed, storage, opts)
	if err != nil {
		return nil, nil, err
	}

	var skipped []SkippedSymbol

	for i, symbol := range opts.Symbols {
		if results[i].err != nil {
			skipped = append(skipped, SkippedSymbol{Symbol: symbol, Err: results[i].err})

			continue
		}

		feed.AddBars(symbol, results[i].bars)
	}

	return feed, skipped, nil
}

// symbolResult is the outcome of one per-symbol pipeline run.
type symbolResult struct {
	bars []types.Bar
	err  error
}

// loadSymbols runs the per-symbol pipeline for every symbol, sequentially
// by default or across a bounded worker pool. Results are indexed by input
// position so the caller can merge them in order.
func (b *Builder) loadSymbols(ctx context.Context, feed *barfeed.Feed, storage Storage, opts Options) ([]symbolResult, error) {
	results := make([]symbolResult, len(opts.Symbols))

	if opts.Workers <= 1 {
		for i, symbol := range opts.Symbols {
			bars, err := b.loadSymbol(ctx, feed, storage, opts, symbol)
			if err != nil && (!opts.SkipErrors || errors.IsFatal(err)) {
				return results, err
			}

			if err != nil {
				b.log.Error("skipping symbol", zap.String("symbol", symbol), zap.Error(err))
			}

			results[i] = symbolResult{bars: bars, err: err}
		}

		return results, nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	jobs := make(chan int)
	locks := newPathLocks()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		fatalErr error
	)

	for w := 0; w < opts.Workers; w++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for i := range jobs {
				symbol := opts.Symbols[i]

				bars, err := b.loadSymbolLocked(ctx, feed, storage, opts, symbol, locks)
				if err != nil && (!opts.SkipErrors || errors.IsFatal(err)) {
					mu.Lock()
					if fatalErr == nil {
						fatalErr = err
					}
					mu.Unlock()

					// First fatal error cancels the pending symbols.
					cancel()

					return
				}

				if err != nil {
					b.log.Error("skipping symbol", zap.String("symbol", symbol), zap.Error(err))
				}

				results[i] = symbolResult{bars: bars, err: err}
			}
		}()
	}

dispatch:
	for i := range opts.Symbols {
		select {
		case jobs <- i:
		case <-ctx.Done():
			break dispatch
		}
	}

	close(jobs)
	wg.Wait()

	return results, fatalErr
}

// loadSymbol runs the reference single-symbol pipeline: resolve the cache
// path, download on miss or force, persist, then parse and filter.
func (b *Builder) loadSymbol(ctx context.Context, feed *barfeed.Feed, storage Storage, opts Options, symbol string) ([]types.Bar, error) {
	path := storage.Path(symbol)

	if ShouldDownload(path, opts.ForceDownload) {
		b.log.Info("downloading", zap.String("symbol", symbol), zap.String("path", path))

		body, err := b.client.DownloadWithKey(ctx, symbol, opts.Frequency, opts.APIKey)
		if err != nil {
			return nil, err
		}

		if err := writeFileAtomic(path, body); err != nil {
			return nil, err
		}
	} else {
		b.log.Debug("cache hit", zap.String("symbol", symbol), zap.String("path", path))
	}

	return feed.LoadBarsFromCSV(symbol, path, opts.SkipMalformedRows)
}

// loadSymbolLocked serializes the pipeline per cache path so duplicate
// symbols in one batch never write the same file concurrently.
func (b *Builder) loadSymbolLocked(ctx context.Context, feed *barfeed.Feed, storage Storage, opts Options, symbol string, locks *pathLocks) ([]types.Bar, error) {
	unlock := locks.lock(storage.Path(symbol))
	defer unlock()

	return b.loadSymbol(ctx, feed, storage, opts, symbol)
}

// pathLocks hands out one mutex per distinct cache file path.
type pathLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newPathLocks() *pathLocks {
	return &pathLocks{locks: make(map[string]*sync.Mutex)}
}

func (p *pathLocks) lock(path string) (unlock func()) {
	p.mu.Lock()

	lock, ok := p.locks[path]
	if !ok {
		lock = &sync.Mutex{}
		p.locks[path] = lock
	}

	p.mu.Unlock()

	lock.Lock()

	return lock.Unlock
}

func copyColumnNames(names map[string]string) map[string]string {
	copied := make(map[string]string, len(names))

	for key, name := range names {
		copied[key] = name
	}

	return copied
}
