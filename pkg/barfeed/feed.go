// Package barfeed normalizes heterogeneous vendor CSV bar files into
// uniform in-memory bar series.
package barfeed

import (
	"os"
	"sync/atomic"
	"time"

	"github.com/indalsig/barfeed/internal/logger"
	"github.com/indalsig/barfeed/internal/types"
	"github.com/indalsig/barfeed/pkg/errors"
)

const (
	// dailyLayout parses the timestamp column of daily and weekly files.
	dailyLayout = "2006-01-02"
	// intradayLayout parses the timestamp column of intraday files.
	intradayLayout = "2006-01-02 15:04:05"
)

// DateRangeFilter keeps bars whose timestamp falls inside the inclusive
// [From, To] range. A zero bound is open on that side.
type DateRangeFilter struct {
	From time.Time
	To   time.Time
}

// Includes reports whether a bar at time t passes the filter. Both bounds
// are inclusive: a bar exactly at To is retained.
func (f *DateRangeFilter) Includes(t time.Time) bool {
	if f == nil {
		return true
	}

	if !f.From.IsZero() && t.Before(f.From) {
		return false
	}

	if !f.To.IsZero() && t.After(f.To) {
		return false
	}

	return true
}

// Feed is an in-memory collection of bar series keyed by symbol. Symbols
// keep their insertion order and bars keep the chronological order produced
// by the source file.
//
// Column overrides and filters must be configured before the first file is
// parsed; the feed seals its configuration at that point and rejects later
// changes.
type Feed struct {
	frequency   types.Frequency
	location    *time.Location
	layout      string
	columns     *ColumnMapping
	filter      *DateRangeFilter
	useAdjusted bool
	sealed      atomic.Bool
	log         *logger.Logger

	symbols []string
	bars    map[string][]types.Bar
}

// NewFeed creates an empty feed for the given frequency. Only day, week,
// hour and minute frequencies are supported; anything else fails before a
// single network call or file read happens. The location localizes parsed
// timestamps and may be nil for UTC.
func NewFeed(frequency types.Frequency, location *time.Location) (*Feed, error) {
	switch frequency {
	case types.FrequencyDay, types.FrequencyWeek, types.FrequencyHour, types.FrequencyMinute:
	default:
		return nil, errors.Newf(errors.ErrCodeUnsupportedFrequency, "unsupported frequency %s", frequency)
	}

	layout := dailyLayout
	if frequency.Intraday() {
		layout = intradayLayout
	}

	if location == nil {
		location = time.UTC
	}

	return &Feed{
		frequency: frequency,
		location:  location,
		layout:    layout,
		columns:   NewColumnMapping(frequency),
		log:       logger.NewNopLogger(),
		bars:      make(map[string][]types.Bar),
	}, nil
}

// SetLogger replaces the feed's logger. A nil logger restores the no-op
// default.
func (f *Feed) SetLogger(log *logger.Logger) {
	if log == nil {
		log = logger.NewNopLogger()
	}

	f.log = log
}

// Frequency returns the bar frequency the feed was built for.
func (f *Feed) Frequency() types.Frequency {
	return f.frequency
}

// SetColumnName overrides the CSV header used for a logical field.
func (f *Feed) SetColumnName(key ColumnKey, header string) error {
	if f.sealed.Load() {
		return errors.New(errors.ErrCodeFeedSealed, "column mapping cannot change after parsing has started")
	}

	f.columns.SetName(key, header)

	return nil
}

// DisableAdjClose marks the adjusted-close column as absent. Bars loaded
// afterwards always report AdjClose as None, even when the file carries an
// adjusted-close column under the default header.
func (f *Feed) DisableAdjClose() error {
	if f.sealed.Load() {
		return errors.New(errors.ErrCodeFeedSealed, "column mapping cannot change after parsing has started")
	}

	f.columns.SetAbsent(ColumnAdjClose)

	return nil
}

// SetDateTimeLayout overrides the layout used to parse the timestamp column.
func (f *Feed) SetDateTimeLayout(layout string) error {
	if f.sealed.Load() {
		return errors.New(errors.ErrCodeFeedSealed, "datetime layout cannot change after parsing has started")
	}

	f.layout = layout

	return nil
}

// SetDateRangeFilter restricts loaded bars to the inclusive [from, to]
// range. Filtering happens after parsing, never before download.
func (f *Feed) SetDateRangeFilter(from, to time.Time) error {
	if f.sealed.Load() {
		return errors.New(errors.ErrCodeFeedSealed, "date range filter cannot change after parsing has started")
	}

	f.filter = &DateRangeFilter{From: from, To: to}

	return nil
}

// SetUseAdjustedValues switches Price reporting between close and adjusted
// close. It fails when the adjusted-close column is marked absent.
func (f *Feed) SetUseAdjustedValues(use bool) error {
	if use && f.columns.Name(ColumnAdjClose).IsNone() {
		return errors.New(errors.ErrCodeInvalidConfiguration, "adjusted close is not available for this feed")
	}

	f.useAdjusted = use

	return nil
}

// UseAdjustedValues reports whether Price reads the adjusted close.
func (f *Feed) UseAdjustedValues() bool {
	return f.useAdjusted
}

// Seal freezes the feed configuration. Loading bars seals implicitly; the
// batch builder seals explicitly before dispatching parallel loads.
func (f *Feed) Seal() {
	f.sealed.Store(true)
}

// LoadBarsFromCSV parses a vendor CSV file into a bar slice using the
// feed's configuration, applying the date range filter. It does not mutate
// the feed's series, so sealed feeds may load files concurrently.
func (f *Feed) LoadBarsFromCSV(symbol, path string, skipMalformedRows bool) ([]types.Bar, error) {
	f.Seal()

	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeFilesystem, err, "failed to open %s", path)
	}
	defer file.Close()

	parsed, _, err := parseBars(file, parseConfig{
		symbol:        symbol,
		frequency:     f.frequency,
		location:      f.location,
		layout:        f.layout,
		columns:       f.columns,
		skipMalformed: skipMalformedRows,
		log:           f.log,
	})
	if err != nil {
		return nil, err
	}

	if f.filter == nil {
		return parsed, nil
	}

	filtered := parsed[:0]

	for _, bar := range parsed {
		if f.filter.Includes(bar.Time) {
			filtered = append(filtered, bar)
		}
	}

	return filtered, nil
}

// AddBars appends a parsed bar slice to the series for a symbol.
func (f *Feed) AddBars(symbol string, bars []types.Bar) {
	if _, ok := f.bars[symbol]; !ok {
		f.symbols = append(f.symbols, symbol)
	}

	f.bars[symbol] = append(f.bars[symbol], bars...)
}

// AddBarsFromCSV loads a vendor CSV file and appends its bars to the
// series for a symbol.
func (f *Feed) AddBarsFromCSV(symbol, path string, skipMalformedRows bool) error {
	bars, err := f.LoadBarsFromCSV(symbol, path, skipMalformedRows)
	if err != nil {
		return err
	}

	f.AddBars(symbol, bars)

	return nil
}

// Symbols returns the loaded symbols in insertion order.
func (f *Feed) Symbols() []string {
	return f.symbols
}

// Bars returns the bar series for a symbol, in the order the source file
// produced them.
func (f *Feed) Bars(symbol string) []types.Bar {
	return f.bars[symbol]
}
