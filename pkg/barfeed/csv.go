package barfeed

import (
	"encoding/csv"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/moznion/go-optional"
	"go.uber.org/zap"

	"github.com/indalsig/barfeed/internal/logger"
	"github.com/indalsig/barfeed/internal/types"
	"github.com/indalsig/barfeed/pkg/errors"
)

// parseConfig carries the per-file settings for CSV-to-bar conversion.
// The configuration is frozen before the first row is read.
type parseConfig struct {
	symbol        string
	frequency     types.Frequency
	location      *time.Location
	layout        string
	columns       *ColumnMapping
	skipMalformed bool
	log           *logger.Logger
}

// parseBars converts a vendor CSV stream to a bar slice. The header row is
// resolved against the column mapping exactly once; data rows that cannot
// be converted either fail the whole parse or, with skipMalformed set, are
// counted and dropped. Returns the bars and the number of skipped rows.
func parseBars(r io.Reader, cfg parseConfig) ([]types.Bar, int, error) {
	reader := csv.NewReader(r)

	header, err := reader.Read()
	if err != nil {
		return nil, 0, errors.Wrapf(errors.ErrCodeMalformedRow, err, "failed to read CSV header for %s", cfg.symbol)
	}

	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\uFEFF")
	}

	idx, err := cfg.columns.resolve(header)
	if err != nil {
		return nil, 0, err
	}

	var bars []types.Bar

	skipped := 0
	row := 1

	for {
		row++

		record, err := reader.Read()
		if err == io.EOF {
			break
		}

		if err == nil {
			var bar types.Bar

			bar, err = parseRow(record, idx, cfg)
			if err == nil {
				bars = append(bars, bar)
				continue
			}
		}

		if !cfg.skipMalformed {
			return nil, skipped, errors.Wrapf(errors.ErrCodeMalformedRow, err, "malformed row %d for %s", row, cfg.symbol)
		}

		skipped++

		cfg.log.Warn("skipping malformed row",
			zap.String("symbol", cfg.symbol),
			zap.Int("row", row),
			zap.Error(err),
		)
	}

	return bars, skipped, nil
}

// parseRow converts a single data row to a bar.
func parseRow(record []string, idx columnIndex, cfg parseConfig) (types.Bar, error) {
	timestamp, err := time.ParseInLocation(cfg.layout, record[idx[ColumnDateTime]], cfg.location)
	if err != nil {
		return types.Bar{}, err
	}

	open, err := parseField(record, idx, ColumnOpen)
	if err != nil {
		return types.Bar{}, err
	}

	high, err := parseField(record, idx, ColumnHigh)
	if err != nil {
		return types.Bar{}, err
	}

	low, err := parseField(record, idx, ColumnLow)
	if err != nil {
		return types.Bar{}, err
	}

	closePrice, err := parseField(record, idx, ColumnClose)
	if err != nil {
		return types.Bar{}, err
	}

	volume, err := parseField(record, idx, ColumnVolume)
	if err != nil {
		return types.Bar{}, err
	}

	adjClose := optional.None[float64]()

	if pos, ok := idx[ColumnAdjClose]; ok {
		adj, err := strconv.ParseFloat(strings.TrimSpace(record[pos]), 64)
		if err != nil {
			return types.Bar{}, err
		}

		adjClose = optional.Some(adj)
	}

	return types.Bar{
		Symbol:    cfg.symbol,
		Time:      timestamp,
		Open:      open,
		High:      high,
		Low:       low,
		Close:     closePrice,
		Volume:    volume,
		AdjClose:  adjClose,
		Frequency: cfg.frequency,
	}, nil
}

func parseField(record []string, idx columnIndex, key ColumnKey) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(record[idx[key]]), 64)
}
