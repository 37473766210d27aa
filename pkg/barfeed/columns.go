package barfeed

import (
	"slices"

	"github.com/moznion/go-optional"

	"github.com/indalsig/barfeed/internal/types"
	"github.com/indalsig/barfeed/pkg/errors"
)

// ColumnKey identifies one logical bar field in a vendor CSV file.
type ColumnKey string

const (
	ColumnDateTime ColumnKey = "datetime"
	ColumnOpen     ColumnKey = "open"
	ColumnHigh     ColumnKey = "high"
	ColumnLow      ColumnKey = "low"
	ColumnClose    ColumnKey = "close"
	ColumnVolume   ColumnKey = "volume"
	ColumnAdjClose ColumnKey = "adj_close"
)

// ParseColumnKey converts a logical column name (as used by config files
// and override maps) to a ColumnKey.
func ParseColumnKey(s string) (ColumnKey, error) {
	switch key := ColumnKey(s); key {
	case ColumnDateTime, ColumnOpen, ColumnHigh, ColumnLow, ColumnClose, ColumnVolume, ColumnAdjClose:
		return key, nil
	default:
		return "", errors.Newf(errors.ErrCodeInvalidParameter, "unknown column key %q", s)
	}
}

// ColumnMapping maps logical bar fields to the header names of a vendor CSV
// file. A None entry marks the field as absent from the file; only the
// adjusted-close column may be marked absent.
type ColumnMapping struct {
	names map[ColumnKey]optional.Option[string]
}

// NewColumnMapping returns the default mapping for the given frequency.
// Alpha Vantage names the adjusted-close header "adjusted_close" in daily
// files but "adjusted close" (with a space) in weekly files, and intraday
// files carry no adjusted-close column at all.
func NewColumnMapping(frequency types.Frequency) *ColumnMapping {
	names := map[ColumnKey]optional.Option[string]{
		ColumnDateTime: optional.Some("timestamp"),
		ColumnOpen:     optional.Some("open"),
		ColumnHigh:     optional.Some("high"),
		ColumnLow:      optional.Some("low"),
		ColumnClose:    optional.Some("close"),
		ColumnVolume:   optional.Some("volume"),
	}

	switch frequency {
	case types.FrequencyDay:
		names[ColumnAdjClose] = optional.Some("adjusted_close")
	case types.FrequencyWeek:
		names[ColumnAdjClose] = optional.Some("adjusted close")
	default:
		names[ColumnAdjClose] = optional.None[string]()
	}

	return &ColumnMapping{names: names}
}

// SetName overrides the CSV header used for a logical field.
func (m *ColumnMapping) SetName(key ColumnKey, header string) {
	m.names[key] = optional.Some(header)
}

// SetAbsent marks a logical field as not present in the file. Bars parsed
// with an absent adjusted-close column report AdjClose as None even when
// the file carries a column under the default header.
func (m *ColumnMapping) SetAbsent(key ColumnKey) {
	m.names[key] = optional.None[string]()
}

// Name returns the configured header for a logical field, or None when the
// field is marked absent.
func (m *ColumnMapping) Name(key ColumnKey) optional.Option[string] {
	return m.names[key]
}

// columnIndex maps logical fields to their position in a header row.
// Absent fields have no entry.
type columnIndex map[ColumnKey]int

// resolve locates every mapped field in the header row. It runs once per
// file, not once per data row. Missing required columns are an error;
// a mapped adjusted-close header that is not in the file is treated as
// absent, since its presence varies per vendor endpoint.
func (m *ColumnMapping) resolve(header []string) (columnIndex, error) {
	idx := make(columnIndex, len(m.names))

	for key, name := range m.names {
		hdr, err := name.Take()
		if err != nil {
			continue
		}

		pos := slices.Index(header, hdr)
		if pos < 0 {
			if key == ColumnAdjClose {
				continue
			}

			return nil, errors.Newf(errors.ErrCodeMissingColumn, "column %q (%s) not found in header %v", hdr, key, header)
		}

		idx[key] = pos
	}

	return idx, nil
}
