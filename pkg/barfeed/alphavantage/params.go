// Package alphavantage downloads historical bar files from the Alpha
// Vantage HTTP API, caches them on disk and builds bar feeds from them.
package alphavantage

import (
	"net/url"

	"github.com/indalsig/barfeed/internal/types"
	"github.com/indalsig/barfeed/pkg/errors"
)

const (
	// QueryURL is the fixed vendor endpoint.
	QueryURL = "https://www.alphavantage.co/query"

	// CSVContentType is the content type the vendor uses for CSV
	// downloads. Rate limits and invalid symbols are signalled by a JSON
	// body with a different content type, not by an HTTP error status.
	CSVContentType = "application/x-download"

	// SourceTag identifies the vendor in cache file names.
	SourceTag = "alphavantage"

	// FallbackAPIKey is sent when the caller supplies no key. The vendor
	// accepts it but applies stricter rate limits and may truncate data
	// without raising an error.
	FallbackAPIKey = "demo"
)

// RequestParams holds the frequency-specific query parameters of a
// download request. Interval is only set for intraday functions.
type RequestParams struct {
	Function string
	Interval string
}

// requestParams maps a frequency to the vendor query function. Dispatch is
// an explicit priority-ordered match; frequencies outside day, week, hour
// and minute are rejected. Callers are expected to validate the frequency
// at feed construction time, before any network activity.
func requestParams(frequency types.Frequency) (RequestParams, error) {
	switch frequency {
	case types.FrequencyDay:
		return RequestParams{Function: "TIME_SERIES_DAILY_ADJUSTED"}, nil
	case types.FrequencyWeek:
		return RequestParams{Function: "TIME_SERIES_WEEKLY_ADJUSTED"}, nil
	case types.FrequencyHour:
		return RequestParams{Function: "TIME_SERIES_INTRADAY", Interval: "60min"}, nil
	case types.FrequencyMinute:
		return RequestParams{Function: "TIME_SERIES_INTRADAY", Interval: "1min"}, nil
	default:
		return RequestParams{}, errors.Newf(errors.ErrCodeUnsupportedFrequency, "unsupported frequency %s", frequency)
	}
}

// Values builds the full query string for one symbol download. The output
// size is always pinned to the full history; the vendor does not support
// incremental fetches on these endpoints.
func (p RequestParams) Values(symbol, apiKey string) url.Values {
	values := url.Values{}
	values.Set("symbol", symbol)
	values.Set("datatype", "csv")
	values.Set("outputsize", "full")
	values.Set("function", p.Function)

	if p.Interval != "" {
		values.Set("interval", p.Interval)
	}

	if apiKey == "" {
		apiKey = FallbackAPIKey
	}

	values.Set("apikey", apiKey)

	return values
}
