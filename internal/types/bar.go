package types

import (
	"time"

	"github.com/moznion/go-optional"
)

// Bar represents one OHLCV bar for a single instrument.
// AdjClose is only present when the source file carries an adjusted-close
// column and the feed was not configured to ignore it.
type Bar struct {
	Symbol    string
	Time      time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
	AdjClose  optional.Option[float64]
	Frequency Frequency
}

// Price returns the close price, or the adjusted close when useAdjusted is
// set and an adjusted close is present.
func (b Bar) Price(useAdjusted bool) float64 {
	if useAdjusted {
		if adj, err := b.AdjClose.Take(); err == nil {
			return adj
		}
	}

	return b.Close
}
