// Package writer exports normalized bar series to local files.
package writer

import (
	"github.com/indalsig/barfeed/internal/types"
	"github.com/indalsig/barfeed/pkg/barfeed"
	"github.com/indalsig/barfeed/pkg/errors"
)

// BarWriter defines the interface for writing normalized bars to a
// destination.
type BarWriter interface {
	// Initialize sets up the writer, potentially creating files.
	Initialize() error
	// Write buffers a single bar.
	Write(bar types.Bar) error
	// Finalize completes the writing process and returns the output path.
	Finalize() (outputPath string, err error)
	// Close releases any resources held by the writer.
	Close() error
	// GetOutputPath returns the configured output file path.
	GetOutputPath() string
}

// Format selects a bar writer implementation.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

// NewBarWriter creates a writer for the given format.
func NewBarWriter(format Format, outputPath string) (BarWriter, error) {
	switch format {
	case FormatCSV:
		return NewCSVWriter(outputPath), nil
	case FormatJSON:
		return NewJSONWriter(outputPath), nil
	default:
		return nil, errors.Newf(errors.ErrCodeInvalidParameter, "unsupported writer format %q", format)
	}
}

// Export writes every bar of a feed through a writer, symbol by symbol in
// feed order, and finalizes it.
func Export(feed *barfeed.Feed, w BarWriter) (string, error) {
	if err := w.Initialize(); err != nil {
		return "", err
	}

	for _, symbol := range feed.Symbols() {
		for _, bar := range feed.Bars(symbol) {
			if err := w.Write(bar); err != nil {
				return "", err
			}
		}
	}

	return w.Finalize()
}
