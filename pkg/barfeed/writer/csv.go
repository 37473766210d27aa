package writer

import (
	"os"
	"time"

	"github.com/gocarina/gocsv"

	"github.com/indalsig/barfeed/internal/types"
	"github.com/indalsig/barfeed/pkg/errors"
)

// barRecord is the CSV row layout for exported bars. AdjClose is a pointer
// so bars without an adjusted close serialize to an empty cell.
type barRecord struct {
	Symbol   string   `csv:"symbol"`
	Time     string   `csv:"time"`
	Open     float64  `csv:"open"`
	High     float64  `csv:"high"`
	Low      float64  `csv:"low"`
	Close    float64  `csv:"close"`
	Volume   float64  `csv:"volume"`
	AdjClose *float64 `csv:"adj_close"`
}

func newBarRecord(bar types.Bar) barRecord {
	record := barRecord{
		Symbol: bar.Symbol,
		Time:   bar.Time.Format(time.RFC3339),
		Open:   bar.Open,
		High:   bar.High,
		Low:    bar.Low,
		Close:  bar.Close,
		Volume: bar.Volume,
	}

	if adj, err := bar.AdjClose.Take(); err == nil {
		record.AdjClose = &adj
	}

	return record
}

// CSVWriter buffers bars and exports them as a CSV file on Finalize.
type CSVWriter struct {
	outputPath string
	records    []barRecord
}

// NewCSVWriter creates a CSV bar writer targeting outputPath.
func NewCSVWriter(outputPath string) *CSVWriter {
	return &CSVWriter{outputPath: outputPath}
}

// Initialize implements BarWriter.
func (w *CSVWriter) Initialize() error {
	w.records = w.records[:0]

	return nil
}

// Write implements BarWriter.
func (w *CSVWriter) Write(bar types.Bar) error {
	w.records = append(w.records, newBarRecord(bar))

	return nil
}

// Finalize writes the buffered bars to the output file.
func (w *CSVWriter) Finalize() (string, error) {
	file, err := os.Create(w.outputPath)
	if err != nil {
		return "", errors.Wrapf(errors.ErrCodeFilesystem, err, "failed to create %s", w.outputPath)
	}
	defer file.Close()

	if err := gocsv.MarshalFile(&w.records, file); err != nil {
		return "", errors.Wrapf(errors.ErrCodeFilesystem, err, "failed to write %s", w.outputPath)
	}

	return w.outputPath, nil
}

// Close implements BarWriter.
func (w *CSVWriter) Close() error {
	w.records = nil

	return nil
}

// GetOutputPath implements BarWriter.
func (w *CSVWriter) GetOutputPath() string {
	return w.outputPath
}
