package writer

import (
	"encoding/json"
	"os"
	"time"

	"github.com/indalsig/barfeed/internal/types"
	"github.com/indalsig/barfeed/pkg/errors"
)

// jsonBar is the JSON layout for exported bars.
type jsonBar struct {
	Symbol   string   `json:"symbol"`
	Time     string   `json:"time"`
	Open     float64  `json:"open"`
	High     float64  `json:"high"`
	Low      float64  `json:"low"`
	Close    float64  `json:"close"`
	Volume   float64  `json:"volume"`
	AdjClose *float64 `json:"adjClose,omitempty"`
}

// JSONWriter buffers bars and exports them as an indented JSON array on
// Finalize.
type JSONWriter struct {
	outputPath string
	records    []jsonBar
}

// NewJSONWriter creates a JSON bar writer targeting outputPath.
func NewJSONWriter(outputPath string) *JSONWriter {
	return &JSONWriter{outputPath: outputPath}
}

// Initialize implements BarWriter.
func (w *JSONWriter) Initialize() error {
	w.records = w.records[:0]

	return nil
}

// Write implements BarWriter.
func (w *JSONWriter) Write(bar types.Bar) error {
	record := jsonBar{
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

	w.records = append(w.records, record)

	return nil
}

// Finalize writes the buffered bars to the output file.
func (w *JSONWriter) Finalize() (string, error) {
	file, err := os.Create(w.outputPath)
	if err != nil {
		return "", errors.Wrapf(errors.ErrCodeFilesystem, err, "failed to create %s", w.outputPath)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")

	if err := encoder.Encode(w.records); err != nil {
		return "", errors.Wrapf(errors.ErrCodeFilesystem, err, "failed to write %s", w.outputPath)
	}

	return w.outputPath, nil
}

// Close implements BarWriter.
func (w *JSONWriter) Close() error {
	w.records = nil

	return nil
}

// GetOutputPath implements BarWriter.
func (w *JSONWriter) GetOutputPath() string {
	return w.outputPath
}
