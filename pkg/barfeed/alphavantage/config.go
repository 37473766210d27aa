package alphavantage

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/invopop/jsonschema"
	"gopkg.in/yaml.v3"

	"github.com/indalsig/barfeed/internal/types"
)

// BuildConfig is the serializable form of Options, used by config files
// and external callers. Dates use the "2006-01-02" layout and the timezone
// is an IANA name.
type BuildConfig struct {
	Symbols           []string          `json:"symbols" yaml:"symbols" jsonschema:"title=Symbols,description=Instrument symbols to download and load,required" validate:"required,min=1,dive,required"`
	Storage           string            `json:"storage" yaml:"storage" jsonschema:"title=Storage,description=Directory holding the cached CSV files,required" validate:"required"`
	Frequency         string            `json:"frequency" yaml:"frequency" jsonschema:"title=Frequency,description=Bar frequency,enum=minute,enum=hourly,enum=daily,enum=weekly" validate:"omitempty,oneof=minute hourly daily weekly"`
	FromDate          string            `json:"fromDate,omitempty" yaml:"fromDate,omitempty" jsonschema:"title=From Date,description=Inclusive lower bound for bar timestamps,format=date"`
	ToDate            string            `json:"toDate,omitempty" yaml:"toDate,omitempty" jsonschema:"title=To Date,description=Inclusive upper bound for bar timestamps,format=date"`
	Timezone          string            `json:"timezone,omitempty" yaml:"timezone,omitempty" jsonschema:"title=Timezone,description=IANA timezone used to localize bar timestamps"`
	SkipErrors        bool              `json:"skipErrors,omitempty" yaml:"skipErrors,omitempty" jsonschema:"title=Skip Errors,description=Keep loading remaining symbols when one fails"`
	APIKey            string            `json:"apiKey,omitempty" yaml:"apiKey,omitempty" jsonschema:"title=API Key,description=Alpha Vantage API key"`
	ColumnNames       map[string]string `json:"columnNames,omitempty" yaml:"columnNames,omitempty" jsonschema:"title=Column Names,description=Overrides for CSV header names per logical column"`
	ForceDownload     bool              `json:"forceDownload,omitempty" yaml:"forceDownload,omitempty" jsonschema:"title=Force Download,description=Refresh cache files even when they exist"`
	SkipMalformedRows bool              `json:"skipMalformedRows,omitempty" yaml:"skipMalformedRows,omitempty" jsonschema:"title=Skip Malformed Rows,description=Drop unparseable CSV rows instead of failing the symbol"`
	Workers           int               `json:"workers,omitempty" yaml:"workers,omitempty" jsonschema:"title=Workers,description=Number of symbols processed concurrently" validate:"omitempty,min=1"`
}

const configDateLayout = "2006-01-02"

// Validate checks the config fields and date formats.
func (c *BuildConfig) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	if c.FromDate != "" {
		if _, err := time.Parse(configDateLayout, c.FromDate); err != nil {
			return fmt.Errorf("invalid fromDate, expected %s: %w", configDateLayout, err)
		}
	}

	if c.ToDate != "" {
		if _, err := time.Parse(configDateLayout, c.ToDate); err != nil {
			return fmt.Errorf("invalid toDate, expected %s: %w", configDateLayout, err)
		}
	}

	return nil
}

// ToOptions converts the config to build options.
func (c *BuildConfig) ToOptions() (Options, error) {
	if err := c.Validate(); err != nil {
		return Options{}, err
	}

	frequency := types.FrequencyDay

	if c.Frequency != "" {
		var err error

		frequency, err = types.ParseFrequency(c.Frequency)
		if err != nil {
			return Options{}, err
		}
	}

	var fromDate, toDate time.Time

	if c.FromDate != "" {
		fromDate, _ = time.Parse(configDateLayout, c.FromDate)
	}

	if c.ToDate != "" {
		toDate, _ = time.Parse(configDateLayout, c.ToDate)
	}

	var location *time.Location

	if c.Timezone != "" {
		var err error

		location, err = time.LoadLocation(c.Timezone)
		if err != nil {
			return Options{}, fmt.Errorf("invalid timezone: %w", err)
		}
	}

	return Options{
		Symbols:           c.Symbols,
		Storage:           c.Storage,
		Frequency:         frequency,
		FromDate:          fromDate,
		ToDate:            toDate,
		Timezone:          location,
		SkipErrors:        c.SkipErrors,
		APIKey:            c.APIKey,
		ColumnNames:       c.ColumnNames,
		ForceDownload:     c.ForceDownload,
		SkipMalformedRows: c.SkipMalformedRows,
		Workers:           c.Workers,
	}, nil
}

// LoadConfig reads and validates a YAML build config file.
func LoadConfig(path string) (*BuildConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config BuildConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// ParseConfig parses and validates a JSON build config.
func ParseConfig(jsonConfig string) (*BuildConfig, error) {
	var config BuildConfig
	if err := json.Unmarshal([]byte(jsonConfig), &config); err != nil {
		return nil, fmt.Errorf("failed to parse JSON config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// ConfigJSONSchema returns the JSON schema describing BuildConfig.
func ConfigJSONSchema() (string, error) {
	r := new(jsonschema.Reflector)
	r.DoNotReference = true
	schema := r.Reflect(&BuildConfig{})

	schemaBytes, err := json.Marshal(schema)
	if err != nil {
		return "", err
	}

	return string(schemaBytes), nil
}
