package alphavantage

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/indalsig/barfeed/internal/logger"
	"github.com/indalsig/barfeed/internal/types"
	"github.com/indalsig/barfeed/pkg/errors"
)

const weeklyBody = `timestamp,open,high,low,close,adjusted close,volume
2000-01-07,115.50,118.62,103.00,111.44,41.71,338134400
`

// vendorBySymbol serves per-symbol responses and counts total requests.
// The counter is mutex-guarded because worker-pool tests hit the server
// from several goroutines at once.
type vendorBySymbol struct {
	server   *httptest.Server
	mu       sync.Mutex
	requests int
	apiKeys  []string
	bodies   map[string]string
	badType  map[string]bool
}

func newVendorBySymbol(bodies map[string]string) *vendorBySymbol {
	v := &vendorBySymbol{
		bodies:  bodies,
		badType: make(map[string]bool),
	}

	v.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		v.mu.Lock()
		v.requests++
		v.apiKeys = append(v.apiKeys, r.URL.Query().Get("apikey"))
		v.mu.Unlock()

		symbol := r.URL.Query().Get("symbol")

		if v.badType[symbol] {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"Error Message": "Invalid API call."}`))

			return
		}

		w.Header().Set("Content-Type", CSVContentType)
		w.Write([]byte(v.bodies[symbol]))
	}))

	return v
}

func (v *vendorBySymbol) close() {
	v.server.Close()
}

func (v *vendorBySymbol) requestCount() int {
	v.mu.Lock()
	defer v.mu.Unlock()

	return v.requests
}

func (v *vendorBySymbol) seenAPIKeys() []string {
	v.mu.Lock()
	defer v.mu.Unlock()

	return append([]string(nil), v.apiKeys...)
}

type BuilderTestSuite struct {
	suite.Suite
	tempDir string
	vendor  *vendorBySymbol
	builder *Builder
}

func TestBuilderSuite(t *testing.T) {
	suite.Run(t, new(BuilderTestSuite))
}

func (suite *BuilderTestSuite) SetupTest() {
	tempDir, err := os.MkdirTemp("", "builder-test-*")
	suite.Require().NoError(err)
	suite.tempDir = tempDir

	suite.vendor = newVendorBySymbol(map[string]string{
		"ORCL": dailyBody,
		"AAPL": dailyBody,
	})

	client := NewClient("test-key")
	client.SetBaseURL(suite.vendor.server.URL)

	suite.builder = NewBuilder(client, nil)
}

func (suite *BuilderTestSuite) TearDownTest() {
	suite.vendor.close()
	os.RemoveAll(suite.tempDir)
}

func (suite *BuilderTestSuite) options() Options {
	return Options{
		Symbols:   []string{"ORCL", "AAPL"},
		Storage:   suite.tempDir,
		Frequency: types.FrequencyDay,
	}
}

func (suite *BuilderTestSuite) TestBuildFeed() {
	feed, skipped, err := suite.builder.BuildFeed(context.Background(), suite.options())
	suite.NoError(err)
	suite.Empty(skipped)

	suite.Equal([]string{"ORCL", "AAPL"}, feed.Symbols())
	suite.Len(feed.Bars("ORCL"), 1)
	suite.Len(feed.Bars("AAPL"), 1)
	suite.Equal(2, suite.vendor.requestCount())

	suite.FileExists(filepath.Join(suite.tempDir, "ORCL-alphavantage.csv"))
	suite.FileExists(filepath.Join(suite.tempDir, "AAPL-alphavantage.csv"))
}

func (suite *BuilderTestSuite) TestNewBuilderLeavesClientLoggerAlone() {
	client := NewClient("test-key")

	log := logger.NewNopLogger()
	client.SetLogger(log)

	NewBuilder(client, logger.NewNopLogger())

	suite.Same(log, client.log)
}

func (suite *BuilderTestSuite) TestOptionsAPIKeyReachesRequest() {
	// A builder whose client was constructed without a key still sends the
	// key supplied through the options.
	client := NewClient("")
	client.SetBaseURL(suite.vendor.server.URL)

	builder := NewBuilder(client, nil)

	opts := suite.options()
	opts.APIKey = "real-key"

	_, _, err := builder.BuildFeed(context.Background(), opts)
	suite.NoError(err)

	keys := suite.vendor.seenAPIKeys()
	suite.Require().Len(keys, 2)

	for _, key := range keys {
		suite.Equal("real-key", key)
	}
}

func (suite *BuilderTestSuite) TestEmptyOptionsAPIKeyFallsBackToClientKey() {
	_, _, err := suite.builder.BuildFeed(context.Background(), suite.options())
	suite.Require().NoError(err)

	keys := suite.vendor.seenAPIKeys()
	suite.Require().Len(keys, 2)

	for _, key := range keys {
		suite.Equal("test-key", key)
	}
}

func (suite *BuilderTestSuite) TestSecondBuildHitsCache() {
	_, _, err := suite.builder.BuildFeed(context.Background(), suite.options())
	suite.Require().NoError(err)
	suite.Require().Equal(2, suite.vendor.requestCount())

	feed, skipped, err := suite.builder.BuildFeed(context.Background(), suite.options())
	suite.NoError(err)
	suite.Empty(skipped)
	suite.Len(feed.Bars("ORCL"), 1)

	// No additional network activity on a warm cache.
	suite.Equal(2, suite.vendor.requestCount())
}

func (suite *BuilderTestSuite) TestForceDownloadRefreshesCache() {
	_, _, err := suite.builder.BuildFeed(context.Background(), suite.options())
	suite.Require().NoError(err)
	suite.Require().Equal(2, suite.vendor.requestCount())

	opts := suite.options()
	opts.ForceDownload = true

	_, _, err = suite.builder.BuildFeed(context.Background(), opts)
	suite.NoError(err)
	suite.Equal(4, suite.vendor.requestCount())
}

func (suite *BuilderTestSuite) TestSkipErrorsKeepsGoing() {
	suite.vendor.badType["AAPL"] = true

	opts := suite.options()
	opts.SkipErrors = true

	feed, skipped, err := suite.builder.BuildFeed(context.Background(), opts)
	suite.NoError(err)

	suite.Equal([]string{"ORCL"}, feed.Symbols())
	suite.Require().Len(skipped, 1)
	suite.Equal("AAPL", skipped[0].Symbol)
	suite.True(errors.HasCode(skipped[0].Err, errors.ErrCodeInvalidContentType))
}

func (suite *BuilderTestSuite) TestFirstFailureAbortsWithoutSkipErrors() {
	suite.vendor.badType["ORCL"] = true

	feed, skipped, err := suite.builder.BuildFeed(context.Background(), suite.options())
	suite.Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidContentType))
	suite.Nil(feed)
	suite.Empty(skipped)

	// The batch stops at the first symbol.
	suite.Equal(1, suite.vendor.requestCount())
}

func (suite *BuilderTestSuite) TestUnsupportedFrequencyFailsBeforeNetwork() {
	opts := suite.options()
	opts.Frequency = types.FrequencyMonth

	_, _, err := suite.builder.BuildFeed(context.Background(), opts)
	suite.Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeUnsupportedFrequency))
	suite.Zero(suite.vendor.requestCount())
}

func (suite *BuilderTestSuite) TestInvalidOptions() {
	testCases := []struct {
		name   string
		modify func(*Options)
	}{
		{name: "no symbols", modify: func(o *Options) { o.Symbols = nil }},
		{name: "empty symbol", modify: func(o *Options) { o.Symbols = []string{"ORCL", ""} }},
		{name: "no storage", modify: func(o *Options) { o.Storage = "" }},
		{name: "negative workers", modify: func(o *Options) { o.Workers = -2 }},
	}

	for _, tc := range testCases {
		suite.Run(tc.name, func() {
			opts := suite.options()
			tc.modify(&opts)

			_, _, err := suite.builder.BuildFeed(context.Background(), opts)
			suite.Error(err)
			suite.True(errors.HasCode(err, errors.ErrCodeInvalidParameter))
		})
	}
}

func (suite *BuilderTestSuite) TestDateRangeFilter() {
	suite.vendor.bodies["ORCL"] = `timestamp,open,high,low,close,adjusted_close,volume
2000-01-05,103.75,110.56,103.00,108.00,40.43,83194800
2000-01-04,115.50,118.62,105.00,107.69,40.31,116824800
2000-01-03,124.62,125.19,111.62,118.12,44.22,98114800
`

	opts := suite.options()
	opts.Symbols = []string{"ORCL"}
	opts.FromDate = time.Date(2000, 1, 4, 0, 0, 0, 0, time.UTC)
	opts.ToDate = time.Date(2000, 1, 5, 0, 0, 0, 0, time.UTC)

	feed, _, err := suite.builder.BuildFeed(context.Background(), opts)
	suite.NoError(err)

	bars := feed.Bars("ORCL")
	suite.Require().Len(bars, 2)
	suite.Equal(time.Date(2000, 1, 5, 0, 0, 0, 0, time.UTC), bars[0].Time)
	suite.Equal(time.Date(2000, 1, 4, 0, 0, 0, 0, time.UTC), bars[1].Time)
}

func (suite *BuilderTestSuite) TestWeeklyColumnDefaults() {
	suite.vendor.bodies["ORCL"] = weeklyBody

	opts := suite.options()
	opts.Symbols = []string{"ORCL"}
	opts.Frequency = types.FrequencyWeek

	feed, _, err := suite.builder.BuildFeed(context.Background(), opts)
	suite.NoError(err)

	bars := feed.Bars("ORCL")
	suite.Require().Len(bars, 1)

	adj, err := bars[0].AdjClose.Take()
	suite.NoError(err)
	suite.Equal(41.71, adj)
}

func (suite *BuilderTestSuite) TestColumnOverrides() {
	suite.vendor.bodies["ORCL"] = `date,open,high,low,close,adjusted_close,volume
2000-01-03,124.62,125.19,111.62,118.12,44.22,98114800
`

	opts := suite.options()
	opts.Symbols = []string{"ORCL"}
	opts.ColumnNames = map[string]string{
		"datetime":  "date",
		"adj_close": "",
	}

	feed, _, err := suite.builder.BuildFeed(context.Background(), opts)
	suite.NoError(err)

	bars := feed.Bars("ORCL")
	suite.Require().Len(bars, 1)
	suite.True(bars[0].AdjClose.IsNone())

	// Caller's override map stays untouched.
	suite.Equal("", opts.ColumnNames["adj_close"])
	suite.Len(opts.ColumnNames, 2)
}

func (suite *BuilderTestSuite) TestUnknownColumnKeyRejected() {
	opts := suite.options()
	opts.ColumnNames = map[string]string{"dividends": "dividend_amount"}

	_, _, err := suite.builder.BuildFeed(context.Background(), opts)
	suite.Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidParameter))
}

func (suite *BuilderTestSuite) TestMalformedRowPolicy() {
	suite.vendor.bodies["ORCL"] = `timestamp,open,high,low,close,adjusted_close,volume
2000-01-04,115.50,118.62,105.00,107.69,40.31,116824800
2000-01-03,broken,125.19,111.62,118.12,44.22,98114800
`

	opts := suite.options()
	opts.Symbols = []string{"ORCL"}

	_, _, err := suite.builder.BuildFeed(context.Background(), opts)
	suite.Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeMalformedRow))

	// Same batch with row skipping keeps the good rows. The cache file is
	// already on disk, so no further request is issued.
	opts.SkipMalformedRows = true

	feed, skipped, err := suite.builder.BuildFeed(context.Background(), opts)
	suite.NoError(err)
	suite.Empty(skipped)
	suite.Len(feed.Bars("ORCL"), 1)
	suite.Equal(1, suite.vendor.requestCount())
}

func (suite *BuilderTestSuite) TestWorkerPoolPreservesOrder() {
	symbols := []string{"ORCL", "AAPL", "IBM", "MSFT"}

	suite.vendor.bodies["IBM"] = dailyBody
	suite.vendor.bodies["MSFT"] = dailyBody

	opts := suite.options()
	opts.Symbols = symbols
	opts.Workers = 3

	feed, skipped, err := suite.builder.BuildFeed(context.Background(), opts)
	suite.NoError(err)
	suite.Empty(skipped)
	suite.Equal(symbols, feed.Symbols())
	suite.Equal(4, suite.vendor.requestCount())
}

func (suite *BuilderTestSuite) TestWorkerPoolSkipErrors() {
	suite.vendor.badType["AAPL"] = true
	suite.vendor.bodies["IBM"] = dailyBody

	opts := suite.options()
	opts.Symbols = []string{"ORCL", "AAPL", "IBM"}
	opts.SkipErrors = true
	opts.Workers = 2

	feed, skipped, err := suite.builder.BuildFeed(context.Background(), opts)
	suite.NoError(err)

	suite.Equal([]string{"ORCL", "IBM"}, feed.Symbols())
	suite.Require().Len(skipped, 1)
	suite.Equal("AAPL", skipped[0].Symbol)
}

func (suite *BuilderTestSuite) TestWorkerPoolAbortsOnFailure() {
	suite.vendor.badType["ORCL"] = true
	suite.vendor.badType["AAPL"] = true

	opts := suite.options()
	opts.Workers = 2

	feed, _, err := suite.builder.BuildFeed(context.Background(), opts)
	suite.Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidContentType))
	suite.Nil(feed)
}

func (suite *BuilderTestSuite) TestDuplicateSymbols() {
	opts := suite.options()
	opts.Symbols = []string{"ORCL", "ORCL"}
	opts.Workers = 2

	feed, skipped, err := suite.builder.BuildFeed(context.Background(), opts)
	suite.NoError(err)
	suite.Empty(skipped)

	suite.Equal([]string{"ORCL"}, feed.Symbols())
	suite.Len(feed.Bars("ORCL"), 2)
}
